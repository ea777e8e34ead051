package notify

import (
	"context"
	"testing"

	"github.com/hibiken/asynq"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/awibowo/backend-storefront/internal/common"
	"github.com/awibowo/backend-storefront/internal/events"
	"github.com/awibowo/backend-storefront/internal/store"
)

type captureClient struct {
	tasks []*asynq.Task
}

func (c *captureClient) EnqueueContext(_ context.Context, task *asynq.Task, _ ...asynq.Option) (*asynq.TaskInfo, error) {
	c.tasks = append(c.tasks, task)
	return &asynq.TaskInfo{ID: "t1", Queue: QueueEmails}, nil
}

func TestEnqueuerQueuesOTP(t *testing.T) {
	client := &captureClient{}
	enq := Enqueuer{Client: client}

	require.NoError(t, enq.SendOTP(context.Background(), "jane@example.com", "123456"))
	require.Len(t, client.tasks, 1)
	require.Equal(t, TypeEmailOTP, client.tasks[0].Type())
	require.JSONEq(t, `{"email":"jane@example.com","code":"123456"}`, string(client.tasks[0].Payload()))
}

func TestWorkerDeliversReceipt(t *testing.T) {
	mail := &common.InMemoryEmail{}
	w := &Worker{Mail: mail, From: "shop@example.com", Logger: zerolog.Nop()}

	client := &captureClient{}
	enq := Enqueuer{Client: client}
	require.NoError(t, enq.SendOrderReceipt(context.Background(), OrderReceiptPayload{
		Email: "jane@example.com", OrderNumber: "SO-1001", Total: "485.97", Currency: "USD",
	}))

	task := client.tasks[0]
	require.NoError(t, w.handleOrderReceipt(context.Background(), task))
	require.Len(t, mail.Outbox, 1)
	require.Equal(t, "shop@example.com", mail.Outbox[0].From)
	require.Equal(t, "jane@example.com", mail.Outbox[0].To)
	require.Equal(t, "Order SO-1001 confirmed", mail.Outbox[0].Subject)
	require.Contains(t, mail.Outbox[0].HTML, "485.97")
}

func TestWorkerRejectsMalformedPayload(t *testing.T) {
	w := &Worker{Mail: common.NopEmailSender{}, Logger: zerolog.Nop()}
	task := asynq.NewTask(TypeEmailOTP, []byte("not json"))
	require.Error(t, w.handleOTP(context.Background(), task))
}

func TestOrderCreatedHandlerEnqueuesReceipt(t *testing.T) {
	client := &captureClient{}
	handler := OrderCreatedHandler(Enqueuer{Client: client})

	ev := store.Event{
		Topic:   events.TopicOrderCreated,
		Payload: []byte(`{"email":"jane@example.com","order_number":"SO-1001","total":"539.97","currency":"USD"}`),
	}
	require.NoError(t, handler(context.Background(), ev))
	require.Len(t, client.tasks, 1)
	require.Equal(t, TypeEmailOrderReceipt, client.tasks[0].Type())

	// Events without a recipient are dropped, not retried forever.
	client.tasks = nil
	require.NoError(t, handler(context.Background(), store.Event{Payload: []byte(`{}`)}))
	require.Empty(t, client.tasks)
}
