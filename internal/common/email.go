package common

// EmailSender defines the contract for sending transactional email.
type EmailSender interface {
	Send(from, to, subject, html string) error
}

// Email is a single captured message.
type Email struct {
	From    string
	To      string
	Subject string
	HTML    string
}

// InMemoryEmail records messages for tests.
type InMemoryEmail struct {
	Outbox []Email
}

// Send records the email in memory.
func (m *InMemoryEmail) Send(from, to, subject, html string) error {
	if m == nil {
		return nil
	}
	m.Outbox = append(m.Outbox, Email{From: from, To: to, Subject: subject, HTML: html})
	return nil
}

// NopEmailSender implements EmailSender without performing any action.
type NopEmailSender struct{}

// Send implements EmailSender.
func (NopEmailSender) Send(string, string, string, string) error { return nil }
