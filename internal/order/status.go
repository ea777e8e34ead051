package order

// Order lifecycle statuses. The flow is linear; cancellation branches off
// before fulfilment starts shipping.
const (
	StatusPending    = "pending"
	StatusConfirmed  = "confirmed"
	StatusProcessing = "processing"
	StatusShipped    = "shipped"
	StatusDelivered  = "delivered"
	StatusCancelled  = "cancelled"
)

// allowedFrom maps a target status to the statuses it may be reached from.
var allowedFrom = map[string][]string{
	StatusConfirmed:  {StatusPending},
	StatusProcessing: {StatusConfirmed},
	StatusShipped:    {StatusProcessing},
	StatusDelivered:  {StatusShipped},
	StatusCancelled:  {StatusPending, StatusConfirmed, StatusProcessing},
}

// AllowedFrom returns the source statuses a transition to next accepts, or
// nil when next is not a reachable status.
func AllowedFrom(next string) []string {
	return allowedFrom[next]
}

// CancellableBy reports whether the customer may still cancel. Customers
// lose the option once fulfilment starts; staff can cancel until shipping.
func CancellableBy(status string, admin bool) bool {
	switch status {
	case StatusPending, StatusConfirmed:
		return true
	case StatusProcessing:
		return admin
	default:
		return false
	}
}
