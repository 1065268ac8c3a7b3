package credits

import "errors"

var (
	// ErrInsufficientCredits indicates a debit would drop the balance below zero.
	ErrInsufficientCredits = errors.New("insufficient credits")
	// ErrNotFound indicates no balance row exists for the user.
	ErrNotFound = errors.New("balance not found")
)

// RefundError wraps a failure to apply a compensating refund.
type RefundError struct {
	UserID string
	Amount int
	Err    error
}

func (e RefundError) Error() string {
	if e.Err == nil {
		return "refund failed"
	}
	return "refund failed: " + e.Err.Error()
}

func (e RefundError) Unwrap() error { return e.Err }
