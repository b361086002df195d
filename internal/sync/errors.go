package sync

import (
	"errors"
	"fmt"
)

// ErrEmptyMessage is returned when a text message has no content.
var ErrEmptyMessage = errors.New("message is empty")

// SubscriptionError wraps a failure of the live message stream.
type SubscriptionError struct {
	Err error
}

func (e *SubscriptionError) Error() string {
	return fmt.Sprintf("message subscription: %v", e.Err)
}

func (e *SubscriptionError) Unwrap() error {
	return e.Err
}
