package domain

import (
	"errors"
	"fmt"
)

// Drop reasons. Handlers never send these to the caller.
var (
	ErrInvalidTransition    = errors.New("invalid transition")
	ErrUnauthorizedActor    = errors.New("unauthorized actor")
	ErrUnknownTarget        = errors.New("unknown target")
	ErrSessionInactive      = errors.New("session inactive")
	ErrSessionAlreadyActive = errors.New("session already active")
)

// DropError is the Dropped half of a handler result; a nil error is an Ack.
type DropError struct {
	Op     string
	Reason error
	Detail string
}

func (e *DropError) Error() string {
	if e.Detail == "" {
		return fmt.Sprintf("%s: %v", e.Op, e.Reason)
	}
	return fmt.Sprintf("%s: %v: %s", e.Op, e.Reason, e.Detail)
}

func (e *DropError) Unwrap() error {
	return e.Reason
}

// Drop builds a DropError.
func Drop(op string, reason error, detail string) error {
	return &DropError{Op: op, Reason: reason, Detail: detail}
}

// IsDrop reports whether err is a handled drop rather than a fault.
func IsDrop(err error) bool {
	var d *DropError
	return errors.As(err, &d)
}
