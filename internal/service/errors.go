package service

import (
	"errors"
	"fmt"
	"strings"

	"github.com/Shivanand-hulikatti/event-registration-engine/internal/repository"
)

var (
	// ErrNotFound is returned when an event or registration does not exist.
	ErrNotFound = repository.ErrNotFound
	// ErrAlreadyRegistered is returned when the user already holds an active
	// registration for the event.
	ErrAlreadyRegistered = repository.ErrAlreadyRegistered
	// ErrEventFull is returned when a waitlisted participant cannot be promoted
	// because every seat is taken.
	ErrEventFull = errors.New("event is at capacity")
	// ErrTimeout is returned when an event store call exceeds its deadline.
	ErrTimeout = errors.New("event store call timed out")
	// ErrForbidden is returned when the caller does not administer the event.
	ErrForbidden = errors.New("only the event administrator may do this")
)

// ValidationError rejects input, naming the offending field.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Reason
	}
	return fmt.Sprintf("%s %s", e.Field, e.Reason)
}

// StoreError wraps a failed event store call with the operation that failed.
type StoreError struct {
	Op  string
	Err error
}

func (e *StoreError) Error() string {
	return fmt.Sprintf("event store %s: %v", e.Op, e.Err)
}

func (e *StoreError) Unwrap() error { return e.Err }

// PartialCascadeFailure reports a DeleteEvent that did not finish. The listed
// ids are the rows still present; running DeleteEvent again retries only those.
type PartialCascadeFailure struct {
	EventID             string
	FailedRegistrations []string
	FailedFields        []string
	ChildrenDeleted     bool
	EventDeleted        bool
	Err                 error
}

func (e *PartialCascadeFailure) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "delete event %s incomplete", e.EventID)
	if n := len(e.FailedRegistrations); n > 0 {
		fmt.Fprintf(&b, ", %d registration(s) left", n)
	}
	if n := len(e.FailedFields); n > 0 {
		fmt.Fprintf(&b, ", %d custom field(s) left", n)
	}
	if e.ChildrenDeleted && !e.EventDeleted {
		b.WriteString(", dependants removed but event row left")
	}
	if e.Err != nil {
		fmt.Fprintf(&b, ": %v", e.Err)
	}
	return b.String()
}

func (e *PartialCascadeFailure) Unwrap() error { return e.Err }
