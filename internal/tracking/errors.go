package tracking

import (
	"errors"
	"fmt"

	"github.com/gofiber/fiber/v2"
)

// NotFoundError signals an absent beat plan or session, or one outside the
// caller's organization.
type NotFoundError struct {
	Msg string
}

func (e *NotFoundError) Error() string { return e.Msg }

// StateError signals an operation that is invalid for the session's current
// status. The session is never mutated.
type StateError struct {
	Msg string
}

func (e *StateError) Error() string { return e.Msg }

// ValidationError signals a malformed inbound payload, rejected before any
// write.
type ValidationError struct {
	Msg string
}

func (e *ValidationError) Error() string { return e.Msg }

// PersistenceError wraps a failed durable read or write.
type PersistenceError struct {
	Op  string
	Err error
}

func (e *PersistenceError) Error() string { return fmt.Sprintf("%s: %v", e.Op, e.Err) }

func (e *PersistenceError) Unwrap() error { return e.Err }

// Code maps an error to the wire-level code carried by tracking-error events.
func Code(err error) string {
	var nf *NotFoundError
	var st *StateError
	var va *ValidationError
	var pe *PersistenceError
	switch {
	case errors.As(err, &nf):
		return "not-found"
	case errors.As(err, &st):
		return "invalid-state"
	case errors.As(err, &va):
		return "validation"
	case errors.As(err, &pe):
		return "persistence"
	default:
		return "internal"
	}
}

// HTTPStatus maps an error to the status used by the REST query surface.
func HTTPStatus(err error) int {
	switch Code(err) {
	case "not-found":
		return fiber.StatusNotFound
	case "invalid-state":
		return fiber.StatusConflict
	case "validation":
		return fiber.StatusBadRequest
	default:
		return fiber.StatusInternalServerError
	}
}
