package prot

import (
	"errors"
	"fmt"

	"github.com/findy-network/findy-exchange/agent/psm"
)

// Error taxonomy of the state machines. Protocol rejections are not errors,
// they are stored to the records as problem reports.
var (
	// ErrPrecondition is an action which isn't allowed in the current state.
	// The record is unchanged.
	ErrPrecondition = errors.New("action not allowed in current state")

	// ErrTransport wraps the I/O errors of the collaborators. The record is
	// unchanged and the call can be retried.
	ErrTransport = errors.New("transport failure")

	// ErrThreadOwned tells that another record owns the thread.
	ErrThreadOwned = psm.ErrThreadOwned

	// ErrBusy tells that another caller is running the record.
	ErrBusy = psm.ErrBusy

	// ErrDeleted is returned by every action of a deleted or released record.
	ErrDeleted = errors.New("record deleted or released")

	// ErrMalformed is an invalid invitation or payload given by the caller.
	ErrMalformed = errors.New("malformed message")
)

// Precondition returns ErrPrecondition for the action in the state.
func Precondition(action string, state fmt.Stringer) error {
	return fmt.Errorf("%w: %s in state %s", ErrPrecondition, action, state)
}

// IsPermanent tells if retrying the failed call cannot help.
func IsPermanent(err error) bool {
	return errors.Is(err, ErrPrecondition) ||
		errors.Is(err, ErrThreadOwned) ||
		errors.Is(err, ErrBusy) ||
		errors.Is(err, ErrDeleted) ||
		errors.Is(err, ErrMalformed)
}

// Retryable wraps the error of a collaborator call as ErrTransport.
func Retryable(op string, err error) error {
	return fmt.Errorf("%w: %s: %v", ErrTransport, op, err)
}
