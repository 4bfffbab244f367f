package services

import (
	"errors"
	"fmt"

	"courtmatch/internal/store"
)

// Error kinds returned by the matchmaking core. Callers match them with errors.Is;
// the wrapped message carries the entity and state involved.
var (
	ErrNotFound         = errors.New("not found")
	ErrForbidden        = errors.New("forbidden")
	ErrInvalidState     = errors.New("invalid state")
	ErrInvalidScore     = errors.New("invalid score")
	ErrSelfConfirmation = errors.New("cannot confirm own result")
	ErrSlotConflict     = errors.New("slot conflict")
	ErrPastBooking      = errors.New("slot starts in the past")
	ErrInvalidInput     = errors.New("invalid input")
)

// translate converts store sentinels into error kinds. Anything unknown is
// passed through wrapped as an infrastructure failure.
func translate(err error, entity, id string) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, store.ErrNotFound):
		return fmt.Errorf("%w: %s %s", ErrNotFound, entity, id)
	case errors.Is(err, store.ErrPreconditionFailed):
		return fmt.Errorf("%w: %s %s changed concurrently", ErrInvalidState, entity, id)
	default:
		return fmt.Errorf("%s %s: %w", entity, id, err)
	}
}
