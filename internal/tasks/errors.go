package tasks

import (
	"errors"
	"fmt"

	"dealership-platform/internal/crm"
	"dealership-platform/internal/documents"
	"dealership-platform/internal/notify"

	"github.com/hibiken/asynq"
)

var (
	// ErrNotFoundYet marks a record that may not be committed yet. The job
	// is retried after its policy's not-found delay.
	ErrNotFoundYet = errors.New("tasks: record not found yet")

	ErrBadPayload = errors.New("tasks: bad payload")

	// ErrDuplicateTask is returned with the existing id when a task with the
	// same TaskID is already queued. Nothing new was enqueued.
	ErrDuplicateTask = errors.New("tasks: duplicate task id")
)

func notFoundYet(what string, id int64) error {
	return fmt.Errorf("%w: %s %d: %w", ErrNotFoundYet, what, id, crm.ErrNotFound)
}

// isTerminal reports errors that no retry can fix.
func isTerminal(err error) bool {
	switch {
	case errors.Is(err, ErrNotFoundYet):
		return false
	case errors.Is(err, ErrBadPayload),
		errors.Is(err, crm.ErrNotFound),
		errors.Is(err, crm.ErrInvalidInput),
		errors.Is(err, documents.ErrCustomerEmailMissing),
		errors.Is(err, documents.ErrInvalidPricingReq),
		errors.Is(err, notify.ErrNoRecipient):
		return true
	default:
		return false
	}
}

// classify wraps terminal errors with asynq.SkipRetry so they are archived
// straight away.
func classify(err error) error {
	if err == nil || !isTerminal(err) {
		return err
	}
	return fmt.Errorf("%w: %w", err, asynq.SkipRetry)
}
