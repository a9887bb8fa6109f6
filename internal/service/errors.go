package service

import (
	"errors"
	"fmt"
	"strings"

	"github.com/briefkit/brief/internal/changes"
)

// Revert failure kinds.
var (
	// ErrActionNotFound means no audit event carries the requested action id.
	ErrActionNotFound = errors.New("audit action not found")
	// ErrNoBackup means the audit event has no backup to restore from.
	ErrNoBackup = errors.New("no backup associated with this action")
)

// VersionMismatchError rejects an evolve submitted against stale state.
// The caller read an older outline version and must reload and retry
// rather than silently overwrite a concurrent edit.
type VersionMismatchError struct {
	Expected int
	Actual   int
}

func (e *VersionMismatchError) Error() string {
	return fmt.Sprintf("stale outline version: caller expected %d, current is %d; reload and retry", e.Expected, e.Actual)
}

// ValidationFailedError carries the full accumulated list of validation
// errors for one change batch.
type ValidationFailedError struct {
	Errors   []changes.ValidationError
	Warnings []string
}

func (e *ValidationFailedError) Error() string {
	msgs := changes.Messages(e.Errors)
	return fmt.Sprintf("change validation failed (%d): %s", len(e.Errors), strings.Join(msgs, "; "))
}
