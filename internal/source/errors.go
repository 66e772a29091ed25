package source

import "fmt"

// ValidationError reports malformed input to CreateOrGet. It is surfaced
// immediately and never retried.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid source %s: %s", e.Field, e.Reason)
}

// DeleteError reports a failed cascading delete. By the time it is
// returned the transaction has been rolled back, so storage is
// guaranteed to match the pre-delete state.
type DeleteError struct {
	SourceID int64
	Err      error
}

func (e *DeleteError) Error() string {
	return fmt.Sprintf("delete source %d: %v", e.SourceID, e.Err)
}

func (e *DeleteError) Unwrap() error { return e.Err }
