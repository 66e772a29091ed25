package dispatch

import "fmt"

// DispatchError reports a failed asynchronous dispatch: the broker never
// acknowledged the enqueue. The dispatcher does not retry; whether to
// retry or abort is the caller's policy decision.
type DispatchError struct {
	URL string
	Err error
}

func (e *DispatchError) Error() string {
	return fmt.Sprintf("dispatch %s: %v", e.URL, e.Err)
}

func (e *DispatchError) Unwrap() error { return e.Err }

// IngestError reports that the ingestion pipeline rejected or failed to
// process a synchronously dispatched file. It wraps the underlying
// pipeline error; there is no automatic retry at this layer.
type IngestError struct {
	Path string
	Err  error
}

func (e *IngestError) Error() string {
	return fmt.Sprintf("ingest %s: %v", e.Path, e.Err)
}

func (e *IngestError) Unwrap() error { return e.Err }
