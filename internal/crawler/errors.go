package crawler

import "errors"

// Sentinel errors used to classify failures across the pipeline.
var (
	// ErrTransport wraps network failures, timeouts and non-2xx responses once retries are exhausted.
	ErrTransport = errors.New("transport error")
	// ErrUpstreamFormat marks an upstream response that lacks the expected JSON shape.
	ErrUpstreamFormat = errors.New("unexpected upstream response")
	// ErrStore marks a document store that is unavailable or rejected a write.
	ErrStore = errors.New("document store error")
	// ErrNotFound is returned by repositories when no document matches a lookup.
	ErrNotFound = errors.New("document not found")
	// ErrDuplicate is returned when an insert loses a race on the unique URL key.
	ErrDuplicate = errors.New("document already exists")
	// ErrInvalidConfig marks configuration that cannot be used to start a run.
	ErrInvalidConfig = errors.New("invalid configuration")
)
