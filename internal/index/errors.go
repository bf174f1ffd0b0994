package index

import "errors"

// Sentinel errors for recoverable error kinds (query, ingest and load
// time). Build-time programmer errors (invariant violations) are
// raised through assertHandler instead, since they are fatal by design.
var (
	// ErrNoLinePattern is returned by newPlan/Match when
	// Query.LinePattern is empty.
	ErrNoLinePattern = errors.New("index: query requires a line pattern")

	// ErrNotFinalized is returned by Match if called before Finalize.
	ErrNotFinalized = errors.New("index: index has not been finalized")

	// ErrAlreadyFinalized is returned by ingest calls (OpenTree,
	// IndexFile) made after Finalize.
	ErrAlreadyFinalized = errors.New("index: ingest called after finalize")

	// ErrFormatMismatch is returned by Load when the dump's magic or
	// version does not match.
	ErrFormatMismatch = errors.New("index: dump format mismatch")
)
