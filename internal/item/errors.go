package item

import (
	"errors"
	"fmt"
)

// ErrNotFound is returned by services when an operation references an
// item ID with no catalog row.
var ErrNotFound = errors.New("item not found")

// NotAvailableError indicates the Inbox root (or a file it should
// contain) does not exist where expected. Callers typically render it
// as a warning rather than aborting the process.
type NotAvailableError struct {
	Path string
}

func (e *NotAvailableError) Error() string {
	return fmt.Sprintf("inbox not available: %s", e.Path)
}

// QuotaExceededError reports that an ingest or send would push a user
// over their storage quota. It carries the exact numbers so callers can
// render a precise message.
type QuotaExceededError struct {
	Current  int64
	Incoming int64
	Quota    int64
}

func (e *QuotaExceededError) Error() string {
	return fmt.Sprintf("quota exceeded: current=%d incoming=%d quota=%d",
		e.Current, e.Incoming, e.Quota)
}

// IngestFailedError wraps a file-write or catalog-insert failure after
// any partial file write has been rolled back.
type IngestFailedError struct {
	Reason string
	Err    error
}

func (e *IngestFailedError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("ingest failed: %s: %v", e.Reason, e.Err)
	}
	return fmt.Sprintf("ingest failed: %s", e.Reason)
}

func (e *IngestFailedError) Unwrap() error { return e.Err }
