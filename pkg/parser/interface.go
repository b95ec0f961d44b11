package parser

import (
	"context"
)

// RecordSource provides an iterator over raw CSV records.
// Implementations must be safe for sequential access (not concurrent).
type RecordSource interface {
	// Next returns the next non-blank record.
	// Returns io.EOF when no more records are available.
	Next(ctx context.Context) (*RawRecord, error)

	// Close releases any resources held by the source.
	Close() error
}
