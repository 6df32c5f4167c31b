// Package store keeps a bounded diagnostics journal of stack signals and
// dispatch outcomes. Light state itself is never persisted.
package store

import (
	"encoding/json"
	"errors"
	"time"
)

// ErrNotFound is returned when a requested entry does not exist in the store.
var ErrNotFound = errors.New("not found")

// Entry is one journal record. Data holds the JSON encoding of the event payload.
type Entry struct {
	Seq  uint64          `json:"seq"`
	Time time.Time       `json:"time"`
	Type string          `json:"type"`
	Data json.RawMessage `json:"data,omitempty"`
}

// Journal is an append-only ring of entries.
type Journal interface {
	// Append stores data under the next sequence number, evicting the
	// oldest entries beyond the configured capacity.
	Append(typ string, at time.Time, data any) (uint64, error)

	// Get returns the entry with sequence seq or ErrNotFound.
	Get(seq uint64) (Entry, error)

	// Recent returns up to limit entries, newest first.
	Recent(limit int) ([]Entry, error)

	Len() (int, error)

	Close() error
}
