package report

import (
	"time"
)

// Destination identifies a distinct delivery target. Records are grouped
// by the full (endpoint, API key) pair, so the same endpoint used with two
// different keys counts as two destinations.
type Destination struct {
	Endpoint string
	APIKey   string
}

// Record represents one pending report delivery. A record is immutable once
// created; its identity is the repository-assigned ID, not its content.
type Record struct {
	ID          int64
	Payload     string
	Destination Destination
	CreatedAt   time.Time
}

// NewRecord creates a pending record for the given payload and destination,
// stamped with the current UTC time.
func NewRecord(payload string, dest Destination) Record {
	return Record{
		Payload:     payload,
		Destination: dest,
		CreatedAt:   time.Now().UTC(),
	}
}
