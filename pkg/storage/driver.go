// Package storage persists the records of finished chat sessions.
package storage

import (
	"context"
	"time"

	"github.com/papercomputeco/bpmnchat/pkg/sse"
)

// Record is the persisted summary of one proxied session.
type Record struct {
	ID         string    `json:"id"`
	Provider   string    `json:"provider"`
	Model      string    `json:"model"`
	Reasoner   bool      `json:"reasoner"`
	Prompt     string    `json:"prompt"`
	Text       string    `json:"text"`
	Reasoning  string    `json:"reasoning"`
	Diagram    string    `json:"diagram,omitempty"`
	Outcome    string    `json:"outcome"`
	Error      string    `json:"error,omitempty"`
	Stats      sse.Stats `json:"stats"`
	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`
}

// ListOptions filters List results.
type ListOptions struct {
	// Limit caps the number of records. Zero means no limit.
	Limit int

	// Outcome keeps only records with this outcome when set.
	Outcome string
}

// Driver defines the interface for persisting and retrieving session records.
type Driver interface {
	// Put stores a record, replacing any record with the same ID.
	Put(ctx context.Context, rec *Record) error

	// Get retrieves a record by ID.
	Get(ctx context.Context, id string) (*Record, error)

	// List returns records, newest first.
	List(ctx context.Context, opts ListOptions) ([]*Record, error)

	// Close closes the store and releases any resources.
	Close() error
}
