// Package inmemory provides a map-backed storage driver.
package inmemory

import (
	"context"
	"slices"
	"strings"
	"sync"

	"github.com/papercomputeco/bpmnchat/pkg/storage"
)

// Driver implements storage.Driver using an in-memory map.
type Driver struct {
	// mu guards records
	mu sync.RWMutex

	// records is keyed by session ID
	records map[string]*storage.Record
}

// NewDriver creates a new in-memory driver.
func NewDriver() *Driver {
	return &Driver{
		records: make(map[string]*storage.Record),
	}
}

// Put stores a copy of rec.
func (d *Driver) Put(_ context.Context, rec *storage.Record) error {
	if rec == nil {
		return storage.ErrNilRecord
	}

	cp := *rec

	d.mu.Lock()
	defer d.mu.Unlock()
	d.records[rec.ID] = &cp
	return nil
}

// Get retrieves a record by ID.
func (d *Driver) Get(_ context.Context, id string) (*storage.Record, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	rec, ok := d.records[id]
	if !ok {
		return nil, storage.NotFoundError{ID: id}
	}

	cp := *rec
	return &cp, nil
}

// List returns records newest first.
func (d *Driver) List(_ context.Context, opts storage.ListOptions) ([]*storage.Record, error) {
	d.mu.RLock()
	result := make([]*storage.Record, 0, len(d.records))
	for _, rec := range d.records {
		if opts.Outcome != "" && rec.Outcome != opts.Outcome {
			continue
		}
		cp := *rec
		result = append(result, &cp)
	}
	d.mu.RUnlock()

	slices.SortFunc(result, func(a, b *storage.Record) int {
		if c := b.StartedAt.Compare(a.StartedAt); c != 0 {
			return c
		}
		return strings.Compare(a.ID, b.ID)
	})

	if opts.Limit > 0 && len(result) > opts.Limit {
		result = result[:opts.Limit]
	}
	return result, nil
}

// Close is a no-op for the in-memory driver.
func (d *Driver) Close() error {
	return nil
}
