// Package nop provides the publisher used when no event stream is configured.
package nop

import (
	"context"
	"log/slog"
	"sync/atomic"

	"github.com/papercomputeco/bpmnchat/pkg/eventstream"
	"github.com/papercomputeco/bpmnchat/pkg/logger"
)

// Publisher drops session events after validating them. It counts what it
// dropped and notes each event at debug level.
type Publisher struct {
	logger  *slog.Logger
	dropped atomic.Int64
}

// NewPublisher returns a Publisher. A nil logger discards its records.
func NewPublisher(log *slog.Logger) *Publisher {
	if log == nil {
		log = logger.Nop()
	}
	return &Publisher{logger: log}
}

func (p *Publisher) PublishSession(_ context.Context, event *eventstream.SessionFinalizedEvent) error {
	if event == nil {
		return eventstream.ErrNilSessionEvent
	}

	p.dropped.Add(1)
	p.logger.Debug("no event stream configured, dropping session event",
		"session_id", event.Session.ID,
		"outcome", event.Session.Outcome,
	)
	return nil
}

// Dropped reports how many events have been accepted and discarded.
func (p *Publisher) Dropped() int64 {
	return p.dropped.Load()
}

func (p *Publisher) Close() error {
	return nil
}
