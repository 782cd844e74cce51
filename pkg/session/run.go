package session

import (
	"context"
	"iter"
	"time"

	"github.com/papercomputeco/bpmnchat/pkg/payload"
)

// Result is the outcome of a session.
type Result struct {
	ID         string             `json:"id"`
	Text       string             `json:"text"`
	Chunks     int                `json:"chunks"`
	Classified payload.Classified `json:"classified"`
	Diagram    string             `json:"diagram,omitempty"`
	Outcome    State              `json:"-"`
	Notice     Notice             `json:"notice"`
	Err        error              `json:"-"`
	StartedAt  time.Time          `json:"started_at"`
	FinishedAt time.Time          `json:"finished_at"`
}

// Elapsed is the time from Begin to the terminal state.
func (r *Result) Elapsed() time.Duration {
	if r.StartedAt.IsZero() || r.FinishedAt.IsZero() {
		return 0
	}
	return r.FinishedAt.Sub(r.StartedAt)
}

// Run drives s over a delta sequence: Begin, OnChunk per delta, Finalize
// and Render. A sequence error or context cancellation fails the session.
// The returned error is only set for misuse, such as a session that was
// already started.
func Run(ctx context.Context, s *Session, deltas iter.Seq2[string, error]) (*Result, error) {
	if err := s.Begin(); err != nil {
		return nil, err
	}

	for delta, err := range deltas {
		if err == nil {
			err = ctx.Err()
		}
		if err != nil {
			if ferr := s.Fail(err); ferr != nil {
				return nil, ferr
			}
			return s.Result(), nil
		}

		if err := s.OnChunk(delta); err != nil {
			return nil, err
		}
	}

	if err := ctx.Err(); err != nil {
		if ferr := s.Fail(err); ferr != nil {
			return nil, ferr
		}
		return s.Result(), nil
	}

	if _, err := s.Finalize(); err != nil {
		return nil, err
	}
	if _, err := s.Render(ctx); err != nil {
		return nil, err
	}
	return s.Result(), nil
}
