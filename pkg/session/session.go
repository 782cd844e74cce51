// Package session assembles a streamed model reply and drives it through
// classification and diagram import.
//
// A Session is single-use and owned by one goroutine:
//
//	idle ─▶ pending ─▶ streaming ─▶ finalizing ─▶ rendered | render_failed | no_payload
//	           │            │
//	           └────────────┴─▶ failed
package session

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/papercomputeco/bpmnchat/pkg/logger"
	"github.com/papercomputeco/bpmnchat/pkg/payload"
)

// Display is the user interface a Session reports to.
type Display interface {
	// Pending shows a typing indicator.
	Pending()

	// Streaming replaces the indicator with a live reply element.
	Streaming()

	// Append shows one more chunk of the reply.
	Append(chunk string)

	// Final re-renders the finished reply.
	Final(c payload.Classified)

	// Notify shows a status notice.
	Notify(n Notice)

	// Abort removes any indicator after a failure.
	Abort(err error)
}

// Renderer imports a diagram document.
type Renderer interface {
	Import(ctx context.Context, xml string) error
}

// RendererFunc adapts a function to Renderer.
type RendererFunc func(ctx context.Context, xml string) error

// Import calls f.
func (f RendererFunc) Import(ctx context.Context, xml string) error {
	return f(ctx, xml)
}

// Session accumulates the text of one reply.
type Session struct {
	id         string
	classifier payload.Classifier
	display    Display
	renderer   Renderer
	logger     *slog.Logger
	now        func() time.Time

	state      State
	text       strings.Builder
	chunks     int
	classified payload.Classified
	diagram    string
	notice     Notice
	err        error

	startedAt  time.Time
	finishedAt time.Time
}

// Option configures a Session.
type Option func(*Session)

// WithID overrides the generated session ID.
func WithID(id string) Option {
	return func(s *Session) { s.id = id }
}

// WithClassifier sets the payload classifier.
func WithClassifier(c payload.Classifier) Option {
	return func(s *Session) {
		if c != nil {
			s.classifier = c
		}
	}
}

// WithDisplay sets the display. Sessions without one run headless.
func WithDisplay(d Display) Option {
	return func(s *Session) {
		if d != nil {
			s.display = d
		}
	}
}

// WithRenderer sets the diagram renderer. Without one, any extracted
// document counts as rendered.
func WithRenderer(r Renderer) Option {
	return func(s *Session) { s.renderer = r }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Session) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithClock overrides time.Now.
func WithClock(now func() time.Time) Option {
	return func(s *Session) {
		if now != nil {
			s.now = now
		}
	}
}

// New creates an idle session.
func New(opts ...Option) *Session {
	s := &Session{
		id:         uuid.NewString(),
		classifier: payload.NewSentinelClassifier(),
		display:    nopDisplay{},
		logger:     logger.Nop(),
		now:        time.Now,
	}

	for _, opt := range opts {
		opt(s)
	}

	s.logger = s.logger.With("session", s.id)
	return s
}

// ID returns the session ID.
func (s *Session) ID() string { return s.id }

// State returns the current state.
func (s *Session) State() State { return s.state }

// Text returns the raw accumulated reply.
func (s *Session) Text() string { return s.text.String() }

// Begin marks the request as sent.
func (s *Session) Begin() error {
	if err := s.transition(StatePending); err != nil {
		return err
	}
	s.startedAt = s.now()
	s.display.Pending()
	return nil
}

// OnChunk appends a chunk verbatim. The first non-empty chunk moves the
// session to streaming. Empty chunks are ignored.
func (s *Session) OnChunk(chunk string) error {
	if s.state != StatePending && s.state != StateStreaming {
		return transitionError(s.state, StateStreaming)
	}
	if chunk == "" {
		return nil
	}

	if s.state == StatePending {
		if err := s.transition(StateStreaming); err != nil {
			return err
		}
		s.display.Streaming()
	}

	s.text.WriteString(chunk)
	s.chunks++
	s.display.Append(chunk)
	return nil
}

// Finalize splits the accumulated text into reasoning and payload.
func (s *Session) Finalize() (payload.Classified, error) {
	if err := s.transition(StateFinalizing); err != nil {
		return payload.Classified{}, err
	}

	s.classified = s.classifier.Split(s.text.String())
	s.display.Final(s.classified)
	return s.classified, nil
}

// ExtractDiagram returns the first complete diagram document in the reply.
func (s *Session) ExtractDiagram() (string, bool) {
	return s.classifier.Extract(s.text.String())
}

// Render extracts the diagram and hands it to the renderer. The returned
// state is the outcome; renderer failures are recorded on the session and
// reported through the display, never retried.
func (s *Session) Render(ctx context.Context) (State, error) {
	if s.state != StateFinalizing {
		return s.state, transitionError(s.state, StateRendered)
	}

	xml, ok := s.ExtractDiagram()
	if !ok {
		s.settle(StateNoPayload, Notice{Level: NoticeWarning, Message: MessageNoPayload})
		return s.state, nil
	}
	s.diagram = xml

	if s.renderer != nil {
		if err := s.renderer.Import(ctx, xml); err != nil {
			s.logger.Warn("diagram import failed", "error", err)
			s.err = err
			s.settle(StateRenderFailed, Notice{Level: NoticeWarning, Message: MessageRenderFailed})
			return s.state, nil
		}
	}

	s.settle(StateRendered, Notice{Level: NoticeSuccess, Message: MessageRendered})
	return s.state, nil
}

// Fail ends a pending or streaming session after a transport error.
func (s *Session) Fail(err error) error {
	if err := s.transition(StateFailed); err != nil {
		return err
	}

	s.err = err
	s.finishedAt = s.now()
	s.notice = TransportNotice(err)
	s.display.Abort(err)
	s.display.Notify(s.notice)
	return nil
}

// Result snapshots the session.
func (s *Session) Result() *Result {
	return &Result{
		ID:         s.id,
		Text:       s.text.String(),
		Chunks:     s.chunks,
		Classified: s.classified,
		Diagram:    s.diagram,
		Outcome:    s.state,
		Notice:     s.notice,
		Err:        s.err,
		StartedAt:  s.startedAt,
		FinishedAt: s.finishedAt,
	}
}

func (s *Session) settle(to State, n Notice) {
	// Callers have already checked the session is finalizing.
	_ = s.transition(to)
	s.finishedAt = s.now()
	s.notice = n
	s.display.Notify(n)
}

func (s *Session) transition(to State) error {
	if !canTransition(s.state, to) {
		return transitionError(s.state, to)
	}
	s.logger.Debug("session transition", "from", s.state.String(), "to", to.String())
	s.state = to
	return nil
}

type nopDisplay struct{}

func (nopDisplay) Pending()                 {}
func (nopDisplay) Streaming()               {}
func (nopDisplay) Append(string)            {}
func (nopDisplay) Final(payload.Classified) {}
func (nopDisplay) Notify(Notice)            {}
func (nopDisplay) Abort(error)              {}
