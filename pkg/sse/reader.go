package sse

import (
	"errors"
	"io"
	"iter"
	"log/slog"
	"strings"

	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"

	"github.com/papercomputeco/bpmnchat/pkg/logger"
	"github.com/papercomputeco/bpmnchat/pkg/utils"
)

const (
	// DefaultMaxRequeues bounds how many times a malformed payload is carried
	// forward before it is discarded.
	DefaultMaxRequeues = 4

	defaultBufferSize   = 32 * 1024
	defaultMaxLineBytes = 1024 * 1024

	// maxEmptyReads mirrors bufio's guard against readers that keep returning
	// 0, nil.
	maxEmptyReads = 100
)

// ErrLineTooLong is returned when the pending line grows past the configured
// maximum without a newline.
var ErrLineTooLong = errors.New("sse: line exceeds maximum length")

// TransportError wraps a read failure from the underlying source.
type TransportError struct {
	Err error
}

func (e *TransportError) Error() string {
	return "reading stream: " + e.Err.Error()
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// Stats counts what a Reader has seen so far.
type Stats struct {
	Chunks    int `json:"chunks"`
	Lines     int `json:"lines"`
	Events    int `json:"events"`
	Deltas    int `json:"deltas"`
	Requeued  int `json:"requeued"`
	Discarded int `json:"discarded"`
}

// Reader turns a chunked byte stream of "data: <json>" lines into a sequence
// of text deltas.
//
// ┌──────────────────┐
// │ source io.Reader │  arbitrary chunk boundaries
// └──────────────────┘
// │
// ▼
// ┌──────────────────┐
// │  UTF-8 decoder   │  split runes held until complete
// └──────────────────┘
// │
// ▼
// ┌──────────────────┐
// │  pending + lines │  last piece carried to the next chunk
// └──────────────────┘
// │
// ▼
// ┌──────────────────┐
// │  Reader.Next()   │  delta string or io.EOF
// └──────────────────┘
//
// A Reader is not safe for concurrent use and cannot be restarted.
type Reader struct {
	src     io.Reader
	buf     []byte
	logger  *slog.Logger
	observe func(Fragment)

	maxRequeues  int
	maxLineBytes int

	pending string
	lines   []string

	// carry holds a payload that failed to parse, with its data prefix
	// restored, waiting for a continuation line.
	carry    string
	attempts int

	eof        bool
	done       bool
	emptyReads int
	err        error

	stats Stats
}

// Option configures a Reader.
type Option func(*Reader)

// WithLogger sets the logger used for requeue and discard diagnostics.
func WithLogger(l *slog.Logger) Option {
	return func(r *Reader) {
		if l != nil {
			r.logger = l
		}
	}
}

// WithObserver registers fn to see every line the reader parses, once per
// line, before any delta is decoded from it.
func WithObserver(fn func(Fragment)) Option {
	return func(r *Reader) {
		r.observe = fn
	}
}

// WithMaxRequeues sets how many times a malformed payload may be carried
// forward. Zero discards malformed payloads immediately.
func WithMaxRequeues(n int) Option {
	return func(r *Reader) {
		if n >= 0 {
			r.maxRequeues = n
		}
	}
}

// WithBufferSize sets the size of each read from the source.
func WithBufferSize(n int) Option {
	return func(r *Reader) {
		if n > 0 {
			r.buf = make([]byte, n)
		}
	}
}

// WithMaxLineBytes caps the size of an unterminated line.
func WithMaxLineBytes(n int) Option {
	return func(r *Reader) {
		if n > 0 {
			r.maxLineBytes = n
		}
	}
}

// NewReader returns a Reader consuming src. Input is decoded as UTF-8; a
// leading byte order mark is stripped and invalid sequences become U+FFFD.
func NewReader(src io.Reader, opts ...Option) *Reader {
	r := &Reader{
		src:          transform.NewReader(src, unicode.UTF8BOM.NewDecoder()),
		logger:       logger.Nop(),
		maxRequeues:  DefaultMaxRequeues,
		maxLineBytes: defaultMaxLineBytes,
	}

	for _, opt := range opts {
		opt(r)
	}

	if r.buf == nil {
		r.buf = make([]byte, defaultBufferSize)
	}

	return r
}

// Next returns the next non-empty delta. It blocks until one is available and
// returns io.EOF once the stream ends or the done sentinel is seen. Any other
// error is terminal and is returned again on every later call.
func (r *Reader) Next() (string, error) {
	for {
		if r.err != nil {
			return "", r.err
		}

		for len(r.lines) > 0 {
			line := r.lines[0]
			r.lines = r.lines[1:]

			delta := r.handleLine(line)
			if r.done {
				r.finish()
				return "", io.EOF
			}
			if delta != "" {
				return delta, nil
			}
		}

		if r.eof {
			r.finish()
			return "", io.EOF
		}

		if err := r.fill(); err != nil {
			r.err = err
			return "", err
		}
	}
}

// Deltas exposes the remaining deltas as an iterator. A terminal error other
// than io.EOF is yielded once as the final element.
func (r *Reader) Deltas() iter.Seq2[string, error] {
	return func(yield func(string, error) bool) {
		for {
			delta, err := r.Next()
			if errors.Is(err, io.EOF) {
				return
			}
			if err != nil {
				yield("", err)
				return
			}
			if !yield(delta, nil) {
				return
			}
		}
	}
}

// ForEach calls fn for every remaining delta in order. It stops early and
// returns the callback's error if fn fails.
func (r *Reader) ForEach(fn func(delta string) error) error {
	for delta, err := range r.Deltas() {
		if err != nil {
			return err
		}
		if err := fn(delta); err != nil {
			return err
		}
	}
	return nil
}

// Stats returns a snapshot of the reader's counters.
func (r *Reader) Stats() Stats {
	return r.stats
}

func (r *Reader) fill() error {
	n, err := r.src.Read(r.buf)
	if n > 0 {
		r.emptyReads = 0
		r.stats.Chunks++
		r.pending += string(r.buf[:n])

		parts := strings.Split(r.pending, "\n")
		r.pending = parts[len(parts)-1]
		r.lines = append(r.lines, parts[:len(parts)-1]...)

		if len(r.pending) > r.maxLineBytes {
			return ErrLineTooLong
		}
	}

	if err != nil {
		if errors.Is(err, io.EOF) {
			r.eof = true
			return nil
		}
		return &TransportError{Err: err}
	}

	if n == 0 {
		r.emptyReads++
		if r.emptyReads >= maxEmptyReads {
			return &TransportError{Err: io.ErrNoProgress}
		}
	}

	return nil
}

func (r *Reader) handleLine(raw string) string {
	r.stats.Lines++

	if r.carry != "" {
		trimmed := strings.TrimSpace(raw)
		switch {
		case trimmed == "", strings.HasPrefix(trimmed, ":"):
			r.notify(Fragment{Kind: FragmentIgnored})
			return ""
		case strings.HasPrefix(trimmed, DataPrefix):
			r.drop(r.carry, "superseded by next event")
		default:
			raw = r.carry + strings.TrimRight(raw, "\r")
			r.carry = ""
		}
	}

	frag := ParseLine(raw)
	r.notify(frag)
	switch frag.Kind {
	case FragmentIgnored:
		return ""
	case FragmentDone:
		r.done = true
		return ""
	}

	r.stats.Events++
	delta, err := DecodeDelta(frag.Payload)
	if err != nil {
		r.requeue(frag.Payload, err)
		return ""
	}

	r.attempts = 0
	if delta != "" {
		r.stats.Deltas++
	}
	return delta
}

func (r *Reader) notify(frag Fragment) {
	if r.observe != nil {
		r.observe(frag)
	}
}

func (r *Reader) requeue(payload string, err error) {
	r.attempts++
	if r.attempts > r.maxRequeues {
		r.logger.Warn("discarding malformed stream event",
			"attempts", r.attempts,
			"error", err,
			"payload", utils.Truncate(payload, 120),
		)
		r.stats.Discarded++
		r.attempts = 0
		return
	}

	r.logger.Debug("requeueing incomplete stream event",
		"attempt", r.attempts,
		"error", err,
	)
	r.stats.Requeued++
	r.carry = DataPrefix + " " + payload
}

func (r *Reader) drop(fragment, reason string) {
	r.logger.Warn("discarding malformed stream event",
		"reason", reason,
		"payload", utils.Truncate(fragment, 120),
	)
	r.stats.Discarded++
	r.carry = ""
	r.attempts = 0
}

// finish releases buffered state once the sequence has ended.
func (r *Reader) finish() {
	if strings.TrimSpace(r.pending) != "" {
		r.logger.Debug("discarding unterminated trailing line",
			"bytes", len(r.pending),
			"line", utils.Truncate(r.pending, 120),
		)
		r.stats.Discarded++
	}
	if r.carry != "" {
		r.drop(r.carry, "stream ended")
	}

	r.pending = ""
	r.lines = nil
	r.err = io.EOF
}
