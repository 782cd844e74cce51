package diagram

import (
	"context"
	_ "embed"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"github.com/papercomputeco/bpmnchat/pkg/logger"
)

//go:embed default.bpmn
var defaultDiagram string

// Default returns the diagram a new canvas starts with.
func Default() string {
	return defaultDiagram
}

// Canvas holds the last diagram that imported cleanly. A failed import leaves
// the current diagram untouched. Canvas is safe for concurrent use.
type Canvas struct {
	mu       sync.RWMutex
	current  string
	imports  int
	validate func(string) error
	logger   *slog.Logger
}

// CanvasOption configures a Canvas.
type CanvasOption func(*Canvas)

// WithInitial replaces the embedded default diagram. The document is not
// validated.
func WithInitial(doc string) CanvasOption {
	return func(c *Canvas) { c.current = doc }
}

// WithValidator replaces Validate.
func WithValidator(fn func(string) error) CanvasOption {
	return func(c *Canvas) {
		if fn != nil {
			c.validate = fn
		}
	}
}

// WithCanvasLogger sets the logger.
func WithCanvasLogger(l *slog.Logger) CanvasOption {
	return func(c *Canvas) {
		if l != nil {
			c.logger = l
		}
	}
}

// NewCanvas returns a canvas showing the default diagram.
func NewCanvas(opts ...CanvasOption) *Canvas {
	c := &Canvas{
		current:  defaultDiagram,
		validate: Validate,
		logger:   logger.Nop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Import validates doc and makes it the current diagram.
func (c *Canvas) Import(ctx context.Context, doc string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := c.validate(doc); err != nil {
		return err
	}

	c.mu.Lock()
	c.current = doc
	c.imports++
	c.mu.Unlock()

	c.logger.Debug("diagram imported", "bytes", len(doc))
	return nil
}

// Current returns the current diagram as imported.
func (c *Canvas) Current() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.current
}

// Imports counts successful imports.
func (c *Canvas) Imports() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.imports
}

// Export returns the current diagram formatted for saving.
func (c *Canvas) Export() string {
	return Format(c.Current())
}

// Save writes the formatted diagram to path, replacing it atomically.
func (c *Canvas) Save(path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating diagram directory: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".diagram-*.bpmn")
	if err != nil {
		return fmt.Errorf("creating temp diagram: %w", err)
	}
	defer os.Remove(tmp.Name())

	if err := tmp.Chmod(0o644); err != nil {
		tmp.Close()
		return fmt.Errorf("setting diagram permissions: %w", err)
	}
	if _, err := tmp.WriteString(c.Export()); err != nil {
		tmp.Close()
		return fmt.Errorf("writing diagram: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("closing diagram: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("saving diagram: %w", err)
	}

	c.logger.Info("diagram saved", "path", path)
	return nil
}
