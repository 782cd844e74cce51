// Package prompt loads the system prompt sent ahead of every user message
// and keeps it current while the proxy runs.
package prompt

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"

	"github.com/fsnotify/fsnotify"

	"github.com/papercomputeco/bpmnchat/pkg/logger"
)

//go:embed system_prompt.txt
var defaultPrompt string

// Default returns the built-in system prompt.
func Default() string {
	return strings.TrimSpace(defaultPrompt)
}

// Loader serves the system prompt from a file, or the built-in prompt when
// no file is configured.
type Loader struct {
	path    string
	current atomic.Pointer[string]
	logger  *slog.Logger
}

// NewLoader reads path. An empty path selects the built-in prompt.
func NewLoader(path string, l *slog.Logger) (*Loader, error) {
	if l == nil {
		l = logger.Nop()
	}

	loader := &Loader{path: path, logger: l}
	if path == "" {
		p := Default()
		loader.current.Store(&p)
		return loader, nil
	}

	if err := loader.Reload(); err != nil {
		return nil, err
	}
	return loader, nil
}

// Path returns the watched file, or "" for the built-in prompt.
func (l *Loader) Path() string {
	return l.path
}

// Prompt returns the current system prompt.
func (l *Loader) Prompt() string {
	return *l.current.Load()
}

// Reload re-reads the prompt file. An empty file is rejected and the previous
// prompt is kept.
func (l *Loader) Reload() error {
	if l.path == "" {
		return nil
	}

	data, err := os.ReadFile(l.path)
	if err != nil {
		return fmt.Errorf("reading system prompt: %w", err)
	}

	p := strings.TrimSpace(string(data))
	if p == "" {
		return fmt.Errorf("system prompt %s is empty", l.path)
	}

	l.current.Store(&p)
	return nil
}

// Watch reloads the prompt whenever the file changes, until ctx is done.
// The parent directory is watched so editors that replace the file on save
// are handled.
func (l *Loader) Watch(ctx context.Context) error {
	if l.path == "" {
		<-ctx.Done()
		return nil
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("creating prompt watcher: %w", err)
	}
	defer watcher.Close()

	if err := watcher.Add(filepath.Dir(l.path)); err != nil {
		return fmt.Errorf("watching prompt dir: %w", err)
	}

	target := filepath.Clean(l.path)
	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) != target {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}
			if err := l.Reload(); err != nil {
				l.logger.Warn("keeping previous system prompt", "error", err)
				continue
			}
			l.logger.Info("system prompt reloaded", "path", l.path)
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			if errors.Is(err, fsnotify.ErrEventOverflow) {
				_ = l.Reload()
				continue
			}
			return fmt.Errorf("prompt watcher error: %w", err)
		}
	}
}
