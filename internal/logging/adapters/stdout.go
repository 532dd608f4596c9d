package adapters

import (
	"fmt"
	"io"
	"os"
	"sync"

	"channel-scout/internal/logging/types"
)

// StdoutAdapter writes entries to stdout, or any writer for tests
type StdoutAdapter struct {
	name      string
	format    string
	colorized bool
	out       io.Writer
	mu        sync.Mutex
}

// StdoutConfig represents configuration for the stdout adapter
type StdoutConfig struct {
	Format    string `yaml:"format"` // json or text
	Colorized bool   `yaml:"colorized"`
}

// NewStdoutAdapter creates a new stdout adapter
func NewStdoutAdapter(name string, config StdoutConfig) *StdoutAdapter {
	return NewWriterAdapter(name, os.Stdout, config)
}

// NewWriterAdapter creates an adapter writing to w
func NewWriterAdapter(name string, w io.Writer, config StdoutConfig) *StdoutAdapter {
	return &StdoutAdapter{
		name:      name,
		format:    config.Format,
		colorized: config.Colorized,
		out:       w,
	}
}

func (a *StdoutAdapter) Write(entry *types.LogEntry) error {
	line, err := formatEntry(a.format, entry, a.colorized)
	if err != nil {
		return fmt.Errorf("failed to format log entry: %w", err)
	}

	a.mu.Lock()
	defer a.mu.Unlock()
	_, err = fmt.Fprintln(a.out, line)
	return err
}

func (a *StdoutAdapter) Close() error  { return nil }
func (a *StdoutAdapter) Health() error { return nil }
func (a *StdoutAdapter) Name() string  { return a.name }
