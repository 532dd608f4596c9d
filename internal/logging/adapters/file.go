package adapters

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"channel-scout/internal/logging/types"
)

// FileAdapter appends entries to a file and rotates it by size
type FileAdapter struct {
	name        string
	config      FileConfig
	currentFile *os.File
	currentSize int64
	mu          sync.Mutex
}

// FileConfig represents configuration for the file adapter
type FileConfig struct {
	FilePath   string `yaml:"path"`
	Format     string `yaml:"format"`      // json or text
	MaxSize    int64  `yaml:"max_size"`    // bytes, 0 disables rotation
	MaxBackups int    `yaml:"max_backups"` // rotated files kept
}

// NewFileAdapter creates parent directories and opens the log file
func NewFileAdapter(name string, config FileConfig) (*FileAdapter, error) {
	if config.MaxBackups <= 0 {
		config.MaxBackups = 5
	}

	if err := os.MkdirAll(filepath.Dir(config.FilePath), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create log directory: %w", err)
	}

	adapter := &FileAdapter{name: name, config: config}
	if err := adapter.openFile(); err != nil {
		return nil, fmt.Errorf("failed to open log file: %w", err)
	}
	return adapter, nil
}

func (a *FileAdapter) Write(entry *types.LogEntry) error {
	line, err := formatEntry(a.config.Format, entry, false)
	if err != nil {
		return fmt.Errorf("failed to format log entry: %w", err)
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	if a.currentFile == nil {
		return fmt.Errorf("log file %s is closed", a.config.FilePath)
	}
	if a.config.MaxSize > 0 && a.currentSize >= a.config.MaxSize {
		if err := a.rotate(); err != nil {
			return fmt.Errorf("failed to rotate log file: %w", err)
		}
	}

	n, err := a.currentFile.WriteString(line + "\n")
	a.currentSize += int64(n)
	return err
}

func (a *FileAdapter) Close() error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.currentFile == nil {
		return nil
	}
	err := a.currentFile.Close()
	a.currentFile = nil
	return err
}

func (a *FileAdapter) Health() error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.currentFile == nil {
		return fmt.Errorf("log file is not open")
	}
	if _, err := a.currentFile.Stat(); err != nil {
		return fmt.Errorf("log file is not accessible: %w", err)
	}
	return nil
}

func (a *FileAdapter) Name() string { return a.name }

func (a *FileAdapter) openFile() error {
	file, err := os.OpenFile(a.config.FilePath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return err
	}
	stat, err := file.Stat()
	if err != nil {
		file.Close()
		return err
	}
	a.currentFile = file
	a.currentSize = stat.Size()
	return nil
}

// rotate renames the live file to path.<timestamp> and opens a fresh one
func (a *FileAdapter) rotate() error {
	if err := a.currentFile.Close(); err != nil {
		return err
	}
	a.currentFile = nil

	backup := fmt.Sprintf("%s.%s", a.config.FilePath, time.Now().Format("20060102-150405.000"))
	if err := os.Rename(a.config.FilePath, backup); err != nil {
		return err
	}
	a.pruneBackups()
	return a.openFile()
}

func (a *FileAdapter) pruneBackups() {
	dir := filepath.Dir(a.config.FilePath)
	prefix := filepath.Base(a.config.FilePath) + "."

	entries, err := os.ReadDir(dir)
	if err != nil {
		return
	}
	var backups []string
	for _, e := range entries {
		if !e.IsDir() && strings.HasPrefix(e.Name(), prefix) {
			backups = append(backups, e.Name())
		}
	}
	// timestamp suffixes sort chronologically
	sort.Sort(sort.Reverse(sort.StringSlice(backups)))
	for _, old := range backups[min(len(backups), a.config.MaxBackups):] {
		if err := os.Remove(filepath.Join(dir, old)); err != nil {
			fmt.Fprintf(os.Stderr, "failed to remove old log backup %s: %v\n", old, err)
		}
	}
}
