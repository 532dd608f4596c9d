package logging

import (
	"context"
	"fmt"
	"os"
	"sort"
	"strings"
	"sync"
	"time"

	"channel-scout/internal/logging/types"
)

// adapterSet is shared by a logger and every child derived from it
type adapterSet struct {
	mu       sync.RWMutex
	adapters map[string]types.LogAdapter
	level    LogLevel
}

// MultiLogger fans every entry out to all registered adapters
type MultiLogger struct {
	sinks   *adapterSet
	context context.Context
	fields  map[string]interface{}
}

// NewMultiLogger creates a new MultiLogger instance
func NewMultiLogger() *MultiLogger {
	return &MultiLogger{
		sinks: &adapterSet{
			adapters: make(map[string]types.LogAdapter),
			level:    InfoLevel,
		},
		context: context.Background(),
		fields:  make(map[string]interface{}),
	}
}

// NewNopLogger returns a logger without adapters. Entries are dropped.
func NewNopLogger() Logger {
	return NewMultiLogger()
}

func (l *MultiLogger) Debug(message string, fields ...map[string]interface{}) {
	l.Log(DebugLevel, message, fields...)
}

func (l *MultiLogger) Info(message string, fields ...map[string]interface{}) {
	l.Log(InfoLevel, message, fields...)
}

func (l *MultiLogger) Warn(message string, fields ...map[string]interface{}) {
	l.Log(WarnLevel, message, fields...)
}

func (l *MultiLogger) Error(message string, fields ...map[string]interface{}) {
	l.Log(ErrorLevel, message, fields...)
}

// Fatal logs a fatal message and exits
func (l *MultiLogger) Fatal(message string, fields ...map[string]interface{}) {
	l.Log(FatalLevel, message, fields...)
	_ = l.Close()
	os.Exit(1)
}

// Log writes a message at the given level to every adapter
func (l *MultiLogger) Log(level LogLevel, message string, fields ...map[string]interface{}) {
	l.sinks.mu.RLock()
	defer l.sinks.mu.RUnlock()

	if level < l.sinks.level || len(l.sinks.adapters) == 0 {
		return
	}

	entry := &types.LogEntry{
		Level:     level,
		Message:   message,
		Timestamp: time.Now(),
		Context:   l.context,
		Fields:    l.mergeFields(fields...),
	}

	for name, adapter := range l.sinks.adapters {
		if err := adapter.Write(entry); err != nil {
			// stderr, never back into the logger
			fmt.Fprintf(os.Stderr, "logging adapter %s error: %v\n", name, err)
		}
	}
}

func (l *MultiLogger) derive(ctx context.Context, fields map[string]interface{}) *MultiLogger {
	return &MultiLogger{sinks: l.sinks, context: ctx, fields: fields}
}

func (l *MultiLogger) WithContext(ctx context.Context) Logger {
	return l.derive(ctx, l.copyFields())
}

func (l *MultiLogger) WithField(key string, value interface{}) Logger {
	fields := l.copyFields()
	fields[key] = value
	return l.derive(l.context, fields)
}

func (l *MultiLogger) WithFields(fields map[string]interface{}) Logger {
	merged := l.copyFields()
	for k, v := range fields {
		merged[k] = v
	}
	return l.derive(l.context, merged)
}

// WithError attaches err under the "error" field
func (l *MultiLogger) WithError(err error) Logger {
	if err == nil {
		return l
	}
	return l.WithField("error", err.Error())
}

func (l *MultiLogger) SetLevel(level LogLevel) {
	l.sinks.mu.Lock()
	defer l.sinks.mu.Unlock()
	l.sinks.level = level
}

func (l *MultiLogger) GetLevel() LogLevel {
	l.sinks.mu.RLock()
	defer l.sinks.mu.RUnlock()
	return l.sinks.level
}

// AddAdapter registers an adapter under its name
func (l *MultiLogger) AddAdapter(adapter types.LogAdapter) error {
	l.sinks.mu.Lock()
	defer l.sinks.mu.Unlock()

	name := adapter.Name()
	if _, exists := l.sinks.adapters[name]; exists {
		return fmt.Errorf("adapter %s already exists", name)
	}
	l.sinks.adapters[name] = adapter
	return nil
}

// Close closes all adapters
func (l *MultiLogger) Close() error {
	l.sinks.mu.Lock()
	defer l.sinks.mu.Unlock()

	var failed []string
	for name, adapter := range l.sinks.adapters {
		if err := adapter.Close(); err != nil {
			failed = append(failed, fmt.Sprintf("adapter %s: %v", name, err))
		}
	}
	l.sinks.adapters = make(map[string]types.LogAdapter)

	if len(failed) > 0 {
		sort.Strings(failed)
		return fmt.Errorf("failed to close adapters: %s", strings.Join(failed, ", "))
	}
	return nil
}

func (l *MultiLogger) copyFields() map[string]interface{} {
	fields := make(map[string]interface{}, len(l.fields))
	for k, v := range l.fields {
		fields[k] = v
	}
	return fields
}

func (l *MultiLogger) mergeFields(additional ...map[string]interface{}) map[string]interface{} {
	fields := l.copyFields()
	for _, m := range additional {
		for k, v := range m {
			fields[k] = v
		}
	}
	return fields
}

// ParseLogLevel parses a string log level into LogLevel
func ParseLogLevel(levelStr string) LogLevel {
	switch strings.ToLower(levelStr) {
	case "debug":
		return DebugLevel
	case "info":
		return InfoLevel
	case "warn", "warning":
		return WarnLevel
	case "error":
		return ErrorLevel
	case "fatal":
		return FatalLevel
	default:
		return InfoLevel
	}
}
