package logging

import (
	"fmt"
	"strings"

	"channel-scout/internal/logging/adapters"
	"channel-scout/internal/logging/types"
)

// AdapterFactory creates logging adapters based on configuration
type AdapterFactory struct{}

// NewAdapterFactory creates a new adapter factory
func NewAdapterFactory() *AdapterFactory {
	return &AdapterFactory{}
}

// CreateAdapter creates a logging adapter based on the provided configuration
func (f *AdapterFactory) CreateAdapter(ac types.AdapterConfig) (types.LogAdapter, error) {
	name := ac.Name
	if name == "" {
		name = ac.Type
	}

	switch strings.ToLower(ac.Type) {
	case "stdout", "console":
		return adapters.NewStdoutAdapter(name, adapters.StdoutConfig{
			Format:    getStringOption(ac.Options, "format", "json"),
			Colorized: getBoolOption(ac.Options, "colorized", false),
		}), nil
	case "file":
		path := getStringOption(ac.Options, "path", "")
		if path == "" {
			return nil, fmt.Errorf("path is required for file adapter")
		}
		return adapters.NewFileAdapter(name, adapters.FileConfig{
			FilePath:   path,
			Format:     getStringOption(ac.Options, "format", "json"),
			MaxSize:    getInt64Option(ac.Options, "max_size", 50<<20),
			MaxBackups: getIntOption(ac.Options, "max_backups", 5),
		})
	default:
		return nil, fmt.Errorf("unsupported adapter type: %s", ac.Type)
	}
}

func getStringOption(options map[string]interface{}, key, def string) string {
	if s, ok := options[key].(string); ok && s != "" {
		return s
	}
	return def
}

func getIntOption(options map[string]interface{}, key string, def int) int {
	return int(getInt64Option(options, key, int64(def)))
}

// yaml.v3 decodes integers as int, JSON as float64
func getInt64Option(options map[string]interface{}, key string, def int64) int64 {
	switch v := options[key].(type) {
	case int:
		return int64(v)
	case int64:
		return v
	case float64:
		return int64(v)
	}
	return def
}

func getBoolOption(options map[string]interface{}, key string, def bool) bool {
	if b, ok := options[key].(bool); ok {
		return b
	}
	return def
}
