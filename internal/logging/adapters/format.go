package adapters

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"

	"channel-scout/internal/logging/types"
)

func formatEntry(format string, entry *types.LogEntry, colorized bool) (string, error) {
	if strings.EqualFold(format, "text") {
		return formatText(entry, colorized), nil
	}
	return formatJSON(entry)
}

func formatJSON(entry *types.LogEntry) (string, error) {
	logData := make(map[string]interface{}, len(entry.Fields)+3)
	for k, v := range entry.Fields {
		logData[k] = v
	}
	logData["level"] = entry.Level.String()
	logData["message"] = entry.Message
	logData["time"] = entry.Timestamp.Format(time.RFC3339)

	data, err := json.Marshal(logData)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// formatText renders "time [LEVEL] message k=v ..." with keys sorted
func formatText(entry *types.LogEntry, colorized bool) string {
	level := strings.ToUpper(entry.Level.String())
	if colorized {
		level = colorizeLevel(level)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "%s [%s] %s", entry.Timestamp.Format("2006-01-02T15:04:05.000Z07:00"), level, entry.Message)

	keys := make([]string, 0, len(entry.Fields))
	for k := range entry.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		fmt.Fprintf(&b, " %s=%v", k, entry.Fields[k])
	}
	return b.String()
}

func colorizeLevel(level string) string {
	const reset = "\033[0m"
	switch level {
	case "DEBUG":
		return "\033[90m" + level + reset
	case "INFO":
		return "\033[34m" + level + reset
	case "WARN":
		return "\033[33m" + level + reset
	case "ERROR", "FATAL":
		return "\033[31m" + level + reset
	default:
		return level
	}
}
