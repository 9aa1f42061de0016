package logs

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"pagepreview/internal/logging"
)

// Filter selects log lines. The zero value matches everything. JSON lines
// are matched on their fields; console lines on their rendered prefix.
type Filter struct {
	ContentID int64
	Component string
	// MinLevel is one of debug, info, warn, error.
	MinLevel string
}

func (f Filter) empty() bool {
	return f.ContentID == 0 && f.Component == "" && levelRank(f.MinLevel) == 0
}

// Match reports whether line passes the filter.
func (f Filter) Match(line string) bool {
	if f.empty() {
		return true
	}
	trimmed := strings.TrimSpace(line)
	if strings.HasPrefix(trimmed, "{") {
		if fields, ok := decodeJSON(trimmed); ok {
			return f.matchFields(
				fields["level"],
				fields[logging.FieldComponent],
				fields[logging.FieldContentID],
			)
		}
	}
	return f.matchConsole(trimmed)
}

func (f Filter) matchFields(level, component, contentID string) bool {
	if levelRank(level) < levelRank(f.MinLevel) {
		return false
	}
	if f.Component != "" && !strings.EqualFold(component, f.Component) {
		return false
	}
	if f.ContentID != 0 && contentID != fmt.Sprint(f.ContentID) {
		return false
	}
	return true
}

// matchConsole parses "TS LEVEL component: [#id] message k=v".
func (f Filter) matchConsole(line string) bool {
	parts := strings.SplitN(line, " ", 3)
	if len(parts) < 3 {
		return false
	}
	rest := parts[2]
	var component, contentID string
	if head, tail, ok := strings.Cut(rest, ": "); ok && !strings.Contains(head, " ") {
		component, rest = head, tail
	}
	if strings.HasPrefix(rest, "[#") {
		if end := strings.IndexByte(rest, ']'); end > 2 {
			contentID = rest[2:end]
		}
	}
	return f.matchFields(parts[1], component, contentID)
}

func decodeJSON(line string) (map[string]string, bool) {
	decoder := json.NewDecoder(bytes.NewReader([]byte(line)))
	decoder.UseNumber()
	var raw map[string]any
	if err := decoder.Decode(&raw); err != nil {
		return nil, false
	}
	fields := make(map[string]string, len(raw))
	for k, v := range raw {
		fields[k] = fmt.Sprint(v)
	}
	return fields, true
}

func levelRank(level string) int {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "info":
		return 1
	case "warn", "warning":
		return 2
	case "error":
		return 3
	default:
		return 0
	}
}
