package preview

import (
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// MetaKey is the content metadata key holding a Record's size map.
const MetaKey = "page_preview_url"

// Record maps lowercased size labels to public image URLs for one item.
type Record struct {
	ContentID int64             `json:"content_id"`
	Sizes     map[string]string `json:"sizes"`
}

// Labels returns the record's size labels, ordered by preferred first.
func (r Record) Labels(preferred []string) []string {
	return orderLabels(r.Sizes, preferred)
}

func decodeRecord(id int64, value string) (*Record, error) {
	var sizes map[string]string
	if err := json.Unmarshal([]byte(value), &sizes); err != nil {
		return nil, fmt.Errorf("decode preview record for %d: %w", id, err)
	}
	if len(sizes) == 0 {
		return nil, nil
	}
	return &Record{ContentID: id, Sizes: sizes}, nil
}

func encodeRecord(r Record) (string, error) {
	data, err := json.Marshal(r.Sizes)
	if err != nil {
		return "", fmt.Errorf("encode preview record for %d: %w", r.ContentID, err)
	}
	return string(data), nil
}

// fileName returns the stored image name for one size of an item.
func fileName(id int64, label string) string {
	return strconv.FormatInt(id, 10) + "-" + strings.ToLower(label) + ".png"
}

func filePattern(id int64) string {
	return strconv.FormatInt(id, 10) + "-*.png"
}

// orderLabels lists the keys of m, with labels from preferred first in that
// order and the rest sorted.
func orderLabels[V any](m map[string]V, preferred []string) []string {
	out := make([]string, 0, len(m))
	seen := make(map[string]struct{}, len(m))
	for _, label := range preferred {
		key := strings.ToLower(label)
		if _, ok := m[key]; !ok {
			if _, ok := m[label]; !ok {
				continue
			}
			key = label
		}
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, key)
	}
	var rest []string
	for key := range m {
		if _, ok := seen[key]; !ok {
			rest = append(rest, key)
		}
	}
	sort.Strings(rest)
	return append(out, rest...)
}

// labelWidth parses the width out of a WIDTHxHEIGHT label.
func labelWidth(label string) (int, bool) {
	width, _, ok := strings.Cut(strings.ToLower(label), "x")
	if !ok {
		return 0, false
	}
	n, err := strconv.Atoi(width)
	if err != nil || n <= 0 {
		return 0, false
	}
	return n, true
}
