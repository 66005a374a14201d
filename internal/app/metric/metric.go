// Package metric converts between the persisted jsonb representation of the
// sparse category->count breakdown maps and their in-memory form.
package metric

import (
	"encoding/json"
	"fmt"
	"sort"

	"go.uber.org/zap"
)

// Entry is one (category, count) pair of a breakdown map.
type Entry struct {
	Name  string `json:"name"`
	Value int64  `json:"value"`
}

// Encode serializes a breakdown map. A nil map encodes as an empty object.
func Encode(m map[string]int64) ([]byte, error) {
	if m == nil {
		m = map[string]int64{}
	}
	data, err := json.Marshal(m)
	if err != nil {
		return nil, fmt.Errorf("metric: encode: %w", err)
	}
	return data, nil
}

// Decode parses a persisted breakdown map. Empty or missing input yields an
// empty map; corrupt input is an error, callers on the detail path surface it
// as a data-integrity failure.
func Decode(raw []byte) (map[string]int64, error) {
	if len(raw) == 0 {
		return map[string]int64{}, nil
	}

	var m map[string]int64
	if err := json.Unmarshal(raw, &m); err != nil {
		return nil, fmt.Errorf("metric: decode: %w", err)
	}
	if m == nil {
		m = map[string]int64{}
	}
	return m, nil
}

// DecodeLenient parses a persisted breakdown map, logging corrupt input and
// falling back to an empty map. Used on bulk read paths where one bad row
// must not sink the whole page.
func DecodeLenient(raw []byte, logger *zap.Logger) map[string]int64 {
	m, err := Decode(raw)
	if err != nil {
		if logger != nil {
			logger.Error("corrupt breakdown map, treating as empty",
				zap.ByteString("raw", raw),
				zap.Error(err),
			)
		}
		return map[string]int64{}
	}
	return m
}

// Entries flattens a breakdown map into a list sorted by count descending.
// Order among equal counts is unspecified.
func Entries(m map[string]int64) []Entry {
	entries := make([]Entry, 0, len(m))
	for name, value := range m {
		entries = append(entries, Entry{Name: name, Value: value})
	}
	sort.Slice(entries, func(i, j int) bool {
		return entries[i].Value > entries[j].Value
	})
	return entries
}
