package store

import (
	"encoding/json"
	"fmt"

	"github.com/roach88/zkslice/internal/trace"
)

// marshalEntry converts an entry to canonical JSON TEXT for storage, so the
// stored text hashes the same as the slice commitment input.
func marshalEntry(e trace.Entry) (string, error) {
	data, err := trace.MarshalCanonical(e)
	if err != nil {
		return "", fmt.Errorf("marshal entry %d: %w", e.EID, err)
	}
	return string(data), nil
}

// unmarshalEntry parses stored JSON TEXT back into an entry.
func unmarshalEntry(data string) (trace.Entry, error) {
	var e trace.Entry
	if err := json.Unmarshal([]byte(data), &e); err != nil {
		return trace.Entry{}, fmt.Errorf("unmarshal entry: %w", err)
	}
	return e, nil
}
