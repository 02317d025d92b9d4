package domain

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// Labels is the ordered class-name list; position i names classifier output i.
// Immutable once loaded.
type Labels struct {
	names []string
}

// NewLabels copies names into a label set.
func NewLabels(names []string) (Labels, error) {
	if len(names) == 0 {
		return Labels{}, fmt.Errorf("%w: empty label set", ErrInvalidLabels)
	}
	seen := make(map[string]struct{}, len(names))
	for i, n := range names {
		if n == "" {
			return Labels{}, fmt.Errorf("%w: empty name at index %d", ErrInvalidLabels, i)
		}
		if _, dup := seen[n]; dup {
			return Labels{}, fmt.Errorf("%w: duplicate name %q", ErrInvalidLabels, n)
		}
		seen[n] = struct{}{}
	}
	out := make([]string, len(names))
	copy(out, names)
	return Labels{names: out}, nil
}

// LoadLabels reads a label file. Two layouts are accepted:
// a JSON array of names in index order, or a JSON object mapping name to index
// (the Keras class_indices layout). Indices must cover 0..n-1 exactly once.
func LoadLabels(path string) (Labels, error) {
	data, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		return Labels{}, fmt.Errorf("read labels %s: %w", path, err)
	}
	return ParseLabels(data)
}

// ParseLabels decodes label file contents. See LoadLabels.
func ParseLabels(data []byte) (Labels, error) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 {
		return Labels{}, fmt.Errorf("%w: empty file", ErrInvalidLabels)
	}

	switch trimmed[0] {
	case '[':
		var names []string
		if err := json.Unmarshal(trimmed, &names); err != nil {
			return Labels{}, fmt.Errorf("%w: %w", ErrInvalidLabels, err)
		}
		return NewLabels(names)
	case '{':
		var indices map[string]int
		if err := json.Unmarshal(trimmed, &indices); err != nil {
			return Labels{}, fmt.Errorf("%w: %w", ErrInvalidLabels, err)
		}
		return labelsFromIndices(indices)
	default:
		return Labels{}, fmt.Errorf("%w: expected JSON array or object", ErrInvalidLabels)
	}
}

func labelsFromIndices(indices map[string]int) (Labels, error) {
	names := make([]string, len(indices))
	seen := make([]bool, len(indices))
	for name, idx := range indices {
		if idx < 0 || idx >= len(indices) {
			return Labels{}, fmt.Errorf("%w: index %d for %q out of range [0,%d)",
				ErrInvalidLabels, idx, name, len(indices))
		}
		if seen[idx] {
			return Labels{}, fmt.Errorf("%w: duplicate index %d", ErrInvalidLabels, idx)
		}
		seen[idx] = true
		names[idx] = name
	}
	return NewLabels(names)
}

// Len returns the number of classes.
func (l Labels) Len() int { return len(l.names) }

// Name returns the label at index i.
func (l Labels) Name(i int) string { return l.names[i] }

// Names returns a copy of all labels in index order.
func (l Labels) Names() []string {
	out := make([]string, len(l.names))
	copy(out, l.names)
	return out
}
