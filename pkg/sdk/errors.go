package plantclf

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
)

// ErrInvalidFileFormat matches an *APIError for an upload whose filename extension the service rejects.
// Use errors.Is() to check.
var ErrInvalidFileFormat = errors.New("plantclf: invalid file format")

// APIError is a non-2xx response from the service.
type APIError struct {
	StatusCode int
	Detail     string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("plantclf: HTTP %d: %s", e.StatusCode, e.Detail)
}

// Is reports ErrInvalidFileFormat for 400 responses.
func (e *APIError) Is(target error) bool {
	return target == ErrInvalidFileFormat && e.StatusCode == http.StatusBadRequest
}

// parseDetail extracts the "detail" field of an error body.
// String details are returned as-is; validation lists are flattened to "loc: msg" pairs.
func parseDetail(body []byte) string {
	var envelope struct {
		Detail json.RawMessage `json:"detail"`
	}
	if err := json.Unmarshal(body, &envelope); err != nil || len(envelope.Detail) == 0 {
		return strings.TrimSpace(string(body))
	}

	var s string
	if err := json.Unmarshal(envelope.Detail, &s); err == nil {
		return s
	}

	var items []struct {
		Loc []any  `json:"loc"`
		Msg string `json:"msg"`
	}
	if err := json.Unmarshal(envelope.Detail, &items); err == nil && len(items) > 0 {
		parts := make([]string, len(items))
		for i, it := range items {
			loc := make([]string, len(it.Loc))
			for j, l := range it.Loc {
				loc[j] = fmt.Sprint(l)
			}
			parts[i] = strings.Join(loc, ".") + ": " + it.Msg
		}
		return strings.Join(parts, "; ")
	}

	return string(envelope.Detail)
}
