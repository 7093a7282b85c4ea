package model

import (
	"sort"
	"time"
)

// ISOLayout is the timestamp format used for every persisted timestamp.
// Always UTC with millisecond precision so string order equals time order.
const ISOLayout = "2006-01-02T15:04:05.000Z"

// FormatISO formats t in ISOLayout.
func FormatISO(t time.Time) string {
	return t.UTC().Format(ISOLayout)
}

// RequestSpec represents an HTTP request composed by the user
type RequestSpec struct {
	URL       string            `json:"url"`
	Method    string            `json:"method"`
	Headers   map[string]string `json:"headers"`
	Body      string            `json:"body"`
	TimeoutMs int               `json:"timeoutMs"`
}

// Equal reports whether two requests are identical. Header order is
// irrelevant but keys and values must match exactly.
func (r RequestSpec) Equal(other RequestSpec) bool {
	if r.URL != other.URL || r.Method != other.Method || r.Body != other.Body || r.TimeoutMs != other.TimeoutMs {
		return false
	}

	if len(r.Headers) != len(other.Headers) {
		return false
	}

	keys := sortedKeys(r.Headers)
	otherKeys := sortedKeys(other.Headers)
	for i, k := range keys {
		if otherKeys[i] != k || other.Headers[k] != r.Headers[k] {
			return false
		}
	}

	return true
}

// Clone returns a copy that shares no maps with r.
func (r RequestSpec) Clone() RequestSpec {
	c := r
	c.Headers = make(map[string]string, len(r.Headers))
	for k, v := range r.Headers {
		c.Headers[k] = v
	}
	return c
}

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// SavedRequest represents a persisted request with its last known response
type SavedRequest struct {
	ID           string          `json:"id"`
	Name         string          `json:"name"`
	Description  string          `json:"description"`
	Request      RequestSpec     `json:"request"`
	LastResponse *ResponseRecord `json:"lastResponse"`
	CreatedAtISO string          `json:"createdAtIso"`
	UpdatedAtISO string          `json:"updatedAtIso"`
}

// SaveArgs holds the user supplied fields of a create or update
type SaveArgs struct {
	Name         string
	Description  string
	Request      RequestSpec
	LastResponse *ResponseRecord
}
