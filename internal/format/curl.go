package format

import (
	"bytes"
	"encoding/json"
	"strings"

	"github.com/vedsharma/analyze-request/internal/model"
)

// BuildCurl renders req as an equivalent curl command line. Headers are
// sorted and the body is omitted for GET and HEAD.
func BuildCurl(req model.RequestSpec) string {
	method := strings.ToUpper(req.Method)
	if method == "" {
		method = "GET"
	}

	parts := []string{"curl", "-X", quote(method)}
	for _, k := range sortedKeys(req.Headers) {
		parts = append(parts, "-H", quote(k+": "+req.Headers[k]))
	}

	if req.Body != "" && method != "GET" && method != "HEAD" {
		parts = append(parts, "--data", quote(req.Body))
	}

	parts = append(parts, quote(req.URL))
	return strings.Join(parts, " ")
}

// quote produces a double-quoted JSON string literal
func quote(s string) string {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	_ = enc.Encode(s)
	return strings.TrimRight(buf.String(), "\n")
}
