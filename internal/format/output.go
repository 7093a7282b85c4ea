package format

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strings"
	"unicode"

	"github.com/fatih/color"

	"github.com/vedsharma/analyze-request/internal/model"
)

// sanitizeOutput removes or escapes potentially dangerous control characters
// that could manipulate terminal display or execute commands
func sanitizeOutput(s string) string {
	var result strings.Builder
	result.Grow(len(s))

	for _, r := range s {
		switch {
		case r == '\n' || r == '\r' || r == '\t':
			result.WriteRune(r)
		case r == '\x1b':
			// Escape ANSI escape sequences - replace ESC with visible representation
			result.WriteString("\\x1b")
		case unicode.IsControl(r) && r < 0x20:
			result.WriteString(fmt.Sprintf("\\x%02x", r))
		case r == 0x7F:
			result.WriteString("\\x7f")
		default:
			result.WriteRune(r)
		}
	}

	return result.String()
}

var (
	successColor   = color.New(color.FgGreen, color.Bold)
	redirectColor  = color.New(color.FgYellow, color.Bold)
	clientErrColor = color.New(color.FgRed, color.Bold)
	serverErrColor = color.New(color.FgRed, color.Bold, color.BgWhite)
	headerKeyColor = color.New(color.FgCyan)
	methodColor    = color.New(color.FgMagenta, color.Bold)
	urlColor       = color.New(color.FgBlue)
	dimColor       = color.New(color.Faint)
	warnColor      = color.New(color.FgYellow)
)

// ResponseOptions controls PrintResponse
type ResponseOptions struct {
	ShowHeaders bool
}

// PrintResponse prints a response record. A nil record prints a placeholder.
// Persisted records are tagged with the time they were saved.
func PrintResponse(w io.Writer, res *model.ResponseRecord, opts ResponseOptions) {
	if res == nil {
		dimColor.Fprintln(w, "(no response)")
		return
	}

	if res.SavedAtISO != "" {
		warnColor.Fprintf(w, "saved response from %s\n", sanitizeOutput(res.SavedAtISO))
	}

	if !res.OK {
		clientErrColor.Fprintf(w, "✗ %s\n", sanitizeOutput(res.Error))
		dimColor.Fprintf(w, "  Time: %dms\n", res.DurationMs)
		return
	}

	printStatusLine(w, res)
	dimColor.Fprintf(w, "  Time: %dms\n", res.DurationMs)
	if res.ContentType != "" {
		dimColor.Fprintf(w, "  Type: %s\n", sanitizeOutput(res.ContentType))
	}
	fmt.Fprintln(w)

	if opts.ShowHeaders {
		printHeaders(w, res.Headers)
	}

	printBody(w, res)
}

func printStatusLine(w io.Writer, res *model.ResponseRecord) {
	statusColor := getStatusColor(res.Status)
	statusColor.Fprintf(w, "%d %s\n", res.Status, sanitizeOutput(res.StatusText))
}

func getStatusColor(code int) *color.Color {
	switch {
	case code >= 200 && code < 300:
		return successColor
	case code >= 300 && code < 400:
		return redirectColor
	case code >= 400 && code < 500:
		return clientErrColor
	default:
		return serverErrColor
	}
}

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func printHeaders(w io.Writer, headers map[string]string) {
	if len(headers) == 0 {
		return
	}

	fmt.Fprintln(w, "Headers:")
	for _, key := range sortedKeys(headers) {
		headerKeyColor.Fprintf(w, "  %s: ", sanitizeOutput(key))
		fmt.Fprintln(w, sanitizeOutput(headers[key]))
	}
	fmt.Fprintln(w)
}

func printBody(w io.Writer, res *model.ResponseRecord) {
	if res.BodyJSON != nil {
		if pretty, err := indentValue(res.BodyJSON); err == nil {
			fmt.Fprintln(w, sanitizeOutput(pretty))
			return
		}
	}

	if res.BodyText == "" {
		dimColor.Fprintln(w, "(empty body)")
		return
	}
	fmt.Fprintln(w, sanitizeOutput(prettyJSON(res.BodyText)))
}

func indentValue(v any) (string, error) {
	var out bytes.Buffer
	enc := json.NewEncoder(&out)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return "", err
	}
	return strings.TrimRight(out.String(), "\n"), nil
}

func prettyJSON(s string) string {
	var out bytes.Buffer
	err := json.Indent(&out, []byte(s), "", "  ")
	if err != nil {
		// Not valid JSON, return as-is
		return s
	}
	return out.String()
}

// PrintRequest prints the request part of a saved item
func PrintRequest(w io.Writer, req model.RequestSpec, reveal bool) {
	methodColor.Fprintf(w, "%s ", sanitizeOutput(req.Method))
	urlColor.Fprintln(w, sanitizeOutput(req.URL))
	if req.TimeoutMs > 0 {
		dimColor.Fprintf(w, "  Timeout: %dms\n", req.TimeoutMs)
	}
	fmt.Fprintln(w)

	headers := req.Headers
	if !reveal {
		headers = RedactHeaders(headers)
	}
	printHeaders(w, headers)

	if req.Body != "" {
		fmt.Fprintln(w, "Body:")
		fmt.Fprintln(w, sanitizeOutput(prettyJSON(req.Body)))
		fmt.Fprintln(w)
	}
}

// PrintSavedDetail prints a saved item with its request and last response
func PrintSavedDetail(w io.Writer, item *model.SavedRequest, reveal bool) {
	headerKeyColor.Fprintln(w, sanitizeOutput(item.Name))
	if item.Description != "" {
		fmt.Fprintln(w, sanitizeOutput(item.Description))
	}
	dimColor.Fprintf(w, "ID: %s\n", sanitizeOutput(item.ID))
	dimColor.Fprintf(w, "Created: %s  Updated: %s\n\n", item.CreatedAtISO, item.UpdatedAtISO)

	fmt.Fprintln(w, "Request:")
	fmt.Fprintln(w, strings.Repeat("-", 40))
	PrintRequest(w, item.Request, reveal)

	fmt.Fprintln(w, "Last response:")
	fmt.Fprintln(w, strings.Repeat("-", 40))
	PrintResponse(w, item.LastResponse, ResponseOptions{ShowHeaders: true})
}

// PrintSavedList prints saved items in a compact format, one per line
func PrintSavedList(w io.Writer, items []model.SavedRequest, selectedID string) {
	if len(items) == 0 {
		dimColor.Fprintln(w, "No saved requests")
		return
	}

	for _, item := range items {
		marker := " "
		if item.ID == selectedID {
			marker = "*"
		}
		fmt.Fprintf(w, "%s ", marker)
		dimColor.Fprintf(w, "%s ", sanitizeOutput(item.ID))

		label := item.Name
		if item.Description != "" {
			label = item.Name + " — " + item.Description
		}
		headerKeyColor.Fprintf(w, "%s ", sanitizeOutput(label))
		methodColor.Fprintf(w, "%s ", sanitizeOutput(item.Request.Method))

		// Truncate URL if too long, then sanitize
		url := item.Request.URL
		if len(url) > 60 {
			url = url[:57] + "..."
		}
		urlColor.Fprintf(w, "%s ", sanitizeOutput(url))

		if res := item.LastResponse; res != nil {
			if res.OK {
				getStatusColor(res.Status).Fprintf(w, "%d ", res.Status)
			} else {
				clientErrColor.Fprint(w, "error ")
			}
			dimColor.Fprintf(w, "(%dms) ", res.DurationMs)
		}
		dimColor.Fprintf(w, "%s", item.UpdatedAtISO)
		fmt.Fprintln(w)
	}
}

// PrintSuccess prints a success message
func PrintSuccess(w io.Writer, msg string) {
	successColor.Fprintf(w, "✓ %s\n", msg)
}

// PrintError prints an error message
func PrintError(w io.Writer, msg string) {
	clientErrColor.Fprintf(w, "✗ %s\n", msg)
}

// PrintWarning prints a recoverable notice
func PrintWarning(w io.Writer, msg string) {
	warnColor.Fprintf(w, "! %s\n", msg)
}
