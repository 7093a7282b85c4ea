package cmd

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"github.com/vedsharma/analyze-request/internal/binder"
	"github.com/vedsharma/analyze-request/internal/format"
	"github.com/vedsharma/analyze-request/internal/model"
	"github.com/vedsharma/analyze-request/internal/storage"
)

// form is the command line rendition of the request editor. Flags fill it,
// the terminal shows responses and y/N prompts confirm overwrites.
type form struct {
	request *model.RequestSpec
	err     error

	name        string
	description string

	out         io.Writer
	errOut      io.Writer
	in          *bufio.Reader
	assumeYes   bool
	showHeaders bool
	showSaved   bool
}

func newForm(in io.Reader, out, errOut io.Writer) *form {
	return &form{
		out:    out,
		errOut: errOut,
		in:     bufio.NewReader(in),
	}
}

func (f *form) CurrentRequest() (*model.RequestSpec, error) {
	if f.err != nil {
		return nil, f.err
	}
	if f.request == nil {
		return nil, errors.New("no request")
	}
	req := f.request.Clone()
	return &req, nil
}

func (f *form) ApplyRequestToForm(item model.SavedRequest) {
	req := item.Request.Clone()
	f.request = &req
	f.err = nil
	f.name = item.Name
	f.description = item.Description
}

func (f *form) ApplyDetails(name, description string) {
	f.name = name
	f.description = description
}

func (f *form) ApplyResponseToView(res *model.ResponseRecord, origin binder.Origin) {
	if origin == binder.OriginSaved && !f.showSaved {
		return
	}
	format.PrintResponse(f.out, res, format.ResponseOptions{ShowHeaders: f.showHeaders})
}

func (f *form) Confirm(prompt string) bool {
	if f.assumeYes {
		return true
	}

	fmt.Fprintf(f.errOut, "%s [y/N]: ", prompt)
	line, err := f.in.ReadString('\n')
	if err != nil && line == "" {
		fmt.Fprintln(f.errOut)
		return false
	}

	switch strings.ToLower(strings.TrimSpace(line)) {
	case "y", "yes":
		return true
	default:
		return false
	}
}

// parseHeaders parses repeated "Key: Value" flags
func parseHeaders(headerStrings []string) (map[string]string, error) {
	result := make(map[string]string)
	for _, h := range headerStrings {
		parts := strings.SplitN(h, ":", 2)
		if len(parts) != 2 || strings.TrimSpace(parts[0]) == "" {
			return nil, fmt.Errorf("invalid header %q (expected Key: Value)", h)
		}
		result[strings.TrimSpace(parts[0])] = strings.TrimSpace(parts[1])
	}
	return result, nil
}

// parseHeadersJSON parses a JSON object of headers. Values are stringified
// and nulls dropped. Blank input is an empty set.
func parseHeadersJSON(text string) (map[string]string, error) {
	if strings.TrimSpace(text) == "" {
		return map[string]string{}, nil
	}

	var parsed any
	if err := json.Unmarshal([]byte(text), &parsed); err != nil {
		return nil, fmt.Errorf("invalid headers: %w", err)
	}
	if _, ok := parsed.(map[string]any); !ok {
		return nil, errors.New("invalid headers: not a JSON object")
	}
	return storage.NormalizeHeaders(parsed), nil
}

// buildRequest assembles the form request from flags
func buildRequest(method, rawURL string, opts *requestOptions, defaultTimeoutMs int) (*model.RequestSpec, error) {
	headerMap, err := parseHeadersJSON(opts.headersJSON)
	if err != nil {
		return nil, err
	}

	if err := validateURL(rawURL); err != nil {
		return nil, err
	}

	flagHeaders, err := parseHeaders(opts.headers)
	if err != nil {
		return nil, err
	}
	for k, v := range flagHeaders {
		headerMap[k] = v
	}

	// Read body from file if prefixed with @
	body := opts.data
	if strings.HasPrefix(body, "@") {
		content, err := readBodyFromFile(strings.TrimPrefix(body, "@"))
		if err != nil {
			return nil, fmt.Errorf("failed to read file: %w", err)
		}
		body = content
	}

	timeoutMs := opts.timeoutMs
	if timeoutMs <= 0 {
		timeoutMs = defaultTimeoutMs
	}

	return &model.RequestSpec{
		URL:       rawURL,
		Method:    strings.ToUpper(method),
		Headers:   headerMap,
		Body:      body,
		TimeoutMs: timeoutMs,
	}, nil
}

// validateURL accepts absolute http and https URLs only
func validateURL(rawURL string) error {
	parsed, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil || parsed.Host == "" || (parsed.Scheme != "http" && parsed.Scheme != "https") {
		return fmt.Errorf("invalid URL %q: only http and https are supported", rawURL)
	}
	return nil
}

// readBodyFromFile reads file content with path validation to prevent directory traversal
func readBodyFromFile(filename string) (string, error) {
	wd, err := os.Getwd()
	if err != nil {
		return "", fmt.Errorf("failed to get working directory: %w", err)
	}

	absPath, err := filepath.Abs(filename)
	if err != nil {
		return "", fmt.Errorf("invalid file path: %w", err)
	}
	cleanPath := filepath.Clean(absPath)

	if !withinDir(cleanPath, wd) {
		return "", fmt.Errorf("access denied: file must be within current directory")
	}

	// Check for symlinks - resolve and verify target is also within working directory
	realPath, err := filepath.EvalSymlinks(cleanPath)
	if err != nil {
		if !os.IsNotExist(err) {
			return "", fmt.Errorf("failed to resolve path: %w", err)
		}
		realPath = cleanPath
	} else {
		realWd, err := filepath.EvalSymlinks(wd)
		if err != nil {
			realWd = wd
		}
		if !withinDir(realPath, realWd) {
			return "", fmt.Errorf("access denied: symlink target must be within current directory")
		}
	}

	content, err := os.ReadFile(realPath)
	if err != nil {
		return "", err
	}
	return string(content), nil
}

func withinDir(path, dir string) bool {
	return path == dir || strings.HasPrefix(path, dir+string(filepath.Separator))
}
