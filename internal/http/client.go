package http

import (
	"bytes"
	"compress/gzip"
	"compress/zlib"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/andybalholm/brotli"

	"github.com/vedsharma/analyze-request/internal/helpers"
	"github.com/vedsharma/analyze-request/internal/model"
)

const (
	// MaxResponseSize limits response body to 50MB to prevent memory exhaustion
	MaxResponseSize = 50 * 1024 * 1024

	// DefaultTimeoutMs applies when a request does not set one
	DefaultTimeoutMs = 15000
)

// ErrInvalidURL is returned for anything but an absolute http(s) URL
var ErrInvalidURL = errors.New("url is required and must be http(s)")

// Client executes requests on behalf of the user
type Client struct {
	client *http.Client
	logger *slog.Logger
}

// NewClient creates a new HTTP client. Timeouts are applied per request.
func NewClient(logger *slog.Logger) *Client {
	if logger == nil {
		logger = helpers.NewNoopLogger()
	}
	return &Client{
		client: &http.Client{},
		logger: logger,
	}
}

// Timeout returns the effective timeout of req
func Timeout(req model.RequestSpec) time.Duration {
	ms := req.TimeoutMs
	if ms <= 0 {
		ms = DefaultTimeoutMs
	}
	return time.Duration(ms) * time.Millisecond
}

// Method returns the upper-cased method of req, GET when unset
func Method(req model.RequestSpec) string {
	m := strings.ToUpper(strings.TrimSpace(req.Method))
	if m == "" {
		return http.MethodGet
	}
	return m
}

func methodAllowsBody(method string) bool {
	return method != http.MethodGet && method != http.MethodHead
}

// Execute performs req and describes the outcome. It never fails: transport
// errors, timeouts and invalid input come back as the error variant.
func (c *Client) Execute(ctx context.Context, req model.RequestSpec) model.ResponseRecord {
	start := time.Now()
	elapsed := func() int64 { return time.Since(start).Milliseconds() }

	if err := c.Validate(req.URL); err != nil {
		return model.NewErrorResponse(err.Error(), elapsed())
	}

	method := Method(req)

	ctx, cancel := context.WithTimeout(ctx, Timeout(req))
	defer cancel()

	var bodyReader io.Reader
	if methodAllowsBody(method) && req.Body != "" {
		bodyReader = strings.NewReader(req.Body)
	}

	httpReq, err := http.NewRequestWithContext(ctx, method, req.URL, bodyReader)
	if err != nil {
		return model.NewErrorResponse(err.Error(), elapsed())
	}

	for key, value := range req.Headers {
		if strings.EqualFold(key, "Host") {
			httpReq.Host = value
			continue
		}
		httpReq.Header.Set(key, value)
	}

	if bodyReader != nil && httpReq.Header.Get("Content-Type") == "" {
		httpReq.Header.Set("Content-Type", "text/plain; charset=utf-8")
	}

	resp, err := c.client.Do(httpReq)
	if err != nil {
		return model.NewErrorResponse(c.describe(ctx, err), elapsed())
	}
	defer resp.Body.Close()

	respBody, err := readLimited(resp.Body)
	if err != nil {
		return model.NewErrorResponse(c.describe(ctx, err), elapsed())
	}
	if len(respBody) == MaxResponseSize {
		c.logger.Warn("response body truncated", slog.Int("limit", MaxResponseSize))
	}

	if !resp.Uncompressed {
		if encoding := resp.Header.Get("Content-Encoding"); encoding != "" {
			decoded, err := decompressBody(respBody, encoding)
			if err != nil {
				c.logger.Warn("keeping encoded body", slog.String("encoding", encoding), slog.Any("error", err))
			} else {
				respBody = decoded
			}
		}
	}

	respHeaders := make(map[string]string, len(resp.Header))
	for key, values := range resp.Header {
		respHeaders[strings.ToLower(key)] = strings.Join(values, ", ")
	}

	contentType := resp.Header.Get("Content-Type")
	bodyText := string(respBody)

	var bodyJSON any
	if strings.Contains(contentType, "application/json") {
		if err := json.Unmarshal(respBody, &bodyJSON); err != nil {
			c.logger.Debug("response is not valid JSON", slog.Any("error", err))
			bodyJSON = nil
		}
	}

	return model.ResponseRecord{
		OK:          true,
		Requested:   model.Requested{URL: req.URL, Method: method},
		Status:      resp.StatusCode,
		StatusText:  statusText(resp),
		Headers:     respHeaders,
		ContentType: contentType,
		BodyText:    bodyText,
		BodyJSON:    bodyJSON,
		DurationMs:  elapsed(),
	}
}

func (c *Client) describe(ctx context.Context, err error) string {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return "timeout"
	}
	var urlErr *url.Error
	if errors.As(err, &urlErr) && urlErr.Timeout() {
		return "timeout"
	}
	return err.Error()
}

func readLimited(r io.Reader) ([]byte, error) {
	body, err := io.ReadAll(io.LimitReader(r, MaxResponseSize+1))
	if err != nil {
		return nil, err
	}
	if len(body) > MaxResponseSize {
		body = body[:MaxResponseSize]
	}
	return body, nil
}

func statusText(resp *http.Response) string {
	text := strings.TrimSpace(strings.TrimPrefix(resp.Status, strconv.Itoa(resp.StatusCode)))
	if text == "" {
		text = http.StatusText(resp.StatusCode)
	}
	return text
}

// decompressBody decodes a body the transport left encoded
func decompressBody(body []byte, contentEncoding string) ([]byte, error) {
	contentEncoding = strings.ToLower(strings.TrimSpace(contentEncoding))

	var reader io.Reader
	switch contentEncoding {
	case "gzip", "x-gzip":
		gz, err := gzip.NewReader(bytes.NewReader(body))
		if err != nil {
			return nil, fmt.Errorf("failed to create gzip reader: %w", err)
		}
		defer gz.Close()
		reader = gz
	case "br":
		reader = brotli.NewReader(bytes.NewReader(body))
	case "deflate":
		zr, err := zlib.NewReader(bytes.NewReader(body))
		if err != nil {
			return nil, fmt.Errorf("failed to create deflate reader: %w", err)
		}
		defer zr.Close()
		reader = zr
	default:
		return body, nil
	}

	decoded, err := readLimited(reader)
	if err != nil {
		return nil, fmt.Errorf("failed to decompress %s: %w", contentEncoding, err)
	}
	return decoded, nil
}

// Validate checks the URL for potential SSRF vulnerabilities
func (c *Client) Validate(rawURL string) error {
	if strings.TrimSpace(rawURL) == "" {
		return ErrInvalidURL
	}

	parsed, err := url.Parse(rawURL)
	if err != nil {
		return ErrInvalidURL
	}

	scheme := strings.ToLower(parsed.Scheme)
	if scheme != "http" && scheme != "https" {
		return ErrInvalidURL
	}

	hostname := parsed.Hostname()
	if hostname == "" {
		return ErrInvalidURL
	}

	// Block cloud metadata endpoints (common SSRF targets)
	if isCloudMetadataEndpoint(hostname) {
		return fmt.Errorf("blocked request to cloud metadata endpoint: %s", hostname)
	}

	if scheme == "http" {
		c.logger.Info("using insecure HTTP connection", slog.String("host", hostname))
	}
	if isPrivateOrReservedHost(hostname) {
		c.logger.Warn("request to private or loopback address", slog.String("host", hostname))
	}

	return nil
}

// isPrivateOrReservedHost checks if the hostname is a private or reserved IP
func isPrivateOrReservedHost(hostname string) bool {
	if strings.EqualFold(hostname, "localhost") {
		return true
	}

	ip := net.ParseIP(hostname)
	if ip == nil {
		return false
	}
	return ip.IsLoopback() || ip.IsPrivate() || ip.IsLinkLocalUnicast() || ip.IsUnspecified()
}

// isCloudMetadataEndpoint checks if the hostname is a cloud metadata service
func isCloudMetadataEndpoint(hostname string) bool {
	metadataHosts := map[string]bool{
		"169.254.169.254":          true, // AWS, GCP, Azure metadata
		"metadata.google.internal": true, // GCP metadata
		"metadata.goog":            true, // GCP metadata alternative
		"100.100.100.200":          true, // Alibaba Cloud metadata
		"169.254.170.2":            true, // AWS ECS task metadata
		"fd00:ec2::254":            true, // AWS IPv6 metadata
	}

	return metadataHosts[strings.ToLower(hostname)]
}
