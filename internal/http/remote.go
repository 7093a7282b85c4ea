package http

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/vedsharma/analyze-request/internal/helpers"
	"github.com/vedsharma/analyze-request/internal/model"
)

// remoteGrace is added to the request timeout so the proxy can report its
// own timeout before the client gives up
const remoteGrace = 5 * time.Second

// RemoteExecutor runs requests through a proxy server's /api/request endpoint
type RemoteExecutor struct {
	baseURL string
	client  *http.Client
	logger  *slog.Logger
}

// NewRemoteExecutor creates an executor for the proxy at baseURL
func NewRemoteExecutor(baseURL string, logger *slog.Logger) *RemoteExecutor {
	if logger == nil {
		logger = helpers.NewNoopLogger()
	}
	return &RemoteExecutor{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  &http.Client{},
		logger:  logger,
	}
}

// Execute posts req to the proxy and decodes its reply
func (r *RemoteExecutor) Execute(ctx context.Context, req model.RequestSpec) model.ResponseRecord {
	start := time.Now()
	elapsed := func() int64 { return time.Since(start).Milliseconds() }

	payload, err := json.Marshal(req)
	if err != nil {
		return model.NewErrorResponse(err.Error(), elapsed())
	}

	ctx, cancel := context.WithTimeout(ctx, Timeout(req)+remoteGrace)
	defer cancel()

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, r.baseURL+"/api/request", bytes.NewReader(payload))
	if err != nil {
		return model.NewErrorResponse(err.Error(), elapsed())
	}
	httpReq.Header.Set("Content-Type", "application/json")

	r.logger.Debug("forwarding request to proxy", slog.String("proxy", r.baseURL), slog.String("url", req.URL))

	resp, err := r.client.Do(httpReq)
	if err != nil {
		if ctx.Err() != nil {
			return model.NewErrorResponse("timeout", elapsed())
		}
		return model.NewErrorResponse(err.Error(), elapsed())
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, MaxResponseSize*2))
	if err != nil {
		return model.NewErrorResponse(fmt.Sprintf("Request failed (%d)", resp.StatusCode), elapsed())
	}

	var record model.ResponseRecord
	if err := json.Unmarshal(body, &record); err != nil {
		r.logger.Debug("undecodable proxy reply", slog.Int("status", resp.StatusCode), slog.Any("error", err))
		return model.NewErrorResponse(fmt.Sprintf("Request failed (%d)", resp.StatusCode), elapsed())
	}
	if !record.OK && record.Error == "" {
		record.Error = fmt.Sprintf("Request failed (%d)", resp.StatusCode)
	}

	return record.Live()
}
