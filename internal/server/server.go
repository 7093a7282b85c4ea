package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	apihttp "github.com/vedsharma/analyze-request/internal/http"
	"github.com/vedsharma/analyze-request/internal/helpers"
	"github.com/vedsharma/analyze-request/internal/model"
	"github.com/vedsharma/analyze-request/internal/storage"
)

// MaxRequestBody limits the size of an /api/request payload
const MaxRequestBody = 1 << 20

// maxTimeoutMs caps client supplied timeouts at one day
const maxTimeoutMs = 24 * 60 * 60 * 1000

const shutdownTimeout = 10 * time.Second

// Server is the stateless proxy in front of the request executor
type Server struct {
	client *apihttp.Client
	logger *slog.Logger
	router chi.Router
}

// New creates a server executing requests with client
func New(client *apihttp.Client, logger *slog.Logger) *Server {
	if logger == nil {
		logger = helpers.NewNoopLogger()
	}

	s := &Server{client: client, logger: logger}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(s.loggingMiddleware)
	r.Use(middleware.Recoverer)

	r.Post("/api/request", s.handleRequest)
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	s.router = r
	return s
}

// Handler returns the root handler
func (s *Server) Handler() http.Handler {
	return s.router
}

// ListenAndServe serves on addr until ctx is cancelled, then shuts down
// gracefully
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("server listening", slog.String("addr", addr))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	s.logger.Info("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("error during shutdown: %w", err)
	}
	return nil
}

// loggingMiddleware logs every request once it completes
func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()

		next.ServeHTTP(ww, r)

		s.logger.Info("request",
			slog.String("method", r.Method),
			slog.String("path", r.URL.Path),
			slog.Int("status", ww.Status()),
			slog.Duration("duration", time.Since(start)),
			slog.String("request_id", middleware.GetReqID(r.Context())),
		)
	})
}

// proxyPayload is the loosely typed body of /api/request
type proxyPayload struct {
	URL       any `json:"url"`
	Method    any `json:"method"`
	Headers   any `json:"headers"`
	Body      any `json:"body"`
	TimeoutMs any `json:"timeoutMs"`
}

func (s *Server) handleRequest(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	elapsed := func() int64 { return time.Since(start).Milliseconds() }

	r.Body = http.MaxBytesReader(w, r.Body, MaxRequestBody)

	var payload proxyPayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		writeJSON(w, http.StatusBadRequest, model.NewErrorResponse("invalid request body", elapsed()))
		return
	}

	req, err := toRequestSpec(payload)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, model.NewErrorResponse(err.Error(), elapsed()))
		return
	}

	if err := s.client.Validate(req.URL); err != nil {
		writeJSON(w, http.StatusBadRequest, model.NewErrorResponse(err.Error(), elapsed()))
		return
	}

	res := s.client.Execute(r.Context(), req)
	res.DurationMs = elapsed()

	status := http.StatusOK
	if !res.OK {
		status = http.StatusInternalServerError
		s.logger.Warn("proxied request failed", slog.String("url", req.URL), slog.String("error", res.Error))
	}
	writeJSON(w, status, res)
}

func toRequestSpec(p proxyPayload) (model.RequestSpec, error) {
	rawURL, _ := p.URL.(string)
	if rawURL == "" {
		return model.RequestSpec{}, apihttp.ErrInvalidURL
	}

	method, _ := p.Method.(string)
	method = apihttp.Method(model.RequestSpec{Method: method})

	headers := map[string]string{}
	if p.Headers != nil {
		if _, ok := p.Headers.(map[string]any); !ok {
			return model.RequestSpec{}, errors.New("headers must be an object")
		}
		headers = storage.NormalizeHeaders(p.Headers)
	}

	timeoutMs := apihttp.DefaultTimeoutMs
	if n, ok := number(p.TimeoutMs); ok {
		timeoutMs = int(math.Min(maxTimeoutMs, math.Max(1, n)))
	}

	body := ""
	switch v := p.Body.(type) {
	case nil:
	case string:
		body = v
	default:
		data, err := json.Marshal(v)
		if err != nil {
			return model.RequestSpec{}, fmt.Errorf("invalid body: %w", err)
		}
		body = string(data)
		if method != http.MethodGet && method != http.MethodHead && !hasHeader(headers, "Content-Type") {
			headers["Content-Type"] = "application/json; charset=utf-8"
		}
	}

	return model.RequestSpec{
		URL:       rawURL,
		Method:    method,
		Headers:   headers,
		Body:      body,
		TimeoutMs: timeoutMs,
	}, nil
}

func number(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, !math.IsNaN(n) && !math.IsInf(n, 0)
	case string:
		if strings.TrimSpace(n) == "" {
			return 0, false
		}
		f, err := strconv.ParseFloat(strings.TrimSpace(n), 64)
		if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
			return 0, false
		}
		return f, true
	}
	return 0, false
}

func hasHeader(headers map[string]string, name string) bool {
	for k := range headers {
		if strings.EqualFold(k, name) {
			return true
		}
	}
	return false
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
