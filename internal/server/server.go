// Package server exposes health checks, metrics and the polyline API over HTTP.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/UnknownOlympus/pathway/internal/geometry"
	"github.com/UnknownOlympus/pathway/internal/metrics"
	"github.com/UnknownOlympus/pathway/internal/models"
	"github.com/UnknownOlympus/pathway/internal/polyline"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const (
	readTimeout     = 5 * time.Second
	writeTimeout    = 10 * time.Second
	shutdownTimeout = 5 * time.Second
	maxBodyBytes    = 1 << 20

	formatGeoJSON = "geojson"
)

// Pinger reports whether a backing store is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Server is the HTTP front of the service.
type Server struct {
	log      *slog.Logger
	pinger   Pinger
	metrics  *metrics.Metrics
	gatherer prometheus.Gatherer
	http     *http.Server
}

// New creates a server listening on the given port.
func New(log *slog.Logger, gatherer prometheus.Gatherer, pinger Pinger, m *metrics.Metrics, port int) *Server {
	srv := &Server{
		log:      log,
		pinger:   pinger,
		metrics:  m,
		gatherer: gatherer,
	}
	srv.http = &http.Server{
		Addr:         fmt.Sprintf(":%d", port),
		Handler:      srv.Handler(),
		ReadTimeout:  readTimeout,
		WriteTimeout: writeTimeout,
	}

	return srv
}

// Handler returns the routes of the server.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", s.handleHealth)
	mux.Handle("GET /metrics", promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{}))
	mux.HandleFunc("POST /v1/polyline/encode", s.handleEncode)
	mux.HandleFunc("GET /v1/polyline/decode", s.handleDecode)

	return mux
}

// Run serves until the context is cancelled and then shuts the server down gracefully.
func (s *Server) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		s.log.InfoContext(ctx, "Starting http server", "addr", s.http.Addr)
		if err := s.http.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("http server failed: %w", err)
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
	defer cancel()

	if err := s.http.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("failed to shut down http server: %w", err)
	}
	s.log.InfoContext(ctx, "Http server stopped")

	return nil
}

func (s *Server) handleHealth(writer http.ResponseWriter, req *http.Request) {
	ctx := req.Context()
	s.log.DebugContext(ctx, "Performing health checks...")

	status, body := http.StatusOK, "OK"
	if err := s.pinger.Ping(ctx); err != nil {
		s.log.WarnContext(ctx, "Database ping failed", "error", err)
		status, body = http.StatusServiceUnavailable, "DB ping failed"
	}

	writer.WriteHeader(status)
	if _, err := writer.Write([]byte(body)); err != nil {
		s.log.ErrorContext(ctx, "failed to write reply", "error", err)
	}

	s.log.DebugContext(ctx, "Health checks completed", "status", status)
}

type encodeRequest struct {
	Path models.Path `json:"path"`
}

type encodeResponse struct {
	Points string `json:"points"`
}

type decodeResponse struct {
	Path         models.Path    `json:"path"`
	LengthMeters float64        `json:"length_meters"`
	Bounds       *models.Bounds `json:"bounds,omitempty"`
}

type errorResponse struct {
	Error string `json:"error"`
}

func (s *Server) handleEncode(writer http.ResponseWriter, req *http.Request) {
	const operation = "encode"

	var body encodeRequest
	if err := json.NewDecoder(http.MaxBytesReader(writer, req.Body, maxBodyBytes)).Decode(&body); err != nil {
		s.fail(writer, req, operation, fmt.Errorf("invalid request body: %w", err))
		return
	}

	points, err := polyline.Encode(body.Path)
	if err != nil {
		s.fail(writer, req, operation, err)
		return
	}

	s.reply(writer, req, operation, encodeResponse{Points: points})
}

// handleDecode accepts either an encoded polyline in "points" or a "|"-separated location list
// in "locations", where each location is "lat,lng" or "enc:<polyline>:".
func (s *Server) handleDecode(writer http.ResponseWriter, req *http.Request) {
	const operation = "decode"

	query := req.URL.Query()

	var (
		path models.Path
		err  error
	)
	switch {
	case query.Has("locations"):
		path, err = polyline.ParseLocations(query.Get("locations"))
	case query.Has("points"):
		path, err = polyline.Decode(query.Get("points"))
	default:
		err = errors.New(`query parameter "points" or "locations" is required`)
	}
	if err != nil {
		s.fail(writer, req, operation, err)
		return
	}

	length := geometry.Length(path)

	if query.Get("format") == formatGeoJSON {
		s.reply(writer, req, operation, geometry.FeatureCollection(path, map[string]any{"length_meters": length}))
		return
	}

	resp := decodeResponse{Path: path, LengthMeters: length}
	if bounds, ok := geometry.Bounds(path); ok {
		resp.Bounds = &bounds
	}
	s.reply(writer, req, operation, resp)
}

func (s *Server) reply(writer http.ResponseWriter, req *http.Request, operation string, body any) {
	s.metrics.PolylineRequests.WithLabelValues(operation, "success").Inc()
	s.writeJSON(writer, req, http.StatusOK, body)
}

func (s *Server) fail(writer http.ResponseWriter, req *http.Request, operation string, err error) {
	s.metrics.PolylineRequests.WithLabelValues(operation, "error").Inc()
	s.log.DebugContext(req.Context(), "Rejected polyline request", "operation", operation, "error", err)
	s.writeJSON(writer, req, http.StatusBadRequest, errorResponse{Error: err.Error()})
}

// writeJSON marshals the body before the status is sent, so an unencodable body becomes a 500.
func (s *Server) writeJSON(writer http.ResponseWriter, req *http.Request, status int, body any) {
	payload, err := json.Marshal(body)
	if err != nil {
		s.log.ErrorContext(req.Context(), "failed to encode reply", "error", err)
		http.Error(writer, "failed to encode reply", http.StatusInternalServerError)
		return
	}

	writer.Header().Set("Content-Type", "application/json")
	writer.WriteHeader(status)
	if _, err = writer.Write(append(payload, '\n')); err != nil {
		s.log.ErrorContext(req.Context(), "failed to write reply", "error", err)
	}
}
