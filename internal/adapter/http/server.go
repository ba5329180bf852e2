package http

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/couchcryptid/service-match/internal/discovery"
	"github.com/couchcryptid/service-match/internal/domain"
	sharedobs "github.com/couchcryptid/storm-data-shared/observability"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const maxBodyBytes = 1 << 20

// Discoverer runs discovery requests. *discovery.Session implements it.
type Discoverer interface {
	Discover(ctx context.Context, candidates []domain.ProviderCandidate, f discovery.Filters, o discovery.Options) (discovery.Report, error)
}

// Locator exposes the position provider. *position.Provider implements it.
type Locator interface {
	GetCurrentPosition(ctx context.Context) (domain.Location, error)
	SetManualLocation(ctx context.Context, coords domain.Coordinates) (domain.Location, error)
	CheckPermission(ctx context.Context) domain.PermissionState
}

// Server exposes the matching API plus health, readiness, and metrics
// endpoints.
type Server struct {
	httpServer *http.Server
	discoverer Discoverer
	locator    Locator
	pool       []domain.ProviderCandidate
	logger     *slog.Logger
}

// Option configures optional routes.
type Option func(*Server)

// WithLocator enables the /v1/location routes.
func WithLocator(l Locator) Option {
	return func(s *Server) { s.locator = l }
}

// WithCandidatePool enables GET /v1/matches over a fixed candidate set.
func WithCandidatePool(pool []domain.ProviderCandidate) Option {
	return func(s *Server) { s.pool = pool }
}

// NewServer creates an HTTP server with /healthz, /readyz, /metrics and the
// /v1 matching routes.
func NewServer(addr string, d Discoverer, ready sharedobs.ReadinessChecker, logger *slog.Logger, opts ...Option) *Server {
	mux := http.NewServeMux()

	s := &Server{
		httpServer: &http.Server{
			Addr:         addr,
			Handler:      mux,
			ReadTimeout:  10 * time.Second,
			WriteTimeout: 30 * time.Second,
			IdleTimeout:  60 * time.Second,
		},
		discoverer: d,
		logger:     logger,
	}
	for _, o := range opts {
		o(s)
	}

	mux.HandleFunc("GET /healthz", sharedobs.LivenessHandler())
	mux.HandleFunc("GET /readyz", sharedobs.ReadinessHandler(ready))
	mux.Handle("GET /metrics", promhttp.Handler())

	mux.HandleFunc("POST /v1/discover", s.handleDiscover)
	if s.pool != nil {
		mux.HandleFunc("GET /v1/matches", s.handleMatches)
	}
	if s.locator != nil {
		mux.HandleFunc("GET /v1/location", s.handleGetLocation)
		mux.HandleFunc("PUT /v1/location", s.handleSetLocation)
		mux.HandleFunc("GET /v1/location/permission", s.handlePermission)
	}

	return s
}

// Start begins listening. Returns http.ErrServerClosed on graceful shutdown.
func (s *Server) Start() error {
	s.logger.Info("http server starting", "addr", s.httpServer.Addr)
	return s.httpServer.ListenAndServe()
}

// Shutdown gracefully drains connections within the given context deadline.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

// ServeHTTP delegates to the underlying handler, useful for testing.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.httpServer.Handler.ServeHTTP(w, r)
}

type discoverRequest struct {
	Candidates []domain.ProviderCandidate `json:"candidates"`
	Filters    discovery.Filters          `json:"filters"`
	Options    discovery.Options          `json:"options"`
}

func (s *Server) handleDiscover(w http.ResponseWriter, r *http.Request) {
	var req discoverRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	s.discover(w, r, req.Candidates, req.Filters, req.Options)
}

func (s *Server) handleMatches(w http.ResponseWriter, r *http.Request) {
	f, o, err := parseMatchQuery(r.URL.Query())
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	s.discover(w, r, s.pool, f, o)
}

func (s *Server) discover(w http.ResponseWriter, r *http.Request, candidates []domain.ProviderCandidate, f discovery.Filters, o discovery.Options) {
	report, err := s.discoverer.Discover(r.Context(), candidates, f, o)
	if err != nil {
		status := statusFor(r.Context(), err)
		if status >= http.StatusInternalServerError {
			s.logger.Error("discover request failed", "error", err, "status", status)
		}
		writeError(w, status, err)
		return
	}
	if report.Results == nil {
		report.Results = []domain.MatchResult{}
	}
	sharedobs.WriteJSON(w, http.StatusOK, report)
}

func (s *Server) handleGetLocation(w http.ResponseWriter, r *http.Request) {
	loc, err := s.locator.GetCurrentPosition(r.Context())
	if err != nil {
		writeError(w, statusFor(r.Context(), err), err)
		return
	}
	sharedobs.WriteJSON(w, http.StatusOK, loc)
}

func (s *Server) handleSetLocation(w http.ResponseWriter, r *http.Request) {
	var coords domain.Coordinates
	if err := decodeJSON(w, r, &coords); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	loc, err := s.locator.SetManualLocation(r.Context(), coords)
	if err != nil {
		writeError(w, statusFor(r.Context(), err), err)
		return
	}
	sharedobs.WriteJSON(w, http.StatusOK, loc)
}

func (s *Server) handlePermission(w http.ResponseWriter, r *http.Request) {
	sharedobs.WriteJSON(w, http.StatusOK, s.locator.CheckPermission(r.Context()))
}

func decodeJSON(w http.ResponseWriter, r *http.Request, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("%w: %w", errMalformedBody, err)
	}
	return nil
}

var errMalformedBody = errors.New("malformed request body")

// statusFor maps domain errors to HTTP status codes. A request whose own
// context has ended is a timeout whatever the wrapped error says.
func statusFor(ctx context.Context, err error) int {
	switch {
	case errors.Is(err, domain.ErrInvalidCandidate),
		errors.Is(err, domain.ErrInvalidCoordinates),
		errors.Is(err, discovery.ErrInvalidFilters):
		return http.StatusBadRequest
	case ctx.Err() != nil:
		return http.StatusGatewayTimeout
	case errors.Is(err, discovery.ErrDiscoveryFailed),
		errors.Is(err, domain.ErrNoLocationAvailable):
		return http.StatusServiceUnavailable
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

func writeError(w http.ResponseWriter, status int, err error) {
	sharedobs.WriteJSON(w, status, map[string]string{"error": err.Error()})
}
