package api

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/cuemby/catena/pkg/chain"
	"github.com/cuemby/catena/pkg/log"
	"github.com/cuemby/catena/pkg/manager"
	"github.com/cuemby/catena/pkg/metrics"
	"github.com/cuemby/catena/pkg/storage"
	"github.com/cuemby/catena/pkg/types"
	"github.com/gorilla/mux"
	"github.com/rs/zerolog"
)

// Service is the orchestrator surface exposed over HTTP
type Service interface {
	CreateCloud(ctx context.Context, cloudType, name string, authentication, config map[string]any) (*types.CloudView, error)
	GetClouds(ctx context.Context, opts storage.ListOptions) ([]*types.CloudView, error)
	GetCloudTypes() []string
	GetNodeFlavours(ctx context.Context, cloudID string) ([]string, error)
	GetNetworks(ctx context.Context, cloudID string) ([]string, error)
	GetInstances(ctx context.Context, cloudID string) ([]string, error)

	CreateChain(ctx context.Context, cloudID, name string, chainConfig, cloudConfig map[string]any) (*types.ChainView, error)
	GetChains(ctx context.Context, opts storage.ListOptions) ([]*types.ChainView, error)
	GetChain(ctx context.Context, chainID string) (*types.ChainView, error)
	DeleteChain(ctx context.Context, chainID string) error

	CreateNode(ctx context.Context, chainID string, req manager.NodeRequest) (*types.NodeView, error)
	GetNodes(ctx context.Context, chainID string, opts storage.ListOptions) ([]*types.NodeView, error)
	GetNode(ctx context.Context, chainID, nodeID string) (*types.NodeView, error)
	DeleteNode(ctx context.Context, chainID, nodeID string) error

	GetBackendInfo() map[string]chain.BackendInfo
}

var _ Service = (*manager.Manager)(nil)

const apiVersionPrefix = "/v1"

// Config controls the HTTP server
type Config struct {
	Addr string
	// ReadOnly rejects every request that would change state
	ReadOnly bool
	// Health serves /health and /ready; nil serves liveness only
	Health *metrics.HealthChecker
}

// Server exposes the orchestrator as a JSON REST API under /v1
type Server struct {
	svc    Service
	cfg    Config
	router *mux.Router
	http   *http.Server
	logger zerolog.Logger
}

// NewServer creates a new API server
func NewServer(svc Service, cfg Config) *Server {
	s := &Server{
		svc:    svc,
		cfg:    cfg,
		router: mux.NewRouter(),
		logger: log.WithComponent("api"),
	}
	s.routes()
	s.http = &http.Server{
		Addr:              cfg.Addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
	return s
}

func (s *Server) routes() {
	s.router.Use(s.instrument)
	if s.cfg.ReadOnly {
		s.router.Use(ReadOnly)
	}
	s.registerHealthRoutes()

	s.router.Use(RequireJSON)

	// versioned routes stay on the root router so method mismatches reach MethodNotAllowedHandler
	v1 := func(path string, h http.HandlerFunc, method string) {
		s.router.HandleFunc(apiVersionPrefix+path, h).Methods(method)
	}

	v1("/clouds", s.handleCloudsList, http.MethodGet)
	v1("/clouds", s.handleCloudCreate, http.MethodPost)
	v1("/clouds/types", s.handleCloudTypes, http.MethodGet)
	v1("/clouds/{cloud_id}/node_flavours", s.handleCloudQuery(s.svc.GetNodeFlavours), http.MethodGet)
	v1("/clouds/{cloud_id}/networks", s.handleCloudQuery(s.svc.GetNetworks), http.MethodGet)
	v1("/clouds/{cloud_id}/instances", s.handleCloudQuery(s.svc.GetInstances), http.MethodGet)

	v1("/chains", s.handleChainsList, http.MethodGet)
	v1("/chains", s.handleChainCreate, http.MethodPost)
	v1("/chains/{chain_id}", s.handleChainGet, http.MethodGet)
	v1("/chains/{chain_id}", s.handleChainDelete, http.MethodDelete)

	v1("/chains/{chain_id}/nodes", s.handleNodesList, http.MethodGet)
	v1("/chains/{chain_id}/nodes", s.handleNodeCreate, http.MethodPost)
	v1("/chains/{chain_id}/nodes/{node_id}", s.handleNodeGet, http.MethodGet)
	v1("/chains/{chain_id}/nodes/{node_id}", s.handleNodeDelete, http.MethodDelete)

	v1("/backends", s.handleBackends, http.MethodGet)

	s.router.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusNotFound, errorBody{Error: "resource not found"})
	})
	s.router.MethodNotAllowedHandler = http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusMethodNotAllowed, errorBody{Error: "method not allowed"})
	})
}

// Handler returns the router for embedding in other servers
func (s *Server) Handler() http.Handler {
	return s.router
}

// Start serves until Shutdown is called
func (s *Server) Start() error {
	s.logger.Info().Str("addr", s.cfg.Addr).Bool("read_only", s.cfg.ReadOnly).Msg("REST API listening")
	if err := s.http.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown stops accepting requests and waits for in-flight ones
func (s *Server) Shutdown(ctx context.Context) error {
	return s.http.Shutdown(ctx)
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

// instrument logs each request and records it in the API metrics under its
// route template
func (s *Server) instrument(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		timer := metrics.NewTimer()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)

		route := "unmatched"
		if current := mux.CurrentRoute(r); current != nil {
			if tpl, err := current.GetPathTemplate(); err == nil {
				route = tpl
			}
		}
		metrics.APIRequestsTotal.WithLabelValues(route, r.Method, strconv.Itoa(rec.status)).Inc()
		timer.ObserveDurationVec(metrics.APIRequestDuration, route, r.Method)

		s.logger.Debug().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", rec.status).
			Dur("duration", timer.Duration()).
			Msg("Request served")
	})
}
