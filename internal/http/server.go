package httpserver

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/lutefd/draftpoints-api/internal/auth"
	"github.com/lutefd/draftpoints-api/internal/domain/points"
	"github.com/lutefd/draftpoints-api/internal/domain/stats"
	"github.com/lutefd/draftpoints-api/internal/events"
	"github.com/lutefd/draftpoints-api/internal/metrics"
	"github.com/lutefd/draftpoints-api/internal/pointscache"
	"github.com/lutefd/draftpoints-api/internal/projections"
	"github.com/lutefd/draftpoints-api/internal/recompute"
	"github.com/lutefd/draftpoints-api/internal/rules"
	"go.uber.org/zap"
)

// Store is the read side the handlers query directly.
type Store interface {
	Ping(ctx context.Context) error
	GetStatRecord(ctx context.Context, playerID string, source stats.ProjectionSource) (stats.StatRecord, error)
	ListRanked(ctx context.Context, ruleName string, source stats.ProjectionSource, position string, limit int) ([]points.Ranked, error)
}

type Publisher interface {
	Publish(ctx context.Context, e events.Event) error
}

type Dependencies struct {
	Store          Store
	Rules          *rules.Service
	Cache          *pointscache.Cache
	Engine         *recompute.Engine
	Projections    *projections.Service
	Bus            Publisher
	APIToken       string
	AllowedOrigins []string
	Logger         *zap.Logger
}

type Server struct {
	store       Store
	rules       *rules.Service
	cache       *pointscache.Cache
	engine      *recompute.Engine
	projections *projections.Service
	bus         Publisher
	auth        auth.Middleware
	origins     []string
	logger      *zap.Logger
}

func NewServer(deps Dependencies) *Server {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	origins := deps.AllowedOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}
	return &Server{
		store:       deps.Store,
		rules:       deps.Rules,
		cache:       deps.Cache,
		engine:      deps.Engine,
		projections: deps.Projections,
		bus:         deps.Bus,
		auth:        auth.NewMiddleware(deps.APIToken),
		origins:     origins,
		logger:      logger,
	}
}

func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(s.loggingMiddleware)
	r.Use(chimiddleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: s.origins,
		AllowedMethods: []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Authorization", "Content-Type"},
		MaxAge:         300,
	}))

	r.Get("/healthz", s.handleHealth)

	r.Route("/v1", func(r chi.Router) {
		r.Use(s.auth.Guard)

		r.Get("/scoring-rules", s.handleListRules)
		r.Post("/scoring-rules", s.handleCreateRule)
		r.Get("/scoring-rules/default", s.handleDefaultRule)
		r.Get("/scoring-rules/{name}", s.handleGetRule)
		r.Post("/scoring-rules/{name}/recompute", s.handleStartRecompute)

		r.Get("/recompute/runs", s.handleListRuns)
		r.Get("/recompute/runs/{id}", s.handleGetRun)
		r.Delete("/recompute/runs/{id}", s.handleCancelRun)
		r.Get("/recompute/runs/{id}/stream", s.handleStreamRun)

		r.Post("/stats/import", s.handleImportStats)
		r.Put("/stats/{playerId}/my-projection", s.handleSaveMyProjection)

		r.Get("/points", s.handleGetPoints)
		r.Get("/points/leaderboard", s.handleLeaderboard)
	})

	return r
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()
	if err := s.store.Ping(ctx); err != nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "degraded", "error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := chimiddleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		sample := metrics.RequestSample{
			Path:      r.URL.Path,
			Method:    r.Method,
			Status:    status,
			Latency:   time.Since(start),
			Timestamp: start.UTC(),
		}
		fields := append(sample.Fields(), zap.String("request_id", chimiddleware.GetReqID(r.Context())))
		if sample.Status >= http.StatusInternalServerError {
			s.logger.Warn("request", fields...)
			return
		}
		s.logger.Debug("request", fields...)
	})
}
