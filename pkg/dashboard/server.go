// Package dashboard sert le dashboard HTML et l'API JSON au-dessus de la
// couche de requête. Le dataset est chargé une fois via dataset.Cache ;
// chaque requête HTTP construit son propre FilterSpec.
package dashboard

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"churn-dashboard/pkg/dataset"
	"churn-dashboard/pkg/logging"
	"churn-dashboard/pkg/metrics"
	"churn-dashboard/pkg/models"
	"churn-dashboard/pkg/query"
	"churn-dashboard/pkg/report"
	"churn-dashboard/pkg/scoring"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

// ErrDatasetUnavailable signale que le dataset n'a pas pu être chargé.
var ErrDatasetUnavailable = errors.New("dataset unavailable")

// Options regroupe les collaborateurs du serveur.
type Options struct {
	Cache    *dataset.Cache
	Model    *scoring.LogisticModel // optionnel
	Defaults models.FilterSpec
	TopLimit int
	Logger   *zap.Logger
	Metrics  *metrics.Metrics
}

// Server est un http.Handler prêt à monter.
type Server struct {
	opts   Options
	router *chi.Mux
	logger *zap.Logger
	m      *metrics.Metrics
}

// New construit le routeur et son middleware.
func New(opts Options) *Server {
	opts.Logger = logging.OrNop(opts.Logger)
	if opts.Metrics == nil {
		opts.Metrics = metrics.New()
	}
	if opts.TopLimit <= 0 {
		opts.TopLimit = query.DefaultTopLimit
	}
	s := &Server{opts: opts, logger: opts.Logger, m: opts.Metrics}

	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(s.requestLog)
	r.Use(chimw.Recoverer)

	r.Get("/", s.handleIndex)
	r.Get("/healthz", s.handleHealth)
	r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(opts.Metrics.Registry, promhttp.HandlerOpts{}))
	r.Route("/api", func(r chi.Router) {
		r.Get("/meta", s.handleMeta)
		r.Get("/customers", s.handleCustomers)
		r.Get("/summary", s.handleSummary)
		r.Get("/top", s.handleTop)
		r.Get("/risk", s.handleRisk)
	})
	s.router = r
	return s
}

// ServeHTTP implémente http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// ListenAndServe bloque jusqu'à l'annulation de ctx, puis arrête proprement.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:         addr,
		Handler:      s,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
	errc := make(chan error, 1)
	go func() {
		s.logger.Info("starting dashboard", zap.String("addr", addr))
		errc <- srv.ListenAndServe()
	}()

	select {
	case err := <-errc:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}
	s.logger.Info("shutting down dashboard")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errc; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) requestLog(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := chimw.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		s.logger.Debug("request",
			zap.String("request_id", chimw.GetReqID(r.Context())),
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", ww.Status()),
			zap.Duration("elapsed", time.Since(start)))
	})
}

// JSON écrit v avec le code status.
func JSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if v != nil {
		json.NewEncoder(w).Encode(v)
	}
}

// Error écrit une erreur JSON.
func Error(w http.ResponseWriter, status int, kind, message string) {
	JSON(w, status, map[string]any{
		"error": map[string]any{
			"message": message,
			"type":    kind,
			"code":    status,
		},
	})
}

// statusFor associe une erreur de requête à un code HTTP.
func statusFor(err error) (int, string) {
	var fe *query.InvalidFilterError
	var de *query.DataIntegrityError
	var pe *ParamError
	switch {
	case errors.Is(err, ErrDatasetUnavailable):
		return http.StatusServiceUnavailable, "dataset_unavailable"
	case errors.As(err, &pe):
		return http.StatusBadRequest, "invalid_parameter"
	case errors.As(err, &fe):
		return http.StatusBadRequest, "invalid_filter"
	case errors.As(err, &de):
		return http.StatusUnprocessableEntity, "data_integrity"
	}
	return http.StatusInternalServerError, "internal"
}

func (s *Server) fail(w http.ResponseWriter, r *http.Request, err error) {
	status, kind := statusFor(err)
	if status >= 500 {
		s.logger.Error("query failed", zap.String("path", r.URL.Path), zap.Error(err))
	} else {
		s.logger.Debug("query rejected", zap.String("path", r.URL.Path), zap.Error(err))
	}
	Error(w, status, kind, err.Error())
}

// run charge le snapshot, lit les paramètres et exécute la requête.
func (s *Server) run(r *http.Request, endpoint string) (*dataset.Snapshot, query.Result, int, error) {
	start := time.Now()
	snap, err := s.opts.Cache.Get(r.Context())
	if err != nil {
		s.m.Observe(endpoint, start, 0, err)
		return nil, query.Result{}, 0, fmt.Errorf("%w: %w", ErrDatasetUnavailable, err)
	}
	s.m.SetDatasetRows(snap.Len())
	spec, limit, err := ParseFilter(r.URL.Query(), s.opts.Defaults, s.opts.TopLimit)
	if err != nil {
		s.m.Observe(endpoint, start, 0, err)
		return snap, query.Result{}, 0, err
	}
	res, err := query.Run(snap.Records, spec, limit)
	s.m.Observe(endpoint, start, len(res.Rows), err)
	return snap, res, limit, err
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	JSON(w, http.StatusOK, map[string]any{"status": "ok"})
}

func (s *Server) handleMeta(w http.ResponseWriter, r *http.Request) {
	snap, err := s.opts.Cache.Get(r.Context())
	if err != nil {
		s.fail(w, r, fmt.Errorf("%w: %w", ErrDatasetUnavailable, err))
		return
	}
	all, err := query.Summarize(snap.Records)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	meta := map[string]any{
		"snapshot":  snap.ID.String(),
		"source":    snap.Source,
		"loaded_at": snap.LoadedAt,
		"rows":      snap.Len(),
		"headline":  report.Headline(all),
		"model":     s.opts.Model.Caption(),
	}
	JSON(w, http.StatusOK, meta)
}

func (s *Server) handleCustomers(w http.ResponseWriter, r *http.Request) {
	_, res, _, err := s.run(r, "customers")
	if err != nil {
		s.fail(w, r, err)
		return
	}
	JSON(w, http.StatusOK, map[string]any{"count": len(res.Rows), "rows": res.Rows})
}

func (s *Server) handleSummary(w http.ResponseWriter, r *http.Request) {
	_, res, _, err := s.run(r, "summary")
	if err != nil {
		s.fail(w, r, err)
		return
	}
	JSON(w, http.StatusOK, res.Summary)
}

func (s *Server) handleTop(w http.ResponseWriter, r *http.Request) {
	_, res, limit, err := s.run(r, "top")
	if err != nil {
		s.fail(w, r, err)
		return
	}
	JSON(w, http.StatusOK, map[string]any{"limit": limit, "rows": res.Top})
}

func (s *Server) handleRisk(w http.ResponseWriter, r *http.Request) {
	_, res, _, err := s.run(r, "risk")
	if err != nil {
		s.fail(w, r, err)
		return
	}
	JSON(w, http.StatusOK, res.ByRisk)
}
