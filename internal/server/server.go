// Package server exposes scoring results over HTTP.
package server

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.uber.org/zap"

	"github.com/sells-group/geomarketing-cli/internal/model"
	"github.com/sells-group/geomarketing-cli/internal/pipeline"
	"github.com/sells-group/geomarketing-cli/internal/report"
	"github.com/sells-group/geomarketing-cli/internal/scorer"
)

// maxTopK bounds the k query parameter.
const maxTopK = 1000

// ResultSource produces scoring results, typically a *pipeline.Service.
type ResultSource interface {
	Result(ctx context.Context) (*pipeline.Result, error)
	Segments() []scorer.Segment
	CacheStats() pipeline.CacheStats
	PurgeCache()
}

// Options configures the HTTP API.
type Options struct {
	TopK        int
	IncomeField model.IncomeField
	CORSOrigins []string
}

// Server holds the API handlers.
type Server struct {
	source ResultSource
	opts   Options
}

// New creates a Server.
func New(source ResultSource, opts Options) *Server {
	if opts.TopK <= 0 {
		opts.TopK = scorer.DefaultTopK
	}
	if opts.IncomeField == "" {
		opts.IncomeField = model.IncomePerCapita
	}
	return &Server{source: source, opts: opts}
}

// Handler returns the routed API.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(requestLogger)

	origins := s.opts.CORSOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{http.MethodGet, http.MethodDelete, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Content-Type"},
		MaxAge:         300,
	}))

	r.Get("/health", s.handleHealth)
	r.Route("/api", func(r chi.Router) {
		r.Get("/segments", s.handleSegments)
		r.Get("/statistics", s.handleStatistics)
		r.Get("/regions", s.handleRegions)
		r.Get("/regions/{id}", s.handleRegion)
		r.Get("/diagnostics", s.handleDiagnostics)
		r.Delete("/cache", s.handlePurgeCache)
	})
	return r
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleSegments(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, report.DescribeSegments(s.source.Segments()))
}

// handleStatistics returns {label: [{name, weight}]}. The optional segment
// parameter (ID or label) narrows the response to one ranking.
func (s *Server) handleStatistics(w http.ResponseWriter, r *http.Request) {
	k := s.opts.TopK
	if raw := r.URL.Query().Get("k"); raw != "" {
		v, err := strconv.Atoi(raw)
		if err != nil || v < 1 || v > maxTopK {
			writeError(w, http.StatusBadRequest, "k must be an integer between 1 and "+strconv.Itoa(maxTopK))
			return
		}
		k = v
	}

	res, ok := s.result(w, r)
	if !ok {
		return
	}

	segments := res.Segments
	if key := strings.TrimSpace(r.URL.Query().Get("segment")); key != "" {
		reg, err := scorer.NewRegistry(res.Segments...)
		if err != nil {
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
		seg, found := reg.Lookup(key)
		if !found {
			writeError(w, http.StatusNotFound, "unknown segment "+strconv.Quote(key))
			return
		}
		segments = []scorer.Segment{seg}
	}

	writeJSON(w, http.StatusOK, scorer.Statistics(res.Regions, segments, k))
}

func (s *Server) handleRegions(w http.ResponseWriter, r *http.Request) {
	res, ok := s.result(w, r)
	if !ok {
		return
	}

	writeGeoJSON(w, report.FeatureCollection(res.Regions, res.Segments, s.opts.IncomeField))
}

func (s *Server) handleRegion(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	res, ok := s.result(w, r)
	if !ok {
		return
	}
	for i := range res.Regions {
		if res.Regions[i].ID == id {
			writeGeoJSON(w, report.Feature(res.Regions[i], res.Segments, s.opts.IncomeField))
			return
		}
	}
	writeError(w, http.StatusNotFound, "unknown region "+strconv.Quote(id))
}

func (s *Server) handleDiagnostics(w http.ResponseWriter, r *http.Request) {
	res, ok := s.result(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"run_id":      res.RunID,
		"digest":      res.Digest,
		"created_at":  res.CreatedAt,
		"diagnostics": res.Diagnostics,
		"stages":      res.Stages,
		"cache":       s.source.CacheStats(),
	})
}

// handlePurgeCache drops every cached run so the next request rescores.
func (s *Server) handlePurgeCache(w http.ResponseWriter, _ *http.Request) {
	s.source.PurgeCache()
	writeJSON(w, http.StatusOK, s.source.CacheStats())
}

// result fetches the current run. On failure it writes a 500 and returns
// false; partial results are never served.
func (s *Server) result(w http.ResponseWriter, r *http.Request) (*pipeline.Result, bool) {
	res, err := s.source.Result(r.Context())
	if err != nil {
		zap.L().Error("server: scoring run failed",
			zap.String("path", r.URL.Path),
			zap.Error(err),
		)
		writeError(w, http.StatusInternalServerError, err.Error())
		return nil, false
	}
	return res, true
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		zap.L().Warn("server: write response", zap.Error(err))
	}
}

func writeGeoJSON(w http.ResponseWriter, v interface{}) {
	data, err := json.Marshal(v)
	if err != nil {
		zap.L().Error("server: encode geojson", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "encode geojson failed")
		return
	}
	w.Header().Set("Content-Type", "application/geo+json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		zap.L().Debug("server: request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", ww.Status()),
			zap.Int64("duration_ms", time.Since(start).Milliseconds()),
			zap.String("request_id", middleware.GetReqID(r.Context())),
		)
	})
}
