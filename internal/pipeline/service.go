package pipeline

import (
	"context"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/sells-group/geomarketing-cli/internal/config"
	"github.com/sells-group/geomarketing-cli/internal/loader"
	"github.com/sells-group/geomarketing-cli/internal/scorer"
)

// Service serves run results through a read-through cache. Concurrent
// requests for the same inputs share one run.
type Service struct {
	loader   *loader.Loader
	data     config.DataConfig
	pipeline *Pipeline
	cache    *Cache
	group    singleflight.Group
}

// NewService wires a loader, a pipeline, and a cache. A nil cache disables
// caching.
func NewService(l *loader.Loader, data config.DataConfig, p *Pipeline, cache *Cache) *Service {
	if cache == nil {
		cache = NewCache(0, 0)
	}
	return &Service{loader: l, data: data, pipeline: p, cache: cache}
}

// NewServiceFromConfig builds the full service stack from cfg.
func NewServiceFromConfig(cfg *config.Config, l *loader.Loader, p *Pipeline) *Service {
	cache := NewCache(cfg.Cache.MaxEntries, time.Duration(cfg.Cache.TTLMinutes)*time.Minute)
	return NewService(l, cfg.Data, p, cache)
}

// Pipeline returns the underlying pipeline.
func (s *Service) Pipeline() *Pipeline { return s.pipeline }

// CacheStats reports cache performance.
func (s *Service) CacheStats() CacheStats { return s.cache.Stats() }

// PurgeCache drops every cached run.
func (s *Service) PurgeCache() {
	stats := s.cache.Stats()
	s.cache.Purge()
	zap.L().Info("pipeline: cache purged", zap.Int("entries", stats.Entries))
}

// Result returns the scoring result for the current inputs, running the
// pipeline only when the inputs or settings changed since the cached run.
func (s *Service) Result(ctx context.Context) (*Result, error) {
	resolved, err := s.loader.Resolve(ctx, s.data)
	if err != nil {
		return nil, err
	}

	key := CacheKey(resolved.Digest, s.pipeline.Options(), s.formulas())
	if cached := s.cache.Get(key); cached != nil {
		zap.L().Debug("pipeline: cache hit", zap.String("run_id", cached.RunID))
		return cached, nil
	}

	v, err, shared := s.group.Do(key, func() (interface{}, error) {
		ds, err := s.loader.Read(ctx, s.data, resolved)
		if err != nil {
			return nil, err
		}
		res, err := s.pipeline.Run(ctx, ds)
		if err != nil {
			return nil, err
		}
		s.cache.Put(key, res)
		return res, nil
	})
	if err != nil {
		return nil, err
	}
	if shared {
		zap.L().Debug("pipeline: shared in-flight run")
	}
	return v.(*Result), nil
}

func (s *Service) formulas() []string {
	segs := s.pipeline.Registry().Segments()
	out := make([]string, 0, len(segs))
	for _, seg := range segs {
		out = append(out, seg.ID+"|"+seg.Label+"="+seg.Formula())
	}
	return out
}

// Segments returns the segment definitions in registry order.
func (s *Service) Segments() []scorer.Segment { return s.pipeline.Registry().Segments() }
