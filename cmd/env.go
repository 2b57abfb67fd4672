package main

import (
	"time"

	"golang.org/x/time/rate"

	"github.com/sells-group/geomarketing-cli/internal/config"
	"github.com/sells-group/geomarketing-cli/internal/fetcher"
	"github.com/sells-group/geomarketing-cli/internal/loader"
	"github.com/sells-group/geomarketing-cli/internal/pipeline"
	"github.com/sells-group/geomarketing-cli/internal/scorer"
)

// newLoader builds a loader whose remote sources are mirrored through the
// rate-limited HTTP client.
func newLoader(c *config.Config) *loader.Loader {
	f := fetcher.NewClient(fetcher.Options{
		UserAgent: c.Fetch.UserAgent,
		Timeout:   time.Duration(c.Fetch.TimeoutSecs) * time.Second,
		Attempts:  c.Fetch.Attempts,
		Rate:      rate.Limit(c.Fetch.RateLimit),
		Burst:     c.Fetch.Burst,
	})
	return loader.New(f, c.Data.TempDir)
}

// newService wires loader, pipeline, and cache from configuration.
func newService(c *config.Config) (*pipeline.Service, error) {
	opts, err := pipeline.OptionsFromConfig(c)
	if err != nil {
		return nil, err
	}
	reg, err := scorer.RegistryFromConfig(c.Scoring)
	if err != nil {
		return nil, err
	}
	return pipeline.NewServiceFromConfig(c, newLoader(c), pipeline.New(reg, opts)), nil
}
