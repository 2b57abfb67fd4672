package config

import (
	"fmt"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config holds the full application configuration.
type Config struct {
	Data      DataConfig      `yaml:"data" mapstructure:"data"`
	Matcher   MatcherConfig   `yaml:"matcher" mapstructure:"matcher"`
	Proximity ProximityConfig `yaml:"proximity" mapstructure:"proximity"`
	Scoring   ScoringConfig   `yaml:"scoring" mapstructure:"scoring"`
	Report    ReportConfig    `yaml:"report" mapstructure:"report"`
	Cache     CacheConfig     `yaml:"cache" mapstructure:"cache"`
	Fetch     FetchConfig     `yaml:"fetch" mapstructure:"fetch"`
	Server    ServerConfig    `yaml:"server" mapstructure:"server"`
	Log       LogConfig       `yaml:"log" mapstructure:"log"`
}

// DataConfig locates the input datasets. Every path may also be an
// http(s) URL.
type DataConfig struct {
	Regions     RegionSourceConfig `yaml:"regions" mapstructure:"regions"`
	Income      IncomeSourceConfig `yaml:"income" mapstructure:"income"`
	Hotspots    string             `yaml:"hotspots" mapstructure:"hotspots"`
	Publicity   string             `yaml:"publicity" mapstructure:"publicity"`
	Competitors string             `yaml:"competitors" mapstructure:"competitors"`
	Manifest    string             `yaml:"manifest" mapstructure:"manifest"`
	TempDir     string             `yaml:"temp_dir" mapstructure:"temp_dir"`
}

// RegionSourceConfig describes the canonical region dataset. The field
// names are CSV headers, GeoJSON property keys, or shapefile attribute
// names depending on Format.
type RegionSourceConfig struct {
	Path        string `yaml:"path" mapstructure:"path"`
	Format      string `yaml:"format" mapstructure:"format"`
	IDField     string `yaml:"id_field" mapstructure:"id_field"`
	NameField   string `yaml:"name_field" mapstructure:"name_field"`
	CantonField string `yaml:"canton_field" mapstructure:"canton_field"`
	LonField    string `yaml:"lon_field" mapstructure:"lon_field"`
	LatField    string `yaml:"lat_field" mapstructure:"lat_field"`

	// CountryField and Country keep only rows whose country attribute
	// matches, e.g. ICC = CH. IDRanges keeps only ids inside one of the
	// inclusive ranges. Empty values disable filtering.
	CountryField string          `yaml:"country_field" mapstructure:"country_field"`
	Country      string          `yaml:"country" mapstructure:"country"`
	IDRanges     []IDRangeConfig `yaml:"id_ranges" mapstructure:"id_ranges"`
}

// IDRangeConfig is an inclusive range of region ids.
type IDRangeConfig struct {
	Min int `yaml:"min" mapstructure:"min"`
	Max int `yaml:"max" mapstructure:"max"`
}

// IncomeSourceConfig describes the headerless income table. Column indices
// are zero-based; a negative index disables the column.
type IncomeSourceConfig struct {
	Path            string `yaml:"path" mapstructure:"path"`
	Format          string `yaml:"format" mapstructure:"format"`
	Encoding        string `yaml:"encoding" mapstructure:"encoding"`
	Sheet           string `yaml:"sheet" mapstructure:"sheet"`
	SkipRows        int    `yaml:"skip_rows" mapstructure:"skip_rows"`
	IDColumn        int    `yaml:"id_column" mapstructure:"id_column"`
	NameColumn      int    `yaml:"name_column" mapstructure:"name_column"`
	TotalColumn     int    `yaml:"total_column" mapstructure:"total_column"`
	PerCapitaColumn int    `yaml:"per_capita_column" mapstructure:"per_capita_column"`
	Field           string `yaml:"field" mapstructure:"field"`
}

// MatcherConfig configures fuzzy name reconciliation.
type MatcherConfig struct {
	Threshold int    `yaml:"threshold" mapstructure:"threshold"`
	Scorer    string `yaml:"scorer" mapstructure:"scorer"`
}

// ProximityConfig configures distance-based weights.
type ProximityConfig struct {
	MaxDistance float64 `yaml:"max_distance" mapstructure:"max_distance"`
	Metric      string  `yaml:"metric" mapstructure:"metric"`
	Workers     int     `yaml:"workers" mapstructure:"workers"`
}

// ScoringConfig optionally replaces the built-in segments.
type ScoringConfig struct {
	Segments []SegmentConfig `yaml:"segments" mapstructure:"segments"`
}

// SegmentConfig defines one segment formula.
type SegmentConfig struct {
	ID          string       `yaml:"id" mapstructure:"id"`
	Label       string       `yaml:"label" mapstructure:"label"`
	Description string       `yaml:"description" mapstructure:"description"`
	Terms       []TermConfig `yaml:"terms" mapstructure:"terms"`
}

// TermConfig defines one weighted term of a segment formula.
type TermConfig struct {
	Kind   string  `yaml:"kind" mapstructure:"kind"`
	Weight float64 `yaml:"weight" mapstructure:"weight"`
	Target float64 `yaml:"target" mapstructure:"target"`
	Source string  `yaml:"source" mapstructure:"source"`
}

// ReportConfig configures ranking output.
type ReportConfig struct {
	TopK int `yaml:"top_k" mapstructure:"top_k"`
}

// CacheConfig configures the scoring result cache.
type CacheConfig struct {
	MaxEntries int `yaml:"max_entries" mapstructure:"max_entries"`
	TTLMinutes int `yaml:"ttl_minutes" mapstructure:"ttl_minutes"`
}

// FetchConfig configures downloads of remote datasets.
type FetchConfig struct {
	TimeoutSecs int     `yaml:"timeout_secs" mapstructure:"timeout_secs"`
	Attempts    int     `yaml:"attempts" mapstructure:"attempts"`
	UserAgent   string  `yaml:"user_agent" mapstructure:"user_agent"`
	RateLimit   float64 `yaml:"rate_limit" mapstructure:"rate_limit"`
	Burst       int     `yaml:"burst" mapstructure:"burst"`
}

// ServerConfig configures the HTTP API.
type ServerConfig struct {
	Port        int      `yaml:"port" mapstructure:"port"`
	CORSOrigins []string `yaml:"cors_origins" mapstructure:"cors_origins"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// Load reads configuration from file and environment.
func Load() (*Config, error) {
	v := viper.New()

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Environment
	v.SetEnvPrefix("GEOMARKET")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("data.regions.path", "data/municipalities.csv")
	v.SetDefault("data.regions.format", "")
	v.SetDefault("data.regions.id_field", "BFS-Nr")
	v.SetDefault("data.regions.name_field", "Gemeindename")
	v.SetDefault("data.regions.canton_field", "Kantonskürzel")
	v.SetDefault("data.regions.lon_field", "Longitude")
	v.SetDefault("data.regions.lat_field", "Latitude")
	v.SetDefault("data.regions.country_field", "")
	v.SetDefault("data.regions.country", "")
	v.SetDefault("data.income.path", "data/income_by_municipality.csv")
	v.SetDefault("data.income.format", "")
	v.SetDefault("data.income.encoding", "windows-1252")
	v.SetDefault("data.income.sheet", "")
	v.SetDefault("data.income.skip_rows", 6)
	v.SetDefault("data.income.id_column", 0)
	v.SetDefault("data.income.name_column", 1)
	v.SetDefault("data.income.total_column", 2)
	v.SetDefault("data.income.per_capita_column", 3)
	v.SetDefault("data.income.field", "per_capita")
	v.SetDefault("data.hotspots", "data/public_hotspots.geojson")
	v.SetDefault("data.publicity", "data/publicity_locations.geojson")
	v.SetDefault("data.competitors", "")
	v.SetDefault("data.manifest", "")
	v.SetDefault("data.temp_dir", "/tmp/geomarketing")
	v.SetDefault("matcher.threshold", 80)
	v.SetDefault("matcher.scorer", "wratio")
	v.SetDefault("proximity.max_distance", 10000.0)
	v.SetDefault("proximity.metric", "haversine")
	v.SetDefault("proximity.workers", 0)
	v.SetDefault("report.top_k", 10)
	v.SetDefault("cache.max_entries", 16)
	v.SetDefault("cache.ttl_minutes", 60)
	v.SetDefault("fetch.timeout_secs", 60)
	v.SetDefault("fetch.attempts", 3)
	v.SetDefault("fetch.user_agent", "geomarketing-cli/1.0")
	v.SetDefault("fetch.rate_limit", 2.0)
	v.SetDefault("fetch.burst", 1)
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.cors_origins", []string{"*"})
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")

	// Read config file (optional)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, eris.Wrap(err, "config: read file")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, eris.Wrap(err, "config: unmarshal")
	}

	return &cfg, nil
}

// Validate checks the configuration for the given command mode ("score",
// "serve", "check", or "match") and reports every problem at once.
func (c *Config) Validate(mode string) error {
	var errs []string

	switch mode {
	case "score", "check", "match":
	case "serve":
		if c.Server.Port <= 0 || c.Server.Port > 65535 {
			errs = append(errs, "server.port must be > 0 and <= 65535")
		}
	default:
		return eris.Errorf("config: unknown mode %q", mode)
	}

	if strings.TrimSpace(c.Data.Regions.Path) == "" {
		errs = append(errs, "data.regions.path is required")
	}
	if (c.Data.Regions.CountryField == "") != (c.Data.Regions.Country == "") {
		errs = append(errs, "data.regions.country_field and data.regions.country must be set together")
	}
	for i, r := range c.Data.Regions.IDRanges {
		if r.Min > r.Max {
			errs = append(errs, fmt.Sprintf("data.regions.id_ranges[%d]: min %d > max %d", i, r.Min, r.Max))
		}
	}

	if c.Matcher.Threshold < 0 || c.Matcher.Threshold > 100 {
		errs = append(errs, "matcher.threshold must be between 0 and 100")
	}

	if mode != "match" {
		if c.Proximity.MaxDistance <= 0 {
			errs = append(errs, "proximity.max_distance must be > 0")
		}
		if c.Proximity.Workers < 0 {
			errs = append(errs, "proximity.workers must be >= 0")
		}
		if c.Report.TopK < 1 {
			errs = append(errs, "report.top_k must be >= 1")
		}
		switch c.Data.Income.Field {
		case "", "per_capita", "total":
		default:
			errs = append(errs, fmt.Sprintf("data.income.field must be per_capita or total, got %q", c.Data.Income.Field))
		}
		if c.Data.Income.SkipRows < 0 {
			errs = append(errs, "data.income.skip_rows must be >= 0")
		}
	}

	if c.Cache.MaxEntries < 0 {
		errs = append(errs, "cache.max_entries must be >= 0")
	}
	if c.Fetch.Attempts < 0 {
		errs = append(errs, "fetch.attempts must be >= 0")
	}
	if c.Fetch.RateLimit < 0 {
		errs = append(errs, "fetch.rate_limit must be >= 0")
	}

	if len(errs) > 0 {
		return eris.Errorf("config: validation failed: %s", strings.Join(errs, "; "))
	}
	return nil
}

// InitLogger initializes the global zap logger.
func InitLogger(cfg LogConfig) error {
	var zapCfg zap.Config
	if cfg.Format == "console" {
		zapCfg = zap.NewDevelopmentConfig()
	} else {
		zapCfg = zap.NewProductionConfig()
	}

	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return eris.Wrap(err, "config: parse log level")
	}
	zapCfg.Level.SetLevel(level)

	logger, err := zapCfg.Build()
	if err != nil {
		return eris.Wrap(err, "config: build logger")
	}
	zap.ReplaceGlobals(logger)

	return nil
}
