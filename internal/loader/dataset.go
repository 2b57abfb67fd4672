package loader

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"io"
	"os"
	"sort"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/geomarketing-cli/internal/config"
	"github.com/sells-group/geomarketing-cli/internal/fetcher"
	"github.com/sells-group/geomarketing-cli/internal/merge"
	"github.com/sells-group/geomarketing-cli/internal/model"
)

// Dataset is every input of one scoring run, read from local files.
type Dataset struct {
	Regions []model.Region
	Income  []merge.RawRecord
	Sets    []model.PointOfInterestSet
	// Sources maps a logical input name to the local path it was read from.
	Sources map[string]string
	// Digest is a SHA-256 over the contents of every source file.
	Digest string
}

// Set returns the named point set.
func (d *Dataset) Set(name string) (model.PointOfInterestSet, bool) {
	for _, s := range d.Sets {
		if strings.EqualFold(s.Name, name) {
			return s, true
		}
	}
	return model.PointOfInterestSet{}, false
}

// Loader resolves configured sources, downloading remote ones, and reads
// them into a Dataset.
type Loader struct {
	fetcher fetcher.Fetcher
	tempDir string
}

// New creates a Loader. f may be nil when every source is local.
func New(f fetcher.Fetcher, tempDir string) *Loader {
	if tempDir == "" {
		tempDir = os.TempDir()
	}
	return &Loader{fetcher: f, tempDir: tempDir}
}

// Source is one configured input file.
type Source struct {
	Name     string `json:"name"`
	Path     string `json:"path"`
	Format   string `json:"format,omitempty"`
	Category string `json:"category,omitempty"`
	Required bool   `json:"required"`
}

// Sources lists the inputs named by cfg, including manifest point sets.
func Sources(cfg config.DataConfig) ([]Source, error) {
	srcs := []Source{
		{Name: "regions", Path: cfg.Regions.Path, Format: cfg.Regions.Format, Required: true},
		{Name: "income", Path: cfg.Income.Path, Format: cfg.Income.Format, Required: true},
	}
	if cfg.Hotspots != "" {
		srcs = append(srcs, Source{Name: model.SetHotspots, Path: cfg.Hotspots, Required: true})
	}
	if cfg.Publicity != "" {
		srcs = append(srcs, Source{Name: model.SetPublicity, Path: cfg.Publicity, Required: true})
	}
	if cfg.Competitors != "" {
		srcs = append(srcs, Source{Name: model.SetCompetitors, Path: cfg.Competitors, Format: competitorFormat(cfg.Competitors)})
	}

	if cfg.Manifest != "" {
		m, err := ReadManifest(cfg.Manifest)
		if err != nil {
			return nil, err
		}
		for _, s := range m.Sets {
			srcs = append(srcs, Source{Name: s.Name, Path: s.Path, Format: s.Format, Category: s.Category})
		}
	}
	return srcs, nil
}

// competitorFormat treats plain .json competitor files as Places exports.
func competitorFormat(path string) string {
	if strings.HasSuffix(strings.ToLower(path), ".geojson") {
		return FormatGeoJSON
	}
	return FormatPlaces
}

// Missing returns the local sources that do not exist. Remote sources are
// not checked.
func Missing(srcs []Source) []Source {
	var missing []Source
	for _, s := range srcs {
		if fetcher.IsRemote(s.Path) {
			continue
		}
		if _, err := os.Stat(s.Path); err != nil {
			missing = append(missing, s)
		}
	}
	return missing
}

// Resolved is the set of configured sources mapped to local files, with a
// digest of their contents. It is cheap compared to parsing.
type Resolved struct {
	Sources []Source
	// Local maps a source name to the local path it will be read from.
	Local  map[string]string
	Digest string
}

// Resolve checks that local sources exist, downloads remote ones, and
// hashes every file.
func (l *Loader) Resolve(ctx context.Context, cfg config.DataConfig) (*Resolved, error) {
	srcs, err := Sources(cfg)
	if err != nil {
		return nil, err
	}
	var names []string
	skip := make(map[string]bool)
	for _, m := range Missing(srcs) {
		if !m.Required {
			zap.L().Warn("loader: optional source missing, skipped",
				zap.String("source", m.Name),
				zap.String("path", m.Path),
			)
			skip[m.Name] = true
			continue
		}
		names = append(names, m.Name+"="+m.Path)
	}
	if len(names) > 0 {
		return nil, eris.Errorf("loader: missing data files: %s", strings.Join(names, ", "))
	}
	if len(skip) > 0 {
		kept := srcs[:0]
		for _, s := range srcs {
			if !skip[s.Name] {
				kept = append(kept, s)
			}
		}
		srcs = kept
	}

	res := &Resolved{Sources: srcs, Local: make(map[string]string, len(srcs))}
	for _, src := range srcs {
		local, err := fetcher.Localize(ctx, l.fetcher, src.Path, l.tempDir)
		if err != nil {
			return nil, eris.Wrapf(err, "loader: resolve %s", src.Name)
		}
		res.Local[src.Name] = local
	}

	res.Digest, err = digestFiles(res.Local)
	if err != nil {
		return nil, err
	}
	return res, nil
}

// Load resolves and reads every source named by cfg.
func (l *Loader) Load(ctx context.Context, cfg config.DataConfig) (*Dataset, error) {
	res, err := l.Resolve(ctx, cfg)
	if err != nil {
		return nil, err
	}
	return l.Read(ctx, cfg, res)
}

// Read parses resolved sources into a Dataset.
func (l *Loader) Read(ctx context.Context, cfg config.DataConfig, res *Resolved) (*Dataset, error) {
	ds := &Dataset{Sources: res.Local, Digest: res.Digest}
	for _, src := range res.Sources {
		local := res.Local[src.Name]

		var err error
		switch src.Name {
		case "regions":
			ds.Regions, err = LoadRegions(ctx, local, regionOptions(cfg, src.Format, l.tempDir))
		case "income":
			ds.Income, err = LoadIncome(ctx, local, incomeOptions(cfg, src.Format))
		default:
			var set model.PointOfInterestSet
			set, err = LoadPOIs(ctx, src.Name, local, src.Format)
			if src.Category != "" {
				for i := range set.Points {
					if set.Points[i].Category == "" {
						set.Points[i].Category = src.Category
					}
				}
			}
			ds.Sets = append(ds.Sets, set)
		}
		if err != nil {
			return nil, err
		}
	}

	zap.L().Info("loader: dataset ready",
		zap.Int("regions", len(ds.Regions)),
		zap.Int("income_records", len(ds.Income)),
		zap.Int("point_sets", len(ds.Sets)),
		zap.String("digest", shortDigest(ds.Digest)),
	)
	return ds, nil
}

// Regions resolves and reads only the region source.
func (l *Loader) Regions(ctx context.Context, cfg config.DataConfig) ([]model.Region, error) {
	local, err := fetcher.Localize(ctx, l.fetcher, cfg.Regions.Path, l.tempDir)
	if err != nil {
		return nil, eris.Wrap(err, "loader: resolve regions")
	}
	return LoadRegions(ctx, local, regionOptions(cfg, cfg.Regions.Format, l.tempDir))
}

// SourceStatus reports whether one source exists and how many records it
// yields.
type SourceStatus struct {
	Source
	Exists bool   `json:"exists"`
	Count  int    `json:"count"`
	Error  string `json:"error,omitempty"`
}

// OK reports whether the source is usable. Missing optional sources are OK.
func (s SourceStatus) OK() bool {
	if !s.Exists {
		return !s.Required
	}
	return s.Error == ""
}

// Inspect loads each configured source independently and reports its
// status. Failures are recorded per source, not returned.
func (l *Loader) Inspect(ctx context.Context, cfg config.DataConfig) ([]SourceStatus, error) {
	srcs, err := Sources(cfg)
	if err != nil {
		return nil, err
	}

	missing := make(map[string]bool)
	for _, m := range Missing(srcs) {
		missing[m.Name] = true
	}

	out := make([]SourceStatus, 0, len(srcs))
	for _, src := range srcs {
		st := SourceStatus{Source: src, Exists: !missing[src.Name]}
		if st.Exists {
			st.Count, err = l.count(ctx, cfg, src)
			if err != nil {
				st.Error = err.Error()
			}
		}
		out = append(out, st)
	}
	return out, nil
}

func (l *Loader) count(ctx context.Context, cfg config.DataConfig, src Source) (int, error) {
	local, err := fetcher.Localize(ctx, l.fetcher, src.Path, l.tempDir)
	if err != nil {
		return 0, err
	}
	switch src.Name {
	case "regions":
		regions, err := LoadRegions(ctx, local, regionOptions(cfg, src.Format, l.tempDir))
		return len(regions), err
	case "income":
		recs, err := LoadIncome(ctx, local, incomeOptions(cfg, src.Format))
		return len(recs), err
	default:
		set, err := LoadPOIs(ctx, src.Name, local, src.Format)
		return set.Len(), err
	}
}

func regionOptions(cfg config.DataConfig, format, tempDir string) RegionOptions {
	ranges := make([]IDRange, 0, len(cfg.Regions.IDRanges))
	for _, r := range cfg.Regions.IDRanges {
		ranges = append(ranges, IDRange{Min: r.Min, Max: r.Max})
	}
	return RegionOptions{
		Format:       format,
		IDField:      cfg.Regions.IDField,
		NameField:    cfg.Regions.NameField,
		CantonField:  cfg.Regions.CantonField,
		LonField:     cfg.Regions.LonField,
		LatField:     cfg.Regions.LatField,
		CountryField: cfg.Regions.CountryField,
		Country:      cfg.Regions.Country,
		IDRanges:     ranges,
		TempDir:      tempDir,
	}
}

func incomeOptions(cfg config.DataConfig, format string) IncomeOptions {
	return IncomeOptions{
		Format:          format,
		Encoding:        cfg.Income.Encoding,
		Sheet:           cfg.Income.Sheet,
		SkipRows:        cfg.Income.SkipRows,
		IDColumn:        cfg.Income.IDColumn,
		NameColumn:      cfg.Income.NameColumn,
		TotalColumn:     cfg.Income.TotalColumn,
		PerCapitaColumn: cfg.Income.PerCapitaColumn,
	}
}

func shortDigest(d string) string {
	if len(d) > 12 {
		return d[:12]
	}
	return d
}

// digestFiles hashes source names and file contents in name order.
func digestFiles(sources map[string]string) (string, error) {
	names := make([]string, 0, len(sources))
	for n := range sources {
		names = append(names, n)
	}
	sort.Strings(names)

	h := sha256.New()
	for _, n := range names {
		_, _ = io.WriteString(h, n+"\x00")
		f, err := os.Open(sources[n])
		if err != nil {
			return "", eris.Wrapf(err, "loader: open %s", sources[n])
		}
		_, err = io.Copy(h, f)
		_ = f.Close()
		if err != nil {
			return "", eris.Wrapf(err, "loader: hash %s", sources[n])
		}
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}
