package loader

import (
	"strings"

	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"
)

// Manifest lists additional point sets to load alongside the configured
// hotspot, publicity, and competitor sources.
type Manifest struct {
	Sets []ManifestSet `yaml:"sets"`
}

// ManifestSet is one named point source. Category fills in features that
// carry none.
type ManifestSet struct {
	Name     string `yaml:"name"`
	Path     string `yaml:"path"`
	Format   string `yaml:"format"`
	Category string `yaml:"category"`
}

// ReadManifest parses a YAML manifest and checks that set names are
// present and unique.
func ReadManifest(path string) (*Manifest, error) {
	data, err := readFile(path)
	if err != nil {
		return nil, err
	}
	return ParseManifest(data)
}

// ParseManifest parses manifest YAML.
func ParseManifest(data []byte) (*Manifest, error) {
	var m Manifest
	if err := yaml.Unmarshal(data, &m); err != nil {
		return nil, eris.Wrap(err, "loader: parse manifest")
	}

	seen := make(map[string]bool, len(m.Sets))
	for i := range m.Sets {
		s := &m.Sets[i]
		s.Name = strings.TrimSpace(s.Name)
		s.Path = strings.TrimSpace(s.Path)
		if s.Name == "" || s.Path == "" {
			return nil, eris.Errorf("loader: manifest set %d needs name and path", i+1)
		}
		key := strings.ToLower(s.Name)
		if seen[key] {
			return nil, eris.Errorf("loader: duplicate manifest set %q", s.Name)
		}
		seen[key] = true
	}
	return &m, nil
}
