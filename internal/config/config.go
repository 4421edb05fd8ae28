// Package config resolves table names, inclusion/exclusion globs, and the
// overlay prefix, with per-track overrides, per spec.md §6.
package config

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// DefaultExcludedPatterns are skipped by the main indexer unless a config
// file overrides them.
var DefaultExcludedPatterns = []string{".*", "vendor", "node_modules", "dist", "__pycache__", ".git"}

// DefaultMainTableTemplate is used when the config file doesn't set one.
const DefaultMainTableTemplate = "main_{track}_embeddings"

// DefaultOverlayTablePrefix is used when the config file doesn't set one.
const DefaultOverlayTablePrefix = "ovl_"

// TrackOverride narrows or widens the include/exclude glob set for one track.
type TrackOverride struct {
	IncludedPatterns []string `yaml:"included_patterns,omitempty"`
	ExcludedPatterns []string `yaml:"excluded_patterns,omitempty"`
}

// Config is the optional configuration file schema from spec.md §6.
type Config struct {
	MainTableTemplate  string                   `yaml:"main_table_template,omitempty"`
	OverlayTablePrefix string                   `yaml:"overlay_table_prefix,omitempty"`
	ExcludedPatterns   []string                 `yaml:"excluded_patterns,omitempty"`
	Tracks             map[string]TrackOverride `yaml:"tracks,omitempty"`
}

// Default returns the zero-config defaults.
func Default() *Config {
	return &Config{
		MainTableTemplate:  DefaultMainTableTemplate,
		OverlayTablePrefix: DefaultOverlayTablePrefix,
		ExcludedPatterns:   append([]string(nil), DefaultExcludedPatterns...),
		Tracks:             map[string]TrackOverride{},
	}
}

// Load reads a config file at path. A missing file is not an error: the
// defaults are returned, matching spec.md §6 "Missing file → defaults".
func Load(path string) (*Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return cfg, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read config %q: %w", path, err)
	}

	var loaded Config
	if err := yaml.Unmarshal(data, &loaded); err != nil {
		return nil, fmt.Errorf("parse config %q: %w", path, err)
	}

	if loaded.MainTableTemplate != "" {
		if !strings.Contains(loaded.MainTableTemplate, "{track}") {
			return nil, fmt.Errorf("main_table_template must contain {track}: %q", loaded.MainTableTemplate)
		}
		cfg.MainTableTemplate = loaded.MainTableTemplate
	}
	if loaded.OverlayTablePrefix != "" {
		cfg.OverlayTablePrefix = loaded.OverlayTablePrefix
	}
	if loaded.ExcludedPatterns != nil {
		cfg.ExcludedPatterns = loaded.ExcludedPatterns
	}
	if loaded.Tracks != nil {
		cfg.Tracks = loaded.Tracks
	}

	return cfg, nil
}

// MainTableName composes the main table name for track.
func (c *Config) MainTableName(track string) string {
	return strings.ReplaceAll(c.MainTableTemplate, "{track}", track)
}

// PatternsFor resolves the included/excluded glob set for track, layering
// the track override (if any) over the config-level excluded patterns.
func (c *Config) PatternsFor(track string, trackDefaults []string) (included, excluded []string) {
	included = trackDefaults
	excluded = append([]string(nil), c.ExcludedPatterns...)

	if override, ok := c.Tracks[track]; ok {
		if len(override.IncludedPatterns) > 0 {
			included = override.IncludedPatterns
		}
		if len(override.ExcludedPatterns) > 0 {
			excluded = override.ExcludedPatterns
		}
	}
	return included, excluded
}

// Track describes one language partition of the repository, sourced from
// the orchestrator's manifest file (spec.md §4.7).
type Track struct {
	Name          string   `yaml:"name"`
	Language      string   `yaml:"language,omitempty"`
	FilePatterns  []string `yaml:"file_patterns"`
}

// Manifest is the {tracks: [...]} document the per-track orchestrator reads.
type Manifest struct {
	Tracks []Track `yaml:"tracks"`
}

// LoadManifest reads and validates a track manifest. An empty manifest is
// an error per spec.md §4.7; tracks without a name are silently dropped.
func LoadManifest(path string) (*Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read manifest %q: %w", path, err)
	}

	var m Manifest
	if err := yaml.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("parse manifest %q: %w", path, err)
	}

	named := m.Tracks[:0]
	for _, t := range m.Tracks {
		if t.Name == "" {
			continue
		}
		named = append(named, t)
	}
	m.Tracks = named

	if len(m.Tracks) == 0 {
		return nil, fmt.Errorf("manifest %q contains no named tracks", path)
	}
	return &m, nil
}
