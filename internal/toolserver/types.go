// Package toolserver exposes search_code, overlay_status, and
// overlay_refresh as MCP tools over stdio, bound to one engine's identity
// via environment variables per spec.md §4.6.
package toolserver

import (
	"os"
	"strings"
	"time"

	"github.com/railyard/codesearch/internal/railerr"
)

// RefreshCooldown is spec.md §4.6's REFRESH_COOLDOWN_SEC.
const RefreshCooldown = 30 * time.Second

// RefreshTimeout bounds the overlay refresh subprocess.
const RefreshTimeout = 60 * time.Second

// Config binds the tool server to one engine's identity.
type Config struct {
	DatabaseURL  string
	EngineID     string
	MainTables   []string
	OverlayTable string
	Track        string
	Worktree     string
}

// ConfigFromEnv reads the COCOINDEX_* environment variables documented in
// spec.md §4.6. COCOINDEX_DATABASE_URL is required; COCOINDEX_ENGINE_ID's
// absence puts the server in search-only mode (no overlay, no refresh).
func ConfigFromEnv() (Config, error) {
	cfg := Config{
		DatabaseURL:  os.Getenv("COCOINDEX_DATABASE_URL"),
		EngineID:     os.Getenv("COCOINDEX_ENGINE_ID"),
		OverlayTable: os.Getenv("COCOINDEX_OVERLAY_TABLE"),
		Track:        os.Getenv("COCOINDEX_TRACK"),
		Worktree:     os.Getenv("COCOINDEX_WORKTREE"),
	}
	if cfg.DatabaseURL == "" {
		return Config{}, railerr.Config("COCOINDEX_DATABASE_URL is required")
	}

	if tables := os.Getenv("COCOINDEX_MAIN_TABLE"); tables != "" {
		for _, t := range strings.Split(tables, ",") {
			t = strings.TrimSpace(t)
			if t != "" {
				cfg.MainTables = append(cfg.MainTables, t)
			}
		}
	}

	return cfg, nil
}

// Dispatcher reports whether search_code should fan out across multiple
// main tables rather than querying a single one.
func (c Config) Dispatcher() bool {
	return len(c.MainTables) > 1
}
