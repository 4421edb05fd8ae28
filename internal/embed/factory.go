package embed

import (
	"context"
	"os"
)

// Config selects and tunes the embedder constructed by New.
type Config struct {
	HTTP          HTTPConfig
	CacheSize     int
	DisableCache  bool
	SerializeDir  string // non-empty: serialize embed calls via a cross-process flock in this dir
}

// DefaultConfig mirrors DefaultHTTPConfig with caching enabled.
func DefaultConfig() Config {
	return Config{HTTP: DefaultHTTPConfig(), CacheSize: DefaultCacheSize}
}

// New builds the embedder used by both the main and overlay indexers: an
// HTTPEmbedder wrapped in an LRU cache, optionally serialized behind a
// cross-process file lock for backends that can't handle concurrent
// requests from multiple railyard processes on the same machine.
func New(ctx context.Context, cfg Config) (Embedder, error) {
	http, err := NewHTTPEmbedder(ctx, cfg.HTTP)
	if err != nil {
		return nil, err
	}

	var e Embedder = http
	if !cfg.DisableCache {
		e = NewCachedEmbedder(e, cfg.CacheSize)
	}
	if cfg.SerializeDir != "" {
		e = NewSerializedEmbedder(e, cfg.SerializeDir)
	}
	return e, nil
}

// ConfigFromEnv reads COCOINDEX_EMBED_HOST / COCOINDEX_EMBED_MODEL, falling
// back to DefaultConfig when unset.
func ConfigFromEnv() Config {
	cfg := DefaultConfig()
	if host := os.Getenv("COCOINDEX_EMBED_HOST"); host != "" {
		cfg.HTTP.Host = host
	}
	if model := os.Getenv("COCOINDEX_EMBED_MODEL"); model != "" {
		cfg.HTTP.Model = model
	}
	return cfg
}
