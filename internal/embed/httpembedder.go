package embed

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/railyard/codesearch/internal/railerr"
)

// HTTPEmbedder calls a local embedding service (e.g. Ollama's /api/embed)
// over HTTP. It is the concrete Embedder both the main and overlay
// indexers, and the tool server's search path, are expected to share — the
// model name is fixed to the configured identity so every vector in every
// table lives in the same space.
type HTTPEmbedder struct {
	client *http.Client
	cfg    HTTPConfig

	mu     sync.RWMutex
	closed bool
}

var _ Embedder = (*HTTPEmbedder)(nil)

// NewHTTPEmbedder constructs an HTTPEmbedder, probing availability unless
// cfg.SkipHealthCheck is set.
func NewHTTPEmbedder(ctx context.Context, cfg HTTPConfig) (*HTTPEmbedder, error) {
	if cfg.Host == "" {
		cfg.Host = DefaultHTTPConfig().Host
	}
	if cfg.Model == "" {
		cfg.Model = DefaultModelName
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = DefaultBatchSize
	}
	if cfg.BatchSize > MaxBatchSize {
		cfg.BatchSize = MaxBatchSize
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultHTTPConfig().Timeout
	}
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = DefaultHTTPConfig().MaxRetries
	}

	e := &HTTPEmbedder{
		client: &http.Client{},
		cfg:    cfg,
	}

	if !cfg.SkipHealthCheck && !e.Available(ctx) {
		return nil, railerr.Subprocess(nil, "embedding service %s is not reachable", cfg.Host)
	}
	return e, nil
}

// Embed generates an embedding for a single text.
func (e *HTTPEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	if strings.TrimSpace(text) == "" {
		return make([]float32, Dimensions), nil
	}
	embeddings, err := e.embedWithRetry(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	if len(embeddings) == 0 {
		return nil, fmt.Errorf("no embedding returned")
	}
	return embeddings[0], nil
}

// EmbedBatch generates embeddings for multiple texts, chunked to BatchSize.
func (e *HTTPEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return [][]float32{}, nil
	}

	results := make([][]float32, len(texts))
	var pending []int
	var pendingTexts []string

	for i, text := range texts {
		if strings.TrimSpace(text) == "" {
			results[i] = make([]float32, Dimensions)
			continue
		}
		pending = append(pending, i)
		pendingTexts = append(pendingTexts, text)
	}
	if len(pending) == 0 {
		return results, nil
	}

	for start := 0; start < len(pending); start += e.cfg.BatchSize {
		end := start + e.cfg.BatchSize
		if end > len(pending) {
			end = len(pending)
		}
		batch := pendingTexts[start:end]

		embeddings, err := e.embedWithRetry(ctx, batch)
		if err != nil {
			return nil, err
		}
		for j, idx := range pending[start:end] {
			results[idx] = embeddings[j]
		}
	}
	return results, nil
}

func (e *HTTPEmbedder) embedWithRetry(ctx context.Context, texts []string) ([][]float32, error) {
	e.mu.RLock()
	closed := e.closed
	e.mu.RUnlock()
	if closed {
		return nil, fmt.Errorf("embedder is closed")
	}

	var embeddings [][]float32
	err := WithRetry(ctx, RetryConfig{
		MaxRetries:   e.cfg.MaxRetries,
		InitialDelay: DefaultRetryConfig().InitialDelay,
		MaxDelay:     DefaultRetryConfig().MaxDelay,
		Multiplier:   DefaultRetryConfig().Multiplier,
	}, func() error {
		result, err := e.doEmbed(ctx, texts)
		if err != nil {
			return err
		}
		embeddings = result
		return nil
	})
	if err != nil {
		return nil, railerr.Subprocess(err, "embed %d text(s) via %s", len(texts), e.cfg.Host)
	}
	return embeddings, nil
}

func (e *HTTPEmbedder) doEmbed(ctx context.Context, texts []string) ([][]float32, error) {
	timeoutCtx, cancel := context.WithTimeout(ctx, e.cfg.Timeout)
	defer cancel()

	var input any = texts
	if len(texts) == 1 {
		input = texts[0]
	}

	body, err := json.Marshal(embedRequest{Model: e.cfg.Model, Input: input})
	if err != nil {
		return nil, fmt.Errorf("marshal embed request: %w", err)
	}

	req, err := http.NewRequestWithContext(timeoutCtx, http.MethodPost, e.cfg.Host+"/api/embed", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := e.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("embedding request failed with status %d: %s", resp.StatusCode, string(respBody))
	}

	var result embedResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("decode embed response: %w", err)
	}

	embeddings := make([][]float32, len(result.Embeddings))
	for i, emb := range result.Embeddings {
		if len(emb) != Dimensions {
			return nil, fmt.Errorf("embedding service returned %d dimensions, want %d", len(emb), Dimensions)
		}
		v := make([]float32, len(emb))
		for j, val := range emb {
			v[j] = float32(val)
		}
		embeddings[i] = normalizeVector(v)
	}
	return embeddings, nil
}

// Dimensions returns the fixed embedding width.
func (e *HTTPEmbedder) Dimensions() int { return Dimensions }

// ModelName returns the configured embedder identity.
func (e *HTTPEmbedder) ModelName() string { return e.cfg.Model }

// Available reports whether the embedding service responds to a trivial probe.
func (e *HTTPEmbedder) Available(ctx context.Context) bool {
	probeCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	req, err := http.NewRequestWithContext(probeCtx, http.MethodGet, e.cfg.Host+"/api/tags", nil)
	if err != nil {
		return false
	}
	resp, err := e.client.Do(req)
	if err != nil {
		return false
	}
	defer func() { _ = resp.Body.Close() }()
	return resp.StatusCode == http.StatusOK
}

// Close releases the embedder's HTTP transport resources.
func (e *HTTPEmbedder) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return nil
	}
	e.closed = true
	e.client.CloseIdleConnections()
	return nil
}
