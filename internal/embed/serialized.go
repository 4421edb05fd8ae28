package embed

import (
	"context"
	"sync"
)

// SerializedEmbedder forces one embed call at a time across this process (via
// a mutex) and any sibling railyard processes sharing dir (via FileLock). Local embedding
// backends (a single-threaded model server) can corrupt output or thrash
// under concurrent requests from multiple track indexers; this keeps them
// to one request at a time without requiring the backend to queue itself.
type SerializedEmbedder struct {
	inner Embedder
	lock  *FileLock
	mu    sync.Mutex
}

// NewSerializedEmbedder wraps inner so every call holds dir's cross-process lock.
func NewSerializedEmbedder(inner Embedder, dir string) *SerializedEmbedder {
	return &SerializedEmbedder{inner: inner, lock: NewFileLock(dir)}
}

func (s *SerializedEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.lock.Lock(); err != nil {
		return nil, err
	}
	defer func() { _ = s.lock.Unlock() }()
	return s.inner.Embed(ctx, text)
}

func (s *SerializedEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.lock.Lock(); err != nil {
		return nil, err
	}
	defer func() { _ = s.lock.Unlock() }()
	return s.inner.EmbedBatch(ctx, texts)
}

func (s *SerializedEmbedder) Dimensions() int               { return s.inner.Dimensions() }
func (s *SerializedEmbedder) ModelName() string              { return s.inner.ModelName() }
func (s *SerializedEmbedder) Available(ctx context.Context) bool { return s.inner.Available(ctx) }
func (s *SerializedEmbedder) Close() error                   { return s.inner.Close() }
