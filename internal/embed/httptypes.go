package embed

import "time"

// HTTPConfig configures HTTPEmbedder.
type HTTPConfig struct {
	// Host is the embedding service endpoint, e.g. "http://localhost:11434".
	Host string

	// Model is the embedder identity requested from the backend.
	Model string

	// BatchSize bounds how many texts go in a single request.
	BatchSize int

	// Timeout bounds a single HTTP request.
	Timeout time.Duration

	// MaxRetries is the number of retry attempts on transient failure.
	MaxRetries int

	// SkipHealthCheck skips the startup Available() probe, used in tests.
	SkipHealthCheck bool
}

// DefaultHTTPConfig returns sensible defaults for HTTPConfig.
func DefaultHTTPConfig() HTTPConfig {
	return HTTPConfig{
		Host:       "http://localhost:11434",
		Model:      DefaultModelName,
		BatchSize:  DefaultBatchSize,
		Timeout:    30 * time.Second,
		MaxRetries: 3,
	}
}

// embedRequest is the wire body POSTed to Host+"/api/embed".
type embedRequest struct {
	Model string `json:"model"`
	Input any    `json:"input"`
}

// embedResponse is the wire body returned from Host+"/api/embed".
type embedResponse struct {
	Model      string      `json:"model"`
	Embeddings [][]float64 `json:"embeddings"`
}
