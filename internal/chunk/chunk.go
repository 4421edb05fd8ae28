// Package chunk splits file text into overlapping, line-aligned chunks
// with stable location labels, per spec.md §4.1.
package chunk

import (
	"fmt"
	"strings"
)

// Default chunking parameters.
const (
	DefaultChunkSize    = 1500
	DefaultChunkOverlap = 300
)

// Chunk is a single unit of text carrying its opaque intra-file location.
type Chunk struct {
	Text     string
	Location string
}

// Options configures a Chunker.
type Options struct {
	ChunkSize    int
	ChunkOverlap int
}

// withDefaults fills zero-valued fields with the package defaults.
func (o Options) withDefaults() Options {
	if o.ChunkSize <= 0 {
		o.ChunkSize = DefaultChunkSize
	}
	if o.ChunkOverlap <= 0 {
		o.ChunkOverlap = DefaultChunkOverlap
	}
	return o
}

// Chunker is the interface every chunking strategy implements: the
// byte/newline chunker used unconditionally by the overlay indexer, and
// the AST-aware chunker the main indexer uses for tracks with a declared
// language (see ast_chunker.go).
type Chunker interface {
	Chunk(path, text string) ([]Chunk, error)
}

// ByteChunker implements the overlapping byte/newline-aligned splitter
// described in spec.md §4.1. It is the only chunker the overlay indexer
// ever uses; this is an accepted asymmetry with the main indexer's
// AST-aware chunker (spec.md §9).
type ByteChunker struct {
	opts Options
}

// NewByteChunker constructs a ByteChunker, defaulting zero-valued options.
func NewByteChunker(opts Options) *ByteChunker {
	return &ByteChunker{opts: opts.withDefaults()}
}

// Chunk splits text into chunks. path is accepted for interface symmetry
// with Chunker but unused: the byte chunker is content-only.
func (c *ByteChunker) Chunk(path, text string) ([]Chunk, error) {
	_ = path
	if strings.TrimSpace(text) == "" {
		return nil, nil
	}

	n := len(text)
	if n <= c.opts.ChunkSize {
		return []Chunk{{Text: text, Location: "0:0"}}, nil
	}

	var chunks []Chunk
	start := 0
	idx := 0

	for start < n {
		end := start + c.opts.ChunkSize
		if end > n {
			end = n
		}

		if end < n {
			// Search backward for a line break to keep the chunk line-aligned,
			// but never move the break before 3/4 of the way through the window.
			minBreak := start + (c.opts.ChunkSize * 3 / 4)
			if nl := lastIndexByte(text, minBreak, end); nl >= 0 {
				end = nl + 1
			}
		}

		chunkText := text[start:end]
		if strings.TrimSpace(chunkText) != "" {
			chunks = append(chunks, Chunk{
				Text:     chunkText,
				Location: fmt.Sprintf("%d:%d", idx, start),
			})
			idx++
		}

		next := end - c.opts.ChunkOverlap
		if next <= start {
			next = end
		}
		start = next
	}

	return chunks, nil
}

// lastIndexByte returns the index of the last '\n' in text[from:to), or -1
// if none is found.
func lastIndexByte(text string, from, to int) int {
	if from < 0 {
		from = 0
	}
	if to > len(text) {
		to = len(text)
	}
	for i := to - 1; i >= from; i-- {
		if text[i] == '\n' {
			return i
		}
	}
	return -1
}
