package chunk

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
)

// ASTChunker groups a file's top-level tree-sitter nodes into windows near
// ChunkSize bytes, so a chunk boundary never falls inside a function,
// class, or type declaration. The main indexer uses this chunker for any
// track that declares a language; per spec.md §4.1 it is the only
// observable difference from ByteChunker — more syntactically coherent
// chunk boundaries, same Chunk{Text, Location} shape.
//
// It falls back to ByteChunker whenever the file's language isn't
// registered or the source fails to parse, so main indexing never stalls
// on a single malformed file.
type ASTChunker struct {
	parser   *Parser
	registry *LanguageRegistry
	fallback *ByteChunker
	opts     Options
}

// NewASTChunker constructs an ASTChunker with the given chunk size/overlap
// (used only by the ByteChunker fallback; AST windows are sized the same
// but never split a top-level node).
func NewASTChunker(opts Options) *ASTChunker {
	opts = opts.withDefaults()
	registry := DefaultRegistry()
	return &ASTChunker{
		parser:   NewParser(),
		registry: registry,
		fallback: NewByteChunker(opts),
		opts:     opts,
	}
}

// Close releases the underlying tree-sitter parser.
func (c *ASTChunker) Close() {
	if c.parser != nil {
		c.parser.Close()
	}
}

// Chunk splits text into AST-aligned windows. path's extension selects the
// tree-sitter grammar.
func (c *ASTChunker) Chunk(path, text string) ([]Chunk, error) {
	if strings.TrimSpace(text) == "" {
		return nil, nil
	}

	language, ok := c.registry.LanguageForExtension(filepath.Ext(path))
	if !ok {
		return c.fallback.Chunk(path, text)
	}

	tree, err := c.parser.Parse(context.Background(), []byte(text), language)
	if err != nil || tree.Root == nil || len(tree.Root.Children) == 0 {
		return c.fallback.Chunk(path, text)
	}

	return c.chunkByTopLevelNodes(tree, text), nil
}

func (c *ASTChunker) chunkByTopLevelNodes(tree *Tree, text string) []Chunk {
	var chunks []Chunk
	idx := 0
	windowStart := -1
	windowEnd := 0

	flush := func() {
		if windowStart < 0 {
			return
		}
		chunkText := text[windowStart:windowEnd]
		if strings.TrimSpace(chunkText) != "" {
			chunks = append(chunks, Chunk{
				Text:     chunkText,
				Location: fmt.Sprintf("%d:%d", idx, windowStart),
			})
			idx++
		}
		windowStart = -1
	}

	for _, node := range tree.Root.Children {
		start, end := int(node.StartByte), int(node.EndByte)
		if end > len(text) {
			end = len(text)
		}
		if start >= end {
			continue
		}

		if windowStart < 0 {
			windowStart = start
			windowEnd = end
			continue
		}

		if end-windowStart > c.opts.ChunkSize {
			flush()
			windowStart = start
			windowEnd = end
			continue
		}

		windowEnd = end
	}
	flush()

	if len(chunks) == 0 {
		return nil
	}
	return chunks
}
