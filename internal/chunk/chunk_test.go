package chunk

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestByteChunker_WhitespaceOnly(t *testing.T) {
	c := NewByteChunker(Options{})
	chunks, err := c.Chunk("f.go", "   \n\t  \n")
	require.NoError(t, err)
	assert.Empty(t, chunks)
}

func TestByteChunker_SmallInput(t *testing.T) {
	c := NewByteChunker(Options{ChunkSize: 100, ChunkOverlap: 20})
	text := "package main\n\nfunc main() {}\n"
	chunks, err := c.Chunk("f.go", text)
	require.NoError(t, err)
	require.Len(t, chunks, 1)
	assert.Equal(t, text, chunks[0].Text)
	assert.Equal(t, "0:0", chunks[0].Location)
}

func TestByteChunker_Overlapping(t *testing.T) {
	c := NewByteChunker(Options{ChunkSize: 100, ChunkOverlap: 20})
	lines := make([]string, 0, 40)
	for i := 0; i < 40; i++ {
		lines = append(lines, strings.Repeat("x", 10))
	}
	text := strings.Join(lines, "\n")

	chunks, err := c.Chunk("f.go", text)
	require.NoError(t, err)
	require.Greater(t, len(chunks), 1)

	assert.Equal(t, "0:0", chunks[0].Location)

	seen := map[string]bool{}
	for _, ch := range chunks {
		assert.False(t, seen[ch.Location], "duplicate location %q", ch.Location)
		seen[ch.Location] = true
		assert.NotEmpty(t, strings.TrimSpace(ch.Text))
	}
}

func TestByteChunker_ProgressInvariant(t *testing.T) {
	// overlap >= chunk size must not infinite-loop.
	c := NewByteChunker(Options{ChunkSize: 10, ChunkOverlap: 50})
	text := strings.Repeat("a", 1000)
	chunks, err := c.Chunk("f.go", text)
	require.NoError(t, err)
	assert.NotEmpty(t, chunks)

	seen := map[string]bool{}
	for _, ch := range chunks {
		assert.False(t, seen[ch.Location])
		seen[ch.Location] = true
	}
}

func TestByteChunker_LineAlignedBreak(t *testing.T) {
	c := NewByteChunker(Options{ChunkSize: 40, ChunkOverlap: 5})
	// Place a newline close to the 3/4 mark so the chunker should break there.
	text := strings.Repeat("a", 32) + "\n" + strings.Repeat("b", 60)
	chunks, err := c.Chunk("f.go", text)
	require.NoError(t, err)
	require.NotEmpty(t, chunks)
	assert.True(t, strings.HasSuffix(chunks[0].Text, "\n"))
}

func TestByteChunker_FirstChunkStartsAtZero(t *testing.T) {
	c := NewByteChunker(Options{ChunkSize: 50, ChunkOverlap: 10})
	text := strings.Repeat("line of text here\n", 20)
	chunks, err := c.Chunk("f.go", text)
	require.NoError(t, err)
	require.NotEmpty(t, chunks)
	assert.Equal(t, "0:0", chunks[0].Location)
}
