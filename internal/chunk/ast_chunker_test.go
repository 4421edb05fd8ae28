package chunk

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestASTChunker_FallsBackForUnknownExtension(t *testing.T) {
	c := NewASTChunker(Options{ChunkSize: 1500, ChunkOverlap: 300})
	defer c.Close()

	chunks, err := c.Chunk("README.md", "# Title\n\nSome body text.\n")
	require.NoError(t, err)
	require.Len(t, chunks, 1)
	assert.Equal(t, "0:0", chunks[0].Location)
}

func TestASTChunker_SplitsGoDeclarations(t *testing.T) {
	c := NewASTChunker(Options{ChunkSize: 40, ChunkOverlap: 5})
	defer c.Close()

	src := `package main

func a() int {
	return 1
}

func b() int {
	return 2
}

func c() int {
	return 3
}
`
	chunks, err := c.Chunk("file.go", src)
	require.NoError(t, err)
	require.NotEmpty(t, chunks)

	seen := map[string]bool{}
	for _, ch := range chunks {
		assert.False(t, seen[ch.Location])
		seen[ch.Location] = true
		assert.NotEmpty(t, ch.Text)
	}
}

func TestASTChunker_EmptyInput(t *testing.T) {
	c := NewASTChunker(Options{})
	defer c.Close()

	chunks, err := c.Chunk("file.go", "   \n\t")
	require.NoError(t, err)
	assert.Empty(t, chunks)
}
