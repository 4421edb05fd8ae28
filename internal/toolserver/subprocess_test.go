package toolserver

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLastJSONLine_IgnoresLeadingLogLines(t *testing.T) {
	output := []byte("indexing file a.go\nindexing file b.go\n{\"status\":\"ok\",\"files_indexed\":2,\"chunks_indexed\":3}\n")
	report, err := parseLastJSONLine(output)
	require.NoError(t, err)
	assert.Equal(t, "ok", report.Status)
	assert.Equal(t, 2, report.FilesIndexed)
	assert.Equal(t, 3, report.ChunksIndexed)
}

func TestParseLastJSONLine_SingleLine(t *testing.T) {
	report, err := parseLastJSONLine([]byte(`{"status":"no_changes"}`))
	require.NoError(t, err)
	assert.Equal(t, "no_changes", report.Status)
}

func TestParseLastJSONLine_InvalidJSONErrors(t *testing.T) {
	_, err := parseLastJSONLine([]byte("not json"))
	assert.Error(t, err)
}
