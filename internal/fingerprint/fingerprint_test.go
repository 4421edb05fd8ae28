package fingerprint

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStore_ChangedForUnknownFileIsTrue(t *testing.T) {
	s, err := Open("")
	require.NoError(t, err)
	defer s.Close()

	changed, err := s.Changed(context.Background(), "backend", "a.go", Hash([]byte("hello")))
	require.NoError(t, err)
	assert.True(t, changed)
}

func TestStore_RecordThenUnchanged(t *testing.T) {
	s, err := Open("")
	require.NoError(t, err)
	defer s.Close()

	ctx := context.Background()
	hash := Hash([]byte("package a"))
	require.NoError(t, s.Record(ctx, "backend", "a.go", hash))

	changed, err := s.Changed(ctx, "backend", "a.go", hash)
	require.NoError(t, err)
	assert.False(t, changed)

	changed, err = s.Changed(ctx, "backend", "a.go", Hash([]byte("package a v2")))
	require.NoError(t, err)
	assert.True(t, changed)
}

func TestStore_ForgetRemovesRecord(t *testing.T) {
	s, err := Open("")
	require.NoError(t, err)
	defer s.Close()

	ctx := context.Background()
	hash := Hash([]byte("x"))
	require.NoError(t, s.Record(ctx, "backend", "a.go", hash))
	require.NoError(t, s.Forget(ctx, "backend", "a.go"))

	changed, err := s.Changed(ctx, "backend", "a.go", hash)
	require.NoError(t, err)
	assert.True(t, changed)
}

func TestStore_TracksSeparatelyPerTrack(t *testing.T) {
	s, err := Open("")
	require.NoError(t, err)
	defer s.Close()

	ctx := context.Background()
	hash := Hash([]byte("shared content"))
	require.NoError(t, s.Record(ctx, "backend", "shared.go", hash))

	changed, err := s.Changed(ctx, "frontend", "shared.go", hash)
	require.NoError(t, err)
	assert.True(t, changed, "a fingerprint recorded for one track must not satisfy another")
}

func TestStore_KnownFiles(t *testing.T) {
	s, err := Open("")
	require.NoError(t, err)
	defer s.Close()

	ctx := context.Background()
	require.NoError(t, s.Record(ctx, "backend", "a.go", Hash([]byte("a"))))
	require.NoError(t, s.Record(ctx, "backend", "b.go", Hash([]byte("b"))))
	require.NoError(t, s.Record(ctx, "frontend", "c.ts", Hash([]byte("c"))))

	files, err := s.KnownFiles(ctx, "backend")
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"a.go", "b.go"}, files)

	require.NoError(t, s.Forget(ctx, "backend", "a.go"))
	files, err = s.KnownFiles(ctx, "backend")
	require.NoError(t, err)
	assert.Equal(t, []string{"b.go"}, files)
}

func TestOpen_CreatesFileOnDisk(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "fingerprints.db")
	s, err := Open(path)
	require.NoError(t, err)
	defer s.Close()

	require.NoError(t, s.Record(context.Background(), "backend", "a.go", Hash([]byte("x"))))
}
