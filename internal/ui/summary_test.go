package ui

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTrackSummary_Success(t *testing.T) {
	line := TrackSummary(NoColorStyles(), "backend", 3, 7, nil)
	assert.Equal(t, "✓ backend: 3 files, 7 chunks", line)
}

func TestTrackSummary_Error(t *testing.T) {
	line := TrackSummary(NoColorStyles(), "backend", 0, 0, errors.New("boom"))
	assert.Equal(t, "✗ backend: boom", line)
}

func TestOverlayBuildSummary_NoChanges(t *testing.T) {
	line := OverlayBuildSummary(NoColorStyles(), "no_changes", 0, 0)
	assert.Equal(t, "no changes", line)
}

func TestOverlayBuildSummary_Ok(t *testing.T) {
	line := OverlayBuildSummary(NoColorStyles(), "ok", 2, 5)
	assert.Equal(t, "✓ 2 files, 5 chunks", line)
}
