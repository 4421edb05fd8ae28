package ui

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDefaultStyles_ReturnsStyles(t *testing.T) {
	styles := DefaultStyles()

	assert.NotNil(t, styles.Header)
	assert.NotNil(t, styles.Success)
	assert.NotNil(t, styles.Warning)
	assert.NotNil(t, styles.Error)
	assert.NotNil(t, styles.Dim)
}

func TestNoColorStyles_ReturnsEmptyStyles(t *testing.T) {
	styles := NoColorStyles()

	assert.Equal(t, "x", styles.Header.Render("x"))
	assert.Equal(t, "x", styles.Success.Render("x"))
	assert.Equal(t, "x", styles.Warning.Render("x"))
	assert.Equal(t, "x", styles.Error.Render("x"))
	assert.Equal(t, "x", styles.Dim.Render("x"))
}

func TestDefaultStyles_HeaderIsBold(t *testing.T) {
	styles := DefaultStyles()

	rendered := styles.Header.Render("Test")

	assert.True(t, styles.Header.GetBold())
	assert.Contains(t, rendered, "Test")
}

func TestGetStyles_WithNoColor(t *testing.T) {
	styles := GetStyles(true)

	text := styles.Success.Render("test")
	assert.Equal(t, "test", text)
}

func TestGetStyles_WithColor(t *testing.T) {
	styles := GetStyles(false)

	text := styles.Success.Render("test")
	assert.Contains(t, text, "test")
}
