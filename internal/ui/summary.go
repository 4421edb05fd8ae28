package ui

import "fmt"

// TrackSummary renders one orchestrator track result as a colorized
// human-readable line, printed alongside the index command's JSON output.
func TrackSummary(styles Styles, track string, filesIndexed, chunksIndexed int, err error) string {
	if err != nil {
		return fmt.Sprintf("%s %s: %s", styles.Error.Render("✗"), track, err.Error())
	}
	return fmt.Sprintf("%s %s: %d files, %d chunks",
		styles.Success.Render("✓"), track, filesIndexed, chunksIndexed)
}

// OverlayBuildSummary renders an overlay build report as a colorized line.
func OverlayBuildSummary(styles Styles, status string, filesIndexed, chunksIndexed int) string {
	if status == "no_changes" {
		return styles.Dim.Render("no changes")
	}
	return fmt.Sprintf("%s %d files, %d chunks",
		styles.Success.Render("✓"), filesIndexed, chunksIndexed)
}
