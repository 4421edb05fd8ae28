package toolserver

import (
	"bytes"
	"context"
	"encoding/json"
	"os/exec"
	"strings"
	"time"

	"github.com/railyard/codesearch/internal/overlay"
	"github.com/railyard/codesearch/internal/railerr"
)

// Refresher drives overlay_refresh's subprocess collaborator and reports
// wall-clock duration alongside the parsed report.
type Refresher interface {
	Refresh(ctx context.Context, cfg Config) (*overlay.BuildReport, int64, error)
}

// SubprocessRefresher spawns `<binaryPath> overlay build ...` per spec.md
// §4.6, with a 60s timeout, parsing the final stdout line as the report.
type SubprocessRefresher struct {
	binaryPath string
}

// NewSubprocessRefresher constructs a SubprocessRefresher that re-invokes
// binaryPath (typically os.Args[0]) as the overlay build subcommand.
func NewSubprocessRefresher(binaryPath string) *SubprocessRefresher {
	return &SubprocessRefresher{binaryPath: binaryPath}
}

func (r *SubprocessRefresher) Refresh(ctx context.Context, cfg Config) (*overlay.BuildReport, int64, error) {
	ctx, cancel := context.WithTimeout(ctx, RefreshTimeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, r.binaryPath, "overlay", "build",
		"--engine-id", cfg.EngineID,
		"--worktree", cfg.Worktree,
		"--track", cfg.Track,
		"--file-patterns", "*",
		"--database-url", cfg.DatabaseURL,
	)

	start := time.Now()
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	err := cmd.Run()
	durationMS := time.Since(start).Milliseconds()

	if err != nil {
		return nil, durationMS, railerr.Subprocess(err, "overlay build exited: %s", strings.TrimSpace(stderr.String()))
	}

	report, parseErr := parseLastJSONLine(stdout.Bytes())
	if parseErr != nil {
		return nil, durationMS, railerr.Subprocess(parseErr, "parse overlay build output")
	}
	return report, durationMS, nil
}

// parseLastJSONLine parses the last non-empty line of output as a
// overlay.BuildReport, per spec.md §6: "the indexer may log progress above
// it" — only the final line is the IPC contract.
func parseLastJSONLine(output []byte) (*overlay.BuildReport, error) {
	lines := strings.Split(strings.TrimSpace(string(output)), "\n")
	last := strings.TrimSpace(lines[len(lines)-1])

	var report overlay.BuildReport
	if err := json.Unmarshal([]byte(last), &report); err != nil {
		return nil, err
	}
	return &report, nil
}
