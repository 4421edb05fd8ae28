package toolserver

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/railyard/codesearch/internal/ratelimit"
	"github.com/railyard/codesearch/internal/search"
	"github.com/railyard/codesearch/pkg/version"
)

// SearchCodeInput is the search_code tool's input schema.
type SearchCodeInput struct {
	Query    string  `json:"query" jsonschema:"the search query to execute"`
	TopK     int     `json:"top_k,omitempty" jsonschema:"maximum number of results, default 10"`
	MinScore float64 `json:"min_score,omitempty" jsonschema:"minimum cosine score to keep, default 0.0"`
}

// SearchCodeOutput is the search_code tool's output schema.
type SearchCodeOutput struct {
	Results []search.Result `json:"results" jsonschema:"ranked search hits"`
}

// OverlayStatusOutput is the overlay_status tool's output schema.
type OverlayStatusOutput struct {
	Status        string   `json:"status"`
	Track         string   `json:"track,omitempty"`
	Branch        string   `json:"branch,omitempty"`
	LastCommit    string   `json:"last_commit,omitempty"`
	FilesIndexed  int      `json:"files_indexed,omitempty"`
	ChunksIndexed int      `json:"chunks_indexed,omitempty"`
	DeletedFiles  []string `json:"deleted_files,omitempty"`
}

// OverlayRefreshOutput is the overlay_refresh tool's output schema.
type OverlayRefreshOutput struct {
	Status        string `json:"status"`
	FilesIndexed  int    `json:"files_indexed,omitempty"`
	ChunksIndexed int    `json:"chunks_indexed,omitempty"`
	DurationMS    int64  `json:"duration_ms"`
	RetryAfterSec int    `json:"retry_after_sec,omitempty"`
	Message       string `json:"message,omitempty"`
}

// Server is the MCP tool server bound to one engine's identity.
type Server struct {
	mcp       *mcp.Server
	engine    *search.Engine
	store     search.Store
	cfg       Config
	limiter   *ratelimit.Limiter
	refresher Refresher
}

// New constructs a Server. refresher drives overlay_refresh's subprocess
// call; pass NewSubprocessRefresher(os.Args[0]) in production.
func New(cfg Config, engine *search.Engine, store search.Store, limiter *ratelimit.Limiter, refresher Refresher) *Server {
	s := &Server{
		engine:    engine,
		store:     store,
		cfg:       cfg,
		limiter:   limiter,
		refresher: refresher,
	}

	s.mcp = mcp.NewServer(
		&mcp.Implementation{Name: "railyard-codesearch", Version: version.Version},
		nil,
	)
	s.registerTools()
	return s
}

func (s *Server) registerTools() {
	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        "search_code",
		Description: "Semantic code search over the indexed repository. Returns ranked chunks by cosine similarity.",
	}, s.handleSearchCode)

	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        "overlay_status",
		Description: "Report the current overlay build metadata for this engine, if any.",
	}, s.handleOverlayStatus)

	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        "overlay_refresh",
		Description: "Rebuild this engine's overlay from its worktree diff against main. Rate-limited to one accepted call per 30 seconds.",
	}, s.handleOverlayRefresh)
}

// Serve runs the server over stdio until ctx is canceled.
func (s *Server) Serve(ctx context.Context) error {
	err := s.mcp.Run(ctx, &mcp.StdioTransport{})
	if err != nil && err != context.Canceled {
		slog.Error("toolserver_stopped", slog.String("error", err.Error()))
		return err
	}
	return nil
}

func (s *Server) handleSearchCode(ctx context.Context, _ *mcp.CallToolRequest, input SearchCodeInput) (*mcp.CallToolResult, SearchCodeOutput, error) {
	requestID := uuid.NewString()
	slog.Debug("search_code_request", slog.String("request_id", requestID), slog.String("query", input.Query))

	if input.Query == "" {
		return nil, SearchCodeOutput{}, fmt.Errorf("query is required")
	}
	opts := search.Options{TopK: input.TopK, MinScore: input.MinScore}

	var results []search.Result
	var err error
	switch {
	case s.cfg.OverlayTable != "" && s.cfg.EngineID != "":
		results, err = s.engine.SearchEngineMode(ctx, mainTableOf(s.cfg), s.cfg.OverlayTable, s.cfg.EngineID, input.Query, opts)
	case s.cfg.Dispatcher():
		results, err = s.engine.SearchDispatcher(ctx, s.cfg.MainTables, input.Query, opts)
	default:
		results, err = s.engine.SearchSingle(ctx, mainTableOf(s.cfg), input.Query, opts)
	}
	if err != nil {
		return nil, SearchCodeOutput{}, err
	}
	return nil, SearchCodeOutput{Results: results}, nil
}

func (s *Server) handleOverlayStatus(ctx context.Context, _ *mcp.CallToolRequest, _ struct{}) (*mcp.CallToolResult, OverlayStatusOutput, error) {
	if s.cfg.EngineID == "" {
		return nil, OverlayStatusOutput{Status: "no_engine_id"}, nil
	}

	meta, err := s.store.OverlayStatus(ctx, s.cfg.EngineID)
	if err != nil {
		return nil, OverlayStatusOutput{}, err
	}
	if meta == nil {
		return nil, OverlayStatusOutput{Status: "not_found"}, nil
	}
	return nil, OverlayStatusOutput{
		Status:        "ok",
		Track:         meta.Track,
		Branch:        meta.Branch,
		LastCommit:    meta.LastCommit,
		FilesIndexed:  meta.FilesIndexed,
		ChunksIndexed: meta.ChunksIndexed,
		DeletedFiles:  meta.DeletedFiles,
	}, nil
}

func (s *Server) handleOverlayRefresh(ctx context.Context, _ *mcp.CallToolRequest, _ struct{}) (*mcp.CallToolResult, OverlayRefreshOutput, error) {
	requestID := uuid.NewString()
	slog.Debug("overlay_refresh_request", slog.String("request_id", requestID), slog.String("engine_id", s.cfg.EngineID))

	if s.cfg.EngineID == "" {
		return nil, OverlayRefreshOutput{Status: "error", Message: "no engine id configured"}, nil
	}

	allowed, retryAfter := s.limiter.Try()
	if !allowed {
		return nil, OverlayRefreshOutput{Status: "rate_limited", RetryAfterSec: retryAfter}, nil
	}

	report, durationMS, err := s.refresher.Refresh(ctx, s.cfg)
	if err != nil {
		return nil, OverlayRefreshOutput{Status: "error", Message: err.Error(), DurationMS: durationMS}, nil
	}

	return nil, OverlayRefreshOutput{
		Status:        "ok",
		FilesIndexed:  report.FilesIndexed,
		ChunksIndexed: report.ChunksIndexed,
		DurationMS:    durationMS,
	}, nil
}

func mainTableOf(cfg Config) string {
	if len(cfg.MainTables) == 0 {
		return ""
	}
	return cfg.MainTables[0]
}
