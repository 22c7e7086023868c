package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/aretw0/proofline/internal/logging"
	"github.com/aretw0/proofline/pkg/domain"
	"github.com/aretw0/proofline/pkg/editor"
	"github.com/aretw0/proofline/pkg/input"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"golang.org/x/sync/errgroup"
)

// DefaultSession is used when a tool call names no session.
const DefaultSession = "default"

const sessionURIPrefix = "proofline://sessions/"

// StateResponse is the structured result of every state-returning tool.
type StateResponse struct {
	State         *domain.State `json:"state" jsonschema_description:"The editing session after the call"`
	Status        domain.Status `json:"status" jsonschema_description:"idle, analyzing, success or failed"`
	PendingIssues int           `json:"pending_issues" jsonschema_description:"Issues not yet applied"`
}

// ApplyResponse reports a correction and the resulting state.
type ApplyResponse struct {
	Applied     domain.Issue  `json:"applied"`
	TextChanged bool          `json:"text_changed" jsonschema_description:"False when the original text was no longer in the draft"`
	State       StateResponse `json:"state"`
}

// Sessions resolves editing sessions by ID.
type Sessions interface {
	GetOrCreate(ctx context.Context, sessionID string) (*editor.Machine, error)
}

type sessionArgs struct {
	SessionID string `json:"session_id"`
}

type textArgs struct {
	SessionID string `json:"session_id"`
	Text      string `json:"text"`
}

type applyArgs struct {
	SessionID string `json:"session_id"`
	IssueID   *int   `json:"issue_id"`
}

// Server exposes editing sessions as MCP tools.
type Server struct {
	sessions  Sessions
	sanitizer input.Sanitizer
	logger    *slog.Logger
	mcpServer *server.MCPServer
}

// Option configures a Server.
type Option func(*Server)

// WithSanitizer sets the draft size limit.
func WithSanitizer(sz input.Sanitizer) Option {
	return func(s *Server) {
		s.sanitizer = sz
	}
}

// WithLogger sets the structured logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Server) {
		s.logger = logger
	}
}

// NewServer creates a new MCP Server instance.
func NewServer(sessions Sessions, version string, opts ...Option) *Server {
	s := &Server{
		sessions: sessions,
		logger:   logging.NewNop(),
		mcpServer: server.NewMCPServer("proofline-mcp", strings.TrimSpace(version),
			server.WithToolCapabilities(false),
			server.WithResourceCapabilities(false, false),
		),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.registerTools()
	s.registerResources()
	return s
}

// MCPServer returns the underlying protocol server.
func (s *Server) MCPServer() *server.MCPServer {
	return s.mcpServer
}

// ServeStdio starts the server on Stdin/Stdout.
func (s *Server) ServeStdio() error {
	return server.ServeStdio(s.mcpServer)
}

// ServeSSE serves the SSE transport on addr until ctx is done.
func (s *Server) ServeSSE(ctx context.Context, addr, baseURL string) error {
	sseServer := server.NewSSEServer(s.mcpServer, server.WithBaseURL(baseURL))

	mux := http.NewServeMux()
	mux.Handle("/sse", corsMiddleware(sseServer.SSEHandler()))
	mux.Handle("/message", corsMiddleware(sseServer.MessageHandler()))

	httpServer := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		s.logger.Info("MCP server listening (SSE)", "address", addr)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("could not stop server gracefully: %w", err)
		}
		return nil
	})
	return g.Wait()
}

func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization, X-Requested-With")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func sessionParam() mcp.ToolOption {
	return mcp.WithString("session_id", mcp.Description("Editing session (defaults to \""+DefaultSession+"\")"))
}

func (s *Server) registerTools() {
	s.mcpServer.AddTool(mcp.NewTool("analyze_text",
		mcp.WithDescription("Replace the draft with text and analyze it for grammar, spelling, punctuation and style issues. Blocks until the analysis completes."),
		mcp.WithString("text", mcp.Required(), mcp.Description("The text to check")),
		sessionParam(),
		mcp.WithOutputSchema[StateResponse](),
	), mcp.NewStructuredToolHandler(s.handleAnalyze))

	s.mcpServer.AddTool(mcp.NewTool("get_state",
		mcp.WithDescription("Get the draft, the analysis status and the pending issues."),
		sessionParam(),
		mcp.WithOutputSchema[StateResponse](),
	), mcp.NewStructuredToolHandler(s.handleGetState))

	s.mcpServer.AddTool(mcp.NewTool("edit_text",
		mcp.WithDescription("Replace the draft without analyzing it. The previous result stays visible."),
		mcp.WithString("text", mcp.Required(), mcp.Description("The new draft")),
		sessionParam(),
		mcp.WithOutputSchema[StateResponse](),
	), mcp.NewStructuredToolHandler(s.handleEditText))

	s.mcpServer.AddTool(mcp.NewTool("apply_correction",
		mcp.WithDescription("Apply one pending issue to the draft and remove it from the list."),
		mcp.WithNumber("issue_id", mcp.Required(), mcp.Min(0), mcp.Description("The issue id from get_state")),
		sessionParam(),
		mcp.WithOutputSchema[ApplyResponse](),
	), mcp.NewStructuredToolHandler(s.handleApply))

	s.mcpServer.AddTool(mcp.NewTool("clear",
		mcp.WithDescription("Drop the draft, the result and any error."),
		sessionParam(),
		mcp.WithOutputSchema[StateResponse](),
	), mcp.NewStructuredToolHandler(s.handleClear))

	s.mcpServer.AddTool(mcp.NewTool("get_corrected_text",
		mcp.WithDescription("Get the fully corrected text of the last analysis."),
		sessionParam(),
	), s.handleCorrected)
}

func (s *Server) handleAnalyze(ctx context.Context, _ mcp.CallToolRequest, args textArgs) (StateResponse, error) {
	mc, err := s.machine(ctx, args.SessionID)
	if err != nil {
		return StateResponse{}, err
	}
	clean, err := s.clean(args.Text)
	if err != nil {
		return StateResponse{}, err
	}

	// A rejected call leaves the session untouched.
	if domain.IsBlank(clean) {
		return StateResponse{}, domain.ErrEmptyInput
	}
	if mc.Snapshot().IsAnalyzing {
		return StateResponse{}, domain.ErrAnalysisInFlight
	}

	mc.EditText(ctx, clean)
	if _, err := mc.Analyze(ctx); err != nil {
		if errors.Is(err, domain.ErrEmptyInput) || errors.Is(err, domain.ErrAnalysisInFlight) {
			return StateResponse{}, err
		}
		// Failures are part of the state.
		s.logger.Warn("MCP analyze: analysis failed", "session_id", mc.SessionID(), "err", err)
	}
	return stateResponse(mc.Snapshot()), nil
}

func (s *Server) handleGetState(ctx context.Context, _ mcp.CallToolRequest, args sessionArgs) (StateResponse, error) {
	mc, err := s.machine(ctx, args.SessionID)
	if err != nil {
		return StateResponse{}, err
	}
	return stateResponse(mc.Snapshot()), nil
}

func (s *Server) handleEditText(ctx context.Context, _ mcp.CallToolRequest, args textArgs) (StateResponse, error) {
	mc, err := s.machine(ctx, args.SessionID)
	if err != nil {
		return StateResponse{}, err
	}
	clean, err := s.clean(args.Text)
	if err != nil {
		return StateResponse{}, err
	}
	mc.EditText(ctx, clean)
	return stateResponse(mc.Snapshot()), nil
}

func (s *Server) handleApply(ctx context.Context, _ mcp.CallToolRequest, args applyArgs) (ApplyResponse, error) {
	if args.IssueID == nil {
		return ApplyResponse{}, errors.New("issue_id is required")
	}
	mc, err := s.machine(ctx, args.SessionID)
	if err != nil {
		return ApplyResponse{}, err
	}
	out, err := mc.ApplyCorrection(ctx, *args.IssueID)
	if err != nil {
		return ApplyResponse{}, err
	}
	return ApplyResponse{
		Applied:     out.Issue,
		TextChanged: out.TextChanged,
		State:       stateResponse(mc.Snapshot()),
	}, nil
}

func (s *Server) handleClear(ctx context.Context, _ mcp.CallToolRequest, args sessionArgs) (StateResponse, error) {
	mc, err := s.machine(ctx, args.SessionID)
	if err != nil {
		return StateResponse{}, err
	}
	mc.Clear(ctx)
	return stateResponse(mc.Snapshot()), nil
}

func (s *Server) handleCorrected(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	mc, err := s.machine(ctx, request.GetString("session_id", ""))
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	text, ok := mc.CorrectedText()
	if !ok {
		return mcp.NewToolResultError(domain.ErrNoResult.Error()), nil
	}
	return mcp.NewToolResultText(text), nil
}

func (s *Server) registerResources() {
	s.mcpServer.AddResourceTemplate(mcp.NewResourceTemplate(sessionURIPrefix+"{session_id}", "Editing session state",
		mcp.WithTemplateDescription("The draft, status and pending issues of a session"),
		mcp.WithTemplateMIMEType("application/json"),
	), func(ctx context.Context, request mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
		id := strings.TrimPrefix(request.Params.URI, sessionURIPrefix)
		mc, err := s.machine(ctx, id)
		if err != nil {
			return nil, err
		}
		data, err := json.Marshal(stateResponse(mc.Snapshot()))
		if err != nil {
			return nil, fmt.Errorf("failed to encode session: %w", err)
		}
		return []mcp.ResourceContents{
			mcp.TextResourceContents{
				URI:      request.Params.URI,
				MIMEType: "application/json",
				Text:     string(data),
			},
		}, nil
	})
}

func (s *Server) machine(ctx context.Context, sessionID string) (*editor.Machine, error) {
	if sessionID = strings.TrimSpace(sessionID); sessionID == "" {
		sessionID = DefaultSession
	}
	return s.sessions.GetOrCreate(ctx, sessionID)
}

func (s *Server) clean(text string) (string, error) {
	clean, err := s.sanitizer.Sanitize(text)
	if err != nil {
		s.logger.Warn("MCP: Input rejected", "err", err, "size", len(text))
		return "", fmt.Errorf("input rejected: %w", err)
	}
	return clean, nil
}

func stateResponse(st *domain.State) StateResponse {
	return StateResponse{
		State:         st,
		Status:        st.Status(),
		PendingIssues: st.PendingIssues(),
	}
}
