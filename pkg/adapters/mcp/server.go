// Package mcp exposes the engine as a Model Context Protocol server.
package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/aretw0/stagehand"
	"github.com/aretw0/stagehand/internal/logging"
	"github.com/aretw0/stagehand/pkg/domain"
	"github.com/aretw0/stagehand/pkg/params"
	"github.com/aretw0/stagehand/pkg/registry"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
)

const scenesURI = "stagehand://scenes"

// StateResponse is the structured result of the state tools.
type StateResponse struct {
	Current  string              `json:"current" jsonschema_description:"Identifier of the last committed scene"`
	State    domain.MachineState `json:"state" jsonschema_description:"Machine state of the orchestrator"`
	Busy     bool                `json:"busy" jsonschema_description:"Whether a transition is in flight"`
	Progress float64             `json:"progress" jsonschema_description:"Loading progress of the current or last transition"`
}

// TransitionResponse is the structured result of the transition tool.
type TransitionResponse struct {
	ID         string `json:"id" jsonschema_description:"Correlation ID of the transition"`
	Identifier string `json:"identifier" jsonschema_description:"Target scene"`
	Status     string `json:"status" jsonschema_description:"accepted, committed or failed"`
	Error      string `json:"error,omitempty" jsonschema_description:"Failure reason"`
}

// Engine is the read side of the engine. It is implemented by *stagehand.Engine.
type Engine interface {
	CurrentState() string
	State() domain.MachineState
	Progress() float64
	Busy() bool
	Registry() *registry.Registry
}

// Submitter starts transitions on the loop goroutine. It is implemented by *runner.Runner.
type Submitter interface {
	Submit(ctx context.Context, req domain.TransitionRequest) (<-chan error, error)
}

// Server wraps the engine and exposes it as an MCP server.
type Server struct {
	engine    Engine
	submitter Submitter
	logger    *slog.Logger
	mcpServer *server.MCPServer
}

// NewServer creates a new MCP server.
func NewServer(engine Engine, submitter Submitter, logger *slog.Logger) *Server {
	if logger == nil {
		logger = logging.NewNop()
	}
	s := &Server{
		engine:    engine,
		submitter: submitter,
		logger:    logger,
		mcpServer: server.NewMCPServer("stagehand-mcp", strings.TrimSpace(stagehand.Version)),
	}
	s.registerTools()
	s.registerResources()
	return s
}

// ServeStdio serves on Stdin/Stdout.
func (s *Server) ServeStdio() error {
	return server.ServeStdio(s.mcpServer)
}

// ServeSSE serves over SSE on addr until ctx is done.
func (s *Server) ServeSSE(ctx context.Context, addr string) error {
	baseURL := "http://" + addr
	if strings.HasPrefix(addr, ":") {
		baseURL = "http://localhost" + addr
	}
	sseServer := server.NewSSEServer(s.mcpServer, server.WithBaseURL(baseURL))

	mux := http.NewServeMux()
	mux.Handle("/sse", corsMiddleware(sseServer.SSEHandler()))
	mux.Handle("/message", corsMiddleware(sseServer.MessageHandler()))

	httpServer := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	serverErrors := make(chan error, 1)
	go func() {
		s.logger.Info("MCP server listening (SSE)", "address", addr)
		serverErrors <- httpServer.ListenAndServe()
	}()

	select {
	case err := <-serverErrors:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("could not stop server gracefully: %w", err)
		}
		return nil
	}
}

func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) registerTools() {
	s.mcpServer.AddTool(mcp.NewTool("transition",
		mcp.WithDescription("Transition to a scene. By default waits until the scene is committed or the transition failed."),
		mcp.WithString("identifier", mcp.Required(), mcp.Description("Target scene identifier")),
		mcp.WithString("parameter_type", mcp.Description("Type name of the parameter record (optional)")),
		mcp.WithString("parameters", mcp.Description("JSON object merged into the parameter record (optional)")),
		mcp.WithBoolean("retain_current", mcp.Description("Keep every loaded unit resident")),
		mcp.WithBoolean("wait", mcp.Description("Wait for commit or failure (default true)")),
		mcp.WithOutputSchema[TransitionResponse](),
	), mcp.NewStructuredToolHandler(s.handleTransition))

	s.mcpServer.AddTool(mcp.NewTool("current_state",
		mcp.WithDescription("Get the committed scene and the machine state."),
		mcp.WithOutputSchema[StateResponse](),
	), mcp.NewStructuredToolHandler(s.handleState))

	s.mcpServer.AddTool(mcp.NewTool("list_scenes",
		mcp.WithDescription("List the scenes that can be transitioned to."),
	), func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		data, err := json.Marshal(s.engine.Registry().List())
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("list failed: %v", err)), nil
		}
		return mcp.NewToolResultText(string(data)), nil
	})
}

func (s *Server) handleState(ctx context.Context, request mcp.CallToolRequest, args map[string]interface{}) (StateResponse, error) {
	return StateResponse{
		Current:  s.engine.CurrentState(),
		State:    s.engine.State(),
		Busy:     s.engine.Busy(),
		Progress: s.engine.Progress(),
	}, nil
}

func (s *Server) handleTransition(ctx context.Context, request mcp.CallToolRequest, args map[string]interface{}) (TransitionResponse, error) {
	identifier, _ := args["identifier"].(string)
	if identifier == "" {
		return TransitionResponse{}, fmt.Errorf("identifier is required")
	}

	var opts []stagehand.TransitionOption
	if retain, _ := args["retain_current"].(bool); retain {
		opts = append(opts, stagehand.RetainCurrent())
	}

	typeName, _ := args["parameter_type"].(string)
	var src domain.ParameterSource
	if raw, ok := args["parameters"].(string); ok && raw != "" {
		data := make(map[string]any)
		if err := json.Unmarshal([]byte(raw), &data); err != nil {
			return TransitionResponse{}, fmt.Errorf("parameters must be a JSON object: %w", err)
		}
		src = params.FromMap(typeName, data)
	} else if typeName != "" {
		src = params.New(typeName)
	}

	req := stagehand.Request(identifier, src, opts...)
	req.ID = fmt.Sprintf("mcp-%d", time.Now().UnixNano())

	done, err := s.submitter.Submit(ctx, req)
	if err != nil {
		s.logger.Warn("MCP transition rejected", "identifier", identifier, "error", err)
		return TransitionResponse{}, fmt.Errorf("transition rejected: %w", err)
	}

	resp := TransitionResponse{ID: req.ID, Identifier: identifier, Status: "accepted"}
	if wait, ok := args["wait"].(bool); ok && !wait {
		return resp, nil
	}

	select {
	case err := <-done:
		if err != nil {
			resp.Status = "failed"
			resp.Error = err.Error()
			return resp, nil
		}
		resp.Status = "committed"
		return resp, nil
	case <-ctx.Done():
		return resp, ctx.Err()
	}
}

func (s *Server) registerResources() {
	s.mcpServer.AddResource(mcp.NewResource(scenesURI, "Scene Registry",
		mcp.WithMIMEType("application/json"),
	), func(ctx context.Context, request mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
		data, err := json.Marshal(s.engine.Registry().List())
		if err != nil {
			return nil, fmt.Errorf("failed to encode scenes: %w", err)
		}
		return []mcp.ResourceContents{
			mcp.TextResourceContents{
				URI:      scenesURI,
				MIMEType: "application/json",
				Text:     string(data),
			},
		}, nil
	})
}
