// Package mcpserver exposes the task stores as MCP tools over stdio.
package mcpserver

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/leeovery/gittask/internal/aggregate"
	"github.com/leeovery/gittask/internal/config"
	"github.com/leeovery/gittask/internal/registry"
	"github.com/leeovery/gittask/internal/render"
	"github.com/leeovery/gittask/internal/resolve"
	"github.com/leeovery/gittask/internal/store"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"github.com/santhosh-tekuri/jsonschema/v6"
)

// Options selects the store plain ids resolve against.
type Options struct {
	// Global makes the global store the current context.
	Global bool
	// WorkDir is where project discovery starts.
	WorkDir string
}

type handlerFunc func(ctx context.Context, args []byte) (string, error)

type tool struct {
	name        string
	description string
	schema      json.RawMessage
	compiled    *jsonschema.Schema
	handle      handlerFunc
}

// Server holds the tool set and the state the tools share.
type Server struct {
	cfg      config.Config
	logger   *slog.Logger
	registry *registry.Registry
	fmtr     render.Formatter
	opts     Options
	tools    []*tool
}

// New builds the tool set and compiles each tool's input schema.
func New(cfg config.Config, logger *slog.Logger, opts Options) (*Server, error) {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	s := &Server{
		cfg:    cfg,
		logger: logger,
		registry: registry.New(cfg.GlobalDir(),
			registry.WithLockTimeout(time.Duration(cfg.LockTimeout)),
			registry.WithLogger(logger),
		),
		fmtr: render.New(render.Format(cfg.ToolFormat)),
		opts: opts,
	}
	s.tools = s.toolSet()
	for _, t := range s.tools {
		compiled, err := compileSchema(t.name, t.schema)
		if err != nil {
			return nil, err
		}
		t.compiled = compiled
	}
	return s, nil
}

// MCP returns an MCP server with every tool registered.
func (s *Server) MCP(version string) *server.MCPServer {
	m := server.NewMCPServer(
		"gittask",
		version,
		server.WithToolCapabilities(true),
		server.WithRecovery(),
		server.WithInstructions(instructions),
	)
	for _, t := range s.tools {
		m.AddTool(mcp.NewToolWithRawSchema(t.name, t.description, t.schema), s.handler(t))
	}
	return m
}

// Serve answers MCP requests read from in until ctx is cancelled or in
// reaches EOF.
func (s *Server) Serve(ctx context.Context, version string, in io.Reader, out io.Writer) error {
	s.logger.Info("server started", "tools", len(s.tools), "global", s.opts.Global, "workdir", s.opts.WorkDir)
	err := server.NewStdioServer(s.MCP(version)).Listen(ctx, in, out)
	s.logger.Info("server stopped", "error", err)
	return err
}

// Call invokes the named tool directly, as an MCP client would.
func (s *Server) Call(ctx context.Context, name string, args map[string]any) (*mcp.CallToolResult, error) {
	for _, t := range s.tools {
		if t.name == name {
			req := mcp.CallToolRequest{}
			req.Params.Name = name
			req.Params.Arguments = args
			return s.handler(t)(ctx, req)
		}
	}
	return nil, fmt.Errorf("unknown tool %q", name)
}

// handler validates the arguments of each call against the tool's schema
// before dispatch. Failures become error results, never protocol errors.
func (s *Server) handler(t *tool) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		logger := s.logger.With("call_id", uuid.NewString(), "tool", t.name)
		start := time.Now()

		args := req.GetArguments()
		if args == nil {
			args = map[string]any{}
		}
		data, err := json.Marshal(args)
		if err != nil {
			return mcp.NewToolResultError("Error: invalid arguments: " + err.Error()), nil
		}
		if err := validateArgs(t.compiled, data); err != nil {
			logger.Warn("arguments rejected", "error", err)
			return mcp.NewToolResultError("Error: invalid arguments: " + err.Error()), nil
		}

		out, err := t.handle(ctx, data)
		if err != nil {
			logger.Info("tool failed", "error", err, "duration", time.Since(start))
			return mcp.NewToolResultError("Error: " + err.Error()), nil
		}
		logger.Debug("tool done", "duration", time.Since(start))
		return mcp.NewToolResultText(out), nil
	}
}

// contextRoot returns the store root plain ids resolve against.
func (s *Server) contextRoot() (string, error) {
	return resolve.ContextRoot(s.opts.Global, s.opts.WorkDir, s.cfg.Home)
}

func (s *Server) storeOptions() []store.Option {
	return []store.Option{
		store.WithLockTimeout(time.Duration(s.cfg.LockTimeout)),
		store.WithLogger(s.logger),
	}
}

func (s *Server) currentStore() (*store.Store, error) {
	root, err := s.contextRoot()
	if err != nil {
		return nil, err
	}
	return store.Open(root, s.storeOptions()...)
}

// target resolves raw to a store and local id.
func (s *Server) target(raw idArg) (resolve.Target, *store.Store, error) {
	root, rootErr := s.contextRoot()
	t, err := resolve.New(s.registry, root).Resolve(string(raw))
	if err != nil {
		return resolve.Target{}, nil, err
	}
	if t.Root == "" {
		return resolve.Target{}, nil, rootErr
	}
	st, err := store.Open(t.Root, s.storeOptions()...)
	if err != nil {
		return resolve.Target{}, nil, err
	}
	return t, st, nil
}

func (s *Server) engine() *aggregate.Engine {
	return aggregate.New(s.registry,
		aggregate.WithWorkers(s.cfg.AggregateWorkers),
		aggregate.WithLogger(s.logger),
		aggregate.WithStoreOptions(s.storeOptions()...),
	)
}

const instructions = `gittask keeps tasks, todos and ideas as Markdown files in each project's .tasks directory.
Plain ids such as 3 refer to the current project. Qualified ids such as api:3 refer to a linked project by its label.
Use list_tasks or get_stats with aggregate=true to work across every linked project.`
