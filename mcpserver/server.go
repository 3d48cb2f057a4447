package mcpserver

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"sync"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"go.uber.org/zap"

	"github.com/isdmx/playground/config"
	"github.com/isdmx/playground/sandbox"
)

const (
	serverName    = "rust-playground"
	serverVersion = "1.0.0"
)

// MCPServer represents the MCP server
type MCPServer struct {
	config    *config.Config
	logger    *zap.Logger
	executor  sandbox.Executor
	mcpServer *server.MCPServer

	mu         sync.Mutex
	httpServer *server.StreamableHTTPServer
	stopStdio  context.CancelFunc
}

// New creates a new MCPServer and registers the playground tools
func New(cfg *config.Config, logger *zap.Logger, executor sandbox.Executor) (*MCPServer, error) {
	if executor == nil {
		return nil, errors.New("executor must not be nil")
	}

	s := &MCPServer{
		config:   cfg,
		logger:   logger,
		executor: executor,
	}

	logger.Info("configuration loaded",
		zap.String("server.transport", cfg.Server.Transport),
		zap.Int("server.http_port", cfg.Server.HTTPPort),
		zap.String("tools.format.image", cfg.Tools.Format.Image),
		zap.String("tools.lint.image", cfg.Tools.Lint.Image),
	)

	s.mcpServer = server.NewMCPServer(serverName, serverVersion, server.WithToolCapabilities(false))

	s.mcpServer.AddTool(compileTool(), s.handleCompile)
	s.mcpServer.AddTool(executeTool(), s.handleExecute)
	s.mcpServer.AddTool(formatTool(), s.handleFormat)
	s.mcpServer.AddTool(lintTool(), s.handleLint)

	return s, nil
}

func channelOption() mcp.ToolOption {
	return mcp.WithString("channel",
		mcp.Description("Rust release channel"),
		mcp.Enum(string(sandbox.ChannelStable), string(sandbox.ChannelBeta), string(sandbox.ChannelNightly)),
		mcp.DefaultString(string(sandbox.ChannelStable)),
	)
}

func modeOption() mcp.ToolOption {
	return mcp.WithString("mode",
		mcp.Description("Cargo build profile"),
		mcp.Enum(string(sandbox.ModeDebug), string(sandbox.ModeRelease)),
		mcp.DefaultString(string(sandbox.ModeDebug)),
	)
}

func codeOption() mcp.ToolOption {
	return mcp.WithString("code",
		mcp.Required(),
		mcp.Description("Contents of src/main.rs"),
	)
}

func compileTool() mcp.Tool {
	return mcp.NewTool("compile",
		mcp.WithDescription("Compile Rust code and return the generated assembly or LLVM IR"),
		codeOption(),
		mcp.WithString("target",
			mcp.Required(),
			mcp.Description("What the compiler emits"),
			mcp.Enum(string(sandbox.TargetAssembly), string(sandbox.TargetLLVMIR)),
		),
		channelOption(),
		modeOption(),
		mcp.WithBoolean("tests", mcp.Description("Build the test harness")),
	)
}

func executeTool() mcp.Tool {
	return mcp.NewTool("execute",
		mcp.WithDescription("Build and run Rust code, or its tests, in an isolated container"),
		codeOption(),
		channelOption(),
		modeOption(),
		mcp.WithBoolean("tests", mcp.Description("Run cargo test instead of cargo run")),
	)
}

func formatTool() mcp.Tool {
	return mcp.NewTool("format",
		mcp.WithDescription("Format Rust code with rustfmt"),
		codeOption(),
	)
}

func lintTool() mcp.Tool {
	return mcp.NewTool("lint",
		mcp.WithDescription("Lint Rust code with clippy"),
		codeOption(),
	)
}

// buildOptions extracts the channel and mode shared by compile and execute
func buildOptions(request mcp.CallToolRequest) (sandbox.Channel, sandbox.Mode, error) {
	channel, err := sandbox.ParseChannel(request.GetString("channel", string(sandbox.ChannelStable)))
	if err != nil {
		return "", "", err
	}
	mode, err := sandbox.ParseMode(request.GetString("mode", string(sandbox.ModeDebug)))
	if err != nil {
		return "", "", err
	}
	return channel, mode, nil
}

func (s *MCPServer) handleCompile(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	code, err := request.RequireString("code")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	targetArg, err := request.RequireString("target")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	target, err := sandbox.ParseCompileTarget(targetArg)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	channel, mode, err := buildOptions(request)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	req := sandbox.CompileRequest{
		Target:  target,
		Channel: channel,
		Mode:    mode,
		Tests:   request.GetBool("tests", false),
		Code:    code,
	}

	s.logger.Info("compile requested",
		zap.String("target", string(target)),
		zap.String("channel", string(channel)),
		zap.String("mode", string(mode)))

	return runTool(ctx, s, "compile", func(ctx context.Context) (sandbox.CompileResponse, error) {
		return s.executor.Compile(ctx, req)
	})
}

func (s *MCPServer) handleExecute(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	code, err := request.RequireString("code")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	channel, mode, err := buildOptions(request)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	req := sandbox.ExecuteRequest{
		Channel: channel,
		Mode:    mode,
		Tests:   request.GetBool("tests", false),
		Code:    code,
	}

	s.logger.Info("execute requested",
		zap.String("channel", string(channel)),
		zap.String("mode", string(mode)),
		zap.Bool("tests", req.Tests))

	return runTool(ctx, s, "execute", func(ctx context.Context) (sandbox.ExecuteResponse, error) {
		return s.executor.Execute(ctx, req)
	})
}

func (s *MCPServer) handleFormat(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	code, err := request.RequireString("code")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	s.logger.Info("format requested")

	return runTool(ctx, s, "format", func(ctx context.Context) (sandbox.FormatResponse, error) {
		return s.executor.Format(ctx, sandbox.FormatRequest{Code: code})
	})
}

func (s *MCPServer) handleLint(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	code, err := request.RequireString("code")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	s.logger.Info("lint requested")

	return runTool(ctx, s, "lint", func(ctx context.Context) (sandbox.LintResponse, error) {
		return s.executor.Lint(ctx, sandbox.LintRequest{Code: code})
	})
}

// runTool runs fn as a sandbox task tied to the request and renders its
// outcome. Sandbox errors are tool errors, not protocol errors.
func runTool[T any](ctx context.Context, s *MCPServer, tool string, fn func(context.Context) (T, error)) (*mcp.CallToolResult, error) {
	task := sandbox.Go(ctx, fn)
	resp, err := task.Wait()
	if err != nil {
		s.logger.Error("sandbox call failed", zap.String("tool", tool), zap.Error(err))
		return mcp.NewToolResultError(fmt.Sprintf("%s failed: %v", tool, err)), nil
	}

	body, err := json.Marshal(resp)
	if err != nil {
		return nil, fmt.Errorf("failed to encode %s response: %w", tool, err)
	}

	s.logger.Info("sandbox call completed", zap.String("tool", tool), zap.Int("response_len", len(body)))
	return mcp.NewToolResultText(string(body)), nil
}

// ServeStdio serves on stdin/stdout until Shutdown is called or stdin closes
func (s *MCPServer) ServeStdio() error {
	s.logger.Info("starting MCP server on stdio")

	ctx, cancel := context.WithCancel(context.Background())
	s.mu.Lock()
	s.stopStdio = cancel
	s.mu.Unlock()
	defer cancel()

	err := server.NewStdioServer(s.mcpServer).Listen(ctx, os.Stdin, os.Stdout)
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

// ServeHTTP serves the streamable HTTP transport on the configured port
func (s *MCPServer) ServeHTTP() error {
	port := s.config.Server.HTTPPort
	s.logger.Info("starting MCP server on HTTP", zap.Int("port", port))

	httpServer := server.NewStreamableHTTPServer(s.mcpServer)
	s.mu.Lock()
	s.httpServer = httpServer
	s.mu.Unlock()

	err := httpServer.Start(fmt.Sprintf(":%d", port))
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

// Shutdown stops whichever transport is running
func (s *MCPServer) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	httpServer, stopStdio := s.httpServer, s.stopStdio
	s.mu.Unlock()

	if stopStdio != nil {
		stopStdio()
	}
	if httpServer != nil {
		return httpServer.Shutdown(ctx)
	}
	return nil
}

// GetMCPServer returns the underlying MCP server
func (s *MCPServer) GetMCPServer() *server.MCPServer {
	return s.mcpServer
}
