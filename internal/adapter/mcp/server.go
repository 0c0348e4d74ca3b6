package mcp

import (
	"log/slog"

	"github.com/guillermoBallester/maskit/internal/core/port"
	"github.com/guillermoBallester/maskit/internal/core/service"
	"github.com/mark3labs/mcp-go/server"
	"go.opentelemetry.io/otel/trace"
)

// NewServer creates an MCPServer exposing the masking tools with logging and
// telemetry hooks.
func NewServer(version string, masks *service.MaskService, logger *slog.Logger, tracer trace.Tracer, inst port.Instrumentation) *server.MCPServer {
	s := server.NewMCPServer(
		serverName,
		version,
		server.WithToolCapabilities(true),
		server.WithHooks(ToolCallHooks(logger, tracer, inst)),
	)

	RegisterTools(s, masks)

	return s
}
