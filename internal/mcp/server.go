package mcp

import (
	"log/slog"
	"net/http"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
)

// New creates an MCP server with all tools and resources registered.
func New(b Backend, version string, log *slog.Logger) *server.MCPServer {
	s := server.NewMCPServer("liftlog", version,
		server.WithToolCapabilities(false),
		server.WithResourceCapabilities(false, false),
		server.WithInstructions("liftlog workout logger. Inspect and drive the active training session: start a workout, log sets, move between exercises, run rest timers, then finish and persist it. Past sessions and per-exercise history are read-only."),
	)

	h := &handlers{b: b, log: log}

	// Tools
	s.AddTools(
		server.ServerTool{Tool: toolGetSessionState, Handler: h.getSessionState},
		server.ServerTool{Tool: toolListTemplates, Handler: h.listTemplates},
		server.ServerTool{Tool: toolStartSession, Handler: h.startSession},
		server.ServerTool{Tool: toolLogSet, Handler: h.logSet},
		server.ServerTool{Tool: toolAdvanceExercise, Handler: h.advanceExercise},
		server.ServerTool{Tool: toolStartRestTimer, Handler: h.startRestTimer},
		server.ServerTool{Tool: toolGetPrefill, Handler: h.getPrefill},
		server.ServerTool{Tool: toolGetPendingChanges, Handler: h.getPendingChanges},
		server.ServerTool{Tool: toolFinishSession, Handler: h.finishSession},
		server.ServerTool{Tool: toolGetStats, Handler: h.getStats},
		server.ServerTool{Tool: toolGetExerciseHistory, Handler: h.getExerciseHistory},
	)

	// Resources
	s.AddResources(
		server.ServerResource{Resource: resActiveSession, Handler: h.activeSession},
		server.ServerResource{Resource: resTemplates, Handler: h.templates},
	)

	return s
}

// HTTPHandler serves s over the streamable HTTP transport.
func HTTPHandler(s *server.MCPServer) http.Handler {
	return server.NewStreamableHTTPServer(s)
}

// handlers holds dependencies for MCP tool/resource handlers.
type handlers struct {
	b   Backend
	log *slog.Logger
}

// --- Resource definitions ---

var resActiveSession = mcp.NewResource(
	"liftlog://active_session",
	"Active Session",
	mcp.WithResourceDescription("The workout in progress: exercises, logged sets, cursor position and timers"),
	mcp.WithMIMEType("application/json"),
)

var resTemplates = mcp.NewResource(
	"liftlog://templates",
	"Workout Templates",
	mcp.WithResourceDescription("All saved workout templates"),
	mcp.WithMIMEType("application/json"),
)
