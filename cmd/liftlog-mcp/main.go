package main

import (
	"flag"
	"fmt"
	"log/slog"
	"os"

	"github.com/claude/liftlog/internal/mcp"
	"github.com/mark3labs/mcp-go/server"
)

// Version is set at build time via -ldflags.
var Version = "dev"

// liftlog-mcp exposes a remote liftlog server to a local MCP client over
// stdio. stdout carries the protocol, so logs go to stderr.
func main() {
	serverURL := flag.String("server", "", "liftlog server URL (e.g. https://liftlog.tail1234.ts.net)")
	flag.Parse()

	log := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelInfo}))

	if *serverURL == "" {
		fmt.Fprintf(os.Stderr, "Usage: liftlog-mcp -server <URL>\n")
		os.Exit(1)
	}

	s := mcp.New(mcp.NewHTTPClient(*serverURL), Version, log)
	log.Info("liftlog-mcp serving stdio", "server", *serverURL, "version", Version)
	if err := server.ServeStdio(s); err != nil {
		log.Error("stdio server stopped", "error", err)
		os.Exit(1)
	}
}
