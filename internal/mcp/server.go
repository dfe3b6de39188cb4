// ABOUTME: MCP server initialization and configuration for laulau.
// ABOUTME: Exposes the feed controller's intents as tools for AI agent access.
package mcp

import (
	"context"
	"fmt"

	gomcp "github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/2389-research/laulau/internal/feed"
)

// Server wraps the MCP server around one feed controller session.
type Server struct {
	mcp  *gomcp.Server
	feed *feed.Controller
}

// ServerOption configures optional Server settings.
type ServerOption func(*Server)

// WithImplementation overrides the name and version reported to clients.
func WithImplementation(name, version string) ServerOption {
	return func(s *Server) {
		s.mcp = gomcp.NewServer(&gomcp.Implementation{Name: name, Version: version}, nil)
	}
}

// NewServer creates an MCP server over an initialized controller.
func NewServer(ctrl *feed.Controller, opts ...ServerOption) (*Server, error) {
	if ctrl == nil {
		return nil, fmt.Errorf("feed controller is required")
	}

	s := &Server{
		mcp: gomcp.NewServer(
			&gomcp.Implementation{
				Name:    "laulau",
				Version: "1.0.0",
			},
			nil,
		),
		feed: ctrl,
	}

	for _, opt := range opts {
		opt(s)
	}

	s.registerFeedTools()

	return s, nil
}

// Serve starts the MCP server in stdio mode.
func (s *Server) Serve(ctx context.Context) error {
	return s.mcp.Run(ctx, &gomcp.StdioTransport{})
}
