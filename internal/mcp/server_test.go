// ABOUTME: Tests for MCP server creation and the shared tool-call helpers.
// ABOUTME: Builds servers over a controller backed by a temporary markdown store.
package mcp

import (
	"context"
	"encoding/json"
	"testing"

	gomcp "github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/2389-research/laulau/internal/feed"
	"github.com/2389-research/laulau/internal/storage"
)

func makeFeedServer(t *testing.T) *Server {
	t.Helper()
	tmpDir := t.TempDir()
	tables, err := storage.NewMDTables(tmpDir)
	if err != nil {
		t.Fatalf("NewMDTables error: %v", err)
	}
	svc := storage.NewLocalService(tables, storage.NewIdentityStore(tmpDir))
	ctrl := feed.New(svc)
	if err := ctrl.Initialize(context.Background()); err != nil {
		t.Fatalf("Initialize error: %v", err)
	}
	t.Cleanup(func() {
		_ = ctrl.Close()
		_ = svc.Close()
	})

	server, err := NewServer(ctrl)
	if err != nil {
		t.Fatalf("NewServer error: %v", err)
	}
	return server
}

func callTool(t *testing.T, s *Server, name string, args interface{}) *gomcp.CallToolResult {
	t.Helper()
	argsJSON, err := json.Marshal(args)
	if err != nil {
		t.Fatalf("failed to marshal args: %v", err)
	}

	req := &gomcp.CallToolRequest{
		Params: &gomcp.CallToolParamsRaw{
			Name:      name,
			Arguments: argsJSON,
		},
	}

	handlers := map[string]func(context.Context, *gomcp.CallToolRequest) (*gomcp.CallToolResult, error){
		"login":          s.handleLogin,
		"create_post":    s.handleCreatePost,
		"read_posts":     s.handleReadPosts,
		"react":          s.handleReact,
		"comment":        s.handleComment,
		"read_comments":  s.handleReadComments,
		"delete_post":    s.handleDeletePost,
		"confirm_delete": s.handleConfirmDelete,
		"cancel_delete":  s.handleCancelDelete,
	}
	handler, ok := handlers[name]
	if !ok {
		t.Fatalf("unknown tool: %s", name)
	}
	result, err := handler(context.Background(), req)
	if err != nil {
		t.Fatalf("handler error: %v", err)
	}
	return result
}

func getTextContent(result *gomcp.CallToolResult) string {
	if len(result.Content) == 0 {
		return ""
	}
	if tc, ok := result.Content[0].(*gomcp.TextContent); ok {
		return tc.Text
	}
	return ""
}

func TestNewServerRequiresController(t *testing.T) {
	_, err := NewServer(nil)
	if err == nil {
		t.Error("expected error when controller is nil")
	}
}

func TestNewServerSuccess(t *testing.T) {
	server := makeFeedServer(t)
	if server == nil || server.mcp == nil {
		t.Error("expected non-nil server")
	}
}

func TestNewServerWithImplementation(t *testing.T) {
	tmpDir := t.TempDir()
	tables, _ := storage.NewMDTables(tmpDir)
	ctrl := feed.New(storage.NewLocalService(tables, storage.NewIdentityStore(tmpDir)))
	defer ctrl.Close()

	server, err := NewServer(ctrl, WithImplementation("laulau-test", "0.0.1"))
	if err != nil {
		t.Fatalf("NewServer error: %v", err)
	}
	if server.mcp == nil {
		t.Error("expected MCP server to be set")
	}
}
