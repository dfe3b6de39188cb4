// ABOUTME: MCP tool implementations for feed operations.
// ABOUTME: Registers login, posting, reaction, comment, and confirmed-delete tools.
package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	gomcp "github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/2389-research/laulau/internal/confirm"
	"github.com/2389-research/laulau/internal/feed"
	"github.com/2389-research/laulau/internal/models"
)

const shortIDLen = 8

func (s *Server) registerFeedTools() {
	s.mcp.AddTool(&gomcp.Tool{
		Name:        "login",
		Description: "Set the display name used on your comments for this session.",
		InputSchema: json.RawMessage(`{
			"type": "object",
			"properties": {
				"display_name": {"type": "string", "description": "Name shown next to your comments.", "minLength": 1}
			},
			"required": ["display_name"]
		}`),
	}, s.handleLogin)

	s.mcp.AddTool(&gomcp.Tool{
		Name:        "create_post",
		Description: "Create a new photo or video post. All fields are required.",
		InputSchema: json.RawMessage(`{
			"type": "object",
			"properties": {
				"title": {"type": "string", "minLength": 1},
				"content": {"type": "string", "minLength": 1},
				"media_kind": {"type": "string", "enum": ["photo", "video"], "description": "Defaults to photo."},
				"media_url": {"type": "string", "description": "Image URL or YouTube link.", "minLength": 1}
			},
			"required": ["title", "content", "media_url"]
		}`),
	}, s.handleCreatePost)

	s.mcp.AddTool(&gomcp.Tool{
		Name:        "read_posts",
		Description: "Retrieve posts newest first with reaction tallies and comment counts.",
		InputSchema: json.RawMessage(`{
			"type": "object",
			"properties": {
				"limit": {"type": "number", "description": "Maximum number of posts to retrieve (default 10)"},
				"offset": {"type": "number", "description": "Number of posts to skip (default 0)"}
			}
		}`),
	}, s.handleReadPosts)

	s.mcp.AddTool(&gomcp.Tool{
		Name:        "react",
		Description: "Toggle your reaction on a post. Reacting again with the same emoji removes it.",
		InputSchema: json.RawMessage(`{
			"type": "object",
			"properties": {
				"post_id": {"type": "string", "description": "Post ID or unique prefix."},
				"emoji": {"type": "string", "enum": ["👍", "❤️", "😂"]}
			},
			"required": ["post_id", "emoji"]
		}`),
	}, s.handleReact)

	s.mcp.AddTool(&gomcp.Tool{
		Name:        "comment",
		Description: "Add a comment to a post.",
		InputSchema: json.RawMessage(`{
			"type": "object",
			"properties": {
				"post_id": {"type": "string", "description": "Post ID or unique prefix."},
				"text": {"type": "string", "minLength": 1}
			},
			"required": ["post_id", "text"]
		}`),
	}, s.handleComment)

	s.mcp.AddTool(&gomcp.Tool{
		Name:        "read_comments",
		Description: "Retrieve a post's comments, oldest first.",
		InputSchema: json.RawMessage(`{
			"type": "object",
			"properties": {
				"post_id": {"type": "string", "description": "Post ID or unique prefix."}
			},
			"required": ["post_id"]
		}`),
	}, s.handleReadComments)

	s.mcp.AddTool(&gomcp.Tool{
		Name:        "delete_post",
		Description: "Request deletion of one of your posts. Nothing is deleted until confirm_delete is called.",
		InputSchema: json.RawMessage(`{
			"type": "object",
			"properties": {
				"post_id": {"type": "string", "description": "Post ID or unique prefix."}
			},
			"required": ["post_id"]
		}`),
	}, s.handleDeletePost)

	s.mcp.AddTool(&gomcp.Tool{
		Name:        "confirm_delete",
		Description: "Confirm the pending delete request.",
		InputSchema: json.RawMessage(`{"type": "object", "properties": {}}`),
	}, s.handleConfirmDelete)

	s.mcp.AddTool(&gomcp.Tool{
		Name:        "cancel_delete",
		Description: "Cancel the pending delete request. The post is kept.",
		InputSchema: json.RawMessage(`{"type": "object", "properties": {}}`),
	}, s.handleCancelDelete)
}

func shortID(id string) string {
	if len(id) > shortIDLen {
		return id[:shortIDLen]
	}
	return id
}

// resolvePostID maps an ID or unique ID prefix to a full post ID.
func (s *Server) resolvePostID(ref string) (string, error) {
	if strings.TrimSpace(ref) == "" {
		return "", fmt.Errorf("post_id is required")
	}
	return s.feed.Snapshot().ResolvePostID(ref)
}

// intentError renders a controller error as a tool error.
func intentError(action string, err error) *gomcp.CallToolResult {
	var verr *feed.ValidationError
	switch {
	case errors.As(err, &verr):
		return toolError("%s", verr.Message)
	case errors.Is(err, feed.ErrNotReady):
		return toolError("no session identity - the feed is read-only")
	default:
		return toolError("failed to %s: %v", action, err)
	}
}

func (s *Server) handleLogin(ctx context.Context, req *gomcp.CallToolRequest) (*gomcp.CallToolResult, error) {
	var args struct {
		DisplayName string `json:"display_name"`
	}
	if err := json.Unmarshal(req.Params.Arguments, &args); err != nil {
		return toolError("invalid arguments: %v", err), nil
	}

	name := strings.TrimSpace(args.DisplayName)
	if name == "" {
		return toolError("display_name is required"), nil
	}

	if err := s.feed.SetDisplayName(name); err != nil {
		return intentError("set display name", err), nil
	}

	return toolText("Logged in as %s", name), nil
}

func (s *Server) handleCreatePost(ctx context.Context, req *gomcp.CallToolRequest) (*gomcp.CallToolResult, error) {
	var args struct {
		Title     string `json:"title"`
		Content   string `json:"content"`
		MediaKind string `json:"media_kind"`
		MediaURL  string `json:"media_url"`
	}
	if err := json.Unmarshal(req.Params.Arguments, &args); err != nil {
		return toolError("invalid arguments: %v", err), nil
	}

	kind := models.MediaPhoto
	if args.MediaKind != "" {
		k, ok := models.ParseMediaKind(args.MediaKind)
		if !ok {
			return toolError("media_kind must be photo or video"), nil
		}
		kind = k
	}

	post, err := s.feed.CreatePost(ctx, models.PostDraft{
		Title:     args.Title,
		Content:   args.Content,
		MediaKind: kind,
		MediaURL:  args.MediaURL,
	})
	if err != nil {
		return intentError("create post", err), nil
	}

	return toolText("Post created (ID: %s)", shortID(post.ID)), nil
}

func (s *Server) handleReadPosts(ctx context.Context, req *gomcp.CallToolRequest) (*gomcp.CallToolResult, error) {
	var args struct {
		Limit  int `json:"limit"`
		Offset int `json:"offset"`
	}
	if err := json.Unmarshal(req.Params.Arguments, &args); err != nil {
		return toolError("invalid arguments: %v", err), nil
	}

	if args.Limit <= 0 {
		args.Limit = 10
	}
	if args.Offset < 0 {
		args.Offset = 0
	}

	snap := s.feed.Snapshot()
	posts := snap.Posts
	if args.Offset >= len(posts) {
		posts = nil
	} else {
		posts = posts[args.Offset:]
	}
	if len(posts) > args.Limit {
		posts = posts[:args.Limit]
	}

	if len(posts) == 0 {
		return toolText("No posts found."), nil
	}

	var sb strings.Builder
	for _, post := range posts {
		sb.WriteString(fmt.Sprintf("---\n[%s] %s (%s) %s", shortID(post.ID), post.Title, post.MediaKind, post.CreatedAt.Format("2006-01-02 15:04:05")))
		if snap.CanDelete(post) {
			sb.WriteString(" (yours)")
		}
		sb.WriteString(fmt.Sprintf("\n%s\n%s\n", post.MediaURL, post.Content))

		tally := snap.TallyFor(post.ID)
		for _, e := range models.ReactionEmojis {
			sb.WriteString(fmt.Sprintf("%s %d  ", e, tally[e]))
		}
		sb.WriteString(fmt.Sprintf("💬 %d\n", len(snap.Comments[post.ID])))
	}

	return toolText("%s", sb.String()), nil
}

func (s *Server) handleReact(ctx context.Context, req *gomcp.CallToolRequest) (*gomcp.CallToolResult, error) {
	var args struct {
		PostID string `json:"post_id"`
		Emoji  string `json:"emoji"`
	}
	if err := json.Unmarshal(req.Params.Arguments, &args); err != nil {
		return toolError("invalid arguments: %v", err), nil
	}

	id, err := s.resolvePostID(args.PostID)
	if err != nil {
		return toolError("%v", err), nil
	}
	if err := s.feed.React(ctx, id, args.Emoji); err != nil {
		return intentError("react", err), nil
	}

	return toolText("%s is now %d on %s", args.Emoji, s.feed.Snapshot().TallyFor(id)[args.Emoji], shortID(id)), nil
}

func (s *Server) handleComment(ctx context.Context, req *gomcp.CallToolRequest) (*gomcp.CallToolResult, error) {
	var args struct {
		PostID string `json:"post_id"`
		Text   string `json:"text"`
	}
	if err := json.Unmarshal(req.Params.Arguments, &args); err != nil {
		return toolError("invalid arguments: %v", err), nil
	}

	id, err := s.resolvePostID(args.PostID)
	if err != nil {
		return toolError("%v", err), nil
	}
	c, err := s.feed.Comment(ctx, id, args.Text)
	if err != nil {
		return intentError("comment", err), nil
	}

	return toolText("Comment added as %s on %s", c.Author, shortID(id)), nil
}

func (s *Server) handleReadComments(ctx context.Context, req *gomcp.CallToolRequest) (*gomcp.CallToolResult, error) {
	var args struct {
		PostID string `json:"post_id"`
	}
	if err := json.Unmarshal(req.Params.Arguments, &args); err != nil {
		return toolError("invalid arguments: %v", err), nil
	}

	id, err := s.resolvePostID(args.PostID)
	if err != nil {
		return toolError("%v", err), nil
	}

	comments := s.feed.Snapshot().Comments[id]
	if len(comments) == 0 {
		return toolText("No comments yet."), nil
	}

	var sb strings.Builder
	for _, c := range comments {
		sb.WriteString(fmt.Sprintf("@%s [%s]: %s\n", c.Author, c.CreatedAt.Format("2006-01-02 15:04:05"), c.Text))
	}
	return toolText("%s", sb.String()), nil
}

func (s *Server) handleDeletePost(ctx context.Context, req *gomcp.CallToolRequest) (*gomcp.CallToolResult, error) {
	var args struct {
		PostID string `json:"post_id"`
	}
	if err := json.Unmarshal(req.Params.Arguments, &args); err != nil {
		return toolError("invalid arguments: %v", err), nil
	}

	id, err := s.resolvePostID(args.PostID)
	if err != nil {
		return toolError("%v", err), nil
	}
	if err := s.feed.RequestDelete(ctx, id); err != nil {
		if errors.Is(err, feed.ErrNotOwner) {
			return toolError("you can only delete your own posts"), nil
		}
		return intentError("request delete", err), nil
	}

	prompt, _ := s.feed.Gate().Pending()
	return toolText("%s: %s\nCall confirm_delete to proceed or cancel_delete to keep the post.", prompt.Title, prompt.Message), nil
}

func (s *Server) handleConfirmDelete(ctx context.Context, req *gomcp.CallToolRequest) (*gomcp.CallToolResult, error) {
	if err := s.feed.Confirm(); err != nil {
		if errors.Is(err, confirm.ErrNothingPending) {
			return toolError("nothing to confirm - call delete_post first"), nil
		}
		return intentError("delete post", err), nil
	}
	return toolText("Post deleted."), nil
}

func (s *Server) handleCancelDelete(ctx context.Context, req *gomcp.CallToolRequest) (*gomcp.CallToolResult, error) {
	if err := s.feed.Cancel(); err != nil {
		if errors.Is(err, confirm.ErrNothingPending) {
			return toolError("nothing to cancel"), nil
		}
		return intentError("cancel delete", err), nil
	}
	return toolText("Delete cancelled. The post was kept."), nil
}

func toolText(format string, args ...interface{}) *gomcp.CallToolResult {
	return &gomcp.CallToolResult{
		Content: []gomcp.Content{&gomcp.TextContent{Text: fmt.Sprintf(format, args...)}},
	}
}

func toolError(format string, args ...interface{}) *gomcp.CallToolResult {
	return &gomcp.CallToolResult{
		Content: []gomcp.Content{&gomcp.TextContent{Text: fmt.Sprintf(format, args...)}},
		IsError: true,
	}
}
