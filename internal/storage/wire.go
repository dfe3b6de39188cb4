// ABOUTME: JSON payloads exchanged between the backend server and the remote client.
// ABOUTME: Shared so both ends of the HTTP API agree on field names.
package storage

import "github.com/2389-research/laulau/internal/models"

// ServiceName identifies a laulau backend in its health response.
const ServiceName = "laulau"

// HealthResponse is returned by GET /healthz.
type HealthResponse struct {
	Status  string `json:"status"`
	Service string `json:"service"`
}

// AuthResponse is returned by POST /v1/auth/anonymous.
type AuthResponse struct {
	UserID string `json:"user_id"`
	Token  string `json:"token"`
}

// PostListResponse is the envelope of GET /v1/posts.
type PostListResponse struct {
	Posts      []*models.Post `json:"posts"`
	TotalCount int            `json:"total_count"`
}

// CreatePostRequest is the body of POST /v1/posts.
type CreatePostRequest struct {
	models.PostDraft
	AuthorID string `json:"author_id" validate:"required"`
}

// ReactionListResponse is the envelope of GET /v1/reactions.
type ReactionListResponse struct {
	Rows []models.ReactionRow `json:"rows"`
}

// ToggleReactionRequest is the body of POST /v1/reactions/toggle.
type ToggleReactionRequest struct {
	PostID string `json:"post_id" validate:"required"`
	UserID string `json:"user_id" validate:"required"`
	Emoji  string `json:"emoji" validate:"required"`
}

// ToggleReactionResponse reports whether the row exists after the toggle.
type ToggleReactionResponse struct {
	Present bool `json:"present"`
}

// CommentListResponse is the envelope of GET /v1/comments.
type CommentListResponse struct {
	Comments []*models.Comment `json:"comments"`
}

// CreateCommentRequest is the body of POST /v1/comments.
type CreateCommentRequest struct {
	PostID   string `json:"post_id" validate:"required"`
	AuthorID string `json:"author_id" validate:"required"`
	Author   string `json:"author" validate:"required"`
	Text     string `json:"text" validate:"notblank"`
}

// AssistRequest is the body of POST /v1/assist.
type AssistRequest struct {
	Seed string `json:"seed" validate:"notblank"`
}

// AssistResponse carries enhanced content.
type AssistResponse struct {
	Content string `json:"content"`
}

// ErrorResponse is the body of every non-2xx response.
type ErrorResponse struct {
	Error string `json:"error"`
}
