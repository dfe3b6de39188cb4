// ABOUTME: REST handlers for sessions, posts, reactions, comments, and content assist.
// ABOUTME: Writes are attributed to the token subject; bodies are validated before any table call.
package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/2389-research/laulau/internal/assist"
	"github.com/2389-research/laulau/internal/models"
	"github.com/2389-research/laulau/internal/storage"
)

const maxBodyBytes = 1 << 20

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, storage.ErrorResponse{Error: msg})
}

// decode reads and validates a JSON body. It writes the error response itself.
func (s *Server) decode(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(v); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return false
	}
	if err := s.validate.Struct(v); err != nil {
		field := models.FieldError(err)
		if field == "" {
			field = "body"
		}
		writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid or missing field: %s", field))
		return false
	}
	return true
}

// writeTableError maps storage errors onto HTTP statuses.
func (s *Server) writeTableError(w http.ResponseWriter, op string, err error) {
	switch {
	case errors.Is(err, storage.ErrNotFound):
		writeError(w, http.StatusNotFound, "not found")
	case errors.Is(err, storage.ErrForbidden):
		writeError(w, http.StatusForbidden, "only the author can do that")
	default:
		s.logger.Error("table operation failed", "op", op, "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}

// sameActor rejects bodies that claim to act for someone other than the session.
func sameActor(w http.ResponseWriter, r *http.Request, claimed string) bool {
	if claimed != session(r).Subject {
		writeError(w, http.StatusForbidden, "cannot act for another user")
		return false
	}
	return true
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, storage.HealthResponse{Status: "ok", Service: storage.ServiceName})
}

func (s *Server) handleAnonymous(w http.ResponseWriter, r *http.Request) {
	userID, token, err := s.issueToken()
	if err != nil {
		s.logger.Error("token issue failed", "error", err)
		writeError(w, http.StatusInternalServerError, "could not create session")
		return
	}
	writeJSON(w, http.StatusOK, storage.AuthResponse{UserID: userID, Token: token})
}

func (s *Server) handleMe(w http.ResponseWriter, r *http.Request) {
	claims := session(r)
	writeJSON(w, http.StatusOK, models.Identity{UserID: claims.Subject, Anonymous: claims.Anonymous})
}

func (s *Server) handleListPosts(w http.ResponseWriter, r *http.Request) {
	posts, err := s.tables.ListPosts(r.Context())
	if err != nil {
		s.writeTableError(w, "list posts", err)
		return
	}
	if posts == nil {
		posts = []*models.Post{}
	}
	writeJSON(w, http.StatusOK, storage.PostListResponse{Posts: posts, TotalCount: len(posts)})
}

func (s *Server) handleCreatePost(w http.ResponseWriter, r *http.Request) {
	var req storage.CreatePostRequest
	if !s.decode(w, r, &req) || !sameActor(w, r, req.AuthorID) {
		return
	}
	req.Title = strings.TrimSpace(req.Title)
	req.MediaURL = strings.TrimSpace(req.MediaURL)

	post := models.NewPost(req.PostDraft, req.AuthorID)
	if err := s.tables.InsertPost(r.Context(), post); err != nil {
		s.writeTableError(w, "insert post", err)
		return
	}
	writeJSON(w, http.StatusCreated, post)
}

func (s *Server) handleDeletePost(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := s.tables.DeletePost(r.Context(), id, session(r).Subject); err != nil {
		s.writeTableError(w, "delete post", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleListReactions(w http.ResponseWriter, r *http.Request) {
	rows, err := s.tables.ListReactionRows(r.Context())
	if err != nil {
		s.writeTableError(w, "list reactions", err)
		return
	}
	if rows == nil {
		rows = []models.ReactionRow{}
	}
	writeJSON(w, http.StatusOK, storage.ReactionListResponse{Rows: rows})
}

func (s *Server) handleToggleReaction(w http.ResponseWriter, r *http.Request) {
	var req storage.ToggleReactionRequest
	if !s.decode(w, r, &req) || !sameActor(w, r, req.UserID) {
		return
	}
	if !models.IsReactionEmoji(req.Emoji) {
		writeError(w, http.StatusBadRequest, "unsupported reaction")
		return
	}
	present, err := s.tables.ToggleReaction(r.Context(), models.ReactionRow{PostID: req.PostID, UserID: req.UserID, Emoji: req.Emoji})
	if err != nil {
		s.writeTableError(w, "toggle reaction", err)
		return
	}
	writeJSON(w, http.StatusOK, storage.ToggleReactionResponse{Present: present})
}

func (s *Server) handleListComments(w http.ResponseWriter, r *http.Request) {
	comments, err := s.tables.ListComments(r.Context())
	if err != nil {
		s.writeTableError(w, "list comments", err)
		return
	}
	if comments == nil {
		comments = []*models.Comment{}
	}
	writeJSON(w, http.StatusOK, storage.CommentListResponse{Comments: comments})
}

func (s *Server) handleCreateComment(w http.ResponseWriter, r *http.Request) {
	var req storage.CreateCommentRequest
	if !s.decode(w, r, &req) || !sameActor(w, r, req.AuthorID) {
		return
	}
	c := models.NewComment(req.PostID, req.AuthorID, strings.TrimSpace(req.Author), strings.TrimSpace(req.Text))
	if err := s.tables.InsertComment(r.Context(), c); err != nil {
		s.writeTableError(w, "insert comment", err)
		return
	}
	writeJSON(w, http.StatusCreated, c)
}

func (s *Server) handleAssist(w http.ResponseWriter, r *http.Request) {
	if s.enhancer == nil {
		writeError(w, http.StatusServiceUnavailable, "content assist is not enabled")
		return
	}
	var req storage.AssistRequest
	if !s.decode(w, r, &req) {
		return
	}
	content, err := s.enhancer.Enhance(r.Context(), req.Seed)
	if err != nil {
		if errors.Is(err, assist.ErrEmptySeed) {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		s.logger.Error("assist failed", "error", err)
		writeError(w, http.StatusBadGateway, "content assist failed")
		return
	}
	writeJSON(w, http.StatusOK, storage.AssistResponse{Content: content})
}
