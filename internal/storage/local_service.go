// ABOUTME: Session-bound data service over local tables and a file-backed identity.
// ABOUTME: Implements Service for the local variant, enforcing ownership on delete.
package storage

import (
	"context"
	"strings"

	"github.com/2389-research/laulau/internal/models"
)

// LocalService binds Tables to the identity stored in the local data directory.
type LocalService struct {
	tables   Tables
	identity *IdentityStore
}

// NewLocalService creates a local service.
func NewLocalService(tables Tables, identity *IdentityStore) *LocalService {
	return &LocalService{tables: tables, identity: identity}
}

// ListPosts returns all posts, newest first.
func (s *LocalService) ListPosts(ctx context.Context) ([]*models.Post, error) {
	return s.tables.ListPosts(ctx)
}

// InsertPost stores a new post with a fresh ID.
func (s *LocalService) InsertPost(ctx context.Context, draft models.PostDraft, authorID string) (*models.Post, error) {
	if authorID == "" {
		return nil, ErrUnauthorized
	}
	post := models.NewPost(draft, authorID)
	if err := s.tables.InsertPost(ctx, post); err != nil {
		return nil, err
	}
	return post, nil
}

// DeletePost removes a post owned by the current identity.
func (s *LocalService) DeletePost(ctx context.Context, id string) error {
	ident, err := s.identity.Get()
	if err != nil {
		return err
	}
	if ident == nil {
		return ErrUnauthorized
	}
	return s.tables.DeletePost(ctx, id, ident.UserID)
}

// ListReactionRows returns every reaction row.
func (s *LocalService) ListReactionRows(ctx context.Context) ([]models.ReactionRow, error) {
	return s.tables.ListReactionRows(ctx)
}

// ToggleReaction toggles a reaction row.
func (s *LocalService) ToggleReaction(ctx context.Context, postID, userID, emoji string) error {
	if userID == "" {
		return ErrUnauthorized
	}
	_, err := s.tables.ToggleReaction(ctx, models.ReactionRow{PostID: postID, UserID: userID, Emoji: emoji})
	return err
}

// ListComments returns all comments, oldest first.
func (s *LocalService) ListComments(ctx context.Context) ([]*models.Comment, error) {
	return s.tables.ListComments(ctx)
}

// InsertComment stores a new comment.
func (s *LocalService) InsertComment(ctx context.Context, postID, authorID, author, text string) (*models.Comment, error) {
	if authorID == "" {
		return nil, ErrUnauthorized
	}
	c := models.NewComment(postID, authorID, author, strings.TrimSpace(text))
	if err := s.tables.InsertComment(ctx, c); err != nil {
		return nil, err
	}
	return c, nil
}

// Subscribe opens an in-process change feed. The channel closes if the
// subscriber falls behind.
func (s *LocalService) Subscribe(ctx context.Context, tables ...models.Table) (<-chan models.ChangeEvent, func(), error) {
	broker := s.tables.Broker()
	if broker.Closed() {
		return nil, nil, ErrClosed
	}
	ch, cancel := broker.Subscribe(tables...)
	return ch, cancel, nil
}

// CurrentIdentity returns the stored identity, or nil.
func (s *LocalService) CurrentIdentity(ctx context.Context) (*models.Identity, error) {
	return s.identity.Get()
}

// EstablishAnonymousIdentity creates an anonymous identity if none is stored.
func (s *LocalService) EstablishAnonymousIdentity(ctx context.Context) (*models.Identity, error) {
	return s.identity.EstablishAnonymous()
}

// SetDisplayName persists the label used on this identity's comments.
func (s *LocalService) SetDisplayName(name string) (*models.Identity, error) {
	return s.identity.SetDisplayName(strings.TrimSpace(name))
}

// Close closes the underlying tables.
func (s *LocalService) Close() error {
	return s.tables.Close()
}
