// ABOUTME: Interface definitions for the external data service and its table layer.
// ABOUTME: Defines session-bound Service operations and actor-explicit Tables operations.
package storage

import (
	"context"
	"errors"

	"github.com/2389-research/laulau/internal/models"
)

var (
	// ErrNotFound is returned when the addressed row does not exist.
	ErrNotFound = errors.New("not found")

	// ErrForbidden is returned when the caller does not own the row it tries to change.
	ErrForbidden = errors.New("forbidden")

	// ErrUnauthorized is returned when an operation needs a session and none is present.
	ErrUnauthorized = errors.New("no session identity")

	// ErrClosed is returned when subscribing to a store that has been closed.
	ErrClosed = errors.New("store closed")
)

// Service is the data service as seen by one client session.
type Service interface {
	// ListPosts returns all posts, newest first.
	ListPosts(ctx context.Context) ([]*models.Post, error)

	// InsertPost stores a new post authored by authorID.
	InsertPost(ctx context.Context, draft models.PostDraft, authorID string) (*models.Post, error)

	// DeletePost removes a post owned by the session identity.
	// Returns ErrNotFound if it does not exist and ErrForbidden if it is not owned.
	DeletePost(ctx context.Context, id string) error

	// ListReactionRows returns every reaction membership row.
	ListReactionRows(ctx context.Context) ([]models.ReactionRow, error)

	// ToggleReaction adds the row if absent, otherwise removes it.
	ToggleReaction(ctx context.Context, postID, userID, emoji string) error

	// ListComments returns all comments, oldest first.
	ListComments(ctx context.Context) ([]*models.Comment, error)

	// InsertComment stores a new comment.
	InsertComment(ctx context.Context, postID, authorID, author, text string) (*models.Comment, error)

	// Subscribe opens a change feed for the given tables (all tables when none are given).
	// The returned func tears the subscription down and closes the channel.
	Subscribe(ctx context.Context, tables ...models.Table) (<-chan models.ChangeEvent, func(), error)

	// CurrentIdentity returns the established session identity, or nil if there is none.
	CurrentIdentity(ctx context.Context) (*models.Identity, error)

	// EstablishAnonymousIdentity issues a new anonymous identity for this session.
	EstablishAnonymousIdentity(ctx context.Context) (*models.Identity, error)

	// Close releases any resources held by the service.
	Close() error
}

// Tables is the shared table layer. Every write names its actor explicitly,
// so one Tables value can back many sessions.
type Tables interface {
	ListPosts(ctx context.Context) ([]*models.Post, error)
	GetPost(ctx context.Context, id string) (*models.Post, error)
	InsertPost(ctx context.Context, post *models.Post) error

	// DeletePost removes a post and its reactions and comments if requesterID owns it.
	DeletePost(ctx context.Context, id, requesterID string) error

	ListReactionRows(ctx context.Context) ([]models.ReactionRow, error)

	// ToggleReaction reports whether the row is present after the toggle.
	ToggleReaction(ctx context.Context, row models.ReactionRow) (bool, error)

	ListComments(ctx context.Context) ([]*models.Comment, error)
	InsertComment(ctx context.Context, comment *models.Comment) error

	// Broker returns the fan-out every committed change is published on.
	Broker() *Broker

	Close() error
}
