// ABOUTME: Tests for the local session-bound service and identity store.
// ABOUTME: Covers identity persistence, ownership on delete, and change subscription.
package storage

import (
	"context"
	"errors"
	"testing"

	"github.com/2389-research/laulau/internal/models"
)

func newTestLocalService(t *testing.T) (*LocalService, string) {
	t.Helper()
	dir := t.TempDir()
	tables, err := NewMDTables(dir)
	if err != nil {
		t.Fatalf("NewMDTables error: %v", err)
	}
	svc := NewLocalService(tables, NewIdentityStore(dir))
	t.Cleanup(func() { _ = svc.Close() })
	return svc, dir
}

func TestIdentityStorePersists(t *testing.T) {
	dir := t.TempDir()
	store := NewIdentityStore(dir)

	id, err := store.Get()
	if err != nil {
		t.Fatalf("Get error: %v", err)
	}
	if id != nil {
		t.Fatalf("expected no identity, got %+v", id)
	}

	first, err := store.EstablishAnonymous()
	if err != nil {
		t.Fatalf("EstablishAnonymous error: %v", err)
	}
	if first.UserID == "" || !first.Anonymous {
		t.Errorf("unexpected identity: %+v", first)
	}

	again, err := NewIdentityStore(dir).EstablishAnonymous()
	if err != nil {
		t.Fatalf("EstablishAnonymous error: %v", err)
	}
	if again.UserID != first.UserID {
		t.Errorf("expected stable user id, got %s then %s", first.UserID, again.UserID)
	}

	named, err := store.SetDisplayName("Kai")
	if err != nil {
		t.Fatalf("SetDisplayName error: %v", err)
	}
	if named.UserID != first.UserID || named.DisplayName != "Kai" {
		t.Errorf("unexpected named identity: %+v", named)
	}
	got, _ := store.Get()
	if got.DisplayName != "Kai" {
		t.Errorf("display name not persisted: %+v", got)
	}
}

func TestLocalServiceRequiresIdentity(t *testing.T) {
	svc, _ := newTestLocalService(t)
	ctx := context.Background()

	draft := models.PostDraft{Title: "t", Content: "c", MediaKind: models.MediaPhoto, MediaURL: "http://x"}
	if _, err := svc.InsertPost(ctx, draft, ""); !errors.Is(err, ErrUnauthorized) {
		t.Errorf("expected ErrUnauthorized for anonymous insert, got %v", err)
	}
	if err := svc.DeletePost(ctx, "p"); !errors.Is(err, ErrUnauthorized) {
		t.Errorf("expected ErrUnauthorized for delete without identity, got %v", err)
	}
}

func TestLocalServiceDeleteOwnership(t *testing.T) {
	svc, _ := newTestLocalService(t)
	ctx := context.Background()

	me, err := svc.EstablishAnonymousIdentity(ctx)
	if err != nil {
		t.Fatalf("EstablishAnonymousIdentity error: %v", err)
	}
	draft := models.PostDraft{Title: "t", Content: "c", MediaKind: models.MediaVideo, MediaURL: "https://youtu.be/dQw4w9WgXcQ"}

	mine, err := svc.InsertPost(ctx, draft, me.UserID)
	if err != nil {
		t.Fatalf("InsertPost error: %v", err)
	}
	theirs, err := svc.InsertPost(ctx, draft, "someone-else")
	if err != nil {
		t.Fatalf("InsertPost error: %v", err)
	}

	if err := svc.DeletePost(ctx, theirs.ID); !errors.Is(err, ErrForbidden) {
		t.Errorf("expected ErrForbidden, got %v", err)
	}
	if err := svc.DeletePost(ctx, mine.ID); err != nil {
		t.Errorf("DeletePost error: %v", err)
	}
	posts, _ := svc.ListPosts(ctx)
	if len(posts) != 1 || posts[0].ID != theirs.ID {
		t.Errorf("expected only the other post to remain, got %+v", posts)
	}
}

func TestLocalServiceSubscribe(t *testing.T) {
	svc, _ := newTestLocalService(t)
	ctx := context.Background()

	events, cancel, err := svc.Subscribe(ctx, models.TableComments)
	if err != nil {
		t.Fatalf("Subscribe error: %v", err)
	}
	defer cancel()

	me, _ := svc.EstablishAnonymousIdentity(ctx)
	post, err := svc.InsertPost(ctx, models.PostDraft{Title: "t", Content: "c", MediaKind: models.MediaPhoto, MediaURL: "http://x"}, me.UserID)
	if err != nil {
		t.Fatalf("InsertPost error: %v", err)
	}
	c, err := svc.InsertComment(ctx, post.ID, me.UserID, "User7", "  nice!  ")
	if err != nil {
		t.Fatalf("InsertComment error: %v", err)
	}
	if c.Text != "nice!" {
		t.Errorf("expected trimmed text, got %q", c.Text)
	}

	ev := receive(t, events)
	if ev.Table != models.TableComments || ev.Comment.ID != c.ID {
		t.Errorf("unexpected event: %+v", ev)
	}
}

func TestLocalServiceSubscribeAfterClose(t *testing.T) {
	svc, _ := newTestLocalService(t)
	if err := svc.Close(); err != nil {
		t.Fatalf("Close error: %v", err)
	}
	if _, _, err := svc.Subscribe(context.Background()); !errors.Is(err, ErrClosed) {
		t.Errorf("expected ErrClosed, got %v", err)
	}
}

func TestLocalServiceSetDisplayName(t *testing.T) {
	svc, _ := newTestLocalService(t)
	ctx := context.Background()

	first, err := svc.EstablishAnonymousIdentity(ctx)
	if err != nil {
		t.Fatalf("EstablishAnonymousIdentity error: %v", err)
	}
	if _, err := svc.SetDisplayName("  Leilani "); err != nil {
		t.Fatalf("SetDisplayName error: %v", err)
	}

	got, err := svc.CurrentIdentity(ctx)
	if err != nil {
		t.Fatalf("CurrentIdentity error: %v", err)
	}
	if got.UserID != first.UserID || got.DisplayName != "Leilani" || !got.Anonymous {
		t.Errorf("unexpected identity after rename: %+v", got)
	}
}
