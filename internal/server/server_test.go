// ABOUTME: Tests for the backend HTTP API using httptest and the real remote client.
// ABOUTME: Covers sessions, ownership, validation, rate limiting, metrics, and realtime delivery.
package server

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/2389-research/laulau/internal/assist"
	"github.com/2389-research/laulau/internal/feed"
	"github.com/2389-research/laulau/internal/models"
	"github.com/2389-research/laulau/internal/storage"
)

type testBackend struct {
	tables storage.Tables
	http   *httptest.Server
}

func newTestBackend(t *testing.T, cfg Config) *testBackend {
	t.Helper()
	tables, err := storage.NewSQLiteTables(filepath.Join(t.TempDir(), "laulau.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = tables.Close() })

	if cfg.JWTSecret == nil {
		cfg.JWTSecret = []byte("test-secret")
	}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	srv, err := New(tables, cfg, WithLogger(logger), WithEnhancer(assist.NewSimulated(0)))
	require.NoError(t, err)

	hs := httptest.NewServer(srv.Handler())
	t.Cleanup(hs.Close)
	return &testBackend{tables: tables, http: hs}
}

func (b *testBackend) client(t *testing.T) *storage.RemoteClient {
	t.Helper()
	c := storage.NewRemoteClient(b.http.URL)
	_, err := c.EstablishAnonymousIdentity(context.Background())
	require.NoError(t, err)
	return c
}

func draft() models.PostDraft {
	return models.PostDraft{Title: "Hello", Content: "World", MediaKind: models.MediaPhoto, MediaURL: "http://x/img.png"}
}

func TestNewRequiresSecret(t *testing.T) {
	tables, err := storage.NewMDTables(t.TempDir())
	require.NoError(t, err)
	_, err = New(tables, Config{})
	assert.Error(t, err)
}

func TestHealthz(t *testing.T) {
	b := newTestBackend(t, Config{})
	resp, err := http.Get(b.http.URL + "/healthz")
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	var health storage.HealthResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&health))
	assert.Equal(t, storage.ServiceName, health.Service)
}

func TestSessionRoundtrip(t *testing.T) {
	b := newTestBackend(t, Config{})
	ctx := context.Background()

	c := storage.NewRemoteClient(b.http.URL)
	id, err := c.EstablishAnonymousIdentity(ctx)
	require.NoError(t, err)
	assert.NotEmpty(t, id.UserID)
	assert.NotEmpty(t, id.Token)

	req, _ := http.NewRequest(http.MethodGet, b.http.URL+"/v1/auth/me", nil)
	req.Header.Set("Authorization", "Bearer "+id.Token)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var me models.Identity
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&me))
	assert.Equal(t, id.UserID, me.UserID)
	assert.True(t, me.Anonymous)
}

func TestWritesRequireSession(t *testing.T) {
	b := newTestBackend(t, Config{})
	c := storage.NewRemoteClient(b.http.URL)

	_, err := c.InsertPost(context.Background(), draft(), "someone")
	assert.ErrorIs(t, err, storage.ErrUnauthorized)

	req, _ := http.NewRequest(http.MethodPost, b.http.URL+"/v1/posts", strings.NewReader("{}"))
	req.Header.Set("Authorization", "Bearer not-a-token")
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	_ = resp.Body.Close()
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestPostLifecycleAndOwnership(t *testing.T) {
	b := newTestBackend(t, Config{})
	ctx := context.Background()
	alice := b.client(t)
	bob := b.client(t)
	aliceID, _ := alice.CurrentIdentity(ctx)
	bobID, _ := bob.CurrentIdentity(ctx)

	post, err := alice.InsertPost(ctx, draft(), aliceID.UserID)
	require.NoError(t, err)
	assert.Equal(t, aliceID.UserID, post.AuthorID)

	_, err = bob.InsertPost(ctx, draft(), aliceID.UserID)
	assert.ErrorIs(t, err, storage.ErrForbidden, "cannot post as someone else")

	posts, err := bob.ListPosts(ctx)
	require.NoError(t, err)
	require.Len(t, posts, 1)

	require.NoError(t, bob.ToggleReaction(ctx, post.ID, bobID.UserID, "👍"))
	rows, err := alice.ListReactionRows(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, models.TallyFor(rows, post.ID)["👍"])

	cm, err := bob.InsertComment(ctx, post.ID, bobID.UserID, "User7", "nice!")
	require.NoError(t, err)
	comments, err := alice.ListComments(ctx)
	require.NoError(t, err)
	require.Len(t, comments, 1)
	assert.Equal(t, cm.ID, comments[0].ID)

	assert.ErrorIs(t, bob.DeletePost(ctx, post.ID), storage.ErrForbidden)
	require.NoError(t, alice.DeletePost(ctx, post.ID))
	assert.ErrorIs(t, alice.DeletePost(ctx, post.ID), storage.ErrNotFound)
}

func TestValidationRejectsBlankFields(t *testing.T) {
	b := newTestBackend(t, Config{})
	ctx := context.Background()
	c := b.client(t)
	id, _ := c.CurrentIdentity(ctx)

	bad := draft()
	bad.Title = "  "
	_, err := c.InsertPost(ctx, bad, id.UserID)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "title")

	posts, err := c.ListPosts(ctx)
	require.NoError(t, err)
	assert.Empty(t, posts)

	post, err := c.InsertPost(ctx, draft(), id.UserID)
	require.NoError(t, err)
	_, err = c.InsertComment(ctx, post.ID, id.UserID, "User1", "   ")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "text")

	err = c.ToggleReaction(ctx, post.ID, id.UserID, "🔥")
	require.Error(t, err)
}

func TestAssistEndpoint(t *testing.T) {
	b := newTestBackend(t, Config{})
	c := b.client(t)

	got, err := c.Enhance(context.Background(), "Beach day")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(got, "Beach day ✨\n\n"))

	_, err = c.Enhance(context.Background(), " ")
	assert.Error(t, err)
}

func TestRateLimitOnWrites(t *testing.T) {
	b := newTestBackend(t, Config{RatePerSec: 0.001, Burst: 2})

	statuses := make([]int, 0, 3)
	for i := 0; i < 3; i++ {
		resp, err := http.Post(b.http.URL+"/v1/auth/anonymous", "application/json", bytes.NewReader(nil))
		require.NoError(t, err)
		_ = resp.Body.Close()
		statuses = append(statuses, resp.StatusCode)
	}
	assert.Equal(t, []int{http.StatusOK, http.StatusOK, http.StatusTooManyRequests}, statuses)

	// Reads are not limited.
	resp, err := http.Get(b.http.URL + "/v1/posts")
	require.NoError(t, err)
	_ = resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestMetricsEndpoint(t *testing.T) {
	b := newTestBackend(t, Config{})
	resp, err := http.Get(b.http.URL + "/healthz")
	require.NoError(t, err)
	_ = resp.Body.Close()

	resp, err = http.Get(b.http.URL + "/metrics")
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()
	body, _ := io.ReadAll(resp.Body)
	assert.Contains(t, string(body), "laulau_http_requests_total")
}

func TestRealtimeDeliversChanges(t *testing.T) {
	b := newTestBackend(t, Config{})
	ctx := context.Background()
	writer := b.client(t)
	writerID, _ := writer.CurrentIdentity(ctx)

	reader := storage.NewRemoteClient(b.http.URL)
	events, cancel, err := reader.Subscribe(ctx, models.TablePosts)
	require.NoError(t, err)
	defer cancel()
	require.Eventually(t, func() bool { return b.tables.Broker().Len() == 1 }, 2*time.Second, 10*time.Millisecond)

	post, err := writer.InsertPost(ctx, draft(), writerID.UserID)
	require.NoError(t, err)

	select {
	case ev := <-events:
		assert.Equal(t, models.TablePosts, ev.Table)
		assert.Equal(t, models.EventInsert, ev.Kind)
		assert.Equal(t, post.ID, ev.PostID())
	case <-time.After(2 * time.Second):
		t.Fatal("no realtime event")
	}
}

func TestRealtimeRejectsUnknownTable(t *testing.T) {
	b := newTestBackend(t, Config{})
	resp, err := http.Get(b.http.URL + "/v1/realtime?tables=posts,bogus")
	require.NoError(t, err)
	_ = resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestControllersConvergeThroughBackend(t *testing.T) {
	b := newTestBackend(t, Config{})
	ctx := context.Background()

	alice := feed.New(storage.NewRemoteClient(b.http.URL, storage.WithDisplayName("Alice")))
	defer func() { _ = alice.Close() }()
	require.NoError(t, alice.Initialize(ctx))

	bob := feed.New(storage.NewRemoteClient(b.http.URL))
	defer func() { _ = bob.Close() }()
	require.NoError(t, bob.Initialize(ctx))

	require.Eventually(t, func() bool { return b.tables.Broker().Len() == 2 }, 2*time.Second, 10*time.Millisecond)

	post, err := alice.CreatePost(ctx, draft())
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		_, ok := bob.Snapshot().Post(post.ID)
		return ok
	}, 2*time.Second, 10*time.Millisecond)

	require.NoError(t, bob.React(ctx, post.ID, "❤️"))
	_, err = bob.Comment(ctx, post.ID, "nice!")
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		snap := alice.Snapshot()
		return snap.TallyFor(post.ID)["❤️"] == 1 && len(snap.Comments[post.ID]) == 1
	}, 2*time.Second, 10*time.Millisecond)

	assert.ErrorIs(t, bob.RequestDelete(ctx, post.ID), feed.ErrNotOwner)
	require.NoError(t, alice.RequestDelete(ctx, post.ID))
	require.NoError(t, alice.Confirm())

	require.Eventually(t, func() bool {
		_, ok := bob.Snapshot().Post(post.ID)
		return !ok
	}, 2*time.Second, 10*time.Millisecond)
}
