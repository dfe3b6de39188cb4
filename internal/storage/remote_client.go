// ABOUTME: HTTP client for the hosted laulau backend with a websocket change feed.
// ABOUTME: Implements Service against the REST API and caches the session token on disk.
package storage

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/2389-research/laulau/internal/models"
)

// RemoteClient talks to the backend API on behalf of one session.
type RemoteClient struct {
	apiURL      string
	displayName string
	sessionPath string // optional YAML file caching the session token
	client      *http.Client
	dialer      *websocket.Dialer

	mu       sync.Mutex
	identity *models.Identity
}

// RemoteOption configures optional RemoteClient behavior.
type RemoteOption func(*RemoteClient)

// WithDisplayName sets the display name stamped on this session's identity.
func WithDisplayName(name string) RemoteOption {
	return func(r *RemoteClient) {
		r.displayName = name
	}
}

// WithSessionFile caches the session token at path so later runs reuse the identity.
func WithSessionFile(path string) RemoteOption {
	return func(r *RemoteClient) {
		r.sessionPath = path
	}
}

// WithHTTPClient replaces the default HTTP client.
func WithHTTPClient(c *http.Client) RemoteOption {
	return func(r *RemoteClient) {
		r.client = c
	}
}

// NewRemoteClient creates a remote client for the API at apiURL.
func NewRemoteClient(apiURL string, opts ...RemoteOption) *RemoteClient {
	apiURL = strings.TrimRight(apiURL, "/")
	apiURL = strings.TrimSuffix(apiURL, "/v1")
	r := &RemoteClient{
		apiURL: apiURL,
		client: &http.Client{Timeout: 30 * time.Second},
		dialer: websocket.DefaultDialer,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// sessionFile is the YAML structure of the cached session.
type sessionFile struct {
	UserID string `yaml:"user_id"`
	Token  string `yaml:"token"`
}

func (r *RemoteClient) token() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.identity == nil {
		return ""
	}
	return r.identity.Token
}

// do sends a JSON request and decodes a JSON response into out (when non-nil).
func (r *RemoteClient) do(ctx context.Context, method, path string, in, out any) error {
	var body io.Reader
	if in != nil {
		data, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("failed to marshal request: %w", err)
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, r.apiURL+path, body)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if tok := r.token(); tok != "" {
		req.Header.Set("Authorization", "Bearer "+tok)
	}

	resp, err := r.client.Do(req)
	if err != nil {
		return fmt.Errorf("remote API request failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode >= 400 {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
		msg := strings.TrimSpace(string(respBody))
		var er ErrorResponse
		if json.Unmarshal(respBody, &er) == nil && er.Error != "" {
			msg = er.Error
		}
		switch resp.StatusCode {
		case http.StatusNotFound:
			return fmt.Errorf("%s: %w", msg, ErrNotFound)
		case http.StatusForbidden:
			return fmt.Errorf("%s: %w", msg, ErrForbidden)
		case http.StatusUnauthorized:
			return fmt.Errorf("%s: %w", msg, ErrUnauthorized)
		}
		return fmt.Errorf("remote API returned %d: %s", resp.StatusCode, msg)
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}

// ListPosts fetches all posts, newest first.
func (r *RemoteClient) ListPosts(ctx context.Context) ([]*models.Post, error) {
	var resp PostListResponse
	if err := r.do(ctx, http.MethodGet, "/v1/posts", nil, &resp); err != nil {
		return nil, err
	}
	return resp.Posts, nil
}

// InsertPost creates a post on the backend.
func (r *RemoteClient) InsertPost(ctx context.Context, draft models.PostDraft, authorID string) (*models.Post, error) {
	var post models.Post
	req := CreatePostRequest{PostDraft: draft, AuthorID: authorID}
	if err := r.do(ctx, http.MethodPost, "/v1/posts", req, &post); err != nil {
		return nil, err
	}
	return &post, nil
}

// DeletePost deletes a post owned by this session.
func (r *RemoteClient) DeletePost(ctx context.Context, id string) error {
	return r.do(ctx, http.MethodDelete, "/v1/posts/"+url.PathEscape(id), nil, nil)
}

// ListReactionRows fetches every reaction row.
func (r *RemoteClient) ListReactionRows(ctx context.Context) ([]models.ReactionRow, error) {
	var resp ReactionListResponse
	if err := r.do(ctx, http.MethodGet, "/v1/reactions", nil, &resp); err != nil {
		return nil, err
	}
	return resp.Rows, nil
}

// ToggleReaction toggles a reaction row on the backend.
func (r *RemoteClient) ToggleReaction(ctx context.Context, postID, userID, emoji string) error {
	req := ToggleReactionRequest{PostID: postID, UserID: userID, Emoji: emoji}
	return r.do(ctx, http.MethodPost, "/v1/reactions/toggle", req, &ToggleReactionResponse{})
}

// ListComments fetches all comments, oldest first.
func (r *RemoteClient) ListComments(ctx context.Context) ([]*models.Comment, error) {
	var resp CommentListResponse
	if err := r.do(ctx, http.MethodGet, "/v1/comments", nil, &resp); err != nil {
		return nil, err
	}
	return resp.Comments, nil
}

// InsertComment creates a comment on the backend.
func (r *RemoteClient) InsertComment(ctx context.Context, postID, authorID, author, text string) (*models.Comment, error) {
	var c models.Comment
	req := CreateCommentRequest{PostID: postID, AuthorID: authorID, Author: author, Text: text}
	if err := r.do(ctx, http.MethodPost, "/v1/comments", req, &c); err != nil {
		return nil, err
	}
	return &c, nil
}

// Enhance asks the backend to expand seed into fuller post content.
func (r *RemoteClient) Enhance(ctx context.Context, seed string) (string, error) {
	var resp AssistResponse
	if err := r.do(ctx, http.MethodPost, "/v1/assist", AssistRequest{Seed: seed}, &resp); err != nil {
		return "", err
	}
	return resp.Content, nil
}

// Subscribe opens the websocket change feed for the given tables.
func (r *RemoteClient) Subscribe(ctx context.Context, tables ...models.Table) (<-chan models.ChangeEvent, func(), error) {
	u, err := url.Parse(r.apiURL + "/v1/realtime")
	if err != nil {
		return nil, nil, fmt.Errorf("invalid api url: %w", err)
	}
	switch u.Scheme {
	case "https":
		u.Scheme = "wss"
	default:
		u.Scheme = "ws"
	}
	if len(tables) > 0 {
		names := make([]string, len(tables))
		for i, t := range tables {
			names[i] = string(t)
		}
		q := u.Query()
		q.Set("tables", strings.Join(names, ","))
		u.RawQuery = q.Encode()
	}

	header := http.Header{}
	if tok := r.token(); tok != "" {
		header.Set("Authorization", "Bearer "+tok)
	}

	conn, resp, err := r.dialer.DialContext(ctx, u.String(), header)
	if err != nil {
		return nil, nil, fmt.Errorf("realtime connect failed: %w", err)
	}
	if resp != nil && resp.Body != nil {
		_ = resp.Body.Close()
	}

	ch := make(chan models.ChangeEvent, subscriberBuffer)
	done := make(chan struct{})
	var once sync.Once
	cancel := func() {
		once.Do(func() {
			close(done)
			_ = conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(time.Second))
			_ = conn.Close()
		})
	}

	go func() {
		defer close(ch)
		for {
			var ev models.ChangeEvent
			if err := conn.ReadJSON(&ev); err != nil {
				return
			}
			select {
			case ch <- ev:
			case <-done:
				return
			}
		}
	}()

	return ch, cancel, nil
}

// CurrentIdentity returns the session identity, restoring a cached token if present.
// Returns nil when there is no session or the cached token was rejected.
func (r *RemoteClient) CurrentIdentity(ctx context.Context) (*models.Identity, error) {
	r.mu.Lock()
	if r.identity != nil {
		id := *r.identity
		r.mu.Unlock()
		return &id, nil
	}
	r.mu.Unlock()

	if r.sessionPath == "" {
		return nil, nil
	}
	var sf sessionFile
	if err := readYAML(r.sessionPath, &sf); err != nil {
		return nil, fmt.Errorf("failed to read session: %w", err)
	}
	if sf.Token == "" {
		return nil, nil
	}

	r.setIdentity(&models.Identity{UserID: sf.UserID, Token: sf.Token, Anonymous: true})
	var me models.Identity
	if err := r.do(ctx, http.MethodGet, "/v1/auth/me", nil, &me); err != nil {
		r.setIdentity(nil)
		if errors.Is(err, ErrUnauthorized) {
			return nil, nil
		}
		return nil, err
	}
	return r.setIdentity(&models.Identity{UserID: me.UserID, Token: sf.Token, Anonymous: me.Anonymous}), nil
}

// EstablishAnonymousIdentity requests a new anonymous session from the backend.
func (r *RemoteClient) EstablishAnonymousIdentity(ctx context.Context) (*models.Identity, error) {
	var resp AuthResponse
	if err := r.do(ctx, http.MethodPost, "/v1/auth/anonymous", nil, &resp); err != nil {
		return nil, err
	}
	id := r.setIdentity(&models.Identity{UserID: resp.UserID, Token: resp.Token, Anonymous: true})

	if r.sessionPath != "" {
		// Non-fatal: the session still works for this run
		_ = writeYAML(r.sessionPath, &sessionFile{UserID: resp.UserID, Token: resp.Token})
	}
	return id, nil
}

// setIdentity stores id, stamping the configured display name, and returns a copy.
func (r *RemoteClient) setIdentity(id *models.Identity) *models.Identity {
	r.mu.Lock()
	defer r.mu.Unlock()
	if id == nil {
		r.identity = nil
		return nil
	}
	id.DisplayName = r.displayName
	r.identity = id
	out := *id
	return &out
}

// Close is a no-op; subscriptions are torn down by their cancel funcs.
func (r *RemoteClient) Close() error {
	return nil
}
