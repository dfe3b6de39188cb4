// ABOUTME: In-memory storage.Service fake for controller tests.
// ABOUTME: Supports failure injection and manual event delivery.
package feed

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/2389-research/laulau/internal/models"
	"github.com/2389-research/laulau/internal/storage"
)

var errInjected = errors.New("service unavailable")

type fakeService struct {
	mu       sync.Mutex
	posts    []*models.Post
	rows     []models.ReactionRow
	comments []*models.Comment
	identity *models.Identity
	events   chan models.ChangeEvent

	failIdentity  bool
	failLoad      bool
	failInsert    bool
	failDelete    error
	failSubscribe bool
	calls         map[string]int
	clock         time.Time

	// Hooks run outside the lock, after the call has read its data.
	onListRows     func(call int)
	onListComments func()
}

func newFakeService() *fakeService {
	return &fakeService{
		events: make(chan models.ChangeEvent, 16),
		calls:  make(map[string]int),
		clock:  time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC),
	}
}

func (f *fakeService) called(op string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[op]
}

func (f *fakeService) tick() time.Time {
	f.clock = f.clock.Add(time.Second)
	return f.clock
}

func (f *fakeService) ListPosts(ctx context.Context) ([]*models.Post, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failLoad {
		return nil, errInjected
	}
	out := make([]*models.Post, len(f.posts))
	for i, p := range f.posts {
		cp := *p
		out[i] = &cp
	}
	models.SortPostsNewestFirst(out)
	return out, nil
}

func (f *fakeService) InsertPost(ctx context.Context, draft models.PostDraft, authorID string) (*models.Post, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls["insert_post"]++
	if f.failInsert {
		return nil, errInjected
	}
	p := models.NewPost(draft, authorID)
	p.CreatedAt = f.tick()
	f.posts = append(f.posts, p)
	cp := *p
	return &cp, nil
}

func (f *fakeService) DeletePost(ctx context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls["delete_post"]++
	if f.failDelete != nil {
		return f.failDelete
	}
	for i, p := range f.posts {
		if p.ID == id {
			f.posts = append(f.posts[:i], f.posts[i+1:]...)
			return nil
		}
	}
	return storage.ErrNotFound
}

func (f *fakeService) ListReactionRows(ctx context.Context) ([]models.ReactionRow, error) {
	f.mu.Lock()
	if f.failLoad {
		f.mu.Unlock()
		return nil, errInjected
	}
	f.calls["list_rows"]++
	call := f.calls["list_rows"]
	rows := append([]models.ReactionRow(nil), f.rows...)
	hook := f.onListRows
	f.mu.Unlock()

	if hook != nil {
		hook(call)
	}
	return rows, nil
}

func (f *fakeService) ToggleReaction(ctx context.Context, postID, userID, emoji string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls["toggle_reaction"]++
	row := models.ReactionRow{PostID: postID, UserID: userID, Emoji: emoji}
	for i, r := range f.rows {
		if r == row {
			f.rows = append(f.rows[:i], f.rows[i+1:]...)
			return nil
		}
	}
	f.rows = append(f.rows, row)
	return nil
}

func (f *fakeService) ListComments(ctx context.Context) ([]*models.Comment, error) {
	f.mu.Lock()
	if f.failLoad {
		f.mu.Unlock()
		return nil, errInjected
	}
	out := make([]*models.Comment, len(f.comments))
	for i, c := range f.comments {
		cp := *c
		out[i] = &cp
	}
	hook := f.onListComments
	f.mu.Unlock()

	if hook != nil {
		hook()
	}
	return out, nil
}

func (f *fakeService) InsertComment(ctx context.Context, postID, authorID, author, text string) (*models.Comment, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls["insert_comment"]++
	c := models.NewComment(postID, authorID, author, text)
	c.CreatedAt = f.tick()
	f.comments = append(f.comments, c)
	cp := *c
	return &cp, nil
}

// Subscribe hands out a fresh feed channel each time; tests push events on
// the current one through feed().
func (f *fakeService) Subscribe(ctx context.Context, tables ...models.Table) (<-chan models.ChangeEvent, func(), error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls["subscribe"]++
	if f.failSubscribe {
		return nil, nil, errInjected
	}
	f.events = make(chan models.ChangeEvent, 16)
	return f.events, func() {}, nil
}

func (f *fakeService) feed() chan models.ChangeEvent {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.events
}

// endFeed closes the current feed, as a dropped connection or a cut-off
// subscriber would.
func (f *fakeService) endFeed() {
	f.mu.Lock()
	defer f.mu.Unlock()
	close(f.events)
}

func (f *fakeService) setFailSubscribe(fail bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.failSubscribe = fail
}

// addPost commits a post written by another session, without an event.
func (f *fakeService) addPost(id string) *models.Post {
	f.mu.Lock()
	defer f.mu.Unlock()
	p := &models.Post{ID: id, Title: id, Content: id, MediaKind: models.MediaPhoto, MediaURL: "http://x/" + id, AuthorID: "someone-else", CreatedAt: f.tick()}
	f.posts = append(f.posts, p)
	cp := *p
	return &cp
}

func (f *fakeService) CurrentIdentity(ctx context.Context) (*models.Identity, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.identity == nil {
		return nil, nil
	}
	cp := *f.identity
	return &cp, nil
}

func (f *fakeService) EstablishAnonymousIdentity(ctx context.Context) (*models.Identity, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failIdentity {
		return nil, errInjected
	}
	f.identity = &models.Identity{UserID: uuid.New().String(), Anonymous: true}
	cp := *f.identity
	return &cp, nil
}

func (f *fakeService) Close() error {
	return nil
}
