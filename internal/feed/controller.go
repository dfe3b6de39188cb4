// ABOUTME: Feed controller owning the in-memory posts, tallies, and comment threads.
// ABOUTME: Turns user intents into service calls and merges realtime change events.
package feed

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/brianvoe/gofakeit/v7"
	"github.com/go-playground/validator/v10"

	"github.com/2389-research/laulau/internal/confirm"
	"github.com/2389-research/laulau/internal/models"
	"github.com/2389-research/laulau/internal/storage"
)

// Delete confirmation prompt.
const (
	DeleteTitle   = "Delete Post"
	DeleteMessage = "Are you sure you want to delete this post? This action cannot be undone."
)

// opTimeout bounds service calls made from event handling and gate callbacks.
const opTimeout = 30 * time.Second

// Delays between attempts to re-establish a lost change feed.
const (
	DefaultMinBackoff = time.Second
	DefaultMaxBackoff = 30 * time.Second
)

var feedTables = []models.Table{models.TablePosts, models.TableReactions, models.TableComments}

// Controller is the canonical client-side copy of the feed.
type Controller struct {
	svc      storage.Service
	gate     *confirm.Gate
	logger   *slog.Logger
	validate *validator.Validate
	faker    *gofakeit.Faker

	ctx        context.Context
	cancel     context.CancelFunc
	minBackoff time.Duration
	maxBackoff time.Duration

	mu         sync.Mutex
	posts      []*models.Post
	tallies    map[string]models.Tally
	comments   map[string][]*models.Comment
	tombstones map[string]struct{}
	identity   *models.Identity
	ready      bool
	notices    []Notice
	nextNotice int
	unsub      func()
	closed     bool
	live       bool
	outage     bool

	// Tally fetches are numbered when they start. A fetch result is stored
	// only if it started after the one that produced the current value.
	fetchSeq   uint64
	tallyAt    map[string]uint64
	tallyFloor uint64

	changes   chan struct{}
	done      chan struct{}
	closeOnce sync.Once
}

// Option configures a Controller.
type Option func(*Controller)

// WithLogger sets the logger used for event application.
func WithLogger(l *slog.Logger) Option {
	return func(c *Controller) {
		c.logger = l
	}
}

// WithGate shares an existing confirmation gate.
func WithGate(g *confirm.Gate) Option {
	return func(c *Controller) {
		c.gate = g
	}
}

// WithFaker sets the faker used to generate guest labels.
func WithFaker(f *gofakeit.Faker) Option {
	return func(c *Controller) {
		c.faker = f
	}
}

// WithResubscribeBackoff bounds the wait between attempts to restore a lost change feed.
func WithResubscribeBackoff(minWait, maxWait time.Duration) Option {
	return func(c *Controller) {
		c.minBackoff = minWait
		c.maxBackoff = maxWait
	}
}

// New creates a controller over svc. Call Initialize before use.
func New(svc storage.Service, opts ...Option) *Controller {
	ctx, cancel := context.WithCancel(context.Background())
	c := &Controller{
		svc:        svc,
		gate:       confirm.New(),
		logger:     slog.Default(),
		validate:   models.NewValidator(),
		faker:      gofakeit.New(0),
		ctx:        ctx,
		cancel:     cancel,
		minBackoff: DefaultMinBackoff,
		maxBackoff: DefaultMaxBackoff,
		tallies:    make(map[string]models.Tally),
		tallyAt:    make(map[string]uint64),
		comments:   make(map[string][]*models.Comment),
		tombstones: make(map[string]struct{}),
		changes:    make(chan struct{}, 1),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Gate returns the confirmation gate guarding destructive intents.
func (c *Controller) Gate() *confirm.Gate {
	return c.gate
}

// Changes returns a channel that receives a value whenever visible state changed.
// Signals coalesce; read Snapshot after each one.
func (c *Controller) Changes() <-chan struct{} {
	return c.changes
}

func (c *Controller) notify() {
	select {
	case c.changes <- struct{}{}:
	default:
	}
}

// Initialize establishes the session identity, subscribes to changes, and
// loads the feed. Failures are recorded as notices and the first one is
// returned; the controller stays usable (read-only without an identity).
// The subscription opens before the load so nothing committed in between is
// missed; events buffered meanwhile are applied after the load and dedupe.
func (c *Controller) Initialize(ctx context.Context) error {
	var firstErr error
	record := func(err error) {
		if firstErr == nil {
			firstErr = err
		}
	}

	ident, err := c.svc.CurrentIdentity(ctx)
	if err == nil && ident == nil {
		ident, err = c.svc.EstablishAnonymousIdentity(ctx)
	}
	if err != nil {
		c.logger.Warn("session identity unavailable", "error", err)
		c.addNotice(LevelError, "Sign-in Failed", fmt.Sprintf("Could not start a session: %v. The feed is read-only.", err))
		record(&ServiceError{Op: "identity", Err: err})
	} else {
		c.mu.Lock()
		c.identity = ident
		c.ready = true
		c.mu.Unlock()
	}

	events, subErr := c.subscribe(ctx)
	if subErr != nil {
		c.logger.Warn("realtime subscription failed", "error", subErr)
		c.mu.Lock()
		c.outage = true
		c.addNoticeLocked(LevelError, titleFeedDown, fmt.Sprintf(msgFeedDown, subErr))
		c.mu.Unlock()
		record(&ServiceError{Op: "subscribe", Err: subErr})
	}

	if err := c.load(ctx); err != nil {
		c.logger.Warn("feed load failed", "error", err)
		c.addNotice(LevelError, "Load Failed", fmt.Sprintf("Could not load the feed: %v", err))
		record(&ServiceError{Op: "load", Err: err})
	}

	c.mu.Lock()
	c.live = events != nil
	c.done = make(chan struct{})
	done := c.done
	c.mu.Unlock()
	go c.run(events, done)

	c.notify()
	return firstErr
}

// subscribe opens a change feed and makes it the controller's current one.
func (c *Controller) subscribe(ctx context.Context) (<-chan models.ChangeEvent, error) {
	events, unsub, err := c.svc.Subscribe(ctx, feedTables...)
	if err != nil {
		return nil, err
	}
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		unsub()
		return nil, context.Canceled
	}
	old := c.unsub
	c.unsub = unsub
	c.mu.Unlock()
	if old != nil {
		old()
	}
	return events, nil
}

func (c *Controller) dropSubscription() {
	c.mu.Lock()
	unsub := c.unsub
	c.unsub = nil
	c.mu.Unlock()
	if unsub != nil {
		unsub()
	}
}

// load replaces local state with the service's current contents. Deleted
// posts stay deleted, and tallies fetched after the load started are kept.
func (c *Controller) load(ctx context.Context) error {
	c.mu.Lock()
	c.fetchSeq++
	seq := c.fetchSeq
	c.mu.Unlock()

	posts, err := c.svc.ListPosts(ctx)
	if err != nil {
		return err
	}
	rows, err := c.svc.ListReactionRows(ctx)
	if err != nil {
		return err
	}
	comments, err := c.svc.ListComments(ctx)
	if err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	kept := posts[:0]
	for _, p := range posts {
		if _, gone := c.tombstones[p.ID]; !gone {
			kept = append(kept, p)
		}
	}
	models.SortPostsNewestFirst(kept)

	byPost := make(map[string][]*models.Comment)
	for _, cm := range comments {
		if _, gone := c.tombstones[cm.PostID]; gone {
			continue
		}
		byPost[cm.PostID] = append(byPost[cm.PostID], cm)
	}
	for _, list := range byPost {
		models.SortCommentsOldestFirst(list)
	}

	tallies := models.TallyAll(rows)
	for postID, at := range c.tallyAt {
		if at <= seq {
			delete(c.tallyAt, postID)
			continue
		}
		if t, ok := c.tallies[postID]; ok {
			tallies[postID] = t
		}
	}
	for postID := range c.tombstones {
		delete(tallies, postID)
	}

	c.posts = kept
	c.tallies = tallies
	c.comments = byPost
	if seq > c.tallyFloor {
		c.tallyFloor = seq
	}
	return nil
}

// run applies events until the controller is closed. When the feed ends
// (the subscriber fell behind or the connection dropped) it resubscribes and
// reloads, since events may have been missed.
func (c *Controller) run(events <-chan models.ChangeEvent, done chan struct{}) {
	defer close(done)
	pause := events == nil
	since := time.Now()
	for {
		if events == nil {
			if events = c.resync(pause); events == nil {
				return
			}
			since = time.Now()
		}
		select {
		case <-c.ctx.Done():
			return
		case ev, ok := <-events:
			if !ok {
				if c.ctx.Err() != nil {
					return
				}
				c.logger.Info("change feed ended, resubscribing")
				c.mu.Lock()
				c.live = false
				c.mu.Unlock()
				c.notify()
				events = nil
				// A feed that ends straight away is not retried in a tight loop.
				pause = time.Since(since) < c.minBackoff
				continue
			}
			c.Apply(c.ctx, ev)
		}
	}
}

// resync resubscribes and reloads until it succeeds or the controller
// closes, backing off between failures. It returns nil once closing.
func (c *Controller) resync(pause bool) <-chan models.ChangeEvent {
	wait := c.minBackoff
	for {
		if pause {
			select {
			case <-c.ctx.Done():
				return nil
			case <-time.After(wait):
			}
			wait = min(wait*2, c.maxBackoff)
		}
		pause = true

		events, err := c.reconnect()
		if err == nil {
			return events
		}
		if c.ctx.Err() != nil {
			return nil
		}
		c.logger.Warn("live updates unavailable", "error", err)
		c.mu.Lock()
		first := !c.outage
		c.outage = true
		if first {
			c.addNoticeLocked(LevelError, titleFeedDown, fmt.Sprintf(msgFeedDown, err))
		}
		c.mu.Unlock()
		if first {
			c.notify()
		}
	}
}

func (c *Controller) reconnect() (<-chan models.ChangeEvent, error) {
	events, err := c.subscribe(c.ctx)
	if err != nil {
		return nil, err
	}
	ctx, cancel := context.WithTimeout(c.ctx, opTimeout)
	defer cancel()
	if err := c.load(ctx); err != nil {
		c.dropSubscription()
		return nil, err
	}

	c.mu.Lock()
	c.live = true
	if c.outage {
		c.outage = false
		c.addNoticeLocked(LevelInfo, titleFeedRestored, msgFeedRestored)
	}
	c.mu.Unlock()
	c.notify()
	return events, nil
}

// Close tears down the subscription. No events are applied afterwards.
func (c *Controller) Close() error {
	c.closeOnce.Do(func() {
		c.cancel()
		c.mu.Lock()
		c.closed = true
		c.live = false
		unsub, done := c.unsub, c.done
		c.unsub = nil
		c.mu.Unlock()
		if unsub != nil {
			unsub()
		}
		if done != nil {
			<-done
		}
	})
	return nil
}

func (c *Controller) currentIdentity() *models.Identity {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.identity
}

func (c *Controller) findLocked(id string) (int, *models.Post) {
	for i, p := range c.posts {
		if p.ID == id {
			return i, p
		}
	}
	return -1, nil
}

// CanDelete reports whether the session identity owns post.
func (c *Controller) CanDelete(post models.Post) bool {
	ident := c.currentIdentity()
	return ident != nil && post.AuthorID == ident.UserID
}

// SetDisplayName changes the label used on this session's comments.
func (c *Controller) SetDisplayName(name string) error {
	c.mu.Lock()
	if c.identity == nil {
		c.mu.Unlock()
		return ErrNotReady
	}
	ident := *c.identity
	ident.DisplayName = strings.TrimSpace(name)
	c.identity = &ident
	c.mu.Unlock()
	c.notify()
	return nil
}

// CreatePost validates draft and inserts it. The acknowledged post is added to
// the feed immediately; a later insert event for it is a no-op.
func (c *Controller) CreatePost(ctx context.Context, draft models.PostDraft) (*models.Post, error) {
	draft.Title = strings.TrimSpace(draft.Title)
	draft.MediaURL = strings.TrimSpace(draft.MediaURL)
	if draft.MediaKind == "" {
		draft.MediaKind = models.MediaPhoto
	}
	if err := c.validate.Struct(draft); err != nil {
		c.addNotice(LevelError, titleMissingFields, msgMissingFields)
		return nil, &ValidationError{Field: models.FieldError(err), Message: msgMissingFields}
	}

	ident := c.currentIdentity()
	if ident == nil {
		return nil, ErrNotReady
	}

	post, err := c.svc.InsertPost(ctx, draft, ident.UserID)
	if err != nil {
		c.addNotice(LevelError, "Post Failed", err.Error())
		return nil, &ServiceError{Op: "create post", Err: err}
	}

	c.mu.Lock()
	c.insertPostLocked(post)
	c.addNoticeLocked(LevelInfo, titlePostCreated, msgPostCreated)
	c.mu.Unlock()
	c.notify()
	return post, nil
}

// RequestDelete opens the confirmation gate for deleting id. Nothing is
// deleted until the gate is confirmed.
func (c *Controller) RequestDelete(ctx context.Context, id string) error {
	c.mu.Lock()
	ident := c.identity
	_, post := c.findLocked(id)
	c.mu.Unlock()

	if ident == nil {
		return ErrNotReady
	}
	if post == nil {
		return ErrUnknownPost
	}
	if post.AuthorID != ident.UserID {
		return ErrNotOwner
	}

	c.gate.Open(DeleteTitle, DeleteMessage, func() error {
		return c.deleteConfirmed(id)
	}, nil)
	c.notify()
	return nil
}

// Confirm resolves the pending confirmation affirmatively.
func (c *Controller) Confirm() error {
	err := c.gate.Confirm()
	c.notify()
	return err
}

// Cancel dismisses the pending confirmation without side effects.
func (c *Controller) Cancel() error {
	err := c.gate.Cancel()
	c.notify()
	return err
}

func (c *Controller) deleteConfirmed(id string) error {
	ctx, cancel := context.WithTimeout(c.ctx, opTimeout)
	defer cancel()

	err := c.svc.DeletePost(ctx, id)
	if err != nil && !errors.Is(err, storage.ErrNotFound) {
		c.addNotice(LevelError, "Delete Failed", err.Error())
		return &ServiceError{Op: "delete post", Err: err}
	}

	c.mu.Lock()
	c.removePostLocked(id)
	c.addNoticeLocked(LevelInfo, titlePostDeleted, msgPostDeleted)
	c.mu.Unlock()
	c.notify()
	return nil
}

// React toggles the session's emoji reaction on postID, then recomputes the
// post's tally from the authoritative rows.
func (c *Controller) React(ctx context.Context, postID, emoji string) error {
	if !models.IsReactionEmoji(emoji) {
		return &ValidationError{Field: "emoji", Message: fmt.Sprintf("unsupported reaction %q", emoji)}
	}
	c.mu.Lock()
	ident := c.identity
	_, post := c.findLocked(postID)
	c.mu.Unlock()

	if ident == nil {
		return ErrNotReady
	}
	if post == nil {
		return ErrUnknownPost
	}

	if err := c.svc.ToggleReaction(ctx, postID, ident.UserID, emoji); err != nil {
		c.addNotice(LevelError, "Reaction Failed", err.Error())
		return &ServiceError{Op: "toggle reaction", Err: err}
	}
	if err := c.refreshTally(ctx, postID); err != nil {
		c.addNotice(LevelError, "Reaction Failed", err.Error())
		return &ServiceError{Op: "list reactions", Err: err}
	}
	return nil
}

// refreshTally recomputes postID's tally from the service's rows. Refreshes
// can overlap; a result older than the stored one is discarded.
func (c *Controller) refreshTally(ctx context.Context, postID string) error {
	c.mu.Lock()
	c.fetchSeq++
	seq := c.fetchSeq
	c.mu.Unlock()

	rows, err := c.svc.ListReactionRows(ctx)
	if err != nil {
		return err
	}
	tally := models.TallyFor(rows, postID)

	c.mu.Lock()
	_, gone := c.tombstones[postID]
	if !gone && seq > c.tallyFloor && seq > c.tallyAt[postID] {
		c.tallies[postID] = tally
		c.tallyAt[postID] = seq
	}
	c.mu.Unlock()
	c.notify()
	return nil
}

// Comment adds text to postID's thread, authored by the session's display
// name or a generated guest label.
func (c *Controller) Comment(ctx context.Context, postID, text string) (*models.Comment, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		c.addNotice(LevelError, titleEmptyComment, msgEmptyComment)
		return nil, &ValidationError{Field: "text", Message: msgEmptyComment}
	}

	c.mu.Lock()
	ident := c.identity
	_, post := c.findLocked(postID)
	c.mu.Unlock()

	if ident == nil {
		return nil, ErrNotReady
	}
	if post == nil {
		return nil, ErrUnknownPost
	}

	author := ident.DisplayName
	if author == "" {
		author = c.guestLabel()
	}

	cm, err := c.svc.InsertComment(ctx, postID, ident.UserID, author, text)
	if err != nil {
		c.addNotice(LevelError, "Comment Failed", err.Error())
		return nil, &ServiceError{Op: "add comment", Err: err}
	}

	c.mu.Lock()
	c.insertCommentLocked(cm)
	c.addNoticeLocked(LevelInfo, titleCommentAdded, msgCommentAdded)
	c.mu.Unlock()
	c.notify()
	return cm, nil
}

func (c *Controller) guestLabel() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return fmt.Sprintf("User%d", c.faker.Number(0, 999))
}

// Apply merges one change event into the feed. Applying the same event twice,
// or events in a different order, converges to the same state.
func (c *Controller) Apply(ctx context.Context, ev models.ChangeEvent) {
	c.logger.Debug("applying change", "table", ev.Table, "kind", ev.Kind, "post_id", ev.PostID())

	switch ev.Table {
	case models.TablePosts:
		if ev.Post == nil {
			return
		}
		c.mu.Lock()
		switch ev.Kind {
		case models.EventInsert:
			c.insertPostLocked(ev.Post)
		case models.EventUpdate:
			if i, _ := c.findLocked(ev.Post.ID); i >= 0 {
				p := *ev.Post
				c.posts[i] = &p
			}
		case models.EventDelete:
			c.removePostLocked(ev.Post.ID)
		}
		c.mu.Unlock()

	case models.TableReactions:
		postID := ev.PostID()
		if postID == "" {
			return
		}
		ctx, cancel := context.WithTimeout(ctx, opTimeout)
		defer cancel()
		if err := c.refreshTally(ctx, postID); err != nil {
			c.logger.Warn("tally refresh failed", "post_id", postID, "error", err)
		}
		return

	case models.TableComments:
		if ev.Comment == nil {
			return
		}
		c.mu.Lock()
		switch ev.Kind {
		case models.EventInsert, models.EventUpdate:
			c.insertCommentLocked(ev.Comment)
		case models.EventDelete:
			c.removeCommentLocked(ev.Comment)
		}
		c.mu.Unlock()

	default:
		return
	}
	c.notify()
}

// insertPostLocked adds post if it is neither present nor deleted, keeping newest first.
func (c *Controller) insertPostLocked(post *models.Post) {
	if _, gone := c.tombstones[post.ID]; gone {
		return
	}
	if i, _ := c.findLocked(post.ID); i >= 0 {
		return
	}
	p := *post
	at := len(c.posts)
	for i, existing := range c.posts {
		if p.CreatedAt.After(existing.CreatedAt) {
			at = i
			break
		}
	}
	c.posts = append(c.posts, nil)
	copy(c.posts[at+1:], c.posts[at:])
	c.posts[at] = &p
}

// removePostLocked drops a post with its tally and thread and remembers the id.
func (c *Controller) removePostLocked(id string) {
	c.tombstones[id] = struct{}{}
	delete(c.tallies, id)
	delete(c.tallyAt, id)
	delete(c.comments, id)
	if i, _ := c.findLocked(id); i >= 0 {
		c.posts = append(c.posts[:i], c.posts[i+1:]...)
	}
}

// insertCommentLocked adds or replaces a comment, keeping the thread ascending.
func (c *Controller) insertCommentLocked(cm *models.Comment) {
	if _, gone := c.tombstones[cm.PostID]; gone {
		return
	}
	thread := c.comments[cm.PostID]
	for i, existing := range thread {
		if existing.ID == cm.ID {
			updated := *cm
			thread[i] = &updated
			return
		}
	}
	copied := *cm
	at := len(thread)
	for i := len(thread) - 1; i >= 0; i-- {
		if !thread[i].CreatedAt.After(copied.CreatedAt) {
			break
		}
		at = i
	}
	thread = append(thread, nil)
	copy(thread[at+1:], thread[at:])
	thread[at] = &copied
	c.comments[cm.PostID] = thread
}

func (c *Controller) removeCommentLocked(cm *models.Comment) {
	for postID, thread := range c.comments {
		if cm.PostID != "" && postID != cm.PostID {
			continue
		}
		for i, existing := range thread {
			if existing.ID == cm.ID {
				c.comments[postID] = append(thread[:i], thread[i+1:]...)
				return
			}
		}
	}
}
