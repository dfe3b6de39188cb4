// ABOUTME: Immutable view of controller state for presentation units.
// ABOUTME: Snapshot copies everything so renderers never share memory with the controller.
package feed

import (
	"fmt"
	"strings"

	"github.com/2389-research/laulau/internal/confirm"
	"github.com/2389-research/laulau/internal/models"
)

// Snapshot is a point-in-time copy of the feed.
type Snapshot struct {
	Posts    []models.Post
	Tallies  map[string]models.Tally
	Comments map[string][]models.Comment
	Identity *models.Identity
	Ready    bool
	Live     bool
	Notices  []Notice
	Confirm  *confirm.Prompt
}

// Snapshot returns a copy of the current state.
func (c *Controller) Snapshot() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()

	s := Snapshot{
		Posts:    make([]models.Post, len(c.posts)),
		Tallies:  make(map[string]models.Tally, len(c.tallies)),
		Comments: make(map[string][]models.Comment, len(c.comments)),
		Ready:    c.ready,
		Live:     c.live,
		Notices:  append([]Notice(nil), c.notices...),
	}
	for i, p := range c.posts {
		s.Posts[i] = *p
	}
	for id, t := range c.tallies {
		cp := make(models.Tally, len(t))
		for k, v := range t {
			cp[k] = v
		}
		s.Tallies[id] = cp
	}
	for id, thread := range c.comments {
		cp := make([]models.Comment, len(thread))
		for i, cm := range thread {
			cp[i] = *cm
		}
		s.Comments[id] = cp
	}
	if c.identity != nil {
		ident := *c.identity
		s.Identity = &ident
	}
	if p, ok := c.gate.Pending(); ok {
		s.Confirm = &p
	}
	return s
}

// Post returns the post with id, if it is in the snapshot.
func (s Snapshot) Post(id string) (models.Post, bool) {
	for _, p := range s.Posts {
		if p.ID == id {
			return p, true
		}
	}
	return models.Post{}, false
}

// TallyFor returns the tally of postID with every reaction emoji present.
func (s Snapshot) TallyFor(postID string) models.Tally {
	t := models.Tally{}
	for _, e := range models.ReactionEmojis {
		t[e] = s.Tallies[postID][e]
	}
	return t
}

// CanDelete reports whether the snapshot's identity owns post.
func (s Snapshot) CanDelete(post models.Post) bool {
	return s.Identity != nil && s.Identity.UserID == post.AuthorID
}

// ResolvePostID maps a full post ID or a unique ID prefix to a full ID.
func (s Snapshot) ResolvePostID(ref string) (string, error) {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return "", ErrUnknownPost
	}
	match := ""
	for _, p := range s.Posts {
		if p.ID == ref {
			return p.ID, nil
		}
		if strings.HasPrefix(p.ID, ref) {
			if match != "" {
				return "", fmt.Errorf("%w: %q", ErrAmbiguousPost, ref)
			}
			match = p.ID
		}
	}
	if match == "" {
		return "", fmt.Errorf("%w: %q", ErrUnknownPost, ref)
	}
	return match, nil
}
