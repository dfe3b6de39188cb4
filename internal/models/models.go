// ABOUTME: Core data models for posts, reactions, comments, and identities.
// ABOUTME: Provides constructors, tally derivation, and ordering helpers for the feed.
package models

import (
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
)

// MediaKind is the kind of media attached to a post.
type MediaKind string

const (
	MediaPhoto MediaKind = "photo"
	MediaVideo MediaKind = "video"
)

// ParseMediaKind maps user input to a MediaKind. Unknown values return false.
func ParseMediaKind(s string) (MediaKind, bool) {
	switch MediaKind(strings.ToLower(strings.TrimSpace(s))) {
	case MediaPhoto:
		return MediaPhoto, true
	case MediaVideo:
		return MediaVideo, true
	}
	return "", false
}

// ReactionEmojis is the fixed set of reactions offered on every post.
var ReactionEmojis = []string{"👍", "❤️", "😂"}

// IsReactionEmoji returns true if emoji is one of ReactionEmojis.
func IsReactionEmoji(emoji string) bool {
	for _, e := range ReactionEmojis {
		if e == emoji {
			return true
		}
	}
	return false
}

// PostDraft holds the user-supplied fields of a new post.
type PostDraft struct {
	Title     string    `json:"title" validate:"notblank"`
	Content   string    `json:"content" validate:"notblank"`
	MediaKind MediaKind `json:"media_kind" validate:"oneof=photo video"`
	MediaURL  string    `json:"media_url" validate:"notblank"`
}

// Post is a single feed entry.
type Post struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	Content   string    `json:"content"`
	MediaKind MediaKind `json:"media_kind"`
	MediaURL  string    `json:"media_url"`
	AuthorID  string    `json:"author_id"`
	CreatedAt time.Time `json:"created_at"`
}

// NewPost creates a post from a draft with generated UUID and timestamp.
func NewPost(draft PostDraft, authorID string) *Post {
	return &Post{
		ID:        uuid.New().String(),
		Title:     draft.Title,
		Content:   draft.Content,
		MediaKind: draft.MediaKind,
		MediaURL:  draft.MediaURL,
		AuthorID:  authorID,
		CreatedAt: time.Now(),
	}
}

// Comment is a single comment on a post.
type Comment struct {
	ID        string    `json:"id"`
	PostID    string    `json:"post_id"`
	AuthorID  string    `json:"author_id"`
	Author    string    `json:"author"`
	Text      string    `json:"text"`
	CreatedAt time.Time `json:"created_at"`
}

// NewComment creates a comment with generated UUID and timestamp.
func NewComment(postID, authorID, author, text string) *Comment {
	return &Comment{
		ID:        uuid.New().String(),
		PostID:    postID,
		AuthorID:  authorID,
		Author:    author,
		Text:      text,
		CreatedAt: time.Now(),
	}
}

// ReactionRow records that a user reacted to a post with an emoji.
// A user holds at most one row per (post, emoji).
type ReactionRow struct {
	PostID string `json:"post_id" yaml:"post_id"`
	UserID string `json:"user_id" yaml:"user_id"`
	Emoji  string `json:"emoji" yaml:"emoji"`
}

// Tally maps an emoji to the number of distinct users who reacted with it.
type Tally map[string]int

// TallyFor groups rows belonging to postID into a Tally.
func TallyFor(rows []ReactionRow, postID string) Tally {
	t := Tally{}
	for _, r := range rows {
		if r.PostID == postID {
			t[r.Emoji]++
		}
	}
	return t
}

// TallyAll groups rows into one Tally per post.
func TallyAll(rows []ReactionRow) map[string]Tally {
	out := make(map[string]Tally)
	for _, r := range rows {
		t, ok := out[r.PostID]
		if !ok {
			t = Tally{}
			out[r.PostID] = t
		}
		t[r.Emoji]++
	}
	return out
}

// Identity is a session identity issued by the data service.
type Identity struct {
	UserID      string `json:"user_id" yaml:"user_id"`
	DisplayName string `json:"display_name,omitempty" yaml:"display_name,omitempty"`
	Anonymous   bool   `json:"anonymous" yaml:"anonymous"`
	Token       string `json:"token,omitempty" yaml:"-"`
}

// SortPostsNewestFirst orders posts by creation time, most recent first.
func SortPostsNewestFirst(posts []*Post) {
	sort.SliceStable(posts, func(i, j int) bool {
		return posts[i].CreatedAt.After(posts[j].CreatedAt)
	})
}

// SortCommentsOldestFirst orders comments by creation time ascending.
func SortCommentsOldestFirst(comments []*Comment) {
	sort.SliceStable(comments, func(i, j int) bool {
		return comments[i].CreatedAt.Before(comments[j].CreatedAt)
	})
}
