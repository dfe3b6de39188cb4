// ABOUTME: Change events delivered by the data service's realtime feed.
// ABOUTME: Names the tables and event kinds a subscriber can observe.
package models

import "fmt"

// Table names a subscribable collection.
type Table string

const (
	TablePosts     Table = "posts"
	TableReactions Table = "reactions"
	TableComments  Table = "comments"
)

// AllTables lists every subscribable table.
var AllTables = []Table{TablePosts, TableReactions, TableComments}

// ParseTable validates a table name.
func ParseTable(s string) (Table, error) {
	for _, t := range AllTables {
		if string(t) == s {
			return t, nil
		}
	}
	return "", fmt.Errorf("unknown table %q", s)
}

// EventKind is the type of change a ChangeEvent describes.
type EventKind string

const (
	EventInsert EventKind = "insert"
	EventUpdate EventKind = "update"
	EventDelete EventKind = "delete"
)

// ChangeEvent describes one committed change to a table. Exactly one of
// Post, Comment or Reaction is set, matching Table. Delete events only
// guarantee the identifying fields.
type ChangeEvent struct {
	Table    Table        `json:"table"`
	Kind     EventKind    `json:"kind"`
	Post     *Post        `json:"post,omitempty"`
	Comment  *Comment     `json:"comment,omitempty"`
	Reaction *ReactionRow `json:"reaction,omitempty"`
}

// PostID returns the post the event concerns, whichever table it came from.
func (e ChangeEvent) PostID() string {
	switch {
	case e.Post != nil:
		return e.Post.ID
	case e.Comment != nil:
		return e.Comment.PostID
	case e.Reaction != nil:
		return e.Reaction.PostID
	}
	return ""
}
