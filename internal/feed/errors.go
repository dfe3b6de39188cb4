// ABOUTME: Error values returned by feed controller intents.
// ABOUTME: Separates local validation failures from failures reported by the data service.
package feed

import (
	"errors"
	"fmt"
)

var (
	// ErrNotReady is returned by write intents while no session identity is established.
	ErrNotReady = errors.New("feed is read-only: no session identity")

	// ErrNotOwner is returned when deleting a post owned by someone else.
	ErrNotOwner = errors.New("only the author can delete this post")

	// ErrUnknownPost is returned when an intent names a post that is not in the feed.
	ErrUnknownPost = errors.New("post not in feed")

	// ErrAmbiguousPost is returned when an ID prefix matches more than one post.
	ErrAmbiguousPost = errors.New("post id prefix matches more than one post")
)

// ValidationError reports a missing or malformed user-supplied field.
// Nothing is sent to the data service when it is returned.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Message
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// ServiceError wraps a failure reported by the data service during Op.
type ServiceError struct {
	Op  string
	Err error
}

func (e *ServiceError) Error() string {
	return fmt.Sprintf("%s failed: %v", e.Op, e.Err)
}

func (e *ServiceError) Unwrap() error {
	return e.Err
}
