// ABOUTME: User-visible notices raised by the feed controller.
// ABOUTME: Notices stay until dismissed; nothing retries on their behalf.
package feed

// Level is the severity of a notice.
type Level string

const (
	LevelInfo  Level = "info"
	LevelError Level = "error"
)

// Notice is a dismissible message shown to the user.
type Notice struct {
	ID      int
	Level   Level
	Title   string
	Message string
}

// Notice titles and messages shown after user intents.
const (
	titlePostCreated   = "Post Created!"
	msgPostCreated     = "Your new post has been added successfully."
	titleCommentAdded  = "Comment Added"
	msgCommentAdded    = "Your comment has been posted successfully."
	titlePostDeleted   = "Post Deleted"
	msgPostDeleted     = "Your post has been removed successfully."
	titleMissingFields = "Missing Information"
	msgMissingFields   = "Please fill in all fields before creating a post."
	titleEmptyComment  = "Empty Comment"
	msgEmptyComment    = "Please enter a comment before sending."
)

// Notices about the realtime change feed.
const (
	titleFeedDown     = "Live Updates Unavailable"
	msgFeedDown       = "The feed will not refresh on its own: %v. Reconnecting in the background."
	titleFeedRestored = "Live Updates Restored"
	msgFeedRestored   = "The feed was reloaded and is refreshing again."
)

// maxNotices bounds the notice list; the oldest are dropped first.
const maxNotices = 20

func (c *Controller) addNoticeLocked(level Level, title, message string) int {
	c.nextNotice++
	c.notices = append(c.notices, Notice{ID: c.nextNotice, Level: level, Title: title, Message: message})
	if len(c.notices) > maxNotices {
		c.notices = c.notices[len(c.notices)-maxNotices:]
	}
	return c.nextNotice
}

func (c *Controller) addNotice(level Level, title, message string) int {
	c.mu.Lock()
	id := c.addNoticeLocked(level, title, message)
	c.mu.Unlock()
	c.notify()
	return id
}

// DismissNotice removes the notice with id. Returns false if it was not present.
func (c *Controller) DismissNotice(id int) bool {
	c.mu.Lock()
	found := false
	for i, n := range c.notices {
		if n.ID == id {
			c.notices = append(c.notices[:i], c.notices[i+1:]...)
			found = true
			break
		}
	}
	c.mu.Unlock()
	if found {
		c.notify()
	}
	return found
}
