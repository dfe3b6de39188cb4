// ABOUTME: Markdown-based table storage for posts, comments, and reaction rows.
// ABOUTME: Posts and comments are markdown files with YAML frontmatter; reactions live in one YAML file.
package storage

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"

	"github.com/2389-research/laulau/internal/models"
)

// MDTables stores feed tables as markdown files in a data directory.
type MDTables struct {
	dataDir string // root directory for feed data
	mu      sync.Mutex
	broker  *Broker
}

// postFrontmatter is the YAML frontmatter for post files.
type postFrontmatter struct {
	ID        string `yaml:"id"`
	Title     string `yaml:"title"`
	MediaKind string `yaml:"media_kind"`
	MediaURL  string `yaml:"media_url"`
	AuthorID  string `yaml:"author_id"`
	CreatedAt string `yaml:"created_at"`
}

// commentFrontmatter is the YAML frontmatter for comment files.
type commentFrontmatter struct {
	ID        string `yaml:"id"`
	PostID    string `yaml:"post_id"`
	AuthorID  string `yaml:"author_id"`
	Author    string `yaml:"author"`
	CreatedAt string `yaml:"created_at"`
}

// reactionsFile is the YAML structure for _reactions.yaml.
type reactionsFile struct {
	Rows []models.ReactionRow `yaml:"rows"`
}

// NewMDTables creates markdown tables rooted at dataDir.
func NewMDTables(dataDir string) (*MDTables, error) {
	if dataDir == "" {
		return nil, fmt.Errorf("data directory is required")
	}
	return &MDTables{
		dataDir: dataDir,
		broker:  NewBroker(),
	}, nil
}

// Broker returns the change fan-out for these tables.
func (s *MDTables) Broker() *Broker {
	return s.broker
}

func (s *MDTables) postsDir() string      { return filepath.Join(s.dataDir, "posts") }
func (s *MDTables) commentsDir() string   { return filepath.Join(s.dataDir, "comments") }
func (s *MDTables) reactionsPath() string { return filepath.Join(s.dataDir, "_reactions.yaml") }

// InsertPost persists a post to disk.
func (s *MDTables) InsertPost(ctx context.Context, post *models.Post) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	dateDir := post.CreatedAt.Format("2006-01-02")
	path := filepath.Join(s.postsDir(), dateDir, fileName(post.CreatedAt.Format("15-04-05-000000"), post.ID))

	fm := postFrontmatter{
		ID:        post.ID,
		Title:     post.Title,
		MediaKind: string(post.MediaKind),
		MediaURL:  post.MediaURL,
		AuthorID:  post.AuthorID,
		CreatedAt: formatTime(post.CreatedAt),
	}
	content, err := renderFrontmatter(fm, post.Content+"\n")
	if err != nil {
		return fmt.Errorf("failed to render post: %w", err)
	}
	if err := atomicWrite(path, []byte(content)); err != nil {
		return err
	}

	s.broker.Publish(models.ChangeEvent{Table: models.TablePosts, Kind: models.EventInsert, Post: post})
	return nil
}

// ListPosts returns every post, newest first.
func (s *MDTables) ListPosts(ctx context.Context) ([]*models.Post, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var posts []*models.Post
	err := s.walkPosts(func(path string, post *models.Post) error {
		posts = append(posts, post)
		return nil
	})
	if err != nil {
		return nil, err
	}
	models.SortPostsNewestFirst(posts)
	return posts, nil
}

// GetPost returns a single post or ErrNotFound.
func (s *MDTables) GetPost(ctx context.Context, id string) (*models.Post, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	post, _, err := s.findPost(id)
	return post, err
}

// errPostFound is a sentinel used to short-circuit the walk after finding the target post.
var errPostFound = errors.New("post found")

// findPost locates a post file by ID. Caller holds s.mu.
func (s *MDTables) findPost(id string) (*models.Post, string, error) {
	var found *models.Post
	var foundPath string
	err := s.walkPosts(func(path string, post *models.Post) error {
		if post.ID != id {
			return nil
		}
		found, foundPath = post, path
		return errPostFound
	})
	if err != nil && !errors.Is(err, errPostFound) {
		return nil, "", err
	}
	if found == nil {
		return nil, "", fmt.Errorf("post %s: %w", id, ErrNotFound)
	}
	return found, foundPath, nil
}

// walkPosts calls fn for every parseable post file. Unreadable files are skipped.
func (s *MDTables) walkPosts(fn func(path string, post *models.Post) error) error {
	dateDirs, err := os.ReadDir(s.postsDir())
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}

	for _, dateDir := range dateDirs {
		if !dateDir.IsDir() {
			continue
		}
		dirPath := filepath.Join(s.postsDir(), dateDir.Name())
		files, err := os.ReadDir(dirPath)
		if err != nil {
			continue
		}
		for _, file := range files {
			if file.IsDir() || !strings.HasSuffix(file.Name(), ".md") {
				continue
			}
			filePath := filepath.Join(dirPath, file.Name())
			data, err := os.ReadFile(filePath)
			if err != nil {
				continue
			}
			post, err := parsePost(string(data))
			if err != nil {
				continue
			}
			if err := fn(filePath, post); err != nil {
				return err
			}
		}
	}
	return nil
}

// DeletePost removes a post with its comments and reactions if requesterID owns it.
func (s *MDTables) DeletePost(ctx context.Context, id, requesterID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	post, path, err := s.findPost(id)
	if err != nil {
		return err
	}
	if post.AuthorID != requesterID {
		return fmt.Errorf("post %s: %w", id, ErrForbidden)
	}

	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to remove post: %w", err)
	}

	comments, _ := s.readComments(id)
	if err := os.RemoveAll(filepath.Join(s.commentsDir(), id)); err != nil {
		return fmt.Errorf("failed to remove comments: %w", err)
	}

	var rf reactionsFile
	if err := readYAML(s.reactionsPath(), &rf); err != nil {
		return fmt.Errorf("failed to read reactions: %w", err)
	}
	kept := rf.Rows[:0]
	var dropped []models.ReactionRow
	for _, r := range rf.Rows {
		if r.PostID == id {
			dropped = append(dropped, r)
			continue
		}
		kept = append(kept, r)
	}
	if len(dropped) > 0 {
		rf.Rows = kept
		if err := writeYAML(s.reactionsPath(), &rf); err != nil {
			return fmt.Errorf("failed to write reactions: %w", err)
		}
	}

	s.broker.Publish(models.ChangeEvent{Table: models.TablePosts, Kind: models.EventDelete, Post: &models.Post{ID: id}})
	for i := range dropped {
		s.broker.Publish(models.ChangeEvent{Table: models.TableReactions, Kind: models.EventDelete, Reaction: &dropped[i]})
	}
	for _, c := range comments {
		s.broker.Publish(models.ChangeEvent{Table: models.TableComments, Kind: models.EventDelete, Comment: c})
	}
	return nil
}

// ListReactionRows returns every reaction row.
func (s *MDTables) ListReactionRows(ctx context.Context) ([]models.ReactionRow, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var rf reactionsFile
	if err := readYAML(s.reactionsPath(), &rf); err != nil {
		return nil, err
	}
	return rf.Rows, nil
}

// ToggleReaction adds or removes a reaction row.
func (s *MDTables) ToggleReaction(ctx context.Context, row models.ReactionRow) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, _, err := s.findPost(row.PostID); err != nil {
		return false, err
	}

	var rf reactionsFile
	if err := readYAML(s.reactionsPath(), &rf); err != nil {
		return false, fmt.Errorf("failed to read reactions: %w", err)
	}

	present := true
	idx := -1
	for i, r := range rf.Rows {
		if r == row {
			idx = i
			break
		}
	}
	if idx >= 0 {
		rf.Rows = append(rf.Rows[:idx], rf.Rows[idx+1:]...)
		present = false
	} else {
		rf.Rows = append(rf.Rows, row)
	}

	if err := writeYAML(s.reactionsPath(), &rf); err != nil {
		return false, fmt.Errorf("failed to write reactions: %w", err)
	}

	kind := models.EventInsert
	if !present {
		kind = models.EventDelete
	}
	s.broker.Publish(models.ChangeEvent{Table: models.TableReactions, Kind: kind, Reaction: &row})
	return present, nil
}

// InsertComment persists a comment under its post's directory.
func (s *MDTables) InsertComment(ctx context.Context, comment *models.Comment) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, _, err := s.findPost(comment.PostID); err != nil {
		return err
	}

	path := filepath.Join(s.commentsDir(), comment.PostID,
		fileName(comment.CreatedAt.Format("2006-01-02-15-04-05-000000"), comment.ID))
	fm := commentFrontmatter{
		ID:        comment.ID,
		PostID:    comment.PostID,
		AuthorID:  comment.AuthorID,
		Author:    comment.Author,
		CreatedAt: formatTime(comment.CreatedAt),
	}
	content, err := renderFrontmatter(fm, comment.Text+"\n")
	if err != nil {
		return fmt.Errorf("failed to render comment: %w", err)
	}
	if err := atomicWrite(path, []byte(content)); err != nil {
		return err
	}

	s.broker.Publish(models.ChangeEvent{Table: models.TableComments, Kind: models.EventInsert, Comment: comment})
	return nil
}

// ListComments returns every comment, oldest first.
func (s *MDTables) ListComments(ctx context.Context) ([]*models.Comment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	postDirs, err := os.ReadDir(s.commentsDir())
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}

	var all []*models.Comment
	for _, d := range postDirs {
		if !d.IsDir() {
			continue
		}
		comments, err := s.readComments(d.Name())
		if err != nil {
			continue
		}
		all = append(all, comments...)
	}
	models.SortCommentsOldestFirst(all)
	return all, nil
}

// readComments reads the comments of one post. Caller holds s.mu.
func (s *MDTables) readComments(postID string) ([]*models.Comment, error) {
	dir := filepath.Join(s.commentsDir(), postID)
	files, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}

	var comments []*models.Comment
	for _, file := range files {
		if file.IsDir() || !strings.HasSuffix(file.Name(), ".md") {
			continue
		}
		data, err := os.ReadFile(filepath.Join(dir, file.Name()))
		if err != nil {
			continue
		}
		c, err := parseComment(string(data))
		if err != nil {
			continue
		}
		comments = append(comments, c)
	}
	return comments, nil
}

// Close closes every open subscription.
func (s *MDTables) Close() error {
	s.broker.Close()
	return nil
}

// fileName builds "<stamp>-<short id>.md".
func fileName(stamp, id string) string {
	short := id
	if len(short) > 8 {
		short = short[:8]
	}
	return stamp + "-" + short + ".md"
}

// parsePost parses a markdown file into a Post.
func parsePost(content string) (*models.Post, error) {
	yamlStr, body := parseFrontmatter(content)
	if yamlStr == "" {
		return nil, fmt.Errorf("no frontmatter found")
	}

	var fm postFrontmatter
	if err := yaml.Unmarshal([]byte(yamlStr), &fm); err != nil {
		return nil, fmt.Errorf("failed to parse frontmatter: %w", err)
	}
	if fm.ID == "" {
		return nil, fmt.Errorf("missing id")
	}

	createdAt, err := parseTime(fm.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("invalid date: %w", err)
	}

	kind, ok := models.ParseMediaKind(fm.MediaKind)
	if !ok {
		return nil, fmt.Errorf("invalid media kind %q", fm.MediaKind)
	}

	return &models.Post{
		ID:        fm.ID,
		Title:     fm.Title,
		Content:   strings.TrimSuffix(body, "\n"),
		MediaKind: kind,
		MediaURL:  fm.MediaURL,
		AuthorID:  fm.AuthorID,
		CreatedAt: createdAt,
	}, nil
}

// parseComment parses a markdown file into a Comment.
func parseComment(content string) (*models.Comment, error) {
	yamlStr, body := parseFrontmatter(content)
	if yamlStr == "" {
		return nil, fmt.Errorf("no frontmatter found")
	}

	var fm commentFrontmatter
	if err := yaml.Unmarshal([]byte(yamlStr), &fm); err != nil {
		return nil, fmt.Errorf("failed to parse frontmatter: %w", err)
	}

	createdAt, err := parseTime(fm.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("invalid date: %w", err)
	}

	return &models.Comment{
		ID:        fm.ID,
		PostID:    fm.PostID,
		AuthorID:  fm.AuthorID,
		Author:    fm.Author,
		Text:      strings.TrimSuffix(body, "\n"),
		CreatedAt: createdAt,
	}, nil
}
