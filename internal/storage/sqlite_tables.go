// ABOUTME: SQLite-backed table storage for posts, reactions, and comments.
// ABOUTME: Uses the pure-Go modernc driver with WAL mode and publishes committed changes.
package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"github.com/2389-research/laulau/internal/models"
)

// SQLiteTables wraps an SQLite connection holding the feed tables.
type SQLiteTables struct {
	conn   *sql.DB
	broker *Broker
}

// NewSQLiteTables opens or creates an SQLite database at the given path.
func NewSQLiteTables(path string) (*SQLiteTables, error) {
	conn, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	// One writer keeps toggles serialized per row.
	conn.SetMaxOpenConns(1)
	if _, err := conn.Exec("PRAGMA journal_mode=WAL;"); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("set wal mode: %w", err)
	}
	if _, err := conn.Exec("PRAGMA foreign_keys=ON;"); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("enable foreign keys: %w", err)
	}
	t := &SQLiteTables{conn: conn, broker: NewBroker()}
	if err := t.migrate(); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return t, nil
}

func (t *SQLiteTables) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS posts (
		id TEXT PRIMARY KEY,
		title TEXT NOT NULL,
		content TEXT NOT NULL,
		media_kind TEXT NOT NULL,
		media_url TEXT NOT NULL,
		author_id TEXT NOT NULL,
		created_at INTEGER NOT NULL
	);
	CREATE TABLE IF NOT EXISTS reactions (
		post_id TEXT NOT NULL REFERENCES posts(id) ON DELETE CASCADE,
		user_id TEXT NOT NULL,
		emoji TEXT NOT NULL,
		UNIQUE(post_id, user_id, emoji)
	);
	CREATE TABLE IF NOT EXISTS comments (
		id TEXT PRIMARY KEY,
		post_id TEXT NOT NULL REFERENCES posts(id) ON DELETE CASCADE,
		author_id TEXT NOT NULL,
		author TEXT NOT NULL,
		text TEXT NOT NULL,
		created_at INTEGER NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_comments_post ON comments(post_id, created_at);
	`
	_, err := t.conn.Exec(schema)
	return err
}

// Broker returns the change fan-out for these tables.
func (t *SQLiteTables) Broker() *Broker {
	return t.broker
}

// Close closes subscriptions and the database connection.
func (t *SQLiteTables) Close() error {
	t.broker.Close()
	return t.conn.Close()
}

// ListPosts returns every post, newest first.
func (t *SQLiteTables) ListPosts(ctx context.Context) ([]*models.Post, error) {
	rows, err := t.conn.QueryContext(ctx,
		"SELECT id, title, content, media_kind, media_url, author_id, created_at FROM posts ORDER BY created_at DESC, id")
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var posts []*models.Post
	for rows.Next() {
		p, err := scanPost(rows)
		if err != nil {
			return nil, err
		}
		posts = append(posts, p)
	}
	return posts, rows.Err()
}

// GetPost returns a single post or ErrNotFound.
func (t *SQLiteTables) GetPost(ctx context.Context, id string) (*models.Post, error) {
	row := t.conn.QueryRowContext(ctx,
		"SELECT id, title, content, media_kind, media_url, author_id, created_at FROM posts WHERE id = ?", id)
	p, err := scanPost(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("post %s: %w", id, ErrNotFound)
	}
	return p, err
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanPost(r rowScanner) (*models.Post, error) {
	var p models.Post
	var kind string
	var created int64
	if err := r.Scan(&p.ID, &p.Title, &p.Content, &kind, &p.MediaURL, &p.AuthorID, &created); err != nil {
		return nil, err
	}
	p.MediaKind = models.MediaKind(kind)
	p.CreatedAt = time.UnixMicro(created)
	return &p, nil
}

// InsertPost stores a post.
func (t *SQLiteTables) InsertPost(ctx context.Context, post *models.Post) error {
	_, err := t.conn.ExecContext(ctx,
		"INSERT INTO posts (id, title, content, media_kind, media_url, author_id, created_at) VALUES (?, ?, ?, ?, ?, ?, ?)",
		post.ID, post.Title, post.Content, string(post.MediaKind), post.MediaURL, post.AuthorID, post.CreatedAt.UnixMicro())
	if err != nil {
		return fmt.Errorf("insert post: %w", err)
	}
	t.broker.Publish(models.ChangeEvent{Table: models.TablePosts, Kind: models.EventInsert, Post: post})
	return nil
}

// DeletePost removes a post owned by requesterID; reactions and comments cascade.
func (t *SQLiteTables) DeletePost(ctx context.Context, id, requesterID string) error {
	tx, err := t.conn.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	var author string
	err = tx.QueryRowContext(ctx, "SELECT author_id FROM posts WHERE id = ?", id).Scan(&author)
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("post %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return err
	}
	if author != requesterID {
		return fmt.Errorf("post %s: %w", id, ErrForbidden)
	}

	if _, err := tx.ExecContext(ctx, "DELETE FROM posts WHERE id = ?", id); err != nil {
		return fmt.Errorf("delete post: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return err
	}

	t.broker.Publish(models.ChangeEvent{Table: models.TablePosts, Kind: models.EventDelete, Post: &models.Post{ID: id}})
	return nil
}

// ListReactionRows returns every reaction row.
func (t *SQLiteTables) ListReactionRows(ctx context.Context) ([]models.ReactionRow, error) {
	rows, err := t.conn.QueryContext(ctx, "SELECT post_id, user_id, emoji FROM reactions ORDER BY rowid")
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var out []models.ReactionRow
	for rows.Next() {
		var r models.ReactionRow
		if err := rows.Scan(&r.PostID, &r.UserID, &r.Emoji); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// ToggleReaction deletes the row if it exists, otherwise inserts it.
func (t *SQLiteTables) ToggleReaction(ctx context.Context, row models.ReactionRow) (bool, error) {
	tx, err := t.conn.BeginTx(ctx, nil)
	if err != nil {
		return false, err
	}
	defer func() { _ = tx.Rollback() }()

	var exists int
	if err := tx.QueryRowContext(ctx, "SELECT COUNT(1) FROM posts WHERE id = ?", row.PostID).Scan(&exists); err != nil {
		return false, err
	}
	if exists == 0 {
		return false, fmt.Errorf("post %s: %w", row.PostID, ErrNotFound)
	}

	res, err := tx.ExecContext(ctx,
		"DELETE FROM reactions WHERE post_id = ? AND user_id = ? AND emoji = ?", row.PostID, row.UserID, row.Emoji)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	present := n == 0
	if present {
		if _, err := tx.ExecContext(ctx,
			"INSERT INTO reactions (post_id, user_id, emoji) VALUES (?, ?, ?)", row.PostID, row.UserID, row.Emoji); err != nil {
			return false, fmt.Errorf("insert reaction: %w", err)
		}
	}
	if err := tx.Commit(); err != nil {
		return false, err
	}

	kind := models.EventInsert
	if !present {
		kind = models.EventDelete
	}
	t.broker.Publish(models.ChangeEvent{Table: models.TableReactions, Kind: kind, Reaction: &row})
	return present, nil
}

// ListComments returns every comment, oldest first.
func (t *SQLiteTables) ListComments(ctx context.Context) ([]*models.Comment, error) {
	rows, err := t.conn.QueryContext(ctx,
		"SELECT id, post_id, author_id, author, text, created_at FROM comments ORDER BY created_at, rowid")
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var out []*models.Comment
	for rows.Next() {
		var c models.Comment
		var created int64
		if err := rows.Scan(&c.ID, &c.PostID, &c.AuthorID, &c.Author, &c.Text, &created); err != nil {
			return nil, err
		}
		c.CreatedAt = time.UnixMicro(created)
		out = append(out, &c)
	}
	return out, rows.Err()
}

// InsertComment stores a comment on an existing post.
func (t *SQLiteTables) InsertComment(ctx context.Context, comment *models.Comment) error {
	var exists int
	if err := t.conn.QueryRowContext(ctx, "SELECT COUNT(1) FROM posts WHERE id = ?", comment.PostID).Scan(&exists); err != nil {
		return err
	}
	if exists == 0 {
		return fmt.Errorf("post %s: %w", comment.PostID, ErrNotFound)
	}

	_, err := t.conn.ExecContext(ctx,
		"INSERT INTO comments (id, post_id, author_id, author, text, created_at) VALUES (?, ?, ?, ?, ?, ?)",
		comment.ID, comment.PostID, comment.AuthorID, comment.Author, comment.Text, comment.CreatedAt.UnixMicro())
	if err != nil {
		return fmt.Errorf("insert comment: %w", err)
	}
	t.broker.Publish(models.ChangeEvent{Table: models.TableComments, Kind: models.EventInsert, Comment: comment})
	return nil
}
