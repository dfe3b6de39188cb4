// ABOUTME: CLI commands for feed operations.
// ABOUTME: Provides post, feed, react, comment, delete, login, and seed subcommands.
package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/2389-research/laulau/internal/feed"
	"github.com/2389-research/laulau/internal/media"
	"github.com/2389-research/laulau/internal/models"
	"github.com/2389-research/laulau/internal/storage"
)

const cmdTimeout = 30 * time.Second

var postCmd = &cobra.Command{
	Use:   "post",
	Short: "Create a post",
	Long:  "Create a new photo or video post. Title, content, and media URL are required.",
	Args:  cobra.NoArgs,
	RunE:  runPost,
}

var feedCmd = &cobra.Command{
	Use:   "feed",
	Short: "Read the feed",
	Long:  "List posts newest first with reaction tallies and comments.",
	Args:  cobra.NoArgs,
	RunE:  runFeed,
}

var reactCmd = &cobra.Command{
	Use:   "react <post-id> <emoji>",
	Short: "Toggle a reaction on a post",
	Long:  "Toggle a reaction. Emoji may be 👍 ❤️ 😂 or like, love, laugh.",
	Args:  cobra.ExactArgs(2),
	RunE:  runReact,
}

var commentCmd = &cobra.Command{
	Use:   "comment <post-id> <text>",
	Short: "Comment on a post",
	Args:  cobra.ExactArgs(2),
	RunE:  runComment,
}

var deleteCmd = &cobra.Command{
	Use:   "delete <post-id>",
	Short: "Delete one of your posts",
	Long:  "Delete a post you authored. Asks for confirmation unless --yes is given.",
	Args:  cobra.ExactArgs(1),
	RunE:  runDelete,
}

var loginCmd = &cobra.Command{
	Use:   "login <name>",
	Short: "Set your display name",
	Long:  "Set the name shown next to your comments. Without one, comments use a guest label.",
	Args:  cobra.ExactArgs(1),
	RunE:  runLogin,
}

var seedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Add the welcome post to an empty feed",
	Args:  cobra.NoArgs,
	RunE:  runSeed,
}

// Flags
var (
	postTitle    string
	postContent  string
	postKind     string
	postURL      string
	postEnhance  bool
	feedLimit    int
	feedComments bool
	deleteYes    bool
)

func init() {
	rootCmd.AddCommand(postCmd, feedCmd, reactCmd, commentCmd, deleteCmd, loginCmd, seedCmd)

	postCmd.Flags().StringVar(&postTitle, "title", "", "Post title")
	postCmd.Flags().StringVar(&postContent, "content", "", "Post content")
	postCmd.Flags().StringVar(&postKind, "kind", string(models.MediaPhoto), "Media kind: photo or video")
	postCmd.Flags().StringVar(&postURL, "url", "", "Image URL or YouTube link")
	postCmd.Flags().BoolVar(&postEnhance, "enhance", false, "Expand the content with content assist before posting")

	feedCmd.Flags().IntVar(&feedLimit, "limit", 10, "Maximum number of posts to show")
	feedCmd.Flags().BoolVar(&feedComments, "comments", false, "Show comment threads")

	deleteCmd.Flags().BoolVarP(&deleteYes, "yes", "y", false, "Confirm without prompting")
}

var reactionAliases = map[string]string{
	"like":  "👍",
	"+1":    "👍",
	"love":  "❤️",
	"heart": "❤️",
	"laugh": "😂",
	"lol":   "😂",
}

func parseEmoji(s string) (string, error) {
	if e, ok := reactionAliases[strings.ToLower(s)]; ok {
		return e, nil
	}
	if models.IsReactionEmoji(s) {
		return s, nil
	}
	return "", fmt.Errorf("unsupported reaction %q (use %s or like, love, laugh)", s, strings.Join(models.ReactionEmojis, " "))
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

func runPost(cmd *cobra.Command, args []string) error {
	ctx, cancel := context.WithTimeout(cmd.Context(), cmdTimeout)
	defer cancel()

	kind, ok := models.ParseMediaKind(postKind)
	if !ok {
		return fmt.Errorf("invalid --kind %q: want photo or video", postKind)
	}

	content := postContent
	if postEnhance {
		enhancer, err := openEnhancer()
		if err != nil {
			return err
		}
		content, err = enhancer.Enhance(ctx, postContent)
		if err != nil {
			return fmt.Errorf("content assist failed: %w", err)
		}
	}

	ctrl := startFeed(ctx)
	defer ctrl.Close()

	post, err := ctrl.CreatePost(ctx, models.PostDraft{
		Title:     postTitle,
		Content:   content,
		MediaKind: kind,
		MediaURL:  postURL,
	})
	if err != nil {
		var verr *feed.ValidationError
		if errors.As(err, &verr) {
			return errors.New(verr.Message)
		}
		return err
	}

	fmt.Printf("Post created (ID: %s)\n", shortID(post.ID))
	return nil
}

func runFeed(cmd *cobra.Command, args []string) error {
	ctx, cancel := context.WithTimeout(cmd.Context(), cmdTimeout)
	defer cancel()

	ctrl := startFeed(ctx)
	defer ctrl.Close()
	snap := ctrl.Snapshot()

	for _, n := range snap.Notices {
		if n.Level == feed.LevelError {
			fmt.Fprintf(os.Stderr, "%s: %s\n", n.Title, n.Message)
		}
	}
	printFeed(os.Stdout, snap, feedLimit, feedComments)
	return nil
}

func printFeed(w io.Writer, snap feed.Snapshot, limit int, comments bool) {
	posts := snap.Posts
	if limit > 0 && len(posts) > limit {
		posts = posts[:limit]
	}
	if len(posts) == 0 {
		fmt.Fprintln(w, "No posts found.")
		return
	}

	for _, p := range posts {
		fmt.Fprintf(w, "--- [%s] %s (%s) %s", shortID(p.ID), p.Title, p.MediaKind, p.CreatedAt.Format("2006-01-02 15:04:05"))
		if snap.CanDelete(p) {
			fmt.Fprint(w, " (yours)")
		}
		fmt.Fprintf(w, "\n%s\n%s\n", media.Resolve(p.MediaKind, p.MediaURL), p.Content)

		tally := snap.TallyFor(p.ID)
		for _, e := range models.ReactionEmojis {
			fmt.Fprintf(w, "%s %d  ", e, tally[e])
		}
		thread := snap.Comments[p.ID]
		fmt.Fprintf(w, "💬 %d\n", len(thread))
		if comments {
			for _, c := range thread {
				fmt.Fprintf(w, "  @%s: %s\n", c.Author, c.Text)
			}
		}
		fmt.Fprintln(w)
	}
}

func runReact(cmd *cobra.Command, args []string) error {
	ctx, cancel := context.WithTimeout(cmd.Context(), cmdTimeout)
	defer cancel()

	emoji, err := parseEmoji(args[1])
	if err != nil {
		return err
	}

	ctrl := startFeed(ctx)
	defer ctrl.Close()

	id, err := ctrl.Snapshot().ResolvePostID(args[0])
	if err != nil {
		return err
	}
	if err := ctrl.React(ctx, id, emoji); err != nil {
		return err
	}
	fmt.Printf("%s is now %d on %s\n", emoji, ctrl.Snapshot().TallyFor(id)[emoji], shortID(id))
	return nil
}

func runComment(cmd *cobra.Command, args []string) error {
	ctx, cancel := context.WithTimeout(cmd.Context(), cmdTimeout)
	defer cancel()

	ctrl := startFeed(ctx)
	defer ctrl.Close()

	id, err := ctrl.Snapshot().ResolvePostID(args[0])
	if err != nil {
		return err
	}
	c, err := ctrl.Comment(ctx, id, args[1])
	if err != nil {
		var verr *feed.ValidationError
		if errors.As(err, &verr) {
			return errors.New(verr.Message)
		}
		return err
	}
	fmt.Printf("Comment added as %s\n", c.Author)
	return nil
}

func runDelete(cmd *cobra.Command, args []string) error {
	ctx, cancel := context.WithTimeout(cmd.Context(), cmdTimeout)
	defer cancel()

	ctrl := startFeed(ctx)
	defer ctrl.Close()

	id, err := ctrl.Snapshot().ResolvePostID(args[0])
	if err != nil {
		return err
	}
	if err := ctrl.RequestDelete(ctx, id); err != nil {
		return err
	}

	confirmed := deleteYes
	if !confirmed {
		prompt, _ := ctrl.Gate().Pending()
		confirmed = askYesNo(os.Stdin, os.Stdout, fmt.Sprintf("%s: %s", prompt.Title, prompt.Message))
	}
	if !confirmed {
		if err := ctrl.Cancel(); err != nil {
			return err
		}
		fmt.Println("Delete cancelled.")
		return nil
	}
	if err := ctrl.Confirm(); err != nil {
		return err
	}
	fmt.Printf("Post %s deleted.\n", shortID(id))
	return nil
}

// askYesNo prints question and reports whether the answer starts with y.
func askYesNo(in io.Reader, out io.Writer, question string) bool {
	fmt.Fprintf(out, "%s [y/N] ", question)
	line, err := bufio.NewReader(in).ReadString('\n')
	if err != nil && line == "" {
		return false
	}
	answer := strings.ToLower(strings.TrimSpace(line))
	return answer == "y" || answer == "yes"
}

func runLogin(cmd *cobra.Command, args []string) error {
	name := strings.TrimSpace(args[0])
	if name == "" {
		return errors.New("display name must not be blank")
	}

	switch svc := globalService.(type) {
	case *storage.LocalService:
		if _, err := svc.SetDisplayName(name); err != nil {
			return fmt.Errorf("failed to set display name: %w", err)
		}
	default:
		globalConfig.Remote.DisplayName = name
		if err := globalConfig.Save(); err != nil {
			return fmt.Errorf("failed to save config: %w", err)
		}
	}

	fmt.Printf("Logged in as %s\n", name)
	return nil
}

// welcomeDraft is the post `laulau seed` adds to an empty feed.
var welcomeDraft = models.PostDraft{
	Title:     "Welcome to Lau Lau Talk!",
	Content:   "This is the beginning of something amazing. A place where thoughts, photos, and videos come together to create meaningful conversations. Join me on this journey of sharing and connecting! ✨",
	MediaKind: models.MediaPhoto,
	MediaURL:  "https://images.unsplash.com/photo-1516321318423-f06f85e504b3?w=800&h=600&fit=crop",
}

func runSeed(cmd *cobra.Command, args []string) error {
	ctx, cancel := context.WithTimeout(cmd.Context(), cmdTimeout)
	defer cancel()

	ctrl := startFeed(ctx)
	defer ctrl.Close()

	if n := len(ctrl.Snapshot().Posts); n > 0 {
		fmt.Printf("Feed already has %d posts; nothing to seed.\n", n)
		return nil
	}
	post, err := ctrl.CreatePost(ctx, welcomeDraft)
	if err != nil {
		return err
	}
	fmt.Printf("Welcome post created (ID: %s)\n", shortID(post.ID))
	return nil
}
