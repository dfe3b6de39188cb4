// ABOUTME: Rendering of a single post card with reactions, comments, and delete affordance.
// ABOUTME: PostView is pure; key handling for posts lives in the feed model.
package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/2389-research/laulau/internal/media"
	"github.com/2389-research/laulau/internal/models"
)

var (
	cardStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("238")).
			Padding(0, 1)
	selectedCardStyle = cardStyle.BorderForeground(lipgloss.Color("212"))
	postTitleStyle    = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("255"))
	mediaStyle        = lipgloss.NewStyle().Foreground(lipgloss.Color("39")).Underline(true)
	metaStyle         = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
	deleteStyle       = lipgloss.NewStyle().Foreground(lipgloss.Color("196"))
	authorStyle       = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("99"))
)

// PostView is everything needed to draw one post.
type PostView struct {
	Post      models.Post
	Tally     models.Tally
	Comments  []models.Comment
	CanDelete bool
	Selected  bool
	Expanded  bool
	Draft     string // comment being typed, shown under an expanded thread
	Width     int
}

// View renders the post card.
func (v PostView) View() string {
	var b strings.Builder

	b.WriteString(postTitleStyle.Render(v.Post.Title))
	b.WriteString("\n")

	icon := "📷"
	if v.Post.MediaKind == models.MediaVideo {
		icon = "🎬"
	}
	b.WriteString(icon + " " + mediaStyle.Render(media.Resolve(v.Post.MediaKind, v.Post.MediaURL)))
	b.WriteString("\n\n")
	b.WriteString(v.Post.Content)
	b.WriteString("\n\n")

	var counts []string
	for _, e := range models.ReactionEmojis {
		counts = append(counts, fmt.Sprintf("%s %d", e, v.Tally[e]))
	}
	line := strings.Join(counts, "  ") + fmt.Sprintf("   💬 %d", len(v.Comments))
	if !v.Post.CreatedAt.IsZero() {
		line += metaStyle.Render("   " + v.Post.CreatedAt.Local().Format("Jan 2 15:04"))
	}
	if v.CanDelete {
		line += "   " + deleteStyle.Render("[d] delete")
	}
	b.WriteString(line)

	if v.Expanded {
		b.WriteString("\n")
		if len(v.Comments) == 0 {
			b.WriteString("\n" + metaStyle.Render("No comments yet."))
		}
		for _, c := range v.Comments {
			b.WriteString("\n" + authorStyle.Render(c.Author) + ": " + c.Text)
		}
		b.WriteString("\n\n" + promptStyle.Render("comment> ") + v.Draft)
	}

	style := cardStyle
	if v.Selected {
		style = selectedCardStyle
	}
	if v.Width > 4 {
		style = style.Width(v.Width - 2)
	}
	return style.Render(b.String())
}
