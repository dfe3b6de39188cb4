// ABOUTME: Root bubbletea model for browsing the feed and sending intents.
// ABOUTME: Redraws from controller snapshots whenever the controller signals a change.
package tui

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/2389-research/laulau/internal/assist"
	"github.com/2389-research/laulau/internal/confirm"
	"github.com/2389-research/laulau/internal/feed"
	"github.com/2389-research/laulau/internal/models"
)

const (
	intentTimeout  = 30 * time.Second
	visibleNotices = 3
)

type feedMode int

const (
	modeBrowse feedMode = iota
	modeCompose
	modeComment
)

// changedMsg is delivered when the controller state changed.
type changedMsg struct{}

// intentResultMsg reports the outcome of an intent run off the update loop.
type intentResultMsg struct {
	op  string
	err error
}

// FeedModel is the main feed screen.
type FeedModel struct {
	ctrl     *feed.Controller
	snap     feed.Snapshot
	cursor   int
	expanded map[string]bool
	mode     feedMode
	compose  ComposeModel
	comment  textinput.Model
	status   string
	width    int
}

// NewFeedModel creates the feed screen over an initialized controller.
func NewFeedModel(ctrl *feed.Controller, enhancer assist.Enhancer) FeedModel {
	comment := textinput.New()
	comment.Placeholder = "Write a comment..."
	comment.CharLimit = 500
	comment.Width = 60

	return FeedModel{
		ctrl:     ctrl,
		snap:     ctrl.Snapshot(),
		expanded: make(map[string]bool),
		compose:  NewComposeModel(enhancer),
		comment:  comment,
	}
}

func waitForChange(ctrl *feed.Controller) tea.Cmd {
	return func() tea.Msg {
		<-ctrl.Changes()
		return changedMsg{}
	}
}

func runIntent(op string, fn func(ctx context.Context) error) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), intentTimeout)
		defer cancel()
		return intentResultMsg{op: op, err: fn(ctx)}
	}
}

// Init implements tea.Model.
func (m FeedModel) Init() tea.Cmd {
	return waitForChange(m.ctrl)
}

func (m FeedModel) selected() (models.Post, bool) {
	if m.cursor < 0 || m.cursor >= len(m.snap.Posts) {
		return models.Post{}, false
	}
	return m.snap.Posts[m.cursor], true
}

func (m *FeedModel) refresh() {
	m.snap = m.ctrl.Snapshot()
	if m.cursor >= len(m.snap.Posts) {
		m.cursor = len(m.snap.Posts) - 1
	}
	if m.cursor < 0 {
		m.cursor = 0
	}
}

// Update implements tea.Model.
func (m FeedModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		return m, nil

	case changedMsg:
		m.refresh()
		return m, waitForChange(m.ctrl)

	case intentResultMsg:
		m.refresh()
		m.status = describeIntentError(msg.op, msg.err)
		return m, nil

	case createPostMsg:
		m.mode = modeBrowse
		draft := msg.draft
		return m, runIntent("create post", func(ctx context.Context) error {
			_, err := m.ctrl.CreatePost(ctx, draft)
			return err
		})

	case composeClosedMsg:
		m.mode = modeBrowse
		return m, nil

	case tea.KeyMsg:
		if msg.Type == tea.KeyCtrlC {
			return m, tea.Quit
		}
		if m.snap.Confirm != nil {
			return m.updateConfirm(msg)
		}
		switch m.mode {
		case modeCompose:
			var cmd tea.Cmd
			m.compose, cmd = m.compose.Update(msg)
			return m, cmd
		case modeComment:
			return m.updateComment(msg)
		}
		return m.updateBrowse(msg)
	}

	var cmd tea.Cmd
	switch m.mode {
	case modeCompose:
		m.compose, cmd = m.compose.Update(msg)
	case modeComment:
		m.comment, cmd = m.comment.Update(msg)
	}
	return m, cmd
}

func (m FeedModel) updateConfirm(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "y", "Y", "enter":
		return m, runIntent("delete post", func(context.Context) error { return m.ctrl.Confirm() })
	case "n", "N", "esc":
		return m, runIntent("cancel", func(context.Context) error { return m.ctrl.Cancel() })
	}
	return m, nil
}

func (m FeedModel) updateBrowse(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	post, hasPost := m.selected()

	switch msg.String() {
	case "q":
		return m, tea.Quit
	case "j", "down":
		if m.cursor < len(m.snap.Posts)-1 {
			m.cursor++
		}
	case "k", "up":
		if m.cursor > 0 {
			m.cursor--
		}
	case "1", "2", "3":
		if !hasPost {
			return m, nil
		}
		emoji := models.ReactionEmojis[int(msg.Runes[0]-'1')]
		id := post.ID
		return m, runIntent("react", func(ctx context.Context) error { return m.ctrl.React(ctx, id, emoji) })
	case "c":
		if !hasPost {
			return m, nil
		}
		m.expanded[post.ID] = true
		m.mode = modeComment
		m.comment.SetValue("")
		m.comment.Focus()
		return m, textinput.Blink
	case "d":
		if !hasPost {
			return m, nil
		}
		id := post.ID
		return m, runIntent("delete post", func(ctx context.Context) error { return m.ctrl.RequestDelete(ctx, id) })
	case "n":
		m.mode = modeCompose
		return m, m.compose.Init()
	case "x":
		if n := len(m.snap.Notices); n > 0 {
			m.ctrl.DismissNotice(m.snap.Notices[n-1].ID)
			m.refresh()
		}
		m.status = ""
	case "enter", " ":
		if hasPost {
			m.expanded[post.ID] = !m.expanded[post.ID]
		}
	}
	return m, nil
}

func (m FeedModel) updateComment(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	post, ok := m.selected()
	if !ok {
		m.mode = modeBrowse
		return m, nil
	}
	switch msg.Type {
	case tea.KeyEscape:
		m.mode = modeBrowse
		m.comment.Blur()
		return m, nil
	case tea.KeyEnter:
		text := strings.TrimSpace(m.comment.Value())
		if text == "" {
			m.status = "Empty Comment: Please enter a comment before sending."
			return m, nil
		}
		m.comment.SetValue("")
		id := post.ID
		return m, runIntent("comment", func(ctx context.Context) error {
			_, err := m.ctrl.Comment(ctx, id, text)
			return err
		})
	}
	var cmd tea.Cmd
	m.comment, cmd = m.comment.Update(msg)
	return m, cmd
}

// describeIntentError turns intent errors the controller did not already
// surface as notices into a status line.
func describeIntentError(op string, err error) string {
	var verr *feed.ValidationError
	var serr *feed.ServiceError
	switch {
	case err == nil:
		return ""
	case errors.As(err, &verr), errors.As(err, &serr):
		return ""
	case errors.Is(err, confirm.ErrNothingPending):
		return ""
	case errors.Is(err, feed.ErrNotReady):
		return "Read-only: no session. Restart once the backend is reachable."
	default:
		return fmt.Sprintf("%s: %v", op, err)
	}
}

// View implements tea.Model.
func (m FeedModel) View() string {
	var b strings.Builder

	b.WriteString("\n")
	b.WriteString(brandStyle.Render("   LAU LAU TALK"))
	if m.snap.Identity != nil {
		name := m.snap.Identity.DisplayName
		if name == "" {
			name = "guest"
		}
		b.WriteString(stepStyle.Render("  signed in as " + name))
	} else {
		b.WriteString(errorStyle.Render("  read-only"))
	}
	if !m.snap.Live {
		b.WriteString(errorStyle.Render("  · not live"))
	}
	b.WriteString("\n\n")

	notices := m.snap.Notices
	if len(notices) > visibleNotices {
		notices = notices[len(notices)-visibleNotices:]
	}
	for _, n := range notices {
		style := successStyle
		if n.Level == feed.LevelError {
			style = errorStyle
		}
		b.WriteString(style.Render(fmt.Sprintf("• %s: %s", n.Title, n.Message)))
		b.WriteString("\n")
	}
	if m.status != "" {
		b.WriteString(errorStyle.Render(m.status))
		b.WriteString("\n")
	}
	if len(notices) > 0 || m.status != "" {
		b.WriteString("\n")
	}

	if m.snap.Confirm != nil {
		b.WriteString(ConfirmView{Prompt: *m.snap.Confirm}.View())
		b.WriteString("\n")
		return b.String()
	}

	if m.mode == modeCompose {
		b.WriteString(m.compose.View())
		return b.String()
	}

	if len(m.snap.Posts) == 0 {
		b.WriteString(stepStyle.Render("No posts yet. Press n to write the first one."))
		b.WriteString("\n")
	}
	for i, p := range m.snap.Posts {
		v := PostView{
			Post:      p,
			Tally:     m.snap.TallyFor(p.ID),
			Comments:  m.snap.Comments[p.ID],
			CanDelete: m.snap.CanDelete(p),
			Selected:  i == m.cursor,
			Expanded:  m.expanded[p.ID],
			Width:     m.width,
		}
		if v.Selected && m.mode == modeComment {
			v.Draft = m.comment.View()
		}
		b.WriteString(v.View())
		b.WriteString("\n")
	}

	b.WriteString("\n")
	b.WriteString(promptStyle.Render("[j/k] move  [1/2/3] 👍❤️😂  [c] comment  [enter] thread  [d] delete  [n] new post  [x] dismiss  [q] quit"))
	b.WriteString("\n")
	return b.String()
}
