// ABOUTME: Post authoring form with optional content assist.
// ABOUTME: Emits createPostMsg on a complete draft and never sends a blank field.
package tui

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textarea"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/2389-research/laulau/internal/assist"
	"github.com/2389-research/laulau/internal/models"
)

const (
	msgMissingFields  = "Please fill in all fields before creating a post."
	msgEmptySeed      = "Please enter a short idea for your post first."
	msgAssistDisabled = "Content assist is not available."
	assistTimeout     = 30 * time.Second
)

type composeField int

const (
	fieldTitle composeField = iota
	fieldContent
	fieldKind
	fieldURL
	fieldCount
)

// createPostMsg carries a complete draft to the feed model.
type createPostMsg struct {
	draft models.PostDraft
}

// composeClosedMsg is sent when the user leaves the form without submitting.
type composeClosedMsg struct{}

// assistResultMsg carries the outcome of a content assist request.
type assistResultMsg struct {
	content string
	err     error
}

// ComposeModel is the post authoring form.
type ComposeModel struct {
	title    textinput.Model
	content  textarea.Model
	url      textinput.Model
	kind     models.MediaKind
	focus    composeField
	spinner  spinner.Model
	enhancer assist.Enhancer
	cancel   *cancelHolder

	assisting bool
	errMsg    string
	info      string
}

// NewComposeModel creates an empty form. enhancer may be nil.
func NewComposeModel(enhancer assist.Enhancer) ComposeModel {
	title := textinput.New()
	title.Placeholder = "Title"
	title.CharLimit = 120
	title.Width = 60
	title.Focus()

	content := textarea.New()
	content.Placeholder = "What's on your mind? (ctrl+g to enhance a short idea)"
	content.SetWidth(60)
	content.SetHeight(5)

	url := textinput.New()
	url.Placeholder = "https://..."
	url.Width = 60

	s := spinner.New()
	s.Spinner = spinner.Dot

	return ComposeModel{
		title:    title,
		content:  content,
		url:      url,
		kind:     models.MediaPhoto,
		spinner:  s,
		enhancer: enhancer,
		cancel:   &cancelHolder{},
	}
}

// Init implements tea.Model.
func (m ComposeModel) Init() tea.Cmd {
	return textinput.Blink
}

// Draft returns the current field values.
func (m ComposeModel) Draft() models.PostDraft {
	return models.PostDraft{
		Title:     strings.TrimSpace(m.title.Value()),
		Content:   m.content.Value(),
		MediaKind: m.kind,
		MediaURL:  strings.TrimSpace(m.url.Value()),
	}
}

func (m *ComposeModel) setFocus(f composeField) {
	m.title.Blur()
	m.content.Blur()
	m.url.Blur()
	m.focus = f
	switch f {
	case fieldTitle:
		m.title.Focus()
	case fieldContent:
		m.content.Focus()
	case fieldURL:
		m.url.Focus()
	}
}

func (m *ComposeModel) toggleKind() {
	if m.kind == models.MediaPhoto {
		m.kind = models.MediaVideo
	} else {
		m.kind = models.MediaPhoto
	}
}

// Update implements tea.Model.
func (m ComposeModel) Update(msg tea.Msg) (ComposeModel, tea.Cmd) {
	switch msg := msg.(type) {
	case assistResultMsg:
		m.assisting = false
		m.cancel.cancel = nil
		if msg.err != nil {
			if errors.Is(msg.err, assist.ErrEmptySeed) {
				m.errMsg = msgEmptySeed
			} else {
				m.errMsg = "Content assist failed: " + msg.err.Error()
			}
			return m, nil
		}
		m.content.SetValue(msg.content)
		m.errMsg = ""
		m.info = "Content Generated! Your post content has been enhanced."
		return m, nil

	case spinner.TickMsg:
		if m.assisting {
			var cmd tea.Cmd
			m.spinner, cmd = m.spinner.Update(msg)
			return m, cmd
		}
		return m, nil

	case tea.KeyMsg:
		switch msg.Type {
		case tea.KeyEscape:
			if m.cancel.cancel != nil {
				m.cancel.cancel()
				m.cancel.cancel = nil
			}
			m.assisting = false
			return m, func() tea.Msg { return composeClosedMsg{} }
		case tea.KeyTab:
			m.setFocus((m.focus + 1) % fieldCount)
			return m, nil
		case tea.KeyShiftTab:
			m.setFocus((m.focus + fieldCount - 1) % fieldCount)
			return m, nil
		case tea.KeyCtrlS:
			return m.submit()
		case tea.KeyCtrlG:
			return m.startAssist()
		}

		if m.focus == fieldKind {
			switch msg.String() {
			case " ", "left", "right", "h", "l", "enter":
				m.toggleKind()
			}
			return m, nil
		}
	}

	var cmd tea.Cmd
	switch m.focus {
	case fieldTitle:
		m.title, cmd = m.title.Update(msg)
	case fieldContent:
		m.content, cmd = m.content.Update(msg)
	case fieldURL:
		m.url, cmd = m.url.Update(msg)
	}
	return m, cmd
}

func (m ComposeModel) submit() (ComposeModel, tea.Cmd) {
	draft := m.Draft()
	if draft.Title == "" || strings.TrimSpace(draft.Content) == "" || draft.MediaURL == "" {
		m.errMsg = msgMissingFields
		return m, nil
	}
	m.errMsg = ""
	m.info = ""
	m.title.SetValue("")
	m.content.SetValue("")
	m.url.SetValue("")
	m.setFocus(fieldTitle)
	return m, func() tea.Msg { return createPostMsg{draft: draft} }
}

func (m ComposeModel) startAssist() (ComposeModel, tea.Cmd) {
	if m.assisting {
		return m, nil
	}
	seed := m.content.Value()
	if strings.TrimSpace(seed) == "" {
		m.errMsg = msgEmptySeed
		return m, nil
	}
	if m.enhancer == nil {
		m.errMsg = msgAssistDisabled
		return m, nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), assistTimeout)
	m.cancel.cancel = cancel
	m.assisting = true
	m.errMsg = ""
	enhancer := m.enhancer
	run := func() tea.Msg {
		defer cancel()
		content, err := enhancer.Enhance(ctx, seed)
		return assistResultMsg{content: content, err: err}
	}
	return m, tea.Batch(run, m.spinner.Tick)
}

// View renders the form.
func (m ComposeModel) View() string {
	var b strings.Builder

	b.WriteString(titleStyle.Render("New Post"))
	b.WriteString("\n\n")

	label := func(f composeField, s string) string {
		if m.focus == f {
			return brandStyle.Render("› " + s)
		}
		return stepStyle.Render("  " + s)
	}

	b.WriteString(label(fieldTitle, "Title") + "\n" + m.title.View() + "\n\n")
	b.WriteString(label(fieldContent, "Content") + "\n" + m.content.View() + "\n")
	if m.assisting {
		b.WriteString(m.spinner.View() + " Generating...\n")
	}
	b.WriteString("\n")

	photo, video := "( ) photo", "( ) video"
	if m.kind == models.MediaPhoto {
		photo = "(•) photo"
	} else {
		video = "(•) video"
	}
	b.WriteString(label(fieldKind, "Media") + "  " + photo + "  " + video + "\n\n")
	b.WriteString(label(fieldURL, "Media URL") + "\n" + m.url.View() + "\n\n")

	if m.errMsg != "" {
		b.WriteString(errorStyle.Render("✗ "+m.errMsg) + "\n")
	} else if m.info != "" {
		b.WriteString(successStyle.Render("✓ "+m.info) + "\n")
	}
	b.WriteString(promptStyle.Render("[tab] next field  [ctrl+g] enhance  [ctrl+s] post  [esc] back"))
	b.WriteString("\n")
	return b.String()
}
