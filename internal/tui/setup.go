// ABOUTME: Interactive TUI wizard choosing between local storage and a laulau backend.
// ABOUTME: Collects the backend URL and display name, probing the backend before saving.
package tui

import (
	"context"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

// DefaultAPIURL is the address `laulau serve` listens on by default.
const DefaultAPIURL = "http://localhost:8787"

// Step represents the current wizard step.
type Step int

const (
	StepMode Step = iota
	StepAPIURL
	StepDisplayName
	StepValidating
	StepDone
	StepFailed
)

// Mode is where the feed lives.
type Mode int

const (
	ModeLocal Mode = iota
	ModeRemote
)

func (m Mode) String() string {
	if m == ModeRemote {
		return "backend"
	}
	return "local"
}

// validationResultMsg carries the result of an async backend check.
type validationResultMsg struct {
	err error
}

// ValidateFn checks a backend URL.
type ValidateFn func(ctx context.Context, apiURL string) error

// cancelHolder shares a cancel function across bubbletea model copies.
// It must be held by pointer so value-receiver Update calls see the same func.
type cancelHolder struct {
	cancel context.CancelFunc
}

func (h *cancelHolder) fire() {
	if h.cancel != nil {
		h.cancel()
		h.cancel = nil
	}
}

// SetupModel is the bubbletea model for the setup wizard.
type SetupModel struct {
	step     Step
	mode     Mode
	urlInput textinput.Model
	name     textinput.Model
	spinner  spinner.Model

	validateFn ValidateFn
	check      *cancelHolder
	checkErr   error
	quitting   bool
}

var (
	titleStyle   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("99"))
	brandStyle   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("212"))
	stepStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
	successStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("82"))
	errorStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("196"))
	promptStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
)

// NewSetupModel creates the wizard. A non-empty apiURL preselects backend mode.
func NewSetupModel(apiURL, displayName string) SetupModel {
	urlInput := textinput.New()
	urlInput.Placeholder = DefaultAPIURL
	urlInput.Width = 50
	urlInput.SetValue(apiURL)

	name := textinput.New()
	name.Placeholder = "leave blank to comment as a guest"
	name.CharLimit = 40
	name.Width = 50
	name.SetValue(displayName)

	s := spinner.New()
	s.Spinner = spinner.Dot

	mode := ModeLocal
	if apiURL != "" {
		mode = ModeRemote
	}

	return SetupModel{
		step:       StepMode,
		mode:       mode,
		urlInput:   urlInput,
		name:       name,
		spinner:    s,
		validateFn: ValidateConnection,
		check:      &cancelHolder{},
	}
}

// normalizeAPIURL strips trailing slashes and a trailing /v1, defaulting when blank.
func normalizeAPIURL(raw string) string {
	v := strings.TrimSpace(raw)
	if v == "" {
		return DefaultAPIURL
	}
	v = strings.TrimRight(v, "/")
	return strings.TrimSuffix(v, "/v1")
}

// Init implements tea.Model.
func (m SetupModel) Init() tea.Cmd {
	return nil
}

// Update implements tea.Model.
func (m SetupModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		if msg.Type == tea.KeyCtrlC || msg.Type == tea.KeyEscape {
			m.quitting = true
			m.check.fire()
			return m, tea.Quit
		}
		switch m.step {
		case StepMode:
			return m.updateMode(msg)
		case StepAPIURL:
			return m.updateURL(msg)
		case StepDisplayName:
			return m.updateName(msg)
		case StepFailed:
			return m.updateFailed(msg)
		}

	case validationResultMsg:
		m.check.cancel = nil
		if msg.err != nil {
			m.checkErr = msg.err
			m.step = StepFailed
			return m, nil
		}
		m.step = StepDone
		return m, tea.Quit

	case spinner.TickMsg:
		if m.step == StepValidating {
			var cmd tea.Cmd
			m.spinner, cmd = m.spinner.Update(msg)
			return m, cmd
		}
	}

	return m, nil
}

func (m SetupModel) updateMode(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "left", "right", "up", "down", "tab", "h", "l", "j", "k", " ":
		m.mode = 1 - m.mode
	case "1":
		m.mode = ModeLocal
	case "2":
		m.mode = ModeRemote
	case "enter":
		if m.mode == ModeRemote {
			m.step = StepAPIURL
			m.urlInput.Focus()
		} else {
			m.step = StepDisplayName
			m.name.Focus()
		}
		return m, textinput.Blink
	}
	return m, nil
}

func (m SetupModel) updateURL(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if msg.Type != tea.KeyEnter {
		var cmd tea.Cmd
		m.urlInput, cmd = m.urlInput.Update(msg)
		return m, cmd
	}
	m.urlInput.SetValue(normalizeAPIURL(m.urlInput.Value()))
	m.urlInput.Blur()
	m.step = StepDisplayName
	m.name.Focus()
	return m, textinput.Blink
}

func (m SetupModel) updateName(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if msg.Type != tea.KeyEnter {
		var cmd tea.Cmd
		m.name, cmd = m.name.Update(msg)
		return m, cmd
	}
	m.name.SetValue(strings.TrimSpace(m.name.Value()))
	m.name.Blur()
	if m.mode == ModeLocal {
		m.step = StepDone
		return m, tea.Quit
	}
	m.step = StepValidating
	return m, tea.Batch(m.startCheck(), m.spinner.Tick)
}

func (m SetupModel) updateFailed(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "r":
		m.step = StepValidating
		m.checkErr = nil
		return m, tea.Batch(m.startCheck(), m.spinner.Tick)
	case "e":
		m.step = StepAPIURL
		m.checkErr = nil
		m.urlInput.Focus()
		return m, textinput.Blink
	case "s":
		m.step = StepDone
		return m, tea.Quit
	case "q":
		m.quitting = true
		return m, tea.Quit
	}
	return m, nil
}

func (m SetupModel) startCheck() tea.Cmd {
	ctx, cancel := context.WithCancel(context.Background())
	m.check.cancel = cancel
	apiURL := m.urlInput.Value()
	fn := m.validateFn
	return func() tea.Msg {
		return validationResultMsg{err: fn(ctx, apiURL)}
	}
}

// View implements tea.Model.
func (m SetupModel) View() string {
	var b strings.Builder

	b.WriteString("\n")
	b.WriteString(brandStyle.Render("   LAU LAU TALK"))
	b.WriteString(titleStyle.Render(" - Setup"))
	b.WriteString("\n\n")

	steps := 2
	if m.mode == ModeRemote {
		steps = 3
	}

	switch m.step {
	case StepMode:
		b.WriteString(stepStyle.Render(fmt.Sprintf("Step 1 of %d: Where should your feed live?", steps)))
		b.WriteString("\n\n")
		local, remote := "( ) 1. this computer", "( ) 2. a laulau backend"
		if m.mode == ModeLocal {
			local = "(•) 1. this computer"
		} else {
			remote = "(•) 2. a laulau backend"
		}
		b.WriteString("  " + local + "\n  " + remote + "\n\n")
		b.WriteString(promptStyle.Render("[←/→] choose  [enter] next"))
		b.WriteString("\n")

	case StepAPIURL:
		b.WriteString(stepStyle.Render("Step 2 of 3: Backend URL"))
		b.WriteString("\n")
		b.WriteString(promptStyle.Render("(press Enter for default)"))
		b.WriteString("\n")
		b.WriteString(m.urlInput.View())
		b.WriteString("\n")

	case StepDisplayName:
		if m.mode == ModeRemote {
			b.WriteString(fmt.Sprintf("  Backend: %s\n\n", m.urlInput.Value()))
		}
		b.WriteString(stepStyle.Render(fmt.Sprintf("Step %d of %d: Display name", steps, steps)))
		b.WriteString("\n")
		b.WriteString(m.name.View())
		b.WriteString("\n")

	case StepValidating:
		b.WriteString(fmt.Sprintf("  Backend: %s\n", m.urlInput.Value()))
		b.WriteString(fmt.Sprintf("  Name:    %s\n\n", displayOrGuest(m.name.Value())))
		b.WriteString(m.spinner.View())
		b.WriteString(" Checking the backend...")
		b.WriteString("\n")

	case StepDone:
		if m.mode == ModeRemote {
			b.WriteString(successStyle.Render("✓ Connected!"))
		} else {
			b.WriteString(successStyle.Render("✓ Your feed lives on this computer."))
		}
		b.WriteString("\n")

	case StepFailed:
		reason := "unknown error"
		if m.checkErr != nil {
			reason = m.checkErr.Error()
		}
		b.WriteString(errorStyle.Render(fmt.Sprintf("✗ Backend check failed: %s", reason)))
		b.WriteString("\n\n")
		b.WriteString(promptStyle.Render("[r]etry  [e]dit URL  [s]ave anyway  [q]uit"))
		b.WriteString("\n")
	}

	return b.String()
}

func displayOrGuest(name string) string {
	if name == "" {
		return "(guest)"
	}
	return name
}

// Result returns the chosen backend URL (empty for local mode) and display name.
func (m SetupModel) Result() (apiURL, displayName string) {
	if m.mode == ModeLocal {
		return "", m.name.Value()
	}
	return m.urlInput.Value(), m.name.Value()
}

// ShouldSave returns true if the wizard completed and the user did not quit.
func (m SetupModel) ShouldSave() bool {
	return m.step == StepDone && !m.quitting
}
