// ABOUTME: Modal rendering for a pending confirmation.
// ABOUTME: The feed model routes y/n/esc to the controller while this is shown.
package tui

import (
	"github.com/charmbracelet/lipgloss"

	"github.com/2389-research/laulau/internal/confirm"
)

var modalStyle = lipgloss.NewStyle().
	Border(lipgloss.DoubleBorder()).
	BorderForeground(lipgloss.Color("196")).
	Padding(1, 2).
	Width(52)

// ConfirmView renders a confirmation prompt.
type ConfirmView struct {
	Prompt confirm.Prompt
}

// View renders the modal.
func (v ConfirmView) View() string {
	body := errorStyle.Bold(true).Render(v.Prompt.Title) + "\n\n" +
		v.Prompt.Message + "\n\n" +
		promptStyle.Render("[y] confirm  [n] cancel")
	return modalStyle.Render(body)
}
