// ABOUTME: Cobra command launching the full-screen feed UI.
// ABOUTME: Runs the bubbletea feed model over an initialized controller.
package main

import (
	"fmt"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"github.com/2389-research/laulau/internal/tui"
)

var uiCmd = &cobra.Command{
	Use:   "ui",
	Short: "Open the interactive feed",
	Long: `Browse, post, react, and comment in a full-screen terminal UI.

Set LAULAU_DEBUG=1 to write debug logs to laulau-debug.log.`,
	Args: cobra.NoArgs,
	RunE: runUI,
}

func init() {
	rootCmd.AddCommand(uiCmd)
}

func runUI(cmd *cobra.Command, args []string) error {
	enhancer, err := openEnhancer()
	if err != nil {
		return err
	}

	ctrl := startFeed(cmd.Context())
	defer ctrl.Close()

	p := tea.NewProgram(tui.NewFeedModel(ctrl, enhancer), tea.WithAltScreen(), tea.WithContext(cmd.Context()))
	if _, err := p.Run(); err != nil {
		return fmt.Errorf("TUI error: %w", err)
	}
	return nil
}
