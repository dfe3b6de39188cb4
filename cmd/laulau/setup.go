// ABOUTME: Cobra command for interactive first-run setup.
// ABOUTME: Runs the bubbletea wizard and persists the chosen mode, backend URL and display name.
package main

import (
	"fmt"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"github.com/2389-research/laulau/internal/config"
	"github.com/2389-research/laulau/internal/storage"
	"github.com/2389-research/laulau/internal/tui"
)

var setupCmd = &cobra.Command{
	Use:   "setup",
	Short: "Choose where your feed lives",
	Long:  "Interactive wizard to keep the feed on this computer or connect to a laulau backend, and pick a display name.",
	RunE:  runSetup,
}

func init() {
	rootCmd.AddCommand(setupCmd)
}

func runSetup(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	model := tui.NewSetupModel(cfg.Remote.APIURL, cfg.Remote.DisplayName)

	p := tea.NewProgram(model, tea.WithContext(cmd.Context()))
	result, err := p.Run()
	if err != nil {
		return fmt.Errorf("TUI error: %w", err)
	}

	final := result.(tui.SetupModel)
	if !final.ShouldSave() {
		fmt.Println("Setup cancelled.")
		return nil
	}

	apiURL, displayName := final.Result()
	cfg.Remote.APIURL = apiURL
	if apiURL != "" {
		cfg.Remote.DisplayName = displayName
	} else if displayName != "" {
		if err := saveLocalDisplayName(cfg, displayName); err != nil {
			return err
		}
	}

	if err := cfg.Save(); err != nil {
		return fmt.Errorf("failed to save config: %w", err)
	}

	configPath, err := config.GetConfigPath()
	if err != nil {
		fmt.Println("Config saved successfully.")
	} else {
		fmt.Printf("Config saved to %s\n", configPath)
	}
	return nil
}

// saveLocalDisplayName stores the name with the local identity so posts and
// comments written on this computer carry it.
func saveLocalDisplayName(cfg *config.Config, name string) error {
	dataDir, err := cfg.GetDataDir()
	if err != nil {
		return err
	}
	if _, err := storage.NewIdentityStore(dataDir).SetDisplayName(name); err != nil {
		return fmt.Errorf("failed to save display name: %w", err)
	}
	return nil
}
