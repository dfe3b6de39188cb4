// ABOUTME: Root Cobra command and global state for the laulau CLI.
// ABOUTME: Loads config, sets up logging, and opens the data service before each command.
package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"github.com/2389-research/laulau/internal/assist"
	"github.com/2389-research/laulau/internal/config"
	"github.com/2389-research/laulau/internal/feed"
	"github.com/2389-research/laulau/internal/storage"
)

const debugEnv = "LAULAU_DEBUG"

var globalConfig *config.Config
var globalService storage.Service
var globalLogger = slog.New(slog.NewTextHandler(io.Discard, nil))
var globalLogFile *os.File

// Commands that manage their own config or storage.
var standaloneCommands = map[string]bool{
	"help":       true,
	"version":    true,
	"setup":      true,
	"serve":      true,
	"completion": true,
}

var rootCmd = &cobra.Command{
	Use:   "laulau",
	Short: "Lau Lau Talk: a tiny photo and video feed",
	Long: `
██╗      █████╗ ██╗   ██╗    ██╗      █████╗ ██╗   ██╗
██║     ██╔══██╗██║   ██║    ██║     ██╔══██╗██║   ██║
██║     ███████║██║   ██║    ██║     ███████║██║   ██║
██║     ██╔══██║██║   ██║    ██║     ██╔══██║██║   ██║
███████╗██║  ██║╚██████╔╝    ███████╗██║  ██║╚██████╔╝
╚══════╝╚═╝  ╚═╝ ╚═════╝     ╚══════╝╚═╝  ╚═╝ ╚═════╝

   LAU LAU TALK

Post photos and videos, react, and comment.
Local-first, or connected to a laulau backend.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if err := setupLogging(cmd); err != nil {
			return err
		}
		if standaloneCommands[cmd.Name()] {
			return nil
		}

		cfg, err := config.Load()
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}
		globalConfig = cfg

		svc, err := openService(cfg)
		if err != nil {
			return err
		}
		globalService = svc
		return nil
	},
	PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
		if globalService != nil {
			_ = globalService.Close()
			globalService = nil
		}
		if globalLogFile != nil {
			_ = globalLogFile.Close()
			globalLogFile = nil
		}
		return nil
	},
}

// setupLogging routes slog to stderr, or to a debug file for the full-screen UI.
func setupLogging(cmd *cobra.Command) error {
	debug := os.Getenv(debugEnv) != ""
	level := slog.LevelInfo
	if debug {
		level = slog.LevelDebug
	}

	var w io.Writer = os.Stderr
	if cmd.Name() == "ui" {
		w = io.Discard
		if debug {
			f, err := tea.LogToFile("laulau-debug.log", "laulau")
			if err != nil {
				return fmt.Errorf("failed to open debug log: %w", err)
			}
			globalLogFile = f
			w = f
		}
	}

	globalLogger = slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(globalLogger)
	return nil
}

// openService builds the remote client when a backend is configured, and the
// local table service otherwise.
func openService(cfg *config.Config) (storage.Service, error) {
	dataDir, err := cfg.GetDataDir()
	if err != nil {
		return nil, fmt.Errorf("failed to resolve data dir: %w", err)
	}
	if err := os.MkdirAll(dataDir, 0750); err != nil {
		return nil, fmt.Errorf("failed to create data dir: %w", err)
	}

	if cfg.HasRemote() {
		return storage.NewRemoteClient(cfg.Remote.APIURL,
			storage.WithDisplayName(cfg.Remote.DisplayName),
			storage.WithSessionFile(filepath.Join(dataDir, "_session.yaml")),
		), nil
	}

	backend, err := cfg.GetBackend()
	if err != nil {
		return nil, err
	}
	var tables storage.Tables
	switch backend {
	case config.BackendSQLite:
		tables, err = storage.NewSQLiteTables(filepath.Join(dataDir, "local.db"))
	default:
		tables, err = storage.NewMDTables(dataDir)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to open %s store: %w", backend, err)
	}
	return storage.NewLocalService(tables, storage.NewIdentityStore(dataDir)), nil
}

// openEnhancer returns the backend's assist endpoint when remote, and the
// simulated enhancer otherwise.
func openEnhancer() (assist.Enhancer, error) {
	if rc, ok := globalService.(*storage.RemoteClient); ok {
		return rc, nil
	}
	delay, err := globalConfig.GetAssistDelay()
	if err != nil {
		return nil, err
	}
	return assist.NewSimulated(delay), nil
}

// startFeed creates and initializes a controller over the global service.
// Initialization problems are logged; the controller stays usable read-only.
func startFeed(ctx context.Context) *feed.Controller {
	ctrl := feed.New(globalService, feed.WithLogger(globalLogger))
	if err := ctrl.Initialize(ctx); err != nil {
		globalLogger.Warn("feed initialization incomplete", "error", err)
	}
	return ctrl
}
