// ABOUTME: Cobra command running the laulau backend server.
// ABOUTME: Serves the REST API, realtime feed, and metrics over SQLite tables.
package main

import (
	"crypto/rand"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/2389-research/laulau/internal/assist"
	"github.com/2389-research/laulau/internal/config"
	"github.com/2389-research/laulau/internal/server"
	"github.com/2389-research/laulau/internal/storage"
)

const secretEnv = "LAULAU_JWT_SECRET"

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the laulau backend",
	Long: `Run the HTTP backend that clients connect to with 'laulau setup'.

Sessions are signed with server.jwt_secret from the config file or the
LAULAU_JWT_SECRET environment variable. Without either, a random secret is
used and sessions end when the server restarts.`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

var (
	serveListen string
	serveDB     string
)

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().StringVar(&serveListen, "listen", "", "Listen address (default from config, then "+config.DefaultListen+")")
	serveCmd.Flags().StringVar(&serveDB, "db", "", "SQLite database path (default from config, then the data dir)")
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	listen := cfg.GetListen()
	if serveListen != "" {
		listen = serveListen
	}
	dbPath := serveDB
	if dbPath == "" {
		if dbPath, err = cfg.GetServerDBPath(); err != nil {
			return err
		}
	}
	if err := os.MkdirAll(filepath.Dir(dbPath), 0750); err != nil {
		return fmt.Errorf("failed to create database dir: %w", err)
	}

	secret, err := serverSecret(cfg)
	if err != nil {
		return err
	}
	delay, err := cfg.GetAssistDelay()
	if err != nil {
		return err
	}

	tables, err := storage.NewSQLiteTables(dbPath)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer tables.Close()

	srv, err := server.New(tables, server.Config{
		JWTSecret:  secret,
		RatePerSec: cfg.Server.RatePerSec,
		Burst:      cfg.Server.Burst,
	}, server.WithLogger(globalLogger), server.WithEnhancer(assist.NewSimulated(delay)))
	if err != nil {
		return err
	}

	globalLogger.Info("laulau backend starting", "listen", listen, "db", dbPath)
	return srv.Run(cmd.Context(), listen)
}

func serverSecret(cfg *config.Config) ([]byte, error) {
	if s := os.Getenv(secretEnv); s != "" {
		return []byte(s), nil
	}
	if cfg.Server.JWTSecret != "" {
		return []byte(cfg.Server.JWTSecret), nil
	}
	secret := make([]byte, 32)
	if _, err := rand.Read(secret); err != nil {
		return nil, fmt.Errorf("failed to generate session secret: %w", err)
	}
	globalLogger.Warn("no jwt secret configured; sessions will not survive a restart")
	return secret, nil
}
