// ABOUTME: Tests for CLI helpers: reaction parsing, confirmation prompt, and service wiring.
// ABOUTME: Exercises the local service end to end through a temporary data directory.
package main

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/2389-research/laulau/internal/config"
	"github.com/2389-research/laulau/internal/models"
	"github.com/2389-research/laulau/internal/storage"
)

func TestParseEmoji(t *testing.T) {
	tests := []struct {
		in      string
		want    string
		wantErr bool
	}{
		{"👍", "👍", false},
		{"LIKE", "👍", false},
		{"heart", "❤️", false},
		{"lol", "😂", false},
		{"🔥", "", true},
	}
	for _, tt := range tests {
		got, err := parseEmoji(tt.in)
		if (err != nil) != tt.wantErr {
			t.Errorf("parseEmoji(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
		}
		if got != tt.want {
			t.Errorf("parseEmoji(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestAskYesNo(t *testing.T) {
	tests := []struct {
		input string
		want  bool
	}{
		{"y\n", true},
		{"YES\n", true},
		{"n\n", false},
		{"\n", false},
		{"", false},
		{"maybe\n", false},
	}
	for _, tt := range tests {
		var out bytes.Buffer
		got := askYesNo(strings.NewReader(tt.input), &out, "Delete Post: sure?")
		if got != tt.want {
			t.Errorf("askYesNo(%q) = %v, want %v", tt.input, got, tt.want)
		}
		if !strings.Contains(out.String(), "[y/N]") {
			t.Errorf("expected prompt suffix, got %q", out.String())
		}
	}
}

func useLocalService(t *testing.T, backend string) {
	t.Helper()
	cfg := &config.Config{Local: config.LocalConfig{DataDir: t.TempDir(), Backend: backend}}
	svc, err := openService(cfg)
	if err != nil {
		t.Fatalf("openService(%s) error: %v", backend, err)
	}
	globalConfig = cfg
	globalService = svc
	t.Cleanup(func() {
		_ = svc.Close()
		globalService = nil
		globalConfig = nil
	})
}

func TestOpenServiceLocalBackends(t *testing.T) {
	for _, backend := range []string{config.BackendMarkdown, config.BackendSQLite} {
		t.Run(backend, func(t *testing.T) {
			useLocalService(t, backend)
			if _, ok := globalService.(*storage.LocalService); !ok {
				t.Fatalf("expected *storage.LocalService, got %T", globalService)
			}

			ctx := context.Background()
			ctrl := startFeed(ctx)
			defer ctrl.Close()

			if _, err := ctrl.CreatePost(ctx, welcomeDraft); err != nil {
				t.Fatalf("CreatePost error: %v", err)
			}

			var out bytes.Buffer
			printFeed(&out, ctrl.Snapshot(), 10, false)
			text := out.String()
			if !strings.Contains(text, "Welcome to Lau Lau Talk!") || !strings.Contains(text, "(yours)") {
				t.Errorf("unexpected feed output:\n%s", text)
			}
		})
	}
}

func TestOpenServiceUnknownBackend(t *testing.T) {
	cfg := &config.Config{Local: config.LocalConfig{DataDir: t.TempDir(), Backend: "postgres"}}
	if _, err := openService(cfg); err == nil {
		t.Error("expected error for unknown backend")
	}
}

func TestOpenServiceRemote(t *testing.T) {
	cfg := &config.Config{
		Remote: config.RemoteConfig{APIURL: "http://localhost:8787"},
		Local:  config.LocalConfig{DataDir: t.TempDir()},
	}
	svc, err := openService(cfg)
	if err != nil {
		t.Fatalf("openService error: %v", err)
	}
	defer svc.Close()
	if _, ok := svc.(*storage.RemoteClient); !ok {
		t.Errorf("expected *storage.RemoteClient, got %T", svc)
	}
}

func TestPrintFeedEmptyAndComments(t *testing.T) {
	useLocalService(t, config.BackendMarkdown)
	ctx := context.Background()
	ctrl := startFeed(ctx)
	defer ctrl.Close()

	var out bytes.Buffer
	printFeed(&out, ctrl.Snapshot(), 10, true)
	if strings.TrimSpace(out.String()) != "No posts found." {
		t.Errorf("expected empty feed message, got %q", out.String())
	}

	post, err := ctrl.CreatePost(ctx, models.PostDraft{
		Title: "Clip", Content: "watch", MediaKind: models.MediaVideo, MediaURL: "https://youtu.be/dQw4w9WgXcQ",
	})
	if err != nil {
		t.Fatalf("CreatePost error: %v", err)
	}
	if _, err := ctrl.Comment(ctx, post.ID, "great"); err != nil {
		t.Fatalf("Comment error: %v", err)
	}

	out.Reset()
	printFeed(&out, ctrl.Snapshot(), 10, true)
	text := out.String()
	if !strings.Contains(text, "https://www.youtube.com/embed/dQw4w9WgXcQ") {
		t.Errorf("expected resolved embed URL, got:\n%s", text)
	}
	if !strings.Contains(text, "💬 1") || !strings.Contains(text, ": great") {
		t.Errorf("expected comment thread, got:\n%s", text)
	}
}

func TestSaveLocalDisplayName(t *testing.T) {
	dir := t.TempDir()
	cfg := &config.Config{Local: config.LocalConfig{DataDir: dir}}
	if err := saveLocalDisplayName(cfg, "Leilani"); err != nil {
		t.Fatalf("saveLocalDisplayName error: %v", err)
	}
	id, err := storage.NewIdentityStore(dir).Get()
	if err != nil {
		t.Fatalf("Get error: %v", err)
	}
	if id == nil || id.DisplayName != "Leilani" {
		t.Errorf("expected stored display name, got %+v", id)
	}
}
