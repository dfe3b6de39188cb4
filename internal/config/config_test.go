// ABOUTME: Tests for laulau configuration loading and path expansion.
// ABOUTME: Covers YAML parsing, defaults, path expansion, and remote detection.
package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestExpandPath(t *testing.T) {
	home, _ := os.UserHomeDir()

	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{"empty", "", ""},
		{"tilde only", "~", home},
		{"tilde slash", "~/foo/bar", filepath.Join(home, "foo", "bar")},
		{"absolute", "/tmp/foo", "/tmp/foo"},
		{"relative", "foo/bar", "foo/bar"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ExpandPath(tt.input)
			if err != nil {
				t.Fatalf("ExpandPath(%q) error: %v", tt.input, err)
			}
			if got != tt.expected {
				t.Errorf("ExpandPath(%q) = %q, want %q", tt.input, got, tt.expected)
			}
		})
	}
}

func TestLoadDefaultConfig(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}

	if cfg.Remote.APIURL != "" {
		t.Error("expected empty api_url in default config")
	}
	if cfg.HasRemote() {
		t.Error("expected HasRemote() to be false for default config")
	}
	if backend, err := cfg.GetBackend(); err != nil || backend != BackendMarkdown {
		t.Errorf("expected markdown backend by default, got %q (%v)", backend, err)
	}
	if cfg.GetListen() != DefaultListen {
		t.Errorf("expected default listen %q, got %q", DefaultListen, cfg.GetListen())
	}
}

func TestLoadYAMLConfig(t *testing.T) {
	tmpDir := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", tmpDir)

	configDir := filepath.Join(tmpDir, "laulau")
	if err := os.MkdirAll(configDir, 0750); err != nil {
		t.Fatalf("failed to create config dir: %v", err)
	}

	configData := `remote:
  api_url: "https://api.example.com"
  display_name: "Kai"
local:
  data_dir: "~/laulau-data"
  backend: "SQLite"
server:
  listen: ":9000"
  db_path: "~/srv/laulau.db"
  jwt_secret: "s3cret"
  rate_per_sec: 2.5
  burst: 10
assist:
  delay: "500ms"
`
	configPath := filepath.Join(configDir, "config.yaml")
	if err := os.WriteFile(configPath, []byte(configData), 0600); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}

	if cfg.Remote.APIURL != "https://api.example.com" {
		t.Errorf("expected api_url 'https://api.example.com', got %q", cfg.Remote.APIURL)
	}
	if cfg.Remote.DisplayName != "Kai" {
		t.Errorf("expected display_name 'Kai', got %q", cfg.Remote.DisplayName)
	}
	if !cfg.HasRemote() {
		t.Error("expected HasRemote() to be true")
	}
	if cfg.Server.JWTSecret != "s3cret" || cfg.Server.RatePerSec != 2.5 || cfg.Server.Burst != 10 {
		t.Errorf("unexpected server config: %+v", cfg.Server)
	}
	if cfg.GetListen() != ":9000" {
		t.Errorf("expected listen ':9000', got %q", cfg.GetListen())
	}

	home, _ := os.UserHomeDir()
	if got, err := cfg.GetDataDir(); err != nil {
		t.Fatalf("GetDataDir() error: %v", err)
	} else if got != filepath.Join(home, "laulau-data") {
		t.Errorf("GetDataDir() = %q", got)
	}
	if got, err := cfg.GetServerDBPath(); err != nil {
		t.Fatalf("GetServerDBPath() error: %v", err)
	} else if got != filepath.Join(home, "srv", "laulau.db") {
		t.Errorf("GetServerDBPath() = %q", got)
	}
	if backend, err := cfg.GetBackend(); err != nil || backend != BackendSQLite {
		t.Errorf("expected sqlite backend, got %q (%v)", backend, err)
	}
	if d, err := cfg.GetAssistDelay(); err != nil || d != 500*time.Millisecond {
		t.Errorf("expected 500ms delay, got %v (%v)", d, err)
	}
}

func TestLoadInvalidYAML(t *testing.T) {
	tmpDir := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", tmpDir)

	configDir := filepath.Join(tmpDir, "laulau")
	_ = os.MkdirAll(configDir, 0750)
	_ = os.WriteFile(filepath.Join(configDir, "config.yaml"), []byte("remote: [unclosed"), 0600)

	if _, err := Load(); err == nil {
		t.Error("expected parse error for invalid YAML")
	}
}

func TestSaveAndLoad(t *testing.T) {
	tmpDir := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", tmpDir)

	cfg := &Config{
		Remote: RemoteConfig{
			APIURL:      "https://saved.example.com",
			DisplayName: "Leilani",
		},
		Local: LocalConfig{Backend: BackendSQLite},
	}

	if err := cfg.Save(); err != nil {
		t.Fatalf("Save() error: %v", err)
	}

	path, _ := GetConfigPath()
	info, err := os.Stat(path)
	if err != nil {
		t.Fatalf("stat config: %v", err)
	}
	if info.Mode().Perm() != 0600 {
		t.Errorf("expected 0600 perms, got %o", info.Mode().Perm())
	}

	loaded, err := Load()
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}

	if loaded.Remote.APIURL != "https://saved.example.com" {
		t.Errorf("expected api_url 'https://saved.example.com', got %q", loaded.Remote.APIURL)
	}
	if loaded.Remote.DisplayName != "Leilani" {
		t.Errorf("expected display_name 'Leilani', got %q", loaded.Remote.DisplayName)
	}
	if loaded.Local.Backend != BackendSQLite {
		t.Errorf("expected backend sqlite, got %q", loaded.Local.Backend)
	}
}

func TestHasRemoteBlank(t *testing.T) {
	cfg := &Config{Remote: RemoteConfig{APIURL: "   "}}
	if cfg.HasRemote() {
		t.Error("HasRemote() should be false for a blank api_url")
	}
}

func TestGetBackendUnknown(t *testing.T) {
	cfg := &Config{Local: LocalConfig{Backend: "postgres"}}
	if _, err := cfg.GetBackend(); err == nil {
		t.Error("expected error for unknown backend")
	}
}

func TestGetAssistDelay(t *testing.T) {
	cfg := &Config{}
	if d, err := cfg.GetAssistDelay(); err != nil || d != -1 {
		t.Errorf("expected -1 for unset delay, got %v (%v)", d, err)
	}

	cfg.Assist.Delay = "soon"
	if _, err := cfg.GetAssistDelay(); err == nil {
		t.Error("expected error for unparseable delay")
	}
}

func TestDefaultPaths(t *testing.T) {
	tmpDir := t.TempDir()
	t.Setenv("XDG_DATA_HOME", tmpDir)

	cfg := &Config{}
	dataDir, err := cfg.GetDataDir()
	if err != nil {
		t.Fatalf("GetDataDir() error: %v", err)
	}
	if dataDir != filepath.Join(tmpDir, "laulau") {
		t.Errorf("GetDataDir() = %q", dataDir)
	}

	dbPath, err := cfg.GetServerDBPath()
	if err != nil {
		t.Fatalf("GetServerDBPath() error: %v", err)
	}
	if dbPath != filepath.Join(tmpDir, "laulau", "laulau.db") {
		t.Errorf("GetServerDBPath() = %q", dbPath)
	}
}
