// ABOUTME: File-backed persistence of the local session identity.
// ABOUTME: Reads and writes _identity.yaml holding the user ID and optional display name.
package storage

import (
	"fmt"
	"path/filepath"
	"sync"

	"github.com/google/uuid"

	"github.com/2389-research/laulau/internal/models"
)

// IdentityStore keeps the local identity in <dataDir>/_identity.yaml.
type IdentityStore struct {
	path string
	mu   sync.Mutex
}

// identityFile is the YAML structure for _identity.yaml.
type identityFile struct {
	UserID      string `yaml:"user_id"`
	DisplayName string `yaml:"display_name,omitempty"`
	Anonymous   bool   `yaml:"anonymous"`
}

// NewIdentityStore creates an identity store in dataDir.
func NewIdentityStore(dataDir string) *IdentityStore {
	return &IdentityStore{path: filepath.Join(dataDir, "_identity.yaml")}
}

// Get returns the stored identity, or nil if none has been established.
func (s *IdentityStore) Get() (*models.Identity, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.get()
}

func (s *IdentityStore) get() (*models.Identity, error) {
	var f identityFile
	if err := readYAML(s.path, &f); err != nil {
		return nil, fmt.Errorf("failed to read identity: %w", err)
	}
	if f.UserID == "" {
		return nil, nil
	}
	return &models.Identity{UserID: f.UserID, DisplayName: f.DisplayName, Anonymous: f.Anonymous}, nil
}

// EstablishAnonymous returns the stored identity, creating an anonymous one if none exists.
func (s *IdentityStore) EstablishAnonymous() (*models.Identity, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	id, err := s.get()
	if err != nil || id != nil {
		return id, err
	}
	f := identityFile{UserID: uuid.New().String(), Anonymous: true}
	if err := writeYAML(s.path, &f); err != nil {
		return nil, fmt.Errorf("failed to write identity: %w", err)
	}
	return &models.Identity{UserID: f.UserID, Anonymous: true}, nil
}

// SetDisplayName persists the display name, establishing an identity first if needed.
func (s *IdentityStore) SetDisplayName(name string) (*models.Identity, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	id, err := s.get()
	if err != nil {
		return nil, err
	}
	f := identityFile{UserID: uuid.New().String(), Anonymous: true}
	if id != nil {
		f.UserID = id.UserID
		f.Anonymous = id.Anonymous
	}
	f.DisplayName = name
	if err := writeYAML(s.path, &f); err != nil {
		return nil, fmt.Errorf("failed to write identity: %w", err)
	}
	return &models.Identity{UserID: f.UserID, DisplayName: name, Anonymous: f.Anonymous}, nil
}
