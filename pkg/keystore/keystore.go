// Package keystore persists the model API credential between sessions.
// One JSON file under the data directory, holding one key. A validly
// prefixed key is what gates live mode; anything else keeps the app in
// demo-only territory.
package keystore

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
)

const fileName = "credentials.json"

// keyPrefix is the expected credential prefix.
const keyPrefix = "sk-"

// ErrInvalidKey indicates a credential without the expected prefix.
var ErrInvalidKey = errors.New("keystore: key must start with sk-")

// Valid reports whether key looks like a usable credential.
func Valid(key string) bool {
	return strings.HasPrefix(key, keyPrefix) && len(key) > len(keyPrefix)
}

type record struct {
	APIKey string `json:"api_key"`
}

// Store persists the credential as a JSON file.
type Store struct {
	mu   sync.Mutex
	path string
}

// New creates a store rooted at dir.
func New(dir string) *Store {
	return &Store{path: filepath.Join(dir, fileName)}
}

// Load returns the stored credential, or "" when none is saved.
func (s *Store) Load() (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := os.ReadFile(s.path)
	if errors.Is(err, os.ErrNotExist) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("keystore: read: %w", err)
	}

	var rec record
	if err := json.Unmarshal(data, &rec); err != nil {
		return "", fmt.Errorf("keystore: parse: %w", err)
	}
	return rec.APIKey, nil
}

// Save validates and persists the credential. The file is created with
// owner-only permissions.
func (s *Store) Save(key string) error {
	if !Valid(key) {
		return ErrInvalidKey
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := os.MkdirAll(filepath.Dir(s.path), 0o700); err != nil {
		return fmt.Errorf("keystore: mkdir: %w", err)
	}

	data, err := json.MarshalIndent(record{APIKey: key}, "", "  ")
	if err != nil {
		return fmt.Errorf("keystore: encode: %w", err)
	}

	if err := os.WriteFile(s.path, data, 0o600); err != nil {
		return fmt.Errorf("keystore: write: %w", err)
	}
	return nil
}

// Clear removes the stored credential. Clearing an empty store is not an
// error.
func (s *Store) Clear() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	err := os.Remove(s.path)
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("keystore: remove: %w", err)
	}
	return nil
}
