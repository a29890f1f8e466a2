// Package config provides configuration helpers for kibo commands.
package config

import (
	"os"
	"path/filepath"
)

// Defaults for the kibo server.
const (
	DefaultPort    = "8080"
	DefaultDataDir = ".kibo"
)

// Port returns the HTTP port from KIBO_PORT, falling back to the default.
func Port() string {
	if p := os.Getenv("KIBO_PORT"); p != "" {
		return p
	}
	return DefaultPort
}

// APIKey returns the model API key from OPENAI_API_KEY.
// An empty value means the server starts without live mode until a key
// is saved through the UI.
func APIKey() string {
	return os.Getenv("OPENAI_API_KEY")
}

// BaseURL returns the model endpoint override from KIBO_MODEL_URL.
// Empty means the client default is used.
func BaseURL() string {
	return os.Getenv("KIBO_MODEL_URL")
}

// DataDir returns the directory for persisted state (credential store).
// Uses KIBO_DATA_DIR if set, otherwise ~/.kibo, otherwise ./.kibo.
func DataDir() string {
	if dir := os.Getenv("KIBO_DATA_DIR"); dir != "" {
		return dir
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return DefaultDataDir
	}
	return filepath.Join(home, DefaultDataDir)
}
