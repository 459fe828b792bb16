// SPDX-License-Identifier: GPL-3.0-only

// Package settings persists runtime-mutable configuration as a single JSON
// document of named sections, one per capability.
package settings

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/rs/zerolog/log"
)

// Store is a named-section JSON settings file. A missing file is an empty
// store; sections survive round trips even when no capability claims them.
type Store struct {
	path string

	mu       sync.Mutex
	sections map[string]json.RawMessage
}

// NewStore creates a store backed by the file at path.
func NewStore(path string) *Store {
	return &Store{
		path:     path,
		sections: make(map[string]json.RawMessage),
	}
}

// Load reads the settings file. A missing file leaves the store empty.
func (s *Store) Load() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			log.Debug().Str("path", s.path).Msg("No settings file, starting with defaults")
			return nil
		}
		return fmt.Errorf("failed to read settings: %w", err)
	}

	sections := make(map[string]json.RawMessage)
	if err := json.Unmarshal(data, &sections); err != nil {
		return fmt.Errorf("failed to parse settings: %w", err)
	}
	s.sections = sections
	return nil
}

// Section returns the raw section with the given name, or nil.
func (s *Store) Section(name string) json.RawMessage {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sections[name]
}

// SetSection replaces the named section.
func (s *Store) SetSection(name string, raw json.RawMessage) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sections[name] = raw
}

// Save writes the document atomically: temp file in the same directory, then
// rename over the target.
func (s *Store) Save() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := json.MarshalIndent(s.sections, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal settings: %w", err)
	}

	dir := filepath.Dir(s.path)
	tmp, err := os.CreateTemp(dir, ".settings-*.json")
	if err != nil {
		return fmt.Errorf("failed to create temp settings file: %w", err)
	}

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmp.Name())
		return fmt.Errorf("failed to write settings: %w", err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmp.Name())
		return fmt.Errorf("failed to close temp settings file: %w", err)
	}

	if err := os.Rename(tmp.Name(), s.path); err != nil {
		_ = os.Remove(tmp.Name())
		return fmt.Errorf("failed to replace settings file: %w", err)
	}
	return nil
}
