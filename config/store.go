package config

import "sync"

// Store serialises reads and writes of one configuration file. The agent
// loads a fresh copy on every hotkey activation; the settings UI writes
// through Update.
type Store struct {
	mu   sync.Mutex
	path string
}

// NewStore creates a store for the file at path
func NewStore(path string) *Store {
	return &Store{path: path}
}

// Path returns the configuration file path
func (s *Store) Path() string {
	return s.path
}

// Load reads the current configuration from disk
func (s *Store) Load() (*Config, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return Load(s.path)
}

// Update applies fn to the current configuration and saves the result.
// Nothing is written when fn fails.
func (s *Store) Update(fn func(*Config) error) (*Config, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	cfg, err := Load(s.path)
	if err != nil {
		return nil, err
	}
	if err := fn(cfg); err != nil {
		return nil, err
	}
	if err := Save(s.path, cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}
