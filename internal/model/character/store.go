package character

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Store exposes character lookup for handlers and the conversation service.
type Store interface {
	List() []Character
	FindByName(name string) (Character, bool)
	Default() Character
}

// MemoryStore implements Store with an in-memory slice.
type MemoryStore struct {
	items []Character
}

// NewMemoryStore returns a MemoryStore preloaded with the supplied characters.
func NewMemoryStore(items []Character) *MemoryStore {
	return &MemoryStore{items: append([]Character(nil), items...)}
}

// List returns the configured character roster.
func (s *MemoryStore) List() []Character {
	return append([]Character(nil), s.items...)
}

// FindByName looks up a character by its name.
func (s *MemoryStore) FindByName(name string) (Character, bool) {
	for _, item := range s.items {
		if item.Name == name {
			return item, true
		}
	}
	return Character{}, false
}

// Default returns the fallback character for sessions that never picked one.
// Prefers the roster entry named DefaultName, otherwise the first entry.
func (s *MemoryStore) Default() Character {
	if c, ok := s.FindByName(DefaultName); ok {
		return c
	}
	if len(s.items) > 0 {
		return s.items[0]
	}
	return Character{Name: DefaultName}
}

// LoadFile reads a YAML character roster from disk.
func LoadFile(path string) ([]Character, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read character roster: %w", err)
	}

	var doc struct {
		Characters []Character `yaml:"characters"`
	}
	if err := yaml.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("parse character roster: %w", err)
	}

	if len(doc.Characters) == 0 {
		return nil, fmt.Errorf("character roster %s contains no characters", path)
	}
	for i, c := range doc.Characters {
		if c.Name == "" {
			return nil, fmt.Errorf("character roster %s: entry %d is missing a name", path, i)
		}
	}

	return doc.Characters, nil
}
