package service

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"
)

// CommunityService manages communities and their map configurations.
type CommunityService struct {
	dataDir     string
	bus         *EventBus
	communities map[string]Community
	mu          sync.RWMutex
}

// NewCommunityService creates a community service backed by
// <dataDir>/communities.json. bus may be nil.
func NewCommunityService(dataDir string, bus *EventBus) *CommunityService {
	s := &CommunityService{
		dataDir:     dataDir,
		bus:         bus,
		communities: make(map[string]Community),
	}
	s.loadFromDisk()
	return s
}

// List returns all communities ordered by ID.
func (s *CommunityService) List() []Community {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]Community, 0, len(s.communities))
	for _, c := range s.communities {
		result = append(result, c)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].ID < result[j].ID })
	return result
}

// Get returns a community by ID.
func (s *CommunityService) Get(id string) (Community, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	c, ok := s.communities[id]
	return c, ok
}

// Create adds a new community.
func (s *CommunityService) Create(c Community) (Community, error) {
	if err := validate(c); err != nil {
		return Community{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if c.ID == "" {
		c.ID = generateID(c.Name)
	}
	if c.ID == "" {
		return Community{}, fmt.Errorf("community name %q yields an empty ID", c.Name)
	}
	if _, exists := s.communities[c.ID]; exists {
		return Community{}, fmt.Errorf("community %q: %w", c.ID, ErrExists)
	}

	s.communities[c.ID] = c
	if err := s.saveToDisk(); err != nil {
		delete(s.communities, c.ID)
		return Community{}, err
	}

	s.publish("created", c.ID)
	return c, nil
}

// Update replaces a community by ID.
func (s *CommunityService) Update(id string, c Community) (Community, error) {
	if err := validate(c); err != nil {
		return Community{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	prev, exists := s.communities[id]
	if !exists {
		return Community{}, fmt.Errorf("community %q: %w", id, ErrNotFound)
	}

	c.ID = id
	s.communities[id] = c
	if err := s.saveToDisk(); err != nil {
		s.communities[id] = prev
		return Community{}, err
	}

	s.publish("updated", id)
	return c, nil
}

// Delete removes a community by ID.
func (s *CommunityService) Delete(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	prev, exists := s.communities[id]
	if !exists {
		return fmt.Errorf("community %q: %w", id, ErrNotFound)
	}

	delete(s.communities, id)
	if err := s.saveToDisk(); err != nil {
		s.communities[id] = prev
		return err
	}

	s.publish("deleted", id)
	return nil
}

// Seed creates the communities listed in a YAML file. Communities whose
// ID already exists are left untouched. It returns how many were created.
func (s *CommunityService) Seed(path string) (int, error) {
	seed, err := LoadSeed(path)
	if err != nil {
		return 0, err
	}

	created := 0
	for _, c := range seed {
		if c.ID == "" {
			c.ID = generateID(c.Name)
		}
		if _, exists := s.Get(c.ID); exists {
			continue
		}
		if _, err := s.Create(c); err != nil {
			return created, fmt.Errorf("seed community %q: %w", c.ID, err)
		}
		created++
	}
	return created, nil
}

// LoadSeed reads a YAML list of communities.
func LoadSeed(path string) ([]Community, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read seed file: %w", err)
	}

	var seed []Community
	if err := yaml.Unmarshal(data, &seed); err != nil {
		return nil, fmt.Errorf("parse seed file %s: %w", path, err)
	}
	return seed, nil
}

func validate(c Community) error {
	if strings.TrimSpace(c.Name) == "" {
		return fmt.Errorf("community name is required")
	}
	if err := c.Normalized().Validate(); err != nil {
		return fmt.Errorf("community %q map config: %w", c.Name, err)
	}
	return nil
}

func (s *CommunityService) publish(action, id string) {
	if s.bus != nil {
		s.bus.Publish(Event{Resource: "communities", Action: action, ID: id})
	}
}

// configFile returns the path to the communities file.
func (s *CommunityService) configFile() string {
	return filepath.Join(s.dataDir, "communities.json")
}

// loadFromDisk loads communities from disk.
func (s *CommunityService) loadFromDisk() {
	data, err := os.ReadFile(s.configFile())
	if err != nil {
		return // File doesn't exist yet, start empty
	}

	var communities map[string]Community
	if err := json.Unmarshal(data, &communities); err != nil || communities == nil {
		return // Invalid JSON, start empty
	}

	s.communities = communities
}

// saveToDisk persists communities to disk.
func (s *CommunityService) saveToDisk() error {
	if err := os.MkdirAll(s.dataDir, 0755); err != nil {
		return err
	}

	data, err := json.MarshalIndent(s.communities, "", "  ")
	if err != nil {
		return err
	}

	return os.WriteFile(s.configFile(), data, 0644)
}

// generateID creates a URL-safe ID from a name.
func generateID(name string) string {
	id := strings.ToLower(strings.TrimSpace(name))
	id = strings.ReplaceAll(id, " ", "_")
	var result strings.Builder
	for _, r := range id {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') || r == '_' {
			result.WriteRune(r)
		}
	}
	return result.String()
}
