package workflow

import (
	"context"
	"sync"
	"time"
)

// ConfigStore holds named, versioned pipeline definitions. Save validates
// and upserts by id; concurrent configuration authors are out of scope.
type ConfigStore interface {
	Get(ctx context.Context, workflowID string) (*Configuration, error)
	ListActive(ctx context.Context) ([]*Configuration, error)
	Save(ctx context.Context, cfg *Configuration) error
	// Delete removes a configuration, reporting whether one existed.
	Delete(ctx context.Context, workflowID string) (bool, error)
}

// configStoreMem is an in-memory ConfigStore.
type configStoreMem struct {
	mu      sync.RWMutex
	configs map[string]*Configuration
}

// NewConfigStoreMem returns an in-memory store seeded with the given
// configurations. Seeds must be valid; they are stored as-is.
func NewConfigStoreMem(seed ...*Configuration) ConfigStore {
	s := &configStoreMem{configs: make(map[string]*Configuration)}
	for _, cfg := range seed {
		s.configs[cfg.ID] = cfg
	}
	return s
}

func (s *configStoreMem) Get(_ context.Context, workflowID string) (*Configuration, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	cfg, ok := s.configs[workflowID]
	if !ok {
		return nil, &NotFoundError{Resource: "workflow", ID: workflowID}
	}
	return cfg, nil
}

func (s *configStoreMem) ListActive(_ context.Context) ([]*Configuration, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*Configuration
	for _, cfg := range s.configs {
		if cfg.Active {
			out = append(out, cfg)
		}
	}
	return out, nil
}

func (s *configStoreMem) Save(_ context.Context, cfg *Configuration) error {
	if err := cfg.Validate(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	now := time.Now().UTC()
	if existing, ok := s.configs[cfg.ID]; ok {
		cfg.CreatedAt = existing.CreatedAt
		cfg.Version = existing.Version + 1
	} else {
		cfg.CreatedAt = now
		if cfg.Version == 0 {
			cfg.Version = 1
		}
	}
	cfg.UpdatedAt = now
	s.configs[cfg.ID] = cfg
	return nil
}

func (s *configStoreMem) Delete(_ context.Context, workflowID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.configs[workflowID]
	delete(s.configs, workflowID)
	return ok, nil
}
