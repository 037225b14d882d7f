package tenant

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"sync"
)

// ConfigStore provides read access to per-tenant agent configuration.
// An absent configuration is reported as (nil, nil); errors are reserved for
// lookup failures.
type ConfigStore interface {
	AgentConfig(ctx context.Context, tenantID string) (*AgentConfig, error)
}

// LeadReader resolves full lead profiles.
type LeadReader interface {
	Lead(ctx context.Context, tenantID, leadID string) (*Lead, error)
}

// LeadStore extends LeadReader with the mutations the lead-management tool
// needs.
type LeadStore interface {
	LeadReader
	AddTags(ctx context.Context, tenantID, leadID string, tags []string) error
	RemoveTags(ctx context.Context, tenantID, leadID string, tags []string) error
	SetStatus(ctx context.Context, tenantID, leadID, status string) error
}

// MemoryStore is an in-memory ConfigStore and LeadStore. It backs the CLI
// (loaded from a tenants file) and tests; production deployments plug in the
// CRM's own stores instead.
type MemoryStore struct {
	mu      sync.RWMutex
	configs map[string]*AgentConfig
	leads   map[string]map[string]*Lead
}

// NewMemoryStore creates an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		configs: make(map[string]*AgentConfig),
		leads:   make(map[string]map[string]*Lead),
	}
}

// LoadFile populates the store from a JSON file mapping tenant id to agent
// configuration.
func (s *MemoryStore) LoadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read tenants file: %w", err)
	}

	var configs map[string]*AgentConfig
	if err := json.Unmarshal(data, &configs); err != nil {
		return fmt.Errorf("parse tenants file: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	for id, cfg := range configs {
		s.configs[id] = cfg
	}
	return nil
}

// SetAgentConfig stores the configuration for a tenant.
func (s *MemoryStore) SetAgentConfig(tenantID string, cfg *AgentConfig) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.configs[tenantID] = cfg
}

// AgentConfig implements ConfigStore.
func (s *MemoryStore) AgentConfig(_ context.Context, tenantID string) (*AgentConfig, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.configs[tenantID], nil
}

// PutLead stores a lead profile.
func (s *MemoryStore) PutLead(tenantID string, lead *Lead) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.leads[tenantID] == nil {
		s.leads[tenantID] = make(map[string]*Lead)
	}
	s.leads[tenantID][lead.ID] = lead
}

// Lead implements LeadReader. A missing lead is (nil, nil).
func (s *MemoryStore) Lead(_ context.Context, tenantID, leadID string) (*Lead, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	leads := s.leads[tenantID]
	if leads == nil {
		return nil, nil
	}
	lead, ok := leads[leadID]
	if !ok {
		return nil, nil
	}
	cp := *lead
	cp.Tags = append([]string(nil), lead.Tags...)
	return &cp, nil
}

// AddTags implements LeadStore.
func (s *MemoryStore) AddTags(_ context.Context, tenantID, leadID string, tags []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	lead, err := s.leadLocked(tenantID, leadID)
	if err != nil {
		return err
	}
	for _, tag := range tags {
		if !containsString(lead.Tags, tag) {
			lead.Tags = append(lead.Tags, tag)
		}
	}
	return nil
}

// RemoveTags implements LeadStore.
func (s *MemoryStore) RemoveTags(_ context.Context, tenantID, leadID string, tags []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	lead, err := s.leadLocked(tenantID, leadID)
	if err != nil {
		return err
	}
	kept := lead.Tags[:0]
	for _, tag := range lead.Tags {
		if !containsString(tags, tag) {
			kept = append(kept, tag)
		}
	}
	lead.Tags = kept
	return nil
}

// SetStatus implements LeadStore.
func (s *MemoryStore) SetStatus(_ context.Context, tenantID, leadID, status string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	lead, err := s.leadLocked(tenantID, leadID)
	if err != nil {
		return err
	}
	lead.Status = status
	return nil
}

// TenantIDs returns every tenant with a stored configuration.
func (s *MemoryStore) TenantIDs(_ context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ids := make([]string, 0, len(s.configs))
	for id := range s.configs {
		ids = append(ids, id)
	}
	return ids, nil
}

func (s *MemoryStore) leadLocked(tenantID, leadID string) (*Lead, error) {
	leads := s.leads[tenantID]
	if leads == nil || leads[leadID] == nil {
		return nil, fmt.Errorf("lead %s not found for tenant %s", leadID, tenantID)
	}
	return leads[leadID], nil
}

func containsString(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
