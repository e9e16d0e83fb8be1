package app

import (
	"context"
	"sync"
	"time"
)

// ConfigStore persists the provider configuration. Get reports found=false when nothing has
// been saved yet.
type ConfigStore interface {
	Get(ctx context.Context) (ProviderConfiguration, bool, error)
	Save(ctx context.Context, cfg ProviderConfiguration) error
}

// OutcomeCache remembers settled session outcomes so repeated status queries return the same
// variant without another provider round trip.
type OutcomeCache interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
}

// MemoryConfigStore keeps the configuration in process. Used when no database is configured.
type MemoryConfigStore struct {
	mu  sync.RWMutex
	cfg *ProviderConfiguration
}

func NewMemoryConfigStore() *MemoryConfigStore { return &MemoryConfigStore{} }

func (m *MemoryConfigStore) Get(context.Context) (ProviderConfiguration, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.cfg == nil {
		return ProviderConfiguration{}, false, nil
	}
	cfg := *m.cfg
	cfg.AllowedCountries = append([]string(nil), m.cfg.AllowedCountries...)
	return cfg, true, nil
}

func (m *MemoryConfigStore) Save(_ context.Context, cfg ProviderConfiguration) error {
	cfg.AllowedCountries = append([]string(nil), cfg.AllowedCountries...)
	m.mu.Lock()
	m.cfg = &cfg
	m.mu.Unlock()
	return nil
}

type noCache struct{}

func (noCache) Get(context.Context, string) ([]byte, bool, error) {
	return nil, false, nil
}

func (noCache) Set(context.Context, string, []byte, time.Duration) error {
	return nil
}
