package secrets

import (
	"context"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/getherald/herald/internal/model"
)

// Memory keeps secrets in a map. For tests and single-process dev runs.
type Memory struct {
	mu      sync.RWMutex
	tenants map[string]model.TenantSecret
}

func NewMemory() *Memory {
	return &Memory{
		tenants: make(map[string]model.TenantSecret),
	}
}

func (m *Memory) Issue(_ context.Context, tenantID string) (model.TenantSecret, error) {
	secret, err := mintSecret()
	if err != nil {
		return model.TenantSecret{}, err
	}
	record := model.TenantSecret{
		TenantID: tenantID,
		Secret:   secret,
		IssuedAt: time.Now().UTC(),
	}

	m.mu.Lock()
	m.tenants[tenantID] = record
	m.mu.Unlock()

	return cloned(record), nil
}

func (m *Memory) Revoke(_ context.Context, tenantID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.tenants[tenantID]; !ok {
		return fmt.Errorf("revoking %q: %w", tenantID, model.ErrUnknownTenant)
	}
	delete(m.tenants, tenantID)
	return nil
}

func (m *Memory) Resolve(_ context.Context, tenantID string) (model.TenantSecret, error) {
	m.mu.RLock()
	record, ok := m.tenants[tenantID]
	m.mu.RUnlock()

	if !ok {
		return model.TenantSecret{}, fmt.Errorf("resolving %q: %w", tenantID, model.ErrUnknownTenant)
	}
	return cloned(record), nil
}

// cloned copies the secret bytes so callers cannot mutate the stored value.
func cloned(r model.TenantSecret) model.TenantSecret {
	r.Secret = slices.Clone(r.Secret)
	return r
}
