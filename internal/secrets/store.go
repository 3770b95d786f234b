// Package secrets is the per-tenant signing secret registry. Each
// tenant holds at most one active secret; reissuing replaces the prior
// value atomically and revocation takes effect on the next resolve.
// Tenant ids are opaque, callers validate shape at the boundary.
package secrets

import (
	"context"
	"crypto/rand"
	"fmt"

	"github.com/getherald/herald/internal/model"
)

// secretLen is 32 bytes, 256 bits of entropy.
const secretLen = 32

// Store resolves tenant ids to signing secrets. Implementations
// serialize concurrent access internally.
type Store interface {
	// Issue mints a fresh random secret for the tenant, replacing any
	// prior one. Each call mints a new value, it is not idempotent.
	Issue(ctx context.Context, tenantID string) (model.TenantSecret, error)
	// Revoke removes the tenant's secret. model.ErrUnknownTenant when
	// none is on file.
	Revoke(ctx context.Context, tenantID string) error
	// Resolve returns the tenant's active secret, model.ErrUnknownTenant
	// when none is on file. Never a shared default.
	Resolve(ctx context.Context, tenantID string) (model.TenantSecret, error)
}

func mintSecret() ([]byte, error) {
	b := make([]byte, secretLen)
	if _, err := rand.Read(b); err != nil {
		return nil, fmt.Errorf("minting secret: %w", err)
	}
	return b, nil
}
