package model

import "time"

// TenantSecret is the active signing secret of one tenant. At most one
// exists per tenant id; reissuing replaces the prior value atomically.
type TenantSecret struct {
	TenantID string
	Secret   []byte
	IssuedAt time.Time
}
