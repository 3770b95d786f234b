package secrets

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/getherald/herald/internal/model"
)

// SQLite persists secrets in the shared herald database. The driver is
// registered by the package opening the database, see jobs.OpenDB.
type SQLite struct {
	db *sql.DB
}

// NewSQLite ensures the tenant_secrets table exists on db.
func NewSQLite(ctx context.Context, db *sql.DB) (*SQLite, error) {
	_, err := db.ExecContext(ctx,
		`CREATE TABLE IF NOT EXISTS tenant_secrets (
			tenant_id TEXT PRIMARY KEY,
			secret BLOB NOT NULL,
			issued_at INTEGER NOT NULL
		)`,
	)
	if err != nil {
		return nil, fmt.Errorf("creating tenant_secrets table: %w", err)
	}
	return &SQLite{db: db}, nil
}

func (s *SQLite) Issue(ctx context.Context, tenantID string) (model.TenantSecret, error) {
	secret, err := mintSecret()
	if err != nil {
		return model.TenantSecret{}, err
	}
	issuedAt := time.Now().UTC()

	// Single upsert, the replace is atomic.
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO tenant_secrets (tenant_id, secret, issued_at) VALUES (?,?,?)
		 ON CONFLICT(tenant_id) DO UPDATE SET secret=excluded.secret, issued_at=excluded.issued_at`,
		tenantID, secret, issuedAt.Unix(),
	)
	if err != nil {
		return model.TenantSecret{}, fmt.Errorf("executing sql insert failed: %w", err)
	}

	return model.TenantSecret{
		TenantID: tenantID,
		Secret:   secret,
		IssuedAt: issuedAt,
	}, nil
}

func (s *SQLite) Revoke(ctx context.Context, tenantID string) error {
	result, err := s.db.ExecContext(ctx,
		`DELETE FROM tenant_secrets WHERE tenant_id=?`, tenantID,
	)
	if err != nil {
		return fmt.Errorf("executing sql delete failed: %w", err)
	}

	ra, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("fetching affected rows failed: %w", err)
	}
	if ra != 1 {
		return fmt.Errorf("revoking %q: %w", tenantID, model.ErrUnknownTenant)
	}
	return nil
}

func (s *SQLite) Resolve(ctx context.Context, tenantID string) (model.TenantSecret, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT secret, issued_at FROM tenant_secrets WHERE tenant_id=?`, tenantID,
	)

	var secret []byte
	var issuedAt int64
	err := row.Scan(&secret, &issuedAt)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		return model.TenantSecret{}, fmt.Errorf("resolving %q: %w", tenantID, model.ErrUnknownTenant)
	case err != nil:
		return model.TenantSecret{}, fmt.Errorf("executing sql query failed: %w", err)
	}

	return model.TenantSecret{
		TenantID: tenantID,
		Secret:   secret,
		IssuedAt: time.Unix(issuedAt, 0).UTC(),
	}, nil
}
