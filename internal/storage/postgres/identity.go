package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"log"

	"github.com/bna-integrations/checkout-reconciler/internal/identity"
)

// IdentityRepository persists email-hash -> remote customer id mappings.
// Entries have no TTL and are never invalidated automatically; staleness is
// an accepted risk, so writes are logged with the hashed key for tracing.
type IdentityRepository struct {
	DB *sql.DB
}

func NewIdentityRepository(db *sql.DB) *IdentityRepository {
	return &IdentityRepository{DB: db}
}

func (r *IdentityRepository) Get(ctx context.Context, email string) (string, bool, error) {
	if r.DB == nil {
		return "", false, fmt.Errorf("database not initialized")
	}
	var id string
	err := r.DB.QueryRowContext(ctx,
		`SELECT customer_id FROM customer_identities WHERE email_hash = $1`,
		identity.HashEmail(email)).Scan(&id)
	if err == sql.ErrNoRows {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("failed to load customer identity: %w", err)
	}
	return id, true, nil
}

func (r *IdentityRepository) Put(ctx context.Context, email, id string) error {
	if r.DB == nil {
		return fmt.Errorf("database not initialized")
	}
	hash := identity.HashEmail(email)
	if _, err := r.DB.ExecContext(ctx, `
        INSERT INTO customer_identities (email_hash, customer_id)
        VALUES ($1, $2)
        ON CONFLICT (email_hash) DO UPDATE SET
            customer_id = EXCLUDED.customer_id,
            updated_at = CURRENT_TIMESTAMP
    `, hash, id); err != nil {
		return fmt.Errorf("failed to store customer identity: %w", err)
	}
	log.Printf("[DB] Stored customer identity %s -> %s", hash[:12], id)
	return nil
}

func (r *IdentityRepository) Delete(ctx context.Context, email string) error {
	if r.DB == nil {
		return fmt.Errorf("database not initialized")
	}
	if _, err := r.DB.ExecContext(ctx,
		`DELETE FROM customer_identities WHERE email_hash = $1`,
		identity.HashEmail(email)); err != nil {
		return fmt.Errorf("failed to delete customer identity: %w", err)
	}
	return nil
}
