package credential

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"
)

const credentialColumns = `id, project_id, label, key_hash, environment, active, last_used_at, created_at`

// Store provides Postgres-backed credential persistence.
type Store struct {
	pool *pgxpool.Pool
}

// NewStore creates a Store backed by the given pool.
func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

func scanCredential(row pgx.Row) (Credential, error) {
	var c Credential
	var env string
	var lastUsed pgtype.Timestamptz
	err := row.Scan(&c.ID, &c.ProjectID, &c.Label, &c.KeyHash, &env, &c.Active, &lastUsed, &c.CreatedAt)
	if err != nil {
		return Credential{}, err
	}
	c.Environment = Environment(env)
	if lastUsed.Valid {
		t := lastUsed.Time
		c.LastUsedAt = &t
	}
	return c, nil
}

// FindByHash looks up a credential by its SHA-256 key hash.
func (s *Store) FindByHash(ctx context.Context, hash string) (Credential, error) {
	query := `SELECT ` + credentialColumns + ` FROM credentials WHERE key_hash = $1`
	c, err := scanCredential(s.pool.QueryRow(ctx, query, hash))
	if err != nil {
		if err == pgx.ErrNoRows {
			return Credential{}, ErrNotFound
		}
		return Credential{}, fmt.Errorf("finding credential by hash: %w", err)
	}
	return c, nil
}

// TouchLastUsed updates last_used_at to now. Callers invoke this off the
// request's critical path; failures are logged, never propagated.
func (s *Store) TouchLastUsed(ctx context.Context, id uuid.UUID) error {
	query := `UPDATE credentials SET last_used_at = $2 WHERE id = $1`
	_, err := s.pool.Exec(ctx, query, id, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("touching last_used_at: %w", err)
	}
	return nil
}
