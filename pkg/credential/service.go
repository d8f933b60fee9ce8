package credential

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Service resolves API keys and manages credential lifecycle.
type Service struct {
	store  *Store
	logger *slog.Logger
}

// NewService creates a Service backed by the given pool.
func NewService(pool *pgxpool.Pool, logger *slog.Logger) *Service {
	return &Service{store: NewStore(pool), logger: logger}
}

// Resolve looks up the credential owning a cleartext API key. It rejects
// keys that don't match the expected format before ever touching storage,
// and rejects credentials that are found but inactive. On success it
// schedules an asynchronous last-used timestamp update; that write never
// blocks the caller and its failure is only logged.
func (s *Service) Resolve(ctx context.Context, cleartextKey string) (Credential, error) {
	if !keyPattern.MatchString(cleartextKey) {
		return Credential{}, ErrMalformed
	}

	c, err := s.store.FindByHash(ctx, hashKey(cleartextKey))
	if err != nil {
		return Credential{}, err
	}
	if !c.Active {
		return Credential{}, ErrInactive
	}

	go s.touchLastUsed(c.ID)

	return c, nil
}

func (s *Service) touchLastUsed(id uuid.UUID) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := s.store.TouchLastUsed(ctx, id); err != nil && s.logger != nil {
		s.logger.Warn("updating credential last-used timestamp", "error", err, "credential_id", id)
	}
}
