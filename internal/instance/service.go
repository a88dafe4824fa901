package instance

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"

	dbpkg "github.com/atendoapp/atendo/internal/db"
)

// Service resolves instances by name.
type Service struct {
	db     dbpkg.Querier
	logger *slog.Logger
}

func NewService(log *slog.Logger, db dbpkg.Querier) *Service {
	if log == nil {
		log = slog.Default()
	}
	return &Service{
		db:     db,
		logger: log.With(slog.String("service", "instance")),
	}
}

const getByNameSQL = `
SELECT id, name, api_key, forward_url, default_queue_id, owner_id
FROM instances
WHERE name = $1`

// GetByName looks up the instance for an inbound webhook. Returns
// ErrNotFound when the name is unknown.
func (s *Service) GetByName(ctx context.Context, name string) (Instance, error) {
	var (
		id, ownerID      pgtype.UUID
		instName, apiKey string
		forwardURL       pgtype.Text
		defaultQueueID   pgtype.UUID
	)
	err := s.db.QueryRow(ctx, getByNameSQL, name).
		Scan(&id, &instName, &apiKey, &forwardURL, &defaultQueueID, &ownerID)
	if errors.Is(err, pgx.ErrNoRows) {
		return Instance{}, ErrNotFound
	}
	if err != nil {
		return Instance{}, fmt.Errorf("get instance %q: %w", name, err)
	}
	return Instance{
		ID:             dbpkg.UUIDString(id),
		Name:           instName,
		APIKey:         apiKey,
		ForwardURL:     dbpkg.TextString(forwardURL),
		DefaultQueueID: dbpkg.UUIDString(defaultQueueID),
		OwnerID:        dbpkg.UUIDString(ownerID),
	}, nil
}
