package conversation

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"

	dbpkg "github.com/atendoapp/atendo/internal/db"
	"github.com/atendoapp/atendo/internal/identity"
)

// Tracker finds the single active conversation for an identity within an
// instance, or opens a new one.
type Tracker struct {
	db     dbpkg.Querier
	logger *slog.Logger
}

func NewTracker(log *slog.Logger, db dbpkg.Querier) *Tracker {
	if log == nil {
		log = slog.Default()
	}
	return &Tracker{
		db:     db,
		logger: log.With(slog.String("service", "conversation")),
	}
}

// touchContactSQL bumps the active conversation in one statement; the
// unread increment happens in the database, not in application code, so
// concurrent events for the same conversation cannot lose counts.
const touchContactSQL = `
UPDATE conversations SET
    unread_count    = unread_count + 1,
    last_message_at = now(),
    updated_at      = now()
WHERE contact_id = $1 AND instance_id = $2 AND status IN ('pending', 'open')
RETURNING id, contact_id, group_ref, instance_id, owner_id, status, unread_count, queue_id, last_message_at, updated_at`

const touchGroupSQL = `
UPDATE conversations SET
    unread_count    = unread_count + 1,
    last_message_at = now(),
    updated_at      = now()
WHERE group_ref = $1 AND instance_id = $2 AND status IN ('pending', 'open')
RETURNING id, contact_id, group_ref, instance_id, owner_id, status, unread_count, queue_id, last_message_at, updated_at`

// The inserts target the partial unique indexes, so a concurrent insert
// of the same identity converges on the winner's row instead of
// duplicating it.
const openContactSQL = `
INSERT INTO conversations (contact_id, instance_id, owner_id, status, unread_count, queue_id, last_message_at)
VALUES ($1, $2, $3, 'pending', 1, $4, now())
ON CONFLICT (contact_id, instance_id) WHERE status IN ('pending', 'open') AND contact_id IS NOT NULL
DO UPDATE SET
    unread_count    = conversations.unread_count + 1,
    last_message_at = now(),
    updated_at      = now()
RETURNING id, contact_id, group_ref, instance_id, owner_id, status, unread_count, queue_id, last_message_at, updated_at`

const openGroupSQL = `
INSERT INTO conversations (group_ref, instance_id, owner_id, status, unread_count, queue_id, last_message_at)
VALUES ($1, $2, $3, 'pending', 1, $4, now())
ON CONFLICT (group_ref, instance_id) WHERE status IN ('pending', 'open') AND group_ref IS NOT NULL
DO UPDATE SET
    unread_count    = conversations.unread_count + 1,
    last_message_at = now(),
    updated_at      = now()
RETURNING id, contact_id, group_ref, instance_id, owner_id, status, unread_count, queue_id, last_message_at, updated_at`

// Track returns the active conversation for the identity, bumping its
// unread counter, or opens a pending one with the instance's default
// queue when none exists. Resolved conversations are never touched.
func (t *Tracker) Track(ctx context.Context, ident identity.ChatIdentity, instanceID, ownerID, defaultQueueID string) (Conversation, error) {
	contactID, groupRef := ident.ConversationRef()
	if contactID == "" && groupRef == "" {
		return Conversation{}, fmt.Errorf("identity has no contact or group")
	}

	pgInstanceID, err := dbpkg.ParseUUID(instanceID)
	if err != nil {
		return Conversation{}, fmt.Errorf("invalid instance id: %w", err)
	}
	pgOwnerID, err := dbpkg.ParseUUID(ownerID)
	if err != nil {
		return Conversation{}, fmt.Errorf("invalid owner id: %w", err)
	}
	pgQueueID, err := dbpkg.ParseOptionalUUID(defaultQueueID)
	if err != nil {
		return Conversation{}, fmt.Errorf("invalid queue id: %w", err)
	}

	touchSQL, openSQL := touchContactSQL, openContactSQL
	ref := contactID
	if groupRef != "" {
		touchSQL, openSQL = touchGroupSQL, openGroupSQL
		ref = groupRef
	}
	pgRef, err := dbpkg.ParseUUID(ref)
	if err != nil {
		return Conversation{}, fmt.Errorf("invalid identity id: %w", err)
	}

	conv, err := t.scan(t.db.QueryRow(ctx, touchSQL, pgRef, pgInstanceID))
	if err == nil {
		return conv, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return Conversation{}, fmt.Errorf("touch conversation: %w", err)
	}

	conv, err = t.scan(t.db.QueryRow(ctx, openSQL, pgRef, pgInstanceID, pgOwnerID, pgQueueID))
	if err != nil {
		return Conversation{}, fmt.Errorf("open conversation: %w", err)
	}
	return conv, nil
}

func (t *Tracker) scan(row pgx.Row) (Conversation, error) {
	var (
		id, instanceID, ownerID      pgtype.UUID
		contactID, groupRef, queueID pgtype.UUID
		status                       string
		unread                       int32
		lastMessageAt, updatedAt     pgtype.Timestamptz
	)
	err := row.Scan(&id, &contactID, &groupRef, &instanceID, &ownerID, &status, &unread, &queueID, &lastMessageAt, &updatedAt)
	if err != nil {
		return Conversation{}, err
	}
	return Conversation{
		ID:            dbpkg.UUIDString(id),
		ContactID:     dbpkg.UUIDString(contactID),
		GroupRef:      dbpkg.UUIDString(groupRef),
		InstanceID:    dbpkg.UUIDString(instanceID),
		OwnerID:       dbpkg.UUIDString(ownerID),
		Status:        status,
		UnreadCount:   int(unread),
		QueueID:       dbpkg.UUIDString(queueID),
		LastMessageAt: lastMessageAt.Time,
		UpdatedAt:     updatedAt.Time,
	}, nil
}
