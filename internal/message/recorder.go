package message

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/jackc/pgx/v5/pgtype"

	dbpkg "github.com/atendoapp/atendo/internal/db"
)

// MediaTransfer downloads and persists a message attachment, returning
// its public URL or "" when no media could be transferred.
type MediaTransfer interface {
	Transfer(ctx context.Context, apiKey, conversationID, externalID, messageType string) string
}

// Recorder normalizes and persists inbound messages.
type Recorder struct {
	db     dbpkg.Querier
	media  MediaTransfer
	logger *slog.Logger
}

func NewRecorder(log *slog.Logger, db dbpkg.Querier, media MediaTransfer) *Recorder {
	if log == nil {
		log = slog.Default()
	}
	return &Recorder{
		db:     db,
		media:  media,
		logger: log.With(slog.String("service", "message")),
	}
}

const insertMessageSQL = `
INSERT INTO messages (conversation_id, body, direction, message_type, external_id,
    sender_name, sender_id, sender_avatar_url, media_url,
    reply_to_external_id, quoted_body, quoted_sender)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
RETURNING id, status, created_at`

// Record persists one message. The media transfer is best-effort: a
// failed transfer records the message without media rather than dropping
// it. Persistence failure is fatal, a lost message otherwise.
func (r *Recorder) Record(ctx context.Context, input RecordInput) (Message, error) {
	pgConversationID, err := dbpkg.ParseUUID(input.ConversationID)
	if err != nil {
		return Message{}, fmt.Errorf("invalid conversation id: %w", err)
	}

	msg := Message{
		ConversationID:  input.ConversationID,
		Body:            input.Body,
		Direction:       DirectionInbound,
		MessageType:     NormalizeType(input.RawType),
		ExternalID:      strings.TrimSpace(input.ExternalID),
		SenderName:      input.SenderName,
		SenderID:        input.SenderID,
		SenderAvatarURL: input.SenderAvatar,
	}
	if input.FromMe {
		msg.Direction = DirectionOutbound
	}

	if r.media != nil && HasMedia(msg.MessageType) && msg.ExternalID != "" {
		msg.MediaURL = r.media.Transfer(ctx, input.APIKey, msg.ConversationID, msg.ExternalID, msg.MessageType)
	}

	if input.Quote != nil {
		msg.ReplyToExternalID = input.Quote.ExternalID
		msg.QuotedBody = input.Quote.Body
		msg.QuotedSender = quotedSenderLabel(*input.Quote)
	}

	var (
		id        pgtype.UUID
		status    string
		createdAt pgtype.Timestamptz
	)
	err = r.db.QueryRow(ctx, insertMessageSQL,
		pgConversationID,
		dbpkg.ToText(msg.Body),
		msg.Direction,
		msg.MessageType,
		dbpkg.ToText(msg.ExternalID),
		msg.SenderName,
		msg.SenderID,
		dbpkg.ToText(msg.SenderAvatarURL),
		dbpkg.ToText(msg.MediaURL),
		dbpkg.ToText(msg.ReplyToExternalID),
		dbpkg.ToText(msg.QuotedBody),
		dbpkg.ToText(msg.QuotedSender),
	).Scan(&id, &status, &createdAt)
	if err != nil {
		r.logger.Error("persist message failed",
			slog.String("conversation_id", input.ConversationID),
			slog.String("external_id", msg.ExternalID),
			slog.Any("error", err))
		return Message{}, fmt.Errorf("persist message: %w", err)
	}

	msg.ID = dbpkg.UUIDString(id)
	msg.Status = status
	msg.CreatedAt = createdAt.Time
	return msg, nil
}

// quotedSenderLabel derives a coarse agent/customer label from the
// quote's participant marker. Deliberately a heuristic, not an identity
// lookup.
func quotedSenderLabel(q Quote) string {
	if q.FromMe {
		return QuotedSenderAgent
	}
	if strings.TrimSpace(q.Participant) == "" {
		return QuotedSenderAgent
	}
	return QuotedSenderCustomer
}

const countMessagesSQL = `SELECT count(*) FROM messages WHERE conversation_id = $1`

// CountByConversation returns the number of messages recorded for a
// conversation, used by the sentiment cadence check.
func (r *Recorder) CountByConversation(ctx context.Context, conversationID string) (int64, error) {
	pgID, err := dbpkg.ParseUUID(conversationID)
	if err != nil {
		return 0, fmt.Errorf("invalid conversation id: %w", err)
	}
	var count int64
	if err := r.db.QueryRow(ctx, countMessagesSQL, pgID).Scan(&count); err != nil {
		return 0, fmt.Errorf("count messages: %w", err)
	}
	return count, nil
}
