package message

import (
	"context"
	"log/slog"
	"strings"

	dbpkg "github.com/atendoapp/atendo/internal/db"
)

// Reconciler applies delivery/read acknowledgements to recorded messages
// by external id.
type Reconciler struct {
	db     dbpkg.Querier
	logger *slog.Logger
}

func NewReconciler(log *slog.Logger, db dbpkg.Querier) *Reconciler {
	if log == nil {
		log = slog.Default()
	}
	return &Reconciler{
		db:     db,
		logger: log.With(slog.String("service", "ack")),
	}
}

// StatusFromAck maps the provider's acknowledgement state token to the
// internal status enum.
func StatusFromAck(state string) string {
	switch strings.ToLower(strings.TrimSpace(state)) {
	case "read", "readreceipt":
		return StatusRead
	case "delivered":
		return StatusDelivered
	default:
		return StatusSent
	}
}

const updateStatusSQL = `UPDATE messages SET status = $1 WHERE external_id = $2`

// Apply updates the status of every message matching one of the external
// ids. Per-id failures, including a message that has not arrived yet, are
// logged and skipped; the batch always completes. Acknowledgements are
// not retried reliably by providers, so failing here would only cause
// redelivery storms.
func (r *Reconciler) Apply(ctx context.Context, state string, externalIDs []string) {
	status := StatusFromAck(state)
	for _, externalID := range externalIDs {
		externalID = strings.TrimSpace(externalID)
		if externalID == "" {
			continue
		}
		tag, err := r.db.Exec(ctx, updateStatusSQL, status, externalID)
		if err != nil {
			r.logger.Warn("ack update failed",
				slog.String("external_id", externalID),
				slog.String("status", status),
				slog.Any("error", err))
			continue
		}
		if tag.RowsAffected() == 0 {
			// Normal when the ack raced ahead of the message insert.
			r.logger.Debug("ack for unknown message", slog.String("external_id", externalID))
		}
	}
}
