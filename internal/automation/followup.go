package automation

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5/pgtype"

	dbpkg "github.com/atendoapp/atendo/internal/db"
)

// FollowupStore manages the per-conversation auto-follow-up schedules.
type FollowupStore struct {
	db     dbpkg.Querier
	logger *slog.Logger
}

func NewFollowupStore(log *slog.Logger, db dbpkg.Querier) *FollowupStore {
	if log == nil {
		log = slog.Default()
	}
	return &FollowupStore{
		db:     db,
		logger: log.With(slog.String("service", "followup")),
	}
}

const resetFollowupSQL = `
UPDATE followup_schedules SET
    current_step = 1,
    next_fire_at = now() + make_interval(mins => delays_minutes[1]),
    updated_at   = now()
WHERE conversation_id = $1 AND active`

// Reset puts an active schedule back on its first step, recomputing the
// next fire time from the earliest configured delay. A conversation
// without an active schedule is a no-op.
func (s *FollowupStore) Reset(ctx context.Context, conversationID string) error {
	pgID, err := dbpkg.ParseUUID(conversationID)
	if err != nil {
		return fmt.Errorf("invalid conversation id: %w", err)
	}
	if _, err := s.db.Exec(ctx, resetFollowupSQL, pgID); err != nil {
		return fmt.Errorf("reset follow-up: %w", err)
	}
	return nil
}

// DueSchedule is one schedule whose next step came due.
type DueSchedule struct {
	ID             string
	ConversationID string
	Step           int
	TotalSteps     int
}

const dueSchedulesSQL = `
SELECT id, conversation_id, current_step, cardinality(delays_minutes)
FROM followup_schedules
WHERE active AND next_fire_at IS NOT NULL AND next_fire_at <= $1`

// Due lists schedules whose next_fire_at has passed.
func (s *FollowupStore) Due(ctx context.Context, now time.Time) ([]DueSchedule, error) {
	rows, err := s.db.Query(ctx, dueSchedulesSQL, pgtype.Timestamptz{Time: now, Valid: true})
	if err != nil {
		return nil, fmt.Errorf("list due follow-ups: %w", err)
	}
	defer rows.Close()

	var due []DueSchedule
	for rows.Next() {
		var (
			id, conversationID pgtype.UUID
			step, total        int32
		)
		if err := rows.Scan(&id, &conversationID, &step, &total); err != nil {
			return nil, fmt.Errorf("scan due follow-up: %w", err)
		}
		due = append(due, DueSchedule{
			ID:             dbpkg.UUIDString(id),
			ConversationID: dbpkg.UUIDString(conversationID),
			Step:           int(step),
			TotalSteps:     int(total),
		})
	}
	return due, rows.Err()
}

const advanceFollowupSQL = `
UPDATE followup_schedules SET
    current_step = current_step + 1,
    next_fire_at = now() + make_interval(mins => delays_minutes[current_step + 1]),
    updated_at   = now()
WHERE id = $1 AND active`

const deactivateFollowupSQL = `
UPDATE followup_schedules SET
    active       = false,
    next_fire_at = NULL,
    updated_at   = now()
WHERE id = $1`

// Advance moves a fired schedule to its next step, or deactivates it
// after the last one.
func (s *FollowupStore) Advance(ctx context.Context, sched DueSchedule) error {
	pgID, err := dbpkg.ParseUUID(sched.ID)
	if err != nil {
		return fmt.Errorf("invalid schedule id: %w", err)
	}
	sql := advanceFollowupSQL
	if sched.Step >= sched.TotalSteps {
		sql = deactivateFollowupSQL
	}
	if _, err := s.db.Exec(ctx, sql, pgID); err != nil {
		return fmt.Errorf("advance follow-up: %w", err)
	}
	return nil
}
