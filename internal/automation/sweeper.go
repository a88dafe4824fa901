package automation

import (
	"context"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"
)

// FollowupSource lists due schedules and advances fired ones.
type FollowupSource interface {
	Due(ctx context.Context, now time.Time) ([]DueSchedule, error)
	Advance(ctx context.Context, sched DueSchedule) error
}

// Sweeper periodically hands due follow-up schedules to the external
// follow-up executor over the bus.
type Sweeper struct {
	bus       Publisher
	followups FollowupSource
	schedule  string
	cron      *cron.Cron
	logger    *slog.Logger
}

func NewSweeper(log *slog.Logger, bus Publisher, followups FollowupSource, schedule string) *Sweeper {
	if log == nil {
		log = slog.Default()
	}
	if schedule == "" {
		schedule = "@every 1m"
	}
	return &Sweeper{
		bus:       bus,
		followups: followups,
		schedule:  schedule,
		cron:      cron.New(),
		logger:    log.With(slog.String("service", "followup_sweeper")),
	}
}

// Start registers the sweep job and starts the cron runner.
func (s *Sweeper) Start() error {
	_, err := s.cron.AddFunc(s.schedule, func() {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		s.Sweep(ctx)
	})
	if err != nil {
		return err
	}
	s.cron.Start()
	return nil
}

// Stop halts the cron runner and waits for a running sweep.
func (s *Sweeper) Stop() {
	<-s.cron.Stop().Done()
}

// Sweep publishes a follow-up job for every due schedule and advances
// each one. Per-schedule failures are logged and skipped.
func (s *Sweeper) Sweep(ctx context.Context) {
	due, err := s.followups.Due(ctx, time.Now())
	if err != nil {
		s.logger.Warn("due scan failed", slog.Any("error", err))
		return
	}
	for _, sched := range due {
		env := Envelope{
			Meta: Meta{JobType: KeyFollowup},
			Data: FollowupJob{
				ScheduleID:     sched.ID,
				ConversationID: sched.ConversationID,
				Step:           sched.Step,
			},
		}
		if err := s.bus.Publish(ctx, KeyFollowup, env); err != nil {
			s.logger.Warn("follow-up dispatch failed",
				slog.String("schedule_id", sched.ID), slog.Any("error", err))
			continue
		}
		if err := s.followups.Advance(ctx, sched); err != nil {
			s.logger.Warn("follow-up advance failed",
				slog.String("schedule_id", sched.ID), slog.Any("error", err))
		}
	}
}
