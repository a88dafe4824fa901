package automation

import (
	"context"
	"log/slog"

	"github.com/atendoapp/atendo/internal/conversation"
	"github.com/atendoapp/atendo/internal/message"
)

// MessageCounter counts messages in a conversation for the sentiment
// cadence check.
type MessageCounter interface {
	CountByConversation(ctx context.Context, conversationID string) (int64, error)
}

// FollowupResetter puts a conversation's active schedule back on step one.
type FollowupResetter interface {
	Reset(ctx context.Context, conversationID string) error
}

// Dispatcher fires the best-effort follow-on jobs after a message is
// recorded. No failure here ever fails the request.
type Dispatcher struct {
	bus            Publisher
	counter        MessageCounter
	followups      FollowupResetter
	sentimentEvery int64
	logger         *slog.Logger
}

func NewDispatcher(log *slog.Logger, bus Publisher, counter MessageCounter, followups FollowupResetter, sentimentEvery int) *Dispatcher {
	if log == nil {
		log = slog.Default()
	}
	if sentimentEvery <= 0 {
		sentimentEvery = 20
	}
	return &Dispatcher{
		bus:            bus,
		counter:        counter,
		followups:      followups,
		sentimentEvery: int64(sentimentEvery),
		logger:         log.With(slog.String("service", "automation")),
	}
}

// Dispatch runs the three follow-on actions. Each is isolated: one
// failing never prevents the others.
func (d *Dispatcher) Dispatch(ctx context.Context, msg message.Message, conv conversation.Conversation) {
	d.dispatchTranscription(ctx, msg)
	d.dispatchSentiment(ctx, conv)
	d.resetFollowup(ctx, msg, conv)
}

func (d *Dispatcher) dispatchTranscription(ctx context.Context, msg message.Message) {
	if msg.MessageType != message.TypeAudio || msg.MediaURL == "" {
		return
	}
	env := Envelope{
		Meta: Meta{JobType: KeyTranscription},
		Data: TranscriptionJob{MessageID: msg.ID, MediaURL: msg.MediaURL},
	}
	if err := d.bus.Publish(ctx, KeyTranscription, env); err != nil {
		d.logger.Warn("transcription dispatch failed",
			slog.String("message_id", msg.ID), slog.Any("error", err))
	}
}

// dispatchSentiment uses a post-insert count with a modulo check. Under
// concurrent inserts into the same conversation this can double-fire or
// skip a boundary; the trigger is a cadence, not an exact counter.
func (d *Dispatcher) dispatchSentiment(ctx context.Context, conv conversation.Conversation) {
	count, err := d.counter.CountByConversation(ctx, conv.ID)
	if err != nil {
		d.logger.Warn("sentiment count failed",
			slog.String("conversation_id", conv.ID), slog.Any("error", err))
		return
	}
	if count <= 0 || count%d.sentimentEvery != 0 {
		return
	}
	env := Envelope{
		Meta: Meta{JobType: KeySentiment},
		Data: SentimentJob{ConversationID: conv.ID, MessageCount: count},
	}
	if err := d.bus.Publish(ctx, KeySentiment, env); err != nil {
		d.logger.Warn("sentiment dispatch failed",
			slog.String("conversation_id", conv.ID), slog.Any("error", err))
	}
}

func (d *Dispatcher) resetFollowup(ctx context.Context, msg message.Message, conv conversation.Conversation) {
	if msg.Direction != message.DirectionInbound || d.followups == nil {
		return
	}
	if err := d.followups.Reset(ctx, conv.ID); err != nil {
		d.logger.Warn("follow-up reset failed",
			slog.String("conversation_id", conv.ID), slog.Any("error", err))
	}
}
