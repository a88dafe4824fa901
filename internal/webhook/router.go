package webhook

import (
	"context"
	"log/slog"
	"strings"

	"github.com/atendoapp/atendo/internal/conversation"
	"github.com/atendoapp/atendo/internal/identity"
	"github.com/atendoapp/atendo/internal/instance"
	"github.com/atendoapp/atendo/internal/message"
)

// IdentityResolver produces the ChatIdentity for an event's sender.
type IdentityResolver interface {
	Resolve(ctx context.Context, apiKey, instanceID, ownerID string, chat identity.ChatContext) (identity.ChatIdentity, error)
}

// ConversationTracker finds or opens the active conversation.
type ConversationTracker interface {
	Track(ctx context.Context, ident identity.ChatIdentity, instanceID, ownerID, defaultQueueID string) (conversation.Conversation, error)
}

// MessageRecorder persists one inbound message.
type MessageRecorder interface {
	Record(ctx context.Context, input message.RecordInput) (message.Message, error)
}

// AckReconciler applies acknowledgement state to recorded messages.
type AckReconciler interface {
	Apply(ctx context.Context, state string, externalIDs []string)
}

// AutomationDispatcher fires the best-effort follow-on jobs.
type AutomationDispatcher interface {
	Dispatch(ctx context.Context, msg message.Message, conv conversation.Conversation)
}

// Router classifies inbound provider events and drives the pipeline.
type Router struct {
	resolver   IdentityResolver
	tracker    ConversationTracker
	recorder   MessageRecorder
	reconciler AckReconciler
	dispatcher AutomationDispatcher
	forwarder  *Forwarder
	logger     *slog.Logger
}

func NewRouter(log *slog.Logger, resolver IdentityResolver, tracker ConversationTracker, recorder MessageRecorder, reconciler AckReconciler, dispatcher AutomationDispatcher, forwarder *Forwarder) *Router {
	if log == nil {
		log = slog.Default()
	}
	return &Router{
		resolver:   resolver,
		tracker:    tracker,
		recorder:   recorder,
		reconciler: reconciler,
		dispatcher: dispatcher,
		forwarder:  forwarder,
		logger:     log.With(slog.String("service", "webhook")),
	}
}

// Process handles one raw provider event for an already-resolved
// instance. Fatal errors abort the request; best-effort steps only log.
func (r *Router) Process(ctx context.Context, inst instance.Instance, raw []byte) error {
	ev, err := Parse(raw)
	if err != nil {
		return err
	}

	if ev.IsAck() {
		state, ids := ackFields(ev)
		r.reconciler.Apply(ctx, state, ids)
		return nil
	}

	if ev.Event != EventMessages {
		r.logger.Debug("ignoring event",
			slog.String("event", ev.Event),
			slog.String("instance", inst.Name))
		return nil
	}
	if ev.Message == nil {
		return ErrBadPayload
	}
	msg := *ev.Message

	senderID := strings.TrimSpace(msg.Sender.ID)
	if senderID == "" {
		senderID = msg.ChatID
	}
	ident, err := r.resolver.Resolve(ctx, inst.APIKey, inst.ID, inst.OwnerID, identity.ChatContext{
		ChatID:     msg.ChatID,
		GroupName:  msg.GroupName,
		SenderID:   senderID,
		SenderName: msg.Sender.Name,
		IsGroup:    msg.IsGroup,
	})
	if err != nil {
		return err
	}

	conv, err := r.tracker.Track(ctx, ident, inst.ID, inst.OwnerID, inst.DefaultQueueID)
	if err != nil {
		return err
	}

	input := message.RecordInput{
		ConversationID: conv.ID,
		APIKey:         inst.APIKey,
		RawType:        msg.Type,
		Body:           msg.BodyText(),
		FromMe:         msg.FromMe,
		ExternalID:     msg.ID,
		SenderName:     ident.SenderName(),
		SenderID:       ident.SenderID(),
		SenderAvatar:   ident.SenderAvatarURL(),
	}
	if msg.QuotedMsg != nil {
		input.Quote = &message.Quote{
			ExternalID:  msg.QuotedMsg.ID,
			Body:        msg.QuotedMsg.Body,
			Participant: msg.QuotedMsg.Participant,
			FromMe:      msg.QuotedMsg.FromMe,
		}
	}
	saved, err := r.recorder.Record(ctx, input)
	if err != nil {
		return err
	}

	if r.dispatcher != nil {
		r.dispatcher.Dispatch(ctx, saved, conv)
	}

	if r.forwarder != nil && inst.ForwardURL != "" {
		if err := r.forwarder.Relay(ctx, inst.ForwardURL, raw); err != nil {
			r.logger.Warn("event relay failed",
				slog.String("instance", inst.Name),
				slog.String("forward_url", inst.ForwardURL),
				slog.Any("error", err))
		}
	}
	return nil
}

func ackFields(ev Event) (string, []string) {
	if ev.Ack == nil {
		return ev.Type, nil
	}
	state := ev.Ack.State
	if state == "" {
		state = ev.Type
	}
	return state, ev.Ack.MessageIDs
}
