package automation_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/atendoapp/atendo/internal/automation"
	"github.com/atendoapp/atendo/internal/conversation"
	"github.com/atendoapp/atendo/internal/message"
)

type published struct {
	key string
	env automation.Envelope
}

type fakeBus struct {
	sent []published
	err  error
}

func (f *fakeBus) Publish(_ context.Context, routingKey string, env automation.Envelope) error {
	if f.err != nil {
		return f.err
	}
	f.sent = append(f.sent, published{key: routingKey, env: env})
	return nil
}

func (f *fakeBus) Close() error { return nil }

func (f *fakeBus) byKey(key string) []published {
	var out []published
	for _, p := range f.sent {
		if p.key == key {
			out = append(out, p)
		}
	}
	return out
}

type fakeCounter struct {
	count int64
	err   error
}

func (f *fakeCounter) CountByConversation(context.Context, string) (int64, error) {
	return f.count, f.err
}

type fakeResetter struct {
	resets []string
	err    error
}

func (f *fakeResetter) Reset(_ context.Context, conversationID string) error {
	f.resets = append(f.resets, conversationID)
	return f.err
}

func inboundText() message.Message {
	return message.Message{ID: "m-1", Direction: message.DirectionInbound, MessageType: message.TypeText}
}

func TestDispatchTranscriptionForStoredAudio(t *testing.T) {
	bus := &fakeBus{}
	d := automation.NewDispatcher(nil, bus, &fakeCounter{count: 1}, &fakeResetter{}, 20)

	msg := inboundText()
	msg.MessageType = message.TypeAudio
	msg.MediaURL = "https://cdn.example.com/conversations/c/m.ogg"
	d.Dispatch(context.Background(), msg, conversation.Conversation{ID: "conv-1"})

	jobs := bus.byKey(automation.KeyTranscription)
	require.Len(t, jobs, 1)
	job, ok := jobs[0].env.Data.(automation.TranscriptionJob)
	require.True(t, ok)
	assert.Equal(t, "m-1", job.MessageID)
	assert.Equal(t, msg.MediaURL, job.MediaURL)
}

func TestDispatchNoTranscriptionWithoutMedia(t *testing.T) {
	bus := &fakeBus{}
	d := automation.NewDispatcher(nil, bus, &fakeCounter{count: 1}, &fakeResetter{}, 20)

	msg := inboundText()
	msg.MessageType = message.TypeAudio // media transfer failed, URL empty
	d.Dispatch(context.Background(), msg, conversation.Conversation{ID: "conv-1"})
	assert.Empty(t, bus.byKey(automation.KeyTranscription))
}

func TestDispatchSentimentCadence(t *testing.T) {
	for count, want := range map[int64]int{19: 0, 20: 1, 21: 0, 40: 1, 0: 0} {
		bus := &fakeBus{}
		d := automation.NewDispatcher(nil, bus, &fakeCounter{count: count}, &fakeResetter{}, 20)
		d.Dispatch(context.Background(), inboundText(), conversation.Conversation{ID: "conv-1"})
		assert.Len(t, bus.byKey(automation.KeySentiment), want, "count %d", count)
	}
}

func TestDispatchSentimentCarriesCount(t *testing.T) {
	bus := &fakeBus{}
	d := automation.NewDispatcher(nil, bus, &fakeCounter{count: 40}, &fakeResetter{}, 20)
	d.Dispatch(context.Background(), inboundText(), conversation.Conversation{ID: "conv-1"})

	jobs := bus.byKey(automation.KeySentiment)
	require.Len(t, jobs, 1)
	job, ok := jobs[0].env.Data.(automation.SentimentJob)
	require.True(t, ok)
	assert.Equal(t, "conv-1", job.ConversationID)
	assert.EqualValues(t, 40, job.MessageCount)
}

func TestDispatchResetsFollowupOnInboundOnly(t *testing.T) {
	resetter := &fakeResetter{}
	d := automation.NewDispatcher(nil, &fakeBus{}, &fakeCounter{count: 1}, resetter, 20)

	d.Dispatch(context.Background(), inboundText(), conversation.Conversation{ID: "conv-1"})
	require.Equal(t, []string{"conv-1"}, resetter.resets)

	outbound := inboundText()
	outbound.Direction = message.DirectionOutbound
	d.Dispatch(context.Background(), outbound, conversation.Conversation{ID: "conv-1"})
	assert.Len(t, resetter.resets, 1, "outbound traffic leaves schedules alone")
}

func TestDispatchStepsAreIsolated(t *testing.T) {
	// Counter failure must not block the follow-up reset, and a broken
	// bus must not block either database step.
	resetter := &fakeResetter{}
	d := automation.NewDispatcher(nil, &fakeBus{err: errors.New("bus down")}, &fakeCounter{err: errors.New("count failed")}, resetter, 20)

	msg := inboundText()
	msg.MessageType = message.TypeAudio
	msg.MediaURL = "https://cdn.example.com/m.ogg"
	d.Dispatch(context.Background(), msg, conversation.Conversation{ID: "conv-1"})

	assert.Equal(t, []string{"conv-1"}, resetter.resets)
}
