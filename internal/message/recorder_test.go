package message_test

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/atendoapp/atendo/internal/message"
)

type fakeTransfer struct {
	url   string
	calls []string // external ids
}

func (f *fakeTransfer) Transfer(_ context.Context, _, _, externalID, _ string) string {
	f.calls = append(f.calls, externalID)
	return f.url
}

func insertCapturingDB(captured *[]any) *fakeDB {
	return &fakeDB{
		queryRowFunc: func(_ context.Context, _ string, args ...any) pgx.Row {
			*captured = args
			return &fakeRow{scanFunc: func(dest ...any) error {
				*dest[0].(*pgtype.UUID) = pgtype.UUID{Bytes: uuid.New(), Valid: true}
				*dest[1].(*string) = message.StatusSent
				*dest[2].(*pgtype.Timestamptz) = pgtype.Timestamptz{Time: time.Now(), Valid: true}
				return nil
			}}
		},
	}
}

func TestRecordTextMessage(t *testing.T) {
	var args []any
	db := insertCapturingDB(&args)
	transfer := &fakeTransfer{url: "https://cdn.example.com/x"}
	recorder := message.NewRecorder(nil, db, transfer)

	saved, err := recorder.Record(context.Background(), message.RecordInput{
		ConversationID: uuid.NewString(),
		RawType:        "chat",
		Body:           "Oi",
		ExternalID:     "abc123",
		SenderName:     "Maria",
		SenderID:       "5511999@c.us",
	})
	require.NoError(t, err)

	assert.Equal(t, message.TypeText, saved.MessageType)
	assert.Equal(t, message.DirectionInbound, saved.Direction)
	assert.Equal(t, message.StatusSent, saved.Status)
	assert.Equal(t, "Oi", saved.Body)
	assert.NotEmpty(t, saved.ID)
	assert.Empty(t, saved.MediaURL, "text messages carry no media")
	assert.Empty(t, transfer.calls, "no transfer for text")

	// Quote columns must be null, not empty strings.
	assert.False(t, args[9].(pgtype.Text).Valid)
	assert.False(t, args[10].(pgtype.Text).Valid)
	assert.False(t, args[11].(pgtype.Text).Valid)
}

func TestRecordOutboundDirection(t *testing.T) {
	var args []any
	recorder := message.NewRecorder(nil, insertCapturingDB(&args), nil)

	saved, err := recorder.Record(context.Background(), message.RecordInput{
		ConversationID: uuid.NewString(),
		RawType:        "chat",
		Body:           "hello",
		FromMe:         true,
	})
	require.NoError(t, err)
	assert.Equal(t, message.DirectionOutbound, saved.Direction)
}

func TestRecordMediaMessage(t *testing.T) {
	var args []any
	db := insertCapturingDB(&args)
	transfer := &fakeTransfer{url: "https://cdn.example.com/m.jpg"}
	recorder := message.NewRecorder(nil, db, transfer)

	saved, err := recorder.Record(context.Background(), message.RecordInput{
		ConversationID: uuid.NewString(),
		RawType:        "image",
		ExternalID:     "img-1",
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"img-1"}, transfer.calls)
	assert.Equal(t, "https://cdn.example.com/m.jpg", saved.MediaURL)
}

func TestRecordMediaSkippedWithoutExternalID(t *testing.T) {
	var args []any
	transfer := &fakeTransfer{url: "https://cdn.example.com/m.jpg"}
	recorder := message.NewRecorder(nil, insertCapturingDB(&args), transfer)

	saved, err := recorder.Record(context.Background(), message.RecordInput{
		ConversationID: uuid.NewString(),
		RawType:        "image",
	})
	require.NoError(t, err)
	assert.Empty(t, transfer.calls)
	assert.Empty(t, saved.MediaURL)
}

func TestRecordMediaFailureStillRecords(t *testing.T) {
	var args []any
	transfer := &fakeTransfer{url: ""} // transfer failed
	recorder := message.NewRecorder(nil, insertCapturingDB(&args), transfer)

	saved, err := recorder.Record(context.Background(), message.RecordInput{
		ConversationID: uuid.NewString(),
		RawType:        "audio",
		ExternalID:     "aud-1",
	})
	require.NoError(t, err, "failed media must not drop the message")
	assert.Empty(t, saved.MediaURL)
	assert.False(t, args[8].(pgtype.Text).Valid, "media url column is null")
}

func TestRecordQuoteContext(t *testing.T) {
	var args []any
	recorder := message.NewRecorder(nil, insertCapturingDB(&args), nil)

	saved, err := recorder.Record(context.Background(), message.RecordInput{
		ConversationID: uuid.NewString(),
		RawType:        "chat",
		Body:           "replying",
		Quote: &message.Quote{
			ExternalID:  "orig-1",
			Body:        "original text",
			Participant: "5511888@c.us",
		},
	})
	require.NoError(t, err)
	assert.Equal(t, "orig-1", saved.ReplyToExternalID)
	assert.Equal(t, "original text", saved.QuotedBody)
	assert.Equal(t, message.QuotedSenderCustomer, saved.QuotedSender)
}

func TestRecordQuoteFromMeLabelsAgent(t *testing.T) {
	var args []any
	recorder := message.NewRecorder(nil, insertCapturingDB(&args), nil)

	saved, err := recorder.Record(context.Background(), message.RecordInput{
		ConversationID: uuid.NewString(),
		RawType:        "chat",
		Body:           "replying",
		Quote:          &message.Quote{ExternalID: "orig-2", Body: "agent said", FromMe: true},
	})
	require.NoError(t, err)
	assert.Equal(t, message.QuotedSenderAgent, saved.QuotedSender)
}

func TestRecordPersistFailureIsFatal(t *testing.T) {
	db := &fakeDB{
		queryRowFunc: func(_ context.Context, _ string, _ ...any) pgx.Row {
			return &fakeRow{scanFunc: func(...any) error { return pgx.ErrTxClosed }}
		},
	}
	recorder := message.NewRecorder(nil, db, nil)
	_, err := recorder.Record(context.Background(), message.RecordInput{
		ConversationID: uuid.NewString(),
		RawType:        "chat",
		Body:           "lost?",
	})
	assert.Error(t, err)
}
