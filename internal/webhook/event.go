package webhook

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// Provider event-type vocabulary.
const (
	EventMessages = "messages"        // new or updated message content
	EventAck      = "messages_update" // delivery/read state change
	EventAckAlias = "ack"
)

// ErrBadPayload marks an unparsable or structurally incomplete event
// body. The handler maps it to a client error; no side effects happen.
var ErrBadPayload = errors.New("bad event payload")

// Sender identifies who produced a message within a chat.
type Sender struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// QuotedMsg is the reply context the provider attaches when a message
// quotes an earlier one.
type QuotedMsg struct {
	ID          string `json:"id"`
	Body        string `json:"body"`
	Participant string `json:"participant"`
	FromMe      bool   `json:"fromMe"`
}

// MessagePayload is the message-shaped branch of an event.
type MessagePayload struct {
	ID        string     `json:"id"`
	ChatID    string     `json:"chatId"`
	FromMe    bool       `json:"fromMe"`
	IsGroup   bool       `json:"isGroup"`
	GroupName string     `json:"groupName,omitempty"`
	Sender    Sender     `json:"sender"`
	Type      string     `json:"type"`
	Body      string     `json:"body,omitempty"`
	Caption   string     `json:"caption,omitempty"`
	Content   string     `json:"content,omitempty"`
	QuotedMsg *QuotedMsg `json:"quotedMsg,omitempty"`
}

// AckPayload is the acknowledgement-shaped branch of an event.
type AckPayload struct {
	State      string   `json:"state"`
	MessageIDs []string `json:"messageIds"`
}

// Event is one provider callback. Which branch is populated depends on
// the event type.
type Event struct {
	Event   string          `json:"event"`
	Type    string          `json:"type,omitempty"` // ack subtype, e.g. "ReadReceipt"
	Message *MessagePayload `json:"message,omitempty"`
	Ack     *AckPayload     `json:"ack,omitempty"`
}

// Parse decodes a raw request body into an Event.
func Parse(raw []byte) (Event, error) {
	var ev Event
	if err := json.Unmarshal(raw, &ev); err != nil {
		return Event{}, fmt.Errorf("%w: %v", ErrBadPayload, err)
	}
	if strings.TrimSpace(ev.Event) == "" {
		return Event{}, fmt.Errorf("%w: missing event type", ErrBadPayload)
	}
	return ev, nil
}

// IsAck reports whether the event is a delivery/read acknowledgement.
func (e Event) IsAck() bool {
	return e.Event == EventAck || e.Event == EventAckAlias
}

// BodyText returns the plain text carried by the message, whichever
// field the provider used for this shape.
func (m MessagePayload) BodyText() string {
	if m.Body != "" {
		return m.Body
	}
	if m.Caption != "" {
		return m.Caption
	}
	return m.Content
}
