package message

import "time"

// Message directions.
const (
	DirectionInbound  = "inbound"
	DirectionOutbound = "outbound"
)

// Delivery statuses, in lifecycle order.
const (
	StatusSent      = "sent"
	StatusDelivered = "delivered"
	StatusRead      = "read"
)

// Internal message types.
const (
	TypeText     = "text"
	TypeImage    = "image"
	TypeAudio    = "audio"
	TypeVideo    = "video"
	TypeDocument = "document"
	TypeSticker  = "sticker"
	TypeLocation = "location"
	TypeContact  = "contact"
	TypeReaction = "reaction"
)

// Quoted-sender labels. A heuristic from the quote's participant marker,
// not a real identity lookup.
const (
	QuotedSenderAgent    = "agent"
	QuotedSenderCustomer = "customer"
)

// typeTable maps the provider's raw message-type vocabulary to the
// internal enum. Unrecognized tokens fall back to text.
var typeTable = map[string]string{
	"chat":         TypeText,
	"text":         TypeText,
	"extended":     TypeText,
	"image":        TypeImage,
	"sticker":      TypeSticker,
	"ptt":          TypeAudio,
	"audio":        TypeAudio,
	"video":        TypeVideo,
	"document":     TypeDocument,
	"application":  TypeDocument,
	"location":     TypeLocation,
	"vcard":        TypeContact,
	"contact_card": TypeContact,
	"reaction":     TypeReaction,
}

// NormalizeType maps a raw provider token to the internal message type.
func NormalizeType(raw string) string {
	if t, ok := typeTable[raw]; ok {
		return t
	}
	return TypeText
}

// HasMedia reports whether the internal type carries a downloadable
// attachment.
func HasMedia(messageType string) bool {
	switch messageType {
	case TypeImage, TypeAudio, TypeVideo, TypeDocument:
		return true
	}
	return false
}

// Quote is the reply context carried by a message that quotes another.
type Quote struct {
	ExternalID  string
	Body        string
	Participant string
	FromMe      bool
}

// Message is one persisted provider message. Only Status ever changes
// after insert.
type Message struct {
	ID                string
	ConversationID    string
	Body              string
	Direction         string
	MessageType       string
	ExternalID        string
	SenderName        string
	SenderID          string
	SenderAvatarURL   string
	MediaURL          string
	ReplyToExternalID string
	QuotedBody        string
	QuotedSender      string
	Status            string
	CreatedAt         time.Time
}

// RecordInput is everything the recorder needs for one inbound message.
type RecordInput struct {
	ConversationID string
	APIKey         string
	RawType        string
	Body           string
	FromMe         bool
	ExternalID     string
	SenderName     string
	SenderID       string
	SenderAvatar   string
	Quote          *Quote
}
