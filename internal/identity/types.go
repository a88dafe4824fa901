package identity

import "errors"

// Contact is a 1:1 chat participant.
type Contact struct {
	ID         string
	ChatID     string
	Name       string
	AvatarURL  string
	InstanceID string
	OwnerID    string
}

// Group is a group chat.
type Group struct {
	ID         string
	GroupID    string
	Name       string
	AvatarURL  string
	InstanceID string
	OwnerID    string
}

// GroupMember is a participant within a group.
type GroupMember struct {
	ID        string
	GroupRef  string
	MemberID  string
	Name      string
	AvatarURL string
	OwnerID   string
}

// ChatIdentity is the resolved sender of an inbound event: either a
// contact (1:1 chat) or a group plus the member who sent the message.
// It is produced once by the Resolver and threaded through the rest of
// the pipeline.
type ChatIdentity struct {
	Contact *Contact
	Group   *Group
	Member  *GroupMember
}

// IsGroup reports whether the identity is a group chat.
func (i ChatIdentity) IsGroup() bool { return i.Group != nil }

// SenderName is the display name of whoever sent the message.
func (i ChatIdentity) SenderName() string {
	if i.Member != nil {
		return i.Member.Name
	}
	if i.Contact != nil {
		return i.Contact.Name
	}
	return ""
}

// SenderID is the provider identifier of whoever sent the message.
func (i ChatIdentity) SenderID() string {
	if i.Member != nil {
		return i.Member.MemberID
	}
	if i.Contact != nil {
		return i.Contact.ChatID
	}
	return ""
}

// SenderAvatarURL is the current photo URL on record for the sender.
func (i ChatIdentity) SenderAvatarURL() string {
	if i.Member != nil {
		return i.Member.AvatarURL
	}
	if i.Contact != nil {
		return i.Contact.AvatarURL
	}
	return ""
}

// ConversationRef returns the column values the conversation tracker
// keys on: exactly one of contactID or groupRef is non-empty.
func (i ChatIdentity) ConversationRef() (contactID, groupRef string) {
	if i.Group != nil {
		return "", i.Group.ID
	}
	if i.Contact != nil {
		return i.Contact.ID, ""
	}
	return "", ""
}

var (
	// ErrMissingChatID means a 1:1 event carried no chat identifier.
	ErrMissingChatID = errors.New("missing chat identifier")
	// ErrMissingGroupID means a group event carried no group identifier.
	ErrMissingGroupID = errors.New("missing group identifier")
)
