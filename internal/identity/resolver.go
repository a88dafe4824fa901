package identity

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"path"
	"strings"

	"github.com/jackc/pgx/v5/pgtype"

	dbpkg "github.com/atendoapp/atendo/internal/db"
	"github.com/atendoapp/atendo/internal/storage"
	"github.com/atendoapp/atendo/internal/wapi"
)

// Name used for groups the provider reports without one.
const groupNameFallback = "Group"

// ChatContext is the slice of an inbound event the resolver needs.
type ChatContext struct {
	ChatID     string
	GroupName  string
	SenderID   string
	SenderName string
	IsGroup    bool
}

// PhotoClient is the provider capability the resolver uses for the
// best-effort profile photo sync.
type PhotoClient interface {
	GetChatDetails(ctx context.Context, apiKey, chatID string) (wapi.ChatDetails, error)
	FetchImage(ctx context.Context, imageURL string) ([]byte, error)
}

// Resolver maps a provider chat/sender identifier to a persisted
// ChatIdentity, creating rows on first sight.
type Resolver struct {
	db      dbpkg.Querier
	photos  PhotoClient
	storage storage.Provider
	logger  *slog.Logger
}

func NewResolver(log *slog.Logger, db dbpkg.Querier, photos PhotoClient, store storage.Provider) *Resolver {
	if log == nil {
		log = slog.Default()
	}
	return &Resolver{
		db:      db,
		photos:  photos,
		storage: store,
		logger:  log.With(slog.String("service", "identity")),
	}
}

// Resolve returns the identity for the event's sender, upserting contact,
// group and member rows as needed. The profile photo sync is best-effort;
// resolution succeeds with whatever photo is already on record.
func (r *Resolver) Resolve(ctx context.Context, apiKey, instanceID, ownerID string, chat ChatContext) (ChatIdentity, error) {
	if chat.IsGroup {
		return r.resolveGroup(ctx, apiKey, instanceID, ownerID, chat)
	}
	return r.resolveContact(ctx, apiKey, instanceID, ownerID, chat)
}

const upsertContactSQL = `
INSERT INTO contacts (chat_id, name, instance_id, owner_id)
VALUES ($1, $2, $3, $4)
ON CONFLICT (chat_id) DO UPDATE SET
    name        = CASE WHEN contacts.name = '' THEN EXCLUDED.name ELSE contacts.name END,
    instance_id = COALESCE(contacts.instance_id, EXCLUDED.instance_id),
    owner_id    = COALESCE(contacts.owner_id, EXCLUDED.owner_id),
    updated_at  = now()
RETURNING id, chat_id, name, avatar_url, instance_id, owner_id`

func (r *Resolver) resolveContact(ctx context.Context, apiKey, instanceID, ownerID string, chat ChatContext) (ChatIdentity, error) {
	chatID := strings.TrimSpace(chat.ChatID)
	if chatID == "" {
		return ChatIdentity{}, ErrMissingChatID
	}
	pgInstanceID, err := dbpkg.ParseOptionalUUID(instanceID)
	if err != nil {
		return ChatIdentity{}, fmt.Errorf("invalid instance id: %w", err)
	}
	pgOwnerID, err := dbpkg.ParseOptionalUUID(ownerID)
	if err != nil {
		return ChatIdentity{}, fmt.Errorf("invalid owner id: %w", err)
	}

	var (
		id, rowInstance, rowOwner pgtype.UUID
		rowChatID, name           string
		avatarURL                 pgtype.Text
	)
	err = r.db.QueryRow(ctx, upsertContactSQL, chatID, chat.SenderName, pgInstanceID, pgOwnerID).
		Scan(&id, &rowChatID, &name, &avatarURL, &rowInstance, &rowOwner)
	if err != nil {
		return ChatIdentity{}, fmt.Errorf("upsert contact %s: %w", chatID, err)
	}

	contact := &Contact{
		ID:         dbpkg.UUIDString(id),
		ChatID:     rowChatID,
		Name:       name,
		AvatarURL:  dbpkg.TextString(avatarURL),
		InstanceID: dbpkg.UUIDString(rowInstance),
		OwnerID:    dbpkg.UUIDString(rowOwner),
	}
	r.syncPhoto(ctx, apiKey, chatID, "contacts", contact.ID, &contact.AvatarURL)
	return ChatIdentity{Contact: contact}, nil
}

const upsertGroupSQL = `
INSERT INTO groups (group_id, name, instance_id, owner_id)
VALUES ($1, $2, $3, $4)
ON CONFLICT (group_id) DO UPDATE SET
    name        = CASE WHEN groups.name = '' THEN EXCLUDED.name ELSE groups.name END,
    instance_id = COALESCE(groups.instance_id, EXCLUDED.instance_id),
    owner_id    = COALESCE(groups.owner_id, EXCLUDED.owner_id),
    updated_at  = now()
RETURNING id, group_id, name, avatar_url, instance_id, owner_id`

const upsertMemberSQL = `
INSERT INTO group_members (group_ref, member_id, name, owner_id)
VALUES ($1, $2, $3, $4)
ON CONFLICT (group_ref, member_id) DO UPDATE SET
    name       = CASE WHEN group_members.name = '' THEN EXCLUDED.name ELSE group_members.name END,
    updated_at = now()
RETURNING id, member_id, name, avatar_url`

func (r *Resolver) resolveGroup(ctx context.Context, apiKey, instanceID, ownerID string, chat ChatContext) (ChatIdentity, error) {
	groupID := strings.TrimSpace(chat.ChatID)
	if groupID == "" {
		return ChatIdentity{}, ErrMissingGroupID
	}
	pgInstanceID, err := dbpkg.ParseOptionalUUID(instanceID)
	if err != nil {
		return ChatIdentity{}, fmt.Errorf("invalid instance id: %w", err)
	}
	pgOwnerID, err := dbpkg.ParseOptionalUUID(ownerID)
	if err != nil {
		return ChatIdentity{}, fmt.Errorf("invalid owner id: %w", err)
	}

	groupName := strings.TrimSpace(chat.GroupName)
	if groupName == "" {
		groupName = groupNameFallback
	}

	var (
		gid, rowInstance, rowOwner pgtype.UUID
		rowGroupID, gname          string
		groupAvatar                pgtype.Text
	)
	err = r.db.QueryRow(ctx, upsertGroupSQL, groupID, groupName, pgInstanceID, pgOwnerID).
		Scan(&gid, &rowGroupID, &gname, &groupAvatar, &rowInstance, &rowOwner)
	if err != nil {
		return ChatIdentity{}, fmt.Errorf("upsert group %s: %w", groupID, err)
	}
	group := &Group{
		ID:         dbpkg.UUIDString(gid),
		GroupID:    rowGroupID,
		Name:       gname,
		AvatarURL:  dbpkg.TextString(groupAvatar),
		InstanceID: dbpkg.UUIDString(rowInstance),
		OwnerID:    dbpkg.UUIDString(rowOwner),
	}

	var (
		mid                pgtype.UUID
		rowMemberID, mname string
		memberAvatar       pgtype.Text
	)
	err = r.db.QueryRow(ctx, upsertMemberSQL, gid, strings.TrimSpace(chat.SenderID), chat.SenderName, pgOwnerID).
		Scan(&mid, &rowMemberID, &mname, &memberAvatar)
	if err != nil {
		return ChatIdentity{}, fmt.Errorf("upsert group member %s: %w", chat.SenderID, err)
	}
	member := &GroupMember{
		ID:        dbpkg.UUIDString(mid),
		GroupRef:  group.ID,
		MemberID:  rowMemberID,
		Name:      mname,
		AvatarURL: dbpkg.TextString(memberAvatar),
		OwnerID:   ownerID,
	}

	// One photo round trip per invocation: in group chats it goes to the
	// sender, so the member row accumulates a photo over time.
	r.syncPhoto(ctx, apiKey, member.MemberID, "members", member.ID, &member.AvatarURL)
	return ChatIdentity{Group: group, Member: member}, nil
}

// syncPhoto refreshes the stored profile photo for one entity. Every
// failure is logged and swallowed; the current avatarURL stands.
func (r *Resolver) syncPhoto(ctx context.Context, apiKey, providerID, kind, entityID string, avatarURL *string) {
	if r.photos == nil || r.storage == nil || strings.TrimSpace(providerID) == "" {
		return
	}
	details, err := r.photos.GetChatDetails(ctx, apiKey, providerID)
	if err != nil {
		r.logger.Warn("photo lookup failed", slog.String("provider_id", providerID), slog.Any("error", err))
		return
	}
	if strings.TrimSpace(details.PhotoURL) == "" {
		return
	}
	img, err := r.photos.FetchImage(ctx, details.PhotoURL)
	if err != nil {
		r.logger.Warn("photo fetch failed", slog.String("provider_id", providerID), slog.Any("error", err))
		return
	}
	key := path.Join("avatars", kind, entityID+".jpg")
	if err := r.storage.Put(ctx, key, bytes.NewReader(img)); err != nil {
		r.logger.Warn("photo upload failed", slog.String("provider_id", providerID), slog.Any("error", err))
		return
	}
	publicURL := r.storage.PublicURL(key)

	table := "contacts"
	if kind == "members" {
		table = "group_members"
	}
	pgID, err := dbpkg.ParseUUID(entityID)
	if err != nil {
		return
	}
	sql := fmt.Sprintf("UPDATE %s SET avatar_url = $1, updated_at = now() WHERE id = $2", table)
	if _, err := r.db.Exec(ctx, sql, publicURL, pgID); err != nil {
		r.logger.Warn("photo upsert failed", slog.String("entity_id", entityID), slog.Any("error", err))
		return
	}
	*avatarURL = publicURL
}
