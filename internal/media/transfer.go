// Package media moves message attachments from the provider into blob
// storage out-of-band of the message insert.
package media

import (
	"bytes"
	"context"
	"log/slog"
	"path"

	"github.com/atendoapp/atendo/internal/storage"
)

// Downloader is the provider capability for inline media retrieval.
type Downloader interface {
	DownloadMedia(ctx context.Context, apiKey, messageID string) ([]byte, error)
}

type fileKind struct {
	ext  string
	mime string
}

// kindTable keys file extension and content type off the normalized
// message type. Document as pdf is a simplification the provider's
// mimetype field would refine.
var kindTable = map[string]fileKind{
	"image":    {".jpg", "image/jpeg"},
	"audio":    {".ogg", "audio/ogg"},
	"video":    {".mp4", "video/mp4"},
	"document": {".pdf", "application/pdf"},
}

// Transfer downloads provider media and persists it to blob storage.
type Transfer struct {
	provider Downloader
	storage  storage.Provider
	logger   *slog.Logger
}

func NewTransfer(log *slog.Logger, provider Downloader, store storage.Provider) *Transfer {
	if log == nil {
		log = slog.Default()
	}
	return &Transfer{
		provider: provider,
		storage:  store,
		logger:   log.With(slog.String("service", "media")),
	}
}

// Transfer fetches the attachment for externalID and stores it under a
// conversation-scoped key, returning the public URL. Every failure
// returns "" — the caller records the message without media.
func (t *Transfer) Transfer(ctx context.Context, apiKey, conversationID, externalID, messageType string) string {
	kind, ok := kindTable[messageType]
	if !ok {
		return ""
	}
	data, err := t.provider.DownloadMedia(ctx, apiKey, externalID)
	if err != nil {
		t.logger.Warn("media download failed",
			slog.String("external_id", externalID),
			slog.Any("error", err))
		return ""
	}
	if len(data) == 0 {
		return ""
	}

	key := path.Join("conversations", conversationID, externalID+kind.ext)
	if err := t.storage.Put(ctx, key, bytes.NewReader(data)); err != nil {
		t.logger.Warn("media upload failed",
			slog.String("external_id", externalID),
			slog.String("key", key),
			slog.Any("error", err))
		return ""
	}
	return t.storage.PublicURL(key)
}

// ContentType returns the content type recorded for a normalized message
// type, or application/octet-stream.
func ContentType(messageType string) string {
	if kind, ok := kindTable[messageType]; ok {
		return kind.mime
	}
	return "application/octet-stream"
}
