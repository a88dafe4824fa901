package media_test

import (
	"context"
	"errors"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/atendoapp/atendo/internal/media"
)

type fakeDownloader struct {
	data []byte
	err  error
}

func (f *fakeDownloader) DownloadMedia(context.Context, string, string) ([]byte, error) {
	return f.data, f.err
}

type fakeStorage struct {
	puts   map[string][]byte
	putErr error
}

func newFakeStorage() *fakeStorage {
	return &fakeStorage{puts: map[string][]byte{}}
}

func (f *fakeStorage) Put(_ context.Context, key string, reader io.Reader) error {
	if f.putErr != nil {
		return f.putErr
	}
	data, _ := io.ReadAll(reader)
	f.puts[key] = data
	return nil
}

func (f *fakeStorage) Open(context.Context, string) (io.ReadCloser, error) {
	return nil, errors.New("not implemented")
}

func (f *fakeStorage) Delete(context.Context, string) error { return nil }

func (f *fakeStorage) PublicURL(key string) string { return "https://cdn.example.com/" + key }

func TestTransferStoresUnderConversationKey(t *testing.T) {
	store := newFakeStorage()
	tr := media.NewTransfer(nil, &fakeDownloader{data: []byte("oggbytes")}, store)

	url := tr.Transfer(context.Background(), "key", "conv-1", "ext-1", "audio")
	assert.Equal(t, "https://cdn.example.com/conversations/conv-1/ext-1.ogg", url)
	require.Contains(t, store.puts, "conversations/conv-1/ext-1.ogg")
	assert.Equal(t, []byte("oggbytes"), store.puts["conversations/conv-1/ext-1.ogg"])
}

func TestTransferExtensionPerType(t *testing.T) {
	cases := map[string]string{
		"image":    ".jpg",
		"audio":    ".ogg",
		"video":    ".mp4",
		"document": ".pdf",
	}
	for messageType, ext := range cases {
		store := newFakeStorage()
		tr := media.NewTransfer(nil, &fakeDownloader{data: []byte("x")}, store)
		url := tr.Transfer(context.Background(), "key", "c", "m", messageType)
		assert.Equal(t, "https://cdn.example.com/conversations/c/m"+ext, url, messageType)
	}
}

func TestTransferRejectsNonMediaType(t *testing.T) {
	tr := media.NewTransfer(nil, &fakeDownloader{data: []byte("x")}, newFakeStorage())
	assert.Empty(t, tr.Transfer(context.Background(), "key", "c", "m", "text"))
}

func TestTransferDownloadFailureReturnsEmpty(t *testing.T) {
	tr := media.NewTransfer(nil, &fakeDownloader{err: errors.New("provider down")}, newFakeStorage())
	assert.Empty(t, tr.Transfer(context.Background(), "key", "c", "m", "image"))
}

func TestTransferEmptyPayloadReturnsEmpty(t *testing.T) {
	tr := media.NewTransfer(nil, &fakeDownloader{}, newFakeStorage())
	assert.Empty(t, tr.Transfer(context.Background(), "key", "c", "m", "image"))
}

func TestTransferUploadFailureReturnsEmpty(t *testing.T) {
	store := newFakeStorage()
	store.putErr = errors.New("blob store down")
	tr := media.NewTransfer(nil, &fakeDownloader{data: []byte("x")}, store)
	assert.Empty(t, tr.Transfer(context.Background(), "key", "c", "m", "image"))
}

func TestContentType(t *testing.T) {
	assert.Equal(t, "audio/ogg", media.ContentType("audio"))
	assert.Equal(t, "application/octet-stream", media.ContentType("reaction"))
}
