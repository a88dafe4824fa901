package localfs

import (
	"bytes"
	"context"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestProvider(t *testing.T) *Provider {
	t.Helper()
	p, err := New(t.TempDir(), "https://cdn.example.com/media/")
	require.NoError(t, err)
	return p
}

func TestPutAndOpenRoundTrip(t *testing.T) {
	p := newTestProvider(t)
	ctx := context.Background()

	require.NoError(t, p.Put(ctx, "conversations/conv-1/ext-1.jpg", bytes.NewReader([]byte("jpegbytes"))))

	r, err := p.Open(ctx, "conversations/conv-1/ext-1.jpg")
	require.NoError(t, err)
	defer r.Close()
	data, err := io.ReadAll(r)
	require.NoError(t, err)
	assert.Equal(t, []byte("jpegbytes"), data)
}

func TestPutCreatesParentDirs(t *testing.T) {
	root := t.TempDir()
	p, err := New(root, "https://cdn.example.com")
	require.NoError(t, err)

	require.NoError(t, p.Put(context.Background(), "a/b/c/d.bin", bytes.NewReader([]byte("x"))))
	_, err = os.Stat(filepath.Join(root, "a", "b", "c", "d.bin"))
	assert.NoError(t, err)
}

func TestDeleteMissingObjectIsNoop(t *testing.T) {
	p := newTestProvider(t)
	assert.NoError(t, p.Delete(context.Background(), "never/written.jpg"))
}

func TestDeleteRemovesObject(t *testing.T) {
	p := newTestProvider(t)
	ctx := context.Background()
	require.NoError(t, p.Put(ctx, "x.jpg", bytes.NewReader([]byte("x"))))
	require.NoError(t, p.Delete(ctx, "x.jpg"))
	_, err := p.Open(ctx, "x.jpg")
	assert.Error(t, err)
}

func TestTraversalKeysStayUnderRoot(t *testing.T) {
	root := t.TempDir()
	p, err := New(root, "https://cdn.example.com")
	require.NoError(t, err)

	require.NoError(t, p.Put(context.Background(), "../../outside.txt", bytes.NewReader([]byte("x"))))
	_, err = os.Stat(filepath.Join(root, "outside.txt"))
	assert.NoError(t, err, "dot-dot segments collapse inside the root")
	_, err = os.Stat(filepath.Join(filepath.Dir(root), "outside.txt"))
	assert.True(t, os.IsNotExist(err))
}

func TestPublicURLJoinsCleanly(t *testing.T) {
	p := newTestProvider(t)
	assert.Equal(t, "https://cdn.example.com/media/avatars/contacts/c-1.jpg", p.PublicURL("/avatars/contacts/c-1.jpg"))
	assert.Equal(t, "https://cdn.example.com/media/x.jpg", p.PublicURL("x.jpg"))
}
