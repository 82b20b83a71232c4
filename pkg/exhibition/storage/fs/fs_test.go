package fs

import (
	"bytes"
	"context"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tendant/simple-exhibition/pkg/exhibition"
)

var _ exhibition.BlobStore = (*Backend)(nil)

func TestFSBackend_BasicOps(t *testing.T) {
	tmp := t.TempDir()
	backend, err := New(Config{BaseDir: tmp})
	require.NoError(t, err)

	ctx := context.Background()
	key := "images/ab/cdef.png"

	data := []byte("hello fs")
	require.NoError(t, backend.Upload(ctx, bytes.NewReader(data), exhibition.UploadParams{ObjectKey: key, MimeType: "image/png"}))

	ok, err := backend.Exists(ctx, key)
	require.NoError(t, err)
	assert.True(t, ok)

	rc, err := backend.Download(ctx, key)
	require.NoError(t, err)
	got, _ := io.ReadAll(rc)
	_ = rc.Close()
	assert.Equal(t, string(data), string(got))

	require.NoError(t, backend.Delete(ctx, key))
	_, err = os.Stat(filepath.Join(tmp, key))
	assert.True(t, os.IsNotExist(err))

	// empty shard directories are pruned, the base directory stays
	_, err = os.Stat(filepath.Join(tmp, "images"))
	assert.True(t, os.IsNotExist(err))
	_, err = os.Stat(tmp)
	assert.NoError(t, err)
}

func TestFSBackend_MissingKey(t *testing.T) {
	backend, err := New(Config{BaseDir: t.TempDir()})
	require.NoError(t, err)
	ctx := context.Background()

	ok, err := backend.Exists(ctx, "a/b.png")
	require.NoError(t, err)
	assert.False(t, ok)

	_, err = backend.Download(ctx, "a/b.png")
	assert.ErrorIs(t, err, exhibition.ErrBlobNotFound)

	assert.ErrorIs(t, backend.Delete(ctx, "a/b.png"), exhibition.ErrBlobNotFound)
}

func TestFSBackend_RejectsEscapingKeys(t *testing.T) {
	backend, err := New(Config{BaseDir: t.TempDir()})
	require.NoError(t, err)
	ctx := context.Background()

	err = backend.Upload(ctx, bytes.NewReader([]byte("x")), exhibition.UploadParams{ObjectKey: "../outside.png"})
	assert.Error(t, err)

	_, err = backend.Download(ctx, "../../etc/passwd")
	assert.Error(t, err)
	assert.NotErrorIs(t, err, exhibition.ErrBlobNotFound)
}

func TestFSBackend_RequiresBaseDir(t *testing.T) {
	_, err := New(Config{})
	assert.Error(t, err)
}
