package filestore

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"media-caption-server/internal/platform/errors"
)

func TestPutAndResolve(t *testing.T) {
	root := t.TempDir()
	store, err := New(root, "http://example.org/files/")
	require.NoError(t, err)

	uri, size, err := store.Put("cat picture.png", strings.NewReader("png-bytes"))
	require.NoError(t, err)
	assert.Equal(t, int64(9), size)
	assert.True(t, strings.HasPrefix(uri, Scheme))
	assert.True(t, strings.HasSuffix(uri, "-cat_picture.png"))

	path, err := store.RealPath(uri)
	require.NoError(t, err)
	assert.Equal(t, root, filepath.Dir(path))
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "png-bytes", string(data))

	public, err := store.PublicURL(uri)
	require.NoError(t, err)
	assert.Equal(t, "http://example.org/files/"+strings.TrimPrefix(uri, Scheme), public)
}

func TestRealPathStaysInsideRoot(t *testing.T) {
	root := t.TempDir()
	store, err := New(root, "")
	require.NoError(t, err)

	path, err := store.RealPath("public://../../etc/passwd")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(root, "etc", "passwd"), path)
}

func TestResolveRejectsForeignSchemes(t *testing.T) {
	store, err := New(t.TempDir(), "")
	require.NoError(t, err)

	_, err = store.RealPath("private://secret.png")
	assert.True(t, errors.IsKind(err, errors.KindResource))

	_, err = store.RealPath("public://")
	assert.True(t, errors.IsKind(err, errors.KindResource))

	_, err = store.PublicURL("public://a.png")
	assert.True(t, errors.IsKind(err, errors.KindConfig))
}

func TestSanitize(t *testing.T) {
	assert.Equal(t, "upload", sanitize(""))
	assert.Equal(t, "evil.png", sanitize("..\\..\\evil.png"))
	assert.Equal(t, "a_b.jpg", sanitize("a b.jpg"))
}
