package caption

import (
	"bytes"
	"context"
	"fmt"
	stdimage "image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"media-caption-server/internal/domain/filestore"
	"media-caption-server/internal/domain/media"
)

type logEntry struct {
	level   string
	message string
}

type recordingLogger struct {
	mu      sync.Mutex
	entries []logEntry
}

func (l *recordingLogger) add(level, msg string, args ...interface{}) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.entries = append(l.entries, logEntry{level: level, message: fmt.Sprintf(msg, args...)})
}

func (l *recordingLogger) DebugTag(_ string, msg string, args ...interface{}) { l.add("debug", msg, args...) }
func (l *recordingLogger) InfoTag(_ string, msg string, args ...interface{})  { l.add("info", msg, args...) }
func (l *recordingLogger) WarnTag(_ string, msg string, args ...interface{})  { l.add("warn", msg, args...) }
func (l *recordingLogger) ErrorTag(_ string, msg string, args ...interface{}) { l.add("error", msg, args...) }

func (l *recordingLogger) count(level string) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	n := 0
	for _, e := range l.entries {
		if e.level == level {
			n++
		}
	}
	return n
}

func (l *recordingLogger) contains(level, fragment string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	for _, e := range l.entries {
		if e.level == level && strings.Contains(e.message, fragment) {
			return true
		}
	}
	return false
}

type MockSaver struct {
	mock.Mock
}

func (m *MockSaver) Update(ctx context.Context, item *media.Media) error {
	return m.Called(ctx, item).Error(0)
}

type MockCaptioner struct {
	mock.Mock
}

func (m *MockCaptioner) Caption(ctx context.Context, file *media.File) string {
	return m.Called(ctx, file).String(0)
}

var imageSchema = media.BundleSchema{
	Name:        "image",
	SourceField: "field_media_image",
	Fields:      []string{"field_ai_caption"},
	Image:       true,
}

func pngBytes(t *testing.T) []byte {
	t.Helper()
	img := stdimage.NewRGBA(stdimage.Rect(0, 0, 4, 4))
	img.Set(1, 1, color.RGBA{G: 200, A: 255})
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

// newImageMedia stores cat.png in a fresh file store and attaches it.
func newImageMedia(t *testing.T, store *filestore.Store, mimeType string) (*media.Media, []byte) {
	t.Helper()
	data := pngBytes(t)
	uri, size, err := store.Put("cat.png", bytes.NewReader(data))
	require.NoError(t, err)

	m := media.New("m-"+filepath.Base(t.Name()), imageSchema, "cat.png")
	require.NoError(t, m.AttachFile(imageSchema.SourceField, &media.File{
		ID:       "f1",
		URI:      uri,
		Filename: "cat.png",
		MimeType: mimeType,
		Size:     size,
	}))
	return m, data
}

func newStore(t *testing.T, publicBaseURL string) *filestore.Store {
	t.Helper()
	store, err := filestore.New(filepath.Join(t.TempDir(), "files"), publicBaseURL)
	require.NoError(t, err)
	return store
}

func removeFile(t *testing.T, store *filestore.Store, uri string) {
	t.Helper()
	path, err := store.RealPath(uri)
	require.NoError(t, err)
	require.NoError(t, os.Remove(path))
}
