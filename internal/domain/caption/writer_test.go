package caption

import (
	"context"
	stderrors "errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"media-caption-server/internal/domain/media"
	"media-caption-server/internal/platform/errors"
)

func TestFieldWriterStoresCaption(t *testing.T) {
	saver := &MockSaver{}
	saver.On("Update", mock.Anything, mock.Anything).Return(nil)
	writer := NewFieldWriter("field_ai_caption", saver, nil)

	m := media.New("m1", imageSchema, "cat")
	written, err := writer.Write(context.Background(), m, "a dog")
	require.NoError(t, err)
	assert.True(t, written)
	assert.Equal(t, "a dog", m.Get("field_ai_caption"))
	saver.AssertNumberOfCalls(t, "Update", 1)
}

func TestFieldWriterSkipsEmptyCaption(t *testing.T) {
	saver := &MockSaver{}
	writer := NewFieldWriter("field_ai_caption", saver, nil)

	m := media.New("m1", imageSchema, "cat")
	require.NoError(t, m.Set("field_ai_caption", "previous"))

	written, err := writer.Write(context.Background(), m, "")
	require.NoError(t, err)
	assert.False(t, written)
	assert.Equal(t, "previous", m.Get("field_ai_caption"))
	saver.AssertNotCalled(t, "Update", mock.Anything, mock.Anything)
}

func TestFieldWriterMissingField(t *testing.T) {
	saver := &MockSaver{}
	logger := &recordingLogger{}
	writer := NewFieldWriter("field_ai_caption", saver, logger)

	m := media.New("m1", media.BundleSchema{Name: "image", SourceField: "field_media_image"}, "cat")
	written, err := writer.Write(context.Background(), m, "a dog")
	require.NoError(t, err)
	assert.False(t, written)
	assert.Equal(t, 1, logger.count("warn"))
	saver.AssertNotCalled(t, "Update", mock.Anything, mock.Anything)
}

func TestFieldWriterSaveFailure(t *testing.T) {
	saver := &MockSaver{}
	saver.On("Update", mock.Anything, mock.Anything).Return(stderrors.New("database is locked"))
	writer := NewFieldWriter("field_ai_caption", saver, nil)

	written, err := writer.Write(context.Background(), media.New("m1", imageSchema, "cat"), "a dog")
	assert.False(t, written)
	assert.True(t, errors.IsKind(err, errors.KindStorage))
	assert.Contains(t, err.Error(), "database is locked")
}

func TestFieldWriterOverwritesOnRepeat(t *testing.T) {
	saver := &MockSaver{}
	saver.On("Update", mock.Anything, mock.Anything).Return(nil)
	writer := NewFieldWriter("field_ai_caption", saver, nil)
	m := media.New("m1", imageSchema, "cat")

	for i := 0; i < 2; i++ {
		written, err := writer.Write(context.Background(), m, "a dog")
		require.NoError(t, err)
		assert.True(t, written)
	}
	assert.Equal(t, "a dog", m.Get("field_ai_caption"))
	saver.AssertNumberOfCalls(t, "Update", 2)
}
