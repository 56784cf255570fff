package media

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"media-caption-server/internal/platform/errors"
)

var imageSchema = BundleSchema{
	Name:        "image",
	SourceField: "field_media_image",
	Fields:      []string{"field_ai_caption"},
	Image:       true,
}

func TestMediaHandle(t *testing.T) {
	m := New("m1", imageSchema, "cat")
	var entity Entity = m

	assert.Equal(t, EntityType, entity.EntityTypeID())
	assert.Equal(t, "m1", entity.Identifier())
	assert.Equal(t, "image", entity.Bundle())
}

func TestMediaFields(t *testing.T) {
	m := New("m1", imageSchema, "cat")

	assert.True(t, m.HasField("field_ai_caption"))
	assert.True(t, m.HasField("field_media_image"))
	assert.False(t, m.HasField("field_tags"))
	assert.False(t, m.HasField(""))

	require.NoError(t, m.Set("field_ai_caption", "a cat"))
	assert.Equal(t, "a cat", m.Get("field_ai_caption"))
	assert.Equal(t, []string{"field_ai_caption"}, m.FieldNames())

	err := m.Set("field_tags", "x")
	assert.True(t, errors.IsKind(err, errors.KindDomain))

	err = m.Set("field_media_image", "public://x.png")
	assert.True(t, errors.IsKind(err, errors.KindDomain))

	values := m.Values()
	values["field_ai_caption"] = "changed"
	assert.Equal(t, "a cat", m.Get("field_ai_caption"))
}

func TestMediaFiles(t *testing.T) {
	m := New("m1", imageSchema, "cat")
	assert.Nil(t, m.SourceFile())

	f := &File{ID: "f1", URI: "public://cat.png", MimeType: "image/png"}
	require.NoError(t, m.AttachFile("field_media_image", f))
	assert.Same(t, f, m.SourceFile())
	assert.Same(t, f, m.File("field_media_image"))
	assert.Nil(t, m.File("field_ai_caption"))

	assert.Error(t, m.AttachFile("field_ai_caption", f))
}

func TestMediaClone(t *testing.T) {
	m := New("m1", imageSchema, "cat")
	require.NoError(t, m.Set("field_ai_caption", "a cat"))
	require.NoError(t, m.AttachFile("field_media_image", &File{ID: "f1", URI: "public://cat.png"}))

	c := m.Clone()
	assert.Equal(t, m.ID, c.ID)
	assert.Equal(t, "a cat", c.Get("field_ai_caption"))
	assert.Equal(t, "public://cat.png", c.SourceFile().URI)
	assert.NotSame(t, m.SourceFile(), c.SourceFile())

	require.NoError(t, c.Set("field_ai_caption", "a dog"))
	c.SourceFile().URI = "public://dog.png"
	assert.Equal(t, "a cat", m.Get("field_ai_caption"))
	assert.Equal(t, "public://cat.png", m.SourceFile().URI)
}

func TestSchemasLookup(t *testing.T) {
	schemas := Schemas{"image": imageSchema}
	s, ok := schemas.Lookup("image")
	assert.True(t, ok)
	assert.Equal(t, "field_media_image", s.SourceField)
	_, ok = schemas.Lookup("video")
	assert.False(t, ok)
}
