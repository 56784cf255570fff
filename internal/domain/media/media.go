package media

import (
	"fmt"
	"sort"
	"time"

	"media-caption-server/internal/platform/errors"
)

// EntityType is the entity type identifier of every Media.
const EntityType = "media"

// Entity is the minimal handle event subscribers see.
type Entity interface {
	EntityTypeID() string
	Identifier() string
	Bundle() string
}

// File is a stored file referenced by a media source field.
type File struct {
	ID       string `json:"id"`
	URI      string `json:"uri"`
	Filename string `json:"filename"`
	MimeType string `json:"mime_type"`
	Size     int64  `json:"size"`
}

// BundleSchema lists the fields a bundle carries.
type BundleSchema struct {
	Name        string
	SourceField string
	Fields      []string
	Image       bool
}

// Has reports whether name is the source field or one of the extra fields.
func (s BundleSchema) Has(name string) bool {
	if name == "" {
		return false
	}
	if name == s.SourceField {
		return true
	}
	for _, f := range s.Fields {
		if f == name {
			return true
		}
	}
	return false
}

// Schemas indexes bundle schemas by bundle name.
type Schemas map[string]BundleSchema

func (s Schemas) Lookup(bundle string) (BundleSchema, bool) {
	schema, ok := s[bundle]
	return schema, ok
}

// Media is a media entity of one bundle.
type Media struct {
	ID      string
	Name    string
	Created time.Time
	Changed time.Time

	schema BundleSchema
	values map[string]string
	files  map[string]*File
}

// New returns an empty media of the given bundle.
func New(id string, schema BundleSchema, name string) *Media {
	now := time.Now().UTC()
	return &Media{
		ID:      id,
		Name:    name,
		Created: now,
		Changed: now,
		schema:  schema,
		values:  make(map[string]string),
		files:   make(map[string]*File),
	}
}

func (m *Media) EntityTypeID() string { return EntityType }

func (m *Media) Identifier() string { return m.ID }

func (m *Media) Bundle() string { return m.schema.Name }

func (m *Media) Schema() BundleSchema { return m.schema }

// HasField reports whether the bundle schema defines name.
func (m *Media) HasField(name string) bool {
	return m.schema.Has(name)
}

// Get returns the string value of a field, empty when unset.
func (m *Media) Get(name string) string {
	return m.values[name]
}

// Set assigns a string field. The source field only accepts files.
func (m *Media) Set(name, value string) error {
	if !m.HasField(name) {
		return errors.New(errors.KindDomain, "media.set", fmt.Sprintf("bundle %s has no field %s", m.Bundle(), name))
	}
	if name == m.schema.SourceField {
		return errors.New(errors.KindDomain, "media.set", fmt.Sprintf("field %s holds a file reference", name))
	}
	m.values[name] = value
	return nil
}

// AttachFile sets the file reference of the source field.
func (m *Media) AttachFile(name string, f *File) error {
	if name != m.schema.SourceField || name == "" {
		return errors.New(errors.KindDomain, "media.attach", fmt.Sprintf("field %s is not the source field of bundle %s", name, m.Bundle()))
	}
	m.files[name] = f
	return nil
}

// File returns the file attached to a field, nil when there is none.
func (m *Media) File(name string) *File {
	return m.files[name]
}

// SourceFile returns the file of the bundle's source field.
func (m *Media) SourceFile() *File {
	return m.files[m.schema.SourceField]
}

// Values returns a copy of the string fields.
func (m *Media) Values() map[string]string {
	out := make(map[string]string, len(m.values))
	for k, v := range m.values {
		out[k] = v
	}
	return out
}

// Clone returns a copy that shares no mutable state with m.
func (m *Media) Clone() *Media {
	c := *m
	c.values = m.Values()
	c.files = make(map[string]*File, len(m.files))
	for name, f := range m.files {
		if f == nil {
			continue
		}
		file := *f
		c.files[name] = &file
	}
	return &c
}

// FieldNames returns the string field names with a value, sorted.
func (m *Media) FieldNames() []string {
	names := make([]string, 0, len(m.values))
	for k := range m.values {
		names = append(names, k)
	}
	sort.Strings(names)
	return names
}
