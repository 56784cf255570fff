package media

import (
	"context"
	"io"
)

// Repository persists media entities. FindByID returns nil, nil for an
// unknown id.
type Repository interface {
	Create(ctx context.Context, m *Media) error
	Update(ctx context.Context, m *Media) error
	FindByID(ctx context.Context, id string) (*Media, error)
}

// FileStore writes uploaded bytes under the public:// scheme.
type FileStore interface {
	Put(filename string, r io.Reader) (uri string, size int64, err error)
}

// ImageValidator checks an upload for an image bundle and returns its MIME type.
type ImageValidator interface {
	Validate(data []byte) (mimeType string, err error)
}
