package media

import (
	"bytes"
	"context"
	stderrors "errors"
	"fmt"

	"github.com/google/uuid"

	"media-caption-server/internal/domain/eventbus"
	"media-caption-server/internal/platform/errors"
	"media-caption-server/internal/platform/logging"
)

// ErrNotFound is wrapped by Get and Update for unknown ids.
var ErrNotFound = stderrors.New("media not found")

// Publisher dispatches saved-entity notifications.
type Publisher interface {
	Publish(n eventbus.Notification) error
}

// asyncPublisher is implemented by publishers that hand notifications to
// other goroutines.
type asyncPublisher interface {
	Async() bool
}

// Upload is a file submitted with a new media item.
type Upload struct {
	Filename string
	MimeType string
	Data     []byte
}

// CreateRequest describes a new media item.
type CreateRequest struct {
	Bundle string
	Name   string
	Fields map[string]string
	Upload *Upload
}

// Changes is a partial update. Nil Name leaves the name untouched.
type Changes struct {
	Name   *string
	Fields map[string]string
}

// Service saves media and dispatches entity:insert / entity:update after
// every successful save.
type Service struct {
	schemas   Schemas
	repo      Repository
	files     FileStore
	validator ImageValidator
	publisher Publisher
	logger    *logging.Logger
}

func NewService(
	schemas Schemas,
	repo Repository,
	files FileStore,
	validator ImageValidator,
	publisher Publisher,
	logger *logging.Logger,
) *Service {
	return &Service{
		schemas:   schemas,
		repo:      repo,
		files:     files,
		validator: validator,
		publisher: publisher,
		logger:    logger,
	}
}

// Schemas returns the configured bundle schemas.
func (s *Service) Schemas() Schemas { return s.schemas }

// Create stores the upload, persists the media and dispatches entity:insert.
// With a synchronous bus the returned error includes subscriber failures;
// the media is persisted either way.
func (s *Service) Create(ctx context.Context, req CreateRequest) (*Media, error) {
	schema, ok := s.schemas.Lookup(req.Bundle)
	if !ok {
		return nil, errors.New(errors.KindDomain, "media.create", fmt.Sprintf("unknown bundle %q", req.Bundle))
	}

	m := New(uuid.NewString(), schema, req.Name)
	for name, value := range req.Fields {
		if err := m.Set(name, value); err != nil {
			return nil, err
		}
	}

	if schema.SourceField != "" {
		if req.Upload == nil || len(req.Upload.Data) == 0 {
			return nil, errors.New(errors.KindDomain, "media.create", fmt.Sprintf("bundle %s requires a file for %s", schema.Name, schema.SourceField))
		}
		file, err := s.storeUpload(schema, req.Upload)
		if err != nil {
			return nil, err
		}
		if err := m.AttachFile(schema.SourceField, file); err != nil {
			return nil, err
		}
	}
	if m.Name == "" {
		if f := m.SourceFile(); f != nil {
			m.Name = f.Filename
		}
	}

	if err := s.repo.Create(ctx, m); err != nil {
		return nil, errors.Wrap(errors.KindStorage, "media.create", "failed to persist media", err)
	}
	s.logInfo("media %s created (bundle=%s)", m.ID, m.Bundle())

	return m, s.dispatch(ctx, eventbus.OperationInsert, m)
}

// Update applies changes, persists and dispatches entity:update.
func (s *Service) Update(ctx context.Context, id string, changes Changes) (*Media, error) {
	m, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	if changes.Name != nil {
		m.Name = *changes.Name
	}
	for name, value := range changes.Fields {
		if err := m.Set(name, value); err != nil {
			return nil, err
		}
	}

	if err := s.repo.Update(ctx, m); err != nil {
		return nil, errors.Wrap(errors.KindStorage, "media.update", "failed to persist media", err)
	}
	s.logInfo("media %s updated", m.ID)

	return m, s.dispatch(ctx, eventbus.OperationUpdate, m)
}

func (s *Service) Get(ctx context.Context, id string) (*Media, error) {
	m, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, errors.Wrap(errors.KindStorage, "media.get", "failed to load media", err)
	}
	if m == nil {
		return nil, errors.Wrap(errors.KindDomain, "media.get", fmt.Sprintf("media %s", id), ErrNotFound)
	}
	return m, nil
}

func (s *Service) storeUpload(schema BundleSchema, upload *Upload) (*File, error) {
	mimeType := upload.MimeType
	if schema.Image && s.validator != nil {
		detected, err := s.validator.Validate(upload.Data)
		if err != nil {
			return nil, err
		}
		mimeType = detected
	}

	uri, size, err := s.files.Put(upload.Filename, bytes.NewReader(upload.Data))
	if err != nil {
		return nil, err
	}
	return &File{
		ID:       uuid.NewString(),
		URI:      uri,
		Filename: upload.Filename,
		MimeType: mimeType,
		Size:     size,
	}, nil
}

func (s *Service) dispatch(ctx context.Context, op eventbus.Operation, m *Media) error {
	if s.publisher == nil {
		return nil
	}
	subject := m
	if p, ok := s.publisher.(asyncPublisher); ok && p.Async() {
		// subscribers write to their copy while the caller still reads m
		subject = m.Clone()
	}
	event := eventbus.NewEntityEvent(ctx, op, subject)
	if err := s.publisher.Publish(event); err != nil {
		if s.logger != nil {
			s.logger.WarnTag("Media", "post-save handlers failed for media %s (%s): %v", m.ID, op, err)
		}
		return err
	}
	return nil
}

func (s *Service) logInfo(format string, args ...interface{}) {
	if s.logger != nil {
		s.logger.InfoTag("Media", format, args...)
	}
}
