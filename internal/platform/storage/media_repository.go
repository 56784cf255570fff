package storage

import (
	"context"
	stderrors "errors"
	"fmt"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"media-caption-server/internal/domain/media"
	"media-caption-server/internal/platform/errors"
)

type mediaRepository struct {
	db      *gorm.DB
	schemas media.Schemas
}

// NewMediaRepository returns a media.Repository backed by db. Schemas are
// needed to rebuild entities on load.
func NewMediaRepository(db *gorm.DB, schemas media.Schemas) media.Repository {
	return &mediaRepository{db: db, schemas: schemas}
}

func (r *mediaRepository) Create(ctx context.Context, m *media.Media) error {
	record := r.toModel(m)
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := r.saveFiles(tx, m); err != nil {
			return err
		}
		if err := tx.Create(record).Error; err != nil {
			return err
		}
		return r.saveFields(tx, m)
	})
	if err != nil {
		return errors.Wrap(errors.KindStorage, "media.save", "failed to save media", err)
	}
	return nil
}

func (r *mediaRepository) Update(ctx context.Context, m *media.Media) error {
	m.Changed = time.Now().UTC()
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		result := tx.Model(&MediaRecord{}).Where("id = ?", m.ID).Updates(map[string]any{
			"name":       m.Name,
			"updated_at": m.Changed,
		})
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return errors.Wrap(errors.KindDomain, "media.update", fmt.Sprintf("media %s", m.ID), media.ErrNotFound)
		}
		if err := r.saveFiles(tx, m); err != nil {
			return err
		}
		if err := tx.Where("media_id = ?", m.ID).Delete(&MediaFieldValue{}).Error; err != nil {
			return err
		}
		return r.saveFields(tx, m)
	})
	if err != nil {
		return errors.Wrap(errors.KindStorage, "media.update", "failed to update media", err)
	}
	return nil
}

func (r *mediaRepository) FindByID(ctx context.Context, id string) (*media.Media, error) {
	var record MediaRecord
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&record).Error; err != nil {
		if stderrors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, errors.Wrap(errors.KindStorage, "media.find_by_id", "failed to find media", err)
	}

	var values []MediaFieldValue
	if err := r.db.WithContext(ctx).Where("media_id = ?", id).Order("id").Find(&values).Error; err != nil {
		return nil, errors.Wrap(errors.KindStorage, "media.find_by_id", "failed to load media fields", err)
	}

	files := make(map[string]*FileRecord)
	var fileIDs []string
	for _, v := range values {
		if v.FileID != nil {
			fileIDs = append(fileIDs, *v.FileID)
		}
	}
	if len(fileIDs) > 0 {
		var records []FileRecord
		if err := r.db.WithContext(ctx).Where("id IN ?", fileIDs).Find(&records).Error; err != nil {
			return nil, errors.Wrap(errors.KindStorage, "media.find_by_id", "failed to load media files", err)
		}
		for i := range records {
			files[records[i].ID] = &records[i]
		}
	}

	return r.fromModel(&record, values, files)
}

// saveFiles inserts file records that are not stored yet.
func (r *mediaRepository) saveFiles(tx *gorm.DB, m *media.Media) error {
	f := m.SourceFile()
	if f == nil {
		return nil
	}
	record := &FileRecord{
		ID:        f.ID,
		URI:       f.URI,
		Filename:  f.Filename,
		MimeType:  f.MimeType,
		Size:      f.Size,
		CreatedAt: time.Now().UTC(),
	}
	return tx.Clauses(clause.OnConflict{DoNothing: true}).Create(record).Error
}

func (r *mediaRepository) saveFields(tx *gorm.DB, m *media.Media) error {
	var rows []MediaFieldValue
	if f := m.SourceFile(); f != nil {
		id := f.ID
		rows = append(rows, MediaFieldValue{MediaID: m.ID, Name: m.Schema().SourceField, FileID: &id})
	}
	for _, name := range m.FieldNames() {
		rows = append(rows, MediaFieldValue{MediaID: m.ID, Name: name, Value: m.Get(name)})
	}
	if len(rows) == 0 {
		return nil
	}
	return tx.Create(&rows).Error
}

func (r *mediaRepository) toModel(m *media.Media) *MediaRecord {
	return &MediaRecord{
		ID:        m.ID,
		Bundle:    m.Bundle(),
		Name:      m.Name,
		CreatedAt: m.Created,
		UpdatedAt: m.Changed,
	}
}

func (r *mediaRepository) fromModel(record *MediaRecord, values []MediaFieldValue, files map[string]*FileRecord) (*media.Media, error) {
	schema, ok := r.schemas.Lookup(record.Bundle)
	if !ok {
		return nil, errors.New(errors.KindStorage, "media.from_model", fmt.Sprintf("media %s has unknown bundle %q", record.ID, record.Bundle))
	}

	m := media.New(record.ID, schema, record.Name)
	m.Created = record.CreatedAt
	m.Changed = record.UpdatedAt

	for _, v := range values {
		if v.FileID != nil {
			file, ok := files[*v.FileID]
			if !ok {
				continue
			}
			_ = m.AttachFile(v.Name, &media.File{
				ID:       file.ID,
				URI:      file.URI,
				Filename: file.Filename,
				MimeType: file.MimeType,
				Size:     file.Size,
			})
			continue
		}
		// fields dropped from the schema since the row was written are ignored
		_ = m.Set(v.Name, v.Value)
	}
	return m, nil
}
