package storage

import (
	"time"

	"gorm.io/datatypes"
)

// MediaRecord is one row of the media table.
type MediaRecord struct {
	ID        string    `gorm:"primaryKey;size:36"`
	Bundle    string    `gorm:"index;not null"`
	Name      string    `gorm:"not null;default:''"`
	CreatedAt time.Time `gorm:"not null"`
	UpdatedAt time.Time `gorm:"not null"`
}

func (MediaRecord) TableName() string {
	return "media"
}

// MediaFieldValue stores one field of a media item. File fields reference
// a FileRecord, string fields carry Value.
type MediaFieldValue struct {
	ID      uint    `gorm:"primaryKey"`
	MediaID string  `gorm:"index;not null;size:36"`
	Name    string  `gorm:"not null"`
	Value   string  `gorm:"type:text"`
	FileID  *string `gorm:"size:36"`
}

func (MediaFieldValue) TableName() string {
	return "media_field_values"
}

// FileRecord describes a stored file.
type FileRecord struct {
	ID        string    `gorm:"primaryKey;size:36"`
	URI       string    `gorm:"uniqueIndex;not null"`
	Filename  string    `gorm:"not null"`
	MimeType  string    `gorm:"not null;default:''"`
	Size      int64     `gorm:"not null;default:0"`
	CreatedAt time.Time `gorm:"not null"`
}

func (FileRecord) TableName() string {
	return "files"
}

// CaptionEventRecord is one caption outcome.
type CaptionEventRecord struct {
	ID           uint           `gorm:"primaryKey"`
	MediaID      string         `gorm:"index;not null;size:36"`
	Notification string         `gorm:"size:36"`
	Operation    string         `gorm:"not null"`
	Status       string         `gorm:"index;not null"`
	Caption      string         `gorm:"type:text"`
	Detail       datatypes.JSON `json:"detail"`
	RecordedAt   time.Time      `gorm:"index;not null"`
}

func (CaptionEventRecord) TableName() string {
	return "caption_events"
}
