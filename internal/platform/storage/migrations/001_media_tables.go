package migrations

import (
	"gorm.io/gorm"
)

// Migration001MediaTables creates the media, file and caption event tables.
type Migration001MediaTables struct{}

func (m *Migration001MediaTables) Version() string {
	return "001_media_tables"
}

func (m *Migration001MediaTables) Description() string {
	return "Create media, media_field_values, files and caption_events"
}

func (m *Migration001MediaTables) Up(db *gorm.DB) error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS media (
			id VARCHAR(36) PRIMARY KEY,
			bundle VARCHAR(255) NOT NULL,
			name VARCHAR(255) NOT NULL DEFAULT '',
			created_at DATETIME NOT NULL,
			updated_at DATETIME NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_media_bundle ON media(bundle)`,
		`CREATE TABLE IF NOT EXISTS files (
			id VARCHAR(36) PRIMARY KEY,
			uri VARCHAR(512) NOT NULL UNIQUE,
			filename VARCHAR(255) NOT NULL,
			mime_type VARCHAR(255) NOT NULL DEFAULT '',
			size INTEGER NOT NULL DEFAULT 0,
			created_at DATETIME NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS media_field_values (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			media_id VARCHAR(36) NOT NULL REFERENCES media(id) ON DELETE CASCADE,
			name VARCHAR(255) NOT NULL,
			value TEXT,
			file_id VARCHAR(36) REFERENCES files(id)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_media_field_values_media_id ON media_field_values(media_id)`,
		`CREATE TABLE IF NOT EXISTS caption_events (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			media_id VARCHAR(36) NOT NULL,
			notification VARCHAR(36),
			operation VARCHAR(32) NOT NULL,
			status VARCHAR(32) NOT NULL,
			caption TEXT,
			detail JSON,
			recorded_at DATETIME NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_caption_events_media_id ON caption_events(media_id)`,
		`CREATE INDEX IF NOT EXISTS idx_caption_events_status ON caption_events(status)`,
		`CREATE INDEX IF NOT EXISTS idx_caption_events_recorded_at ON caption_events(recorded_at)`,
	}
	for _, stmt := range statements {
		if err := db.Exec(stmt).Error; err != nil {
			return err
		}
	}
	return nil
}

func (m *Migration001MediaTables) Down(db *gorm.DB) error {
	for _, table := range []string{"caption_events", "media_field_values", "files", "media"} {
		if err := db.Exec(`DROP TABLE IF EXISTS ` + table).Error; err != nil {
			return err
		}
	}
	return nil
}
