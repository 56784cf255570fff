package eventlog

import (
	"fmt"

	"gorm.io/gorm"

	"media-caption-server/internal/platform/errors"
)

// Driver identifiers.
const (
	DriverMemory = "memory"
	DriverSQLite = "sqlite"
	DriverRedis  = "redis"
)

// Dependencies captures external handles required by certain drivers.
type Dependencies struct {
	SQLiteDB *gorm.DB
}

// New creates a store based on the provided configuration.
func New(cfg Config, deps Dependencies) (Store, error) {
	driver := cfg.Driver
	if driver == "" {
		driver = DriverMemory
	}

	switch driver {
	case DriverMemory:
		return NewMemory(), nil
	case DriverSQLite:
		if deps.SQLiteDB == nil {
			return nil, errors.New(errors.KindConfig, "eventlog.new", "sqlite driver requires database handle")
		}
		return NewSQLite(deps.SQLiteDB)
	case DriverRedis:
		return NewRedis(cfg)
	default:
		return nil, errors.New(errors.KindConfig, "eventlog.new", fmt.Sprintf("unsupported event log driver: %s", driver))
	}
}
