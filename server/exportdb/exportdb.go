// Package exportdb remembers which sample batches have been exported, and where to
package exportdb

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/cyclopcam/dbh"
	"github.com/cyclopcam/logs"
	"gorm.io/gorm"
)

// Batch is one drained group of samples, written to the blob store as a single file
type Batch struct {
	ID         int64       `gorm:"primaryKey" json:"id"`
	Name       string      `json:"name"`      // Name of the blob
	Samples    int         `json:"samples"`   // Number of samples in the blob
	FirstTime  dbh.IntTime `json:"firstTime"` // Time of the oldest sample (zero if untimed)
	LastTime   dbh.IntTime `json:"lastTime"`  // Time of the newest sample (zero if untimed)
	ExportedAt dbh.IntTime `json:"exportedAt"`
}

type ExportDB struct {
	log logs.Log
	db  *gorm.DB
}

// Open or create an export DB
func Open(log logs.Log, dbFilename string) (*ExportDB, error) {
	if err := os.MkdirAll(filepath.Dir(dbFilename), 0770); err != nil {
		return nil, fmt.Errorf("Failed to create directory for export database %v: %w", dbFilename, err)
	}
	log.Infof("Opening export DB at '%v'", dbFilename)
	db, err := dbh.OpenDB(log, dbh.MakeSqliteConfig(dbFilename), Migrations(log), 0)
	if err != nil {
		return nil, fmt.Errorf("Failed to open export database %v: %w", dbFilename, err)
	}
	return &ExportDB{
		log: log,
		db:  db,
	}, nil
}

func (e *ExportDB) Close() error {
	raw, err := e.db.DB()
	if err != nil {
		return err
	}
	return raw.Close()
}

// AddBatch records a batch. If b.ExportedAt is zero, it is set to now.
// On success, b.ID is populated.
func (e *ExportDB) AddBatch(b *Batch) error {
	if b.ExportedAt.IsZero() {
		b.ExportedAt = dbh.MakeIntTime(time.Now())
	}
	return e.db.Create(b).Error
}

// RecentBatches returns up to 'limit' batches, newest first
func (e *ExportDB) RecentBatches(limit int) ([]Batch, error) {
	if limit <= 0 {
		limit = 100
	}
	batches := []Batch{}
	err := e.db.Order("id DESC").Limit(limit).Find(&batches).Error
	return batches, err
}

// TotalSamples is the number of samples across every batch ever exported
func (e *ExportDB) TotalSamples() (int64, error) {
	total := int64(0)
	err := e.db.Raw("SELECT COALESCE(SUM(samples), 0) FROM batch").Scan(&total).Error
	return total, err
}
