package store

import (
	"errors"
	"fmt"

	"gorm.io/datatypes"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"
)

// CollectionRecord is the single-table document layout: one row per
// collection key, the whole collection as a JSON document.
type CollectionRecord struct {
	Key   string         `gorm:"primaryKey"`
	Value datatypes.JSON `gorm:"not null"`
}

// TableName keeps the table name stable across gorm naming strategies.
func (CollectionRecord) TableName() string { return "collections" }

// GormKV persists collections as JSON documents in Postgres.
type GormKV struct {
	db *gorm.DB
}

// NewGormStore connects to Postgres and migrates the collections table.
func NewGormStore(databaseURL string) (Store, error) {
	db, err := gorm.Open(postgres.Open(databaseURL), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	if err := db.AutoMigrate(&CollectionRecord{}); err != nil {
		return nil, fmt.Errorf("migrate collections table: %w", err)
	}
	return newKVStore(&GormKV{db: db}), nil
}

// Load fetches the document for key.
func (g *GormKV) Load(key string) ([]byte, bool, error) {
	var record CollectionRecord
	err := g.db.First(&record, "key = ?", key).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("load collection %s: %w", key, err)
	}
	return []byte(record.Value), true, nil
}

// Store upserts the document for key.
func (g *GormKV) Store(key string, value []byte) error {
	record := CollectionRecord{Key: key, Value: datatypes.JSON(value)}
	err := g.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "key"}},
		DoUpdates: clause.AssignmentColumns([]string{"value"}),
	}).Create(&record).Error
	if err != nil {
		return fmt.Errorf("store collection %s: %w", key, err)
	}
	return nil
}
