package store

import (
	"time"

	"gorm.io/datatypes"
)

// RecordModel is the GORM model backing GormStore.
type RecordModel struct {
	Key       string         `gorm:"primaryKey"`
	Value     datatypes.JSON `gorm:"type:jsonb;not null"`
	UpdatedAt time.Time      `gorm:"not null"`
}

func (RecordModel) TableName() string {
	return "kv_records"
}
