package models

import (
	"time"

	"gorm.io/datatypes"
)

// Document is one record of the push store. Seq doubles as the insertion
// order used to break ties between equal OrderMs values.
type Document struct {
	Seq       int64          `gorm:"primaryKey;autoIncrement" json:"seq"`
	Path      string         `gorm:"size:255;not null;uniqueIndex:idx_documents_path_key,priority:1;index:idx_documents_path_order,priority:1" json:"path"`
	Key       string         `gorm:"size:64;not null;uniqueIndex:idx_documents_path_key,priority:2" json:"key"`
	OrderMs   int64          `gorm:"not null;index:idx_documents_path_order,priority:2" json:"order_ms"`
	Data      datatypes.JSON `gorm:"type:jsonb;not null" json:"data"`
	UpdatedAt time.Time      `json:"updated_at"`
}

func (Document) TableName() string {
	return "documents"
}
