package entities

import "time"

type TableOfContentEntry struct {
	ID             int64     `json:"id" gorm:"primaryKey;autoIncrement"`
	AttachmentID   int64     `json:"attachment_id" gorm:"not null;index:idx_toc_entries_attachment_id"`
	ContentName    string    `json:"content_name" gorm:"type:varchar(255);not null"`
	Description    *string   `json:"description" gorm:"type:text"`
	StartTimestamp int       `json:"start_timestamp" gorm:"not null"`
	EndTimestamp   int       `json:"end_timestamp" gorm:"not null"`
	OrderIndex     int       `json:"order_index" gorm:"not null"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

func (TableOfContentEntry) TableName() string {
	return "table_of_content_entries"
}
