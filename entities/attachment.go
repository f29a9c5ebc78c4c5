package entities

import (
	"time"
	"video-chapters/constant"
)

type Attachment struct {
	ID               int64                   `json:"id" gorm:"primaryKey;autoIncrement"`
	TopicID          int64                   `json:"topic_id" gorm:"not null;index:idx_attachments_topic_id"`
	Path             string                  `json:"path" gorm:"type:varchar(500);not null"`
	Kind             constant.AttachmentKind `json:"kind" gorm:"type:varchar(20);not null;default:'normal'"`
	QuizID           *int64                  `json:"quiz_id"`
	TriggerTimestamp *int                    `json:"trigger_timestamp"`
	CreatedAt        time.Time               `json:"created_at"`
	UpdatedAt        time.Time               `json:"updated_at"`
}

func (Attachment) TableName() string {
	return "attachments"
}

func (a Attachment) HasTrigger() bool {
	return a.Kind == constant.AttachmentKindInteractive && a.QuizID != nil && a.TriggerTimestamp != nil
}
