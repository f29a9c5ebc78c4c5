package dto

import (
	"github.com/google/uuid"
	"time"
	"video-chapters/constant"
	"video-chapters/toc"
)

const (
	StatusSuccess = "success"
	StatusError   = "error"
)

// Envelope wraps every HTTP response body.
type Envelope[T any] struct {
	Status  string   `json:"status"`
	Data    T        `json:"data,omitempty"`
	Message string   `json:"message,omitempty"`
	Errors  []string `json:"errors,omitempty"`
}

type IDResponse struct {
	ID int64 `json:"id"`
}

type UploadResponse struct {
	Path string `json:"path"`
}

type Trigger struct {
	QuizID    int64 `json:"quiz_id" binding:"required,gt=0"`
	Timestamp int   `json:"timestamp" binding:"gte=0"`
}

type Attachment struct {
	ID        int64                   `json:"id"`
	TopicID   int64                   `json:"topic_id"`
	Path      string                  `json:"path"`
	Kind      constant.AttachmentKind `json:"kind"`
	Trigger   *Trigger                `json:"trigger,omitempty"`
	CreatedAt time.Time               `json:"created_at"`
}

type CreateAttachmentRequest struct {
	Path    string                  `json:"path" binding:"required"`
	Kind    constant.AttachmentKind `json:"kind" binding:"required,oneof=normal interactive"`
	Trigger *Trigger                `json:"trigger,omitempty"`
}

// Entry is the persisted shape of one table-of-content entry.
type Entry struct {
	ID             int64   `json:"id,omitempty"`
	AttachmentID   int64   `json:"attachment_id"`
	ContentName    string  `json:"content_name" binding:"required"`
	StartTimestamp int     `json:"start_timestamp" binding:"gte=0"`
	EndTimestamp   int     `json:"end_timestamp" binding:"gte=0"`
	Description    *string `json:"description,omitempty"`
	OrderIndex     int     `json:"order_index" binding:"gte=0"`
}

type EntryPatch struct {
	ContentName    *string `json:"content_name,omitempty" binding:"omitempty,min=1"`
	Description    *string `json:"description,omitempty"`
	StartTimestamp *int    `json:"start_timestamp,omitempty" binding:"omitempty,gte=0"`
	EndTimestamp   *int    `json:"end_timestamp,omitempty" binding:"omitempty,gte=0"`
}

type ReorderRequest struct {
	OrderedIDs []int64 `json:"ordered_ids" binding:"required"`
}

type QuizCompletion struct {
	Completed bool       `json:"completed"`
	Score     *int       `json:"score,omitempty"`
	Total     *int       `json:"total,omitempty"`
	Deadline  *time.Time `json:"deadline,omitempty"`
}

// DeadlinePassed reports whether the quiz deadline lies before now.
func (q QuizCompletion) DeadlinePassed(now time.Time) bool {
	return q.Deadline != nil && now.After(*q.Deadline)
}

type TocChangedMessage struct {
	MessageID    uuid.UUID          `json:"messageId"`
	AttachmentID int64              `json:"attachmentId"`
	Action       constant.TocAction `json:"action"`
	OccurredAt   time.Time          `json:"occurredAt"`
}

func EntryFromToc(e toc.Entry) Entry {
	out := Entry{
		ID:             e.ID,
		AttachmentID:   e.AttachmentID,
		ContentName:    e.Name,
		StartTimestamp: e.Start,
		EndTimestamp:   e.End,
		OrderIndex:     e.Order,
	}
	if e.Description != "" {
		d := e.Description
		out.Description = &d
	}
	return out
}

func (e Entry) Toc() toc.Entry {
	out := toc.Entry{
		ID:           e.ID,
		AttachmentID: e.AttachmentID,
		Name:         e.ContentName,
		Start:        e.StartTimestamp,
		End:          e.EndTimestamp,
		Order:        e.OrderIndex,
	}
	if e.Description != nil {
		out.Description = *e.Description
	}
	return out
}
