// Package gateway is the client side of the chapters backend: the operations
// the authoring workflow and the playback gate need, independent of transport.
package gateway

import (
	"context"
	"encoding/json"
	"github.com/google/uuid"
	"video-chapters/constant"
	"video-chapters/dto"
	"video-chapters/toc"
)

type CreateAttachmentRequest struct {
	TopicID int64
	Path    string
	Kind    constant.AttachmentKind
	Trigger *dto.Trigger
}

// CreateAttachmentResult carries the identifier from the documented id field,
// or zero when the response did not have one. Raw keeps the response body for
// callers that must recover the identifier from older response shapes.
type CreateAttachmentResult struct {
	ID  int64
	Raw json.RawMessage
}

type Gateway interface {
	CreateAttachment(ctx context.Context, req CreateAttachmentRequest) (CreateAttachmentResult, error)
	ListAttachments(ctx context.Context, topicID int64) ([]dto.Attachment, error)
	GetAttachment(ctx context.Context, id int64) (dto.Attachment, error)

	ListEntries(ctx context.Context, attachmentID int64) ([]toc.Entry, error)
	CreateEntry(ctx context.Context, entry toc.Entry) (int64, error)
	UpdateEntry(ctx context.Context, id int64, patch dto.EntryPatch) error
	DeleteEntry(ctx context.Context, id int64) error
	ReorderEntries(ctx context.Context, attachmentID int64, orderedIDs []int64) error

	GetQuizCompletion(ctx context.Context, quizID int64, viewerID uuid.UUID) (dto.QuizCompletion, error)
}
