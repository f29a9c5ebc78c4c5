package service

import (
	"context"
	"errors"
	"gorm.io/gorm"
	"video-chapters/cache"
	"video-chapters/constant"
	"video-chapters/dto"
	"video-chapters/entities"
	"video-chapters/toc"
)

var (
	ErrNotFound       = errors.New("not found")
	ErrStaleOrder     = errors.New("chapter order does not match the current chapters")
	ErrInvalidTrigger = errors.New("invalid trigger")
	ErrQuizNotFound   = errors.New("quiz not found")
	ErrInvalidPath    = errors.New("invalid attachment path")
)

// EventPublisher delivers toc.changed notifications.
type EventPublisher interface {
	Publish(ctx context.Context, routingKey string, message any) error
}

func notFound(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return errors.Join(ErrNotFound, err)
	}
	return err
}

func toAttachmentDTO(a *entities.Attachment) dto.Attachment {
	out := dto.Attachment{
		ID:        a.ID,
		TopicID:   a.TopicID,
		Path:      a.Path,
		Kind:      a.Kind,
		CreatedAt: a.CreatedAt,
	}
	if a.HasTrigger() {
		out.Trigger = &dto.Trigger{QuizID: *a.QuizID, Timestamp: *a.TriggerTimestamp}
	}
	return out
}

func toTocEntry(e *entities.TableOfContentEntry) toc.Entry {
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

func toTocEntries(rows []*entities.TableOfContentEntry) []toc.Entry {
	out := make([]toc.Entry, 0, len(rows))
	for _, r := range rows {
		out = append(out, toTocEntry(r))
	}
	return out
}

func toEntryDTOs(rows []*entities.TableOfContentEntry) []dto.Entry {
	out := make([]dto.Entry, 0, len(rows))
	for _, r := range rows {
		out = append(out, dto.EntryFromToc(toTocEntry(r)))
	}
	return out
}

func attachmentKind(kind constant.AttachmentKind) constant.AttachmentKind {
	if kind == "" {
		return constant.AttachmentKindNormal
	}
	return kind
}

// noopPublisher is used when no broker is configured.
type noopPublisher struct{}

func (noopPublisher) Publish(context.Context, string, any) error { return nil }

func orNoop(c cache.Entries) cache.Entries {
	if c == nil {
		return cache.Noop{}
	}
	return c
}
