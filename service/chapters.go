package service

import (
	"context"
	"errors"
	"fmt"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"strings"
	"time"
	"video-chapters/cache"
	"video-chapters/constant"
	"video-chapters/dto"
	"video-chapters/entities"
	"video-chapters/repository"
	"video-chapters/storage"
	"video-chapters/toc"
)

type ChapterService interface {
	CreateAttachment(ctx context.Context, topicId int64, req dto.CreateAttachmentRequest) (*dto.Attachment, error)
	GetAttachment(ctx context.Context, id int64) (*dto.Attachment, error)
	ListAttachments(ctx context.Context, topicId int64) ([]dto.Attachment, error)

	ListEntries(ctx context.Context, attachmentId int64) ([]dto.Entry, error)
	CreateEntry(ctx context.Context, attachmentId int64, req dto.Entry) (int64, error)
	UpdateEntry(ctx context.Context, id int64, patch dto.EntryPatch) (*dto.Entry, error)
	DeleteEntry(ctx context.Context, id int64) error
	ReorderEntries(ctx context.Context, attachmentId int64, orderedIds []int64) ([]dto.Entry, error)
}

type chapterService struct {
	repo   repository.ChapterRepository
	cache  cache.Entries
	events EventPublisher
}

func NewChapterService(repo repository.ChapterRepository, entries cache.Entries, events EventPublisher) ChapterService {
	if events == nil {
		events = noopPublisher{}
	}
	return &chapterService{
		repo:   repo,
		cache:  orNoop(entries),
		events: events,
	}
}

func (s *chapterService) CreateAttachment(ctx context.Context, topicId int64, req dto.CreateAttachmentRequest) (*dto.Attachment, error) {
	if err := storage.ValidatePath(req.Path); err != nil {
		return nil, errors.Join(ErrInvalidPath, err)
	}

	attachment := &entities.Attachment{
		TopicID: topicId,
		Path:    req.Path,
		Kind:    attachmentKind(req.Kind),
	}
	if !attachment.Kind.Valid() {
		return nil, fmt.Errorf("%w: unknown kind %q", ErrInvalidTrigger, req.Kind)
	}

	switch {
	case attachment.Kind == constant.AttachmentKindInteractive && req.Trigger == nil:
		return nil, fmt.Errorf("%w: interactive attachments need a trigger", ErrInvalidTrigger)
	case attachment.Kind == constant.AttachmentKindNormal && req.Trigger != nil:
		return nil, fmt.Errorf("%w: only interactive attachments carry a trigger", ErrInvalidTrigger)
	case req.Trigger != nil:
		if req.Trigger.QuizID <= 0 || req.Trigger.Timestamp < 0 {
			return nil, fmt.Errorf("%w: quiz id must be positive and timestamp non-negative", ErrInvalidTrigger)
		}
		if _, err := s.repo.FindQuizById(ctx, req.Trigger.QuizID); err != nil {
			if errors.Is(notFound(err), ErrNotFound) {
				return nil, errors.Join(ErrQuizNotFound, err)
			}
			return nil, err
		}
		quizId, ts := req.Trigger.QuizID, req.Trigger.Timestamp
		attachment.QuizID = &quizId
		attachment.TriggerTimestamp = &ts
	}

	if err := s.repo.CreateAttachment(ctx, attachment); err != nil {
		zerolog.Ctx(ctx).Error().Err(err).Int64("topic_id", topicId).Msg("failed to create attachment")
		return nil, err
	}

	zerolog.Ctx(ctx).Info().
		Int64("attachment_id", attachment.ID).
		Int64("topic_id", topicId).
		Str("kind", attachment.Kind.String()).
		Msg("attachment created")

	out := toAttachmentDTO(attachment)
	return &out, nil
}

func (s *chapterService) GetAttachment(ctx context.Context, id int64) (*dto.Attachment, error) {
	attachment, err := s.repo.FindAttachmentById(ctx, id)
	if err != nil {
		return nil, notFound(err)
	}
	out := toAttachmentDTO(attachment)
	return &out, nil
}

func (s *chapterService) ListAttachments(ctx context.Context, topicId int64) ([]dto.Attachment, error) {
	rows, err := s.repo.ListAttachmentsByTopic(ctx, topicId)
	if err != nil {
		return nil, err
	}
	out := make([]dto.Attachment, 0, len(rows))
	for _, r := range rows {
		out = append(out, toAttachmentDTO(r))
	}
	return out, nil
}

func (s *chapterService) ListEntries(ctx context.Context, attachmentId int64) ([]dto.Entry, error) {
	if cached, ok, err := s.cache.Get(ctx, attachmentId); err != nil {
		zerolog.Ctx(ctx).Warn().Err(err).Int64("attachment_id", attachmentId).Msg("chapter cache read failed")
	} else if ok {
		return cached, nil
	}

	// read before loading so a write that lands in between wins
	version, versionErr := s.cache.Version(ctx, attachmentId)

	if _, err := s.repo.FindAttachmentById(ctx, attachmentId); err != nil {
		return nil, notFound(err)
	}
	rows, err := s.repo.ListEntriesByAttachment(ctx, attachmentId)
	if err != nil {
		return nil, err
	}
	entries := toEntryDTOs(rows)

	if versionErr != nil {
		zerolog.Ctx(ctx).Warn().Err(versionErr).Int64("attachment_id", attachmentId).Msg("chapter cache version read failed")
		return entries, nil
	}
	if err := s.cache.Set(ctx, attachmentId, version, entries); err != nil {
		zerolog.Ctx(ctx).Warn().Err(err).Int64("attachment_id", attachmentId).Msg("chapter cache write failed")
	}
	return entries, nil
}

func (s *chapterService) CreateEntry(ctx context.Context, attachmentId int64, req dto.Entry) (int64, error) {
	candidate := req.Toc()
	candidate.ID = 0
	candidate.AttachmentID = attachmentId
	candidate.Name = strings.TrimSpace(candidate.Name)

	var created *entities.TableOfContentEntry
	err := s.repo.Transaction(ctx, func(ctx context.Context) error {
		if _, err := s.repo.LockAttachment(ctx, attachmentId); err != nil {
			return notFound(err)
		}
		rows, err := s.repo.ListEntriesByAttachment(ctx, attachmentId)
		if err != nil {
			return err
		}
		existing := toTocEntries(rows)
		if err := toc.Validate(candidate, existing, 0); err != nil {
			return err
		}

		position := candidate.Order
		if position == 0 {
			position = len(existing) + 1
		}
		if position < 1 || position > len(existing)+1 {
			return &toc.ValidationError{Name: candidate.Name, Err: fmt.Errorf("%w: order %d outside 1..%d", toc.ErrOrderIndex, position, len(existing)+1)}
		}
		for _, e := range existing {
			if e.Order >= position {
				if err := s.repo.UpdateEntryOrder(ctx, e.ID, e.Order+1); err != nil {
					return err
				}
			}
		}

		created = &entities.TableOfContentEntry{
			AttachmentID:   attachmentId,
			ContentName:    candidate.Name,
			Description:    req.Description,
			StartTimestamp: candidate.Start,
			EndTimestamp:   candidate.End,
			OrderIndex:     position,
		}
		return s.repo.CreateEntry(ctx, created)
	})
	if err != nil {
		zerolog.Ctx(ctx).Warn().Err(err).Int64("attachment_id", attachmentId).Str("name", candidate.Name).Msg("chapter not created")
		return 0, err
	}

	s.changed(ctx, attachmentId, constant.TocActionCreated)
	return created.ID, nil
}

func (s *chapterService) UpdateEntry(ctx context.Context, id int64, patch dto.EntryPatch) (*dto.Entry, error) {
	var updated *entities.TableOfContentEntry
	err := s.repo.Transaction(ctx, func(ctx context.Context) error {
		row, err := s.repo.FindEntryById(ctx, id)
		if err != nil {
			return notFound(err)
		}
		if _, err := s.repo.LockAttachment(ctx, row.AttachmentID); err != nil {
			return notFound(err)
		}
		rows, err := s.repo.ListEntriesByAttachment(ctx, row.AttachmentID)
		if err != nil {
			return err
		}

		if patch.ContentName != nil {
			row.ContentName = strings.TrimSpace(*patch.ContentName)
		}
		if patch.Description != nil {
			row.Description = patch.Description
			if *patch.Description == "" {
				row.Description = nil
			}
		}
		if patch.StartTimestamp != nil {
			row.StartTimestamp = *patch.StartTimestamp
		}
		if patch.EndTimestamp != nil {
			row.EndTimestamp = *patch.EndTimestamp
		}

		if err := toc.Validate(toTocEntry(row), toTocEntries(rows), row.ID); err != nil {
			return err
		}
		updated = row
		return s.repo.SaveEntry(ctx, row)
	})
	if err != nil {
		return nil, err
	}

	s.changed(ctx, updated.AttachmentID, constant.TocActionUpdated)
	out := dto.EntryFromToc(toTocEntry(updated))
	return &out, nil
}

func (s *chapterService) DeleteEntry(ctx context.Context, id int64) error {
	var attachmentId int64
	err := s.repo.Transaction(ctx, func(ctx context.Context) error {
		row, err := s.repo.FindEntryById(ctx, id)
		if err != nil {
			return notFound(err)
		}
		attachmentId = row.AttachmentID
		if _, err := s.repo.LockAttachment(ctx, attachmentId); err != nil {
			return notFound(err)
		}
		if err := s.repo.DeleteEntry(ctx, id); err != nil {
			return err
		}

		rows, err := s.repo.ListEntriesByAttachment(ctx, attachmentId)
		if err != nil {
			return err
		}
		return s.writeOrder(ctx, toTocEntries(rows), toc.IDs(toTocEntries(rows)))
	})
	if err != nil {
		return err
	}

	s.changed(ctx, attachmentId, constant.TocActionDeleted)
	return nil
}

// ReorderEntries applies orderedIds as the new presentation order. The ids
// must be exactly the attachment's current chapters; anything else means the
// caller worked from a stale list.
func (s *chapterService) ReorderEntries(ctx context.Context, attachmentId int64, orderedIds []int64) ([]dto.Entry, error) {
	var result []dto.Entry
	err := s.repo.Transaction(ctx, func(ctx context.Context) error {
		if _, err := s.repo.LockAttachment(ctx, attachmentId); err != nil {
			return notFound(err)
		}
		rows, err := s.repo.ListEntriesByAttachment(ctx, attachmentId)
		if err != nil {
			return err
		}
		if err := s.writeOrder(ctx, toTocEntries(rows), orderedIds); err != nil {
			return err
		}
		rows, err = s.repo.ListEntriesByAttachment(ctx, attachmentId)
		if err != nil {
			return err
		}
		if err := toc.CheckInvariants(toTocEntries(rows)); err != nil {
			return err
		}
		result = toEntryDTOs(rows)
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.changed(ctx, attachmentId, constant.TocActionReordered)
	return result, nil
}

func (s *chapterService) writeOrder(ctx context.Context, current []toc.Entry, orderedIds []int64) error {
	ordered, err := toc.ApplyOrder(current, orderedIds)
	if err != nil {
		return errors.Join(ErrStaleOrder, err)
	}
	previous := make(map[int64]int, len(current))
	for _, e := range current {
		previous[e.ID] = e.Order
	}
	for _, e := range ordered {
		if previous[e.ID] == e.Order {
			continue
		}
		if err := s.repo.UpdateEntryOrder(ctx, e.ID, e.Order); err != nil {
			return err
		}
	}
	return nil
}

// changed drops the cached list and announces the change to other consumers.
func (s *chapterService) changed(ctx context.Context, attachmentId int64, action constant.TocAction) {
	if err := s.cache.Invalidate(ctx, attachmentId); err != nil {
		zerolog.Ctx(ctx).Warn().Err(err).Int64("attachment_id", attachmentId).Msg("chapter cache invalidation failed")
	}
	msg := dto.TocChangedMessage{
		MessageID:    uuid.New(),
		AttachmentID: attachmentId,
		Action:       action,
		OccurredAt:   time.Now().UTC(),
	}
	if err := s.events.Publish(ctx, constant.TocRoutingKey, msg); err != nil {
		zerolog.Ctx(ctx).Error().Err(err).Int64("attachment_id", attachmentId).Str("action", string(action)).Msg("failed to publish toc change")
	}
}
