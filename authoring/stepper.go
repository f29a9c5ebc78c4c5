// Package authoring drives the two-step flow that stores a lesson video and
// then saves the chapters authored against it.
package authoring

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"
	"io"
	"math"
	"sync"
	"video-chapters/constant"
	"video-chapters/dto"
	"video-chapters/gateway"
	"video-chapters/storage"
	"video-chapters/toc"
)

var (
	ErrStepLocked         = errors.New("chapters can only be saved after the video is stored")
	ErrAlreadyStored      = errors.New("video already stored for this session")
	ErrOrphanedAttachment = errors.New("video stored but its attachment id could not be resolved")
	ErrCancelled          = errors.New("authoring cancelled")
	ErrInvalidTrigger     = errors.New("invalid quiz trigger")
)

// BlobStore receives uploaded video files.
type BlobStore interface {
	Put(ctx context.Context, objectPath string, body io.Reader, size int64, contentType string) error
}

// OrphanedAttachmentError reports a video that reached storage but cannot be
// chaptered because no attachment id could be recovered.
type OrphanedAttachmentError struct {
	Path string
}

func (e *OrphanedAttachmentError) Error() string {
	return fmt.Sprintf("%v: %s", ErrOrphanedAttachment, e.Path)
}

func (e *OrphanedAttachmentError) Unwrap() error {
	return ErrOrphanedAttachment
}

type Upload struct {
	FileName    string `validate:"required"`
	Body        io.Reader
	Size        int64 `validate:"gte=0"`
	ContentType string
	Kind        constant.AttachmentKind `validate:"required,oneof=normal interactive"`
	Trigger     *dto.Trigger
}

type Options struct {
	// LegacyIDProbing searches older response shapes for the attachment id
	// when the documented field is missing.
	LegacyIDProbing bool
}

type Stepper struct {
	topicID  int64
	gw       gateway.Gateway
	blobs    BlobStore
	opts     Options
	validate *validator.Validate

	flushMu sync.Mutex

	mu           sync.Mutex
	generation   int
	storing      bool
	attachmentID int64
	path         string
	staged       []toc.Staged
}

func NewStepper(topicID int64, gw gateway.Gateway, blobs BlobStore, opts Options) *Stepper {
	return &Stepper{
		topicID:  topicID,
		gw:       gw,
		blobs:    blobs,
		opts:     opts,
		validate: validator.New(),
	}
}

// AttachmentID is zero until step 1 succeeds.
func (s *Stepper) AttachmentID() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.attachmentID
}

func (s *Stepper) Path() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.path
}

func (s *Stepper) Staged() []toc.Staged {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]toc.Staged(nil), s.staged...)
}

// Stage queues a chapter for step 2. It may be called before or after the
// video is stored.
func (s *Stepper) Stage(entry toc.Staged) error {
	if err := s.validate.Struct(entry); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.staged = append(s.staged, entry)
	return nil
}

// Cancel drops the staged chapters and any attachment from step 1. Chapters
// already saved on the backend are left alone. A PersistAttachment still in
// flight will not apply its result.
func (s *Stepper) Cancel() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.generation++
	s.staged = nil
	s.attachmentID = 0
	s.path = ""
	s.storing = false
}

// PersistAttachment is step 1: upload the video, then register it as an
// attachment of the topic and resolve the new attachment's id.
func (s *Stepper) PersistAttachment(ctx context.Context, up Upload) (int64, error) {
	if err := s.validate.Struct(up); err != nil {
		return 0, err
	}
	if up.Body == nil {
		return 0, errors.New("upload has no body")
	}
	if err := checkTrigger(up); err != nil {
		return 0, err
	}

	s.mu.Lock()
	if s.attachmentID != 0 || s.storing {
		s.mu.Unlock()
		return 0, ErrAlreadyStored
	}
	s.storing = true
	generation := s.generation
	s.mu.Unlock()

	id, objectPath, err := s.persist(ctx, up)

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.generation != generation {
		return 0, ErrCancelled
	}
	s.storing = false
	if err != nil {
		return 0, err
	}
	if ctx.Err() != nil {
		return 0, errors.Join(ErrCancelled, ctx.Err())
	}
	s.attachmentID = id
	s.path = objectPath
	return id, nil
}

// checkTrigger applies the backend's trigger rules before any bytes are
// uploaded, so a rejected registration cannot leave an orphaned object.
func checkTrigger(up Upload) error {
	switch {
	case up.Kind == constant.AttachmentKindInteractive && up.Trigger == nil:
		return fmt.Errorf("%w: interactive videos need a quiz and timestamp", ErrInvalidTrigger)
	case up.Kind != constant.AttachmentKindInteractive && up.Trigger != nil:
		return fmt.Errorf("%w: only interactive videos carry a trigger", ErrInvalidTrigger)
	case up.Trigger == nil:
		return nil
	case up.Trigger.QuizID <= 0:
		return fmt.Errorf("%w: quiz id %d", ErrInvalidTrigger, up.Trigger.QuizID)
	case up.Trigger.Timestamp < 0 || up.Trigger.Timestamp > math.MaxInt32:
		return fmt.Errorf("%w: timestamp %d", ErrInvalidTrigger, up.Trigger.Timestamp)
	}
	return nil
}

func (s *Stepper) persist(ctx context.Context, up Upload) (int64, string, error) {
	l := zerolog.Ctx(ctx).With().Int64("topic_id", s.topicID).Logger()

	objectPath := storage.ObjectPath(s.topicID, up.FileName)
	contentType := up.ContentType
	if contentType == "" {
		contentType = storage.ContentType(up.FileName)
	}
	if err := s.blobs.Put(ctx, objectPath, up.Body, up.Size, contentType); err != nil {
		return 0, "", fmt.Errorf("upload %s: %w", up.FileName, err)
	}
	l.Info().Str("path", objectPath).Msg("video stored")

	res, err := s.gw.CreateAttachment(ctx, gateway.CreateAttachmentRequest{
		TopicID: s.topicID,
		Path:    objectPath,
		Kind:    up.Kind,
		Trigger: up.Trigger,
	})
	if err != nil {
		return 0, objectPath, fmt.Errorf("create attachment for %s: %w", objectPath, err)
	}

	id, err := s.resolveID(ctx, l, objectPath, res)
	if err != nil {
		return 0, objectPath, err
	}
	l.Info().Int64("attachment_id", id).Str("path", objectPath).Msg("attachment created")
	return id, objectPath, nil
}

func (s *Stepper) resolveID(ctx context.Context, l zerolog.Logger, objectPath string, res gateway.CreateAttachmentResult) (int64, error) {
	if res.ID > 0 {
		return res.ID, nil
	}
	if s.opts.LegacyIDProbing {
		if id, loc, ok := gateway.ProbeID(res.Raw); ok {
			l.Debug().Str("location", loc).Int64("attachment_id", id).Msg("attachment id found in legacy response field")
			return id, nil
		}
	}

	l.Warn().Str("path", objectPath).RawJSON("response", compactJSON(res.Raw)).Msg("attachment id missing from response, falling back to topic listing")
	list, err := s.gw.ListAttachments(ctx, s.topicID)
	if err != nil {
		l.Error().Err(err).Msg("ListAttachments")
		return 0, &OrphanedAttachmentError{Path: objectPath}
	}
	if a, ok := pickAttachment(list, objectPath); ok {
		return a.ID, nil
	}
	return 0, &OrphanedAttachmentError{Path: objectPath}
}

// pickAttachment prefers the attachment stored at objectPath, otherwise the
// most recently created one.
func pickAttachment(list []dto.Attachment, objectPath string) (dto.Attachment, bool) {
	var latest dto.Attachment
	found := false
	for _, a := range list {
		if a.ID <= 0 {
			continue
		}
		if a.Path == objectPath {
			return a, true
		}
		if !found || a.CreatedAt.After(latest.CreatedAt) || (a.CreatedAt.Equal(latest.CreatedAt) && a.ID > latest.ID) {
			latest = a
			found = true
		}
	}
	return latest, found
}

func compactJSON(raw json.RawMessage) []byte {
	if !json.Valid(raw) {
		b, _ := json.Marshal(string(raw))
		return b
	}
	return raw
}

// Flush is step 2: validate every staged chapter against the saved ones, then
// create the accepted chapters one at a time. Saved chapters leave the stage;
// rejected and unsent ones stay.
func (s *Stepper) Flush(ctx context.Context) (FlushReport, error) {
	s.flushMu.Lock()
	defer s.flushMu.Unlock()

	s.mu.Lock()
	attachmentID := s.attachmentID
	generation := s.generation
	snapshot := append([]toc.Staged(nil), s.staged...)
	s.mu.Unlock()

	if attachmentID == 0 {
		return FlushReport{}, ErrStepLocked
	}
	report := FlushReport{Attempted: len(snapshot)}
	if len(snapshot) == 0 {
		return report, nil
	}

	existing, err := s.gw.ListEntries(ctx, attachmentID)
	if err != nil {
		report.Failure = fmt.Errorf("load saved chapters: %w", err)
		return report, report.Err()
	}

	accepted, rejected := toc.ValidateStaged(snapshot, existing)
	report.Rejected = rejected

	saved := make(map[int]bool, len(accepted))
	order := len(existing) + 1
	next := 0
	for i, st := range snapshot {
		if next >= len(accepted) || accepted[next] != st {
			continue
		}
		next++
		id, err := s.gw.CreateEntry(ctx, st.Entry(attachmentID, order))
		if err != nil {
			report.Failure = fmt.Errorf("save chapter %q: %w", st.Name, err)
			break
		}
		zerolog.Ctx(ctx).Debug().Int64("entry_id", id).Str("name", st.Name).Int("order", order).Msg("chapter saved")
		saved[i] = true
		report.Saved++
		order++
	}

	s.mu.Lock()
	if s.generation == generation {
		remaining := make([]toc.Staged, 0, len(s.staged))
		for i, st := range snapshot {
			if !saved[i] {
				remaining = append(remaining, st)
			}
		}
		s.staged = append(remaining, s.staged[len(snapshot):]...)
	}
	s.mu.Unlock()

	return report, report.Err()
}
