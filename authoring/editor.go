package authoring

import (
	"context"
	"errors"
	"fmt"
	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"
	"video-chapters/dto"
	"video-chapters/gateway"
	"video-chapters/toc"
)

var ErrUnknownEntry = errors.New("chapter not found on this attachment")

// Editor changes the saved chapters of one attachment. Every edit is checked
// against a fresh copy of the saved list before it is sent.
type Editor struct {
	gw           gateway.Gateway
	attachmentID int64
	validate     *validator.Validate
}

func NewEditor(gw gateway.Gateway, attachmentID int64) *Editor {
	return &Editor{gw: gw, attachmentID: attachmentID, validate: validator.New()}
}

// List returns the saved chapters in presentation order.
func (e *Editor) List(ctx context.Context) ([]toc.Entry, error) {
	entries, err := e.gw.ListEntries(ctx, e.attachmentID)
	if err != nil {
		return nil, err
	}
	toc.SortByOrder(entries)
	return entries, nil
}

func (e *Editor) Add(ctx context.Context, s toc.Staged) (toc.Entry, error) {
	if err := e.validate.Struct(s); err != nil {
		return toc.Entry{}, err
	}
	existing, err := e.List(ctx)
	if err != nil {
		return toc.Entry{}, err
	}
	candidate := s.Entry(e.attachmentID, len(existing)+1)
	if err := toc.Validate(candidate, existing, 0); err != nil {
		return toc.Entry{}, err
	}
	id, err := e.gw.CreateEntry(ctx, candidate)
	if err != nil {
		return toc.Entry{}, fmt.Errorf("save chapter %q: %w", s.Name, err)
	}
	candidate.ID = id
	return candidate, nil
}

func (e *Editor) Edit(ctx context.Context, id int64, patch dto.EntryPatch) (toc.Entry, error) {
	existing, err := e.List(ctx)
	if err != nil {
		return toc.Entry{}, err
	}
	current, ok := find(existing, id)
	if !ok {
		return toc.Entry{}, fmt.Errorf("%w: %d", ErrUnknownEntry, id)
	}

	candidate := current
	if patch.ContentName != nil {
		candidate.Name = *patch.ContentName
	}
	if patch.Description != nil {
		candidate.Description = *patch.Description
	}
	if patch.StartTimestamp != nil {
		candidate.Start = *patch.StartTimestamp
	}
	if patch.EndTimestamp != nil {
		candidate.End = *patch.EndTimestamp
	}
	if err := toc.Validate(candidate, existing, id); err != nil {
		return toc.Entry{}, err
	}
	if err := e.gw.UpdateEntry(ctx, id, patch); err != nil {
		return toc.Entry{}, fmt.Errorf("update chapter %q: %w", current.Name, err)
	}
	return candidate, nil
}

func (e *Editor) Delete(ctx context.Context, id int64) error {
	existing, err := e.List(ctx)
	if err != nil {
		return err
	}
	if _, ok := find(existing, id); !ok {
		return fmt.Errorf("%w: %d", ErrUnknownEntry, id)
	}
	return e.gw.DeleteEntry(ctx, id)
}

// Reorder saves presented as the new chapter order, renumbered 1..N. On any
// failure it returns the authoritative list from the backend with the error,
// so the caller can redraw what is actually stored.
func (e *Editor) Reorder(ctx context.Context, presented []toc.Entry) ([]toc.Entry, error) {
	existing, err := e.List(ctx)
	if err != nil {
		return nil, err
	}
	ordered, err := toc.ApplyOrder(existing, toc.IDs(presented))
	if err == nil {
		err = e.gw.ReorderEntries(ctx, e.attachmentID, toc.IDs(ordered))
	}
	if err != nil {
		zerolog.Ctx(ctx).Warn().Err(err).Int64("attachment_id", e.attachmentID).Msg("reorder failed, reloading chapters")
		reloaded, lerr := e.List(ctx)
		if lerr != nil {
			return existing, errors.Join(err, lerr)
		}
		return reloaded, err
	}
	return ordered, nil
}

func find(entries []toc.Entry, id int64) (toc.Entry, bool) {
	for _, e := range entries {
		if e.ID == id {
			return e, true
		}
	}
	return toc.Entry{}, false
}
