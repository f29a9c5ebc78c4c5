package authoring_test

import (
	"context"
	"encoding/json"
	"errors"
	"github.com/google/uuid"
	"io"
	"sort"
	"sync"
	"time"
	"video-chapters/dto"
	"video-chapters/gateway"
	"video-chapters/toc"
)

var errBackendDown = errors.New("backend down")

// fakeGateway keeps attachments and chapters in memory.
type fakeGateway struct {
	mu sync.Mutex

	nextID      int64
	attachments []dto.Attachment
	entries     map[int64]toc.Entry

	// createResponse overrides the raw body returned by CreateAttachment.
	// The documented id is dropped when it is set.
	createResponse func(id int64) string
	createEntered  chan struct{}
	createBlock    chan struct{}
	listAttErr     error
	failCreateAt   int
	reorderErr     error

	creates     []toc.Entry
	reorderCall int
}

func newFakeGateway() *fakeGateway {
	return &fakeGateway{nextID: 100, entries: map[int64]toc.Entry{}}
}

func (g *fakeGateway) id() int64 {
	g.nextID++
	return g.nextID
}

func (g *fakeGateway) CreateAttachment(ctx context.Context, req gateway.CreateAttachmentRequest) (gateway.CreateAttachmentResult, error) {
	if g.createEntered != nil {
		close(g.createEntered)
	}
	if g.createBlock != nil {
		select {
		case <-g.createBlock:
		case <-ctx.Done():
		}
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	a := dto.Attachment{
		ID:        g.id(),
		TopicID:   req.TopicID,
		Path:      req.Path,
		Kind:      req.Kind,
		Trigger:   req.Trigger,
		CreatedAt: time.Date(2026, 1, 1, 0, 0, len(g.attachments), 0, time.UTC),
	}
	g.attachments = append(g.attachments, a)
	if g.createResponse != nil {
		return gateway.CreateAttachmentResult{Raw: json.RawMessage(g.createResponse(a.ID))}, nil
	}
	raw, _ := json.Marshal(dto.Envelope[dto.IDResponse]{Status: dto.StatusSuccess, Data: dto.IDResponse{ID: a.ID}})
	return gateway.CreateAttachmentResult{ID: a.ID, Raw: raw}, nil
}

func (g *fakeGateway) ListAttachments(_ context.Context, topicID int64) ([]dto.Attachment, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.listAttErr != nil {
		return nil, g.listAttErr
	}
	var out []dto.Attachment
	for _, a := range g.attachments {
		if a.TopicID == topicID {
			out = append(out, a)
		}
	}
	return out, nil
}

func (g *fakeGateway) GetAttachment(_ context.Context, id int64) (dto.Attachment, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	for _, a := range g.attachments {
		if a.ID == id {
			return a, nil
		}
	}
	return dto.Attachment{}, gateway.ErrNotFound
}

func (g *fakeGateway) ListEntries(_ context.Context, attachmentID int64) ([]toc.Entry, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	var out []toc.Entry
	for _, e := range g.entries {
		if e.AttachmentID == attachmentID {
			out = append(out, e)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Order < out[j].Order })
	return out, nil
}

func (g *fakeGateway) CreateEntry(_ context.Context, entry toc.Entry) (int64, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.creates = append(g.creates, entry)
	if g.failCreateAt > 0 && len(g.creates) == g.failCreateAt {
		return 0, errBackendDown
	}
	entry.ID = g.id()
	g.entries[entry.ID] = entry
	return entry.ID, nil
}

func (g *fakeGateway) UpdateEntry(_ context.Context, id int64, patch dto.EntryPatch) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	e, ok := g.entries[id]
	if !ok {
		return gateway.ErrNotFound
	}
	if patch.ContentName != nil {
		e.Name = *patch.ContentName
	}
	if patch.StartTimestamp != nil {
		e.Start = *patch.StartTimestamp
	}
	if patch.EndTimestamp != nil {
		e.End = *patch.EndTimestamp
	}
	g.entries[id] = e
	return nil
}

func (g *fakeGateway) DeleteEntry(_ context.Context, id int64) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if _, ok := g.entries[id]; !ok {
		return gateway.ErrNotFound
	}
	delete(g.entries, id)
	return nil
}

func (g *fakeGateway) ReorderEntries(_ context.Context, _ int64, orderedIDs []int64) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.reorderCall++
	if g.reorderErr != nil {
		return g.reorderErr
	}
	for i, id := range orderedIDs {
		e := g.entries[id]
		e.Order = i + 1
		g.entries[id] = e
	}
	return nil
}

func (g *fakeGateway) GetQuizCompletion(context.Context, int64, uuid.UUID) (dto.QuizCompletion, error) {
	return dto.QuizCompletion{}, nil
}

func (g *fakeGateway) seed(attachmentID int64, name string, start, end, order int) int64 {
	g.mu.Lock()
	defer g.mu.Unlock()
	id := g.id()
	g.entries[id] = toc.Entry{ID: id, AttachmentID: attachmentID, Name: name, Start: start, End: end, Order: order}
	return id
}

type memBlobs struct {
	mu      sync.Mutex
	objects map[string][]byte
	err     error
}

func newMemBlobs() *memBlobs {
	return &memBlobs{objects: map[string][]byte{}}
}

func (m *memBlobs) Put(_ context.Context, path string, body io.Reader, _ int64, _ string) error {
	if m.err != nil {
		return m.err
	}
	raw, err := io.ReadAll(body)
	if err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.objects[path] = raw
	return nil
}
