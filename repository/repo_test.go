package repository_test

import (
	"context"
	"errors"
	"github.com/google/uuid"
	"gorm.io/gorm"
	"testing"
	"video-chapters/entities"
	"video-chapters/repository/testutil"
)

func TestTransaction_RollsBackOnError(t *testing.T) {
	r := testutil.Repo(t)
	ctx := context.Background()
	a := testutil.SeedAttachment(t, r, 1, "topics/1/a.mp4")

	boom := errors.New("boom")
	err := r.Transaction(ctx, func(ctx context.Context) error {
		if err := r.CreateEntry(ctx, &entities.TableOfContentEntry{
			AttachmentID: a.ID, ContentName: "Intro", StartTimestamp: 0, EndTimestamp: 10, OrderIndex: 1,
		}); err != nil {
			return err
		}
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("expected boom, got %v", err)
	}

	entries, err := r.ListEntriesByAttachment(ctx, a.ID)
	if err != nil {
		t.Fatalf("list entries: %v", err)
	}
	if len(entries) != 0 {
		t.Fatalf("expected rollback, found %d entries", len(entries))
	}
}

func TestListEntriesByAttachment_OrdersByIndex(t *testing.T) {
	r := testutil.Repo(t)
	ctx := context.Background()
	a := testutil.SeedAttachment(t, r, 1, "topics/1/a.mp4")
	other := testutil.SeedAttachment(t, r, 1, "topics/1/b.mp4")

	for _, e := range []*entities.TableOfContentEntry{
		{AttachmentID: a.ID, ContentName: "Second", StartTimestamp: 10, EndTimestamp: 20, OrderIndex: 2},
		{AttachmentID: a.ID, ContentName: "First", StartTimestamp: 0, EndTimestamp: 10, OrderIndex: 1},
		{AttachmentID: other.ID, ContentName: "Elsewhere", StartTimestamp: 0, EndTimestamp: 10, OrderIndex: 1},
	} {
		if err := r.CreateEntry(ctx, e); err != nil {
			t.Fatalf("create entry: %v", err)
		}
	}

	entries, err := r.ListEntriesByAttachment(ctx, a.ID)
	if err != nil {
		t.Fatalf("list entries: %v", err)
	}
	if len(entries) != 2 || entries[0].ContentName != "First" || entries[1].ContentName != "Second" {
		t.Fatalf("unexpected entries: %+v", entries)
	}
}

func TestFindLatestQuizScore(t *testing.T) {
	r := testutil.Repo(t)
	ctx := context.Background()
	quiz := testutil.SeedQuiz(t, r, "Checkpoint", nil)
	viewer := uuid.New()

	if _, err := r.FindLatestQuizScore(ctx, quiz.ID, viewer); !errors.Is(err, gorm.ErrRecordNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}

	testutil.SeedScore(t, r, quiz.ID, viewer, 3, 5)
	testutil.SeedScore(t, r, quiz.ID, viewer, 4, 5)
	testutil.SeedScore(t, r, quiz.ID, uuid.New(), 1, 5)

	score, err := r.FindLatestQuizScore(ctx, quiz.ID, viewer)
	if err != nil {
		t.Fatalf("find score: %v", err)
	}
	if score.Score != 4 || score.Total != 5 {
		t.Fatalf("unexpected score %d/%d", score.Score, score.Total)
	}
}
