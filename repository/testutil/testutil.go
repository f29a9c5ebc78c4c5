package testutil

import (
	"context"
	"fmt"
	"github.com/google/uuid"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormLogger "gorm.io/gorm/logger"
	"testing"
	"time"
	"video-chapters/constant"
	"video-chapters/entities"
	"video-chapters/repository"
)

// Repo opens a migrated in-memory SQLite database private to tb.
func Repo(tb testing.TB) repository.ChapterRepository {
	tb.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: gormLogger.Default.LogMode(gormLogger.Silent),
	})
	if err != nil {
		tb.Fatalf("open sqlite: %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		tb.Fatalf("sqlite handle: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)
	tb.Cleanup(func() { _ = sqlDB.Close() })

	r := repository.NewRepoFromGorm(db)
	if err := r.Migrate(context.Background()); err != nil {
		tb.Fatalf("migrate: %v", err)
	}
	return r
}

func SeedAttachment(tb testing.TB, r repository.ChapterRepository, topicID int64, path string) *entities.Attachment {
	tb.Helper()
	a := &entities.Attachment{
		TopicID: topicID,
		Path:    path,
		Kind:    constant.AttachmentKindNormal,
	}
	if err := r.CreateAttachment(context.Background(), a); err != nil {
		tb.Fatalf("seed attachment: %v", err)
	}
	return a
}

func SeedQuiz(tb testing.TB, r repository.ChapterRepository, title string, deadline *time.Time) *entities.Quiz {
	tb.Helper()
	q := &entities.Quiz{Title: title, Deadline: deadline}
	if err := r.GetDB(context.Background()).Create(q).Error; err != nil {
		tb.Fatalf("seed quiz: %v", err)
	}
	return q
}

func SeedScore(tb testing.TB, r repository.ChapterRepository, quizID int64, viewerID uuid.UUID, score, total int) *entities.QuizScore {
	tb.Helper()
	s := &entities.QuizScore{QuizID: quizID, ViewerID: viewerID, Score: score, Total: total}
	if err := r.GetDB(context.Background()).Create(s).Error; err != nil {
		tb.Fatalf("seed score: %v", err)
	}
	return s
}
