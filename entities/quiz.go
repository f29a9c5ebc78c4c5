package entities

import (
	"github.com/google/uuid"
	"time"
)

type Quiz struct {
	ID        int64      `json:"id" gorm:"primaryKey;autoIncrement"`
	Title     string     `json:"title" gorm:"type:varchar(255);not null"`
	Deadline  *time.Time `json:"deadline"`
	CreatedAt time.Time  `json:"created_at"`
}

func (Quiz) TableName() string {
	return "quizzes"
}

type QuizScore struct {
	ID        int64     `json:"id" gorm:"primaryKey;autoIncrement"`
	QuizID    int64     `json:"quiz_id" gorm:"not null;index:idx_quiz_scores_quiz_viewer"`
	ViewerID  uuid.UUID `json:"viewer_id" gorm:"type:uuid;not null;index:idx_quiz_scores_quiz_viewer"`
	Score     int       `json:"score"`
	Total     int       `json:"total"`
	CreatedAt time.Time `json:"created_at"`
}

func (QuizScore) TableName() string {
	return "quiz_scores"
}
