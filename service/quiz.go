package service

import (
	"context"
	"errors"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"video-chapters/dto"
	"video-chapters/repository"
)

type QuizService interface {
	Completion(ctx context.Context, quizId int64, viewerId uuid.UUID) (dto.QuizCompletion, error)
}

type quizService struct {
	repo repository.ChapterRepository
}

func NewQuizService(repo repository.ChapterRepository) QuizService {
	return &quizService{repo: repo}
}

// Completion reports whether viewerId has a recorded score for the quiz.
func (s *quizService) Completion(ctx context.Context, quizId int64, viewerId uuid.UUID) (dto.QuizCompletion, error) {
	quiz, err := s.repo.FindQuizById(ctx, quizId)
	if err != nil {
		if errors.Is(notFound(err), ErrNotFound) {
			return dto.QuizCompletion{}, errors.Join(ErrQuizNotFound, err)
		}
		return dto.QuizCompletion{}, err
	}

	out := dto.QuizCompletion{Deadline: quiz.Deadline}
	score, err := s.repo.FindLatestQuizScore(ctx, quizId, viewerId)
	switch {
	case errors.Is(notFound(err), ErrNotFound):
		return out, nil
	case err != nil:
		zerolog.Ctx(ctx).Error().Err(err).Int64("quiz_id", quizId).Msg("failed to load quiz score")
		return dto.QuizCompletion{}, err
	}

	out.Completed = true
	out.Score = &score.Score
	out.Total = &score.Total
	return out, nil
}
