package memory

import (
	"context"

	"quiz-room-service/internal/domain"
)

// StaticQuestionSource serves a fixed question list (useful for tests and
// demos without a question API or database).
type StaticQuestionSource struct {
	questions []domain.Question
}

func NewStaticQuestionSource(questions []domain.Question) *StaticQuestionSource {
	return &StaticQuestionSource{questions: questions}
}

func (s *StaticQuestionSource) FetchQuestions(_ context.Context) ([]domain.Question, error) {
	out := make([]domain.Question, len(s.questions))
	copy(out, s.questions)
	return out, nil
}
