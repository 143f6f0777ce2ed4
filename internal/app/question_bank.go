package app

import (
	"context"
	"log"
	"sync"

	"quiz-room-service/internal/domain"
)

// QuestionSource supplies the trivia content, fetched once at process start.
type QuestionSource interface {
	FetchQuestions(ctx context.Context) ([]domain.Question, error)
}

// QuestionBank holds the process-wide question list. It is filled once at
// boot and read-only afterwards, shared across all rooms. An empty bank is a
// legal (degraded) state: games started against it end immediately, and the
// health endpoint reports it.
type QuestionBank struct {
	mu        sync.RWMutex
	questions []domain.Question
}

func NewQuestionBank() *QuestionBank {
	return &QuestionBank{}
}

// Load fetches the question list from src. A fetch failure leaves the bank
// unchanged; there is no automatic retry.
func (b *QuestionBank) Load(ctx context.Context, src QuestionSource) error {
	questions, err := src.FetchQuestions(ctx)
	if err != nil {
		return err
	}
	b.mu.Lock()
	b.questions = questions
	b.mu.Unlock()
	log.Printf("question bank loaded: %d questions", len(questions))
	return nil
}

// Ready reports whether at least one question is loaded.
func (b *QuestionBank) Ready() bool {
	return b.Len() > 0
}

func (b *QuestionBank) Len() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.questions)
}

// Question returns the question at index i, if it exists.
func (b *QuestionBank) Question(i int) (domain.Question, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if i < 0 || i >= len(b.questions) {
		return domain.Question{}, false
	}
	return b.questions[i], true
}
