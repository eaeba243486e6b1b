package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"quizroom-service/internal/domain"
)

type countingLoader struct {
	banks map[string][]domain.Question
	calls int
}

func (l *countingLoader) LoadBank(_ context.Context, bankID string) ([]domain.Question, error) {
	l.calls++
	if questions, ok := l.banks[bankID]; ok {
		return questions, nil
	}
	return nil, domain.ErrBankNotFound
}

func TestQuestionRepositoryCachesWithinTTL(t *testing.T) {
	loader := &countingLoader{banks: map[string][]domain.Question{
		"default": {{ID: "q1", Prompt: "?", Options: []string{"a", "b"}, CorrectIndex: 0}},
	}}
	repo := NewQuestionRepository(loader, time.Minute)

	now := time.Now()
	repo.clock = func() time.Time { return now }

	for i := 0; i < 3; i++ {
		questions, err := repo.QuestionBank(context.Background(), "default")
		if err != nil {
			t.Fatalf("load %d: %v", i, err)
		}
		if len(questions) != 1 || questions[0].ID != "q1" {
			t.Fatalf("unexpected bank: %+v", questions)
		}
	}
	if loader.calls != 1 {
		t.Fatalf("expected a single loader hit, got %d", loader.calls)
	}
}

func TestQuestionRepositoryReloadsAfterExpiry(t *testing.T) {
	loader := &countingLoader{banks: map[string][]domain.Question{
		"default": {{ID: "q1"}},
	}}
	repo := NewQuestionRepository(loader, time.Minute)

	now := time.Now()
	repo.clock = func() time.Time { return now }

	if _, err := repo.QuestionBank(context.Background(), "default"); err != nil {
		t.Fatalf("first load: %v", err)
	}

	// Past the TTL plus its 10% jitter ceiling.
	now = now.Add(2 * time.Minute)
	if _, err := repo.QuestionBank(context.Background(), "default"); err != nil {
		t.Fatalf("second load: %v", err)
	}
	if loader.calls != 2 {
		t.Fatalf("expected reload after expiry, got %d calls", loader.calls)
	}
}

func TestQuestionRepositoryPropagatesLoaderError(t *testing.T) {
	repo := NewQuestionRepository(&countingLoader{banks: map[string][]domain.Question{}}, time.Minute)

	_, err := repo.QuestionBank(context.Background(), "missing")
	if !errors.Is(err, domain.ErrBankNotFound) {
		t.Fatalf("expected ErrBankNotFound, got %v", err)
	}
}

func TestStaticBankLoader(t *testing.T) {
	loader := NewStaticBankLoader(map[string][]domain.Question{
		"trivia": {{ID: "q1"}},
	})

	questions, err := loader.LoadBank(context.Background(), "trivia")
	if err != nil || len(questions) != 1 {
		t.Fatalf("expected bank hit, got %v %v", questions, err)
	}
	if _, err := loader.LoadBank(context.Background(), "nope"); !errors.Is(err, domain.ErrBankNotFound) {
		t.Fatalf("expected ErrBankNotFound, got %v", err)
	}
}
