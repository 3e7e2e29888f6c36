package app

import (
	"context"
	"math/rand"
	"sync"
	"time"

	"quizroom-service/internal/domain"
)

// BankQuizSource draws a random quiz out of a question bank.
type BankQuizSource struct {
	bank QuestionBank

	mu  sync.Mutex
	rnd *rand.Rand
}

func NewBankQuizSource(bank QuestionBank) *BankQuizSource {
	return NewBankQuizSourceWithRand(bank, rand.New(rand.NewSource(time.Now().UnixNano())))
}

// NewBankQuizSourceWithRand is used by tests for a deterministic draw.
func NewBankQuizSourceWithRand(bank QuestionBank, rnd *rand.Rand) *BankQuizSource {
	return &BankQuizSource{bank: bank, rnd: rnd}
}

// GenerateQuiz returns up to req.Count questions in random order.
func (s *BankQuizSource) GenerateQuiz(ctx context.Context, req domain.QuizRequest) ([]domain.QuizItem, error) {
	bank, err := s.bank.GetBank(ctx, req.Subject, req.Difficulty)
	if err != nil {
		return nil, err
	}
	if len(bank) == 0 {
		return nil, domain.ErrQuizNotFound
	}

	s.mu.Lock()
	order := s.rnd.Perm(len(bank))
	s.mu.Unlock()

	count := req.Count
	if count <= 0 || count > len(bank) {
		count = len(bank)
	}
	quiz := make([]domain.QuizItem, 0, count)
	for _, idx := range order[:count] {
		quiz = append(quiz, bank[idx])
	}
	return quiz, nil
}
