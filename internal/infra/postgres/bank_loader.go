package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v4/pgxpool"

	"quizroom-service/internal/domain"
)

// BankLoader loads question banks from the questions table.
type BankLoader struct {
	pool *pgxpool.Pool
}

func NewBankLoader(pool *pgxpool.Pool) *BankLoader {
	return &BankLoader{pool: pool}
}

// LoadBank returns every question of a subject. An empty difficulty matches all difficulties.
func (l *BankLoader) LoadBank(ctx context.Context, subject, difficulty string) ([]domain.QuizItem, error) {
	rows, err := l.pool.Query(ctx, `
		SELECT question, options, answer
		FROM questions
		WHERE lower(subject) = lower($1) AND ($2 = '' OR lower(difficulty) = lower($2))
		ORDER BY id`, subject, difficulty)
	if err != nil {
		return nil, fmt.Errorf("load bank: %w", err)
	}
	defer rows.Close()

	var items []domain.QuizItem
	for rows.Next() {
		var item domain.QuizItem
		if err := rows.Scan(&item.Question, &item.Options, &item.Answer); err != nil {
			return nil, fmt.Errorf("scan question: %w", err)
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("load bank: %w", err)
	}
	if len(items) == 0 {
		return nil, domain.ErrQuizNotFound
	}
	return items, nil
}
