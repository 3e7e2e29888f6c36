package postgres

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/uptrace/bun"

	"quizroom-service/internal/domain"
)

// QuizResultRow is one leaderboard row of a finished run.
type QuizResultRow struct {
	bun.BaseModel `bun:"table:quiz_results"`

	ID            int64     `bun:"id,pk,autoincrement"`
	RunID         string    `bun:"run_id,notnull"`
	RoomID        string    `bun:"room_id,notnull"`
	ParticipantID string    `bun:"participant_id,notnull"`
	UserID        string    `bun:"user_id,nullzero"`
	DisplayName   string    `bun:"display_name,notnull"`
	Score         int       `bun:"score,notnull"`
	TimeTakenMs   int64     `bun:"time_taken_ms,notnull"`
	Rank          int       `bun:"rank,notnull"`
	TimedOut      bool      `bun:"timed_out,notnull"`
	Reason        string    `bun:"reason,notnull"`
	StartedAt     time.Time `bun:"started_at,notnull"`
	FinishedAt    time.Time `bun:"finished_at,notnull"`
}

// ResultStore persists final leaderboards. Republishing a run is a no-op.
type ResultStore struct {
	db *bun.DB
}

func NewResultStore(db *bun.DB) *ResultStore {
	return &ResultStore{db: db}
}

func (s *ResultStore) Publish(ctx context.Context, result domain.RoomResult) error {
	rows := resultRows(result)
	if len(rows) == 0 {
		return nil
	}
	_, err := s.db.NewInsert().
		Model(&rows).
		On("CONFLICT (run_id, participant_id) DO NOTHING").
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("insert quiz results: %w", err)
	}
	return nil
}

func resultRows(result domain.RoomResult) []QuizResultRow {
	rows := make([]QuizResultRow, 0, len(result.Leaderboard))
	for _, entry := range result.Leaderboard {
		rows = append(rows, QuizResultRow{
			RunID:         result.RunID,
			RoomID:        result.RoomID,
			ParticipantID: entry.ParticipantID,
			UserID:        entry.UserID,
			DisplayName:   entry.DisplayName,
			Score:         entry.Score,
			TimeTakenMs:   int64(math.Round(entry.TimeTakenSeconds * 1000)),
			Rank:          entry.Rank,
			TimedOut:      entry.TimedOut,
			Reason:        string(result.Reason),
			StartedAt:     result.StartedAt,
			FinishedAt:    result.FinishedAt,
		})
	}
	return rows
}

// RunResults returns the stored leaderboard of a run ordered by rank.
func (s *ResultStore) RunResults(ctx context.Context, runID string) ([]QuizResultRow, error) {
	var rows []QuizResultRow
	err := s.db.NewSelect().
		Model(&rows).
		Where("run_id = ?", runID).
		Order("rank ASC").
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("select quiz results: %w", err)
	}
	return rows, nil
}
