package app

import (
	"context"
	"errors"

	"github.com/rs/zerolog/log"

	"quizroom-service/internal/domain"
)

// MultiSink fans a result out to several sinks. Every sink is attempted.
type MultiSink []ResultSink

func (m MultiSink) Publish(ctx context.Context, result domain.RoomResult) error {
	var errs []error
	for _, sink := range m {
		if err := sink.Publish(ctx, result); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// LogSink writes each result to the service log.
type LogSink struct{}

func (LogSink) Publish(_ context.Context, result domain.RoomResult) error {
	evt := log.Info().
		Str("room_id", result.RoomID).
		Str("run_id", result.RunID).
		Str("reason", string(result.Reason)).
		Time("finished_at", result.FinishedAt)
	if len(result.Leaderboard) > 0 {
		winner := result.Leaderboard[0]
		evt = evt.Str("winner", winner.DisplayName).Int("winner_score", winner.Score)
	}
	evt.Int("entries", len(result.Leaderboard)).Msg("quiz result")
	return nil
}
