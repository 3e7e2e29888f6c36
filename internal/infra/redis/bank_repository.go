package redis

import (
	"context"
	"encoding/json"
	"errors"
	"math/rand"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/singleflight"

	"quizroom-service/internal/domain"
	"quizroom-service/internal/infra/memory"
)

// BankRepository caches question banks in Redis as JSON and falls back to a loader on cache miss.
// Banks are stored as: SET quiz:bank:{subject}:{difficulty} <json>
type BankRepository struct {
	client *redis.Client
	loader memory.BankLoader
	ttl    time.Duration
	sf     singleflight.Group

	mu  sync.Mutex
	rnd *rand.Rand
}

func NewBankRepository(client *redis.Client, loader memory.BankLoader, ttl time.Duration) *BankRepository {
	return &BankRepository{
		client: client,
		loader: loader,
		ttl:    ttl,
		rnd:    rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

func (r *BankRepository) GetBank(ctx context.Context, subject, difficulty string) ([]domain.QuizItem, error) {
	key := r.bankKey(subject, difficulty)
	if items, ok := r.cached(ctx, key); ok {
		return items, nil
	}

	result, err, _ := r.sf.Do(key, func() (interface{}, error) {
		// Re-check cache in case another goroutine filled it.
		if items, ok := r.cached(ctx, key); ok {
			return items, nil
		}

		items, err := r.loader.LoadBank(ctx, subject, difficulty)
		if err != nil {
			return nil, err
		}

		raw, err := json.Marshal(items)
		if err != nil {
			return nil, err
		}
		if err := r.client.Set(ctx, key, raw, r.ttlWithJitter()).Err(); err != nil {
			log.Warn().Err(err).Str("key", key).Msg("failed to cache question bank")
		}
		return items, nil
	})
	if err != nil {
		return nil, err
	}
	return result.([]domain.QuizItem), nil
}

func (r *BankRepository) cached(ctx context.Context, key string) ([]domain.QuizItem, bool) {
	raw, err := r.client.Get(ctx, key).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			log.Warn().Err(err).Str("key", key).Msg("question bank cache read failed")
		}
		return nil, false
	}
	var items []domain.QuizItem
	if err := json.Unmarshal(raw, &items); err != nil || len(items) == 0 {
		return nil, false
	}
	return items, true
}

func (r *BankRepository) bankKey(subject, difficulty string) string {
	return "quiz:bank:" + memory.BankKey(subject, difficulty)
}

func (r *BankRepository) ttlWithJitter() time.Duration {
	if r.ttl <= 0 {
		return 0
	}
	jitterMax := int64(r.ttl) / 10
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.ttl + time.Duration(r.rnd.Int63n(jitterMax+1))
}
