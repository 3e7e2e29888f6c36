package memory

import (
	"context"
	"math/rand"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"quizroom-service/internal/domain"
)

// BankLoader fetches a question bank from a backing store (e.g., Postgres).
type BankLoader interface {
	LoadBank(ctx context.Context, subject, difficulty string) ([]domain.QuizItem, error)
}

// BankRepository caches question banks with TTL to avoid repeated DB hits.
type BankRepository struct {
	loader BankLoader
	ttl    time.Duration
	clock  func() time.Time
	sf     singleflight.Group

	mu    sync.RWMutex
	rnd   *rand.Rand
	cache map[string]cachedBank
}

type cachedBank struct {
	items     []domain.QuizItem
	expiresAt time.Time
}

func NewBankRepository(loader BankLoader, ttl time.Duration) *BankRepository {
	return &BankRepository{
		loader: loader,
		ttl:    ttl,
		clock:  time.Now,
		rnd:    rand.New(rand.NewSource(time.Now().UnixNano())),
		cache:  make(map[string]cachedBank),
	}
}

func (r *BankRepository) GetBank(ctx context.Context, subject, difficulty string) ([]domain.QuizItem, error) {
	key := BankKey(subject, difficulty)
	if items, ok := r.cached(key); ok {
		return items, nil
	}

	result, err, _ := r.sf.Do(key, func() (interface{}, error) {
		if items, ok := r.cached(key); ok {
			return items, nil
		}

		items, err := r.loader.LoadBank(ctx, subject, difficulty)
		if err != nil {
			return nil, err
		}

		r.mu.Lock()
		r.cache[key] = cachedBank{
			items:     items,
			expiresAt: r.clock().Add(r.ttlWithJitterLocked()),
		}
		r.mu.Unlock()
		return items, nil
	})
	if err != nil {
		return nil, err
	}
	return result.([]domain.QuizItem), nil
}

func (r *BankRepository) cached(key string) ([]domain.QuizItem, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	entry, ok := r.cache[key]
	if !ok || !entry.expiresAt.After(r.clock()) {
		return nil, false
	}
	return entry.items, true
}

// add up to 10% jitter to spread expirations
func (r *BankRepository) ttlWithJitterLocked() time.Duration {
	if r.ttl <= 0 {
		return 0
	}
	jitterMax := int64(r.ttl) / 10
	return r.ttl + time.Duration(r.rnd.Int63n(jitterMax+1))
}

// BankKey normalizes a subject/difficulty pair into a cache key.
func BankKey(subject, difficulty string) string {
	return strings.ToLower(strings.TrimSpace(subject)) + ":" + strings.ToLower(strings.TrimSpace(difficulty))
}

// StaticBankLoader is a simple loader backed by an in-memory map (useful for tests/demos).
// Banks are keyed by BankKey; an empty difficulty matches every difficulty of the subject.
type StaticBankLoader struct {
	banks map[string][]domain.QuizItem
}

func NewStaticBankLoader(banks map[string][]domain.QuizItem) *StaticBankLoader {
	normalized := make(map[string][]domain.QuizItem, len(banks))
	for key, items := range banks {
		subject, difficulty, _ := strings.Cut(key, ":")
		normalized[BankKey(subject, difficulty)] = items
	}
	return &StaticBankLoader{banks: normalized}
}

func (l *StaticBankLoader) LoadBank(_ context.Context, subject, difficulty string) ([]domain.QuizItem, error) {
	if strings.TrimSpace(difficulty) != "" {
		if items, ok := l.banks[BankKey(subject, difficulty)]; ok && len(items) > 0 {
			return items, nil
		}
		return nil, domain.ErrQuizNotFound
	}

	prefix := BankKey(subject, "")
	var items []domain.QuizItem
	for key, bank := range l.banks {
		if strings.HasPrefix(key, prefix) {
			items = append(items, bank...)
		}
	}
	if len(items) == 0 {
		return nil, domain.ErrQuizNotFound
	}
	return items, nil
}
