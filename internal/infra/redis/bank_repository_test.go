package redis

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"

	"quizroom-service/internal/domain"
	"quizroom-service/internal/infra/memory"
)

func TestBankRepositoryCachesInRedis(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("run miniredis: %v", err)
	}
	defer mr.Close()

	loader := &countingLoader{BankLoader: memory.NewStaticBankLoader(memory.SampleBanks())}
	repo := NewBankRepository(newClient(mr), loader, time.Minute)

	items, err := repo.GetBank(context.Background(), "math", "easy")
	if err != nil {
		t.Fatalf("get bank: %v", err)
	}
	if loader.calls.Load() != 1 {
		t.Fatalf("expected loader called once, got %d", loader.calls.Load())
	}
	if !mr.Exists("quiz:bank:math:easy") {
		t.Fatalf("expected bank cached in redis")
	}
	if ttl := mr.TTL("quiz:bank:math:easy"); ttl < time.Minute || ttl > time.Minute+6*time.Second {
		t.Fatalf("expected jittered ttl, got %s", ttl)
	}

	// Second call should hit cache, loader not incremented.
	cached, err := repo.GetBank(context.Background(), "math", "easy")
	if err != nil {
		t.Fatalf("get bank 2: %v", err)
	}
	if loader.calls.Load() != 1 {
		t.Fatalf("expected cache hit, loader calls=%d", loader.calls.Load())
	}
	if len(cached) != len(items) || cached[0].Answer != items[0].Answer {
		t.Fatalf("cached bank differs from loaded bank")
	}
}

func TestBankRepositoryReloadsAfterExpiry(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("run miniredis: %v", err)
	}
	defer mr.Close()

	loader := &countingLoader{BankLoader: memory.NewStaticBankLoader(memory.SampleBanks())}
	repo := NewBankRepository(newClient(mr), loader, time.Minute)

	if _, err := repo.GetBank(context.Background(), "science", "medium"); err != nil {
		t.Fatalf("get bank: %v", err)
	}
	mr.FastForward(2 * time.Minute)
	if _, err := repo.GetBank(context.Background(), "science", "medium"); err != nil {
		t.Fatalf("get bank after expiry: %v", err)
	}
	if loader.calls.Load() != 2 {
		t.Fatalf("expected reload after expiry, loader calls=%d", loader.calls.Load())
	}
}

type countingLoader struct {
	memory.BankLoader
	calls atomic.Int32
}

func (l *countingLoader) LoadBank(ctx context.Context, subject, difficulty string) ([]domain.QuizItem, error) {
	l.calls.Add(1)
	return l.BankLoader.LoadBank(ctx, subject, difficulty)
}
