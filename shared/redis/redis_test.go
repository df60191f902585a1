package redis

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	goredis "github.com/redis/go-redis/v9"
)

type sampleView struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

func newTestRedis(t *testing.T) (*miniredis.Miniredis, *goredis.Client) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	return mr, client
}

func TestViewCacheRoundTrip(t *testing.T) {
	mr, client := newTestRedis(t)
	cache := NewViewCache[sampleView](client, "sample:", time.Minute)
	ctx := context.Background()

	if _, ok := cache.Get(ctx, "1"); ok {
		t.Fatal("expected miss on empty cache")
	}
	cache.Set(ctx, "1", &sampleView{ID: "1", Name: "first"})
	got, ok := cache.Get(ctx, "1")
	if !ok || got.Name != "first" {
		t.Fatalf("expected cached view, got %+v ok=%v", got, ok)
	}
	if !mr.Exists("sample:1") {
		t.Fatal("expected prefixed key in redis")
	}

	mr.FastForward(2 * time.Minute)
	if _, ok := cache.Get(ctx, "1"); ok {
		t.Fatal("expected entry to expire")
	}

	cache.Set(ctx, "2", &sampleView{ID: "2"})
	cache.Delete(ctx, "2")
	if _, ok := cache.Get(ctx, "2"); ok {
		t.Fatal("expected deleted entry to miss")
	}
}

func TestOTPStoreConsume(t *testing.T) {
	mr, client := newTestRedis(t)
	store := NewOTPStore(client)
	ctx := context.Background()
	key := OTPKey("transfer", "usr-1")

	now := time.Now()
	if err := store.Save(ctx, key, OTPRecord{Code: "123456", CreatedAt: now, ExpiresAt: now.Add(10 * time.Minute)}); err != nil {
		t.Fatalf("Save: %v", err)
	}
	rec, err := store.load(ctx, key)
	if err != nil || rec.Code != "123456" {
		t.Fatalf("Load = %+v, %v", rec, err)
	}

	ok, err := store.Consume(ctx, key, "000000")
	if err != nil || ok {
		t.Fatalf("wrong code: ok=%v err=%v", ok, err)
	}
	if !mr.Exists(key) {
		t.Fatal("a mismatch must keep the record")
	}

	ok, err = store.Consume(ctx, key, "123456")
	if err != nil || !ok {
		t.Fatalf("right code: ok=%v err=%v", ok, err)
	}
	ok, _ = store.Consume(ctx, key, "123456")
	if ok {
		t.Fatal("a consumed code must not validate twice")
	}
	if _, err := store.load(ctx, key); !errors.Is(err, errOTPNotFound) {
		t.Fatalf("expected errOTPNotFound, got %v", err)
	}
}

func TestOTPStoreExpiry(t *testing.T) {
	mr, client := newTestRedis(t)
	store := NewOTPStore(client)
	ctx := context.Background()
	key := OTPKey("transfer", "usr-2")

	now := time.Now()
	if err := store.Save(ctx, key, OTPRecord{Code: "654321", CreatedAt: now, ExpiresAt: now.Add(10 * time.Minute)}); err != nil {
		t.Fatalf("Save: %v", err)
	}
	mr.FastForward(11 * time.Minute)
	if ok, _ := store.Consume(ctx, key, "654321"); ok {
		t.Fatal("expired code must not validate")
	}

	if err := store.Save(ctx, key, OTPRecord{Code: "1", CreatedAt: now, ExpiresAt: now.Add(-time.Second)}); err == nil {
		t.Fatal("expected error saving an expired record")
	}
}

func TestOTPStoreTTLFollowsRecordClock(t *testing.T) {
	mr, client := newTestRedis(t)
	store := NewOTPStore(client)
	ctx := context.Background()
	key := OTPKey("debt-payment", "usr-4")

	issued := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	if err := store.Save(ctx, key, OTPRecord{Code: "222222", CreatedAt: issued, ExpiresAt: issued.Add(10 * time.Minute)}); err != nil {
		t.Fatalf("Save: %v", err)
	}
	if ttl := mr.TTL(key); ttl != 10*time.Minute {
		t.Fatalf("ttl = %s, want 10m", ttl)
	}
	rec, err := store.load(ctx, key)
	if err != nil || !rec.ExpiresAt.Equal(issued.Add(10*time.Minute)) {
		t.Fatalf("load = %+v, %v", rec, err)
	}
}

func TestOTPStoreConcurrentConsumeSucceedsOnce(t *testing.T) {
	_, client := newTestRedis(t)
	store := NewOTPStore(client)
	ctx := context.Background()
	key := OTPKey("interbank-transfer", "usr-3")
	now := time.Now()
	if err := store.Save(ctx, key, OTPRecord{Code: "111111", CreatedAt: now, ExpiresAt: now.Add(time.Minute)}); err != nil {
		t.Fatalf("Save: %v", err)
	}

	var wins int32
	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if ok, err := store.Consume(ctx, key, "111111"); err == nil && ok {
				atomic.AddInt32(&wins, 1)
			}
		}()
	}
	wg.Wait()
	if wins != 1 {
		t.Fatalf("expected exactly one successful validation, got %d", wins)
	}
}
