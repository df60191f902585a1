package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"
)

// OTPRecord is the stored state of one issued code.
type OTPRecord struct {
	Code      string
	CreatedAt time.Time
	ExpiresAt time.Time
}

var errOTPNotFound = errors.New("otp not found")

// consumeScript deletes the record only when the candidate matches, so two
// concurrent validations of one code cannot both succeed.
var consumeScript = goredis.NewScript(`
local code = redis.call("HGET", KEYS[1], "code")
if code == false then
	return -1
end
if code == ARGV[1] then
	redis.call("DEL", KEYS[1])
	return 1
end
return 0
`)

// OTPStore keeps one-time passwords as Redis hashes with a TTL.
type OTPStore struct {
	client goredis.Cmdable
}

func NewOTPStore(client goredis.Cmdable) *OTPStore {
	return &OTPStore{client: client}
}

func OTPKey(purpose, userID string) string {
	return "otp:" + purpose + ":" + userID
}

// Save replaces any previous record under key. The key lives for
// ExpiresAt - CreatedAt, so the caller's clock decides the lifetime.
func (s *OTPStore) Save(ctx context.Context, key string, rec OTPRecord) error {
	ttl := rec.ExpiresAt.Sub(rec.CreatedAt)
	if ttl <= 0 {
		return fmt.Errorf("otp record for %s is already expired", key)
	}
	_, err := s.client.TxPipelined(ctx, func(pipe goredis.Pipeliner) error {
		pipe.Del(ctx, key)
		pipe.HSet(ctx, key,
			"code", rec.Code,
			"createdAt", rec.CreatedAt.UTC().Format(time.RFC3339Nano),
			"expiresAt", rec.ExpiresAt.UTC().Format(time.RFC3339Nano),
		)
		pipe.PExpire(ctx, key, ttl)
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to store otp: %w", err)
	}
	return nil
}

func (s *OTPStore) load(ctx context.Context, key string) (OTPRecord, error) {
	fields, err := s.client.HGetAll(ctx, key).Result()
	if err != nil {
		return OTPRecord{}, fmt.Errorf("failed to load otp: %w", err)
	}
	code, ok := fields["code"]
	if !ok {
		return OTPRecord{}, errOTPNotFound
	}
	rec := OTPRecord{Code: code}
	rec.CreatedAt, _ = time.Parse(time.RFC3339Nano, fields["createdAt"])
	rec.ExpiresAt, _ = time.Parse(time.RFC3339Nano, fields["expiresAt"])
	return rec, nil
}

// Consume atomically deletes the record under key if it holds candidate.
// A missing record and a mismatch both report false; a mismatch keeps the
// record.
func (s *OTPStore) Consume(ctx context.Context, key, candidate string) (bool, error) {
	res, err := consumeScript.Run(ctx, s.client, []string{key}, candidate).Int()
	if err != nil {
		return false, fmt.Errorf("failed to validate otp: %w", err)
	}
	return res == 1, nil
}

func (s *OTPStore) Delete(ctx context.Context, key string) error {
	if err := s.client.Del(ctx, key).Err(); err != nil {
		return fmt.Errorf("failed to delete otp: %w", err)
	}
	return nil
}
