// Package otp keeps password-reset codes in redis with a TTL, so a code
// survives process restarts and at most one code is active per email.
package otp

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"math/big"
	"time"

	"github.com/redis/go-redis/v9"
)

const keyPrefix = "otp:"

// Validity window for a generated code.
const TTL = 10 * time.Minute

var (
	ErrNotFound = errors.New("no otp found for this email")
	ErrMismatch = errors.New("otp does not match")
)

type Store struct {
	client *redis.Client
}

func NewStore(redisURL string) (*Store, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("parsing redis URL: %w", err)
	}
	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("pinging redis: %w", err)
	}
	return &Store{client: client}, nil
}

// Generate creates a six digit code for the email and stores it with the
// TTL. A previous unexpired code for the same email is replaced.
func (s *Store) Generate(ctx context.Context, email string) (string, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(900000))
	if err != nil {
		return "", fmt.Errorf("generating otp: %w", err)
	}
	code := fmt.Sprintf("%06d", n.Int64()+100000)

	if err := s.client.Set(ctx, keyPrefix+email, code, TTL).Err(); err != nil {
		return "", fmt.Errorf("storing otp: %w", err)
	}
	return code, nil
}

// Check compares the code without consuming it, for the pre-reset
// verification step.
func (s *Store) Check(ctx context.Context, email, code string) error {
	stored, err := s.client.Get(ctx, keyPrefix+email).Result()
	if errors.Is(err, redis.Nil) {
		return ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("reading otp: %w", err)
	}
	if stored != code {
		return ErrMismatch
	}
	return nil
}

// Verify checks the code and consumes it on success so it cannot be reused.
func (s *Store) Verify(ctx context.Context, email, code string) error {
	stored, err := s.client.Get(ctx, keyPrefix+email).Result()
	if errors.Is(err, redis.Nil) {
		return ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("reading otp: %w", err)
	}
	if stored != code {
		return ErrMismatch
	}
	if err := s.client.Del(ctx, keyPrefix+email).Err(); err != nil {
		return fmt.Errorf("consuming otp: %w", err)
	}
	return nil
}

func (s *Store) Close() error {
	return s.client.Close()
}
