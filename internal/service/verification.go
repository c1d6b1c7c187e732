package service

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"math/big"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/memflow/lowcode-backend/internal/mail"
)

// ErrCodeLocked is returned when a code was already issued for the address
// within the lock window.  Surfaces to the client as a 409.
var ErrCodeLocked = errors.New("verification code recently sent")

// ErrCodeMismatch is returned when the supplied code is wrong or expired.
var ErrCodeMismatch = errors.New("verification code invalid or expired")

// errNoStore covers running without Redis: codes cannot be issued at all,
// so every send fails loudly instead of silently never delivering.
var errNoStore = errors.New("verification store unavailable")

// codeTTL is both the lifetime of a code and the re-request lock window:
// at most one outstanding code per recipient address.
const codeTTL = 60 * time.Second

// VerificationService issues and checks the email codes used by the
// register and forget-password flows.  Codes and the per-address lock live
// in Redis so they are shared across server instances.
type VerificationService struct {
	rdb    *redis.Client
	sender mail.Sender
	logger *zap.Logger
}

func NewVerificationService(rdb *redis.Client, sender mail.Sender, logger *zap.Logger) *VerificationService {
	return &VerificationService{rdb: rdb, sender: sender, logger: logger}
}

func codeKey(email string) string { return "verify:code:" + email }
func lockKey(email string) string { return "verify:lock:" + email }

// SendCode generates a six-digit code, stores it and delivers it by mail.
// A second request while the lock is held fails with ErrCodeLocked rather
// than silently re-sending.
func (s *VerificationService) SendCode(ctx context.Context, email string) error {
	if s.rdb == nil {
		return errNoStore
	}
	ok, err := s.rdb.SetNX(ctx, lockKey(email), 1, codeTTL).Result()
	if err != nil {
		return err
	}
	if !ok {
		return ErrCodeLocked
	}

	code, err := sixDigitCode()
	if err != nil {
		return err
	}
	if err := s.rdb.Set(ctx, codeKey(email), code, codeTTL).Err(); err != nil {
		return err
	}
	if err := s.sender.SendVerificationCode(ctx, email, code); err != nil {
		s.logger.Warn("verification: mail delivery failed",
			zap.String("email", email), zap.Error(err))
		return err
	}
	return nil
}

// CheckCode compares the supplied code against the stored one and consumes
// it on success so a code can be used only once.
func (s *VerificationService) CheckCode(ctx context.Context, email, input string) error {
	if s.rdb == nil {
		return ErrCodeMismatch
	}
	saved, err := s.rdb.Get(ctx, codeKey(email)).Result()
	if err != nil || saved == "" || saved != input {
		return ErrCodeMismatch
	}
	s.rdb.Del(ctx, codeKey(email))
	return nil
}

func sixDigitCode() (string, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(900000))
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%06d", n.Int64()+100000), nil
}
