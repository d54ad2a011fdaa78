package service

import (
	"context"
	"crypto/rand"
	"crypto/subtle"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"time"

	"stackit/internal/cache"
	"stackit/internal/mail"
	"stackit/internal/metrics"
)

const otpDigits = 6

// OTPService 管理邮箱验证：unverified -> otp_sent -> verified -> consumed。
type OTPService struct {
	cache       cache.Store
	mailer      mail.Mailer
	ttl         time.Duration
	verifiedTTL time.Duration
	generate    func() (string, error)
}

func NewOTPService(store cache.Store, mailer mail.Mailer, ttl, verifiedTTL time.Duration) *OTPService {
	return &OTPService{
		cache:       store,
		mailer:      mailer,
		ttl:         ttl,
		verifiedTTL: verifiedTTL,
		generate:    generateCode,
	}
}

func otpKey(email string) string      { return "otp:" + email }
func verifiedKey(email string) string { return "verified:" + email }

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func generateCode() (string, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(1_000_000))
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%0*d", otpDigits, n.Int64()), nil
}

// Request 生成验证码、写入缓存并发送邮件。重复请求会覆盖旧验证码。
func (s *OTPService) Request(ctx context.Context, email string) error {
	email = normalizeEmail(email)
	code, err := s.generate()
	if err != nil {
		return fmt.Errorf("generating otp: %w", err)
	}
	if err := s.cache.Set(ctx, otpKey(email), code, s.ttl); err != nil {
		return fmt.Errorf("storing otp: %w", err)
	}
	body := fmt.Sprintf("Your StackIt verification code is %s. It expires in %d minutes.", code, int(s.ttl.Minutes()))
	if err := s.mailer.Send(ctx, email, "Your StackIt verification code", body); err != nil {
		return err
	}
	metrics.OTPTotal.WithLabelValues("sent").Inc()
	return nil
}

// Verify 校验验证码；成功时删除验证码并写入 verified 标记。同一验证码只会成功一次。
func (s *OTPService) Verify(ctx context.Context, email, code string) error {
	email = normalizeEmail(email)
	stored, err := s.cache.Get(ctx, otpKey(email))
	if errors.Is(err, cache.ErrMiss) {
		metrics.OTPTotal.WithLabelValues("expired").Inc()
		return ErrInvalidOTP
	}
	if err != nil {
		return fmt.Errorf("reading otp: %w", err)
	}
	if subtle.ConstantTimeCompare([]byte(stored), []byte(strings.TrimSpace(code))) != 1 {
		metrics.OTPTotal.WithLabelValues("mismatch").Inc()
		return ErrInvalidOTP
	}
	removed, err := s.cache.Delete(ctx, otpKey(email))
	if err != nil {
		return fmt.Errorf("deleting otp: %w", err)
	}
	if !removed {
		return ErrInvalidOTP
	}
	if err := s.cache.Set(ctx, verifiedKey(email), "1", s.verifiedTTL); err != nil {
		return fmt.Errorf("storing verified flag: %w", err)
	}
	metrics.OTPTotal.WithLabelValues("verified").Inc()
	return nil
}

// Verified 报告 email 是否持有未过期的 verified 标记。
func (s *OTPService) Verified(ctx context.Context, email string) (bool, error) {
	_, err := s.cache.Get(ctx, verifiedKey(normalizeEmail(email)))
	if errors.Is(err, cache.ErrMiss) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("reading verified flag: %w", err)
	}
	return true, nil
}

// Consume 删除 verified 标记，返回是否由本次调用删除。
func (s *OTPService) Consume(ctx context.Context, email string) (bool, error) {
	return s.cache.Delete(ctx, verifiedKey(normalizeEmail(email)))
}
