package service

import (
	"time"

	"stackit/internal/models"

	"gorm.io/gorm"
)

const (
	XPQuestion = 5
	XPAnswer   = 10
	XPAccepted = 15
)

// Reputation 维护 xp 与按自然日（UTC）计算的连续活跃天数。
type Reputation struct {
	now func() time.Time
}

func NewReputation() *Reputation {
	return &Reputation{now: time.Now}
}

// WithClock 返回使用指定时钟的副本，供测试使用。
func (r *Reputation) WithClock(now func() time.Time) *Reputation {
	return &Reputation{now: now}
}

// Credit 记录一次主动行为：加 xp 并推进连续活跃天数。
func (r *Reputation) Credit(tx *gorm.DB, userID uint, xp int) error {
	var u models.User
	if err := tx.Select("id", "streak", "last_active_at").First(&u, userID).Error; err != nil {
		return err
	}
	now := r.now().UTC()
	return tx.Model(&models.User{}).Where("id = ?", userID).Updates(map[string]any{
		"xp":             gorm.Expr("xp + ?", xp),
		"streak":         nextStreak(u.LastActiveAt, u.Streak, now),
		"last_active_at": now,
	}).Error
}

// Grant 只加 xp，用于他人行为带来的奖励（如回答被采纳）。
func (r *Reputation) Grant(tx *gorm.DB, userID uint, xp int) error {
	return tx.Model(&models.User{}).Where("id = ?", userID).
		Update("xp", gorm.Expr("xp + ?", xp)).Error
}

func nextStreak(last *time.Time, streak int, now time.Time) int {
	if last == nil || streak <= 0 {
		return 1
	}
	switch daysBetween(*last, now) {
	case 0:
		return streak
	case 1:
		return streak + 1
	default:
		return 1
	}
}

func daysBetween(a, b time.Time) int {
	ay, am, ad := a.UTC().Date()
	by, bm, bd := b.UTC().Date()
	da := time.Date(ay, am, ad, 0, 0, 0, 0, time.UTC)
	db := time.Date(by, bm, bd, 0, 0, 0, 0, time.UTC)
	return int(db.Sub(da).Hours() / 24)
}
