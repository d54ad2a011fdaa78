package service

import (
	"context"
	"strings"

	"stackit/internal/apperror"
	"stackit/internal/metrics"
	"stackit/internal/models"
	"stackit/internal/ws"

	"github.com/rs/zerolog/log"
	"gorm.io/gorm"
)

const (
	NotifyAnswer   = "answer"
	NotifyComment  = "comment"
	NotifyAccepted = "accepted"
	NotifyApproved = "approved"
	NotifyMessage  = "message"
)

// Broadcaster 由 ws.Hub 实现。
type Broadcaster interface {
	Broadcast(ctx context.Context, room, event string, data any) error
}

// NotificationService 先持久化通知，再推送到接收者的个人房间；持久化记录是唯一来源。
type NotificationService struct {
	db  *gorm.DB
	hub Broadcaster
}

func NewNotificationService(db *gorm.DB, hub Broadcaster) *NotificationService {
	return &NotificationService{db: db, hub: hub}
}

type NotifyInput struct {
	RecipientID uint
	ActorID     uint
	Type        string
	Content     string
	Link        string
}

func (s *NotificationService) Notify(ctx context.Context, in NotifyInput) (*models.Notification, error) {
	in.Type = strings.TrimSpace(in.Type)
	in.Content = strings.TrimSpace(in.Content)
	if in.RecipientID == 0 {
		return nil, apperror.Validation("recipientId", "recipientId is required")
	}
	if in.Type == "" || len(in.Type) > 32 {
		return nil, apperror.Validation("type", "type must be 1-32 characters")
	}
	if in.Content == "" {
		return nil, apperror.Validation("content", "content is required")
	}
	var count int64
	if err := s.db.WithContext(ctx).Model(&models.User{}).Where("id = ?", in.RecipientID).Count(&count).Error; err != nil {
		return nil, err
	}
	if count == 0 {
		return nil, apperror.NotFound("user", in.RecipientID)
	}

	n := models.Notification{UserID: in.RecipientID, Type: in.Type, Content: in.Content, Link: in.Link}
	if in.ActorID != 0 {
		actor := in.ActorID
		n.ActorID = &actor
	}
	if err := s.db.WithContext(ctx).Create(&n).Error; err != nil {
		return nil, err
	}
	metrics.NotificationsTotal.WithLabelValues(n.Type).Inc()
	if err := s.hub.Broadcast(ctx, ws.UserRoom(n.UserID), ws.EventNotification, n); err != nil {
		log.Error().Err(err).Uint("notification_id", n.ID).Msg("deliver notification")
	}
	return &n, nil
}

// notifyQuietly 用于附带通知：失败只记录日志，不影响主操作。
func (s *NotificationService) notifyQuietly(ctx context.Context, in NotifyInput) {
	if s == nil || in.RecipientID == in.ActorID {
		return
	}
	if _, err := s.Notify(ctx, in); err != nil {
		log.Error().Err(err).Uint("recipient_id", in.RecipientID).Str("type", in.Type).Msg("notify")
	}
}

func (s *NotificationService) List(ctx context.Context, userID uint, unreadOnly bool, limit int) ([]models.Notification, error) {
	q := s.db.WithContext(ctx).Where("user_id = ?", userID)
	if unreadOnly {
		q = q.Where("read = ?", false)
	}
	var out []models.Notification
	err := q.Order("created_at desc, id desc").Limit(clampLimit(limit, 50, 200)).Find(&out).Error
	return out, err
}

// MarkRead 只能标记自己的通知；他人的通知按不存在处理。
func (s *NotificationService) MarkRead(ctx context.Context, userID, id uint) (*models.Notification, error) {
	var n models.Notification
	if err := s.db.WithContext(ctx).Where("id = ? AND user_id = ?", id, userID).First(&n).Error; err != nil {
		return nil, lookup(err, "notification", id)
	}
	if !n.Read {
		if err := s.db.WithContext(ctx).Model(&n).Update("read", true).Error; err != nil {
			return nil, err
		}
		n.Read = true
	}
	return &n, nil
}

func (s *NotificationService) MarkAllRead(ctx context.Context, userID uint) (int64, error) {
	res := s.db.WithContext(ctx).Model(&models.Notification{}).
		Where("user_id = ? AND read = ?", userID, false).
		Update("read", true)
	return res.RowsAffected, res.Error
}
