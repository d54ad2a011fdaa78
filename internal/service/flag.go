package service

import (
	"context"
	"errors"
	"strings"

	"stackit/internal/apperror"
	"stackit/internal/models"

	"gorm.io/gorm"
)

type FlagService struct {
	db *gorm.DB
}

func NewFlagService(db *gorm.DB) *FlagService {
	return &FlagService{db: db}
}

type FlagInput struct {
	TargetType string
	TargetID   uint
	Reason     string
}

// Create 举报问题、回答或评论；同一身份对同一目标只能举报一次。
func (s *FlagService) Create(ctx context.Context, actor Actor, in FlagInput) (*models.Flag, error) {
	kind, err := models.ParseTargetKind(in.TargetType)
	if err != nil || !kind.Flaggable() {
		return nil, apperror.Validation("targetType", "targetType must be question, answer or comment")
	}
	reason := strings.TrimSpace(in.Reason)
	if reason == "" {
		return nil, apperror.Validation("reason", "reason is required")
	}
	if err := targetExists(s.db.WithContext(ctx), kind, in.TargetID); err != nil {
		return nil, err
	}
	f := models.Flag{ReporterID: actor.ID, TargetType: kind, TargetID: in.TargetID, Reason: reason}
	if err := s.db.WithContext(ctx).Omit("Reporter").Create(&f).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, apperror.Conflict("you have already flagged this content")
		}
		return nil, err
	}
	return &f, nil
}

// List 返回全部举报，最新的在前，供管理员处理。
func (s *FlagService) List(ctx context.Context, limit int) ([]models.Flag, error) {
	var out []models.Flag
	err := s.db.WithContext(ctx).Preload("Reporter").
		Order("created_at desc, id desc").
		Limit(clampLimit(limit, 100, 500)).
		Find(&out).Error
	return out, err
}

func targetModel(kind models.TargetKind) any {
	switch kind {
	case models.TargetQuestion:
		return &models.Question{}
	case models.TargetAnswer:
		return &models.Answer{}
	case models.TargetComment:
		return &models.Comment{}
	default:
		return &models.Tag{}
	}
}

func targetExists(db *gorm.DB, kind models.TargetKind, id uint) error {
	if id == 0 {
		return apperror.Validation("targetId", "targetId is required")
	}
	var n int64
	if err := db.Model(targetModel(kind)).Where("id = ?", id).Count(&n).Error; err != nil {
		return err
	}
	if n == 0 {
		return apperror.NotFound(string(kind), id)
	}
	return nil
}
