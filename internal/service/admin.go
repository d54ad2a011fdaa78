package service

import (
	"context"
	"fmt"

	"stackit/internal/models"

	"gorm.io/gorm"
)

// AdminService 提供问题审核与按类型删除内容的能力，调用方负责校验管理员角色。
type AdminService struct {
	db     *gorm.DB
	notify *NotificationService
}

func NewAdminService(db *gorm.DB, notify *NotificationService) *AdminService {
	return &AdminService{db: db, notify: notify}
}

func (s *AdminService) Pending(ctx context.Context) ([]models.Question, error) {
	var out []models.Question
	err := s.db.WithContext(ctx).Preload("Author").Preload("Tags").
		Where("status = ?", models.QuestionPending).
		Order("created_at asc, id asc").
		Find(&out).Error
	return out, err
}

// Approve 公开问题并通知作者；已审核的问题原样返回。
func (s *AdminService) Approve(ctx context.Context, admin Actor, id uint) (*models.Question, error) {
	var q models.Question
	if err := s.db.WithContext(ctx).First(&q, id).Error; err != nil {
		return nil, lookup(err, "question", id)
	}
	if q.Status != models.QuestionApproved {
		if err := s.db.WithContext(ctx).Model(&q).Update("status", models.QuestionApproved).Error; err != nil {
			return nil, err
		}
		q.Status = models.QuestionApproved
		s.notify.notifyQuietly(ctx, NotifyInput{
			RecipientID: q.AuthorID,
			ActorID:     admin.ID,
			Type:        NotifyApproved,
			Content:     fmt.Sprintf("Your question %q was approved", q.Title),
			Link:        questionLink(q.ID),
		})
	}
	return &q, nil
}

// Delete 删除任意类型的内容及其从属记录。
func (s *AdminService) Delete(ctx context.Context, kind models.TargetKind, id uint) error {
	db := s.db.WithContext(ctx)
	if err := targetExists(db, kind, id); err != nil {
		return err
	}
	return db.Transaction(func(tx *gorm.DB) error {
		switch kind {
		case models.TargetQuestion:
			return deleteQuestion(tx, id)
		case models.TargetAnswer:
			return deleteAnswers(tx, []uint{id})
		case models.TargetComment:
			return deleteComments(tx, []uint{id})
		default:
			return deleteTag(tx, id)
		}
	})
}
