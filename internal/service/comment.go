package service

import (
	"context"
	"fmt"

	"stackit/internal/models"

	"gorm.io/gorm"
)

type CommentService struct {
	db     *gorm.DB
	notify *NotificationService
}

func NewCommentService(db *gorm.DB, notify *NotificationService) *CommentService {
	return &CommentService{db: db, notify: notify}
}

func (s *CommentService) Create(ctx context.Context, actor Actor, answerID uint, content string) (*models.Comment, error) {
	content, err := validContent("content", content)
	if err != nil {
		return nil, err
	}
	var a models.Answer
	if err := s.db.WithContext(ctx).Select("id", "author_id", "question_id").First(&a, answerID).Error; err != nil {
		return nil, lookup(err, "answer", answerID)
	}
	c := models.Comment{AnswerID: answerID, AuthorID: actor.ID, Content: content}
	if err := s.db.WithContext(ctx).Omit("Author").Create(&c).Error; err != nil {
		return nil, err
	}
	s.notify.notifyQuietly(ctx, NotifyInput{
		RecipientID: a.AuthorID,
		ActorID:     actor.ID,
		Type:        NotifyComment,
		Content:     "New comment on your answer",
		Link:        fmt.Sprintf("%s#answer-%d", questionLink(a.QuestionID), a.ID),
	})
	if err := s.db.WithContext(ctx).Preload("Author").First(&c, c.ID).Error; err != nil {
		return nil, err
	}
	return &c, nil
}

// ListByAnswer 按时间顺序返回回答下的评论。
func (s *CommentService) ListByAnswer(ctx context.Context, answerID uint) ([]models.Comment, error) {
	if err := s.db.WithContext(ctx).Select("id").First(&models.Answer{}, answerID).Error; err != nil {
		return nil, lookup(err, "answer", answerID)
	}
	var out []models.Comment
	err := s.db.WithContext(ctx).Preload("Author").
		Where("answer_id = ?", answerID).
		Order("created_at asc, id asc").
		Find(&out).Error
	return out, err
}

// Delete 允许评论作者或管理员删除。
func (s *CommentService) Delete(ctx context.Context, actor Actor, id uint) error {
	var c models.Comment
	if err := s.db.WithContext(ctx).Select("id", "author_id").First(&c, id).Error; err != nil {
		return lookup(err, "comment", id)
	}
	if err := actor.canModify(c.AuthorID); err != nil {
		return err
	}
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return deleteComments(tx, []uint{id})
	})
}
