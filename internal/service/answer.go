package service

import (
	"context"
	"fmt"
	"strings"

	"stackit/internal/apperror"
	"stackit/internal/models"

	"gorm.io/gorm"
)

type AnswerService struct {
	db     *gorm.DB
	rep    *Reputation
	notify *NotificationService
}

func NewAnswerService(db *gorm.DB, rep *Reputation, notify *NotificationService) *AnswerService {
	return &AnswerService{db: db, rep: rep, notify: notify}
}

func validContent(field, content string) (string, error) {
	content = strings.TrimSpace(content)
	if content == "" {
		return "", apperror.Validation(field, field+" is required")
	}
	if len(content) > 20000 {
		return "", apperror.Validation(field, field+" is too long")
	}
	return content, nil
}

func questionLink(id uint) string { return fmt.Sprintf("/questions/%d", id) }

// Create 只能回答已审核的问题；回答者获得 xp，提问者收到通知。
func (s *AnswerService) Create(ctx context.Context, actor Actor, questionID uint, content string) (*models.Answer, error) {
	content, err := validContent("content", content)
	if err != nil {
		return nil, err
	}
	var q models.Question
	if err := s.db.WithContext(ctx).Select("id", "author_id", "title", "status").First(&q, questionID).Error; err != nil {
		return nil, lookup(err, "question", questionID)
	}
	if q.Status != models.QuestionApproved {
		return nil, apperror.NotFound("question", questionID)
	}

	a := models.Answer{QuestionID: questionID, AuthorID: actor.ID, Content: content}
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Omit("Author").Create(&a).Error; err != nil {
			return err
		}
		return s.rep.Credit(tx, actor.ID, XPAnswer)
	})
	if err != nil {
		return nil, err
	}

	s.notify.notifyQuietly(ctx, NotifyInput{
		RecipientID: q.AuthorID,
		ActorID:     actor.ID,
		Type:        NotifyAnswer,
		Content:     fmt.Sprintf("New answer on %q", q.Title),
		Link:        questionLink(q.ID),
	})
	return s.get(ctx, a.ID)
}

func (s *AnswerService) get(ctx context.Context, id uint) (*models.Answer, error) {
	var a models.Answer
	if err := s.db.WithContext(ctx).Preload("Author").First(&a, id).Error; err != nil {
		return nil, lookup(err, "answer", id)
	}
	answers := []models.Answer{a}
	if err := scoreAnswers(s.db.WithContext(ctx), answers); err != nil {
		return nil, err
	}
	return &answers[0], nil
}

func (s *AnswerService) Update(ctx context.Context, actor Actor, id uint, content string) (*models.Answer, error) {
	content, err := validContent("content", content)
	if err != nil {
		return nil, err
	}
	var a models.Answer
	if err := s.db.WithContext(ctx).Select("id", "author_id").First(&a, id).Error; err != nil {
		return nil, lookup(err, "answer", id)
	}
	if a.AuthorID != actor.ID {
		return nil, ErrNotOwner
	}
	if err := s.db.WithContext(ctx).Model(&a).Update("content", content).Error; err != nil {
		return nil, err
	}
	return s.get(ctx, id)
}

func (s *AnswerService) Delete(ctx context.Context, actor Actor, id uint) error {
	var a models.Answer
	if err := s.db.WithContext(ctx).Select("id", "author_id").First(&a, id).Error; err != nil {
		return lookup(err, "answer", id)
	}
	if err := actor.canModify(a.AuthorID); err != nil {
		return err
	}
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return deleteAnswers(tx, []uint{id})
	})
}

// Accept 由提问者采纳回答；每个问题至多一个被采纳的回答。重复采纳同一回答不重复加分。
func (s *AnswerService) Accept(ctx context.Context, actor Actor, id uint) (*models.Answer, error) {
	var a models.Answer
	if err := s.db.WithContext(ctx).First(&a, id).Error; err != nil {
		return nil, lookup(err, "answer", id)
	}
	var q models.Question
	if err := s.db.WithContext(ctx).Select("id", "author_id", "title").First(&q, a.QuestionID).Error; err != nil {
		return nil, lookup(err, "question", a.QuestionID)
	}
	if q.AuthorID != actor.ID {
		return nil, apperror.Forbidden("only the question author can accept an answer")
	}
	if a.Accepted {
		return s.get(ctx, id)
	}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&models.Answer{}).
			Where("question_id = ? AND id <> ?", q.ID, a.ID).
			Update("accepted", false).Error; err != nil {
			return err
		}
		if err := tx.Model(&a).Update("accepted", true).Error; err != nil {
			return err
		}
		if a.AuthorID == actor.ID {
			return nil
		}
		return s.rep.Grant(tx, a.AuthorID, XPAccepted)
	})
	if err != nil {
		return nil, err
	}

	s.notify.notifyQuietly(ctx, NotifyInput{
		RecipientID: a.AuthorID,
		ActorID:     actor.ID,
		Type:        NotifyAccepted,
		Content:     fmt.Sprintf("Your answer on %q was accepted", q.Title),
		Link:        questionLink(q.ID),
	})
	return s.get(ctx, id)
}
