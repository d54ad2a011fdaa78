package service

import (
	"context"
	"errors"

	"stackit/internal/apperror"
	"stackit/internal/models"

	"gorm.io/gorm"
)

type VoteService struct {
	db *gorm.DB
}

func NewVoteService(db *gorm.DB) *VoteService {
	return &VoteService{db: db}
}

// VoteSummary 是某个回答的投票汇总；Mine 为调用者当前的投票。
type VoteSummary struct {
	AnswerID uint             `json:"answerId"`
	Up       int64            `json:"up"`
	Down     int64            `json:"down"`
	Score    int64            `json:"score"`
	Mine     *models.VoteType `json:"mine"`
}

// Cast 对 (user, answer) 投票：相同类型再次提交即撤销，不同类型则替换。
// 首次投票与并发写入在唯一索引上冲突时，以后到的类型为准。
func (s *VoteService) Cast(ctx context.Context, userID, answerID uint, t models.VoteType) (*VoteSummary, error) {
	if !t.Valid() {
		return nil, apperror.Validation("type", "type must be UP or DOWN")
	}
	if err := s.db.WithContext(ctx).Select("id").First(&models.Answer{}, answerID).Error; err != nil {
		return nil, lookup(err, "answer", answerID)
	}

	var existing models.Vote
	err := s.db.WithContext(ctx).Where("user_id = ? AND answer_id = ?", userID, answerID).First(&existing).Error
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		v := models.Vote{UserID: userID, AnswerID: answerID, Type: t}
		err := s.db.WithContext(ctx).Create(&v).Error
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			err = s.overwrite(ctx, userID, answerID, t)
		}
		if err != nil {
			return nil, err
		}
	case err != nil:
		return nil, err
	case existing.Type == t:
		if err := s.db.WithContext(ctx).Delete(&existing).Error; err != nil {
			return nil, err
		}
	default:
		if err := s.db.WithContext(ctx).Model(&existing).Update("type", t).Error; err != nil {
			return nil, err
		}
	}
	return s.Summary(ctx, userID, answerID)
}

// overwrite 把并发写入的投票改为 t；行已被删除时重新插入。
func (s *VoteService) overwrite(ctx context.Context, userID, answerID uint, t models.VoteType) error {
	res := s.db.WithContext(ctx).Model(&models.Vote{}).
		Where("user_id = ? AND answer_id = ?", userID, answerID).
		Update("type", t)
	if res.Error != nil || res.RowsAffected > 0 {
		return res.Error
	}
	return s.db.WithContext(ctx).Create(&models.Vote{UserID: userID, AnswerID: answerID, Type: t}).Error
}

func (s *VoteService) Summary(ctx context.Context, userID, answerID uint) (*VoteSummary, error) {
	if err := s.db.WithContext(ctx).Select("id").First(&models.Answer{}, answerID).Error; err != nil {
		return nil, lookup(err, "answer", answerID)
	}
	var rows []struct {
		Type  models.VoteType
		Count int64
	}
	err := s.db.WithContext(ctx).Model(&models.Vote{}).
		Select("type, COUNT(*) AS count").
		Where("answer_id = ?", answerID).
		Group("type").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	sum := &VoteSummary{AnswerID: answerID}
	for _, r := range rows {
		switch r.Type {
		case models.VoteUp:
			sum.Up = r.Count
		case models.VoteDown:
			sum.Down = r.Count
		}
	}
	sum.Score = sum.Up - sum.Down

	if userID != 0 {
		var mine models.Vote
		err := s.db.WithContext(ctx).Select("type").Where("user_id = ? AND answer_id = ?", userID, answerID).First(&mine).Error
		if err == nil {
			sum.Mine = &mine.Type
		} else if !errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, err
		}
	}
	return sum, nil
}
