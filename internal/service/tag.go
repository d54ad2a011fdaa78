package service

import (
	"context"
	"errors"

	"stackit/internal/apperror"
	"stackit/internal/models"

	"gorm.io/gorm"
)

type TagService struct {
	db *gorm.DB
}

func NewTagService(db *gorm.DB) *TagService {
	return &TagService{db: db}
}

// TagSummary 附带已审核问题的数量。
type TagSummary struct {
	models.Tag
	Questions int64 `gorm:"column:question_count" json:"questions"`
}

func (s *TagService) List(ctx context.Context) ([]TagSummary, error) {
	var out []TagSummary
	err := s.db.WithContext(ctx).Model(&models.Tag{}).
		Select("tags.id, tags.name, tags.created_at, COUNT(questions.id) AS question_count").
		Joins("LEFT JOIN question_tags ON question_tags.tag_id = tags.id").
		Joins("LEFT JOIN questions ON questions.id = question_tags.question_id AND questions.status = ?", models.QuestionApproved).
		Group("tags.id, tags.name, tags.created_at").
		Order("question_count desc, tags.name asc").
		Scan(&out).Error
	return out, err
}

func (s *TagService) Create(ctx context.Context, name string) (*models.Tag, error) {
	names, err := normalizeTags([]string{name})
	if err != nil {
		return nil, err
	}
	if len(names) == 0 {
		return nil, apperror.Validation("name", "name is required")
	}
	t := models.Tag{Name: names[0]}
	if err := s.db.WithContext(ctx).Create(&t).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, apperror.Conflict("tag already exists")
		}
		return nil, err
	}
	return &t, nil
}

// ToggleFollow 关注或取消关注标签，返回操作后的关注状态。
func (s *TagService) ToggleFollow(ctx context.Context, userID, tagID uint) (bool, error) {
	if err := s.db.WithContext(ctx).Select("id").First(&models.Tag{}, tagID).Error; err != nil {
		return false, lookup(err, "tag", tagID)
	}
	res := s.db.WithContext(ctx).Where("user_id = ? AND tag_id = ?", userID, tagID).Delete(&models.TagFollow{})
	if res.Error != nil {
		return false, res.Error
	}
	if res.RowsAffected > 0 {
		return false, nil
	}
	if err := s.db.WithContext(ctx).Create(&models.TagFollow{UserID: userID, TagID: tagID}).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return true, nil
		}
		return false, err
	}
	return true, nil
}

func (s *TagService) Followed(ctx context.Context, userID uint) ([]models.Tag, error) {
	var out []models.Tag
	err := s.db.WithContext(ctx).
		Joins("JOIN tag_follows ON tag_follows.tag_id = tags.id").
		Where("tag_follows.user_id = ?", userID).
		Order("tags.name asc").
		Find(&out).Error
	return out, err
}
