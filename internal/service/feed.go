package service

import (
	"context"
	"strings"

	"stackit/internal/apperror"
	"stackit/internal/models"

	"gorm.io/gorm"
)

const (
	leaderboardSize = 20
	activitySize    = 10
	searchLimit     = 50
)

// FeedService 提供排行榜、动态与搜索等只读视图。
type FeedService struct {
	db *gorm.DB
}

func NewFeedService(db *gorm.DB) *FeedService {
	return &FeedService{db: db}
}

type LeaderboardEntry struct {
	Rank int `json:"rank"`
	models.PublicUser
	Streak int `json:"streak"`
}

// Leaderboard 返回 xp 最高的前 20 名，xp 相同按 id 升序。
func (s *FeedService) Leaderboard(ctx context.Context) ([]LeaderboardEntry, error) {
	var users []models.User
	err := s.db.WithContext(ctx).
		Order("xp desc, id asc").
		Limit(leaderboardSize).
		Find(&users).Error
	if err != nil {
		return nil, err
	}
	out := make([]LeaderboardEntry, len(users))
	for i, u := range users {
		out[i] = LeaderboardEntry{Rank: i + 1, PublicUser: u.Public(), Streak: u.Streak}
	}
	return out, nil
}

// Activity 是全站最近的问题、回答与评论，各取 10 条。
type Activity struct {
	Questions []models.Question `json:"questions"`
	Answers   []models.Answer   `json:"answers"`
	Comments  []models.Comment  `json:"comments"`
}

func (s *FeedService) Activity(ctx context.Context) (*Activity, error) {
	db := s.db.WithContext(ctx)
	var act Activity
	if err := db.Preload("Author").
		Where("status = ?", models.QuestionApproved).
		Order("created_at desc, id desc").Limit(activitySize).
		Find(&act.Questions).Error; err != nil {
		return nil, err
	}
	if err := db.Preload("Author").
		Order("created_at desc, id desc").Limit(activitySize).
		Find(&act.Answers).Error; err != nil {
		return nil, err
	}
	if err := db.Preload("Author").
		Order("created_at desc, id desc").Limit(activitySize).
		Find(&act.Comments).Error; err != nil {
		return nil, err
	}
	return &act, nil
}

// Search 在已审核问题的标题、描述和标签名上做不区分大小写的子串匹配。
func (s *FeedService) Search(ctx context.Context, query string) ([]models.Question, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, apperror.Validation("q", "q is required")
	}
	pattern := "%" + escapeLike(strings.ToLower(query)) + "%"
	tagged := s.db.Table("question_tags").
		Select("question_tags.question_id").
		Joins("JOIN tags ON tags.id = question_tags.tag_id").
		Where(`tags.name LIKE ? ESCAPE '\'`, pattern)

	var out []models.Question
	err := s.db.WithContext(ctx).Preload("Author").Preload("Tags").
		Where("status = ?", models.QuestionApproved).
		Where(s.db.Where(`LOWER(title) LIKE ? ESCAPE '\'`, pattern).
			Or(`LOWER(description) LIKE ? ESCAPE '\'`, pattern).
			Or("id IN (?)", tagged)).
		Order("created_at desc, id desc").
		Limit(searchLimit).
		Find(&out).Error
	return out, err
}

func escapeLike(s string) string {
	return strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(s)
}
