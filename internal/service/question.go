package service

import (
	"context"
	"strings"

	"stackit/internal/apperror"
	"stackit/internal/models"

	"gorm.io/gorm"
)

const maxTags = 5

// QuestionService 封装问题的增删改查。新问题处于 pending 状态，管理员审核后公开。
type QuestionService struct {
	db  *gorm.DB
	rep *Reputation
}

func NewQuestionService(db *gorm.DB, rep *Reputation) *QuestionService {
	return &QuestionService{db: db, rep: rep}
}

type QuestionInput struct {
	Title       string
	Description string
	Tags        []string
}

func (in *QuestionInput) normalize() error {
	in.Title = strings.TrimSpace(in.Title)
	in.Description = strings.TrimSpace(in.Description)
	if in.Title == "" || len(in.Title) > 200 {
		return apperror.Validation("title", "title must be 1-200 characters")
	}
	if in.Description == "" {
		return apperror.Validation("description", "description is required")
	}
	tags, err := normalizeTags(in.Tags)
	if err != nil {
		return err
	}
	in.Tags = tags
	return nil
}

func normalizeTags(names []string) ([]string, error) {
	seen := make(map[string]bool, len(names))
	out := make([]string, 0, len(names))
	for _, n := range names {
		n = strings.ToLower(strings.TrimSpace(n))
		if n == "" || seen[n] {
			continue
		}
		if len(n) > 64 {
			return nil, apperror.Validation("tags", "tag names must be at most 64 characters")
		}
		seen[n] = true
		out = append(out, n)
	}
	if len(out) > maxTags {
		return nil, apperror.Validation("tags", "at most 5 tags per question")
	}
	return out, nil
}

// ensureTags 按名称查找或创建标签。
func ensureTags(tx *gorm.DB, names []string) ([]models.Tag, error) {
	tags := make([]models.Tag, 0, len(names))
	for _, n := range names {
		var t models.Tag
		if err := tx.Where(models.Tag{Name: n}).FirstOrCreate(&t).Error; err != nil {
			return nil, err
		}
		tags = append(tags, t)
	}
	return tags, nil
}

func (s *QuestionService) Create(ctx context.Context, actor Actor, in QuestionInput) (*models.Question, error) {
	if err := in.normalize(); err != nil {
		return nil, err
	}
	q := models.Question{
		Title:       in.Title,
		Description: in.Description,
		AuthorID:    actor.ID,
		Status:      models.QuestionPending,
	}
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		tags, err := ensureTags(tx, in.Tags)
		if err != nil {
			return err
		}
		q.Tags = tags
		if err := tx.Omit("Author").Create(&q).Error; err != nil {
			return err
		}
		return s.rep.Credit(tx, actor.ID, XPQuestion)
	})
	if err != nil {
		return nil, err
	}
	return s.Get(ctx, actor, q.ID)
}

type ListQuery struct {
	Tag    string
	Limit  int
	Offset int
}

// List 返回已审核的问题，最新的在前。
func (s *QuestionService) List(ctx context.Context, lq ListQuery) ([]models.Question, error) {
	q := s.db.WithContext(ctx).Where("status = ?", models.QuestionApproved)
	if tag := strings.ToLower(strings.TrimSpace(lq.Tag)); tag != "" {
		sub := s.db.Table("question_tags").
			Select("question_tags.question_id").
			Joins("JOIN tags ON tags.id = question_tags.tag_id").
			Where("tags.name = ?", tag)
		q = q.Where("id IN (?)", sub)
	}
	if lq.Offset > 0 {
		q = q.Offset(lq.Offset)
	}
	var out []models.Question
	err := q.Preload("Author").Preload("Tags").
		Order("created_at desc, id desc").
		Limit(clampLimit(lq.Limit, 20, 100)).
		Find(&out).Error
	return out, err
}

// Get 返回问题详情；pending 问题只对作者和管理员可见。
func (s *QuestionService) Get(ctx context.Context, viewer Actor, id uint) (*models.Question, error) {
	var q models.Question
	err := s.db.WithContext(ctx).
		Preload("Author").
		Preload("Tags").
		Preload("Answers", func(db *gorm.DB) *gorm.DB {
			return db.Order("accepted desc, created_at asc, id asc")
		}).
		Preload("Answers.Author").
		Preload("Answers.Comments", func(db *gorm.DB) *gorm.DB {
			return db.Order("created_at asc, id asc")
		}).
		Preload("Answers.Comments.Author").
		First(&q, id).Error
	if err != nil {
		return nil, lookup(err, "question", id)
	}
	if q.Status != models.QuestionApproved && viewer.ID != q.AuthorID && !viewer.IsAdmin() {
		return nil, apperror.NotFound("question", id)
	}
	if err := scoreAnswers(s.db.WithContext(ctx), q.Answers); err != nil {
		return nil, err
	}
	return &q, nil
}

// scoreAnswers 填充每个回答的票数差（UP 减 DOWN）。
func scoreAnswers(db *gorm.DB, answers []models.Answer) error {
	if len(answers) == 0 {
		return nil
	}
	ids := make([]uint, len(answers))
	for i, a := range answers {
		ids[i] = a.ID
	}
	var rows []struct {
		AnswerID uint
		Score    int
	}
	err := db.Model(&models.Vote{}).
		Select("answer_id, SUM(CASE WHEN type = ? THEN 1 ELSE -1 END) AS score", models.VoteUp).
		Where("answer_id IN ?", ids).
		Group("answer_id").
		Scan(&rows).Error
	if err != nil {
		return err
	}
	scores := make(map[uint]int, len(rows))
	for _, r := range rows {
		scores[r.AnswerID] = r.Score
	}
	for i := range answers {
		answers[i].Score = scores[answers[i].ID]
	}
	return nil
}

// Update 只允许作者修改；标签整体替换。
func (s *QuestionService) Update(ctx context.Context, actor Actor, id uint, in QuestionInput) (*models.Question, error) {
	if err := in.normalize(); err != nil {
		return nil, err
	}
	var q models.Question
	if err := s.db.WithContext(ctx).First(&q, id).Error; err != nil {
		return nil, lookup(err, "question", id)
	}
	if q.AuthorID != actor.ID {
		return nil, ErrNotOwner
	}
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		tags, err := ensureTags(tx, in.Tags)
		if err != nil {
			return err
		}
		if err := tx.Model(&q).Updates(map[string]any{"title": in.Title, "description": in.Description}).Error; err != nil {
			return err
		}
		return tx.Model(&q).Association("Tags").Replace(tags)
	})
	if err != nil {
		return nil, err
	}
	return s.Get(ctx, actor, id)
}

func (s *QuestionService) Delete(ctx context.Context, actor Actor, id uint) error {
	var q models.Question
	if err := s.db.WithContext(ctx).Select("id", "author_id").First(&q, id).Error; err != nil {
		return lookup(err, "question", id)
	}
	if err := actor.canModify(q.AuthorID); err != nil {
		return err
	}
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return deleteQuestion(tx, id)
	})
}
