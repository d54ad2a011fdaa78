package service

import (
	"stackit/internal/models"

	"gorm.io/gorm"
)

// 以下删除辅助函数在同一事务内先删子记录再删父记录，外键约束开启时也能成功。

func deleteFlags(tx *gorm.DB, kind models.TargetKind, ids []uint) error {
	if len(ids) == 0 {
		return nil
	}
	return tx.Where("target_type = ? AND target_id IN ?", kind, ids).Delete(&models.Flag{}).Error
}

func deleteComments(tx *gorm.DB, ids []uint) error {
	if len(ids) == 0 {
		return nil
	}
	if err := deleteFlags(tx, models.TargetComment, ids); err != nil {
		return err
	}
	return tx.Where("id IN ?", ids).Delete(&models.Comment{}).Error
}

func deleteAnswers(tx *gorm.DB, ids []uint) error {
	if len(ids) == 0 {
		return nil
	}
	var commentIDs []uint
	if err := tx.Model(&models.Comment{}).Where("answer_id IN ?", ids).Pluck("id", &commentIDs).Error; err != nil {
		return err
	}
	if err := deleteComments(tx, commentIDs); err != nil {
		return err
	}
	if err := tx.Where("answer_id IN ?", ids).Delete(&models.Vote{}).Error; err != nil {
		return err
	}
	if err := deleteFlags(tx, models.TargetAnswer, ids); err != nil {
		return err
	}
	return tx.Where("id IN ?", ids).Delete(&models.Answer{}).Error
}

func deleteQuestion(tx *gorm.DB, id uint) error {
	var answerIDs []uint
	if err := tx.Model(&models.Answer{}).Where("question_id = ?", id).Pluck("id", &answerIDs).Error; err != nil {
		return err
	}
	if err := deleteAnswers(tx, answerIDs); err != nil {
		return err
	}
	if err := tx.Exec("DELETE FROM question_tags WHERE question_id = ?", id).Error; err != nil {
		return err
	}
	if err := deleteFlags(tx, models.TargetQuestion, []uint{id}); err != nil {
		return err
	}
	return tx.Delete(&models.Question{}, id).Error
}

func deleteTag(tx *gorm.DB, id uint) error {
	if err := tx.Exec("DELETE FROM question_tags WHERE tag_id = ?", id).Error; err != nil {
		return err
	}
	if err := tx.Where("tag_id = ?", id).Delete(&models.TagFollow{}).Error; err != nil {
		return err
	}
	return tx.Delete(&models.Tag{}, id).Error
}
