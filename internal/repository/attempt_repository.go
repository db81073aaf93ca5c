package repository

import (
	"context"
	"edupath_backend/internal/model"
	"edupath_backend/internal/util"
	"errors"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type AttemptRepository struct {
	DB *gorm.DB
}

func NewAttemptRepository(db *gorm.DB) *AttemptRepository {
	return &AttemptRepository{DB: db}
}

// WithTx 返回绑定到事务的仓库
func (r *AttemptRepository) WithTx(tx *gorm.DB) *AttemptRepository {
	return &AttemptRepository{DB: tx}
}

func (r *AttemptRepository) Create(ctx context.Context, attempt *model.Attempt) error {
	return r.DB.WithContext(ctx).Create(attempt).Error
}

func (r *AttemptRepository) FindByID(ctx context.Context, id uint) (*model.Attempt, error) {
	var a model.Attempt
	if err := r.DB.WithContext(ctx).First(&a, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, util.ErrAttemptNotFound
		}
		return nil, err
	}
	return &a, nil
}

func (r *AttemptRepository) FindWithAnswers(ctx context.Context, id uint) (*model.Attempt, error) {
	var a model.Attempt
	err := r.DB.WithContext(ctx).
		Preload("Answers", func(db *gorm.DB) *gorm.DB {
			return db.Order("submitted_answers.question_id asc")
		}).
		First(&a, id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, util.ErrAttemptNotFound
		}
		return nil, err
	}
	return &a, nil
}

// UpsertAnswer 按 (attempt_id, question_id) 写入答案，重复提交覆盖并清空已有评估结果
func (r *AttemptRepository) UpsertAnswer(ctx context.Context, answer *model.SubmittedAnswer) error {
	return r.DB.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "attempt_id"}, {Name: "question_id"}},
			DoUpdates: clause.Assignments(map[string]interface{}{
				"payload":        answer.Payload,
				"is_correct":     nil,
				"score":          nil,
				"grader_comment": "",
				"graded_at":      nil,
				"updated_at":     time.Now(),
			}),
		}).
		Create(answer).Error
}

func (r *AttemptRepository) FindAnswer(ctx context.Context, attemptID, questionID uint) (*model.SubmittedAnswer, error) {
	var a model.SubmittedAnswer
	err := r.DB.WithContext(ctx).
		Where("attempt_id = ? AND question_id = ?", attemptID, questionID).
		First(&a).Error
	if err != nil {
		return nil, err
	}
	return &a, nil
}

func (r *AttemptRepository) GetAnswers(ctx context.Context, attemptID uint) ([]model.SubmittedAnswer, error) {
	var answers []model.SubmittedAnswer
	err := r.DB.WithContext(ctx).Where("attempt_id = ?", attemptID).Order("question_id asc").Find(&answers).Error
	return answers, err
}

// SaveEvaluation 持久化单题自动评分结果
func (r *AttemptRepository) SaveEvaluation(ctx context.Context, answerID uint, isCorrect *bool, score *float64) error {
	return r.DB.WithContext(ctx).Model(&model.SubmittedAnswer{}).
		Where("id = ?", answerID).
		Updates(map[string]interface{}{
			"is_correct": isCorrect,
			"score":      score,
		}).Error
}

// SaveVerdict 持久化人工评分结果
func (r *AttemptRepository) SaveVerdict(ctx context.Context, answerID uint, isCorrect bool, score float64, comment string, gradedAt time.Time) error {
	return r.DB.WithContext(ctx).Model(&model.SubmittedAnswer{}).
		Where("id = ?", answerID).
		Updates(map[string]interface{}{
			"is_correct":     isCorrect,
			"score":          score,
			"grader_comment": comment,
			"graded_at":      gradedAt,
		}).Error
}

// Transition 乐观状态检查：仅当当前状态属于 from 时才更新，返回是否生效
func (r *AttemptRepository) Transition(ctx context.Context, attemptID uint, from []model.AttemptStatus, to model.AttemptStatus, fields map[string]interface{}) (bool, error) {
	updates := map[string]interface{}{"status": to}
	for k, v := range fields {
		updates[k] = v
	}
	res := r.DB.WithContext(ctx).Model(&model.Attempt{}).
		Where("id = ? AND status IN ?", attemptID, from).
		Updates(updates)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

// ClaimFirstCompletion 通过唯一约束声明首次通过，返回本次是否声明成功
func (r *AttemptRepository) ClaimFirstCompletion(ctx context.Context, userID, quizID, attemptID uint) (bool, error) {
	row := &model.QuizFirstCompletion{
		UserID:    userID,
		QuizID:    quizID,
		AttemptID: attemptID,
	}
	res := r.DB.WithContext(ctx).Clauses(clause.OnConflict{DoNothing: true}).Create(row)
	if res.Error != nil {
		if errors.Is(res.Error, gorm.ErrDuplicatedKey) {
			return false, nil
		}
		return false, res.Error
	}
	if res.RowsAffected == 1 {
		return true, nil
	}
	// 重试时本尝试可能早已声明过
	var existing model.QuizFirstCompletion
	if err := r.DB.WithContext(ctx).Where("user_id = ? AND quiz_id = ?", userID, quizID).First(&existing).Error; err != nil {
		return false, err
	}
	return existing.AttemptID == attemptID, nil
}

func (r *AttemptRepository) MarkFirstCompletion(ctx context.Context, attemptID uint) error {
	return r.DB.WithContext(ctx).Model(&model.Attempt{}).
		Where("id = ?", attemptID).
		Update("first_correct_completion", true).Error
}

// ListPending 列出待人工评分的尝试；creatorID 为空表示不限作者
func (r *AttemptRepository) ListPending(ctx context.Context, creatorID *uint, page, limit int) ([]model.Attempt, int64, error) {
	query := r.DB.WithContext(ctx).Model(&model.Attempt{}).
		Where("attempts.status = ?", model.AttemptPendingGrading)
	if creatorID != nil {
		query = query.Joins("JOIN quizzes ON quizzes.id = attempts.quiz_id AND quizzes.deleted_at IS NULL").
			Where("quizzes.creator_id = ?", *creatorID)
	}
	query = query.Session(&gorm.Session{})
	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}
	var attempts []model.Attempt
	offset := (page - 1) * limit
	err := query.Order("attempts.submitted_at asc, attempts.id asc").Offset(offset).Limit(limit).Find(&attempts).Error
	return attempts, total, err
}
