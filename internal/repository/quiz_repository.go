package repository

import (
	"context"
	"edupath_backend/internal/model"
	"edupath_backend/internal/util"
	"errors"

	"gorm.io/gorm"
)

// QuizRepository 只读访问测验内容；评估期间内容视为不可变
type QuizRepository struct {
	DB *gorm.DB
}

func NewQuizRepository(db *gorm.DB) *QuizRepository {
	return &QuizRepository{DB: db}
}

func (r *QuizRepository) Create(ctx context.Context, quiz *model.Quiz) error {
	return r.DB.WithContext(ctx).Create(quiz).Error
}

func (r *QuizRepository) FindByID(ctx context.Context, id uint) (*model.Quiz, error) {
	var q model.Quiz
	if err := r.DB.WithContext(ctx).First(&q, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, util.ErrQuizNotFound
		}
		return nil, err
	}
	return &q, nil
}

// FindWithQuestions 按顺序加载题目及选项
func (r *QuizRepository) FindWithQuestions(ctx context.Context, id uint) (*model.Quiz, error) {
	var q model.Quiz
	err := r.DB.WithContext(ctx).
		Preload("Questions", func(db *gorm.DB) *gorm.DB {
			return db.Order("questions.`order` asc, questions.id asc")
		}).
		Preload("Questions.Options", func(db *gorm.DB) *gorm.DB {
			return db.Order("answer_options.`order` asc, answer_options.id asc")
		}).
		First(&q, id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, util.ErrQuizNotFound
		}
		return nil, err
	}
	return &q, nil
}

func (r *QuizRepository) FindQuestion(ctx context.Context, quizID, questionID uint) (*model.Question, error) {
	var q model.Question
	err := r.DB.WithContext(ctx).
		Preload("Options").
		Where("id = ? AND quiz_id = ?", questionID, quizID).
		First(&q).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, util.ErrQuestionNotFound
		}
		return nil, err
	}
	return &q, nil
}

// CreatorOf 返回测验作者，用于人工评分权限范围
func (r *QuizRepository) CreatorOf(ctx context.Context, quizID uint) (uint, error) {
	q, err := r.FindByID(ctx, quizID)
	if err != nil {
		return 0, err
	}
	return q.CreatorID, nil
}
