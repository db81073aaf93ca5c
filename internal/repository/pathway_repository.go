package repository

import (
	"context"
	"edupath_backend/internal/model"
	"edupath_backend/internal/util"
	"errors"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type PathwayRepository struct {
	DB *gorm.DB
}

func NewPathwayRepository(db *gorm.DB) *PathwayRepository {
	return &PathwayRepository{DB: db}
}

func (r *PathwayRepository) WithTx(tx *gorm.DB) *PathwayRepository {
	return &PathwayRepository{DB: tx}
}

func (r *PathwayRepository) Create(ctx context.Context, p *model.Pathway) error {
	return r.DB.WithContext(ctx).Create(p).Error
}

func (r *PathwayRepository) FindByID(ctx context.Context, id uint) (*model.Pathway, error) {
	var p model.Pathway
	err := r.DB.WithContext(ctx).
		Preload("Steps", func(db *gorm.DB) *gorm.DB {
			return db.Order("pathway_steps.step_order asc")
		}).
		First(&p, id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, util.ErrPathwayNotFound
		}
		return nil, err
	}
	return &p, nil
}

// StepRef 学生所在路径中包含某测验的步骤
type StepRef struct {
	PathwayID uint
	StepOrder int
}

// FindAssignedStepsForQuiz 查找学生被分配（直接或通过班组）且包含该测验的全部路径步骤
func (r *PathwayRepository) FindAssignedStepsForQuiz(ctx context.Context, userID, quizID uint) ([]StepRef, error) {
	db := r.DB.WithContext(ctx)
	groupIDs := db.Model(&model.GroupMember{}).Select("group_id").Where("user_id = ?", userID)
	assigned := db.Model(&model.Assignment{}).Select("target_id").
		Where("target_type = ?", model.AssignmentTargetPathway).
		Where(db.Where("user_id = ?", userID).Or("group_id IN (?)", groupIDs))

	var refs []StepRef
	err := db.Model(&model.PathwayStep{}).
		Select("pathway_id, step_order").
		Where("quiz_id = ?", quizID).
		Where("pathway_id IN (?)", assigned).
		Order("pathway_id asc, step_order asc").
		Scan(&refs).Error
	return refs, err
}

// StepOrders 返回路径的全部步骤序号（升序）
func (r *PathwayRepository) StepOrders(ctx context.Context, pathwayID uint) ([]int, error) {
	var orders []int
	err := r.DB.WithContext(ctx).Model(&model.PathwayStep{}).
		Where("pathway_id = ?", pathwayID).
		Order("step_order asc").
		Pluck("step_order", &orders).Error
	return orders, err
}

// LockProgress 获取或创建 (学生, 路径) 进度并加行锁，须在事务内调用
func (r *PathwayRepository) LockProgress(ctx context.Context, userID, pathwayID uint) (*model.PathwayProgress, error) {
	seed := &model.PathwayProgress{
		UserID:          userID,
		PathwayID:       pathwayID,
		CompletedOrders: []int{},
		Status:          model.PathwayInProgress,
	}
	if err := r.DB.WithContext(ctx).Clauses(clause.OnConflict{DoNothing: true}).Create(seed).Error; err != nil {
		return nil, err
	}

	var p model.PathwayProgress
	err := r.DB.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("user_id = ? AND pathway_id = ?", userID, pathwayID).
		First(&p).Error
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func (r *PathwayRepository) SaveProgress(ctx context.Context, p *model.PathwayProgress) error {
	return r.DB.WithContext(ctx).Save(p).Error
}

func (r *PathwayRepository) FindProgress(ctx context.Context, userID, pathwayID uint) (*model.PathwayProgress, error) {
	var p model.PathwayProgress
	err := r.DB.WithContext(ctx).Where("user_id = ? AND pathway_id = ?", userID, pathwayID).First(&p).Error
	if err != nil {
		return nil, err
	}
	return &p, nil
}
