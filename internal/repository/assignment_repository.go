package repository

import (
	"context"
	"edupath_backend/internal/model"

	"gorm.io/gorm"
)

type AssignmentRepository struct {
	DB *gorm.DB
}

func NewAssignmentRepository(db *gorm.DB) *AssignmentRepository {
	return &AssignmentRepository{DB: db}
}

func (r *AssignmentRepository) Create(ctx context.Context, a *model.Assignment) error {
	return r.DB.WithContext(ctx).Create(a).Error
}

func (r *AssignmentRepository) AddGroupMember(ctx context.Context, groupID, userID uint) error {
	return r.DB.WithContext(ctx).Create(&model.GroupMember{GroupID: groupID, UserID: userID}).Error
}

// IsAssigned 学生是否被直接或通过班组分配了目标
func (r *AssignmentRepository) IsAssigned(ctx context.Context, userID uint, targetType string, targetID uint) (bool, error) {
	db := r.DB.WithContext(ctx)
	groupIDs := db.Model(&model.GroupMember{}).Select("group_id").Where("user_id = ?", userID)

	var count int64
	err := db.Model(&model.Assignment{}).
		Where("target_type = ? AND target_id = ?", targetType, targetID).
		Where(db.Where("user_id = ?", userID).Or("group_id IN (?)", groupIDs)).
		Count(&count).Error
	if err != nil {
		return false, err
	}
	return count > 0, nil
}
