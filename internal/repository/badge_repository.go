package repository

import (
	"context"
	"edupath_backend/internal/model"
	"errors"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type BadgeRepository struct {
	DB *gorm.DB
}

func NewBadgeRepository(db *gorm.DB) *BadgeRepository {
	return &BadgeRepository{DB: db}
}

func (r *BadgeRepository) Create(ctx context.Context, b *model.Badge) error {
	return r.DB.WithContext(ctx).Create(b).Error
}

func (r *BadgeRepository) ActiveByTrigger(ctx context.Context, trigger model.TriggerType) ([]model.Badge, error) {
	var badges []model.Badge
	err := r.DB.WithContext(ctx).
		Where("trigger_type = ? AND active = ?", trigger, true).
		Order("id asc").
		Find(&badges).Error
	return badges, err
}

// AwardIfAbsent 单条条件插入，依赖 (user_id, badge_id) 唯一约束防重；唯一冲突视为已拥有
func (r *BadgeRepository) AwardIfAbsent(ctx context.Context, userID, badgeID uint, source string) (bool, error) {
	row := &model.EarnedBadge{
		UserID:   userID,
		BadgeID:  badgeID,
		Source:   source,
		EarnedAt: time.Now(),
	}
	res := r.DB.WithContext(ctx).
		Omit(clause.Associations).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(row)
	if res.Error != nil {
		if errors.Is(res.Error, gorm.ErrDuplicatedKey) {
			return false, nil
		}
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

func (r *BadgeRepository) ListEarned(ctx context.Context, userID uint) ([]model.EarnedBadge, error) {
	var earned []model.EarnedBadge
	err := r.DB.WithContext(ctx).
		Preload("Badge").
		Where("user_id = ?", userID).
		Order("earned_at asc").
		Find(&earned).Error
	return earned, err
}

func (r *BadgeRepository) CountEarned(ctx context.Context, userID, badgeID uint) (int64, error) {
	var count int64
	err := r.DB.WithContext(ctx).Model(&model.EarnedBadge{}).
		Where("user_id = ? AND badge_id = ?", userID, badgeID).
		Count(&count).Error
	return count, err
}
