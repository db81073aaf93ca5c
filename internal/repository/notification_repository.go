package repository

import (
	"context"
	"edupath_backend/internal/model"

	"gorm.io/gorm"
)

type NotificationRepository struct {
	DB *gorm.DB
}

func NewNotificationRepository(db *gorm.DB) *NotificationRepository {
	return &NotificationRepository{DB: db}
}

func (r *NotificationRepository) Create(ctx context.Context, n *model.Notification) error {
	return r.DB.WithContext(ctx).Create(n).Error
}

func (r *NotificationRepository) ListByUser(ctx context.Context, userID uint, page, limit int) ([]model.Notification, int64, error) {
	query := r.DB.WithContext(ctx).Model(&model.Notification{}).Where("user_id = ?", userID).Session(&gorm.Session{})
	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}
	var ns []model.Notification
	offset := (page - 1) * limit
	err := query.Order("id desc").Offset(offset).Limit(limit).Find(&ns).Error
	return ns, total, err
}
