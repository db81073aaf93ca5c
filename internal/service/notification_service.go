package service

import (
	"context"
	"edupath_backend/internal/model"
	"edupath_backend/internal/repository"
	"edupath_backend/pkg/logger"
	"encoding/json"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"
)

// NotificationSink 通知出口，对调用方是“发出即忘”，投递失败不影响评分结果
type NotificationSink interface {
	Emit(ctx context.Context, userID uint, message, link, notifType string)
}

type NotificationService struct {
	Repo    *repository.NotificationRepository
	Redis   *redis.Client
	Channel string
}

func NewNotificationService(repo *repository.NotificationRepository, rdb *redis.Client, channel string) *NotificationService {
	return &NotificationService{Repo: repo, Redis: rdb, Channel: channel}
}

type notificationEvent struct {
	ID      uint   `json:"id"`
	UserID  uint   `json:"userId"`
	Message string `json:"message"`
	Link    string `json:"link"`
	Type    string `json:"type"`
}

// Emit 持久化通知并发布到 Redis 频道，错误只记录日志
func (s *NotificationService) Emit(ctx context.Context, userID uint, message, link, notifType string) {
	n := &model.Notification{
		UserID:  userID,
		Message: message,
		Link:    link,
		Type:    notifType,
	}
	if err := s.Repo.Create(ctx, n); err != nil {
		logger.Log.Error("failed to store notification", zap.Uint("userId", userID), zap.String("type", notifType), zap.Error(err))
		return
	}
	if s.Redis == nil || s.Channel == "" {
		return
	}
	payload, err := json.Marshal(notificationEvent{
		ID:      n.ID,
		UserID:  userID,
		Message: message,
		Link:    link,
		Type:    notifType,
	})
	if err != nil {
		logger.Log.Error("failed to encode notification", zap.Error(err))
		return
	}
	if err := s.Redis.Publish(ctx, s.Channel, payload).Err(); err != nil {
		logger.Log.Warn("failed to publish notification", zap.Uint("notificationId", n.ID), zap.Error(err))
	}
}

func (s *NotificationService) List(ctx context.Context, userID uint, page, limit int) ([]model.Notification, int64, error) {
	return s.Repo.ListByUser(ctx, userID, page, limit)
}
