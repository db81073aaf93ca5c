package service

import (
	"context"
	"edupath_backend/internal/model"
	"edupath_backend/internal/repository"
	"edupath_backend/pkg/monitoring"
	"fmt"
)

// BadgeService 徽章目录读取与“不存在则授予”
type BadgeService struct {
	BadgeRepo *repository.BadgeRepository
	Notifier  NotificationSink
}

func NewBadgeService(badgeRepo *repository.BadgeRepository, notifier NotificationSink) *BadgeService {
	return &BadgeService{BadgeRepo: badgeRepo, Notifier: notifier}
}

func (s *BadgeService) ActiveByTrigger(ctx context.Context, trigger model.TriggerType) ([]model.Badge, error) {
	return s.BadgeRepo.ActiveByTrigger(ctx, trigger)
}

// AwardIfAbsent 返回本次是否新授予；已拥有不算错误
func (s *BadgeService) AwardIfAbsent(ctx context.Context, userID uint, badge model.Badge, source string) (bool, error) {
	created, err := s.BadgeRepo.AwardIfAbsent(ctx, userID, badge.ID, source)
	if err != nil {
		return false, err
	}
	if created {
		monitoring.BadgesAwarded.WithLabelValues(string(badge.TriggerType)).Inc()
		if s.Notifier != nil {
			s.Notifier.Emit(ctx, userID,
				fmt.Sprintf("You earned the badge \"%s\"", badge.Name),
				"/badges",
				model.NotificationBadgeEarned)
		}
	}
	return created, nil
}

func (s *BadgeService) ListEarned(ctx context.Context, userID uint) ([]model.EarnedBadge, error) {
	return s.BadgeRepo.ListEarned(ctx, userID)
}
