package service

import (
	"context"
	"edupath_backend/internal/model"
	"edupath_backend/internal/repository"
	"edupath_backend/pkg/logger"
	"errors"
	"fmt"

	"go.uber.org/zap"
)

// CompletionRewarder 首次通过判定、积分奖励与徽章授予。每一步都可单独重试
type CompletionRewarder struct {
	AttemptRepo *repository.AttemptRepository
	Ledger      *LedgerService
	Badges      *BadgeService
}

func NewCompletionRewarder(attemptRepo *repository.AttemptRepository, ledger *LedgerService, badges *BadgeService) *CompletionRewarder {
	return &CompletionRewarder{
		AttemptRepo: attemptRepo,
		Ledger:      ledger,
		Badges:      badges,
	}
}

func quizReference(quizID, userID uint) string {
	return fmt.Sprintf("quiz:%d:user:%d", quizID, userID)
}

func pathwayReference(pathwayID, userID uint) string {
	return fmt.Sprintf("pathway:%d:user:%d", pathwayID, userID)
}

func attemptSource(attemptID uint) string {
	return fmt.Sprintf("attempt:%d", attemptID)
}

// ClaimFirstSuccess 通过 quiz_first_completions 唯一约束声明首次通过
func (r *CompletionRewarder) ClaimFirstSuccess(ctx context.Context, ev *CompletionEvent) error {
	claimed, err := r.AttemptRepo.ClaimFirstCompletion(ctx, ev.UserID, ev.QuizID, ev.AttemptID)
	if err != nil {
		return err
	}
	ev.FirstSuccess = claimed
	if !claimed {
		logger.Log.Debug("quiz already completed before, skipping one-time rewards",
			zap.Uint("attemptId", ev.AttemptID),
			zap.Uint("quizId", ev.QuizID))
		return nil
	}
	return r.AttemptRepo.MarkFirstCompletion(ctx, ev.AttemptID)
}

// RewardPoints 首次通过时发放测验积分
func (r *CompletionRewarder) RewardPoints(ctx context.Context, ev *CompletionEvent) error {
	if !ev.FirstSuccess || ev.CompletionPoints <= 0 {
		return nil
	}
	reason := fmt.Sprintf("Completed quiz \"%s\"", ev.QuizTitle)
	_, err := r.Ledger.Credit(ctx, ev.UserID, ev.CompletionPoints, reason, quizReference(ev.QuizID, ev.UserID), "quiz")
	return err
}

// AwardBadges 首次通过时评估积分阈值、测验完成与首个测验徽章
func (r *CompletionRewarder) AwardBadges(ctx context.Context, ev *CompletionEvent) error {
	if !ev.FirstSuccess {
		return nil
	}
	source := attemptSource(ev.AttemptID)

	var errs []error
	if err := r.AwardThresholdBadges(ctx, ev.UserID, source); err != nil {
		errs = append(errs, err)
	}

	quizBadges, err := r.Badges.ActiveByTrigger(ctx, model.TriggerQuizCompleted)
	if err != nil {
		errs = append(errs, err)
	}
	for _, b := range quizBadges {
		if !quizBadgeMatches(b.Condition.Data(), ev.QuizID, ev.Score) {
			continue
		}
		if _, err := r.Badges.AwardIfAbsent(ctx, ev.UserID, b, source); err != nil {
			errs = append(errs, err)
		}
	}

	// 首次通过必然意味着学生至少完成过一个测验，授予即“不存在则创建”
	firstBadges, err := r.Badges.ActiveByTrigger(ctx, model.TriggerFirstQuizEver)
	if err != nil {
		errs = append(errs, err)
	}
	for _, b := range firstBadges {
		if _, err := r.Badges.AwardIfAbsent(ctx, ev.UserID, b, source); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// AwardThresholdBadges 按当前余额评估 POINTS_THRESHOLD 徽章
func (r *CompletionRewarder) AwardThresholdBadges(ctx context.Context, userID uint, source string) error {
	badges, err := r.Badges.ActiveByTrigger(ctx, model.TriggerPointsThreshold)
	if err != nil {
		return err
	}
	if len(badges) == 0 {
		return nil
	}
	balance, err := r.Ledger.Balance(ctx, userID)
	if err != nil {
		return err
	}

	var errs []error
	for _, b := range badges {
		cond := b.Condition.Data()
		if cond.Threshold == nil || balance < *cond.Threshold {
			continue
		}
		if _, err := r.Badges.AwardIfAbsent(ctx, userID, b, source); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func quizBadgeMatches(cond model.BadgeCondition, quizID uint, score *float64) bool {
	if cond.QuizID != nil && *cond.QuizID != quizID {
		return false
	}
	if cond.MinScore != nil && (score == nil || *score < *cond.MinScore) {
		return false
	}
	return true
}

func pathwayBadgeMatches(cond model.BadgeCondition, pathwayID uint) bool {
	return cond.PathwayID == nil || *cond.PathwayID == pathwayID
}
