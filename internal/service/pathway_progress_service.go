package service

import (
	"context"
	"edupath_backend/internal/model"
	"edupath_backend/internal/repository"
	"edupath_backend/pkg/logger"
	"errors"
	"fmt"
	"sort"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

// PathwayProgressTracker 每次成功完成都推进学生所在路径的步骤进度
type PathwayProgressTracker struct {
	DB          *gorm.DB
	PathwayRepo *repository.PathwayRepository
	Ledger      *LedgerService
	Badges      *BadgeService
	Rewarder    *CompletionRewarder
	Notifier    NotificationSink
}

func NewPathwayProgressTracker(db *gorm.DB, pathwayRepo *repository.PathwayRepository, ledger *LedgerService, badges *BadgeService, rewarder *CompletionRewarder, notifier NotificationSink) *PathwayProgressTracker {
	return &PathwayProgressTracker{
		DB:          db,
		PathwayRepo: pathwayRepo,
		Ledger:      ledger,
		Badges:      badges,
		Rewarder:    rewarder,
		Notifier:    notifier,
	}
}

type PathwayProgressView struct {
	PathwayID          uint       `json:"pathwayId"`
	Title              string     `json:"title"`
	StepOrders         []int      `json:"stepOrders"`
	CompletedOrders    []int      `json:"completedOrders"`
	LastCompletedOrder int        `json:"lastCompletedOrder"`
	Status             string     `json:"status"`
	CompletedAt        *time.Time `json:"completedAt,omitempty"`
}

// Propagate 对每条包含该测验的已分配路径独立加锁更新；与首次通过与否无关
func (t *PathwayProgressTracker) Propagate(ctx context.Context, ev *CompletionEvent) error {
	refs, err := t.PathwayRepo.FindAssignedStepsForQuiz(ctx, ev.UserID, ev.QuizID)
	if err != nil {
		return err
	}

	byPathway := make(map[uint][]int)
	var pathwayIDs []uint
	for _, ref := range refs {
		if _, ok := byPathway[ref.PathwayID]; !ok {
			pathwayIDs = append(pathwayIDs, ref.PathwayID)
		}
		byPathway[ref.PathwayID] = append(byPathway[ref.PathwayID], ref.StepOrder)
	}

	var errs []error
	for _, pathwayID := range pathwayIDs {
		if err := t.advance(ctx, ev, pathwayID, byPathway[pathwayID]); err != nil {
			errs = append(errs, fmt.Errorf("pathway %d: %w", pathwayID, err))
		}
	}
	return errors.Join(errs...)
}

func (t *PathwayProgressTracker) advance(ctx context.Context, ev *CompletionEvent, pathwayID uint, orders []int) error {
	var newlyCompleted, completed bool
	err := t.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		repo := t.PathwayRepo.WithTx(tx)
		progress, err := repo.LockProgress(ctx, ev.UserID, pathwayID)
		if err != nil {
			return err
		}
		all, err := repo.StepOrders(ctx, pathwayID)
		if err != nil {
			return err
		}

		merged := mergeOrders(progress.CompletedOrders, orders)
		progress.CompletedOrders = merged
		if len(merged) > 0 {
			progress.LastCompletedOrder = merged[len(merged)-1]
		}
		if coversAll(merged, all) && progress.Status != model.PathwayCompleted {
			now := time.Now()
			progress.Status = model.PathwayCompleted
			progress.CompletedAt = &now
			progress.FirstCompletion = true
			newlyCompleted = true
		}
		completed = progress.Status == model.PathwayCompleted
		return repo.SaveProgress(ctx, progress)
	})
	if err != nil {
		return err
	}

	if newlyCompleted || (ev.Retry && completed) {
		return t.rewardCompletion(ctx, ev.UserID, pathwayID, newlyCompleted)
	}
	return nil
}

// rewardCompletion 路径首次完成后发放积分与徽章；重放时依赖幂等键与唯一约束不重复发放
func (t *PathwayProgressTracker) rewardCompletion(ctx context.Context, userID, pathwayID uint, notify bool) error {
	pathway, err := t.PathwayRepo.FindByID(ctx, pathwayID)
	if err != nil {
		return err
	}
	source := fmt.Sprintf("pathway:%d", pathwayID)

	var errs []error
	if pathway.CompletionPoints > 0 {
		reason := fmt.Sprintf("Completed pathway \"%s\"", pathway.Title)
		if _, err := t.Ledger.Credit(ctx, userID, pathway.CompletionPoints, reason, pathwayReference(pathwayID, userID), "pathway"); err != nil {
			errs = append(errs, err)
		}
	}

	badges, err := t.Badges.ActiveByTrigger(ctx, model.TriggerPathwayCompleted)
	if err != nil {
		errs = append(errs, err)
	}
	for _, b := range badges {
		if !pathwayBadgeMatches(b.Condition.Data(), pathwayID) {
			continue
		}
		if _, err := t.Badges.AwardIfAbsent(ctx, userID, b, source); err != nil {
			errs = append(errs, err)
		}
	}

	if t.Rewarder != nil && pathway.CompletionPoints > 0 {
		if err := t.Rewarder.AwardThresholdBadges(ctx, userID, source); err != nil {
			errs = append(errs, err)
		}
	}

	if notify && t.Notifier != nil {
		t.Notifier.Emit(ctx, userID,
			fmt.Sprintf("You completed the pathway \"%s\"", pathway.Title),
			fmt.Sprintf("/pathways/%d", pathwayID),
			model.NotificationPathwayCompleted)
	}

	logger.Log.Info("pathway completed",
		zap.Uint("userId", userID),
		zap.Uint("pathwayId", pathwayID),
		zap.Bool("retry", !notify))
	return errors.Join(errs...)
}

func (t *PathwayProgressTracker) GetProgress(ctx context.Context, userID, pathwayID uint) (*PathwayProgressView, error) {
	pathway, err := t.PathwayRepo.FindByID(ctx, pathwayID)
	if err != nil {
		return nil, err
	}
	view := &PathwayProgressView{
		PathwayID:       pathway.ID,
		Title:           pathway.Title,
		StepOrders:      make([]int, 0, len(pathway.Steps)),
		CompletedOrders: []int{},
		Status:          model.PathwayInProgress,
	}
	for _, s := range pathway.Steps {
		view.StepOrders = append(view.StepOrders, s.StepOrder)
	}

	progress, err := t.PathwayRepo.FindProgress(ctx, userID, pathwayID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return view, nil
		}
		return nil, err
	}
	view.CompletedOrders = append(view.CompletedOrders, progress.CompletedOrders...)
	view.LastCompletedOrder = progress.LastCompletedOrder
	view.Status = progress.Status
	view.CompletedAt = progress.CompletedAt
	return view, nil
}

// mergeOrders 合并步骤序号，去重并升序
func mergeOrders(existing, added []int) []int {
	seen := make(map[int]struct{}, len(existing)+len(added))
	merged := make([]int, 0, len(existing)+len(added))
	for _, list := range [][]int{existing, added} {
		for _, o := range list {
			if _, ok := seen[o]; ok {
				continue
			}
			seen[o] = struct{}{}
			merged = append(merged, o)
		}
	}
	sort.Ints(merged)
	return merged
}

// coversAll completed 与全部步骤序号集合相等
func coversAll(completed, all []int) bool {
	if len(all) == 0 {
		return false
	}
	want := mergeOrders(nil, all)
	if len(completed) != len(want) {
		return false
	}
	for i := range want {
		if completed[i] != want[i] {
			return false
		}
	}
	return true
}
