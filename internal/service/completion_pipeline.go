package service

import (
	"context"
	"edupath_backend/internal/model"
	"edupath_backend/internal/repository"
	"edupath_backend/internal/util"
	"edupath_backend/pkg/logger"
	"edupath_backend/pkg/monitoring"
	"edupath_backend/pkg/tracing"
	"errors"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/codes"
	"go.uber.org/zap"
)

const (
	StepClaimFirstSuccess = "claim_first_success"
	StepRewardPoints      = "reward_points"
	StepAwardBadges       = "award_badges"
	StepPropagatePathways = "propagate_pathways"
)

// CompletionEvent 尝试进入 COMPLETED 后在各步骤间传递的事件
type CompletionEvent struct {
	AttemptID        uint
	UserID           uint
	QuizID           uint
	QuizTitle        string
	CompletionPoints int
	Score            *float64
	FirstSuccess     bool
	CompletedAt      time.Time
	// Retry 由管理员重放时为 true，已完成路径的奖励会重新对账（幂等）
	Retry bool
}

type PipelineStep struct {
	Name string
	Run  func(ctx context.Context, ev *CompletionEvent) error
}

// CompletionPipeline AttemptCompleted → 有序步骤。某步失败只记录，不阻断后续步骤，也不回滚尝试状态
type CompletionPipeline struct {
	AttemptRepo *repository.AttemptRepository
	QuizRepo    *repository.QuizRepository
	steps       []PipelineStep
}

func NewCompletionPipeline(attemptRepo *repository.AttemptRepository, quizRepo *repository.QuizRepository, rewarder *CompletionRewarder, tracker *PathwayProgressTracker) *CompletionPipeline {
	return &CompletionPipeline{
		AttemptRepo: attemptRepo,
		QuizRepo:    quizRepo,
		steps: []PipelineStep{
			{Name: StepClaimFirstSuccess, Run: rewarder.ClaimFirstSuccess},
			{Name: StepRewardPoints, Run: rewarder.RewardPoints},
			{Name: StepAwardBadges, Run: rewarder.AwardBadges},
			{Name: StepPropagatePathways, Run: tracker.Propagate},
		},
	}
}

// StepNames 按执行顺序返回步骤名
func (p *CompletionPipeline) StepNames() []string {
	names := make([]string, 0, len(p.steps))
	for _, s := range p.steps {
		names = append(names, s.Name)
	}
	return names
}

// Run 依次执行所有步骤，返回合并后的错误，仅用于记录
func (p *CompletionPipeline) Run(ctx context.Context, ev *CompletionEvent) error {
	var errs []error
	for _, step := range p.steps {
		if err := p.runStep(ctx, step, ev); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", step.Name, err))
		}
	}
	return errors.Join(errs...)
}

// RunStep 单独重放一个步骤
func (p *CompletionPipeline) RunStep(ctx context.Context, ev *CompletionEvent, name string) error {
	for _, step := range p.steps {
		if step.Name == name {
			return p.runStep(ctx, step, ev)
		}
	}
	return fmt.Errorf("%w: %s", util.ErrUnknownPipelineStep, name)
}

func (p *CompletionPipeline) runStep(ctx context.Context, step PipelineStep, ev *CompletionEvent) error {
	ctx, span := tracing.Start(ctx, "completion."+step.Name)
	defer span.End()

	if err := step.Run(ctx, ev); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		monitoring.RewardFailures.WithLabelValues(step.Name).Inc()
		logger.Log.Error("completion step failed",
			zap.String("step", step.Name),
			zap.Uint("attemptId", ev.AttemptID),
			zap.Uint("userId", ev.UserID),
			zap.Error(err))
		return err
	}
	return nil
}

// BuildEvent 从已完成的尝试重建事件，供重放使用
func (p *CompletionPipeline) BuildEvent(ctx context.Context, attemptID uint) (*CompletionEvent, error) {
	attempt, err := p.AttemptRepo.FindByID(ctx, attemptID)
	if err != nil {
		return nil, err
	}
	if attempt.Status != model.AttemptCompleted {
		return nil, util.ErrAttemptNotCompleted
	}
	quiz, err := p.QuizRepo.FindByID(ctx, attempt.QuizID)
	if err != nil {
		return nil, err
	}
	ev := NewCompletionEvent(attempt, quiz)
	ev.FirstSuccess = attempt.FirstCorrectCompletion
	ev.Retry = true
	return ev, nil
}

func NewCompletionEvent(attempt *model.Attempt, quiz *model.Quiz) *CompletionEvent {
	completedAt := time.Now()
	if attempt.CompletedAt != nil {
		completedAt = *attempt.CompletedAt
	}
	return &CompletionEvent{
		AttemptID:        attempt.ID,
		UserID:           attempt.UserID,
		QuizID:           quiz.ID,
		QuizTitle:        quiz.Title,
		CompletionPoints: quiz.CompletionPoints,
		Score:            attempt.Score,
		CompletedAt:      completedAt,
	}
}
