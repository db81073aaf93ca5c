package service

import (
	"context"
	"edupath_backend/internal/model"
	"edupath_backend/internal/repository"
	"edupath_backend/internal/util"
	"edupath_backend/pkg/logger"
	"edupath_backend/pkg/monitoring"
	"edupath_backend/pkg/tracing"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Verdict 单个开放题答案的人工评分
type Verdict struct {
	AnswerID  uint   `json:"answerId" binding:"required"`
	IsCorrect bool   `json:"isCorrect"`
	Comment   string `json:"comment"`
}

// GradingService 人工评分：整批校验、单事务落库、与自动完成共用终态判定和奖励流程
type GradingService struct {
	DB          *gorm.DB
	AttemptRepo *repository.AttemptRepository
	QuizRepo    *repository.QuizRepository
	Scoring     *ScoringEngine
	Pipeline    *CompletionPipeline
	Notifier    NotificationSink
	Archiver    GradingArchiver
	Settings    *EngineSettings
}

func NewGradingService(
	db *gorm.DB,
	attemptRepo *repository.AttemptRepository,
	quizRepo *repository.QuizRepository,
	scoring *ScoringEngine,
	pipeline *CompletionPipeline,
	notifier NotificationSink,
	archiver GradingArchiver,
	settings *EngineSettings,
) *GradingService {
	return &GradingService{
		DB:          db,
		AttemptRepo: attemptRepo,
		QuizRepo:    quizRepo,
		Scoring:     scoring,
		Pipeline:    pipeline,
		Notifier:    notifier,
		Archiver:    archiver,
		Settings:    settings,
	}
}

// ListPending 教师只能看到自己测验的待评分尝试，管理员可见全部
func (s *GradingService) ListPending(ctx context.Context, graderID uint, isAdmin bool, page, limit int) ([]model.Attempt, int64, error) {
	var creator *uint
	if !isAdmin {
		creator = &graderID
	}
	return s.AttemptRepo.ListPending(ctx, creator, page, limit)
}

// GradeAttempt 判定集合必须与该尝试的开放题答案集合完全一致，否则整批拒绝
func (s *GradingService) GradeAttempt(ctx context.Context, graderID uint, isAdmin bool, attemptID uint, verdicts []Verdict) (*model.Attempt, error) {
	ctx, span := tracing.Start(ctx, "grading.grade_attempt")
	defer span.End()
	span.SetAttributes(attribute.Int64("attempt.id", int64(attemptID)))

	attempt, err := s.AttemptRepo.FindByID(ctx, attemptID)
	if err != nil {
		return nil, err
	}
	if attempt.Status != model.AttemptPendingGrading {
		return nil, util.ErrAttemptNotPending
	}
	quiz, err := s.QuizRepo.FindWithQuestions(ctx, attempt.QuizID)
	if err != nil {
		return nil, err
	}
	if !isAdmin && quiz.CreatorID != graderID {
		return nil, util.ErrPermissionDenied
	}

	answers, err := s.AttemptRepo.GetAnswers(ctx, attemptID)
	if err != nil {
		return nil, err
	}
	manual, err := s.manualAnswers(quiz, answers)
	if err != nil {
		return nil, err
	}
	if err := matchVerdicts(manual, verdicts); err != nil {
		return nil, err
	}

	now := time.Now()
	for _, v := range verdicts {
		a := manual[v.AnswerID]
		earned := 0.0
		if v.IsCorrect {
			earned = a.maxPoints
		}
		a.answer.IsCorrect = util.BoolPtr(v.IsCorrect)
		a.answer.Score = util.Float64Ptr(earned)
		a.answer.GraderComment = v.Comment
		a.answer.GradedAt = &now
	}

	evals, err := evaluateAttempt(s.Scoring, quiz, answers)
	if err != nil {
		return nil, err
	}
	status, score := decideOutcome(quiz, evals, s.Settings.BlendManualScores())
	if score == nil {
		// 无可计分题目（空测验或全部 0 分题）时无法得出得分，按 0 分未通过结案
		logger.Log.Warn("aggregate score undefined, finalizing as failed", zap.Uint("attemptId", attemptID))
		status, score = model.AttemptFailed, util.Float64Ptr(0)
	}

	err = s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		repo := s.AttemptRepo.WithTx(tx)
		for _, v := range verdicts {
			a := manual[v.AnswerID].answer
			if err := repo.SaveVerdict(ctx, a.ID, v.IsCorrect, *a.Score, v.Comment, now); err != nil {
				return err
			}
		}
		if err := persistAutoEvaluations(ctx, repo, evals, answers); err != nil {
			return err
		}
		ok, err := repo.Transition(ctx, attemptID, []model.AttemptStatus{model.AttemptPendingGrading}, status, map[string]interface{}{
			"score":        *score,
			"completed_at": now,
			"graded_by":    graderID,
		})
		if err != nil {
			return err
		}
		if !ok {
			return util.ErrAttemptAlreadyFinalized
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	monitoring.AttemptsFinalized.WithLabelValues(string(status)).Inc()
	logger.Log.Info("attempt graded",
		zap.Uint("attemptId", attemptID),
		zap.Uint("graderId", graderID),
		zap.String("status", string(status)),
		zap.Float64("score", *score))

	attempt.Status = status
	attempt.Score = score
	attempt.CompletedAt = &now
	attempt.GradedBy = &graderID
	if status == model.AttemptCompleted {
		if err := s.Pipeline.Run(ctx, NewCompletionEvent(attempt, quiz)); err != nil {
			logger.Log.Warn("completion rewards degraded", zap.Uint("attemptId", attemptID), zap.Error(err))
		}
	}

	if s.Notifier != nil {
		s.Notifier.Emit(ctx, attempt.UserID,
			fmt.Sprintf("Your attempt on \"%s\" has been graded: %.2f%%", quiz.Title, *score),
			fmt.Sprintf("/attempts/%d", attemptID),
			model.NotificationAttemptGraded)
	}

	if s.Archiver != nil && s.Settings.ArchiveEnabled() {
		snapshot := &GradedAttemptSnapshot{
			Attempt:  *attempt,
			Answers:  answers,
			Verdicts: verdicts,
			GraderID: graderID,
			GradedAt: now,
		}
		if key, err := s.Archiver.ArchiveGradedAttempt(ctx, snapshot); err != nil {
			logger.Log.Warn("failed to archive graded attempt", zap.Uint("attemptId", attemptID), zap.Error(err))
		} else {
			logger.Log.Debug("graded attempt archived", zap.Uint("attemptId", attemptID), zap.String("key", key))
		}
	}

	return s.AttemptRepo.FindWithAnswers(ctx, attemptID)
}

type manualAnswer struct {
	answer    *model.SubmittedAnswer
	maxPoints float64
}

func (s *GradingService) manualAnswers(quiz *model.Quiz, answers []model.SubmittedAnswer) (map[uint]manualAnswer, error) {
	questions := make(map[uint]*model.Question, len(quiz.Questions))
	for i := range quiz.Questions {
		questions[quiz.Questions[i].ID] = &quiz.Questions[i]
	}
	manual := make(map[uint]manualAnswer)
	for i := range answers {
		q, ok := questions[answers[i].QuestionID]
		if !ok || !q.QuestionType.IsManual() {
			continue
		}
		maxPoints, err := s.Scoring.MaxPoints(q)
		if err != nil {
			return nil, err
		}
		manual[answers[i].ID] = manualAnswer{answer: &answers[i], maxPoints: maxPoints}
	}
	return manual, nil
}

func matchVerdicts(manual map[uint]manualAnswer, verdicts []Verdict) error {
	if len(verdicts) != len(manual) {
		return fmt.Errorf("%w: expected %d verdicts, got %d", util.ErrGradingSetMismatch, len(manual), len(verdicts))
	}
	seen := make(map[uint]struct{}, len(verdicts))
	for _, v := range verdicts {
		if _, ok := manual[v.AnswerID]; !ok {
			return fmt.Errorf("%w: answer %d is not an open-answer submission of this attempt", util.ErrGradingSetMismatch, v.AnswerID)
		}
		if _, dup := seen[v.AnswerID]; dup {
			return fmt.Errorf("%w: duplicate verdict for answer %d", util.ErrGradingSetMismatch, v.AnswerID)
		}
		seen[v.AnswerID] = struct{}{}
	}
	return nil
}
