package service

import (
	"context"
	"edupath_backend/internal/model"
	"edupath_backend/internal/repository"
	"edupath_backend/internal/util"
	"edupath_backend/pkg/logger"
	"edupath_backend/pkg/monitoring"
	"edupath_backend/pkg/tracing"
	"encoding/json"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// AttemptService 尝试状态机：IN_PROGRESS → PENDING_GRADING | COMPLETED | FAILED
type AttemptService struct {
	DB             *gorm.DB
	AttemptRepo    *repository.AttemptRepository
	QuizRepo       *repository.QuizRepository
	AssignmentRepo *repository.AssignmentRepository
	PathwayRepo    *repository.PathwayRepository
	Scoring        *ScoringEngine
	Pipeline       *CompletionPipeline
	Settings       *EngineSettings
}

func NewAttemptService(
	db *gorm.DB,
	attemptRepo *repository.AttemptRepository,
	quizRepo *repository.QuizRepository,
	assignmentRepo *repository.AssignmentRepository,
	pathwayRepo *repository.PathwayRepository,
	scoring *ScoringEngine,
	pipeline *CompletionPipeline,
	settings *EngineSettings,
) *AttemptService {
	return &AttemptService{
		DB:             db,
		AttemptRepo:    attemptRepo,
		QuizRepo:       quizRepo,
		AssignmentRepo: assignmentRepo,
		PathwayRepo:    pathwayRepo,
		Scoring:        scoring,
		Pipeline:       pipeline,
		Settings:       settings,
	}
}

// StartAttempt 学生需直接、通过班组或通过所在路径被分配该测验
func (s *AttemptService) StartAttempt(ctx context.Context, userID, quizID uint) (*model.Attempt, error) {
	quiz, err := s.QuizRepo.FindByID(ctx, quizID)
	if err != nil {
		return nil, err
	}
	if !quiz.IsPublished {
		return nil, util.ErrQuizNotFound
	}

	assigned, err := s.AssignmentRepo.IsAssigned(ctx, userID, model.AssignmentTargetQuiz, quizID)
	if err != nil {
		return nil, err
	}
	if !assigned {
		refs, err := s.PathwayRepo.FindAssignedStepsForQuiz(ctx, userID, quizID)
		if err != nil {
			return nil, err
		}
		if len(refs) == 0 {
			return nil, util.ErrNotAssigned
		}
	}

	attempt := &model.Attempt{
		UserID:    userID,
		QuizID:    quizID,
		Status:    model.AttemptInProgress,
		StartedAt: time.Now(),
	}
	if err := s.AttemptRepo.Create(ctx, attempt); err != nil {
		return nil, err
	}
	return attempt, nil
}

func (s *AttemptService) ownedAttempt(ctx context.Context, userID, attemptID uint) (*model.Attempt, error) {
	attempt, err := s.AttemptRepo.FindByID(ctx, attemptID)
	if err != nil {
		return nil, err
	}
	if attempt.UserID != userID {
		return nil, util.ErrPermissionDenied
	}
	return attempt, nil
}

// GetAttempt 返回尝试及已提交答案
func (s *AttemptService) GetAttempt(ctx context.Context, userID, attemptID uint) (*model.Attempt, error) {
	if _, err := s.ownedAttempt(ctx, userID, attemptID); err != nil {
		return nil, err
	}
	return s.AttemptRepo.FindWithAnswers(ctx, attemptID)
}

// SubmitAnswer 每题一条，重复提交覆盖并清空已有评估
func (s *AttemptService) SubmitAnswer(ctx context.Context, userID, attemptID, questionID uint, payload json.RawMessage) (*model.SubmittedAnswer, error) {
	attempt, err := s.ownedAttempt(ctx, userID, attemptID)
	if err != nil {
		return nil, err
	}
	if attempt.Status != model.AttemptInProgress {
		return nil, util.ErrAttemptNotInProgress
	}

	question, err := s.QuizRepo.FindQuestion(ctx, attempt.QuizID, questionID)
	if err != nil {
		return nil, err
	}
	if err := s.Scoring.Validate(question, payload); err != nil {
		return nil, err
	}

	answer := &model.SubmittedAnswer{
		AttemptID:  attemptID,
		QuestionID: questionID,
		Payload:    datatypes.JSON(payload),
	}
	if err := s.AttemptRepo.UpsertAnswer(ctx, answer); err != nil {
		return nil, err
	}
	return s.AttemptRepo.FindAnswer(ctx, attemptID, questionID)
}

// EvaluateAnswers 部分批阅：评估并保存所有自动题答案，不改变尝试状态
func (s *AttemptService) EvaluateAnswers(ctx context.Context, userID, attemptID uint) ([]Evaluation, error) {
	attempt, err := s.ownedAttempt(ctx, userID, attemptID)
	if err != nil {
		return nil, err
	}
	if attempt.Status != model.AttemptInProgress {
		return nil, util.ErrAttemptNotInProgress
	}
	quiz, err := s.QuizRepo.FindWithQuestions(ctx, attempt.QuizID)
	if err != nil {
		return nil, err
	}
	answers, err := s.AttemptRepo.GetAnswers(ctx, attemptID)
	if err != nil {
		return nil, err
	}

	evals, err := evaluateAttempt(s.Scoring, quiz, answers)
	if err != nil {
		return nil, err
	}
	if err := persistAutoEvaluations(ctx, s.AttemptRepo, evals, answers); err != nil {
		return nil, err
	}
	return evals, nil
}

// CompleteAttempt 完成请求：校验人工题已作答，评估自动题，确定终态或进入人工评分
func (s *AttemptService) CompleteAttempt(ctx context.Context, userID, attemptID uint) (*model.Attempt, error) {
	ctx, span := tracing.Start(ctx, "attempt.complete")
	defer span.End()
	span.SetAttributes(attribute.Int64("attempt.id", int64(attemptID)))

	attempt, err := s.ownedAttempt(ctx, userID, attemptID)
	if err != nil {
		return nil, err
	}
	switch {
	case attempt.Status.IsTerminal():
		return nil, util.ErrAttemptAlreadyFinalized
	case attempt.Status != model.AttemptInProgress:
		return nil, util.ErrAttemptNotInProgress
	}

	quiz, err := s.QuizRepo.FindWithQuestions(ctx, attempt.QuizID)
	if err != nil {
		return nil, err
	}
	answers, err := s.AttemptRepo.GetAnswers(ctx, attemptID)
	if err != nil {
		return nil, err
	}
	if !manualAnswered(quiz, answers) {
		return nil, util.ErrManualAnswersMissing
	}

	evals, err := evaluateAttempt(s.Scoring, quiz, answers)
	if err != nil {
		return nil, err
	}

	status, score := model.AttemptPendingGrading, (*float64)(nil)
	if !hasManualQuestion(quiz) {
		status, score = decideOutcome(quiz, evals, s.Settings.BlendManualScores())
	}

	now := time.Now()
	err = s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		repo := s.AttemptRepo.WithTx(tx)
		if err := persistAutoEvaluations(ctx, repo, evals, answers); err != nil {
			return err
		}
		fields := map[string]interface{}{"submitted_at": now}
		if score != nil {
			fields["score"] = *score
		}
		if status.IsTerminal() {
			fields["completed_at"] = now
		}
		ok, err := repo.Transition(ctx, attemptID, []model.AttemptStatus{model.AttemptInProgress}, status, fields)
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
	logger.Log.Info("attempt submitted",
		zap.Uint("attemptId", attemptID),
		zap.Uint("userId", userID),
		zap.String("status", string(status)))

	attempt.Status = status
	attempt.Score = score
	attempt.SubmittedAt = &now
	if status == model.AttemptCompleted {
		attempt.CompletedAt = &now
		if err := s.Pipeline.Run(ctx, NewCompletionEvent(attempt, quiz)); err != nil {
			logger.Log.Warn("completion rewards degraded", zap.Uint("attemptId", attemptID), zap.Error(err))
		}
	}
	return s.AttemptRepo.FindWithAnswers(ctx, attemptID)
}

func hasManualQuestion(quiz *model.Quiz) bool {
	for _, q := range quiz.Questions {
		if q.QuestionType.IsManual() {
			return true
		}
	}
	return false
}

func manualAnswered(quiz *model.Quiz, answers []model.SubmittedAnswer) bool {
	answered := make(map[uint]struct{}, len(answers))
	for _, a := range answers {
		answered[a.QuestionID] = struct{}{}
	}
	for _, q := range quiz.Questions {
		if !q.QuestionType.IsManual() {
			continue
		}
		if _, ok := answered[q.ID]; !ok {
			return false
		}
	}
	return true
}

// evaluateAttempt 按题目顺序评估；人工题若已评分则带出人工得分
func evaluateAttempt(engine *ScoringEngine, quiz *model.Quiz, answers []model.SubmittedAnswer) ([]Evaluation, error) {
	byQuestion := make(map[uint]*model.SubmittedAnswer, len(answers))
	for i := range answers {
		byQuestion[answers[i].QuestionID] = &answers[i]
	}

	evals := make([]Evaluation, 0, len(quiz.Questions))
	for i := range quiz.Questions {
		q := &quiz.Questions[i]
		var raw []byte
		answer := byQuestion[q.ID]
		if answer != nil {
			raw = answer.Payload
		}
		ev, err := engine.Evaluate(q, raw)
		if err != nil {
			return nil, err
		}
		if ev.Manual && answer != nil && answer.Score != nil {
			ev.IsCorrect = answer.IsCorrect
			ev.PointsEarned = answer.Score
		}
		evals = append(evals, ev)
	}
	return evals, nil
}

func persistAutoEvaluations(ctx context.Context, repo *repository.AttemptRepository, evals []Evaluation, answers []model.SubmittedAnswer) error {
	answerIDs := make(map[uint]uint, len(answers))
	for _, a := range answers {
		answerIDs[a.QuestionID] = a.ID
	}
	for _, ev := range evals {
		if ev.Manual {
			continue
		}
		id, ok := answerIDs[ev.QuestionID]
		if !ok {
			continue
		}
		if err := repo.SaveEvaluation(ctx, id, ev.IsCorrect, ev.PointsEarned); err != nil {
			return err
		}
	}
	return nil
}

// decideOutcome 总分无法定义时转人工评分，否则按及格线判定
func decideOutcome(quiz *model.Quiz, evals []Evaluation, blendManual bool) (model.AttemptStatus, *float64) {
	score := Aggregate(evals, blendManual, quiz.MaxScoreOverride)
	if score == nil {
		return model.AttemptPendingGrading, nil
	}
	// 0 表示任意得分都通过；负数视为未配置
	threshold := quiz.PassThreshold
	if threshold < 0 {
		threshold = 100
	}
	if *score >= threshold {
		return model.AttemptCompleted, score
	}
	return model.AttemptFailed, score
}
