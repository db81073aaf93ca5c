package service

import (
	"context"
	"edupath_backend/internal/config"
	"edupath_backend/internal/model"
	"edupath_backend/internal/repository"
	"encoding/json"
	"fmt"
	"strconv"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"gorm.io/datatypes"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

type sentNotification struct {
	UserID  uint
	Message string
	Link    string
	Type    string
}

type recordingSink struct {
	mu   sync.Mutex
	sent []sentNotification
}

func (s *recordingSink) Emit(ctx context.Context, userID uint, message, link, notifType string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sent = append(s.sent, sentNotification{UserID: userID, Message: message, Link: link, Type: notifType})
}

func (s *recordingSink) ofType(notifType string) []sentNotification {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []sentNotification
	for _, n := range s.sent {
		if n.Type == notifType {
			out = append(out, n)
		}
	}
	return out
}

type recordingArchiver struct {
	mu        sync.Mutex
	snapshots []*GradedAttemptSnapshot
}

func (a *recordingArchiver) ArchiveGradedAttempt(ctx context.Context, snapshot *GradedAttemptSnapshot) (string, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.snapshots = append(a.snapshots, snapshot)
	return fmt.Sprintf("grading/%d.json", snapshot.Attempt.ID), nil
}

type fixture struct {
	ctx         context.Context
	db          *gorm.DB
	cfg         *config.Config
	attemptRepo *repository.AttemptRepository
	quizRepo    *repository.QuizRepository
	pathwayRepo *repository.PathwayRepository
	assignRepo  *repository.AssignmentRepository
	walletRepo  *repository.WalletRepository
	badgeRepo   *repository.BadgeRepository
	userRepo    *repository.UserRepository

	settings *EngineSettings
	ledger   *LedgerService
	badges   *BadgeService
	rewarder *CompletionRewarder
	tracker  *PathwayProgressTracker
	pipeline *CompletionPipeline
	attempts *AttemptService
	grading  *GradingService
	sink     *recordingSink
	archiver *recordingArchiver
}

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared&_busy_timeout=5000", uuid.NewString())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger:         gormlogger.Default.LogMode(gormlogger.Silent),
		TranslateError: true,
	})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { sqlDB.Close() })

	require.NoError(t, db.AutoMigrate(model.AllModels()...))
	return db
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	db := newTestDB(t)
	cfg := &config.Config{
		Grading: config.GradingConfig{ArchiveEnabled: true},
	}

	f := &fixture{
		ctx:         context.Background(),
		db:          db,
		cfg:         cfg,
		attemptRepo: repository.NewAttemptRepository(db),
		quizRepo:    repository.NewQuizRepository(db),
		pathwayRepo: repository.NewPathwayRepository(db),
		assignRepo:  repository.NewAssignmentRepository(db),
		walletRepo:  repository.NewWalletRepository(db),
		badgeRepo:   repository.NewBadgeRepository(db),
		userRepo:    repository.NewUserRepository(db),
		sink:        &recordingSink{},
		archiver:    &recordingArchiver{},
	}
	f.settings = NewEngineSettings(cfg)
	f.ledger = NewLedgerService(f.walletRepo)
	f.badges = NewBadgeService(f.badgeRepo, f.sink)
	f.rewarder = NewCompletionRewarder(f.attemptRepo, f.ledger, f.badges)
	f.tracker = NewPathwayProgressTracker(db, f.pathwayRepo, f.ledger, f.badges, f.rewarder, f.sink)
	f.pipeline = NewCompletionPipeline(f.attemptRepo, f.quizRepo, f.rewarder, f.tracker)
	scoring := NewScoringEngine()
	f.attempts = NewAttemptService(db, f.attemptRepo, f.quizRepo, f.assignRepo, f.pathwayRepo, scoring, f.pipeline, f.settings)
	f.grading = NewGradingService(db, f.attemptRepo, f.quizRepo, scoring, f.pipeline, f.sink, f.archiver, f.settings)
	return f
}

func (f *fixture) user(t *testing.T, role model.UserRole) *model.User {
	t.Helper()
	u := &model.User{
		Name:     string(role),
		Email:    uuid.NewString() + "@example.com",
		Password: "x",
		Role:     role,
	}
	require.NoError(t, f.userRepo.Create(f.ctx, u))
	return u
}

func (f *fixture) student(t *testing.T) *model.User { return f.user(t, model.Student) }

func (f *fixture) teacher(t *testing.T) *model.User { return f.user(t, model.Teacher) }

type quizOpts struct {
	threshold float64
	points    int
}

func (f *fixture) quiz(t *testing.T, creatorID uint, opts quizOpts, questions ...model.Question) *model.Quiz {
	t.Helper()
	q := &model.Quiz{
		CreatorID:        creatorID,
		Title:            "quiz-" + uuid.NewString()[:8],
		PassThreshold:    opts.threshold,
		CompletionPoints: opts.points,
		IsPublished:      true,
		Questions:        questions,
	}
	require.NoError(t, f.quizRepo.Create(f.ctx, q))
	loaded, err := f.quizRepo.FindWithQuestions(f.ctx, q.ID)
	require.NoError(t, err)
	return loaded
}

func (f *fixture) assignQuiz(t *testing.T, userID, quizID uint) {
	t.Helper()
	require.NoError(t, f.assignRepo.Create(f.ctx, &model.Assignment{
		TargetType: model.AssignmentTargetQuiz,
		TargetID:   quizID,
		UserID:     &userID,
	}))
}

func (f *fixture) badge(t *testing.T, name string, trigger model.TriggerType, cond model.BadgeCondition) *model.Badge {
	t.Helper()
	b := &model.Badge{
		Name:        name,
		TriggerType: trigger,
		Condition:   datatypes.NewJSONType(cond),
		Active:      true,
	}
	require.NoError(t, f.badgeRepo.Create(f.ctx, b))
	return b
}

// start 分配并开始一次尝试
func (f *fixture) start(t *testing.T, userID uint, quiz *model.Quiz) *model.Attempt {
	t.Helper()
	attempt, err := f.attempts.StartAttempt(f.ctx, userID, quiz.ID)
	require.NoError(t, err)
	return attempt
}

func (f *fixture) answer(t *testing.T, userID, attemptID, questionID uint, payload interface{}) {
	t.Helper()
	raw, err := json.Marshal(payload)
	require.NoError(t, err)
	_, err = f.attempts.SubmitAnswer(f.ctx, userID, attemptID, questionID, raw)
	require.NoError(t, err)
}

func (f *fixture) balance(t *testing.T, userID uint) int {
	t.Helper()
	b, err := f.ledger.Balance(f.ctx, userID)
	require.NoError(t, err)
	return b
}

func (f *fixture) ledgerSum(t *testing.T, userID uint) int {
	t.Helper()
	sum, err := f.walletRepo.SumEntries(f.ctx, userID)
	require.NoError(t, err)
	return sum
}

func (f *fixture) earned(t *testing.T, userID, badgeID uint) int64 {
	t.Helper()
	n, err := f.badgeRepo.CountEarned(f.ctx, userID, badgeID)
	require.NoError(t, err)
	return n
}

func choiceQuestion(order int, correct string, texts ...string) model.Question {
	q := model.Question{
		Order:        order,
		QuestionType: model.QuestionSingleChoice,
		Content:      fmt.Sprintf("question %d", order),
	}
	for i, text := range texts {
		q.Options = append(q.Options, model.AnswerOption{Text: text, IsCorrect: text == correct, Order: i})
	}
	return q
}

func openQuestion(order int) model.Question {
	return model.Question{
		Order:        order,
		QuestionType: model.QuestionOpenAnswer,
		Content:      fmt.Sprintf("explain %d", order),
	}
}

func optionID(t *testing.T, q model.Question, text string) uint {
	t.Helper()
	for _, o := range q.Options {
		if o.Text == text {
			return o.ID
		}
	}
	t.Fatalf("option %q not found on question %d", text, q.ID)
	return 0
}

func uintString(v uint) string {
	return strconv.FormatUint(uint64(v), 10)
}
