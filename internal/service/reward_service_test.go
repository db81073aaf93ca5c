package service

import (
	"edupath_backend/internal/model"
	"edupath_backend/internal/util"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"
)

// passQuiz 学生答对全部题目并完成
func passQuiz(t *testing.T, f *fixture, userID uint, quiz *model.Quiz) *model.Attempt {
	t.Helper()
	attempt := f.start(t, userID, quiz)
	for _, q := range quiz.Questions {
		for _, o := range q.Options {
			if o.IsCorrect {
				f.answer(t, userID, attempt.ID, q.ID, map[string]uint{"optionId": o.ID})
			}
		}
	}
	done, err := f.attempts.CompleteAttempt(f.ctx, userID, attempt.ID)
	require.NoError(t, err)
	require.Equal(t, model.AttemptCompleted, done.Status)
	return done
}

func TestAwardBadgesOnFirstSuccess(t *testing.T) {
	f := newFixture(t)
	creator := f.teacher(t)
	student := f.student(t)
	quizA := f.quiz(t, creator.ID, quizOpts{points: 60}, choiceQuestion(1, "yes", "yes", "no"))
	quizB := f.quiz(t, creator.ID, quizOpts{points: 60}, choiceQuestion(1, "yes", "yes", "no"))
	f.assignQuiz(t, student.ID, quizA.ID)
	f.assignQuiz(t, student.ID, quizB.ID)

	hundred := 100
	highScore := 90.0
	otherQuiz := quizB.ID
	century := f.badge(t, "century", model.TriggerPointsThreshold, model.BadgeCondition{Threshold: &hundred})
	ace := f.badge(t, "ace", model.TriggerQuizCompleted, model.BadgeCondition{MinScore: &highScore})
	pinned := f.badge(t, "pinned", model.TriggerQuizCompleted, model.BadgeCondition{QuizID: &otherQuiz})
	first := f.badge(t, "first", model.TriggerFirstQuizEver, model.BadgeCondition{})

	passQuiz(t, f, student.ID, quizA)
	assert.Zero(t, f.earned(t, student.ID, century.ID))
	assert.EqualValues(t, 1, f.earned(t, student.ID, ace.ID))
	assert.Zero(t, f.earned(t, student.ID, pinned.ID))
	assert.EqualValues(t, 1, f.earned(t, student.ID, first.ID))

	// 重复通过同一测验不再触发
	passQuiz(t, f, student.ID, quizA)
	assert.Equal(t, 60, f.balance(t, student.ID))

	passQuiz(t, f, student.ID, quizB)
	assert.Equal(t, 120, f.balance(t, student.ID))
	assert.EqualValues(t, 1, f.earned(t, student.ID, century.ID))
	assert.EqualValues(t, 1, f.earned(t, student.ID, pinned.ID))
	assert.EqualValues(t, 1, f.earned(t, student.ID, first.ID))
	assert.Equal(t, f.balance(t, student.ID), f.ledgerSum(t, student.ID))
	assert.Len(t, f.sink.ofType(model.NotificationBadgeEarned), 4)
}

func TestInactiveBadgeNeverAwarded(t *testing.T) {
	f := newFixture(t)
	creator := f.teacher(t)
	student := f.student(t)
	quiz := f.quiz(t, creator.ID, quizOpts{}, choiceQuestion(1, "yes", "yes", "no"))
	f.assignQuiz(t, student.ID, quiz.ID)

	b := f.badge(t, "retired", model.TriggerQuizCompleted, model.BadgeCondition{})
	require.NoError(t, f.db.Model(&model.Badge{}).Where("id = ?", b.ID).Update("active", false).Error)

	passQuiz(t, f, student.ID, quiz)
	assert.Zero(t, f.earned(t, student.ID, b.ID))
}

func TestRetryStepIsIdempotent(t *testing.T) {
	f := newFixture(t)
	creator := f.teacher(t)
	student := f.student(t)
	quiz := f.quiz(t, creator.ID, quizOpts{points: 25}, choiceQuestion(1, "yes", "yes", "no"))
	f.assignQuiz(t, student.ID, quiz.ID)
	first := f.badge(t, "first", model.TriggerFirstQuizEver, model.BadgeCondition{})

	done := passQuiz(t, f, student.ID, quiz)
	require.Equal(t, 25, f.balance(t, student.ID))

	for _, step := range f.pipeline.StepNames() {
		ev, err := f.pipeline.BuildEvent(f.ctx, done.ID)
		require.NoError(t, err)
		assert.True(t, ev.Retry)
		require.NoError(t, f.pipeline.RunStep(f.ctx, ev, step))
	}
	ev, err := f.pipeline.BuildEvent(f.ctx, done.ID)
	require.NoError(t, err)
	require.NoError(t, f.pipeline.Run(f.ctx, ev))

	assert.Equal(t, 25, f.balance(t, student.ID))
	assert.Equal(t, 25, f.ledgerSum(t, student.ID))
	assert.EqualValues(t, 1, f.earned(t, student.ID, first.ID))

	err = f.pipeline.RunStep(f.ctx, ev, "send_confetti")
	assert.ErrorIs(t, err, util.ErrUnknownPipelineStep)
}

func TestBuildEventRequiresCompletedAttempt(t *testing.T) {
	f := newFixture(t)
	creator := f.teacher(t)
	student := f.student(t)
	quiz := f.quiz(t, creator.ID, quizOpts{}, choiceQuestion(1, "yes", "yes", "no"))
	f.assignQuiz(t, student.ID, quiz.ID)

	attempt := f.start(t, student.ID, quiz)
	_, err := f.attempts.CompleteAttempt(f.ctx, student.ID, attempt.ID)
	require.NoError(t, err)

	_, err = f.pipeline.BuildEvent(f.ctx, attempt.ID)
	assert.ErrorIs(t, err, util.ErrAttemptNotCompleted)

	_, err = f.pipeline.BuildEvent(f.ctx, 123456)
	assert.ErrorIs(t, err, util.ErrAttemptNotFound)
}

func TestConcurrentClaimsGrantOnce(t *testing.T) {
	f := newFixture(t)
	student := f.student(t)
	b := f.badge(t, "once", model.TriggerQuizCompleted, model.BadgeCondition{})

	const workers = 8
	badgeWins := make([]bool, workers)
	claimWins := make([]bool, workers)
	var g errgroup.Group
	for i := 0; i < workers; i++ {
		i := i
		g.Go(func() error {
			created, err := f.badges.AwardIfAbsent(f.ctx, student.ID, *b, "test")
			if err != nil {
				return err
			}
			badgeWins[i] = created
			claimed, err := f.attemptRepo.ClaimFirstCompletion(f.ctx, student.ID, 42, uint(1000+i))
			if err != nil {
				return err
			}
			claimWins[i] = claimed
			return nil
		})
	}
	require.NoError(t, g.Wait())

	count := func(wins []bool) int {
		n := 0
		for _, w := range wins {
			if w {
				n++
			}
		}
		return n
	}
	assert.Equal(t, 1, count(badgeWins))
	assert.Equal(t, 1, count(claimWins))
	assert.EqualValues(t, 1, f.earned(t, student.ID, b.ID))
}

func TestCreditIsAtomicAndIdempotent(t *testing.T) {
	f := newFixture(t)
	student := f.student(t)

	applied, err := f.ledger.Credit(f.ctx, student.ID, 30, "bonus", "ref:1", "test")
	require.NoError(t, err)
	assert.True(t, applied)
	applied, err = f.ledger.Credit(f.ctx, student.ID, 30, "bonus", "ref:1", "test")
	require.NoError(t, err)
	assert.False(t, applied)
	assert.Equal(t, 30, f.balance(t, student.ID))

	// 没有积分账户时流水随事务回滚
	teacher := f.teacher(t)
	_, err = f.ledger.Credit(f.ctx, teacher.ID, 10, "bonus", "ref:2", "test")
	assert.ErrorIs(t, err, util.ErrWalletNotFound)
	assert.Equal(t, 0, f.ledgerSum(t, teacher.ID))
}

func TestReconcileReportsDrift(t *testing.T) {
	f := newFixture(t)
	healthy := f.student(t)
	drifted := f.student(t)
	_, err := f.ledger.Credit(f.ctx, healthy.ID, 5, "bonus", "ref:h", "test")
	require.NoError(t, err)
	_, err = f.ledger.Credit(f.ctx, drifted.ID, 5, "bonus", "ref:d", "test")
	require.NoError(t, err)

	drifts, err := f.ledger.Reconcile(f.ctx)
	require.NoError(t, err)
	assert.Empty(t, drifts)

	require.NoError(t, f.db.Model(&model.Wallet{}).Where("user_id = ?", drifted.ID).Update("balance", 99).Error)
	drifts, err = f.ledger.Reconcile(f.ctx)
	require.NoError(t, err)
	require.Len(t, drifts, 1)
	assert.Equal(t, drifted.ID, drifts[0].UserID)
	assert.Equal(t, 99, drifts[0].Balance)
	assert.Equal(t, 5, drifts[0].LedgerSum)
}

func TestQuizBadgeMatches(t *testing.T) {
	quizID := uint(3)
	other := uint(4)
	minScore := 80.0
	score := 75.0
	assert.True(t, quizBadgeMatches(model.BadgeCondition{}, quizID, nil))
	assert.True(t, quizBadgeMatches(model.BadgeCondition{QuizID: &quizID}, quizID, &score))
	assert.False(t, quizBadgeMatches(model.BadgeCondition{QuizID: &other}, quizID, &score))
	assert.False(t, quizBadgeMatches(model.BadgeCondition{MinScore: &minScore}, quizID, &score))
	assert.False(t, quizBadgeMatches(model.BadgeCondition{MinScore: &minScore}, quizID, nil))
}
