package service

import (
	"edupath_backend/internal/model"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"
)

func (f *fixture) pathway(t *testing.T, creatorID uint, points int, quizIDs ...uint) *model.Pathway {
	t.Helper()
	p := &model.Pathway{
		CreatorID:        creatorID,
		Title:            "pathway",
		CompletionPoints: points,
	}
	for i, id := range quizIDs {
		p.Steps = append(p.Steps, model.PathwayStep{QuizID: id, StepOrder: i + 1})
	}
	require.NoError(t, f.pathwayRepo.Create(f.ctx, p))
	return p
}

func (f *fixture) assignPathway(t *testing.T, userID, pathwayID uint) {
	t.Helper()
	require.NoError(t, f.assignRepo.Create(f.ctx, &model.Assignment{
		TargetType: model.AssignmentTargetPathway,
		TargetID:   pathwayID,
		UserID:     &userID,
	}))
}

func TestPathwayCompletesWhenAllStepsDone(t *testing.T) {
	f := newFixture(t)
	creator := f.teacher(t)
	student := f.student(t)
	quizA := f.quiz(t, creator.ID, quizOpts{}, choiceQuestion(1, "yes", "yes", "no"))
	quizB := f.quiz(t, creator.ID, quizOpts{}, choiceQuestion(1, "yes", "yes", "no"))
	pathway := f.pathway(t, creator.ID, 40, quizA.ID, quizB.ID)
	f.assignPathway(t, student.ID, pathway.ID)
	pathfinder := f.badge(t, "pathfinder", model.TriggerPathwayCompleted, model.BadgeCondition{PathwayID: &pathway.ID})

	view, err := f.tracker.GetProgress(f.ctx, student.ID, pathway.ID)
	require.NoError(t, err)
	assert.Equal(t, []int{1, 2}, view.StepOrders)
	assert.Empty(t, view.CompletedOrders)
	assert.Equal(t, model.PathwayInProgress, view.Status)

	// 路径分配即可开始其中的测验
	passQuiz(t, f, student.ID, quizB)
	view, err = f.tracker.GetProgress(f.ctx, student.ID, pathway.ID)
	require.NoError(t, err)
	assert.Equal(t, []int{2}, view.CompletedOrders)
	assert.Equal(t, 2, view.LastCompletedOrder)
	assert.Equal(t, model.PathwayInProgress, view.Status)
	assert.Zero(t, f.balance(t, student.ID))

	passQuiz(t, f, student.ID, quizA)
	view, err = f.tracker.GetProgress(f.ctx, student.ID, pathway.ID)
	require.NoError(t, err)
	assert.Equal(t, []int{1, 2}, view.CompletedOrders)
	assert.Equal(t, model.PathwayCompleted, view.Status)
	assert.NotNil(t, view.CompletedAt)
	assert.Equal(t, 40, f.balance(t, student.ID))
	assert.EqualValues(t, 1, f.earned(t, student.ID, pathfinder.ID))
	assert.Len(t, f.sink.ofType(model.NotificationPathwayCompleted), 1)

	// 重复完成与重放都不会重复奖励
	again := passQuiz(t, f, student.ID, quizA)
	ev, err := f.pipeline.BuildEvent(f.ctx, again.ID)
	require.NoError(t, err)
	require.NoError(t, f.pipeline.RunStep(f.ctx, ev, StepPropagatePathways))

	assert.Equal(t, 40, f.balance(t, student.ID))
	assert.Equal(t, 40, f.ledgerSum(t, student.ID))
	assert.EqualValues(t, 1, f.earned(t, student.ID, pathfinder.ID))
	assert.Len(t, f.sink.ofType(model.NotificationPathwayCompleted), 1)
}

func TestFailedAttemptDoesNotAdvancePathway(t *testing.T) {
	f := newFixture(t)
	creator := f.teacher(t)
	student := f.student(t)
	quiz := f.quiz(t, creator.ID, quizOpts{}, choiceQuestion(1, "yes", "yes", "no"))
	pathway := f.pathway(t, creator.ID, 10, quiz.ID)
	f.assignPathway(t, student.ID, pathway.ID)

	attempt := f.start(t, student.ID, quiz)
	done, err := f.attempts.CompleteAttempt(f.ctx, student.ID, attempt.ID)
	require.NoError(t, err)
	require.Equal(t, model.AttemptFailed, done.Status)

	view, err := f.tracker.GetProgress(f.ctx, student.ID, pathway.ID)
	require.NoError(t, err)
	assert.Empty(t, view.CompletedOrders)
	assert.Equal(t, model.PathwayInProgress, view.Status)
}

func TestUnassignedPathwayIsNotTracked(t *testing.T) {
	f := newFixture(t)
	creator := f.teacher(t)
	student := f.student(t)
	quiz := f.quiz(t, creator.ID, quizOpts{}, choiceQuestion(1, "yes", "yes", "no"))
	pathway := f.pathway(t, creator.ID, 10, quiz.ID)
	f.assignQuiz(t, student.ID, quiz.ID)

	passQuiz(t, f, student.ID, quiz)

	_, err := f.pathwayRepo.FindProgress(f.ctx, student.ID, pathway.ID)
	assert.Error(t, err)
	assert.Zero(t, f.balance(t, student.ID))
}

func TestMergeOrders(t *testing.T) {
	assert.Equal(t, []int{1, 2, 3}, mergeOrders([]int{3, 1}, []int{2, 3}))
	assert.Equal(t, []int{}, mergeOrders(nil, nil))
	assert.Equal(t, []int{5}, mergeOrders([]int{5}, []int{5}))
}

func TestCoversAll(t *testing.T) {
	assert.True(t, coversAll([]int{1, 2}, []int{2, 1}))
	assert.False(t, coversAll([]int{1}, []int{1, 2}))
	assert.False(t, coversAll([]int{1, 3}, []int{1, 2}))
	assert.False(t, coversAll(nil, nil))
}

func TestConcurrentStepCompletionsMerge(t *testing.T) {
	f := newFixture(t)
	creator := f.teacher(t)
	student := f.student(t)
	quizA := f.quiz(t, creator.ID, quizOpts{}, choiceQuestion(1, "yes", "yes", "no"))
	quizB := f.quiz(t, creator.ID, quizOpts{}, choiceQuestion(1, "yes", "yes", "no"))
	pathway := f.pathway(t, creator.ID, 25, quizA.ID, quizB.ID)
	f.assignPathway(t, student.ID, pathway.ID)

	var attemptIDs []uint
	for _, quiz := range []*model.Quiz{quizA, quizB} {
		attempt := f.start(t, student.ID, quiz)
		q := quiz.Questions[0]
		f.answer(t, student.ID, attempt.ID, q.ID, map[string]uint{"optionId": optionID(t, q, "yes")})
		attemptIDs = append(attemptIDs, attempt.ID)
	}

	var g errgroup.Group
	for _, id := range attemptIDs {
		id := id
		g.Go(func() error {
			_, err := f.attempts.CompleteAttempt(f.ctx, student.ID, id)
			return err
		})
	}
	require.NoError(t, g.Wait())

	view, err := f.tracker.GetProgress(f.ctx, student.ID, pathway.ID)
	require.NoError(t, err)
	assert.Equal(t, []int{1, 2}, view.CompletedOrders)
	assert.Equal(t, model.PathwayCompleted, view.Status)
	assert.Equal(t, 25, f.balance(t, student.ID))
	assert.Equal(t, 25, f.ledgerSum(t, student.ID))
}
