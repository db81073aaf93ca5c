package service

import (
	"edupath_backend/internal/model"
	"edupath_backend/internal/util"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/datatypes"
)

func withMeta(q model.Question, meta model.QuestionMeta) model.Question {
	q.Meta = datatypes.NewJSONType(meta)
	return q
}

func singleChoice() model.Question {
	q := model.Question{QuestionType: model.QuestionSingleChoice}
	q.ID = 10
	q.Options = []model.AnswerOption{
		{Text: "A"}, {Text: "B", IsCorrect: true}, {Text: "C"},
	}
	for i := range q.Options {
		q.Options[i].ID = uint(i + 1)
	}
	return q
}

func TestEvaluateSingleChoice(t *testing.T) {
	engine := NewScoringEngine()
	q := singleChoice()

	ev, err := engine.Evaluate(&q, []byte(`{"optionId":2}`))
	require.NoError(t, err)
	require.NotNil(t, ev.IsCorrect)
	assert.True(t, *ev.IsCorrect)
	assert.Equal(t, 1.0, *ev.PointsEarned)
	assert.Equal(t, 1.0, ev.MaxPoints)

	ev, err = engine.Evaluate(&q, []byte(`{"optionId":3}`))
	require.NoError(t, err)
	assert.False(t, *ev.IsCorrect)
	assert.Equal(t, 0.0, *ev.PointsEarned)
}

func TestEvaluateSingleChoiceWithoutCorrectOption(t *testing.T) {
	q := singleChoice()
	q.Options[1].IsCorrect = false

	ev, err := NewScoringEngine().Evaluate(&q, []byte(`{"optionId":2}`))
	require.NoError(t, err)
	assert.False(t, *ev.IsCorrect)
}

func TestEvaluateUnansweredAutoQuestionIsIncorrect(t *testing.T) {
	q := singleChoice()
	ev, err := NewScoringEngine().Evaluate(&q, nil)
	require.NoError(t, err)
	assert.False(t, ev.Manual)
	assert.False(t, *ev.IsCorrect)
	assert.Equal(t, 0.0, *ev.PointsEarned)
}

func TestValidateRejectsMalformedPayloads(t *testing.T) {
	engine := NewScoringEngine()
	q := singleChoice()

	cases := map[string]string{
		"unknown option": `{"optionId":99}`,
		"wrong shape":    `{"optionIds":[1]}`,
		"not json":       `option 1`,
		"missing field":  `{}`,
		"empty":          ``,
	}
	for name, payload := range cases {
		t.Run(name, func(t *testing.T) {
			err := engine.Validate(&q, []byte(payload))
			assert.ErrorIs(t, err, util.ErrMalformedSubmission)
		})
	}

	err := engine.Validate(&q, []byte(`{"optionId":99}`))
	assert.ErrorIs(t, err, util.ErrUnknownOption)
}

func TestEvaluateTrueFalseByExplicitValue(t *testing.T) {
	q := model.Question{QuestionType: model.QuestionTrueFalse}
	q.Options = []model.AnswerOption{
		{Text: "正确", TruthValue: util.BoolPtr(true)},
		{Text: "错误", TruthValue: util.BoolPtr(false), IsCorrect: true},
	}
	q.Options[0].ID = 1
	q.Options[1].ID = 2
	engine := NewScoringEngine()

	ev, err := engine.Evaluate(&q, []byte(`{"value":false}`))
	require.NoError(t, err)
	assert.True(t, *ev.IsCorrect)

	ev, err = engine.Evaluate(&q, []byte(`{"value":true}`))
	require.NoError(t, err)
	assert.False(t, *ev.IsCorrect)

	ev, err = engine.Evaluate(&q, []byte(`{"optionId":2}`))
	require.NoError(t, err)
	assert.True(t, *ev.IsCorrect)

	assert.ErrorIs(t, engine.Validate(&q, []byte(`{"optionId":1,"value":true}`)), util.ErrMalformedSubmission)
}

func TestEvaluateMultiChoiceExactSet(t *testing.T) {
	q := withMeta(model.Question{QuestionType: model.QuestionMultiChoice}, model.QuestionMeta{Points: util.Float64Ptr(3)})
	q.Options = []model.AnswerOption{
		{Text: "A", IsCorrect: true}, {Text: "B", IsCorrect: true}, {Text: "C"},
	}
	for i := range q.Options {
		q.Options[i].ID = uint(i + 1)
	}
	engine := NewScoringEngine()

	tests := []struct {
		payload string
		correct bool
	}{
		{`{"optionIds":[2,1]}`, true},
		{`{"optionIds":[1]}`, false},
		{`{"optionIds":[1,2,3]}`, false},
		{`{"optionIds":[]}`, false},
		{`{"optionIds":[1,1,2]}`, true},
	}
	for _, tt := range tests {
		ev, err := engine.Evaluate(&q, []byte(tt.payload))
		require.NoError(t, err, tt.payload)
		assert.Equal(t, tt.correct, *ev.IsCorrect, tt.payload)
		assert.Equal(t, 3.0, ev.MaxPoints)
	}

	_, err := engine.Evaluate(&q, []byte(`{"optionIds":[1,7]}`))
	assert.ErrorIs(t, err, util.ErrUnknownOption)
}

func TestEvaluateFillBlank(t *testing.T) {
	engine := NewScoringEngine()
	q := withMeta(model.Question{QuestionType: model.QuestionFillBlank}, model.QuestionMeta{
		Blanks: [][]string{{"Rome", "rome"}},
	})

	ev, err := engine.Evaluate(&q, []byte(`{"answers":["ROME"]}`))
	require.NoError(t, err)
	assert.True(t, *ev.IsCorrect)
	assert.Equal(t, 1.0, *ev.PointsEarned)

	ev, err = engine.Evaluate(&q, []byte(`{"answers":["  rome "]}`))
	require.NoError(t, err)
	assert.True(t, *ev.IsCorrect)

	_, err = engine.Evaluate(&q, []byte(`{"answers":["Rome","Paris"]}`))
	assert.ErrorIs(t, err, util.ErrMalformedSubmission)
}

func TestEvaluateFillBlankCaseSensitive(t *testing.T) {
	engine := NewScoringEngine()
	q := withMeta(model.Question{QuestionType: model.QuestionFillBlank}, model.QuestionMeta{
		Blanks:         [][]string{{"Go"}, {"gopher"}},
		CaseSensitive:  true,
		PointsPerBlank: util.Float64Ptr(2),
	})

	ev, err := engine.Evaluate(&q, []byte(`{"answers":["Go","gopher"]}`))
	require.NoError(t, err)
	assert.True(t, *ev.IsCorrect)
	assert.Equal(t, 4.0, ev.MaxPoints)
	assert.Equal(t, 4.0, *ev.PointsEarned)

	ev, err = engine.Evaluate(&q, []byte(`{"answers":["GO","gopher"]}`))
	require.NoError(t, err)
	assert.False(t, *ev.IsCorrect)
	assert.Equal(t, 0.0, *ev.PointsEarned)
}

func TestEvaluateOpenAnswerIsManual(t *testing.T) {
	engine := NewScoringEngine()
	q := withMeta(model.Question{QuestionType: model.QuestionOpenAnswer}, model.QuestionMeta{MaxScore: util.Float64Ptr(5)})

	require.NoError(t, engine.Validate(&q, []byte(`{"text":"because"}`)))
	ev, err := engine.Evaluate(&q, []byte(`{"text":"because"}`))
	require.NoError(t, err)
	assert.True(t, ev.Manual)
	assert.Nil(t, ev.IsCorrect)
	assert.Nil(t, ev.PointsEarned)
	assert.Equal(t, 5.0, ev.MaxPoints)

	plain := model.Question{QuestionType: model.QuestionOpenAnswer}
	maxPoints, err := engine.MaxPoints(&plain)
	require.NoError(t, err)
	assert.Equal(t, 1.0, maxPoints)
}

func TestEvaluateUnsupportedType(t *testing.T) {
	q := model.Question{QuestionType: "essay_voice"}
	_, err := NewScoringEngine().Evaluate(&q, []byte(`{}`))
	assert.ErrorIs(t, err, util.ErrUnsupportedQuestionType)
}

func autoEval(earned, maxPoints float64) Evaluation {
	return Evaluation{IsCorrect: util.BoolPtr(earned > 0), PointsEarned: util.Float64Ptr(earned), MaxPoints: maxPoints}
}

func manualEval(earned *float64, maxPoints float64) Evaluation {
	return Evaluation{Manual: true, PointsEarned: earned, MaxPoints: maxPoints}
}

func TestAggregate(t *testing.T) {
	tests := []struct {
		name     string
		evals    []Evaluation
		blend    bool
		override *float64
		want     *float64
	}{
		{"half", []Evaluation{autoEval(1, 1), autoEval(0, 1)}, false, nil, util.Float64Ptr(50)},
		{"rounded", []Evaluation{autoEval(1, 1), autoEval(0, 1), autoEval(0, 1)}, false, nil, util.Float64Ptr(33.33)},
		{"manual excluded when auto present", []Evaluation{autoEval(1, 1), manualEval(util.Float64Ptr(0), 1)}, false, nil, util.Float64Ptr(100)},
		{"manual blended", []Evaluation{autoEval(1, 1), manualEval(util.Float64Ptr(0), 1)}, true, nil, util.Float64Ptr(50)},
		{"blend waits for grading", []Evaluation{autoEval(1, 1), manualEval(nil, 1)}, true, nil, nil},
		{"all manual ungraded", []Evaluation{manualEval(nil, 1), manualEval(nil, 1)}, false, nil, nil},
		{"all manual graded", []Evaluation{manualEval(util.Float64Ptr(1), 1), manualEval(util.Float64Ptr(1), 1)}, false, nil, util.Float64Ptr(100)},
		{"no questions", nil, false, nil, nil},
		{"zero max points", []Evaluation{autoEval(0, 0)}, false, nil, nil},
		{"override clamps", []Evaluation{autoEval(3, 3)}, false, util.Float64Ptr(2), util.Float64Ptr(100)},
		{"override scales", []Evaluation{autoEval(1, 1)}, false, util.Float64Ptr(4), util.Float64Ptr(25)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Aggregate(tt.evals, tt.blend, tt.override)
			if tt.want == nil {
				assert.Nil(t, got)
				return
			}
			require.NotNil(t, got)
			assert.InDelta(t, *tt.want, *got, 0.0001)
		})
	}
}
