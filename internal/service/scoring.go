package service

import (
	"bytes"
	"edupath_backend/internal/model"
	"edupath_backend/internal/util"
	"encoding/json"
	"fmt"
	"strings"
)

const defaultQuestionPoints = 1.0

// Evaluation 单题评估结果。IsCorrect/PointsEarned 为空表示尚未评估（人工题）
type Evaluation struct {
	QuestionID   uint     `json:"questionId"`
	Manual       bool     `json:"manual"`
	IsCorrect    *bool    `json:"isCorrect"`
	PointsEarned *float64 `json:"pointsEarned"`
	MaxPoints    float64  `json:"maxPoints"`
}

type choicePayload struct {
	OptionID *uint `json:"optionId"`
	Value    *bool `json:"value"`
}

type multiChoicePayload struct {
	OptionIDs *[]uint `json:"optionIds"`
}

type fillBlankPayload struct {
	Answers *[]string `json:"answers"`
}

type openAnswerPayload struct {
	Text *string `json:"text"`
}

// ScoringEngine 纯计算：题目定义 + 提交内容 → 正误与得分，无副作用
type ScoringEngine struct{}

func NewScoringEngine() *ScoringEngine {
	return &ScoringEngine{}
}

func decodeStrict(raw []byte, out interface{}) error {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.DisallowUnknownFields()
	if err := dec.Decode(out); err != nil {
		return fmt.Errorf("%w: %v", util.ErrMalformedSubmission, err)
	}
	return nil
}

func malformed(format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s", util.ErrMalformedSubmission, fmt.Sprintf(format, args...))
}

func unknownOption(id uint) error {
	return fmt.Errorf("%w: %w %d", util.ErrMalformedSubmission, util.ErrUnknownOption, id)
}

func findOption(q *model.Question, id uint) (*model.AnswerOption, bool) {
	for i := range q.Options {
		if q.Options[i].ID == id {
			return &q.Options[i], true
		}
	}
	return nil, false
}

// resolveChoice 返回所选选项 ID；判断题可用 value 按选项的显式真值匹配
func resolveChoice(q *model.Question, raw []byte) (uint, error) {
	var p choicePayload
	if err := decodeStrict(raw, &p); err != nil {
		return 0, err
	}
	if p.OptionID != nil && p.Value != nil {
		return 0, malformed("optionId and value are mutually exclusive")
	}
	if p.OptionID != nil {
		if _, ok := findOption(q, *p.OptionID); !ok {
			return 0, unknownOption(*p.OptionID)
		}
		return *p.OptionID, nil
	}
	if p.Value != nil && q.QuestionType == model.QuestionTrueFalse {
		for _, o := range q.Options {
			if o.TruthValue != nil && *o.TruthValue == *p.Value {
				return o.ID, nil
			}
		}
		return 0, malformed("no option carries truth value %t", *p.Value)
	}
	return 0, malformed("optionId is required")
}

func resolveMulti(q *model.Question, raw []byte) (map[uint]struct{}, error) {
	var p multiChoicePayload
	if err := decodeStrict(raw, &p); err != nil {
		return nil, err
	}
	if p.OptionIDs == nil {
		return nil, malformed("optionIds is required")
	}
	selected := make(map[uint]struct{}, len(*p.OptionIDs))
	for _, id := range *p.OptionIDs {
		if _, ok := findOption(q, id); !ok {
			return nil, unknownOption(id)
		}
		selected[id] = struct{}{}
	}
	return selected, nil
}

func resolveBlanks(q *model.Question, raw []byte) ([]string, error) {
	var p fillBlankPayload
	if err := decodeStrict(raw, &p); err != nil {
		return nil, err
	}
	if p.Answers == nil {
		return nil, malformed("answers is required")
	}
	expected := len(q.Meta.Data().Blanks)
	if len(*p.Answers) != expected {
		return nil, malformed("expected %d blanks, got %d", expected, len(*p.Answers))
	}
	return *p.Answers, nil
}

func resolveOpen(raw []byte) (string, error) {
	var p openAnswerPayload
	if err := decodeStrict(raw, &p); err != nil {
		return "", err
	}
	if p.Text == nil {
		return "", malformed("text is required")
	}
	return *p.Text, nil
}

// Validate 在提交答案时校验格式，格式错误直接拒绝
func (e *ScoringEngine) Validate(q *model.Question, raw []byte) error {
	if len(raw) == 0 {
		return malformed("empty payload")
	}
	var err error
	switch q.QuestionType {
	case model.QuestionSingleChoice, model.QuestionTrueFalse:
		_, err = resolveChoice(q, raw)
	case model.QuestionMultiChoice:
		_, err = resolveMulti(q, raw)
	case model.QuestionFillBlank:
		_, err = resolveBlanks(q, raw)
	case model.QuestionOpenAnswer:
		_, err = resolveOpen(raw)
	default:
		err = fmt.Errorf("%w: %q (question %d)", util.ErrUnsupportedQuestionType, q.QuestionType, q.ID)
	}
	return err
}

// MaxPoints 题目满分
func (e *ScoringEngine) MaxPoints(q *model.Question) (float64, error) {
	meta := q.Meta.Data()
	switch q.QuestionType {
	case model.QuestionSingleChoice, model.QuestionTrueFalse, model.QuestionMultiChoice:
		return pointsOr(meta.Points, defaultQuestionPoints), nil
	case model.QuestionFillBlank:
		return float64(blankCount(meta)) * pointsOr(meta.PointsPerBlank, defaultQuestionPoints), nil
	case model.QuestionOpenAnswer:
		if meta.MaxScore != nil {
			return *meta.MaxScore, nil
		}
		return pointsOr(meta.Points, defaultQuestionPoints), nil
	}
	return 0, fmt.Errorf("%w: %q (question %d)", util.ErrUnsupportedQuestionType, q.QuestionType, q.ID)
}

// Evaluate 评估一道题。raw 为空表示未作答：自动题按错误计分，人工题保持未评估
func (e *ScoringEngine) Evaluate(q *model.Question, raw []byte) (Evaluation, error) {
	maxPoints, err := e.MaxPoints(q)
	if err != nil {
		return Evaluation{}, err
	}
	ev := Evaluation{
		QuestionID: q.ID,
		Manual:     q.QuestionType.IsManual(),
		MaxPoints:  maxPoints,
	}
	if ev.Manual {
		return ev, nil
	}

	correct := false
	if len(raw) > 0 {
		correct, err = e.isCorrect(q, raw)
		if err != nil {
			return Evaluation{}, err
		}
	}
	earned := 0.0
	if correct {
		earned = maxPoints
	}
	ev.IsCorrect = util.BoolPtr(correct)
	ev.PointsEarned = util.Float64Ptr(earned)
	return ev, nil
}

func (e *ScoringEngine) isCorrect(q *model.Question, raw []byte) (bool, error) {
	switch q.QuestionType {
	case model.QuestionSingleChoice, model.QuestionTrueFalse:
		selected, err := resolveChoice(q, raw)
		if err != nil {
			return false, err
		}
		for _, o := range q.Options {
			if o.IsCorrect {
				return o.ID == selected, nil
			}
		}
		return false, nil
	case model.QuestionMultiChoice:
		selected, err := resolveMulti(q, raw)
		if err != nil {
			return false, err
		}
		expected := make(map[uint]struct{})
		for _, o := range q.Options {
			if o.IsCorrect {
				expected[o.ID] = struct{}{}
			}
		}
		if len(expected) == 0 || len(expected) != len(selected) {
			return false, nil
		}
		for id := range selected {
			if _, ok := expected[id]; !ok {
				return false, nil
			}
		}
		return true, nil
	case model.QuestionFillBlank:
		answers, err := resolveBlanks(q, raw)
		if err != nil {
			return false, err
		}
		meta := q.Meta.Data()
		if len(meta.Blanks) == 0 {
			return false, nil
		}
		for i, accepted := range meta.Blanks {
			if !matchesAny(answers[i], accepted, meta.CaseSensitive) {
				return false, nil
			}
		}
		return true, nil
	}
	return false, fmt.Errorf("%w: %q (question %d)", util.ErrUnsupportedQuestionType, q.QuestionType, q.ID)
}

func matchesAny(given string, accepted []string, caseSensitive bool) bool {
	given = strings.TrimSpace(given)
	for _, a := range accepted {
		a = strings.TrimSpace(a)
		if caseSensitive && given == a {
			return true
		}
		if !caseSensitive && strings.EqualFold(given, a) {
			return true
		}
	}
	return false
}

func blankCount(meta model.QuestionMeta) int {
	if len(meta.Blanks) == 0 {
		return 1
	}
	return len(meta.Blanks)
}

func pointsOr(v *float64, def float64) float64 {
	if v == nil {
		return def
	}
	return *v
}

// Aggregate 计算百分制总分（两位小数），无法定义时返回 nil。
// 存在自动题时默认只统计自动题；blendManual 为 true 时把已评分的人工题一并计入。
// 全部为人工题时统计人工题，任一人工题未评分则无法定义。
func Aggregate(evals []Evaluation, blendManual bool, maxOverride *float64) *float64 {
	var auto, manual []Evaluation
	for _, ev := range evals {
		if ev.Manual {
			manual = append(manual, ev)
		} else {
			auto = append(auto, ev)
		}
	}

	counted := auto
	if len(auto) == 0 || blendManual {
		for _, ev := range manual {
			if ev.PointsEarned == nil {
				return nil
			}
		}
		counted = append(append([]Evaluation{}, auto...), manual...)
	}

	earned, total := 0.0, 0.0
	for _, ev := range counted {
		if ev.PointsEarned != nil {
			earned += *ev.PointsEarned
		}
		total += ev.MaxPoints
	}
	if maxOverride != nil && *maxOverride > 0 {
		total = *maxOverride
	}
	if total <= 0 {
		return nil
	}

	pct := earned / total * 100
	if pct < 0 {
		pct = 0
	}
	if pct > 100 {
		pct = 100
	}
	return util.Float64Ptr(util.Round2(pct))
}
