package model

import "gorm.io/datatypes"

type QuestionType string

const (
	QuestionSingleChoice QuestionType = "single_choice"
	QuestionMultiChoice  QuestionType = "multi_choice"
	QuestionTrueFalse    QuestionType = "true_false"
	QuestionFillBlank    QuestionType = "fill_blank"
	QuestionOpenAnswer   QuestionType = "open_answer"
)

// IsManual 开放题需要人工评分，其余题型自动评分
func (t QuestionType) IsManual() bool {
	return t == QuestionOpenAnswer
}

// swagger:model Quiz
type Quiz struct {
	BaseModel

	CreatorID        uint     `gorm:"index;type:bigint unsigned" json:"creatorId"`
	Title            string   `gorm:"size:255;not null" json:"title"`
	Description      string   `gorm:"type:text" json:"description"`
	PassThreshold    float64  `gorm:"default:100" json:"passThreshold"`  // 及格线（百分比）
	CompletionPoints int      `gorm:"default:0" json:"completionPoints"` // 首次通过奖励积分
	MaxScoreOverride *float64 `json:"maxScoreOverride,omitempty"`        // 覆盖题目满分之和（可选）
	IsPublished      bool     `gorm:"default:false" json:"isPublished"`

	Questions []Question `gorm:"foreignKey:QuizID" json:"questions,omitempty"`
}

func (Quiz) TableName() string {
	return "quizzes"
}

// QuestionMeta 题目评分元数据，按题型取用不同字段
type QuestionMeta struct {
	Points         *float64   `json:"points,omitempty"`
	Blanks         [][]string `json:"blanks,omitempty"` // 每个空的可接受答案
	CaseSensitive  bool       `json:"caseSensitive,omitempty"`
	PointsPerBlank *float64   `json:"pointsPerBlank,omitempty"`
	MaxScore       *float64   `json:"maxScore,omitempty"` // 开放题满分
}

// swagger:model Question
type Question struct {
	BaseModel

	QuizID       uint                             `gorm:"index;type:bigint unsigned" json:"quizId"`
	Order        int                              `gorm:"default:0" json:"order"`
	QuestionType QuestionType                     `gorm:"size:50;not null" json:"questionType"`
	Content      string                           `gorm:"type:text" json:"content"`
	Meta         datatypes.JSONType[QuestionMeta] `json:"meta"`
	Explanation  string                           `gorm:"type:text" json:"explanation"`

	Options []AnswerOption `gorm:"foreignKey:QuestionID" json:"options,omitempty"`
}

func (Question) TableName() string {
	return "questions"
}

// swagger:model AnswerOption
type AnswerOption struct {
	BaseModel

	QuestionID uint   `gorm:"index;type:bigint unsigned" json:"questionId"`
	Text       string `gorm:"size:500" json:"text"`
	IsCorrect  bool   `gorm:"default:false" json:"-"`
	// 判断题选项显式标记代表的真值，避免按文本猜测
	TruthValue *bool `json:"truthValue,omitempty"`
	Order      int   `gorm:"default:0" json:"order"`
}

func (AnswerOption) TableName() string {
	return "answer_options"
}
