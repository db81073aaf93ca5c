package model

import (
	"time"

	"gorm.io/datatypes"
)

type AttemptStatus string

const (
	AttemptInProgress     AttemptStatus = "in_progress"
	AttemptPendingGrading AttemptStatus = "pending_grading"
	AttemptCompleted      AttemptStatus = "completed"
	AttemptFailed         AttemptStatus = "failed"
)

// IsTerminal completed 与 failed 为终态
func (s AttemptStatus) IsTerminal() bool {
	return s == AttemptCompleted || s == AttemptFailed
}

// swagger:model Attempt
type Attempt struct {
	BaseModel

	UserID                 uint          `gorm:"index:idx_attempt_user_quiz;type:bigint unsigned" json:"userId"`
	QuizID                 uint          `gorm:"index:idx_attempt_user_quiz;type:bigint unsigned" json:"quizId"`
	Status                 AttemptStatus `gorm:"size:32;index;default:'in_progress'" json:"status"`
	Score                  *float64      `json:"score"` // 百分制，保留两位小数；未计算前为空
	FirstCorrectCompletion bool          `gorm:"default:false" json:"firstCorrectCompletion"`
	StartedAt              time.Time     `json:"startedAt"`
	SubmittedAt            *time.Time    `json:"submittedAt,omitempty"`
	CompletedAt            *time.Time    `json:"completedAt,omitempty"`
	GradedBy               *uint         `gorm:"type:bigint unsigned" json:"gradedBy,omitempty"`

	Answers []SubmittedAnswer `gorm:"foreignKey:AttemptID" json:"answers,omitempty"`
}

func (Attempt) TableName() string {
	return "attempts"
}

// SubmittedAnswer 每次尝试每题仅一条记录，重复提交覆盖
type SubmittedAnswer struct {
	BaseModel

	AttemptID     uint           `gorm:"uniqueIndex:idx_answer_attempt_question;type:bigint unsigned" json:"attemptId"`
	QuestionID    uint           `gorm:"uniqueIndex:idx_answer_attempt_question;type:bigint unsigned" json:"questionId"`
	Payload       datatypes.JSON `json:"payload"`
	IsCorrect     *bool          `json:"isCorrect"`
	Score         *float64       `json:"score"`
	GraderComment string         `gorm:"type:text" json:"graderComment,omitempty"`
	GradedAt      *time.Time     `json:"gradedAt,omitempty"`
}

func (SubmittedAnswer) TableName() string {
	return "submitted_answers"
}

// QuizFirstCompletion 记录学生首次通过某测验的尝试，唯一约束保证只会有一条
type QuizFirstCompletion struct {
	ID        uint      `gorm:"primaryKey;autoIncrement" json:"id"`
	UserID    uint      `gorm:"uniqueIndex:idx_first_completion_user_quiz;type:bigint unsigned" json:"userId"`
	QuizID    uint      `gorm:"uniqueIndex:idx_first_completion_user_quiz;type:bigint unsigned" json:"quizId"`
	AttemptID uint      `gorm:"type:bigint unsigned" json:"attemptId"`
	CreatedAt time.Time `json:"createdAt"`
}

func (QuizFirstCompletion) TableName() string {
	return "quiz_first_completions"
}
