package model

import (
	"time"

	"gorm.io/datatypes"
)

type TriggerType string

const (
	TriggerPointsThreshold  TriggerType = "POINTS_THRESHOLD"
	TriggerQuizCompleted    TriggerType = "QUIZ_COMPLETED"
	TriggerPathwayCompleted TriggerType = "PATHWAY_COMPLETED"
	TriggerFirstQuizEver    TriggerType = "FIRST_QUIZ_EVER"
	TriggerCorrectStreak    TriggerType = "CORRECT_STREAK" // 暂未使用
)

// BadgeCondition 徽章触发条件，字段按触发类型取用
type BadgeCondition struct {
	Threshold *int     `json:"threshold,omitempty"`
	QuizID    *uint    `json:"quizId,omitempty"`
	MinScore  *float64 `json:"minScore,omitempty"`
	PathwayID *uint    `json:"pathwayId,omitempty"`
}

// swagger:model Badge
type Badge struct {
	BaseModel

	Name        string                             `gorm:"size:100;not null" json:"name"`
	Description string                             `gorm:"type:text" json:"description"`
	Icon        string                             `gorm:"size:255" json:"icon"`
	TriggerType TriggerType                        `gorm:"size:50;index" json:"triggerType"`
	Condition   datatypes.JSONType[BadgeCondition] `json:"condition"`
	Active      bool                               `gorm:"default:true" json:"active"`
}

func (Badge) TableName() string {
	return "badges"
}

// EarnedBadge (user_id, badge_id) 唯一，仅创建一次
type EarnedBadge struct {
	ID       uint      `gorm:"primaryKey;autoIncrement" json:"id"`
	UserID   uint      `gorm:"uniqueIndex:idx_earned_user_badge;type:bigint unsigned" json:"userId"`
	BadgeID  uint      `gorm:"uniqueIndex:idx_earned_user_badge;type:bigint unsigned" json:"badgeId"`
	Source   string    `gorm:"size:64" json:"source"`
	EarnedAt time.Time `json:"earnedAt"`

	Badge Badge `gorm:"foreignKey:BadgeID" json:"badge,omitempty"`
}

func (EarnedBadge) TableName() string {
	return "earned_badges"
}
