package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// swagger:model
type BaseModel struct {
	ID        uint           `gorm:"primaryKey;autoIncrement" json:"id"`
	CreatedAt time.Time      `json:"createdAt"`
	UpdatedAt time.Time      `json:"updatedAt"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`
}

// GenerateUUID 用于归档对象名、事件 ID 等无需自增主键的场景
func GenerateUUID() string {
	return uuid.New().String()
}

// AllModels 参与 AutoMigrate 的全部模型
func AllModels() []interface{} {
	return []interface{}{
		&User{},
		&Quiz{},
		&Question{},
		&AnswerOption{},
		&Attempt{},
		&SubmittedAnswer{},
		&QuizFirstCompletion{},
		&Pathway{},
		&PathwayStep{},
		&PathwayProgress{},
		&Assignment{},
		&GroupMember{},
		&Wallet{},
		&LedgerEntry{},
		&Badge{},
		&EarnedBadge{},
		&Notification{},
	}
}
