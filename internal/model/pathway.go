package model

import (
	"time"

	"gorm.io/datatypes"
)

const (
	PathwayInProgress = "in_progress"
	PathwayCompleted  = "completed"
)

// swagger:model Pathway
type Pathway struct {
	BaseModel

	CreatorID        uint   `gorm:"index;type:bigint unsigned" json:"creatorId"`
	Title            string `gorm:"size:255;not null" json:"title"`
	Description      string `gorm:"type:text" json:"description"`
	CompletionPoints int    `gorm:"default:0" json:"completionPoints"`

	Steps []PathwayStep `gorm:"foreignKey:PathwayID" json:"steps,omitempty"`
}

func (Pathway) TableName() string {
	return "pathways"
}

type PathwayStep struct {
	BaseModel

	PathwayID uint `gorm:"uniqueIndex:idx_pathway_step_order;type:bigint unsigned" json:"pathwayId"`
	QuizID    uint `gorm:"index;type:bigint unsigned" json:"quizId"`
	StepOrder int  `gorm:"uniqueIndex:idx_pathway_step_order" json:"stepOrder"`
}

func (PathwayStep) TableName() string {
	return "pathway_steps"
}

// swagger:model PathwayProgress
type PathwayProgress struct {
	BaseModel

	UserID             uint                     `gorm:"uniqueIndex:idx_progress_user_pathway;type:bigint unsigned" json:"userId"`
	PathwayID          uint                     `gorm:"uniqueIndex:idx_progress_user_pathway;type:bigint unsigned" json:"pathwayId"`
	CompletedOrders    datatypes.JSONSlice[int] `json:"completedOrders"`
	LastCompletedOrder int                      `gorm:"default:0" json:"lastCompletedOrder"`
	Status             string                   `gorm:"size:32;default:'in_progress'" json:"status"`
	CompletedAt        *time.Time               `json:"completedAt,omitempty"`
	FirstCompletion    bool                     `gorm:"default:false" json:"firstCompletion"`
}

func (PathwayProgress) TableName() string {
	return "pathway_progress"
}
