package model

const (
	NotificationAttemptGraded    = "attempt_graded"
	NotificationBadgeEarned      = "badge_earned"
	NotificationPathwayCompleted = "pathway_completed"
)

type Notification struct {
	BaseModel

	UserID  uint   `gorm:"index;type:bigint unsigned" json:"userId"`
	Message string `gorm:"size:500" json:"message"`
	Link    string `gorm:"size:255" json:"link"`
	Type    string `gorm:"size:50" json:"type"`
	Read    bool   `gorm:"default:false" json:"read"`
}

func (Notification) TableName() string {
	return "notifications"
}
