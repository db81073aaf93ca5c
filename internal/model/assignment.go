package model

const (
	AssignmentTargetQuiz    = "quiz"
	AssignmentTargetPathway = "pathway"
)

// Assignment 把测验或学习路径分配给学生本人或一个班组
type Assignment struct {
	BaseModel

	TargetType string `gorm:"size:20;index:idx_assignment_target" json:"targetType"`
	TargetID   uint   `gorm:"index:idx_assignment_target;type:bigint unsigned" json:"targetId"`
	UserID     *uint  `gorm:"index;type:bigint unsigned" json:"userId,omitempty"`
	GroupID    *uint  `gorm:"index;type:bigint unsigned" json:"groupId,omitempty"`
}

func (Assignment) TableName() string {
	return "assignments"
}

type GroupMember struct {
	BaseModel

	GroupID uint `gorm:"uniqueIndex:idx_group_member;type:bigint unsigned" json:"groupId"`
	UserID  uint `gorm:"uniqueIndex:idx_group_member;type:bigint unsigned" json:"userId"`
}

func (GroupMember) TableName() string {
	return "group_members"
}
