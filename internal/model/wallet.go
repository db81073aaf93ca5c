package model

// Wallet 学生积分余额，必须等于其全部流水之和
type Wallet struct {
	BaseModel

	UserID  uint `gorm:"uniqueIndex;type:bigint unsigned" json:"userId"`
	Balance int  `gorm:"default:0" json:"balance"`
}

func (Wallet) TableName() string {
	return "wallets"
}

// LedgerEntry 只追加的积分流水
type LedgerEntry struct {
	BaseModel

	UserID    uint    `gorm:"index;type:bigint unsigned" json:"userId"`
	Amount    int     `json:"amount"`
	Reason    string  `gorm:"size:255" json:"reason"`
	Reference *string `gorm:"size:128;uniqueIndex" json:"reference,omitempty"` // 幂等键
}

func (LedgerEntry) TableName() string {
	return "ledger_entries"
}
