package repository

import (
	"context"
	"edupath_backend/internal/model"
	"edupath_backend/internal/util"
	"errors"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type WalletRepository struct {
	DB *gorm.DB
}

func NewWalletRepository(db *gorm.DB) *WalletRepository {
	return &WalletRepository{DB: db}
}

// EnsureWallet 开通学生积分账户（学生创建时调用，重复调用无副作用）
func (r *WalletRepository) EnsureWallet(ctx context.Context, userID uint) error {
	return r.DB.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(&model.Wallet{UserID: userID}).Error
}

// Credit 原子地增加余额并追加一条流水，两者同提交或同回滚。
// reference 非空时作为幂等键，已记账则返回 applied=false。
func (r *WalletRepository) Credit(ctx context.Context, userID uint, amount int, reason string, reference *string) (bool, error) {
	applied := false
	err := r.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		entry := &model.LedgerEntry{
			UserID:    userID,
			Amount:    amount,
			Reason:    reason,
			Reference: reference,
		}
		res := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(entry)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return nil
		}

		upd := tx.Model(&model.Wallet{}).
			Where("user_id = ?", userID).
			UpdateColumn("balance", gorm.Expr("balance + ?", amount))
		if upd.Error != nil {
			return upd.Error
		}
		if upd.RowsAffected == 0 {
			return util.ErrWalletNotFound
		}
		applied = true
		return nil
	})
	if err != nil {
		return false, err
	}
	return applied, nil
}

func (r *WalletRepository) Balance(ctx context.Context, userID uint) (int, error) {
	var w model.Wallet
	if err := r.DB.WithContext(ctx).Where("user_id = ?", userID).First(&w).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return 0, util.ErrWalletNotFound
		}
		return 0, err
	}
	return w.Balance, nil
}

func (r *WalletRepository) Entries(ctx context.Context, userID uint, page, limit int) ([]model.LedgerEntry, int64, error) {
	query := r.DB.WithContext(ctx).Model(&model.LedgerEntry{}).Where("user_id = ?", userID).Session(&gorm.Session{})
	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}
	var entries []model.LedgerEntry
	offset := (page - 1) * limit
	err := query.Order("id desc").Offset(offset).Limit(limit).Find(&entries).Error
	return entries, total, err
}

func (r *WalletRepository) SumEntries(ctx context.Context, userID uint) (int, error) {
	var sum int
	err := r.DB.WithContext(ctx).Model(&model.LedgerEntry{}).
		Where("user_id = ?", userID).
		Select("COALESCE(SUM(amount), 0)").
		Scan(&sum).Error
	return sum, err
}

// WalletDrift 余额与流水之和不一致的账户
type WalletDrift struct {
	UserID    uint `json:"userId"`
	Balance   int  `json:"balance"`
	LedgerSum int  `json:"ledgerSum"`
}

// FindDrift 对账：找出余额不等于流水合计的账户
func (r *WalletRepository) FindDrift(ctx context.Context) ([]WalletDrift, error) {
	db := r.DB.WithContext(ctx)
	sums := db.Model(&model.LedgerEntry{}).
		Select("user_id, SUM(amount) AS total").
		Group("user_id")

	var drifts []WalletDrift
	err := db.Table("wallets").
		Select("wallets.user_id AS user_id, wallets.balance AS balance, COALESCE(s.total, 0) AS ledger_sum").
		Joins("LEFT JOIN (?) AS s ON s.user_id = wallets.user_id", sums).
		Where("wallets.deleted_at IS NULL").
		Where("wallets.balance <> COALESCE(s.total, 0)").
		Scan(&drifts).Error
	return drifts, err
}
