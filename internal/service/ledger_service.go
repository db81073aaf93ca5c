package service

import (
	"context"
	"edupath_backend/internal/model"
	"edupath_backend/internal/repository"
	"edupath_backend/pkg/logger"
	"edupath_backend/pkg/monitoring"

	"go.uber.org/zap"
)

// LedgerService 积分账户：余额变更与流水同事务提交
type LedgerService struct {
	WalletRepo *repository.WalletRepository
}

func NewLedgerService(walletRepo *repository.WalletRepository) *LedgerService {
	return &LedgerService{WalletRepo: walletRepo}
}

type WalletSummary struct {
	Balance int                 `json:"balance"`
	Entries []model.LedgerEntry `json:"entries"`
	Total   int64               `json:"total"`
	Page    int                 `json:"page"`
	Limit   int                 `json:"limit"`
}

// Credit 记账；reference 作为幂等键，同一键只会入账一次
func (s *LedgerService) Credit(ctx context.Context, userID uint, amount int, reason, reference, source string) (bool, error) {
	if amount == 0 {
		return false, nil
	}
	ref := reference
	applied, err := s.WalletRepo.Credit(ctx, userID, amount, reason, &ref)
	if err != nil {
		return false, err
	}
	if applied {
		monitoring.PointsAwarded.WithLabelValues(source).Add(float64(amount))
		logger.Log.Info("points credited",
			zap.Uint("userId", userID),
			zap.Int("amount", amount),
			zap.String("reference", reference))
	}
	return applied, nil
}

func (s *LedgerService) Balance(ctx context.Context, userID uint) (int, error) {
	return s.WalletRepo.Balance(ctx, userID)
}

func (s *LedgerService) GetWallet(ctx context.Context, userID uint, page, limit int) (*WalletSummary, error) {
	balance, err := s.WalletRepo.Balance(ctx, userID)
	if err != nil {
		return nil, err
	}
	entries, total, err := s.WalletRepo.Entries(ctx, userID, page, limit)
	if err != nil {
		return nil, err
	}
	return &WalletSummary{
		Balance: balance,
		Entries: entries,
		Total:   total,
		Page:    page,
		Limit:   limit,
	}, nil
}

// Reconcile 校验每个账户余额等于流水之和；只记录不修正
func (s *LedgerService) Reconcile(ctx context.Context) ([]repository.WalletDrift, error) {
	drifts, err := s.WalletRepo.FindDrift(ctx)
	if err != nil {
		return nil, err
	}
	for _, d := range drifts {
		monitoring.WalletDrift.Inc()
		logger.Log.Error("wallet balance differs from ledger sum",
			zap.Uint("userId", d.UserID),
			zap.Int("balance", d.Balance),
			zap.Int("ledgerSum", d.LedgerSum))
	}
	return drifts, nil
}
