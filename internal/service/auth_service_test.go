package service

import (
	"edupath_backend/internal/config"
	"edupath_backend/internal/model"
	"edupath_backend/internal/util"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegisterOpensWallet(t *testing.T) {
	f := newFixture(t)
	auth := NewAuthService(f.userRepo, &config.Config{
		JWT: config.JWTConfig{Secret: "test-secret", ExpireTime: time.Hour},
	})

	user, err := auth.Register(f.ctx, "Ada", "ada@example.com", "s3cret-pass")
	require.NoError(t, err)
	assert.Equal(t, model.Student, user.Role)
	assert.Zero(t, f.balance(t, user.ID))

	_, err = auth.Register(f.ctx, "Ada", "ada@example.com", "other-pass")
	assert.ErrorIs(t, err, util.ErrEmailTaken)

	token, logged, err := auth.Login(f.ctx, "ada@example.com", "s3cret-pass")
	require.NoError(t, err)
	assert.NotEmpty(t, token)
	assert.Equal(t, user.ID, logged.ID)
}

func TestEnsureWalletIsIdempotent(t *testing.T) {
	f := newFixture(t)
	student := f.student(t)

	require.NoError(t, f.walletRepo.EnsureWallet(f.ctx, student.ID))
	var wallets int64
	require.NoError(t, f.db.Model(&model.Wallet{}).Where("user_id = ?", student.ID).Count(&wallets).Error)
	assert.EqualValues(t, 1, wallets)

	// 教师不开通积分账户
	teacher := f.teacher(t)
	_, err := f.ledger.Balance(f.ctx, teacher.ID)
	assert.ErrorIs(t, err, util.ErrWalletNotFound)
}
