package controller

import (
	"edupath_backend/internal/service"
	"edupath_backend/internal/util"

	"github.com/gin-gonic/gin"
)

type RewardController struct {
	Ledger   *service.LedgerService
	Badges   *service.BadgeService
	Pipeline *service.CompletionPipeline
}

func NewRewardController(ledger *service.LedgerService, badges *service.BadgeService, pipeline *service.CompletionPipeline) *RewardController {
	return &RewardController{
		Ledger:   ledger,
		Badges:   badges,
		Pipeline: pipeline,
	}
}

// GetWallet godoc
// @Summary 积分账户
// @Description 当前余额及积分流水
// @Tags 奖励
// @Produce json
// @Security ApiKeyAuth
// @Param page query int false "页码" default(1)
// @Param limit query int false "每页数量" default(20)
// @Success 200 {object} util.Response{data=service.WalletSummary}
// @Router /api/wallet [get]
func (c *RewardController) GetWallet(ctx *gin.Context) {
	claims := util.GetUserFromContext(ctx)
	page, limit := pagination(ctx)

	summary, err := c.Ledger.GetWallet(ctx.Request.Context(), claims.UserID, page, limit)
	if err != nil {
		util.HandleServiceError(ctx, err)
		return
	}
	util.Success(ctx, summary)
}

// GetBadges godoc
// @Summary 已获得徽章
// @Tags 奖励
// @Produce json
// @Security ApiKeyAuth
// @Success 200 {object} util.Response{data=[]model.EarnedBadge}
// @Router /api/badges [get]
func (c *RewardController) GetBadges(ctx *gin.Context) {
	claims := util.GetUserFromContext(ctx)

	earned, err := c.Badges.ListEarned(ctx.Request.Context(), claims.UserID)
	if err != nil {
		util.LogInternalError(ctx, err)
		return
	}
	util.Success(ctx, earned)
}

// RetryStep godoc
// @Summary 重放完成奖励步骤
// @Description 对已完成的尝试单独重新执行某个奖励步骤，步骤均为幂等
// @Tags 管理员
// @Produce json
// @Security ApiKeyAuth
// @Param id path int true "尝试ID"
// @Param step path string true "步骤名" Enums(claim_first_success, reward_points, award_badges, propagate_pathways)
// @Success 200 {object} util.Response{data=object}
// @Failure 400 {object} util.Response "未知步骤"
// @Failure 409 {object} util.Response "尝试未完成"
// @Router /api/admin/rewards/attempts/{id}/retry/{step} [post]
func (c *RewardController) RetryStep(ctx *gin.Context) {
	attemptID, ok := uintParam(ctx, "id")
	if !ok {
		util.BadRequest(ctx, "Invalid attempt ID")
		return
	}
	step := ctx.Param("step")

	ev, err := c.Pipeline.BuildEvent(ctx.Request.Context(), attemptID)
	if err != nil {
		util.HandleServiceError(ctx, err)
		return
	}
	if err := c.Pipeline.RunStep(ctx.Request.Context(), ev, step); err != nil {
		util.HandleServiceError(ctx, err)
		return
	}
	util.Success(ctx, gin.H{
		"attemptId":    attemptID,
		"step":         step,
		"firstSuccess": ev.FirstSuccess,
	})
}

// Reconcile godoc
// @Summary 积分对账
// @Description 检查每个账户余额是否等于流水之和，只报告不修正
// @Tags 管理员
// @Produce json
// @Security ApiKeyAuth
// @Success 200 {object} util.Response{data=[]repository.WalletDrift}
// @Router /api/admin/wallets/reconcile [post]
func (c *RewardController) Reconcile(ctx *gin.Context) {
	drifts, err := c.Ledger.Reconcile(ctx.Request.Context())
	if err != nil {
		util.LogInternalError(ctx, err)
		return
	}
	util.Success(ctx, drifts)
}
