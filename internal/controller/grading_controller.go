package controller

import (
	"edupath_backend/internal/service"
	"edupath_backend/internal/util"

	"github.com/gin-gonic/gin"
)

type GradingController struct {
	GradingService *service.GradingService
}

func NewGradingController(gradingService *service.GradingService) *GradingController {
	return &GradingController{GradingService: gradingService}
}

// GradeRequest 一次提交该尝试全部开放题的评分
// swagger:model GradeRequest
type GradeRequest struct {
	Verdicts []service.Verdict `json:"verdicts" binding:"required,dive"`
}

// ListPending godoc
// @Summary 待人工评分列表
// @Description 教师仅可见自己创建的测验，管理员可见全部
// @Tags 人工评分
// @Produce json
// @Security ApiKeyAuth
// @Param page query int false "页码" default(1)
// @Param limit query int false "每页数量" default(20)
// @Success 200 {object} util.Response{data=util.PageResponse}
// @Router /api/teacher/grading/attempts [get]
func (c *GradingController) ListPending(ctx *gin.Context) {
	claims := util.GetUserFromContext(ctx)
	page, limit := pagination(ctx)

	attempts, total, err := c.GradingService.ListPending(ctx.Request.Context(), claims.UserID, claims.IsAdmin(), page, limit)
	if err != nil {
		util.LogInternalError(ctx, err)
		return
	}
	util.Success(ctx, util.PageResponse{
		List:  attempts,
		Total: total,
		Page:  page,
		Limit: limit,
	})
}

// GradeAttempt godoc
// @Summary 提交人工评分
// @Description 评分集合必须与该尝试的开放题答案集合完全一致
// @Tags 人工评分
// @Accept json
// @Produce json
// @Security ApiKeyAuth
// @Param id path int true "尝试ID"
// @Param body body GradeRequest true "评分"
// @Success 200 {object} util.Response{data=model.Attempt}
// @Failure 400 {object} util.Response "评分集合不匹配"
// @Failure 403 {object} util.Response "无权评分"
// @Failure 409 {object} util.Response "尝试不在待评分状态"
// @Router /api/teacher/grading/attempts/{id} [post]
func (c *GradingController) GradeAttempt(ctx *gin.Context) {
	attemptID, ok := uintParam(ctx, "id")
	if !ok {
		util.BadRequest(ctx, "Invalid attempt ID")
		return
	}
	var req GradeRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}
	claims := util.GetUserFromContext(ctx)

	attempt, err := c.GradingService.GradeAttempt(ctx.Request.Context(), claims.UserID, claims.IsAdmin(), attemptID, req.Verdicts)
	if err != nil {
		util.HandleServiceError(ctx, err)
		return
	}
	util.Success(ctx, attempt)
}
