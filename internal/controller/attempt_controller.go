package controller

import (
	"edupath_backend/internal/service"
	"edupath_backend/internal/util"
	"encoding/json"

	"github.com/gin-gonic/gin"
)

type AttemptController struct {
	AttemptService *service.AttemptService
}

func NewAttemptController(attemptService *service.AttemptService) *AttemptController {
	return &AttemptController{AttemptService: attemptService}
}

// SubmitAnswerRequest 答案内容按题型不同：{"optionId":1} / {"value":true} / {"optionIds":[1,2]} / {"answers":["a"]} / {"text":"..."}
// swagger:model SubmitAnswerRequest
type SubmitAnswerRequest struct {
	Payload json.RawMessage `json:"payload" binding:"required" swaggertype:"object"`
}

// StartAttempt godoc
// @Summary 开始测验
// @Description 为已分配的测验创建一次新的尝试
// @Tags 测验
// @Produce json
// @Security ApiKeyAuth
// @Param id path int true "测验ID"
// @Success 201 {object} util.Response{data=model.Attempt}
// @Failure 403 {object} util.Response "未分配该测验"
// @Failure 404 {object} util.Response "测验不存在"
// @Router /api/quizzes/{id}/attempts [post]
func (c *AttemptController) StartAttempt(ctx *gin.Context) {
	quizID, ok := uintParam(ctx, "id")
	if !ok {
		util.BadRequest(ctx, "Invalid quiz ID")
		return
	}
	claims := util.GetUserFromContext(ctx)

	attempt, err := c.AttemptService.StartAttempt(ctx.Request.Context(), claims.UserID, quizID)
	if err != nil {
		util.HandleServiceError(ctx, err)
		return
	}
	util.Created(ctx, attempt)
}

// GetAttempt godoc
// @Summary 获取尝试详情
// @Tags 测验
// @Produce json
// @Security ApiKeyAuth
// @Param id path int true "尝试ID"
// @Success 200 {object} util.Response{data=model.Attempt}
// @Failure 404 {object} util.Response
// @Router /api/attempts/{id} [get]
func (c *AttemptController) GetAttempt(ctx *gin.Context) {
	attemptID, ok := uintParam(ctx, "id")
	if !ok {
		util.BadRequest(ctx, "Invalid attempt ID")
		return
	}
	claims := util.GetUserFromContext(ctx)

	attempt, err := c.AttemptService.GetAttempt(ctx.Request.Context(), claims.UserID, attemptID)
	if err != nil {
		util.HandleServiceError(ctx, err)
		return
	}
	util.Success(ctx, attempt)
}

// SubmitAnswer godoc
// @Summary 提交答案
// @Description 每题一条，重复提交覆盖之前的答案
// @Tags 测验
// @Accept json
// @Produce json
// @Security ApiKeyAuth
// @Param id path int true "尝试ID"
// @Param questionId path int true "题目ID"
// @Param body body SubmitAnswerRequest true "答案"
// @Success 200 {object} util.Response{data=model.SubmittedAnswer}
// @Failure 400 {object} util.Response "答案格式错误"
// @Failure 409 {object} util.Response "尝试已提交"
// @Router /api/attempts/{id}/answers/{questionId} [put]
func (c *AttemptController) SubmitAnswer(ctx *gin.Context) {
	attemptID, ok := uintParam(ctx, "id")
	if !ok {
		util.BadRequest(ctx, "Invalid attempt ID")
		return
	}
	questionID, ok := uintParam(ctx, "questionId")
	if !ok {
		util.BadRequest(ctx, "Invalid question ID")
		return
	}

	var req SubmitAnswerRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}
	claims := util.GetUserFromContext(ctx)

	answer, err := c.AttemptService.SubmitAnswer(ctx.Request.Context(), claims.UserID, attemptID, questionID, req.Payload)
	if err != nil {
		util.HandleServiceError(ctx, err)
		return
	}
	util.Success(ctx, answer)
}

// EvaluateAnswers godoc
// @Summary 部分批阅
// @Description 评估已提交的自动评分题，不改变尝试状态
// @Tags 测验
// @Produce json
// @Security ApiKeyAuth
// @Param id path int true "尝试ID"
// @Success 200 {object} util.Response{data=[]service.Evaluation}
// @Router /api/attempts/{id}/evaluate [post]
func (c *AttemptController) EvaluateAnswers(ctx *gin.Context) {
	attemptID, ok := uintParam(ctx, "id")
	if !ok {
		util.BadRequest(ctx, "Invalid attempt ID")
		return
	}
	claims := util.GetUserFromContext(ctx)

	evals, err := c.AttemptService.EvaluateAnswers(ctx.Request.Context(), claims.UserID, attemptID)
	if err != nil {
		util.HandleServiceError(ctx, err)
		return
	}
	util.Success(ctx, evals)
}

// CompleteAttempt godoc
// @Summary 完成测验
// @Description 评分并确定终态；含开放题时进入待人工评分
// @Tags 测验
// @Produce json
// @Security ApiKeyAuth
// @Param id path int true "尝试ID"
// @Success 200 {object} util.Response{data=model.Attempt}
// @Failure 400 {object} util.Response "开放题未作答"
// @Failure 409 {object} util.Response "尝试已完成"
// @Router /api/attempts/{id}/complete [post]
func (c *AttemptController) CompleteAttempt(ctx *gin.Context) {
	attemptID, ok := uintParam(ctx, "id")
	if !ok {
		util.BadRequest(ctx, "Invalid attempt ID")
		return
	}
	claims := util.GetUserFromContext(ctx)

	attempt, err := c.AttemptService.CompleteAttempt(ctx.Request.Context(), claims.UserID, attemptID)
	if err != nil {
		util.HandleServiceError(ctx, err)
		return
	}
	util.Success(ctx, attempt)
}
