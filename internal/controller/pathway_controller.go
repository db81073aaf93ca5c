package controller

import (
	"edupath_backend/internal/service"
	"edupath_backend/internal/util"

	"github.com/gin-gonic/gin"
)

type PathwayController struct {
	Tracker *service.PathwayProgressTracker
}

func NewPathwayController(tracker *service.PathwayProgressTracker) *PathwayController {
	return &PathwayController{Tracker: tracker}
}

// GetProgress godoc
// @Summary 学习路径进度
// @Tags 学习路径
// @Produce json
// @Security ApiKeyAuth
// @Param id path int true "路径ID"
// @Success 200 {object} util.Response{data=service.PathwayProgressView}
// @Failure 404 {object} util.Response
// @Router /api/pathways/{id}/progress [get]
func (c *PathwayController) GetProgress(ctx *gin.Context) {
	pathwayID, ok := uintParam(ctx, "id")
	if !ok {
		util.BadRequest(ctx, "Invalid pathway ID")
		return
	}
	claims := util.GetUserFromContext(ctx)

	view, err := c.Tracker.GetProgress(ctx.Request.Context(), claims.UserID, pathwayID)
	if err != nil {
		util.HandleServiceError(ctx, err)
		return
	}
	util.Success(ctx, view)
}
