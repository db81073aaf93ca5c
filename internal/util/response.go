package util

import (
	"edupath_backend/pkg/logger"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Response 统一响应结构
type Response struct {
	Code    int         `json:"code"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}

// PageResponse 分页响应结构
type PageResponse struct {
	List  interface{} `json:"list"`
	Total int64       `json:"total"`
	Page  int         `json:"page"`
	Limit int         `json:"limit"`
}

func Success(c *gin.Context, data interface{}) {
	c.JSON(http.StatusOK, Response{
		Code:    http.StatusOK,
		Message: "success",
		Data:    data,
	})
}

func Created(c *gin.Context, data interface{}) {
	c.JSON(http.StatusCreated, Response{
		Code:    http.StatusCreated,
		Message: "created",
		Data:    data,
	})
}

func Error(c *gin.Context, code int, message string) {
	c.JSON(code, Response{
		Code:    code,
		Message: message,
	})
}

func Unauthorized(c *gin.Context) {
	Error(c, http.StatusUnauthorized, "Unauthorized")
}

func Forbidden(c *gin.Context) {
	Error(c, http.StatusForbidden, "Forbidden")
}

func BadRequest(c *gin.Context, message string) {
	Error(c, http.StatusBadRequest, message)
}

func Conflict(c *gin.Context, message string) {
	Error(c, http.StatusConflict, message)
}

func NotFound(c *gin.Context) {
	Error(c, http.StatusNotFound, "Resource not found")
}

func InternalServerError(c *gin.Context) {
	Error(c, http.StatusInternalServerError, "Internal server error")
}

func LogInternalError(c *gin.Context, err error) {
	logger.Log.Error("Internal server error", zap.Error(err), zap.String("path", c.FullPath()))
	InternalServerError(c)
}

// HandleServiceError 将业务错误映射为 HTTP 状态码
func HandleServiceError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, ErrMalformedSubmission), errors.Is(err, ErrUnknownOption),
		errors.Is(err, ErrGradingSetMismatch), errors.Is(err, ErrManualAnswersMissing),
		errors.Is(err, ErrUnknownPipelineStep):
		BadRequest(c, err.Error())
	case errors.Is(err, ErrAttemptNotInProgress), errors.Is(err, ErrAttemptAlreadyFinalized),
		errors.Is(err, ErrAttemptNotPending), errors.Is(err, ErrAttemptNotCompleted),
		errors.Is(err, ErrEmailTaken):
		Conflict(c, err.Error())
	case errors.Is(err, ErrPermissionDenied), errors.Is(err, ErrNotAssigned):
		Forbidden(c)
	case errors.Is(err, ErrAttemptNotFound), errors.Is(err, ErrQuizNotFound),
		errors.Is(err, ErrQuestionNotFound), errors.Is(err, ErrPathwayNotFound),
		errors.Is(err, ErrUserNotFound), errors.Is(err, gorm.ErrRecordNotFound):
		NotFound(c)
	case errors.Is(err, ErrInvalidCredential):
		Unauthorized(c)
	default:
		LogInternalError(c, err)
	}
}
