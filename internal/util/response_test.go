package util

import (
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"gorm.io/gorm"
)

func TestHandleServiceErrorStatusCodes(t *testing.T) {
	gin.SetMode(gin.TestMode)
	cases := []struct {
		err  error
		code int
	}{
		{fmt.Errorf("%w: bad json", ErrMalformedSubmission), http.StatusBadRequest},
		{fmt.Errorf("%w: %w 7", ErrMalformedSubmission, ErrUnknownOption), http.StatusBadRequest},
		{ErrGradingSetMismatch, http.StatusBadRequest},
		{ErrManualAnswersMissing, http.StatusBadRequest},
		{ErrUnknownPipelineStep, http.StatusBadRequest},
		{ErrAttemptNotInProgress, http.StatusConflict},
		{ErrAttemptAlreadyFinalized, http.StatusConflict},
		{ErrAttemptNotPending, http.StatusConflict},
		{ErrAttemptNotCompleted, http.StatusConflict},
		{ErrEmailTaken, http.StatusConflict},
		{ErrPermissionDenied, http.StatusForbidden},
		{ErrNotAssigned, http.StatusForbidden},
		{ErrAttemptNotFound, http.StatusNotFound},
		{ErrQuizNotFound, http.StatusNotFound},
		{gorm.ErrRecordNotFound, http.StatusNotFound},
		{ErrInvalidCredential, http.StatusUnauthorized},
		{errors.New("disk on fire"), http.StatusInternalServerError},
	}
	for _, tc := range cases {
		t.Run(tc.err.Error(), func(t *testing.T) {
			w := httptest.NewRecorder()
			c, _ := gin.CreateTestContext(w)
			c.Request = httptest.NewRequest(http.MethodGet, "/", nil)
			HandleServiceError(c, tc.err)
			assert.Equal(t, tc.code, w.Code)
		})
	}
}

func TestRound2(t *testing.T) {
	assert.Equal(t, 66.67, Round2(200.0/3))
	assert.Equal(t, 33.33, Round2(100.0/3))
	assert.Equal(t, 0.0, Round2(0))
}
