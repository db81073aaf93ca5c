package util

import "errors"

var (
	ErrUserNotFound      = errors.New("user not found")
	ErrInvalidCredential = errors.New("invalid email or password")
	ErrEmailTaken        = errors.New("email already registered")
	ErrPermissionDenied  = errors.New("permission denied")
	ErrNotAssigned       = errors.New("quiz not assigned to student")

	ErrQuizNotFound     = errors.New("quiz not found")
	ErrQuestionNotFound = errors.New("question not found")
	ErrPathwayNotFound  = errors.New("pathway not found")

	// 提交格式错误：拒绝，尝试状态不变
	ErrMalformedSubmission = errors.New("malformed submission")
	ErrUnknownOption       = errors.New("unknown option id")

	// 非法状态迁移
	ErrAttemptNotFound         = errors.New("attempt not found")
	ErrAttemptNotInProgress    = errors.New("attempt is not in progress")
	ErrAttemptAlreadyFinalized = errors.New("attempt already finalized")
	ErrManualAnswersMissing    = errors.New("open-answer questions must be answered before completion")
	ErrAttemptNotPending       = errors.New("attempt is not pending grading")
	ErrAttemptNotCompleted     = errors.New("attempt is not completed")

	ErrGradingSetMismatch = errors.New("verdicts must cover exactly the open-answer submissions of the attempt")

	// 内部错误：数据完整性问题
	ErrUnsupportedQuestionType = errors.New("unsupported question type")
	ErrWalletNotFound          = errors.New("wallet not found")
	ErrUnknownPipelineStep     = errors.New("unknown pipeline step")
)
