package service

import (
	"context"
	"edupath_backend/internal/model"
	"encoding/json"
	"fmt"
	"time"
)

// GradingArchiver 人工评分完成后归档快照
type GradingArchiver interface {
	ArchiveGradedAttempt(ctx context.Context, snapshot *GradedAttemptSnapshot) (string, error)
}

// GradedAttemptSnapshot 评分审计快照
type GradedAttemptSnapshot struct {
	Attempt  model.Attempt           `json:"attempt"`
	Answers  []model.SubmittedAnswer `json:"answers"`
	Verdicts []Verdict               `json:"verdicts"`
	GraderID uint                    `json:"graderId"`
	GradedAt time.Time               `json:"gradedAt"`
}

type ArchiveService struct {
	Storage *StorageService
}

func NewArchiveService(storage *StorageService) *ArchiveService {
	return &ArchiveService{Storage: storage}
}

// ArchiveKey grading/<quizId>/<attemptId>-<uuid>.json
func ArchiveKey(quizID, attemptID uint) string {
	return fmt.Sprintf("grading/%d/%d-%s.json", quizID, attemptID, model.GenerateUUID())
}

func (s *ArchiveService) ArchiveGradedAttempt(ctx context.Context, snapshot *GradedAttemptSnapshot) (string, error) {
	data, err := json.Marshal(snapshot)
	if err != nil {
		return "", err
	}
	key := ArchiveKey(snapshot.Attempt.QuizID, snapshot.Attempt.ID)
	if _, err := s.Storage.PutBytes(ctx, key, data, "application/json"); err != nil {
		return "", err
	}
	return key, nil
}
