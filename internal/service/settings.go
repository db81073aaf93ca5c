package service

import (
	"edupath_backend/internal/config"
	"sync"
)

// EngineSettings 可热更新的评分开关
type EngineSettings struct {
	mu                sync.RWMutex
	blendManualScores bool
	archiveEnabled    bool
}

func NewEngineSettings(cfg *config.Config) *EngineSettings {
	s := &EngineSettings{}
	s.Apply(cfg)
	return s
}

func (s *EngineSettings) Apply(cfg *config.Config) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.blendManualScores = cfg.Grading.BlendManualScores
	s.archiveEnabled = cfg.Grading.ArchiveEnabled
}

func (s *EngineSettings) BlendManualScores() bool {
	if s == nil {
		return false
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.blendManualScores
}

func (s *EngineSettings) ArchiveEnabled() bool {
	if s == nil {
		return false
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.archiveEnabled
}
