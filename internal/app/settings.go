package app

import (
	"time"

	"quiz-room-service/internal/config"
)

// Settings are the resolved game tunables. The defaults reproduce the
// timings the game was designed around: a 5 second reveal grace followed by
// a 15 second answer window, 10 points per correct answer, rooms of up to
// six members.
type Settings struct {
	MaxMembers      int
	PointsPerAnswer int
	AnswerSeconds   int
	GraceSeconds    int
	ReadyDelay      time.Duration
	ResultsDelay    time.Duration
	TickInterval    time.Duration
}

func DefaultSettings() Settings {
	return Settings{
		MaxMembers:      6,
		PointsPerAnswer: 10,
		AnswerSeconds:   15,
		GraceSeconds:    5,
		ReadyDelay:      time.Second,
		ResultsDelay:    3 * time.Second,
		TickInterval:    time.Second,
	}
}

// SettingsFromConfig fills zero config values with the defaults.
func SettingsFromConfig(cfg config.GameConfig) Settings {
	s := DefaultSettings()
	if cfg.MaxMembers > 0 {
		s.MaxMembers = cfg.MaxMembers
	}
	if cfg.PointsPerAnswer > 0 {
		s.PointsPerAnswer = cfg.PointsPerAnswer
	}
	if cfg.AnswerSeconds > 0 {
		s.AnswerSeconds = cfg.AnswerSeconds
	}
	if cfg.GraceSeconds > 0 {
		s.GraceSeconds = cfg.GraceSeconds
	}
	s.ReadyDelay = config.Duration(cfg.ReadyDelay, s.ReadyDelay)
	s.ResultsDelay = config.Duration(cfg.ResultsDelay, s.ResultsDelay)
	s.TickInterval = config.Duration(cfg.TickInterval, s.TickInterval)
	return s
}
