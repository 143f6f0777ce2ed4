package app

import "quiz-room-service/internal/domain"

// Event names emitted to room subscribers. The transport layer reuses the
// same names for per-connection replies.
const (
	EventRoomCreated   = "roomCreated"
	EventRoomJoined    = "roomJoined"
	EventRoomLeft      = "roomLeft"
	EventRoomDeleted   = "roomDeleted"
	EventUpdateRoom    = "updateRoom"
	EventGameStarted   = "gameStarted"
	EventGameState     = "gameStateUpdate"
	EventTimeUpdate    = "timeUpdate"
	EventScoresUpdated = "scoresUpdated"
	EventGameEnded     = "gameEnded"
	EventError         = "error"
)

// Broadcaster fans an event out to every subscriber of a room. Implemented
// by the websocket hub; tests substitute a recording fake.
type Broadcaster interface {
	ToRoom(phrase, event string, payload any)
}

// RoomView is the updateRoom payload.
type RoomView struct {
	Host    string            `json:"host"`
	Members []domain.Member   `json:"members"`
	Status  domain.RoomStatus `json:"status"`
}

// WaitingStatus is the gameStateUpdate payload sent to a single connection
// while the ready gate has not opened yet.
type WaitingStatus struct {
	GamePhase       domain.GamePhase `json:"gamePhase"`
	WaitingForUsers []string         `json:"waitingForUsers"`
	AllUsersReady   bool             `json:"allUsersReady"`
	Message         string           `json:"message"`
}

// QuestionView is the gameStateUpdate payload revealing a question.
type QuestionView struct {
	Question       string           `json:"question"`
	Options        []string         `json:"options"`
	TimeLeft       int              `json:"timeLeft"`
	GamePhase      domain.GamePhase `json:"gamePhase"`
	QuestionNumber int              `json:"questionNumber"`
	TotalQuestions int              `json:"totalQuestions"`
	AllUsersReady  bool             `json:"allUsersReady"`
	Level          string           `json:"level"`
}

// ResultsView is the gameStateUpdate payload closing a question.
type ResultsView struct {
	Question          string           `json:"question"`
	Options           []string         `json:"options"`
	GamePhase         domain.GamePhase `json:"gamePhase"`
	QuestionNumber    int              `json:"questionNumber"`
	TotalQuestions    int              `json:"totalQuestions"`
	CorrectAnswer     int              `json:"correctAnswer"`
	CorrectAnswerText string           `json:"correctAnswerText"`
	Explanation       string           `json:"explanation"`
}

// TimeUpdate carries the server-authoritative countdown. TimeLeft counts the
// answer window only; TotalTimeLeft includes the reveal grace period.
type TimeUpdate struct {
	TimeLeft      int `json:"timeLeft"`
	TotalTimeLeft int `json:"totalTimeLeft"`
}
