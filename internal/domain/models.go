package domain

// RoomStatus is the externally visible lifecycle state of a room.
type RoomStatus string

const (
	StatusWaiting RoomStatus = "waiting"
	StatusPlaying RoomStatus = "playing"
)

// GamePhase labels the sub-state broadcast while a game is running.
type GamePhase string

const (
	PhaseWaiting      GamePhase = "waiting"
	PhaseShowQuestion GamePhase = "showQuestion"
	PhaseResults      GamePhase = "results"
)

// Member is one participant of a room. ID is the stable participant
// identifier, distinct from the transport connection id.
type Member struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// Room is the controller-owned record for one quiz session, keyed by its
// secret phrase. Members keeps join order.
type Room struct {
	Phrase  string
	Host    string
	Members []Member
	Status  RoomStatus
}

// HasMember reports whether id is present in the members sequence.
func (r Room) HasMember(id string) bool {
	for _, m := range r.Members {
		if m.ID == id {
			return true
		}
	}
	return false
}

// RecordedAnswer is one participant's submission for one question.
// TimeLeft is the client-reported seconds remaining at submission time,
// echoed into the leaderboard as response time.
type RecordedAnswer struct {
	Answer   int `json:"answer"`
	TimeLeft int `json:"timeLeft"`
}

// GameState is the ephemeral sub-record of a room, present only while the
// room is playing. It round-trips through a single store field as JSON.
type GameState struct {
	CurrentQuestion int                               `json:"currentQuestion"`
	UsersReady      []string                          `json:"usersReady"`
	Answers         map[int]map[string]RecordedAnswer `json:"answers"`
	Scores          map[string]int                    `json:"scores"`
	StartTime       int64                             `json:"startTime"` // unix millis; 0 until the first reveal
	TimeLeft        int                               `json:"timeLeft"`
}

// NewGameState returns the initial state written when a host starts a game.
func NewGameState(answerSeconds int) GameState {
	return GameState{
		UsersReady: []string{},
		Answers:    make(map[int]map[string]RecordedAnswer),
		Scores:     make(map[string]int),
		TimeLeft:   answerSeconds,
	}
}

// IsReady reports whether userID already signalled readiness.
func (g GameState) IsReady(userID string) bool {
	for _, id := range g.UsersReady {
		if id == userID {
			return true
		}
	}
	return false
}

// AnswersFor returns the recorded answers for question index q, never nil.
func (g GameState) AnswersFor(q int) map[string]RecordedAnswer {
	if g.Answers == nil {
		return map[string]RecordedAnswer{}
	}
	if answers, ok := g.Answers[q]; ok {
		return answers
	}
	return map[string]RecordedAnswer{}
}

// Question is one trivia question, loaded once at startup and shared
// read-only across all rooms.
type Question struct {
	ID            int      `json:"questionid"`
	Text          string   `json:"question"`
	Options       []string `json:"options"`
	CorrectAnswer int      `json:"correctAnswer"`
	Level         string   `json:"level"`
	Explanation   string   `json:"explanation"`
}

// ScoreEntry is one ranked leaderboard row, stored as the member payload of
// a per-room-per-question sorted set, keyed by cumulative score.
type ScoreEntry struct {
	ID             string `json:"id"`
	Name           string `json:"name"`
	Avatar         string `json:"avatar"`
	ResponseTime   int    `json:"responseTime"`
	TotalQuestions int    `json:"totalQuestions"`
	IsCurrentUser  bool   `json:"isCurrentUser"`
}

// RankedEntry pairs a leaderboard row with its sorted-set score.
type RankedEntry struct {
	Entry ScoreEntry
	Score int
}
