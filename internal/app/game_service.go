package app

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/url"
	"time"

	"quiz-room-service/internal/domain"
)

// GameService drives the per-room game lifecycle: the
// waiting → playing → {showQuestion ⇄ results} → ended cycle, the
// per-question countdown, answer collection and scoring. All state lives in
// the store; the service keeps only the timer table between events, so a
// handler always reads current state, mutates and writes back.
type GameService struct {
	store  RoomStore
	bus    Broadcaster
	bank   *QuestionBank
	timers *TimerTable
	set    Settings
}

func NewGameService(store RoomStore, bus Broadcaster, bank *QuestionBank, timers *TimerTable, set Settings) *GameService {
	return &GameService{
		store:  store,
		bus:    bus,
		bank:   bank,
		timers: timers,
		set:    set,
	}
}

// Start transitions a room to playing. Only the host may start, and only
// with at least two members; a rejected start leaves the room untouched and
// broadcasts nothing.
func (s *GameService) Start(ctx context.Context, phrase, requesterID string) error {
	room, err := s.store.Room(ctx, phrase)
	if err != nil {
		return err
	}
	if room.Host != requesterID {
		return domain.ErrNotHost
	}
	if len(room.Members) < 2 {
		return domain.ErrNotEnoughMembers
	}

	if err := s.store.SetStatus(ctx, phrase, domain.StatusPlaying); err != nil {
		return err
	}
	s.timers.Cancel(phrase)
	if err := s.store.SetGameState(ctx, phrase, domain.NewGameState(s.set.AnswerSeconds)); err != nil {
		return err
	}
	s.bus.ToRoom(phrase, EventGameStarted, nil)
	log.Printf("room %q: game started with %d members", phrase, len(room.Members))
	return nil
}

// MarkReady records that userID reached the game screen. When the last
// member arrives the first reveal is scheduled and nil is returned;
// otherwise the returned status lists who is ready, for the requesting
// connection only.
func (s *GameService) MarkReady(ctx context.Context, phrase, userID string) (*WaitingStatus, error) {
	state, err := s.store.GameState(ctx, phrase)
	if err != nil {
		return nil, err
	}
	room, err := s.store.Room(ctx, phrase)
	if err != nil {
		return nil, err
	}

	if !state.IsReady(userID) {
		state.UsersReady = append(state.UsersReady, userID)
		if err := s.store.SetGameState(ctx, phrase, state); err != nil {
			return nil, err
		}
	}
	log.Printf("room %q: %s ready (%d/%d)", phrase, userID, len(state.UsersReady), len(room.Members))

	if len(state.UsersReady) == len(room.Members) {
		s.timers.Schedule(phrase, s.set.ReadyDelay, func() {
			s.revealQuestion(phrase, 0)
		})
		return nil, nil
	}

	readyNames := make([]string, 0, len(state.UsersReady))
	for _, m := range room.Members {
		if state.IsReady(m.ID) {
			readyNames = append(readyNames, m.Name)
		}
	}
	return &WaitingStatus{
		GamePhase:       domain.PhaseWaiting,
		WaitingForUsers: readyNames,
		AllUsersReady:   false,
		Message:         fmt.Sprintf("%d/%d ready", len(state.UsersReady), len(room.Members)),
	}, nil
}

// SubmitAnswer records (or overwrites) a participant's answer for the
// current question. Resubmission cannot double-score: points are computed
// from the answer map only at the scoring instant. Once every member has
// answered, scoring fires immediately instead of waiting for the deadline.
func (s *GameService) SubmitAnswer(ctx context.Context, phrase, userID string, answerIndex, clientTimeLeft int) error {
	state, err := s.store.GameState(ctx, phrase)
	if err != nil {
		return err
	}
	q := state.CurrentQuestion
	if state.Answers == nil {
		state.Answers = make(map[int]map[string]domain.RecordedAnswer)
	}
	if state.Answers[q] == nil {
		state.Answers[q] = make(map[string]domain.RecordedAnswer)
	}
	state.Answers[q][userID] = domain.RecordedAnswer{Answer: answerIndex, TimeLeft: clientTimeLeft}
	if err := s.store.SetGameState(ctx, phrase, state); err != nil {
		return err
	}

	room, err := s.store.Room(ctx, phrase)
	if err != nil {
		return err
	}
	if len(state.Answers[q]) == len(room.Members) {
		s.scoreQuestion(phrase, q)
	}
	return nil
}

// revealQuestion opens question index for the room, or ends the game when
// the bank is exhausted. Runs from scheduled tasks, never from a request.
func (s *GameService) revealQuestion(phrase string, index int) {
	ctx := context.Background()

	question, ok := s.bank.Question(index)
	if !ok {
		s.endGame(phrase)
		return
	}

	state, err := s.store.GameState(ctx, phrase)
	if err != nil {
		s.logStateError(phrase, "reveal", err)
		return
	}
	state.CurrentQuestion = index
	state.StartTime = time.Now().UnixMilli()
	state.TimeLeft = s.set.AnswerSeconds
	if err := s.store.SetGameState(ctx, phrase, state); err != nil {
		log.Printf("room %q: persist reveal: %v", phrase, err)
		return
	}

	s.bus.ToRoom(phrase, EventGameState, QuestionView{
		Question:       question.Text,
		Options:        question.Options,
		TimeLeft:       s.set.GraceSeconds + s.set.AnswerSeconds,
		GamePhase:      domain.PhaseShowQuestion,
		QuestionNumber: index + 1,
		TotalQuestions: s.bank.Len(),
		AllUsersReady:  true,
		Level:          question.Level,
	})

	s.timers.StartTicker(phrase, s.set.TickInterval, func() bool {
		return s.tick(phrase, index)
	})
}

// tick recomputes the countdown from the persisted start time rather than
// decrementing locally, so a gap in ticks (or a controller restart followed
// by a fresh arm) reconstructs the correct remaining time instead of
// drifting. Returns false to stop the ticker.
func (s *GameService) tick(phrase string, index int) bool {
	ctx := context.Background()

	state, err := s.store.GameState(ctx, phrase)
	if err != nil {
		// State vanished mid-question (game ended, room deleted): the
		// ticker just stops.
		s.logStateError(phrase, "tick", err)
		return false
	}

	elapsed := int(time.Now().UnixMilli()-state.StartTime) / 1000
	totalLeft := s.set.GraceSeconds + s.set.AnswerSeconds - elapsed
	if totalLeft < 0 {
		totalLeft = 0
	}
	answerElapsed := elapsed - s.set.GraceSeconds
	if answerElapsed < 0 {
		answerElapsed = 0
	}
	state.TimeLeft = s.set.AnswerSeconds - answerElapsed
	if state.TimeLeft < 0 {
		state.TimeLeft = 0
	}

	if err := s.store.SetGameState(ctx, phrase, state); err != nil {
		log.Printf("room %q: persist tick: %v", phrase, err)
		return false
	}
	s.bus.ToRoom(phrase, EventTimeUpdate, TimeUpdate{
		TimeLeft:      state.TimeLeft,
		TotalTimeLeft: totalLeft,
	})

	if totalLeft <= 0 {
		s.scoreQuestion(phrase, index)
		return false
	}
	return true
}

// scoreQuestion closes question index: applies points, publishes results,
// rebuilds the leaderboard and chains the next reveal. It runs exactly once
// per question because its two triggers, the deadline tick and the
// all-answered shortcut, cancel each other through the timer table.
func (s *GameService) scoreQuestion(phrase string, index int) {
	ctx := context.Background()

	s.timers.Cancel(phrase)

	state, err := s.store.GameState(ctx, phrase)
	if err != nil {
		s.logStateError(phrase, "score", err)
		return
	}
	question, ok := s.bank.Question(index)
	if !ok {
		log.Printf("room %q: no question at index %d", phrase, index)
		return
	}

	answers := state.AnswersFor(index)
	if state.Scores == nil {
		state.Scores = make(map[string]int)
	}
	for userID, a := range answers {
		// Answerers always appear in the score map, wrong answers as zero;
		// members who never answered stay absent.
		if _, ok := state.Scores[userID]; !ok {
			state.Scores[userID] = 0
		}
		if a.Answer == question.CorrectAnswer {
			state.Scores[userID] += s.set.PointsPerAnswer
		}
	}
	if err := s.store.SetGameState(ctx, phrase, state); err != nil {
		log.Printf("room %q: persist scores: %v", phrase, err)
		return
	}

	s.bus.ToRoom(phrase, EventGameState, ResultsView{
		Question:          question.Text,
		Options:           question.Options,
		GamePhase:         domain.PhaseResults,
		QuestionNumber:    index + 1,
		TotalQuestions:    s.bank.Len(),
		CorrectAnswer:     question.CorrectAnswer,
		CorrectAnswerText: optionText(question, question.CorrectAnswer),
		Explanation:       question.Explanation,
	})

	s.publishLeaderboard(ctx, phrase, index, state, answers)

	s.timers.Schedule(phrase, s.set.ResultsDelay, func() {
		s.revealQuestion(phrase, index+1)
	})
}

// publishLeaderboard rebuilds the ranked collection for the closed question
// (round is 1-based) with one entry per member, keyed by cumulative score.
// Members who never answered carry a response time of zero.
func (s *GameService) publishLeaderboard(ctx context.Context, phrase string, index int, state domain.GameState, answers map[string]domain.RecordedAnswer) {
	room, err := s.store.Room(ctx, phrase)
	if err != nil {
		log.Printf("room %q: leaderboard members: %v", phrase, err)
		return
	}

	entries := make([]domain.RankedEntry, 0, len(room.Members))
	for _, m := range room.Members {
		entries = append(entries, domain.RankedEntry{
			Score: state.Scores[m.ID],
			Entry: domain.ScoreEntry{
				ID:             m.ID,
				Name:           m.Name,
				Avatar:         avatarURL(m.Name),
				ResponseTime:   answers[m.ID].TimeLeft,
				TotalQuestions: s.bank.Len(),
			},
		})
	}
	if err := s.store.ReplaceLeaderboard(ctx, phrase, index+1, entries); err != nil {
		log.Printf("room %q: replace leaderboard: %v", phrase, err)
		return
	}
	s.bus.ToRoom(phrase, EventScoresUpdated, nil)
}

// endGame returns the room to waiting, drops the game sub-record and
// broadcasts the final score mapping.
func (s *GameService) endGame(phrase string) {
	ctx := context.Background()

	s.timers.Cancel(phrase)

	state, err := s.store.GameState(ctx, phrase)
	if err != nil {
		s.logStateError(phrase, "end", err)
		return
	}
	if err := s.store.SetStatus(ctx, phrase, domain.StatusWaiting); err != nil {
		log.Printf("room %q: reset status: %v", phrase, err)
	}
	if err := s.store.DeleteGameState(ctx, phrase); err != nil {
		log.Printf("room %q: drop game state: %v", phrase, err)
	}

	scores := state.Scores
	if scores == nil {
		scores = map[string]int{}
	}
	s.bus.ToRoom(phrase, EventGameEnded, scores)
	log.Printf("room %q: game ended", phrase)
}

func (s *GameService) logStateError(phrase, op string, err error) {
	if errors.Is(err, domain.ErrGameStateMissing) {
		log.Printf("room %q: %s: game state missing", phrase, op)
		return
	}
	log.Printf("room %q: %s: %v", phrase, op, err)
}

func optionText(q domain.Question, index int) string {
	if index < 0 || index >= len(q.Options) {
		return ""
	}
	return q.Options[index]
}

func avatarURL(name string) string {
	return "https://api.dicebear.com/7.x/thumbs/svg?seed=" + url.QueryEscape(name)
}
