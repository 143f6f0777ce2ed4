package app_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"quiz-room-service/internal/app"
	"quiz-room-service/internal/domain"
	"quiz-room-service/internal/infra/memory"
)

// fastSettings keeps the real timer machinery but collapses the delays so
// tests finish quickly. The answer window stays wide enough that the
// deadline cannot race the submissions under test.
func fastSettings() app.Settings {
	return app.Settings{
		MaxMembers:      6,
		PointsPerAnswer: 10,
		AnswerSeconds:   30,
		GraceSeconds:    0,
		ReadyDelay:      10 * time.Millisecond,
		ResultsDelay:    20 * time.Millisecond,
		TickInterval:    10 * time.Millisecond,
	}
}

type gameFixture struct {
	rooms  *app.RoomService
	games  *app.GameService
	store  *memory.RoomStore
	bus    *recordingBus
	timers *app.TimerTable
}

func newGameFixture(t *testing.T, set app.Settings, questions []domain.Question) *gameFixture {
	t.Helper()
	store := memory.NewRoomStore()
	bus := &recordingBus{}
	timers := app.NewTimerTable()
	bank := app.NewQuestionBank()
	if err := bank.Load(context.Background(), memory.NewStaticQuestionSource(questions)); err != nil {
		t.Fatalf("load bank: %v", err)
	}
	return &gameFixture{
		rooms:  app.NewRoomService(store, bus, timers, set.MaxMembers),
		games:  app.NewGameService(store, bus, bank, timers, set),
		store:  store,
		bus:    bus,
		timers: timers,
	}
}

func (f *gameFixture) createPair(t *testing.T, phrase string) {
	t.Helper()
	ctx := context.Background()
	if err := f.rooms.Create(ctx, phrase, domain.Member{ID: "u1", Name: "Alice"}); err != nil {
		t.Fatalf("create: %v", err)
	}
	if err := f.rooms.Join(ctx, phrase, domain.Member{ID: "u2", Name: "Bob"}); err != nil {
		t.Fatalf("join: %v", err)
	}
}

func twoQuestions() []domain.Question {
	return []domain.Question{
		{
			ID:            1,
			Text:          "What is 2 + 2?",
			Options:       []string{"3", "4", "5", "6"},
			CorrectAnswer: 1,
			Level:         "easy",
			Explanation:   "Basic arithmetic.",
		},
		{
			ID:            2,
			Text:          "Capital of France?",
			Options:       []string{"Lyon", "Nice", "Paris", "Lille"},
			CorrectAnswer: 2,
			Level:         "easy",
			Explanation:   "Paris has been the capital since 987.",
		},
	}
}

func TestStartRequiresHostAndQuorum(t *testing.T) {
	ctx := context.Background()
	f := newGameFixture(t, fastSettings(), twoQuestions())
	f.createPair(t, "ABC123")

	if err := f.games.Start(ctx, "ABC123", "u2"); !errors.Is(err, domain.ErrNotHost) {
		t.Fatalf("expected ErrNotHost, got %v", err)
	}
	room, _ := f.store.Room(ctx, "ABC123")
	if room.Status != domain.StatusWaiting {
		t.Fatalf("rejected start mutated status to %s", room.Status)
	}
	if f.bus.count("ABC123", app.EventGameStarted) != 0 {
		t.Fatalf("rejected start must not broadcast gameStarted")
	}

	_ = f.rooms.Create(ctx, "SOLO", domain.Member{ID: "h", Name: "Solo"})
	if err := f.games.Start(ctx, "SOLO", "h"); !errors.Is(err, domain.ErrNotEnoughMembers) {
		t.Fatalf("expected ErrNotEnoughMembers, got %v", err)
	}

	if err := f.games.Start(ctx, "ABC123", "u1"); err != nil {
		t.Fatalf("start: %v", err)
	}
	room, _ = f.store.Room(ctx, "ABC123")
	if room.Status != domain.StatusPlaying {
		t.Fatalf("expected playing status, got %s", room.Status)
	}
	if f.bus.count("ABC123", app.EventGameStarted) != 1 {
		t.Fatalf("expected gameStarted broadcast")
	}
	state, err := f.store.GameState(ctx, "ABC123")
	if err != nil {
		t.Fatalf("game state: %v", err)
	}
	if state.CurrentQuestion != 0 || state.TimeLeft != fastSettings().AnswerSeconds {
		t.Fatalf("unexpected initial state: %+v", state)
	}
}

func TestReadyGateRevealsFirstQuestion(t *testing.T) {
	ctx := context.Background()
	f := newGameFixture(t, fastSettings(), twoQuestions())
	f.createPair(t, "ABC123")
	if err := f.games.Start(ctx, "ABC123", "u1"); err != nil {
		t.Fatalf("start: %v", err)
	}

	status, err := f.games.MarkReady(ctx, "ABC123", "u1")
	if err != nil {
		t.Fatalf("ready u1: %v", err)
	}
	if status == nil || status.AllUsersReady {
		t.Fatalf("gate must stay closed with one of two ready")
	}
	if len(status.WaitingForUsers) != 1 || status.WaitingForUsers[0] != "Alice" {
		t.Fatalf("unexpected ready names: %+v", status.WaitingForUsers)
	}

	// Readiness is idempotent; the gate stays closed.
	if status, err = f.games.MarkReady(ctx, "ABC123", "u1"); err != nil || status == nil {
		t.Fatalf("repeat ready should not open the gate (status=%v err=%v)", status, err)
	}

	status, err = f.games.MarkReady(ctx, "ABC123", "u2")
	if err != nil {
		t.Fatalf("ready u2: %v", err)
	}
	if status != nil {
		t.Fatalf("gate should open once everyone is ready")
	}

	waitForEvent(t, f.bus, "ABC123", app.EventGameState, func(p any) bool {
		view, ok := p.(app.QuestionView)
		return ok && view.GamePhase == domain.PhaseShowQuestion && view.QuestionNumber == 1
	})
	if !f.timers.Active("ABC123") {
		t.Fatalf("question ticker should be armed after reveal")
	}
}

func TestAllAnsweredScoresImmediately(t *testing.T) {
	ctx := context.Background()
	f := newGameFixture(t, fastSettings(), twoQuestions())
	f.createPair(t, "ABC123")
	startAndReveal(t, f, "ABC123")

	if err := f.games.SubmitAnswer(ctx, "ABC123", "u1", 1, 12); err != nil {
		t.Fatalf("submit u1: %v", err)
	}
	if err := f.games.SubmitAnswer(ctx, "ABC123", "u2", 0, 9); err != nil {
		t.Fatalf("submit u2: %v", err)
	}

	// Scoring fires on full participation, well before the 30s deadline.
	waitForEvent(t, f.bus, "ABC123", app.EventGameState, func(p any) bool {
		view, ok := p.(app.ResultsView)
		return ok && view.GamePhase == domain.PhaseResults && view.QuestionNumber == 1
	})
	waitUntilCond(t, func() bool { return f.bus.count("ABC123", app.EventScoresUpdated) >= 1 })

	state, err := f.store.GameState(ctx, "ABC123")
	if err != nil {
		t.Fatalf("game state: %v", err)
	}
	if state.Scores["u1"] != 10 || state.Scores["u2"] != 0 {
		t.Fatalf("unexpected scores: %+v", state.Scores)
	}

	board, err := f.store.Leaderboard(ctx, "ABC123", 1)
	if err != nil {
		t.Fatalf("leaderboard: %v", err)
	}
	if len(board) != 2 {
		t.Fatalf("expected one entry per member, got %d", len(board))
	}
	if board[0].Entry.ID != "u1" || board[0].Score != 10 {
		t.Fatalf("expected u1 leading with 10, got %+v", board[0])
	}
	if board[0].Entry.ResponseTime != 12 {
		t.Fatalf("expected recorded time left in entry, got %d", board[0].Entry.ResponseTime)
	}

	// The results delay chains into question 2.
	waitForEvent(t, f.bus, "ABC123", app.EventGameState, func(p any) bool {
		view, ok := p.(app.QuestionView)
		return ok && view.QuestionNumber == 2
	})
}

func TestResubmissionOverwritesWithoutDoubleScore(t *testing.T) {
	ctx := context.Background()
	f := newGameFixture(t, fastSettings(), twoQuestions())
	f.createPair(t, "ABC123")
	startAndReveal(t, f, "ABC123")

	if err := f.games.SubmitAnswer(ctx, "ABC123", "u1", 0, 14); err != nil {
		t.Fatalf("submit: %v", err)
	}
	// Changing the answer must not count as a second participant.
	if err := f.games.SubmitAnswer(ctx, "ABC123", "u1", 1, 11); err != nil {
		t.Fatalf("resubmit: %v", err)
	}
	if f.bus.count("ABC123", app.EventScoresUpdated) != 0 {
		t.Fatalf("scoring fired before full participation")
	}

	if err := f.games.SubmitAnswer(ctx, "ABC123", "u2", 1, 7); err != nil {
		t.Fatalf("submit u2: %v", err)
	}
	waitUntilCond(t, func() bool { return f.bus.count("ABC123", app.EventScoresUpdated) >= 1 })

	state, _ := f.store.GameState(ctx, "ABC123")
	if state.Scores["u1"] != 10 || state.Scores["u2"] != 10 {
		t.Fatalf("expected both to score exactly once: %+v", state.Scores)
	}
}

func TestDeadlineScoresPartialAnswers(t *testing.T) {
	ctx := context.Background()
	set := fastSettings()
	set.AnswerSeconds = 1
	f := newGameFixture(t, set, twoQuestions()[:1])
	f.createPair(t, "ABC123")
	startAndReveal(t, f, "ABC123")

	// Only one of two answers; the deadline closes the question.
	if err := f.games.SubmitAnswer(ctx, "ABC123", "u1", 1, 1); err != nil {
		t.Fatalf("submit: %v", err)
	}

	waitUntilCond(t, func() bool { return f.bus.count("ABC123", app.EventScoresUpdated) >= 1 })
	waitUntilCond(t, func() bool { return f.bus.count("ABC123", app.EventTimeUpdate) >= 1 })

	// With a single question the chain ends the game.
	waitUntilCond(t, func() bool { return f.bus.count("ABC123", app.EventGameEnded) >= 1 })

	payload, _ := f.bus.last("ABC123", app.EventGameEnded)
	scores, ok := payload.(map[string]int)
	if !ok {
		t.Fatalf("unexpected gameEnded payload: %T", payload)
	}
	if scores["u1"] != 10 {
		t.Fatalf("expected u1 to score 10, got %+v", scores)
	}
	if _, answered := scores["u2"]; answered {
		t.Fatalf("non-answerer must stay absent from the score map")
	}

	room, _ := f.store.Room(ctx, "ABC123")
	if room.Status != domain.StatusWaiting {
		t.Fatalf("room should return to waiting, got %s", room.Status)
	}
	if _, err := f.store.GameState(ctx, "ABC123"); !errors.Is(err, domain.ErrGameStateMissing) {
		t.Fatalf("game state should be removed, got %v", err)
	}
	board, _ := f.store.Leaderboard(ctx, "ABC123", 1)
	if len(board) != 2 {
		t.Fatalf("leaderboard still carries every member, got %d entries", len(board))
	}
	for _, e := range board {
		if e.Entry.ID != "u1" && e.Entry.ID != "u2" {
			t.Fatalf("leaderboard references unknown member %q", e.Entry.ID)
		}
		if e.Entry.ID == "u2" && (e.Score != 0 || e.Entry.ResponseTime != 0) {
			t.Fatalf("non-answerer entry should be zeroed: %+v", e)
		}
	}
}

func TestLeaveCancelsLiveTimer(t *testing.T) {
	ctx := context.Background()
	f := newGameFixture(t, fastSettings(), twoQuestions())
	f.createPair(t, "ABC123")
	startAndReveal(t, f, "ABC123")

	if !f.timers.Active("ABC123") {
		t.Fatalf("precondition: ticker should be live")
	}
	if _, err := f.rooms.Leave(ctx, "ABC123", "u2"); err != nil {
		t.Fatalf("leave: %v", err)
	}
	if f.timers.Active("ABC123") {
		t.Fatalf("leaving must cancel the room timer")
	}
}

func TestGameActionsWithoutStateAreRejected(t *testing.T) {
	ctx := context.Background()
	f := newGameFixture(t, fastSettings(), twoQuestions())
	f.createPair(t, "ABC123")

	if err := f.games.SubmitAnswer(ctx, "ABC123", "u1", 0, 5); !errors.Is(err, domain.ErrGameStateMissing) {
		t.Fatalf("expected ErrGameStateMissing, got %v", err)
	}
	if _, err := f.games.MarkReady(ctx, "ABC123", "u1"); !errors.Is(err, domain.ErrGameStateMissing) {
		t.Fatalf("expected ErrGameStateMissing, got %v", err)
	}
}

// startAndReveal runs the ready gate for both members and waits for the
// first question broadcast.
func startAndReveal(t *testing.T, f *gameFixture, phrase string) {
	t.Helper()
	ctx := context.Background()
	if err := f.games.Start(ctx, phrase, "u1"); err != nil {
		t.Fatalf("start: %v", err)
	}
	if _, err := f.games.MarkReady(ctx, phrase, "u1"); err != nil {
		t.Fatalf("ready u1: %v", err)
	}
	if _, err := f.games.MarkReady(ctx, phrase, "u2"); err != nil {
		t.Fatalf("ready u2: %v", err)
	}
	waitForEvent(t, f.bus, phrase, app.EventGameState, func(p any) bool {
		view, ok := p.(app.QuestionView)
		return ok && view.GamePhase == domain.PhaseShowQuestion
	})
}

func waitForEvent(t *testing.T, bus *recordingBus, room, event string, match func(any) bool) {
	t.Helper()
	waitUntilCond(t, func() bool {
		bus.mu.Lock()
		defer bus.mu.Unlock()
		for _, e := range bus.events {
			if e.room == room && e.event == event && match(e.payload) {
				return true
			}
		}
		return false
	})
}

func waitUntilCond(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("condition not reached in time")
}
