package ws

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"

	"github.com/gorilla/websocket"

	"quiz-room-service/internal/app"
	"quiz-room-service/internal/domain"
)

// Handler upgrades connections and dispatches inbound room/game events to
// the services. All user-facing failures come back as a single error event
// on the originating connection; nothing is fatal to the process.
type Handler struct {
	hub      *Hub
	rooms    *app.RoomService
	games    *app.GameService
	upgrader websocket.Upgrader
}

func NewHandler(hub *Hub, rooms *app.RoomService, games *app.GameService) *Handler {
	return &Handler{
		hub:   hub,
		rooms: rooms,
		games: games,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
	}
}

type inbound struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

type userInfoPayload struct {
	UserID   string `json:"userId"`
	UserName string `json:"userName"`
}

type createRoomPayload struct {
	Phrase string        `json:"phrase"`
	Host   domain.Member `json:"host"`
}

type joinRoomPayload struct {
	Phrase string        `json:"phrase"`
	Member domain.Member `json:"member"`
}

type roomActionPayload struct {
	Phrase        string `json:"phrase"`
	ParticipantID string `json:"participantId"`
}

type submitAnswerPayload struct {
	Phrase         string `json:"phrase"`
	ParticipantID  string `json:"participantId"`
	AnswerIndex    int    `json:"answerIndex"`
	ClientTimeLeft int    `json:"clientTimeLeft"`
}

type phraseRef struct {
	Phrase string `json:"phrase"`
}

type errorPayload struct {
	Message string `json:"message"`
}

// ServeWS is the websocket endpoint.
func (h *Handler) ServeWS(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("ws upgrade failed: %v", err)
		return
	}

	client := newClient(conn)
	h.hub.register(client)
	log.Printf("ws %s: connected", client.ID)

	go client.writePump()

	defer func() {
		h.hub.unregister(client)
		conn.Close()
		log.Printf("ws %s: disconnected", client.ID)
	}()

	for {
		var msg inbound
		if err := conn.ReadJSON(&msg); err != nil {
			return
		}
		h.dispatch(r.Context(), client, msg)
	}
}

func (h *Handler) dispatch(ctx context.Context, client *Client, msg inbound) {
	switch msg.Type {
	case "setUserInfo":
		var p userInfoPayload
		if !h.decode(client, msg.Payload, &p) {
			return
		}
		client.UserID = p.UserID
		client.UserName = p.UserName

	case "createRoom":
		var p createRoomPayload
		if !h.decode(client, msg.Payload, &p) {
			return
		}
		client.UserID = p.Host.ID
		client.UserName = p.Host.Name
		if err := h.rooms.Create(ctx, p.Phrase, p.Host); err != nil {
			h.reportError(client, err)
			return
		}
		h.hub.Subscribe(client, p.Phrase)
		client.Emit(app.EventRoomCreated, phraseRef{Phrase: p.Phrase})
		h.rooms.Publish(ctx, p.Phrase)

	case "joinRoom":
		var p joinRoomPayload
		if !h.decode(client, msg.Payload, &p) {
			return
		}
		client.UserID = p.Member.ID
		client.UserName = p.Member.Name
		if err := h.rooms.Join(ctx, p.Phrase, p.Member); err != nil {
			h.reportError(client, err)
			return
		}
		h.hub.Subscribe(client, p.Phrase)
		client.Emit(app.EventRoomJoined, phraseRef{Phrase: p.Phrase})
		h.rooms.Publish(ctx, p.Phrase)

	case "leaveRoom":
		var p roomActionPayload
		if !h.decode(client, msg.Payload, &p) {
			return
		}
		// The service broadcasts roomDeleted/updateRoom while the leaver is
		// still subscribed, so unsubscribe only afterwards.
		if _, err := h.rooms.Leave(ctx, p.Phrase, p.ParticipantID); err != nil {
			h.reportError(client, err)
			return
		}
		h.hub.Unsubscribe(client, p.Phrase)
		client.Emit(app.EventRoomLeft, nil)

	case "startGame":
		var p phraseRef
		if !h.decode(client, msg.Payload, &p) {
			return
		}
		if err := h.games.Start(ctx, p.Phrase, client.UserID); err != nil {
			h.reportError(client, err)
			return
		}

	case "userReadyForGame":
		var p roomActionPayload
		if !h.decode(client, msg.Payload, &p) {
			return
		}
		// Readiness arrives on a fresh connection after the game-page
		// navigation; re-subscribe before anything is broadcast.
		h.hub.Subscribe(client, p.Phrase)
		status, err := h.games.MarkReady(ctx, p.Phrase, p.ParticipantID)
		if err != nil {
			h.reportGameError(client, p.Phrase, "ready", err)
			return
		}
		if status != nil {
			client.Emit(app.EventGameState, status)
		}

	case "submitAnswer":
		var p submitAnswerPayload
		if !h.decode(client, msg.Payload, &p) {
			return
		}
		if err := h.games.SubmitAnswer(ctx, p.Phrase, p.ParticipantID, p.AnswerIndex, p.ClientTimeLeft); err != nil {
			h.reportGameError(client, p.Phrase, "answer", err)
			return
		}

	case "getRoomInfo":
		var p roomActionPayload
		if !h.decode(client, msg.Payload, &p) {
			return
		}
		view, err := h.rooms.Snapshot(ctx, p.Phrase, p.ParticipantID)
		if err != nil {
			h.reportError(client, err)
			return
		}
		h.hub.Subscribe(client, p.Phrase)
		client.Emit(app.EventUpdateRoom, view)

	default:
		client.Emit(app.EventError, errorPayload{Message: "unsupported message type"})
	}
}

func (h *Handler) decode(client *Client, raw json.RawMessage, v any) bool {
	if err := json.Unmarshal(raw, v); err != nil {
		client.Emit(app.EventError, errorPayload{Message: "invalid payload"})
		return false
	}
	return true
}

func (h *Handler) reportError(client *Client, err error) {
	client.Emit(app.EventError, errorPayload{Message: err.Error()})
}

// reportGameError suppresses missing-state errors: an action referencing a
// game that no longer exists is a logged no-op, not a user-facing failure.
func (h *Handler) reportGameError(client *Client, phrase, op string, err error) {
	if errors.Is(err, domain.ErrGameStateMissing) {
		log.Printf("room %q: %s ignored: game state missing", phrase, op)
		return
	}
	h.reportError(client, err)
}
