package http

import (
	"encoding/json"
	"log"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
	"quiz-battle-service/internal/app"
	"quiz-battle-service/internal/domain"
)

const sendBuffer = 16

type WSHandler struct {
	service  *app.BattleService
	upgrader websocket.Upgrader
}

func NewWSHandler(service *app.BattleService) *WSHandler {
	return &WSHandler{
		service: service,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
	}
}

type inboundMessage struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

type outboundMessage[T any] struct {
	Type    string `json:"type"`
	Payload T      `json:"payload"`
}

type errorPayload struct {
	Message string `json:"message"`
}

// ServeWS streams a battle to one participant. Every event is followed by the
// snapshot it hints at, and the periodic reconcile pushes a snapshot on its own.
// Clients send ready, answer, complete and sync frames.
func (h *WSHandler) ServeWS(w http.ResponseWriter, r *http.Request) {
	battleID := mux.Vars(r)["id"]
	userID := UserID(r.Context())
	ctx := r.Context()

	send := make(chan outboundMessage[any], sendBuffer)
	closeSignals := make(chan struct{})
	writerDone := make(chan struct{})

	push := func(msg outboundMessage[any]) {
		select {
		case send <- msg:
		case <-closeSignals:
		case <-writerDone:
		}
	}

	sub, err := h.service.Subscribe(ctx, battleID,
		func(event domain.Event) {
			push(outboundMessage[any]{Type: "event", Payload: event})
		},
		func(snapshot domain.BattleSnapshot) {
			push(outboundMessage[any]{Type: "snapshot", Payload: snapshot})
		},
	)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("ws upgrade failed: %v", err)
		close(closeSignals)
		sub.Unsubscribe()
		return
	}
	defer conn.Close()

	go func() {
		defer close(writerDone)
		for msg := range send {
			if err := conn.WriteJSON(msg); err != nil {
				log.Printf("ws write error: %v", err)
				conn.Close()
				return
			}
		}
	}()

	for {
		var inbound inboundMessage
		if err := conn.ReadJSON(&inbound); err != nil {
			break
		}
		push(h.handle(r, battleID, userID, inbound))
	}

	close(closeSignals)
	sub.Unsubscribe()
	close(send)
	<-writerDone
}

func (h *WSHandler) handle(r *http.Request, battleID, userID string, inbound inboundMessage) outboundMessage[any] {
	ctx := r.Context()
	switch inbound.Type {
	case "ready":
		var payload readyRequest
		if len(inbound.Payload) > 0 {
			if err := json.Unmarshal(inbound.Payload, &payload); err != nil {
				return errorMessage("invalid ready payload")
			}
		}
		ready := true
		if payload.Ready != nil {
			ready = *payload.Ready
		}
		battle, err := h.service.SetReady(ctx, battleID, userID, ready)
		if err != nil {
			return errorMessage(err.Error())
		}
		return outboundMessage[any]{Type: "battle", Payload: battle}
	case "answer":
		var payload answerRequest
		if err := json.Unmarshal(inbound.Payload, &payload); err != nil {
			return errorMessage("invalid answer payload")
		}
		result, err := h.service.SubmitAnswer(ctx, battleID, userID, payload.QuestionOrderIndex, payload.SelectedOption, payload.TimeSpentMs)
		if err != nil {
			return errorMessage(err.Error())
		}
		return outboundMessage[any]{Type: "answerResult", Payload: result}
	case "complete":
		result, err := h.service.CompleteBattle(ctx, battleID, userID)
		if err != nil {
			return errorMessage(err.Error())
		}
		return outboundMessage[any]{Type: "completion", Payload: result}
	case "sync":
		snapshot, err := h.service.Snapshot(ctx, battleID)
		if err != nil {
			return errorMessage(err.Error())
		}
		return outboundMessage[any]{Type: "snapshot", Payload: snapshot}
	default:
		return errorMessage("unsupported message type")
	}
}

func errorMessage(message string) outboundMessage[any] {
	return outboundMessage[any]{Type: "error", Payload: errorPayload{Message: message}}
}
