package http

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"
	"quiz-battle-service/internal/app"
)

// BattleHandler exposes the battle engine over REST.
type BattleHandler struct {
	service *app.BattleService
}

func NewBattleHandler(service *app.BattleService) *BattleHandler {
	return &BattleHandler{service: service}
}

type createBattleRequest struct {
	SubjectID string `json:"subjectId"`
	IsPrivate bool   `json:"isPrivate"`
}

type joinByCodeRequest struct {
	RoomCode string `json:"roomCode"`
}

type readyRequest struct {
	Ready *bool `json:"ready"`
}

type answerRequest struct {
	QuestionOrderIndex int   `json:"questionOrderIndex"`
	SelectedOption     int   `json:"selectedOption"`
	TimeSpentMs        int64 `json:"timeSpentMs"`
}

type inviteRequest struct {
	FriendID string `json:"friendId"`
}

type winnerResponse struct {
	WinnerID string `json:"winnerId"`
}

func decodeJSON(r *http.Request, v interface{}) bool {
	if r.Body == nil || r.ContentLength == 0 {
		return true
	}
	return json.NewDecoder(r.Body).Decode(v) == nil
}

func (h *BattleHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req createBattleRequest
	if !decodeJSON(r, &req) {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	battle, err := h.service.CreateBattle(r.Context(), UserID(r.Context()), req.SubjectID, req.IsPrivate)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, battle)
}

func (h *BattleHandler) ListOpen(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			writeError(w, http.StatusBadRequest, "invalid limit")
			return
		}
		limit = n
	}
	battles, err := h.service.ListOpenBattles(r.Context(), limit)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, battles)
}

func (h *BattleHandler) Get(w http.ResponseWriter, r *http.Request) {
	snapshot, err := h.service.Snapshot(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, snapshot)
}

func (h *BattleHandler) Questions(w http.ResponseWriter, r *http.Request) {
	questions, err := h.service.Questions(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, questions)
}

func (h *BattleHandler) Join(w http.ResponseWriter, r *http.Request) {
	battle, err := h.service.JoinBattle(r.Context(), mux.Vars(r)["id"], UserID(r.Context()))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, battle)
}

// JoinByCode always answers 200 for a well-formed code; the outcome carries
// notFound, full and friends.
func (h *BattleHandler) JoinByCode(w http.ResponseWriter, r *http.Request) {
	var req joinByCodeRequest
	if !decodeJSON(r, &req) {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	outcome, err := h.service.JoinByRoomCode(r.Context(), req.RoomCode, UserID(r.Context()))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, outcome)
}

func (h *BattleHandler) Ready(w http.ResponseWriter, r *http.Request) {
	var req readyRequest
	if !decodeJSON(r, &req) {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	ready := true
	if req.Ready != nil {
		ready = *req.Ready
	}
	battle, err := h.service.SetReady(r.Context(), mux.Vars(r)["id"], UserID(r.Context()), ready)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, battle)
}

func (h *BattleHandler) Answer(w http.ResponseWriter, r *http.Request) {
	var req answerRequest
	if r.ContentLength == 0 || !decodeJSON(r, &req) {
		writeError(w, http.StatusBadRequest, "invalid answer payload")
		return
	}
	result, err := h.service.SubmitAnswer(r.Context(), mux.Vars(r)["id"], UserID(r.Context()), req.QuestionOrderIndex, req.SelectedOption, req.TimeSpentMs)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (h *BattleHandler) Complete(w http.ResponseWriter, r *http.Request) {
	result, err := h.service.CompleteBattle(r.Context(), mux.Vars(r)["id"], UserID(r.Context()))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (h *BattleHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	battle, err := h.service.CancelBattle(r.Context(), mux.Vars(r)["id"], UserID(r.Context()))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, battle)
}

func (h *BattleHandler) Invite(w http.ResponseWriter, r *http.Request) {
	var req inviteRequest
	if !decodeJSON(r, &req) || req.FriendID == "" {
		writeError(w, http.StatusBadRequest, "friendId required")
		return
	}
	if err := h.service.InviteFriend(r.Context(), mux.Vars(r)["id"], UserID(r.Context()), req.FriendID); err != nil {
		writeServiceError(w, err)
		return
	}
	w.WriteHeader(http.StatusAccepted)
}

func (h *BattleHandler) Winner(w http.ResponseWriter, r *http.Request) {
	winner, err := h.service.DetermineWinner(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, winnerResponse{WinnerID: winner})
}
