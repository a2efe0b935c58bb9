package http

import (
	"net/http"

	"github.com/gorilla/mux"
	"quiz-battle-service/internal/app"
)

// NewRouter mounts the REST and websocket surfaces under /v1.
func NewRouter(service *app.BattleService, auth *Authenticator) *mux.Router {
	r := mux.NewRouter()
	r.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	}).Methods(http.MethodGet)

	v1 := r.PathPrefix("/v1").Subrouter()
	v1.Use(auth.Middleware)

	battles := NewBattleHandler(service)
	v1.HandleFunc("/battles", battles.Create).Methods(http.MethodPost)
	v1.HandleFunc("/battles/open", battles.ListOpen).Methods(http.MethodGet)
	v1.HandleFunc("/battles/join", battles.JoinByCode).Methods(http.MethodPost)
	v1.HandleFunc("/battles/{id}", battles.Get).Methods(http.MethodGet)
	v1.HandleFunc("/battles/{id}/questions", battles.Questions).Methods(http.MethodGet)
	v1.HandleFunc("/battles/{id}/join", battles.Join).Methods(http.MethodPost)
	v1.HandleFunc("/battles/{id}/ready", battles.Ready).Methods(http.MethodPost)
	v1.HandleFunc("/battles/{id}/answers", battles.Answer).Methods(http.MethodPost)
	v1.HandleFunc("/battles/{id}/complete", battles.Complete).Methods(http.MethodPost)
	v1.HandleFunc("/battles/{id}/cancel", battles.Cancel).Methods(http.MethodPost)
	v1.HandleFunc("/battles/{id}/invite", battles.Invite).Methods(http.MethodPost)
	v1.HandleFunc("/battles/{id}/winner", battles.Winner).Methods(http.MethodGet)

	ws := NewWSHandler(service)
	v1.HandleFunc("/ws/battles/{id}", ws.ServeWS).Methods(http.MethodGet)

	return r
}
