package http

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"

	"quiz-battle-service/internal/domain"
)

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		log.Printf("encode response: %v", err)
	}
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}

// writeServiceError maps engine errors onto HTTP statuses.
func writeServiceError(w http.ResponseWriter, err error) {
	status := statusFor(err)
	if status == http.StatusInternalServerError {
		log.Printf("internal error: %v", err)
		writeError(w, status, "internal error")
		return
	}
	writeError(w, status, err.Error())
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, domain.ErrBattleNotFound), errors.Is(err, domain.ErrQuestionNotFound):
		return http.StatusNotFound
	case errors.Is(err, domain.ErrUserRequired):
		return http.StatusUnauthorized
	case errors.Is(err, domain.ErrNotParticipant), errors.Is(err, domain.ErrNotCreator):
		return http.StatusForbidden
	case errors.Is(err, domain.ErrAlreadyJoined),
		errors.Is(err, domain.ErrBattleFull),
		errors.Is(err, domain.ErrBattleNotWaiting),
		errors.Is(err, domain.ErrBattleNotActive),
		errors.Is(err, domain.ErrDuplicateAnswer),
		errors.Is(err, domain.ErrQuestionsRemaining),
		errors.Is(err, domain.ErrRoomCodeTaken):
		return http.StatusConflict
	case errors.Is(err, domain.ErrSubjectUnavailable),
		errors.Is(err, domain.ErrAnswerOutOfOrder),
		errors.Is(err, domain.ErrInvalidRoomCode):
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}
