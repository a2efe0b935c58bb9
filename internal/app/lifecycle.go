package app

import (
	"context"
	"log"

	"quiz-battle-service/internal/domain"
)

// SetReady records a participant's ready flag. When both participants are
// ready the battle moves to active; a battle that is already active is left
// alone, so the ready path and the join path can race safely.
func (s *BattleService) SetReady(ctx context.Context, battleID, userID string, ready bool) (domain.Battle, error) {
	activated, err := s.store.SetReady(ctx, battleID, userID, ready, s.now())
	if err != nil {
		return domain.Battle{}, err
	}
	s.publish(ctx, domain.EventReadyChanged, battleID, userID)
	if activated {
		log.Printf("battle %s active (all ready)", battleID)
		s.publish(ctx, domain.EventBattleActive, battleID, "")
	}
	return s.store.GetBattle(ctx, battleID)
}

// CompleteBattle is called by a client whose question loop reached the end.
// The first caller moves the battle to completed and fixes the winner; every
// later caller gets the stored outcome back and nothing is recomputed.
func (s *BattleService) CompleteBattle(ctx context.Context, battleID, userID string) (domain.CompletionResult, error) {
	battle, err := s.store.GetBattle(ctx, battleID)
	if err != nil {
		return domain.CompletionResult{}, err
	}
	if battle.Status == domain.StatusCompleted {
		return domain.CompletionResult{Battle: battle, WinnerID: battle.WinnerID}, nil
	}
	if battle.Status != domain.StatusActive {
		return domain.CompletionResult{}, domain.ErrBattleNotActive
	}

	participants, err := s.store.Participants(ctx, battleID)
	if err != nil {
		return domain.CompletionResult{}, err
	}
	questions, err := s.store.Questions(ctx, battleID)
	if err != nil {
		return domain.CompletionResult{}, err
	}
	caller, ok := findParticipant(participants, userID)
	if !ok {
		return domain.CompletionResult{}, domain.ErrNotParticipant
	}
	if caller.AnsweredCount < len(questions) {
		return domain.CompletionResult{}, domain.ErrQuestionsRemaining
	}

	completed, transitioned, err := s.store.CompleteBattle(ctx, battleID, s.now(), DetermineWinner)
	if err != nil {
		return domain.CompletionResult{}, err
	}
	if transitioned {
		log.Printf("battle %s completed, winner %s", battleID, completed.WinnerID)
		s.publish(ctx, domain.EventBattleCompleted, battleID, completed.WinnerID)
	}
	return domain.CompletionResult{
		Battle:       completed,
		WinnerID:     completed.WinnerID,
		Transitioned: transitioned,
	}, nil
}

// CancelBattle lets the creator abandon a battle that has not started.
func (s *BattleService) CancelBattle(ctx context.Context, battleID, userID string) (domain.Battle, error) {
	battle, err := s.store.GetBattle(ctx, battleID)
	if err != nil {
		return domain.Battle{}, err
	}
	if battle.CreatedBy != userID {
		return domain.Battle{}, domain.ErrNotCreator
	}
	cancelled, transitioned, err := s.store.CancelBattle(ctx, battleID, s.now())
	if err != nil {
		return domain.Battle{}, err
	}
	if transitioned {
		log.Printf("battle %s cancelled by %s", battleID, userID)
		s.publish(ctx, domain.EventBattleCancelled, battleID, userID)
	}
	return cancelled, nil
}

func findParticipant(participants []domain.Participant, userID string) (domain.Participant, bool) {
	for _, p := range participants {
		if p.UserID == userID {
			return p, true
		}
	}
	return domain.Participant{}, false
}
