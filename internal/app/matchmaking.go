package app

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"

	"quiz-battle-service/internal/domain"
)

// CreateBattle opens a waiting battle with a fresh room code. The creator is
// auto-joined as ready and the question set is frozen in the same store write,
// so no second participant can ever see a battle without its questions.
func (s *BattleService) CreateBattle(ctx context.Context, userID, subjectID string, isPrivate bool) (domain.Battle, error) {
	if strings.TrimSpace(userID) == "" {
		return domain.Battle{}, domain.ErrUserRequired
	}

	battleID := s.newID()
	questions, err := s.sequencer.Freeze(ctx, battleID, subjectID, s.settings.QuestionCount)
	if err != nil {
		return domain.Battle{}, err
	}

	now := s.now()
	creator := domain.Participant{
		BattleID: battleID,
		UserID:   userID,
		Ready:    true,
		JoinedAt: now,
	}

	for attempt := 0; attempt < roomCodeAttempts; attempt++ {
		code, err := s.roomCode()
		if err != nil {
			return domain.Battle{}, fmt.Errorf("generate room code: %w", err)
		}
		battle := domain.Battle{
			ID:               battleID,
			SubjectID:        subjectID,
			Status:           domain.StatusWaiting,
			IsPrivate:        isPrivate,
			RoomCode:         code,
			CreatedBy:        userID,
			ParticipantCount: 1,
			CreatedAt:        now,
		}
		err = s.store.CreateBattle(ctx, battle, creator, questions)
		if errors.Is(err, domain.ErrRoomCodeTaken) {
			continue
		}
		if err != nil {
			return domain.Battle{}, fmt.Errorf("create battle: %w", err)
		}
		log.Printf("battle %s created by %s (room %s, subject %q)", battleID, userID, code, subjectID)
		return battle, nil
	}
	return domain.Battle{}, fmt.Errorf("failed to generate unique room code")
}

// ListOpenBattles returns public waiting battles, newest first.
func (s *BattleService) ListOpenBattles(ctx context.Context, limit int) ([]domain.Battle, error) {
	if limit <= 0 || limit > s.settings.OpenListLimit {
		limit = s.settings.OpenListLimit
	}
	return s.store.ListOpenBattles(ctx, limit)
}

// JoinBattle adds userID to the battle. Inserting the participant and the
// waiting -> active check happen in one store operation.
func (s *BattleService) JoinBattle(ctx context.Context, battleID, userID string) (domain.Battle, error) {
	if strings.TrimSpace(userID) == "" {
		return domain.Battle{}, domain.ErrUserRequired
	}
	now := s.now()
	activated, err := s.store.AddParticipant(ctx, domain.Participant{
		BattleID: battleID,
		UserID:   userID,
		JoinedAt: now,
	}, !s.settings.RequireReady, now)
	if err != nil {
		return domain.Battle{}, err
	}

	s.publish(ctx, domain.EventParticipantJoined, battleID, userID)
	if activated {
		log.Printf("battle %s active", battleID)
		s.publish(ctx, domain.EventBattleActive, battleID, "")
	}
	return s.store.GetBattle(ctx, battleID)
}

// JoinByRoomCode joins the waiting battle that owns roomCode. All expected
// outcomes come back as a JoinResult; only infrastructure failures are errors.
func (s *BattleService) JoinByRoomCode(ctx context.Context, roomCode, userID string) (domain.JoinOutcome, error) {
	if strings.TrimSpace(userID) == "" {
		return domain.JoinOutcome{}, domain.ErrUserRequired
	}
	code, err := NormalizeRoomCode(roomCode)
	if err != nil {
		return domain.JoinOutcome{Result: domain.JoinNotFound}, nil
	}

	battle, err := s.store.FindWaitingByRoomCode(ctx, code)
	if errors.Is(err, domain.ErrBattleNotFound) {
		return domain.JoinOutcome{Result: domain.JoinNotFound}, nil
	}
	if err != nil {
		return domain.JoinOutcome{}, err
	}
	if battle.CreatedBy == userID {
		return domain.JoinOutcome{Result: domain.JoinIsOwnBattle, Battle: &battle}, nil
	}
	if battle.ParticipantCount >= domain.MaxParticipants {
		return domain.JoinOutcome{Result: domain.JoinFull, Battle: &battle}, nil
	}

	joined, err := s.JoinBattle(ctx, battle.ID, userID)
	switch {
	case err == nil:
		return domain.JoinOutcome{Result: domain.JoinSuccess, Battle: &joined}, nil
	case errors.Is(err, domain.ErrAlreadyJoined):
		return domain.JoinOutcome{Result: domain.JoinAlreadyJoined, Battle: &battle}, nil
	case errors.Is(err, domain.ErrBattleFull):
		return domain.JoinOutcome{Result: domain.JoinFull, Battle: &battle}, nil
	case errors.Is(err, domain.ErrBattleNotWaiting), errors.Is(err, domain.ErrBattleNotFound):
		return domain.JoinOutcome{Result: domain.JoinNotFound}, nil
	default:
		return domain.JoinOutcome{}, err
	}
}

// InviteFriend tells friendID about a waiting battle. The notification is sent
// in the background and its failure never affects battle state.
func (s *BattleService) InviteFriend(ctx context.Context, battleID, inviterID, friendID string) error {
	if strings.TrimSpace(friendID) == "" {
		return domain.ErrUserRequired
	}
	battle, err := s.store.GetBattle(ctx, battleID)
	if err != nil {
		return err
	}
	if battle.Status != domain.StatusWaiting {
		return domain.ErrBattleNotWaiting
	}
	if !s.isParticipant(ctx, battleID, inviterID) {
		return domain.ErrNotParticipant
	}
	if s.notifier == nil {
		return nil
	}

	invite := domain.Invite{
		BattleID:  battle.ID,
		RoomCode:  battle.RoomCode,
		SubjectID: battle.SubjectID,
		InviterID: inviterID,
		FriendID:  friendID,
		SentAt:    s.now(),
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), notifyTimeout)
		defer cancel()
		if err := s.notifier.NotifyInvite(ctx, invite); err != nil {
			log.Printf("invite %s to battle %s: %v", friendID, battleID, err)
		}
	}()
	return nil
}

func (s *BattleService) isParticipant(ctx context.Context, battleID, userID string) bool {
	participants, err := s.store.Participants(ctx, battleID)
	if err != nil {
		return false
	}
	_, ok := findParticipant(participants, userID)
	return ok
}
