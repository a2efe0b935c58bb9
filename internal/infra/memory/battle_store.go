package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"quiz-battle-service/internal/app"
	"quiz-battle-service/internal/domain"
)

// BattleStore is an in-memory implementation of app.BattleStore. A single
// mutex makes every guarded write atomic.
type BattleStore struct {
	mu           sync.RWMutex
	battles      map[string]*domain.Battle
	participants map[string][]*domain.Participant
	questions    map[string][]domain.QuestionAssignment
}

func NewBattleStore() *BattleStore {
	return &BattleStore{
		battles:      make(map[string]*domain.Battle),
		participants: make(map[string][]*domain.Participant),
		questions:    make(map[string][]domain.QuestionAssignment),
	}
}

func (s *BattleStore) CreateBattle(_ context.Context, battle domain.Battle, creator domain.Participant, questions []domain.QuestionAssignment) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, existing := range s.battles {
		if existing.Status == domain.StatusWaiting && existing.RoomCode == battle.RoomCode {
			return domain.ErrRoomCodeTaken
		}
	}
	stored := battle
	stored.ParticipantCount = 1
	s.battles[battle.ID] = &stored
	p := creator
	s.participants[battle.ID] = []*domain.Participant{&p}
	s.questions[battle.ID] = append([]domain.QuestionAssignment(nil), questions...)
	return nil
}

func (s *BattleStore) GetBattle(_ context.Context, battleID string) (domain.Battle, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	b, ok := s.battles[battleID]
	if !ok {
		return domain.Battle{}, domain.ErrBattleNotFound
	}
	return copyBattle(b), nil
}

func (s *BattleStore) FindWaitingByRoomCode(_ context.Context, roomCode string) (domain.Battle, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, b := range s.battles {
		if b.Status == domain.StatusWaiting && b.RoomCode == roomCode {
			return copyBattle(b), nil
		}
	}
	return domain.Battle{}, domain.ErrBattleNotFound
}

func (s *BattleStore) ListOpenBattles(_ context.Context, limit int) ([]domain.Battle, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]domain.Battle, 0)
	for _, b := range s.battles {
		if b.Status == domain.StatusWaiting && !b.IsPrivate {
			out = append(out, copyBattle(b))
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *BattleStore) Participants(_ context.Context, battleID string) ([]domain.Participant, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if _, ok := s.battles[battleID]; !ok {
		return nil, domain.ErrBattleNotFound
	}
	out := make([]domain.Participant, 0, len(s.participants[battleID]))
	for _, p := range s.participants[battleID] {
		out = append(out, *p)
	}
	return out, nil
}

func (s *BattleStore) Questions(_ context.Context, battleID string) ([]domain.QuestionAssignment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if _, ok := s.battles[battleID]; !ok {
		return nil, domain.ErrBattleNotFound
	}
	return append([]domain.QuestionAssignment(nil), s.questions[battleID]...), nil
}

func (s *BattleStore) AddParticipant(_ context.Context, participant domain.Participant, activate bool, now time.Time) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	b, ok := s.battles[participant.BattleID]
	if !ok {
		return false, domain.ErrBattleNotFound
	}
	if s.findLocked(participant.BattleID, participant.UserID) != nil {
		return false, domain.ErrAlreadyJoined
	}
	if b.ParticipantCount >= domain.MaxParticipants {
		return false, domain.ErrBattleFull
	}
	if b.Status != domain.StatusWaiting {
		return false, domain.ErrBattleNotWaiting
	}

	p := participant
	s.participants[b.ID] = append(s.participants[b.ID], &p)
	b.ParticipantCount++

	if activate && b.ParticipantCount == domain.MaxParticipants {
		return s.activateLocked(b, now), nil
	}
	return false, nil
}

func (s *BattleStore) SetReady(_ context.Context, battleID, userID string, ready bool, now time.Time) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	b, ok := s.battles[battleID]
	if !ok {
		return false, domain.ErrBattleNotFound
	}
	p := s.findLocked(battleID, userID)
	if p == nil {
		return false, domain.ErrNotParticipant
	}
	if b.Status != domain.StatusWaiting {
		return false, nil
	}
	p.Ready = ready

	if b.ParticipantCount < domain.MaxParticipants {
		return false, nil
	}
	for _, other := range s.participants[battleID] {
		if !other.Ready {
			return false, nil
		}
	}
	return s.activateLocked(b, now), nil
}

func (s *BattleStore) ApplyAnswer(_ context.Context, answer domain.AnswerEvent) (domain.Participant, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	b, ok := s.battles[answer.BattleID]
	if !ok {
		return domain.Participant{}, domain.ErrBattleNotFound
	}
	p := s.findLocked(answer.BattleID, answer.UserID)
	if p == nil {
		return domain.Participant{}, domain.ErrNotParticipant
	}
	if p.AnsweredCount > answer.QuestionOrderIndex {
		return *p, domain.ErrDuplicateAnswer
	}
	if b.Status != domain.StatusActive {
		return *p, domain.ErrBattleNotActive
	}
	if p.AnsweredCount < answer.QuestionOrderIndex {
		return *p, domain.ErrAnswerOutOfOrder
	}

	p.Score += answer.PointsAwarded
	if answer.IsCorrect {
		p.CorrectCount++
	}
	p.AnsweredCount++
	p.TotalTimeMs += answer.TimeSpentMs
	return *p, nil
}

func (s *BattleStore) CompleteBattle(_ context.Context, battleID string, now time.Time, pick app.WinnerFunc) (domain.Battle, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	b, ok := s.battles[battleID]
	if !ok {
		return domain.Battle{}, false, domain.ErrBattleNotFound
	}
	if b.Status == domain.StatusCompleted {
		return copyBattle(b), false, nil
	}
	if b.Status != domain.StatusActive {
		return domain.Battle{}, false, domain.ErrBattleNotActive
	}

	participants := make([]domain.Participant, 0, len(s.participants[battleID]))
	for _, p := range s.participants[battleID] {
		participants = append(participants, *p)
	}
	completedAt := now
	b.Status = domain.StatusCompleted
	b.WinnerID = pick(participants)
	b.CompletedAt = &completedAt
	return copyBattle(b), true, nil
}

func (s *BattleStore) CancelBattle(_ context.Context, battleID string, _ time.Time) (domain.Battle, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	b, ok := s.battles[battleID]
	if !ok {
		return domain.Battle{}, false, domain.ErrBattleNotFound
	}
	if b.Status == domain.StatusCancelled {
		return copyBattle(b), false, nil
	}
	if b.Status != domain.StatusWaiting {
		return domain.Battle{}, false, domain.ErrBattleNotWaiting
	}
	b.Status = domain.StatusCancelled
	return copyBattle(b), true, nil
}

func (s *BattleStore) activateLocked(b *domain.Battle, now time.Time) bool {
	if b.Status != domain.StatusWaiting {
		return false
	}
	startedAt := now
	b.Status = domain.StatusActive
	b.StartedAt = &startedAt
	return true
}

func (s *BattleStore) findLocked(battleID, userID string) *domain.Participant {
	for _, p := range s.participants[battleID] {
		if p.UserID == userID {
			return p
		}
	}
	return nil
}

func copyBattle(b *domain.Battle) domain.Battle {
	out := *b
	if b.StartedAt != nil {
		t := *b.StartedAt
		out.StartedAt = &t
	}
	if b.CompletedAt != nil {
		t := *b.CompletedAt
		out.CompletedAt = &t
	}
	return out
}
