package app

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"
	"quiz-battle-service/internal/domain"
)

// BattleStore is the single source of truth for battles, participants and
// frozen question sets. Every method that changes shared state must apply its
// guard and its write atomically (conditional update or transaction).
type BattleStore interface {
	// CreateBattle persists the battle, its auto-joined creator and its frozen
	// questions together. It returns domain.ErrRoomCodeTaken when the room code
	// collides with another waiting battle.
	CreateBattle(ctx context.Context, battle domain.Battle, creator domain.Participant, questions []domain.QuestionAssignment) error
	GetBattle(ctx context.Context, battleID string) (domain.Battle, error)
	FindWaitingByRoomCode(ctx context.Context, roomCode string) (domain.Battle, error)
	ListOpenBattles(ctx context.Context, limit int) ([]domain.Battle, error)
	Participants(ctx context.Context, battleID string) ([]domain.Participant, error)
	Questions(ctx context.Context, battleID string) ([]domain.QuestionAssignment, error)

	// AddParticipant inserts the participant and, when activate is set and the
	// battle now has two participants, moves it from waiting to active.
	AddParticipant(ctx context.Context, participant domain.Participant, activate bool, now time.Time) (activated bool, err error)
	// SetReady updates the ready flag and activates the battle when it holds two
	// participants that are all ready.
	SetReady(ctx context.Context, battleID, userID string, ready bool, now time.Time) (activated bool, err error)
	// ApplyAnswer adds the awarded points to the participant, gated on the
	// participant having answered exactly QuestionOrderIndex questions so far.
	// Duplicates return domain.ErrDuplicateAnswer together with the current tallies.
	ApplyAnswer(ctx context.Context, answer domain.AnswerEvent) (domain.Participant, error)
	// CompleteBattle moves an active battle to completed with the winner chosen
	// by pick. transitioned is false when the battle was already completed.
	CompleteBattle(ctx context.Context, battleID string, now time.Time, pick WinnerFunc) (battle domain.Battle, transitioned bool, err error)
	// CancelBattle moves a waiting battle to cancelled.
	CancelBattle(ctx context.Context, battleID string, now time.Time) (battle domain.Battle, transitioned bool, err error)
}

// WinnerFunc chooses the winner among a battle's participants.
type WinnerFunc func(participants []domain.Participant) string

// QuestionRepository returns up to count questions for a subject.
type QuestionRepository interface {
	FetchQuestions(ctx context.Context, subjectID string, count int) ([]domain.Question, error)
}

// Notifier delivers invites to friends. Delivery is best-effort.
type Notifier interface {
	NotifyInvite(ctx context.Context, invite domain.Invite) error
}

// ProfileResolver maps user ids to display data.
type ProfileResolver interface {
	ResolveProfiles(ctx context.Context, userIDs []string) (map[string]domain.Profile, error)
}

// Settings tunes battle behaviour.
type Settings struct {
	QuestionCount   int
	FallbackSubject string
	RequireReady    bool
	OpenListLimit   int
}

const (
	defaultQuestionCount = 10
	defaultOpenListLimit = 50
	roomCodeAttempts     = 10
	notifyTimeout        = 5 * time.Second
)

// BattleService exposes matchmaking, lifecycle and scoring use cases.
type BattleService struct {
	store     BattleStore
	sequencer *QuestionSequencer
	channel   *SyncChannel
	notifier  Notifier
	profiles  ProfileResolver
	settings  Settings
	now       func() time.Time
	newID     func() string
	roomCode  func() (string, error)
}

// Option configures optional collaborators of a BattleService.
type Option func(*BattleService)

// WithNotifier sets the invite notifier.
func WithNotifier(n Notifier) Option {
	return func(s *BattleService) { s.notifier = n }
}

// WithProfiles sets the profile resolver used for snapshots.
func WithProfiles(p ProfileResolver) Option {
	return func(s *BattleService) { s.profiles = p }
}

// WithSettings overrides the default settings.
func WithSettings(settings Settings) Option {
	return func(s *BattleService) { s.settings = settings }
}

// WithClock is used by tests for deterministic timestamps.
func WithClock(now func() time.Time) Option {
	return func(s *BattleService) { s.now = now }
}

// WithRoomCodes replaces the room code generator.
func WithRoomCodes(gen func() (string, error)) Option {
	return func(s *BattleService) { s.roomCode = gen }
}

func NewBattleService(store BattleStore, questions QuestionRepository, channel *SyncChannel, opts ...Option) *BattleService {
	s := &BattleService{
		store:    store,
		channel:  channel,
		settings: Settings{QuestionCount: defaultQuestionCount, OpenListLimit: defaultOpenListLimit},
		now:      func() time.Time { return time.Now().UTC() },
		newID:    uuid.NewString,
		roomCode: GenerateRoomCode,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.settings.QuestionCount <= 0 {
		s.settings.QuestionCount = defaultQuestionCount
	}
	if s.settings.OpenListLimit <= 0 {
		s.settings.OpenListLimit = defaultOpenListLimit
	}
	s.sequencer = NewQuestionSequencer(questions, s.settings.FallbackSubject)
	return s
}

// Battle returns the stored battle.
func (s *BattleService) Battle(ctx context.Context, battleID string) (domain.Battle, error) {
	return s.store.GetBattle(ctx, battleID)
}

// Snapshot reads the authoritative battle state for reconciliation.
func (s *BattleService) Snapshot(ctx context.Context, battleID string) (domain.BattleSnapshot, error) {
	battle, err := s.store.GetBattle(ctx, battleID)
	if err != nil {
		return domain.BattleSnapshot{}, err
	}
	participants, err := s.store.Participants(ctx, battleID)
	if err != nil {
		return domain.BattleSnapshot{}, err
	}
	questions, err := s.store.Questions(ctx, battleID)
	if err != nil {
		return domain.BattleSnapshot{}, err
	}

	views := make([]domain.ParticipantView, 0, len(participants))
	var profiles map[string]domain.Profile
	if s.profiles != nil && len(participants) > 0 {
		ids := make([]string, 0, len(participants))
		for _, p := range participants {
			ids = append(ids, p.UserID)
		}
		profiles, err = s.profiles.ResolveProfiles(ctx, ids)
		if err != nil {
			log.Printf("resolve profiles for battle %s: %v", battleID, err)
		}
	}
	for _, p := range participants {
		view := domain.ParticipantView{Participant: p}
		if profile, ok := profiles[p.UserID]; ok {
			profile := profile
			view.Profile = &profile
		}
		views = append(views, view)
	}

	return domain.BattleSnapshot{
		Battle:        battle,
		Participants:  views,
		QuestionCount: len(questions),
		ReadAt:        s.now(),
	}, nil
}

// Questions returns the frozen sequence without answers. Every caller gets the
// same order.
func (s *BattleService) Questions(ctx context.Context, battleID string) ([]domain.PublicQuestion, error) {
	assignments, err := s.store.Questions(ctx, battleID)
	if err != nil {
		return nil, err
	}
	if len(assignments) == 0 {
		if _, err := s.store.GetBattle(ctx, battleID); err != nil {
			return nil, err
		}
	}
	out := make([]domain.PublicQuestion, 0, len(assignments))
	for _, a := range assignments {
		out = append(out, domain.PublicQuestion{
			OrderIndex: a.OrderIndex,
			QuestionID: a.QuestionID,
			Text:       a.Question.Text,
			Options:    append([]string(nil), a.Question.Options...),
			Difficulty: a.Question.Difficulty,
		})
	}
	return out, nil
}

// Subscribe registers a listener on the battle's sync feed. onReconcile
// receives a fresh snapshot immediately and then periodically.
func (s *BattleService) Subscribe(ctx context.Context, battleID string, onEvent func(domain.Event), onReconcile func(domain.BattleSnapshot)) (*Subscription, error) {
	if s.channel == nil {
		return nil, fmt.Errorf("sync channel not configured")
	}
	if _, err := s.store.GetBattle(ctx, battleID); err != nil {
		return nil, err
	}
	return s.channel.Subscribe(ctx, battleID, s.Snapshot, onEvent, onReconcile), nil
}

// publish is best-effort: subscribers reconcile on their own schedule.
func (s *BattleService) publish(ctx context.Context, typ domain.EventType, battleID, userID string) {
	if s.channel == nil {
		return
	}
	event := domain.Event{Type: typ, BattleID: battleID, UserID: userID, At: s.now()}
	if err := s.channel.Publish(ctx, event); err != nil {
		log.Printf("publish %s for battle %s: %v", typ, battleID, err)
	}
}
