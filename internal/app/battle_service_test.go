package app_test

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"golang.org/x/sync/errgroup"
	"quiz-battle-service/internal/app"
	"quiz-battle-service/internal/domain"
	"quiz-battle-service/internal/infra/memory"
)

var testNow = time.Date(2026, 10, 18, 12, 0, 0, 0, time.UTC)

type fixture struct {
	service  *app.BattleService
	store    *memory.BattleStore
	broker   *memory.Broker
	notifier *memory.LogNotifier
}

func newFixture(t *testing.T, settings app.Settings) fixture {
	t.Helper()
	if settings.QuestionCount == 0 {
		settings.QuestionCount = 10
	}
	if settings.FallbackSubject == "" {
		settings.FallbackSubject = "general"
	}
	store := memory.NewBattleStore()
	broker := memory.NewBroker()
	notifier := memory.NewLogNotifier()
	loader := memory.NewStaticQuestionLoader(map[string][]domain.Question{
		"Mathematics": makeQuestions("Mathematics", 12),
		"Science":     makeQuestions("Science", 4),
		"general":     makeQuestions("general", 10),
	})
	service := app.NewBattleService(store, memory.NewQuestionRepository(loader, time.Minute),
		app.NewSyncChannel(broker, 20*time.Millisecond),
		app.WithSettings(settings),
		app.WithNotifier(notifier),
		app.WithProfiles(memory.NewProfileDirectory(map[string]domain.Profile{
			"alice": {UserID: "alice", Username: "alice", DisplayName: "Alice"},
		})),
		app.WithClock(func() time.Time { return testNow }),
	)
	return fixture{service: service, store: store, broker: broker, notifier: notifier}
}

func makeQuestions(subject string, n int) []domain.Question {
	out := make([]domain.Question, 0, n)
	for i := 0; i < n; i++ {
		out = append(out, domain.Question{
			ID:            fmt.Sprintf("%s-%02d", subject, i),
			SubjectID:     subject,
			Text:          fmt.Sprintf("%s question %d", subject, i),
			Options:       []string{"a", "b", "c", "d"},
			CorrectOption: i % 4,
			Difficulty:    "easy",
		})
	}
	return out
}

// correctOption reads the answer key for the battle's question at idx.
func correctOption(t *testing.T, f fixture, battleID string, idx int) int {
	t.Helper()
	questions, err := f.store.Questions(context.Background(), battleID)
	if err != nil {
		t.Fatalf("questions: %v", err)
	}
	return questions[idx].Question.CorrectOption
}

func startBattle(t *testing.T, f fixture) domain.Battle {
	t.Helper()
	ctx := context.Background()
	battle, err := f.service.CreateBattle(ctx, "alice", "Mathematics", false)
	if err != nil {
		t.Fatalf("create battle: %v", err)
	}
	joined, err := f.service.JoinBattle(ctx, battle.ID, "bob")
	if err != nil {
		t.Fatalf("join battle: %v", err)
	}
	return joined
}

func TestCreateBattleAutoJoinsCreator(t *testing.T) {
	f := newFixture(t, app.Settings{})
	ctx := context.Background()

	battle, err := f.service.CreateBattle(ctx, "alice", "Mathematics", true)
	if err != nil {
		t.Fatalf("create battle: %v", err)
	}
	if _, err := app.NormalizeRoomCode(battle.RoomCode); err != nil || len(battle.RoomCode) != 6 {
		t.Fatalf("expected 6-char uppercase room code, got %q", battle.RoomCode)
	}
	if battle.Status != domain.StatusWaiting || !battle.IsPrivate || battle.CreatedBy != "alice" {
		t.Fatalf("unexpected battle: %+v", battle)
	}

	snapshot, err := f.service.Snapshot(ctx, battle.ID)
	if err != nil {
		t.Fatalf("snapshot: %v", err)
	}
	creator, ok := snapshot.Participant("alice")
	if !ok || !creator.Ready {
		t.Fatalf("expected creator auto-joined and ready, got %+v", snapshot.Participants)
	}
	if creator.Profile == nil || creator.Profile.DisplayName != "Alice" {
		t.Fatalf("expected resolved profile, got %+v", creator.Profile)
	}
	if snapshot.QuestionCount != 10 {
		t.Fatalf("expected 10 frozen questions, got %d", snapshot.QuestionCount)
	}
}

func TestCreateBattleRetriesRoomCodeCollision(t *testing.T) {
	codes := []string{"AAAAAA", "AAAAAA", "BBBBBB"}
	var mu sync.Mutex
	f := newFixture(t, app.Settings{})
	service := app.NewBattleService(f.store, memory.NewQuestionRepository(memory.NewStaticQuestionLoader(map[string][]domain.Question{
		"Mathematics": makeQuestions("Mathematics", 10),
	}), time.Minute), nil, app.WithRoomCodes(func() (string, error) {
		mu.Lock()
		defer mu.Unlock()
		code := codes[0]
		codes = codes[1:]
		return code, nil
	}))
	ctx := context.Background()

	first, err := service.CreateBattle(ctx, "alice", "Mathematics", false)
	if err != nil || first.RoomCode != "AAAAAA" {
		t.Fatalf("first battle: %+v %v", first, err)
	}
	second, err := service.CreateBattle(ctx, "carol", "Mathematics", false)
	if err != nil {
		t.Fatalf("second battle: %v", err)
	}
	if second.RoomCode != "BBBBBB" {
		t.Fatalf("expected retry to pick a fresh code, got %q", second.RoomCode)
	}
}

func TestCreateBattlePadsFromFallbackOrFails(t *testing.T) {
	f := newFixture(t, app.Settings{})
	ctx := context.Background()

	battle, err := f.service.CreateBattle(ctx, "alice", "Science", false)
	if err != nil {
		t.Fatalf("create padded battle: %v", err)
	}
	questions, _ := f.service.Questions(ctx, battle.ID)
	if len(questions) != 10 {
		t.Fatalf("expected padding to 10, got %d", len(questions))
	}

	small := newFixture(t, app.Settings{QuestionCount: 30})
	if _, err := small.service.CreateBattle(ctx, "alice", "Science", false); !errors.Is(err, domain.ErrSubjectUnavailable) {
		t.Fatalf("expected ErrSubjectUnavailable, got %v", err)
	}
	open, _ := small.service.ListOpenBattles(ctx, 0)
	if len(open) != 0 {
		t.Fatalf("failed creation left a joinable battle: %+v", open)
	}
}

func TestJoinByRoomCodeActivates(t *testing.T) {
	f := newFixture(t, app.Settings{})
	ctx := context.Background()
	battle, err := f.service.CreateBattle(ctx, "alice", "Mathematics", false)
	if err != nil {
		t.Fatalf("create battle: %v", err)
	}

	outcome, err := f.service.JoinByRoomCode(ctx, " "+strings.ToLower(battle.RoomCode)+" ", "bob")
	if err != nil {
		t.Fatalf("join by code: %v", err)
	}
	if outcome.Result != domain.JoinSuccess {
		t.Fatalf("expected success, got %s", outcome.Result)
	}
	if outcome.Battle.Status != domain.StatusActive || outcome.Battle.StartedAt == nil {
		t.Fatalf("expected active battle with startedAt, got %+v", outcome.Battle)
	}
}

func TestJoinByRoomCodeOutcomes(t *testing.T) {
	f := newFixture(t, app.Settings{})
	ctx := context.Background()
	battle, err := f.service.CreateBattle(ctx, "alice", "Mathematics", false)
	if err != nil {
		t.Fatalf("create battle: %v", err)
	}

	cases := []struct {
		name string
		code string
		user string
		want domain.JoinResult
	}{
		{name: "own battle", code: battle.RoomCode, user: "alice", want: domain.JoinIsOwnBattle},
		{name: "unknown code", code: "ZZZZZ9", user: "bob", want: domain.JoinNotFound},
		{name: "malformed code", code: "abc", user: "bob", want: domain.JoinNotFound},
		{name: "joins", code: battle.RoomCode, user: "bob", want: domain.JoinSuccess},
		{name: "no longer waiting", code: battle.RoomCode, user: "carol", want: domain.JoinNotFound},
	}
	for _, tc := range cases {
		outcome, err := f.service.JoinByRoomCode(ctx, tc.code, tc.user)
		if err != nil {
			t.Fatalf("%s: %v", tc.name, err)
		}
		if outcome.Result != tc.want {
			t.Fatalf("%s: expected %s, got %s", tc.name, tc.want, outcome.Result)
		}
	}
}

func TestJoinRejectsThirdParticipant(t *testing.T) {
	f := newFixture(t, app.Settings{RequireReady: true})
	ctx := context.Background()
	battle, err := f.service.CreateBattle(ctx, "alice", "Mathematics", false)
	if err != nil {
		t.Fatalf("create battle: %v", err)
	}
	if _, err := f.service.JoinBattle(ctx, battle.ID, "bob"); err != nil {
		t.Fatalf("join: %v", err)
	}
	if _, err := f.service.JoinBattle(ctx, battle.ID, "bob"); !errors.Is(err, domain.ErrAlreadyJoined) {
		t.Fatalf("expected ErrAlreadyJoined, got %v", err)
	}
	if _, err := f.service.JoinBattle(ctx, battle.ID, "carol"); !errors.Is(err, domain.ErrBattleFull) {
		t.Fatalf("expected ErrBattleFull, got %v", err)
	}
	outcome, err := f.service.JoinByRoomCode(ctx, battle.RoomCode, "carol")
	if err != nil || outcome.Result != domain.JoinFull {
		t.Fatalf("expected full outcome, got %+v %v", outcome, err)
	}
}

func TestConcurrentJoinsNeverExceedTwo(t *testing.T) {
	f := newFixture(t, app.Settings{})
	ctx := context.Background()
	battle, err := f.service.CreateBattle(ctx, "alice", "Mathematics", false)
	if err != nil {
		t.Fatalf("create battle: %v", err)
	}

	var (
		g      errgroup.Group
		mu     sync.Mutex
		joined []string
	)
	for i := 0; i < 16; i++ {
		user := fmt.Sprintf("user-%d", i)
		g.Go(func() error {
			outcome, err := f.service.JoinByRoomCode(ctx, battle.RoomCode, user)
			if err != nil {
				return err
			}
			if outcome.Result == domain.JoinSuccess {
				mu.Lock()
				joined = append(joined, user)
				mu.Unlock()
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		t.Fatalf("join: %v", err)
	}
	if len(joined) != 1 {
		t.Fatalf("expected exactly one joiner, got %v", joined)
	}
	snapshot, _ := f.service.Snapshot(ctx, battle.ID)
	if len(snapshot.Participants) != 2 || snapshot.Battle.Status != domain.StatusActive {
		t.Fatalf("unexpected battle state: %+v", snapshot)
	}
}

func TestReadyPathAndJoinPathActivateOnce(t *testing.T) {
	f := newFixture(t, app.Settings{})
	ctx := context.Background()
	battle := startBattle(t, f)
	startedAt := *battle.StartedAt

	events, release := f.broker.Listen(battle.ID)
	defer release()

	var g errgroup.Group
	for _, user := range []string{"alice", "bob"} {
		user := user
		g.Go(func() error {
			_, err := f.service.SetReady(ctx, battle.ID, user, true)
			return err
		})
	}
	if err := g.Wait(); err != nil {
		t.Fatalf("set ready: %v", err)
	}

	after, _ := f.service.Battle(ctx, battle.ID)
	if !after.StartedAt.Equal(startedAt) || after.Status != domain.StatusActive {
		t.Fatalf("activation repeated: %+v", after)
	}
	drain(events, func(e domain.Event) {
		if e.Type == domain.EventBattleActive {
			t.Fatalf("battle_active published twice")
		}
	})
}

func TestRequireReadyActivatesOnAllReady(t *testing.T) {
	f := newFixture(t, app.Settings{RequireReady: true})
	ctx := context.Background()
	battle, err := f.service.CreateBattle(ctx, "alice", "Mathematics", false)
	if err != nil {
		t.Fatalf("create battle: %v", err)
	}
	joined, err := f.service.JoinBattle(ctx, battle.ID, "bob")
	if err != nil {
		t.Fatalf("join: %v", err)
	}
	if joined.Status != domain.StatusWaiting {
		t.Fatalf("expected waiting until ready, got %s", joined.Status)
	}
	if _, err := f.service.SubmitAnswer(ctx, battle.ID, "bob", 0, 0, 100); !errors.Is(err, domain.ErrBattleNotActive) {
		t.Fatalf("expected ErrBattleNotActive before start, got %v", err)
	}

	ready, err := f.service.SetReady(ctx, battle.ID, "bob", true)
	if err != nil {
		t.Fatalf("ready: %v", err)
	}
	if ready.Status != domain.StatusActive || ready.StartedAt == nil {
		t.Fatalf("expected active after all ready, got %+v", ready)
	}
}

func TestSubmitAnswerScoring(t *testing.T) {
	f := newFixture(t, app.Settings{})
	ctx := context.Background()
	battle := startBattle(t, f)

	result, err := f.service.SubmitAnswer(ctx, battle.ID, "alice", 0, correctOption(t, f, battle.ID, 0), 500)
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if !result.Correct || result.Awarded != 145 || result.TotalScore != 145 {
		t.Fatalf("expected 145 points, got %+v", result)
	}

	result, err = f.service.SubmitAnswer(ctx, battle.ID, "alice", 1, correctOption(t, f, battle.ID, 1), 15000)
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if result.Awarded != 100 || result.TotalScore != 245 {
		t.Fatalf("expected floor of 100, got %+v", result)
	}

	wrong := (correctOption(t, f, battle.ID, 2) + 1) % 4
	result, err = f.service.SubmitAnswer(ctx, battle.ID, "alice", 2, wrong, 100)
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if result.Correct || result.Awarded != 0 || result.TotalScore != 245 {
		t.Fatalf("wrong answer must score zero, got %+v", result)
	}

	result, err = f.service.SubmitAnswer(ctx, battle.ID, "alice", 3, domain.NoAnswer, 20000)
	if err != nil || result.Awarded != 0 {
		t.Fatalf("timeout must score zero, got %+v %v", result, err)
	}
}

func TestSubmitAnswerDuplicatesAndOrder(t *testing.T) {
	f := newFixture(t, app.Settings{})
	ctx := context.Background()
	battle := startBattle(t, f)
	option := correctOption(t, f, battle.ID, 0)

	if _, err := f.service.SubmitAnswer(ctx, battle.ID, "bob", 0, option, 0); err != nil {
		t.Fatalf("submit: %v", err)
	}
	dup, err := f.service.SubmitAnswer(ctx, battle.ID, "bob", 0, option, 0)
	if err != nil {
		t.Fatalf("duplicate must not fail: %v", err)
	}
	if !dup.Duplicate || dup.Awarded != 0 || dup.TotalScore != 150 {
		t.Fatalf("duplicate must not double award, got %+v", dup)
	}
	if _, err := f.service.SubmitAnswer(ctx, battle.ID, "bob", 5, option, 0); !errors.Is(err, domain.ErrAnswerOutOfOrder) {
		t.Fatalf("expected ErrAnswerOutOfOrder, got %v", err)
	}
	if _, err := f.service.SubmitAnswer(ctx, battle.ID, "bob", 10, option, 0); !errors.Is(err, domain.ErrQuestionNotFound) {
		t.Fatalf("expected ErrQuestionNotFound, got %v", err)
	}
	if _, err := f.service.SubmitAnswer(ctx, battle.ID, "mallory", 0, option, 0); !errors.Is(err, domain.ErrNotParticipant) {
		t.Fatalf("expected ErrNotParticipant, got %v", err)
	}
}

func TestConcurrentRetriesAwardOnce(t *testing.T) {
	f := newFixture(t, app.Settings{})
	ctx := context.Background()
	battle := startBattle(t, f)
	option := correctOption(t, f, battle.ID, 0)

	var g errgroup.Group
	for i := 0; i < 8; i++ {
		g.Go(func() error {
			_, err := f.service.SubmitAnswer(ctx, battle.ID, "bob", 0, option, 0)
			return err
		})
	}
	if err := g.Wait(); err != nil {
		t.Fatalf("submit: %v", err)
	}
	snapshot, _ := f.service.Snapshot(ctx, battle.ID)
	bob, _ := snapshot.Participant("bob")
	if bob.Score != 150 || bob.AnsweredCount != 1 {
		t.Fatalf("retries double counted: %+v", bob.Participant)
	}
}

func TestScoreIsMonotonic(t *testing.T) {
	f := newFixture(t, app.Settings{})
	ctx := context.Background()
	battle := startBattle(t, f)

	last := 0
	for i := 0; i < 10; i++ {
		option := correctOption(t, f, battle.ID, i)
		if i%3 == 0 {
			option = domain.NoAnswer
		}
		result, err := f.service.SubmitAnswer(ctx, battle.ID, "alice", i, option, int64(i*700))
		if err != nil {
			t.Fatalf("submit %d: %v", i, err)
		}
		if result.TotalScore < last {
			t.Fatalf("score decreased from %d to %d", last, result.TotalScore)
		}
		last = result.TotalScore
	}
}

func TestQuestionsAreIdenticalForBothParticipants(t *testing.T) {
	f := newFixture(t, app.Settings{})
	ctx := context.Background()
	battle := startBattle(t, f)

	var g errgroup.Group
	views := make([][]domain.PublicQuestion, 2)
	for i := range views {
		i := i
		g.Go(func() error {
			q, err := f.service.Questions(ctx, battle.ID)
			views[i] = q
			return err
		})
	}
	if err := g.Wait(); err != nil {
		t.Fatalf("questions: %v", err)
	}
	if fmt.Sprintf("%+v", views[0]) != fmt.Sprintf("%+v", views[1]) {
		t.Fatalf("participants saw different sequences")
	}
	for i, q := range views[0] {
		if q.OrderIndex != i {
			t.Fatalf("unexpected order index %d at %d", q.OrderIndex, i)
		}
	}
}

func TestCompleteBattleIsIdempotent(t *testing.T) {
	f := newFixture(t, app.Settings{})
	ctx := context.Background()
	battle := startBattle(t, f)

	for i := 0; i < 10; i++ {
		if _, err := f.service.SubmitAnswer(ctx, battle.ID, "alice", i, correctOption(t, f, battle.ID, i), 1000); err != nil {
			t.Fatalf("alice submit %d: %v", i, err)
		}
		if _, err := f.service.SubmitAnswer(ctx, battle.ID, "bob", i, correctOption(t, f, battle.ID, i), 200); err != nil {
			t.Fatalf("bob submit %d: %v", i, err)
		}
	}

	events, release := f.broker.Listen(battle.ID)
	defer release()

	results := make([]domain.CompletionResult, 2)
	var g errgroup.Group
	for i, user := range []string{"alice", "bob"} {
		i, user := i, user
		g.Go(func() error {
			r, err := f.service.CompleteBattle(ctx, battle.ID, user)
			results[i] = r
			return err
		})
	}
	if err := g.Wait(); err != nil {
		t.Fatalf("complete: %v", err)
	}

	if results[0].WinnerID != "bob" || results[1].WinnerID != "bob" {
		t.Fatalf("expected bob to win for both callers, got %+v", results)
	}
	if results[0].Transitioned == results[1].Transitioned {
		t.Fatalf("expected exactly one transition, got %+v", results)
	}
	if !results[0].Battle.CompletedAt.Equal(*results[1].Battle.CompletedAt) {
		t.Fatalf("completedAt differs between callers")
	}

	completions := 0
	drain(events, func(e domain.Event) {
		if e.Type == domain.EventBattleCompleted {
			completions++
		}
	})
	if completions != 1 {
		t.Fatalf("expected one completion event, got %d", completions)
	}

	snapshot, _ := f.service.Snapshot(ctx, battle.ID)
	bob, _ := snapshot.Participant("bob")
	if bob.Score != 1480 {
		t.Fatalf("completion changed scores: %d", bob.Score)
	}
}

func TestCompleteBattleGuards(t *testing.T) {
	f := newFixture(t, app.Settings{})
	ctx := context.Background()

	waiting, err := f.service.CreateBattle(ctx, "alice", "Mathematics", false)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if _, err := f.service.CompleteBattle(ctx, waiting.ID, "alice"); !errors.Is(err, domain.ErrBattleNotActive) {
		t.Fatalf("expected ErrBattleNotActive, got %v", err)
	}

	battle := startBattle(t, f)
	if _, err := f.service.CompleteBattle(ctx, battle.ID, "alice"); !errors.Is(err, domain.ErrQuestionsRemaining) {
		t.Fatalf("expected ErrQuestionsRemaining, got %v", err)
	}
	if _, err := f.service.CompleteBattle(ctx, battle.ID, "mallory"); !errors.Is(err, domain.ErrNotParticipant) {
		t.Fatalf("expected ErrNotParticipant, got %v", err)
	}
	if _, err := f.service.CompleteBattle(ctx, "missing", "alice"); !errors.Is(err, domain.ErrBattleNotFound) {
		t.Fatalf("expected ErrBattleNotFound, got %v", err)
	}
}

func TestFirstFinisherCompletesAndLateAnswersAreRejected(t *testing.T) {
	f := newFixture(t, app.Settings{})
	ctx := context.Background()
	battle := startBattle(t, f)

	for i := 0; i < 10; i++ {
		if _, err := f.service.SubmitAnswer(ctx, battle.ID, "alice", i, correctOption(t, f, battle.ID, i), 0); err != nil {
			t.Fatalf("submit %d: %v", i, err)
		}
	}
	result, err := f.service.CompleteBattle(ctx, battle.ID, "alice")
	if err != nil || !result.Transitioned || result.WinnerID != "alice" {
		t.Fatalf("complete: %+v %v", result, err)
	}
	if _, err := f.service.SubmitAnswer(ctx, battle.ID, "bob", 0, 0, 0); !errors.Is(err, domain.ErrBattleNotActive) {
		t.Fatalf("expected ErrBattleNotActive for late answer, got %v", err)
	}
	again, err := f.service.CompleteBattle(ctx, battle.ID, "bob")
	if err != nil || again.Transitioned || again.WinnerID != "alice" {
		t.Fatalf("peer completion must be a no-op: %+v %v", again, err)
	}
}

func TestCompletedIffWinner(t *testing.T) {
	f := newFixture(t, app.Settings{})
	ctx := context.Background()
	battle := startBattle(t, f)

	check := func() {
		b, _ := f.service.Battle(ctx, battle.ID)
		if (b.Status == domain.StatusCompleted) != (b.WinnerID != "") {
			t.Fatalf("status %s with winner %q", b.Status, b.WinnerID)
		}
	}
	check()
	for i := 0; i < 10; i++ {
		if _, err := f.service.SubmitAnswer(ctx, battle.ID, "bob", i, domain.NoAnswer, 0); err != nil {
			t.Fatalf("submit: %v", err)
		}
		check()
	}
	if _, err := f.service.CompleteBattle(ctx, battle.ID, "bob"); err != nil {
		t.Fatalf("complete: %v", err)
	}
	check()
}

func TestCancelBattle(t *testing.T) {
	f := newFixture(t, app.Settings{})
	ctx := context.Background()
	battle, err := f.service.CreateBattle(ctx, "alice", "Mathematics", false)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if _, err := f.service.CancelBattle(ctx, battle.ID, "bob"); !errors.Is(err, domain.ErrNotCreator) {
		t.Fatalf("expected ErrNotCreator, got %v", err)
	}
	cancelled, err := f.service.CancelBattle(ctx, battle.ID, "alice")
	if err != nil || cancelled.Status != domain.StatusCancelled {
		t.Fatalf("cancel: %+v %v", cancelled, err)
	}
	if _, err := f.service.JoinBattle(ctx, battle.ID, "bob"); !errors.Is(err, domain.ErrBattleNotWaiting) {
		t.Fatalf("expected ErrBattleNotWaiting, got %v", err)
	}

	active := startBattle(t, f)
	if _, err := f.service.CancelBattle(ctx, active.ID, "alice"); !errors.Is(err, domain.ErrBattleNotWaiting) {
		t.Fatalf("expected ErrBattleNotWaiting for active battle, got %v", err)
	}
}

func TestInviteFriend(t *testing.T) {
	f := newFixture(t, app.Settings{})
	ctx := context.Background()
	battle, err := f.service.CreateBattle(ctx, "alice", "Mathematics", true)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if err := f.service.InviteFriend(ctx, battle.ID, "mallory", "bob"); !errors.Is(err, domain.ErrNotParticipant) {
		t.Fatalf("expected ErrNotParticipant, got %v", err)
	}
	if err := f.service.InviteFriend(ctx, battle.ID, "alice", "bob"); err != nil {
		t.Fatalf("invite: %v", err)
	}

	deadline := time.Now().Add(time.Second)
	for len(f.notifier.Sent()) == 0 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	sent := f.notifier.Sent()
	if len(sent) != 1 || sent[0].FriendID != "bob" || sent[0].RoomCode != battle.RoomCode {
		t.Fatalf("unexpected invites: %+v", sent)
	}
}

func TestListOpenBattlesHidesPrivate(t *testing.T) {
	f := newFixture(t, app.Settings{})
	ctx := context.Background()
	public, _ := f.service.CreateBattle(ctx, "alice", "Mathematics", false)
	if _, err := f.service.CreateBattle(ctx, "carol", "Mathematics", true); err != nil {
		t.Fatalf("create: %v", err)
	}
	open, err := f.service.ListOpenBattles(ctx, 10)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(open) != 1 || open[0].ID != public.ID {
		t.Fatalf("expected only the public battle, got %+v", open)
	}
}

func TestSubscribeReconcilesAndReceivesEvents(t *testing.T) {
	f := newFixture(t, app.Settings{})
	ctx := context.Background()
	battle, err := f.service.CreateBattle(ctx, "alice", "Mathematics", false)
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	events := make(chan domain.Event, 16)
	snapshots := make(chan domain.BattleSnapshot, 16)
	sub, err := f.service.Subscribe(ctx, battle.ID,
		func(e domain.Event) { events <- e },
		func(s domain.BattleSnapshot) {
			select {
			case snapshots <- s:
			default:
			}
		})
	if err != nil {
		t.Fatalf("subscribe: %v", err)
	}
	defer sub.Unsubscribe()

	select {
	case s := <-snapshots:
		if s.Battle.Status != domain.StatusWaiting {
			t.Fatalf("unexpected initial snapshot: %+v", s.Battle)
		}
	case <-time.After(time.Second):
		t.Fatalf("no initial reconcile")
	}

	if _, err := f.service.JoinBattle(ctx, battle.ID, "bob"); err != nil {
		t.Fatalf("join: %v", err)
	}
	select {
	case e := <-events:
		if e.Type != domain.EventParticipantJoined || e.UserID != "bob" {
			t.Fatalf("unexpected event: %+v", e)
		}
	case <-time.After(time.Second):
		t.Fatalf("no join event")
	}

	if _, err := f.service.Subscribe(ctx, "missing", nil, nil); !errors.Is(err, domain.ErrBattleNotFound) {
		t.Fatalf("expected ErrBattleNotFound, got %v", err)
	}
}

func TestDetermineWinnerReadsStore(t *testing.T) {
	f := newFixture(t, app.Settings{})
	ctx := context.Background()
	battle := startBattle(t, f)
	if _, err := f.service.SubmitAnswer(ctx, battle.ID, "bob", 0, correctOption(t, f, battle.ID, 0), 0); err != nil {
		t.Fatalf("submit: %v", err)
	}
	winner, err := f.service.DetermineWinner(ctx, battle.ID)
	if err != nil || winner != "bob" {
		t.Fatalf("expected bob leading, got %q %v", winner, err)
	}
}

func drain(events <-chan domain.Event, fn func(domain.Event)) {
	for {
		select {
		case e := <-events:
			fn(e)
		default:
			return
		}
	}
}
