package client

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"quiz-battle-service/internal/app"
	"quiz-battle-service/internal/domain"
)

// DefaultQuestionTimeout is the per-question countdown.
const DefaultQuestionTimeout = 20 * time.Second

// API is the part of the battle engine a client drives.
type API interface {
	Snapshot(ctx context.Context, battleID string) (domain.BattleSnapshot, error)
	Questions(ctx context.Context, battleID string) ([]domain.PublicQuestion, error)
	SubmitAnswer(ctx context.Context, battleID, userID string, questionOrderIndex, selectedOption int, timeSpentMs int64) (domain.AnswerResult, error)
	CompleteBattle(ctx context.Context, battleID, userID string) (domain.CompletionResult, error)
}

// Feed delivers battle events and reconciliation snapshots.
type Feed interface {
	Subscribe(ctx context.Context, battleID string, onEvent func(domain.Event), onReconcile func(domain.BattleSnapshot)) (*app.Subscription, error)
}

// Answerer picks an option for a question. It should return when ctx is done;
// the controller stops waiting at the deadline either way.
type Answerer interface {
	Answer(ctx context.Context, question domain.PublicQuestion) (int, error)
}

// AnswerFunc adapts a function to Answerer.
type AnswerFunc func(ctx context.Context, question domain.PublicQuestion) (int, error)

func (f AnswerFunc) Answer(ctx context.Context, question domain.PublicQuestion) (int, error) {
	return f(ctx, question)
}

// Controller plays one participant's side of a battle: it waits for the
// battle to start, walks the frozen questions under a countdown and finally
// asks the engine to complete the battle.
type Controller struct {
	api      API
	feed     Feed
	answerer Answerer
	battleID string
	userID   string
	timeout  time.Duration
	now      func() time.Time
	onUpdate func(domain.BattleSnapshot)
	onAnswer func(domain.AnswerResult)

	mu       sync.Mutex
	snapshot domain.BattleSnapshot
	loaded   bool
	changed  chan struct{}
}

// Option customizes a Controller.
type Option func(*Controller)

// WithQuestionTimeout overrides the countdown.
func WithQuestionTimeout(d time.Duration) Option {
	return func(c *Controller) {
		if d > 0 {
			c.timeout = d
		}
	}
}

// WithUpdates registers a callback for every fresh snapshot.
func WithUpdates(fn func(domain.BattleSnapshot)) Option {
	return func(c *Controller) { c.onUpdate = fn }
}

// WithAnswerResults registers a callback for every accepted answer.
func WithAnswerResults(fn func(domain.AnswerResult)) Option {
	return func(c *Controller) { c.onAnswer = fn }
}

func NewController(api API, feed Feed, battleID, userID string, answerer Answerer, opts ...Option) *Controller {
	c := &Controller{
		api:      api,
		feed:     feed,
		answerer: answerer,
		battleID: battleID,
		userID:   userID,
		timeout:  DefaultQuestionTimeout,
		now:      time.Now,
		changed:  make(chan struct{}, 1),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Snapshot returns the latest state seen by the controller.
func (c *Controller) Snapshot() domain.BattleSnapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.snapshot
}

// Run plays the battle to the end and returns the completion outcome. A
// battle completed by the peer first is not an error.
func (c *Controller) Run(ctx context.Context) (domain.CompletionResult, error) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	sub, err := c.feed.Subscribe(ctx, c.battleID, func(domain.Event) {
		// events are hints; re-read the authoritative state
		snapshot, err := c.api.Snapshot(ctx, c.battleID)
		if err != nil {
			if ctx.Err() == nil {
				log.Printf("refresh battle %s: %v", c.battleID, err)
			}
			return
		}
		c.update(snapshot)
	}, c.update)
	if err != nil {
		return domain.CompletionResult{}, fmt.Errorf("subscribe: %w", err)
	}
	defer sub.Unsubscribe()

	snapshot, err := c.waitForStart(ctx)
	if err != nil {
		return domain.CompletionResult{}, err
	}
	if snapshot.Battle.Status == domain.StatusCompleted {
		return domain.CompletionResult{Battle: snapshot.Battle, WinnerID: snapshot.Battle.WinnerID}, nil
	}

	questions, err := c.api.Questions(ctx, c.battleID)
	if err != nil {
		return domain.CompletionResult{}, fmt.Errorf("load questions: %w", err)
	}

	start := 0
	if me, ok := snapshot.Participant(c.userID); ok {
		start = me.AnsweredCount
	}
	for i := start; i < len(questions); i++ {
		if c.Snapshot().Battle.Status != domain.StatusActive {
			break
		}
		option, spent, err := c.ask(ctx, questions[i])
		if err != nil {
			return domain.CompletionResult{}, err
		}
		result, err := c.api.SubmitAnswer(ctx, c.battleID, c.userID, questions[i].OrderIndex, option, spent)
		if errors.Is(err, domain.ErrBattleNotActive) {
			break
		}
		if err != nil {
			return domain.CompletionResult{}, fmt.Errorf("submit answer %d: %w", questions[i].OrderIndex, err)
		}
		if c.onAnswer != nil {
			c.onAnswer(result)
		}
	}

	return c.complete(ctx)
}

func (c *Controller) complete(ctx context.Context) (domain.CompletionResult, error) {
	result, err := c.api.CompleteBattle(ctx, c.battleID, c.userID)
	if err == nil {
		return result, nil
	}
	if !errors.Is(err, domain.ErrQuestionsRemaining) && !errors.Is(err, domain.ErrBattleNotActive) {
		return domain.CompletionResult{}, fmt.Errorf("complete battle: %w", err)
	}
	// we stopped early because the battle left the active state
	snapshot, serr := c.api.Snapshot(ctx, c.battleID)
	if serr != nil {
		return domain.CompletionResult{}, fmt.Errorf("complete battle: %w", err)
	}
	c.update(snapshot)
	if snapshot.Battle.Status != domain.StatusCompleted {
		return domain.CompletionResult{}, fmt.Errorf("complete battle: %w", err)
	}
	return domain.CompletionResult{Battle: snapshot.Battle, WinnerID: snapshot.Battle.WinnerID}, nil
}

// waitForStart blocks until the battle is active or already completed.
func (c *Controller) waitForStart(ctx context.Context) (domain.BattleSnapshot, error) {
	for {
		c.mu.Lock()
		snapshot, loaded := c.snapshot, c.loaded
		c.mu.Unlock()
		if loaded {
			switch snapshot.Battle.Status {
			case domain.StatusActive, domain.StatusCompleted:
				return snapshot, nil
			case domain.StatusCancelled:
				return snapshot, domain.ErrBattleNotActive
			}
		}
		select {
		case <-ctx.Done():
			return domain.BattleSnapshot{}, ctx.Err()
		case <-c.changed:
		}
	}
}

// ask runs the countdown for one question. On expiry the question resolves as
// unanswered and the full countdown is reported as time spent.
func (c *Controller) ask(ctx context.Context, question domain.PublicQuestion) (int, int64, error) {
	qctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	type reply struct {
		option int
		err    error
	}
	replies := make(chan reply, 1)
	started := c.now()
	go func() {
		option, err := c.answerer.Answer(qctx, question)
		replies <- reply{option: option, err: err}
	}()

	select {
	case r := <-replies:
		if r.err == nil {
			return r.option, c.now().Sub(started).Milliseconds(), nil
		}
		if ctx.Err() != nil {
			return 0, 0, ctx.Err()
		}
		if qctx.Err() != nil {
			return domain.NoAnswer, c.timeout.Milliseconds(), nil
		}
		return 0, 0, fmt.Errorf("answer question %d: %w", question.OrderIndex, r.err)
	case <-qctx.Done():
		if ctx.Err() != nil {
			return 0, 0, ctx.Err()
		}
		return domain.NoAnswer, c.timeout.Milliseconds(), nil
	}
}

func (c *Controller) update(snapshot domain.BattleSnapshot) {
	c.mu.Lock()
	// snapshots can race each other; never step back to an older read
	if c.loaded && snapshot.ReadAt.Before(c.snapshot.ReadAt) {
		c.mu.Unlock()
		return
	}
	c.snapshot = snapshot
	c.loaded = true
	c.mu.Unlock()

	select {
	case c.changed <- struct{}{}:
	default:
	}
	if c.onUpdate != nil {
		c.onUpdate(snapshot)
	}
}
