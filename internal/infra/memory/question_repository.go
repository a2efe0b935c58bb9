package memory

import (
	"context"
	"math/rand"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"
	"quiz-battle-service/internal/domain"
)

// QuestionLoader fetches a subject's question pool from a backing store.
type QuestionLoader interface {
	LoadQuestions(ctx context.Context, subjectID string) ([]domain.Question, error)
}

// QuestionRepository caches question pools with TTL to avoid repeated DB hits
// and samples from them per battle.
type QuestionRepository struct {
	loader QuestionLoader
	ttl    time.Duration
	clock  func() time.Time
	sf     singleflight.Group

	rndMu sync.Mutex
	rnd   *rand.Rand

	mu    sync.RWMutex
	cache map[string]cachedPool
}

type cachedPool struct {
	questions []domain.Question
	expiresAt time.Time
}

func NewQuestionRepository(loader QuestionLoader, ttl time.Duration) *QuestionRepository {
	return &QuestionRepository{
		loader: loader,
		ttl:    ttl,
		clock:  time.Now,
		rnd:    rand.New(rand.NewSource(time.Now().UnixNano())),
		cache:  make(map[string]cachedPool),
	}
}

// FetchQuestions returns up to count questions drawn at random from the subject's pool.
func (r *QuestionRepository) FetchQuestions(ctx context.Context, subjectID string, count int) ([]domain.Question, error) {
	pool, err := r.pool(ctx, subjectID)
	if err != nil {
		return nil, err
	}
	return r.sample(pool, count), nil
}

func (r *QuestionRepository) pool(ctx context.Context, subjectID string) ([]domain.Question, error) {
	now := r.clock()

	r.mu.RLock()
	if entry, ok := r.cache[subjectID]; ok && entry.expiresAt.After(now) {
		r.mu.RUnlock()
		return entry.questions, nil
	}
	r.mu.RUnlock()

	result, err, _ := r.sf.Do(subjectID, func() (interface{}, error) {
		now := r.clock()
		r.mu.RLock()
		if entry, ok := r.cache[subjectID]; ok && entry.expiresAt.After(now) {
			r.mu.RUnlock()
			return entry.questions, nil
		}
		r.mu.RUnlock()

		questions, err := r.loader.LoadQuestions(ctx, subjectID)
		if err != nil {
			return nil, err
		}

		r.mu.Lock()
		r.cache[subjectID] = cachedPool{
			questions: questions,
			expiresAt: now.Add(r.ttlWithJitter()),
		}
		r.mu.Unlock()
		return questions, nil
	})
	if err != nil {
		return nil, err
	}
	return result.([]domain.Question), nil
}

func (r *QuestionRepository) sample(pool []domain.Question, count int) []domain.Question {
	picked := append([]domain.Question(nil), pool...)
	r.rndMu.Lock()
	r.rnd.Shuffle(len(picked), func(i, j int) {
		picked[i], picked[j] = picked[j], picked[i]
	})
	r.rndMu.Unlock()
	if count >= 0 && len(picked) > count {
		picked = picked[:count]
	}
	return picked
}

func (r *QuestionRepository) ttlWithJitter() time.Duration {
	if r.ttl <= 0 {
		return 0
	}
	// add up to 10% jitter to spread expirations
	jitterMax := int64(r.ttl) / 10
	r.rndMu.Lock()
	defer r.rndMu.Unlock()
	return r.ttl + time.Duration(r.rnd.Int63n(jitterMax+1))
}

// StaticQuestionLoader is a loader backed by an in-memory map (useful for tests/demos).
type StaticQuestionLoader struct {
	pools map[string][]domain.Question
}

func NewStaticQuestionLoader(pools map[string][]domain.Question) *StaticQuestionLoader {
	return &StaticQuestionLoader{pools: pools}
}

func (l *StaticQuestionLoader) LoadQuestions(_ context.Context, subjectID string) ([]domain.Question, error) {
	if pool, ok := l.pools[subjectID]; ok && len(pool) > 0 {
		return pool, nil
	}
	return nil, domain.ErrSubjectUnavailable
}
