package redis

import (
	"context"
	"encoding/json"
	"math/rand"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/singleflight"
	"quiz-battle-service/internal/domain"
	"quiz-battle-service/internal/infra/memory"
)

// QuestionRepository caches subject question pools in Redis and falls back to
// a loader on cache miss. Pools are stored as JSON under questions:{subjectID}.
type QuestionRepository struct {
	client *redis.Client
	loader memory.QuestionLoader
	ttl    time.Duration
	sf     singleflight.Group

	rndMu sync.Mutex
	rnd   *rand.Rand
}

func NewQuestionRepository(client *redis.Client, loader memory.QuestionLoader, ttl time.Duration) *QuestionRepository {
	return &QuestionRepository{
		client: client,
		loader: loader,
		ttl:    ttl,
		rnd:    rand.New(rand.NewSource(time.Now().UnixNano())),
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
	key := r.key(subjectID)
	if pool, ok := r.cached(ctx, key); ok {
		return pool, nil
	}

	result, err, _ := r.sf.Do(subjectID, func() (interface{}, error) {
		// Re-check cache in case another goroutine filled it.
		if pool, ok := r.cached(ctx, key); ok {
			return pool, nil
		}

		pool, err := r.loader.LoadQuestions(ctx, subjectID)
		if err != nil {
			return nil, err
		}
		if raw, err := json.Marshal(pool); err == nil {
			// best-effort; a failed write only costs a reload
			_ = r.client.Set(ctx, key, raw, r.ttlWithJitter()).Err()
		}
		return pool, nil
	})
	if err != nil {
		return nil, err
	}
	return result.([]domain.Question), nil
}

func (r *QuestionRepository) cached(ctx context.Context, key string) ([]domain.Question, bool) {
	raw, err := r.client.Get(ctx, key).Bytes()
	if err != nil || len(raw) == 0 {
		return nil, false
	}
	var pool []domain.Question
	if err := json.Unmarshal(raw, &pool); err != nil || len(pool) == 0 {
		return nil, false
	}
	return pool, true
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

func (r *QuestionRepository) key(subjectID string) string {
	return "questions:" + subjectID
}

func (r *QuestionRepository) ttlWithJitter() time.Duration {
	if r.ttl <= 0 {
		return 0
	}
	jitterMax := int64(r.ttl) / 10
	r.rndMu.Lock()
	defer r.rndMu.Unlock()
	return r.ttl + time.Duration(r.rnd.Int63n(jitterMax+1))
}
