package memory

import (
	"context"
	"math/rand"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"survey-analytics-service/internal/domain"
)

// QuestionLoader fetches a question definition from the survey store.
type QuestionLoader interface {
	LoadQuestion(ctx context.Context, questionID string) (domain.Question, error)
}

// QuestionCache caches question definitions with TTL so recomputes don't hit
// the database for the type tag on every run.
type QuestionCache struct {
	loader QuestionLoader
	ttl    time.Duration
	clock  func() time.Time
	sf     singleflight.Group

	mu    sync.RWMutex
	rnd   *rand.Rand
	cache map[string]cachedQuestion
}

type cachedQuestion struct {
	question  domain.Question
	expiresAt time.Time
}

func NewQuestionCache(loader QuestionLoader, ttl time.Duration) *QuestionCache {
	return &QuestionCache{
		loader: loader,
		ttl:    ttl,
		clock:  time.Now,
		rnd:    rand.New(rand.NewSource(time.Now().UnixNano())),
		cache:  make(map[string]cachedQuestion),
	}
}

func (c *QuestionCache) Question(ctx context.Context, questionID string) (domain.Question, error) {
	if q, ok := c.lookup(questionID); ok {
		return q, nil
	}

	result, err, _ := c.sf.Do(questionID, func() (interface{}, error) {
		if q, ok := c.lookup(questionID); ok {
			return q, nil
		}

		q, err := c.loader.LoadQuestion(ctx, questionID)
		if err != nil {
			return domain.Question{}, err
		}

		c.mu.Lock()
		c.cache[questionID] = cachedQuestion{
			question:  q,
			expiresAt: c.clock().Add(c.ttlWithJitter()),
		}
		c.mu.Unlock()
		return q, nil
	})
	if err != nil {
		return domain.Question{}, err
	}
	return result.(domain.Question), nil
}

// Forget drops a cached definition, e.g. after the survey was edited.
func (c *QuestionCache) Forget(questionID string) {
	c.mu.Lock()
	delete(c.cache, questionID)
	c.mu.Unlock()
}

func (c *QuestionCache) lookup(questionID string) (domain.Question, bool) {
	now := c.clock()
	c.mu.RLock()
	defer c.mu.RUnlock()
	entry, ok := c.cache[questionID]
	if !ok || !entry.expiresAt.After(now) {
		return domain.Question{}, false
	}
	return entry.question, true
}

// ttlWithJitter must be called with mu held for writing; rand.Rand is not safe
// for concurrent use.
func (c *QuestionCache) ttlWithJitter() time.Duration {
	if c.ttl <= 0 {
		return 0
	}
	// add up to 10% jitter to spread expirations
	jitterMax := int64(c.ttl) / 10
	return c.ttl + time.Duration(c.rnd.Int63n(jitterMax+1))
}
