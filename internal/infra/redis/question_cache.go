package redis

import (
	"context"
	"encoding/json"
	"math/rand"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/singleflight"

	"survey-analytics-service/internal/domain"
	"survey-analytics-service/internal/infra/memory"
)

// QuestionCache caches question definitions in Redis (hash per question) and
// falls back to a loader on cache miss.
// Stored as: HSET question:{questionID} survey {surveyID} text {text} type {type} options {json}
type QuestionCache struct {
	client *redis.Client
	loader memory.QuestionLoader
	ttl    time.Duration
	sf     singleflight.Group

	mu  sync.Mutex
	rnd *rand.Rand
}

func NewQuestionCache(client *redis.Client, loader memory.QuestionLoader, ttl time.Duration) *QuestionCache {
	return &QuestionCache{
		client: client,
		loader: loader,
		ttl:    ttl,
		rnd:    rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

func (c *QuestionCache) Question(ctx context.Context, questionID string) (domain.Question, error) {
	key := c.key(questionID)

	if fields, err := c.client.HGetAll(ctx, key).Result(); err == nil && len(fields) > 0 {
		return questionFromHash(questionID, fields), nil
	}

	result, err, _ := c.sf.Do(questionID, func() (interface{}, error) {
		// Re-check cache in case another caller filled it.
		if fields, err := c.client.HGetAll(ctx, key).Result(); err == nil && len(fields) > 0 {
			return questionFromHash(questionID, fields), nil
		}

		q, err := c.loader.LoadQuestion(ctx, questionID)
		if err != nil {
			return domain.Question{}, err
		}

		options, _ := json.Marshal(q.Options)
		ttl := c.ttlWithJitter()
		pipe := c.client.Pipeline()
		pipe.HSet(ctx, key, "survey", q.SurveyID, "text", q.Text, "type", string(q.Type), "options", string(options))
		if ttl > 0 {
			pipe.Expire(ctx, key, ttl)
		}
		// best-effort fill; the loaded definition is returned either way
		_, _ = pipe.Exec(ctx)

		return q, nil
	})
	if err != nil {
		return domain.Question{}, err
	}
	return result.(domain.Question), nil
}

// Forget drops a cached definition, e.g. after the survey was edited.
func (c *QuestionCache) Forget(ctx context.Context, questionID string) error {
	return c.client.Del(ctx, c.key(questionID)).Err()
}

func (c *QuestionCache) key(questionID string) string {
	return "question:" + questionID
}

func questionFromHash(questionID string, fields map[string]string) domain.Question {
	q := domain.Question{
		ID:       questionID,
		SurveyID: fields["survey"],
		Text:     fields["text"],
		Type:     domain.QuestionType(fields["type"]),
	}
	if raw := fields["options"]; raw != "" {
		_ = json.Unmarshal([]byte(raw), &q.Options)
	}
	return q
}

func (c *QuestionCache) ttlWithJitter() time.Duration {
	if c.ttl <= 0 {
		return 0
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	jitterMax := int64(c.ttl) / 10
	return c.ttl + time.Duration(c.rnd.Int63n(jitterMax+1))
}
