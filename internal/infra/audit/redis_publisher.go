// Package audit delivers identification and outcome events.
package audit

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"group_question_service/internal/domain/reply"

	"github.com/redis/go-redis/v9"
)

// RedisStreamPublisher appends events to a Redis stream.
type RedisStreamPublisher struct {
	client *redis.Client
	stream string
	maxLen int64
}

// NewRedisStreamPublisherWithURL connects to the Redis instance at url.
func NewRedisStreamPublisherWithURL(url, stream string) (*RedisStreamPublisher, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parsing redis url: %w", err)
	}
	return NewRedisStreamPublisher(redis.NewClient(opts), stream), nil
}

func NewRedisStreamPublisher(client *redis.Client, stream string) *RedisStreamPublisher {
	return &RedisStreamPublisher{client: client, stream: stream, maxLen: 100000}
}

// Ping checks the connection.
func (p *RedisStreamPublisher) Ping(ctx context.Context) error {
	return p.client.Ping(ctx).Err()
}

func (p *RedisStreamPublisher) Close() error {
	return p.client.Close()
}

func (p *RedisStreamPublisher) Publish(ctx context.Context, ev reply.Event) error {
	if ev.ID == "" {
		return errors.New("event id is empty")
	}
	err := p.client.XAdd(ctx, &redis.XAddArgs{
		Stream: p.stream,
		MaxLen: p.maxLen,
		Approx: true,
		Values: eventToValues(ev),
	}).Err()
	if err != nil {
		return fmt.Errorf("appending event %s to %s: %w", ev.ID, p.stream, err)
	}
	return nil
}

func eventToValues(ev reply.Event) map[string]interface{} {
	return map[string]interface{}{
		"event_id":           ev.ID,
		"kind":               string(ev.Kind),
		"method":             string(ev.Method),
		"success":            strconv.FormatBool(ev.Success),
		"error_code":         ev.ErrorCode,
		"sender":             ev.Sender,
		"subject":            ev.Subject,
		"question_record_id": strconv.FormatInt(ev.QuestionRecordID, 10),
		"answer_id":          strconv.FormatInt(ev.AnswerID, 10),
		"occurred_at":        ev.OccurredAt.UTC().Format(time.RFC3339Nano),
	}
}
