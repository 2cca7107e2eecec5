package audit

import (
	"context"
	"testing"
	"time"

	"group_question_service/internal/domain/reply"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestPublisher(t *testing.T) (*RedisStreamPublisher, *redis.Client) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewRedisStreamPublisher(client, "questiond:identification"), client
}

func TestRedisStreamPublisherAppendsEvent(t *testing.T) {
	pub, client := newTestPublisher(t)
	ctx := context.Background()
	require.NoError(t, pub.Ping(ctx))

	ev := reply.Event{
		ID:               "4f1c",
		Kind:             reply.EventIdentificationAttempt,
		Method:           reply.MethodHeaders,
		Success:          true,
		Sender:           "ana@example.com",
		Subject:          "Re: Friends - QUESTION: * Best book? *",
		QuestionRecordID: 12,
		OccurredAt:       time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC),
	}
	require.NoError(t, pub.Publish(ctx, ev))

	msgs, err := client.XRange(ctx, "questiond:identification", "-", "+").Result()
	require.NoError(t, err)
	require.Len(t, msgs, 1)
	values := msgs[0].Values
	assert.Equal(t, "4f1c", values["event_id"])
	assert.Equal(t, "identification_attempt", values["kind"])
	assert.Equal(t, "headers", values["method"])
	assert.Equal(t, "true", values["success"])
	assert.Equal(t, "12", values["question_record_id"])
	assert.Equal(t, "2026-03-02T10:00:00Z", values["occurred_at"])
}

func TestRedisStreamPublisherRejectsEventWithoutID(t *testing.T) {
	pub, _ := newTestPublisher(t)
	assert.Error(t, pub.Publish(context.Background(), reply.Event{Kind: reply.EventOutcome}))
}

func TestLogPublisherWritesEntry(t *testing.T) {
	logger, hook := test.NewNullLogger()
	pub := NewLogPublisher(logrus.NewEntry(logger))

	require.NoError(t, pub.Publish(context.Background(), reply.Event{ID: "1", Kind: reply.EventOutcome, ErrorCode: "unknown_sender"}))

	entry := hook.LastEntry()
	require.NotNil(t, entry)
	assert.Equal(t, "unknown_sender", entry.Data["error_code"])
	assert.Equal(t, "audit", entry.Data["component"])
}
