package notifier

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	rediscommon "vibration-monitor/common/redis"
	"vibration-monitor/internal/models"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func testEvent() *models.PenaltyEvent {
	return &models.PenaltyEvent{
		EventID:       "evt-1",
		Device:        "Pompa1/Vibration",
		Severity:      models.SeverityUnacceptable,
		Magnitude:     10,
		Fraction:      0.9,
		OldEnd:        1700000000,
		NewEnd:        1699500000,
		ReferenceTime: time.Unix(1699000000, 0).UTC(),
	}
}

func TestStreamNotifier_Publishes(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer client.Close()

	n := NewStreamNotifier(client, "", 100, zap.NewNop())
	require.NoError(t, n.NotifyPenalty(context.Background(), testEvent()))

	msgs, err := rediscommon.ReadStream(context.Background(), client, DefaultStream)
	require.NoError(t, err)
	require.Len(t, msgs, 1)

	var got models.PenaltyEvent
	require.NoError(t, json.Unmarshal([]byte(msgs[0].Values["data"].(string)), &got))
	assert.Equal(t, "evt-1", got.EventID)
	assert.Equal(t, models.SeverityUnacceptable, got.Severity)
	assert.Equal(t, 0.9, got.Fraction)
}

func TestStreamNotifier_RedisDown(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer client.Close()
	mr.Close()

	n := NewStreamNotifier(client, "events", 0, zap.NewNop())
	assert.Error(t, n.NotifyPenalty(context.Background(), testEvent()))
}

func TestWebhookNotifier_PostsEvent(t *testing.T) {
	var body []byte
	var eventID string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		eventID = r.Header.Get("X-Event-ID")
		body, _ = io.ReadAll(r.Body)
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	n := NewWebhookNotifier(srv.URL, time.Second, zap.NewNop())
	require.NoError(t, n.NotifyPenalty(context.Background(), testEvent()))

	assert.Equal(t, "evt-1", eventID)
	var got map[string]any
	require.NoError(t, json.Unmarshal(body, &got))
	assert.Equal(t, "Pompa1/Vibration", got["device"])
	assert.Equal(t, "unacceptable", got["severity"])
}

func TestWebhookNotifier_ErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
	}))
	defer srv.Close()

	n := NewWebhookNotifier(srv.URL, time.Second, zap.NewNop())
	err := n.NotifyPenalty(context.Background(), testEvent())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "400")
}

type countingNotifier struct {
	calls atomic.Int32
	err   error
}

func (c *countingNotifier) NotifyPenalty(context.Context, *models.PenaltyEvent) error {
	c.calls.Add(1)
	return c.err
}

func TestMulti_CallsAllAndJoinsErrors(t *testing.T) {
	boom := errors.New("boom")
	a := &countingNotifier{err: boom}
	b := &countingNotifier{}

	err := Multi{a, b}.NotifyPenalty(context.Background(), testEvent())
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, int32(1), a.calls.Load())
	assert.Equal(t, int32(1), b.calls.Load())

	assert.NoError(t, Multi{b}.NotifyPenalty(context.Background(), testEvent()))
	assert.NoError(t, Nop{}.NotifyPenalty(context.Background(), testEvent()))
}
