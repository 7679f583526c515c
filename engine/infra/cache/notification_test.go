package cache

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestNotificationSystem(t *testing.T) *RedisNotificationSystem {
	t.Helper()
	s := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: s.Addr()})
	t.Cleanup(func() { client.Close() })
	ns, err := NewRedisNotificationSystem(client, nil)
	require.NoError(t, err)
	t.Cleanup(func() { ns.Close() })
	return ns
}

func waitForMessage(t *testing.T, msgs <-chan Message) Message {
	t.Helper()
	select {
	case msg, ok := <-msgs:
		require.True(t, ok, "message channel closed before delivery")
		return msg
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for message")
		return Message{}
	}
}

func TestRedisNotificationSystem_Publish(t *testing.T) {
	ns := newTestNotificationSystem(t)
	ctx := context.Background()

	t.Run("Should successfully publish message", func(t *testing.T) {
		message := map[string]any{
			"type": "test",
			"data": "hello world",
		}

		err := ns.Publish(ctx, "test-channel", message)
		assert.NoError(t, err)

		metrics := ns.GetMetrics()
		assert.Greater(t, metrics.MessagesPublished, int64(0))
	})

	t.Run("Should handle invalid message serialization", func(t *testing.T) {
		// Function types cannot be serialized to JSON
		invalidMessage := func() {}

		err := ns.Publish(ctx, "test-channel", invalidMessage)
		assert.Error(t, err)

		metrics := ns.GetMetrics()
		assert.Greater(t, metrics.PublishErrors, int64(0))
	})

	t.Run("Should reject nil client", func(t *testing.T) {
		_, err := NewRedisNotificationSystem(nil, nil)
		assert.Error(t, err)
	})
}

func TestRedisNotificationSystem_ExecutionStream(t *testing.T) {
	ns := newTestNotificationSystem(t)
	ctx := context.Background()

	t.Run("Should deliver execution events to execution subscribers", func(t *testing.T) {
		msgs, err := ns.SubscribeToExecution(ctx, "exec-123")
		require.NoError(t, err)

		err = ns.PublishExecutionEvent(ctx, "exec-123", "workflow_completed", "completed", map[string]any{
			"flow_id": "EMAIL_THEN_SOCIAL",
		})
		require.NoError(t, err)

		msg := waitForMessage(t, msgs)
		assert.Equal(t, "execution:exec-123", msg.Channel)

		var event ExecutionEvent
		require.NoError(t, json.Unmarshal(msg.Payload, &event))
		assert.Equal(t, "exec-123", event.ExecutionID)
		assert.Equal(t, "workflow_completed", event.Event)
		assert.Equal(t, "completed", event.Status)
		assert.Equal(t, "EMAIL_THEN_SOCIAL", event.Data["flow_id"])
	})

	t.Run("Should deliver events for any execution to pattern subscribers", func(t *testing.T) {
		msgs, err := ns.SubscribeToAllExecutions(ctx)
		require.NoError(t, err)

		require.NoError(t, ns.PublishExecutionEvent(ctx, "exec-a", "workflow_started", "in_progress", nil))
		require.NoError(t, ns.PublishExecutionEvent(ctx, "exec-b", "workflow_failed", "failed", nil))

		first := waitForMessage(t, msgs)
		second := waitForMessage(t, msgs)
		channels := []string{first.Channel, second.Channel}
		assert.Contains(t, channels, "execution:exec-a")
		assert.Contains(t, channels, "execution:exec-b")
	})
}

func TestRedisNotificationSystem_EngagementStream(t *testing.T) {
	ns := newTestNotificationSystem(t)
	ctx := context.Background()

	t.Run("Should deliver engagement reports to the ingest subscriber", func(t *testing.T) {
		msgs, err := ns.SubscribeToEngagementReports(ctx)
		require.NoError(t, err)

		report := map[string]any{
			"channel":     "email",
			"reach":       1200,
			"engagements": 48,
			"source":      "provider_webhook",
		}
		require.NoError(t, ns.PublishEngagementReport(ctx, "exec-42", report))

		msg := waitForMessage(t, msgs)
		assert.Equal(t, "engagement:exec-42", msg.Channel)

		var decoded map[string]any
		require.NoError(t, json.Unmarshal(msg.Payload, &decoded))
		assert.Equal(t, "email", decoded["channel"])
		assert.EqualValues(t, 1200, decoded["reach"])
	})
}

func TestRedisNotificationSystem_Close(t *testing.T) {
	t.Run("Should be safe to close twice", func(t *testing.T) {
		s := miniredis.RunT(t)
		client := redis.NewClient(&redis.Options{Addr: s.Addr()})
		defer client.Close()

		ns, err := NewRedisNotificationSystem(client, nil)
		require.NoError(t, err)

		assert.NoError(t, ns.Close())
		assert.NoError(t, ns.Close())
	})

	t.Run("Should close subscriber channels on shutdown", func(t *testing.T) {
		s := miniredis.RunT(t)
		client := redis.NewClient(&redis.Options{Addr: s.Addr()})
		defer client.Close()

		ns, err := NewRedisNotificationSystem(client, nil)
		require.NoError(t, err)

		msgs, err := ns.Subscribe(context.Background(), "some-channel")
		require.NoError(t, err)

		require.NoError(t, ns.Close())

		select {
		case _, ok := <-msgs:
			assert.False(t, ok, "channel should be closed after shutdown")
		case <-time.After(2 * time.Second):
			t.Fatal("subscriber channel not closed after shutdown")
		}
	})
}
