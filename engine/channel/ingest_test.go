package channel_test

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/sequentry/sequentry/engine/channel"
	"github.com/sequentry/sequentry/engine/core"
	"github.com/sequentry/sequentry/engine/infra/cache"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type flakyEngagementRepo struct {
	inner        *channel.MemoryEngagementRepository
	failuresLeft atomic.Int32
}

func (r *flakyEngagementRepo) Insert(ctx context.Context, metrics *channel.EngagementMetrics) error {
	if r.failuresLeft.Add(-1) >= 0 {
		return errors.New("store unavailable")
	}
	return r.inner.Insert(ctx, metrics)
}

func (r *flakyEngagementRepo) ByExecution(ctx context.Context, executionID core.ID) ([]*channel.EngagementMetrics, error) {
	return r.inner.ByExecution(ctx, executionID)
}

type ingestHarness struct {
	ns     cache.NotificationSystem
	client *redis.Client
}

func startIngestWorker(t *testing.T, repo channel.EngagementRepository) *ingestHarness {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	ns, err := cache.NewRedisNotificationSystem(client, nil)
	require.NoError(t, err)
	t.Cleanup(func() { ns.Close() })

	worker, err := channel.NewIngestWorker(ns, repo, channel.WithIngestRetry(3, time.Millisecond))
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = worker.Start(ctx)
	}()
	t.Cleanup(func() {
		cancel()
		select {
		case <-done:
		case <-time.After(2 * time.Second):
			t.Error("ingest worker did not stop")
		}
	})

	// The publish receiver count confirms the pattern subscription is live.
	require.Eventually(t, func() bool {
		return client.Publish(context.Background(), "engagement:probe", `{}`).Val() > 0
	}, 2*time.Second, 10*time.Millisecond, "ingest worker never subscribed")

	return &ingestHarness{ns: ns, client: client}
}

func waitForRows(t *testing.T, repo channel.EngagementRepository, executionID core.ID, want int) []*channel.EngagementMetrics {
	t.Helper()
	var rows []*channel.EngagementMetrics
	require.Eventually(t, func() bool {
		var err error
		rows, err = repo.ByExecution(context.Background(), executionID)
		return err == nil && len(rows) == want
	}, 2*time.Second, 10*time.Millisecond)
	return rows
}

func TestIngestWorker(t *testing.T) {
	ctx := context.Background()

	t.Run("Should persist a provider engagement report", func(t *testing.T) {
		repo := channel.NewMemoryEngagementRepository()
		h := startIngestWorker(t, repo)

		executionID := core.MustNewID()
		require.NoError(t, h.ns.PublishEngagementReport(ctx, executionID.String(), map[string]any{
			"channel":     "email",
			"reach":       1200,
			"engagements": 48,
			"source":      "provider_webhook",
		}))

		rows := waitForRows(t, repo, executionID, 1)
		assert.Equal(t, channel.ChannelEmail, rows[0].Channel)
		assert.Equal(t, int64(1200), rows[0].Reach)
		assert.Equal(t, int64(48), rows[0].Engagements)
		assert.Equal(t, "provider_webhook", rows[0].Source)
		assert.False(t, rows[0].ID.IsZero())
	})

	t.Run("Should derive the execution id from the stream channel", func(t *testing.T) {
		repo := channel.NewMemoryEngagementRepository()
		h := startIngestWorker(t, repo)

		executionID := core.MustNewID()
		require.NoError(t, h.ns.PublishEngagementReport(ctx, executionID.String(), map[string]any{
			"channel": "social",
			"reach":   300,
		}))

		rows := waitForRows(t, repo, executionID, 1)
		assert.Equal(t, executionID, rows[0].ExecutionID)
	})

	t.Run("Should prefer an explicit execution id in the report", func(t *testing.T) {
		repo := channel.NewMemoryEngagementRepository()
		h := startIngestWorker(t, repo)

		explicit := core.MustNewID()
		require.NoError(t, h.ns.PublishEngagementReport(ctx, core.MustNewID().String(), map[string]any{
			"execution_id": explicit.String(),
			"channel":      "email",
			"reach":        10,
		}))

		rows := waitForRows(t, repo, explicit, 1)
		assert.Equal(t, explicit, rows[0].ExecutionID)
	})

	t.Run("Should discard malformed reports and keep consuming", func(t *testing.T) {
		repo := channel.NewMemoryEngagementRepository()
		h := startIngestWorker(t, repo)

		executionID := core.MustNewID()
		require.NoError(t, h.ns.PublishEngagementReport(ctx, executionID.String(), map[string]any{
			"channel": "carrier-pigeon",
			"reach":   50,
		}))
		require.NoError(t, h.ns.PublishEngagementReport(ctx, executionID.String(), map[string]any{
			"reach": 50,
		}))
		require.NoError(t, h.ns.PublishEngagementReport(ctx, executionID.String(), map[string]any{
			"channel": "email",
			"reach":   -1,
		}))
		require.NoError(t, h.ns.PublishEngagementReport(ctx, executionID.String(), map[string]any{
			"channel":     "email",
			"reach":       900,
			"engagements": 12,
		}))

		rows := waitForRows(t, repo, executionID, 1)
		assert.Equal(t, int64(900), rows[0].Reach)
	})

	t.Run("Should retry transient store errors", func(t *testing.T) {
		repo := &flakyEngagementRepo{inner: channel.NewMemoryEngagementRepository()}
		repo.failuresLeft.Store(2)
		h := startIngestWorker(t, repo)

		executionID := core.MustNewID()
		require.NoError(t, h.ns.PublishEngagementReport(ctx, executionID.String(), map[string]any{
			"channel":     "social",
			"reach":       400,
			"engagements": 9,
		}))

		rows := waitForRows(t, repo, executionID, 1)
		assert.Equal(t, int64(400), rows[0].Reach)
	})

	t.Run("Should require its collaborators", func(t *testing.T) {
		_, err := channel.NewIngestWorker(nil, channel.NewMemoryEngagementRepository())
		assert.Error(t, err)
		repo := channel.NewMemoryEngagementRepository()
		h := startIngestWorker(t, repo)
		_, err = channel.NewIngestWorker(h.ns, nil)
		assert.Error(t, err)
	})
}
