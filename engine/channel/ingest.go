package channel

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/sequentry/sequentry/engine/core"
	"github.com/sequentry/sequentry/engine/infra/cache"
	"github.com/sequentry/sequentry/pkg/logger"
	"github.com/sethvargo/go-retry"
	"github.com/tidwall/gjson"
)

const engagementChannelPrefix = "engagement:"

const (
	defaultIngestRetryAttempts = 3
	defaultIngestRetryBackoff  = 250 * time.Millisecond
)

// IngestWorker consumes provider engagement reports from the pub/sub stream
// and persists them as per-channel rows. Ingest is best-effort: a malformed
// report is discarded with a log line, and persistence failures never
// propagate to workflow outcomes.
type IngestWorker struct {
	notifications cache.NotificationSystem
	repo          EngagementRepository
	metrics       *Metrics
	retryAttempts uint64
	retryBackoff  time.Duration
}

// IngestOption configures the ingest worker.
type IngestOption func(*IngestWorker)

// WithIngestMetrics attaches ingest instrumentation.
func WithIngestMetrics(m *Metrics) IngestOption {
	return func(w *IngestWorker) {
		w.metrics = m
	}
}

// WithIngestRetry overrides the persistence retry budget.
func WithIngestRetry(attempts uint64, backoff time.Duration) IngestOption {
	return func(w *IngestWorker) {
		if attempts > 0 {
			w.retryAttempts = attempts
		}
		if backoff > 0 {
			w.retryBackoff = backoff
		}
	}
}

// NewIngestWorker wires the engagement ingest worker.
func NewIngestWorker(
	notifications cache.NotificationSystem,
	repo EngagementRepository,
	opts ...IngestOption,
) (*IngestWorker, error) {
	if notifications == nil {
		return nil, fmt.Errorf("notification system is required")
	}
	if repo == nil {
		return nil, fmt.Errorf("engagement repository is required")
	}
	w := &IngestWorker{
		notifications: notifications,
		repo:          repo,
		retryAttempts: defaultIngestRetryAttempts,
		retryBackoff:  defaultIngestRetryBackoff,
	}
	for _, opt := range opts {
		opt(w)
	}
	return w, nil
}

// Start subscribes to the engagement stream and consumes it until the
// context is canceled or the subscription closes.
func (w *IngestWorker) Start(ctx context.Context) error {
	log := logger.FromContext(ctx)
	messages, err := w.notifications.SubscribeToEngagementReports(ctx)
	if err != nil {
		return fmt.Errorf("subscribing to engagement reports: %w", err)
	}
	log.Info("engagement ingest worker started")
	for {
		select {
		case <-ctx.Done():
			log.Info("engagement ingest worker stopped")
			return nil
		case msg, ok := <-messages:
			if !ok {
				log.Info("engagement stream closed")
				return nil
			}
			w.handle(ctx, msg)
		}
	}
}

func (w *IngestWorker) handle(ctx context.Context, msg cache.Message) {
	log := logger.FromContext(ctx)
	row, err := parseReport(msg)
	if err != nil {
		log.Warn("discarding malformed engagement report",
			"channel", msg.Channel,
			"error", err,
		)
		w.metrics.OnDiscarded(ctx, "malformed")
		return
	}
	if err := w.persist(ctx, row); err != nil {
		log.Error("Failed to persist engagement report",
			"execution_id", row.ExecutionID,
			"channel", row.Channel,
			"error", err,
		)
		w.metrics.OnDiscarded(ctx, "store_error")
		return
	}
	w.metrics.OnIngested(ctx, row.Channel)
	log.Debug("engagement report persisted",
		"execution_id", row.ExecutionID,
		"channel", row.Channel,
		"reach", row.Reach,
		"engagements", row.Engagements,
	)
}

func (w *IngestWorker) persist(ctx context.Context, row *EngagementMetrics) error {
	backoff := retry.WithMaxRetries(w.retryAttempts, retry.NewExponential(w.retryBackoff))
	return retry.Do(ctx, backoff, func(ctx context.Context) error {
		if err := w.repo.Insert(ctx, row); err != nil {
			return retry.RetryableError(err)
		}
		return nil
	})
}

// parseReport extracts one engagement row from a provider report. The
// execution id comes from the stream channel name; a report may override it
// with an explicit execution_id field.
func parseReport(msg cache.Message) (*EngagementMetrics, error) {
	executionID := strings.TrimPrefix(msg.Channel, engagementChannelPrefix)
	if override := gjson.GetBytes(msg.Payload, "execution_id"); override.Exists() {
		executionID = override.String()
	}
	if executionID == "" || executionID == msg.Channel {
		return nil, fmt.Errorf("missing execution id")
	}
	raw := gjson.GetBytes(msg.Payload, "channel")
	if !raw.Exists() {
		return nil, fmt.Errorf("missing channel")
	}
	c, err := ParseChannel(raw.String())
	if err != nil {
		return nil, err
	}
	reach := gjson.GetBytes(msg.Payload, "reach").Int()
	engagements := gjson.GetBytes(msg.Payload, "engagements").Int()
	if reach < 0 || engagements < 0 {
		return nil, fmt.Errorf("negative engagement counters")
	}
	recordedAt := time.Now().UTC()
	if ts := gjson.GetBytes(msg.Payload, "recorded_at"); ts.Exists() {
		if parsed, parseErr := time.Parse(time.RFC3339, ts.String()); parseErr == nil {
			recordedAt = parsed.UTC()
		}
	}
	return &EngagementMetrics{
		ID:          core.MustNewID(),
		ExecutionID: core.ID(executionID),
		Channel:     c,
		Reach:       reach,
		Engagements: engagements,
		Source:      gjson.GetBytes(msg.Payload, "source").String(),
		RecordedAt:  recordedAt,
	}, nil
}
