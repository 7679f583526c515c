package monitoring

import (
	"context"
	"runtime"
	"runtime/debug"
	"sync"
	"time"

	"github.com/sequentry/sequentry/engine/infra/monitoring/metrics"
	"github.com/sequentry/sequentry/pkg/logger"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Build variables set via ldflags during compilation.
var (
	Version    = "unknown"
	CommitHash = "unknown"
)

var (
	buildInfo      metric.Float64Gauge
	uptimeGauge    metric.Float64ObservableGauge
	startTime      time.Time
	systemInitOnce sync.Once
)

func initSystemMetrics(ctx context.Context, meter metric.Meter) {
	log := logger.FromContext(ctx)
	systemInitOnce.Do(func() {
		var err error
		buildInfo, err = meter.Float64Gauge(
			metrics.MetricName("build_info"),
			metric.WithDescription("Build information (value=1)"),
		)
		if err != nil {
			log.Error("Failed to create build info gauge", "error", err)
		}
		uptimeGauge, err = meter.Float64ObservableGauge(
			metrics.MetricName("uptime_seconds"),
			metric.WithDescription("Service uptime in seconds"),
		)
		if err != nil {
			log.Error("Failed to create uptime gauge", "error", err)
			return
		}
		startTime = time.Now()
		if _, err = meter.RegisterCallback(func(_ context.Context, o metric.Observer) error {
			o.ObserveFloat64(uptimeGauge, time.Since(startTime).Seconds())
			return nil
		}, uptimeGauge); err != nil {
			log.Error("Failed to register uptime callback", "error", err)
		}
		recordBuildInfo(ctx)
	})
}

func recordBuildInfo(ctx context.Context) {
	if buildInfo == nil {
		return
	}
	version, commit, goVersion := getBuildInfo()
	buildInfo.Record(ctx, 1, metric.WithAttributes(
		attribute.String("version", version),
		attribute.String("commit", commit),
		attribute.String("go_version", goVersion),
	))
}

func getBuildInfo() (version, commit, goVersion string) {
	version = Version
	commit = CommitHash
	if info, ok := debug.ReadBuildInfo(); ok {
		if version == "unknown" && info.Main.Version != "" && info.Main.Version != "(devel)" {
			version = info.Main.Version
		}
		if commit == "unknown" {
			for _, setting := range info.Settings {
				if setting.Key == "vcs.revision" {
					commit = setting.Value
					break
				}
			}
		}
	}
	goVersion = runtime.Version()
	return version, commit, goVersion
}
