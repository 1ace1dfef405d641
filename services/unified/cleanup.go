package unified

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
)

const alertTimeout = 10 * time.Second

// Thresholds decide when the cleanup loop reports a degraded cache.
type Thresholds struct {
	MinRequests     int
	MinHitRate      float64
	MaxAvgQueryTime time.Duration
}

var DefaultThresholds = Thresholds{
	MinRequests:     10,
	MinHitRate:      30,
	MaxAvgQueryTime: 150 * time.Millisecond,
}

// Degraded reports whether enough requests were seen and either the hit
// rate is below the minimum or the average query time above the maximum.
func (r Report) Degraded(th Thresholds) bool {
	if r.TotalRequests() < th.MinRequests {
		return false
	}
	maxAvg := float64(th.MaxAvgQueryTime) / float64(time.Millisecond)
	return r.CacheHitRate < th.MinHitRate || r.AvgQueryTimeMs > maxAvg
}

// Alerter is notified of degraded reports.
type Alerter interface {
	Alert(ctx context.Context, report Report) error
}

type CleanupLoop struct {
	service    *Service
	interval   time.Duration
	thresholds Thresholds
	alerter    Alerter
	logger     *zap.Logger
}

// NewCleanupLoop creates the periodic cache sweeper. alerter may be nil.
func NewCleanupLoop(service *Service, interval time.Duration, th Thresholds, alerter Alerter, logger *zap.Logger) *CleanupLoop {
	return &CleanupLoop{
		service:    service,
		interval:   interval,
		thresholds: th,
		alerter:    alerter,
		logger:     logger,
	}
}

// Start runs the loop until ctx is done or stop is called. stop is
// idempotent and returns once the loop goroutine has exited.
func (l *CleanupLoop) Start(ctx context.Context) (stop func()) {
	ctx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})

	go func() {
		defer close(done)
		ticker := time.NewTicker(l.interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				l.tick(ctx)
			}
		}
	}()

	var once sync.Once
	return func() {
		once.Do(func() {
			cancel()
			<-done
		})
	}
}

// tick sweeps expired entries and reports a degraded cache. It returns
// whether a report was emitted.
func (l *CleanupLoop) tick(ctx context.Context) bool {
	removed := l.service.cache.Cleanup()
	if removed > 0 {
		l.logger.Debug("expired cache entries removed", zap.Int("removed", removed))
	}

	report := l.service.Metrics()
	if !report.Degraded(l.thresholds) {
		return false
	}

	l.logger.Warn("cache performance degraded",
		zap.Int("cacheSize", report.CacheSize),
		zap.Float64("hitRate", report.CacheHitRate),
		zap.Float64("avgQueryTimeMs", report.AvgQueryTimeMs),
		zap.Int("optimizationSavings", report.OptimizationSavings),
		zap.Int("totalRequests", report.TotalRequests()))

	if l.alerter != nil {
		actx, cancel := context.WithTimeout(ctx, alertTimeout)
		defer cancel()
		if err := l.alerter.Alert(actx, report); err != nil {
			l.logger.Error("failed to send cache alert", zap.Error(err))
		}
	}
	return true
}
