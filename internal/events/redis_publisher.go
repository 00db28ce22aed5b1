package events

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/iRail/occupancy-api/logger"
	"github.com/iRail/occupancy-api/types"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// DefaultChannel is the Pub/Sub channel accepted reports are announced on.
const DefaultChannel = "occupancy:feedback"

// Config holds configuration for RedisPublisher
type Config struct {
	Channel        string
	PublishTimeout time.Duration
}

// DefaultConfig returns default configuration values
func DefaultConfig() Config {
	return Config{
		Channel:        DefaultChannel,
		PublishTimeout: 2 * time.Second,
	}
}

// metrics holds Prometheus metrics for the publisher
type metrics struct {
	publishLatency prometheus.Histogram
	errorCount     *prometheus.CounterVec
	eventCount     prometheus.Counter
}

var (
	metricsInstance *metrics
	metricsOnce     sync.Once
	defaultRegistry = prometheus.DefaultRegisterer
)

func newMetrics() *metrics {
	metricsOnce.Do(func() {
		metricsInstance = &metrics{
			publishLatency: promauto.With(defaultRegistry).NewHistogram(prometheus.HistogramOpts{
				Name:    "occupancy_event_publish_duration_seconds",
				Help:    "Time taken to publish occupancy events",
				Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1},
			}),
			errorCount: promauto.With(defaultRegistry).NewCounterVec(prometheus.CounterOpts{
				Name: "occupancy_event_errors_total",
				Help: "Occupancy events that could not be published",
			}, []string{"type"}),
			eventCount: promauto.With(defaultRegistry).NewCounter(prometheus.CounterOpts{
				Name: "occupancy_events_published_total",
				Help: "Occupancy events published to the live feed",
			}),
		}
	})
	return metricsInstance
}

// For testing purposes - reset metrics
func resetMetricsForTesting() {
	defaultRegistry = prometheus.NewRegistry()
	metricsInstance = nil
	metricsOnce = sync.Once{}
}

// RedisPublisher announces accepted occupancy reports on a Redis Pub/Sub
// channel.
type RedisPublisher struct {
	rdb     redis.Cmdable
	log     *zap.SugaredLogger
	metrics *metrics
	config  Config
	newID   func() string
	now     func() time.Time
}

// NewRedisPublisher creates a new RedisPublisher instance
func NewRedisPublisher(rdb redis.Cmdable, cfg ...Config) *RedisPublisher {
	config := DefaultConfig()
	if len(cfg) > 0 {
		config = cfg[0]
	}
	if config.Channel == "" {
		config.Channel = DefaultChannel
	}
	if config.PublishTimeout <= 0 {
		config.PublishTimeout = DefaultConfig().PublishTimeout
	}

	return &RedisPublisher{
		rdb:     rdb,
		log:     logger.GetLogger().Named("events"),
		metrics: newMetrics(),
		config:  config,
		newID:   uuid.NewString,
		now:     time.Now,
	}
}

// Channel returns the channel events are published on.
func (p *RedisPublisher) Channel() string {
	return p.config.Channel
}

// PublishFeedback wraps feedback in an OCCUPANCY_REPORTED event and publishes it.
func (p *RedisPublisher) PublishFeedback(ctx context.Context, feedback *types.OccupancyFeedback) error {
	start := time.Now()
	defer func() {
		p.metrics.publishLatency.Observe(time.Since(start).Seconds())
	}()

	event := types.OccupancyEvent{
		ID:        p.newID(),
		Type:      types.EventTypeOccupancyReported,
		Timestamp: p.now().UTC(),
		Feedback:  feedback,
	}

	data, err := json.Marshal(event)
	if err != nil {
		p.metrics.errorCount.WithLabelValues("marshal").Inc()
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, p.config.PublishTimeout)
	defer cancel()

	if err := p.rdb.Publish(ctx, p.config.Channel, string(data)).Err(); err != nil {
		p.metrics.errorCount.WithLabelValues("publish").Inc()
		return fmt.Errorf("failed to publish event: %w", err)
	}

	p.metrics.eventCount.Inc()
	p.log.Debugw("Published occupancy event",
		"eventID", event.ID,
		"channel", p.config.Channel,
		"vehicle", feedback.Vehicle)
	return nil
}
