package services

import (
	"context"
	"time"

	"github.com/iRail/occupancy-api/logger"
	"github.com/iRail/occupancy-api/types"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const (
	databasePingAttempts = 3
	defaultPingDelay     = 200 * time.Millisecond
)

// DatabasePinger is satisfied by *pgxpool.Pool.
type DatabasePinger interface {
	Ping(ctx context.Context) error
}

// HealthService reports on the dependencies of the submission endpoint.
// Postgres is required; Redis only backs the rate limiter and the live feed,
// which both degrade gracefully, so losing it marks the service DEGRADED.
type HealthService struct {
	dbPool      DatabasePinger
	redisClient redis.Cmdable
	version     string
	startTime   time.Time
	pingDelay   time.Duration
	log         *zap.SugaredLogger
}

func NewHealthService(dbPool DatabasePinger, redisClient redis.Cmdable, version string) *HealthService {
	return &HealthService{
		dbPool:      dbPool,
		redisClient: redisClient,
		version:     version,
		startTime:   time.Now(),
		pingDelay:   defaultPingDelay,
		log:         logger.GetLogger(),
	}
}

func (h *HealthService) CheckHealth(ctx context.Context) types.HealthCheck {
	components := make(map[string]types.HealthComponent)
	overallStatus := types.HealthStatusUp

	dbStatus := h.checkDatabase(ctx)
	components["database"] = dbStatus
	if dbStatus.Status == types.HealthStatusDown {
		overallStatus = types.HealthStatusDown
	}

	redisStatus := h.checkRedis(ctx)
	components["redis"] = redisStatus
	if redisStatus.Status != types.HealthStatusUp && overallStatus == types.HealthStatusUp {
		overallStatus = types.HealthStatusDegraded
	}

	return types.HealthCheck{
		Status:     overallStatus,
		Components: components,
		Version:    h.version,
		Timestamp:  time.Now().UTC().Format(time.RFC3339),
		Uptime:     time.Since(h.startTime).Round(time.Second).String(),
	}
}

func (h *HealthService) checkDatabase(ctx context.Context) types.HealthComponent {
	if h.dbPool == nil {
		return types.HealthComponent{Status: types.HealthStatusDown, Details: "Database not configured"}
	}

	var err error
	for attempt := 1; attempt <= databasePingAttempts; attempt++ {
		if err = h.dbPool.Ping(ctx); err == nil {
			return types.HealthComponent{Status: types.HealthStatusUp}
		}
		if attempt < databasePingAttempts {
			select {
			case <-ctx.Done():
				attempt = databasePingAttempts
			case <-time.After(h.pingDelay):
			}
		}
	}

	h.log.Errorw("Database health check failed", "error", err)
	return types.HealthComponent{
		Status:  types.HealthStatusDown,
		Details: "Database connection failed after multiple attempts",
	}
}

func (h *HealthService) checkRedis(ctx context.Context) types.HealthComponent {
	if h.redisClient == nil {
		return types.HealthComponent{Status: types.HealthStatusDegraded, Details: "Redis not configured"}
	}

	if err := h.redisClient.Ping(ctx).Err(); err != nil {
		h.log.Warnw("Redis health check failed", "error", err)
		return types.HealthComponent{
			Status:  types.HealthStatusDown,
			Details: "Redis connection failed",
		}
	}

	return types.HealthComponent{
		Status: types.HealthStatusUp,
	}
}
