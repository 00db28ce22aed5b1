package types

// HealthStatus is the state of the service or one of its dependencies.
type HealthStatus string

const (
	HealthStatusUp   HealthStatus = "UP"
	HealthStatusDown HealthStatus = "DOWN"
	// HealthStatusDegraded means feedback is still accepted but an auxiliary
	// dependency (the Redis live feed and rate limiter) is unreachable.
	HealthStatusDegraded HealthStatus = "DEGRADED"
)

// HealthComponent reports one dependency, keyed by name ("database", "redis")
// in HealthCheck.Components.
type HealthComponent struct {
	Status  HealthStatus `json:"status"`
	Details string       `json:"details,omitempty"`
}

// HealthCheck is the body of GET /health. Status is DOWN when the feedback
// store is unreachable, since no submission can be accepted then.
type HealthCheck struct {
	Status     HealthStatus               `json:"status"`
	Components map[string]HealthComponent `json:"components"`
	Version    string                     `json:"version"`
	Timestamp  string                     `json:"timestamp"`
	Uptime     string                     `json:"uptime"`
}
