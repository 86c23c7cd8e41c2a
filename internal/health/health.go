// Package health provides system health monitoring and status reporting.
package health

import (
	"time"

	"github.com/ductran/recoverd/internal/core/domain"
)

// SystemStatus represents the overall health state of the subsystem.
type SystemStatus string

const (
	StatusHealthy  SystemStatus = "healthy"
	StatusDegraded SystemStatus = "degraded"
	StatusCritical SystemStatus = "critical"
)

// Report contains the full health report.
type Report struct {
	Status             SystemStatus        `json:"status"`
	OpenBreakers       []string            `json:"open_breakers"`
	UnresolvedFailures int                 `json:"unresolved_failures"`
	LastValidation     domain.HealthStatus `json:"last_validation,omitempty"`
	LastValidationAt   time.Time           `json:"last_validation_at,omitzero"`
	Database           string              `json:"database"`
}
