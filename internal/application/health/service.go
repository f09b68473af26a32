package health

import (
	"context"
	"time"

	corehealth "facturalo/ms_cfdi_core/internal/core/health"
)

// Metadata contains immutable metadata about the running service.
type Metadata struct {
	Service     string
	Version     string
	Environment string
}

// Pinger reports whether a dependency is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Service exposes the availability snapshot to adapters.
type Service struct {
	meta      Metadata
	database  Pinger
	startedAt time.Time
}

// NewService builds the health service. database may be nil when the check
// should not touch storage.
func NewService(meta Metadata, database Pinger) *Service {
	return &Service{
		meta:      meta,
		database:  database,
		startedAt: time.Now().UTC(),
	}
}

// Status returns the current availability snapshot. A failing database ping
// degrades the status without hiding the rest of the report.
func (s *Service) Status(ctx context.Context) corehealth.Status {
	uptime := time.Since(s.startedAt)
	status := corehealth.Status{
		Service:     s.meta.Service,
		Version:     s.meta.Version,
		Environment: s.meta.Environment,
		Status:      "UP",
		StartedAt:   s.startedAt,
		Uptime:      uptime.String(),
		UptimeSecs:  int64(uptime.Seconds()),
	}

	if s.database != nil {
		if err := s.database.Ping(ctx); err != nil {
			status.Status = "DEGRADED"
			status.Dependencies = append(status.Dependencies, "database: "+err.Error())
		} else {
			status.Dependencies = append(status.Dependencies, "database: ok")
		}
	}

	return status
}
