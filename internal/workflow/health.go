package workflow

import (
	"context"

	"livesub/internal/preflight"
)

// StageHealth summarizes the readiness of a dependency a task relies on.
type StageHealth struct {
	Name   string `json:"name"`
	Ready  bool   `json:"ready"`
	Detail string `json:"detail,omitempty"`
}

// HealthyStage constructs a ready StageHealth record.
func HealthyStage(name string) StageHealth {
	return StageHealth{Name: name, Ready: true}
}

// UnhealthyStage constructs an unhealthy StageHealth record with context detail.
func UnhealthyStage(name, detail string) StageHealth {
	return StageHealth{Name: name, Ready: false, Detail: detail}
}

// Health runs the preflight checks and the binary inventory for the
// configured backends.
func (m *Manager) Health(ctx context.Context) []StageHealth {
	results := preflight.RunAll(ctx, m.cfg)
	out := make([]StageHealth, 0, len(results)+3)
	for _, r := range results {
		if r.Passed {
			health := HealthyStage(r.Name)
			health.Detail = r.Detail
			out = append(out, health)
			continue
		}
		out = append(out, UnhealthyStage(r.Name, r.Detail))
	}
	for _, status := range preflight.CheckSystemDeps(m.cfg) {
		switch {
		case status.Available:
			out = append(out, HealthyStage(status.Name))
		case status.Optional:
			health := HealthyStage(status.Name)
			health.Detail = status.Detail + " (optional)"
			out = append(out, health)
		default:
			out = append(out, UnhealthyStage(status.Name, status.Detail))
		}
	}
	return out
}
