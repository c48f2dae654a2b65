// Package status computes and serves the public system status: the single
// most severe active incident, its display color and label, per-application
// views, embeddable widgets and the incident feed.
package status

import (
	"github.com/cofabri/site-backend/internal/domain"
)

// Display colors.
const (
	ColorInvestigating = "#ef4444"
	ColorIdentified    = "#f97316"
	ColorMonitoring    = "#3b82f6"
	ColorOperational   = "#10b981"
	// ColorUnknown is shown when incidents could not be loaded at all.
	ColorUnknown = "#9ca3af"
)

// BaseLabel is the label shown when nothing is ongoing.
const BaseLabel = "System Status"

// Indicator is the colored dot and label that summarizes a set of incidents.
type Indicator struct {
	Color string `json:"color"`
	Label string `json:"label"`
	// Incident is the most severe active incident, nil when all is operational.
	Incident    *domain.Incident `json:"incident,omitempty"`
	ActiveCount int              `json:"activeCount"`
	Unknown     bool             `json:"unknown,omitempty"`
}

// Operational reports whether no incident is active.
func (i Indicator) Operational() bool {
	return i.Incident == nil && !i.Unknown
}

// Priority ranks a public status for aggregation. Unrecognized statuses rank 0.
func Priority(s domain.PublicStatus) int {
	switch s {
	case domain.PublicStatusInvestigating:
		return 3
	case domain.PublicStatusIdentified:
		return 2
	case domain.PublicStatusMonitoring:
		return 1
	}
	return 0
}

// Color maps a public status to its display color.
func Color(s domain.PublicStatus) string {
	switch s {
	case domain.PublicStatusInvestigating:
		return ColorInvestigating
	case domain.PublicStatusIdentified:
		return ColorIdentified
	case domain.PublicStatusMonitoring:
		return ColorMonitoring
	}
	return ColorOperational
}

// Active returns the incidents that are not resolved, in input order.
func Active(incidents []domain.Incident) []domain.Incident {
	active := make([]domain.Incident, 0, len(incidents))
	for _, inc := range incidents {
		if !inc.PublicStatus.IsResolved() {
			active = append(active, inc)
		}
	}
	return active
}

// MostSevere returns the active incident with the highest priority.
// Ties go to the earliest incident. Returns nil when none is active.
func MostSevere(incidents []domain.Incident) *domain.Incident {
	var worst *domain.Incident
	for i := range incidents {
		inc := incidents[i]
		if inc.PublicStatus.IsResolved() {
			continue
		}
		if worst == nil || Priority(inc.PublicStatus) > Priority(worst.PublicStatus) {
			worst = &inc
		}
	}
	return worst
}

// Aggregate summarizes incidents into a single indicator. It is total over
// any input, including nil and incidents with unknown statuses.
func Aggregate(incidents []domain.Incident) Indicator {
	worst := MostSevere(incidents)
	if worst == nil {
		return Indicator{Color: ColorOperational, Label: BaseLabel}
	}

	return Indicator{
		Color:       Color(worst.PublicStatus),
		Label:       BaseLabel + " - " + string(worst.PublicStatus),
		Incident:    worst,
		ActiveCount: len(Active(incidents)),
	}
}

// Unknown is the neutral indicator used when incidents are unavailable.
func Unknown() Indicator {
	return Indicator{Color: ColorUnknown, Label: BaseLabel, Unknown: true}
}
