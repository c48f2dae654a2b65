package domain

import "time"

// PublicStatus is the lifecycle state of an incident as shown to the public.
type PublicStatus string

// Public statuses.
const (
	PublicStatusInvestigating PublicStatus = "Investigating"
	PublicStatusIdentified    PublicStatus = "Identified"
	PublicStatusMonitoring    PublicStatus = "Monitoring"
	PublicStatusResolved      PublicStatus = "Resolved"
)

// IsResolved reports whether the incident no longer affects anything.
func (s PublicStatus) IsResolved() bool {
	return s == PublicStatusResolved
}

// IncidentSeverity is the operator-assigned impact level.
type IncidentSeverity string

// Severity levels.
const (
	SeverityCritical IncidentSeverity = "Critical"
	SeverityHigh     IncidentSeverity = "High"
	SeverityMedium   IncidentSeverity = "Medium"
	SeverityLow      IncidentSeverity = "Low"
)

// GlobalApplication marks an incident that affects every application.
const GlobalApplication = "CoFabri API"

// Incident is one reported operational issue. Incidents are owned by the
// content source; this service only reads them.
type Incident struct {
	ID               string           `json:"id"`
	TicketID         string           `json:"ticketId"`
	Title            string           `json:"title"`
	PublicStatus     PublicStatus     `json:"publicStatus"`
	Severity         IncidentSeverity `json:"severity"`
	Message          string           `json:"message"`
	CreatedDate      *time.Time       `json:"createdDate,omitempty"`
	UpdatedAt        *time.Time       `json:"updatedAt,omitempty"`
	ResolvedDate     *time.Time       `json:"resolvedDate,omitempty"`
	AffectedServices []string         `json:"affectedServices"`
	Application      string           `json:"application,omitempty"`
	Updates          string           `json:"updates,omitempty"`
}

// IsGlobal reports whether the incident is tagged with the platform-wide sentinel.
func (i Incident) IsGlobal() bool {
	return i.Application == GlobalApplication
}
