package status

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/cofabri/site-backend/internal/airtable"
	"github.com/cofabri/site-backend/internal/domain"
	"github.com/cofabri/site-backend/internal/pkg/cache"
	"github.com/cofabri/site-backend/internal/pkg/ctxlog"
)

// CacheKey identifies the incident list in the cache store.
const CacheKey = "statuses"

// DefaultTable is the content source table holding incidents.
const DefaultTable = "System Status"

// Content source column names.
const (
	fieldTicketID         = "Ticket ID"
	fieldTitle            = "Title"
	fieldPublicStatus     = "Public Status"
	fieldSeverity         = "Severity"
	fieldMessage          = "Message"
	fieldCreatedDate      = "Created Date"
	fieldUpdatedAt        = "Last Updated"
	fieldResolvedDate     = "Resolved Date"
	fieldAffectedServices = "Affected Services"
	fieldApplication      = "Application"
	fieldUpdates          = "Updates"
)

// RecordLister reads records from the content source.
type RecordLister interface {
	ListRecords(ctx context.Context, table string, opts airtable.ListOptions) ([]airtable.Record, error)
}

// ServiceConfig configures the status service.
type ServiceConfig struct {
	Table      string
	MaxRecords int
	Cache      cache.Config
}

// Service loads incidents through the cache and summarizes them.
type Service struct {
	incidents *cache.Cache[[]domain.Incident]
}

// NewService creates a new status service.
func NewService(source RecordLister, cfg ServiceConfig) *Service {
	if cfg.Table == "" {
		cfg.Table = DefaultTable
	}

	fetch := func(ctx context.Context) ([]domain.Incident, error) {
		records, err := source.ListRecords(ctx, cfg.Table, airtable.ListOptions{
			Sort:       []airtable.Sort{{Field: fieldCreatedDate, Direction: "desc"}},
			MaxRecords: cfg.MaxRecords,
		})
		if err != nil {
			return nil, err
		}

		incidents := make([]domain.Incident, 0, len(records))
		for _, rec := range records {
			incidents = append(incidents, incidentFromRecord(rec))
		}
		return incidents, nil
	}

	return &Service{
		incidents: cache.New[[]domain.Incident](CacheKey, fetch, cfg.Cache),
	}
}

// Incidents returns every incident, newest first. A stale list is served
// when the content source is down and an older copy exists.
func (s *Service) Incidents(ctx context.Context) ([]domain.Incident, error) {
	incidents, _, err := s.incidents.GetOrStale(ctx)
	if err != nil {
		return nil, fmt.Errorf("load incidents: %w", err)
	}
	return incidents, nil
}

// Summary aggregates the incidents relevant to app, or all of them when app
// is empty. Load failures produce the neutral Unknown indicator.
func (s *Service) Summary(ctx context.Context, app string) Indicator {
	incidents, err := s.Incidents(ctx)
	if err != nil {
		ctxlog.FromContext(ctx).Warn("status unavailable, showing unknown state", "app", app, "error", err)
		return Unknown()
	}

	if app != "" {
		incidents = FilterForApp(incidents, app)
	}
	return Aggregate(incidents)
}

// Recent returns up to limit incidents ordered by their latest activity.
func (s *Service) Recent(ctx context.Context, limit int) ([]domain.Incident, error) {
	incidents, err := s.Incidents(ctx)
	if err != nil {
		return nil, err
	}

	sorted := make([]domain.Incident, len(incidents))
	copy(sorted, incidents)
	sort.SliceStable(sorted, func(i, j int) bool {
		return lastActivity(sorted[i]).After(lastActivity(sorted[j]))
	})

	if limit > 0 && len(sorted) > limit {
		sorted = sorted[:limit]
	}
	return sorted, nil
}

func lastActivity(inc domain.Incident) time.Time {
	for _, t := range []*time.Time{inc.ResolvedDate, inc.UpdatedAt, inc.CreatedDate} {
		if t != nil {
			return *t
		}
	}
	return time.Time{}
}

func incidentFromRecord(rec airtable.Record) domain.Incident {
	f := airtable.Fields(rec.Fields)

	inc := domain.Incident{
		ID:               rec.ID,
		TicketID:         f.String(fieldTicketID),
		Title:            f.String(fieldTitle),
		PublicStatus:     domain.PublicStatus(f.String(fieldPublicStatus)),
		Severity:         domain.IncidentSeverity(f.String(fieldSeverity)),
		Message:          f.String(fieldMessage),
		CreatedDate:      f.Time(fieldCreatedDate),
		UpdatedAt:        f.Time(fieldUpdatedAt),
		ResolvedDate:     f.Time(fieldResolvedDate),
		AffectedServices: f.Strings(fieldAffectedServices),
		Application:      f.String(fieldApplication),
		Updates:          f.String(fieldUpdates),
	}
	if inc.TicketID == "" {
		inc.TicketID = rec.ID
	}
	if inc.CreatedDate == nil && !rec.CreatedTime.IsZero() {
		created := rec.CreatedTime.UTC()
		inc.CreatedDate = &created
	}
	if inc.AffectedServices == nil {
		inc.AffectedServices = []string{}
	}
	return inc
}
