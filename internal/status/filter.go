package status

import (
	"strings"

	"github.com/cofabri/site-backend/internal/domain"
)

// FilterForApp narrows incidents to those relevant for one application.
//
// An incident is kept when it is global, when its application matches target
// case-insensitively, or when any affected service contains target as a
// case-insensitive substring. Input order is preserved. An empty target only
// keeps global incidents.
func FilterForApp(incidents []domain.Incident, target string) []domain.Incident {
	needle := strings.ToLower(target)

	filtered := make([]domain.Incident, 0, len(incidents))
	for _, inc := range incidents {
		if affectsApp(inc, needle) {
			filtered = append(filtered, inc)
		}
	}
	return filtered
}

func affectsApp(inc domain.Incident, needle string) bool {
	if inc.IsGlobal() {
		return true
	}
	if needle == "" {
		return false
	}
	if inc.Application != "" && strings.ToLower(inc.Application) == needle {
		return true
	}
	for _, svc := range inc.AffectedServices {
		if strings.Contains(strings.ToLower(svc), needle) {
			return true
		}
	}
	return false
}
