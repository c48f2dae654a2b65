package domain

import "time"

// AppStatus represents the release stage of an application.
type AppStatus string

// Application statuses.
const (
	AppStatusLive          AppStatus = "Live"
	AppStatusBeta          AppStatus = "Beta"
	AppStatusAlpha         AppStatus = "Alpha"
	AppStatusInDevelopment AppStatus = "In Development"
	AppStatusComingSoon    AppStatus = "Coming Soon"
)

// MaxAppFeatures is the number of feature bullets an application card shows.
const MaxAppFeatures = 3

// IsValid checks if the application status is known.
func (s AppStatus) IsValid() bool {
	switch s {
	case AppStatusLive, AppStatusBeta, AppStatusAlpha,
		AppStatusInDevelopment, AppStatusComingSoon:
		return true
	}
	return false
}

// Rank orders statuses from most to least mature. Unknown statuses sort last.
func (s AppStatus) Rank() int {
	switch s {
	case AppStatusLive:
		return 0
	case AppStatusBeta:
		return 1
	case AppStatusAlpha:
		return 2
	case AppStatusInDevelopment:
		return 3
	case AppStatusComingSoon:
		return 4
	}
	return 5
}

// Application is a catalog entry for one product.
type Application struct {
	ID          string     `json:"id"`
	Name        string     `json:"name"`
	Slug        string     `json:"slug"`
	Description string     `json:"description"`
	URL         string     `json:"url,omitempty"`
	Screenshot  string     `json:"screenshot,omitempty"`
	Status      AppStatus  `json:"status"`
	Category    string     `json:"category,omitempty"`
	Features    []string   `json:"features"`
	LaunchDate  *time.Time `json:"launchDate,omitempty"`
	ReleaseDate *time.Time `json:"releaseDate,omitempty"`
}
