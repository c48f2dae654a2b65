package domain

import "time"

// Article is a knowledge base entry.
type Article struct {
	ID          string     `json:"id"`
	Title       string     `json:"title"`
	Slug        string     `json:"slug"`
	Category    string     `json:"category,omitempty"`
	Summary     string     `json:"summary,omitempty"`
	Body        string     `json:"body"`
	BodyHTML    string     `json:"bodyHtml"`
	Tags        []string   `json:"tags"`
	PublishedAt *time.Time `json:"publishedAt,omitempty"`
}

// BlogPost is a published blog entry.
type BlogPost struct {
	ID          string     `json:"id"`
	Title       string     `json:"title"`
	Slug        string     `json:"slug"`
	Author      string     `json:"author,omitempty"`
	Excerpt     string     `json:"excerpt,omitempty"`
	Body        string     `json:"body"`
	BodyHTML    string     `json:"bodyHtml"`
	CoverImage  string     `json:"coverImage,omitempty"`
	PublishedAt *time.Time `json:"publishedAt,omitempty"`
}

// RoadmapStatus is the delivery state of a roadmap item.
type RoadmapStatus string

// Roadmap statuses.
const (
	RoadmapStatusPlanned    RoadmapStatus = "Planned"
	RoadmapStatusInProgress RoadmapStatus = "In Progress"
	RoadmapStatusCompleted  RoadmapStatus = "Completed"
)

// RoadmapItem is a planned or shipped feature.
type RoadmapItem struct {
	ID              string        `json:"id"`
	Title           string        `json:"title"`
	Description     string        `json:"description"`
	DescriptionHTML string        `json:"descriptionHtml"`
	Status          RoadmapStatus `json:"status"`
	Quarter         string        `json:"quarter,omitempty"`
	Application     string        `json:"application,omitempty"`
}

// Testimonial is a customer quote shown on the marketing pages.
type Testimonial struct {
	ID      string `json:"id"`
	Author  string `json:"author"`
	Role    string `json:"role,omitempty"`
	Company string `json:"company,omitempty"`
	Quote   string `json:"quote"`
	Rating  int    `json:"rating,omitempty"`
}
