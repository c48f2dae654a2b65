package status

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/cofabri/site-backend/internal/domain"
	"github.com/gorilla/feeds"
)

// DefaultFeedLimit is the number of incidents in the RSS feed.
const DefaultFeedLimit = 20

// FeedInfo describes the feed channel.
type FeedInfo struct {
	Title         string
	StatusPageURL string
}

// BuildFeed renders incidents as an RSS 2.0 document.
func BuildFeed(info FeedInfo, incidents []domain.Incident, now time.Time) ([]byte, error) {
	feed := &feeds.Feed{
		Title:       info.Title,
		Link:        &feeds.Link{Href: info.StatusPageURL},
		Description: "Incidents and their status updates",
		Updated:     now.UTC(),
		Items:       make([]*feeds.Item, 0, len(incidents)),
	}

	for _, inc := range incidents {
		item := &feeds.Item{
			Title:       fmt.Sprintf("[%s] %s", inc.PublicStatus, inc.Title),
			Description: feedDescription(inc),
			Id:          fmt.Sprintf("%s:%s", inc.TicketID, inc.PublicStatus),
			IsPermaLink: "false",
		}
		if link := incidentLink(info.StatusPageURL, inc); link != "" {
			item.Link = &feeds.Link{Href: link}
		}
		if t := lastActivity(inc); !t.IsZero() {
			item.Created = t.UTC()
		}
		feed.Items = append(feed.Items, item)
	}

	channel := (&feeds.Rss{Feed: feed}).RssFeed()
	channel.Language = "en"
	channel.Ttl = int(RefreshInterval.Minutes())
	for i, inc := range incidents {
		channel.Items[i].Category = string(inc.Severity)
	}

	out, err := feeds.ToXML(channel)
	if err != nil {
		return nil, fmt.Errorf("encode feed: %w", err)
	}
	return []byte(out), nil
}

func incidentLink(base string, inc domain.Incident) string {
	if base == "" {
		return ""
	}
	u, err := url.Parse(base)
	if err != nil {
		return base
	}
	u.Fragment = inc.TicketID
	return u.String()
}

func feedDescription(inc domain.Incident) string {
	parts := []string{inc.Message}
	if len(inc.AffectedServices) > 0 {
		parts = append(parts, "Affected services: "+strings.Join(inc.AffectedServices, ", "))
	}
	if inc.Updates != "" {
		parts = append(parts, inc.Updates)
	}
	return strings.TrimSpace(strings.Join(parts, "\n\n"))
}
