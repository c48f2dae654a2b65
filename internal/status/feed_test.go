package status

import (
	"testing"
	"time"

	"github.com/cofabri/site-backend/internal/domain"
	"github.com/mmcdole/gofeed"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildFeed(t *testing.T) {
	created := time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)
	resolved := time.Date(2025, 3, 1, 11, 0, 0, 0, time.UTC)
	incidents := []domain.Incident{
		{
			TicketID:         "INC-7",
			Title:            "Login failures & timeouts",
			PublicStatus:     domain.PublicStatusResolved,
			Severity:         domain.SeverityCritical,
			Message:          "Users could not sign in.",
			CreatedDate:      &created,
			ResolvedDate:     &resolved,
			AffectedServices: []string{"Auth"},
			Updates:          "Rolled back the deploy.",
		},
		{TicketID: "INC-8", Title: "No dates", PublicStatus: "Scheduled"},
	}

	out, err := BuildFeed(FeedInfo{Title: "Status", StatusPageURL: "https://cofabri.com/status"}, incidents, resolved)
	require.NoError(t, err)

	feed, err := gofeed.NewParser().ParseString(string(out))
	require.NoError(t, err)
	assert.Equal(t, "Status", feed.Title)
	assert.Equal(t, "https://cofabri.com/status", feed.Link)
	require.Len(t, feed.Items, 2)

	item := feed.Items[0]
	assert.Equal(t, "[Resolved] Login failures & timeouts", item.Title)
	assert.Equal(t, "INC-7:Resolved", item.GUID)
	assert.Equal(t, []string{"Critical"}, item.Categories)
	assert.Equal(t, "https://cofabri.com/status#INC-7", item.Link)
	assert.Contains(t, item.Description, "Affected services: Auth")
	require.NotNil(t, item.PublishedParsed)
	assert.True(t, item.PublishedParsed.Equal(resolved))
	assert.Contains(t, item.Description, "Rolled back the deploy.")

	assert.Nil(t, feed.Items[1].PublishedParsed)
	assert.Empty(t, feed.Items[1].Categories)
	assert.Equal(t, "[Scheduled] No dates", feed.Items[1].Title)
}

func TestBuildFeed_Empty(t *testing.T) {
	out, err := BuildFeed(FeedInfo{Title: "Status"}, nil, time.Now())
	require.NoError(t, err)

	feed, err := gofeed.NewParser().ParseString(string(out))
	require.NoError(t, err)
	assert.Equal(t, "2.0", feed.FeedVersion)
	assert.Empty(t, feed.Items)
}
