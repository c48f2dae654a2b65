package content

import (
	"strings"
	"time"

	"github.com/cofabri/site-backend/internal/airtable"
	"github.com/cofabri/site-backend/internal/domain"
	"github.com/cofabri/site-backend/internal/markdown"
)

// Content source column names.
const (
	fieldName          = "Name"
	fieldSlug          = "Slug"
	fieldDescription   = "Description"
	fieldURL           = "URL"
	fieldScreenshot    = "Screenshot"
	fieldStatus        = "Status"
	fieldCategory      = "Category"
	fieldFeatures      = "Features"
	fieldLaunchDate    = "Launch Date"
	fieldReleaseDate   = "Release Date"
	fieldLastModified  = "Last Modified"
	fieldTitle         = "Title"
	fieldSummary       = "Summary"
	fieldContent       = "Content"
	fieldTags          = "Tags"
	fieldPublished     = "Published"
	fieldPublishedDate = "Published Date"
	fieldAuthor        = "Author"
	fieldExcerpt       = "Excerpt"
	fieldCoverImage    = "Cover Image"
	fieldQuarter       = "Quarter"
	fieldApplication   = "Application"
	fieldOrder         = "Order"
	fieldRole          = "Role"
	fieldCompany       = "Company"
	fieldQuote         = "Quote"
	fieldRating        = "Rating"
	fieldApproved      = "Approved"
)

// featureFields are the single-feature columns used before Features existed.
var featureFields = []string{"Feature 1", "Feature 2", "Feature 3"}

type mapper struct {
	renderer     *markdown.Renderer
	assetBaseURL string
}

// version picks the timestamp used to cache-bust images: the record's last
// modification when the table exposes it, otherwise the fetch time.
func version(f airtable.Fields, fetchedAt time.Time) time.Time {
	if t := f.Time(fieldLastModified); t != nil {
		return *t
	}
	return fetchedAt
}

func (m *mapper) application(rec airtable.Record, fetchedAt time.Time) (domain.Application, bool) {
	f := airtable.Fields(rec.Fields)
	name := f.String(fieldName)
	if name == "" {
		return domain.Application{}, false
	}

	features := f.Strings(fieldFeatures)
	if len(features) == 0 {
		for _, key := range featureFields {
			if s := f.String(key); s != "" {
				features = append(features, s)
			}
		}
	}
	if len(features) > domain.MaxAppFeatures {
		features = features[:domain.MaxAppFeatures]
	}
	if features == nil {
		features = []string{}
	}

	slug := f.String(fieldSlug)
	if slug == "" {
		slug = Slugify(name)
	}

	return domain.Application{
		ID:          rec.ID,
		Name:        name,
		Slug:        slug,
		Description: f.String(fieldDescription),
		URL:         f.String(fieldURL),
		Screenshot:  NormalizeImageURL(f.AttachmentURL(fieldScreenshot), m.assetBaseURL, version(f, fetchedAt)),
		Status:      domain.AppStatus(f.String(fieldStatus)),
		Category:    f.String(fieldCategory),
		Features:    features,
		LaunchDate:  f.Time(fieldLaunchDate),
		ReleaseDate: f.Time(fieldReleaseDate),
	}, true
}

func (m *mapper) article(rec airtable.Record, _ time.Time) (domain.Article, bool) {
	f := airtable.Fields(rec.Fields)
	title := f.String(fieldTitle)
	if title == "" {
		return domain.Article{}, false
	}

	body := f.String(fieldContent)
	bodyHTML := m.renderer.Render(body)
	summary := f.String(fieldSummary)
	if summary == "" {
		summary = markdown.Excerpt(bodyHTML, articleSummaryLength)
	}

	slug := f.String(fieldSlug)
	if slug == "" {
		slug = Slugify(title)
	}

	tags := f.Strings(fieldTags)
	if tags == nil {
		tags = []string{}
	}

	return domain.Article{
		ID:          rec.ID,
		Title:       title,
		Slug:        slug,
		Category:    f.String(fieldCategory),
		Summary:     summary,
		Body:        body,
		BodyHTML:    bodyHTML,
		Tags:        tags,
		PublishedAt: f.Time(fieldPublishedDate),
	}, true
}

func (m *mapper) post(rec airtable.Record, fetchedAt time.Time) (domain.BlogPost, bool) {
	f := airtable.Fields(rec.Fields)
	title := f.String(fieldTitle)
	if title == "" {
		return domain.BlogPost{}, false
	}

	body := f.String(fieldContent)
	bodyHTML := m.renderer.Render(body)
	excerpt := f.String(fieldExcerpt)
	if excerpt == "" {
		excerpt = markdown.Excerpt(bodyHTML, postExcerptLength)
	}

	slug := f.String(fieldSlug)
	if slug == "" {
		slug = Slugify(title)
	}

	published := f.Time(fieldPublishedDate)
	if published == nil && !rec.CreatedTime.IsZero() {
		created := rec.CreatedTime.UTC()
		published = &created
	}

	return domain.BlogPost{
		ID:          rec.ID,
		Title:       title,
		Slug:        slug,
		Author:      f.String(fieldAuthor),
		Excerpt:     excerpt,
		Body:        body,
		BodyHTML:    bodyHTML,
		CoverImage:  NormalizeImageURL(f.AttachmentURL(fieldCoverImage), m.assetBaseURL, version(f, fetchedAt)),
		PublishedAt: published,
	}, true
}

func (m *mapper) roadmapItem(rec airtable.Record, _ time.Time) (domain.RoadmapItem, bool) {
	f := airtable.Fields(rec.Fields)
	title := f.String(fieldTitle)
	if title == "" {
		return domain.RoadmapItem{}, false
	}

	description := f.String(fieldDescription)
	return domain.RoadmapItem{
		ID:              rec.ID,
		Title:           title,
		Description:     description,
		DescriptionHTML: m.renderer.Render(description),
		Status:          domain.RoadmapStatus(f.String(fieldStatus)),
		Quarter:         f.String(fieldQuarter),
		Application:     f.String(fieldApplication),
	}, true
}

func (m *mapper) testimonial(rec airtable.Record, _ time.Time) (domain.Testimonial, bool) {
	f := airtable.Fields(rec.Fields)
	quote := strings.TrimSpace(f.String(fieldQuote))
	if quote == "" {
		return domain.Testimonial{}, false
	}

	rating := f.Int(fieldRating)
	if rating < 0 || rating > 5 {
		rating = 0
	}

	return domain.Testimonial{
		ID:      rec.ID,
		Author:  f.String(fieldName),
		Role:    f.String(fieldRole),
		Company: f.String(fieldCompany),
		Quote:   quote,
		Rating:  rating,
	}, true
}
