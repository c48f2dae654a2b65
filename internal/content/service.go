// Package content serves the editorial data of the site: the application
// catalog, knowledge base, blog, roadmap and testimonials.
package content

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/cofabri/site-backend/internal/airtable"
	"github.com/cofabri/site-backend/internal/domain"
	"github.com/cofabri/site-backend/internal/markdown"
	"github.com/cofabri/site-backend/internal/pkg/cache"
)

// Cache keys, one per resource type.
const (
	KeyApps         = "apps"
	KeyArticles     = "knowledge-base"
	KeyPosts        = "blog"
	KeyRoadmap      = "roadmap"
	KeyTestimonials = "testimonials"
)

// Excerpt lengths in runes.
const (
	articleSummaryLength = 160
	postExcerptLength    = 220
)

// Tables names the content source tables.
type Tables struct {
	Apps          string
	KnowledgeBase string
	Blog          string
	Roadmap       string
	Testimonials  string
}

// DefaultTables returns the table names used by the production base.
func DefaultTables() Tables {
	return Tables{
		Apps:          "Apps",
		KnowledgeBase: "Knowledge Base",
		Blog:          "Blog",
		Roadmap:       "Roadmap",
		Testimonials:  "Testimonials",
	}
}

// RecordLister reads records from the content source.
type RecordLister interface {
	ListRecords(ctx context.Context, table string, opts airtable.ListOptions) ([]airtable.Record, error)
}

// Config configures the content service.
type Config struct {
	Tables Tables
	// AssetBaseURL resolves relative image paths.
	AssetBaseURL string
	Cache        cache.Config
}

// Service reads content through one cache per resource type.
type Service struct {
	apps         *cache.Cache[[]domain.Application]
	articles     *cache.Cache[[]domain.Article]
	posts        *cache.Cache[[]domain.BlogPost]
	roadmap      *cache.Cache[[]domain.RoadmapItem]
	testimonials *cache.Cache[[]domain.Testimonial]
}

// NewService creates a new content service.
func NewService(source RecordLister, renderer *markdown.Renderer, cfg Config) *Service {
	defaults := DefaultTables()
	if cfg.Tables.Apps == "" {
		cfg.Tables.Apps = defaults.Apps
	}
	if cfg.Tables.KnowledgeBase == "" {
		cfg.Tables.KnowledgeBase = defaults.KnowledgeBase
	}
	if cfg.Tables.Blog == "" {
		cfg.Tables.Blog = defaults.Blog
	}
	if cfg.Tables.Roadmap == "" {
		cfg.Tables.Roadmap = defaults.Roadmap
	}
	if cfg.Tables.Testimonials == "" {
		cfg.Tables.Testimonials = defaults.Testimonials
	}

	m := &mapper{renderer: renderer, assetBaseURL: cfg.AssetBaseURL}

	return &Service{
		apps: newListCache(source, KeyApps, cfg.Tables.Apps, airtable.ListOptions{
			Sort: []airtable.Sort{{Field: fieldName, Direction: "asc"}},
		}, cfg.Cache, m.application),
		articles: newListCache(source, KeyArticles, cfg.Tables.KnowledgeBase, airtable.ListOptions{
			FilterByFormula: "{" + fieldPublished + "}",
			Sort:            []airtable.Sort{{Field: fieldTitle, Direction: "asc"}},
		}, cfg.Cache, m.article),
		posts: newListCache(source, KeyPosts, cfg.Tables.Blog, airtable.ListOptions{
			FilterByFormula: "{" + fieldPublished + "}",
			Sort:            []airtable.Sort{{Field: fieldPublishedDate, Direction: "desc"}},
		}, cfg.Cache, m.post),
		roadmap: newListCache(source, KeyRoadmap, cfg.Tables.Roadmap, airtable.ListOptions{
			Sort: []airtable.Sort{{Field: fieldOrder, Direction: "asc"}},
		}, cfg.Cache, m.roadmapItem),
		testimonials: newListCache(source, KeyTestimonials, cfg.Tables.Testimonials, airtable.ListOptions{
			FilterByFormula: "{" + fieldApproved + "}",
		}, cfg.Cache, m.testimonial),
	}
}

// newListCache caches the mapped records of one table. mapFn drops a record
// by returning false.
func newListCache[T any](
	source RecordLister,
	key, table string,
	opts airtable.ListOptions,
	cfg cache.Config,
	mapFn func(airtable.Record, time.Time) (T, bool),
) *cache.Cache[[]T] {
	now := cfg.Now
	if now == nil {
		now = time.Now
	}

	fetch := func(ctx context.Context) ([]T, error) {
		records, err := source.ListRecords(ctx, table, opts)
		if err != nil {
			return nil, err
		}

		fetchedAt := now()
		items := make([]T, 0, len(records))
		for _, rec := range records {
			if item, ok := mapFn(rec, fetchedAt); ok {
				items = append(items, item)
			}
		}
		return items, nil
	}

	return cache.New[[]T](key, fetch, cfg)
}

func load[T any](ctx context.Context, c *cache.Cache[[]T]) ([]T, error) {
	items, _, err := c.GetOrStale(ctx)
	if err != nil {
		return nil, fmt.Errorf("load %s: %w", c.Key(), err)
	}
	return items, nil
}

// ListApps returns the catalog ordered by release stage, then name.
// A non-empty status keeps only applications in that stage.
func (s *Service) ListApps(ctx context.Context, status domain.AppStatus) ([]domain.Application, error) {
	if status != "" && !status.IsValid() {
		return nil, ErrInvalidStatus
	}

	apps, err := load(ctx, s.apps)
	if err != nil {
		return nil, err
	}

	out := make([]domain.Application, 0, len(apps))
	for _, app := range apps {
		if status == "" || app.Status == status {
			out = append(out, app)
		}
	}

	sort.SliceStable(out, func(i, j int) bool {
		ri, rj := out[i].Status.Rank(), out[j].Status.Rank()
		if ri != rj {
			return ri < rj
		}
		return strings.ToLower(out[i].Name) < strings.ToLower(out[j].Name)
	})
	return out, nil
}

// GetApp finds an application by record ID or slug.
func (s *Service) GetApp(ctx context.Context, idOrSlug string) (*domain.Application, error) {
	apps, err := load(ctx, s.apps)
	if err != nil {
		return nil, err
	}

	for i := range apps {
		if apps[i].ID == idOrSlug || strings.EqualFold(apps[i].Slug, idOrSlug) {
			return &apps[i], nil
		}
	}
	return nil, ErrNotFound
}

// ArticleFilter narrows the knowledge base listing.
type ArticleFilter struct {
	Category string
	Query    string
}

// ListArticles returns knowledge base articles matching filter. Query is a
// case-insensitive match against title, summary, body and tags.
func (s *Service) ListArticles(ctx context.Context, filter ArticleFilter) ([]domain.Article, error) {
	articles, err := load(ctx, s.articles)
	if err != nil {
		return nil, err
	}

	query := strings.ToLower(strings.TrimSpace(filter.Query))
	out := make([]domain.Article, 0, len(articles))
	for _, a := range articles {
		if filter.Category != "" && !strings.EqualFold(a.Category, filter.Category) {
			continue
		}
		if query != "" && !articleMatches(a, query) {
			continue
		}
		out = append(out, a)
	}
	return out, nil
}

func articleMatches(a domain.Article, query string) bool {
	if strings.Contains(strings.ToLower(a.Title), query) ||
		strings.Contains(strings.ToLower(a.Summary), query) ||
		strings.Contains(strings.ToLower(a.Body), query) {
		return true
	}
	for _, tag := range a.Tags {
		if strings.Contains(strings.ToLower(tag), query) {
			return true
		}
	}
	return false
}

// GetArticle finds an article by slug.
func (s *Service) GetArticle(ctx context.Context, slug string) (*domain.Article, error) {
	articles, err := load(ctx, s.articles)
	if err != nil {
		return nil, err
	}
	for i := range articles {
		if strings.EqualFold(articles[i].Slug, slug) {
			return &articles[i], nil
		}
	}
	return nil, ErrNotFound
}

// ListPosts returns published blog posts, newest first.
func (s *Service) ListPosts(ctx context.Context) ([]domain.BlogPost, error) {
	cached, err := load(ctx, s.posts)
	if err != nil {
		return nil, err
	}

	posts := append([]domain.BlogPost(nil), cached...)
	sort.SliceStable(posts, func(i, j int) bool {
		return publishedAt(posts[i].PublishedAt).After(publishedAt(posts[j].PublishedAt))
	})
	return posts, nil
}

// GetPost finds a blog post by slug.
func (s *Service) GetPost(ctx context.Context, slug string) (*domain.BlogPost, error) {
	posts, err := load(ctx, s.posts)
	if err != nil {
		return nil, err
	}
	for i := range posts {
		if strings.EqualFold(posts[i].Slug, slug) {
			return &posts[i], nil
		}
	}
	return nil, ErrNotFound
}

func publishedAt(t *time.Time) time.Time {
	if t == nil {
		return time.Time{}
	}
	return *t
}

// RoadmapGroups is the roadmap split by delivery state.
type RoadmapGroups struct {
	InProgress []domain.RoadmapItem `json:"inProgress"`
	Planned    []domain.RoadmapItem `json:"planned"`
	Completed  []domain.RoadmapItem `json:"completed"`
}

// Roadmap returns roadmap items grouped by status. Items with an
// unrecognized status are listed as planned.
func (s *Service) Roadmap(ctx context.Context) (RoadmapGroups, error) {
	items, err := load(ctx, s.roadmap)
	if err != nil {
		return RoadmapGroups{}, err
	}

	groups := RoadmapGroups{
		InProgress: []domain.RoadmapItem{},
		Planned:    []domain.RoadmapItem{},
		Completed:  []domain.RoadmapItem{},
	}
	for _, item := range items {
		switch item.Status {
		case domain.RoadmapStatusInProgress:
			groups.InProgress = append(groups.InProgress, item)
		case domain.RoadmapStatusCompleted:
			groups.Completed = append(groups.Completed, item)
		default:
			groups.Planned = append(groups.Planned, item)
		}
	}
	return groups, nil
}

// ListTestimonials returns approved testimonials.
func (s *Service) ListTestimonials(ctx context.Context) ([]domain.Testimonial, error) {
	return load(ctx, s.testimonials)
}
