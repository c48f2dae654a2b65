// Package airtable is a small client for the Airtable REST API, the content
// source for every editorial and operational table the site reads.
package airtable

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/cofabri/site-backend/internal/pkg/ctxlog"
	"github.com/cofabri/site-backend/internal/pkg/metrics"
	"golang.org/x/time/rate"
)

const (
	// DefaultBaseURL is the public Airtable API endpoint.
	DefaultBaseURL = "https://api.airtable.com"
	// DefaultRequestsPerSecond matches Airtable's per-base limit.
	DefaultRequestsPerSecond = 5
	// MaxPageSize is the largest page Airtable returns.
	MaxPageSize = 100

	maxErrorBody = 4096
)

// ErrUpstream wraps every failure to talk to Airtable.
var ErrUpstream = errors.New("content source unavailable")

// Config configures the client.
type Config struct {
	BaseURL           string
	APIKey            string
	BaseID            string
	RequestsPerSecond float64
}

// Record is one table row.
type Record struct {
	ID          string                 `json:"id"`
	Fields      map[string]interface{} `json:"fields"`
	CreatedTime time.Time              `json:"createdTime"`
}

// Sort orders a listing by one field.
type Sort struct {
	Field     string
	Direction string // "asc" or "desc"
}

// ListOptions narrows a listing.
type ListOptions struct {
	FilterByFormula string
	Sort            []Sort
	MaxRecords      int
	PageSize        int
	Fields          []string
	View            string
}

// APIError is a non-2xx answer from Airtable.
type APIError struct {
	StatusCode int
	Type       string
	Message    string
}

func (e *APIError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("airtable %d %s: %s", e.StatusCode, e.Type, e.Message)
	}
	return fmt.Sprintf("airtable %d %s", e.StatusCode, e.Type)
}

// Unwrap lets callers match every API error against ErrUpstream.
func (e *APIError) Unwrap() error {
	return ErrUpstream
}

// Client talks to one Airtable base.
type Client struct {
	baseURL    string
	apiKey     string
	baseID     string
	httpClient *http.Client
	limiter    *rate.Limiter
}

// NewClient creates a client. A nil httpClient gets a default one.
func NewClient(cfg Config, httpClient *http.Client) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.RequestsPerSecond <= 0 {
		cfg.RequestsPerSecond = DefaultRequestsPerSecond
	}
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 10 * time.Second}
	}

	return &Client{
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		apiKey:     cfg.APIKey,
		baseID:     cfg.BaseID,
		httpClient: httpClient,
		limiter:    rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), 1),
	}
}

type listResponse struct {
	Records []Record `json:"records"`
	Offset  string   `json:"offset"`
}

// ListRecords returns every record of table matching opts, following
// pagination until Airtable stops returning an offset or MaxRecords is met.
func (c *Client) ListRecords(ctx context.Context, table string, opts ListOptions) ([]Record, error) {
	var (
		records []Record
		offset  string
	)

	for {
		query := opts.query()
		if offset != "" {
			query.Set("offset", offset)
		}

		var page listResponse
		if err := c.do(ctx, "list", http.MethodGet, c.tableURL(table)+"?"+query.Encode(), nil, &page); err != nil {
			return nil, fmt.Errorf("list %s: %w", table, err)
		}

		records = append(records, page.Records...)
		if opts.MaxRecords > 0 && len(records) >= opts.MaxRecords {
			return records[:opts.MaxRecords], nil
		}
		if page.Offset == "" {
			break
		}
		offset = page.Offset
	}

	ctxlog.FromContext(ctx).Debug("airtable records listed", "table", table, "count", len(records))
	return records, nil
}

type createRequest struct {
	Fields   map[string]interface{} `json:"fields"`
	Typecast bool                   `json:"typecast,omitempty"`
}

// CreateRecord inserts one record. typecast lets Airtable coerce values
// such as new select options.
func (c *Client) CreateRecord(ctx context.Context, table string, fields map[string]interface{}, typecast bool) (Record, error) {
	body, err := json.Marshal(createRequest{Fields: fields, Typecast: typecast})
	if err != nil {
		return Record{}, fmt.Errorf("encode record: %w", err)
	}

	var rec Record
	if err := c.do(ctx, "create", http.MethodPost, c.tableURL(table), body, &rec); err != nil {
		return Record{}, fmt.Errorf("create %s record: %w", table, err)
	}

	ctxlog.FromContext(ctx).Info("airtable record created", "table", table, "record_id", rec.ID)
	return rec, nil
}

func (c *Client) tableURL(table string) string {
	return fmt.Sprintf("%s/v0/%s/%s", c.baseURL, url.PathEscape(c.baseID), url.PathEscape(table))
}

func (c *Client) do(ctx context.Context, op, method, target string, body []byte, out interface{}) (err error) {
	start := time.Now()
	defer func() {
		outcome := "ok"
		if err != nil {
			outcome = "error"
		}
		metrics.UpstreamRequestDuration.WithLabelValues("airtable", op, outcome).Observe(time.Since(start).Seconds())
	}()

	if err := c.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("%w: rate limiter: %w", ErrUpstream, err)
	}

	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, target, reader)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrUpstream, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return parseAPIError(resp)
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("%w: decode response: %w", ErrUpstream, err)
	}
	return nil
}

// parseAPIError understands both {"error": "NOT_FOUND"} and
// {"error": {"type": "...", "message": "..."}}.
func parseAPIError(resp *http.Response) error {
	apiErr := &APIError{StatusCode: resp.StatusCode, Type: http.StatusText(resp.StatusCode)}

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	if err != nil || len(data) == 0 {
		return apiErr
	}

	var envelope struct {
		Error json.RawMessage `json:"error"`
	}
	if err := json.Unmarshal(data, &envelope); err != nil || len(envelope.Error) == 0 {
		apiErr.Message = strings.TrimSpace(string(data))
		return apiErr
	}

	var code string
	if err := json.Unmarshal(envelope.Error, &code); err == nil {
		apiErr.Type = code
		return apiErr
	}

	var detail struct {
		Type    string `json:"type"`
		Message string `json:"message"`
	}
	if err := json.Unmarshal(envelope.Error, &detail); err == nil {
		if detail.Type != "" {
			apiErr.Type = detail.Type
		}
		apiErr.Message = detail.Message
	}
	return apiErr
}

func (o ListOptions) query() url.Values {
	q := url.Values{}
	if o.FilterByFormula != "" {
		q.Set("filterByFormula", o.FilterByFormula)
	}
	for i, s := range o.Sort {
		q.Set(fmt.Sprintf("sort[%d][field]", i), s.Field)
		if s.Direction != "" {
			q.Set(fmt.Sprintf("sort[%d][direction]", i), s.Direction)
		}
	}
	if o.MaxRecords > 0 {
		q.Set("maxRecords", strconv.Itoa(o.MaxRecords))
	}
	pageSize := o.PageSize
	if pageSize <= 0 || pageSize > MaxPageSize {
		pageSize = MaxPageSize
	}
	q.Set("pageSize", strconv.Itoa(pageSize))
	for _, f := range o.Fields {
		q.Add("fields[]", f)
	}
	if o.View != "" {
		q.Set("view", o.View)
	}
	return q
}
