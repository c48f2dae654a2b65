// Package blob uploads public files to Vercel Blob storage.
package blob

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"path"
	"strconv"
	"strings"
	"time"

	"github.com/cofabri/site-backend/internal/pkg/ctxlog"
	"github.com/cofabri/site-backend/internal/pkg/metrics"
)

const (
	// DefaultBaseURL is the Vercel Blob API endpoint.
	DefaultBaseURL = "https://blob.vercel-storage.com"
	// DefaultAPIVersion is sent as x-api-version.
	DefaultAPIVersion = "7"
)

// ErrUpload wraps every failed upload.
var ErrUpload = errors.New("blob upload failed")

// Config configures the uploader.
type Config struct {
	Token      string
	BaseURL    string
	APIVersion string
}

// Object is a stored file.
type Object struct {
	URL         string `json:"url"`
	DownloadURL string `json:"downloadUrl"`
	Pathname    string `json:"pathname"`
	ContentType string `json:"contentType"`
}

// Vercel uploads files with public access and a random name suffix.
type Vercel struct {
	token      string
	baseURL    string
	apiVersion string
	httpClient *http.Client
}

// NewVercel creates an uploader. A nil httpClient gets a default one.
func NewVercel(cfg Config, httpClient *http.Client) *Vercel {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.APIVersion == "" {
		cfg.APIVersion = DefaultAPIVersion
	}
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	return &Vercel{
		token:      cfg.Token,
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		apiVersion: cfg.APIVersion,
		httpClient: httpClient,
	}
}

// Put stores data under pathname and returns its public URL.
func (v *Vercel) Put(ctx context.Context, pathname, contentType string, data []byte) (obj Object, err error) {
	if v.token == "" {
		return Object{}, fmt.Errorf("%w: storage token is not configured", ErrUpload)
	}

	start := time.Now()
	defer func() {
		outcome := "ok"
		if err != nil {
			outcome = "error"
		}
		metrics.UpstreamRequestDuration.WithLabelValues("blob", "put", outcome).Observe(time.Since(start).Seconds())
	}()

	target := v.baseURL + "/" + escapePath(pathname)
	req, err := http.NewRequestWithContext(ctx, http.MethodPut, target, bytes.NewReader(data))
	if err != nil {
		return Object{}, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+v.token)
	req.Header.Set("x-api-version", v.apiVersion)
	req.Header.Set("x-add-random-suffix", "1")
	req.Header.Set("x-content-type", contentType)
	req.Header.Set("x-content-length", strconv.Itoa(len(data)))

	resp, err := v.httpClient.Do(req)
	if err != nil {
		return Object{}, fmt.Errorf("%w: %w", ErrUpload, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return Object{}, fmt.Errorf("%w: status %d: %s", ErrUpload, resp.StatusCode, strings.TrimSpace(string(body)))
	}

	if err := json.NewDecoder(resp.Body).Decode(&obj); err != nil {
		return Object{}, fmt.Errorf("%w: decode response: %w", ErrUpload, err)
	}
	if obj.URL == "" {
		return Object{}, fmt.Errorf("%w: response has no url", ErrUpload)
	}

	ctxlog.FromContext(ctx).Debug("blob uploaded", "pathname", obj.Pathname, "bytes", len(data))
	return obj, nil
}

func escapePath(p string) string {
	parts := strings.Split(path.Clean("/" + p)[1:], "/")
	for i, part := range parts {
		parts[i] = url.PathEscape(part)
	}
	return strings.Join(parts, "/")
}
