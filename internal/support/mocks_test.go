package support

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/cofabri/site-backend/internal/airtable"
	"github.com/cofabri/site-backend/internal/blob"
	"github.com/cofabri/site-backend/internal/domain"
)

var (
	pngData  = append([]byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR"), make([]byte, 32)...)
	gifData  = append([]byte("GIF89a"), make([]byte, 32)...)
	jpegData = append([]byte{0xFF, 0xD8, 0xFF, 0xE0, 0x00, 0x10, 'J', 'F', 'I', 'F', 0x00}, make([]byte, 32)...)
	textData = []byte("definitely not an image, just some text")
)

type mockVerifier struct {
	mu     sync.Mutex
	err    error
	calls  int
	tokens []string
	ips    []string
}

func (m *mockVerifier) Verify(_ context.Context, token, remoteIP string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++
	m.tokens = append(m.tokens, token)
	m.ips = append(m.ips, remoteIP)
	return m.err
}

type putCall struct {
	Pathname    string
	ContentType string
	Size        int
}

type mockUploader struct {
	mu    sync.Mutex
	calls []putCall
	// failOn makes the nth call (1-based) fail.
	failOn int
}

func (m *mockUploader) Put(_ context.Context, pathname, contentType string, data []byte) (blob.Object, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, putCall{Pathname: pathname, ContentType: contentType, Size: len(data)})
	if m.failOn == len(m.calls) {
		return blob.Object{}, blob.ErrUpload
	}
	return blob.Object{
		URL:         fmt.Sprintf("https://blob.example.com/%s", pathname),
		Pathname:    pathname,
		ContentType: contentType,
	}, nil
}

type createCall struct {
	Table    string
	Fields   map[string]interface{}
	Typecast bool
}

type mockRecords struct {
	mu    sync.Mutex
	calls []createCall
	err   error
}

func (m *mockRecords) CreateRecord(_ context.Context, table string, fields map[string]interface{}, typecast bool) (airtable.Record, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, createCall{Table: table, Fields: fields, Typecast: typecast})
	if m.err != nil {
		return airtable.Record{}, m.err
	}
	return airtable.Record{ID: fmt.Sprintf("rec%d", len(m.calls)), Fields: fields}, nil
}

type alert struct {
	Subject string
	Body    string
}

type mockAlerter struct {
	mu     sync.Mutex
	alerts []alert
	err    error
}

func (m *mockAlerter) Alert(_ context.Context, subject, body string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.alerts = append(m.alerts, alert{Subject: subject, Body: body})
	return m.err
}

type failingRepository struct{}

func (failingRepository) SaveFailed(context.Context, *domain.FailedSubmission) error {
	return errors.New("database is down")
}

func (failingRepository) ListFailed(context.Context, int) ([]domain.FailedSubmission, error) {
	return nil, errors.New("database is down")
}

type fixture struct {
	verifier *mockVerifier
	uploader *mockUploader
	records  *mockRecords
	repo     *MemoryRepository
	alerter  *mockAlerter
	service  *Service
}

func newFixture(cfg Config) *fixture {
	f := &fixture{
		verifier: &mockVerifier{},
		uploader: &mockUploader{},
		records:  &mockRecords{},
		repo:     NewMemoryRepository(10),
		alerter:  &mockAlerter{},
	}
	f.service = NewService(f.verifier, f.uploader, f.records, f.repo, f.alerter, cfg)
	return f
}
