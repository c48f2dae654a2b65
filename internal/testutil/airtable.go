package testutil

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
)

// FakeAirtable serves canned table listings and records created rows.
// Filter formulas and sorting are ignored.
type FakeAirtable struct {
	*httptest.Server

	mu      sync.Mutex
	tables  map[string][]map[string]interface{}
	created map[string][]map[string]interface{}
	failing bool
	listed  map[string]int
}

// NewFakeAirtable starts a fake base. The server is closed with the test.
func NewFakeAirtable(t *testing.T) *FakeAirtable {
	t.Helper()

	f := &FakeAirtable{
		tables:  make(map[string][]map[string]interface{}),
		created: make(map[string][]map[string]interface{}),
		listed:  make(map[string]int),
	}

	r := chi.NewRouter()
	r.Get("/v0/{base}/{table}", f.list)
	r.Post("/v0/{base}/{table}", f.create)

	f.Server = httptest.NewServer(r)
	t.Cleanup(f.Close)
	return f
}

// SetRecords replaces the rows of table. Each row is a fields map; an "id"
// key, when present, becomes the record ID.
func (f *FakeAirtable) SetRecords(table string, rows ...map[string]interface{}) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.tables[table] = rows
}

// SetFailing makes every request answer 503.
func (f *FakeAirtable) SetFailing(failing bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.failing = failing
}

// Created returns the field maps posted to table.
func (f *FakeAirtable) Created(table string) []map[string]interface{} {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]map[string]interface{}(nil), f.created[table]...)
}

// ListCalls returns how many times table was listed.
func (f *FakeAirtable) ListCalls(table string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.listed[table]
}

func (f *FakeAirtable) list(w http.ResponseWriter, r *http.Request) {
	table := chi.URLParam(r, "table")

	f.mu.Lock()
	failing := f.failing
	rows := f.tables[table]
	f.listed[table]++
	f.mu.Unlock()

	if failing {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"error": "SERVICE_UNAVAILABLE"})
		return
	}

	records := make([]map[string]interface{}, 0, len(rows))
	for i, row := range rows {
		fields := make(map[string]interface{}, len(row))
		id := fmt.Sprintf("rec%03d", i+1)
		for k, v := range row {
			if k == "id" {
				id, _ = v.(string)
				continue
			}
			fields[k] = v
		}
		records = append(records, map[string]interface{}{
			"id":          id,
			"fields":      fields,
			"createdTime": "2025-01-01T00:00:00.000Z",
		})
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"records": records})
}

func (f *FakeAirtable) create(w http.ResponseWriter, r *http.Request) {
	table := chi.URLParam(r, "table")

	var body struct {
		Fields map[string]interface{} `json:"fields"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeJSON(w, http.StatusUnprocessableEntity, map[string]string{"error": "INVALID_REQUEST_BODY"})
		return
	}

	f.mu.Lock()
	failing := f.failing
	if !failing {
		f.created[table] = append(f.created[table], body.Fields)
	}
	n := len(f.created[table])
	f.mu.Unlock()

	if failing {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"error": "SERVICE_UNAVAILABLE"})
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"id":          fmt.Sprintf("recNew%03d", n),
		"fields":      body.Fields,
		"createdTime": time.Now().UTC().Format(time.RFC3339),
	})
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
