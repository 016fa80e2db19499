package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/TheRocketCodeMX/sura-classifier-app/internal/adapters/store"
	"github.com/TheRocketCodeMX/sura-classifier-app/internal/attachment"
	"github.com/TheRocketCodeMX/sura-classifier-app/internal/core"
	"github.com/TheRocketCodeMX/sura-classifier-app/internal/normalize"
	"github.com/TheRocketCodeMX/sura-classifier-app/internal/patterns"
	"github.com/TheRocketCodeMX/sura-classifier-app/internal/scoring"
	"github.com/TheRocketCodeMX/sura-classifier-app/internal/utils"
)

func newTestServer(t *testing.T) (*Server, *store.MemoryStore) {
	t.Helper()
	logger := zap.NewNop()
	engine, err := scoring.NewEngine(scoring.DefaultPolicy(), logger)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	st := store.NewMemoryStore()
	svc := core.NewClassifierService(
		normalize.NewNormalizer(utils.NewTextProcessor(logger), logger, 280),
		attachment.NewDetector(logger, 100*1024),
		engine,
		patterns.Default(),
		st,
		logger,
		1,
	)
	return NewServer("127.0.0.1:0", svc, st, logger), st
}

func seedDataset(t *testing.T, st core.Store) {
	t.Helper()
	ctx := context.Background()
	base := time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)

	records := []*core.EmailRecord{
		{
			ID:          "email_000001",
			Folder:      "Inbox",
			Subject:     "Solicitud de cotización flotilla",
			SenderName:  "Ana Torres",
			SenderEmail: "ana@corredor.mx",
			Timestamp:   base,
		},
		{
			ID:        "email_000002",
			Folder:    "Inbox",
			Subject:   "Renovación póliza 12345",
			Timestamp: base.Add(time.Hour),
			Attachments: []core.AttachmentDescriptor{
				{Filename: "caratula.pdf", Extension: ".pdf", Size: 120_000},
			},
		},
		{
			ID:        "email_000003",
			Folder:    "Procesados",
			Subject:   "Endoso OT-789",
			Timestamp: base.Add(2 * time.Hour),
		},
	}
	for _, rec := range records {
		if err := st.SaveRecord(ctx, rec); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	}

	results := []*core.ClassificationResult{
		{
			ID: "res-1", EmailID: "email_000001",
			Category: core.CategoryCotizacion, Confidence: 0.40,
			LibraryVersion: "builtin-v1", ClassifiedAt: base,
		},
		{
			ID: "res-2", EmailID: "email_000002",
			Category: core.CategoryUnclassified, Confidence: 0.25,
			LibraryVersion: "builtin-v0", ClassifiedAt: base,
		},
		{
			ID: "res-3", EmailID: "email_000002",
			Category: core.CategoryRenovacion, Confidence: 0.55,
			LibraryVersion: "builtin-v1", ClassifiedAt: base.Add(time.Hour),
			Supersedes: "res-2",
		},
	}
	for _, res := range results {
		if err := st.SaveResult(ctx, res); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	}
}

func doRequest(t *testing.T, srv *Server, method, target string, body io.Reader) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, target, body)
	rr := httptest.NewRecorder()
	srv.Routes().ServeHTTP(rr, req)
	return rr
}

func decodeBody(t *testing.T, rr *httptest.ResponseRecorder, v any) {
	t.Helper()
	if err := json.Unmarshal(rr.Body.Bytes(), v); err != nil {
		t.Fatalf("failed to decode response %q: %v", rr.Body.String(), err)
	}
}

func TestHealthz(t *testing.T) {
	srv, _ := newTestServer(t)

	rr := doRequest(t, srv, http.MethodGet, "/healthz", nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", rr.Code, http.StatusOK)
	}
	if ct := rr.Header().Get("Content-Type"); ct != "application/json" {
		t.Errorf("Content-Type = %q, want %q", ct, "application/json")
	}
	var body map[string]string
	decodeBody(t, rr, &body)
	if body["status"] != "ok" {
		t.Errorf("status = %q, want %q", body["status"], "ok")
	}
}

func TestStats(t *testing.T) {
	srv, st := newTestServer(t)
	seedDataset(t, st)

	rr := doRequest(t, srv, http.MethodGet, "/api/stats", nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", rr.Code, http.StatusOK)
	}
	var stats core.DatasetStats
	decodeBody(t, rr, &stats)
	if stats.TotalEmails != 3 {
		t.Errorf("TotalEmails = %d, want 3", stats.TotalEmails)
	}
	if stats.WithAttachments != 1 {
		t.Errorf("WithAttachments = %d, want 1", stats.WithAttachments)
	}
	if got := stats.ByCategory[core.CategoryUnclassified]; got != 1 {
		t.Errorf("ByCategory[unclassified] = %d, want 1", got)
	}
	if got := stats.AvgConfidence; got < 0.474 || got > 0.476 {
		t.Errorf("AvgConfidence = %v, want 0.475", got)
	}
}

func TestSearch(t *testing.T) {
	srv, st := newTestServer(t)
	seedDataset(t, st)

	tests := []struct {
		name    string
		target  string
		wantIDs []string
	}{
		{
			name:    "no filters newest first",
			target:  "/api/search",
			wantIDs: []string{"email_000003", "email_000002", "email_000001"},
		},
		{
			name:    "text filter",
			target:  "/api/search?query=renovaci%C3%B3n",
			wantIDs: []string{"email_000002"},
		},
		{
			name:    "category uses latest result",
			target:  "/api/search?category=renovacion",
			wantIDs: []string{"email_000002"},
		},
		{
			name:    "unclassified includes never classified",
			target:  "/api/search?category=sin_clasificar",
			wantIDs: []string{"email_000003"},
		},
		{
			name:    "attachment filter",
			target:  "/api/search?has_attachments=true",
			wantIDs: []string{"email_000002"},
		},
		{
			name:    "pagination window",
			target:  "/api/search?per_page=2&page=2",
			wantIDs: []string{"email_000001"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr := doRequest(t, srv, http.MethodGet, tt.target, nil)
			if rr.Code != http.StatusOK {
				t.Fatalf("status = %d, want %d (%s)", rr.Code, http.StatusOK, rr.Body.String())
			}
			var page core.RecordPage
			decodeBody(t, rr, &page)
			if len(page.Hits) != len(tt.wantIDs) {
				t.Fatalf("got %d hits, want %d", len(page.Hits), len(tt.wantIDs))
			}
			for i, want := range tt.wantIDs {
				if page.Hits[i].EmailID != want {
					t.Errorf("hit[%d] = %q, want %q", i, page.Hits[i].EmailID, want)
				}
			}
		})
	}
}

func TestSearchJoinsLatestResult(t *testing.T) {
	srv, st := newTestServer(t)
	seedDataset(t, st)

	rr := doRequest(t, srv, http.MethodGet, "/api/search?query=12345", nil)
	var page core.RecordPage
	decodeBody(t, rr, &page)
	if len(page.Hits) != 1 {
		t.Fatalf("got %d hits, want 1", len(page.Hits))
	}
	hit := page.Hits[0]
	if hit.Category != core.CategoryRenovacion {
		t.Errorf("Category = %q, want %q", hit.Category, core.CategoryRenovacion)
	}
	if hit.Confidence != 0.55 {
		t.Errorf("Confidence = %v, want 0.55", hit.Confidence)
	}
	if page.Pagination.Total != 1 {
		t.Errorf("Total = %d, want 1", page.Pagination.Total)
	}
}

func TestSearchRejectsBadParams(t *testing.T) {
	srv, st := newTestServer(t)
	seedDataset(t, st)

	targets := []string{
		"/api/search?category=spam",
		"/api/search?has_attachments=maybe",
		"/api/search?date_from=03%2F01%2F2024",
		"/api/search?page=0",
		"/api/search?per_page=1000",
	}
	for _, target := range targets {
		rr := doRequest(t, srv, http.MethodGet, target, nil)
		if rr.Code != http.StatusBadRequest {
			t.Errorf("%s: status = %d, want %d", target, rr.Code, http.StatusBadRequest)
		}
		var body map[string]string
		decodeBody(t, rr, &body)
		if body["error"] == "" {
			t.Errorf("%s: missing error message", target)
		}
	}
}

func TestEmailDetail(t *testing.T) {
	srv, st := newTestServer(t)
	seedDataset(t, st)

	rr := doRequest(t, srv, http.MethodGet, "/api/emails/email_000002", nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", rr.Code, http.StatusOK)
	}
	var detail struct {
		Email        *core.EmailRecord          `json:"email"`
		LatestResult *core.ClassificationResult `json:"latest_result"`
	}
	decodeBody(t, rr, &detail)
	if detail.Email == nil || detail.Email.ID != "email_000002" {
		t.Fatalf("email = %+v, want id email_000002", detail.Email)
	}
	if detail.LatestResult == nil || detail.LatestResult.ID != "res-3" {
		t.Errorf("latest_result = %+v, want id res-3", detail.LatestResult)
	}

	// A record without results still resolves, just without a result.
	rr = doRequest(t, srv, http.MethodGet, "/api/emails/email_000003", nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", rr.Code, http.StatusOK)
	}
	detail.Email, detail.LatestResult = nil, nil
	decodeBody(t, rr, &detail)
	if detail.Email == nil || detail.Email.ID != "email_000003" {
		t.Fatalf("email = %+v, want id email_000003", detail.Email)
	}
	if detail.LatestResult != nil {
		t.Errorf("latest_result = %+v, want absent", detail.LatestResult)
	}
}

func TestEmailDetailNotFound(t *testing.T) {
	srv, st := newTestServer(t)
	seedDataset(t, st)

	for _, target := range []string{
		"/api/emails/email_999999",
		"/api/emails/email_999999/results",
	} {
		rr := doRequest(t, srv, http.MethodGet, target, nil)
		if rr.Code != http.StatusNotFound {
			t.Errorf("%s: status = %d, want %d", target, rr.Code, http.StatusNotFound)
		}
	}
}

func TestEmailResults(t *testing.T) {
	srv, st := newTestServer(t)
	seedDataset(t, st)

	rr := doRequest(t, srv, http.MethodGet, "/api/emails/email_000002/results", nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", rr.Code, http.StatusOK)
	}
	var body struct {
		EmailID string                       `json:"email_id"`
		Results []*core.ClassificationResult `json:"results"`
	}
	decodeBody(t, rr, &body)
	if body.EmailID != "email_000002" {
		t.Errorf("email_id = %q, want %q", body.EmailID, "email_000002")
	}
	if len(body.Results) != 2 {
		t.Fatalf("got %d results, want 2", len(body.Results))
	}
	if body.Results[0].ID != "res-2" || body.Results[1].ID != "res-3" {
		t.Errorf("history order = [%s, %s], want [res-2, res-3]",
			body.Results[0].ID, body.Results[1].ID)
	}

	// No history yet must come back as an empty list, not null.
	rr = doRequest(t, srv, http.MethodGet, "/api/emails/email_000003/results", nil)
	body.Results = nil
	decodeBody(t, rr, &body)
	if body.Results == nil {
		t.Errorf("results = null, want empty list")
	}
	if len(body.Results) != 0 {
		t.Errorf("got %d results, want 0", len(body.Results))
	}
}

func TestClassifyAdHoc(t *testing.T) {
	srv, st := newTestServer(t)

	payload := `{"id":"adhoc-1","subject":"Solicitud de cotización póliza auto"}`
	rr := doRequest(t, srv, http.MethodPost, "/api/classify", strings.NewReader(payload))
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d (%s)", rr.Code, http.StatusOK, rr.Body.String())
	}
	var res core.ClassificationResult
	decodeBody(t, rr, &res)
	if res.Category != core.CategoryCotizacion {
		t.Errorf("Category = %q, want %q", res.Category, core.CategoryCotizacion)
	}
	if res.Confidence < 0.40 {
		t.Errorf("Confidence = %v, want >= 0.40", res.Confidence)
	}

	// Ad-hoc classification must not touch the store.
	if _, err := st.GetRecord(context.Background(), "adhoc-1"); !errors.Is(err, core.ErrNotFound) {
		t.Errorf("GetRecord error = %v, want ErrNotFound", err)
	}
}

func TestClassifyRejectsBadPayload(t *testing.T) {
	srv, _ := newTestServer(t)

	rr := doRequest(t, srv, http.MethodPost, "/api/classify", strings.NewReader("{not json"))
	if rr.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want %d", rr.Code, http.StatusBadRequest)
	}
}

func TestParseQuery(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet,
		"/api/search?query=flotilla&folder=Inbox&category=endoso&has_attachments=true&date_from=2024-03-01&date_to=2024-03-02&page=2&per_page=10", nil)
	q, err := parseQuery(req)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if q.Text != "flotilla" || q.Folder != "Inbox" {
		t.Errorf("Text/Folder = %q/%q, want flotilla/Inbox", q.Text, q.Folder)
	}
	if q.Category != core.CategoryEndoso {
		t.Errorf("Category = %q, want %q", q.Category, core.CategoryEndoso)
	}
	if q.HasAttachments == nil || !*q.HasAttachments {
		t.Errorf("HasAttachments = %v, want true", q.HasAttachments)
	}
	if want := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC); !q.From.Equal(want) {
		t.Errorf("From = %v, want %v", q.From, want)
	}
	// The To bound covers the whole end day.
	endOfDay := time.Date(2024, 3, 2, 23, 59, 59, 0, time.UTC)
	if q.To.Before(endOfDay) {
		t.Errorf("To = %v, want at least %v", q.To, endOfDay)
	}
	if q.Page != 2 || q.PerPage != 10 {
		t.Errorf("Page/PerPage = %d/%d, want 2/10", q.Page, q.PerPage)
	}
}
