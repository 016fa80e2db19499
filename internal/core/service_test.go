package core

import (
	"context"
	"errors"
	"io"
	"strings"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap"
)

// fakeNormalizer lower-cases the text without any of the real cleanup.
type fakeNormalizer struct{}

func (fakeNormalizer) Normalize(subject, bodyHTML, bodyPlain string) NormalizedContent {
	body := bodyPlain
	if body == "" {
		body = bodyHTML
	}
	return NormalizedContent{
		Subject: strings.ToLower(subject),
		Body:    strings.ToLower(body),
	}
}

type fakeDetector struct{}

func (fakeDetector) ClassifyAll(descs []AttachmentDescriptor) []AttachmentInfo {
	infos := make([]AttachmentInfo, 0, len(descs))
	for _, d := range descs {
		infos = append(infos, AttachmentInfo{Descriptor: d, Type: AttachmentOther})
	}
	return infos
}

type fakeLibrary struct{ version string }

func (l fakeLibrary) Version() string     { return l.version }
func (fakeLibrary) Rules(Category) []Rule { return nil }

// keywordEngine assigns categories from bare subject keywords so tests can
// steer outcomes without a rule library.
type keywordEngine struct{}

func (keywordEngine) Classify(rec *EmailRecord, content NormalizedContent, _ []AttachmentInfo, lib RuleLibrary) *ClassificationResult {
	res := &ClassificationResult{
		EmailID:        rec.ID,
		Category:       CategoryUnclassified,
		Evidence:       []string{},
		LibraryVersion: lib.Version(),
		ClassifiedAt:   time.Now().UTC(),
	}
	switch {
	case strings.Contains(content.Subject, "cotizacion"):
		res.Category = CategoryCotizacion
		res.Confidence = 0.60
		res.Evidence = []string{"cotizacion-asunto"}
	case strings.Contains(content.Subject, "renovacion"):
		res.Category = CategoryRenovacion
		res.Confidence = 0.55
		res.Evidence = []string{"renovacion-asunto"}
	case strings.Contains(content.Subject, "endoso"):
		res.Category = CategoryEndoso
		res.Confidence = 0.50
		res.Evidence = []string{"endoso-asunto"}
	}
	return res
}

// fakeStore keeps records and results in memory and can be told to fail
// persistence for selected email ids.
type fakeStore struct {
	mu      sync.Mutex
	records map[string]*EmailRecord
	results map[string][]*ClassificationResult
	failIDs map[string]bool
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		records: make(map[string]*EmailRecord),
		results: make(map[string][]*ClassificationResult),
		failIDs: make(map[string]bool),
	}
}

func (s *fakeStore) SaveRecord(_ context.Context, rec *EmailRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failIDs[rec.ID] {
		return errors.New("store unavailable")
	}
	s.records[rec.ID] = rec
	return nil
}

func (s *fakeStore) GetRecord(_ context.Context, id string) (*EmailRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.records[id]
	if !ok {
		return nil, ErrNotFound
	}
	return rec, nil
}

func (s *fakeStore) SearchRecords(context.Context, RecordQuery) (*RecordPage, error) {
	return &RecordPage{}, nil
}

func (s *fakeStore) CountRecords(context.Context) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.records), nil
}

func (s *fakeStore) SaveResult(_ context.Context, res *ClassificationResult) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.results[res.EmailID] = append(s.results[res.EmailID], res)
	return nil
}

func (s *fakeStore) LatestResult(_ context.Context, emailID string) (*ClassificationResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	hist := s.results[emailID]
	if len(hist) == 0 {
		return nil, ErrNotFound
	}
	return hist[len(hist)-1], nil
}

func (s *fakeStore) LatestResults(context.Context) ([]*ClassificationResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*ClassificationResult, 0, len(s.results))
	for _, hist := range s.results {
		out = append(out, hist[len(hist)-1])
	}
	return out, nil
}

func (s *fakeStore) ResultHistory(_ context.Context, emailID string) ([]*ClassificationResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.results[emailID], nil
}

func (s *fakeStore) Stats(context.Context) (*DatasetStats, error) {
	return &DatasetStats{}, nil
}

func (s *fakeStore) resultCount(emailID string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.results[emailID])
}

// sliceSource streams a fixed set of records, honoring cancellation the way
// the archive readers do.
type sliceSource struct {
	mu   sync.Mutex
	recs []*EmailRecord
	err  error // reported once the slice is drained, instead of io.EOF
}

func (s *sliceSource) Next(ctx context.Context) (*EmailRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.recs) == 0 {
		if s.err != nil {
			return nil, s.err
		}
		return nil, io.EOF
	}
	rec := s.recs[0]
	s.recs = s.recs[1:]
	return rec, nil
}

func (s *sliceSource) Close() error { return nil }

func newService(st Store, workers int) *ClassifierService {
	return NewClassifierService(
		fakeNormalizer{},
		fakeDetector{},
		keywordEngine{},
		fakeLibrary{version: "lib-v1"},
		st,
		zap.NewNop(),
		workers,
	)
}

func TestProcessPersistsRecordAndResult(t *testing.T) {
	st := newFakeStore()
	svc := newService(st, 1)
	ctx := context.Background()

	rec := &EmailRecord{ID: "email_000001", Subject: "Cotizacion flotilla"}
	res, err := svc.Process(ctx, rec)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Category != CategoryCotizacion {
		t.Errorf("category = %s, want %s", res.Category, CategoryCotizacion)
	}
	if res.EmailID != "email_000001" {
		t.Errorf("email id = %q, want email_000001", res.EmailID)
	}
	if res.ID == "" {
		t.Error("persisted result should carry a fresh id")
	}
	if res.LibraryVersion != "lib-v1" {
		t.Errorf("library version = %q, want lib-v1", res.LibraryVersion)
	}

	if _, err := st.GetRecord(ctx, "email_000001"); err != nil {
		t.Fatalf("record was not stored: %v", err)
	}
	latest, err := st.LatestResult(ctx, "email_000001")
	if err != nil {
		t.Fatalf("result was not stored: %v", err)
	}
	if latest.ID != res.ID {
		t.Errorf("stored result id = %q, want %q", latest.ID, res.ID)
	}

	// Processing the same email again appends a second result.
	if _, err := svc.Process(ctx, rec); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := st.resultCount("email_000001"); got != 2 {
		t.Errorf("result count = %d, want 2", got)
	}
}

func TestProcessReturnsStoreError(t *testing.T) {
	st := newFakeStore()
	st.failIDs["email_000001"] = true
	svc := newService(st, 1)

	_, err := svc.Process(context.Background(), &EmailRecord{ID: "email_000001", Subject: "Cotizacion"})
	if err == nil {
		t.Fatal("expected persistence error")
	}
	if got := st.resultCount("email_000001"); got != 0 {
		t.Errorf("result count = %d, want 0", got)
	}
}

func TestClassifyRecordDoesNotPersist(t *testing.T) {
	st := newFakeStore()
	svc := newService(st, 1)

	res := svc.ClassifyRecord(&EmailRecord{ID: "email_000002", Subject: "Renovacion poliza"})
	if res.Category != CategoryRenovacion {
		t.Errorf("category = %s, want %s", res.Category, CategoryRenovacion)
	}
	if res.ID != "" {
		t.Errorf("ad-hoc result should carry no stored id, got %q", res.ID)
	}
	if n, _ := st.CountRecords(context.Background()); n != 0 {
		t.Errorf("stored records = %d, want 0", n)
	}
}

func TestReplaceLibrarySwapsSnapshot(t *testing.T) {
	svc := newService(newFakeStore(), 1)
	if got := svc.Library().Version(); got != "lib-v1" {
		t.Fatalf("version = %q, want lib-v1", got)
	}

	svc.ReplaceLibrary(fakeLibrary{version: "lib-v2"})
	if got := svc.Library().Version(); got != "lib-v2" {
		t.Errorf("version = %q, want lib-v2", got)
	}
	res := svc.ClassifyRecord(&EmailRecord{ID: "email_000003", Subject: "Endoso"})
	if res.LibraryVersion != "lib-v2" {
		t.Errorf("library version = %q, want lib-v2", res.LibraryVersion)
	}
}

func TestClassifyWithPinsSnapshot(t *testing.T) {
	svc := newService(newFakeStore(), 1)
	old := svc.Library()
	svc.ReplaceLibrary(fakeLibrary{version: "lib-v2"})

	res := svc.ClassifyWith(&EmailRecord{ID: "email_000004", Subject: "Endoso"}, old)
	if res.LibraryVersion != "lib-v1" {
		t.Errorf("library version = %q, want lib-v1", res.LibraryVersion)
	}
}

func TestClassifyBatchDrainsSource(t *testing.T) {
	st := newFakeStore()
	svc := newService(st, 4)

	src := &sliceSource{recs: []*EmailRecord{
		{ID: "email_000001", Subject: "Cotizacion flotilla"},
		{ID: "email_000002", Subject: "Cotizacion equipo"},
		{ID: "email_000003", Subject: "Renovacion poliza 123"},
		{ID: "email_000004", Subject: "Endoso OT-9"},
		{ID: "email_000005", Subject: "Saludos"},
	}}

	sum, err := svc.ClassifyBatch(context.Background(), src)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if sum.Processed != 5 || sum.Failed != 0 {
		t.Errorf("processed = %d, failed = %d, want 5 and 0", sum.Processed, sum.Failed)
	}
	if sum.LibraryVersion != "lib-v1" {
		t.Errorf("library version = %q, want lib-v1", sum.LibraryVersion)
	}
	want := map[Category]int{
		CategoryCotizacion:   2,
		CategoryRenovacion:   1,
		CategoryEndoso:       1,
		CategoryUnclassified: 1,
	}
	for cat, n := range want {
		if sum.ByCategory[cat] != n {
			t.Errorf("by category[%s] = %d, want %d", cat, sum.ByCategory[cat], n)
		}
	}

	ctx := context.Background()
	if n, _ := st.CountRecords(ctx); n != 5 {
		t.Errorf("stored records = %d, want 5", n)
	}
	latest, err := st.LatestResults(ctx)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(latest) != 5 {
		t.Errorf("stored results = %d, want 5", len(latest))
	}
	seen := make(map[string]bool)
	for _, res := range latest {
		if res.ID == "" {
			t.Error("stored result without id")
		}
		if seen[res.ID] {
			t.Errorf("duplicate result id %q", res.ID)
		}
		seen[res.ID] = true
	}
}

func TestClassifyBatchCountsFailures(t *testing.T) {
	st := newFakeStore()
	st.failIDs["email_000002"] = true
	svc := newService(st, 2)

	src := &sliceSource{recs: []*EmailRecord{
		{ID: "email_000001", Subject: "Cotizacion"},
		{ID: "email_000002", Subject: "Renovacion"},
		{ID: "email_000003", Subject: "Endoso"},
	}}
	sum, err := svc.ClassifyBatch(context.Background(), src)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if sum.Processed != 2 {
		t.Errorf("processed = %d, want 2", sum.Processed)
	}
	if sum.Failed != 1 {
		t.Errorf("failed = %d, want 1", sum.Failed)
	}
}

func TestClassifyBatchReportsSourceError(t *testing.T) {
	svc := newService(newFakeStore(), 2)

	errTruncated := errors.New("archive truncated")
	src := &sliceSource{
		recs: []*EmailRecord{
			{ID: "email_000001", Subject: "Cotizacion"},
			{ID: "email_000002", Subject: "Renovacion"},
		},
		err: errTruncated,
	}
	sum, err := svc.ClassifyBatch(context.Background(), src)
	if !errors.Is(err, errTruncated) {
		t.Fatalf("error = %v, want wrapped %v", err, errTruncated)
	}
	if sum == nil || sum.Processed != 2 {
		t.Fatalf("summary should still count the drained records, got %+v", sum)
	}
}

func TestClassifyBatchStopsOnCancel(t *testing.T) {
	svc := newService(newFakeStore(), 2)
	src := &sliceSource{recs: []*EmailRecord{{ID: "email_000001", Subject: "Cotizacion"}}}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	sum, err := svc.ClassifyBatch(ctx, src)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("error = %v, want context.Canceled", err)
	}
	if sum.Processed != 0 {
		t.Errorf("processed = %d, want 0", sum.Processed)
	}
}

func TestWorkerCountClamped(t *testing.T) {
	svc := newService(newFakeStore(), 0)
	if svc.workers != 1 {
		t.Errorf("workers = %d, want 1", svc.workers)
	}
}
