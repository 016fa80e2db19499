package store

import (
	"context"
	"sort"
	"strings"
	"sync"

	"github.com/TheRocketCodeMX/sura-classifier-app/internal/core"
)

// MemoryStore keeps records and results in process memory. It backs tests and
// one-shot runs where nothing has to survive the process.
type MemoryStore struct {
	mu      sync.RWMutex
	records map[string]*core.EmailRecord
	results map[string][]*core.ClassificationResult
}

var _ core.Store = (*MemoryStore)(nil)

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		records: make(map[string]*core.EmailRecord),
		results: make(map[string][]*core.ClassificationResult),
	}
}

func (m *MemoryStore) SaveRecord(ctx context.Context, rec *core.EmailRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.records[rec.ID] = rec
	return nil
}

func (m *MemoryStore) GetRecord(ctx context.Context, id string) (*core.EmailRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	rec, ok := m.records[id]
	if !ok {
		return nil, core.ErrNotFound
	}
	return rec, nil
}

func (m *MemoryStore) SearchRecords(ctx context.Context, q core.RecordQuery) (*core.RecordPage, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var recs []*core.EmailRecord
	for _, rec := range m.records {
		if m.matchesLocked(rec, q) {
			recs = append(recs, rec)
		}
	}
	// Newest first; the id breaks timestamp ties so pages are stable.
	sort.Slice(recs, func(i, j int) bool {
		if recs[i].Timestamp.Equal(recs[j].Timestamp) {
			return recs[i].ID < recs[j].ID
		}
		return recs[i].Timestamp.After(recs[j].Timestamp)
	})

	page, perPage := normalizePage(q.Page, q.PerPage)
	total := len(recs)
	start := (page - 1) * perPage
	if start > total {
		start = total
	}
	end := start + perPage
	if end > total {
		end = total
	}

	hits := make([]core.SearchHit, 0, end-start)
	for _, rec := range recs[start:end] {
		hits = append(hits, searchHit(rec, m.latestLocked(rec.ID)))
	}
	return &core.RecordPage{
		Hits:       hits,
		Pagination: core.NewPagination(page, perPage, total),
	}, nil
}

func (m *MemoryStore) CountRecords(ctx context.Context) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.records), nil
}

func (m *MemoryStore) SaveResult(ctx context.Context, res *core.ClassificationResult) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.results[res.EmailID] = append(m.results[res.EmailID], res)
	return nil
}

func (m *MemoryStore) LatestResult(ctx context.Context, emailID string) (*core.ClassificationResult, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	latest := m.latestLocked(emailID)
	if latest == nil {
		return nil, core.ErrNotFound
	}
	return latest, nil
}

func (m *MemoryStore) LatestResults(ctx context.Context) ([]*core.ClassificationResult, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	ids := make([]string, 0, len(m.results))
	for id := range m.results {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	out := make([]*core.ClassificationResult, 0, len(ids))
	for _, id := range ids {
		if latest := m.latestLocked(id); latest != nil {
			out = append(out, latest)
		}
	}
	return out, nil
}

func (m *MemoryStore) ResultHistory(ctx context.Context, emailID string) ([]*core.ClassificationResult, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	hist := m.results[emailID]
	out := make([]*core.ClassificationResult, len(hist))
	copy(out, hist)
	return out, nil
}

func (m *MemoryStore) Stats(ctx context.Context) (*core.DatasetStats, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	stats := &core.DatasetStats{
		TotalEmails: len(m.records),
		ByCategory:  make(map[core.Category]int),
	}
	var confSum float64
	var classified int
	for id, rec := range m.records {
		if len(rec.Attachments) > 0 {
			stats.WithAttachments++
		}
		latest := m.latestLocked(id)
		if latest == nil {
			stats.ByCategory[core.CategoryUnclassified]++
			continue
		}
		stats.ByCategory[latest.Category]++
		confSum += latest.Confidence
		classified++
	}
	if classified > 0 {
		stats.AvgConfidence = confSum / float64(classified)
	}
	return stats, nil
}

// latestLocked returns the most recently appended result for an email, or nil.
// Callers must hold at least the read lock.
func (m *MemoryStore) latestLocked(emailID string) *core.ClassificationResult {
	hist := m.results[emailID]
	if len(hist) == 0 {
		return nil
	}
	return hist[len(hist)-1]
}

func (m *MemoryStore) matchesLocked(rec *core.EmailRecord, q core.RecordQuery) bool {
	if q.Text != "" {
		hay := strings.ToLower(rec.Subject + " " + rec.SenderName + " " + rec.SenderEmail + " " + rec.BodyPlain)
		if !strings.Contains(hay, strings.ToLower(q.Text)) {
			return false
		}
	}
	if q.Category != "" {
		cat := core.CategoryUnclassified
		if latest := m.latestLocked(rec.ID); latest != nil {
			cat = latest.Category
		}
		if cat != q.Category {
			return false
		}
	}
	if q.Folder != "" && !strings.EqualFold(q.Folder, rec.Folder) {
		return false
	}
	if q.HasAttachments != nil && *q.HasAttachments != (len(rec.Attachments) > 0) {
		return false
	}
	if !q.From.IsZero() && rec.Timestamp.Before(q.From) {
		return false
	}
	if !q.To.IsZero() && rec.Timestamp.After(q.To) {
		return false
	}
	return true
}

// searchHit joins a record's header fields with its latest classification.
// Records never classified surface as unclassified with zero confidence.
func searchHit(rec *core.EmailRecord, latest *core.ClassificationResult) core.SearchHit {
	hit := core.SearchHit{
		EmailID:         rec.ID,
		Subject:         rec.Subject,
		SenderName:      rec.SenderName,
		SenderEmail:     rec.SenderEmail,
		Folder:          rec.Folder,
		Timestamp:       rec.Timestamp,
		AttachmentCount: len(rec.Attachments),
		Category:        core.CategoryUnclassified,
	}
	if latest != nil {
		hit.Category = latest.Category
		hit.Confidence = latest.Confidence
		hit.ClassifiedAt = latest.ClassifiedAt
	}
	return hit
}
