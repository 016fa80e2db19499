package reclassify

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/TheRocketCodeMX/sura-classifier-app/internal/core"
)

// Summary reports one re-classification pass for operator review. Before and
// After count the categories of records that already had a result; records
// classified for the first time are counted in New only.
type Summary struct {
	Examined int
	New      int
	Replaced int
	Kept     int
	Improved int
	Changed  int
	Failed   int

	Before       map[core.Category]int
	After        map[core.Category]int
	PrevVersions map[string]int

	LibraryVersion string
	Duration       time.Duration
}

// NetFromUnclassified is how many records left the fallback category.
func (s *Summary) NetFromUnclassified() int {
	return s.Before[core.CategoryUnclassified] - s.After[core.CategoryUnclassified]
}

// Pass re-runs classification over every stored record against a pinned
// library snapshot, replacing stored results only when the new one improves
// on the old. Old results are never mutated; a replacement appends a
// superseding result so the audit trail stays intact.
type Pass struct {
	service  *core.ClassifierService
	store    core.Store
	logger   *zap.Logger
	pageSize int
}

// NewPass creates a re-classification pass walking the store in pages of
// pageSize records.
func NewPass(service *core.ClassifierService, store core.Store, logger *zap.Logger, pageSize int) *Pass {
	if pageSize < 1 {
		pageSize = 200
	}
	return &Pass{
		service:  service,
		store:    store,
		logger:   logger,
		pageSize: pageSize,
	}
}

// Run examines every stored record under lib and applies the replacement
// rule. Cancelling the context stops the walk; records already examined keep
// whatever the pass decided for them.
func (p *Pass) Run(ctx context.Context, lib core.RuleLibrary) (*Summary, error) {
	start := time.Now()
	sum := &Summary{
		Before:         make(map[core.Category]int),
		After:          make(map[core.Category]int),
		PrevVersions:   make(map[string]int),
		LibraryVersion: lib.Version(),
	}

	p.logger.Info("Starting re-classification pass",
		zap.String("library_version", lib.Version()),
		zap.Int("page_size", p.pageSize))

	page := 1
	for {
		recPage, err := p.store.SearchRecords(ctx, core.RecordQuery{Page: page, PerPage: p.pageSize})
		if err != nil {
			sum.Duration = time.Since(start)
			return sum, fmt.Errorf("failed to list records: %w", err)
		}
		if len(recPage.Hits) == 0 {
			break
		}
		for _, hit := range recPage.Hits {
			if err := ctx.Err(); err != nil {
				sum.Duration = time.Since(start)
				return sum, err
			}
			sum.Examined++
			if err := p.reclassifyOne(ctx, hit.EmailID, lib, sum); err != nil {
				p.logger.Error("Failed to reclassify email",
					zap.String("email_id", hit.EmailID),
					zap.Error(err))
				sum.Failed++
			}
		}
		if !recPage.Pagination.HasNext {
			break
		}
		page++
	}

	sum.Duration = time.Since(start)
	p.logger.Info("Re-classification pass finished",
		zap.Int("examined", sum.Examined),
		zap.Int("replaced", sum.Replaced),
		zap.Int("improved", sum.Improved),
		zap.Int("kept", sum.Kept),
		zap.Int("failed", sum.Failed),
		zap.Duration("duration", sum.Duration))
	return sum, nil
}

func (p *Pass) reclassifyOne(ctx context.Context, emailID string, lib core.RuleLibrary, sum *Summary) error {
	rec, err := p.store.GetRecord(ctx, emailID)
	if err != nil {
		return fmt.Errorf("failed to load record: %w", err)
	}

	prev, err := p.store.LatestResult(ctx, emailID)
	if err != nil && !errors.Is(err, core.ErrNotFound) {
		return fmt.Errorf("failed to load latest result: %w", err)
	}

	next := p.service.ClassifyWith(rec, lib)

	// A record never classified before is stored unconditionally.
	if prev == nil {
		next.ID = uuid.NewString()
		if err := p.store.SaveResult(ctx, next); err != nil {
			return fmt.Errorf("failed to store result: %w", err)
		}
		sum.New++
		return nil
	}

	sum.Before[prev.Category]++
	sum.PrevVersions[prev.LibraryVersion]++

	if !shouldReplace(prev, next) {
		sum.Kept++
		sum.After[prev.Category]++
		return nil
	}

	next.ID = uuid.NewString()
	next.Supersedes = prev.ID
	if err := p.store.SaveResult(ctx, next); err != nil {
		return fmt.Errorf("failed to store result: %w", err)
	}
	sum.Replaced++
	sum.After[next.Category]++

	switch {
	case prev.Category == core.CategoryUnclassified:
		sum.Improved++
		p.logger.Info("Rescued email from the fallback category",
			zap.String("email_id", emailID),
			zap.String("category", string(next.Category)),
			zap.Float64("confidence", next.Confidence))
	case prev.Category != next.Category:
		sum.Changed++
		p.logger.Info("Moved email to a different category",
			zap.String("email_id", emailID),
			zap.String("old_category", string(prev.Category)),
			zap.String("new_category", string(next.Category)))
	}
	return nil
}

// shouldReplace applies the replacement rule: the new result wins only when
// it is classified and either rescues an unclassified record or strictly
// raises confidence. Everything else keeps the old result, so a pass never
// regresses a record.
func shouldReplace(prev, next *core.ClassificationResult) bool {
	if next.Category == core.CategoryUnclassified {
		return false
	}
	return prev.Category == core.CategoryUnclassified || next.Confidence > prev.Confidence
}
