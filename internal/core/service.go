package core

import (
	"context"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// ClassifierService is the core service wiring the normalizer, the attachment
// detector and the rule engine around one library snapshot.
type ClassifierService struct {
	normalizer Normalizer
	detector   AttachmentClassifier
	engine     RuleEngine
	store      Store
	logger     *zap.Logger
	workers    int

	mu      sync.RWMutex
	library RuleLibrary
}

// NewClassifierService creates a new classifier service.
func NewClassifierService(
	normalizer Normalizer,
	detector AttachmentClassifier,
	engine RuleEngine,
	library RuleLibrary,
	store Store,
	logger *zap.Logger,
	workers int,
) *ClassifierService {
	if workers < 1 {
		workers = 1
	}
	return &ClassifierService{
		normalizer: normalizer,
		detector:   detector,
		engine:     engine,
		library:    library,
		store:      store,
		logger:     logger,
		workers:    workers,
	}
}

// Library returns the current rule library snapshot.
func (s *ClassifierService) Library() RuleLibrary {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.library
}

// ReplaceLibrary swaps the rule library snapshot. Runs already started keep
// the snapshot they captured; only runs started afterwards see the new one.
func (s *ClassifierService) ReplaceLibrary(lib RuleLibrary) {
	s.mu.Lock()
	old := s.library
	s.library = lib
	s.mu.Unlock()
	s.logger.Info("Replaced rule library",
		zap.String("old_version", old.Version()),
		zap.String("new_version", lib.Version()))
}

// ClassifyRecord classifies a single record against the current library
// snapshot without persisting anything.
func (s *ClassifierService) ClassifyRecord(rec *EmailRecord) *ClassificationResult {
	return s.ClassifyWith(rec, s.Library())
}

// ClassifyWith classifies a single record against an explicit library
// snapshot. Re-classification passes use it to pin one snapshot for the
// whole pass regardless of concurrent library swaps.
func (s *ClassifierService) ClassifyWith(rec *EmailRecord, lib RuleLibrary) *ClassificationResult {
	content := s.normalizer.Normalize(rec.Subject, rec.BodyHTML, rec.BodyPlain)
	attachments := s.detector.ClassifyAll(rec.Attachments)
	result := s.engine.Classify(rec, content, attachments, lib)
	s.logger.Debug("Classified email",
		zap.String("email_id", rec.ID),
		zap.String("category", string(result.Category)),
		zap.Float64("confidence", result.Confidence),
		zap.Strings("evidence", result.Evidence))
	return result
}

// Process classifies a record and persists both the record and its result.
func (s *ClassifierService) Process(ctx context.Context, rec *EmailRecord) (*ClassificationResult, error) {
	result := s.ClassifyRecord(rec)
	if err := s.persist(ctx, rec, result); err != nil {
		return nil, err
	}
	return result, nil
}

func (s *ClassifierService) persist(ctx context.Context, rec *EmailRecord, res *ClassificationResult) error {
	if err := s.store.SaveRecord(ctx, rec); err != nil {
		return fmt.Errorf("failed to store record: %w", err)
	}
	res.ID = uuid.NewString()
	if err := s.store.SaveResult(ctx, res); err != nil {
		return fmt.Errorf("failed to store result: %w", err)
	}
	return nil
}

// ClassifyBatch drains a record source through a bounded worker pool,
// persisting every record and result. The whole run uses the library
// snapshot captured at start. Cancelling the context stops the submission
// of new records; in-flight classifications run to completion.
func (s *ClassifierService) ClassifyBatch(ctx context.Context, src RecordSource) (*BatchSummary, error) {
	lib := s.Library()
	start := time.Now()
	summary := &BatchSummary{
		ByCategory:     make(map[Category]int),
		LibraryVersion: lib.Version(),
	}

	s.logger.Info("Starting classification run",
		zap.String("library_version", lib.Version()),
		zap.Int("workers", s.workers))

	jobs := make(chan *EmailRecord)
	var wg sync.WaitGroup
	var mu sync.Mutex

	for i := 0; i < s.workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for rec := range jobs {
				result := s.ClassifyWith(rec, lib)
				if err := s.persist(ctx, rec, result); err != nil {
					s.logger.Error("Failed to persist classification",
						zap.String("email_id", rec.ID),
						zap.Error(err))
					mu.Lock()
					summary.Failed++
					mu.Unlock()
					continue
				}
				mu.Lock()
				summary.Processed++
				summary.ByCategory[result.Category]++
				mu.Unlock()
			}
		}()
	}

	var runErr error
producer:
	for {
		rec, err := src.Next(ctx)
		if err == io.EOF {
			break
		}
		if err != nil {
			runErr = fmt.Errorf("record source failed: %w", err)
			break
		}
		select {
		case jobs <- rec:
		case <-ctx.Done():
			runErr = ctx.Err()
			break producer
		}
	}
	close(jobs)
	wg.Wait()

	summary.Duration = time.Since(start)
	s.logger.Info("Classification run finished",
		zap.Int("processed", summary.Processed),
		zap.Int("failed", summary.Failed),
		zap.Duration("duration", summary.Duration))
	return summary, runErr
}
