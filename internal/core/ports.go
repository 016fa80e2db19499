package core

import (
	"context"
	"errors"
)

// ErrNotFound is returned by stores when no row matches a lookup.
var ErrNotFound = errors.New("not found")

// Normalizer produces the matching view of a record's text content.
type Normalizer interface {
	Normalize(subject, bodyHTML, bodyPlain string) NormalizedContent
}

// AttachmentClassifier detects attachment types and significance flags.
type AttachmentClassifier interface {
	ClassifyAll(descs []AttachmentDescriptor) []AttachmentInfo
}

// Rule is a single classification signal voting for one category. Rules are
// independent: one record may satisfy rules across several categories at once.
type Rule interface {
	Name() string
	Category() Category
	Weight() float64
	Matches(content NormalizedContent, attachments []AttachmentInfo) bool
}

// RuleLibrary is an immutable, versioned snapshot of classification rules.
// A classification run sees exactly one snapshot throughout.
type RuleLibrary interface {
	Version() string
	Rules(category Category) []Rule
}

// RuleEngine scores a record against a rule library snapshot and applies the
// decision policy.
type RuleEngine interface {
	Classify(rec *EmailRecord, content NormalizedContent, attachments []AttachmentInfo, lib RuleLibrary) *ClassificationResult
}

// RecordSource streams email records into a classification run. Next returns
// io.EOF once the source is exhausted.
type RecordSource interface {
	Next(ctx context.Context) (*EmailRecord, error)
	Close() error
}

// RecordStore persists extracted records.
type RecordStore interface {
	// SaveRecord inserts or replaces a record by its email id.
	SaveRecord(ctx context.Context, rec *EmailRecord) error

	// GetRecord retrieves a record by email id.
	GetRecord(ctx context.Context, id string) (*EmailRecord, error)

	// SearchRecords returns one page of records matching the query, newest
	// first, each joined with its latest classification.
	SearchRecords(ctx context.Context, q RecordQuery) (*RecordPage, error)

	// CountRecords returns the number of stored records.
	CountRecords(ctx context.Context) (int, error)
}

// ResultStore persists classification results append-only.
type ResultStore interface {
	// SaveResult appends a result. Existing results are never mutated.
	SaveResult(ctx context.Context, res *ClassificationResult) error

	// LatestResult returns the most recent result for an email id.
	LatestResult(ctx context.Context, emailID string) (*ClassificationResult, error)

	// LatestResults returns the most recent result of every classified email.
	LatestResults(ctx context.Context) ([]*ClassificationResult, error)

	// ResultHistory returns all results for an email id, oldest first.
	ResultHistory(ctx context.Context, emailID string) ([]*ClassificationResult, error)
}

// Store is the combined persistence surface used by the service, the
// re-classification pass and the dashboard API.
type Store interface {
	RecordStore
	ResultStore

	// Stats summarizes the stored dataset.
	Stats(ctx context.Context) (*DatasetStats, error)
}
