package core

import (
	"fmt"
	"strings"
	"time"
)

// Category is one of the fixed business categories a record can be assigned to.
type Category string

const (
	CategoryCotizacion   Category = "cotizacion"
	CategoryRenovacion   Category = "renovacion"
	CategoryEndoso       Category = "endoso"
	CategoryUnclassified Category = "sin_clasificar"
)

// Categories returns the classifiable categories in tie-break priority order.
// Endorsements carry the rarest and most specific signals, so they win ties
// against the broader categories.
func Categories() []Category {
	return []Category{CategoryEndoso, CategoryRenovacion, CategoryCotizacion}
}

// ParseCategory maps a serialized category name to its Category.
func ParseCategory(s string) (Category, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "cotizacion", "cotización":
		return CategoryCotizacion, nil
	case "renovacion", "renovación":
		return CategoryRenovacion, nil
	case "endoso":
		return CategoryEndoso, nil
	case "sin_clasificar", "unclassified":
		return CategoryUnclassified, nil
	}
	return "", fmt.Errorf("unknown category %q", s)
}

// Classified reports whether c is a real business category rather than the
// Unclassified fallback.
func (c Category) Classified() bool {
	return c == CategoryCotizacion || c == CategoryRenovacion || c == CategoryEndoso
}

// Priority returns the tie-break rank of c; lower ranks win ties. The
// Unclassified fallback never competes and sorts last.
func (c Category) Priority() int {
	for i, cat := range Categories() {
		if c == cat {
			return i
		}
	}
	return len(Categories())
}

// Display returns the accented human-readable form used in reports.
func (c Category) Display() string {
	switch c {
	case CategoryCotizacion:
		return "Cotización"
	case CategoryRenovacion:
		return "Renovación"
	case CategoryEndoso:
		return "Endoso"
	case CategoryUnclassified:
		return "Sin clasificar"
	}
	return string(c)
}

// AttachmentType tags an attachment with the business file type used as a
// classification signal.
type AttachmentType string

const (
	AttachmentPDF   AttachmentType = "pdf"
	AttachmentExcel AttachmentType = "excel"
	AttachmentSLIP  AttachmentType = "slip"
	AttachmentImage AttachmentType = "image"
	AttachmentWord  AttachmentType = "word"
	AttachmentOther AttachmentType = "other"
)

// ParseAttachmentType maps a serialized type name to its AttachmentType.
func ParseAttachmentType(s string) (AttachmentType, error) {
	switch AttachmentType(strings.ToLower(strings.TrimSpace(s))) {
	case AttachmentPDF:
		return AttachmentPDF, nil
	case AttachmentExcel:
		return AttachmentExcel, nil
	case AttachmentSLIP:
		return AttachmentSLIP, nil
	case AttachmentImage:
		return AttachmentImage, nil
	case AttachmentWord:
		return AttachmentWord, nil
	case AttachmentOther:
		return AttachmentOther, nil
	}
	return "", fmt.Errorf("unknown attachment type %q", s)
}

// EmailRecord is a single extracted email. Records arrive read-only from the
// extraction pipeline and are never modified by the classification core.
type EmailRecord struct {
	ID          string                 `json:"id"`
	Folder      string                 `json:"folder,omitempty"`
	Subject     string                 `json:"subject"`
	BodyPlain   string                 `json:"body_plain,omitempty"`
	BodyHTML    string                 `json:"body_html,omitempty"`
	SenderName  string                 `json:"sender_name,omitempty"`
	SenderEmail string                 `json:"sender_email,omitempty"`
	Recipients  []string               `json:"recipients,omitempty"`
	Timestamp   time.Time              `json:"timestamp,omitempty"`
	Attachments []AttachmentDescriptor `json:"attachments,omitempty"`
}

// AttachmentDescriptor describes one attachment of an EmailRecord.
type AttachmentDescriptor struct {
	Filename    string `json:"filename"`
	Extension   string `json:"extension,omitempty"`
	Size        int64  `json:"size"`
	ContentType string `json:"content_type,omitempty"`
}

// AttachmentInfo is an attachment descriptor together with its detected type.
type AttachmentInfo struct {
	Descriptor  AttachmentDescriptor `json:"descriptor"`
	Type        AttachmentType       `json:"type"`
	Significant bool                 `json:"significant"`
}

// NormalizedContent is the matching view of a record's text: entity-decoded,
// whitespace-collapsed, lower-cased. Excerpt keeps the original casing for
// evidence snippets shown to operators.
type NormalizedContent struct {
	Subject string
	Body    string
	Excerpt string
}

// ClassificationResult is the outcome of classifying one record. Results are
// append-only: a re-classification stores a new result that supersedes the
// old one instead of mutating it.
type ClassificationResult struct {
	ID             string    `json:"id"`
	EmailID        string    `json:"email_id"`
	Category       Category  `json:"category"`
	Confidence     float64   `json:"confidence"`
	Evidence       []string  `json:"evidence"`
	LibraryVersion string    `json:"library_version"`
	ClassifiedAt   time.Time `json:"classified_at"`
	Supersedes     string    `json:"supersedes,omitempty"`
}

// RecordQuery filters and paginates a record search. Zero values mean "no
// filter"; page numbers are 1-based.
type RecordQuery struct {
	Text           string
	Category       Category
	Folder         string
	HasAttachments *bool
	From           time.Time
	To             time.Time
	Page           int
	PerPage        int
}

// SearchHit is one row of a record search: the record's header fields joined
// with its latest classification.
type SearchHit struct {
	EmailID         string    `json:"email_id"`
	Subject         string    `json:"subject"`
	SenderName      string    `json:"sender_name,omitempty"`
	SenderEmail     string    `json:"sender_email,omitempty"`
	Folder          string    `json:"folder,omitempty"`
	Timestamp       time.Time `json:"timestamp"`
	AttachmentCount int       `json:"attachment_count"`
	Category        Category  `json:"category"`
	Confidence      float64   `json:"confidence"`
	ClassifiedAt    time.Time `json:"classified_at"`
}

// Pagination describes the page window of a search response.
type Pagination struct {
	Page    int  `json:"page"`
	PerPage int  `json:"per_page"`
	Total   int  `json:"total"`
	Pages   int  `json:"pages"`
	HasPrev bool `json:"has_prev"`
	HasNext bool `json:"has_next"`
}

// NewPagination computes the 1-based page window over total rows.
func NewPagination(page, perPage, total int) Pagination {
	if perPage < 1 {
		perPage = 1
	}
	if page < 1 {
		page = 1
	}
	pages := (total + perPage - 1) / perPage
	return Pagination{
		Page:    page,
		PerPage: perPage,
		Total:   total,
		Pages:   pages,
		HasPrev: page > 1,
		HasNext: page < pages,
	}
}

// RecordPage is one page of search results.
type RecordPage struct {
	Hits       []SearchHit `json:"results"`
	Pagination Pagination  `json:"pagination"`
}

// DatasetStats summarizes the stored dataset for the dashboard.
type DatasetStats struct {
	TotalEmails     int              `json:"total_emails"`
	ByCategory      map[Category]int `json:"by_category"`
	WithAttachments int              `json:"with_attachments"`
	AvgConfidence   float64          `json:"avg_confidence"`
}

// BatchSummary reports one classification run over a record source.
type BatchSummary struct {
	Processed      int
	Failed         int
	ByCategory     map[Category]int
	LibraryVersion string
	Duration       time.Duration
}
