package normalize

import (
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"go.uber.org/zap"
	"golang.org/x/text/unicode/norm"

	"github.com/TheRocketCodeMX/sura-classifier-app/internal/core"
	"github.com/TheRocketCodeMX/sura-classifier-app/internal/utils"
)

var (
	// \p{Zs} catches the non-breaking spaces HTML entity decoding leaves behind
	whitespaceRe = regexp.MustCompile(`[\s\p{Zs}]+`)
	tagRe        = regexp.MustCompile(`<[^>]+>`)
)

// Normalizer builds the matching view of a record's text content.
type Normalizer struct {
	textProc   *utils.TextProcessor
	logger     *zap.Logger
	maxExcerpt int
}

// NewNormalizer creates a new Normalizer. maxExcerpt bounds the length of
// the original-case excerpt kept for evidence snippets.
func NewNormalizer(textProc *utils.TextProcessor, logger *zap.Logger, maxExcerpt int) *Normalizer {
	return &Normalizer{
		textProc:   textProc,
		logger:     logger,
		maxExcerpt: maxExcerpt,
	}
}

// Normalize produces lower-cased, entity-decoded, whitespace-collapsed
// subject and body text for rule matching, plus an original-case body
// excerpt. Missing content normalizes to the empty string; malformed HTML
// degrades to best-effort extraction and never fails.
func (n *Normalizer) Normalize(subject, bodyHTML, bodyPlain string) core.NormalizedContent {
	var body string
	if strings.TrimSpace(bodyHTML) != "" {
		body = n.htmlToText(bodyHTML)
	}
	if strings.TrimSpace(body) == "" {
		body = bodyPlain
	}

	subject = collapse(n.textProc.SanitizeUTF8(subject))
	body = collapse(n.textProc.SanitizeUTF8(body))

	return core.NormalizedContent{
		Subject: fold(subject),
		Body:    fold(body),
		Excerpt: n.textProc.Excerpt(body, n.maxExcerpt),
	}
}

// htmlToText extracts readable text from an HTML body. The underlying
// parser is permissive, so broken markup yields best-effort text; only a
// reader failure falls back to plain tag stripping.
func (n *Normalizer) htmlToText(html string) string {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		n.logger.Debug("HTML parse failed, stripping tags", zap.Error(err))
		return tagRe.ReplaceAllString(html, " ")
	}
	doc.Find("script,style,head").Remove()
	return doc.Text()
}

func collapse(s string) string {
	return strings.TrimSpace(whitespaceRe.ReplaceAllString(s, " "))
}

// fold prepares text for matching: NFC so composed and decomposed accents
// compare equal, then lower-case.
func fold(s string) string {
	return strings.ToLower(norm.NFC.String(s))
}
