package extract

import (
	"regexp"

	"go.uber.org/zap"

	"github.com/TheRocketCodeMX/sura-classifier-app/internal/patterns"
)

// Extractor pulls sector identifiers out of normalized text, for evidence
// detail and operator display.
type Extractor struct {
	agentRe  *regexp.Regexp
	policyRe *regexp.Regexp
	logger   *zap.Logger
}

// NewExtractor creates a new extractor using the sector identifier formats
// shared with the pattern library.
func NewExtractor(logger *zap.Logger) *Extractor {
	return &Extractor{
		agentRe:  regexp.MustCompile("(?i)" + patterns.AgentCodePattern),
		policyRe: regexp.MustCompile("(?i)" + patterns.PolicyNumberPattern),
		logger:   logger,
	}
}

// AgentCode returns the first agent code referenced in the text.
func (e *Extractor) AgentCode(text string) (string, bool) {
	code, ok := e.first(e.agentRe, text)
	if ok && e.logger != nil {
		e.logger.Debug("Extracted agent code", zap.String("agent_code", code))
	}
	return code, ok
}

// PolicyNumber returns the first policy number referenced in the text.
func (e *Extractor) PolicyNumber(text string) (string, bool) {
	number, ok := e.first(e.policyRe, text)
	if ok && e.logger != nil {
		e.logger.Debug("Extracted policy number", zap.String("policy_number", number))
	}
	return number, ok
}

func (e *Extractor) first(re *regexp.Regexp, text string) (string, bool) {
	m := re.FindStringSubmatch(text)
	if len(m) < 2 {
		return "", false
	}
	return m[1], true
}
