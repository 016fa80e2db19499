package patterns

import (
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/TheRocketCodeMX/sura-classifier-app/internal/core"
)

var (
	// ErrInvalidRule rejects a rule with an unparsable pattern, a
	// non-positive weight, a bad attachment target or a duplicate name.
	ErrInvalidRule = errors.New("invalid pattern rule")

	// ErrUnknownCategory rejects a rule voting for a category outside the
	// fixed enumeration.
	ErrUnknownCategory = errors.New("unknown category reference")
)

// Kind is the signal a rule evaluates.
type Kind string

const (
	KindSubject      Kind = "subject"
	KindBody         Kind = "body"
	KindAgentCode    Kind = "agent-code"
	KindPolicyNumber Kind = "policy-number"
	KindAttachment   Kind = "attachment-type"
)

// TargetSignificant is the attachment-type target that fires on any
// significant attachment instead of one concrete type.
const TargetSignificant = "significant"

// Sector identifier formats shared by the agent-code and policy-number
// kinds and the evidence extractors. Both carry one capture group with
// the numeric identifier.
const (
	AgentCodePattern    = `\b(?:agente|ag)\s+(\d+)\b`
	PolicyNumberPattern = `\b(?:p[oó]liza|ot|n[uú]mero)[\s.:#-]*(\d+)\b`
)

// Rule is one signal definition as authored in the library file. Agent-code
// and policy-number rules may omit the pattern to use the sector default.
type Rule struct {
	Name     string  `yaml:"name"`
	Category string  `yaml:"category"`
	Kind     Kind    `yaml:"kind"`
	Pattern  string  `yaml:"pattern,omitempty"`
	Weight   float64 `yaml:"weight"`
}

// CompiledRule is a validated rule ready for matching. It implements
// core.Rule.
type CompiledRule struct {
	name           string
	category       core.Category
	kind           Kind
	weight         float64
	re             *regexp.Regexp
	target         core.AttachmentType
	anySignificant bool
}

// Name returns the rule's evidence-trail name.
func (r *CompiledRule) Name() string { return r.name }

// Category returns the category the rule votes for.
func (r *CompiledRule) Category() core.Category { return r.category }

// Weight returns the rule's score contribution.
func (r *CompiledRule) Weight() float64 { return r.weight }

// Kind returns the signal the rule evaluates.
func (r *CompiledRule) Kind() Kind { return r.kind }

// Matches reports whether the rule fires for the given normalized content
// and detected attachments. Multiple matches of one rule count once.
func (r *CompiledRule) Matches(content core.NormalizedContent, attachments []core.AttachmentInfo) bool {
	switch r.kind {
	case KindSubject:
		return r.re.MatchString(content.Subject)
	case KindBody:
		return r.re.MatchString(content.Body)
	case KindAgentCode, KindPolicyNumber:
		return r.re.MatchString(content.Subject) || r.re.MatchString(content.Body)
	case KindAttachment:
		for _, att := range attachments {
			if r.anySignificant {
				if att.Significant {
					return true
				}
				continue
			}
			if att.Type == r.target {
				return true
			}
		}
	}
	return false
}

// Library is an immutable, versioned rule set. It implements
// core.RuleLibrary.
type Library struct {
	version string
	rules   map[core.Category][]core.Rule
	size    int
}

var (
	_ core.Rule        = (*CompiledRule)(nil)
	_ core.RuleLibrary = (*Library)(nil)
)

// New validates and compiles a rule set into an immutable Library. Any
// invalid rule fails the whole library so operators notice configuration
// mistakes immediately.
func New(version string, rules []Rule) (*Library, error) {
	if strings.TrimSpace(version) == "" {
		return nil, fmt.Errorf("%w: library version must not be empty", ErrInvalidRule)
	}
	lib := &Library{
		version: version,
		rules:   make(map[core.Category][]core.Rule),
	}
	seen := make(map[string]bool, len(rules))
	for i, r := range rules {
		compiled, err := compile(r)
		if err != nil {
			return nil, fmt.Errorf("rule %d (%q): %w", i+1, r.Name, err)
		}
		if seen[compiled.name] {
			return nil, fmt.Errorf("rule %d: %w: duplicate rule name %q", i+1, ErrInvalidRule, r.Name)
		}
		seen[compiled.name] = true
		lib.rules[compiled.category] = append(lib.rules[compiled.category], compiled)
		lib.size++
	}
	return lib, nil
}

// Version returns the library's version label.
func (l *Library) Version() string { return l.version }

// Rules returns the compiled rules voting for a category, in file order.
func (l *Library) Rules(category core.Category) []core.Rule {
	return l.rules[category]
}

// Len returns the total number of rules across categories.
func (l *Library) Len() int { return l.size }

func compile(r Rule) (*CompiledRule, error) {
	if strings.TrimSpace(r.Name) == "" {
		return nil, fmt.Errorf("%w: rule name must not be empty", ErrInvalidRule)
	}
	if r.Weight <= 0 {
		return nil, fmt.Errorf("%w: weight must be positive, got %v", ErrInvalidRule, r.Weight)
	}
	cat, err := core.ParseCategory(r.Category)
	if err != nil {
		return nil, fmt.Errorf("%w: %q", ErrUnknownCategory, r.Category)
	}
	if !cat.Classified() {
		return nil, fmt.Errorf("%w: %s is never a pattern target", ErrUnknownCategory, cat)
	}

	compiled := &CompiledRule{
		name:     r.Name,
		category: cat,
		kind:     r.Kind,
		weight:   r.Weight,
	}

	switch r.Kind {
	case KindSubject, KindBody:
		if strings.TrimSpace(r.Pattern) == "" {
			return nil, fmt.Errorf("%w: %s rule needs a pattern", ErrInvalidRule, r.Kind)
		}
		compiled.re, err = compilePattern(r.Pattern)
	case KindAgentCode:
		compiled.re, err = compilePattern(defaultPattern(r.Pattern, AgentCodePattern))
	case KindPolicyNumber:
		compiled.re, err = compilePattern(defaultPattern(r.Pattern, PolicyNumberPattern))
	case KindAttachment:
		err = compiled.setTarget(r.Pattern)
	default:
		return nil, fmt.Errorf("%w: unknown kind %q", ErrInvalidRule, r.Kind)
	}
	if err != nil {
		return nil, err
	}
	return compiled, nil
}

func compilePattern(pattern string) (*regexp.Regexp, error) {
	re, err := regexp.Compile("(?i)" + pattern)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidRule, err)
	}
	return re, nil
}

func defaultPattern(pattern, fallback string) string {
	if strings.TrimSpace(pattern) == "" {
		return fallback
	}
	return pattern
}

func (r *CompiledRule) setTarget(raw string) error {
	trigger := strings.ToLower(strings.TrimSpace(raw))
	if trigger == TargetSignificant {
		r.anySignificant = true
		return nil
	}
	t, err := core.ParseAttachmentType(trigger)
	if err != nil {
		return fmt.Errorf("%w: attachment target %q", ErrInvalidRule, raw)
	}
	r.target = t
	return nil
}
