package scoring

import (
	"sort"
	"time"

	"go.uber.org/zap"

	"github.com/TheRocketCodeMX/sura-classifier-app/internal/core"
)

// Engine scores records against a rule library snapshot and applies the
// decision policy. Classification is a pure function of its inputs, so one
// engine is safe for concurrent use.
type Engine struct {
	policy Policy
	logger *zap.Logger
}

// NewEngine creates a new Engine after validating the policy.
func NewEngine(policy Policy, logger *zap.Logger) (*Engine, error) {
	if err := policy.Validate(); err != nil {
		return nil, err
	}
	return &Engine{
		policy: policy,
		logger: logger,
	}, nil
}

// Policy returns the engine's decision policy.
func (e *Engine) Policy() Policy {
	return e.policy
}

// candidate is one category's outcome for a record.
type candidate struct {
	category core.Category
	raw      float64
	score    float64
	matched  []core.Rule
}

// Classify sums the weights of every matching rule per category, normalizes
// the raw scores into confidences and applies the decision policy. Missing
// fields simply fail to match; a record matching zero rules is Unclassified
// with confidence 0.
func (e *Engine) Classify(rec *core.EmailRecord, content core.NormalizedContent, attachments []core.AttachmentInfo, lib core.RuleLibrary) *core.ClassificationResult {
	cands := make([]candidate, 0, len(core.Categories()))
	for _, cat := range core.Categories() {
		c := candidate{category: cat}
		for _, rule := range lib.Rules(cat) {
			if rule.Matches(content, attachments) {
				c.raw += rule.Weight()
				c.matched = append(c.matched, rule)
			}
		}
		c.score = e.policy.Confidence(c.raw)
		cands = append(cands, c)
	}

	best := pick(cands)
	accepted := len(best.matched) > 0 &&
		best.score >= e.policy.GlobalFloor &&
		best.score >= e.policy.ThresholdFor(best.category)

	winner := best
	if accepted {
		winner = e.tieBreak(cands, best)
	}

	result := &core.ClassificationResult{
		EmailID:        rec.ID,
		LibraryVersion: lib.Version(),
		ClassifiedAt:   time.Now().UTC(),
	}
	if accepted {
		result.Category = winner.category
		result.Confidence = winner.score
		result.Evidence = evidenceNames(winner.matched)
	} else {
		// Near misses keep the best candidate's confidence and evidence so
		// they stay inspectable.
		result.Category = core.CategoryUnclassified
		result.Confidence = best.score
		result.Evidence = evidenceNames(best.matched)
	}

	fields := []zap.Field{
		zap.String("email_id", rec.ID),
		zap.String("category", string(result.Category)),
		zap.Float64("confidence", result.Confidence),
	}
	for _, c := range cands {
		fields = append(fields, zap.Float64("score_"+string(c.category), c.score))
	}
	e.logger.Debug("Scored record", fields...)

	return result
}

// pick returns the highest-scoring candidate. Candidates arrive in priority
// order, so exact score ties already resolve deterministically.
func pick(cands []candidate) candidate {
	best := cands[0]
	for _, c := range cands[1:] {
		if c.score > best.score {
			best = c
		}
	}
	return best
}

// tieBreak resolves competing candidates within epsilon of the leader.
// Only candidates at or above their own threshold and the floor compete;
// among those, category priority wins.
func (e *Engine) tieBreak(cands []candidate, best candidate) candidate {
	winner := best
	for _, c := range cands {
		if c.category == winner.category || len(c.matched) == 0 {
			continue
		}
		if best.score-c.score > e.policy.Epsilon {
			continue
		}
		if c.score < e.policy.GlobalFloor || c.score < e.policy.ThresholdFor(c.category) {
			continue
		}
		if c.category.Priority() < winner.category.Priority() {
			winner = c
		}
	}
	return winner
}

// evidenceNames orders matched rules by descending weight for the evidence
// trail. Equal weights keep library order so repeated runs stay identical.
func evidenceNames(matched []core.Rule) []string {
	rules := make([]core.Rule, len(matched))
	copy(rules, matched)
	sort.SliceStable(rules, func(i, j int) bool {
		return rules[i].Weight() > rules[j].Weight()
	})
	names := make([]string, 0, len(rules))
	for _, r := range rules {
		names = append(names, r.Name())
	}
	return names
}
