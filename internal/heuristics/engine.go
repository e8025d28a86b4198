package heuristics

import (
	"fmt"
	"strings"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// Options controls which rules run and how.
type Options struct {
	// CoreMode selects the registrable-domain approximation
	// (indicators.ModeNaive or indicators.ModePublicSuffix).
	CoreMode string
	// Rules enables or disables rules by key ("h1".."h8"). Missing keys
	// are enabled.
	Rules map[string]bool
	// Parallel evaluates the rules concurrently.
	Parallel bool
}

// Engine evaluates the rule set. It keeps no per-scan state and is safe for
// concurrent use.
type Engine struct {
	rules    []Rule
	parallel bool
	logger   *zap.Logger
}

// NewEngine creates an engine over the given vocabulary.
func NewEngine(vocab Vocabulary, opts Options, logger *zap.Logger) *Engine {
	if logger == nil {
		logger = zap.NewNop()
	}

	enabled := make(map[string]bool, len(opts.Rules))
	for k, v := range opts.Rules {
		enabled[strings.ToLower(k)] = v
	}

	var rules []Rule
	for _, rule := range newRuleSet(vocab, opts.CoreMode).rules() {
		if on, ok := enabled[rule.Key]; ok && !on {
			logger.Info("Heuristic rule disabled", zap.String("rule", rule.Key))
			continue
		}
		rules = append(rules, rule)
	}

	return &Engine{
		rules:    rules,
		parallel: opts.Parallel,
		logger:   logger,
	}
}

// Rules returns the keys of the enabled rules in evaluation order.
func (e *Engine) Rules() []string {
	keys := make([]string, len(e.rules))
	for i, r := range e.rules {
		keys[i] = r.Key
	}
	return keys
}

// Evaluate runs the enabled rules against c and synthesizes the result.
// A nil context yields an empty, legitimate result.
func (e *Engine) Evaluate(c *EmailContext) *HeuristicResult {
	if c == nil {
		return Synthesize(nil)
	}

	slots := make([]*Finding, len(e.rules))
	if e.parallel {
		var g errgroup.Group
		for i, rule := range e.rules {
			i, rule := i, rule
			g.Go(func() error {
				var err error
				slots[i], err = e.check(rule, c)
				return err
			})
		}
		// Wait reports the first failed rule; every failed rule has a nil slot.
		if err := g.Wait(); err != nil {
			e.logger.Error("Heuristic rule failed", zap.Error(err))
		}
	} else {
		for i, rule := range e.rules {
			var err error
			if slots[i], err = e.check(rule, c); err != nil {
				e.logger.Error("Heuristic rule failed", zap.Error(err))
			}
		}
	}

	findings := make([]*Finding, 0, len(slots))
	for _, f := range slots {
		if f != nil {
			findings = append(findings, f)
		}
	}

	result := Synthesize(findings)
	e.logger.Debug("Heuristics evaluated",
		zap.String("from_domain", c.FromDomain),
		zap.Int("urls", len(c.URLs)),
		zap.Int("findings", len(findings)),
		zap.Int("score", result.Score),
		zap.String("verdict", result.Verdict))
	return result
}

// check runs a single rule. A panicking rule does not fire and is reported
// as an error.
func (e *Engine) check(rule Rule, c *EmailContext) (f *Finding, err error) {
	defer func() {
		if r := recover(); r != nil {
			f, err = nil, fmt.Errorf("rule %s panicked: %v", rule.Key, r)
		}
	}()
	return rule.Check(c), nil
}
