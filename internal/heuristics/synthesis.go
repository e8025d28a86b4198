package heuristics

import (
	"sort"
	"strings"
)

const (
	maxTotalScore       = 100
	highRiskThreshold   = 50
	mediumRiskThreshold = 20
	maxJustified        = 3

	legitimateJustification = "No significant phishing indicators detected."
)

// findingLabels are the short names used in justification text.
var findingLabels = map[string]string{
	IDLookalikeDomain:    "look-alike sender domain",
	IDDomainMismatch:     "brand/sender domain mismatch",
	IDUrgencyLanguage:    "urgency language",
	IDReplyToMismatch:    "Reply-To domain mismatch",
	IDLinksOffBrand:      "links to unrelated domains",
	IDFreemailBrand:      "brand name on a free mailbox",
	IDWeakAuthentication: "weak SPF/DMARC",
	IDSuspiciousTLD:      "high-risk TLD",
	IDPunycodeHomoglyph:  "punycode/homoglyph domain",
}

var severityRank = map[string]int{
	SeverityHigh:   3,
	SeverityMedium: 2,
	SeverityLow:    1,
}

// Synthesize folds findings into a HeuristicResult. Findings are kept in the
// order given.
func Synthesize(findings []*Finding) *HeuristicResult {
	if findings == nil {
		findings = []*Finding{}
	}

	total := 0
	hasDomainFinding := false
	for _, f := range findings {
		total += clamp(f.Score, 0, maxFindingScore)
		if f.ID == IDLookalikeDomain || f.ID == IDDomainMismatch {
			hasDomainFinding = true
		}
	}
	total = clamp(total, 0, maxTotalScore)

	verdict := VerdictFor(total)
	if verdict == VerdictLegitimate && hasDomainFinding {
		verdict = VerdictSuspicious
	}

	return &HeuristicResult{
		Score:         total,
		Risk:          RiskFor(total),
		Verdict:       verdict,
		Justification: justify(verdict, findings),
		Findings:      findings,
	}
}

// RiskFor maps a total score to a risk tier.
func RiskFor(score int) string {
	switch {
	case score >= highRiskThreshold:
		return RiskHigh
	case score >= mediumRiskThreshold:
		return RiskMedium
	default:
		return RiskLow
	}
}

// VerdictFor maps a total score to a verdict before any override.
func VerdictFor(score int) string {
	switch {
	case score >= highRiskThreshold:
		return VerdictPhishing
	case score >= mediumRiskThreshold:
		return VerdictSuspicious
	default:
		return VerdictLegitimate
	}
}

func justify(verdict string, findings []*Finding) string {
	if len(findings) == 0 {
		return legitimateJustification
	}

	ordered := make([]*Finding, len(findings))
	copy(ordered, findings)
	sort.SliceStable(ordered, func(i, j int) bool {
		ri, rj := severityRank[ordered[i].Severity], severityRank[ordered[j].Severity]
		if ri != rj {
			return ri > rj
		}
		return ordered[i].Score > ordered[j].Score
	})

	var ids []string
	seen := make(map[string]struct{})
	for _, f := range ordered {
		if _, ok := seen[f.ID]; ok {
			continue
		}
		seen[f.ID] = struct{}{}
		ids = append(ids, f.ID)
		if len(ids) == maxJustified {
			break
		}
	}

	var labels []string
	for _, id := range ids {
		if label, ok := findingLabels[id]; ok {
			labels = append(labels, label)
		}
	}
	if len(labels) == 0 {
		return ""
	}

	prefix := "Suspicious: "
	if verdict == VerdictPhishing {
		prefix = "Probable phishing: "
	}
	return prefix + strings.Join(labels, ", ") + "."
}
