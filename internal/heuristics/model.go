// Package heuristics scores an email against eight independent phishing
// rules and folds their findings into a risk tier, verdict and
// justification.
package heuristics

import (
	"strings"

	"github.com/mikey/phish-scanner/internal/indicators"
	"github.com/mikey/phish-scanner/internal/mailauth"
	"github.com/mikey/phish-scanner/internal/utils"
)

// Severities
const (
	SeverityLow    = "low"
	SeverityMedium = "medium"
	SeverityHigh   = "high"
)

// Risk tiers
const (
	RiskLow    = "low"
	RiskMedium = "medium"
	RiskHigh   = "high"
)

// Verdicts
const (
	VerdictLegitimate = "likely_legitimate"
	VerdictSuspicious = "suspicious"
	VerdictPhishing   = "likely_phishing"
)

// Finding is the output of one rule that fired.
type Finding struct {
	ID       string   `json:"id"`
	Severity string   `json:"severity"`
	Score    int      `json:"score"`
	Message  string   `json:"message"`
	Evidence Evidence `json:"evidence"`
}

// HeuristicResult is the engine's assessment of one email.
type HeuristicResult struct {
	Score         int        `json:"score"`
	Risk          string     `json:"risk"`
	Verdict       string     `json:"verdict"`
	Justification string     `json:"justification"`
	Findings      []*Finding `json:"findings"`
}

// EmailContext is everything the rules look at. It is built once per scan
// and not modified afterwards.
type EmailContext struct {
	From        string
	DisplayName string
	FromDomain  string
	ReplyTo     string
	ReplyDomain string
	// Subject and Body are normalized for keyword matching.
	Subject string
	Body    string
	URLs    []string
	SPF     mailauth.SPFResult
	DMARC   mailauth.DMARCResult
}

// NewEmailContext derives the sender domains, normalized text and URL list
// from the raw header and body fields. The body used for keyword matching is
// the text part, or the flattened HTML part when there is no text part.
func NewEmailContext(from, replyTo, subject, textBody, htmlBody string, spf mailauth.SPFResult, dmarc mailauth.DMARCResult) *EmailContext {
	htmlText := ""
	if strings.TrimSpace(htmlBody) != "" {
		htmlText = utils.StripHTML(htmlBody)
	}

	body := textBody
	if strings.TrimSpace(body) == "" {
		body = htmlText
	}

	return &EmailContext{
		From:        from,
		DisplayName: indicators.DisplayName(from),
		FromDomain:  indicators.DomainFromAddress(from),
		ReplyTo:     replyTo,
		ReplyDomain: indicators.DomainFromAddress(replyTo),
		Subject:     utils.NormalizeText(subject),
		Body:        utils.NormalizeText(body),
		URLs:        indicators.ExtractURLs(textBody + "\n" + htmlText),
		SPF:         spf,
		DMARC:       dmarc,
	}
}

func newFinding(id, severity string, score int, message string, evidence Evidence) *Finding {
	return &Finding{
		ID:       id,
		Severity: severity,
		Score:    clamp(score, 0, maxFindingScore),
		Message:  message,
		Evidence: SanitizeEvidence(evidence),
	}
}

func clamp(v, lo, hi int) int {
	return max(lo, min(v, hi))
}
