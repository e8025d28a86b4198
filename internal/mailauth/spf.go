// Package mailauth parses the SPF and DMARC TXT records published for a
// sender domain. Record retrieval is left to the caller.
package mailauth

import (
	"strings"
)

const spfPrefix = "v=spf1"

// SPF all-qualifier values.
const (
	AllFail     = "-all"
	AllSoftFail = "~all"
	AllNeutral  = "?all"
	AllPass     = "+all"
)

// SPFMechanism is one classified term of an SPF record.
type SPFMechanism struct {
	Type      string `json:"type"`
	Qualifier string `json:"qualifier,omitempty"`
	Value     string `json:"value,omitempty"`
	Raw       string `json:"raw,omitempty"`
}

// SPFRecord is a parsed v=spf1 record. All, Redirect and Exp are empty when
// the record does not carry them.
type SPFRecord struct {
	Record     string         `json:"record"`
	Mechanisms []SPFMechanism `json:"mechanisms"`
	All        string         `json:"all"`
	Redirect   string         `json:"redirect"`
	Exp        string         `json:"exp"`
	Policy     string         `json:"policy"`
	Warnings   []string       `json:"warnings"`
}

// SPFResult is the SPF posture of a domain.
type SPFResult struct {
	Found   bool        `json:"found"`
	Domain  string      `json:"domain"`
	Records []string    `json:"records"`
	Parsed  []SPFRecord `json:"parsed"`
	Error   string      `json:"error,omitempty"`
}

// AllQualifier returns the all qualifier of the first parsed record.
func (r SPFResult) AllQualifier() string {
	if len(r.Parsed) == 0 {
		return ""
	}
	return r.Parsed[0].All
}

// AnalyzeSPF selects the v=spf1 records among txt and parses each of them.
// A non-nil lookupErr yields a result with Found=false and Error set.
func AnalyzeSPF(domain string, txt []string, lookupErr error) SPFResult {
	result := SPFResult{
		Domain:  strings.ToLower(strings.TrimSpace(domain)),
		Records: []string{},
		Parsed:  []SPFRecord{},
	}
	if lookupErr != nil {
		result.Error = lookupErr.Error()
		return result
	}

	for _, value := range txt {
		value = strings.TrimSpace(value)
		if !IsSPFRecord(value) {
			continue
		}
		result.Records = append(result.Records, value)
		result.Parsed = append(result.Parsed, ParseSPFRecord(value))
	}
	result.Found = len(result.Records) > 0
	return result
}

// IsSPFRecord reports whether a TXT value is an SPF version 1 record.
func IsSPFRecord(value string) bool {
	lower := strings.ToLower(strings.TrimSpace(value))
	if !strings.HasPrefix(lower, spfPrefix) {
		return false
	}
	return len(lower) == len(spfPrefix) || lower[len(spfPrefix)] == ' ' || lower[len(spfPrefix)] == '\t'
}

// ParseSPFRecord classifies the terms of a single SPF record. When several
// all terms are present the last one governs; such a record is malformed and
// has no defined meaning anyway.
func ParseSPFRecord(record string) SPFRecord {
	parsed := SPFRecord{
		Record:     record,
		Mechanisms: []SPFMechanism{},
		Warnings:   []string{},
	}

	tokens := strings.Fields(record)
	for i, tok := range tokens {
		if i == 0 && strings.EqualFold(tok, spfPrefix) {
			continue
		}
		lower := strings.ToLower(tok)

		if all, ok := parseAllTerm(lower); ok {
			parsed.All = all
			continue
		}
		if strings.HasPrefix(lower, "redirect=") {
			parsed.Redirect = tok[len("redirect="):]
			continue
		}
		if strings.HasPrefix(lower, "exp=") {
			parsed.Exp = tok[len("exp="):]
			continue
		}

		parsed.Mechanisms = append(parsed.Mechanisms, parseMechanism(tok))
	}

	parsed.Policy = policyFor(parsed.All)
	parsed.Warnings = spfWarnings(parsed)
	return parsed
}

func parseAllTerm(lower string) (string, bool) {
	switch lower {
	case "all", "+all":
		return AllPass, true
	case "-all":
		return AllFail, true
	case "~all":
		return AllSoftFail, true
	case "?all":
		return AllNeutral, true
	}
	return "", false
}

func parseMechanism(tok string) SPFMechanism {
	qualifier := ""
	body := tok
	if strings.ContainsRune("+-~?", rune(tok[0])) {
		qualifier = tok[:1]
		body = tok[1:]
	}
	lower := strings.ToLower(body)

	for _, typ := range []string{"ip4", "ip6", "include", "exists", "ptr"} {
		if strings.HasPrefix(lower, typ+":") {
			return SPFMechanism{Type: typ, Qualifier: qualifier, Value: body[len(typ)+1:]}
		}
	}

	switch {
	case lower == "a", lower == "mx", lower == "ptr":
		return SPFMechanism{Type: lower, Qualifier: qualifier}
	case strings.HasPrefix(lower, "a:"), strings.HasPrefix(lower, "a/"):
		return SPFMechanism{Type: "a", Qualifier: qualifier, Value: strings.TrimPrefix(body[1:], ":")}
	case strings.HasPrefix(lower, "mx:"), strings.HasPrefix(lower, "mx/"):
		return SPFMechanism{Type: "mx", Qualifier: qualifier, Value: strings.TrimPrefix(body[2:], ":")}
	}

	return SPFMechanism{Type: "other", Raw: tok}
}

func policyFor(all string) string {
	switch all {
	case AllFail:
		return "fail"
	case AllSoftFail:
		return "softfail"
	case AllNeutral:
		return "neutral"
	case AllPass:
		return "pass"
	}
	return "unknown"
}

func spfWarnings(r SPFRecord) []string {
	warnings := []string{}
	explicit := false
	for _, m := range r.Mechanisms {
		switch m.Type {
		case "ptr":
			if !containsString(warnings, warnPTR) {
				warnings = append(warnings, warnPTR)
			}
		case "ip4", "ip6", "include", "a", "mx":
			explicit = true
		}
	}
	if r.Policy == "pass" && !explicit {
		warnings = append(warnings, warnPassNoMechanisms)
	}
	return warnings
}

const (
	warnPTR              = "Uses PTR (discouraged)."
	warnPassNoMechanisms = `Policy "pass" but no explicit mechanisms.`
)

func containsString(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
