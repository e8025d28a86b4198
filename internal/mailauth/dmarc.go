package mailauth

import (
	"strconv"
	"strings"
)

const dmarcPrefix = "v=dmarc1"

// DMARC policies.
const (
	PolicyNone       = "none"
	PolicyQuarantine = "quarantine"
	PolicyReject     = "reject"
)

// DMARCRecord holds the tags of a v=DMARC1 record with defaults applied.
type DMARCRecord struct {
	Record    string `json:"record"`
	Policy    string `json:"policy"`
	SubPolicy string `json:"sub_policy"`
	RUA       string `json:"rua,omitempty"`
	RUF       string `json:"ruf,omitempty"`
	Pct       int    `json:"pct"`
	FO        string `json:"fo,omitempty"`
	ADKIM     string `json:"adkim"`
	ASPF      string `json:"aspf"`
}

// DMARCResult is the DMARC posture published at _dmarc.<domain>.
type DMARCResult struct {
	Found   bool          `json:"found"`
	Domain  string        `json:"domain"`
	Records []string      `json:"records"`
	Parsed  []DMARCRecord `json:"parsed"`
	Error   string        `json:"error,omitempty"`
}

// Policy returns the p= value of the first parsed record.
func (r DMARCResult) Policy() string {
	if len(r.Parsed) == 0 {
		return ""
	}
	return r.Parsed[0].Policy
}

// DMARCName returns the DNS name holding the DMARC record of domain.
func DMARCName(domain string) string {
	return "_dmarc." + strings.ToLower(strings.Trim(strings.TrimSpace(domain), "."))
}

// AnalyzeDMARC selects the v=DMARC1 records among txt (the TXT set of
// _dmarc.<domain>) and parses them.
func AnalyzeDMARC(domain string, txt []string, lookupErr error) DMARCResult {
	result := DMARCResult{
		Domain:  DMARCName(domain),
		Records: []string{},
		Parsed:  []DMARCRecord{},
	}
	if lookupErr != nil {
		result.Error = lookupErr.Error()
		return result
	}

	for _, value := range txt {
		value = strings.TrimSpace(value)
		if !IsDMARCRecord(value) {
			continue
		}
		result.Records = append(result.Records, value)
		result.Parsed = append(result.Parsed, ParseDMARCRecord(value))
	}
	result.Found = len(result.Records) > 0
	return result
}

// IsDMARCRecord reports whether a TXT value starts with the v=DMARC1 tag.
func IsDMARCRecord(value string) bool {
	lower := strings.ToLower(strings.TrimSpace(value))
	if !strings.HasPrefix(lower, dmarcPrefix) {
		return false
	}
	if len(lower) == len(dmarcPrefix) {
		return true
	}
	next := lower[len(dmarcPrefix)]
	return next == ';' || next == ' ' || next == '\t'
}

// ParseDMARCRecord reads the tag list of a DMARC record. Entries without '='
// are ignored, keys are case-insensitive and unknown or invalid values fall
// back to the defaults.
func ParseDMARCRecord(record string) DMARCRecord {
	parsed := DMARCRecord{
		Record: record,
		Policy: PolicyNone,
		Pct:    100,
		ADKIM:  "r",
		ASPF:   "r",
	}

	body := strings.TrimSpace(record)
	if len(body) >= len(dmarcPrefix) && strings.EqualFold(body[:len(dmarcPrefix)], dmarcPrefix) {
		body = body[len(dmarcPrefix):]
	}

	tags := make(map[string]string)
	for _, entry := range strings.Split(body, ";") {
		key, value, ok := strings.Cut(entry, "=")
		if !ok {
			continue
		}
		key = strings.ToLower(strings.TrimSpace(key))
		if key == "" {
			continue
		}
		tags[key] = strings.TrimSpace(value)
	}

	if p, ok := tags["p"]; ok {
		parsed.Policy = normalizePolicy(p, PolicyNone)
	}
	parsed.SubPolicy = parsed.Policy
	if sp, ok := tags["sp"]; ok {
		parsed.SubPolicy = normalizePolicy(sp, parsed.Policy)
	}
	parsed.RUA = tags["rua"]
	parsed.RUF = tags["ruf"]
	parsed.FO = tags["fo"]

	if pct, ok := tags["pct"]; ok {
		if n, err := strconv.Atoi(pct); err == nil {
			parsed.Pct = min(max(n, 0), 100)
		}
	}
	if strings.EqualFold(tags["adkim"], "s") {
		parsed.ADKIM = "s"
	}
	if strings.EqualFold(tags["aspf"], "s") {
		parsed.ASPF = "s"
	}

	return parsed
}

func normalizePolicy(value, fallback string) string {
	switch strings.ToLower(value) {
	case PolicyNone:
		return PolicyNone
	case PolicyQuarantine:
		return PolicyQuarantine
	case PolicyReject:
		return PolicyReject
	}
	return fallback
}
