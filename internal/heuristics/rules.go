package heuristics

import (
	"fmt"
	"strings"

	"golang.org/x/net/idna"

	"github.com/mikey/phish-scanner/internal/indicators"
	"github.com/mikey/phish-scanner/internal/mailauth"
)

// Finding identifiers.
const (
	IDLookalikeDomain    = "H-1-lookalike-domain"
	IDDomainMismatch     = "H-1-domain-mismatch"
	IDUrgencyLanguage    = "H-2-urgency-language"
	IDReplyToMismatch    = "H-3-reply-to-mismatch"
	IDLinksOffBrand      = "H-4-links-off-brand"
	IDFreemailBrand      = "H-5-freemail-brand"
	IDWeakAuthentication = "H-6-weak-authentication"
	IDSuspiciousTLD      = "H-7-suspicious-tld"
	IDPunycodeHomoglyph  = "H-8-punycode-homoglyph"
)

const (
	maxFindingScore = 30
	// suspiciousTLDCategory is added once for the sender and once for links.
	suspiciousTLDCategory = 5
)

// Rule is one named detector. Check returns nil when the rule does not fire.
type Rule struct {
	Key   string
	Check func(*EmailContext) *Finding
}

type ruleSet struct {
	domains    *indicators.Domains
	brandish   []string
	freemail   set
	shorteners set
	riskyTLDs  set
	strong     []string
	weak       []string
}

func newRuleSet(v Vocabulary, coreMode string) *ruleSet {
	return &ruleSet{
		domains:    indicators.NewDomains(coreMode, v.MultiLabelTLDs, v.Brands),
		brandish:   cleanList(v.BrandishKeywords),
		freemail:   newSet(v.FreemailProviders),
		shorteners: newSet(v.Shorteners),
		riskyTLDs:  newSet(v.RiskyTLDs),
		strong:     cleanList(v.UrgencyStrong),
		weak:       cleanList(v.UrgencyWeak),
	}
}

// rules lists the detectors in output order.
func (r *ruleSet) rules() []Rule {
	return []Rule{
		{Key: "h1", Check: r.domainMismatch},
		{Key: "h2", Check: r.urgencyLanguage},
		{Key: "h3", Check: r.replyToMismatch},
		{Key: "h4", Check: r.linksOffBrand},
		{Key: "h5", Check: r.freemailBrand},
		{Key: "h6", Check: r.weakAuthentication},
		{Key: "h7", Check: r.suspiciousTLD},
		{Key: "h8", Check: r.punycodeHomoglyph},
	}
}

// H1: the display name names a brand the sender domain does not belong to.
func (r *ruleSet) domainMismatch(c *EmailContext) *Finding {
	if c.FromDomain == "" {
		return nil
	}
	brand := r.domains.BrandToken(c.DisplayName)
	if brand == "" {
		return nil
	}
	label := r.domains.SecondLevelLabel(c.FromDomain)
	if label == brand {
		return nil
	}

	ev := Evidence{
		"brand":        brand,
		"display_name": c.DisplayName,
		"from_domain":  c.FromDomain,
		"label":        label,
	}
	if strings.Contains(label, brand) {
		return newFinding(IDLookalikeDomain, SeverityMedium, 18,
			fmt.Sprintf("Sender domain %s looks like an imitation of %q", c.FromDomain, brand), ev)
	}
	return newFinding(IDDomainMismatch, SeverityMedium, 15,
		fmt.Sprintf("Display name mentions %q but the message comes from %s", brand, c.FromDomain), ev)
}

// H2: pressure wording in the subject or body.
func (r *ruleSet) urgencyLanguage(c *EmailContext) *Finding {
	subject := strings.ToLower(c.Subject)
	body := strings.ToLower(c.Body)

	var hits []string
	strongHit, inBoth := false, false
	match := func(keywords []string, strong bool) {
		for _, kw := range keywords {
			inSubject := strings.Contains(subject, kw)
			inBody := strings.Contains(body, kw)
			if !inSubject && !inBody {
				continue
			}
			hits = append(hits, kw)
			if strong {
				strongHit = true
			}
			if inSubject && inBody {
				inBoth = true
			}
		}
	}
	match(r.strong, true)
	match(r.weak, false)

	if len(hits) == 0 {
		return nil
	}

	ev := Evidence{
		"keywords":            hits,
		"hits":                len(hits),
		"strong":              strongHit,
		"in_subject_and_body": inBoth,
	}
	if inBoth || len(hits) >= 3 {
		return newFinding(IDUrgencyLanguage, SeverityMedium, 12,
			"Message uses strong urgency or pressure language", ev)
	}
	return newFinding(IDUrgencyLanguage, SeverityLow, 6,
		"Message uses urgency or call-to-action language", ev)
}

// H3: replies go to a different organisation than the sender.
func (r *ruleSet) replyToMismatch(c *EmailContext) *Finding {
	fromCore := r.domains.Core(c.FromDomain)
	replyCore := r.domains.Core(c.ReplyDomain)
	if fromCore == "" || replyCore == "" || fromCore == replyCore {
		return nil
	}
	return newFinding(IDReplyToMismatch, SeverityMedium, 15,
		fmt.Sprintf("Reply-To domain %s differs from sender domain %s", replyCore, fromCore),
		Evidence{"from_core": fromCore, "reply_to_core": replyCore})
}

// H4: every link points away from the sender's own domain.
func (r *ruleSet) linksOffBrand(c *EmailContext) *Finding {
	if len(c.URLs) == 0 {
		return nil
	}
	fromCore := r.domains.Core(c.FromDomain)
	if fromCore == "" {
		return nil
	}

	var cores []string
	seen := make(map[string]struct{})
	for _, u := range c.URLs {
		host := indicators.HostOf(u)
		core := r.domains.Core(host)
		if core == fromCore || r.shorteners.has(core) || r.shorteners.has(host) {
			return nil
		}
		if _, ok := seen[core]; !ok {
			seen[core] = struct{}{}
			cores = append(cores, core)
		}
	}

	return newFinding(IDLinksOffBrand, SeverityMedium, 15,
		fmt.Sprintf("All %d links point to domains other than %s", len(c.URLs), fromCore),
		Evidence{"from_core": fromCore, "link_domains": cores, "links": len(c.URLs)})
}

// H5: a free mailbox presents itself as a company or service desk.
func (r *ruleSet) freemailBrand(c *EmailContext) *Finding {
	if c.FromDomain == "" || !r.freemail.has(c.FromDomain) {
		return nil
	}
	name := " " + strings.Join(strings.Fields(nonAlnumToSpace(strings.ToLower(c.DisplayName))), " ") + " "
	if strings.TrimSpace(name) == "" {
		return nil
	}
	for _, kw := range r.brandish {
		if strings.Contains(name, " "+kw+" ") {
			return newFinding(IDFreemailBrand, SeverityMedium, 15,
				fmt.Sprintf("Free mailbox at %s uses a brand-like display name", c.FromDomain),
				Evidence{"display_name": c.DisplayName, "from_domain": c.FromDomain, "keyword": kw})
		}
	}
	return nil
}

// H6: neither SPF nor DMARC would stop a spoofed sender. Without a sender
// domain there is no posture to judge.
func (r *ruleSet) weakAuthentication(c *EmailContext) *Finding {
	if c.FromDomain == "" {
		return nil
	}
	all := c.SPF.AllQualifier()
	spfWeak := !c.SPF.Found || all == mailauth.AllSoftFail || all == mailauth.AllNeutral || all == mailauth.AllPass
	policy := c.DMARC.Policy()
	dmarcWeak := !c.DMARC.Found || policy == mailauth.PolicyNone
	if !spfWeak || !dmarcWeak {
		return nil
	}
	return newFinding(IDWeakAuthentication, SeverityLow, 10,
		"Sender domain has weak or missing SPF and DMARC protection",
		Evidence{
			"spf_found":    c.SPF.Found,
			"spf_all":      all,
			"dmarc_found":  c.DMARC.Found,
			"dmarc_policy": policy,
		})
}

// H7: the sender or a link uses a TLD popular with throwaway domains. Each
// category contributes once no matter how many links match.
func (r *ruleSet) suspiciousTLD(c *EmailContext) *Finding {
	score := 0
	ev := Evidence{}

	if tld := indicators.TLD(c.FromDomain); tld != "" && r.riskyTLDs.has(tld) {
		score += suspiciousTLDCategory
		ev["sender_tld"] = tld
	}
	for _, u := range c.URLs {
		if tld := indicators.TLD(indicators.HostOf(u)); tld != "" && r.riskyTLDs.has(tld) {
			score += suspiciousTLDCategory
			ev["url_tld"] = tld
			ev["url"] = u
			break
		}
	}

	if score == 0 {
		return nil
	}
	return newFinding(IDSuspiciousTLD, SeverityLow, score,
		"Sender or link uses a high-risk top-level domain", ev)
}

// H8: IDN or non-printable characters in a sender or link domain.
func (r *ruleSet) punycodeHomoglyph(c *EmailContext) *Finding {
	candidates := []string{c.FromDomain, c.ReplyDomain}
	for _, u := range c.URLs {
		candidates = append(candidates, indicators.HostOf(u))
	}

	var flagged []string
	decoded := Evidence{}
	seen := make(map[string]struct{})
	for _, d := range candidates {
		if d == "" || !isSuspiciousHost(d) {
			continue
		}
		if _, ok := seen[d]; ok {
			continue
		}
		seen[d] = struct{}{}
		flagged = append(flagged, d)
		if strings.Contains(d, "xn--") {
			if u, err := idna.ToUnicode(d); err == nil && u != d {
				decoded[d] = u
			}
		}
	}

	if len(flagged) == 0 {
		return nil
	}
	ev := Evidence{"domains": flagged}
	if len(decoded) > 0 {
		ev["decoded"] = decoded
	}
	return newFinding(IDPunycodeHomoglyph, SeverityMedium, 15,
		"Domain uses punycode or non-ASCII characters that can hide a look-alike", ev)
}

func isSuspiciousHost(host string) bool {
	if strings.Contains(host, "xn--") {
		return true
	}
	for i := 0; i < len(host); i++ {
		if host[i] < 0x21 || host[i] > 0x7e {
			return true
		}
	}
	return false
}

func nonAlnumToSpace(s string) string {
	return strings.Map(func(r rune) rune {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			return r
		}
		return ' '
	}, s)
}
