package heuristics

import "strings"

// Vocabulary is the tunable word and domain data the rules match against.
type Vocabulary struct {
	// Brands are matched as whole display-name tokens by H1.
	Brands []string
	// BrandishKeywords are looked for in the display name of freemail senders (H5).
	BrandishKeywords  []string
	FreemailProviders []string
	Shorteners        []string
	RiskyTLDs         []string
	MultiLabelTLDs    []string
	UrgencyStrong     []string
	UrgencyWeak       []string
}

// DefaultVocabulary returns the built-in lists.
func DefaultVocabulary() Vocabulary {
	return Vocabulary{
		Brands: []string{
			"paypal", "apple", "microsoft", "amazon", "google", "bank",
			"netflix", "facebook", "instagram", "dhl", "ups", "stripe",
			"billing", "support", "service", "security",
		},
		BrandishKeywords: []string{
			"paypal", "apple", "microsoft", "amazon", "google", "bank",
			"netflix", "facebook", "instagram", "dhl", "ups", "fedex",
			"stripe", "billing", "support", "service", "security", "account",
			"admin", "helpdesk", "it department", "customer care", "team",
		},
		FreemailProviders: []string{
			"gmail.com", "outlook.com", "hotmail.com", "live.com", "yahoo.com",
			"icloud.com", "proton.me", "protonmail.com", "gmx.com", "aol.com",
		},
		Shorteners: []string{
			"bit.ly", "tinyurl.com", "linktr.ee", "lnkd.in", "goo.gl",
		},
		RiskyTLDs: []string{
			"ru", "cn", "top", "icu", "zip", "cam", "tokyo", "country",
			"support", "xyz", "click", "live",
		},
		MultiLabelTLDs: []string{
			"co.uk", "org.uk", "ac.uk", "gov.uk", "com.au", "net.au", "org.au",
			"co.nz", "co.jp", "com.br", "com.mx", "co.za", "com.tr", "com.cn",
		},
		UrgencyStrong: []string{
			"urgent", "immediately", "suspend", "locked", "breach",
			"compromised", "verify now", "overdue", "final notice",
		},
		UrgencyWeak: []string{
			"verify", "confirm", "update account", "password", "invoice",
			"payment", "limited time", "click", "security alert",
		},
	}
}

// set is a lowercased lookup table built from a vocabulary list.
type set map[string]struct{}

func newSet(items []string) set {
	s := make(set, len(items))
	for _, it := range items {
		if it = strings.ToLower(strings.Trim(strings.TrimSpace(it), ".")); it != "" {
			s[it] = struct{}{}
		}
	}
	return s
}

func (s set) has(item string) bool {
	_, ok := s[item]
	return ok
}

// cleanList lowercases, trims and de-duplicates a keyword list while
// keeping its order.
func cleanList(items []string) []string {
	seen := make(map[string]struct{}, len(items))
	out := make([]string, 0, len(items))
	for _, it := range items {
		it = strings.ToLower(strings.TrimSpace(it))
		if it == "" {
			continue
		}
		if _, dup := seen[it]; dup {
			continue
		}
		seen[it] = struct{}{}
		out = append(out, it)
	}
	return out
}
