package indicators

import (
	"net/mail"
	"regexp"
	"strings"

	"golang.org/x/net/publicsuffix"
)

// Core-domain approximation modes.
const (
	ModeNaive        = "naive"
	ModePublicSuffix = "publicsuffix"
)

var (
	angleAddrRe   = regexp.MustCompile(`<([^>]*)>`)
	bareAddrRe    = regexp.MustCompile(`(?i)[a-z0-9._%+\-]+@[a-z0-9.\-]+\.[a-z]{2,}`)
	nonAlnumRunRe = regexp.MustCompile(`[^a-z0-9]+`)
)

// DomainFromAddress extracts the lowercased domain of the address in a
// From/Reply-To style header. The address inside <...> wins over a bare
// user@domain match. It returns "" when no domain can be found.
func DomainFromAddress(header string) string {
	header = strings.TrimSpace(header)
	if header == "" {
		return ""
	}

	addr := header
	if m := angleAddrRe.FindStringSubmatch(header); m != nil {
		addr = m[1]
	} else if m := bareAddrRe.FindString(header); m != "" {
		addr = m
	}

	parts := strings.Split(strings.TrimSpace(addr), "@")
	if len(parts) != 2 {
		return ""
	}
	return strings.ToLower(strings.Trim(strings.TrimSpace(parts[1]), "."))
}

// DisplayName returns the display-name part of an address header, e.g.
// "PayPal Support" for `PayPal Support <support@example.com>`.
func DisplayName(header string) string {
	header = strings.TrimSpace(header)
	if header == "" {
		return ""
	}
	if addr, err := mail.ParseAddress(header); err == nil {
		return strings.TrimSpace(addr.Name)
	}
	// net/mail is strict about quoting; fall back to everything before '<'
	if i := strings.Index(header, "<"); i > 0 {
		return strings.Trim(strings.TrimSpace(header[:i]), `"' `)
	}
	return ""
}

// TLD returns the last label of a host name.
func TLD(host string) string {
	labels := splitLabels(host)
	if len(labels) == 0 {
		return ""
	}
	return labels[len(labels)-1]
}

// Domains holds the tunable data behind the domain helpers.
type Domains struct {
	mode       string
	multiLabel map[string]struct{}
	brands     map[string]struct{}
}

// NewDomains creates domain helpers. multiLabelTLDs lists public suffixes with
// two labels such as "co.uk"; brands is the keyword list used by BrandToken.
func NewDomains(mode string, multiLabelTLDs, brands []string) *Domains {
	d := &Domains{
		mode:       mode,
		multiLabel: make(map[string]struct{}, len(multiLabelTLDs)),
		brands:     make(map[string]struct{}, len(brands)),
	}
	if d.mode != ModePublicSuffix {
		d.mode = ModeNaive
	}
	for _, s := range multiLabelTLDs {
		if s = strings.ToLower(strings.Trim(strings.TrimSpace(s), ".")); s != "" {
			d.multiLabel[s] = struct{}{}
		}
	}
	for _, b := range brands {
		if b = strings.ToLower(strings.TrimSpace(b)); b != "" {
			d.brands[b] = struct{}{}
		}
	}
	return d
}

// Core approximates the registrable domain (eTLD+1) of domain.
func (d *Domains) Core(domain string) string {
	labels := splitLabels(domain)
	if len(labels) == 0 {
		return ""
	}

	if d.mode == ModePublicSuffix && len(labels) > 1 {
		if etld1, err := publicsuffix.EffectiveTLDPlusOne(strings.Join(labels, ".")); err == nil && etld1 != "" {
			return etld1
		}
	}

	n := len(labels)
	if n <= 2 {
		return strings.Join(labels, ".")
	}
	if d.isMultiLabel(labels) {
		return strings.Join(labels[n-3:], ".")
	}
	return strings.Join(labels[n-2:], ".")
}

// SecondLevelLabel returns the label right before the (possibly multi-label)
// TLD: "paypal" for "mail.paypal.co.uk".
func (d *Domains) SecondLevelLabel(domain string) string {
	labels := splitLabels(d.Core(domain))
	if len(labels) == 0 {
		return ""
	}
	// the core domain is label + suffix, so its first label is the answer
	return labels[0]
}

// BrandToken returns the first token of displayName (at least three
// characters long) that is a configured brand keyword, or "".
func (d *Domains) BrandToken(displayName string) string {
	cleaned := nonAlnumRunRe.ReplaceAllString(strings.ToLower(displayName), " ")
	for _, tok := range strings.Fields(cleaned) {
		if len(tok) < 3 {
			continue
		}
		if _, ok := d.brands[tok]; ok {
			return tok
		}
	}
	return ""
}

func (d *Domains) isMultiLabel(labels []string) bool {
	n := len(labels)
	if n < 3 {
		return false
	}
	_, ok := d.multiLabel[labels[n-2]+"."+labels[n-1]]
	return ok
}

func splitLabels(domain string) []string {
	domain = strings.ToLower(strings.Trim(strings.TrimSpace(domain), "."))
	if domain == "" {
		return nil
	}
	raw := strings.Split(domain, ".")
	labels := raw[:0]
	for _, l := range raw {
		if l != "" {
			labels = append(labels, l)
		}
	}
	return labels
}
