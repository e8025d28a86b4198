package heuristics

import (
	"strings"
	"testing"

	"github.com/mikey/phish-scanner/internal/indicators"
	"github.com/mikey/phish-scanner/internal/mailauth"
)

func testRules() *ruleSet {
	return newRuleSet(DefaultVocabulary(), indicators.ModeNaive)
}

func TestDomainMismatch(t *testing.T) {
	rs := testRules()
	tests := []struct {
		name    string
		from    string
		wantID  string
		wantPts int
	}{
		{"exact brand domain", "PayPal <service@paypal.com>", "", 0},
		{"brand subdomain", "PayPal <service@mail.paypal.co.uk>", "", 0},
		{"look-alike", "PayPal <service@paypal-security.com>", IDLookalikeDomain, 18},
		{"unrelated domain", "Netflix Billing <billing@streamhub.io>", IDDomainMismatch, 15},
		{"no brand in name", "Jane Doe <jane@paypal-security.com>", "", 0},
		{"no display name", "service@paypal-security.com", "", 0},
		{"no sender domain", "PayPal <nobody>", "", 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx := NewEmailContext(tt.from, "", "", "", "", noSPF, noDMARC)
			f := rs.domainMismatch(ctx)
			if tt.wantID == "" {
				if f != nil {
					t.Fatalf("unexpected finding %+v", f)
				}
				return
			}
			if f == nil || f.ID != tt.wantID || f.Score != tt.wantPts || f.Severity != SeverityMedium {
				t.Fatalf("got %+v, want %s/%d", f, tt.wantID, tt.wantPts)
			}
		})
	}
}

func TestUrgencyLanguage(t *testing.T) {
	rs := testRules()
	tests := []struct {
		name     string
		subject  string
		body     string
		severity string
		score    int
	}{
		{"nothing", "Lunch on Friday?", "See you there", "", 0},
		{"single weak keyword", "Your invoice", "Attached as usual.", SeverityLow, 6},
		{"strong keyword alone", "URGENT", "", SeverityLow, 6},
		{"strong keywords add up", "URGENT: account locked", "Act immediately", SeverityMedium, 12},
		{"three weak keywords", "Invoice", "Confirm the payment details", SeverityMedium, 12},
		{"same keyword in subject and body", "Invoice", "The invoice is attached", SeverityMedium, 12},
		{"full-width text is folded", "ｉｎｖｏｉｃｅ", "", SeverityLow, 6},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := rs.urgencyLanguage(NewEmailContext("", "", tt.subject, tt.body, "", noSPF, noDMARC))
			if tt.score == 0 {
				if f != nil {
					t.Fatalf("unexpected finding %+v", f)
				}
				return
			}
			if f == nil || f.Severity != tt.severity || f.Score != tt.score {
				t.Fatalf("got %+v, want %s/%d", f, tt.severity, tt.score)
			}
		})
	}
}

func TestReplyToMismatch(t *testing.T) {
	rs := testRules()
	tests := []struct {
		from, replyTo string
		want          bool
	}{
		{"a@shop.example.com", "b@example.com", false},
		{"a@example.com", "b@example.net", true},
		{"a@example.com", "", false},
		{"", "b@example.net", false},
	}
	for _, tt := range tests {
		got := rs.replyToMismatch(NewEmailContext(tt.from, tt.replyTo, "", "", "", noSPF, noDMARC)) != nil
		if got != tt.want {
			t.Errorf("from=%q reply-to=%q: fired=%v, want %v", tt.from, tt.replyTo, got, tt.want)
		}
	}
}

func TestLinksOffBrand(t *testing.T) {
	rs := testRules()
	offBrand := []string{"https://evil.tk/a", "https://evil2.tk/b"}

	tests := []struct {
		name string
		urls []string
		want bool
	}{
		{"all links off brand", offBrand, true},
		{"one link on brand", append(append([]string{}, offBrand...), "https://www.bank.com/login"), false},
		{"shortener", append(append([]string{}, offBrand...), "https://bit.ly/abc"), false},
		{"no links", []string{}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx := &EmailContext{FromDomain: "bank.com", URLs: tt.urls}
			f := rs.linksOffBrand(ctx)
			if (f != nil) != tt.want {
				t.Fatalf("fired=%v, want %v", f != nil, tt.want)
			}
			if f != nil && (f.ID != IDLinksOffBrand || f.Score != 15) {
				t.Errorf("unexpected finding %+v", f)
			}
		})
	}

	if f := rs.linksOffBrand(&EmailContext{URLs: offBrand}); f != nil {
		t.Errorf("no sender domain must not fire: %+v", f)
	}
}

func TestFreemailBrand(t *testing.T) {
	rs := testRules()
	tests := []struct {
		from string
		want bool
	}{
		{`"Apple Support" <apple.support.team@gmail.com>`, true},
		{`"IT Department" <it.dept@outlook.com>`, true},
		{`"Jane Doe" <jane@gmail.com>`, false},
		{`"Apple Support" <support@apple.com>`, false},
		{`"Groups" <groups@gmail.com>`, false},
	}
	for _, tt := range tests {
		got := rs.freemailBrand(NewEmailContext(tt.from, "", "", "", "", noSPF, noDMARC)) != nil
		if got != tt.want {
			t.Errorf("%s: fired=%v, want %v", tt.from, got, tt.want)
		}
	}
}

func TestWeakAuthentication(t *testing.T) {
	rs := testRules()
	spf := func(txt ...string) mailauth.SPFResult { return mailauth.AnalyzeSPF("example.com", txt, nil) }
	dmarc := func(txt ...string) mailauth.DMARCResult { return mailauth.AnalyzeDMARC("example.com", txt, nil) }

	tests := []struct {
		name  string
		spf   mailauth.SPFResult
		dmarc mailauth.DMARCResult
		want  bool
	}{
		{"nothing published", spf(), dmarc(), true},
		{"softfail and p=none", spf("v=spf1 mx ~all"), dmarc("v=DMARC1; p=none"), true},
		{"strict spf", spf("v=spf1 mx -all"), dmarc(), false},
		{"enforcing dmarc", spf("v=spf1 +all"), dmarc("v=DMARC1; p=quarantine"), false},
		{"lookup failure", mailauth.AnalyzeSPF("example.com", nil, errTest), mailauth.AnalyzeDMARC("example.com", nil, errTest), true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx := &EmailContext{FromDomain: "example.com", SPF: tt.spf, DMARC: tt.dmarc}
			f := rs.weakAuthentication(ctx)
			if (f != nil) != tt.want {
				t.Fatalf("fired=%v, want %v", f != nil, tt.want)
			}
			if f != nil && (f.Score != 10 || f.Severity != SeverityLow) {
				t.Errorf("unexpected finding %+v", f)
			}
		})
	}
}

type testError string

func (e testError) Error() string { return string(e) }

const errTest = testError("dns unavailable")

func TestSuspiciousTLD(t *testing.T) {
	rs := testRules()
	tests := []struct {
		name   string
		from   string
		urls   []string
		points int
	}{
		{"clean", "example.com", []string{"https://example.org/"}, 0},
		{"sender only", "example.xyz", nil, 5},
		{"links counted once", "example.com", []string{"https://a.top/", "https://b.icu/", "https://c.ru/"}, 5},
		{"both categories", "example.cn", []string{"https://a.zip/"}, 10},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := rs.suspiciousTLD(&EmailContext{FromDomain: tt.from, URLs: tt.urls})
			got := 0
			if f != nil {
				got = f.Score
			}
			if got != tt.points {
				t.Errorf("score = %d, want %d", got, tt.points)
			}
		})
	}
}

func TestPunycodeHomoglyph(t *testing.T) {
	rs := testRules()

	if f := rs.punycodeHomoglyph(&EmailContext{FromDomain: "example.com", URLs: []string{"https://example.org/"}}); f != nil {
		t.Errorf("ASCII domains must not fire: %+v", f)
	}

	f := rs.punycodeHomoglyph(&EmailContext{
		FromDomain: "example.com",
		URLs:       []string{"https://xn--80ak6aa92e.com/login", "https://pаypal.com/"},
	})
	if f == nil || f.Score != 15 {
		t.Fatalf("got %+v", f)
	}
	domains, _ := f.Evidence["domains"].([]string)
	if len(domains) != 2 {
		t.Errorf("domains = %v", domains)
	}
	decoded, _ := f.Evidence["decoded"].(Evidence)
	if u, _ := decoded["xn--80ak6aa92e.com"].(string); u == "" || !strings.HasSuffix(u, ".com") || strings.HasPrefix(u, "xn--") {
		t.Errorf("decoded = %v", decoded)
	}

	if f := rs.punycodeHomoglyph(&EmailContext{ReplyDomain: "xn--e1afmkfd.xn--p1ai"}); f == nil {
		t.Error("reply-to punycode must fire")
	}
}

func TestSanitizeEvidence(t *testing.T) {
	long := strings.Repeat("é", 250)
	in := Evidence{
		"a": long,
		"b": []string{"1", "2", "3", "4", "5", "6", "7"},
		"c": map[string]any{"x": map[string]any{"y": map[string]any{"z": map[string]any{"deep": 1}}}},
		"d": 42,
		"e": true,
		"f": "dropped: sixth key",
	}
	out := SanitizeEvidence(in)

	if len(out) != 5 {
		t.Fatalf("keys = %d, want 5", len(out))
	}
	if _, ok := out["f"]; ok {
		t.Error("sixth key should be dropped")
	}
	if s := out["a"].(string); len([]rune(s)) != 200 {
		t.Errorf("string length = %d", len([]rune(s)))
	}
	if l := out["b"].([]string); len(l) != 5 {
		t.Errorf("list length = %d", len(l))
	}
	if out["d"] != 42 || out["e"] != true {
		t.Errorf("scalars changed: %v %v", out["d"], out["e"])
	}

	depth := 0
	var walk func(v any)
	walk = func(v any) {
		if m, ok := v.(Evidence); ok && len(m) > 0 {
			depth++
			for _, child := range m {
				walk(child)
			}
		}
	}
	walk(out["c"])
	if depth > maxEvidenceDepth {
		t.Errorf("nesting depth %d exceeds %d", depth, maxEvidenceDepth)
	}

	if got := SanitizeEvidence(nil); got == nil || len(got) != 0 {
		t.Errorf("nil evidence = %#v", got)
	}
}
