package heuristics

import "testing"

func TestSynthesizeSafetyNet(t *testing.T) {
	for _, id := range []string{IDDomainMismatch, IDLookalikeDomain} {
		res := Synthesize([]*Finding{{ID: id, Severity: SeverityMedium, Score: 15}})
		if res.Score != 15 || res.Risk != RiskLow {
			t.Errorf("%s: score/risk = %d/%s", id, res.Score, res.Risk)
		}
		if res.Verdict != VerdictSuspicious {
			t.Errorf("%s: verdict = %q, want suspicious", id, res.Verdict)
		}
		if res.Justification != "Suspicious: "+findingLabels[id]+"." {
			t.Errorf("%s: justification = %q", id, res.Justification)
		}
	}

	res := Synthesize([]*Finding{{ID: IDReplyToMismatch, Severity: SeverityMedium, Score: 15}})
	if res.Verdict != VerdictLegitimate || res.Justification != "Suspicious: "+findingLabels[IDReplyToMismatch]+"." {
		t.Errorf("without H1: %+v", res)
	}
}

func TestSynthesizeScoreBounds(t *testing.T) {
	var many []*Finding
	for i := 0; i < 8; i++ {
		many = append(many, &Finding{ID: IDSuspiciousTLD, Severity: SeverityLow, Score: 30})
	}

	tests := []struct {
		name     string
		findings []*Finding
		want     int
	}{
		{"none", nil, 0},
		{"total clamped", many, 100},
		{"single finding clamped", []*Finding{{ID: IDReplyToMismatch, Severity: SeverityHigh, Score: 99}}, 30},
		{"negative clamped", []*Finding{{ID: IDReplyToMismatch, Severity: SeverityLow, Score: -5}}, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Synthesize(tt.findings).Score; got != tt.want {
				t.Errorf("score = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestRiskAndVerdictFollowScore(t *testing.T) {
	for score := 0; score <= 100; score++ {
		risk, verdict := RiskFor(score), VerdictFor(score)
		switch {
		case score >= 50:
			if risk != RiskHigh || verdict != VerdictPhishing {
				t.Errorf("%d: %s/%s", score, risk, verdict)
			}
		case score >= 20:
			if risk != RiskMedium || verdict != VerdictSuspicious {
				t.Errorf("%d: %s/%s", score, risk, verdict)
			}
		default:
			if risk != RiskLow || verdict != VerdictLegitimate {
				t.Errorf("%d: %s/%s", score, risk, verdict)
			}
		}
	}
}

func TestJustification(t *testing.T) {
	tests := []struct {
		name     string
		findings []*Finding
		want     string
	}{
		{
			name: "ordered by severity then score",
			findings: []*Finding{
				{ID: IDUrgencyLanguage, Severity: SeverityMedium, Score: 12},
				{ID: IDWeakAuthentication, Severity: SeverityLow, Score: 10},
				{ID: IDReplyToMismatch, Severity: SeverityMedium, Score: 15},
				{ID: IDLookalikeDomain, Severity: SeverityMedium, Score: 18},
			},
			want: "Probable phishing: look-alike sender domain, Reply-To domain mismatch, urgency language.",
		},
		{
			name: "suspicious",
			findings: []*Finding{
				{ID: IDWeakAuthentication, Severity: SeverityLow, Score: 10},
				{ID: IDSuspiciousTLD, Severity: SeverityLow, Score: 10},
			},
			want: "Suspicious: weak SPF/DMARC, high-risk TLD.",
		},
		{
			name:     "unknown ids leave it empty",
			findings: []*Finding{{ID: "H-9-custom", Severity: SeverityHigh, Score: 25}},
			want:     "",
		},
		{
			name:     "legitimate with a minor finding",
			findings: []*Finding{{ID: IDUrgencyLanguage, Severity: SeverityLow, Score: 6}},
			want:     "Suspicious: urgency language.",
		},
		{
			name:     "legitimate with weak authentication",
			findings: []*Finding{{ID: IDWeakAuthentication, Severity: SeverityLow, Score: 10}},
			want:     "Suspicious: weak SPF/DMARC.",
		},
		{
			name:     "no findings",
			findings: nil,
			want:     legitimateJustification,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Synthesize(tt.findings).Justification; got != tt.want {
				t.Errorf("justification = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestSynthesizeKeepsFindingOrder(t *testing.T) {
	in := []*Finding{
		{ID: IDWeakAuthentication, Severity: SeverityLow, Score: 10},
		{ID: IDLookalikeDomain, Severity: SeverityMedium, Score: 18},
	}
	res := Synthesize(in)
	if res.Findings[0].ID != IDWeakAuthentication || res.Findings[1].ID != IDLookalikeDomain {
		t.Errorf("findings reordered: %v, %v", res.Findings[0].ID, res.Findings[1].ID)
	}
}
