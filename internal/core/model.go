package core

import (
	"math"
	"slices"
	"time"

	"github.com/mikey/phish-scanner/internal/heuristics"
	"github.com/mikey/phish-scanner/internal/mailauth"
)

// ParsedEmail is the header and body data extracted from a message. The raw
// message itself is never kept.
type ParsedEmail struct {
	From            string
	To              []string
	ReplyTo         string
	Subject         string
	MessageID       string
	Date            string
	TextBody        string
	HTMLBody        string
	AttachmentCount int
	RawSize         int
}

// ScanReport is the stored outcome of scanning one email.
type ScanReport struct {
	ID              string                      `json:"id"`
	CreatedAt       time.Time                   `json:"created_at"`
	From            string                      `json:"from"`
	FromDomain      string                      `json:"from_domain"`
	To              []string                    `json:"to"`
	ReplyTo         string                      `json:"reply_to"`
	Subject         string                      `json:"subject"`
	MessageID       string                      `json:"message_id"`
	DateRaw         string                      `json:"date_raw"`
	DateISO         string                      `json:"date_iso"`
	TextLength      int                         `json:"text_length"`
	HTMLLength      int                         `json:"html_length"`
	RawSize         int                         `json:"raw_size"`
	AttachmentCount int                         `json:"attachments_count"`
	URLCount        int                         `json:"urls_count"`
	URLs            []string                    `json:"urls"`
	SPF             mailauth.SPFResult          `json:"spf"`
	DMARC           mailauth.DMARCResult        `json:"dmarc"`
	Heuristics      *heuristics.HeuristicResult `json:"heuristics"`
}

// Score returns the heuristic score, or 0 for a report without one.
func (r *ScanReport) Score() int {
	if r.Heuristics == nil {
		return 0
	}
	return r.Heuristics.Score
}

// ScanStats summarizes stored scans by score band.
type ScanStats struct {
	Since      time.Time `json:"since"`
	Total      int       `json:"total"`
	Phishing   int       `json:"phishing"`
	Suspicious int       `json:"suspicious"`
	Legitimate int       `json:"legitimate"`
	PhishRate  float64   `json:"phish_rate"`
	// Trend is filled in on request by ScanService.Trend callers
	Trend []DailyCount `json:"trend,omitempty"`
}

// Score bands used by statistics.
const (
	PhishingScore   = 50
	SuspiciousScore = 20
)

// Add counts one scan score into the matching band.
func (s *ScanStats) Add(score int) {
	s.Total++
	switch {
	case score >= PhishingScore:
		s.Phishing++
	case score >= SuspiciousScore:
		s.Suspicious++
	default:
		s.Legitimate++
	}
	s.PhishRate = PhishRate(s.Phishing, s.Total)
}

// DailyCount is the number of scans created on one UTC day.
type DailyCount struct {
	Date  string `json:"date"`
	Count int    `json:"count"`
}

// Trend windows, in days. Any other window falls back to the first.
var TrendWindows = []int{7, 14, 30}

// TrendDays returns days when it is a supported window, else the default.
func TrendDays(days int) int {
	if slices.Contains(TrendWindows, days) {
		return days
	}
	return TrendWindows[0]
}

// TrendStart is midnight UTC of the first day of the window ending today.
func TrendStart(days int, now time.Time) time.Time {
	y, m, d := now.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC).AddDate(0, 0, -(TrendDays(days) - 1))
}

// BuildTrend buckets creation times into one entry per UTC day of the
// window ending on the day of now, oldest first. Days without scans count 0.
func BuildTrend(times []time.Time, days int, now time.Time) []DailyCount {
	days = TrendDays(days)
	start := TrendStart(days, now)

	counts := make(map[string]int, days)
	for _, t := range times {
		counts[t.UTC().Format(time.DateOnly)]++
	}

	trend := make([]DailyCount, days)
	for i := range trend {
		day := start.AddDate(0, 0, i).Format(time.DateOnly)
		trend[i] = DailyCount{Date: day, Count: counts[day]}
	}
	return trend
}

// PhishRate is the percentage of phishing scans, rounded to one decimal.
func PhishRate(phishing, total int) float64 {
	if total <= 0 {
		return 0
	}
	return math.Round(float64(phishing)*1000/float64(total)) / 10
}
