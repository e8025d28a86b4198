package heuristics

import (
	"fmt"
	"sort"

	"github.com/mikey/phish-scanner/internal/utils"
)

// Limits applied to every Finding's evidence before it leaves the engine.
const (
	maxEvidenceString = 200
	maxEvidenceItems  = 5
	maxEvidenceDepth  = 3
)

// Evidence is the supporting data attached to a Finding. Values are strings,
// ints, bools, string slices, []any or nested maps.
type Evidence map[string]any

// SanitizeEvidence returns a bounded copy of e: strings are cut to 200
// characters, every map and list level keeps at most 5 entries and nesting
// stops after a few levels. Maps keep their first keys in sorted order.
func SanitizeEvidence(e Evidence) Evidence {
	if e == nil {
		return Evidence{}
	}
	return sanitizeMap(e, 0)
}

func sanitizeMap(m map[string]any, depth int) Evidence {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	if len(keys) > maxEvidenceItems {
		keys = keys[:maxEvidenceItems]
	}

	out := make(Evidence, len(keys))
	for _, k := range keys {
		out[utils.TruncateRunes(k, maxEvidenceString)] = sanitizeValue(m[k], depth+1)
	}
	return out
}

func sanitizeValue(v any, depth int) any {
	switch val := v.(type) {
	case nil:
		return nil
	case string:
		return utils.TruncateRunes(val, maxEvidenceString)
	case bool, int, int64, float64:
		return val
	case []string:
		n := min(len(val), maxEvidenceItems)
		out := make([]string, n)
		for i := 0; i < n; i++ {
			out[i] = utils.TruncateRunes(val[i], maxEvidenceString)
		}
		return out
	case []any:
		if depth > maxEvidenceDepth {
			return []any{}
		}
		n := min(len(val), maxEvidenceItems)
		out := make([]any, n)
		for i := 0; i < n; i++ {
			out[i] = sanitizeValue(val[i], depth+1)
		}
		return out
	case Evidence:
		if depth > maxEvidenceDepth {
			return Evidence{}
		}
		return sanitizeMap(val, depth)
	case map[string]any:
		if depth > maxEvidenceDepth {
			return Evidence{}
		}
		return sanitizeMap(val, depth)
	default:
		return utils.TruncateRunes(fmt.Sprint(val), maxEvidenceString)
	}
}
