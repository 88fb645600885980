// Package classify maps extracted display text to a pump state. Classify is
// a pure function: no I/O, no mutable state, identical inputs always yield
// identical outputs.
package classify

import (
	"regexp"
	"strconv"
	"strings"

	"pumpwatch/internal/config"
	"pumpwatch/internal/types"
)

// numericPatterns are tried in order; the first match wins. The display
// normally shows a bare amperage, but some firmware revisions label it.
var numericPatterns = []*regexp.Regexp{
	regexp.MustCompile(`^\s*(\d+(?:\.\d+)?)\s*$`),             // bare decimal
	regexp.MustCompile(`(?i)(\d+(?:\.\d+)?)\s*A\b`),           // "4.2A"
	regexp.MustCompile(`(?i)current:?\s*(\d+(?:\.\d+)?)`),     // "Current: 4.2"
	regexp.MustCompile(`(?i)amps?\s*:?\s*(\d+(?:\.\d+)?)`),    // "Amps 4.2"
}

// Classify maps extracted text to (amps, state) under the given snapshot.
//
// Keywords take precedence over numerics: a frame reading "DRY 0.3A" is a dry
// fault, not an off pump. Numeric values above MaxValidCurrent are OCR or
// sensor noise and classify as Unknown; values that fall between the known
// bands (for example, between idle and the normal minimum) are likewise
// Unknown rather than silently coerced into a neighboring band.
//
// The confidence argument is carried for contract symmetry with the
// orchestrator; classification itself is threshold-free on confidence —
// accepting or rejecting a low-confidence extraction is the caller's call.
func Classify(text string, _ float64, snap *config.Snapshot) (*float64, types.PumpState) {
	if containsAny(text, snap.DryKeywords, snap.CaseSensitive) {
		return nil, types.PumpDry
	}
	if containsAny(text, snap.RapidCycleKeywords, snap.CaseSensitive) {
		return nil, types.PumpRapidCycle
	}

	amps, ok := extractCurrent(text)
	if !ok {
		return nil, types.PumpUnknown
	}

	switch {
	case amps > snap.MaxValidCurrent:
		return &amps, types.PumpUnknown
	case amps < snap.OffThreshold:
		return &amps, types.PumpOff
	case amps < snap.IdleThreshold:
		return &amps, types.PumpIdle
	case amps >= snap.NormalMin && amps <= snap.NormalMax:
		return &amps, types.PumpNormal
	default:
		// Value present but outside every known band; surfaced as an
		// anomaly by the caller, never coerced.
		return &amps, types.PumpUnknown
	}
}

// containsAny reports whether text contains any of the keywords, honoring the
// snapshot's case-sensitivity flag.
func containsAny(text string, keywords []string, caseSensitive bool) bool {
	haystack := text
	if !caseSensitive {
		haystack = strings.ToLower(text)
	}
	for _, kw := range keywords {
		if kw == "" {
			continue
		}
		needle := kw
		if !caseSensitive {
			needle = strings.ToLower(kw)
		}
		if strings.Contains(haystack, needle) {
			return true
		}
	}
	return false
}

// extractCurrent applies the ordered numeric patterns and parses the first
// capture group that matches.
func extractCurrent(text string) (float64, bool) {
	for _, pat := range numericPatterns {
		m := pat.FindStringSubmatch(text)
		if m == nil {
			continue
		}
		v, err := strconv.ParseFloat(m[1], 64)
		if err != nil {
			continue
		}
		return v, true
	}
	return 0, false
}
