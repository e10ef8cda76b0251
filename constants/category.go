package constants

import (
	"strings"
)

// DefaultFallbackCategory is used when an item fits none of the configured labels.
const DefaultFallbackCategory = "Other"

// CanonicalizeCategory maps a model-produced label onto the configured list.
// Matching ignores case and surrounding space. Unknown or empty labels return
// the fallback with ok=false.
func CanonicalizeCategory(input string, allowed []string, fallback string) (string, bool) {
	if fallback == "" {
		fallback = DefaultFallbackCategory
	}
	normalized := strings.ToLower(strings.TrimSpace(input))
	if normalized == "" {
		return fallback, false
	}

	for _, cat := range allowed {
		if normalized == strings.ToLower(strings.TrimSpace(cat)) {
			return cat, true
		}
	}
	if normalized == strings.ToLower(fallback) {
		return fallback, true
	}
	return fallback, false
}
