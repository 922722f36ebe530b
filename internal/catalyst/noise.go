package catalyst

import (
	"regexp"

	"github.com/irfndi/catalyst-ai-go/internal/models"
)

// noiseRule is one literal headline pattern that never carries a supply or demand shock.
type noiseRule struct {
	name    string
	pattern *regexp.Regexp
}

// noiseRules are evaluated in order; the first match wins. Keep them narrow:
// a false positive silently drops a real catalyst.
var noiseRules = []noiseRule{
	{"earnings", regexp.MustCompile(`(?i)\b(q[1-4]|quarterly|half-yearly|annual)\s+(results?|earnings|profit|numbers)\b`)},
	{"earnings", regexp.MustCompile(`(?i)\b(results?|earnings)\s+(beat|miss(es)?|preview|estimates?)\b`)},
	{"analyst_rating", regexp.MustCompile(`(?i)\b(upgrades?|downgrades?|upgraded|downgraded|initiates coverage|reiterates?\s+(buy|sell|hold))\b`)},
	{"price_target", regexp.MustCompile(`(?i)\b(price target|target price)\b`)},
	{"opinion", regexp.MustCompile(`(?i)\b(opinion|editorial|op-ed|column|explainer|explained)\b`)},
	{"listicle", regexp.MustCompile(`(?i)\b(stocks?|shares|things)\s+to\s+(watch|buy|sell|track)\b`)},
	{"listicle", regexp.MustCompile(`(?i)\btop\s+\d+\s+(stocks?|picks|shares)\b`)},
	{"crime", regexp.MustCompile(`(?i)\b(murder(ed)?|robbery|kidnapp(ed|ing)|assault(ed)?|stabbed|burglary)\b`)},
}

// IsLikelyNoise reports whether a headline matches a known non-catalyst pattern.
func IsLikelyNoise(headline string) bool {
	_, ok := MatchNoise(headline)
	return ok
}

// MatchNoise returns the name of the first matching noise rule.
func MatchNoise(headline string) (string, bool) {
	for _, rule := range noiseRules {
		if rule.pattern.MatchString(headline) {
			return rule.name, true
		}
	}
	return "", false
}

// FilterNoise drops noisy headlines, preserving the order of the rest.
func FilterNoise(items []models.NewsItem) []models.NewsItem {
	kept := make([]models.NewsItem, 0, len(items))
	for _, item := range items {
		if !IsLikelyNoise(item.Title) {
			kept = append(kept, item)
		}
	}
	return kept
}
