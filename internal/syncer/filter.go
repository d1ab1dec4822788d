package syncer

import (
	"strings"

	"github.com/david/bdns-notifier/internal/bdns"
)

// Rejection reasons reported by Qualify.
const (
	ReasonNoDeadline     = "no deadline"
	ReasonOffDomain      = "off-domain"
	ReasonRegionExcluded = "region excluded"
)

// Qualify decides whether a fetched call is worth keeping. Checks run
// in a fixed order so a rejection always reports the first failing
// criterion: deadline, then issuing-body keywords, then region.
func Qualify(d *bdns.Detail, rules *Rules) (bool, string) {
	if d.ApplicationEnd == nil {
		return false, ReasonNoDeadline
	}

	haystack := strings.ToLower(strings.Join([]string{
		d.IssuingBody, d.IssuingLevel1, d.IssuingLevel2, d.IssuingLevel3,
	}, " "))
	if !containsAny(haystack, rules.Keywords) {
		return false, ReasonOffDomain
	}

	// A detail without explicit regions gives no ground for exclusion.
	if len(d.RegionNames) > 0 && len(rules.RegionFragments) > 0 {
		matched := false
		for _, region := range d.RegionNames {
			if containsAny(strings.ToLower(region), rules.RegionFragments) {
				matched = true
				break
			}
		}
		if !matched {
			return false, ReasonRegionExcluded
		}
	}

	return true, ""
}

func containsAny(haystack string, needles []string) bool {
	for _, n := range needles {
		if n != "" && strings.Contains(haystack, n) {
			return true
		}
	}
	return false
}
