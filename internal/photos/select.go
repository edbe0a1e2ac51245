// Package photos selects a bounded, prioritized set of photo URLs for a
// place from the raw candidates a provider returns.
package photos

import (
	"sort"
	"strings"

	"github.com/segunak/places-cli/internal/model"
)

// Photos carrying these tags surface better in downstream UIs: "vibe" shots
// show the inside of a place, "front" shots help people find the door, "all"
// and "other" are the scraper's own catch-all groupings.
const (
	tagVibe  = "vibe"
	tagFront = "front"
	tagAll   = "all"
	tagOther = "other"

	// maxFront caps storefront shots so one angle doesn't crowd out the rest.
	maxFront = 5
)

// IsValidURL reports whether a photo URL is directly usable. Google's
// gps-cs-s and gps-proxy URLs expire or redirect and are not worth storing.
func IsValidURL(u string) bool {
	if !strings.HasPrefix(u, "http") {
		return false
	}
	return !strings.Contains(u, "/gps-cs-s/") && !strings.Contains(u, "/gps-proxy/")
}

// Select returns up to maxPhotos URLs ordered by usefulness: vibe-tagged
// photos first, then up to maxFront front-tagged, then "all"-tagged, then
// "other"-tagged, then everything left over. Within each group newer photos
// win; candidates with no capture date sort as oldest. Duplicate URLs keep
// their first occurrence.
func Select(candidates []model.PhotoCandidate, maxPhotos int) []string {
	if maxPhotos <= 0 {
		return nil
	}

	seen := make(map[string]bool, len(candidates))
	usable := make([]model.PhotoCandidate, 0, len(candidates))
	for _, c := range candidates {
		if !IsValidURL(c.URL) || seen[c.URL] {
			continue
		}
		seen[c.URL] = true
		usable = append(usable, c)
	}

	sort.SliceStable(usable, func(i, j int) bool {
		return usable[i].CapturedAt.After(usable[j].CapturedAt)
	})

	var vibe, front, all, other, remaining []string
	for _, c := range usable {
		switch {
		case hasTag(c, tagVibe):
			vibe = append(vibe, c.URL)
		// Front shots past the cap fall through to remaining rather than
		// being dropped.
		case hasTag(c, tagFront) && len(front) < maxFront:
			front = append(front, c.URL)
		case hasTag(c, tagAll):
			all = append(all, c.URL)
		case hasTag(c, tagOther):
			other = append(other, c.URL)
		default:
			remaining = append(remaining, c.URL)
		}
	}

	ordered := make([]string, 0, len(usable))
	ordered = append(ordered, vibe...)
	ordered = append(ordered, front...)
	ordered = append(ordered, all...)
	ordered = append(ordered, other...)
	ordered = append(ordered, remaining...)

	if len(ordered) > maxPhotos {
		ordered = ordered[:maxPhotos]
	}
	return ordered
}

func hasTag(c model.PhotoCandidate, tag string) bool {
	for _, t := range c.Tags {
		if strings.EqualFold(t, tag) {
			return true
		}
	}
	return false
}
