// Package watchdog turns successive crawl snapshots into an exactly-once
// stream of "new listing" events, one seen-set per tracked search.
package watchdog

import (
	"sort"
	"time"

	"github.com/yogiovic/sreality-cron-querybot/identity"
	"github.com/yogiovic/sreality-cron-querybot/models"
)

// Due reports whether a watchdog should be checked: never checked yet, or
// at least its interval has elapsed since the last check. Evaluated on
// every sweep, so adherence is accurate only to sweep granularity.
func Due(w *models.Watchdog, now time.Time) bool {
	if w.LastCheck == nil {
		return true
	}
	return now.Sub(*w.LastCheck).Minutes() >= float64(w.IntervalMinutes)
}

// Seed replaces the seen-set with the identity set of a fresh full crawl
// and clears the last-check marker. Used when a watchdog is created and on
// explicit reset; nothing is reported.
func Seed(w models.Watchdog, listings []models.Listing) models.Watchdog {
	w.SeenIDs = sortedIdentitySet(listings)
	w.LastCheck = nil
	return w
}

// Check partitions a fresh snapshot against the seen-set and returns the
// genuinely new listings plus the updated watchdog. The seen-set becomes
// the union with the FULL current identity set, not just the new ones:
// a listing that later drops off page 1 of a shallow recheck must not
// reappear as "new", and no identity ever leaves the set.
//
// Listings without a derivable identity cannot be classified and are never
// reported here; the crawl layer already logged them.
func Check(w models.Watchdog, listings []models.Listing, now time.Time) ([]models.Listing, models.Watchdog) {
	seen := w.SeenSet()

	var fresh []models.Listing
	current := make(map[string]struct{})
	for _, listing := range listings {
		key := identity.Key(listing)
		if key == "" {
			continue
		}
		if _, dup := current[key]; dup {
			continue
		}
		current[key] = struct{}{}
		if _, ok := seen[key]; !ok {
			fresh = append(fresh, listing)
		}
	}

	for key := range current {
		seen[key] = struct{}{}
	}

	ids := make([]string, 0, len(seen))
	for key := range seen {
		ids = append(ids, key)
	}
	sort.Strings(ids)

	w.SeenIDs = ids
	checkedAt := now
	w.LastCheck = &checkedAt
	return fresh, w
}

func sortedIdentitySet(listings []models.Listing) []string {
	set := make(map[string]struct{})
	for _, listing := range listings {
		if key := identity.Key(listing); key != "" {
			set[key] = struct{}{}
		}
	}
	ids := make([]string, 0, len(set))
	for key := range set {
		ids = append(ids, key)
	}
	sort.Strings(ids)
	return ids
}
