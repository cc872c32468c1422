package scraper

import "github.com/yogiovic/sreality-cron-querybot/models"

// FindResultLists walks a decoded JSON value and collects every slice that
// sits under a key literally named "results", is non-empty, and holds maps.
// The state bundle nests the real result array at an unpredictable depth
// next to unrelated UI state, so an exhaustive walk with a shape check
// beats any fixed-path accessor.
func FindResultLists(v interface{}) [][]interface{} {
	var found [][]interface{}

	switch val := v.(type) {
	case map[string]interface{}:
		for k, child := range val {
			if k == "results" {
				if list, ok := child.([]interface{}); ok && len(list) > 0 {
					if _, ok := list[0].(map[string]interface{}); ok {
						found = append(found, list)
						continue
					}
				}
			}
			found = append(found, FindResultLists(child)...)
		}
	case []interface{}:
		for _, item := range val {
			found = append(found, FindResultLists(item)...)
		}
	}

	return found
}

// BestResultList picks the winner among all candidate lists found on one
// page: the longest one. The true result list dominates incidental smaller
// lists such as "similar searches". Elements that are not objects are
// dropped.
func BestResultList(lists [][]interface{}) []models.Listing {
	if len(lists) == 0 {
		return nil
	}

	best := lists[0]
	for _, list := range lists[1:] {
		if len(list) > len(best) {
			best = list
		}
	}

	listings := make([]models.Listing, 0, len(best))
	for _, item := range best {
		if m, ok := item.(map[string]interface{}); ok {
			listings = append(listings, models.Listing(m))
		}
	}
	return listings
}
