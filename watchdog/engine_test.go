package watchdog

import (
	"testing"
	"time"

	"github.com/yogiovic/sreality-cron-querybot/models"
)

func listingsWithHashes(hashes ...string) []models.Listing {
	out := make([]models.Listing, len(hashes))
	for i, h := range hashes {
		out[i] = models.Listing{"hash": h, "name": "Listing " + h}
	}
	return out
}

func TestDue(t *testing.T) {
	now := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)

	never := &models.Watchdog{IntervalMinutes: 60}
	if !Due(never, now) {
		t.Fatalf("never-checked watchdog should be due")
	}

	recent := now.Add(-10 * time.Minute)
	if Due(&models.Watchdog{IntervalMinutes: 60, LastCheck: &recent}, now) {
		t.Fatalf("watchdog checked 10 min ago with 60 min interval should not be due")
	}

	exact := now.Add(-60 * time.Minute)
	if !Due(&models.Watchdog{IntervalMinutes: 60, LastCheck: &exact}, now) {
		t.Fatalf("watchdog at exactly its interval should be due")
	}
}

func TestSeed(t *testing.T) {
	checked := time.Now().UTC()
	w := models.Watchdog{ID: "w1", LastCheck: &checked, SeenIDs: []string{"old"}}

	seeded := Seed(w, listingsWithHashes("c", "a", "b", "a"))

	if seeded.LastCheck != nil {
		t.Fatalf("seed should clear last check")
	}
	want := []string{"a", "b", "c"}
	if len(seeded.SeenIDs) != len(want) {
		t.Fatalf("expected %d seen ids, got %v", len(want), seeded.SeenIDs)
	}
	for i, id := range want {
		if seeded.SeenIDs[i] != id {
			t.Fatalf("seen ids not sorted: %v", seeded.SeenIDs)
		}
	}
}

func TestCheck_NothingNewAfterSeed(t *testing.T) {
	listings := listingsWithHashes("a", "b", "c")
	w := Seed(models.Watchdog{ID: "w1"}, listings)

	now := time.Now().UTC()
	fresh, updated := Check(w, listings, now)

	if len(fresh) != 0 {
		t.Fatalf("rechecking the seeded snapshot reported %d listings as new", len(fresh))
	}
	if updated.LastCheck == nil || !updated.LastCheck.Equal(now) {
		t.Fatalf("last check not stamped: %v", updated.LastCheck)
	}
}

func TestCheck_ReportsOnlyUnseen(t *testing.T) {
	w := Seed(models.Watchdog{ID: "w1"}, listingsWithHashes("a", "b"))

	fresh, updated := Check(w, listingsWithHashes("b", "d", "e"), time.Now().UTC())

	if len(fresh) != 2 {
		t.Fatalf("expected 2 new listings, got %d", len(fresh))
	}
	if fresh[0].Str("hash") != "d" || fresh[1].Str("hash") != "e" {
		t.Fatalf("unexpected new listings: %v", fresh)
	}
	// The seen-set unions with the full snapshot; nothing ever leaves it.
	want := []string{"a", "b", "d", "e"}
	if len(updated.SeenIDs) != len(want) {
		t.Fatalf("expected seen ids %v, got %v", want, updated.SeenIDs)
	}
	for i, id := range want {
		if updated.SeenIDs[i] != id {
			t.Fatalf("expected seen ids %v, got %v", want, updated.SeenIDs)
		}
	}
}

func TestCheck_SeenSetMonotonic(t *testing.T) {
	// A listing that drops off the shallow recheck window and later comes
	// back must not be re-reported.
	w := Seed(models.Watchdog{ID: "w1"}, listingsWithHashes("a", "b", "c"))

	fresh, w := Check(w, listingsWithHashes("b"), time.Now().UTC())
	if len(fresh) != 0 {
		t.Fatalf("shrunk snapshot reported %d listings as new", len(fresh))
	}
	if len(w.SeenIDs) != 3 {
		t.Fatalf("seen-set shrank: %v", w.SeenIDs)
	}

	fresh, w = Check(w, listingsWithHashes("a", "c"), time.Now().UTC())
	if len(fresh) != 0 {
		t.Fatalf("returning listings reported as new: %v", fresh)
	}
	if len(w.SeenIDs) != 3 {
		t.Fatalf("seen-set changed unexpectedly: %v", w.SeenIDs)
	}
}

func TestCheck_SkipsListingsWithoutIdentity(t *testing.T) {
	w := Seed(models.Watchdog{ID: "w1"}, nil)

	anonymous := []models.Listing{{"name": "no identity here"}}
	fresh, updated := Check(w, anonymous, time.Now().UTC())

	if len(fresh) != 0 {
		t.Fatalf("identity-less listing reported as new")
	}
	if len(updated.SeenIDs) != 0 {
		t.Fatalf("identity-less listing entered the seen-set: %v", updated.SeenIDs)
	}
}

func TestCheck_DuplicateInSnapshotReportedOnce(t *testing.T) {
	w := Seed(models.Watchdog{ID: "w1"}, nil)

	fresh, _ := Check(w, listingsWithHashes("x", "x", "y"), time.Now().UTC())
	if len(fresh) != 2 {
		t.Fatalf("expected 2 new listings from duplicated snapshot, got %d", len(fresh))
	}
}
