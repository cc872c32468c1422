package models

import (
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"
)

// DefaultIntervalMinutes is the check interval applied to registry entries
// that predate the interval field. 12 hours, matching two checks per day.
const DefaultIntervalMinutes = 12 * 60

// Watchdog tracks one sreality search query: where to look, how often, who
// gets notified, and which listings have already been reported. The JSON
// field names match the on-disk registry format; SeenIDs keeps its legacy
// name so existing registry files keep loading.
type Watchdog struct {
	ID              string     `json:"id"`
	Name            string     `json:"name"`
	URL             string     `json:"url"`
	WebhookURL      string     `json:"webhook_url"`
	SeenIDs         []string   `json:"last_seen_ids"`
	IntervalMinutes int        `json:"interval_minutes"`
	CreatedAt       time.Time  `json:"created_at"`
	CreatedBy       string     `json:"created_by,omitempty"`
	LastCheck       *time.Time `json:"last_check"`
}

// Normalize fills backward-compatible defaults for records written by older
// versions: interval_minutes 720, created_at now, id assigned when missing.
// Intervals below one minute are clamped up.
func (w *Watchdog) Normalize(now time.Time) {
	if w.ID == "" {
		w.ID = uuid.NewString()
	}
	if w.IntervalMinutes == 0 {
		w.IntervalMinutes = DefaultIntervalMinutes
	}
	if w.IntervalMinutes < 1 {
		w.IntervalMinutes = 1
	}
	if w.CreatedAt.IsZero() {
		w.CreatedAt = now
	}
	if w.Name == "" {
		w.Name = ChannelSlug(w.URL, w.CreatedAt)
	}
}

// SeenSet materializes the seen identity list as a set.
func (w *Watchdog) SeenSet() map[string]struct{} {
	set := make(map[string]struct{}, len(w.SeenIDs))
	for _, id := range w.SeenIDs {
		set[id] = struct{}{}
	}
	return set
}

// IntervalFromChecksPerDay converts the operator-facing "checks per day"
// knob into minutes, never below one minute.
func IntervalFromChecksPerDay(checksPerDay int) int {
	if checksPerDay < 1 {
		return DefaultIntervalMinutes
	}
	interval := 24 * 60 / checksPerDay
	if interval < 1 {
		interval = 1
	}
	return interval
}

var slugCleanup = regexp.MustCompile(`[^a-z0-9-]`)
var slugDashes = regexp.MustCompile(`-{2,}`)

// ChannelSlug derives a short human-readable name for a watchdog from its
// search URL, e.g. "20251203-hledani-pronajem-byty". Sreality search paths
// start with /hledani/<transaction>/<category>, which is enough to tell
// watchdogs apart at a glance.
func ChannelSlug(rawURL string, when time.Time) string {
	day := when.Format("20060102")
	if rawURL == "" {
		return day + "-sreality-watchdog"
	}

	base := rawURL
	if idx := strings.Index(base, "://"); idx >= 0 {
		base = base[idx+3:]
	}
	if idx := strings.IndexAny(base, "?#"); idx >= 0 {
		base = base[:idx]
	}

	var segments []string
	if slash := strings.Index(base, "/"); slash >= 0 {
		for _, seg := range strings.Split(base[slash+1:], "/") {
			if seg != "" {
				segments = append(segments, seg)
			}
		}
	}

	var short []string
	if len(segments) > 0 {
		if segments[0] == "hledani" {
			short = append(short, "hledani")
			rest := segments[1:]
			if len(rest) > 2 {
				rest = rest[:2]
			}
			short = append(short, rest...)
		} else {
			if len(segments) > 2 {
				segments = segments[:2]
			}
			short = append(short, segments...)
		}
	}
	if len(short) == 0 {
		short = []string{"sreality-watchdog"}
	}

	tail := strings.ToLower(strings.Join(short, "-"))
	tail = slugCleanup.ReplaceAllString(tail, "-")
	tail = strings.Trim(slugDashes.ReplaceAllString(tail, "-"), "-")
	if tail == "" {
		tail = "sreality-watchdog"
	}

	name := day + "-" + tail
	if len(name) > 80 {
		name = strings.Trim(name[:80], "-")
	}
	return name
}
