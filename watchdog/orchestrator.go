package watchdog

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/yogiovic/sreality-cron-querybot/config"
	"github.com/yogiovic/sreality-cron-querybot/models"
	"github.com/yogiovic/sreality-cron-querybot/notify"
	"github.com/yogiovic/sreality-cron-querybot/storage"
)

// Crawler is the crawl collaborator; satisfied by scraper.Crawler. The
// artifact store is a per-crawl argument, so concurrent crawls (a sweep
// recheck and a command-driven seed scan) never share mutable state.
type Crawler interface {
	Crawl(ctx context.Context, startURL string, maxPages int, artifacts storage.ArtifactStore) ([]models.Listing, error)
}

// RunRecorder keeps check-run history; satisfied by storage.SQLiteStore
// and storage.PostgresStore. May be nil when no operational store is
// configured.
type RunRecorder interface {
	CreateRun(ctx context.Context, run *models.CheckRun) (int64, error)
	UpdateRun(ctx context.Context, run *models.CheckRun) error
}

// Orchestrator drives watchdog lifecycle operations. Every operation loads
// the latest registry state at its start and saves the full updated state
// at its end; that read-mutate-write span is the atomicity unit, there is
// no shared in-memory registry.
type Orchestrator struct {
	cfg        *config.Config
	crawler    Crawler
	registry   storage.Registry
	runs       RunRecorder
	dispatcher *notify.Dispatcher

	// artifactStore builds the store deep scans write their artifacts to,
	// keyed by the watchdog's slug. Nil disables artifact collection.
	artifactStore func(slug string) storage.ArtifactStore
}

func NewOrchestrator(cfg *config.Config, crawler Crawler, registry storage.Registry, dispatcher *notify.Dispatcher) *Orchestrator {
	return &Orchestrator{
		cfg:        cfg,
		crawler:    crawler,
		registry:   registry,
		dispatcher: dispatcher,
	}
}

func (o *Orchestrator) SetRunRecorder(runs RunRecorder) {
	o.runs = runs
}

func (o *Orchestrator) SetArtifactFactory(factory func(slug string) storage.ArtifactStore) {
	o.artifactStore = factory
}

// Sweep evaluates the due-predicate for every tracked watchdog and checks
// the due ones sequentially. One watchdog's failure never blocks the rest.
func (o *Orchestrator) Sweep(ctx context.Context) {
	watchdogs, err := o.registry.Load(ctx)
	if err != nil {
		log.Printf("Sweep: failed to load registry: %v", err)
		return
	}

	now := time.Now().UTC()
	for _, w := range watchdogs {
		if !Due(&w, now) {
			continue
		}
		if err := o.CheckOne(ctx, w); err != nil {
			log.Printf("Check failed for %s (%s): %v", w.Name, w.URL, err)
		}
		if ctx.Err() != nil {
			return
		}
	}
}

// CheckOne runs a bounded recheck crawl for one watchdog. The recheck page
// cap is far below the initial deep-scan cap: completeness is traded for
// bounded latency, which the full-set seen-union makes safe.
//
// On a fetch failure the watchdog is left untouched, including last_check,
// so the next sweep retries it. On success the updated state is persisted
// BEFORE dispatch: a delivery failure must never cause re-announcement.
func (o *Orchestrator) CheckOne(ctx context.Context, w models.Watchdog) error {
	log.Printf("Checking %s (url=%s, interval=%d min)", w.Name, w.URL, w.IntervalMinutes)

	run := o.startRun(ctx, &w, "recheck")

	listings, err := o.crawler.Crawl(ctx, w.URL, o.cfg.Crawl.RecheckMaxPages, nil)
	if err != nil {
		o.finishRun(ctx, run, models.RunStatusFailed, len(listings), 0, err)
		return fmt.Errorf("crawl: %w", err)
	}

	fresh, updated := Check(w, listings, time.Now().UTC())

	if err := o.persistWatchdog(ctx, updated); err != nil {
		o.finishRun(ctx, run, models.RunStatusFailed, len(listings), len(fresh), err)
		return fmt.Errorf("persist: %w", err)
	}

	if len(fresh) > 0 {
		log.Printf("Found %d new listing(s) for %s", len(fresh), w.Name)
		o.dispatcher.Dispatch(ctx, updated.WebhookURL, fresh, mention(updated.CreatedBy))
	} else {
		log.Printf("No new listings for %s", w.Name)
	}

	o.finishRun(ctx, run, models.RunStatusCompleted, len(listings), len(fresh), nil)
	return nil
}

// Create tracks a new search: a deep initial scan seeds the seen-set and
// nothing is notified.
func (o *Orchestrator) Create(ctx context.Context, url, webhookURL, createdBy string, checksPerDay int) (*models.Watchdog, error) {
	watchdogs, err := o.registry.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("load registry: %w", err)
	}
	for _, w := range watchdogs {
		if w.URL == url {
			return nil, fmt.Errorf("url already watched by %s", w.Name)
		}
	}

	now := time.Now().UTC()
	w := models.Watchdog{
		URL:        url,
		WebhookURL: webhookURL,
		CreatedBy:  createdBy,
		CreatedAt:  now,
	}
	if checksPerDay > 0 {
		w.IntervalMinutes = models.IntervalFromChecksPerDay(checksPerDay)
	}
	w.Normalize(now)

	seeded, err := o.seedScan(ctx, w)
	if err != nil {
		return nil, err
	}

	watchdogs = append(watchdogs, seeded)
	if err := o.registry.Save(ctx, watchdogs); err != nil {
		return nil, fmt.Errorf("save registry: %w", err)
	}

	log.Printf("Watchdog %s created: %d listings seeded, checks every ~%d min",
		seeded.Name, len(seeded.SeenIDs), seeded.IntervalMinutes)
	return &seeded, nil
}

// Reset redoes the initial scan from scratch: seen-set reseeded,
// last-check cleared, creation timestamp refreshed.
func (o *Orchestrator) Reset(ctx context.Context, id string) error {
	watchdogs, err := o.registry.Load(ctx)
	if err != nil {
		return fmt.Errorf("load registry: %w", err)
	}

	idx := indexOf(watchdogs, id)
	if idx < 0 {
		return fmt.Errorf("no watchdog with id %s", id)
	}

	w := watchdogs[idx]
	w.CreatedAt = time.Now().UTC()

	seeded, err := o.seedScan(ctx, w)
	if err != nil {
		return err
	}

	watchdogs[idx] = seeded
	if err := o.registry.Save(ctx, watchdogs); err != nil {
		return fmt.Errorf("save registry: %w", err)
	}

	log.Printf("Watchdog %s reset: %d listings reseeded", seeded.Name, len(seeded.SeenIDs))
	return nil
}

func (o *Orchestrator) Remove(ctx context.Context, id string) error {
	watchdogs, err := o.registry.Load(ctx)
	if err != nil {
		return fmt.Errorf("load registry: %w", err)
	}

	idx := indexOf(watchdogs, id)
	if idx < 0 {
		return fmt.Errorf("no watchdog with id %s", id)
	}

	name := watchdogs[idx].Name
	watchdogs = append(watchdogs[:idx], watchdogs[idx+1:]...)
	if err := o.registry.Save(ctx, watchdogs); err != nil {
		return fmt.Errorf("save registry: %w", err)
	}

	log.Printf("Watchdog %s removed", name)
	return nil
}

func (o *Orchestrator) SetInterval(ctx context.Context, id string, checksPerDay int) error {
	watchdogs, err := o.registry.Load(ctx)
	if err != nil {
		return fmt.Errorf("load registry: %w", err)
	}

	idx := indexOf(watchdogs, id)
	if idx < 0 {
		return fmt.Errorf("no watchdog with id %s", id)
	}

	watchdogs[idx].IntervalMinutes = models.IntervalFromChecksPerDay(checksPerDay)
	if err := o.registry.Save(ctx, watchdogs); err != nil {
		return fmt.Errorf("save registry: %w", err)
	}

	log.Printf("Watchdog %s now checks every ~%d min", watchdogs[idx].Name, watchdogs[idx].IntervalMinutes)
	return nil
}

// HandleCommand executes one queued operator command.
func (o *Orchestrator) HandleCommand(ctx context.Context, cmd *models.Command, params *models.CommandParams) error {
	switch cmd.Command {
	case models.CmdAddWatchdog:
		_, err := o.Create(ctx, params.URL, params.WebhookURL, params.CreatedBy, params.ChecksPerDay)
		return err
	case models.CmdRemoveWatchdog:
		return o.Remove(ctx, params.WatchdogID)
	case models.CmdResetWatchdog:
		return o.Reset(ctx, params.WatchdogID)
	case models.CmdSetInterval:
		return o.SetInterval(ctx, params.WatchdogID, params.ChecksPerDay)
	case models.CmdCheckNow:
		watchdogs, err := o.registry.Load(ctx)
		if err != nil {
			return err
		}
		idx := indexOf(watchdogs, params.WatchdogID)
		if idx < 0 {
			return fmt.Errorf("no watchdog with id %s", params.WatchdogID)
		}
		return o.CheckOne(ctx, watchdogs[idx])
	default:
		return fmt.Errorf("unknown command: %s", cmd.Command)
	}
}

// seedScan runs the deep initial crawl and seeds the seen-set. Unlike a
// recheck, a partial deep scan is rejected outright: seeding from an
// incomplete result set would flood the channel with "new" listings on the
// first recheck.
func (o *Orchestrator) seedScan(ctx context.Context, w models.Watchdog) (models.Watchdog, error) {
	run := o.startRun(ctx, &w, "seed")

	var artifacts storage.ArtifactStore
	if o.artifactStore != nil {
		artifacts = o.artifactStore(w.Name)
	}

	listings, err := o.crawler.Crawl(ctx, w.URL, o.cfg.Crawl.DeepMaxPages, artifacts)
	if err != nil {
		o.finishRun(ctx, run, models.RunStatusFailed, len(listings), 0, err)
		return w, fmt.Errorf("initial scan: %w", err)
	}

	seeded := Seed(w, listings)
	o.finishRun(ctx, run, models.RunStatusCompleted, len(listings), 0, nil)
	return seeded, nil
}

// persistWatchdog folds one updated watchdog into the latest persisted
// state. A watchdog removed concurrently stays removed.
func (o *Orchestrator) persistWatchdog(ctx context.Context, updated models.Watchdog) error {
	watchdogs, err := o.registry.Load(ctx)
	if err != nil {
		return err
	}

	idx := indexOf(watchdogs, updated.ID)
	if idx < 0 {
		log.Printf("Watchdog %s disappeared during check, dropping update", updated.Name)
		return nil
	}

	watchdogs[idx] = updated
	return o.registry.Save(ctx, watchdogs)
}

func (o *Orchestrator) startRun(ctx context.Context, w *models.Watchdog, kind string) *models.CheckRun {
	run := &models.CheckRun{
		WatchdogID: w.ID,
		Kind:       kind,
		StartedAt:  time.Now().UTC(),
		Status:     models.RunStatusRunning,
	}
	if o.runs != nil {
		if id, err := o.runs.CreateRun(ctx, run); err != nil {
			log.Printf("Warning: failed to record run: %v", err)
		} else {
			run.ID = id
		}
	}
	return run
}

func (o *Orchestrator) finishRun(ctx context.Context, run *models.CheckRun, status models.RunStatus, found, fresh int, cause error) {
	if o.runs == nil || run.ID == 0 {
		return
	}
	now := time.Now().UTC()
	run.FinishedAt = &now
	run.Status = status
	run.ListingsFound = found
	run.ListingsNew = fresh
	if cause != nil {
		run.Error = cause.Error()
	}
	if err := o.runs.UpdateRun(ctx, run); err != nil {
		log.Printf("Warning: failed to update run: %v", err)
	}
}

func indexOf(watchdogs []models.Watchdog, id string) int {
	for i, w := range watchdogs {
		if w.ID == id {
			return i
		}
	}
	return -1
}

func mention(createdBy string) string {
	if createdBy == "" {
		return ""
	}
	return "<@" + createdBy + ">"
}
