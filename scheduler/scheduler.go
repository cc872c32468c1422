package scheduler

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/yogiovic/sreality-cron-querybot/config"
	"github.com/yogiovic/sreality-cron-querybot/storage"
	"github.com/yogiovic/sreality-cron-querybot/watchdog"
)

// Scheduler owns the perpetual sweep: a fixed-period tick (or cron
// expression) under which every watchdog's due-predicate is evaluated.
// Individual check cadence comes from each watchdog's interval; the sweep
// period only bounds how late a due check can start.
type Scheduler struct {
	cfg          *config.Config
	orchestrator *watchdog.Orchestrator
	commands     *storage.SQLiteStore
	cron         *cron.Cron
	ticker       *time.Ticker
	stopCh       chan struct{}
}

func New(cfg *config.Config, orchestrator *watchdog.Orchestrator, commands *storage.SQLiteStore) *Scheduler {
	return &Scheduler{
		cfg:          cfg,
		orchestrator: orchestrator,
		commands:     commands,
		cron:         cron.New(),
		stopCh:       make(chan struct{}),
	}
}

func (s *Scheduler) Start(ctx context.Context) error {
	if s.commands != nil {
		go s.pollCommands(ctx)
	}

	if s.cfg.Scheduler.Cron != "" {
		log.Printf("Starting sweep with cron: %s", s.cfg.Scheduler.Cron)
		_, err := s.cron.AddFunc(s.cfg.Scheduler.Cron, func() {
			s.orchestrator.Sweep(ctx)
		})
		if err != nil {
			return fmt.Errorf("invalid cron expression: %w", err)
		}
		s.cron.Start()
		return nil
	}

	interval := s.cfg.Scheduler.SweepInterval
	if interval <= 0 {
		interval = time.Minute
	}
	log.Printf("Starting sweep with interval: %s", interval)
	s.ticker = time.NewTicker(interval)
	go func() {
		for {
			select {
			case <-s.ticker.C:
				s.orchestrator.Sweep(ctx)
			case <-s.stopCh:
				return
			case <-ctx.Done():
				return
			}
		}
	}()

	return nil
}

func (s *Scheduler) Stop() {
	if s.cron != nil {
		s.cron.Stop()
	}
	if s.ticker != nil {
		s.ticker.Stop()
	}
	close(s.stopCh)
}

// TriggerNow runs one sweep outside the schedule.
func (s *Scheduler) TriggerNow(ctx context.Context) {
	s.orchestrator.Sweep(ctx)
}

// pollCommands drains the operator command queue. The chat surface (or any
// other frontend) only ever enqueues rows; all watchdog mutations happen
// here, through the same load/save registry boundary the sweep uses.
func (s *Scheduler) pollCommands(ctx context.Context) {
	ticker := time.NewTicker(2 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			cmds, err := s.commands.GetPendingCommands()
			if err != nil {
				log.Printf("Error getting commands: %v", err)
				continue
			}

			for _, cmd := range cmds {
				log.Printf("Processing command: %s", cmd.Command)
				params, err := s.commands.ParseCommandParams(&cmd)
				if err != nil {
					log.Printf("Command %d has bad params: %v", cmd.ID, err)
				} else if err := s.orchestrator.HandleCommand(ctx, &cmd, params); err != nil {
					log.Printf("Command error: %v", err)
				}
				if err := s.commands.MarkCommandProcessed(cmd.ID); err != nil {
					log.Printf("Error marking command processed: %v", err)
				}
			}
		case <-s.stopCh:
			return
		case <-ctx.Done():
			return
		}
	}
}
