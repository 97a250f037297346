package scheduler

import (
	"context"
	"fmt"
	"log"
	"sync/atomic"
	"time"

	"github.com/robfig/cron/v3"

	"bolig_scrooper/config"
	"bolig_scrooper/models"
	"bolig_scrooper/storage"
)

// RunFunc executes one pipeline step for a site.
type RunFunc func(ctx context.Context, cmd models.CommandType, params models.CommandParams) error

// Store is the part of the operational store the daemon polls.
type Store interface {
	GetPendingCommands() ([]models.Command, error)
	MarkCommandProcessed(id int64) error
	GetSitesWithResumePage() ([]string, error)
	GetLastRunTime(siteID string) (time.Time, error)
}

const (
	commandPollInterval = 2 * time.Second
	resumePollInterval  = time.Minute
	resumeDelay         = 15 * time.Minute
)

type Scheduler struct {
	cfg     config.SchedulerConfig
	run     RunFunc
	store   Store
	cron    *cron.Cron
	ticker  *time.Ticker
	stopCh  chan struct{}
	running atomic.Bool

	commandEvery time.Duration
	resumeEvery  time.Duration
	resumeDelay  time.Duration
}

func New(cfg config.SchedulerConfig, run RunFunc, store Store) *Scheduler {
	return &Scheduler{
		cfg:          cfg,
		run:          run,
		store:        store,
		cron:         cron.New(),
		stopCh:       make(chan struct{}),
		commandEvery: commandPollInterval,
		resumeEvery:  resumePollInterval,
		resumeDelay:  resumeDelay,
	}
}

func (s *Scheduler) Start(ctx context.Context) error {
	if s.store != nil {
		go s.poll(ctx, s.commandEvery, s.processCommands)
		go s.poll(ctx, s.resumeEvery, s.processResumes)
	}

	if s.cfg.Cron != "" {
		log.Printf("Starting scheduler with cron: %s", s.cfg.Cron)
		_, err := s.cron.AddFunc(s.cfg.Cron, func() {
			s.trigger(ctx, models.CmdRunPipeline, models.CommandParams{})
		})
		if err != nil {
			return fmt.Errorf("invalid cron expression: %w", err)
		}
		s.cron.Start()
	} else if s.cfg.Interval > 0 {
		log.Printf("Starting scheduler with interval: %s", s.cfg.Interval)
		s.ticker = time.NewTicker(s.cfg.Interval)
		go func() {
			for {
				select {
				case <-s.ticker.C:
					s.trigger(ctx, models.CmdRunPipeline, models.CommandParams{})
				case <-s.stopCh:
					return
				case <-ctx.Done():
					return
				}
			}
		}()
	} else {
		log.Println("No schedule configured, daemon will only respond to commands")
	}

	return nil
}

func (s *Scheduler) Stop() {
	if s.cron != nil {
		<-s.cron.Stop().Done()
	}
	if s.ticker != nil {
		s.ticker.Stop()
	}
	close(s.stopCh)
}

// trigger runs cmd unless another run is still in progress. It reports
// whether the run happened.
func (s *Scheduler) trigger(ctx context.Context, cmd models.CommandType, params models.CommandParams) bool {
	if !s.running.CompareAndSwap(false, true) {
		log.Printf("Skipping %s: previous run still in progress", cmd)
		return false
	}
	defer s.running.Store(false)

	if err := s.run(ctx, cmd, params); err != nil {
		log.Printf("Scheduled %s error: %v", cmd, err)
	}
	return true
}

func (s *Scheduler) poll(ctx context.Context, every time.Duration, fn func(context.Context)) {
	ticker := time.NewTicker(every)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			fn(ctx)
		case <-s.stopCh:
			return
		case <-ctx.Done():
			return
		}
	}
}

func (s *Scheduler) processCommands(ctx context.Context) {
	cmds, err := s.store.GetPendingCommands()
	if err != nil {
		log.Printf("Error getting commands: %v", err)
		return
	}

	for _, cmd := range cmds {
		if !cmd.Command.Valid() {
			log.Printf("Ignoring unknown command: %s", cmd.Command)
		} else {
			params, err := storage.ParseCommandParams(&cmd)
			if err != nil {
				log.Printf("Bad params for command %d: %v", cmd.ID, err)
			} else {
				log.Printf("Processing command: %s", cmd.Command)
				if !s.trigger(ctx, cmd.Command, *params) {
					// Leave it queued for the next poll.
					continue
				}
			}
		}
		if err := s.store.MarkCommandProcessed(cmd.ID); err != nil {
			log.Printf("Error marking command processed: %v", err)
		}
	}
}

func (s *Scheduler) processResumes(ctx context.Context) {
	sites, err := s.store.GetSitesWithResumePage()
	if err != nil {
		log.Printf("Error checking resume pages: %v", err)
		return
	}

	for _, siteID := range sites {
		lastRun, err := s.store.GetLastRunTime(siteID)
		if err != nil {
			log.Printf("Error getting last run time for %s: %v", siteID, err)
			continue
		}
		if time.Since(lastRun) >= s.resumeDelay {
			log.Printf("Resuming index crawl for %s", siteID)
			s.trigger(ctx, models.CmdRunIndex, models.CommandParams{Site: siteID})
		}
	}
}
