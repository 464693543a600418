// Package app wires the daemon: config, logging, storage, registries,
// the batch jobs, and the cron triggers.
package app

import (
	"context"
	"errors"
	"fmt"
	"sync"

	sd "github.com/coreos/go-systemd/v22/daemon"

	"notifyd/internal/config"
	"notifyd/internal/contacts"
	"notifyd/internal/delivery"
	"notifyd/internal/pipeline"
	"notifyd/internal/registry"
	"notifyd/internal/scheduler"
	"notifyd/internal/service"
	"notifyd/internal/store"
	"notifyd/pkg/logx"
)

type App struct {
	cfgMgr *config.Manager
	logSvc *logx.Service
	log    logx.Logger

	store     store.Store
	types     *registry.Types
	statuses  *registry.Statuses
	directory *contacts.Directory
	tracker   *pipeline.MemoryTracker
	job       *pipeline.Job
	svc       *service.Notifications
	sched     *scheduler.Service
	sender    *delivery.Sender
	telegram  *delivery.Telegram

	checker pipeline.StatusChecker

	runCancel context.CancelFunc
	wg        sync.WaitGroup
}

func New(cfgPath string) (*App, error) {
	boot := logx.NewConsole("INFO")

	cfgMgr := config.NewManager(cfgPath, boot)
	cfg, err := cfgMgr.Load()
	if err != nil {
		return nil, fmt.Errorf("load config %s: %w", cfgPath, err)
	}

	logSvc, log := logx.New(logx.Config{
		Level:   cfg.Logging.Level,
		Console: cfg.Logging.Console,
		File:    logx.FileConfig{Enabled: cfg.Logging.File.Enabled, Path: cfg.Logging.File.Path},
	})

	statuses := registry.DefaultStatusSet()

	busyTimeout, err := cfg.StorageBusyTimeout()
	if err != nil {
		return nil, err
	}
	st, err := store.Open(store.Config{
		Driver:      cfg.Storage.Driver,
		Path:        cfg.Storage.Path,
		DSN:         cfg.Storage.DSN,
		BusyTimeout: busyTimeout,
	}, statuses, log)
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}

	types := registry.NewTypes(log)
	directory := contacts.NewDirectory(cfg.Contacts)
	tracker := pipeline.NewMemoryTracker()

	job := pipeline.NewJob(pipeline.JobConfig{
		ChunkSize: cfg.Notifications.ChunkSize,
		Types:     types,
		Statuses:  statuses,
		Store:     st,
		Finder:    directory,
		Tracker:   tracker,
		Log:       log,
	})

	sender := delivery.NewSender(delivery.NewConsole(log), delivery.Config{
		FromEmail:  cfg.Notifications.FromEmail,
		SMSNumber:  cfg.Notifications.SMSNumber,
		RatePerSec: cfg.Notifications.RatePerSec,
	})

	var telegram *delivery.Telegram
	if cfg.Telegram.Enabled {
		telegram, err = delivery.NewTelegram(cfg.Telegram.Token, log)
		if err != nil {
			return nil, fmt.Errorf("telegram channel: %w", err)
		}
	}

	return &App{
		cfgMgr:    cfgMgr,
		logSvc:    logSvc,
		log:       log,
		store:     st,
		types:     types,
		statuses:  statuses,
		directory: directory,
		tracker:   tracker,
		job:       job,
		svc:       service.New(st, types, statuses, job, log),
		sched: scheduler.New(scheduler.Config{
			Enabled:  cfg.Scheduler.Enabled,
			Timezone: cfg.Scheduler.Timezone,
		}, log),
		sender:   sender,
		telegram: telegram,
	}, nil
}

// Accessors for registration in main, mirroring how plugins are
// registered before Start.
func (a *App) Types() *registry.Types          { return a.types }
func (a *App) Statuses() *registry.Statuses    { return a.statuses }
func (a *App) Sender() *delivery.Sender        { return a.sender }
func (a *App) Telegram() *delivery.Telegram    { return a.telegram }
func (a *App) Log() logx.Logger                { return a.log }
func (a *App) Service() *service.Notifications { return a.svc }

// SetStatusChecker installs the provider reconciliation collaborator.
// Without one, the reconciliation job is not scheduled.
func (a *App) SetStatusChecker(c pipeline.StatusChecker) { a.checker = c }

func (a *App) Start(ctx context.Context) error {
	cfg := a.cfgMgr.Get()
	if cfg == nil {
		return errors.New("app: config not loaded")
	}
	if len(a.types.Names()) == 0 {
		return errors.New("app: no notification types registered")
	}

	if err := a.sched.Add(a.job.Name(), cfg.Notifications.Schedule, func(ctx context.Context) error {
		return a.svc.RunScheduled(ctx)
	}); err != nil {
		return err
	}
	if a.checker != nil && cfg.Notifications.ReconcileSchedule != "" {
		reconciler := pipeline.NewReconciler(a.store, a.statuses, a.checker, a.tracker, a.log)
		if err := a.sched.Add(pipeline.ReconcileJobName, cfg.Notifications.ReconcileSchedule, reconciler.Run); err != nil {
			return err
		}
	}
	if err := a.sched.Start(ctx); err != nil {
		return err
	}

	runCtx, cancel := context.WithCancel(ctx)
	a.runCancel = cancel

	a.wg.Add(2)
	go func() {
		defer a.wg.Done()
		if err := a.cfgMgr.Watch(runCtx); err != nil {
			a.log.Warn("config watch stopped", logx.Err(err))
		}
	}()
	updates := a.cfgMgr.Subscribe(1)
	go func() {
		defer a.wg.Done()
		defer a.cfgMgr.Unsubscribe(updates)
		for {
			select {
			case <-runCtx.Done():
				return
			case next, ok := <-updates:
				if !ok {
					return
				}
				a.applyConfig(next)
			}
		}
	}()

	// Best effort; no-op outside systemd.
	_, _ = sd.SdNotify(false, sd.SdNotifyReady)
	a.log.Info("notifyd started",
		logx.String("driver", cfg.Storage.Driver),
		logx.Any("types", a.types.Names()))
	return nil
}

// applyConfig reapplies the reloadable subset: log level/sinks and the
// contact directory. Storage driver and schedules need a restart.
func (a *App) applyConfig(cfg *config.Config) {
	a.logSvc.Apply(logx.Config{
		Level:   cfg.Logging.Level,
		Console: cfg.Logging.Console,
		File:    logx.FileConfig{Enabled: cfg.Logging.File.Enabled, Path: cfg.Logging.File.Path},
	})
	a.directory.Replace(cfg.Contacts)
	a.log.Debug("reloadable config applied", logx.Int("contacts", len(cfg.Contacts)))
}

func (a *App) Stop(ctx context.Context) error {
	_, _ = sd.SdNotify(false, sd.SdNotifyStopping)
	if a.runCancel != nil {
		a.runCancel()
	}
	a.sched.Stop(ctx)
	a.wg.Wait()
	var err error
	if a.store != nil {
		err = a.store.Close()
	}
	_ = a.logSvc.Close()
	return err
}
