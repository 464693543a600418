package pipeline

import (
	"context"
	"fmt"
	"time"

	"notifyd/internal/notification"
	"notifyd/internal/registry"
	"notifyd/internal/store"
	"notifyd/pkg/logx"
)

// DefaultJobName is the job name under which notification runs are
// mutually excluded.
const DefaultJobName = "notification"

const defaultChunkSize = 50

// JobConfig wires a Job.
type JobConfig struct {
	// Name distinguishes this job for mutual exclusion. Defaults to
	// DefaultJobName.
	Name string
	// ChunkSize bounds how many notifications are written per store
	// pass. It is a persistence granularity only; dedup and series
	// logic are scoped to the whole run.
	ChunkSize int

	Types    *registry.Types
	Statuses *registry.Statuses
	Store    store.Store
	Finder   RecipientFinder
	Tracker  RunTracker
	Log      logx.Logger

	// Now overrides the clock in tests.
	Now func() time.Time
}

// Job orchestrates one batch run: mutual exclusion, then
// Select -> Validate -> Dispatch-and-Persist over the full work-set in
// chunks. Both the cron trigger and the on-demand trigger funnel through
// Run.
type Job struct {
	name      string
	chunkSize int
	types     *registry.Types
	statuses  *registry.Statuses
	store     store.Store
	finder    RecipientFinder
	tracker   RunTracker
	log       logx.Logger
	now       func() time.Time
}

func NewJob(cfg JobConfig) *Job {
	name := cfg.Name
	if name == "" {
		name = DefaultJobName
	}
	chunk := cfg.ChunkSize
	if chunk <= 0 {
		chunk = defaultChunkSize
	}
	now := cfg.Now
	if now == nil {
		now = time.Now
	}
	log := cfg.Log
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Job{
		name:      name,
		chunkSize: chunk,
		types:     cfg.Types,
		statuses:  cfg.Statuses,
		store:     cfg.Store,
		finder:    cfg.Finder,
		tracker:   cfg.Tracker,
		log:       log.With(logx.String("job", name)),
		now:       now,
	}
}

// Name returns the job name used for mutual exclusion.
func (j *Job) Name() string { return j.name }

// Run executes one batch pass in the given mode. A second invocation
// while a run of the same name is active fails with ErrAlreadyRunning
// and does not touch the in-flight run.
func (j *Job) Run(ctx context.Context, mode notification.Mode) error {
	if err := j.tracker.Begin(j.name); err != nil {
		return fmt.Errorf("%w: %s", err, j.name)
	}
	defer j.tracker.End(j.name)

	start := j.now()
	today := notification.DateOf(start)

	reader := NewReader(j.types, j.statuses, j.store, j.finder, j.log)
	items, err := reader.Read(ctx, mode, today)
	if err != nil {
		return err
	}

	processor := NewProcessor(j.types, j.log)
	// Fresh writer per run: its dispatch-key set is the run-scoped dedup
	// state.
	writer := NewWriter(j.types, j.statuses, j.store, j.log, j.now)

	for offset := 0; offset < len(items); offset += j.chunkSize {
		end := min(offset+j.chunkSize, len(items))
		chunk := items[offset:end]
		for _, n := range chunk {
			processor.Process(ctx, n)
		}
		if err := writer.Write(ctx, chunk); err != nil {
			return err
		}
	}

	j.log.Info("run complete",
		logx.String("mode", mode.String()),
		logx.Int("processed", len(items)),
		logx.Duration("took", time.Since(start)))
	return nil
}
