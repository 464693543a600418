// Package scheduler drives the time-based triggers: the scheduled
// notification run and the provider reconciliation run, each on its own
// cron spec.
package scheduler

import (
	"context"
	"errors"
	"runtime/debug"
	"strings"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"notifyd/pkg/logx"
)

type Config struct {
	Enabled  bool
	Timezone string // IANA TZ, e.g. "America/Los_Angeles"
}

type entry struct {
	name string
	spec string
	job  func(ctx context.Context) error
}

// Service wraps robfig/cron with named entries and panic containment.
// Entries are added before Start; the cron trigger itself never retries
// a failed run — the next scheduled tick picks up the remainder.
type Service struct {
	mu sync.Mutex

	cfg     Config
	log     logx.Logger
	parser  cron.Parser
	c       *cron.Cron
	entries []entry

	runCtx    context.Context
	runCancel context.CancelFunc
}

func New(cfg Config, log logx.Logger) *Service {
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Service{
		cfg: cfg,
		log: log,
		// SecondOptional allows both 5-field and 6-field cron specs.
		parser: cron.NewParser(cron.SecondOptional | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor),
	}
}

// Add registers a named cron entry. Must be called before Start.
func (s *Service) Add(name, spec string, job func(ctx context.Context) error) error {
	spec = strings.TrimSpace(spec)
	if spec == "" {
		return errors.New("scheduler: empty spec for " + name)
	}
	if _, err := s.parser.Parse(spec); err != nil {
		return errors.New("scheduler: invalid spec for " + name + ": " + err.Error())
	}
	s.mu.Lock()
	s.entries = append(s.entries, entry{name: name, spec: spec, job: job})
	s.mu.Unlock()
	return nil
}

func (s *Service) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.cfg.Enabled {
		s.log.Info("scheduler disabled")
		return nil
	}
	if s.c != nil {
		return nil
	}

	loc := time.Local
	if tz := strings.TrimSpace(s.cfg.Timezone); tz != "" {
		l, err := time.LoadLocation(tz)
		if err != nil {
			s.log.Warn("unknown timezone, using local", logx.String("tz", tz), logx.Err(err))
		} else {
			loc = l
		}
	}

	s.runCtx, s.runCancel = context.WithCancel(ctx)
	s.c = cron.New(cron.WithParser(s.parser), cron.WithLocation(loc))

	for _, e := range s.entries {
		e := e
		if _, err := s.c.AddFunc(e.spec, func() { s.runEntry(e) }); err != nil {
			return err
		}
		s.log.Info("cron entry registered", logx.String("name", e.name), logx.String("spec", e.spec))
	}
	s.c.Start()
	return nil
}

func (s *Service) runEntry(e entry) {
	s.mu.Lock()
	ctx := s.runCtx
	s.mu.Unlock()
	if ctx == nil {
		return
	}

	defer func() {
		if r := recover(); r != nil {
			s.log.Error("panic in cron entry",
				logx.String("name", e.name), logx.Any("panic", r),
				logx.String("stack", string(debug.Stack())))
		}
	}()

	start := time.Now()
	if err := e.job(ctx); err != nil {
		s.log.Warn("cron entry failed",
			logx.String("name", e.name), logx.Duration("took", time.Since(start)), logx.Err(err))
		return
	}
	s.log.Debug("cron entry done",
		logx.String("name", e.name), logx.Duration("took", time.Since(start)))
}

func (s *Service) Stop(ctx context.Context) {
	s.mu.Lock()
	c := s.c
	cancel := s.runCancel
	s.c = nil
	s.runCancel = nil
	s.runCtx = nil
	s.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	if c == nil {
		return
	}
	select {
	case <-c.Stop().Done():
	case <-ctx.Done():
		// stop continues in background
	}
}
