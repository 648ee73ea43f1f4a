package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jjenkins/factbase/internal/model"
	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"
)

// TriggerResult is the answer to a manual trigger.
type TriggerResult string

const (
	TriggerAccepted       TriggerResult = "accepted"
	TriggerAlreadyRunning TriggerResult = "already_running"
)

// ScheduleStatus is what the admin API reports for one source.
type ScheduleStatus struct {
	Source           model.SyncSource      `json:"source"`
	Schedule         string                `json:"schedule"`
	Enabled          bool                  `json:"enabled"`
	CurrentlyRunning bool                  `json:"currently_running"`
	State            model.SyncState       `json:"state"`
	LastRunTime      time.Time             `json:"last_run_time,omitzero"`
	NextRunTime      time.Time             `json:"next_run_time,omitzero"`
	LastStatistics   *model.SyncStatistics `json:"last_statistics,omitempty"`
	Marker           string                `json:"marker,omitempty"`
}

type SchedulerOptions struct {
	// Enabled starts the cron loop. Manual triggers work either way.
	Enabled bool
	// Schedules maps each source to a six-field cron spec (with seconds).
	// A source without a spec only runs when triggered.
	Schedules map[model.SyncSource]string
}

// Scheduler runs syncs on cron schedules and on demand.
type Scheduler struct {
	orch    *Orchestrator
	cron    *cron.Cron
	enabled bool
	specs   map[model.SyncSource]string
	entries map[model.SyncSource]cron.EntryID
	ctx     context.Context
	cancel  context.CancelFunc
	log     *logrus.Entry
}

func NewScheduler(orch *Orchestrator, opts SchedulerOptions, logger *logrus.Logger) (*Scheduler, error) {
	log := logger.WithField("component", "scheduler")
	ctx, cancel := context.WithCancel(context.Background())
	s := &Scheduler{
		orch:    orch,
		cron:    cron.New(cron.WithSeconds(), cron.WithLogger(cron.PrintfLogger(log))),
		enabled: opts.Enabled,
		specs:   make(map[model.SyncSource]string),
		entries: make(map[model.SyncSource]cron.EntryID),
		ctx:     ctx,
		cancel:  cancel,
		log:     log,
	}

	for _, source := range orch.Sources() {
		spec := opts.Schedules[source]
		if spec == "" {
			continue
		}
		id, err := s.cron.AddFunc(spec, func() { s.scheduled(source) })
		if err != nil {
			cancel()
			return nil, fmt.Errorf("invalid schedule %q for %s: %w", spec, source, err)
		}
		s.specs[source] = spec
		s.entries[source] = id
	}
	return s, nil
}

// Start begins the cron loop when scheduling is enabled.
func (s *Scheduler) Start() {
	if !s.enabled {
		s.log.Info("Scheduled sync disabled, manual triggers only")
		return
	}
	s.cron.Start()
	for source, spec := range s.specs {
		s.log.WithFields(logrus.Fields{
			"source":   source,
			"schedule": spec,
			"next_run": s.cron.Entry(s.entries[source]).Next,
		}).Info("Sync scheduled")
	}
}

// Stop halts the cron loop, cancels active runs and waits for them, or
// for ctx.
func (s *Scheduler) Stop(ctx context.Context) {
	<-s.cron.Stop().Done()
	s.cancel()

	done := make(chan struct{})
	go func() {
		s.orch.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
		s.log.Warn("Gave up waiting for active syncs")
	}
}

func (s *Scheduler) scheduled(source model.SyncSource) {
	result, err := s.TriggerNow(source, false)
	switch {
	case err != nil:
		s.log.WithError(err).WithField("source", source).Error("Failed to start scheduled sync")
	case result == TriggerAlreadyRunning:
		s.log.WithField("source", source).Info("Skipping scheduled sync, previous run still active")
	}
}

// TriggerNow starts a run of source without waiting for it. A source that
// is already running is left alone.
func (s *Scheduler) TriggerNow(source model.SyncSource, force bool) (TriggerResult, error) {
	err := s.orch.Start(s.ctx, source, force)
	switch {
	case err == nil:
		return TriggerAccepted, nil
	case errors.Is(err, ErrSyncInProgress):
		return TriggerAlreadyRunning, nil
	default:
		return "", err
	}
}

func (s *Scheduler) Sources() []model.SyncSource { return s.orch.Sources() }

func (s *Scheduler) Status(ctx context.Context, source model.SyncSource) (ScheduleStatus, error) {
	run, err := s.orch.Status(source)
	if err != nil {
		return ScheduleStatus{}, err
	}
	marker, err := s.orch.Marker(ctx, source)
	if err != nil {
		return ScheduleStatus{}, fmt.Errorf("failed to read marker of %s: %w", source, err)
	}

	st := ScheduleStatus{
		Source:           source,
		Schedule:         s.specs[source],
		Enabled:          s.enabled,
		CurrentlyRunning: run.Running,
		State:            model.StateNotStarted,
		LastStatistics:   run.Statistics,
		Marker:           marker,
	}
	if run.Statistics != nil {
		st.State = run.Statistics.State
		st.LastRunTime = run.Statistics.StartedAt
	}
	if id, ok := s.entries[source]; ok && s.enabled {
		st.NextRunTime = s.cron.Entry(id).Next
	}
	return st, nil
}

// StatusAll reports every configured source.
func (s *Scheduler) StatusAll(ctx context.Context) ([]ScheduleStatus, error) {
	sources := s.orch.Sources()
	out := make([]ScheduleStatus, 0, len(sources))
	for _, source := range sources {
		st, err := s.Status(ctx, source)
		if err != nil {
			return nil, err
		}
		out = append(out, st)
	}
	return out, nil
}
