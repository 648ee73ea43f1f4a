package service

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jjenkins/factbase/internal/model"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

var (
	ErrSyncInProgress = errors.New("sync already in progress")
	ErrUnknownSource  = errors.New("unknown sync source")
)

const (
	defaultConcurrency     = 4
	defaultMaxErrorSamples = 20
)

// Outcome is what applying one item did to the store.
type Outcome struct {
	Result    MergeResult
	Linked    int
	Unmatched []string
}

// Item is one record of a batch. Err carries a record that failed to
// parse; Apply merges it.
type Item struct {
	Key   string
	Err   error
	Apply func(ctx context.Context) (Outcome, error)
}

// Batch is the result of fetching a source. An error yielded by Items
// fails the run. Marker is called only after Items is exhausted.
type Batch struct {
	NoChange bool
	Items    iter.Seq2[Item, error]
	Marker   func() string
	// Followup, when set, runs after every item has been applied. Its
	// items count toward errors and links but not toward record results.
	Followup func() iter.Seq[Item]
}

// Job fetches one source.
type Job interface {
	Source() model.SyncSource
	// LinksAgencies reports whether the job resolves agency names.
	LinksAgencies() bool
	// Fetch reads the source. marker is the stored version token, empty on
	// a first or forced run.
	Fetch(ctx context.Context, marker string, force bool) (*Batch, error)
}

// SourceStatus is the run state of one source.
type SourceStatus struct {
	Source  model.SyncSource
	Running bool
	// Statistics of the active run, else of the last one. Nil before the
	// first run.
	Statistics *model.SyncStatistics
}

type OrchestratorOptions struct {
	Concurrency     int
	MaxErrorSamples int
}

// Orchestrator runs sync jobs, at most one per source at a time.
type Orchestrator struct {
	jobs     map[model.SyncSource]Job
	markers  MarkerStore
	resolver *AgencyResolver
	opts     OrchestratorOptions
	log      *logrus.Entry

	mu      sync.Mutex
	sources map[model.SyncSource]*sourceRun
	wg      sync.WaitGroup
}

type sourceRun struct {
	active *runTracker
	last   *model.SyncStatistics
}

func NewOrchestrator(jobs []Job, markers MarkerStore, resolver *AgencyResolver, opts OrchestratorOptions, logger *logrus.Logger) *Orchestrator {
	if opts.Concurrency < 1 {
		opts.Concurrency = defaultConcurrency
	}
	if opts.MaxErrorSamples <= 0 {
		opts.MaxErrorSamples = defaultMaxErrorSamples
	}
	o := &Orchestrator{
		jobs:     make(map[model.SyncSource]Job, len(jobs)),
		markers:  markers,
		resolver: resolver,
		opts:     opts,
		log:      logger.WithField("component", "sync"),
		sources:  make(map[model.SyncSource]*sourceRun, len(jobs)),
	}
	for _, j := range jobs {
		o.jobs[j.Source()] = j
		o.sources[j.Source()] = &sourceRun{}
	}
	return o
}

// Sources returns the configured sources in refresh order.
func (o *Orchestrator) Sources() []model.SyncSource {
	out := make([]model.SyncSource, 0, len(o.jobs))
	for _, s := range model.SyncSources {
		if _, ok := o.jobs[s]; ok {
			out = append(out, s)
		}
	}
	return out
}

// Run syncs source and waits for the result. A run that fails returns its
// statistics along with the error.
func (o *Orchestrator) Run(ctx context.Context, source model.SyncSource, force bool) (*model.SyncStatistics, error) {
	job, tracker, err := o.acquire(source)
	if err != nil {
		return nil, err
	}
	stats := o.execute(ctx, job, tracker, force)
	if stats.State == model.StateFailed {
		return stats, fmt.Errorf("sync %s failed: %s", source, stats.FailureReason)
	}
	return stats, nil
}

// Start syncs source in the background. It returns ErrSyncInProgress
// without waiting when a run is already active.
func (o *Orchestrator) Start(ctx context.Context, source model.SyncSource, force bool) error {
	job, tracker, err := o.acquire(source)
	if err != nil {
		return err
	}
	o.wg.Add(1)
	go func() {
		defer o.wg.Done()
		o.execute(ctx, job, tracker, force)
	}()
	return nil
}

// Wait blocks until every run started with Start has finished.
func (o *Orchestrator) Wait() { o.wg.Wait() }

func (o *Orchestrator) Status(source model.SyncSource) (SourceStatus, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	run, ok := o.sources[source]
	if !ok {
		return SourceStatus{}, fmt.Errorf("%w: %s", ErrUnknownSource, source)
	}
	st := SourceStatus{Source: source, Running: run.active != nil}
	if run.active != nil {
		st.Statistics = run.active.snapshot()
	} else if run.last != nil {
		last := *run.last
		st.Statistics = &last
	}
	return st, nil
}

// Marker returns the stored version token of source.
func (o *Orchestrator) Marker(ctx context.Context, source model.SyncSource) (string, error) {
	if _, ok := o.jobs[source]; !ok {
		return "", fmt.Errorf("%w: %s", ErrUnknownSource, source)
	}
	return o.markers.GetMarker(ctx, source)
}

func (o *Orchestrator) acquire(source model.SyncSource) (Job, *runTracker, error) {
	job, ok := o.jobs[source]
	if !ok {
		return nil, nil, fmt.Errorf("%w: %s", ErrUnknownSource, source)
	}
	o.mu.Lock()
	defer o.mu.Unlock()
	run := o.sources[source]
	if run.active != nil {
		return nil, nil, fmt.Errorf("%w: %s", ErrSyncInProgress, source)
	}
	run.active = newRunTracker(source, o.opts.MaxErrorSamples)
	return job, run.active, nil
}

func (o *Orchestrator) release(source model.SyncSource, stats *model.SyncStatistics) {
	o.mu.Lock()
	defer o.mu.Unlock()
	run := o.sources[source]
	run.active = nil
	run.last = stats
}

func (o *Orchestrator) execute(ctx context.Context, job Job, t *runTracker, force bool) (stats *model.SyncStatistics) {
	source := job.Source()
	log := o.log.WithFields(logrus.Fields{"source": source, "run_id": t.runID, "force": force})
	log.Info("Sync started")

	defer func() {
		if p := recover(); p != nil {
			t.fail(fmt.Errorf("panic: %v", p))
			stats = t.finish()
		}
		recordRun(stats)
		o.release(source, stats)

		entry := log.WithFields(logrus.Fields{
			"fetched":   stats.Fetched,
			"created":   stats.Created,
			"updated":   stats.Updated,
			"unchanged": stats.Unchanged,
			"skipped":   stats.Skipped,
			"errors":    stats.Errors,
			"no_change": stats.NoChange,
			"duration":  stats.Duration().String(),
		})
		if stats.State == model.StateFailed {
			entry.WithField("reason", stats.FailureReason).Error("Sync failed")
		} else {
			entry.Info("Sync completed")
		}
	}()

	t.setState(model.StateFetching)

	if job.LinksAgencies() && o.resolver != nil {
		if _, err := o.resolver.Refresh(ctx); err != nil {
			t.fail(fmt.Errorf("failed to refresh agency resolver: %w", err))
			return t.finish()
		}
	}

	previous, err := o.markers.GetMarker(ctx, source)
	if err != nil {
		t.fail(fmt.Errorf("failed to read marker: %w", err))
		return t.finish()
	}
	t.setMarkers(previous, previous)

	marker := previous
	if force {
		marker = ""
	}
	batch, err := job.Fetch(ctx, marker, force)
	if err != nil {
		t.fail(fmt.Errorf("fetch failed: %w", err))
		return t.finish()
	}
	if batch.NoChange {
		log.WithField("marker", previous).Info("Source unchanged since last sync")
		t.noChange()
		return t.finish()
	}

	t.setState(model.StateParsingAndMerging)
	if err := o.apply(ctx, log, t, batch.Items, true); err != nil {
		t.fail(err)
		return t.finish()
	}
	if batch.Followup != nil {
		if err := o.apply(ctx, log, t, seqWithoutErrors(batch.Followup()), false); err != nil {
			t.fail(err)
			return t.finish()
		}
	}

	next := previous
	if batch.Marker != nil {
		if m := batch.Marker(); m != "" {
			next = m
		}
	}
	if next != previous {
		if err := o.markers.SetMarker(ctx, source, next); err != nil {
			t.fail(fmt.Errorf("failed to save marker: %w", err))
			return t.finish()
		}
	}
	t.setMarkers(previous, next)

	if source == model.SyncAgencies && o.resolver != nil && t.changed() {
		if _, err := o.resolver.Refresh(ctx); err != nil {
			log.WithError(err).Warn("Failed to refresh agency resolver after sync")
		}
	}

	t.complete()
	return t.finish()
}

// apply feeds items to a bounded worker pool. Record errors are counted;
// the returned error is a stream failure, a worker panic or cancellation.
func (o *Orchestrator) apply(ctx context.Context, log *logrus.Entry, t *runTracker, items iter.Seq2[Item, error], countFetched bool) error {
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(o.opts.Concurrency)

	var streamErr error
	for item, err := range items {
		if err != nil {
			streamErr = fmt.Errorf("failed to read records: %w", err)
			break
		}
		if gctx.Err() != nil {
			break
		}
		if countFetched {
			t.fetched()
		}
		if item.Err != nil {
			log.WithError(item.Err).WithField("key", item.Key).Warn("Skipping invalid record")
			t.recordError(item.Key, item.Err)
			continue
		}

		g.Go(func() (err error) {
			defer func() {
				if p := recover(); p != nil {
					err = fmt.Errorf("panic applying %s: %v", item.Key, p)
				}
			}()
			out, applyErr := item.Apply(gctx)
			if applyErr != nil {
				if gctx.Err() == nil {
					log.WithError(applyErr).WithField("key", item.Key).Warn("Failed to merge record")
				}
				t.recordError(item.Key, applyErr)
				t.recordOutcome(Outcome{Unmatched: out.Unmatched}, false)
				return nil
			}
			t.recordOutcome(out, countFetched)
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return err
	}
	if streamErr != nil {
		return streamErr
	}
	return ctx.Err()
}

func seqWithoutErrors(items iter.Seq[Item]) iter.Seq2[Item, error] {
	return func(yield func(Item, error) bool) {
		for it := range items {
			if !yield(it, nil) {
				return
			}
		}
	}
}

// runTracker accumulates the statistics of an active run.
type runTracker struct {
	mu         sync.Mutex
	stats      model.SyncStatistics
	maxSamples int
	unmatched  map[string]struct{}
	now        func() time.Time
}

func newRunTracker(source model.SyncSource, maxSamples int) *runTracker {
	return &runTracker{
		stats: model.SyncStatistics{
			RunID:     uuid.NewString(),
			Source:    source,
			State:     model.StateNotStarted,
			StartedAt: time.Now(),
		},
		maxSamples: maxSamples,
		unmatched:  map[string]struct{}{},
		now:        time.Now,
	}
}

func (t *runTracker) setState(s model.SyncState) {
	t.mu.Lock()
	t.stats.State = s
	t.mu.Unlock()
}

func (t *runTracker) setMarkers(previous, next string) {
	t.mu.Lock()
	t.stats.PreviousMarker = previous
	t.stats.Marker = next
	t.mu.Unlock()
}

func (t *runTracker) noChange() {
	t.mu.Lock()
	t.stats.NoChange = true
	t.stats.State = model.StateCompleted
	t.mu.Unlock()
}

func (t *runTracker) complete() { t.setState(model.StateCompleted) }

func (t *runTracker) fail(err error) {
	t.mu.Lock()
	t.stats.State = model.StateFailed
	t.stats.FailureReason = err.Error()
	t.mu.Unlock()
}

func (t *runTracker) fetched() {
	t.mu.Lock()
	t.stats.Fetched++
	t.mu.Unlock()
}

func (t *runTracker) recordError(key string, err error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.stats.Errors++
	if len(t.stats.ErrorSamples) < t.maxSamples {
		sample := err.Error()
		if key != "" {
			sample = key + ": " + sample
		}
		t.stats.ErrorSamples = append(t.stats.ErrorSamples, sample)
	}
}

func (t *runTracker) recordOutcome(out Outcome, countResult bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if countResult {
		switch out.Result {
		case ResultCreated:
			t.stats.Created++
		case ResultUpdated:
			t.stats.Updated++
		case ResultUnchanged:
			t.stats.Unchanged++
		default:
			t.stats.Skipped++
		}
	}
	t.stats.LinkedAgencies += out.Linked
	for _, name := range out.Unmatched {
		t.unmatched[name] = struct{}{}
	}
}

func (t *runTracker) changed() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.stats.Created > 0 || t.stats.Updated > 0 || t.stats.LinkedAgencies > 0
}

func (t *runTracker) snapshot() *model.SyncStatistics {
	t.mu.Lock()
	defer t.mu.Unlock()
	s := t.stats
	s.ErrorSamples = slices.Clone(t.stats.ErrorSamples)
	s.UnmatchedNames = make([]string, 0, len(t.unmatched))
	for name := range t.unmatched {
		s.UnmatchedNames = append(s.UnmatchedNames, name)
	}
	slices.Sort(s.UnmatchedNames)
	s.UnmatchedAgencies = len(s.UnmatchedNames)
	return &s
}

func (t *runTracker) finish() *model.SyncStatistics {
	t.mu.Lock()
	t.stats.FinishedAt = t.now()
	t.mu.Unlock()
	return t.snapshot()
}
