// Package core wires the job store, processor registry, retry policy and
// event bus into the offline-first queue engine.
package core

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/greengoods/gardenqueue/chain"
	"github.com/greengoods/gardenqueue/errors"
	"github.com/greengoods/gardenqueue/job"
	"github.com/greengoods/gardenqueue/metrics"
	"github.com/greengoods/gardenqueue/registry"
	"github.com/greengoods/gardenqueue/retry"
)

// Engine is the queue state machine. Jobs are accepted regardless of
// connectivity, persisted durably, and replayed on-chain when a flush
// runs. All methods are safe for concurrent use.
type Engine struct {
	config   *Config
	store    Store
	registry Registry
	policy   RetryPolicy
	bus      EventBus
	client   chain.SmartAccountClient
	netmon   NetworkMonitor
	breaker  Breaker
	clock    retry.Clock
	logger   *slog.Logger

	mu       sync.Mutex
	inflight map[string]struct{}
	started  bool
	stopped  bool

	unsubscribe func()
	flushWG     sync.WaitGroup
}

// NewEngine assembles an engine from its collaborators. The store is not
// connected until Start.
func NewEngine(store Store, reg Registry, policy RetryPolicy, bus EventBus, client chain.SmartAccountClient, options ...EngineOption) *Engine {
	e := &Engine{
		config:   defaultConfig(),
		store:    store,
		registry: reg,
		policy:   policy,
		bus:      bus,
		client:   client,
		clock:    retry.SystemClock,
		logger:   slog.Default().With("component", "engine"),
		inflight: make(map[string]struct{}),
	}
	for _, opt := range options {
		opt(e)
	}
	return e
}

// Start connects the store, recovers jobs interrupted mid-processing by
// a previous crash, and begins reacting to connectivity transitions.
func (e *Engine) Start(ctx context.Context) error {
	e.mu.Lock()
	if e.started {
		e.mu.Unlock()
		return nil
	}
	e.started = true
	e.stopped = false
	e.mu.Unlock()

	if err := e.store.Connect(ctx); err != nil {
		return fmt.Errorf("connect store: %w", err)
	}

	if err := e.recover(ctx); err != nil {
		return err
	}

	if e.netmon != nil && e.config.FlushOnOnline {
		e.unsubscribe = e.netmon.Subscribe(func(online bool) {
			if !online {
				return
			}
			// Add under the lock so a callback racing Stop cannot slip
			// past flushWG.Wait.
			e.mu.Lock()
			if !e.started {
				e.mu.Unlock()
				return
			}
			e.flushWG.Add(1)
			e.mu.Unlock()
			e.logger.Info("connectivity restored, flushing queue")
			go func() {
				defer e.flushWG.Done()
				if err := e.Flush(context.Background()); err != nil {
					e.logger.Error("background flush failed", "error", err)
				}
			}()
		})
	}

	e.logger.Info("engine started",
		"chain_id", e.config.ChainID,
		"sender_concurrency", e.config.SenderConcurrency)
	return nil
}

// Stop detaches from the network monitor, waits for background flushes,
// and closes the store. The engine can be restarted afterwards.
func (e *Engine) Stop() error {
	e.mu.Lock()
	if !e.started || e.stopped {
		e.mu.Unlock()
		return nil
	}
	e.stopped = true
	e.started = false
	e.mu.Unlock()

	if e.unsubscribe != nil {
		e.unsubscribe()
		e.unsubscribe = nil
	}
	e.flushWG.Wait()

	if err := e.store.Close(); err != nil {
		return fmt.Errorf("close store: %w", err)
	}
	e.logger.Info("engine stopped")
	return nil
}

// recover resets jobs stuck in processing back to queued. A job can only
// be in that state if the process died between marking and finishing it.
func (e *Engine) recover(ctx context.Context) error {
	stuck, err := e.store.List(ctx, job.Filter{Status: job.StatusProcessing})
	if err != nil {
		return fmt.Errorf("list interrupted jobs: %w", err)
	}
	for _, j := range stuck {
		j.Status = job.StatusQueued
		j.UpdatedAt = e.clock.Now()
		if err := e.store.Put(ctx, j); err != nil {
			return fmt.Errorf("requeue interrupted job %s: %w", j.ID, err)
		}
		e.logger.Warn("requeued job interrupted mid-processing", "job_id", j.ID)
	}
	return nil
}

// AddJob validates, persists and announces a new job. It succeeds while
// offline; the job waits in the store until the next flush. The returned
// job carries the generated id.
func (e *Engine) AddJob(ctx context.Context, j job.Job) (job.Job, error) {
	if j.Kind == "" {
		return job.Job{}, errors.ErrEmptyKind
	}
	if !e.registry.Has(j.Kind) {
		return job.Job{}, fmt.Errorf("%w: %s", errors.ErrUnknownKind, j.Kind)
	}

	now := e.clock.Now()
	if j.ID == "" {
		j.ID = uuid.NewString()
	} else if _, err := e.store.Get(ctx, j.ID); err == nil {
		// An upsert here could flip a synced job back to unsynced.
		return job.Job{}, fmt.Errorf("%w: %s", errors.ErrDuplicateJob, j.ID)
	}
	if j.ChainID == 0 {
		j.ChainID = e.config.ChainID
	}
	j.Status = job.StatusQueued
	j.Attempts = 0
	j.Synced = false
	j.TxHash = ""
	j.LastError = ""
	j.CreatedAt = now
	j.UpdatedAt = now

	if err := e.store.Put(ctx, j); err != nil {
		return job.Job{}, fmt.Errorf("persist job: %w", err)
	}

	metrics.JobsAdded.WithLabelValues(string(j.Kind)).Inc()
	e.refreshPendingGauge(ctx)
	e.logger.Info("job queued", "job_id", j.ID, "kind", j.Kind, "sender", j.Sender)

	e.bus.Publish(job.Event{
		Type:  job.EventAdded,
		JobID: j.ID,
		Job:   &j,
		At:    now,
	})
	return j, nil
}

// AttachMedia stores a binary blob against a job, referenced from the
// payload by its att:// name.
func (e *Engine) AttachMedia(ctx context.Context, att job.Attachment) error {
	if _, err := e.store.Get(ctx, att.JobID); err != nil {
		return err
	}
	return e.store.PutAttachment(ctx, att)
}

// OfflineTxHash returns the deterministic placeholder hash for a queued
// job, usable as a reference before the real hash exists.
func (e *Engine) OfflineTxHash(jobID string) string {
	return chain.OfflineTxHash(jobID)
}

// Jobs lists stored jobs matching the filter, in creation order.
func (e *Engine) Jobs(ctx context.Context, f job.Filter) ([]job.Job, error) {
	return e.store.List(ctx, f)
}

// Job returns one job by id.
func (e *Engine) Job(ctx context.Context, id string) (job.Job, error) {
	return e.store.Get(ctx, id)
}

// RemoveJob deletes a job and its attachments. Intended for user-driven
// discard of permanently failed items.
func (e *Engine) RemoveJob(ctx context.Context, id string) error {
	e.policy.Forget(id)
	if err := e.store.Remove(ctx, id); err != nil {
		return err
	}
	e.refreshPendingGauge(ctx)
	return nil
}

// Subscribe registers a lifecycle event handler and returns its
// unsubscribe function.
func (e *Engine) Subscribe(fn func(job.Event)) func() {
	return e.bus.Subscribe(fn)
}

// Stats summarizes the queue for display.
func (e *Engine) Stats(ctx context.Context) (job.Stats, error) {
	all, err := e.store.List(ctx, job.Filter{})
	if err != nil {
		return job.Stats{}, err
	}
	var s job.Stats
	s.Total = len(all)
	for _, j := range all {
		switch {
		case j.Synced:
			s.Synced++
		case j.Status == job.StatusFailed:
			s.Failed++
		default:
			s.Pending++
		}
	}
	return s, nil
}

// CachedWorks projects unsynced work jobs into the shape the works feed
// renders, so submissions appear immediately with placeholder hashes.
func (e *Engine) CachedWorks(ctx context.Context) ([]job.CachedWork, error) {
	pending, err := e.store.List(ctx, job.Filter{Kind: job.KindWork, Synced: job.Bool(false)})
	if err != nil {
		return nil, err
	}
	works := make([]job.CachedWork, 0, len(pending))
	for _, j := range pending {
		if cw, ok := job.ProjectCachedWork(j); ok {
			works = append(works, cw)
		}
	}
	return works, nil
}

// Flush replays every eligible unsynced job. Jobs from distinct senders
// run in parallel lanes; within a lane they run sequentially in creation
// order, so an approval never overtakes the work it references. One
// job's failure never aborts the rest of the pass.
func (e *Engine) Flush(ctx context.Context) error {
	if e.netmon != nil && !e.netmon.Online() {
		e.logger.Debug("flush skipped, offline")
		return nil
	}

	start := time.Now()
	defer func() {
		metrics.FlushDuration.Observe(time.Since(start).Seconds())
	}()

	eligible, err := e.eligible(ctx)
	if err != nil {
		return err
	}
	if len(eligible) == 0 {
		return nil
	}
	e.logger.Info("flushing queue", "eligible", len(eligible))

	lanes := make(map[string][]job.Job)
	order := make([]string, 0)
	for _, j := range eligible {
		if _, ok := lanes[j.Sender]; !ok {
			order = append(order, j.Sender)
		}
		lanes[j.Sender] = append(lanes[j.Sender], j)
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.config.SenderConcurrency)
	for _, sender := range order {
		lane := lanes[sender]
		g.Go(func() error {
			for _, j := range lane {
				if gctx.Err() != nil {
					return gctx.Err()
				}
				if err := e.processOne(gctx, j.ID); err != nil {
					e.logger.Error("job processing error",
						"job_id", j.ID, "kind", j.Kind, "error", err)
				}
			}
			return nil
		})
	}
	err = g.Wait()
	e.refreshPendingGauge(ctx)
	return err
}

// eligible lists unsynced jobs that are allowed to run now: queued or
// retrying, inside their retry budget, past their backoff window, and
// not already in flight.
func (e *Engine) eligible(ctx context.Context) ([]job.Job, error) {
	unsynced, err := e.store.List(ctx, job.Filter{Synced: job.Bool(false)})
	if err != nil {
		return nil, fmt.Errorf("list unsynced jobs: %w", err)
	}

	out := make([]job.Job, 0, len(unsynced))
	for _, j := range unsynced {
		if j.Status != job.StatusQueued && j.Status != job.StatusRetrying {
			continue
		}
		if !e.policy.ShouldRetry(j.ID) {
			continue
		}
		e.mu.Lock()
		_, busy := e.inflight[j.ID]
		e.mu.Unlock()
		if busy {
			continue
		}
		out = append(out, j)
	}
	return out, nil
}

// processOne drives a single job through one attempt of the state
// machine: processing, then completed, retrying or failed.
func (e *Engine) processOne(ctx context.Context, id string) error {
	e.mu.Lock()
	if _, busy := e.inflight[id]; busy {
		e.mu.Unlock()
		return nil
	}
	e.inflight[id] = struct{}{}
	e.mu.Unlock()
	defer func() {
		e.mu.Lock()
		delete(e.inflight, id)
		e.mu.Unlock()
	}()

	// Re-validate eligibility against current state: the caller's
	// snapshot may predate another pass's transient failure, and a job
	// inside its backoff window must not run again.
	j, err := e.store.Get(ctx, id)
	if err != nil {
		return fmt.Errorf("load job: %w", err)
	}
	if j.Synced || j.Terminal() || j.Status == job.StatusProcessing {
		return nil
	}
	if j.Status != job.StatusQueued && j.Status != job.StatusRetrying {
		return nil
	}
	if !e.policy.ShouldRetry(j.ID) {
		return nil
	}

	proc, ok := e.registry.Get(j.Kind)
	if !ok {
		// Registered at add time; a missing processor now means the
		// registry changed underneath us.
		return e.failPermanent(ctx, j, "unknown_kind",
			fmt.Errorf("%w: %s", errors.ErrUnknownKind, j.Kind))
	}

	j.Status = job.StatusProcessing
	j.Attempts++
	j.UpdatedAt = e.clock.Now()
	if err := e.store.Put(ctx, j); err != nil {
		return fmt.Errorf("mark processing: %w", err)
	}
	e.bus.Publish(job.Event{
		Type:  job.EventProcessing,
		JobID: j.ID,
		Job:   &j,
		At:    j.UpdatedAt,
	})

	procStart := time.Now()
	txHash, attemptErr := e.attempt(ctx, proc, j)
	metrics.ProcessingTime.WithLabelValues(string(j.Kind)).Observe(time.Since(procStart).Seconds())

	if attemptErr == nil {
		return e.complete(ctx, j, txHash)
	}
	return e.fail(ctx, j, attemptErr)
}

// attempt runs encode and execute for one job under the processing
// ceiling. Encode failures are permanent unless the processor marked
// them transient.
func (e *Engine) attempt(ctx context.Context, proc registry.Processor, j job.Job) (string, error) {
	ctx = registry.WithJobID(ctx, j.ID)
	if e.config.ProcessingCeiling > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.config.ProcessingCeiling)
		defer cancel()
	}

	encoded, err := proc.EncodePayload(ctx, j.Payload, j.ChainID)
	if err != nil {
		if errors.IsTransient(err) {
			return "", err
		}
		if !errors.IsPermanent(err) {
			err = errors.NewPermanent("encode", err)
		}
		return "", err
	}

	if e.breaker != nil && e.breaker.IsOpen() {
		metrics.BreakerOpen.Set(1)
		return "", errors.NewTransient("submit", errors.ErrBreakerOpen)
	}
	if e.breaker != nil {
		metrics.BreakerOpen.Set(0)
	}

	txHash, err := proc.Execute(ctx, encoded, j.Meta, e.client)
	if err != nil {
		return "", err
	}
	return txHash, nil
}

// complete marks the job synced and announces the real transaction hash.
// The record is kept for history rather than deleted.
func (e *Engine) complete(ctx context.Context, j job.Job, txHash string) error {
	j.Status = job.StatusCompleted
	j.Synced = true
	j.TxHash = txHash
	j.LastError = ""
	j.UpdatedAt = e.clock.Now()
	if err := e.store.Put(ctx, j); err != nil {
		return fmt.Errorf("persist completed job: %w", err)
	}
	e.policy.Forget(j.ID)
	if e.breaker != nil {
		e.breaker.Reset()
		metrics.BreakerOpen.Set(0)
	}

	metrics.JobsCompleted.WithLabelValues(string(j.Kind)).Inc()
	e.logger.Info("job synced", "job_id", j.ID, "kind", j.Kind, "tx_hash", txHash)

	e.bus.Publish(job.Event{
		Type:   job.EventCompleted,
		JobID:  j.ID,
		Job:    &j,
		TxHash: txHash,
		At:     j.UpdatedAt,
	})
	return nil
}

// fail routes a processing error to the retrying or failed state.
func (e *Engine) fail(ctx context.Context, j job.Job, attemptErr error) error {
	retryable, errorType := chain.Classify(attemptErr)

	if retryable {
		if e.breaker != nil && e.breaker.RecordFailure() {
			metrics.BreakerOpen.Set(1)
			e.logger.Warn("submission breaker opened")
		}
		e.policy.RecordAttempt(j.ID, attemptErr)
		if e.policy.Exhausted(j.ID) {
			return e.failPermanent(ctx, j, errorType,
				fmt.Errorf("%w: %s", errors.ErrRetryBudget, attemptErr.Error()))
		}
		return e.scheduleRetry(ctx, j, errorType, attemptErr)
	}

	return e.failPermanent(ctx, j, errorType, attemptErr)
}

func (e *Engine) scheduleRetry(ctx context.Context, j job.Job, errorType string, attemptErr error) error {
	j.Status = job.StatusRetrying
	j.LastError = attemptErr.Error()
	j.UpdatedAt = e.clock.Now()
	if err := e.store.Put(ctx, j); err != nil {
		return fmt.Errorf("persist retrying job: %w", err)
	}

	metrics.JobsRetried.WithLabelValues(string(j.Kind), errorType).Inc()
	e.logger.Warn("job scheduled for retry",
		"job_id", j.ID, "kind", j.Kind, "attempts", j.Attempts,
		"error_type", errorType, "error", attemptErr)

	e.bus.Publish(job.Event{
		Type:  job.EventRetrying,
		JobID: j.ID,
		Job:   &j,
		Error: attemptErr.Error(),
		At:    j.UpdatedAt,
	})
	return nil
}

func (e *Engine) failPermanent(ctx context.Context, j job.Job, errorType string, attemptErr error) error {
	j.Status = job.StatusFailed
	j.LastError = chain.Humanize(attemptErr)
	j.UpdatedAt = e.clock.Now()
	if err := e.store.Put(ctx, j); err != nil {
		return fmt.Errorf("persist failed job: %w", err)
	}
	e.policy.Forget(j.ID)

	metrics.JobsFailed.WithLabelValues(string(j.Kind), errorType).Inc()
	e.logger.Error("job failed permanently",
		"job_id", j.ID, "kind", j.Kind, "error_type", errorType, "error", attemptErr)

	e.bus.Publish(job.Event{
		Type:  job.EventFailed,
		JobID: j.ID,
		Job:   &j,
		Error: j.LastError,
		At:    j.UpdatedAt,
	})
	return nil
}

func (e *Engine) refreshPendingGauge(ctx context.Context) {
	s, err := e.Stats(ctx)
	if err != nil {
		return
	}
	metrics.PendingJobs.Set(float64(s.Pending))
}
