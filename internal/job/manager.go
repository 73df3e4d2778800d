// Package job implements the asynchronous job core: a registry guarded by a
// single mutex, a bounded worker pool, cooperative cancellation, and
// TTL/size-based retention of finished artifacts.
package job

import (
	"context"
	"encoding/json"
	"errors"
	"regexp"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/sells-group/filings-cli/internal/config"
	"github.com/sells-group/filings-cli/internal/model"
	"github.com/sells-group/filings-cli/internal/normalize"
	"github.com/sells-group/filings-cli/internal/report"
	"github.com/sells-group/filings-cli/internal/source"
	"github.com/sells-group/filings-cli/internal/store"
)

var (
	// ErrInvalidParameters rejects a job at creation; no job is created.
	ErrInvalidParameters = eris.New("job: invalid parameters")
	// ErrNotFound means the job id is unknown or evicted.
	ErrNotFound = eris.New("job: not found")
	// ErrNotReady means the artifact was requested before completion.
	ErrNotReady = eris.New("job: not ready")
)

var (
	tickerRE = regexp.MustCompile(`^[A-Za-z0-9.\-]{1,10}$`)
	certRE   = regexp.MustCompile(`^[0-9]{1,10}$`)
)

// Builder runs the pipeline for one job.
type Builder interface {
	Build(ctx context.Context, kind model.JobKind, params model.JobParams, progress report.Progress) (*model.Artifact, error)
}

// record is the registry entry for one job. All fields are guarded by the
// manager mutex; the artifact slice is immutable once set.
type record struct {
	id        string
	kind      model.JobKind
	params    model.JobParams
	state     model.JobState
	progress  string
	errMsg    string
	createdAt time.Time
	doneAt    time.Time
	lastRead  time.Time
	artifact  *model.Artifact

	cancel          context.CancelFunc
	cancelRequested bool
}

// Manager owns the job registry and worker pool.
type Manager struct {
	cfg     config.JobsConfig
	builder Builder
	journal store.Journal // nil when persistence is disabled

	mu            sync.Mutex
	jobs          map[string]*record
	artifactBytes int64

	submit chan *record
	now    func() time.Time
}

// NewManager creates a Manager. journal may be nil.
func NewManager(cfg config.JobsConfig, builder Builder, journal store.Journal) *Manager {
	return &Manager{
		cfg:     cfg,
		builder: builder,
		journal: journal,
		jobs:    make(map[string]*record),
		submit:  make(chan *record, 256),
		now:     time.Now,
	}
}

// Start launches the worker pool and the retention janitor. Both stop when
// ctx is cancelled; in-flight jobs see their contexts cancelled too.
func (m *Manager) Start(ctx context.Context) {
	go m.dispatch(ctx)
	go m.janitor(ctx)
}

func (m *Manager) dispatch(ctx context.Context) {
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(m.cfg.MaxConcurrent)
	for {
		select {
		case <-ctx.Done():
			_ = g.Wait()
			return
		case rec := <-m.submit:
			g.Go(func() error {
				m.run(gctx, rec)
				return nil
			})
		}
	}
}

// Create validates the parameters, registers a queued job, and hands it to
// the pool. The id is returned immediately.
func (m *Manager) Create(kind model.JobKind, params model.JobParams) (string, error) {
	if err := validate(kind, params); err != nil {
		return "", err
	}

	rec := &record{
		id:        uuid.New().String(),
		kind:      kind,
		params:    params,
		state:     model.StateQueued,
		createdAt: m.now(),
	}

	m.mu.Lock()
	m.jobs[rec.id] = rec
	m.mu.Unlock()

	select {
	case m.submit <- rec:
	default:
		m.mu.Lock()
		delete(m.jobs, rec.id)
		m.mu.Unlock()
		return "", eris.New("job: queue full")
	}

	zap.L().Info("job: created",
		zap.String("id", rec.id),
		zap.String("kind", string(kind)),
	)
	return rec.id, nil
}

func validate(kind model.JobKind, params model.JobParams) error {
	switch kind {
	case model.KindSEC:
		if !tickerRE.MatchString(params.Ticker) {
			return eris.Wrapf(ErrInvalidParameters, "ticker %q", params.Ticker)
		}
	case model.KindFDIC:
		if len(params.Certs) == 0 || len(params.Certs) > 20 {
			return eris.Wrapf(ErrInvalidParameters, "need 1..20 certs, got %d", len(params.Certs))
		}
		for _, cert := range params.Certs {
			if !certRE.MatchString(cert) {
				return eris.Wrapf(ErrInvalidParameters, "cert %q", cert)
			}
		}
	default:
		return eris.Wrapf(ErrInvalidParameters, "unknown kind %q", kind)
	}
	return nil
}

// Status returns a point-in-time snapshot of a job.
func (m *Manager) Status(id string) (model.JobStatus, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	rec, ok := m.jobs[id]
	if !ok {
		return model.JobStatus{}, eris.Wrapf(ErrNotFound, "id %s", id)
	}
	return model.JobStatus{
		ID:        rec.id,
		Kind:      rec.kind,
		State:     rec.state,
		Progress:  rec.progress,
		Error:     rec.errMsg,
		CreatedAt: rec.createdAt,
	}, nil
}

// Artifact returns the finished workbook. The returned slice is immutable;
// callers must not modify it.
func (m *Manager) Artifact(id string) ([]byte, string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	rec, ok := m.jobs[id]
	if !ok {
		return nil, "", eris.Wrapf(ErrNotFound, "id %s", id)
	}
	switch rec.state {
	case model.StateCompleted:
		rec.lastRead = m.now()
		return rec.artifact.Data, rec.artifact.Filename, nil
	case model.StateFailed:
		return nil, "", eris.Errorf("job: failed: %s", rec.errMsg)
	case model.StateCancelled:
		return nil, "", eris.New("job: cancelled")
	default:
		return nil, "", eris.Wrapf(ErrNotReady, "state %s", rec.state)
	}
}

// Cancel is best-effort. Queued jobs transition directly; processing jobs
// get their context cancelled and the worker acknowledges at the next stage
// checkpoint. Cancelling a terminal job is a no-op.
func (m *Manager) Cancel(id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	rec, ok := m.jobs[id]
	if !ok {
		return eris.Wrapf(ErrNotFound, "id %s", id)
	}
	switch rec.state {
	case model.StateQueued:
		rec.state = model.StateCancelled
		rec.doneAt = m.now()
		m.journalTerminal(rec)
	case model.StateProcessing:
		rec.cancelRequested = true
		if rec.cancel != nil {
			rec.cancel()
		}
	}
	return nil
}

// run executes one job on a pool worker.
func (m *Manager) run(ctx context.Context, rec *record) {
	jctx, cancel := context.WithTimeout(ctx, m.cfg.Timeout)
	defer cancel()

	m.mu.Lock()
	if rec.state != model.StateQueued {
		// Cancelled while waiting in the queue.
		m.mu.Unlock()
		return
	}
	rec.state = model.StateProcessing
	rec.cancel = cancel
	m.mu.Unlock()

	log := zap.L().With(zap.String("id", rec.id), zap.String("kind", string(rec.kind)))
	start := m.now()

	art, err := m.builder.Build(jctx, rec.kind, rec.params, func(stage string) {
		m.mu.Lock()
		rec.progress = stage
		m.mu.Unlock()
	})

	m.mu.Lock()
	defer m.mu.Unlock()

	rec.doneAt = m.now()
	rec.lastRead = rec.doneAt
	switch {
	case err == nil:
		rec.state = model.StateCompleted
		rec.artifact = art
		m.artifactBytes += int64(len(art.Data))
		log.Info("job: completed",
			zap.Duration("took", rec.doneAt.Sub(start)),
			zap.Int("bytes", len(art.Data)),
		)
	case rec.cancelRequested && errors.Is(err, context.Canceled):
		rec.state = model.StateCancelled
		log.Info("job: cancelled")
	case errors.Is(err, context.DeadlineExceeded):
		rec.state = model.StateFailed
		rec.errMsg = "deadline exceeded: job ran past the configured timeout"
		log.Error("job: timed out", zap.Duration("timeout", m.cfg.Timeout))
	default:
		rec.state = model.StateFailed
		rec.errMsg = failureMessage(err)
		log.Error("job: failed", zap.Error(err))
	}

	m.journalTerminal(rec)
	m.evictOverBytesLocked()
}

// failureMessage turns a pipeline error into the single human-readable
// cause exposed at the boundary.
func failureMessage(err error) string {
	switch {
	case errors.Is(err, source.ErrEntityNotFound), errors.Is(err, normalize.ErrNoData):
		return "entity not found: no disclosure data for the requested identifier"
	case errors.Is(err, source.ErrSourceUnavailable):
		return "source unavailable (retry later): upstream request failed"
	default:
		return err.Error()
	}
}

// journalTerminal persists a terminal transition when a journal is wired.
// Called with the lock held; the write happens on a detached context so a
// slow journal never blocks the registry.
func (m *Manager) journalTerminal(rec *record) {
	if m.journal == nil {
		return
	}
	paramsJSON, _ := json.Marshal(rec.params)
	sr := store.Record{
		ID:        rec.id,
		Kind:      string(rec.kind),
		State:     string(rec.state),
		Params:    string(paramsJSON),
		Error:     rec.errMsg,
		CreatedAt: rec.createdAt,
		DoneAt:    rec.doneAt,
	}
	if rec.artifact != nil {
		sr.Filename = rec.artifact.Filename
		sr.Artifact = rec.artifact.Data
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := m.journal.Append(ctx, sr); err != nil {
			zap.L().Warn("job: journal append failed", zap.String("id", sr.ID), zap.Error(err))
		}
	}()
}

// Restore reloads terminal jobs from the journal into the registry so their
// status and artifacts survive a restart.
func (m *Manager) Restore(ctx context.Context) error {
	if m.journal == nil {
		return nil
	}
	recs, err := m.journal.Load(ctx)
	if err != nil {
		return eris.Wrap(err, "job: restore")
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	for _, sr := range recs {
		var params model.JobParams
		_ = json.Unmarshal([]byte(sr.Params), &params)
		rec := &record{
			id:        sr.ID,
			kind:      model.JobKind(sr.Kind),
			params:    params,
			state:     model.JobState(sr.State),
			errMsg:    sr.Error,
			createdAt: sr.CreatedAt,
			doneAt:    sr.DoneAt,
			lastRead:  sr.DoneAt,
		}
		if len(sr.Artifact) > 0 {
			rec.artifact = &model.Artifact{Data: sr.Artifact, Filename: sr.Filename}
			m.artifactBytes += int64(len(sr.Artifact))
		}
		m.jobs[rec.id] = rec
	}
	zap.L().Info("job: restored from journal", zap.Int("jobs", len(recs)))
	return nil
}

// janitor evicts expired and over-budget terminal jobs on a fixed cadence.
func (m *Manager) janitor(ctx context.Context) {
	tick := time.NewTicker(time.Minute)
	defer tick.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-tick.C:
			m.mu.Lock()
			m.evictExpiredLocked()
			m.evictOverBytesLocked()
			m.mu.Unlock()
		}
	}
}

func (m *Manager) evictExpiredLocked() {
	cutoff := m.now().Add(-m.cfg.RetentionTTL)
	for id, rec := range m.jobs {
		if rec.state.Terminal() && rec.doneAt.Before(cutoff) {
			m.unlinkLocked(id, rec)
		}
	}
}

// evictOverBytesLocked drops least-recently-downloaded completed jobs until
// total artifact bytes fit the budget. Readers that already hold a slice
// keep it; eviction only unlinks from the registry.
func (m *Manager) evictOverBytesLocked() {
	if m.artifactBytes <= m.cfg.MaxArtifactBytes {
		return
	}
	type candidate struct {
		id  string
		rec *record
	}
	var cands []candidate
	for id, rec := range m.jobs {
		if rec.state == model.StateCompleted && rec.artifact != nil {
			cands = append(cands, candidate{id, rec})
		}
	}
	sort.Slice(cands, func(i, j int) bool {
		if !cands[i].rec.lastRead.Equal(cands[j].rec.lastRead) {
			return cands[i].rec.lastRead.Before(cands[j].rec.lastRead)
		}
		return strings.Compare(cands[i].id, cands[j].id) < 0
	})
	for _, c := range cands {
		if m.artifactBytes <= m.cfg.MaxArtifactBytes {
			return
		}
		m.unlinkLocked(c.id, c.rec)
	}
}

func (m *Manager) unlinkLocked(id string, rec *record) {
	if rec.artifact != nil {
		m.artifactBytes -= int64(len(rec.artifact.Data))
	}
	delete(m.jobs, id)
	zap.L().Debug("job: evicted", zap.String("id", id), zap.String("state", string(rec.state)))
	if m.journal != nil {
		go func() {
			ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			if err := m.journal.Delete(ctx, id); err != nil {
				zap.L().Warn("job: journal delete failed", zap.String("id", id), zap.Error(err))
			}
		}()
	}
}
