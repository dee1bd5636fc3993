package recompute

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/lutefd/draftpoints-api/internal/domain/points"
	"github.com/lutefd/draftpoints-api/internal/domain/scoring"
	"github.com/lutefd/draftpoints-api/internal/domain/stats"
	"github.com/lutefd/draftpoints-api/internal/metrics"
	"github.com/lutefd/draftpoints-api/internal/progress"
	"go.uber.org/zap"
)

var ErrAlreadyRunning = errors.New("recompute already running for rule")

const (
	defaultBatchSize = 100
	historyLimit     = 50
)

type Store interface {
	CountStatRecords(ctx context.Context) (int, error)
	ListStatRecords(ctx context.Context, offset, limit int) ([]stats.StatRecord, error)
	ListComputedKeys(ctx context.Context, ruleName string, keys []points.Key) (map[points.Key]struct{}, error)
	CommitBatch(ctx context.Context, ruleName string, entries []points.ComputedPoints, nextOffset int) (int, error)
	LoadCursor(ctx context.Context, ruleName string) (int, error)
	ClearCursor(ctx context.Context, ruleName string) error
	ListScoringRules(ctx context.Context) ([]scoring.Rule, error)
}

type Status string

const (
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
	StatusCancelled Status = "cancelled"
)

type Result struct {
	RunID   string `json:"runId"`
	Rule    string `json:"rule"`
	Status  Status `json:"status"`
	Total   int    `json:"total"`
	Written int    `json:"written"`
	Skipped int    `json:"skipped"`
	Err     error  `json:"-"`
}

type Config struct {
	BatchSize int
	Retry     RetryPolicy
}

// Engine fills the computed points cache for every stat record under a rule.
// At most one pass per rule name runs at a time.
type Engine struct {
	store  Store
	cfg    Config
	logger *zap.Logger
	sink   progress.Sink
	now    func() time.Time

	mu     sync.Mutex
	runs   map[string]*Run
	order  []string
	active map[string]*Run
	rerun  map[string]scoring.Rule
	closed bool
	wg     sync.WaitGroup
}

type Option func(*Engine)

// WithSink forwards every run's progress to sink.
func WithSink(sink progress.Sink) Option {
	return func(e *Engine) { e.sink = sink }
}

func NewEngine(store Store, cfg Config, logger *zap.Logger, opts ...Option) *Engine {
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = defaultBatchSize
	}
	if cfg.Retry.MaxAttempts <= 0 {
		cfg.Retry = DefaultRetryPolicy()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	e := &Engine{
		store:  store,
		cfg:    cfg,
		logger: logger,
		now:    func() time.Time { return time.Now().UTC() },
		runs:   make(map[string]*Run),
		active: make(map[string]*Run),
		rerun:  make(map[string]scoring.Rule),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Run is a single background pass started by Engine.Start.
type Run struct {
	ID        string
	Rule      string
	StartedAt time.Time

	reporter *progress.Reporter
	cancel   context.CancelFunc
	done     chan struct{}

	mu     sync.Mutex
	result *Result
}

func (r *Run) Done() <-chan struct{} { return r.done }

func (r *Run) Cancel() { r.cancel() }

func (r *Run) Progress() *progress.Reporter { return r.reporter }

// Result returns the terminal result, or false while the pass is running.
func (r *Run) Result() (Result, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.result == nil {
		return Result{}, false
	}
	return *r.result, true
}

func (r *Run) finish(res Result) {
	r.mu.Lock()
	r.result = &res
	r.mu.Unlock()
	close(r.done)
}

type StartOption func(*startOptions)

type startOptions struct {
	onDone func(Result)
}

// OnDone registers a callback invoked exactly once with the terminal result.
func OnDone(fn func(Result)) StartOption {
	return func(o *startOptions) { o.onDone = fn }
}

// Start launches a pass for rule in the background and returns immediately.
func (e *Engine) Start(rule scoring.Rule, opts ...StartOption) (*Run, error) {
	return e.start(rule, false, opts...)
}

// start launches a pass. With queue set, a rule that is busy gets a
// follow-up pass instead.
func (e *Engine) start(rule scoring.Rule, queue bool, opts ...StartOption) (*Run, error) {
	var so startOptions
	for _, opt := range opts {
		opt(&so)
	}

	e.mu.Lock()
	if _, busy := e.active[rule.Name]; busy {
		if queue && !e.closed {
			e.rerun[rule.Name] = rule
		}
		e.mu.Unlock()
		return nil, fmt.Errorf("%w: %q", ErrAlreadyRunning, rule.Name)
	}
	ctx, cancel := context.WithCancel(context.Background())
	id := uuid.NewString()
	run := &Run{
		ID:        id,
		Rule:      rule.Name,
		StartedAt: e.now(),
		reporter:  progress.NewReporter(id, rule.Name),
		cancel:    cancel,
		done:      make(chan struct{}),
	}
	e.active[rule.Name] = run
	e.runs[id] = run
	e.order = append(e.order, id)
	e.pruneLocked()
	e.wg.Add(1)
	e.mu.Unlock()

	if e.sink != nil {
		go progress.Forward(context.Background(), run.reporter, e.sink, e.logger)
	}

	go func() {
		defer e.wg.Done()
		defer cancel()

		res := e.Run(ctx, rule, run.reporter)
		res.RunID = run.ID

		e.mu.Lock()
		delete(e.active, rule.Name)
		next, again := e.rerun[rule.Name]
		delete(e.rerun, rule.Name)
		again = again && !e.closed && res.Status == StatusCompleted
		e.mu.Unlock()

		run.finish(res)
		if so.onDone != nil {
			so.onDone(res)
		}
		if again {
			if _, err := e.Start(next); err != nil {
				e.logger.Debug("follow-up recompute not started", zap.String("rule", next.Name), zap.Error(err))
			}
		}
	}()

	return run, nil
}

// RecomputeAll starts a pass for every stored rule. A rule that already has a
// pass in flight gets one follow-up pass once the current one completes, so
// records stored mid-pass are not left out.
func (e *Engine) RecomputeAll(ctx context.Context) ([]*Run, error) {
	rules, err := e.store.ListScoringRules(ctx)
	if err != nil {
		return nil, err
	}
	started := make([]*Run, 0, len(rules))
	for _, rule := range rules {
		run, err := e.start(rule, true)
		if err != nil {
			if errors.Is(err, ErrAlreadyRunning) {
				e.logger.Debug("recompute queued behind pass in flight", zap.String("rule", rule.Name))
				continue
			}
			return started, err
		}
		started = append(started, run)
	}
	return started, nil
}

func (e *Engine) Get(id string) (*Run, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	run, ok := e.runs[id]
	return run, ok
}

// Runs lists tracked runs, newest first.
func (e *Engine) Runs() []*Run {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]*Run, 0, len(e.order))
	for _, id := range e.order {
		out = append(out, e.runs[id])
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].StartedAt.After(out[j].StartedAt) })
	return out
}

// Shutdown cancels every active pass and waits for them to stop.
func (e *Engine) Shutdown(ctx context.Context) error {
	e.mu.Lock()
	e.closed = true
	for _, run := range e.active {
		run.Cancel()
	}
	e.mu.Unlock()

	done := make(chan struct{})
	go func() {
		e.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (e *Engine) pruneLocked() {
	for len(e.order) > historyLimit {
		oldest := e.order[0]
		if run := e.runs[oldest]; run != nil {
			if _, ok := run.Result(); !ok {
				return
			}
		}
		delete(e.runs, oldest)
		e.order = e.order[1:]
	}
}

// Run performs one pass synchronously. Records are paged in stable order and
// each page's new entries are committed together with the next cursor offset,
// so a pass that stops early resumes where the last commit left off.
func (e *Engine) Run(ctx context.Context, rule scoring.Rule, rep *progress.Reporter) Result {
	if rep == nil {
		rep = progress.NewReporter("", rule.Name)
	}
	started := e.now()
	res := Result{Rule: rule.Name}
	sample := metrics.RunSample{RunID: rep.Snapshot().RunID, Rule: rule.Name}
	log := e.logger.With(zap.String("rule", rule.Name), zap.String("run_id", sample.RunID))

	rep.Start()
	err := e.pass(ctx, rule, rep, &res, &sample)

	switch {
	case err == nil:
		res.Status = StatusCompleted
		rep.Complete()
	case ctx.Err() != nil || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded):
		res.Status = StatusCancelled
		res.Err = err
		rep.Cancel()
	default:
		res.Status = StatusFailed
		res.Err = err
		rep.Fail()
	}

	sample.Status = string(res.Status)
	sample.Total = res.Total
	sample.Written = res.Written
	sample.Skipped = res.Skipped
	sample.Duration = e.now().Sub(started)
	if res.Status == StatusFailed {
		log.Error("recompute failed", append(sample.Fields(), zap.Error(err))...)
	} else {
		log.Info("recompute finished", sample.Fields()...)
	}
	return res
}

func (e *Engine) pass(ctx context.Context, rule scoring.Rule, rep *progress.Reporter, res *Result, sample *metrics.RunSample) error {
	retry := func(fn func(context.Context) error) error {
		n, err := e.cfg.Retry.Execute(ctx, fn)
		sample.Retries += n
		return err
	}

	var total int
	if err := retry(func(ctx context.Context) (err error) {
		total, err = e.store.CountStatRecords(ctx)
		return err
	}); err != nil {
		return fmt.Errorf("count stat records: %w", err)
	}
	res.Total = total

	var resume int
	if err := retry(func(ctx context.Context) (err error) {
		resume, err = e.store.LoadCursor(ctx, rule.Name)
		return err
	}); err != nil {
		return fmt.Errorf("load cursor: %w", err)
	}

	// The cursor indexes the sorted listing as it was when it was saved.
	// Rows imported since then may sort before it, so a resumed pass covers
	// the tail first and then sweeps the head.
	segments := [][2]int{{0, total}}
	if resume > 0 {
		if resume > total {
			resume = total
		}
		e.logger.Info("recompute resuming",
			zap.String("rule", rule.Name),
			zap.Int("offset", resume),
			zap.Int("total", total),
		)
		segments = [][2]int{{resume, total}, {0, resume}}
	}

	for _, seg := range segments {
		if err := e.sweep(ctx, rule, seg[0], seg[1], total, rep, res, sample, retry); err != nil {
			return err
		}
	}

	if err := retry(func(ctx context.Context) error {
		return e.store.ClearCursor(ctx, rule.Name)
	}); err != nil {
		return fmt.Errorf("clear cursor: %w", err)
	}
	return nil
}

// sweep fills missing entries for records in [from, to), committing the
// cursor after every page.
func (e *Engine) sweep(ctx context.Context, rule scoring.Rule, from, to, total int, rep *progress.Reporter, res *Result, sample *metrics.RunSample, retry func(func(context.Context) error) error) error {
	for offset := from; offset < to; {
		if err := ctx.Err(); err != nil {
			return err
		}

		limit := e.cfg.BatchSize
		if offset+limit > to {
			limit = to - offset
		}
		var page []stats.StatRecord
		if err := retry(func(ctx context.Context) (err error) {
			page, err = e.store.ListStatRecords(ctx, offset, limit)
			return err
		}); err != nil {
			return fmt.Errorf("list stat records at %d: %w", offset, err)
		}
		if len(page) == 0 {
			return nil
		}

		entries, skipped, err := e.missingEntries(rule, page, retry)
		if err != nil {
			return err
		}
		res.Skipped += skipped

		next := offset + len(page)
		var written int
		if err := retry(func(ctx context.Context) (err error) {
			written, err = e.store.CommitBatch(ctx, rule.Name, entries, next)
			return err
		}); err != nil {
			return fmt.Errorf("commit batch at %d: %w", offset, err)
		}
		res.Written += written
		sample.Batches++

		rep.Advance(float64(len(page)) / float64(total))
		offset = next
	}
	return nil
}

// missingEntries computes totals for the page's records that have no cached
// entry yet. Records that cannot be keyed are counted and left alone.
func (e *Engine) missingEntries(rule scoring.Rule, page []stats.StatRecord, retry func(func(context.Context) error) error) ([]points.ComputedPoints, int, error) {
	keys := make([]points.Key, 0, len(page))
	keyed := make([]stats.StatRecord, 0, len(page))
	skipped := 0
	for _, rec := range page {
		key, err := points.KeyFor(rec, rule.Name)
		if err != nil {
			skipped++
			e.logger.Debug("stat record skipped", zap.String("rule", rule.Name), zap.Error(err))
			continue
		}
		keys = append(keys, key)
		keyed = append(keyed, rec)
	}

	var existing map[points.Key]struct{}
	if err := retry(func(ctx context.Context) (err error) {
		existing, err = e.store.ListComputedKeys(ctx, rule.Name, keys)
		return err
	}); err != nil {
		return nil, 0, fmt.Errorf("list computed keys: %w", err)
	}

	now := e.now()
	entries := make([]points.ComputedPoints, 0, len(keys))
	for i, key := range keys {
		if _, ok := existing[key]; ok {
			continue
		}
		entries = append(entries, points.ComputedPoints{
			Key:       key,
			Amount:    scoring.Calculate(keyed[i], rule),
			CreatedAt: now,
		})
	}
	return entries, skipped, nil
}
