// Package dispatch runs star-field generation passes off the render loop.
//
// A Dispatcher owns a single worker goroutine fed by a one-slot mailbox.
// Every request bumps an epoch; results carry the epoch they were requested
// under, and anything older than the latest request is discarded.
package dispatch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/litescript/ls-galaxy/internal/logging"
	"github.com/litescript/ls-galaxy/internal/starfield"
)

const (
	// DefaultSyncThreshold is the star count below which a pass runs on
	// the caller instead of the worker.
	DefaultSyncThreshold = 120000

	resultBuffer = 2
)

var (
	// ErrWorkerFailed indicates the background pass failed or panicked.
	ErrWorkerFailed = errors.New("background generation failed")
	// ErrClosed indicates the dispatcher no longer accepts background work.
	ErrClosed = errors.New("dispatcher closed")
)

// GenerateFunc produces the primary dataset for a tier.
type GenerateFunc func(ctx context.Context, tier starfield.Tier) (*starfield.Dataset, error)

// Outcome classifies a delivered result.
type Outcome int

const (
	OutcomeCurrent Outcome = iota
	OutcomeStale
)

func (o Outcome) String() string {
	if o == OutcomeStale {
		return "stale"
	}
	return "current"
}

// Result is the output of one generation pass. Ownership of the datasets
// passes to the receiver.
type Result struct {
	Epoch    uint64
	Tier     starfield.Tier
	Dataset  *starfield.Dataset
	Impostor *starfield.Dataset
	Err      error
	Duration time.Duration

	Outcome  Outcome
	Sync     bool // generated on the caller
	Fallback bool // regenerated after a background failure
}

// Published is the dataset pair currently in force.
type Published struct {
	Epoch    uint64
	Tier     starfield.Tier
	Dataset  *starfield.Dataset
	Impostor *starfield.Dataset
}

type request struct {
	ctx   context.Context
	epoch uint64
	tier  starfield.Tier
}

// Dispatcher schedules generation passes. Request, Poll and Await are
// meant to be called from a single render loop.
type Dispatcher struct {
	generate      GenerateFunc
	logger        *slog.Logger
	syncThreshold int
	fraction      float64

	epoch   atomic.Uint64
	settled atomic.Uint64
	current atomic.Pointer[Published]
	stale   atomic.Uint64

	mu        sync.Mutex
	cancel    context.CancelFunc
	closed    bool
	deliverMu sync.Mutex

	mailbox chan request
	results chan Result
	stop    chan struct{}
	done    chan struct{}
}

// Option configures a Dispatcher.
type Option func(*Dispatcher)

// WithGenerator replaces the generation function.
func WithGenerator(fn GenerateFunc) Option {
	return func(d *Dispatcher) {
		d.generate = fn
	}
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(d *Dispatcher) {
		d.logger = l
	}
}

// WithSyncThreshold sets the star count below which passes run on the caller.
// Zero sends every pass to the worker.
func WithSyncThreshold(n int) Option {
	return func(d *Dispatcher) {
		d.syncThreshold = n
	}
}

// WithImpostorFraction sets the fraction kept in the impostor dataset.
func WithImpostorFraction(f float64) Option {
	return func(d *Dispatcher) {
		d.fraction = f
	}
}

// WithOptions generates with starfield.Generate using opts.
func WithOptions(opts starfield.Options) Option {
	return func(d *Dispatcher) {
		d.generate = func(ctx context.Context, tier starfield.Tier) (*starfield.Dataset, error) {
			return starfield.Generate(ctx, tier, opts)
		}
	}
}

// New starts a dispatcher and its worker.
func New(opts ...Option) *Dispatcher {
	d := &Dispatcher{
		syncThreshold: DefaultSyncThreshold,
		fraction:      starfield.DefaultImpostorFraction,
		mailbox:       make(chan request, 1),
		results:       make(chan Result, resultBuffer),
		stop:          make(chan struct{}),
		done:          make(chan struct{}),
	}
	WithOptions(starfield.Options{})(d)
	for _, opt := range opts {
		opt(d)
	}
	if d.logger == nil {
		d.logger = logging.Discard()
	}
	d.logger = d.logger.With("component", "dispatch")

	go d.loop()
	return d
}

// Request asks for a dataset at tier and returns its epoch. Any in-flight
// pass is cancelled and any queued request is replaced.
func (d *Dispatcher) Request(tier starfield.Tier) uint64 {
	d.mu.Lock()
	defer d.mu.Unlock()

	epoch := d.epoch.Add(1)
	if d.cancel != nil {
		d.cancel()
		d.cancel = nil
	}

	if d.closed {
		d.logger.Warn("generating on caller",
			"operation", "request", "epoch", epoch, "tier", tier.String(), "error", ErrClosed)
		res := d.run(context.Background(), epoch, tier)
		res.Sync, res.Fallback = true, true
		d.deliver(res)
		return epoch
	}

	if d.isSync(tier) {
		res := d.run(context.Background(), epoch, tier)
		res.Sync = true
		d.deliver(res)
		return epoch
	}

	ctx, cancel := context.WithCancel(context.Background())
	d.cancel = cancel
	select {
	case old := <-d.mailbox:
		d.logger.Debug("superseded queued request",
			"operation", "request", "epoch", old.epoch, "tier", old.tier.String())
	default:
	}
	d.mailbox <- request{ctx: ctx, epoch: epoch, tier: tier}
	return epoch
}

// Cancel abandons the latest request if it is still pending. The in-flight
// pass is cancelled, a queued one is dropped, and whatever either delivers
// later is stale. It returns the new epoch and whether anything was pending.
func (d *Dispatcher) Cancel() (uint64, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if !d.Pending() {
		return d.epoch.Load(), false
	}
	epoch := d.epoch.Add(1)
	if d.cancel != nil {
		d.cancel()
		d.cancel = nil
	}
	select {
	case old := <-d.mailbox:
		d.logger.Debug("dropped queued request",
			"operation", "cancel", "epoch", old.epoch, "tier", old.tier.String())
	default:
	}
	d.settled.Store(epoch)
	return epoch, true
}

func (d *Dispatcher) isSync(tier starfield.Tier) bool {
	p, err := starfield.ParamsFor(tier)
	if err != nil {
		return true
	}
	return p.Total() < d.syncThreshold
}

func (d *Dispatcher) loop() {
	defer close(d.done)
	for {
		select {
		case <-d.stop:
			return
		case req := <-d.mailbox:
			if req.ctx.Err() != nil {
				continue
			}
			d.deliver(d.run(req.ctx, req.epoch, req.tier))
		}
	}
}

// run executes one pass. Panics are recovered into ErrWorkerFailed.
func (d *Dispatcher) run(ctx context.Context, epoch uint64, tier starfield.Tier) (res Result) {
	start := time.Now()
	res = Result{Epoch: epoch, Tier: tier}
	defer func() {
		res.Duration = time.Since(start)
		if r := recover(); r != nil {
			res.Dataset, res.Impostor = nil, nil
			res.Err = fmt.Errorf("%w: panic: %v", ErrWorkerFailed, r)
		}
	}()

	ds, err := d.generate(ctx, tier)
	if err != nil {
		res.Err = classify(err)
		return res
	}
	imp, err := starfield.Reduce(ds, d.fraction)
	if err != nil {
		res.Err = classify(err)
		return res
	}
	res.Dataset, res.Impostor = ds, imp
	return res
}

// classify marks errors that a retry on the caller could fix.
func classify(err error) error {
	var cfgErr *starfield.ConfigError
	switch {
	case errors.As(err, &cfgErr), errors.Is(err, starfield.ErrFraction):
		return err
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return err
	default:
		return fmt.Errorf("%w: %w", ErrWorkerFailed, err)
	}
}

func (d *Dispatcher) deliver(res Result) {
	d.deliverMu.Lock()
	defer d.deliverMu.Unlock()
	for {
		select {
		case d.results <- res:
			return
		default:
		}
		select {
		case old := <-d.results:
			d.logger.Debug("result buffer full, dropping oldest",
				"operation", "deliver", "epoch", old.Epoch)
		default:
		}
	}
}

// Poll returns the next delivered result without blocking. Stale results
// are returned with OutcomeStale and their datasets released. A current
// result that failed in the background is regenerated on the caller.
func (d *Dispatcher) Poll() (Result, bool) {
	select {
	case res := <-d.results:
		return d.accept(res), true
	default:
		return Result{}, false
	}
}

// Await blocks until a current result arrives or ctx is done. Stale
// results are dropped.
func (d *Dispatcher) Await(ctx context.Context) (Result, error) {
	for {
		select {
		case <-ctx.Done():
			return Result{}, ctx.Err()
		case res := <-d.results:
			res = d.accept(res)
			if res.Outcome == OutcomeStale {
				continue
			}
			return res, nil
		}
	}
}

func (d *Dispatcher) accept(res Result) Result {
	if res.Epoch != d.epoch.Load() {
		d.stale.Add(1)
		d.logger.Debug("discarding stale result",
			"operation", "accept", "epoch", res.Epoch, "current", d.epoch.Load(), "tier", res.Tier.String())
		res.Outcome = OutcomeStale
		res.Dataset, res.Impostor = nil, nil
		return res
	}

	if !res.Sync && errors.Is(res.Err, ErrWorkerFailed) {
		d.logger.Warn("background generation failed, regenerating on caller",
			"operation", "accept", "epoch", res.Epoch, "tier", res.Tier.String(), "error", res.Err)
		fb := d.run(context.Background(), res.Epoch, res.Tier)
		fb.Sync, fb.Fallback = true, true
		res = fb
	}

	d.settled.Store(res.Epoch)
	if res.Err != nil {
		d.logger.Error("generation failed",
			"operation", "accept", "epoch", res.Epoch, "tier", res.Tier.String(), "error", res.Err)
		return res
	}

	d.current.Store(&Published{
		Epoch:    res.Epoch,
		Tier:     res.Tier,
		Dataset:  res.Dataset,
		Impostor: res.Impostor,
	})
	d.logger.Info("generated stars",
		"operation", "accept",
		"stars", res.Dataset.Len(),
		"impostors", res.Impostor.Len(),
		"duration_ms", res.Duration.Milliseconds(),
		"epoch", res.Epoch,
		"tier", res.Tier.String(),
		"sync", res.Sync,
		"fallback", res.Fallback)
	return res
}

// Current returns the published dataset pair, or nil before the first
// successful pass.
func (d *Dispatcher) Current() *Published {
	return d.current.Load()
}

// Epoch returns the latest requested epoch.
func (d *Dispatcher) Epoch() uint64 {
	return d.epoch.Load()
}

// Pending reports whether the latest request has not been settled.
func (d *Dispatcher) Pending() bool {
	return d.settled.Load() < d.epoch.Load()
}

// StaleCount returns how many results have been discarded as stale.
func (d *Dispatcher) StaleCount() uint64 {
	return d.stale.Load()
}

// Close stops the worker. Later requests run on the caller.
func (d *Dispatcher) Close() {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return
	}
	d.closed = true
	if d.cancel != nil {
		d.cancel()
		d.cancel = nil
	}
	d.mu.Unlock()

	close(d.stop)
	<-d.done
}
