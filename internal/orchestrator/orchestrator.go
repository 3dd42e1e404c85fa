package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/fyrsmithlabs/companiond/internal/behavior"
	"github.com/fyrsmithlabs/companiond/internal/bond"
	"github.com/fyrsmithlabs/companiond/internal/compression"
	"github.com/fyrsmithlabs/companiond/internal/decay"
	"github.com/fyrsmithlabs/companiond/internal/generation"
	"github.com/fyrsmithlabs/companiond/internal/logging"
	"github.com/fyrsmithlabs/companiond/internal/milestone"
	"github.com/fyrsmithlabs/companiond/internal/notify"
	"github.com/fyrsmithlabs/companiond/internal/store"
	"github.com/fyrsmithlabs/companiond/internal/telemetry"
)

// DefaultDeepTimeout bounds one generation call.
const DefaultDeepTimeout = 4 * time.Second

// Deps are the collaborators an Orchestrator cannot run without, plus the
// optional generation capability and notification sink.
type Deps struct {
	Store store.Store

	// Generator is nil when generation is disabled; DeepPath then always
	// falls back.
	Generator generation.Generator

	// Notifier receives milestones. Wrap slow sinks in notify.Async.
	Notifier notify.Sink

	Logger *logging.Logger
}

// Orchestrator routes and applies messages.
type Orchestrator struct {
	store     store.Store
	generator generation.Generator
	notifier  notify.Sink
	logger    *logging.Logger

	behaviors  *behavior.Machine
	bonds      *bond.Machine
	decay      decay.Calculator
	detector   *behavior.Detector
	compressor *compression.Compressor
	milestones *milestone.Detector
	router     *Router
	responder  Responder

	deepTimeout time.Duration
	limiter     *rate.Limiter

	telemetry    *telemetry.Telemetry
	tracer       trace.Tracer
	metrics      *Metrics
	now          func() time.Time
	onTransition TransitionFunc
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithBehaviorMachine replaces the behavior state machine.
func WithBehaviorMachine(m *behavior.Machine) Option {
	return func(o *Orchestrator) { o.behaviors = m }
}

// WithBondMachine replaces the bond state machine.
func WithBondMachine(m *bond.Machine) Option {
	return func(o *Orchestrator) { o.bonds = m }
}

// WithDecay replaces the recency calculator.
func WithDecay(c decay.Calculator) Option {
	return func(o *Orchestrator) { o.decay = c }
}

// WithCompressor replaces the context compressor.
func WithCompressor(c *compression.Compressor) Option {
	return func(o *Orchestrator) { o.compressor = c }
}

// WithMilestoneDetector replaces the milestone detector.
func WithMilestoneDetector(d *milestone.Detector) Option {
	return func(o *Orchestrator) { o.milestones = d }
}

// WithRouter replaces the fast/deep router.
func WithRouter(r *Router) Option {
	return func(o *Orchestrator) { o.router = r }
}

// WithResponder replaces the FastPath responder.
func WithResponder(r Responder) Option {
	return func(o *Orchestrator) { o.responder = r }
}

// WithDeepTimeout bounds each generation call.
func WithDeepTimeout(d time.Duration) Option {
	return func(o *Orchestrator) {
		if d > 0 {
			o.deepTimeout = d
		}
	}
}

// WithDeepLimiter caps the DeepPath call rate. A nil limiter disables the cap.
func WithDeepLimiter(l *rate.Limiter) Option {
	return func(o *Orchestrator) { o.limiter = l }
}

// WithTelemetry uses tel for spans and metrics.
func WithTelemetry(tel *telemetry.Telemetry) Option {
	return func(o *Orchestrator) { o.telemetry = tel }
}

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(o *Orchestrator) { o.now = now }
}

// OnTransition registers a lifecycle observer.
func OnTransition(fn TransitionFunc) Option {
	return func(o *Orchestrator) { o.onTransition = fn }
}

// New builds an Orchestrator. Store and Logger are required.
func New(deps Deps, opts ...Option) (*Orchestrator, error) {
	if deps.Store == nil {
		return nil, errors.New("orchestrator: store is required")
	}
	if deps.Logger == nil {
		return nil, errors.New("orchestrator: logger is required")
	}

	o := &Orchestrator{
		store:       deps.Store,
		generator:   deps.Generator,
		notifier:    deps.Notifier,
		logger:      deps.Logger.Named("orchestrator"),
		behaviors:   behavior.NewMachine(),
		bonds:       bond.NewMachine(),
		decay:       decay.New(decay.DefaultHalfLifeDays),
		detector:    behavior.NewDetector(),
		compressor:  compression.NewCompressor(compression.DefaultConfig()),
		milestones:  milestone.NewDetector(),
		router:      NewRouter(DefaultComplexityThreshold, DefaultSentimentThreshold),
		responder:   TemplateResponder{},
		deepTimeout: DefaultDeepTimeout,
		now:         time.Now,
	}
	for _, opt := range opts {
		opt(o)
	}

	if o.telemetry != nil {
		o.tracer = o.telemetry.Tracer(InstrumentationName)
	} else {
		o.tracer = otel.Tracer(InstrumentationName)
	}
	metrics, err := NewMetrics(o.telemetry.Meter(InstrumentationName))
	if err != nil {
		return nil, fmt.Errorf("creating orchestrator metrics: %w", err)
	}
	o.metrics = metrics

	return o, nil
}

// loaded is the persisted state a message starts from.
type loaded struct {
	profiles    []behavior.Profile
	progression behavior.ProgressionState
	bond        bond.Bond
	created     bool
}

// ProcessMessage handles one user message.
//
// Callers must hold the pair's sequencing token (see package pairlock) for
// the duration of the call. Only validation failures, caller cancellation
// and storage failures are returned as errors; generation trouble degrades
// to FastPath.
func (o *Orchestrator) ProcessMessage(ctx context.Context, req Request) (*Result, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	started := time.Now()

	ctx = logging.WithPair(ctx, req.CompanionID, req.UserID)
	ctx, span := o.tracer.Start(ctx, "orchestrator.ProcessMessage", trace.WithAttributes(
		attribute.String("companion.id", req.CompanionID),
		attribute.String("user.id", req.UserID),
	))
	defer span.End()

	fail := func(err error) (*Result, error) {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	st, err := o.load(ctx, req.CompanionID, req.UserID)
	if err != nil {
		return fail(err)
	}

	now := o.now()
	profiles, touched, decayed := o.settle(req.CompanionID, st.profiles, now)
	statusBefore := o.bonds.ComputeStatus(st.bond, now)
	det := o.detector.Detect(req.Message)

	route := o.router.Route(RouteInput{
		Message:    req.Message,
		Detection:  det,
		Profiles:   profiles,
		BondStatus: statusBefore,
	})
	span.SetAttributes(
		attribute.String("route.path", string(route.Path)),
		attribute.Float64("route.complexity", route.Complexity.Score),
	)
	o.logger.Debug(ctx, "message routed",
		zap.String("path", string(route.Path)),
		zap.Float64("complexity", route.Complexity.Score),
		zap.Strings("reasons", route.Reasons),
		zap.Strings("complexity_reasons", route.Complexity.Reasons),
		zap.String("bond.status", string(statusBefore)),
		logging.Content("message", req.Message),
	)

	budget := o.compressor.BudgetFor(req.Plan)
	window := o.compressor.Compress(req.History, budget)

	res := &Result{Path: route.Path}
	p := o.fastPlan(req.Message, det, profiles)

	if route.Path == PathFast {
		o.transition(StateIdle, StateFastPath)
	} else {
		o.transition(StateIdle, StateDeepPath)
		window.Guidance = bond.NarrativeGuidance(st.bond)
		out, reason, err := o.deep(ctx, req.Message, window)
		switch {
		case err != nil && ctx.Err() != nil:
			o.transition(StateDeepPath, StateIdle)
			return fail(ctx.Err())
		case err != nil:
			res.Path, res.Degraded, res.DegradedReason = PathFast, true, reason
			o.degrade(ctx, reason, err)
			o.transition(StateDeepPath, StateFastPath)
		default:
			p = o.deepPlan(out, p)
		}
	}

	// Nothing below may run for a caller that already gave up.
	if err := ctx.Err(); err != nil {
		o.transition(o.pathState(res), StateIdle)
		return fail(err)
	}

	res.Transitions = append(res.Transitions, decayed...)
	for _, imp := range p.impulses {
		i := int(imp.Type)
		tx := o.behaviors.ApplyTrigger(&profiles[i], behavior.Trigger{
			Magnitude: imp.Magnitude,
			Positive:  imp.Positive,
			At:        now,
			Source:    req.Message,
		})
		touched[i] = true
		res.Transitions = append(res.Transitions, tx)
		o.logger.Trace(ctx, "trigger applied",
			zap.String("behavior", imp.Type.String()),
			zap.String("family", string(imp.Family)),
			zap.Float64("intensity", tx.AfterIntensity))
	}

	var intensities behavior.Intensities
	var changed []behavior.Profile
	for i, prof := range profiles {
		intensities.Set(prof.Type, prof.Intensity)
		if touched[i] {
			changed = append(changed, prof)
		}
	}

	// A bond created by this message has no history to diff against.
	prevSnap := bond.Snapshot{}
	if !st.created {
		prevSnap = st.bond.Snapshot()
	}
	b := st.bond
	prevTier := b.Tier
	o.bonds.RecordInteraction(&b, now, p.affinity)
	if tier, upgraded := o.bonds.TryUpgradeTier(&b); upgraded {
		o.logger.Info(ctx, "bond tier upgraded",
			zap.String("from", string(prevTier)), zap.String("to", string(tier)))
	}
	b.Rarity = o.rarity(ctx, b)
	if c, ok := bond.ChapterReached(st.bond.Affinity, b); ok && !st.created {
		o.logger.Info(ctx, "narrative chapter reached",
			zap.Int("chapter", c.Number), zap.String("title", c.Title))
	}

	delta := behavior.DeltaFor(p.sentiment)
	committed, err := o.store.Commit(ctx, store.CommitSet{
		CompanionID: req.CompanionID,
		UserID:      req.UserID,
		Profiles:    changed,
		Progression: delta,
		Intensities: &intensities,
		Bond:        b,
		At:          now,
	})
	if err != nil {
		o.transition(o.pathState(res), StateIdle)
		if ctxErr := ctx.Err(); ctxErr != nil {
			return fail(ctxErr)
		}
		return fail(fmt.Errorf("committing message state: %w", err))
	}
	o.transition(o.pathState(res), StateCommitted)
	o.reconcile(ctx, st, delta, committed, prevTier)

	ms := o.milestones.Diff(prevSnap, committed.Bond.Snapshot())
	if len(ms) > 0 {
		o.metrics.RecordMilestones(ctx, ms)
		if o.notifier != nil {
			if err := o.notifier.Notify(ctx, ms); err != nil {
				o.logger.Warn(ctx, "milestone notification failed", zap.Error(err), zap.Int("count", len(ms)))
			}
		}
	}
	o.metrics.RecordTransitions(ctx, res.Transitions)

	exchange := make([]compression.Message, 0, len(req.History)+2)
	exchange = append(exchange, req.History...)
	exchange = append(exchange,
		compression.Message{Role: compression.RoleUser, Content: req.Message, At: now},
		compression.Message{Role: compression.RoleCompanion, Content: p.text, At: now},
	)

	res.ResponseText = p.text
	res.Milestones = ms
	res.BondStatus = committed.Bond.Status
	res.Tier = committed.Bond.Tier
	res.Affinity = committed.Bond.Affinity
	res.Rarity = committed.Bond.Rarity
	res.Window = o.compressor.Compress(exchange, budget)
	res.Duration = time.Since(started)

	o.metrics.RecordMessage(ctx, res.Path, res.Duration)
	span.SetAttributes(
		attribute.Int("milestones", len(ms)),
		attribute.Bool("degraded", res.Degraded),
		attribute.Bool("window.compressed", res.Window.Compressed()),
	)
	o.transition(StateCommitted, StateIdle)
	return res, nil
}

// load reads the three pieces of state concurrently. Missing profiles and
// progression are zero state, not errors.
func (o *Orchestrator) load(ctx context.Context, companionID, userID string) (loaded, error) {
	var st loaded
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		ps, err := o.store.LoadProfiles(gctx, companionID)
		if err != nil && !errors.Is(err, store.ErrNotFound) {
			return fmt.Errorf("loading behavior profiles: %w", err)
		}
		st.profiles = ps
		return nil
	})
	g.Go(func() error {
		prog, err := o.store.LoadProgression(gctx, companionID)
		switch {
		case errors.Is(err, store.ErrNotFound):
			prog = behavior.ProgressionState{CompanionID: companionID}
		case err != nil:
			return fmt.Errorf("loading progression: %w", err)
		}
		st.progression = prog
		return nil
	})
	g.Go(func() error {
		b, created, err := o.store.GetOrCreateBond(gctx, companionID, userID)
		if err != nil {
			return fmt.Errorf("loading bond: %w", err)
		}
		st.bond, st.created = b, created
		return nil
	})

	if err := g.Wait(); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return loaded{}, ctxErr
		}
		return loaded{}, err
	}
	return st, nil
}

// settle returns the full profile set indexed by type, with idle decay
// applied since each profile's last update.
func (o *Orchestrator) settle(companionID string, stored []behavior.Profile, now time.Time) ([]behavior.Profile, []bool, []behavior.Transition) {
	all := behavior.AllTypes()
	profiles := make([]behavior.Profile, len(all))
	for i, t := range all {
		profiles[i] = behavior.DefaultProfile(companionID, t)
	}
	for _, p := range stored {
		if p.Type.Valid() {
			profiles[int(p.Type)] = p.Clone()
		}
	}

	touched := make([]bool, len(all))
	var txs []behavior.Transition
	for i := range profiles {
		p := &profiles[i]
		if p.UpdatedAt.IsZero() || !now.After(p.UpdatedAt) {
			continue
		}
		tx := o.behaviors.ApplyIdleDecay(p, o.decay.Weight(p.UpdatedAt, now))
		if tx.AfterIntensity != tx.BeforeIntensity || tx.PhaseChanged() {
			p.UpdatedAt = now
			touched[i] = true
			txs = append(txs, tx)
		}
	}
	return profiles, touched, txs
}

// deep runs the generation call under the cost guard and timeout. The
// returned reason is set whenever err is.
func (o *Orchestrator) deep(ctx context.Context, prompt string, window compression.Window) (generation.Output, string, error) {
	if o.generator == nil {
		return generation.Output{}, ReasonDisabled, fmt.Errorf("%w: generation disabled", ErrUpstreamUnavailable)
	}
	if o.limiter != nil && !o.limiter.Allow() {
		return generation.Output{}, ReasonRateLimited, fmt.Errorf("%w: deep path rate limit", ErrUpstreamUnavailable)
	}

	ctx, span := o.tracer.Start(ctx, "orchestrator.DeepPath")
	defer span.End()

	gctx, cancel := context.WithTimeout(ctx, o.deepTimeout)
	defer cancel()

	// Buffered so a generator that ignores gctx can finish after we leave.
	done := make(chan generated, 1)
	go func() {
		out, err := o.generator.Generate(gctx, prompt, window)
		done <- generated{out: out, err: err}
	}()

	var r generated
	select {
	case r = <-done:
	case <-gctx.Done():
		r.err = gctx.Err()
	}
	// A reply that lands after the deadline is discarded.
	if r.err == nil && gctx.Err() != nil {
		r.err = gctx.Err()
	}

	if r.err != nil {
		span.RecordError(r.err)
		reason := ReasonUpstreamError
		if errors.Is(r.err, context.DeadlineExceeded) || errors.Is(gctx.Err(), context.DeadlineExceeded) {
			reason = ReasonTimeout
		}
		return generation.Output{}, reason, fmt.Errorf("%w: %w", ErrUpstreamUnavailable, r.err)
	}
	return r.out, "", nil
}

type generated struct {
	out generation.Output
	err error
}

// degrade records a FastPath fallback. The degraded_mode marker is what
// operators alert on.
func (o *Orchestrator) degrade(ctx context.Context, reason string, err error) {
	o.metrics.RecordDegraded(ctx, reason)
	fields := []zap.Field{
		zap.Bool("degraded_mode", true),
		zap.String("reason", reason),
		zap.Error(err),
	}
	if reason == ReasonDisabled {
		o.logger.Debug(ctx, "degraded_mode", fields...)
		return
	}
	o.logger.Warn(ctx, "degraded_mode", fields...)
}

// rarity classifies b against its tier population. Lookup failures keep
// the previous rarity.
func (o *Orchestrator) rarity(ctx context.Context, b bond.Bond) bond.Rarity {
	pop, err := o.store.PopulationScores(ctx, b.Tier)
	if err != nil {
		o.logger.Warn(ctx, "population lookup failed, keeping rarity",
			zap.String("tier", string(b.Tier)), zap.Error(err))
		if b.Rarity == "" {
			return bond.RarityCommon
		}
		return b.Rarity
	}
	return o.bonds.ClassifyRarity(b, pop)
}

type tierInvalidator interface {
	Invalidate(tier bond.Tier)
}

// reconcile checks the committed state against what this message expected.
// Counters never move backwards; a regression is logged and the stored
// lower bound is what stays.
func (o *Orchestrator) reconcile(ctx context.Context, st loaded, delta behavior.Delta, res store.CommitResult, prevTier bond.Tier) {
	if res.BondRegressed {
		o.metrics.RecordAnomaly(ctx, "bond")
		o.logger.Warn(ctx, "concurrency anomaly: stored bond was ahead, kept larger values",
			zap.Uint64("bond.total_interactions", res.Bond.TotalInteractions),
			zap.Int("bond.affinity", res.Bond.Affinity))
	}

	expected := st.progression
	expected.Apply(delta)
	if expected.Reconcile(res.Progression) {
		o.metrics.RecordAnomaly(ctx, "progression")
		o.logger.Warn(ctx, "concurrency anomaly: progression counters regressed",
			zap.Uint64("expected_total", expected.TotalInteractions),
			zap.Uint64("stored_total", res.Progression.TotalInteractions))
	}
	if err := res.Progression.Validate(); err != nil {
		o.logger.Warn(ctx, "progression counters inconsistent", zap.Error(err))
	}

	if inv, ok := o.store.(tierInvalidator); ok {
		inv.Invalidate(res.Bond.Tier)
		if prevTier != res.Bond.Tier {
			inv.Invalidate(prevTier)
		}
	}
}

// ResetCompanionBehaviors deletes the companion's behavior profiles and
// zeroes its progression counters. Bonds are untouched.
func (o *Orchestrator) ResetCompanionBehaviors(ctx context.Context, companionID string) error {
	if err := validateID("companion_id", companionID); err != nil {
		return err
	}
	ctx = logging.WithPair(ctx, companionID, "")
	ctx, span := o.tracer.Start(ctx, "orchestrator.ResetCompanionBehaviors")
	defer span.End()

	if err := o.store.ResetBehaviors(ctx, companionID); err != nil {
		span.RecordError(err)
		return fmt.Errorf("resetting behaviors: %w", err)
	}
	o.logger.Info(ctx, "companion behaviors reset")
	return nil
}

// Bond returns the current bond for a pair with its status refreshed.
// A pair that never interacted reports store.ErrNotFound.
func (o *Orchestrator) Bond(ctx context.Context, companionID, userID string) (bond.Bond, error) {
	if err := validateID("companion_id", companionID); err != nil {
		return bond.Bond{}, err
	}
	if err := validateID("user_id", userID); err != nil {
		return bond.Bond{}, err
	}
	b, err := o.store.GetBond(ctx, companionID, userID)
	if err != nil {
		return bond.Bond{}, err
	}
	b.Status = o.bonds.ComputeStatus(b, o.now())
	return b, nil
}

// Progression returns the companion's progression state.
func (o *Orchestrator) Progression(ctx context.Context, companionID string) (behavior.ProgressionState, error) {
	if err := validateID("companion_id", companionID); err != nil {
		return behavior.ProgressionState{}, err
	}
	return o.store.LoadProgression(ctx, companionID)
}

func (o *Orchestrator) pathState(res *Result) State {
	if res.Path == PathDeep {
		return StateDeepPath
	}
	return StateFastPath
}

func (o *Orchestrator) transition(from, to State) {
	if o.onTransition != nil {
		o.onTransition(from, to)
	}
}
