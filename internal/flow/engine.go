package flow

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime/debug"
	"strconv"
	"sync"
	"time"

	"github.com/m3rciful/pdfbot/core/logger"
	"github.com/m3rciful/pdfbot/core/metrics"
	"github.com/m3rciful/pdfbot/core/observability"
	"github.com/m3rciful/pdfbot/internal/failure"
	"github.com/m3rciful/pdfbot/internal/session"
)

var (
	// ErrUnknownFlow is returned by Start for a flow name that was never registered.
	ErrUnknownFlow = errors.New("flow: unknown flow")
	// ErrUnknownState means a session points at a state its flow does not define.
	ErrUnknownState = errors.New("flow: unknown state")
)

// Notifier delivers a translated message for key to the user behind ev.
type Notifier interface {
	Notify(ctx context.Context, ev Event, key string) error
}

// NotifierFunc adapts a function to Notifier.
type NotifierFunc func(ctx context.Context, ev Event, key string) error

// Notify calls f.
func (f NotifierFunc) Notify(ctx context.Context, ev Event, key string) error { return f(ctx, ev, key) }

// Options configures an Engine. Store is required.
type Options struct {
	Store    session.Store
	Policy   *failure.Policy
	Notifier Notifier
	Sink     observability.Sink
	// Locker, when set, guards every step across bot instances.
	Locker Locker
	// LockTTL is raised to StepTimeout plus a margin when shorter.
	LockTTL time.Duration
	// LockPrefix namespaces lock keys.
	LockPrefix  string
	StepTimeout time.Duration
	ActorIdle   time.Duration
}

// Result reports what one event did.
type Result struct {
	// Handled is false when no conversation was active and no flow accepted the event.
	Handled bool
	Flow    string
	From    State
	To      State
	// Failed is set when the step ended in an error; Kind holds its class.
	Failed bool
	Kind   failure.Kind
}

// lockMargin covers the session write and unlock that follow a step.
const lockMargin = 30 * time.Second

// Engine dispatches events to the active flow of each user.
type Engine struct {
	store       session.Store
	policy      *failure.Policy
	notifier    Notifier
	sink        observability.Sink
	locker      Locker
	lockTTL     time.Duration
	lockPrefix  string
	stepTimeout time.Duration
	serial      *Serializer

	mu     sync.RWMutex
	flows  map[string]*Flow
	order  []*Flow
	owners map[State]string
}

// NewEngine builds an Engine. A nil Policy gets the default decisions plus a
// rule mapping session.ErrSlotMissing to KindSessionDataMissing. The lock
// TTL never ends before a step can.
func NewEngine(opts Options) *Engine {
	if opts.Policy == nil {
		opts.Policy = failure.NewPolicy(failure.Is(session.ErrSlotMissing, failure.KindSessionDataMissing))
	}
	if floor := opts.StepTimeout + lockMargin; opts.LockTTL < floor {
		opts.LockTTL = floor
	}
	if opts.LockPrefix == "" {
		opts.LockPrefix = "pdfbot"
	}
	return &Engine{
		store:       opts.Store,
		policy:      opts.Policy,
		notifier:    opts.Notifier,
		sink:        opts.Sink,
		locker:      opts.Locker,
		lockTTL:     opts.LockTTL,
		lockPrefix:  opts.LockPrefix,
		stepTimeout: opts.StepTimeout,
		serial:      NewSerializer(opts.ActorIdle),
		flows:       make(map[string]*Flow),
		owners:      make(map[State]string),
	}
}

// Register adds f. State names must be unique across all flows and End is reserved.
func (e *Engine) Register(f Flow) error {
	if f.Name == "" {
		return errors.New("flow: empty name")
	}
	if f.Entry == nil {
		return fmt.Errorf("flow %s: nil entry handler", f.Name)
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if _, dup := e.flows[f.Name]; dup {
		return fmt.Errorf("flow %s: already registered", f.Name)
	}
	for st, h := range f.States {
		if st == "" || st == End {
			return fmt.Errorf("flow %s: reserved state name %q", f.Name, st)
		}
		if h == nil {
			return fmt.Errorf("flow %s: nil handler for %s", f.Name, st)
		}
		if owner, taken := e.owners[st]; taken {
			return fmt.Errorf("flow %s: state %s already bound by %s", f.Name, st, owner)
		}
	}
	copyFlow := f
	copyFlow.States = make(map[State]Handler, len(f.States))
	for st, h := range f.States {
		copyFlow.States[st] = h
		e.owners[st] = f.Name
	}
	e.flows[f.Name] = &copyFlow
	e.order = append(e.order, &copyFlow)
	return nil
}

// MustRegister registers every flow and panics on the first error.
func (e *Engine) MustRegister(flows ...Flow) {
	for _, f := range flows {
		if err := e.Register(f); err != nil {
			panic(err)
		}
	}
}

// Handle feeds ev to the user's active conversation, or starts the first
// flow whose Trigger accepts it. Step failures are resolved by the policy and
// reported in Result; the returned error is only set when ctx ended before
// the event was processed. A step that already started always runs to
// completion and its session is saved even if ctx ends meanwhile.
func (e *Engine) Handle(ctx context.Context, ev Event) (Result, error) {
	var res Result
	err := e.serial.Do(ctx, ev.UserID, func(ctx context.Context) {
		res = e.guarded(ctx, ev, func(ctx context.Context) Result { return e.handle(ctx, ev) })
	})
	return res, err
}

// Start begins the named flow for ev's user, replacing any active conversation.
func (e *Engine) Start(ctx context.Context, name string, ev Event) (Result, error) {
	f, ok := e.flow(name)
	if !ok {
		return Result{}, fmt.Errorf("%w: %s", ErrUnknownFlow, name)
	}
	var res Result
	err := e.serial.Do(ctx, ev.UserID, func(ctx context.Context) {
		res = e.guarded(ctx, ev, func(ctx context.Context) Result {
			if err := e.store.Delete(ctx, ev.UserID); err != nil {
				return e.fail(ctx, ev, nil, "", err)
			}
			return e.run(ctx, f, session.New(ev.UserID, ev.ChatID, f.Name), ev, f.Entry, "")
		})
	})
	return res, err
}

// Cancel drops the user's conversation and reports whether one was active.
func (e *Engine) Cancel(ctx context.Context, userID int64) (bool, error) {
	var (
		active bool
		opErr  error
	)
	err := e.serial.Do(ctx, userID, func(ctx context.Context) {
		var sess *session.Session
		sess, active, opErr = e.store.Load(ctx, userID)
		if opErr != nil || !active {
			return
		}
		opErr = e.store.Delete(ctx, userID)
		metrics.ObserveStep(sess.Flow, "cancelled")
		logger.Debug(logger.WithFlow(ctx, sess.Flow), "flow", "flow.cancelled",
			slog.String("state", sess.State),
		)
	})
	if err != nil {
		return false, err
	}
	return active, opErr
}

// Active returns a copy of the user's session, if any.
func (e *Engine) Active(ctx context.Context, userID int64) (*session.Session, bool, error) {
	return e.store.Load(ctx, userID)
}

// Step runs the handler bound to sess.State without touching the store.
func (e *Engine) Step(ctx context.Context, sess *session.Session, ev Event) (State, error) {
	f, h, err := e.lookup(sess)
	if err != nil {
		return "", err
	}
	return e.invoke(logger.WithFlow(ctx, f.Name), h, sess, ev)
}

// Fail applies the recovery policy to err raised outside a flow handler,
// e.g. by an inline button handler. The user's session is terminated when the
// decision says so.
func (e *Engine) Fail(ctx context.Context, ev Event, err error) Result {
	var res Result
	serr := e.serial.Do(ctx, ev.UserID, func(ctx context.Context) {
		sess, ok, lerr := e.store.Load(ctx, ev.UserID)
		if lerr != nil || !ok {
			sess = nil
		}
		var from State
		if sess != nil {
			from = State(sess.State)
		}
		res = e.fail(ctx, ev, sess, from, err)
	})
	if serr != nil {
		kind, _ := e.policy.Resolve(err)
		return Result{Handled: true, Failed: true, Kind: kind}
	}
	return res
}

func (e *Engine) flow(name string) (*Flow, bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	f, ok := e.flows[name]
	return f, ok
}

func (e *Engine) trigger(ev Event) *Flow {
	e.mu.RLock()
	defer e.mu.RUnlock()
	for _, f := range e.order {
		if f.Trigger != nil && f.Trigger(ev) {
			return f
		}
	}
	return nil
}

func (e *Engine) lookup(sess *session.Session) (*Flow, Handler, error) {
	f, ok := e.flow(sess.Flow)
	if !ok {
		return nil, nil, fmt.Errorf("%w: %s", ErrUnknownFlow, sess.Flow)
	}
	h, ok := f.States[State(sess.State)]
	if !ok {
		return f, nil, fmt.Errorf("%w: %s/%s", ErrUnknownState, sess.Flow, sess.State)
	}
	return f, h, nil
}

// guarded takes the cross-instance lock when one is configured.
func (e *Engine) guarded(ctx context.Context, ev Event, fn func(context.Context) Result) Result {
	if e.locker == nil {
		return fn(ctx)
	}
	key := e.lockPrefix + ":lock:" + strconv.FormatInt(ev.UserID, 10)
	token, err := e.locker.TryLock(ctx, key, e.lockTTL)
	if err != nil {
		return e.fail(ctx, ev, nil, "", fmt.Errorf("flow lock: %w", err))
	}
	defer func() {
		if uerr := e.locker.Unlock(context.WithoutCancel(ctx), key, token); uerr != nil {
			logger.Warn(ctx, "flow", "flow.unlock",
				slog.String("err", uerr.Error()),
			)
		}
	}()
	return fn(ctx)
}

func (e *Engine) handle(ctx context.Context, ev Event) Result {
	sess, ok, err := e.store.Load(ctx, ev.UserID)
	if err != nil {
		return e.fail(ctx, ev, nil, "", fmt.Errorf("load session: %w", err))
	}
	if !ok {
		f := e.trigger(ev)
		if f == nil {
			metrics.ObserveStep("", "ignored")
			return Result{}
		}
		return e.run(ctx, f, session.New(ev.UserID, ev.ChatID, f.Name), ev, f.Entry, "")
	}
	f, h, err := e.lookup(sess)
	if err != nil {
		// A state removed by a deploy leaves nothing to resume.
		return e.fail(ctx, ev, sess, State(sess.State), failure.Missing(err))
	}
	return e.run(ctx, f, sess, ev, h, State(sess.State))
}

func (e *Engine) run(ctx context.Context, f *Flow, sess *session.Session, ev Event, h Handler, from State) Result {
	ctx = logger.WithFlow(ctx, f.Name)
	start := time.Now()
	work := sess.Clone()

	next, err := e.invoke(ctx, h, work, ev)
	if err != nil {
		return e.fail(ctx, ev, sess, from, err)
	}

	// The step happened; record it even when the caller has gone away.
	persist := context.WithoutCancel(ctx)
	res := Result{Handled: true, Flow: f.Name, From: from, To: next}
	if next == End {
		if err := e.store.Delete(persist, ev.UserID); err != nil {
			return e.fail(ctx, ev, sess, from, fmt.Errorf("delete session: %w", err))
		}
		e.logStep(ctx, from, next, "end", start)
		return res
	}
	if _, ok := f.States[next]; !ok {
		return e.fail(ctx, ev, sess, from, fmt.Errorf("%w: %s returned %q", ErrUnknownState, f.Name, next))
	}

	work.State = string(next)
	if err := e.store.Save(persist, work); err != nil {
		return e.fail(ctx, ev, sess, from, fmt.Errorf("save session: %w", err))
	}
	outcome := "ok"
	if next == from {
		outcome = "stay"
	}
	e.logStep(ctx, from, next, outcome, start)
	return res
}

func (e *Engine) invoke(ctx context.Context, h Handler, sess *session.Session, ev Event) (next State, err error) {
	if e.stepTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.stepTimeout)
		defer cancel()
	}
	defer func() {
		if r := recover(); r != nil {
			logger.Error(ctx, "flow", "flow.panic",
				slog.String("state", sess.State),
				slog.String("err", fmt.Sprint(r)),
				slog.String("stack", string(debug.Stack())),
			)
			next, err = "", fmt.Errorf("flow: handler panic: %v", r)
		}
	}()
	return h(ctx, sess, ev)
}

func (e *Engine) fail(ctx context.Context, ev Event, sess *session.Session, from State, err error) Result {
	kind, d := e.policy.Resolve(err)
	res := Result{Handled: true, From: from, To: from, Failed: true, Kind: kind}
	if sess != nil {
		res.Flow = sess.Flow
	}

	level := slog.LevelInfo
	if d.Escalate {
		level = d.Level
	}
	logger.Event(ctx, "flow", level, "flow.failure",
		slog.String("state", string(from)),
		slog.String("kind", kind.String()),
		slog.String("err", logger.SanitizeLimit(err.Error(), 512)),
	)
	metrics.IncFailure(res.Flow, kind.String())

	if d.Escalate {
		e.capture(ctx, observability.Report{
			Err:    err,
			Level:  d.Level,
			UserID: ev.UserID,
			Tags: map[string]string{
				"flow":  res.Flow,
				"state": string(from),
				"kind":  kind.String(),
			},
		})
	}
	if d.Terminate {
		res.To = End
		if sess != nil {
			if derr := e.store.Delete(context.WithoutCancel(ctx), ev.UserID); derr != nil {
				logger.Warn(ctx, "flow", "flow.terminate",
					slog.String("err", derr.Error()),
				)
			}
		}
	}
	if d.MessageKey != "" && e.notifier != nil {
		if nerr := e.notifier.Notify(ctx, ev, d.MessageKey); nerr != nil {
			logger.Warn(ctx, "flow", "flow.notify",
				slog.String("err", nerr.Error()),
			)
		}
	}
	return res
}

func (e *Engine) capture(ctx context.Context, r observability.Report) {
	if e.sink != nil {
		e.sink.Capture(ctx, r)
		return
	}
	observability.Capture(ctx, r)
}

func (e *Engine) logStep(ctx context.Context, from, to State, outcome string, start time.Time) {
	metrics.ObserveStep(logger.FlowFrom(ctx), outcome)
	logger.Debug(ctx, "flow", "flow.step",
		slog.String("state", string(from)),
		slog.String("next_state", string(to)),
		slog.String("outcome", outcome),
		slog.Duration("took", logger.Took(start)),
	)
}
