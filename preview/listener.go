package preview

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/letmevibethatforyou/contentx"
)

// DefaultDebounce is the quiet period after the last save before a refetch.
const DefaultDebounce = time.Second

// State is the listener's state.
type State int

const (
	StateIdle State = iota
	StateListening
	StateDebouncePending
)

// String returns the state name.
func (s State) String() string {
	switch s {
	case StateListening:
		return "listening"
	case StateDebouncePending:
		return "debounce-pending"
	default:
		return "idle"
	}
}

// Target is the query a listener refetches. *fetch.Observable implements it.
type Target interface {
	Variables() contentx.Variables
	Refetch(ctx context.Context, vars contentx.Variables)
}

// Listener debounces content-saved events and refetches its target once
// per quiet period. In preview mode the refetch carries the version of the
// last saved event, and no refetch happens when that event has no version;
// otherwise the target's variables are reused unchanged.
//
// Events are ignored while idle. After Stop no refetch fires, even for a
// timer that has already expired.
type Listener struct {
	target   Target
	mode     contentx.QueryMode
	inEditor bool
	clock    clock.Clock
	debounce time.Duration
	logger   *slog.Logger
	onFire   func(contentx.Variables)

	// fireMu is held for the whole of a refetch so Stop can wait one out.
	fireMu sync.Mutex

	mu          sync.Mutex
	state       State
	ctx         context.Context
	timer       *clock.Timer
	seq         uint64
	contentLink string
	unsubscribe func()
}

// Option configures a Listener.
type Option func(*Listener)

// WithClock sets the clock used for the debounce timer.
func WithClock(c clock.Clock) Option {
	return func(l *Listener) {
		l.clock = c
	}
}

// WithDebounce sets the quiet period. Non-positive values are ignored.
func WithDebounce(d time.Duration) Option {
	return func(l *Listener) {
		if d > 0 {
			l.debounce = d
		}
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(l *Listener) {
		l.logger = logger
	}
}

// InEditor marks the page as running inside the CMS editor frame, which
// activates the listener outside preview mode too.
func InEditor(inEditor bool) Option {
	return func(l *Listener) {
		l.inEditor = inEditor
	}
}

// OnRefetch registers fn to run after every refetch the listener issues.
func OnRefetch(fn func(contentx.Variables)) Option {
	return func(l *Listener) {
		l.onFire = fn
	}
}

// NewListener creates an idle listener for target, which runs a query of
// the given mode.
func NewListener(target Target, mode contentx.QueryMode, opts ...Option) *Listener {
	l := &Listener{
		target:   target,
		mode:     mode,
		clock:    clock.New(),
		debounce: DefaultDebounce,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Active reports whether a page in mode should listen for saves.
func Active(mode contentx.QueryMode, inEditor bool) bool {
	return mode == contentx.ModePreview || inEditor
}

// State returns the current state.
func (l *Listener) State() State {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.state
}

// Start subscribes to ch. It reports false and stays idle when the
// listener is not active for its mode or is already started. ctx is the
// context refetches run with.
func (l *Listener) Start(ctx context.Context, ch Channel) bool {
	if !Active(l.mode, l.inEditor) {
		return false
	}

	l.mu.Lock()
	if l.state != StateIdle {
		l.mu.Unlock()
		return false
	}
	l.state = StateListening
	l.ctx = ctx
	l.mu.Unlock()

	unsubscribe := ch.Subscribe(l.handle)

	l.mu.Lock()
	defer l.mu.Unlock()
	if l.state == StateIdle {
		// Stopped while subscribing.
		unsubscribe()
		return false
	}
	l.unsubscribe = unsubscribe
	return true
}

// Stop cancels a pending refetch, detaches from the channel and returns
// the listener to idle. A refetch already running completes before Stop
// returns. It is safe to call more than once, but not from an OnRefetch hook.
func (l *Listener) Stop() {
	l.mu.Lock()
	unsubscribe := l.unsubscribe
	l.unsubscribe = nil
	if l.timer != nil {
		l.timer.Stop()
		l.timer = nil
	}
	l.seq++
	l.state = StateIdle
	l.mu.Unlock()

	if unsubscribe != nil {
		unsubscribe()
	}

	l.fireMu.Lock()
	l.fireMu.Unlock()
}

func (l *Listener) handle(ev ContentSavedEvent) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.state == StateIdle {
		return
	}

	if l.timer != nil {
		l.timer.Stop()
	}
	l.seq++
	seq := l.seq
	l.contentLink = ev.ContentLink
	l.state = StateDebouncePending
	l.timer = l.clock.AfterFunc(l.debounce, func() {
		l.fire(seq)
	})
}

func (l *Listener) fire(seq uint64) {
	l.fireMu.Lock()
	defer l.fireMu.Unlock()

	l.mu.Lock()
	if l.seq != seq || l.state != StateDebouncePending {
		l.mu.Unlock()
		return
	}
	l.state = StateListening
	l.timer = nil
	contentLink, ctx := l.contentLink, l.ctx
	l.mu.Unlock()

	vars := l.target.Variables()
	if l.mode == contentx.ModePreview {
		version, ok := ParseVersion(contentLink)
		if !ok {
			l.logger.Debug("ignoring content saved event without version", "contentLink", contentLink)
			return
		}
		vars = vars.WithVersion(version)
	}

	l.logger.Info("refetching after content save", "mode", l.mode.String(), "version", vars.Version)
	l.target.Refetch(ctx, vars)

	if l.onFire != nil {
		l.onFire(vars)
	}
}
