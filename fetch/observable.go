package fetch

import (
	"context"
	"sync"
	"time"

	"github.com/letmevibethatforyou/contentx"
)

// Status is the lifecycle status of a query.
type Status int

const (
	StatusPending Status = iota
	StatusReady
	StatusError
)

// String returns the status name.
func (s Status) String() string {
	switch s {
	case StatusReady:
		return "ready"
	case StatusError:
		return "error"
	default:
		return "pending"
	}
}

// State is a snapshot of a query's result.
type State struct {
	Status Status
	// Data is the latest successful response. It survives a failed
	// refetch so callers can decide whether to keep showing it.
	Data *contentx.RawResult
	// Err is set when Status is StatusError.
	Err error
	// Variables are the variables of the request that produced this state.
	Variables contentx.Variables
	// FromCache reports that Data was served from the cache and a network
	// check may still be running.
	FromCache bool
}

// Observable is the evolving result of one query definition. Every
// resolved request replaces the state, so the most recently resolved
// response wins even when responses arrive out of order. After Close no
// result is applied and no subscriber is called.
type Observable struct {
	fetcher *Fetcher
	query   contentx.Query

	// notifyMu serializes state changes with their notifications so
	// subscribers observe states in the order they were applied.
	notifyMu sync.Mutex

	mu      sync.Mutex
	state   State
	vars    contentx.Variables
	closed  bool
	subs    map[int]func(State)
	nextSub int
	changed chan struct{}

	inflight sync.WaitGroup
}

func newObservable(f *Fetcher, query contentx.Query, vars contentx.Variables) *Observable {
	return &Observable{
		fetcher: f,
		query:   query,
		vars:    vars,
		state:   State{Status: StatusPending, Variables: vars},
		subs:    make(map[int]func(State)),
		changed: make(chan struct{}),
	}
}

// Query returns the query definition the observable runs.
func (o *Observable) Query() contentx.Query {
	return o.query
}

// State returns the current state.
func (o *Observable) State() State {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.state
}

// Variables returns the variables of the most recent request.
func (o *Observable) Variables() contentx.Variables {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.vars
}

// Subscribe registers fn to be called with every new state. The returned
// function removes the subscription.
func (o *Observable) Subscribe(fn func(State)) (unsubscribe func()) {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.closed {
		return func() {}
	}

	id := o.nextSub
	o.nextSub++
	o.subs[id] = fn

	return func() {
		o.mu.Lock()
		defer o.mu.Unlock()
		delete(o.subs, id)
	}
}

// Refetch re-executes the query with vars. The current state stays visible
// until the request resolves. It is a no-op after Close.
func (o *Observable) Refetch(ctx context.Context, vars contentx.Variables) {
	o.mu.Lock()
	if o.closed {
		o.mu.Unlock()
		return
	}
	o.vars = vars
	o.mu.Unlock()

	o.start(ctx, vars, 0)
}

// Wait blocks until the state is no longer pending or ctx is done.
func (o *Observable) Wait(ctx context.Context) (State, error) {
	for {
		o.mu.Lock()
		state, changed, closed := o.state, o.changed, o.closed
		o.mu.Unlock()

		if state.Status != StatusPending {
			return state, nil
		}
		if closed {
			return state, contentx.ErrCanceled
		}

		select {
		case <-changed:
		case <-ctx.Done():
			if err := contentx.ContextError(ctx.Err()); err != nil {
				return state, err
			}
			return state, ctx.Err()
		}
	}
}

// Drain blocks until every request started so far has resolved.
func (o *Observable) Drain() {
	o.inflight.Wait()
}

// Close detaches all subscribers. Requests still in flight complete and
// update the shared cache, but their results are not applied.
func (o *Observable) Close() {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.closed {
		return
	}
	o.closed = true
	clear(o.subs)
	close(o.changed)
	o.changed = make(chan struct{})
}

// Closed reports whether Close has been called.
func (o *Observable) Closed() bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.closed
}

func (o *Observable) start(ctx context.Context, vars contentx.Variables, timeout time.Duration) {
	o.inflight.Add(1)
	go func() {
		defer o.inflight.Done()

		if timeout > 0 {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, timeout)
			defer cancel()
		}

		data, err := o.fetcher.execute(ctx, o.query, vars)
		o.resolve(vars, data, err)
	}()
}

func (o *Observable) resolve(vars contentx.Variables, data *contentx.RawResult, err error) {
	o.notifyMu.Lock()
	defer o.notifyMu.Unlock()

	o.mu.Lock()
	if o.closed {
		o.mu.Unlock()
		o.fetcher.logger.Debug("dropping result of closed query", "query", o.query.Name)
		return
	}

	if err != nil {
		o.state = State{Status: StatusError, Data: o.state.Data, Err: err, Variables: vars}
	} else {
		o.state = State{Status: StatusReady, Data: data, Variables: vars}
	}
	state := o.state

	subs := make([]func(State), 0, len(o.subs))
	for _, fn := range o.subs {
		subs = append(subs, fn)
	}

	close(o.changed)
	o.changed = make(chan struct{})
	o.mu.Unlock()

	for _, fn := range subs {
		fn(state)
	}
}
