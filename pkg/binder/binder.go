// Package binder maps OS notifications to handler pairs and dispatches them
// on a single goroutine.
//
// Each bound signal carries a primary and a secondary handler. On delivery the
// primary runs first; the secondary runs only if a valid primary returned
// Proceed. A delivery, both handlers included, finishes before the next one
// is taken, so handlers of one Binder never run concurrently.
package binder

import (
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/turtacn/appkit/internal/monitor"
	"github.com/turtacn/appkit/pkg/errors"
	"github.com/turtacn/appkit/pkg/handler"
	"github.com/turtacn/appkit/pkg/logger"
)

// Handler is the callback type stored in a binding.
type Handler = handler.Handler[Verdict]

// Binding is the handler pair bound to one signal.
type Binding struct {
	Primary   Handler
	Secondary Handler
}

type delivery struct {
	sig   os.Signal
	reply chan Outcome
}

// registration is the OS side of one bound signal.
type registration struct {
	ch   chan os.Signal
	stop chan struct{}
}

// Binder is the signal dispatch engine.
type Binder struct {
	mu      sync.Mutex
	table   map[os.Signal]Binding
	regs    map[os.Signal]*registration
	source  Source
	started bool
	closed  bool

	inbox chan delivery
	done  chan struct{}
	wg    sync.WaitGroup
	log   logger.Logger
}

// Option configures a Binder.
type Option func(*Binder)

// WithSource replaces the OS signal source.
func WithSource(s Source) Option {
	return func(b *Binder) { b.source = s }
}

// WithLogger sets the logger used for dispatch diagnostics.
func WithLogger(l logger.Logger) Option {
	return func(b *Binder) { b.log = l }
}

// New creates a Binder. Bindings may be added before Start; signals that
// arrive before Start wait in the inbox.
func New(opts ...Option) *Binder {
	b := &Binder{
		table:  make(map[os.Signal]Binding),
		regs:   make(map[os.Signal]*registration),
		source: OSSource{},
		inbox:  make(chan delivery, 16),
		done:   make(chan struct{}),
	}
	for _, opt := range opts {
		opt(b)
	}
	if b.log == nil {
		b.log = logger.Log.With("component", "binder")
	}
	return b
}

// Bind stores the handler pair for sig, replacing any previous pair, and
// registers interest with the OS the first time sig is bound.
func (b *Binder) Bind(sig os.Signal, primary, secondary Handler) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.table[sig] = Binding{Primary: primary, Secondary: secondary}
	if b.closed {
		return
	}
	if _, ok := sig.(Control); ok {
		return
	}
	if _, ok := b.regs[sig]; ok {
		return
	}
	b.regs[sig] = b.listen(sig)
}

// BindOne binds a single handler with no secondary.
func (b *Binder) BindOne(sig os.Signal, h Handler) {
	b.Bind(sig, h, Handler{})
}

// Unbind removes the pair for sig and cancels the OS registration.
// Unbinding a signal that is not bound does nothing.
func (b *Binder) Unbind(sig os.Signal) {
	b.mu.Lock()
	defer b.mu.Unlock()

	delete(b.table, sig)
	if reg, ok := b.regs[sig]; ok {
		delete(b.regs, sig)
		b.unlisten(reg)
	}
}

// IsBound reports whether sig has a handler pair.
func (b *Binder) IsBound(sig os.Signal) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	_, ok := b.table[sig]
	return ok
}

// Lookup returns the pair currently bound to sig.
func (b *Binder) Lookup(sig os.Signal) (Binding, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	bd, ok := b.table[sig]
	return bd, ok
}

// Start launches the dispatch goroutine. Starting twice, or after Close, is
// a logic error.
func (b *Binder) Start() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.started || b.closed {
		panic(errors.Logic(errors.ErrCodeBinderState, "Start", "binder already started or closed"))
	}
	b.started = true
	b.wg.Add(1)
	go b.loop()
}

// Deliver hands sig to the dispatch goroutine and waits for the outcome.
// It must not be called from a handler of the same Binder; use Raise there.
func (b *Binder) Deliver(sig os.Signal) Outcome {
	d := delivery{sig: sig, reply: make(chan Outcome, 1)}
	select {
	case b.inbox <- d:
	case <-b.done:
		return Closed
	}
	select {
	case out := <-d.reply:
		return out
	case <-b.done:
		// the loop may have answered right before stopping
		select {
		case out := <-d.reply:
			return out
		default:
			return Closed
		}
	}
}

// Raise queues sig without waiting. Deliveries queued by Raise keep no
// ordering guarantee relative to each other.
func (b *Binder) Raise(sig os.Signal) {
	go func() {
		select {
		case b.inbox <- delivery{sig: sig}:
		case <-b.done:
		}
	}()
}

// Close stops OS relaying, stops accepting deliveries and waits for the
// dispatch goroutine. A handler already running is allowed to finish.
func (b *Binder) Close() {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return
	}
	b.closed = true
	for sig, reg := range b.regs {
		b.unlisten(reg)
		delete(b.regs, sig)
	}
	close(b.done)
	b.mu.Unlock()

	b.wg.Wait()
}

func (b *Binder) listen(sig os.Signal) *registration {
	reg := &registration{ch: make(chan os.Signal, 1), stop: make(chan struct{})}
	b.source.Notify(reg.ch, sig)
	go func() {
		for {
			select {
			case s := <-reg.ch:
				select {
				case b.inbox <- delivery{sig: s}:
				case <-reg.stop:
					return
				}
			case <-reg.stop:
				return
			}
		}
	}()
	return reg
}

func (b *Binder) unlisten(reg *registration) {
	b.source.Stop(reg.ch)
	close(reg.stop)
}

func (b *Binder) loop() {
	defer b.wg.Done()
	for {
		select {
		case d := <-b.inbox:
			select {
			case <-b.done:
				if d.reply != nil {
					d.reply <- Closed
				}
				return
			default:
			}
			out := b.dispatch(d.sig)
			if d.reply != nil {
				d.reply <- out
			}
		case <-b.done:
			return
		}
	}
}

func (b *Binder) dispatch(sig os.Signal) (out Outcome) {
	bd, ok := b.Lookup(sig)
	if !ok {
		b.log.Debug("Delivery without binding", "signal", sig.String())
		monitor.SignalDeliveries.WithLabelValues(sig.String(), Unbound.String()).Inc()
		return Unbound
	}

	start := time.Now()
	defer func() {
		if r := recover(); r != nil {
			b.log.Error("Handler panicked", "signal", sig.String(), "panic", fmt.Sprint(r))
			out = Failed
		}
		monitor.HandlerDuration.Observe(time.Since(start).Seconds())
		monitor.SignalDeliveries.WithLabelValues(sig.String(), out.String()).Inc()
	}()

	verdict, called := bd.Primary.Call()
	if !called {
		b.log.Debug("Delivery without a primary handler", "signal", sig.String())
		return Rejected
	}

	switch verdict {
	case Proceed:
		bd.Secondary.Call()
		out = Completed
	case Veto:
		out = Vetoed
	default:
		out = Rejected
	}
	b.log.Debug("Delivery handled", "signal", sig.String(), "verdict", verdict.String(), "outcome", out.String())
	return out
}

// Personal.AI order the ending
