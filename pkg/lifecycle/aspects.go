package lifecycle

import (
	"os"
	"sync"
	"sync/atomic"

	"github.com/turtacn/appkit/internal/monitor"
	"github.com/turtacn/appkit/pkg/aspect"
	"github.com/turtacn/appkit/pkg/binder"
	"github.com/turtacn/appkit/pkg/consts"
	"github.com/turtacn/appkit/pkg/handler"
	"github.com/turtacn/appkit/pkg/instance"
)

var allStatuses = []string{
	string(consts.StatusRunning),
	string(consts.StatusPaused),
	string(consts.StatusStopped),
}

// RunMode records how the application is hosted.
type RunMode struct {
	Mode consts.RunMode
}

// Status is the application status shared between the user code and the
// signal handlers.
type Status struct {
	v atomic.Value
}

func NewStatus(s consts.Status) *Status {
	st := &Status{}
	st.Set(s)
	return st
}

func (s *Status) Get() consts.Status {
	if v, ok := s.v.Load().(consts.Status); ok {
		return v
	}
	return consts.StatusStopped
}

func (s *Status) Set(v consts.Status) {
	s.v.Store(v)
	monitor.SetStatus(string(v), allStatuses...)
}

// ProcessID is the pid of the hosted process. A daemonized process refreshes
// it after detaching.
type ProcessID struct {
	pid atomic.Int64
}

func NewProcessID() *ProcessID {
	p := &ProcessID{}
	p.Refresh()
	return p
}

func (p *ProcessID) Get() int { return int(p.pid.Load()) }
func (p *ProcessID) Refresh() { p.pid.Store(int64(os.Getpid())) }

// Path answers the usual location queries.
type Path struct{}

func (Path) Executable() (string, error) { return os.Executable() }
func (Path) Current() (string, error)    { return os.Getwd() }
func (Path) Home() (string, error)       { return os.UserHomeDir() }
func (Path) Config() (string, error)     { return os.UserConfigDir() }
func (Path) Temp() string                { return os.TempDir() }

// TerminationRequest is the handoff between the goroutine running the
// application, which blocks in Wait, and the termination handler, which
// calls Proceed once shutdown has been approved.
type TerminationRequest struct {
	mu   sync.Mutex
	cond *sync.Cond
	done bool
}

func NewTerminationRequest() *TerminationRequest {
	t := &TerminationRequest{}
	t.cond = sync.NewCond(&t.mu)
	return t
}

// Wait blocks until Proceed has been called. It returns at once if that
// already happened.
func (t *TerminationRequest) Wait() {
	t.mu.Lock()
	defer t.mu.Unlock()
	for !t.done {
		t.cond.Wait()
	}
}

// Proceed releases every current and future Wait.
func (t *TerminationRequest) Proceed() {
	t.mu.Lock()
	t.done = true
	t.mu.Unlock()
	t.cond.Broadcast()
}

// Requested reports whether Proceed has been called.
func (t *TerminationRequest) Requested() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.done
}

// TerminationHandler is asked before a termination signal is honoured.
// Returning false vetoes the shutdown.
type TerminationHandler struct {
	handler.Handler[bool]
}

func NewTerminationHandler(fn func() bool) *TerminationHandler {
	return &TerminationHandler{handler.New(fn)}
}

// PauseHandler approves a pause request. Without it pausing is unsupported.
type PauseHandler struct {
	handler.Handler[bool]
}

func NewPauseHandler(fn func() bool) *PauseHandler {
	return &PauseHandler{handler.New(fn)}
}

// ResumeHandler approves a resume request. Without it resuming is unsupported.
type ResumeHandler struct {
	handler.Handler[bool]
}

func NewResumeHandler(fn func() bool) *ResumeHandler {
	return &ResumeHandler{handler.New(fn)}
}

// LimitSingleInstance makes Launch refuse to run while another instance
// holds Guard. OnConflict, when valid, may decide to run anyway by returning
// true.
type LimitSingleInstance struct {
	Guard      *instance.Guard
	OnConflict handler.Handler[bool]
}

func NewLimitSingleInstance(g *instance.Guard, onConflict func() bool) *LimitSingleInstance {
	return &LimitSingleInstance{Guard: g, OnConflict: handler.New(onConflict)}
}

// Controller lets application code raise a service control or signal
// through the process binder, e.g. a stop requested over a control socket.
// Request must not be called from a binder handler.
type Controller struct {
	b *binder.Binder
}

// Request delivers sig and waits for the outcome.
func (c *Controller) Request(sig os.Signal) binder.Outcome {
	return c.b.Deliver(sig)
}

// installDefaults inserts the default aspects that are missing and marks the
// application running.
func installDefaults(m *aspect.Map, mode consts.RunMode) {
	m.Do(func(g *aspect.Guard) {
		aspect.InsertLocked(m, g, &RunMode{Mode: mode})
		if st := aspect.InsertLocked(m, g, NewStatus(consts.StatusRunning)); st != nil {
			st.Set(consts.StatusRunning)
		}
		aspect.InsertLocked(m, g, NewProcessID())
		aspect.InsertLocked(m, g, &Path{})
		aspect.InsertLocked(m, g, NewTerminationRequest())
	})
}

// Personal.AI order the ending
