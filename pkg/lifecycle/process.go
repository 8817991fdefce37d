package lifecycle

import (
	"sync"

	"github.com/turtacn/appkit/pkg/aspect"
	"github.com/turtacn/appkit/pkg/binder"
	"github.com/turtacn/appkit/pkg/consts"
	"github.com/turtacn/appkit/pkg/fsm"
	"github.com/turtacn/appkit/pkg/logger"
)

const (
	evStarted   fsm.Event = "started"
	evStop      fsm.Event = "stop"
	evFinalized fsm.Event = "finalized"
	evAbort     fsm.Event = "abort"
)

// Process is one hosted run of an application: its aspects, its signal
// binder and its lifecycle state.
type Process struct {
	mode    Mode
	aspects *aspect.Map
	binder  *binder.Binder
	machine *fsm.StateMachine
	log     logger.Logger

	closeOnce sync.Once
}

func newMachine(log logger.Logger) *fsm.StateMachine {
	sm := fsm.New(fsm.State(consts.StateConstructing))
	sm.AddTransition(fsm.State(consts.StateConstructing), fsm.State(consts.StateRunning), evStarted, nil)
	sm.AddTransition(fsm.State(consts.StateConstructing), fsm.State(consts.StateStopped), evAbort, nil)
	sm.AddTransition(fsm.State(consts.StateRunning), fsm.State(consts.StateStopping), evStop, nil)
	sm.AddTransition(fsm.State(consts.StateStopping), fsm.State(consts.StateStopped), evFinalized, nil)
	sm.Observe(func(from, to fsm.State, event fsm.Event) {
		log.Debug("Process state", "from", string(from), "to", string(to), "event", string(event))
	})
	return sm
}

// newProcess constructs a process. The order is fixed: default aspects,
// bindings, platform handshake, pid refresh, dispatch start. proceed is false
// when the handshake decided this process must not run the application.
func newProcess(mode Mode, m *aspect.Map, o *options) (p *Process, proceed bool, err error) {
	p = &Process{
		mode:    mode,
		aspects: m,
		log:     o.log,
		machine: newMachine(o.log),
	}

	installDefaults(m, mode.RunMode())

	bopts := []binder.Option{binder.WithLogger(o.log.With("component", "binder"))}
	if o.source != nil {
		bopts = append(bopts, binder.WithSource(o.source))
	}
	p.binder = binder.New(bopts...)
	aspect.Exchange(m, &Controller{b: p.binder})
	bindDefaults(p.binder, m, o.log)
	if o.signals != nil {
		if err = o.signals(p.binder, m); err != nil {
			p.abort()
			return p, false, err
		}
	}

	proceed, err = mode.Handshake(m)
	if err != nil || !proceed {
		p.abort()
		return p, false, err
	}

	if pid := aspect.Find[ProcessID](m); pid != nil {
		pid.Refresh()
	}
	p.binder.Start()
	if err := p.machine.Fire(evStarted); err != nil {
		return p, false, err
	}
	return p, true, nil
}

// Aspects returns the aspect map of the process.
func (p *Process) Aspects() *aspect.Map { return p.aspects }

// Binder returns the signal binder of the process.
func (p *Process) Binder() *binder.Binder { return p.binder }

// State returns the lifecycle state.
func (p *Process) State() consts.ProcessState {
	return consts.ProcessState(p.machine.Current())
}

// Close finalizes the process: status stopped, dispatch joined, instance
// lock released. The binder is joined before the lock is released so no
// handler can run against a torn down process.
func (p *Process) Close() {
	p.closeOnce.Do(func() {
		if !p.machine.Can(evStop) {
			return
		}
		p.machine.Fire(evStop)
		if st := aspect.Find[Status](p.aspects); st != nil {
			st.Set(consts.StatusStopped)
		}
		p.binder.Close()
		releaseInstance(p.aspects, p.log)
		p.machine.Fire(evFinalized)
	})
}

func (p *Process) abort() {
	p.binder.Close()
	p.machine.Fire(evAbort)
}

func releaseInstance(m *aspect.Map, log logger.Logger) {
	if l := aspect.Find[LimitSingleInstance](m); l != nil && l.Guard != nil {
		if err := l.Guard.Release(false); err != nil {
			log.Warn("Instance lock release failed", "err", err)
		}
	}
}

// Personal.AI order the ending
