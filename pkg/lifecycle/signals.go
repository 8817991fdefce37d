package lifecycle

import (
	"github.com/turtacn/appkit/pkg/aspect"
	"github.com/turtacn/appkit/pkg/binder"
	"github.com/turtacn/appkit/pkg/consts"
	"github.com/turtacn/appkit/pkg/handler"
	"github.com/turtacn/appkit/pkg/logger"
)

// signalManager builds the default handler pairs. Every handler resolves its
// aspects at delivery time, so aspects inserted after Launch are honoured.
type signalManager struct {
	m   *aspect.Map
	log logger.Logger
}

// bindDefaults wires termination signals and service controls into b.
func bindDefaults(b *binder.Binder, m *aspect.Map, log logger.Logger) {
	sm := &signalManager{m: m, log: log}

	terminate, finish := sm.terminationPair()
	for _, sig := range terminationSignals {
		b.Bind(sig, terminate, finish)
	}
	b.Bind(binder.ControlStop, terminate, finish)
	b.Bind(binder.ControlShutdown, terminate, finish)

	b.Bind(binder.ControlPause, sm.approve(func() *handler.Handler[bool] {
		if h := aspect.Find[PauseHandler](m); h != nil {
			return &h.Handler
		}
		return nil
	}), sm.setStatus(consts.StatusPaused))

	b.Bind(binder.ControlContinue, sm.approve(func() *handler.Handler[bool] {
		if h := aspect.Find[ResumeHandler](m); h != nil {
			return &h.Handler
		}
		return nil
	}), sm.setStatus(consts.StatusRunning))

	b.BindOne(binder.ControlInterrogate, handler.New(func() binder.Verdict {
		if st := aspect.Find[Status](m); st != nil {
			sm.log.Debug("Interrogated", "status", string(st.Get()))
		}
		return binder.Proceed
	}))
}

// terminationPair is the two-phase shutdown protocol. The user's
// TerminationHandler may veto; only an approved request tears anything down.
func (sm *signalManager) terminationPair() (binder.Handler, binder.Handler) {
	primary := handler.New(func() binder.Verdict {
		th := aspect.Find[TerminationHandler](sm.m)
		if th == nil {
			return binder.Proceed
		}
		if ok, called := th.Call(); called && !ok {
			sm.log.Info("Termination vetoed by handler")
			return binder.Veto
		}
		return binder.Proceed
	})

	secondary := handler.New(func() binder.Verdict {
		if st := aspect.Find[Status](sm.m); st != nil {
			st.Set(consts.StatusStopped)
		}
		if l := aspect.Find[LimitSingleInstance](sm.m); l != nil && l.Guard != nil && l.Guard.Owns() {
			if err := l.Guard.Release(true); err != nil {
				sm.log.Warn("Instance lock release failed", "err", err)
			}
		}
		if rm := aspect.Find[RunMode](sm.m); rm != nil && rm.Mode == consts.ModeServer {
			notifyStopping(sm.log)
		}
		// Status must read stopped before any waiter wakes up.
		if tr := aspect.Find[TerminationRequest](sm.m); tr != nil {
			tr.Proceed()
		}
		sm.log.Info("Termination approved")
		return binder.Proceed
	})
	return primary, secondary
}

// approve turns an optional bool handler into a primary: no aspect means
// Unsupported, false means Veto.
func (sm *signalManager) approve(lookup func() *handler.Handler[bool]) binder.Handler {
	return handler.New(func() binder.Verdict {
		h := lookup()
		if h == nil {
			return binder.Unsupported
		}
		ok, called := h.Call()
		switch {
		case !called:
			return binder.Unsupported
		case !ok:
			return binder.Veto
		}
		return binder.Proceed
	})
}

func (sm *signalManager) setStatus(s consts.Status) binder.Handler {
	return handler.New(func() binder.Verdict {
		if st := aspect.Find[Status](sm.m); st != nil {
			st.Set(s)
			sm.log.Info("Status changed", "status", string(s))
		}
		return binder.Proceed
	})
}

// Personal.AI order the ending
