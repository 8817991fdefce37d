package binder

import "fmt"

// Control is a service control code delivered through a Binder like a signal.
// Values match the SERVICE_CONTROL_* codes of the Windows SCM.
type Control uint32

const (
	ControlStop        Control = 1
	ControlPause       Control = 2
	ControlContinue    Control = 3
	ControlInterrogate Control = 4
	ControlShutdown    Control = 5
)

func (c Control) Signal() {}

func (c Control) String() string {
	switch c {
	case ControlStop:
		return "control:stop"
	case ControlPause:
		return "control:pause"
	case ControlContinue:
		return "control:continue"
	case ControlInterrogate:
		return "control:interrogate"
	case ControlShutdown:
		return "control:shutdown"
	}
	return fmt.Sprintf("control:%d", uint32(c))
}

// Verdict is what a primary handler decides about a delivery.
type Verdict int

const (
	// Proceed runs the secondary handler.
	Proceed Verdict = iota
	// Veto declines the requested transition. It is not an error.
	Veto
	// Unsupported means there was nothing to consult, e.g. no pause handler.
	Unsupported
)

func (v Verdict) String() string {
	switch v {
	case Proceed:
		return "proceed"
	case Veto:
		return "veto"
	case Unsupported:
		return "unsupported"
	}
	return fmt.Sprintf("verdict(%d)", int(v))
}

// Outcome describes how a delivery was handled.
type Outcome int

const (
	// Unbound: no handler pair was bound to the signal.
	Unbound Outcome = iota
	// Completed: the primary proceeded and the secondary, if any, ran.
	Completed
	// Vetoed: the primary declined.
	Vetoed
	// Rejected: the primary is invalid or reported the request as unsupported.
	Rejected
	// Failed: a handler panicked.
	Failed
	// Closed: the binder no longer accepts deliveries.
	Closed
)

func (o Outcome) String() string {
	switch o {
	case Unbound:
		return "unbound"
	case Completed:
		return "completed"
	case Vetoed:
		return "vetoed"
	case Rejected:
		return "rejected"
	case Failed:
		return "failed"
	case Closed:
		return "closed"
	}
	return fmt.Sprintf("outcome(%d)", int(o))
}

// Personal.AI order the ending
