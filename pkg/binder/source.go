package binder

import (
	"os"
	"os/signal"
	"sync"
)

// Source is the OS notification primitive a Binder listens on. It has the
// shape of os/signal so the real implementation is a thin adapter.
type Source interface {
	Notify(c chan<- os.Signal, sig ...os.Signal)
	Stop(c chan<- os.Signal)
}

// OSSource relays real process signals.
type OSSource struct{}

func (OSSource) Notify(c chan<- os.Signal, sig ...os.Signal) { signal.Notify(c, sig...) }
func (OSSource) Stop(c chan<- os.Signal)                     { signal.Stop(c) }

// ManualSource is a Source driven by Send. It lets tests and embedding
// programs simulate signals without touching process-wide signal state.
type ManualSource struct {
	mu   sync.Mutex
	subs map[chan<- os.Signal][]os.Signal
}

// NewManualSource creates an empty ManualSource.
func NewManualSource() *ManualSource {
	return &ManualSource{subs: make(map[chan<- os.Signal][]os.Signal)}
}

func (s *ManualSource) Notify(c chan<- os.Signal, sig ...os.Signal) {
	if c == nil {
		panic("os/signal: Notify using nil channel")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.subs[c] = append(s.subs[c], sig...)
}

func (s *ManualSource) Stop(c chan<- os.Signal) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.subs, c)
}

// Send delivers sig to every channel registered for it and reports how many
// channels received it. Like os/signal it never blocks on a full channel.
func (s *ManualSource) Send(sig os.Signal) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for c, sigs := range s.subs {
		for _, want := range sigs {
			if want != sig {
				continue
			}
			select {
			case c <- sig:
				n++
			default:
			}
			break
		}
	}
	return n
}

// Registered reports whether any channel listens for sig.
func (s *ManualSource) Registered(sig os.Signal) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, sigs := range s.subs {
		for _, want := range sigs {
			if want == sig {
				return true
			}
		}
	}
	return false
}

// Personal.AI order the ending
