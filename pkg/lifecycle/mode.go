package lifecycle

import (
	"github.com/turtacn/appkit/pkg/aspect"
	"github.com/turtacn/appkit/pkg/consts"
)

// Mode is the platform capability set of a run mode.
type Mode interface {
	// RunMode names the mode.
	RunMode() consts.RunMode
	// Handshake performs the one-off platform setup before dispatch starts.
	// proceed=false means this process must return without running the
	// application, e.g. the parent of a daemon.
	Handshake(m *aspect.Map) (proceed bool, err error)
	// Run hosts the application and returns its exit code.
	Run(p *Process, app App) (int, error)
}

type common struct{}

// Common hosts the application in the foreground, on the calling goroutine.
func Common() Mode { return common{} }

func (common) RunMode() consts.RunMode { return consts.ModeCommon }

func (common) Handshake(*aspect.Map) (bool, error) { return true, nil }

func (common) Run(p *Process, app App) (int, error) {
	return app.Run(p.Aspects()), nil
}

// runWorker calls started, then runs app on its own goroutine and waits for
// it. A panic in the application is re-raised on the caller so deferred
// cleanup still runs.
func runWorker(p *Process, app App, started func()) int {
	type result struct {
		code  int
		panic any
	}
	if started != nil {
		started()
	}
	done := make(chan result, 1)
	go func() {
		var r result
		defer func() {
			r.panic = recover()
			done <- r
		}()
		r.code = app.Run(p.Aspects())
	}()
	r := <-done
	if r.panic != nil {
		panic(r.panic)
	}
	return r.code
}

// Personal.AI order the ending
