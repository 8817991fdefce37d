//go:build windows

package lifecycle

import (
	"os"
	"path/filepath"

	"github.com/turtacn/appkit/pkg/aspect"
	"github.com/turtacn/appkit/pkg/binder"
	"github.com/turtacn/appkit/pkg/errors"
	"github.com/turtacn/appkit/pkg/logger"
	wsvc "golang.org/x/sys/windows/svc"
)

// Replaced in tests.
var (
	svcIsWindowsService = wsvc.IsWindowsService
	svcRun              = wsvc.Run
)

type server struct {
	serverConfig
	isService bool
	log       logger.Logger
}

func newServer(cfg serverConfig) *server {
	return &server{serverConfig: cfg, log: logger.Log.With("component", "server")}
}

func (s *server) Handshake(*aspect.Map) (bool, error) {
	isService, err := svcIsWindowsService()
	if err != nil {
		return false, errors.New(errors.ErrCodeServiceRegister, "Handshake", "detect service session", err)
	}
	s.isService = isService
	if isService {
		// services start in System32
		if err := os.Chdir(filepath.Dir(os.Args[0])); err != nil {
			return false, errors.New(errors.ErrCodeServiceRegister, "Handshake", "chdir", err)
		}
	}
	return true, nil
}

func (s *server) Run(p *Process, app App) (int, error) {
	if !s.isService {
		return runWorker(p, app, nil), nil
	}
	h := &serviceHandler{p: p, app: app, log: s.log}
	if err := svcRun(s.name, h); err != nil {
		return h.code, errors.New(errors.ErrCodeServiceRegister, "Run", "register with service control manager", err)
	}
	return h.code, nil
}

// serviceHandler bridges SCM control requests to the process binder.
type serviceHandler struct {
	p    *Process
	app  App
	log  logger.Logger
	code int
}

func (h *serviceHandler) accepts() wsvc.Accepted {
	a := wsvc.AcceptStop | wsvc.AcceptShutdown
	m := h.p.Aspects()
	if aspect.Find[PauseHandler](m) != nil && aspect.Find[ResumeHandler](m) != nil {
		a |= wsvc.AcceptPauseAndContinue
	}
	return a
}

// Execute is invoked by Windows on its own goroutine.
func (h *serviceHandler) Execute(args []string, r <-chan wsvc.ChangeRequest, changes chan<- wsvc.Status) (bool, uint32) {
	changes <- wsvc.Status{State: wsvc.StartPending}

	done := make(chan int, 1)
	go func() {
		done <- h.app.Run(h.p.Aspects())
	}()

	accepts := h.accepts()
	changes <- wsvc.Status{State: wsvc.Running, Accepts: accepts}

	for {
		select {
		case code := <-done:
			h.code = code
			changes <- wsvc.Status{State: wsvc.StopPending}
			return false, uint32(code)
		case c := <-r:
			switch c.Cmd {
			case wsvc.Interrogate:
				h.p.Binder().Raise(binder.ControlInterrogate)
				changes <- c.CurrentStatus
			case wsvc.Stop, wsvc.Shutdown:
				ctl := binder.ControlStop
				if c.Cmd == wsvc.Shutdown {
					ctl = binder.ControlShutdown
				}
				if out := h.p.Binder().Deliver(ctl); out != binder.Completed {
					h.log.Info("Stop not accepted", "outcome", out.String())
					changes <- c.CurrentStatus
					continue
				}
				changes <- wsvc.Status{State: wsvc.StopPending}
				h.code = <-done
				return false, uint32(h.code)
			case wsvc.Pause:
				if out := h.p.Binder().Deliver(binder.ControlPause); out == binder.Completed {
					changes <- wsvc.Status{State: wsvc.Paused, Accepts: accepts}
				} else {
					changes <- c.CurrentStatus
				}
			case wsvc.Continue:
				if out := h.p.Binder().Deliver(binder.ControlContinue); out == binder.Completed {
					changes <- wsvc.Status{State: wsvc.Running, Accepts: accepts}
				} else {
					changes <- c.CurrentStatus
				}
			default:
				h.log.Warn("Unexpected control request", "cmd", uint32(c.Cmd))
			}
		}
	}
}

// Personal.AI order the ending
