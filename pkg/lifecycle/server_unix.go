//go:build !windows

package lifecycle

import (
	"github.com/coreos/go-systemd/v22/daemon"
	"github.com/turtacn/appkit/internal/supervisor"
	"github.com/turtacn/appkit/pkg/aspect"
	"github.com/turtacn/appkit/pkg/logger"
)

type daemonizer interface {
	Daemonize() (pid int, child bool, err error)
}

// Replaced in tests.
var (
	newDaemonizer = func(cfg serverConfig) daemonizer {
		d := supervisor.New()
		d.LogFile = cfg.logFile
		d.ExtraFiles = cfg.files
		if cfg.args != nil {
			d.Args = cfg.args
		}
		return d
	}
	isDaemonChild = supervisor.IsChild
)

type server struct {
	serverConfig
	log logger.Logger
}

func newServer(cfg serverConfig) *server {
	return &server{serverConfig: cfg, log: logger.Log.With("component", "server")}
}

func (s *server) Handshake(m *aspect.Map) (bool, error) {
	if s.foreground {
		return true, nil
	}
	if !isDaemonChild() {
		// The detached copy takes the lock over when it launches.
		releaseInstance(m, s.log)
	}
	pid, child, err := newDaemonizer(s.serverConfig).Daemonize()
	if err != nil {
		return false, err
	}
	if !child {
		s.log.Info("Daemon started", "pid", pid)
		return false, nil
	}
	return true, nil
}

func (s *server) Run(p *Process, app App) (int, error) {
	code := runWorker(p, app, func() {
		if _, err := sdNotify(false, daemon.SdNotifyReady); err != nil {
			s.log.Warn("sd_notify READY failed", "err", err)
		}
	})
	return code, nil
}

// Personal.AI order the ending
