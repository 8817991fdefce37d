//go:build !windows

package lifecycle

import (
	"os"
	"syscall"

	"github.com/coreos/go-systemd/v22/daemon"
	"github.com/turtacn/appkit/pkg/logger"
)

var terminationSignals = []os.Signal{syscall.SIGINT, syscall.SIGTERM, syscall.SIGABRT}

// sdNotify is replaced in tests.
var sdNotify = daemon.SdNotify

func notifyStopping(log logger.Logger) {
	if _, err := sdNotify(false, daemon.SdNotifyStopping); err != nil {
		log.Warn("sd_notify STOPPING failed", "err", err)
	}
}

// Personal.AI order the ending
