//go:build windows

package lifecycle

import (
	"os"

	"github.com/turtacn/appkit/pkg/logger"
)

// Only Ctrl+C reaches a console program on Windows. Services are stopped
// through SCM controls instead.
var terminationSignals = []os.Signal{os.Interrupt}

func notifyStopping(logger.Logger) {}

// Personal.AI order the ending
