package supervisor

import (
	"os"
	"syscall"

	"github.com/turtacn/appkit/pkg/logger"
)

// Terminate asks the process pid to shut down gracefully with SIGTERM.
func Terminate(pid int) error {
	p, err := os.FindProcess(pid)
	if err != nil {
		return err
	}
	logger.Log.Info("Supervisor: Sending SIGTERM", "pid", pid)
	return p.Signal(syscall.SIGTERM)
}

// Kill terminates the process pid immediately.
func Kill(pid int) error {
	p, err := os.FindProcess(pid)
	if err != nil {
		return err
	}
	logger.Log.Warn("Supervisor: Sending SIGKILL", "pid", pid)
	return p.Kill()
}

// Personal.AI order the ending
