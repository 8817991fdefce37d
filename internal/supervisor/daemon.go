//go:build !windows

package supervisor

import (
	"fmt"
	"os"
	"os/exec"
	"syscall"

	"github.com/turtacn/appkit/pkg/consts"
	"github.com/turtacn/appkit/pkg/errors"
	"github.com/turtacn/appkit/pkg/logger"
	"golang.org/x/sys/unix"
)

// Daemonizer detaches the running program from its controlling terminal.
//
// Go cannot fork a multi-threaded runtime, so the classic double fork is
// expressed as a re-exec: the parent starts a copy of its own executable in a
// new session with stdio on the null device and the root as working
// directory, then steps aside. The copy recognises itself by an environment
// marker, finishes detaching and carries on as the daemon.
//
// Without a second fork the copy stays a session leader, so opening a
// terminal device would make it the controlling terminal. The copy's own
// descriptors are opened with O_NOCTTY, and daemon code opening devices must
// pass it as well.
type Daemonizer struct {
	// Args are passed to the re-executed copy. Defaults to os.Args[1:].
	Args []string
	// Env is the environment of the copy. Defaults to os.Environ().
	Env []string
	// LogFile, when set, receives the copy's stdout and stderr.
	LogFile string
	// ExtraFiles are inherited by the copy from descriptor 3 on.
	ExtraFiles []*os.File

	executable func() (string, error)
	start      func(cmd *exec.Cmd) error
	umask      func(mask int) int
	chdir      func(dir string) error
}

// A log file may be a terminal; it must not become the controlling one.
const logFileFlags = os.O_CREATE | os.O_WRONLY | os.O_APPEND | syscall.O_NOCTTY

// New creates a Daemonizer for the current program.
func New() *Daemonizer {
	return &Daemonizer{
		Args:       os.Args[1:],
		Env:        os.Environ(),
		executable: os.Executable,
		start:      func(cmd *exec.Cmd) error { return cmd.Start() },
		umask:      unix.Umask,
		chdir:      os.Chdir,
	}
}

// IsChild reports whether this process is the detached copy.
func IsChild() bool {
	return os.Getenv(consts.EnvDaemonChild) == "1"
}

// Daemonize runs once per server-mode launch. In the original process it
// starts the detached copy and returns its pid with child=false; the caller
// should then exit. In the copy it finishes detaching and returns the own
// pid with child=true.
func (d *Daemonizer) Daemonize() (pid int, child bool, err error) {
	if IsChild() {
		if err := d.settle(); err != nil {
			return 0, true, err
		}
		return os.Getpid(), true, nil
	}

	exe, err := d.executable()
	if err != nil {
		return 0, false, errors.New(errors.ErrCodeDaemonize, "Daemonize", "locate executable", err)
	}

	stdin, err := os.OpenFile(consts.NullDevice, os.O_RDONLY|syscall.O_NOCTTY, 0)
	if err != nil {
		return 0, false, errors.New(errors.ErrCodeDaemonize, "Daemonize", "open null device", err)
	}
	defer stdin.Close()

	var out *os.File
	if d.LogFile != "" {
		out, err = os.OpenFile(d.LogFile, logFileFlags, 0o600)
		if err != nil {
			return 0, false, errors.New(errors.ErrCodeDaemonize, "Daemonize", "open log file", err)
		}
		defer out.Close()
	} else {
		out, err = os.OpenFile(consts.NullDevice, os.O_WRONLY|syscall.O_NOCTTY, 0)
		if err != nil {
			return 0, false, errors.New(errors.ErrCodeDaemonize, "Daemonize", "open null device", err)
		}
		defer out.Close()
	}

	cmd := exec.Command(exe, d.Args...)
	cmd.Env = append(append([]string(nil), d.Env...), consts.EnvDaemonChild+"=1")
	cmd.Dir = consts.DaemonWorkDir
	cmd.Stdin = stdin
	cmd.Stdout = out
	cmd.Stderr = out
	cmd.SysProcAttr = &syscall.SysProcAttr{Setsid: true}
	if len(d.ExtraFiles) > 0 {
		cmd.ExtraFiles = d.ExtraFiles
		cmd.Env = append(cmd.Env, fmt.Sprintf("%s=%d", consts.EnvInheritedFDs, len(d.ExtraFiles)))
	}

	if err := d.start(cmd); err != nil {
		return 0, false, errors.New(errors.ErrCodeDaemonize, "Daemonize", "start detached process", err)
	}

	pid = cmd.Process.Pid
	logger.Log.Info("Supervisor: detached", "pid", pid, "exe", exe)
	if err := cmd.Process.Release(); err != nil {
		return pid, false, errors.New(errors.ErrCodeDaemonize, "Daemonize", "release detached process", err)
	}
	return pid, false, nil
}

// settle finishes detaching inside the copy.
func (d *Daemonizer) settle() error {
	d.umask(0)
	if err := d.chdir(consts.DaemonWorkDir); err != nil {
		return errors.New(errors.ErrCodeDaemonize, "Daemonize", "chdir", err)
	}
	// Programs started by the daemon must not mistake themselves for it.
	os.Unsetenv(consts.EnvDaemonChild)
	return nil
}

// Personal.AI order the ending
