package consts

// RunMode defines how the user application is hosted.
type RunMode string

const (
	ModeCommon RunMode = "common" // Foreground / interactive process
	ModeServer RunMode = "server" // POSIX daemon or Windows service
)

// Valid reports whether m names a known run mode.
func (m RunMode) Valid() bool {
	return m == ModeCommon || m == ModeServer
}

// Status is the externally visible state of the hosted application.
type Status string

const (
	StatusRunning Status = "RUNNING"
	StatusPaused  Status = "PAUSED"
	StatusStopped Status = "STOPPED"
)

// ProcessState is the lifecycle state of a process mode.
type ProcessState string

const (
	StateConstructing ProcessState = "CONSTRUCTING"
	StateRunning      ProcessState = "RUNNING"
	StateStopping     ProcessState = "STOPPING"
	StateStopped      ProcessState = "STOPPED"
)

// Daemonization constants
const (
	// EnvDaemonChild marks the re-executed, detached copy of the program.
	EnvDaemonChild  = "APPKIT_DAEMON_CHILD"
	// EnvInheritedFDs tells the detached copy how many listeners follow stderr.
	EnvInheritedFDs = "APPKIT_INHERITED_FDS"
	NullDevice      = "/dev/null"
	DaemonWorkDir   = "/"
)

// Single instance lock constants
const (
	LockFileSuffix     = ".lock"
	WindowsMutexPrefix = `Global\appkit-`
)

// Personal.AI order the ending
