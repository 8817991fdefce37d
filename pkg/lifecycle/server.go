package lifecycle

import (
	"os"

	"github.com/turtacn/appkit/pkg/consts"
)

type serverConfig struct {
	name       string
	foreground bool
	logFile    string
	files      []*os.File
	args       []string
}

// ServerOption configures the server mode.
type ServerOption func(*serverConfig)

// WithServiceName sets the name registered with the Windows SCM.
func WithServiceName(name string) ServerOption {
	return func(c *serverConfig) { c.name = name }
}

// Foreground keeps a POSIX server attached to its parent, as systemd
// Type=notify units expect.
func Foreground(on bool) ServerOption {
	return func(c *serverConfig) { c.foreground = on }
}

// WithLogFile sends the daemon's stdout and stderr to path instead of the
// null device.
func WithLogFile(path string) ServerOption {
	return func(c *serverConfig) { c.logFile = path }
}

// WithInheritedFiles hands descriptors, typically listening sockets bound
// before detaching, to the POSIX daemon.
func WithInheritedFiles(files ...*os.File) ServerOption {
	return func(c *serverConfig) { c.files = append(c.files, files...) }
}

// WithArgs replaces the arguments of the detached POSIX copy, which default
// to the current ones. The copy starts in the root directory, so relative
// paths among them must be made absolute first.
func WithArgs(args ...string) ServerOption {
	return func(c *serverConfig) { c.args = args }
}

// Server hosts the application as a POSIX daemon or a Windows service.
func Server(opts ...ServerOption) Mode {
	cfg := serverConfig{name: "appkit"}
	for _, opt := range opts {
		opt(&cfg)
	}
	return newServer(cfg)
}

func (serverConfig) RunMode() consts.RunMode { return consts.ModeServer }

// Personal.AI order the ending
