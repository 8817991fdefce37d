// Package instance provides a named, OS-level lock that tells whether another
// copy of an application is already running.
//
// On POSIX the lock is an flock(2) on <dir>/<uuid>.lock, which also records
// the holder's pid. On Windows it is a named mutex in the Global namespace.
package instance

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/turtacn/appkit/pkg/consts"
	"github.com/turtacn/appkit/pkg/errors"
	"github.com/turtacn/appkit/pkg/logger"
)

// Guard is the single-instance lock of one application identity.
type Guard struct {
	id  uuid.UUID
	dir string

	mu   sync.Mutex
	owns bool
	h    handle
}

// Option configures a Guard.
type Option func(*Guard)

// WithDir sets the directory holding the lock file. Defaults to os.TempDir().
func WithDir(dir string) Option {
	return func(g *Guard) {
		if dir != "" {
			g.dir = dir
		}
	}
}

// New creates a Guard for id. Nothing is acquired until Lock.
func New(id uuid.UUID, opts ...Option) *Guard {
	g := &Guard{id: id, dir: os.TempDir()}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// ID returns the application identity.
func (g *Guard) ID() uuid.UUID { return g.id }

// Path returns the lock file path.
func (g *Guard) Path() string {
	return filepath.Join(g.dir, g.id.String()+consts.LockFileSuffix)
}

// Lock tries to take the lock. running is true when another holder exists.
// Calling Lock again on a Guard that already owns the lock reports
// running=false without touching the OS object.
func (g *Guard) Lock() (running bool, err error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.owns {
		return false, nil
	}
	running, err = g.acquire()
	if err != nil {
		return false, err
	}
	if running {
		logger.Log.Debug("Instance lock held elsewhere", "id", g.id.String())
		return true, nil
	}
	g.owns = true
	logger.Log.Debug("Instance lock acquired", "id", g.id.String(), "path", g.Path())
	return false, nil
}

// Owns reports whether this Guard holds the lock.
func (g *Guard) Owns() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.owns
}

// Release gives the lock back. Without force it only acts when this Guard
// owns the lock. With force the OS object is destroyed even when ownership
// is unknown, which is what a signal-driven shutdown wants.
func (g *Guard) Release(force bool) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	if !g.owns && !force {
		return nil
	}
	g.owns = false
	if err := g.release(); err != nil {
		return errors.New(errors.ErrCodeInstanceLock, "Release", "release instance lock", err)
	}
	return nil
}

// Owner returns the pid recorded by the current holder, or 0 when no pid
// file exists.
func (g *Guard) Owner() (int, error) {
	data, err := os.ReadFile(g.Path())
	if err != nil {
		if os.IsNotExist(err) {
			return 0, nil
		}
		return 0, errors.New(errors.ErrCodeInstanceLock, "Owner", "read pid file", err)
	}
	s := strings.TrimSpace(string(data))
	if s == "" {
		return 0, nil
	}
	pid, err := strconv.Atoi(s)
	if err != nil || pid <= 0 {
		return 0, errors.New(errors.ErrCodeInstanceLock, "Owner", fmt.Sprintf("invalid pid %q", s), err)
	}
	return pid, nil
}

// Probe reports whether some other holder has the lock, without keeping it.
func Probe(id uuid.UUID, opts ...Option) (running bool, pid int, err error) {
	g := New(id, opts...)
	running, err = g.Lock()
	if err != nil {
		return false, 0, err
	}
	if !running {
		return false, 0, g.Release(false)
	}
	pid, err = g.Owner()
	return true, pid, err
}

// Personal.AI order the ending
