//go:build !windows

package instance

import (
	"fmt"
	"os"

	"github.com/turtacn/appkit/pkg/errors"
	"golang.org/x/sys/unix"
)

type handle struct {
	f *os.File
}

func (g *Guard) acquire() (bool, error) {
	if err := os.MkdirAll(g.dir, 0o755); err != nil {
		return false, errors.New(errors.ErrCodeInstanceLock, "Lock", "create lock directory", err)
	}

	// A concurrent Release may unlink the file between open and flock. The
	// lock only counts if the inode we hold is still the one at Path.
	for {
		f, err := os.OpenFile(g.Path(), os.O_RDWR|os.O_CREATE, 0o644)
		if err != nil {
			return false, errors.New(errors.ErrCodeInstanceLock, "Lock", "open lock file", err)
		}
		if err := unix.Flock(int(f.Fd()), unix.LOCK_EX|unix.LOCK_NB); err != nil {
			f.Close()
			if err == unix.EWOULDBLOCK {
				return true, nil
			}
			return false, errors.New(errors.ErrCodeInstanceLock, "Lock", "flock", err)
		}

		held, err := f.Stat()
		if err != nil {
			f.Close()
			return false, errors.New(errors.ErrCodeInstanceLock, "Lock", "stat lock file", err)
		}
		current, err := os.Stat(g.Path())
		if err != nil || !os.SameFile(held, current) {
			f.Close()
			continue
		}

		if err := writePID(f); err != nil {
			unix.Flock(int(f.Fd()), unix.LOCK_UN)
			f.Close()
			return false, errors.New(errors.ErrCodeInstanceLock, "Lock", "write pid", err)
		}
		g.h.f = f
		return false, nil
	}
}

func (g *Guard) release() error {
	// Unlink before unlocking so nobody can lock the inode we are about to drop.
	err := os.Remove(g.Path())
	if err != nil && os.IsNotExist(err) {
		err = nil
	}
	if g.h.f != nil {
		unix.Flock(int(g.h.f.Fd()), unix.LOCK_UN)
		g.h.f.Close()
		g.h.f = nil
	}
	return err
}

func writePID(f *os.File) error {
	if err := f.Truncate(0); err != nil {
		return err
	}
	if _, err := f.WriteAt([]byte(fmt.Sprintf("%d\n", os.Getpid())), 0); err != nil {
		return err
	}
	return f.Sync()
}

// Personal.AI order the ending
