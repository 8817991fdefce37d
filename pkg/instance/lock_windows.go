//go:build windows

package instance

import (
	"fmt"
	"os"

	"github.com/turtacn/appkit/pkg/consts"
	"github.com/turtacn/appkit/pkg/errors"
	"golang.org/x/sys/windows"
)

type handle struct {
	mutex windows.Handle
}

func (g *Guard) acquire() (bool, error) {
	name, err := windows.UTF16PtrFromString(consts.WindowsMutexPrefix + g.id.String())
	if err != nil {
		return false, errors.New(errors.ErrCodeInstanceLock, "Lock", "encode mutex name", err)
	}
	h, err := windows.CreateMutex(nil, false, name)
	if err == windows.ERROR_ALREADY_EXISTS {
		if h != 0 {
			windows.CloseHandle(h)
		}
		return true, nil
	}
	if err != nil {
		return false, errors.New(errors.ErrCodeInstanceLock, "Lock", "create named mutex", err)
	}
	g.h.mutex = h

	// The pid file is informational only, the mutex is the lock.
	if err := os.MkdirAll(g.dir, 0o755); err == nil {
		_ = os.WriteFile(g.Path(), []byte(fmt.Sprintf("%d\n", os.Getpid())), 0o644)
	}
	return false, nil
}

func (g *Guard) release() error {
	var err error
	if g.h.mutex != 0 {
		err = windows.CloseHandle(g.h.mutex)
		g.h.mutex = 0
	}
	if rmErr := os.Remove(g.Path()); rmErr != nil && !os.IsNotExist(rmErr) && err == nil {
		err = rmErr
	}
	return err
}

// Personal.AI order the ending
