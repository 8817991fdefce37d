//go:build !windows

package resource

import (
	"net"
	"syscall"
)

func isSocket(fd uintptr) bool {
	var stat syscall.Stat_t
	if err := syscall.Fstat(int(fd), &stat); err != nil {
		return false
	}
	return (stat.Mode & syscall.S_IFMT) == syscall.S_IFSOCK
}

// setNonblock restores non-blocking mode for the Go runtime poller.
func setNonblock(l net.Listener) {
	tcpL, ok := l.(*net.TCPListener)
	if !ok {
		return
	}
	if rawConn, err := tcpL.SyscallConn(); err == nil {
		rawConn.Control(func(fd uintptr) {
			_ = syscall.SetNonblock(int(fd), true)
		})
	}
}

// Personal.AI order the ending
