//go:build windows

package resource

import "net"

// Windows services do not inherit sockets through descriptors.
func isSocket(uintptr) bool { return false }

func setNonblock(net.Listener) {}

// Personal.AI order the ending
