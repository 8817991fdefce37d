// Package resource keeps listening sockets alive across daemonization.
//
// A server binds its listeners in the foreground process, where bind errors
// are still visible and privileged ports may be available, and hands the
// descriptors to the detached copy as extra files. The copy claims them by
// address instead of binding again. Sockets passed by systemd socket
// activation are claimed the same way.
package resource

import (
	"fmt"
	"net"
	"os"
	"sort"
	"strconv"
	"sync"

	"github.com/coreos/go-systemd/v22/activation"
	"github.com/turtacn/appkit/pkg/consts"
	"github.com/turtacn/appkit/pkg/logger"
)

// firstInheritedFD is where exec.Cmd.ExtraFiles start.
const firstInheritedFD = 3

type Listeners struct {
	mu sync.Mutex

	// Active listeners keyed by the address they were requested with
	active map[string]net.Listener
	files  map[string]*os.File

	// Inherited but not yet claimed listeners
	inherited []*inheritedSocket

	discovered bool
}

type inheritedSocket struct {
	listener net.Listener
	file     *os.File
}

func NewListeners() *Listeners {
	return &Listeners{
		active: make(map[string]net.Listener),
		files:  make(map[string]*os.File),
	}
}

func (ls *Listeners) discoverInherited() {
	if ls.discovered {
		return
	}
	ls.discovered = true

	if os.Getenv("LISTEN_FDS") != "" {
		sockets, err := activation.Listeners()
		if err != nil {
			logger.Log.Warn("Socket activation: failed to read listeners", "err", err)
		}
		for _, l := range sockets {
			if l == nil {
				continue
			}
			ls.inherited = append(ls.inherited, &inheritedSocket{listener: l})
			logger.Log.Info("Socket activation: discovered listener", "addr", l.Addr().String())
		}
	}

	fds := os.Getenv(consts.EnvInheritedFDs)
	if fds == "" {
		return
	}
	// Cleared so that programs we start do not claim descriptors they lack.
	os.Unsetenv(consts.EnvInheritedFDs)

	count, err := strconv.Atoi(fds)
	if err != nil || count <= 0 {
		return
	}
	ls.adopt(firstInheritedFD, count)
}

// adopt wraps count descriptors starting at first as listeners.
func (ls *Listeners) adopt(first, count int) {
	for fd := first; fd < first+count; fd++ {
		if !isSocket(uintptr(fd)) {
			logger.Log.Warn("Inherited FD is not a socket, skipping", "fd", fd)
			continue
		}
		f := os.NewFile(uintptr(fd), "listener")
		if f == nil {
			continue
		}
		l, err := net.FileListener(f)
		if err != nil {
			logger.Log.Error("Failed to create listener from FD", "fd", fd, "err", err)
			continue
		}
		setNonblock(l)
		ls.inherited = append(ls.inherited, &inheritedSocket{listener: l, file: f})
		logger.Log.Info("Discovered inherited socket", "addr", l.Addr().String(), "fd", fd)
	}
}

// Ensure returns the listener for addr: the one already active, an
// inherited one bound to the same address, or a freshly bound one.
func (ls *Listeners) Ensure(addr string) (net.Listener, error) {
	ls.mu.Lock()
	defer ls.mu.Unlock()

	if l, ok := ls.active[addr]; ok {
		return l, nil
	}
	for key, l := range ls.active {
		if sameAddr(addr, l.Addr()) {
			ls.active[addr] = l
			ls.files[addr] = ls.files[key]
			return l, nil
		}
	}

	ls.discoverInherited()
	for i, is := range ls.inherited {
		if !sameAddr(addr, is.listener.Addr()) {
			continue
		}
		logger.Log.Info("Claiming inherited socket", "addr", addr)
		ls.inherited = append(ls.inherited[:i], ls.inherited[i+1:]...)
		ls.active[addr] = is.listener
		if is.file != nil {
			ls.files[addr] = is.file
		} else if f, err := fileOf(is.listener); err == nil {
			ls.files[addr] = f
		}
		return is.listener, nil
	}

	logger.Log.Info("Binding new listener", "addr", addr)
	l, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, err
	}
	f, err := fileOf(l)
	if err != nil {
		// Still usable here, it just cannot be handed to a child.
		logger.Log.Debug("Listener cannot be inherited", "addr", addr, "err", err)
	} else {
		ls.files[addr] = f
	}
	ls.active[addr] = l
	return l, nil
}

// Files returns the descriptors to hand to a child, one per distinct
// listener, ordered by address.
func (ls *Listeners) Files() []*os.File {
	ls.mu.Lock()
	defer ls.mu.Unlock()

	byAddr := make(map[string]*os.File)
	for key, f := range ls.files {
		if f == nil {
			continue
		}
		byAddr[ls.active[key].Addr().String()] = f
	}
	addrs := make([]string, 0, len(byAddr))
	for addr := range byAddr {
		addrs = append(addrs, addr)
	}
	sort.Strings(addrs)

	files := make([]*os.File, 0, len(addrs))
	for _, addr := range addrs {
		files = append(files, byAddr[addr])
	}
	return files
}

func (ls *Listeners) Close() {
	ls.mu.Lock()
	defer ls.mu.Unlock()

	closed := make(map[net.Listener]bool)
	for _, l := range ls.active {
		if !closed[l] {
			l.Close()
			closed[l] = true
		}
	}
	done := make(map[*os.File]bool)
	for _, f := range ls.files {
		if f != nil && !done[f] {
			f.Close()
			done[f] = true
		}
	}
	ls.active = make(map[string]net.Listener)
	ls.files = make(map[string]*os.File)

	for _, is := range ls.inherited {
		is.listener.Close()
		if is.file != nil {
			is.file.Close()
		}
	}
	ls.inherited = nil
}

func fileOf(l net.Listener) (*os.File, error) {
	tcpL, ok := l.(*net.TCPListener)
	if !ok {
		return nil, fmt.Errorf("listener is not a TCP listener")
	}
	f, err := tcpL.File()
	if err != nil {
		return nil, err
	}
	// File() puts the socket in blocking mode
	setNonblock(l)
	return f, nil
}

// sameAddr reports whether a listener bound to have satisfies a request for
// want. ":8080", "0.0.0.0:8080" and "[::]:8080" all name the wildcard
// address. Port 0 never matches, each such request gets its own socket.
func sameAddr(want string, have net.Addr) bool {
	tcp, ok := have.(*net.TCPAddr)
	if !ok {
		return want == have.String()
	}
	host, port, err := net.SplitHostPort(want)
	if err != nil || port == "0" || port != strconv.Itoa(tcp.Port) {
		return false
	}
	if host == "" {
		return tcp.IP == nil || tcp.IP.IsUnspecified()
	}
	ip := net.ParseIP(host)
	if ip == nil {
		resolved, err := net.ResolveTCPAddr("tcp", want)
		if err != nil {
			return false
		}
		ip = resolved.IP
	}
	if ip.IsUnspecified() {
		return tcp.IP == nil || tcp.IP.IsUnspecified()
	}
	return ip.Equal(tcp.IP)
}

// Personal.AI order the ending
