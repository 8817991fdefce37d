// Package control serves status and stop requests for a running application
// over a Unix domain socket, one JSON request and one JSON response per
// connection.
package control

import (
	"encoding/json"
	"net"
	"os"
	"sync"
	"time"

	"github.com/turtacn/appkit/pkg/aspect"
	"github.com/turtacn/appkit/pkg/binder"
	"github.com/turtacn/appkit/pkg/errors"
	"github.com/turtacn/appkit/pkg/lifecycle"
	"github.com/turtacn/appkit/pkg/logger"
)

const (
	OpStatus = "status"
	OpStop   = "stop"
)

// connTimeout bounds one request, stop handling included.
const connTimeout = 10 * time.Second

type Request struct {
	Op string `json:"op"`
}

type Response struct {
	Status  string `json:"status,omitempty"`
	PID     int    `json:"pid,omitempty"`
	Outcome string `json:"outcome,omitempty"`
	Error   string `json:"error,omitempty"`
}

type Server struct {
	socketPath string
	l          net.Listener
	m          *aspect.Map

	wg        sync.WaitGroup
	closeOnce sync.Once
}

// prepareSocket creates the Unix domain socket, replacing a stale one.
func prepareSocket(path string) (net.Listener, error) {
	if _, err := os.Stat(path); err == nil {
		os.Remove(path)
	}
	l, err := net.Listen("unix", path)
	if err != nil {
		return nil, err
	}
	// Only the owner may stop the application
	os.Chmod(path, 0700)
	return l, nil
}

// Listen starts serving requests against the aspects in m.
func Listen(path string, m *aspect.Map) (*Server, error) {
	l, err := prepareSocket(path)
	if err != nil {
		return nil, errors.New(errors.ErrCodeControlSocket, "Listen", "listen on control socket", err)
	}
	s := &Server{socketPath: path, l: l, m: m}
	s.wg.Add(1)
	go s.serve()
	logger.Log.Info("Control: listening", "socket", path)
	return s, nil
}

func (s *Server) Path() string { return s.socketPath }

func (s *Server) serve() {
	defer s.wg.Done()
	for {
		conn, err := s.l.Accept()
		if err != nil {
			return
		}
		s.wg.Add(1)
		go s.handle(conn)
	}
}

func (s *Server) handle(conn net.Conn) {
	defer s.wg.Done()
	defer conn.Close()
	conn.SetDeadline(time.Now().Add(connTimeout))

	var req Request
	if err := json.NewDecoder(conn).Decode(&req); err != nil {
		logger.Log.Warn("Control: bad request", "err", err)
		return
	}
	resp := s.dispatch(req)
	if err := json.NewEncoder(conn).Encode(resp); err != nil {
		logger.Log.Warn("Control: failed to answer", "op", req.Op, "err", err)
	}
}

func (s *Server) dispatch(req Request) Response {
	var resp Response
	switch req.Op {
	case OpStatus:
	case OpStop:
		c := aspect.Find[lifecycle.Controller](s.m)
		if c == nil {
			return Response{Error: "no controller installed"}
		}
		out := c.Request(binder.ControlStop)
		logger.Log.Info("Control: stop requested", "outcome", out.String())
		resp.Outcome = out.String()
	default:
		return Response{Error: "unknown op " + req.Op}
	}

	if st := aspect.Find[lifecycle.Status](s.m); st != nil {
		resp.Status = string(st.Get())
	}
	if pid := aspect.Find[lifecycle.ProcessID](s.m); pid != nil {
		resp.PID = pid.Get()
	}
	return resp
}

// Close stops accepting, removes the socket and waits for requests in flight.
func (s *Server) Close() error {
	var err error
	s.closeOnce.Do(func() {
		err = s.l.Close()
		os.Remove(s.socketPath)
		s.wg.Wait()
	})
	return err
}

// Personal.AI order the ending
