package control

import (
	"encoding/json"
	"fmt"
	"net"
	"time"

	"github.com/turtacn/appkit/pkg/errors"
)

// Query sends one request to the control socket at path.
func Query(path, op string, timeout time.Duration) (*Response, error) {
	conn, err := net.DialTimeout("unix", path, timeout)
	if err != nil {
		return nil, errors.New(errors.ErrCodeControlSocket, "Query", "dial control socket", err)
	}
	defer conn.Close()
	conn.SetDeadline(time.Now().Add(timeout))

	if err := json.NewEncoder(conn).Encode(Request{Op: op}); err != nil {
		return nil, errors.New(errors.ErrCodeControlSocket, "Query", "send request", err)
	}
	var resp Response
	if err := json.NewDecoder(conn).Decode(&resp); err != nil {
		return nil, errors.New(errors.ErrCodeControlSocket, "Query", "read response", err)
	}
	if resp.Error != "" {
		return &resp, errors.New(errors.ErrCodeControlSocket, "Query", fmt.Sprintf("%s: %s", op, resp.Error), nil)
	}
	return &resp, nil
}

// Personal.AI order the ending
