package lifecycle

import (
	"github.com/turtacn/appkit/pkg/aspect"
	"github.com/turtacn/appkit/pkg/consts"
	"github.com/turtacn/appkit/pkg/instance"
	"github.com/turtacn/appkit/pkg/protocol"
)

// FromConfig translates cfg into a mode. When the configuration asks for a
// single instance, the LimitSingleInstance aspect is inserted into m unless
// one is already present. extra applies to server mode only.
func FromConfig(cfg *protocol.Config, m *aspect.Map, extra ...ServerOption) Mode {
	if cfg.App.SingleInstance {
		g := instance.New(cfg.AppID(), instance.WithDir(cfg.App.LockDir))
		aspect.Insert(m, NewLimitSingleInstance(g, nil))
	}
	if cfg.Mode == consts.ModeServer {
		opts := []ServerOption{
			WithServiceName(cfg.Server.ServiceName),
			Foreground(cfg.Server.Foreground),
			WithLogFile(cfg.Server.LogFile),
		}
		return Server(append(opts, extra...)...)
	}
	return Common()
}

// Personal.AI order the ending
