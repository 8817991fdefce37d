package cli

import (
	"io"
	"strconv"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
	"github.com/turtacn/appkit/pkg/instance"
	"github.com/turtacn/appkit/pkg/protocol"
)

func renderStatus(w io.Writer, cfg *protocol.Config, running bool, pid int, live string) {
	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetStyle(table.StyleRounded)
	t.AppendHeader(table.Row{"Field", "Value"})

	state := text.FgHiBlack.Sprint("not running")
	pidText := "-"
	if running {
		state = text.FgGreen.Sprint("running")
		if pid > 0 {
			pidText = strconv.Itoa(pid)
		}
	}

	lock := instance.New(cfg.AppID(), instance.WithDir(cfg.App.LockDir))
	t.AppendRows([]table.Row{
		{"App", cfg.App.Name},
		{"ID", cfg.AppID().String()},
		{"Mode", string(cfg.Mode)},
		{"Lock", lock.Path()},
		{"State", state},
		{"PID", pidText},
	})
	if live != "" {
		t.AppendRow(table.Row{"Status", live})
	}
	t.Render()
}

// Personal.AI order the ending
