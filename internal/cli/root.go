package cli

import (
	"context"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/turtacn/appkit/internal/control"
	"github.com/turtacn/appkit/internal/monitor"
	"github.com/turtacn/appkit/internal/resource"
	"github.com/turtacn/appkit/internal/supervisor"
	"github.com/turtacn/appkit/pkg/aspect"
	"github.com/turtacn/appkit/pkg/instance"
	"github.com/turtacn/appkit/pkg/lifecycle"
	"github.com/turtacn/appkit/pkg/logger"
	"github.com/turtacn/appkit/pkg/protocol"
)

var cfgFile string

const queryTimeout = 5 * time.Second

var rootCmd = &cobra.Command{
	Use:          "appkit",
	Short:        "appkit: host an application in the foreground or as a daemon",
	SilenceUsage: true,
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the demo application in the configured mode",
	RunE: func(cmd *cobra.Command, args []string) error {
		// The detached copy starts in the root directory.
		path, err := filepath.Abs(cfgFile)
		if err != nil {
			return err
		}
		cfg, err := protocol.Load(path)
		if err != nil {
			return err
		}
		logger.InitLogger(cfg.Observability.LogLevel, nil)
		logger.Log.Info("Booting appkit", "app", cfg.App.Name, "mode", string(cfg.Mode))

		// Bound before detaching so the daemon inherits them.
		sockets := resource.NewListeners()
		defer sockets.Close()
		var metricsL net.Listener
		if cfg.Observability.MetricsPort != "" {
			if metricsL, err = sockets.Ensure(cfg.Observability.MetricsPort); err != nil {
				return err
			}
		}

		m := aspectMap()
		mode := lifecycle.FromConfig(cfg, m,
			lifecycle.WithInheritedFiles(sockets.Files()...),
			lifecycle.WithArgs(daemonArgs(os.Args[1:], path)...),
		)
		code, err := lifecycle.Launch(mode, demoApp(cfg, path, metricsL), m)
		if err != nil {
			return err
		}
		if code != 0 {
			return fmt.Errorf("application exited with code %d", code)
		}
		return nil
	},
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show whether an instance holds the single-instance lock",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := protocol.Load(cfgFile)
		if err != nil {
			return err
		}
		running, pid, err := instance.Probe(cfg.AppID(), instance.WithDir(cfg.App.LockDir))
		if err != nil {
			return err
		}
		live := ""
		if cfg.App.ControlSocket != "" {
			if resp, err := control.Query(cfg.App.ControlSocket, control.OpStatus, queryTimeout); err == nil {
				live, running = resp.Status, true
				if pid == 0 {
					pid = resp.PID
				}
			}
		}
		renderStatus(cmd.OutOrStdout(), cfg, running, pid, live)
		return nil
	},
}

var stopCmd = &cobra.Command{
	Use:   "stop",
	Short: "Ask the running instance to terminate",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := protocol.Load(cfgFile)
		if err != nil {
			return err
		}

		// The control socket reports whether the application vetoed.
		if cfg.App.ControlSocket != "" {
			if resp, err := control.Query(cfg.App.ControlSocket, control.OpStop, queryTimeout); err == nil {
				fmt.Fprintf(cmd.OutOrStdout(), "Stop %s: %s (status %s)\n", cfg.App.Name, resp.Outcome, resp.Status)
				return nil
			}
		}

		running, pid, err := instance.Probe(cfg.AppID(), instance.WithDir(cfg.App.LockDir))
		if err != nil {
			return err
		}
		if !running || pid == 0 {
			return fmt.Errorf("%s is not running", cfg.App.Name)
		}
		if err := supervisor.Terminate(pid); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Sent SIGTERM to %s (pid %d)\n", cfg.App.Name, pid)
		return nil
	},
}

// demoApp serves metrics and the control socket until termination is
// approved. Log level changes in the config file apply while it runs.
func demoApp(cfg *protocol.Config, cfgPath string, metricsL net.Listener) lifecycle.App {
	return lifecycle.AppFunc(func(m *aspect.Map) int {
		log := logger.Log.With("app", cfg.App.Name)

		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()
		if err := watchConfig(ctx, cfgPath); err != nil {
			log.Warn("Config watch unavailable", "err", err)
		}
		if metricsL != nil {
			srv := monitor.ServeMetrics(metricsL)
			defer func() {
				ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				srv.Shutdown(ctx)
			}()
		}
		if cfg.App.ControlSocket != "" {
			ctl, err := control.Listen(cfg.App.ControlSocket, m)
			if err != nil {
				log.Error("Control socket unavailable", "err", err)
				return 1
			}
			defer ctl.Close()
		}

		pid := aspect.Find[lifecycle.ProcessID](m).Get()
		log.Info("Application ready, waiting for termination", "pid", pid)
		aspect.Find[lifecycle.TerminationRequest](m).Wait()
		log.Info("Termination requested, exiting")
		return 0
	})
}

// aspectMap returns the process-wide map when the entry point created one.
func aspectMap() *aspect.Map {
	if aspect.HasGlobal() {
		return aspect.Global()
	}
	return aspect.New()
}

// daemonArgs returns args with every config flag replaced by one naming the
// absolute path.
func daemonArgs(args []string, path string) []string {
	out := make([]string, 0, len(args)+2)
	for i := 0; i < len(args); i++ {
		a := args[i]
		switch {
		case a == "-c" || a == "--config":
			i++
		case strings.HasPrefix(a, "-c=") || strings.HasPrefix(a, "--config="):
		case a == "--":
			out = append(out, "--config", path)
			return append(out, args[i:]...)
		default:
			out = append(out, a)
		}
	}
	return append(out, "--config", path)
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "appkit.yaml", "config file path")
	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(stopCmd)
}

// Execute runs the command line and returns the process exit code.
func Execute() int {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	return 0
}

// Personal.AI order the ending
