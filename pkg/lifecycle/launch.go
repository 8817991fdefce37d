// Package lifecycle hosts an application in the foreground (common mode) or
// as a daemon or service (server mode).
//
// Launch installs the default aspects, binds termination signals and service
// controls to a two-phase protocol, performs the platform handshake and then
// runs the application. The application usually blocks in
//
//	aspect.Find[lifecycle.TerminationRequest](m).Wait()
//
// until a termination request has been approved, and returns its exit code.
//
// Programs that keep their aspects in the process-wide map pass it along:
//
//	aspect.CreateGlobal()
//	defer aspect.DestroyGlobal()
//	code, err := lifecycle.Launch(lifecycle.Common(), app, aspect.Global())
package lifecycle

import (
	"github.com/turtacn/appkit/internal/monitor"
	"github.com/turtacn/appkit/pkg/aspect"
	"github.com/turtacn/appkit/pkg/binder"
	"github.com/turtacn/appkit/pkg/logger"
)

// App is the hosted application.
type App interface {
	Run(m *aspect.Map) int
}

// AppFunc adapts a function to App.
type AppFunc func(m *aspect.Map) int

func (f AppFunc) Run(m *aspect.Map) int { return f(m) }

type options struct {
	signals func(b *binder.Binder, m *aspect.Map) error
	source  binder.Source
	log     logger.Logger
}

// Option configures Launch.
type Option func(*options)

// WithSignals customizes the bindings. fn runs after the default bindings
// are in place and before dispatch starts; it may rebind or unbind anything.
func WithSignals(fn func(b *binder.Binder, m *aspect.Map) error) Option {
	return func(o *options) { o.signals = fn }
}

// WithSignalSource replaces the OS signal source of the binder.
func WithSignalSource(s binder.Source) Option {
	return func(o *options) { o.source = s }
}

// WithLogger sets the lifecycle logger.
func WithLogger(l logger.Logger) Option {
	return func(o *options) { o.log = l }
}

// Launch hosts app in mode and returns the application's exit code. On a
// setup failure it returns 0 and the error. When the launch decides not to
// run the application, because another instance holds the lock or because
// this is the parent of a daemon, it returns 0 and nil.
func Launch(mode Mode, app App, m *aspect.Map, opts ...Option) (int, error) {
	o := &options{}
	for _, opt := range opts {
		opt(o)
	}
	if o.log == nil {
		o.log = logger.Log.With("component", "lifecycle")
	}
	if m == nil {
		m = aspect.New()
	}
	modeName := string(mode.RunMode())

	if exit, err := checkSingleInstance(m, o.log); err != nil || exit {
		result := "conflict"
		if err != nil {
			result = "error"
		}
		monitor.Launches.WithLabelValues(modeName, result).Inc()
		return 0, err
	}

	p, proceed, err := newProcess(mode, m, o)
	if err != nil {
		releaseInstance(m, o.log)
		o.log.Error("Launch failed", "mode", modeName, "err", err)
		monitor.Launches.WithLabelValues(modeName, "error").Inc()
		return 0, err
	}
	if !proceed {
		releaseInstance(m, o.log)
		monitor.Launches.WithLabelValues(modeName, "detached").Inc()
		return 0, nil
	}
	defer p.Close()

	o.log.Info("Application starting", "mode", modeName)
	monitor.Launches.WithLabelValues(modeName, "ok").Inc()
	code, err := mode.Run(p, app)
	if err != nil {
		return 0, err
	}
	o.log.Info("Application finished", "mode", modeName, "code", code)
	return code, nil
}

// MustLaunch is Launch that panics on a setup failure.
func MustLaunch(mode Mode, app App, m *aspect.Map, opts ...Option) int {
	code, err := Launch(mode, app, m, opts...)
	if err != nil {
		panic(err)
	}
	return code
}

// checkSingleInstance takes the instance lock when LimitSingleInstance is
// installed. exit is true when another instance runs and nobody overrode
// the default policy of leaving.
func checkSingleInstance(m *aspect.Map, log logger.Logger) (exit bool, err error) {
	l := aspect.Find[LimitSingleInstance](m)
	if l == nil || l.Guard == nil {
		return false, nil
	}
	running, err := l.Guard.Lock()
	if err != nil {
		return true, err
	}
	if !running {
		return false, nil
	}
	monitor.InstanceConflicts.Inc()
	if proceed, called := l.OnConflict.Call(); called && proceed {
		log.Warn("Another instance is running, continuing anyway", "id", l.Guard.ID().String())
		return false, nil
	}
	log.Info("Another instance is running, exiting", "id", l.Guard.ID().String())
	return true, nil
}

// Personal.AI order the ending
