//go:build !windows

package lifecycle

import (
	stderrors "errors"
	"sync"
	"syscall"
	"testing"
	"time"

	"github.com/coreos/go-systemd/v22/daemon"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/turtacn/appkit/internal/supervisor"
	"github.com/turtacn/appkit/pkg/aspect"
	"github.com/turtacn/appkit/pkg/binder"
	"github.com/turtacn/appkit/pkg/consts"
	"github.com/turtacn/appkit/pkg/errors"
	"github.com/turtacn/appkit/pkg/instance"
	"github.com/turtacn/appkit/pkg/logger"
	"github.com/turtacn/appkit/pkg/protocol"
)

type launchResult struct {
	code int
	err  error
}

func launchAsync(mode Mode, app App, m *aspect.Map, opts ...Option) <-chan launchResult {
	out := make(chan launchResult, 1)
	go func() {
		code, err := Launch(mode, app, m, append([]Option{WithLogger(logger.Discard())}, opts...)...)
		out <- launchResult{code, err}
	}()
	return out
}

func await(t *testing.T, ch <-chan launchResult) launchResult {
	t.Helper()
	select {
	case r := <-ch:
		return r
	case <-time.After(2 * time.Second):
		t.Fatal("Launch did not return")
	}
	return launchResult{}
}

// waitingApp blocks until termination is approved and reports the status it
// saw on wake-up.
func waitingApp(ready chan<- struct{}, seen chan<- consts.Status, code int) App {
	return AppFunc(func(m *aspect.Map) int {
		close(ready)
		aspect.Find[TerminationRequest](m).Wait()
		seen <- aspect.Find[Status](m).Get()
		return code
	})
}

func TestLaunch_CommonRunsUntilTerminated(t *testing.T) {
	src := binder.NewManualSource()
	ready := make(chan struct{})
	seen := make(chan consts.Status, 1)
	m := aspect.New()

	res := launchAsync(Common(), waitingApp(ready, seen, 7), m, WithSignalSource(src))
	<-ready
	require.Equal(t, 1, src.Send(syscall.SIGTERM))

	r := await(t, res)
	require.NoError(t, r.err)
	assert.Equal(t, 7, r.code)
	assert.Equal(t, consts.StatusStopped, <-seen)
	assert.False(t, src.Registered(syscall.SIGTERM), "binder is closed when Launch returns")
}

func TestLaunch_CustomSignals(t *testing.T) {
	src := binder.NewManualSource()
	ready := make(chan struct{})
	seen := make(chan consts.Status, 1)

	custom := WithSignals(func(b *binder.Binder, m *aspect.Map) error {
		term, ok := b.Lookup(syscall.SIGTERM)
		if !ok {
			return stderrors.New("termination binding missing")
		}
		b.Bind(syscall.SIGHUP, term.Primary, term.Secondary)
		b.Unbind(syscall.SIGINT)
		return nil
	})

	res := launchAsync(Common(), waitingApp(ready, seen, 0), aspect.New(), WithSignalSource(src), custom)
	<-ready
	assert.Equal(t, 0, src.Send(syscall.SIGINT), "SIGINT was unbound")
	require.Equal(t, 1, src.Send(syscall.SIGHUP))

	r := await(t, res)
	require.NoError(t, r.err)
	assert.Equal(t, consts.StatusStopped, <-seen)
}

func TestLaunch_CustomSignalsFailure(t *testing.T) {
	boom := stderrors.New("boom")
	ran := false
	app := AppFunc(func(*aspect.Map) int { ran = true; return 1 })

	code, err := Launch(Common(), app, aspect.New(),
		WithLogger(logger.Discard()),
		WithSignalSource(binder.NewManualSource()),
		WithSignals(func(*binder.Binder, *aspect.Map) error { return boom }))

	assert.Zero(t, code)
	assert.ErrorIs(t, err, boom)
	assert.False(t, ran)
}

func TestLaunch_NilMapGetsFreshAspects(t *testing.T) {
	code, err := Launch(Common(), AppFunc(func(m *aspect.Map) int {
		return len(m.Types())
	}), nil, WithLogger(logger.Discard()), WithSignalSource(binder.NewManualSource()))
	require.NoError(t, err)
	assert.Equal(t, 6, code)
}

func TestLaunch_SingleInstanceExits(t *testing.T) {
	dir := t.TempDir()
	id := uuid.New()
	holder := instance.New(id, instance.WithDir(dir))
	_, err := holder.Lock()
	require.NoError(t, err)
	defer holder.Release(false)

	m := aspect.New()
	aspect.Insert(m, NewLimitSingleInstance(instance.New(id, instance.WithDir(dir)), nil))

	ran := false
	code, err := Launch(Common(), AppFunc(func(*aspect.Map) int { ran = true; return 1 }), m,
		WithLogger(logger.Discard()), WithSignalSource(binder.NewManualSource()))
	require.NoError(t, err)
	assert.Zero(t, code)
	assert.False(t, ran)
	assert.True(t, holder.Owns())
}

func TestLaunch_SingleInstanceCallbackDecides(t *testing.T) {
	dir := t.TempDir()
	id := uuid.New()
	holder := instance.New(id, instance.WithDir(dir))
	_, err := holder.Lock()
	require.NoError(t, err)
	defer holder.Release(false)

	for _, allow := range []bool{false, true} {
		m := aspect.New()
		asked := false
		aspect.Insert(m, NewLimitSingleInstance(instance.New(id, instance.WithDir(dir)), func() bool {
			asked = true
			return allow
		}))

		code, err := Launch(Common(), AppFunc(func(*aspect.Map) int { return 3 }), m,
			WithLogger(logger.Discard()), WithSignalSource(binder.NewManualSource()))
		require.NoError(t, err)
		assert.True(t, asked)
		if allow {
			assert.Equal(t, 3, code)
		} else {
			assert.Zero(t, code)
		}
	}
	assert.True(t, holder.Owns(), "a second instance never steals the lock")
}

func TestLaunch_ReleasesInstanceLockOnReturn(t *testing.T) {
	g := instance.New(uuid.New(), instance.WithDir(t.TempDir()))
	m := aspect.New()
	aspect.Insert(m, NewLimitSingleInstance(g, nil))

	var ownedWhileRunning bool
	_, err := Launch(Common(), AppFunc(func(*aspect.Map) int {
		ownedWhileRunning = g.Owns()
		return 0
	}), m, WithLogger(logger.Discard()), WithSignalSource(binder.NewManualSource()))
	require.NoError(t, err)
	assert.True(t, ownedWhileRunning)
	assert.False(t, g.Owns())
}

// fakeDaemonizer stands in for the re-exec detach.
type fakeDaemonizer struct {
	child bool
	err   error
	calls int
}

func (f *fakeDaemonizer) Daemonize() (int, bool, error) {
	f.calls++
	return 4242, f.child, f.err
}

type notifications struct {
	mu   sync.Mutex
	sent []string
}

func (n *notifications) list() []string {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]string(nil), n.sent...)
}

func fakeServerEnv(t *testing.T, d *fakeDaemonizer, child bool) *notifications {
	t.Helper()
	n := &notifications{}
	oldD, oldChild, oldNotify := newDaemonizer, isDaemonChild, sdNotify
	newDaemonizer = func(serverConfig) daemonizer { return d }
	isDaemonChild = func() bool { return child }
	sdNotify = func(_ bool, state string) (bool, error) {
		n.mu.Lock()
		n.sent = append(n.sent, state)
		n.mu.Unlock()
		return true, nil
	}
	t.Cleanup(func() {
		newDaemonizer, isDaemonChild, sdNotify = oldD, oldChild, oldNotify
	})
	return n
}

func TestServer_ParentReturnsWithoutRunning(t *testing.T) {
	d := &fakeDaemonizer{child: false}
	fakeServerEnv(t, d, false)

	ran := false
	code, err := Launch(Server(), AppFunc(func(*aspect.Map) int { ran = true; return 1 }), aspect.New(),
		WithLogger(logger.Discard()), WithSignalSource(binder.NewManualSource()))
	require.NoError(t, err)
	assert.Zero(t, code)
	assert.False(t, ran)
	assert.Equal(t, 1, d.calls)
}

func TestServer_ParentHandsInstanceLockOver(t *testing.T) {
	d := &fakeDaemonizer{child: false}
	fakeServerEnv(t, d, false)

	g := instance.New(uuid.New(), instance.WithDir(t.TempDir()))
	m := aspect.New()
	aspect.Insert(m, NewLimitSingleInstance(g, nil))

	_, err := Launch(Server(), AppFunc(func(*aspect.Map) int { return 0 }), m,
		WithLogger(logger.Discard()), WithSignalSource(binder.NewManualSource()))
	require.NoError(t, err)
	assert.False(t, g.Owns())
}

func TestServer_HandshakeFailure(t *testing.T) {
	cause := errors.New(errors.ErrCodeDaemonize, "Daemonize", "start detached process", stderrors.New("fork failed"))
	d := &fakeDaemonizer{err: cause}
	fakeServerEnv(t, d, false)
	app := AppFunc(func(*aspect.Map) int { return 1 })

	code, err := Launch(Server(), app, aspect.New(),
		WithLogger(logger.Discard()), WithSignalSource(binder.NewManualSource()))
	assert.Zero(t, code)
	require.Error(t, err)
	assert.Equal(t, errors.ErrCodeDaemonize, errors.CodeOf(err))
	assert.False(t, errors.IsLogic(err))

	assert.PanicsWithValue(t, cause, func() {
		MustLaunch(Server(), app, aspect.New(),
			WithLogger(logger.Discard()), WithSignalSource(binder.NewManualSource()))
	})
}

func TestServer_ChildRunsAndNotifiesSystemd(t *testing.T) {
	d := &fakeDaemonizer{child: true}
	n := fakeServerEnv(t, d, true)

	src := binder.NewManualSource()
	ready := make(chan struct{})
	seen := make(chan consts.Status, 1)
	m := aspect.New()

	res := launchAsync(Server(), waitingApp(ready, seen, 9), m, WithSignalSource(src))
	<-ready
	assert.Equal(t, consts.ModeServer, aspect.Find[RunMode](m).Mode)
	require.Equal(t, 1, src.Send(syscall.SIGTERM))

	r := await(t, res)
	require.NoError(t, r.err)
	assert.Equal(t, 9, r.code)
	assert.Equal(t, consts.StatusStopped, <-seen)
	assert.Equal(t, []string{daemon.SdNotifyReady, daemon.SdNotifyStopping}, n.list())
}

func TestServer_ForegroundSkipsDetach(t *testing.T) {
	d := &fakeDaemonizer{}
	fakeServerEnv(t, d, false)

	code, err := Launch(Server(Foreground(true)), AppFunc(func(*aspect.Map) int { return 2 }), aspect.New(),
		WithLogger(logger.Discard()), WithSignalSource(binder.NewManualSource()))
	require.NoError(t, err)
	assert.Equal(t, 2, code)
	assert.Zero(t, d.calls)
}

func TestServer_AppPanicReachesCaller(t *testing.T) {
	fakeServerEnv(t, &fakeDaemonizer{}, false)
	m := aspect.New()

	assert.PanicsWithValue(t, "app exploded", func() {
		Launch(Server(Foreground(true)), AppFunc(func(*aspect.Map) int { panic("app exploded") }), m,
			WithLogger(logger.Discard()), WithSignalSource(binder.NewManualSource()))
	})
	assert.Equal(t, consts.StatusStopped, aspect.Find[Status](m).Get(), "process is finalized on the way out")
}

func TestServer_ArgsReachDaemonizer(t *testing.T) {
	cfg := serverConfig{}
	WithArgs("run", "--config", "/etc/appkit.yaml")(&cfg)

	d, ok := newDaemonizer(cfg).(*supervisor.Daemonizer)
	require.True(t, ok)
	assert.Equal(t, []string{"run", "--config", "/etc/appkit.yaml"}, d.Args)

	// without the option the copy gets the current arguments
	d, ok = newDaemonizer(serverConfig{}).(*supervisor.Daemonizer)
	require.True(t, ok)
	assert.NotNil(t, d.Args)
}

func TestFromConfig(t *testing.T) {
	cfg, err := protocol.Parse([]byte(`
app:
  name: demo
  single_instance: true
  lock_dir: ` + t.TempDir() + `
mode: server
server:
  foreground: true
  log_file: /tmp/demo.log
`))
	require.NoError(t, err)

	m := aspect.New()
	mode := FromConfig(cfg, m)
	assert.Equal(t, consts.ModeServer, mode.RunMode())
	s, ok := mode.(*server)
	require.True(t, ok)
	assert.True(t, s.foreground)
	assert.Equal(t, "demo", s.name)
	assert.Equal(t, "/tmp/demo.log", s.logFile)

	l := aspect.Find[LimitSingleInstance](m)
	require.NotNil(t, l)
	assert.Equal(t, cfg.AppID(), l.Guard.ID())

	assert.Equal(t, consts.ModeCommon, FromConfig(&protocol.Config{}, aspect.New()).RunMode())
}
