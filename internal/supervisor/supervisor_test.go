package supervisor

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/CodexForgeBR/autobattle/internal/battle"
	"github.com/CodexForgeBR/autobattle/internal/expansion"
	"github.com/CodexForgeBR/autobattle/internal/notification"
)

func TestMain(m *testing.M) {
	color.NoColor = true
	goleak.VerifyTestMain(m)
}

// MockRunner blocks until its context is canceled.
type MockRunner struct {
	started  chan struct{}
	once     sync.Once
	OnRun    func(ctx context.Context)
	Ignore   bool // keep running after cancel until Release is closed
	Release  chan struct{}
	reloads  int
	mu       sync.Mutex
	stats    battle.Stats
	PanicMsg string
}

func newMockRunner() *MockRunner {
	return &MockRunner{started: make(chan struct{}), Release: make(chan struct{})}
}

func (m *MockRunner) Run(ctx context.Context) battle.Stats {
	m.once.Do(func() { close(m.started) })
	if m.PanicMsg != "" {
		panic(m.PanicMsg)
	}
	if m.OnRun != nil {
		m.OnRun(ctx)
	}
	<-ctx.Done()
	if m.Ignore {
		<-m.Release
	}
	return battle.Stats{Cycles: 3, Successes: 2, Failures: 1}
}

func (m *MockRunner) Reload() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.reloads++
	return nil
}

func (m *MockRunner) Reloads() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.reloads
}

func (m *MockRunner) Stats() battle.Stats {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.stats
}

// eventLog collects notifications.
type eventLog struct {
	mu     sync.Mutex
	events []Event
}

func (l *eventLog) add(ev Event) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.events = append(l.events, ev)
}

func (l *eventLog) kinds() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	var out []string
	for _, ev := range l.events {
		out = append(out, ev.Kind)
	}
	return out
}

type harness struct {
	sup     *Supervisor
	mu      sync.Mutex
	runners map[int]*MockRunner
	events  *eventLog
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	fs := afero.NewMemMapFs()
	require.NoError(t, fs.MkdirAll("/templates/battle", 0755))

	h := &harness{runners: map[int]*MockRunner{}, events: &eventLog{}}
	h.sup = New(func(slot int, device string) (Runner, error) {
		h.mu.Lock()
		defer h.mu.Unlock()
		r, ok := h.runners[slot]
		if !ok {
			r = newMockRunner()
			h.runners[slot] = r
		}
		return r, nil
	}, func(ctx context.Context, device string) error { return nil }, "/templates")
	h.sup.Fs = fs
	h.sup.Notify = h.events.add
	h.sup.JoinTimeout = 100 * time.Millisecond
	t.Cleanup(func() {
		h.sup.StopAll()
		h.mu.Lock()
		for _, r := range h.runners {
			select {
			case <-r.Release:
			default:
				close(r.Release)
			}
		}
		h.mu.Unlock()
		h.sup.Wait(2 * time.Second)
	})
	return h
}

func (h *harness) runner(slot int) *MockRunner {
	h.mu.Lock()
	defer h.mu.Unlock()
	r, ok := h.runners[slot]
	if !ok {
		r = newMockRunner()
		h.runners[slot] = r
	}
	return r
}

// ---------------------------------------------------------------------------
// Start validation
// ---------------------------------------------------------------------------

func TestStartRejectsInvalidSlot(t *testing.T) {
	h := newHarness(t)
	for _, slot := range []int{-1, MaxSlots} {
		err := h.sup.Start(slot, "emulator-5554")
		assert.ErrorIs(t, err, ErrInvalidSlot)
	}
}

func TestStartRejectsEmptyDevice(t *testing.T) {
	h := newHarness(t)
	assert.ErrorIs(t, h.sup.Start(0, "   "), ErrInvalidDevice)
	assert.False(t, h.sup.Has(0))
}

func TestStartRejectsBusySlot(t *testing.T) {
	h := newHarness(t)
	require.NoError(t, h.sup.Start(0, "emulator-5554"))
	assert.ErrorIs(t, h.sup.Start(0, "emulator-5556"), ErrSlotBusy)
	assert.Equal(t, "emulator-5554", h.sup.Status(0).Device)
}

func TestStartConnectionFailure(t *testing.T) {
	h := newHarness(t)
	h.sup.Prober = func(ctx context.Context, device string) error { return errors.New("offline") }

	err := h.sup.Start(1, "127.0.0.1:5595")
	require.ErrorIs(t, err, ErrDeviceUnreachable)
	assert.Contains(t, err.Error(), "offline")

	st := h.sup.Status(1)
	assert.Equal(t, StatusConnectionFailed, st.Status)
	assert.False(t, st.Running)
	assert.False(t, st.IsConnected)
	assert.Equal(t, []string{notification.EventConnectionFailed}, h.events.kinds())

	// A failed slot can be started again.
	h.sup.Prober = nil
	assert.NoError(t, h.sup.Start(1, "127.0.0.1:5595"))
}

func TestStartMissingTemplateDir(t *testing.T) {
	h := newHarness(t)
	h.sup.TemplateDir = "/missing"

	err := h.sup.Start(0, "emulator-5554")
	require.ErrorIs(t, err, ErrTemplateDir)
	assert.Equal(t, StatusTemplateError, h.sup.Status(0).Status)
}

func TestStartFactoryFailure(t *testing.T) {
	h := newHarness(t)
	h.sup.Factory = func(slot int, device string) (Runner, error) {
		return nil, errors.New("corrupt state")
	}

	err := h.sup.Start(2, "emulator-5554")
	require.ErrorIs(t, err, ErrInit)
	st := h.sup.Status(2)
	assert.Equal(t, StatusInitFailed, st.Status)
	assert.Contains(t, st.Err, "corrupt state")
}

// ---------------------------------------------------------------------------
// Lifecycle
// ---------------------------------------------------------------------------

func TestStartStopLifecycle(t *testing.T) {
	h := newHarness(t)
	assert.Equal(t, StatusIdle, h.sup.Status(0).Status)
	assert.False(t, h.sup.Status(0).IsConnected)

	require.NoError(t, h.sup.Start(0, "emulator-5554"))
	<-h.runner(0).started

	st := h.sup.Status(0)
	assert.Equal(t, StatusRunning, st.Status)
	assert.True(t, st.Running)
	assert.True(t, st.IsConnected)
	assert.Len(t, st.RunID, 26)
	assert.False(t, st.StartedAt.IsZero())
	assert.Equal(t, 1, h.sup.RunningCount())

	h.sup.Stop(0)
	require.True(t, h.sup.Wait(time.Second))

	st = h.sup.Status(0)
	assert.Equal(t, StatusStopped, st.Status)
	assert.False(t, st.Running)
	assert.Equal(t, battle.Stats{Cycles: 3, Successes: 2, Failures: 1}, st.Stats)
	assert.Zero(t, h.sup.RunningCount())
	assert.Equal(t, []string{notification.EventStarted, notification.EventStopped}, h.events.kinds())
}

func TestRunIDsAreUnique(t *testing.T) {
	h := newHarness(t)
	require.NoError(t, h.sup.Start(0, "a"))
	require.NoError(t, h.sup.Start(1, "b"))
	assert.NotEqual(t, h.sup.Status(0).RunID, h.sup.Status(1).RunID)
}

func TestStopUnknownSlotIsNoop(t *testing.T) {
	h := newHarness(t)
	h.sup.Stop(3)
	h.sup.Stop(42)
	assert.False(t, h.sup.Has(3))
}

func TestPanicIsRecovered(t *testing.T) {
	h := newHarness(t)
	h.runner(1).PanicMsg = "index out of range"

	require.NoError(t, h.sup.Start(1, "emulator-5554"))
	require.True(t, h.sup.Wait(time.Second))

	st := h.sup.Status(1)
	assert.Equal(t, StatusError, st.Status)
	assert.Contains(t, st.Err, "index out of range")
	assert.Contains(t, h.events.kinds(), notification.EventCrashed)
}

func TestRemoveWaitsForSlot(t *testing.T) {
	h := newHarness(t)
	require.NoError(t, h.sup.Start(0, "emulator-5554"))

	require.NoError(t, h.sup.Remove(0))
	assert.False(t, h.sup.Has(0))
	assert.Equal(t, StatusIdle, h.sup.Status(0).Status)
}

func TestRemoveJoinTimeout(t *testing.T) {
	h := newHarness(t)
	r := h.runner(0)
	r.Ignore = true

	require.NoError(t, h.sup.Start(0, "emulator-5554"))
	start := time.Now()
	require.NoError(t, h.sup.Remove(0))

	elapsed := time.Since(start)
	assert.GreaterOrEqual(t, elapsed, 100*time.Millisecond)
	assert.Less(t, elapsed, time.Second)
	assert.False(t, h.sup.Has(0))

	// The slot can be reused while the old goroutine winds down.
	h.mu.Lock()
	delete(h.runners, 0)
	h.mu.Unlock()
	require.NoError(t, h.sup.Start(0, "emulator-5554"))
	close(r.Release)
}

func TestStopWhileConnectingNeverLaunchesRunner(t *testing.T) {
	h := newHarness(t)
	gate := make(chan struct{})
	entered := make(chan struct{})
	h.sup.Prober = func(ctx context.Context, device string) error {
		close(entered)
		<-gate // ignores ctx, like a device check stuck in a syscall
		return nil
	}
	r := h.runner(0)

	started := make(chan error, 1)
	go func() { started <- h.sup.Start(0, "emulator-5554") }()
	<-entered
	assert.Equal(t, StatusConnecting, h.sup.Status(0).Status)

	h.sup.Stop(0)
	require.NoError(t, h.sup.Remove(0))
	assert.False(t, h.sup.Has(0))
	close(gate)

	select {
	case err := <-started:
		assert.ErrorIs(t, err, ErrStopped)
	case <-time.After(time.Second):
		t.Fatal("Start did not return")
	}
	select {
	case <-r.started:
		t.Fatal("runner launched after Stop")
	default:
	}
	assert.False(t, h.sup.Has(0))
	assert.Zero(t, h.sup.RunningCount())
	assert.NotContains(t, h.events.kinds(), notification.EventStarted)

	h.sup.Prober = nil
	require.NoError(t, h.sup.Start(0, "emulator-5554"))
	<-r.started
	assert.Equal(t, 1, h.sup.RunningCount())
}

func TestStopWhileInitializingAbortsStart(t *testing.T) {
	h := newHarness(t)
	gate := make(chan struct{})
	entered := make(chan struct{})
	r := newMockRunner()
	h.sup.Factory = func(slot int, device string) (Runner, error) {
		close(entered)
		<-gate
		return r, nil
	}

	started := make(chan error, 1)
	go func() { started <- h.sup.Start(2, "emulator-5554") }()
	<-entered
	assert.Equal(t, StatusInitializing, h.sup.Status(2).Status)

	h.sup.Stop(2)
	close(gate)
	require.ErrorIs(t, <-started, ErrStopped)

	st := h.sup.Status(2)
	assert.Equal(t, StatusStopped, st.Status)
	assert.False(t, st.Running)
	require.True(t, h.sup.Wait(time.Second))
	select {
	case <-r.started:
		t.Fatal("runner launched after Stop")
	default:
	}
}

func TestStopInterruptsDeviceCheck(t *testing.T) {
	h := newHarness(t)
	entered := make(chan struct{})
	h.sup.Prober = func(ctx context.Context, device string) error {
		close(entered)
		<-ctx.Done()
		return ctx.Err()
	}

	started := make(chan error, 1)
	go func() { started <- h.sup.Start(1, "127.0.0.1:5595") }()
	<-entered
	h.sup.Stop(1)

	require.ErrorIs(t, <-started, ErrStopped)
	assert.Equal(t, StatusStopped, h.sup.Status(1).Status)
	assert.NotContains(t, h.events.kinds(), notification.EventConnectionFailed)
}

func TestStartAllStopAllAnyOrder(t *testing.T) {
	h := newHarness(t)
	errs := h.sup.StartAll(map[int]string{
		0: "emulator-5554",
		1: "emulator-5556",
		2: "127.0.0.1:5595",
		3: "127.0.0.1:5605",
	})
	assert.Empty(t, errs)
	assert.Equal(t, MaxSlots, h.sup.RunningCount())

	for _, slot := range []int{2, 0, 3, 1} {
		h.sup.Stop(slot)
	}
	require.True(t, h.sup.Wait(time.Second))
	for _, st := range h.sup.Statuses() {
		assert.Equal(t, StatusStopped, st.Status)
	}
}

func TestStartAllReportsFailures(t *testing.T) {
	h := newHarness(t)
	errs := h.sup.StartAll(map[int]string{0: "ok", 1: "", 7: "x"})

	assert.Len(t, errs, 2)
	assert.ErrorIs(t, errs[1], ErrInvalidDevice)
	assert.ErrorIs(t, errs[7], ErrInvalidSlot)
	assert.Equal(t, 1, h.sup.RunningCount())
}

func TestWaitTimesOut(t *testing.T) {
	h := newHarness(t)
	require.NoError(t, h.sup.Start(0, "emulator-5554"))
	assert.False(t, h.sup.Wait(20*time.Millisecond))
}

func TestNotifyResetReloadsRunningSlots(t *testing.T) {
	h := newHarness(t)
	require.NoError(t, h.sup.Start(0, "a"))
	require.NoError(t, h.sup.Start(2, "b"))

	h.sup.NotifyReset([]int{0, 1})
	assert.Equal(t, 1, h.runner(0).Reloads())
	assert.Zero(t, h.runner(2).Reloads())
}

func TestStatusesListsEverySlot(t *testing.T) {
	h := newHarness(t)
	require.NoError(t, h.sup.Start(1, "emulator-5556"))

	sts := h.sup.Statuses()
	require.Len(t, sts, MaxSlots)
	for i, st := range sts {
		assert.Equal(t, i, st.Slot)
	}
	assert.Equal(t, StatusIdle, sts[0].Status)
	assert.Equal(t, StatusRunning, sts[1].Status)
}

// ---------------------------------------------------------------------------
// Shared persistence
// ---------------------------------------------------------------------------

func TestConcurrentSlotsPersistOnlyTheirOwnEntries(t *testing.T) {
	fs := afero.NewMemMapFs()
	require.NoError(t, fs.MkdirAll("/templates", 0755))
	store := expansion.NewStore(fs, "/completed_expansions.json")
	catalogs := expansion.DefaultCatalogs()

	var marked sync.WaitGroup
	sup := New(func(slot int, device string) (Runner, error) {
		tracker, err := expansion.NewTracker(store, slot, catalogs)
		if err != nil {
			return nil, err
		}
		r := newMockRunner()
		r.OnRun = func(ctx context.Context) {
			defer marked.Done()
			for _, key := range catalogs[0].Keys()[:slot+1] {
				if err := tracker.MarkComplete(key); err != nil {
					panic(fmt.Sprintf("save: %v", err))
				}
			}
		}
		return r, nil
	}, nil, "/templates")
	sup.Fs = fs

	marked.Add(2)
	errs := sup.StartAll(map[int]string{1: "emulator-5556", 3: "emulator-5560"})
	require.Empty(t, errs)
	marked.Wait()
	sup.StopAll()
	require.True(t, sup.Wait(time.Second))

	all, err := store.LoadAll()
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, 2, all[1].Len())
	assert.Equal(t, 4, all[3].Len())
}
