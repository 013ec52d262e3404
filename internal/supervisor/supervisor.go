// Package supervisor runs up to four independent bot instances, one per slot,
// each bound to its own device, and reports their status.
package supervisor

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/sourcegraph/conc"
	"github.com/sourcegraph/conc/panics"
	"github.com/spf13/afero"

	"github.com/CodexForgeBR/autobattle/internal/battle"
	"github.com/CodexForgeBR/autobattle/internal/expansion"
	"github.com/CodexForgeBR/autobattle/internal/logging"
	"github.com/CodexForgeBR/autobattle/internal/notification"
)

// MaxSlots is the number of bot instances that can run at once.
const MaxSlots = expansion.MaxSlots

// DefaultJoinTimeout bounds how long Remove waits for a stopping slot.
const DefaultJoinTimeout = 3 * time.Second

// DefaultProbeTimeout bounds the device check in Start.
const DefaultProbeTimeout = 15 * time.Second

var (
	ErrInvalidSlot       = errors.New("invalid slot")
	ErrInvalidDevice     = errors.New("device serial is empty")
	ErrSlotBusy          = errors.New("slot is already running")
	ErrDeviceUnreachable = errors.New("device unreachable")
	ErrTemplateDir       = errors.New("template directory not found")
	ErrInit              = errors.New("initialization failed")
	ErrStopped           = errors.New("stopped before running")
)

// Slot status values shown to the user.
const (
	StatusIdle             = "Idle"
	StatusConnecting       = "Connecting"
	StatusConnectionFailed = "Connection Failed"
	StatusTemplateError    = "Template Error"
	StatusInitializing     = "Initializing"
	StatusInitFailed       = "Initialization Failed"
	StatusRunning          = "Running"
	StatusStopping         = "Stopping..."
	StatusStopped          = "Stopped"
	StatusError            = "Error"
)

// Runner is one bot instance. Run blocks until ctx is done.
type Runner interface {
	Run(ctx context.Context) battle.Stats
}

// Reloader is implemented by runners that can re-read their persisted state.
type Reloader interface {
	Reload() error
}

// StatsReporter is implemented by runners that expose live counters.
type StatsReporter interface {
	Stats() battle.Stats
}

// Factory builds the runner of a slot once its device answered.
type Factory func(slot int, device string) (Runner, error)

// Prober checks that a device is reachable.
type Prober func(ctx context.Context, device string) error

// Event is passed to Supervisor.Notify on slot lifecycle changes. Kind is
// one of the notification event names.
type Event struct {
	Kind   string
	Slot   int
	Device string
	RunID  string
	Detail string
}

// StatusInfo is a snapshot of one slot.
type StatusInfo struct {
	Slot        int
	Device      string
	Status      string
	Running     bool
	IsConnected bool
	RunID       string
	StartedAt   time.Time
	Err         string
	Stats       battle.Stats
}

type slotState struct {
	device    string
	status    string
	active    bool
	running   bool
	connected bool
	runID     string
	started   time.Time
	err       string
	stats     battle.Stats
	runner    Runner
	cancel    context.CancelFunc
	done      chan struct{}
}

// Supervisor owns the slots. All methods are safe for concurrent use.
type Supervisor struct {
	Factory      Factory
	Prober       Prober
	TemplateDir  string
	Fs           afero.Fs
	Notify       func(Event)
	JoinTimeout  time.Duration
	ProbeTimeout time.Duration

	mu    sync.RWMutex
	slots map[int]*slotState
}

// New returns a Supervisor checking templateDir on the OS filesystem.
func New(factory Factory, prober Prober, templateDir string) *Supervisor {
	return &Supervisor{
		Factory:      factory,
		Prober:       prober,
		TemplateDir:  templateDir,
		Fs:           afero.NewOsFs(),
		JoinTimeout:  DefaultJoinTimeout,
		ProbeTimeout: DefaultProbeTimeout,
		slots:        make(map[int]*slotState),
	}
}

func (s *Supervisor) notify(ev Event) {
	if s.Notify != nil {
		s.Notify(ev)
	}
}

func (s *Supervisor) setStatus(st *slotState, status string) {
	s.mu.Lock()
	st.status = status
	s.mu.Unlock()
}

// fail records a failed start and frees the slot.
func (s *Supervisor) fail(st *slotState, status string, err error) error {
	s.mu.Lock()
	st.status = status
	st.active = false
	st.err = err.Error()
	s.mu.Unlock()
	st.cancel()
	close(st.done)
	return err
}

// abortLocked ends a start that was stopped before its runner launched.
// s.mu must be held.
func (s *Supervisor) abortLocked(st *slotState) error {
	st.status = StatusStopped
	st.active = false
	st.connected = false
	close(st.done)
	return fmt.Errorf("%w: %s", ErrStopped, st.device)
}

// stopped reports whether ctx was canceled and, if so, aborts the start.
func (s *Supervisor) stopped(ctx context.Context, st *slotState) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if ctx.Err() == nil {
		return nil
	}
	return s.abortLocked(st)
}

// Start connects the slot to device and launches its runner in the
// background. It returns once the runner is running or the start failed.
// A Stop or Remove issued while the slot is connecting or initializing
// aborts the start with ErrStopped.
func (s *Supervisor) Start(slot int, device string) error {
	if !expansion.ValidSlot(slot) {
		return fmt.Errorf("%w: %d (must be 1-%d)", ErrInvalidSlot, slot+1, MaxSlots)
	}
	device = strings.TrimSpace(device)
	if device == "" {
		return ErrInvalidDevice
	}

	s.mu.Lock()
	if s.slots == nil {
		s.slots = make(map[int]*slotState)
	}
	if cur, ok := s.slots[slot]; ok && cur.active {
		s.mu.Unlock()
		return fmt.Errorf("%w: bot %d", ErrSlotBusy, slot+1)
	}
	ctx, cancel := context.WithCancel(context.Background())
	st := &slotState{
		device: device,
		status: StatusConnecting,
		active: true,
		cancel: cancel,
		done:   make(chan struct{}),
	}
	s.slots[slot] = st
	s.mu.Unlock()

	log := logging.ForSlot(slot)
	log.Infof("Connecting to %s", device)

	if s.Prober != nil {
		timeout := s.ProbeTimeout
		if timeout <= 0 {
			timeout = DefaultProbeTimeout
		}
		pctx, pcancel := context.WithTimeout(ctx, timeout)
		err := s.Prober(pctx, device)
		pcancel()
		if serr := s.stopped(ctx, st); serr != nil {
			log.Info("Stopped while connecting")
			return serr
		}
		if err != nil {
			log.Errorf("Device %s unreachable: %v", device, err)
			s.notify(Event{Kind: notification.EventConnectionFailed, Slot: slot, Device: device, Detail: err.Error()})
			return s.fail(st, StatusConnectionFailed, fmt.Errorf("%w: %s: %w", ErrDeviceUnreachable, device, err))
		}
	}

	fs := s.Fs
	if fs == nil {
		fs = afero.NewOsFs()
	}
	if ok, _ := afero.DirExists(fs, s.TemplateDir); !ok {
		log.Errorf("Template directory %s not found", s.TemplateDir)
		return s.fail(st, StatusTemplateError, fmt.Errorf("%w: %s", ErrTemplateDir, s.TemplateDir))
	}

	s.mu.Lock()
	if ctx.Err() != nil {
		err := s.abortLocked(st)
		s.mu.Unlock()
		return err
	}
	st.status = StatusInitializing
	s.mu.Unlock()

	runner, err := s.Factory(slot, device)
	if err != nil {
		if serr := s.stopped(ctx, st); serr != nil {
			return serr
		}
		log.Errorf("Initialization failed: %v", err)
		return s.fail(st, StatusInitFailed, fmt.Errorf("%w: %w", ErrInit, err))
	}

	runID := ulid.Make().String()

	s.mu.Lock()
	if ctx.Err() != nil {
		err := s.abortLocked(st)
		s.mu.Unlock()
		log.Info("Stopped while initializing")
		return err
	}
	st.status = StatusRunning
	st.running = true
	st.connected = true
	st.runID = runID
	st.started = time.Now()
	st.runner = runner
	s.mu.Unlock()

	log.Successf("Running on %s (run %s)", device, runID)
	s.notify(Event{Kind: notification.EventStarted, Slot: slot, Device: device, RunID: runID})

	go s.run(ctx, slot, st)
	return nil
}

func (s *Supervisor) run(ctx context.Context, slot int, st *slotState) {
	defer close(st.done)
	log := logging.ForSlot(slot)

	var pc panics.Catcher
	var stats battle.Stats
	pc.Try(func() { stats = st.runner.Run(ctx) })
	st.cancel()

	ev := Event{Slot: slot, Device: st.device, RunID: st.runID}
	s.mu.Lock()
	st.running = false
	st.active = false
	st.connected = false
	st.stats = stats
	if rec := pc.Recovered(); rec != nil {
		st.status = StatusError
		st.err = fmt.Sprint(rec.Value)
		ev.Kind = notification.EventCrashed
		ev.Detail = st.err
		s.mu.Unlock()
		log.Errorf("Bot crashed: %v", rec.Value)
		log.Debug(string(rec.Stack))
	} else {
		st.status = StatusStopped
		ev.Kind = notification.EventStopped
		ev.Detail = fmt.Sprintf("%d cycles, %d completed", stats.Cycles, stats.Successes)
		s.mu.Unlock()
		log.Info("Bot stopped")
	}
	s.notify(ev)
}

// Stop asks the slot to stop and returns immediately. A slot that is still
// connecting or initializing never launches its runner. Unknown or idle
// slots are ignored.
func (s *Supervisor) Stop(slot int) {
	s.mu.Lock()
	st, ok := s.slots[slot]
	if !ok || !st.active {
		s.mu.Unlock()
		return
	}
	st.status = StatusStopping
	cancel := st.cancel
	s.mu.Unlock()

	logging.ForSlot(slot).Info("Stopping")
	cancel()
}

// Remove stops the slot, waits up to JoinTimeout for it to finish and
// forgets it. A slot that does not finish in time is forgotten anyway; it
// exits at its next stop check.
func (s *Supervisor) Remove(slot int) error {
	if !expansion.ValidSlot(slot) {
		return fmt.Errorf("%w: %d (must be 1-%d)", ErrInvalidSlot, slot+1, MaxSlots)
	}
	s.Stop(slot)

	s.mu.RLock()
	st, ok := s.slots[slot]
	var done chan struct{}
	if ok {
		done = st.done
	}
	s.mu.RUnlock()

	if done != nil {
		timeout := s.JoinTimeout
		if timeout <= 0 {
			timeout = DefaultJoinTimeout
		}
		t := time.NewTimer(timeout)
		select {
		case <-done:
			t.Stop()
		case <-t.C:
			logging.ForSlot(slot).Warnf("Did not stop within %s, removing anyway", timeout)
		}
	}

	s.mu.Lock()
	if s.slots[slot] == st {
		delete(s.slots, slot)
	}
	s.mu.Unlock()
	return nil
}

// StartAll starts one slot per entry of devices and returns the errors of
// the slots that failed. Slots are started concurrently.
func (s *Supervisor) StartAll(devices map[int]string) map[int]error {
	var (
		mu   sync.Mutex
		errs = make(map[int]error)
		wg   conc.WaitGroup
	)
	for slot, device := range devices {
		wg.Go(func() {
			if err := s.Start(slot, device); err != nil {
				mu.Lock()
				errs[slot] = err
				mu.Unlock()
			}
		})
	}
	wg.Wait()
	return errs
}

// StopAll asks every slot to stop and returns immediately.
func (s *Supervisor) StopAll() {
	for slot := 0; slot < MaxSlots; slot++ {
		s.Stop(slot)
	}
}

// Wait blocks until every started slot finished or timeout passed, and
// reports whether all finished.
func (s *Supervisor) Wait(timeout time.Duration) bool {
	s.mu.RLock()
	var dones []chan struct{}
	for _, st := range s.slots {
		if st.done != nil {
			dones = append(dones, st.done)
		}
	}
	s.mu.RUnlock()

	finished := make(chan struct{})
	go func() {
		var wg conc.WaitGroup
		for _, d := range dones {
			wg.Go(func() { <-d })
		}
		wg.Wait()
		close(finished)
	}()

	t := time.NewTimer(timeout)
	defer t.Stop()
	select {
	case <-finished:
		return true
	case <-t.C:
		return false
	}
}

// NotifyReset reloads the completion sets of the given running slots after
// they were reset on disk.
func (s *Supervisor) NotifyReset(slots []int) {
	for _, slot := range slots {
		s.mu.RLock()
		st, ok := s.slots[slot]
		var r Runner
		if ok && st.running {
			r = st.runner
		}
		s.mu.RUnlock()

		rl, ok := r.(Reloader)
		if !ok {
			continue
		}
		if err := rl.Reload(); err != nil {
			logging.ForSlot(slot).Warnf("Reload after reset failed: %v", err)
			continue
		}
		logging.ForSlot(slot).Info("Completed expansions were reset")
	}
}

// Status returns a snapshot of one slot. Slots never started are Idle.
func (s *Supervisor) Status(slot int) StatusInfo {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.statusLocked(slot)
}

// Statuses returns a snapshot of every slot in order.
func (s *Supervisor) Statuses() []StatusInfo {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]StatusInfo, MaxSlots)
	for slot := range out {
		out[slot] = s.statusLocked(slot)
	}
	return out
}

func (s *Supervisor) statusLocked(slot int) StatusInfo {
	st, ok := s.slots[slot]
	if !ok {
		return StatusInfo{Slot: slot, Status: StatusIdle}
	}
	info := StatusInfo{
		Slot:        slot,
		Device:      st.device,
		Status:      st.status,
		Running:     st.running,
		IsConnected: st.connected,
		RunID:       st.runID,
		StartedAt:   st.started,
		Err:         st.err,
		Stats:       st.stats,
	}
	if sr, ok := st.runner.(StatsReporter); ok && st.running {
		info.Stats = sr.Stats()
	}
	return info
}

// RunningCount returns the number of slots whose runner is running.
func (s *Supervisor) RunningCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	n := 0
	for _, st := range s.slots {
		if st.running {
			n++
		}
	}
	return n
}

// Has reports whether slot was started and not removed.
func (s *Supervisor) Has(slot int) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.slots[slot]
	return ok
}
