package clipboard

import (
	"errors"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	"go.uber.org/zap"

	"github.com/berrythewa/snipsave-daemon/internal/heuristics"
	"github.com/berrythewa/snipsave-daemon/internal/types"
)

// State is the monitor lifecycle state.
type State string

const (
	StateIdle        State = "idle"
	StateSubscribed  State = "subscribed"
	StateDispatching State = "dispatching"
	StateStopped     State = "stopped"
)

// Settings are the monitor knobs that can change at runtime.
type Settings struct {
	// Debounce coalesces notifications for the same clipboard sequence
	// number arriving within this window. Some platforms fire several
	// notifications per logical clipboard write.
	Debounce time.Duration
	// SettleDelay is waited before opening the clipboard after a
	// notification, so the screenshot overlay can release it first.
	SettleDelay time.Duration
}

// Monitor owns the clipboard-change subscription and runs the classify-then-
// save pipeline sequentially, one notification at a time, on a single
// goroutine. Sequential processing keeps the dedup state free of races and
// keeps classification order equal to notification order.
type Monitor struct {
	logger *zap.Logger
	clock  clock.Clock

	source ChangeSource
	reader FormatReader
	probe  ContextProbe
	engine *heuristics.Engine
	saver  Saver
	dedup  *types.DedupState

	mu       sync.Mutex
	state    State
	settings Settings

	// Pipeline bookkeeping, touched only by the run goroutine.
	lastSeq    uint32
	lastSeqAt  time.Time
	seenSeq    bool
	lastSaveAt time.Time

	saved    chan types.SavedEvent
	rejected chan types.RejectedEvent

	done    chan struct{}
	stopped chan struct{}
	wg      sync.WaitGroup
}

// MonitorOptions bundles the collaborators of a Monitor.
type MonitorOptions struct {
	Logger   *zap.Logger
	Clock    clock.Clock
	Source   ChangeSource
	Reader   FormatReader
	Probe    ContextProbe
	Engine   *heuristics.Engine
	Saver    Saver
	Dedup    *types.DedupState
	Settings Settings
}

// NewMonitor creates a monitor in the Idle state.
func NewMonitor(opts MonitorOptions) *Monitor {
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	if opts.Clock == nil {
		opts.Clock = clock.New()
	}
	if opts.Dedup == nil {
		opts.Dedup = &types.DedupState{}
	}
	return &Monitor{
		logger:   opts.Logger,
		clock:    opts.Clock,
		source:   opts.Source,
		reader:   opts.Reader,
		probe:    opts.Probe,
		engine:   opts.Engine,
		saver:    opts.Saver,
		dedup:    opts.Dedup,
		state:    StateIdle,
		settings: opts.Settings,
		saved:    make(chan types.SavedEvent, 16),
		rejected: make(chan types.RejectedEvent, 64),
		done:     make(chan struct{}),
		stopped:  make(chan struct{}),
	}
}

// Saved delivers one event per capture written to disk.
func (m *Monitor) Saved() <-chan types.SavedEvent { return m.saved }

// Rejected delivers diagnostic events for clipboard changes that were not
// saved. Events are dropped, not queued, when nobody is listening.
func (m *Monitor) Rejected() <-chan types.RejectedEvent { return m.rejected }

// State returns the current lifecycle state.
func (m *Monitor) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// UpdateSettings applies new monitor settings without a restart.
func (m *Monitor) UpdateSettings(s Settings) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.settings = s
}

// Start subscribes to clipboard-change notifications and launches the
// pipeline goroutine. Idle -> Subscribed.
func (m *Monitor) Start() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.state != StateIdle {
		return errors.New("monitor already started")
	}
	if err := m.source.Start(); err != nil {
		return err
	}
	m.state = StateSubscribed
	m.logger.Info("Clipboard monitor subscribed")

	m.wg.Add(1)
	go m.run()
	return nil
}

// Stop unsubscribes and drives the monitor to Stopped. Safe to call from
// several goroutines: the transition happens under the mutex, so exactly one
// caller tears the monitor down, and every caller blocks until any in-flight
// dispatch has completed.
func (m *Monitor) Stop() {
	m.mu.Lock()
	switch m.state {
	case StateIdle:
		m.state = StateStopped
		m.mu.Unlock()
		close(m.stopped)
		return
	case StateStopped:
		m.mu.Unlock()
		<-m.stopped
		return
	}
	m.state = StateStopped
	m.mu.Unlock()

	close(m.done)
	m.source.Stop()
	m.wg.Wait()
	m.logger.Info("Clipboard monitor stopped")
	close(m.stopped)
}

func (m *Monitor) run() {
	defer m.wg.Done()
	for {
		select {
		case <-m.done:
			return
		case _, ok := <-m.source.Changes():
			if !ok {
				return
			}
			m.dispatch()
		}
	}
}

// dispatch runs one classification pass. Every failure mode is contained
// here: a malformed clipboard entry must never take the loop down.
func (m *Monitor) dispatch() {
	m.setState(StateDispatching)
	defer m.setState(StateSubscribed)

	defer func() {
		if r := recover(); r != nil {
			m.logger.Error("Recovered from panic in clipboard pipeline", zap.Any("panic", r))
			m.emitRejected(types.RejectedEvent{Reason: types.ReasonPipelineError, Timestamp: m.clock.Now()})
		}
	}()

	m.mu.Lock()
	settings := m.settings
	m.mu.Unlock()

	ctx := m.probe.Snapshot(m.lastSaveAt)

	// Coalesce repeated notifications for one clipboard write.
	now := m.clock.Now()
	if m.seenSeq && ctx.Sequence == m.lastSeq && now.Sub(m.lastSeqAt) <= settings.Debounce {
		m.logger.Debug("Debounced clipboard notification", zap.Uint32("sequence", ctx.Sequence))
		return
	}
	m.lastSeq = ctx.Sequence
	m.lastSeqAt = now
	m.seenSeq = true

	if settings.SettleDelay > 0 {
		m.clock.Sleep(settings.SettleDelay)
	}

	desc, err := m.reader.Read()
	if err != nil {
		m.logger.Warn("Clipboard read failed", zap.Error(err))
		m.emitRejected(types.RejectedEvent{Reason: types.ReasonPipelineError, Sequence: ctx.Sequence, Timestamp: ctx.Timestamp})
		return
	}

	verdict := m.engine.Classify(desc, ctx, m.dedup)
	if !verdict.Accepted {
		m.logger.Debug("Clipboard change rejected",
			zap.String("reason", string(verdict.Reason)),
			zap.Uint32("sequence", ctx.Sequence),
			zap.String("foreground", ctx.ForegroundProcess))
		m.emitRejected(types.RejectedEvent{Reason: verdict.Reason, Sequence: ctx.Sequence, Timestamp: ctx.Timestamp})
		return
	}

	saved, err := m.saver.Save(desc, ctx)
	if err != nil {
		switch {
		case errors.Is(err, types.ErrConfiguration):
			m.logger.Warn("Save skipped until the destination is fixed", zap.Error(err))
		case errors.Is(err, types.ErrDecode):
			m.logger.Warn("Clipboard image could not be decoded", zap.Error(err))
		default:
			m.logger.Error("Failed to save screenshot", zap.Error(err))
		}
		m.emitRejected(types.RejectedEvent{Reason: types.ReasonPipelineError, Sequence: ctx.Sequence, Timestamp: ctx.Timestamp})
		return
	}

	m.lastSaveAt = saved.SavedAt
	m.logger.Info("Screenshot saved",
		zap.String("path", saved.Path),
		zap.Int("width", saved.Width),
		zap.Int("height", saved.Height))
	m.emitSaved(types.SavedEvent{Path: saved.Path, Width: saved.Width, Height: saved.Height, Timestamp: saved.SavedAt})
}

func (m *Monitor) setState(s State) {
	m.mu.Lock()
	// Stop may have won the race; Stopped is terminal.
	if m.state != StateStopped {
		m.state = s
	}
	m.mu.Unlock()
}

func (m *Monitor) emitSaved(ev types.SavedEvent) {
	select {
	case m.saved <- ev:
	default:
	}
}

func (m *Monitor) emitRejected(ev types.RejectedEvent) {
	select {
	case m.rejected <- ev:
	default:
	}
}
