package clipboard

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/berrythewa/snipsave-daemon/internal/heuristics"
	"github.com/berrythewa/snipsave-daemon/internal/types"
)

type fakeSource struct {
	ch   chan struct{}
	once sync.Once
}

func newFakeSource() *fakeSource               { return &fakeSource{ch: make(chan struct{}, 8)} }
func (s *fakeSource) Start() error             { return nil }
func (s *fakeSource) Changes() <-chan struct{} { return s.ch }
func (s *fakeSource) Stop()                    { s.once.Do(func() { close(s.ch) }) }
func (s *fakeSource) notify()                  { s.ch <- struct{}{} }

type fakeReader struct {
	mu   sync.Mutex
	next func() (*types.ContentDescriptor, error)
}

func (r *fakeReader) Read() (*types.ContentDescriptor, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.next()
}

type fakeProbe struct {
	mu  sync.Mutex
	ctx types.ClipboardContext
}

func (p *fakeProbe) Snapshot(lastSave time.Time) types.ClipboardContext {
	p.mu.Lock()
	defer p.mu.Unlock()
	ctx := p.ctx
	ctx.Timestamp = time.Now()
	if lastSave.IsZero() {
		ctx.SinceLastSave = -1
	} else {
		ctx.SinceLastSave = time.Since(lastSave)
	}
	return ctx
}

func (p *fakeProbe) setSequence(seq uint32) {
	p.mu.Lock()
	p.ctx.Sequence = seq
	p.mu.Unlock()
}

// fakeSaver mimics the save manager: it marks the dedup state on success.
type fakeSaver struct {
	mu    sync.Mutex
	calls int
	err   error
	dedup *types.DedupState
}

func (s *fakeSaver) Save(desc *types.ContentDescriptor, ctx types.ClipboardContext) (*types.SavedFile, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	if s.err != nil {
		return nil, s.err
	}
	s.dedup.MarkSaved(desc.PixelHash, ctx.Sequence)
	return &types.SavedFile{
		Path:    "screenshot.png",
		Width:   desc.Width,
		Height:  desc.Height,
		SavedAt: time.Now(),
	}, nil
}

func (s *fakeSaver) saveCalls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

type monitorHarness struct {
	monitor *Monitor
	source  *fakeSource
	reader  *fakeReader
	probe   *fakeProbe
	saver   *fakeSaver
}

func newHarness(t *testing.T, settings Settings) *monitorHarness {
	t.Helper()
	dedup := &types.DedupState{}
	h := &monitorHarness{
		source: newFakeSource(),
		reader: &fakeReader{},
		probe:  &fakeProbe{ctx: types.ClipboardContext{ForegroundProcess: "ScreenSketch.exe"}},
		saver:  &fakeSaver{dedup: dedup},
	}
	h.monitor = NewMonitor(MonitorOptions{
		Logger:   zap.NewNop(),
		Source:   h.source,
		Reader:   h.reader,
		Probe:    h.probe,
		Engine:   heuristics.NewEngine(heuristics.DefaultPolicy()),
		Saver:    h.saver,
		Dedup:    dedup,
		Settings: settings,
	})
	require.NoError(t, h.monitor.Start())
	t.Cleanup(h.monitor.Stop)
	return h
}

func (h *monitorHarness) serveImage(width, height int, hash uint64) {
	h.reader.mu.Lock()
	h.reader.next = func() (*types.ContentDescriptor, error) {
		return &types.ContentDescriptor{
			Kind:      types.KindImage,
			Encoding:  types.EncodingDIB,
			Width:     width,
			Height:    height,
			PixelHash: hash,
			Captured:  time.Now(),
		}, nil
	}
	h.reader.mu.Unlock()
}

func waitSaved(t *testing.T, m *Monitor) types.SavedEvent {
	t.Helper()
	select {
	case ev := <-m.Saved():
		return ev
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for saved event")
		return types.SavedEvent{}
	}
}

func waitRejected(t *testing.T, m *Monitor) types.RejectedEvent {
	t.Helper()
	select {
	case ev := <-m.Rejected():
		return ev
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for rejected event")
		return types.RejectedEvent{}
	}
}

func TestMonitorSavesAcceptedCapture(t *testing.T) {
	h := newHarness(t, Settings{})
	h.serveImage(1024, 768, 0xFEED)
	h.probe.setSequence(5)

	h.source.notify()
	ev := waitSaved(t, h.monitor)
	assert.Equal(t, 1024, ev.Width)
	assert.Equal(t, 768, ev.Height)
	assert.Equal(t, 1, h.saver.saveCalls())
}

func TestMonitorRejectsDuplicateNotification(t *testing.T) {
	h := newHarness(t, Settings{})
	h.serveImage(1024, 768, 0xFEED)
	h.probe.setSequence(5)

	h.source.notify()
	waitSaved(t, h.monitor)

	// The OS delivers a second notification for the identical content.
	h.source.notify()
	ev := waitRejected(t, h.monitor)
	assert.Equal(t, types.ReasonDuplicate, ev.Reason)
	assert.Equal(t, 1, h.saver.saveCalls(), "exactly one file per logical capture")
}

func TestMonitorDebouncesSameSequence(t *testing.T) {
	h := newHarness(t, Settings{Debounce: time.Hour})
	h.serveImage(1024, 768, 0xFEED)
	h.probe.setSequence(5)

	h.source.notify()
	waitSaved(t, h.monitor)

	// A repeat notification for the same sequence number inside the window
	// is coalesced: no verdict, no event, no save.
	h.source.notify()
	time.Sleep(150 * time.Millisecond)
	select {
	case ev := <-h.monitor.Rejected():
		t.Fatalf("debounced notification produced a verdict: %v", ev.Reason)
	case ev := <-h.monitor.Saved():
		t.Fatalf("debounced notification produced a save: %v", ev.Path)
	default:
	}
	assert.Equal(t, 1, h.saver.saveCalls())
}

func TestMonitorRejectsNonImage(t *testing.T) {
	h := newHarness(t, Settings{})
	h.reader.mu.Lock()
	h.reader.next = func() (*types.ContentDescriptor, error) {
		return &types.ContentDescriptor{Kind: types.KindNonImage}, nil
	}
	h.reader.mu.Unlock()

	h.source.notify()
	ev := waitRejected(t, h.monitor)
	assert.Equal(t, types.ReasonNonImage, ev.Reason)
	assert.Equal(t, 0, h.saver.saveCalls())
}

func TestMonitorSurvivesReaderError(t *testing.T) {
	h := newHarness(t, Settings{})
	h.reader.mu.Lock()
	h.reader.next = func() (*types.ContentDescriptor, error) {
		return nil, errors.New("clipboard exploded")
	}
	h.reader.mu.Unlock()

	h.source.notify()
	ev := waitRejected(t, h.monitor)
	assert.Equal(t, types.ReasonPipelineError, ev.Reason)

	// The loop keeps going: a later good capture still saves.
	h.serveImage(800, 600, 0xD00D)
	h.probe.setSequence(9)
	h.source.notify()
	waitSaved(t, h.monitor)
}

func TestMonitorSurvivesSaveFailure(t *testing.T) {
	h := newHarness(t, Settings{})
	h.serveImage(800, 600, 0xD00D)
	h.probe.setSequence(3)
	h.saver.mu.Lock()
	h.saver.err = types.ErrConfiguration
	h.saver.mu.Unlock()

	h.source.notify()
	ev := waitRejected(t, h.monitor)
	assert.Equal(t, types.ReasonPipelineError, ev.Reason)

	// Fix the destination; the next capture succeeds.
	h.saver.mu.Lock()
	h.saver.err = nil
	h.saver.mu.Unlock()
	h.probe.setSequence(4)
	h.serveImage(800, 600, 0xBEEF)
	h.source.notify()
	waitSaved(t, h.monitor)
}

func TestMonitorSurvivesReaderPanic(t *testing.T) {
	h := newHarness(t, Settings{})
	h.reader.mu.Lock()
	h.reader.next = func() (*types.ContentDescriptor, error) {
		panic("malformed clipboard entry")
	}
	h.reader.mu.Unlock()

	h.source.notify()
	ev := waitRejected(t, h.monitor)
	assert.Equal(t, types.ReasonPipelineError, ev.Reason)

	h.serveImage(640, 480, 0xCAFE)
	h.probe.setSequence(11)
	h.source.notify()
	waitSaved(t, h.monitor)
}

func TestMonitorLifecycle(t *testing.T) {
	dedup := &types.DedupState{}
	src := newFakeSource()
	m := NewMonitor(MonitorOptions{
		Source: src,
		Reader: &fakeReader{next: func() (*types.ContentDescriptor, error) {
			return &types.ContentDescriptor{Kind: types.KindNonImage}, nil
		}},
		Probe:  &fakeProbe{},
		Engine: heuristics.NewEngine(heuristics.DefaultPolicy()),
		Saver:  &fakeSaver{dedup: dedup},
		Dedup:  dedup,
	})
	assert.Equal(t, StateIdle, m.State())

	require.NoError(t, m.Start())
	assert.Equal(t, StateSubscribed, m.State())
	assert.Error(t, m.Start(), "double start must fail")

	m.Stop()
	assert.Equal(t, StateStopped, m.State())
	// Stop is idempotent.
	m.Stop()
	assert.Equal(t, StateStopped, m.State())
}

func TestMonitorConcurrentStop(t *testing.T) {
	// The tray quit handler and the signal handler can request shutdown at
	// the same time; both calls must return cleanly, and only after any
	// in-flight dispatch has finished.
	for i := 0; i < 200; i++ {
		dedup := &types.DedupState{}
		m := NewMonitor(MonitorOptions{
			Source: newFakeSource(),
			Reader: &fakeReader{next: func() (*types.ContentDescriptor, error) {
				return &types.ContentDescriptor{Kind: types.KindNonImage}, nil
			}},
			Probe:  &fakeProbe{},
			Engine: heuristics.NewEngine(heuristics.DefaultPolicy()),
			Saver:  &fakeSaver{dedup: dedup},
			Dedup:  dedup,
		})
		require.NoError(t, m.Start())

		start := make(chan struct{})
		var wg sync.WaitGroup
		for g := 0; g < 2; g++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				<-start
				m.Stop()
			}()
		}
		close(start)
		wg.Wait()
		assert.Equal(t, StateStopped, m.State())
	}
}

func TestMonitorUpdateSettings(t *testing.T) {
	h := newHarness(t, Settings{})
	h.monitor.UpdateSettings(Settings{Debounce: 50 * time.Millisecond, SettleDelay: 0})

	h.serveImage(1024, 768, 0x1234)
	h.probe.setSequence(21)
	h.source.notify()
	waitSaved(t, h.monitor)
}
