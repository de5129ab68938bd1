//go:build !windows

package clipboard

import (
	"sync"
	"time"

	"github.com/atotto/clipboard"
	"github.com/benbjohnson/clock"
	"go.uber.org/zap"

	"github.com/berrythewa/snipsave-daemon/internal/types"
)

// The screenshot heuristics target Windows. On other systems the daemon
// still runs, backed by a polling text-clipboard shim, so the pipeline can
// be developed and exercised off-target. Everything it observes classifies
// as non-image and is therefore rejected.

const devPollInterval = 500 * time.Millisecond

type devClipboard struct {
	logger *zap.Logger
	clock  clock.Clock

	ch       chan struct{}
	done     chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup

	mu   sync.Mutex
	seq  uint32
	last string
}

// NewPlatform wires up the portable development fallback.
func NewPlatform(logger *zap.Logger, clk clock.Clock) (ChangeSource, FormatReader, ContextProbe, error) {
	if clk == nil {
		clk = clock.New()
	}
	dev := &devClipboard{
		logger: logger,
		clock:  clk,
		ch:     make(chan struct{}, 1),
		done:   make(chan struct{}),
	}
	return dev, dev, dev, nil
}

func (d *devClipboard) Changes() <-chan struct{} { return d.ch }

func (d *devClipboard) Start() error {
	d.wg.Add(1)
	go d.poll()
	return nil
}

func (d *devClipboard) Stop() {
	d.stopOnce.Do(func() { close(d.done) })
	d.wg.Wait()
}

func (d *devClipboard) poll() {
	defer d.wg.Done()
	ticker := d.clock.Ticker(devPollInterval)
	defer ticker.Stop()
	for {
		select {
		case <-d.done:
			return
		case <-ticker.C:
			text, err := clipboard.ReadAll()
			if err != nil {
				continue
			}
			d.mu.Lock()
			changed := text != d.last
			if changed {
				d.last = text
				d.seq++
			}
			d.mu.Unlock()
			if changed {
				select {
				case d.ch <- struct{}{}:
				default:
				}
			}
		}
	}
}

func (d *devClipboard) Read() (*types.ContentDescriptor, error) {
	return &types.ContentDescriptor{Kind: types.KindNonImage, Captured: d.clock.Now()}, nil
}

func (d *devClipboard) Snapshot(lastSave time.Time) types.ClipboardContext {
	d.mu.Lock()
	seq := d.seq
	d.mu.Unlock()

	now := d.clock.Now()
	since := time.Duration(-1)
	if !lastSave.IsZero() {
		since = now.Sub(lastSave)
	}
	return types.ClipboardContext{
		Sequence:      seq,
		Timestamp:     now,
		SinceLastSave: since,
	}
}
