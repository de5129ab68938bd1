//go:build windows

package clipboard

import (
	"time"

	"github.com/benbjohnson/clock"

	"github.com/berrythewa/snipsave-daemon/internal/types"
)

type windowsContextProbe struct {
	clock clock.Clock
}

// NewContextProbe returns the Windows context probe.
func NewContextProbe(clk clock.Clock) ContextProbe {
	if clk == nil {
		clk = clock.New()
	}
	return &windowsContextProbe{clock: clk}
}

func (p *windowsContextProbe) Snapshot(lastSave time.Time) types.ClipboardContext {
	now := p.clock.Now()
	since := time.Duration(-1)
	if !lastSave.IsZero() {
		since = now.Sub(lastSave)
	}
	return types.ClipboardContext{
		Sequence:          clipboardSequenceNumber(),
		Timestamp:         now,
		ForegroundProcess: foregroundProcessName(),
		SinceLastSave:     since,
	}
}
