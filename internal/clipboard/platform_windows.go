//go:build windows

package clipboard

import (
	"github.com/benbjohnson/clock"
	"go.uber.org/zap"
)

// NewPlatform wires up the Windows clipboard primitives.
func NewPlatform(logger *zap.Logger, clk clock.Clock) (ChangeSource, FormatReader, ContextProbe, error) {
	return NewChangeSource(logger), NewFormatReader(logger), NewContextProbe(clk), nil
}
