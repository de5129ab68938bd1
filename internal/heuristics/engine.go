// Package heuristics decides whether a clipboard change was produced by the
// system screenshot tool. No platform API tags a clipboard write with its
// origin, so acceptance is probabilistic: an ordered chain of checks,
// cheapest first, short-circuiting on the first rejection. Every rejection
// carries a reason so the monitor can log why an item was skipped.
package heuristics

import (
	"strings"
	"sync"

	"github.com/berrythewa/snipsave-daemon/internal/types"
)

// DefaultAllowedProcesses are the executables observed to own the clipboard
// after a capture. svchost.exe shows up because shell-driven captures hand
// the clipboard write to a service host rather than the tool itself.
var DefaultAllowedProcesses = []string{
	"ScreenSketch.exe",
	"SnippingTool.exe",
	"explorer.exe",
	"svchost.exe",
}

const (
	DefaultMinWidth  = 32
	DefaultMinHeight = 32
)

// Policy holds the tunable inputs of the classification chain.
type Policy struct {
	// AllowedProcesses is matched case-insensitively against the base name
	// of the foreground process.
	AllowedProcesses []string
	// MinWidth and MinHeight filter implausibly small images, e.g. the 1x1
	// placeholder bitmaps some applications park on the clipboard.
	MinWidth  int
	MinHeight int
}

// DefaultPolicy returns the policy used when the config file does not
// override it.
func DefaultPolicy() Policy {
	return Policy{
		AllowedProcesses: append([]string(nil), DefaultAllowedProcesses...),
		MinWidth:         DefaultMinWidth,
		MinHeight:        DefaultMinHeight,
	}
}

// Engine classifies clipboard changes. Classify itself is pure; the only
// mutable state is the policy, which can be swapped on a live settings
// change.
type Engine struct {
	mu     sync.RWMutex
	policy Policy
}

func NewEngine(policy Policy) *Engine {
	if policy.MinWidth <= 0 {
		policy.MinWidth = DefaultMinWidth
	}
	if policy.MinHeight <= 0 {
		policy.MinHeight = DefaultMinHeight
	}
	if len(policy.AllowedProcesses) == 0 {
		policy.AllowedProcesses = append([]string(nil), DefaultAllowedProcesses...)
	}
	return &Engine{policy: policy}
}

// UpdatePolicy replaces the policy without restarting the monitor.
func (e *Engine) UpdatePolicy(policy Policy) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.policy = policy
}

// Classify runs the check chain against one clipboard change. No I/O.
//
// Order: content kind, foreground process, dedup fingerprint, dimensions.
// The ordering is cheap-first rather than load-bearing; any order yields the
// same verdict for a given input.
func (e *Engine) Classify(desc *types.ContentDescriptor, ctx types.ClipboardContext, dedup *types.DedupState) types.Verdict {
	e.mu.RLock()
	policy := e.policy
	e.mu.RUnlock()

	if desc == nil || desc.Kind == types.KindNonImage {
		return types.Reject(types.ReasonNonImage)
	}
	if desc.Kind == types.KindBusy {
		return types.Reject(types.ReasonClipboardBusy)
	}

	// A failed foreground lookup is not evidence against the capture;
	// only a known, non-allow-listed process rejects.
	if ctx.ForegroundProcess != "" && !policy.processAllowed(ctx.ForegroundProcess) {
		return types.Reject(types.ReasonForeignProcess)
	}

	if dedup != nil && dedup.IsDuplicate(desc.PixelHash, ctx.Sequence) {
		return types.Reject(types.ReasonDuplicate)
	}

	if desc.Width < policy.MinWidth || desc.Height < policy.MinHeight {
		return types.Reject(types.ReasonTooSmall)
	}

	return types.Accept()
}

func (p Policy) processAllowed(name string) bool {
	for _, allowed := range p.AllowedProcesses {
		if strings.EqualFold(name, allowed) {
			return true
		}
	}
	return false
}
