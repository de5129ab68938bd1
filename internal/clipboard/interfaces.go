package clipboard

import (
	"time"

	"github.com/berrythewa/snipsave-daemon/internal/types"
)

// FormatReader reads the current clipboard payload and normalizes it into a
// content descriptor. Implementations hold the clipboard only for the
// duration of one Read call (open, read, close, with the close guaranteed on
// every exit path). A clipboard held by another process yields a descriptor
// of kind KindBusy rather than blocking.
type FormatReader interface {
	Read() (*types.ContentDescriptor, error)
}

// ContextProbe snapshots the contextual signals available at the moment of a
// clipboard change: the OS clipboard sequence number, the foreground
// process name (best effort) and the elapsed time since lastSave. A zero
// lastSave means nothing has been saved yet. No side effects.
type ContextProbe interface {
	Snapshot(lastSave time.Time) types.ClipboardContext
}

// ChangeSource delivers clipboard-change notifications. The channel carries
// no payload; each receive means "the clipboard was replaced at least once".
type ChangeSource interface {
	Start() error
	Changes() <-chan struct{}
	Stop()
}

// Saver persists an accepted capture. Implemented by the save manager.
type Saver interface {
	Save(desc *types.ContentDescriptor, ctx types.ClipboardContext) (*types.SavedFile, error)
}
