package types

import "time"

// SavedEvent is emitted after a capture has been written to disk. Consumed
// by the tray for the notification popup and the recent-captures menu.
type SavedEvent struct {
	Path      string
	Width     int
	Height    int
	Timestamp time.Time
}

// RejectedEvent is emitted when a clipboard change was classified as not
// belonging to the screenshot tool. Diagnostic only.
type RejectedEvent struct {
	Reason    Reason
	Sequence  uint32
	Timestamp time.Time
}
