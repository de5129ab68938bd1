package types

import (
	"time"
)

// ContentKind classifies what the clipboard held at the moment it was read.
type ContentKind string

const (
	// KindImage is a decodable bitmap in one of the encodings below.
	KindImage ContentKind = "image"
	// KindNonImage covers text, file lists, HTML and anything else that is
	// present but not a bitmap.
	KindNonImage ContentKind = "non_image"
	// KindBusy means the clipboard could not be opened because another
	// process was holding it. Retried on the next notification, never here.
	KindBusy ContentKind = "busy"
)

// ImageEncoding identifies the on-clipboard encoding of an image payload.
type ImageEncoding string

const (
	EncodingNone ImageEncoding = ""
	EncodingPNG  ImageEncoding = "png"
	EncodingDIB  ImageEncoding = "dib"
)

// ContentDescriptor is a normalized snapshot of the clipboard payload, built
// fresh on every change notification and discarded after classification.
type ContentDescriptor struct {
	Kind      ContentKind
	Encoding  ImageEncoding
	Width     int
	Height    int
	ByteSize  int
	PixelHash uint64
	Data      []byte
	Captured  time.Time
}

// IsImage reports whether the descriptor carries decodable image data.
func (d *ContentDescriptor) IsImage() bool {
	return d != nil && d.Kind == KindImage
}

// ClipboardContext carries the contextual signals available at the moment of
// a clipboard change. Same lifecycle as ContentDescriptor.
type ClipboardContext struct {
	// Sequence is the OS clipboard sequence number, monotonically
	// increasing per clipboard write.
	Sequence  uint32
	Timestamp time.Time
	// ForegroundProcess is the base name of the foreground window's owning
	// process. Empty when the lookup failed; lookup failure is never fatal.
	ForegroundProcess string
	// SinceLastSave is the elapsed time since the last accepted save.
	// Negative when nothing has been saved this process lifetime.
	SinceLastSave time.Duration
}

// Reason labels a heuristic verdict for diagnostics. Not persisted.
type Reason string

const (
	ReasonAccepted       Reason = "accepted"
	ReasonNonImage       Reason = "non_image"
	ReasonClipboardBusy  Reason = "clipboard_busy"
	ReasonForeignProcess Reason = "foreign_process"
	ReasonDuplicate      Reason = "duplicate"
	ReasonTooSmall       Reason = "too_small"
	ReasonPipelineError  Reason = "pipeline_error"
)

// Verdict is the accept/reject decision for one clipboard change.
type Verdict struct {
	Accepted bool
	Reason   Reason
}

func Accept() Verdict              { return Verdict{Accepted: true, Reason: ReasonAccepted} }
func Reject(reason Reason) Verdict { return Verdict{Accepted: false, Reason: reason} }

// DedupState remembers the most recently saved capture so that a duplicate
// change notification for the identical content is suppressed. It lives for
// the process lifetime, is confined to the monitoring goroutine, and resets
// on restart.
type DedupState struct {
	LastPixelHash uint64
	LastSequence  uint32
	Saved         bool
}

// MarkSaved records a successful save. Called by the save manager only.
func (s *DedupState) MarkSaved(pixelHash uint64, sequence uint32) {
	s.LastPixelHash = pixelHash
	s.LastSequence = sequence
	s.Saved = true
}

// IsDuplicate reports whether content with the given fingerprint was already
// saved. Both the pixel hash and the sequence number must match what was
// recorded: identical pixels under a newer sequence number is a new capture.
func (s *DedupState) IsDuplicate(pixelHash uint64, sequence uint32) bool {
	return s.Saved && pixelHash == s.LastPixelHash && sequence <= s.LastSequence
}

// SavedFile describes the output artifact of one accepted capture. Never
// mutated once written, never deleted by this program.
type SavedFile struct {
	Path    string
	Width   int
	Height  int
	SavedAt time.Time
}
