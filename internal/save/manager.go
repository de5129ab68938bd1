// Package save persists accepted captures to disk. Whatever encoding the
// clipboard held, the output is always PNG, written to a temporary file and
// renamed into place so no partially-written file is ever visible under its
// final name.
package save

import (
	"bytes"
	"fmt"
	"image"
	"image/png"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/berrythewa/snipsave-daemon/internal/convert"
	"github.com/berrythewa/snipsave-daemon/internal/types"
)

// maxCollisionSuffix bounds the search for a collision-free filename.
const maxCollisionSuffix = 1000

// Recorder receives a note of every saved capture. Implemented by the
// journal; optional.
type Recorder interface {
	Record(file types.SavedFile, pixelHash uint64) error
}

// Options configures a Manager.
type Options struct {
	Directory string
	Pattern   string
	Logger    *zap.Logger
	Clock     clock.Clock
	Dedup     *types.DedupState
	Journal   Recorder
}

// Manager converts clipboard image data into PNG files. Safe for the single
// monitoring goroutine plus settings updates from the config watcher.
type Manager struct {
	mu      sync.Mutex
	dir     string
	pattern string

	logger  *zap.Logger
	clock   clock.Clock
	dedup   *types.DedupState
	journal Recorder
}

// NewManager creates a save manager.
func NewManager(opts Options) *Manager {
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	if opts.Clock == nil {
		opts.Clock = clock.New()
	}
	if opts.Dedup == nil {
		opts.Dedup = &types.DedupState{}
	}
	if opts.Pattern == "" {
		opts.Pattern = "Screenshot_{timestamp}"
	}
	return &Manager{
		dir:     opts.Directory,
		pattern: opts.Pattern,
		logger:  opts.Logger,
		clock:   opts.Clock,
		dedup:   opts.Dedup,
		journal: opts.Journal,
	}
}

// UpdateSettings applies a new destination and pattern without restart.
func (m *Manager) UpdateSettings(directory, pattern string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if directory != "" {
		m.dir = directory
	}
	if pattern != "" {
		m.pattern = pattern
	}
}

// Save decodes the clipboard image, writes it as PNG under a pattern-derived
// name and records the capture in the dedup state. Exactly one file per
// call; on any error no file is left behind under the final name.
func (m *Manager) Save(desc *types.ContentDescriptor, ctx types.ClipboardContext) (*types.SavedFile, error) {
	m.mu.Lock()
	dir, pattern := m.dir, m.pattern
	m.mu.Unlock()

	img, err := decode(desc)
	if err != nil {
		return nil, err
	}

	info, err := os.Stat(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: directory %q does not exist", types.ErrConfiguration, dir)
		}
		return nil, fmt.Errorf("%w: %v", types.ErrConfiguration, err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("%w: %q is not a directory", types.ErrConfiguration, dir)
	}

	now := m.clock.Now()
	path, err := m.pickPath(dir, pattern, now)
	if err != nil {
		return nil, err
	}

	if err := writeAtomic(path, img); err != nil {
		if os.IsPermission(err) {
			return nil, fmt.Errorf("%w: %v", types.ErrConfiguration, err)
		}
		return nil, fmt.Errorf("failed to write %s: %w", path, err)
	}

	bounds := img.Bounds()
	saved := types.SavedFile{
		Path:    path,
		Width:   bounds.Dx(),
		Height:  bounds.Dy(),
		SavedAt: now,
	}

	m.dedup.MarkSaved(desc.PixelHash, ctx.Sequence)

	if m.journal != nil {
		if err := m.journal.Record(saved, desc.PixelHash); err != nil {
			m.logger.Warn("Failed to journal capture", zap.Error(err))
		}
	}
	return &saved, nil
}

func decode(desc *types.ContentDescriptor) (image.Image, error) {
	if !desc.IsImage() {
		return nil, fmt.Errorf("%w: descriptor is %s", types.ErrDecode, desc.Kind)
	}
	switch desc.Encoding {
	case types.EncodingPNG:
		img, err := png.Decode(bytes.NewReader(desc.Data))
		if err != nil {
			return nil, fmt.Errorf("%w: %v", types.ErrDecode, err)
		}
		return img, nil
	case types.EncodingDIB:
		return convert.DIBToImage(desc.Data)
	}
	return nil, fmt.Errorf("%w: unknown encoding %q", types.ErrDecode, desc.Encoding)
}

// pickPath expands the filename pattern and avoids collisions with existing
// files by bumping the counter token, or appending one when the pattern has
// none.
func (m *Manager) pickPath(dir, pattern string, now time.Time) (string, error) {
	for n := 1; n <= maxCollisionSuffix; n++ {
		name := expandPattern(pattern, now, n)
		path := filepath.Join(dir, name+".png")
		if _, err := os.Stat(path); os.IsNotExist(err) {
			return path, nil
		}
	}
	return "", fmt.Errorf("%w: pattern %q in %q", types.ErrNameExhausted, pattern, dir)
}

func expandPattern(pattern string, now time.Time, counter int) string {
	name := pattern
	name = strings.ReplaceAll(name, "{timestamp}", now.Format("20060102_150405"))
	name = strings.ReplaceAll(name, "{date}", now.Format("20060102"))
	name = strings.ReplaceAll(name, "{time}", now.Format("150405"))
	if strings.Contains(name, "{counter}") {
		name = strings.ReplaceAll(name, "{counter}", fmt.Sprintf("%d", counter))
	} else if counter > 1 {
		name = fmt.Sprintf("%s_%d", name, counter)
	}
	return name
}

// writeAtomic encodes img into a temp file next to path, then renames it
// into place.
func writeAtomic(path string, img image.Image) error {
	dir := filepath.Dir(path)
	tmp := filepath.Join(dir, fmt.Sprintf(".%s.%s.tmp", filepath.Base(path), uuid.NewString()))

	f, err := os.OpenFile(tmp, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0644)
	if err != nil {
		return err
	}
	if err := png.Encode(f, img); err != nil {
		f.Close()
		os.Remove(tmp)
		return err
	}
	if err := f.Close(); err != nil {
		os.Remove(tmp)
		return err
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return err
	}
	return nil
}
