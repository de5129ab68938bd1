//go:build windows

package clipboard

import (
	"bytes"
	"image/png"
	"time"

	"github.com/cespare/xxhash/v2"
	"go.uber.org/zap"

	"github.com/berrythewa/snipsave-daemon/internal/convert"
	"github.com/berrythewa/snipsave-daemon/internal/types"
)

// windowsFormatReader reads the clipboard under the open/close discipline
// and classifies the payload. Preference order: the registered "PNG" format
// (lossless, already encoded), then CF_DIB.
type windowsFormatReader struct {
	logger    *zap.Logger
	pngFormat uint32
}

// NewFormatReader returns the Windows clipboard reader.
func NewFormatReader(logger *zap.Logger) FormatReader {
	return &windowsFormatReader{
		logger:    logger,
		pngFormat: registerClipboardFormat("PNG"),
	}
}

func (r *windowsFormatReader) Read() (*types.ContentDescriptor, error) {
	now := time.Now()

	// Do not block or spin when another process holds the clipboard; the
	// caller retries on the next notification.
	if !openClipboard() {
		return &types.ContentDescriptor{Kind: types.KindBusy, Captured: now}, nil
	}
	defer closeClipboard()

	if r.pngFormat != 0 && isFormatAvailable(r.pngFormat) {
		data, err := clipboardBytes(r.pngFormat)
		if err == nil {
			if desc := describePNG(data, now); desc != nil {
				return desc, nil
			}
		} else {
			r.logger.Debug("PNG clipboard format unreadable", zap.Error(err))
		}
	}

	if isFormatAvailable(cfDIB) {
		data, err := clipboardBytes(cfDIB)
		if err != nil {
			r.logger.Debug("CF_DIB clipboard format unreadable", zap.Error(err))
			return &types.ContentDescriptor{Kind: types.KindNonImage, Captured: now}, nil
		}
		width, height, err := convert.Dimensions(data)
		if err != nil {
			// Present but undecodable counts as non-image content.
			r.logger.Debug("Clipboard DIB header rejected", zap.Error(err))
			return &types.ContentDescriptor{Kind: types.KindNonImage, Captured: now}, nil
		}
		return &types.ContentDescriptor{
			Kind:      types.KindImage,
			Encoding:  types.EncodingDIB,
			Width:     width,
			Height:    height,
			ByteSize:  len(data),
			PixelHash: xxhash.Sum64(data),
			Data:      data,
			Captured:  now,
		}, nil
	}

	// Text, file lists, HTML and friends all land here.
	return &types.ContentDescriptor{Kind: types.KindNonImage, Captured: now}, nil
}

func describePNG(data []byte, now time.Time) *types.ContentDescriptor {
	cfg, err := png.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return nil
	}
	return &types.ContentDescriptor{
		Kind:      types.KindImage,
		Encoding:  types.EncodingPNG,
		Width:     cfg.Width,
		Height:    cfg.Height,
		ByteSize:  len(data),
		PixelHash: xxhash.Sum64(data),
		Data:      data,
		Captured:  now,
	}
}
