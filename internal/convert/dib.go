// Package convert turns clipboard DIB (CF_DIB) payloads into image.Image
// values. Screenshot captures arrive as 32bpp BI_BITFIELDS bitmaps, which
// are handled directly; other uncompressed DIBs go through the BMP decoder
// by synthesizing the file header the clipboard strips off.
package convert

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"image"
	"image/color"

	"golang.org/x/image/bmp"

	"github.com/berrythewa/snipsave-daemon/internal/types"
)

const (
	biRGB       = 0
	biBitfields = 3

	infoHeaderSize = 40
	fileHeaderSize = 14
)

type dibHeader struct {
	headerSize  uint32
	width       int32
	height      int32
	planes      uint16
	bitCount    uint16
	compression uint32
	sizeImage   uint32
	clrUsed     uint32
}

func parseHeader(data []byte) (dibHeader, error) {
	var h dibHeader
	if len(data) < infoHeaderSize {
		return h, fmt.Errorf("%w: DIB truncated at %d bytes", types.ErrDecode, len(data))
	}
	h.headerSize = binary.LittleEndian.Uint32(data[0:4])
	h.width = int32(binary.LittleEndian.Uint32(data[4:8]))
	h.height = int32(binary.LittleEndian.Uint32(data[8:12]))
	h.planes = binary.LittleEndian.Uint16(data[12:14])
	h.bitCount = binary.LittleEndian.Uint16(data[14:16])
	h.compression = binary.LittleEndian.Uint32(data[16:20])
	h.sizeImage = binary.LittleEndian.Uint32(data[20:24])
	h.clrUsed = binary.LittleEndian.Uint32(data[32:36])
	if h.headerSize < infoHeaderSize || int(h.headerSize) > len(data) {
		return h, fmt.Errorf("%w: bad DIB header size %d", types.ErrDecode, h.headerSize)
	}
	return h, nil
}

// Dimensions reads the pixel dimensions out of a DIB header without decoding
// the pixel data.
func Dimensions(data []byte) (width, height int, err error) {
	h, err := parseHeader(data)
	if err != nil {
		return 0, 0, err
	}
	return abs(h.width), abs(h.height), nil
}

// DIBToImage decodes a packed CF_DIB payload. The 32bpp BI_BITFIELDS layout
// produced by screen captures is decoded directly, honoring the subpixel
// masks and a bottom-up row origin; everything else uncompressed falls back
// to the BMP decoder.
func DIBToImage(data []byte) (image.Image, error) {
	h, err := parseHeader(data)
	if err != nil {
		return nil, err
	}

	if h.compression == biBitfields && h.bitCount == 32 {
		return decodeBitfields32(data, h)
	}
	if h.compression == biRGB {
		return decodeViaBMP(data, h)
	}
	return nil, fmt.Errorf("%w: unsupported DIB compression %d at %d bpp", types.ErrDecode, h.compression, h.bitCount)
}

func decodeBitfields32(data []byte, h dibHeader) (image.Image, error) {
	// With the plain 40-byte BITMAPINFOHEADER the three channel masks
	// follow the header; larger headers (V2 through V5) carry them inside
	// the header at offset 40, and the pixel data starts right after it.
	maskOffset := infoHeaderSize
	pixelOffset := int(h.headerSize)
	if h.headerSize < infoHeaderSize+12 {
		pixelOffset = infoHeaderSize + 12
	}
	if len(data) < maskOffset+12 || len(data) < pixelOffset {
		return nil, fmt.Errorf("%w: DIB truncated before color masks", types.ErrDecode)
	}

	width := abs(h.width)
	height := abs(h.height)
	// Positive biHeight means a bottom-up bitmap.
	flip := h.height > 0

	rIdx, err := maskIndex(binary.LittleEndian.Uint32(data[maskOffset:]))
	if err != nil {
		return nil, err
	}
	gIdx, err := maskIndex(binary.LittleEndian.Uint32(data[maskOffset+4:]))
	if err != nil {
		return nil, err
	}
	bIdx, err := maskIndex(binary.LittleEndian.Uint32(data[maskOffset+8:]))
	if err != nil {
		return nil, err
	}

	need := pixelOffset + width*height*4
	if len(data) < need {
		return nil, fmt.Errorf("%w: DIB pixel data truncated (%d < %d)", types.ErrDecode, len(data), need)
	}

	img := image.NewNRGBA(image.Rect(0, 0, width, height))
	pixels := data[pixelOffset:]
	for y := 0; y < height; y++ {
		srcRow := y
		if flip {
			srcRow = height - y - 1
		}
		row := pixels[srcRow*width*4:]
		for x := 0; x < width; x++ {
			px := row[x*4 : x*4+4]
			img.SetNRGBA(x, y, color.NRGBA{R: px[rIdx], G: px[gIdx], B: px[bIdx], A: 0xFF})
		}
	}
	return img, nil
}

// maskIndex maps a channel bit mask to the byte index holding that channel
// within a little-endian 32-bit pixel.
func maskIndex(mask uint32) (int, error) {
	switch mask {
	case 0x000000FF:
		return 0, nil
	case 0x0000FF00:
		return 1, nil
	case 0x00FF0000:
		return 2, nil
	case 0xFF000000:
		return 3, nil
	}
	return 0, fmt.Errorf("%w: unsupported channel mask %#x", types.ErrDecode, mask)
}

// decodeViaBMP prefixes the BITMAPFILEHEADER that CF_DIB omits and hands the
// result to the stock BMP decoder.
func decodeViaBMP(data []byte, h dibHeader) (image.Image, error) {
	paletteEntries := int(h.clrUsed)
	if paletteEntries == 0 && h.bitCount <= 8 {
		paletteEntries = 1 << h.bitCount
	}
	dataOffset := fileHeaderSize + int(h.headerSize) + paletteEntries*4

	var buf bytes.Buffer
	buf.Grow(fileHeaderSize + len(data))
	buf.WriteString("BM")
	var scratch [4]byte
	binary.LittleEndian.PutUint32(scratch[:], uint32(fileHeaderSize+len(data)))
	buf.Write(scratch[:])
	buf.Write([]byte{0, 0, 0, 0})
	binary.LittleEndian.PutUint32(scratch[:], uint32(dataOffset))
	buf.Write(scratch[:])
	buf.Write(data)

	img, err := bmp.Decode(&buf)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", types.ErrDecode, err)
	}
	return img, nil
}

func abs(v int32) int {
	if v < 0 {
		return int(-v)
	}
	return int(v)
}
