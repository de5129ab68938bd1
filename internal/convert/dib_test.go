package convert

import (
	"encoding/binary"
	"errors"
	"image/color"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/berrythewa/snipsave-daemon/internal/types"
)

// makeDIB32 builds a packed 32bpp BI_BITFIELDS DIB with BGRA byte order,
// the layout Windows produces for screen captures. Rows are stored
// bottom-up when bottomUp is set, matching a positive biHeight.
func makeDIB32(width, height int, pixels [][]color.NRGBA, bottomUp bool) []byte {
	biHeight := int32(height)
	if !bottomUp {
		biHeight = -biHeight
	}

	data := make([]byte, 40+12+width*height*4)
	binary.LittleEndian.PutUint32(data[0:], 40) // biSize
	binary.LittleEndian.PutUint32(data[4:], uint32(width))
	binary.LittleEndian.PutUint32(data[8:], uint32(biHeight))
	binary.LittleEndian.PutUint16(data[12:], 1)  // planes
	binary.LittleEndian.PutUint16(data[14:], 32) // bpp
	binary.LittleEndian.PutUint32(data[16:], biBitfields)
	binary.LittleEndian.PutUint32(data[20:], uint32(width*height*4))
	// BGRA masks
	binary.LittleEndian.PutUint32(data[40:], 0x00FF0000) // red
	binary.LittleEndian.PutUint32(data[44:], 0x0000FF00) // green
	binary.LittleEndian.PutUint32(data[48:], 0x000000FF) // blue

	px := data[52:]
	for row := 0; row < height; row++ {
		srcRow := row
		if bottomUp {
			srcRow = height - row - 1
		}
		for x := 0; x < width; x++ {
			c := pixels[srcRow][x]
			off := (row*width + x) * 4
			px[off] = c.B
			px[off+1] = c.G
			px[off+2] = c.R
			px[off+3] = 0xFF
		}
	}
	return data
}

func testPixels() [][]color.NRGBA {
	red := color.NRGBA{R: 0xFF, A: 0xFF}
	green := color.NRGBA{G: 0xFF, A: 0xFF}
	blue := color.NRGBA{B: 0xFF, A: 0xFF}
	white := color.NRGBA{R: 0xFF, G: 0xFF, B: 0xFF, A: 0xFF}
	return [][]color.NRGBA{
		{red, green},
		{blue, white},
	}
}

func TestDIBToImageBitfields(t *testing.T) {
	for _, bottomUp := range []bool{true, false} {
		name := "top_down"
		if bottomUp {
			name = "bottom_up"
		}
		t.Run(name, func(t *testing.T) {
			pixels := testPixels()
			img, err := DIBToImage(makeDIB32(2, 2, pixels, bottomUp))
			require.NoError(t, err)

			bounds := img.Bounds()
			require.Equal(t, 2, bounds.Dx())
			require.Equal(t, 2, bounds.Dy())

			for y := 0; y < 2; y++ {
				for x := 0; x < 2; x++ {
					got := color.NRGBAModel.Convert(img.At(x, y)).(color.NRGBA)
					assert.Equal(t, pixels[y][x], got, "pixel (%d,%d)", x, y)
				}
			}
		})
	}
}

func TestDimensions(t *testing.T) {
	data := makeDIB32(640, 480, make2D(640, 480), true)
	w, h, err := Dimensions(data)
	require.NoError(t, err)
	assert.Equal(t, 640, w)
	assert.Equal(t, 480, h)
}

func make2D(w, h int) [][]color.NRGBA {
	rows := make([][]color.NRGBA, h)
	for i := range rows {
		rows[i] = make([]color.NRGBA, w)
	}
	return rows
}

func TestDIBToImageTruncated(t *testing.T) {
	data := makeDIB32(2, 2, testPixels(), true)
	_, err := DIBToImage(data[:30])
	assert.ErrorIs(t, err, types.ErrDecode)

	// Header intact, pixel data short.
	_, err = DIBToImage(data[:60])
	assert.ErrorIs(t, err, types.ErrDecode)
}

func TestDIBToImageUnsupportedCompression(t *testing.T) {
	data := makeDIB32(2, 2, testPixels(), true)
	binary.LittleEndian.PutUint32(data[16:], 1) // BI_RLE8
	_, err := DIBToImage(data)
	assert.True(t, errors.Is(err, types.ErrDecode))
}

func TestDIBToImageV5Header(t *testing.T) {
	// BITMAPV5HEADER (124 bytes) keeps the channel masks inside the header
	// at offset 40; pixel data starts right after the header, with no
	// separate mask block.
	const headerSize = 124
	width, height := 2, 2
	pixels := testPixels()

	data := make([]byte, headerSize+width*height*4)
	binary.LittleEndian.PutUint32(data[0:], headerSize)
	binary.LittleEndian.PutUint32(data[4:], uint32(width))
	binary.LittleEndian.PutUint32(data[8:], uint32(height)) // bottom-up
	binary.LittleEndian.PutUint16(data[12:], 1)
	binary.LittleEndian.PutUint16(data[14:], 32)
	binary.LittleEndian.PutUint32(data[16:], biBitfields)
	binary.LittleEndian.PutUint32(data[40:], 0x00FF0000) // red
	binary.LittleEndian.PutUint32(data[44:], 0x0000FF00) // green
	binary.LittleEndian.PutUint32(data[48:], 0x000000FF) // blue

	px := data[headerSize:]
	for row := 0; row < height; row++ {
		src := pixels[height-row-1]
		for x := 0; x < width; x++ {
			off := (row*width + x) * 4
			px[off] = src[x].B
			px[off+1] = src[x].G
			px[off+2] = src[x].R
			px[off+3] = 0xFF
		}
	}

	img, err := DIBToImage(data)
	require.NoError(t, err)
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			got := color.NRGBAModel.Convert(img.At(x, y)).(color.NRGBA)
			assert.Equal(t, pixels[y][x], got, "pixel (%d,%d)", x, y)
		}
	}
}

func TestDIBToImageRGBFallback(t *testing.T) {
	// Uncompressed 24bpp BI_RGB goes through the BMP decoder. Rows are
	// padded to 4 bytes; 2px * 3 bytes = 6, padded to 8.
	width, height := 2, 2
	stride := 8
	data := make([]byte, 40+stride*height)
	binary.LittleEndian.PutUint32(data[0:], 40)
	binary.LittleEndian.PutUint32(data[4:], uint32(width))
	binary.LittleEndian.PutUint32(data[8:], uint32(height)) // bottom-up
	binary.LittleEndian.PutUint16(data[12:], 1)
	binary.LittleEndian.PutUint16(data[14:], 24)
	binary.LittleEndian.PutUint32(data[16:], biRGB)

	pixels := testPixels()
	px := data[40:]
	for row := 0; row < height; row++ {
		src := pixels[height-row-1]
		for x := 0; x < width; x++ {
			off := row*stride + x*3
			px[off] = src[x].B
			px[off+1] = src[x].G
			px[off+2] = src[x].R
		}
	}

	img, err := DIBToImage(data)
	require.NoError(t, err)
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			got := color.NRGBAModel.Convert(img.At(x, y)).(color.NRGBA)
			assert.Equal(t, pixels[y][x], got, "pixel (%d,%d)", x, y)
		}
	}
}
