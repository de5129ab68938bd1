package tray

import (
	"bytes"
	"encoding/binary"
	"image"
	"image/color"
	"image/png"
	"runtime"
)

// iconBytes renders the tray icon at runtime: a scissor-less stand-in, just
// a framed square with a capture dot. systray wants ICO bytes on Windows
// and PNG elsewhere.
func iconBytes() []byte {
	pngData := renderPNG(32)
	if runtime.GOOS == "windows" {
		return icoWrap(pngData, 32)
	}
	return pngData
}

func renderPNG(size int) []byte {
	img := image.NewNRGBA(image.Rect(0, 0, size, size))
	frame := color.NRGBA{R: 0x2B, G: 0x57, B: 0x9A, A: 0xFF}
	fill := color.NRGBA{R: 0xE8, G: 0xEE, B: 0xF7, A: 0xFF}
	dot := color.NRGBA{R: 0xD0, G: 0x43, B: 0x3E, A: 0xFF}

	border := size / 8
	for y := 0; y < size; y++ {
		for x := 0; x < size; x++ {
			switch {
			case x < border || y < border || x >= size-border || y >= size-border:
				img.SetNRGBA(x, y, frame)
			default:
				img.SetNRGBA(x, y, fill)
			}
		}
	}
	// Capture indicator in the lower right quadrant.
	cx, cy, r := size*2/3, size*2/3, size/6
	for y := cy - r; y <= cy+r; y++ {
		for x := cx - r; x <= cx+r; x++ {
			dx, dy := x-cx, y-cy
			if dx*dx+dy*dy <= r*r {
				img.SetNRGBA(x, y, dot)
			}
		}
	}

	var buf bytes.Buffer
	png.Encode(&buf, img)
	return buf.Bytes()
}

// icoWrap wraps PNG data in a single-image ICO container, which Windows
// accepts for PNG-compressed icons.
func icoWrap(pngData []byte, size int) []byte {
	var buf bytes.Buffer
	dim := byte(size)
	if size >= 256 {
		dim = 0
	}
	// ICONDIR
	binary.Write(&buf, binary.LittleEndian, uint16(0)) // reserved
	binary.Write(&buf, binary.LittleEndian, uint16(1)) // type: icon
	binary.Write(&buf, binary.LittleEndian, uint16(1)) // count
	// ICONDIRENTRY
	buf.WriteByte(dim)                                             // width
	buf.WriteByte(dim)                                             // height
	buf.WriteByte(0)                                               // palette
	buf.WriteByte(0)                                               // reserved
	binary.Write(&buf, binary.LittleEndian, uint16(1))             // planes
	binary.Write(&buf, binary.LittleEndian, uint16(32))            // bpp
	binary.Write(&buf, binary.LittleEndian, uint32(len(pngData)))  // size
	binary.Write(&buf, binary.LittleEndian, uint32(6+16))          // offset
	buf.Write(pngData)
	return buf.Bytes()
}
