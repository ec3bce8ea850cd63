// Package texture decodes image files and uploads them as GPU textures.
package texture

import (
	"encoding/binary"
	"errors"
	"fmt"
	"image"
	"image/color"
)

// TGA image types.
const (
	TGATypeTrueColor    = 2
	TGATypeGrayscale    = 3
	TGATypeRLETrueColor = 10
	TGATypeRLEGrayscale = 11
)

var errTGATruncated = errors.New("tga: pixel data truncated")

type tgaHeader struct {
	IDLength     uint8
	ColorMapType uint8
	ImageType    uint8
	ColorMap     [5]byte
	XOrigin      uint16
	YOrigin      uint16
	Width        uint16
	Height       uint16
	BitsPerPixel uint8
	Descriptor   uint8
}

const tgaHeaderSize = 18

// DecodeTGA decodes a TGA image. Supports uncompressed and RLE compressed
// true-color (24/32 bit) and grayscale (8 bit) images.
func DecodeTGA(data []byte) (image.Image, error) {
	if len(data) < tgaHeaderSize {
		return nil, fmt.Errorf("tga: header too short (%d bytes)", len(data))
	}

	var h tgaHeader
	h.IDLength = data[0]
	h.ColorMapType = data[1]
	h.ImageType = data[2]
	copy(h.ColorMap[:], data[3:8])
	h.XOrigin = binary.LittleEndian.Uint16(data[8:])
	h.YOrigin = binary.LittleEndian.Uint16(data[10:])
	h.Width = binary.LittleEndian.Uint16(data[12:])
	h.Height = binary.LittleEndian.Uint16(data[14:])
	h.BitsPerPixel = data[16]
	h.Descriptor = data[17]

	if h.ColorMapType != 0 {
		return nil, fmt.Errorf("tga: color-mapped images not supported")
	}

	gray := h.ImageType == TGATypeGrayscale || h.ImageType == TGATypeRLEGrayscale
	switch h.ImageType {
	case TGATypeTrueColor, TGATypeRLETrueColor:
		if h.BitsPerPixel != 24 && h.BitsPerPixel != 32 {
			return nil, fmt.Errorf("tga: unsupported true-color depth %d", h.BitsPerPixel)
		}
	case TGATypeGrayscale, TGATypeRLEGrayscale:
		if h.BitsPerPixel != 8 {
			return nil, fmt.Errorf("tga: unsupported grayscale depth %d", h.BitsPerPixel)
		}
	default:
		return nil, fmt.Errorf("tga: unsupported image type %d", h.ImageType)
	}
	if h.Width == 0 || h.Height == 0 {
		return nil, fmt.Errorf("tga: empty image %dx%d", h.Width, h.Height)
	}

	offset := tgaHeaderSize + int(h.IDLength)
	if offset > len(data) {
		return nil, errTGATruncated
	}

	d := tgaDecoder{
		img:         image.NewRGBA(image.Rect(0, 0, int(h.Width), int(h.Height))),
		width:       int(h.Width),
		height:      int(h.Height),
		bpp:         int(h.BitsPerPixel) / 8,
		gray:        gray,
		topToBottom: h.Descriptor&0x20 != 0,
	}

	var err error
	if h.ImageType == TGATypeRLETrueColor || h.ImageType == TGATypeRLEGrayscale {
		err = d.decodeRLE(data[offset:])
	} else {
		err = d.decodeRaw(data[offset:])
	}
	if err != nil {
		return nil, err
	}
	return d.img, nil
}

type tgaDecoder struct {
	img           *image.RGBA
	width, height int
	bpp           int
	gray          bool
	topToBottom   bool
}

func (d *tgaDecoder) pixel(p []byte) color.RGBA {
	if d.gray {
		return color.RGBA{R: p[0], G: p[0], B: p[0], A: 255}
	}
	// Stored as BGR(A)
	c := color.RGBA{R: p[2], G: p[1], B: p[0], A: 255}
	if d.bpp == 4 {
		c.A = p[3]
	}
	return c
}

// set writes the i-th pixel in file order.
func (d *tgaDecoder) set(i int, c color.RGBA) {
	x := i % d.width
	y := i / d.width
	// Bit 5 of the descriptor marks top-to-bottom rows
	if !d.topToBottom {
		y = d.height - 1 - y
	}
	d.img.SetRGBA(x, y, c)
}

func (d *tgaDecoder) decodeRaw(data []byte) error {
	count := d.width * d.height
	if len(data) < count*d.bpp {
		return errTGATruncated
	}
	for i := 0; i < count; i++ {
		d.set(i, d.pixel(data[i*d.bpp:]))
	}
	return nil
}

func (d *tgaDecoder) decodeRLE(data []byte) error {
	count := d.width * d.height
	pos := 0
	for i := 0; i < count; {
		if pos >= len(data) {
			return errTGATruncated
		}
		packet := data[pos]
		pos++
		n := int(packet&0x7F) + 1

		if packet&0x80 != 0 {
			// Run-length packet: one pixel repeated n times
			if pos+d.bpp > len(data) {
				return errTGATruncated
			}
			c := d.pixel(data[pos:])
			pos += d.bpp
			for j := 0; j < n && i < count; j++ {
				d.set(i, c)
				i++
			}
			continue
		}

		// Raw packet: n literal pixels
		for j := 0; j < n && i < count; j++ {
			if pos+d.bpp > len(data) {
				return errTGATruncated
			}
			d.set(i, d.pixel(data[pos:]))
			pos += d.bpp
			i++
		}
	}
	return nil
}

// IsMagentaKey checks if an RGB color matches the magenta transparency key
// used by older game assets. Tolerates small encoder deviations.
func IsMagentaKey(r, g, b uint8) bool {
	return r >= 250 && g <= 10 && b >= 250
}

// ApplyMagentaKey makes magenta pixels transparent black in place.
// Zeroing RGB keeps the key color from bleeding in during filtering.
func ApplyMagentaKey(img *image.RGBA) {
	b := img.Bounds()
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			i := img.PixOffset(x, y)
			if IsMagentaKey(img.Pix[i], img.Pix[i+1], img.Pix[i+2]) {
				img.Pix[i], img.Pix[i+1], img.Pix[i+2], img.Pix[i+3] = 0, 0, 0, 0
			}
		}
	}
}
