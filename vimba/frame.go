package vimba

import (
	"fmt"
	"image"
	"time"

	"github.com/google/uuid"
)

// PixelFormat names an on-wire pixel layout.  Devices support many more
// formats than are enumerated here; the acquisition controller only ever
// requests these two.
type PixelFormat string

const (
	// PixelFormatRGB8 is 8 bits per channel, interleaved RGB.
	PixelFormatRGB8 PixelFormat = "RGB8"

	// PixelFormatMono8 is 8-bit grayscale.
	PixelFormatMono8 PixelFormat = "Mono8"
)

// BytesPerPixel returns the storage size of one pixel in this format.
func (p PixelFormat) BytesPerPixel() int {
	if p == PixelFormatRGB8 {
		return 3
	}
	return 1
}

// Frame is one acquired image.  Buf is row-major with no padding between
// rows.
type Frame struct {
	// ID uniquely identifies the frame within this process.
	ID uuid.UUID `json:"id"`

	// Width is the image width in pixels.
	Width int `json:"width"`

	// Height is the image height in pixels.
	Height int `json:"height"`

	// Format is the pixel layout of Buf.
	Format PixelFormat `json:"format"`

	// ReceivedAt is when the transfer completed.
	ReceivedAt time.Time `json:"receivedAt"`

	// Buf holds the pixel data.
	Buf []byte `json:"-"`
}

// Image converts the frame to a stdlib image for encoding to jpg or png.
// Mono8 shares the frame buffer; RGB8 copies, since image.RGBA carries
// an alpha channel the wire format lacks.
func (f Frame) Image() (image.Image, error) {
	need := f.Width * f.Height * f.Format.BytesPerPixel()
	if len(f.Buf) < need {
		return nil, fmt.Errorf("vimba: frame buffer holds %d bytes, %dx%d %s needs %d", len(f.Buf), f.Width, f.Height, f.Format, need)
	}
	rect := image.Rect(0, 0, f.Width, f.Height)
	switch f.Format {
	case PixelFormatMono8:
		return &image.Gray{Pix: f.Buf, Stride: f.Width, Rect: rect}, nil
	case PixelFormatRGB8:
		pix := make([]byte, f.Width*f.Height*4)
		for i, j := 0, 0; i < need; i, j = i+3, j+4 {
			pix[j] = f.Buf[i]
			pix[j+1] = f.Buf[i+1]
			pix[j+2] = f.Buf[i+2]
			pix[j+3] = 0xff
		}
		return &image.RGBA{Pix: pix, Stride: 4 * f.Width, Rect: rect}, nil
	}
	return nil, fmt.Errorf("vimba: no image conversion for pixel format %q", f.Format)
}
