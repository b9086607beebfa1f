package acquire

import (
	"io"
	"time"

	"github.com/astrogo/fitsio"

	"github.com/lightpath/vimgrab/vimba"
)

// WriteFITS streams a frame to w as a FITS image.  Mono8 maps to a 2D
// image, RGB8 to a [width, height, 3] cube with the channels
// de-interleaved into planes.  Samples are stored as 16-bit with the
// usual BZERO offset so unsigned data round-trips.
func WriteFITS(w io.Writer, frame vimba.Frame) error {
	f, err := fitsio.Create(w)
	if err != nil {
		return err
	}
	defer f.Close()

	n := frame.Width * frame.Height
	var (
		dims []int
		data []int16
	)
	switch frame.Format {
	case vimba.PixelFormatRGB8:
		dims = []int{frame.Width, frame.Height, 3}
		data = make([]int16, 3*n)
		for i := 0; i < n; i++ {
			for ch := 0; ch < 3; ch++ {
				data[ch*n+i] = int16(int(frame.Buf[3*i+ch]) - 32768)
			}
		}
	default:
		dims = []int{frame.Width, frame.Height}
		data = make([]int16, n)
		for i := 0; i < n; i++ {
			data[i] = int16(int(frame.Buf[i]) - 32768)
		}
	}

	im := fitsio.NewImage(16, dims)
	defer im.Close()
	err = im.Header().Append(
		fitsio.Card{Name: "BZERO", Value: 32768},
		fitsio.Card{Name: "BSCALE", Value: 1.0},
		fitsio.Card{Name: "PIXFMT", Value: string(frame.Format), Comment: "camera pixel format"},
		fitsio.Card{Name: "FRAMEID", Value: frame.ID.String()},
		fitsio.Card{Name: "DATE-OBS", Value: frame.ReceivedAt.UTC().Format(time.RFC3339)},
	)
	if err != nil {
		return err
	}
	if err := im.Write(data); err != nil {
		return err
	}
	return f.Write(im)
}
