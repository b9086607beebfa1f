package sim

import (
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/lightpath/vimgrab/vimba"
)

// device is the persistent state of one virtual camera; handles come and
// go, the device stays.
type device struct {
	mu     sync.Mutex
	cfg    Config
	format vimba.PixelFormat

	open   bool
	opens  int
	closes int
	frames int
	gone   bool
	gen    int
	adjRun bool
	adjAt  time.Time
}

func newDevice(cfg Config) *device {
	// power-up format: Mono8 when accepted, else whatever is first
	format := cfg.Formats[0]
	for _, f := range cfg.Formats {
		if f == vimba.PixelFormatMono8 {
			format = f
		}
	}
	return &device{cfg: cfg, format: format}
}

func (d *device) openHandle(mode vimba.AccessMode) (vimba.Camera, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.gone {
		return nil, errUnknownCamera
	}
	if d.cfg.FailOpen {
		return nil, errOpenRejected
	}
	if mode == vimba.AccessFull && d.open {
		return nil, errCameraBusy
	}
	d.open = true
	d.opens++
	return &handle{dev: d, gen: d.gen}, nil
}

func (d *device) stats() Stats {
	d.mu.Lock()
	defer d.mu.Unlock()
	return Stats{Opens: d.opens, Closes: d.closes, Open: d.open}
}

// invalidate marks the device unusable, as on unplug or runtime
// shutdown.  Existing handles error from then on.
func (d *device) invalidate() {
	d.mu.Lock()
	d.gone = true
	d.open = false
	d.mu.Unlock()
}

// revive brings the device back after a runtime restart.  The
// generation bump keeps handles from before the restart dead.
func (d *device) revive() {
	d.mu.Lock()
	if d.gone {
		d.gone = false
		d.gen++
	}
	d.mu.Unlock()
}

// handle is one open session on a device; it implements vimba.Camera.
type handle struct {
	mu     sync.Mutex
	dev    *device
	gen    int
	closed bool
}

func (h *handle) live() error {
	h.mu.Lock()
	closed := h.closed
	h.mu.Unlock()
	if closed {
		return errHandleClosed
	}
	h.dev.mu.Lock()
	stale := h.dev.gone || h.dev.gen != h.gen
	h.dev.mu.Unlock()
	if stale {
		return errUnknownCamera
	}
	return nil
}

// ID implements vimba.Camera.
func (h *handle) ID() string { return h.dev.cfg.ID }

// Close implements vimba.Camera.  Closing twice is a no-op; the close is
// only counted once.
func (h *handle) Close() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return nil
	}
	h.closed = true
	d := h.dev
	d.mu.Lock()
	d.open = false
	d.closes++
	d.mu.Unlock()
	return nil
}

func (h *handle) checkFeature(name string) error {
	if name == h.dev.cfg.FailFeature {
		return errors.Wrap(errFeatureFault, name)
	}
	return nil
}

// IntFeature implements vimba.Camera.
func (h *handle) IntFeature(name string) (int64, error) {
	if err := h.live(); err != nil {
		return 0, err
	}
	if err := h.checkFeature(name); err != nil {
		return 0, err
	}
	d := h.dev
	d.mu.Lock()
	defer d.mu.Unlock()
	switch name {
	case vimba.FeatureWidth:
		return int64(d.cfg.Width), nil
	case vimba.FeatureHeight:
		return int64(d.cfg.Height), nil
	}
	return 0, errors.Wrap(vimba.ErrFeatureNotFound, name)
}

// EnumFeature implements vimba.Camera.
func (h *handle) EnumFeature(name string) (string, error) {
	if err := h.live(); err != nil {
		return "", err
	}
	if err := h.checkFeature(name); err != nil {
		return "", err
	}
	if name != vimba.FeaturePixelFormat {
		return "", errors.Wrap(vimba.ErrFeatureNotFound, name)
	}
	d := h.dev
	d.mu.Lock()
	defer d.mu.Unlock()
	return string(d.format), nil
}

// SetEnumFeature implements vimba.Camera.
func (h *handle) SetEnumFeature(name, value string) error {
	if err := h.live(); err != nil {
		return err
	}
	if err := h.checkFeature(name); err != nil {
		return err
	}
	if name != vimba.FeaturePixelFormat {
		return errors.Wrap(vimba.ErrFeatureNotFound, name)
	}
	d := h.dev
	d.mu.Lock()
	defer d.mu.Unlock()
	for _, f := range d.cfg.Formats {
		if string(f) == value {
			d.format = f
			return nil
		}
	}
	return errors.Wrapf(errInvalidValue, "%s=%s", name, value)
}

// RunCommand implements vimba.Camera.  Only GVSPAdjustPacketSize exists,
// and only on GigE devices.
func (h *handle) RunCommand(name string) error {
	if err := h.live(); err != nil {
		return err
	}
	if err := h.checkFeature(name); err != nil {
		return err
	}
	if name != vimba.FeatureAdjustPacketSize || !h.dev.cfg.GigE {
		return errors.Wrap(vimba.ErrFeatureNotFound, name)
	}
	d := h.dev
	d.mu.Lock()
	d.adjRun = true
	d.adjAt = time.Now()
	d.mu.Unlock()
	return nil
}

// CommandDone implements vimba.Camera.
func (h *handle) CommandDone(name string) (bool, error) {
	if err := h.live(); err != nil {
		return false, err
	}
	if name != vimba.FeatureAdjustPacketSize || !h.dev.cfg.GigE {
		return false, errors.Wrap(vimba.ErrFeatureNotFound, name)
	}
	d := h.dev
	d.mu.Lock()
	defer d.mu.Unlock()
	if !d.adjRun {
		return false, errNotRun
	}
	return time.Since(d.adjAt) >= d.cfg.PacketSizeLatency, nil
}

// AcquireFrame implements vimba.Camera.  The frame travels through the
// simulated transport, which stamps and verifies a CRC trailer.
func (h *handle) AcquireFrame(timeout time.Duration) (vimba.Frame, error) {
	if err := h.live(); err != nil {
		return vimba.Frame{}, err
	}
	d := h.dev
	d.mu.Lock()
	lat := d.cfg.AcquireLatency
	if lat > timeout {
		d.mu.Unlock()
		time.Sleep(timeout)
		return vimba.Frame{}, vimba.ErrAcquisitionTimeout
	}
	width, height := d.cfg.Width, d.cfg.Height
	format := d.format
	corrupt := d.cfg.CorruptTransfer
	d.frames++
	seq := d.frames
	d.mu.Unlock()
	if lat > 0 {
		time.Sleep(lat)
	}
	wire := stamp(testPattern(width, height, format, seq))
	if corrupt {
		wire[0] ^= 0xff
	}
	payload, err := receive(wire)
	if err != nil {
		return vimba.Frame{}, err
	}
	return vimba.Frame{
		ID:         uuid.New(),
		Width:      width,
		Height:     height,
		Format:     format,
		ReceivedAt: time.Now(),
		Buf:        payload,
	}, nil
}

// testPattern renders a diagonal gradient that shifts with the frame
// sequence number, so consecutive frames are distinguishable.
func testPattern(width, height int, format vimba.PixelFormat, seq int) []byte {
	n := width * height
	if format == vimba.PixelFormatRGB8 {
		buf := make([]byte, 3*n)
		for y := 0; y < height; y++ {
			for x := 0; x < width; x++ {
				i := 3 * (y*width + x)
				buf[i] = byte(x)
				buf[i+1] = byte(y)
				buf[i+2] = byte(seq)
			}
		}
		return buf
	}
	buf := make([]byte, n)
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			buf[y*width+x] = byte(x + y + seq)
		}
	}
	return buf
}
