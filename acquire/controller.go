/*Package acquire implements synchronous single-frame acquisition on top
of a vimba.System.

The Controller sequences the SDK calls for one grab: open the camera
exclusively, nudge the GigE packet size, read the geometry, pick a pixel
format, pull one frame, close.  Every call blocks until the SDK returns
or the acquisition timeout elapses; there is no internal parallelism and
no retry, every failure surfaces immediately to the caller.

*/
package acquire

import (
	"log"
	"sync"
	"time"

	"github.com/cenkalti/backoff"
	"github.com/pkg/errors"

	"github.com/lightpath/vimgrab/vimba"
)

const (
	// DefaultTimeout bounds one frame acquisition.
	DefaultTimeout = 2 * time.Second

	// packetSizeTimeout bounds the completion poll for
	// GVSPAdjustPacketSize.  The command usually finishes in a few
	// milliseconds; a camera that never reports done must not hang the
	// grab.
	packetSizeTimeout = 250 * time.Millisecond

	// eventBacklog is the depth of each hot-plug subscription channel.  A
	// subscriber that falls further behind loses events; they are
	// advisory.
	eventBacklog = 16
)

var errAdjustRunning = errors.New("packet size adjustment still running")

// Controller owns the runtime lifecycle and performs single-image grabs.
// Methods are safe for use from multiple goroutines; the acquisition
// itself is serial, one camera at a time per call.
type Controller struct {
	sys vimba.System

	// Timeout bounds each acquisition.  Set it before serving traffic;
	// per-call overrides thread through the HTTP layer.
	Timeout time.Duration

	mu        sync.Mutex
	started   bool
	listening bool
	width     int
	height    int
	format    vimba.PixelFormat

	subs  map[int]chan vimba.CameraListEvent
	subID int
}

// New returns a Controller for the given runtime session.
func New(sys vimba.System) *Controller {
	return &Controller{
		sys:     sys,
		Timeout: DefaultTimeout,
		subs:    map[int]chan vimba.CameraListEvent{},
	}
}

// Startup starts the SDK runtime and registers the camera hot-plug
// listener.  On failure the listener is not registered and the
// controller stays unusable.  The listener is registered once per
// controller; restarting after a Shutdown does not register a second.
func (c *Controller) Startup() error {
	if err := c.sys.Startup(); err != nil {
		return errors.Wrap(vimba.ErrRuntimeInit, err.Error())
	}
	c.mu.Lock()
	register := !c.listening
	c.listening = true
	c.started = true
	c.mu.Unlock()
	if register {
		c.sys.OnCameraListChanged(c.fanout)
	}
	return nil
}

func (c *Controller) fanout(ev vimba.CameraListEvent) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, ch := range c.subs {
		select {
		case ch <- ev:
		default:
			// subscriber is behind; hot-plug events are advisory
		}
	}
}

// Shutdown tears the runtime down.  Safe to call without a prior
// Startup, and more than once.
func (c *Controller) Shutdown() {
	c.mu.Lock()
	c.started = false
	c.mu.Unlock()
	if err := c.sys.Shutdown(); err != nil {
		log.Printf("runtime shutdown: %v", err)
	}
}

// GetCameraList returns the currently attached devices.  Enumeration
// failures yield an empty list: an unreachable transport and an empty
// lab look the same to callers, the distinction only exists in the log.
func (c *Controller) GetCameraList() []vimba.CameraInfo {
	cams, err := c.sys.Cameras()
	if err != nil {
		log.Printf("camera enumeration failed: %v", err)
		return []vimba.CameraInfo{}
	}
	return cams
}

// AcquireSingleImage opens the camera with the given ID, configures it,
// and grabs one frame within the controller's Timeout.  The camera is
// closed before returning on every path where the open succeeded.  The
// cached width/height/pixel-format accessors update only when the whole
// sequence succeeds.
func (c *Controller) AcquireSingleImage(id string) (vimba.Frame, error) {
	return c.acquire(id, c.Timeout)
}

func (c *Controller) acquire(id string, timeout time.Duration) (vimba.Frame, error) {
	c.mu.Lock()
	started := c.started
	c.mu.Unlock()
	if !started {
		return vimba.Frame{}, vimba.ErrNotStarted
	}

	cam, err := c.sys.OpenCamera(id, vimba.AccessFull)
	if err != nil {
		return vimba.Frame{}, vimba.CameraOpenError{ID: id, Cause: err}
	}
	defer cam.Close()

	c.adjustPacketSize(cam)

	width, err := cam.IntFeature(vimba.FeatureWidth)
	if err != nil {
		return vimba.Frame{}, vimba.FeatureAccessError{Feature: vimba.FeatureWidth, Cause: err}
	}
	height, err := cam.IntFeature(vimba.FeatureHeight)
	if err != nil {
		return vimba.Frame{}, vimba.FeatureAccessError{Feature: vimba.FeatureHeight, Cause: err}
	}

	if err := cam.SetEnumFeature(vimba.FeaturePixelFormat, string(vimba.PixelFormatRGB8)); err != nil {
		if err := cam.SetEnumFeature(vimba.FeaturePixelFormat, string(vimba.PixelFormatMono8)); err != nil {
			return vimba.Frame{}, errors.Wrap(vimba.ErrUnsupportedFormat, err.Error())
		}
	}
	// the device may coerce the request; the applied value is authoritative
	applied, err := cam.EnumFeature(vimba.FeaturePixelFormat)
	if err != nil {
		return vimba.Frame{}, vimba.FeatureAccessError{Feature: vimba.FeaturePixelFormat, Cause: err}
	}

	frame, err := cam.AcquireFrame(timeout)
	if err != nil {
		return vimba.Frame{}, err
	}

	c.mu.Lock()
	c.width = int(width)
	c.height = int(height)
	c.format = vimba.PixelFormat(applied)
	c.mu.Unlock()
	return frame, nil
}

// adjustPacketSize asks a GigE camera to maximize its transport packet
// size, polling the command's completion flag until it reports done or
// packetSizeTimeout elapses.  The command is an optimization; any
// failure here, including the feature not existing on non-GigE
// hardware, leaves the camera usable.
func (c *Controller) adjustPacketSize(cam vimba.Camera) {
	if err := cam.RunCommand(vimba.FeatureAdjustPacketSize); err != nil {
		return
	}
	backoff.Retry(func() error {
		done, err := cam.CommandDone(vimba.FeatureAdjustPacketSize)
		if err != nil {
			return backoff.Permanent(err)
		}
		if !done {
			return errAdjustRunning
		}
		return nil
	}, &backoff.ExponentialBackOff{
		InitialInterval:     time.Millisecond,
		RandomizationFactor: 0.,
		Multiplier:          2.,
		MaxInterval:         25 * time.Millisecond,
		MaxElapsedTime:      packetSizeTimeout,
		Clock:               backoff.SystemClock})
}

// GetWidth returns the image width from the most recent successful
// acquisition; zero before any has run.
func (c *Controller) GetWidth() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.width
}

// GetHeight returns the image height from the most recent successful
// acquisition; zero before any has run.
func (c *Controller) GetHeight() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.height
}

// GetPixelFormat returns the pixel format from the most recent
// successful acquisition; empty before any has run.
func (c *Controller) GetPixelFormat() vimba.PixelFormat {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.format
}

// Version returns the SDK build string.
func (c *Controller) Version() string {
	return c.sys.Version()
}

// Subscribe returns a hot-plug event feed and a cancel function
// releasing it.  Each subscriber has its own buffered channel; events
// are dropped, not blocked on, when a subscriber lags.  The channel is
// never closed; stop reading after cancel.
func (c *Controller) Subscribe() (<-chan vimba.CameraListEvent, func()) {
	ch := make(chan vimba.CameraListEvent, eventBacklog)
	c.mu.Lock()
	id := c.subID
	c.subID++
	c.subs[id] = ch
	c.mu.Unlock()
	cancel := func() {
		c.mu.Lock()
		delete(c.subs, id)
		c.mu.Unlock()
	}
	return ch, cancel
}
