/*Package sim is an in-memory stand-in for a Vimba installation.

It implements vimba.System against virtual devices so the acquisition
controller, the HTTP server, and the tests can run without hardware.
Virtual cameras are described by Config and can inject the faults the
real SDK produces: refused opens, broken enumeration, slow or corrupt
transfers.

*/
package sim

import (
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/lightpath/vimgrab/vimba"
)

// Version is the build string the simulated runtime reports.
const Version = "Vimba Sim/1.2 GigE+USB transport set"

var (
	errUnknownCamera = errors.New("sim: no camera with that ID is attached")
	errCameraBusy    = errors.New("sim: camera is held by another consumer")
	errOpenRejected  = errors.New("sim: device refused the open")
	errNotRun        = errors.New("sim: command has not been run")
	errHandleClosed  = errors.New("sim: operation on closed camera handle")
	errFeatureFault  = errors.New("sim: injected feature fault")
	errInvalidValue  = errors.New("sim: value not in the feature's supported set")
	errEnumerate     = errors.New("sim: enumeration fault injected")
	errTransport     = errors.New("sim: transport layer failed to load")
)

// Config describes one virtual camera.
type Config struct {
	// ID is the transport-layer device ID, e.g. "DEV_0001".
	ID string

	// Model and Serial fill the enumeration record.  Defaulted when
	// empty.
	Model  string
	Serial string

	// Width and Height are the sensor dimensions.  Default 640x480.
	Width  int
	Height int

	// Formats lists the pixel formats the device accepts.  Empty means
	// both RGB8 and Mono8.
	Formats []vimba.PixelFormat

	// GigE controls whether the device carries the GVSPAdjustPacketSize
	// command feature.
	GigE bool

	// PacketSizeLatency is how long GVSPAdjustPacketSize takes to report
	// completion.
	PacketSizeLatency time.Duration

	// AcquireLatency is how long frame delivery takes.  Longer than the
	// acquisition timeout forces a timeout error.
	AcquireLatency time.Duration

	// CorruptTransfer flips a wire byte after the CRC trailer is
	// stamped, so every acquisition fails the transfer check.
	CorruptTransfer bool

	// FailOpen rejects every open, as if another host held the camera.
	FailOpen bool

	// FailFeature names a feature whose every access errors.
	FailFeature string
}

// Stats reports per-device handle accounting, for tests that assert on
// open/close pairing.
type Stats struct {
	// Opens is the number of successful opens.
	Opens int

	// Closes is the number of handle closes.
	Closes int

	// Open is true while a handle is outstanding.
	Open bool
}

// System implements vimba.System against a registry of virtual devices.
// The zero value is not usable; call New.
type System struct {
	mu        sync.Mutex
	started   bool
	cams      map[string]*device
	order     []string
	listeners []func(vimba.CameraListEvent)

	// FailStartup makes Startup fail, like a broken transport install.
	FailStartup bool

	// FailEnumerate makes Cameras return an error.
	FailEnumerate bool
}

// New returns a System with no cameras attached.
func New() *System {
	return &System{cams: map[string]*device{}}
}

// AddCamera attaches a virtual camera.  If the runtime is started, a
// hot-plug event fires.
func (s *System) AddCamera(cfg Config) {
	if cfg.Width == 0 {
		cfg.Width = 640
	}
	if cfg.Height == 0 {
		cfg.Height = 480
	}
	if cfg.Model == "" {
		cfg.Model = "SimCam C-080"
	}
	if cfg.Serial == "" {
		cfg.Serial = "50-" + cfg.ID
	}
	if len(cfg.Formats) == 0 {
		cfg.Formats = []vimba.PixelFormat{vimba.PixelFormatRGB8, vimba.PixelFormatMono8}
	}
	d := newDevice(cfg)
	s.mu.Lock()
	s.cams[cfg.ID] = d
	s.order = append(s.order, cfg.ID)
	started := s.started
	s.mu.Unlock()
	if started {
		s.notify(vimba.CameraAttached, cfg.ID)
	}
}

// RemoveCamera detaches a virtual camera, firing a hot-plug event if the
// runtime is started.  An outstanding handle keeps erroring afterward.
func (s *System) RemoveCamera(id string) {
	s.mu.Lock()
	d, ok := s.cams[id]
	if ok {
		delete(s.cams, id)
		for i, v := range s.order {
			if v == id {
				s.order = append(s.order[:i], s.order[i+1:]...)
				break
			}
		}
	}
	started := s.started
	s.mu.Unlock()
	if !ok {
		return
	}
	d.invalidate()
	if started {
		s.notify(vimba.CameraDetached, id)
	}
}

// Stats returns the handle accounting for one device.  The zero Stats is
// returned for unknown IDs.
func (s *System) Stats(id string) Stats {
	s.mu.Lock()
	d, ok := s.cams[id]
	s.mu.Unlock()
	if !ok {
		return Stats{}
	}
	return d.stats()
}

// Startup implements vimba.System.  Devices invalidated by a prior
// Shutdown come back; handles do not.
func (s *System) Startup() error {
	if s.FailStartup {
		return errTransport
	}
	s.mu.Lock()
	s.started = true
	cams := make([]*device, 0, len(s.cams))
	for _, d := range s.cams {
		cams = append(cams, d)
	}
	s.mu.Unlock()
	for _, d := range cams {
		d.revive()
	}
	return nil
}

// Shutdown implements vimba.System.  Idempotent; outstanding handles are
// invalidated.
func (s *System) Shutdown() error {
	s.mu.Lock()
	s.started = false
	cams := make([]*device, 0, len(s.cams))
	for _, d := range s.cams {
		cams = append(cams, d)
	}
	s.mu.Unlock()
	for _, d := range cams {
		d.invalidate()
	}
	return nil
}

// Version implements vimba.System.
func (s *System) Version() string { return Version }

// Cameras implements vimba.System, listing devices in attach order.
func (s *System) Cameras() ([]vimba.CameraInfo, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.started {
		return nil, vimba.ErrNotStarted
	}
	if s.FailEnumerate {
		return nil, errEnumerate
	}
	out := make([]vimba.CameraInfo, 0, len(s.order))
	for _, id := range s.order {
		cfg := s.cams[id].cfg
		iface := "USB3"
		if cfg.GigE {
			iface = "GigE"
		}
		out = append(out, vimba.CameraInfo{
			ID:        cfg.ID,
			Name:      cfg.Model + " (" + cfg.ID + ")",
			Model:     cfg.Model,
			Serial:    cfg.Serial,
			Interface: iface,
		})
	}
	return out, nil
}

// OpenCamera implements vimba.System.
func (s *System) OpenCamera(id string, mode vimba.AccessMode) (vimba.Camera, error) {
	s.mu.Lock()
	if !s.started {
		s.mu.Unlock()
		return nil, vimba.ErrNotStarted
	}
	d, ok := s.cams[id]
	s.mu.Unlock()
	if !ok {
		return nil, errUnknownCamera
	}
	return d.openHandle(mode)
}

// OnCameraListChanged implements vimba.System.
func (s *System) OnCameraListChanged(fn func(vimba.CameraListEvent)) {
	s.mu.Lock()
	s.listeners = append(s.listeners, fn)
	s.mu.Unlock()
}

// Listeners returns how many hot-plug listeners are registered.
func (s *System) Listeners() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.listeners)
}

// notify delivers a hot-plug event to every listener on its own
// goroutine, mimicking the SDK's callback thread.
func (s *System) notify(typ vimba.EventType, id string) {
	ev := vimba.CameraListEvent{
		ID:     uuid.New(),
		Type:   typ,
		Camera: id,
		At:     time.Now(),
	}
	s.mu.Lock()
	listeners := append([]func(vimba.CameraListEvent){}, s.listeners...)
	s.mu.Unlock()
	for _, fn := range listeners {
		go fn(ev)
	}
}
