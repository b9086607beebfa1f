/*Package vimba defines the seam between this repository and a
machine-vision SDK runtime.

The System interface stands in for the SDK's session object.  Passing a
System to consumers explicitly, instead of reaching for a process-wide
singleton, keeps the lifecycle visible and lets tests supply a simulated
runtime (see package sim).

*/
package vimba

import "time"

// Feature names used by the acquisition sequence.  The set of features a
// given device carries is much larger; these are the only ones this
// repository touches.
const (
	// FeatureWidth is the current image width in pixels.
	FeatureWidth = "Width"

	// FeatureHeight is the current image height in pixels.
	FeatureHeight = "Height"

	// FeaturePixelFormat is the on-wire pixel layout.
	FeaturePixelFormat = "PixelFormat"

	// FeatureAdjustPacketSize is a command feature on GigE devices which
	// negotiates the largest transport packet size the link supports.
	FeatureAdjustPacketSize = "GVSPAdjustPacketSize"
)

// AccessMode selects how a camera is opened.
type AccessMode int

const (
	// AccessFull opens the camera for exclusive control.
	AccessFull AccessMode = iota

	// AccessRead opens the camera for shared, read-only use.
	AccessRead
)

// CameraInfo identifies a discovered device.  The ID format is owned by
// the SDK's transport layer and is opaque here.
type CameraInfo struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Model     string `json:"model"`
	Serial    string `json:"serial"`
	Interface string `json:"interface"`
}

// System is one SDK runtime session.  It must be started before any
// device operation and must not be used after Shutdown.
type System interface {
	// Startup initializes the runtime and its transport layers.
	Startup() error

	// Shutdown tears the runtime down.  Implementations tolerate being
	// called without a prior Startup, and more than once.
	Shutdown() error

	// Version returns a human-readable string identifying the SDK build.
	Version() string

	// Cameras lists the currently attached devices.
	Cameras() ([]CameraInfo, error)

	// OpenCamera opens a device by ID.  The returned Camera must be
	// closed by the caller.
	OpenCamera(id string, mode AccessMode) (Camera, error)

	// OnCameraListChanged registers a hot-plug listener.  The callback
	// runs on an SDK-managed goroutine; it must not block.
	OnCameraListChanged(fn func(CameraListEvent))
}

// Camera is an open device handle.  All methods block until the SDK
// returns.
type Camera interface {
	// ID returns the device ID the handle was opened with.
	ID() string

	// IntFeature reads an integer feature by name.
	IntFeature(name string) (int64, error)

	// EnumFeature reads an enum feature's current value by name.
	EnumFeature(name string) (string, error)

	// SetEnumFeature writes an enum feature.  Devices may reject values
	// outside their supported set, or coerce the request; read back to
	// learn what was applied.
	SetEnumFeature(name, value string) error

	// RunCommand begins execution of a command feature.
	RunCommand(name string) error

	// CommandDone reports whether a previously run command feature has
	// finished.
	CommandDone(name string) (bool, error)

	// AcquireFrame captures a single frame, blocking up to timeout.
	// Ownership of the frame buffer passes to the caller on success.
	AcquireFrame(timeout time.Duration) (Frame, error)

	// Close releases the handle.  The device is reusable afterward.
	Close() error
}
