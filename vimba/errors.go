package vimba

import (
	"errors"
	"fmt"
)

// Sentinel errors for the acquisition sequence.  Wrapped values carry
// cause detail; match with errors.Is.
var (
	// ErrNotStarted is returned for any device operation attempted
	// before the runtime has been started, or after it was shut down.
	ErrNotStarted = errors.New("vimba: runtime not started")

	// ErrRuntimeInit is returned when the runtime session cannot start.
	ErrRuntimeInit = errors.New("vimba: runtime failed to initialize")

	// ErrUnsupportedFormat is returned when the device rejects every
	// pixel format the controller knows how to request.
	ErrUnsupportedFormat = errors.New("vimba: device accepts neither RGB8 nor Mono8")

	// ErrAcquisitionTimeout is returned when no frame arrives within the
	// acquisition timeout.
	ErrAcquisitionTimeout = errors.New("vimba: acquisition timed out")

	// ErrTransfer is returned when a frame arrives but the transfer was
	// reported bad by the transport layer.
	ErrTransfer = errors.New("vimba: frame transfer failed")

	// ErrFeatureNotFound is returned when a feature name is not carried
	// by the device.
	ErrFeatureNotFound = errors.New("vimba: feature not found")
)

// CameraOpenError indicates a camera could not be opened, either because
// the ID is unknown or the device is held by another consumer.
type CameraOpenError struct {
	// ID is the camera ID the open was attempted with.
	ID string

	// Cause is the SDK-reported reason.
	Cause error
}

func (e CameraOpenError) Error() string {
	return fmt.Sprintf("vimba: unable to open camera %q: %v", e.ID, e.Cause)
}

// Unwrap satisfies errors.Is / errors.As chains.
func (e CameraOpenError) Unwrap() error { return e.Cause }

// FeatureAccessError indicates a feature read or write failed.
type FeatureAccessError struct {
	// Feature is the feature name the access targeted.
	Feature string

	// Cause is the SDK-reported reason.
	Cause error
}

func (e FeatureAccessError) Error() string {
	return fmt.Sprintf("vimba: feature %q access failed: %v", e.Feature, e.Cause)
}

// Unwrap satisfies errors.Is / errors.As chains.
func (e FeatureAccessError) Unwrap() error { return e.Cause }
