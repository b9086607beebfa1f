package vimba

import (
	"time"

	"github.com/google/uuid"
)

// EventType classifies a camera list change.
type EventType string

const (
	// CameraAttached fires when a device appears on a transport.
	CameraAttached EventType = "attached"

	// CameraDetached fires when a device disappears.
	CameraDetached EventType = "detached"
)

// CameraListEvent is one hot-plug notification.  The payload is not
// interpreted here; consumers such as a UI layer decide what to do with
// it.
type CameraListEvent struct {
	// ID uniquely identifies the event within this process.
	ID uuid.UUID `json:"id"`

	// Type says whether the camera appeared or disappeared.
	Type EventType `json:"type"`

	// Camera is the device ID the event concerns.
	Camera string `json:"camera"`

	// At is when the change was observed.
	At time.Time `json:"at"`
}
