package acquire

import (
	"encoding/json"
	"errors"
	"fmt"
	"go/types"
	"image/jpeg"
	"image/png"
	"io"
	"log"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/lightpath/vimgrab/imgrec"
	"github.com/lightpath/vimgrab/server"
	"github.com/lightpath/vimgrab/server/middleware/ratelimit"
	"github.com/lightpath/vimgrab/util"
	"github.com/lightpath/vimgrab/vimba"
)

// HTTPWrapper exposes a Controller over HTTP.
type HTTPWrapper struct {
	// Controller is the wrapped acquisition controller.
	*Controller

	// Recorder, when enabled, receives a copy of every FITS response.
	Recorder *imgrec.Recorder

	// RouteTable holds the routes; bind it onto a chi router with
	// RouteTable.Bind.
	RouteTable server.RouteTable

	upgrader websocket.Upgrader
}

// NewHTTPWrapper returns a wrapper with the route table populated.
func NewHTTPWrapper(c *Controller, rec *imgrec.Recorder) *HTTPWrapper {
	h := &HTTPWrapper{Controller: c, Recorder: rec}
	h.RouteTable = server.RouteTable{
		{Method: http.MethodGet, Path: "/version"}: h.GetVersion,
		{Method: http.MethodGet, Path: "/cameras"}: h.GetCameras,
		{Method: http.MethodGet, Path: "/image"}:   h.GetImage,
		{Method: http.MethodGet, Path: "/events"}:  h.Events,

		// metadata of the most recent successful acquisition
		{Method: http.MethodGet, Path: "/width"}:        h.GetWidth,
		{Method: http.MethodGet, Path: "/height"}:       h.GetHeight,
		{Method: http.MethodGet, Path: "/pixel-format"}: h.GetPixelFormat,
	}
	if rec != nil {
		rec.Inject(h.RouteTable)
	}
	return h
}

// LimitImageRate wraps the image route with a limiter admitting r
// acquisitions per second.  Only the image route is limited; metadata
// and enumeration stay unthrottled.  Call before binding the table.
func (h *HTTPWrapper) LimitImageRate(r float64) {
	mp := server.MethodPath{Method: http.MethodGet, Path: "/image"}
	h.RouteTable[mp] = ratelimit.New(r, 1)(h.RouteTable[mp]).ServeHTTP
}

// GetVersion returns the SDK build string.
func (h *HTTPWrapper) GetVersion(w http.ResponseWriter, r *http.Request) {
	hp := server.HumanPayload{T: types.String, String: h.Controller.Version()}
	hp.EncodeAndRespond(w, r)
}

// GetCameras lists the currently attached cameras as JSON.
func (h *HTTPWrapper) GetCameras(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(h.Controller.GetCameraList()); err != nil {
		log.Printf("encoding camera list: %v", err)
	}
}

// GetWidth returns the cached image width.
func (h *HTTPWrapper) GetWidth(w http.ResponseWriter, r *http.Request) {
	hp := server.HumanPayload{T: types.Int, Int: h.Controller.GetWidth()}
	hp.EncodeAndRespond(w, r)
}

// GetHeight returns the cached image height.
func (h *HTTPWrapper) GetHeight(w http.ResponseWriter, r *http.Request) {
	hp := server.HumanPayload{T: types.Int, Int: h.Controller.GetHeight()}
	hp.EncodeAndRespond(w, r)
}

// GetPixelFormat returns the cached pixel format.
func (h *HTTPWrapper) GetPixelFormat(w http.ResponseWriter, r *http.Request) {
	hp := server.HumanPayload{T: types.String, String: string(h.Controller.GetPixelFormat())}
	hp.EncodeAndRespond(w, r)
}

// GetImage grabs a single image and returns it on a GET request.
//
// the camera ID must be given in the camera query parameter.
//
// the image format may be specified in the fmt query parameter as jpg,
// png, or fits; default jpg.
//
// the acquisition timeout may be specified in the timeout query
// parameter in any time-looking format, such as "1500ms" or "2s".  If no
// unit is appended an s (seconds) is assumed.  Without the parameter the
// controller's default is used.
func (h *HTTPWrapper) GetImage(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	id := q.Get("camera")
	if id == "" {
		http.Error(w, "camera query parameter is required", http.StatusBadRequest)
		return
	}
	timeout := h.Controller.Timeout
	if t := q.Get("timeout"); t != "" {
		if util.AllElementsNumbers(t) {
			t = t + "s"
		}
		d, err := time.ParseDuration(t)
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		timeout = d
	}
	frame, err := h.Controller.acquire(id, timeout)
	if err != nil {
		http.Error(w, err.Error(), statusFor(err))
		return
	}

	format := q.Get("fmt")
	if format == "" {
		format = "jpg"
	}
	switch format {
	case "jpg":
		im, err := frame.Image()
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "image/jpeg")
		jpeg.Encode(w, im, nil)
	case "png":
		im, err := frame.Image()
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "image/png")
		png.Encode(w, im)
	case "fits":
		var w2 io.Writer = w
		if h.Recorder != nil && h.Recorder.Enabled && h.Recorder.Root != "" {
			w2 = io.MultiWriter(w, h.Recorder)
			defer h.Recorder.Incr()
		}
		hdr := w.Header()
		hdr.Set("Content-Type", "image/fits")
		hdr.Set("Content-Disposition", "attachment; filename=image.fits")
		if err := WriteFITS(w2, frame); err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
		}
	default:
		http.Error(w, fmt.Sprintf("unknown image format %q", format), http.StatusBadRequest)
	}
}

// Events upgrades to a websocket and forwards hot-plug notifications as
// JSON until the client goes away.  Each connection holds its own
// subscription, released when the client disconnects.
func (h *HTTPWrapper) Events(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade has already replied to the client
		return
	}
	defer conn.Close()
	events, cancel := h.Controller.Subscribe()
	defer cancel()
	done := make(chan struct{})
	go func() {
		// drain the client; the read errors when the peer goes away
		defer close(done)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()
	for {
		select {
		case ev := <-events:
			if err := conn.WriteJSON(ev); err != nil {
				return
			}
		case <-done:
			return
		}
	}
}

// statusFor maps acquisition errors onto HTTP statuses.
func statusFor(err error) int {
	var (
		oe vimba.CameraOpenError
		fe vimba.FeatureAccessError
	)
	switch {
	case errors.Is(err, vimba.ErrNotStarted):
		return http.StatusServiceUnavailable
	case errors.As(err, &oe):
		return http.StatusNotFound
	case errors.Is(err, vimba.ErrAcquisitionTimeout):
		return http.StatusGatewayTimeout
	case errors.Is(err, vimba.ErrUnsupportedFormat):
		return http.StatusUnprocessableEntity
	case errors.As(err, &fe):
		return http.StatusBadGateway
	}
	return http.StatusInternalServerError
}
