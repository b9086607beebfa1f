package acquire_test

import (
	"encoding/json"
	"image/png"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi"
	"github.com/gorilla/websocket"

	"github.com/lightpath/vimgrab/acquire"
	"github.com/lightpath/vimgrab/server"
	"github.com/lightpath/vimgrab/vimba"
	"github.com/lightpath/vimgrab/vimba/sim"
)

func testServer(t *testing.T, sys *sim.System) (*httptest.Server, *acquire.Controller) {
	t.Helper()
	c := startedController(t, sys)
	w := acquire.NewHTTPWrapper(c, nil)
	mux := chi.NewRouter()
	w.RouteTable.Bind(mux)
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv, c
}

func TestGetImagePNG(t *testing.T) {
	srv, _ := testServer(t, labSystem())
	resp, err := http.Get(srv.URL + "/image?camera=DEV_0001&fmt=png")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	if ct := resp.Header.Get("Content-Type"); ct != "image/png" {
		t.Errorf("expected image/png, got %s", ct)
	}
	im, err := png.Decode(resp.Body)
	if err != nil {
		t.Fatalf("decoding response: %v", err)
	}
	if b := im.Bounds(); b.Dx() != 640 || b.Dy() != 480 {
		t.Errorf("expected a 640x480 image, got %v", b)
	}
}

func TestGetImageFITS(t *testing.T) {
	srv, _ := testServer(t, labSystem())
	resp, err := http.Get(srv.URL + "/image?camera=DEV_0001&fmt=fits")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("reading body: %v", err)
	}
	if !strings.HasPrefix(string(body), "SIMPLE") {
		t.Error("expected the response to start with the FITS magic")
	}
}

func TestGetImageRequiresCamera(t *testing.T) {
	srv, _ := testServer(t, labSystem())
	resp, err := http.Get(srv.URL + "/image")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("expected 400 without a camera parameter, got %d", resp.StatusCode)
	}
}

func TestGetImageUnknownCamera(t *testing.T) {
	srv, _ := testServer(t, labSystem())
	resp, err := http.Get(srv.URL + "/image?camera=DEV_9999")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("expected 404 for an unknown camera, got %d", resp.StatusCode)
	}
}

func TestGetImageBadTimeout(t *testing.T) {
	srv, _ := testServer(t, labSystem())
	resp, err := http.Get(srv.URL + "/image?camera=DEV_0001&timeout=bogus")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("expected 400 for an unparseable timeout, got %d", resp.StatusCode)
	}
}

func TestGetImageTimeout(t *testing.T) {
	sys := labSystem(sim.Config{ID: "DEV_0002", AcquireLatency: 100 * time.Millisecond})
	srv, _ := testServer(t, sys)
	resp, err := http.Get(srv.URL + "/image?camera=DEV_0002&timeout=5ms")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusGatewayTimeout {
		t.Errorf("expected 504 on acquisition timeout, got %d", resp.StatusCode)
	}
}

func TestMetadataEndpoints(t *testing.T) {
	srv, _ := testServer(t, labSystem())
	if resp, err := http.Get(srv.URL + "/image?camera=DEV_0001"); err != nil {
		t.Fatalf("priming grab: %v", err)
	} else {
		resp.Body.Close()
	}

	resp, err := http.Get(srv.URL + "/width")
	if err != nil {
		t.Fatalf("get width: %v", err)
	}
	defer resp.Body.Close()
	var i server.IntT
	if err := json.NewDecoder(resp.Body).Decode(&i); err != nil {
		t.Fatalf("decoding width: %v", err)
	}
	if i.Int != 640 {
		t.Errorf("expected width 640, got %d", i.Int)
	}

	resp2, err := http.Get(srv.URL + "/pixel-format")
	if err != nil {
		t.Fatalf("get pixel format: %v", err)
	}
	defer resp2.Body.Close()
	var s server.StrT
	if err := json.NewDecoder(resp2.Body).Decode(&s); err != nil {
		t.Fatalf("decoding pixel format: %v", err)
	}
	if s.Str != string(vimba.PixelFormatMono8) {
		t.Errorf("expected Mono8, got %s", s.Str)
	}
}

func TestCamerasEndpoint(t *testing.T) {
	srv, _ := testServer(t, labSystem())
	resp, err := http.Get(srv.URL + "/cameras")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	defer resp.Body.Close()
	var cams []vimba.CameraInfo
	if err := json.NewDecoder(resp.Body).Decode(&cams); err != nil {
		t.Fatalf("decoding: %v", err)
	}
	if len(cams) != 1 || cams[0].ID != "DEV_0001" {
		t.Errorf("expected only DEV_0001, got %+v", cams)
	}
}

func TestVersionEndpoint(t *testing.T) {
	srv, _ := testServer(t, labSystem())
	resp, err := http.Get(srv.URL + "/version")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	defer resp.Body.Close()
	var s server.StrT
	if err := json.NewDecoder(resp.Body).Decode(&s); err != nil {
		t.Fatalf("decoding: %v", err)
	}
	if s.Str == "" {
		t.Error("expected a non-empty version string")
	}
}

func TestListOfRoutes(t *testing.T) {
	srv, _ := testServer(t, labSystem())
	resp, err := http.Get(srv.URL + "/list-of-routes")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	defer resp.Body.Close()
	var routes []string
	if err := json.NewDecoder(resp.Body).Decode(&routes); err != nil {
		t.Fatalf("decoding: %v", err)
	}
	found := false
	for _, r := range routes {
		if r == "GET /image" {
			found = true
		}
	}
	if !found {
		t.Errorf("expected GET /image in the route list, got %v", routes)
	}
}

func TestGetImageFeatureFault(t *testing.T) {
	sys := labSystem(sim.Config{ID: "DEV_0002", FailFeature: vimba.FeatureWidth})
	srv, _ := testServer(t, sys)
	resp, err := http.Get(srv.URL + "/image?camera=DEV_0002")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusBadGateway {
		t.Errorf("expected 502 for a device feature fault, got %d", resp.StatusCode)
	}
}

func TestRateLimitOnlyThrottlesImage(t *testing.T) {
	sys := labSystem()
	c := startedController(t, sys)
	w := acquire.NewHTTPWrapper(c, nil)
	w.LimitImageRate(1)
	mux := chi.NewRouter()
	w.RouteTable.Bind(mux)
	srv := httptest.NewServer(mux)
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/image?camera=DEV_0001")
	if err != nil {
		t.Fatalf("first grab: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected the first grab to pass, got %d", resp.StatusCode)
	}

	resp, err = http.Get(srv.URL + "/image?camera=DEV_0001")
	if err != nil {
		t.Fatalf("second grab: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusTooManyRequests {
		t.Errorf("expected the second immediate grab to be shed with 429, got %d", resp.StatusCode)
	}

	// metadata reads right after a grab must not be throttled
	for _, path := range []string{"/width", "/cameras", "/version"} {
		resp, err := http.Get(srv.URL + path)
		if err != nil {
			t.Fatalf("get %s: %v", path, err)
		}
		resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			t.Errorf("expected %s to pass unthrottled, got %d", path, resp.StatusCode)
		}
	}
}

func TestEventsWebsocket(t *testing.T) {
	sys := labSystem()
	srv, _ := testServer(t, sys)
	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http") + "/events"
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()
	// the handler subscribes just after the handshake
	time.Sleep(50 * time.Millisecond)
	sys.AddCamera(sim.Config{ID: "DEV_0002"})
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var ev vimba.CameraListEvent
	if err := conn.ReadJSON(&ev); err != nil {
		t.Fatalf("reading event: %v", err)
	}
	if ev.Type != vimba.CameraAttached || ev.Camera != "DEV_0002" {
		t.Errorf("expected an attach event for DEV_0002, got %+v", ev)
	}
}

func TestEventsSurviveClientDisconnect(t *testing.T) {
	sys := labSystem()
	srv, _ := testServer(t, sys)
	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http") + "/events"

	dead, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatalf("first dial: %v", err)
	}
	dead.Close()

	live, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatalf("second dial: %v", err)
	}
	defer live.Close()
	// the handler subscribes just after the handshake
	time.Sleep(50 * time.Millisecond)

	sys.AddCamera(sim.Config{ID: "DEV_0002"})
	live.SetReadDeadline(time.Now().Add(2 * time.Second))
	var ev vimba.CameraListEvent
	if err := live.ReadJSON(&ev); err != nil {
		t.Fatalf("live client never saw the hot-plug event: %v", err)
	}
	if ev.Camera != "DEV_0002" {
		t.Errorf("expected an event for DEV_0002, got %+v", ev)
	}
}

func TestEventsTwoClients(t *testing.T) {
	sys := labSystem()
	srv, _ := testServer(t, sys)
	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http") + "/events"

	var conns []*websocket.Conn
	for i := 0; i < 2; i++ {
		conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
		if err != nil {
			t.Fatalf("dial %d: %v", i, err)
		}
		defer conn.Close()
		conns = append(conns, conn)
	}
	// the handlers subscribe just after the handshake
	time.Sleep(50 * time.Millisecond)

	sys.AddCamera(sim.Config{ID: "DEV_0002"})
	for i, conn := range conns {
		conn.SetReadDeadline(time.Now().Add(2 * time.Second))
		var ev vimba.CameraListEvent
		if err := conn.ReadJSON(&ev); err != nil {
			t.Fatalf("client %d never saw the event: %v", i, err)
		}
		if ev.Camera != "DEV_0002" {
			t.Errorf("client %d: expected an event for DEV_0002, got %+v", i, ev)
		}
	}
}
