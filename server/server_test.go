package server_test

import (
	"encoding/json"
	"go/types"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi"

	"github.com/lightpath/vimgrab/server"
)

func TestHumanPayloadEnvelopes(t *testing.T) {
	cases := []struct {
		name string
		hp   server.HumanPayload
		want string
	}{
		{"int", server.HumanPayload{T: types.Int, Int: 5}, `{"int":5}`},
		{"float", server.HumanPayload{T: types.Float64, Float: 1.5}, `{"f64":1.5}`},
		{"bool", server.HumanPayload{T: types.Bool, Bool: true}, `{"bool":true}`},
		{"string", server.HumanPayload{T: types.String, String: "hi"}, `{"str":"hi"}`},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			r := httptest.NewRequest(http.MethodGet, "/", nil)
			tc.hp.EncodeAndRespond(w, r)
			got := strings.TrimSpace(w.Body.String())
			if got != tc.want {
				t.Errorf("expected %s, got %s", tc.want, got)
			}
		})
	}
}

func TestRouteTableBind(t *testing.T) {
	rt := server.RouteTable{
		{Method: http.MethodGet, Path: "/thing"}: func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusTeapot)
		},
	}
	mux := chi.NewRouter()
	rt.Bind(mux)
	srv := httptest.NewServer(mux)
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/thing")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusTeapot {
		t.Errorf("expected the bound handler to run, got status %d", resp.StatusCode)
	}

	resp2, err := http.Get(srv.URL + "/list-of-routes")
	if err != nil {
		t.Fatalf("get routes: %v", err)
	}
	defer resp2.Body.Close()
	var routes []string
	if err := json.NewDecoder(resp2.Body).Decode(&routes); err != nil {
		t.Fatalf("decoding: %v", err)
	}
	if len(routes) != 1 || routes[0] != "GET /thing" {
		t.Errorf("expected [GET /thing], got %v", routes)
	}
}

func TestSubMuxSanitize(t *testing.T) {
	cases := []struct{ in, want string }{
		{"", "/"},
		{"/", "/"},
		{"camera", "/camera"},
		{"/camera/", "/camera"},
	}
	for _, tc := range cases {
		if got := server.SubMuxSanitize(tc.in); got != tc.want {
			t.Errorf("SubMuxSanitize(%q): expected %q, got %q", tc.in, tc.want, got)
		}
	}
}
