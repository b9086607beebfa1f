// Package server contains the HTTP plumbing shared by device wrappers:
// route tables bound onto chi routers and the scalar JSON envelopes used
// by getters and setters.
package server

import (
	"encoding/json"
	"fmt"
	"go/types"
	"log"
	"net/http"
	"sort"
	"strings"

	"github.com/go-chi/chi"
)

// MethodPath is one route: an HTTP method paired with a path pattern.
type MethodPath struct {
	Method string
	Path   string
}

// RouteTable maps routes to their handlers.
type RouteTable map[MethodPath]http.HandlerFunc

// Endpoints lists the routes in the table, sorted, as "METHOD /path".
func (rt RouteTable) Endpoints() []string {
	out := make([]string, 0, len(rt))
	for mp := range rt {
		out = append(out, mp.Method+" "+mp.Path)
	}
	sort.Strings(out)
	return out
}

// Bind attaches every route in the table to r, plus a list-of-routes
// endpoint for discoverability.
func (rt RouteTable) Bind(r chi.Router) {
	for mp, h := range rt {
		r.Method(mp.Method, mp.Path, h)
	}
	r.Method(http.MethodGet, "/list-of-routes", http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(rt.Endpoints()); err != nil {
			log.Printf("encoding route list: %v", err)
		}
	}))
}

// SubMuxSanitize cleans a user-provided mount point so it is usable as a
// chi pattern: a leading slash and no trailing one.
func SubMuxSanitize(stem string) string {
	if !strings.HasPrefix(stem, "/") {
		stem = "/" + stem
	}
	if len(stem) > 1 {
		stem = strings.TrimSuffix(stem, "/")
	}
	return stem
}

// FloatT is the JSON envelope for a single float.
type FloatT struct {
	F64 float64 `json:"f64"`
}

// IntT is the JSON envelope for a single int.
type IntT struct {
	Int int `json:"int"`
}

// StrT is the JSON envelope for a single string.
type StrT struct {
	Str string `json:"str"`
}

// BoolT is the JSON envelope for a single bool.
type BoolT struct {
	Bool bool `json:"bool"`
}

// HumanPayload is a union of the scalar types, tagged by T.  It exists
// so handlers can reply with the envelope matching the value's kind
// without repeating the encode boilerplate.
type HumanPayload struct {
	// T is the enum for which field is populated.
	T types.BasicKind

	// Int holds the value if T == types.Int.
	Int int

	// Float holds the value if T == types.Float64.
	Float float64

	// Bool holds the value if T == types.Bool.
	Bool bool

	// String holds the value if T == types.String.
	String string
}

// EncodeAndRespond writes the payload to w as its JSON envelope.
func (hp HumanPayload) EncodeAndRespond(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	var err error
	switch hp.T {
	case types.Int:
		err = json.NewEncoder(w).Encode(IntT{Int: hp.Int})
	case types.Float64:
		err = json.NewEncoder(w).Encode(FloatT{F64: hp.Float})
	case types.Bool:
		err = json.NewEncoder(w).Encode(BoolT{Bool: hp.Bool})
	case types.String:
		err = json.NewEncoder(w).Encode(StrT{Str: hp.String})
	default:
		http.Error(w, fmt.Sprintf("unknown payload kind %v", hp.T), http.StatusInternalServerError)
		return
	}
	if err != nil {
		log.Printf("encoding payload: %v", err)
	}
}
