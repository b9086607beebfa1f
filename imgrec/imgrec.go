// Package imgrec contains an image recorder used to automatically save
// acquired frames to disk alongside whatever the HTTP response streams
// to the client.
package imgrec

import (
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/lightpath/vimgrab/server"
)

// Recorder writes FITS files with incrementing names into yyyy-mm-dd
// subfolders of Root.  It implements io.Writer so it can sit behind an
// io.MultiWriter with an HTTP response; one Write sequence appends to
// the current file, Incr moves to the next.  It is not safe for
// concurrent writers.
type Recorder struct {
	// Root is the folder the dated subfolders are made in.
	Root string

	// Prefix is prepended to each filename.
	Prefix string

	// Enabled gates use of the recorder; consumers skip it when false.
	Enabled bool

	counter int
	day     string
}

// dir computes today's subfolder and ensures it exists.
func (r *Recorder) dir() (string, error) {
	r.day = time.Now().Format("2006-01-02")
	fldr := filepath.Join(r.Root, r.day)
	return fldr, os.MkdirAll(fldr, 0777)
}

func (r *Recorder) filename(fldr string) string {
	return filepath.Join(fldr, fmt.Sprintf("%s%06d.fits", r.Prefix, r.counter))
}

// Write appends p to the current file, creating folder and file as
// needed.
func (r *Recorder) Write(p []byte) (int, error) {
	fldr, err := r.dir()
	if err != nil {
		return 0, err
	}
	f, err := os.OpenFile(r.filename(fldr), os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0666)
	if err != nil {
		return 0, err
	}
	defer f.Close()
	return f.Write(p)
}

// Incr advances the filename counter past the largest index already on
// disk.  On any scan error the counter is left alone.
func (r *Recorder) Incr() {
	fldr, err := r.dir()
	if err != nil {
		return
	}
	entries, err := os.ReadDir(fldr)
	if err != nil {
		return
	}
	high := 0
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		name := entry.Name()
		if !strings.HasPrefix(name, r.Prefix) || !strings.HasSuffix(name, ".fits") {
			continue
		}
		numeric := strings.TrimSuffix(strings.TrimPrefix(name, r.Prefix), ".fits")
		n, err := strconv.Atoi(numeric)
		if err != nil {
			return
		}
		if n > high {
			high = n
		}
	}
	r.counter = high + 1
}

// Inject adds routes manipulating the recorder to a device wrapper's
// route table, under /autowrite.
func (r *Recorder) Inject(rt server.RouteTable) {
	rt[server.MethodPath{Method: http.MethodGet, Path: "/autowrite"}] = r.httpGet
	rt[server.MethodPath{Method: http.MethodPost, Path: "/autowrite"}] = r.httpSet
}

// httpGet reports the full recorder state as JSON.
func (r *Recorder) httpGet(w http.ResponseWriter, req *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(struct {
		Root    string `json:"root"`
		Prefix  string `json:"prefix"`
		Enabled bool   `json:"enabled"`
	}{r.Root, r.Prefix, r.Enabled})
}

// httpSet updates any subset of root, prefix, and enabled.  Changing the
// prefix resets the counter.
func (r *Recorder) httpSet(w http.ResponseWriter, req *http.Request) {
	body := struct {
		Root    *string `json:"root"`
		Prefix  *string `json:"prefix"`
		Enabled *bool   `json:"enabled"`
	}{}
	if err := json.NewDecoder(req.Body).Decode(&body); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	defer req.Body.Close()
	if body.Root != nil {
		r.Root = *body.Root
		if _, err := r.dir(); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
	}
	if body.Prefix != nil {
		r.Prefix = *body.Prefix
		r.counter = 0
	}
	if body.Enabled != nil {
		r.Enabled = *body.Enabled
	}
	w.WriteHeader(http.StatusOK)
}
