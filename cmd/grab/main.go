// grab is a small command line client for a running vimba-http server.
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/theckman/yacspin"

	"github.com/lightpath/vimgrab/server"
	"github.com/lightpath/vimgrab/vimba"
)

const usage = `grab talks to a vimba-http server.

Usage:
	grab [flags] cameras
	grab [flags] image <camera-id>
	grab [flags] version

Flags:`

var (
	addr    = flag.String("addr", "http://localhost:8000", "base URL of the vimba-http server")
	out     = flag.String("o", "image.fits", "output filename for image")
	format  = flag.String("fmt", "fits", "image format, one of fits, png, jpg")
	timeout = flag.Duration("timeout", 2*time.Second, "acquisition timeout")
)

func main() {
	flag.Usage = func() {
		fmt.Fprintln(os.Stderr, usage)
		flag.PrintDefaults()
	}
	flag.Parse()
	args := flag.Args()
	if len(args) == 0 {
		flag.Usage()
		os.Exit(2)
	}
	switch strings.ToLower(args[0]) {
	case "cameras":
		cameras()
	case "image":
		if len(args) < 2 {
			log.Fatal("image requires a camera ID, run grab cameras to list them")
		}
		image(args[1])
	case "version":
		version()
	default:
		flag.Usage()
		os.Exit(2)
	}
}

func get(path string, query url.Values) (*http.Response, error) {
	u := strings.TrimSuffix(*addr, "/") + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}
	resp, err := http.Get(u)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusOK {
		defer resp.Body.Close()
		body, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("%s: %s", resp.Status, strings.TrimSpace(string(body)))
	}
	return resp, nil
}

func cameras() {
	resp, err := get("/cameras", nil)
	if err != nil {
		log.Fatal(err)
	}
	defer resp.Body.Close()
	var cams []vimba.CameraInfo
	if err := json.NewDecoder(resp.Body).Decode(&cams); err != nil {
		log.Fatal(err)
	}
	if len(cams) == 0 {
		fmt.Println("no cameras attached")
		return
	}
	for _, c := range cams {
		fmt.Printf("%-12s %-9s %-22s s/n %s\n", c.ID, c.Interface, c.Model, c.Serial)
	}
}

func version() {
	resp, err := get("/version", nil)
	if err != nil {
		log.Fatal(err)
	}
	defer resp.Body.Close()
	var s server.StrT
	if err := json.NewDecoder(resp.Body).Decode(&s); err != nil {
		log.Fatal(err)
	}
	fmt.Println(s.Str)
}

func image(id string) {
	spin, err := yacspin.New(yacspin.Config{
		Frequency:         100 * time.Millisecond,
		CharSet:           yacspin.CharSets[59],
		Suffix:            " acquiring",
		Message:           id,
		StopCharacter:     "✓",
		StopFailCharacter: "✗",
		StopColors:        []string{"fgGreen"},
		StopFailColors:    []string{"fgRed"},
	})
	if err != nil {
		log.Fatal(err)
	}
	spin.Start()

	q := url.Values{}
	q.Set("camera", id)
	q.Set("fmt", *format)
	q.Set("timeout", timeout.String())
	resp, err := get("/image", q)
	if err != nil {
		spin.StopFailMessage(err.Error())
		spin.StopFail()
		os.Exit(1)
	}
	defer resp.Body.Close()

	f, err := os.Create(*out)
	if err != nil {
		spin.StopFailMessage(err.Error())
		spin.StopFail()
		os.Exit(1)
	}
	defer f.Close()
	n, err := io.Copy(f, resp.Body)
	if err != nil {
		spin.StopFailMessage(err.Error())
		spin.StopFail()
		os.Exit(1)
	}
	spin.StopMessage(fmt.Sprintf("%s (%d bytes)", *out, n))
	spin.Stop()
}
