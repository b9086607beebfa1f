package main

import (
	"fmt"
	"log"
	"net/http"
	"os"
	"strings"

	"github.com/go-chi/chi"
	"github.com/knadh/koanf"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"

	yml "gopkg.in/yaml.v2"

	"github.com/lightpath/vimgrab/acquire"
	"github.com/lightpath/vimgrab/imgrec"
	"github.com/lightpath/vimgrab/server"
	"github.com/lightpath/vimgrab/vimba"
	"github.com/lightpath/vimgrab/vimba/sim"
)

var (
	// Version is the version number.  Typically injected via ldflags with git build
	Version = "1"

	// ConfigFileName is what it sounds like
	ConfigFileName = "vimba-http.yml"
	k              = koanf.New(".")
)

type recorder struct {
	// Root is the root folder to write to
	Root string `yaml:"Root"`

	// Prefix is the filename prefix to use
	Prefix string `yaml:"Prefix"`

	// Enabled turns automatic FITS writing on
	Enabled bool `yaml:"Enabled"`
}

type camera struct {
	// ID is the transport-layer device ID
	ID string `yaml:"ID"`

	// Width and Height are the sensor dimensions
	Width  int `yaml:"Width"`
	Height int `yaml:"Height"`

	// Mono restricts the device to Mono8 (RGB8 requests get rejected)
	Mono bool `yaml:"Mono"`

	// GigE exposes the packet size adjustment command
	GigE bool `yaml:"GigE"`
}

type config struct {
	Addr      string   `yaml:"Addr"`
	Root      string   `yaml:"Root"`
	ImageRate float64  `yaml:"ImageRate"`
	Recorder  recorder `yaml:"Recorder"`
	Cameras   []camera `yaml:"Cameras"`
}

func setupconfig() {
	k.Load(structs.Provider(config{
		Addr:      ":8000",
		Root:      "/",
		ImageRate: 2,
		Recorder:  recorder{},
		Cameras: []camera{
			{ID: "DEV_0001", Width: 640, Height: 480, Mono: true, GigE: true},
		}}, "koanf"), nil)
	if err := k.Load(file.Provider(ConfigFileName), yaml.Parser()); err != nil {
		errtxt := err.Error()
		if !strings.Contains(errtxt, "no such") { // file missing, who cares
			log.Fatalf("error loading config: %v", err)
		}
	}
}

func root() {
	str := `vimba-http exposes synchronous single-image acquisition over HTTP
This enables a server-client architecture,
and the clients can leverage the excellent HTTP
libraries for any programming language,
instead of custom socket logic.

Usage:
	vimba-http <command>

Commands:
	run
	help
	mkconf
	conf
	version`
	fmt.Println(str)
}

func help() {
	str := `vimba-http is amenable to configuration via its .yaml file.  For a primer on YAML, see
https://yaml.org/start.html

When no configuration is provided, the defaults are used: one simulated
640x480 monochrome GigE camera with ID DEV_0001.  The command mkconf
generates the configuration file with the default values.

The Cameras list describes the simulated devices the server runs
against.  A hardware backend drops in behind the same vimba.System
interface without touching anything above it.

ImageRate bounds how many /image requests per second are admitted; a
camera is a serial device and concurrent grabs would only contend for
the exclusive open.

The Recorder, when enabled, tees every FITS response into dated folders
under its Root with incrementing filenames.`
	fmt.Println(str)
}

func mkconf() {
	c := config{}
	err := k.Unmarshal("", &c)
	if err != nil {
		log.Fatal(err)
	}
	f, err := os.Create(ConfigFileName)
	if err != nil {
		log.Fatal(err)
	}
	defer f.Close()
	err = yml.NewEncoder(f).Encode(c)
	if err != nil {
		log.Fatal(err)
	}
}

func printconf() {
	c := config{}
	err := k.Unmarshal("", &c)
	if err != nil {
		log.Fatal(err)
	}
	err = yml.NewEncoder(os.Stdout).Encode(c)
	if err != nil {
		log.Fatal(err)
	}
}

func pversion() {
	fmt.Printf("vimba-http version %v\n", Version)
}

func run() {
	cfg := config{}
	k.Unmarshal("", &cfg)

	sys := sim.New()
	for _, cam := range cfg.Cameras {
		formats := []vimba.PixelFormat{vimba.PixelFormatRGB8, vimba.PixelFormatMono8}
		if cam.Mono {
			formats = []vimba.PixelFormat{vimba.PixelFormatMono8}
		}
		sys.AddCamera(sim.Config{
			ID:      cam.ID,
			Width:   cam.Width,
			Height:  cam.Height,
			Formats: formats,
			GigE:    cam.GigE,
		})
	}

	ctl := acquire.New(sys)
	if err := ctl.Startup(); err != nil {
		log.Fatal(err)
	}
	defer ctl.Shutdown()
	log.Println("runtime started,", ctl.Version())

	rec := &imgrec.Recorder{
		Root:    cfg.Recorder.Root,
		Prefix:  cfg.Recorder.Prefix,
		Enabled: cfg.Recorder.Enabled,
	}
	w := acquire.NewHTTPWrapper(ctl, rec)
	w.LimitImageRate(cfg.ImageRate)

	root := chi.NewRouter()
	mux := chi.NewRouter()
	root.Mount(server.SubMuxSanitize(cfg.Root), mux)
	w.RouteTable.Bind(mux)
	log.Println("now listening for requests at", cfg.Addr+cfg.Root)
	log.Fatal(http.ListenAndServe(cfg.Addr, root))
}

func main() {
	var cmd string
	args := os.Args
	if len(args) == 1 {
		root()
		return
	}
	setupconfig()
	cmd = args[1]
	cmd = strings.ToLower(cmd)
	switch cmd {
	case "help":
		help()
		return
	case "mkconf":
		mkconf()
		return
	case "conf":
		printconf()
		return
	case "run":
		run()
		return
	case "version":
		pversion()
		return
	default:
		log.Fatal("unknown command")
	}
}
