package main

import (
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"time"

	"github.com/go-chi/chi"
	"github.com/knadh/koanf"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/theckman/yacspin"
	"goji.io"

	yml "gopkg.in/yaml.v2"

	"github.jpl.nasa.gov/bdube/goixon/acquire"
	"github.jpl.nasa.gov/bdube/goixon/drv"
	"github.jpl.nasa.gov/bdube/goixon/imgrec"
	"github.jpl.nasa.gov/bdube/goixon/ixon"
	"github.jpl.nasa.gov/bdube/goixon/labjack"
	"github.jpl.nasa.gov/bdube/goixon/liveview"
	"github.jpl.nasa.gov/bdube/goixon/server"
	"github.jpl.nasa.gov/bdube/goixon/server/middleware/locker"
	"github.jpl.nasa.gov/bdube/goixon/telemetry"
	"github.jpl.nasa.gov/bdube/goixon/trigger"
)

var (
	// Version is the version number.  Typically injected via ldflags with git build
	Version = "1"

	// ConfigFileName is what it sounds like
	ConfigFileName = "ixon-http.yml"
	k              = koanf.New(".")
)

type recorder struct {
	// Root is the root folder to write to
	Root string `yaml:"Root"`

	// Prefix is the filename prefix to use
	Prefix string `yaml:"Prefix"`

	// Enabled turns the recorder on at boot
	Enabled bool `yaml:"Enabled"`
}

type triggercfg struct {
	// Kind selects the pulse source: none, serial, tcp, or labjack
	Kind string `yaml:"Kind"`

	// Addr is host:port for tcp, the port name for serial
	Addr string `yaml:"Addr"`

	// Baud is the serial baud rate
	Baud int `yaml:"Baud"`

	// DelayMS is how long after arming a single capture the pulse fires
	DelayMS int `yaml:"DelayMS"`
}

type telemetrycfg struct {
	// Broker is the MQTT broker URL; empty disables telemetry
	Broker string `yaml:"Broker"`

	// ClientID identifies this server to the broker
	ClientID string `yaml:"ClientID"`

	// TopicRoot is the prefix for the state and temperature topics
	TopicRoot string `yaml:"TopicRoot"`

	// IntervalS is the publish interval in seconds
	IntervalS float64 `yaml:"IntervalS"`
}

type streamcfg struct {
	// MaxFPS caps the MJPEG stream frame rate, 0 for no cap
	MaxFPS float64 `yaml:"MaxFPS"`
}

type config struct {
	Addr       string                 `yaml:"Addr"`
	Root       string                 `yaml:"Root"`
	CapsFile   string                 `yaml:"CapsFile"`
	SDKPath    string                 `yaml:"SDKPath"`
	Recorder   recorder               `yaml:"Recorder"`
	Trigger    triggercfg             `yaml:"Trigger"`
	Telemetry  telemetrycfg           `yaml:"Telemetry"`
	Stream     streamcfg              `yaml:"Stream"`
	BootupArgs map[string]interface{} `yaml:"BootupArgs"`
}

func setupconfig() {
	k.Load(structs.Provider(config{
		Addr:     ":8000",
		Root:     "/",
		CapsFile: "",
		SDKPath:  "/usr/local/etc/andor",
		Recorder: recorder{Prefix: "ixon-"},
		Trigger:  triggercfg{Kind: "none", Baud: 115200, DelayMS: 50},
		Telemetry: telemetrycfg{
			ClientID:  "ixonsrv",
			TopicRoot: "cam/ixon",
			IntervalS: 10},
		Stream: streamcfg{MaxFPS: 30},
		BootupArgs: map[string]interface{}{
			"AcquisitionMode":     "continuous",
			"TriggerMode":         "software",
			"TemperatureSetpoint": -10,
			"SensorCooling":       true}}, "koanf"), nil)
	if err := k.Load(file.Provider(ConfigFileName), yaml.Parser()); err != nil {
		errtxt := err.Error()
		if !strings.Contains(errtxt, "no such") { // file missing, who cares
			log.Fatalf("error loading config: %v", err)
		}
	}
}

func root() {
	str := `ixonsrv exposes control of an Andor iXon EMCCD over HTTP.
This enables a server-client architecture, and the clients can leverage
the excellent HTTP libraries for any programming language, instead of
custom socket logic.

Usage:
	ixonsrv <command>

Commands:
	run
	help
	mkconf
	conf
	version`
	fmt.Println(str)
}

func help() {
	str := `ixonsrv is amenable to configuration via its .yaml file.  For a primer
on YAML, see https://yaml.org/start.html

When no configuration is provided, the defaults are used.  The command
mkconf generates the configuration file with the default values, and
conf prints the running configuration.

CapsFile points to a JSON capability record describing the attached
camera; when empty, the record for an iXon Ultra 888 head is used.
Detector size, temperature range, and EM gain range are overwritten by
the hardware's own reports during bootup.

If there is an error during server bootup, it may be that a feature is
not supported by the camera.  Modify the BootupArgs portion of the
config to remove the offending parameters.

Trigger.Kind wires a TTL pulse source used to fire externally
triggered single captures: "serial" or "tcp" for a bench pulse box,
"labjack" for a U3 pulsing FIO4, "none" to disable.`
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
	fmt.Printf("ixonsrv version %v\n", Version)
}

// pulser builds the configured TTL pulse source, nil for none
func pulser(cfg triggercfg) trigger.Pulser {
	switch strings.ToLower(cfg.Kind) {
	case "", "none":
		return nil
	case "serial":
		return trigger.NewSerialBox(cfg.Addr, cfg.Baud)
	case "tcp":
		return trigger.NewTCPBox(cfg.Addr)
	case "labjack":
		return &labjack.U3{}
	default:
		log.Fatalf("unknown trigger kind %q, expected none, serial, tcp, or labjack", cfg.Kind)
		return nil
	}
}

// warmdown blocks until the sensor is warm enough to shut down,
// showing progress on a spinner; pulling the rug on a cold sensor
// ages it
func warmdown(cam *ixon.Camera) {
	cfg := yacspin.Config{
		Frequency:       100 * time.Millisecond,
		CharSet:         yacspin.CharSets[9],
		Suffix:          " letting the sensor warm up before shutdown",
		SuffixAutoColon: true,
		StopCharacter:   "✓",
		StopColors:      []string{"fgGreen"},
	}
	spinner, err := yacspin.New(cfg)
	if err != nil {
		// no spinner, still wait
		cam.WaitUntilWarm(nil)
		return
	}
	spinner.Start()
	cam.WaitUntilWarm(func(tempC int) {
		spinner.Message(fmt.Sprintf("sensor at %d C", tempC))
	})
	spinner.Stop()
}

func run() {
	cfg := config{}
	k.Unmarshal("", &cfg)

	caps, err := ixon.LoadCapabilities(cfg.CapsFile)
	if err != nil {
		log.Fatal(err)
	}

	// the simulator stands in for the cgo SDK binding, which links
	// against Andor's shared library and lives out of tree
	cam := ixon.New(drv.NewSim(), caps)
	log.Println("initializing the SDK; the vendor's code can deadlock here.")
	log.Println("Power cycle the camera if this is stuck.")
	if err := cam.Initialize(cfg.SDKPath); err != nil {
		log.Fatal(err)
	}
	if err := cam.Configure(cfg.BootupArgs); err != nil {
		log.Fatal(err)
	}

	hub := acquire.NewHub()
	worker := acquire.NewWorker(cam, hub)
	worker.Start()
	if cam.Capabilities().AutoStart {
		if err := worker.Resume(); err != nil {
			log.Fatal(err)
		}
	}

	tm := ixon.NewThermalMonitor(cam, 10*time.Second, 8640)
	tm.Start()

	lv := liveview.New(cam, worker, hub, tm)
	lv.MaxFPS = cfg.Stream.MaxFPS
	lv.Pulser = pulser(cfg.Trigger)
	lv.PulseDelay = time.Duration(cfg.Trigger.DelayMS) * time.Millisecond
	if cfg.Recorder.Root != "" {
		lv.Rec = imgrec.New(cfg.Recorder.Root, cfg.Recorder.Prefix, cfg.Recorder.Enabled)
		imgrec.NewHTTPWrapper(lv.Rec).Inject(lv)
	}

	lck := locker.New()
	locker.Inject(lv, lck)

	if cfg.Telemetry.Broker != "" {
		rp, err := telemetry.Dial(
			cfg.Telemetry.Broker,
			cfg.Telemetry.ClientID,
			cfg.Telemetry.TopicRoot,
			time.Duration(cfg.Telemetry.IntervalS*float64(time.Second)),
			cam, worker)
		if err != nil {
			log.Fatal(err)
		}
		rp.Start()
	}

	mux := goji.NewMux()
	mux.Use(lck.Check)
	lv.RT().Bind(mux)
	rootMux := chi.NewRouter()
	// goji matches on the URL path, so the mount prefix is stripped
	// before requests reach the submux
	prefix := strings.TrimSuffix(server.SubMuxSanitize(cfg.Root), "/*")
	if prefix == "" {
		rootMux.Mount("/", mux)
	} else {
		rootMux.Mount(prefix, http.StripPrefix(prefix, mux))
	}

	// SIGINT quiesces the camera before the process dies; the sensor
	// must warm past -20C before the driver is released
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, os.Interrupt)
	go func() {
		<-sigs
		log.Println("shutting down")
		if err := worker.Stop(); err != nil {
			log.Printf("stopping worker, %v", err)
		}
		tm.Stop()
		if err := cam.StopAcquisition(); err != nil {
			log.Printf("stopping acquisition, %v", err)
		}
		if cam.Capabilities().WaitForTemp {
			if err := cam.SetCooling(false); err != nil {
				log.Printf("turning off cooler, %v", err)
			}
			warmdown(cam)
		}
		cam.Shutdown()
		os.Exit(0)
	}()

	addr := cfg.Addr + cfg.Root
	log.Println("now listening for requests at", addr)
	log.Fatal(http.ListenAndServe(cfg.Addr, rootMux))
}

func main() {
	args := os.Args
	if len(args) == 1 {
		root()
		return
	}
	setupconfig()
	cmd := strings.ToLower(args[1])
	switch cmd {
	case "help":
		help()
	case "mkconf":
		mkconf()
	case "conf":
		printconf()
	case "run":
		run()
	case "version":
		pversion()
	default:
		log.Fatal("unknown command")
	}
}
