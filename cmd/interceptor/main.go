// Command interceptor runs the full engagement loop on a live or simulated
// microphone array: ping, detect, steer, and publish telemetry.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/strigiform/skeeterhawk/internal/acquisition"
	"github.com/strigiform/skeeterhawk/internal/app"
	"github.com/strigiform/skeeterhawk/internal/config"
	"github.com/strigiform/skeeterhawk/internal/logging"
	"github.com/strigiform/skeeterhawk/internal/recorder"
	"github.com/strigiform/skeeterhawk/internal/telemetry"
)

func main() {
	opts, err := parseOptions(os.Args[1:], os.LookupEnv)
	if err != nil {
		log.Fatalf("parse flags: %v", err)
	}

	if opts.discover {
		nodes, err := telemetry.Discover(opts.discoverTimeout)
		if err != nil {
			log.Fatalf("discover: %v", err)
		}
		for _, n := range nodes {
			fmt.Printf("%s %s port %d %v\n", n.Instance, n.Hostname, n.Port, n.Addresses)
		}
		return
	}

	cfg := config.Default()
	if opts.configPath != "" {
		cfg, err = config.Load(opts.configPath)
		if err != nil {
			log.Fatalf("load config: %v", err)
		}
	}
	opts.applyOverrides(&cfg)
	if err := cfg.Validate(); err != nil {
		log.Fatalf("validate config: %v", err)
	}

	logger, err := buildLogger(cfg.Logging)
	if err != nil {
		log.Fatalf("configure logging: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	source, err := selectSource(opts, logger)
	if err != nil {
		log.Fatalf("select source: %v", err)
	}
	defer source.Close()

	var reporters telemetry.MultiReporter
	reporters = append(reporters, telemetry.NewLogReporter(logger))
	if cfg.Telemetry.Enabled {
		hub := telemetry.NewHub(opts.historyLimit, logger)
		reporters = append(reporters, hub)
		go telemetry.NewWebServer(cfg.Telemetry.Addr, hub, logger).Start(ctx)
		logger.Info("telemetry listening", logging.F("addr", cfg.Telemetry.Addr))
		if cfg.Telemetry.MDNS {
			if err := telemetry.Advertise(ctx, opts.instance, portOf(cfg.Telemetry.Addr), nil); err != nil {
				logger.Warn("mdns advertise", logging.F("error", err.Error()))
			}
		}
	}

	rec, err := selectRecorder(cfg.Recorder)
	if err != nil {
		log.Fatalf("open recorder: %v", err)
	}
	defer rec.Close()

	ic := app.NewInterceptor(source, reporters, rec, nil, logger, app.Config{
		Sonar:        cfg.SonarConfig(0),
		Guidance:     cfg.GuidanceConfig(),
		TemperatureC: cfg.Sonar.TemperatureC,
		Workers:      opts.workers,
		CyclePeriod:  opts.cyclePeriod,
		WarmupCycles: opts.warmupCycles,
		MultiTarget:  opts.multiTarget,
		Diagnostics:  opts.diagnostics,
	})

	if err := ic.Init(ctx); err != nil {
		log.Fatalf("init interceptor: %v", err)
	}
	logger.Info("interceptor running", logging.F("source", opts.source))
	if err := ic.Run(ctx); err != nil && err != context.Canceled {
		log.Fatalf("run interceptor: %v", err)
	}
}

type options struct {
	configPath      string
	source          string
	udpListen       string
	udpRemote       string
	simTargets      string
	instance        string
	telemetryAddr   string
	recordPath      string
	historyLimit    int
	workers         int
	warmupCycles    int
	cyclePeriod     time.Duration
	multiTarget     bool
	diagnostics     bool
	mdns            bool
	discover        bool
	discoverTimeout int
}

func parseOptions(args []string, lookup func(string) (string, bool)) (options, error) {
	opts := options{}
	fs := flag.NewFlagSet("interceptor", flag.ContinueOnError)
	fs.StringVar(&opts.configPath, "config", envString(lookup, "HAWK_CONFIG", ""), "Path to YAML configuration file")
	fs.StringVar(&opts.source, "source", envString(lookup, "HAWK_SOURCE", "sim"), "Acquisition source (sim|udp)")
	fs.StringVar(&opts.udpListen, "udp-listen", envString(lookup, "HAWK_UDP_LISTEN", ":9750"), "UDP listen address for the mic array")
	fs.StringVar(&opts.udpRemote, "udp-remote", envString(lookup, "HAWK_UDP_REMOTE", ""), "UDP address of the transmit front end (empty for receive-only)")
	fs.StringVar(&opts.simTargets, "sim-targets", envString(lookup, "HAWK_SIM_TARGETS", "1.5"), "Simulated targets as range_m[:az_deg[:el_deg[:rcs]]], comma separated")
	fs.StringVar(&opts.instance, "instance", envString(lookup, "HAWK_INSTANCE", "skeeterhawk"), "mDNS instance name")
	fs.StringVar(&opts.telemetryAddr, "telemetry-addr", "", "Override telemetry listen address")
	fs.StringVar(&opts.recordPath, "record", "", "Override recorder sqlite path")
	fs.IntVar(&opts.historyLimit, "history-limit", 500, "Maximum samples to keep in telemetry history")
	fs.IntVar(&opts.workers, "workers", 0, "Angle grid search workers (0 = all cores)")
	fs.IntVar(&opts.warmupCycles, "warmup-cycles", 0, "Ping cycles to discard before reporting")
	fs.DurationVar(&opts.cyclePeriod, "cycle-period", 50*time.Millisecond, "Time between ping cycles")
	fs.BoolVar(&opts.multiTarget, "multi", false, "Run the multi-target detector each cycle")
	fs.BoolVar(&opts.diagnostics, "diagnostics", false, "Log per-capture signal diagnostics")
	fs.BoolVar(&opts.mdns, "mdns", false, "Advertise the telemetry endpoint via mDNS")
	fs.BoolVar(&opts.discover, "discover", false, "Browse for interceptor nodes and exit")
	fs.IntVar(&opts.discoverTimeout, "discover-timeout", 3, "mDNS browse timeout in seconds")

	if err := fs.Parse(args); err != nil {
		return options{}, err
	}
	return opts, nil
}

func (o options) applyOverrides(cfg *config.Config) {
	if o.telemetryAddr != "" {
		cfg.Telemetry.Enabled = true
		cfg.Telemetry.Addr = o.telemetryAddr
	}
	if o.recordPath != "" {
		cfg.Recorder.Path = o.recordPath
	}
	if o.mdns {
		cfg.Telemetry.MDNS = true
	}
}

func buildLogger(cfg config.Logging) (logging.Logger, error) {
	level, err := logging.ParseLevel(cfg.Level)
	if err != nil {
		return nil, err
	}
	format, err := logging.ParseFormat(cfg.Format)
	if err != nil {
		return nil, err
	}
	return logging.New(level, format, os.Stderr), nil
}

func selectSource(opts options, logger logging.Logger) (acquisition.Source, error) {
	switch opts.source {
	case "sim":
		targets, err := parseTargets(opts.simTargets)
		if err != nil {
			return nil, err
		}
		return acquisition.NewSim(targets...), nil
	case "udp":
		return acquisition.NewUDP(opts.udpListen, opts.udpRemote, logger), nil
	default:
		return nil, fmt.Errorf("unknown source %s", opts.source)
	}
}

func selectRecorder(cfg config.Recorder) (recorder.Recorder, error) {
	if cfg.Path != "" {
		return recorder.Open(cfg.Path)
	}
	return recorder.NewRing(cfg.Capacity), nil
}

// parseTargets decodes "range_m[:az_deg[:el_deg[:rcs]]]" entries separated
// by commas, e.g. "1.5,2.0:30:-10:0.5".
func parseTargets(s string) ([]acquisition.SimTarget, error) {
	var targets []acquisition.SimTarget
	for _, entry := range strings.Split(s, ",") {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}
		parts := strings.Split(entry, ":")
		if len(parts) > 4 {
			return nil, fmt.Errorf("target %q: too many fields", entry)
		}
		vals := make([]float64, len(parts))
		for i, p := range parts {
			v, err := strconv.ParseFloat(strings.TrimSpace(p), 64)
			if err != nil {
				return nil, fmt.Errorf("target %q: %w", entry, err)
			}
			vals[i] = v
		}
		tgt := acquisition.SimTarget{RangeM: vals[0], RCS: 1}
		if len(vals) > 1 {
			tgt.AzimuthRad = vals[1] * degToRad
		}
		if len(vals) > 2 {
			tgt.ElevationRad = vals[2] * degToRad
		}
		if len(vals) > 3 {
			tgt.RCS = vals[3]
		}
		targets = append(targets, tgt)
	}
	return targets, nil
}

const degToRad = 0.017453292519943295

func portOf(addr string) int {
	idx := strings.LastIndex(addr, ":")
	if idx < 0 {
		return 0
	}
	port, err := strconv.Atoi(addr[idx+1:])
	if err != nil {
		return 0
	}
	return port
}

func envString(lookup func(string) (string, bool), key, def string) string {
	if val, ok := lookup(key); ok {
		return val
	}
	return def
}
