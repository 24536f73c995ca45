// Command sonarsim runs a simulated engagement through the full pipeline
// and prints one line per cycle, for offline tuning of chirp and detector
// parameters.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/strigiform/skeeterhawk/internal/acquisition"
	"github.com/strigiform/skeeterhawk/internal/app"
	"github.com/strigiform/skeeterhawk/internal/config"
	"github.com/strigiform/skeeterhawk/internal/logging"
	"github.com/strigiform/skeeterhawk/internal/telemetry"
)

func main() {
	var (
		configPath = flag.String("config", "", "Path to YAML configuration file")
		rangeM     = flag.Float64("range", 1.5, "Target range in metres")
		azDeg      = flag.Float64("az", 0, "Target azimuth in degrees")
		elDeg      = flag.Float64("el", 0, "Target elevation in degrees")
		rcs        = flag.Float64("rcs", 1, "Target radar cross section")
		noise      = flag.Float64("noise", 0, "Additive noise power")
		seed       = flag.Int64("seed", 1, "Noise seed")
		cycles     = flag.Int("cycles", 10, "Number of ping cycles to run")
		multi      = flag.Bool("multi", false, "Run the multi-target detector")
	)
	flag.Parse()

	cfg := config.Default()
	var err error
	if *configPath != "" {
		cfg, err = config.Load(*configPath)
		if err != nil {
			log.Fatalf("load config: %v", err)
		}
	}

	const degToRad = 0.017453292519943295
	source := acquisition.NewSim(acquisition.SimTarget{
		RangeM:       *rangeM,
		AzimuthRad:   *azDeg * degToRad,
		ElevationRad: *elDeg * degToRad,
		RCS:          *rcs,
	})
	source.SetNoise(*noise, *seed)

	ic := app.NewInterceptor(source, printReporter{}, nil, nil, logging.New(logging.Warn, logging.Text, os.Stderr), app.Config{
		Sonar:        cfg.SonarConfig(0),
		Guidance:     cfg.GuidanceConfig(),
		TemperatureC: cfg.Sonar.TemperatureC,
		CyclePeriod:  time.Millisecond,
		MaxCycles:    *cycles,
		MultiTarget:  *multi,
	})

	ctx := context.Background()
	if err := ic.Init(ctx); err != nil {
		log.Fatalf("init: %v", err)
	}
	if err := ic.Run(ctx); err != nil {
		log.Fatalf("run: %v", err)
	}
}

type printReporter struct{}

func (printReporter) Report(s telemetry.Sample) {
	if !s.Valid {
		fmt.Printf("cycle %3d: no detection\n", s.Cycle)
		return
	}
	fmt.Printf("cycle %3d: range %7.2f cm az %+6.3f rad el %+6.3f rad conf %.2f targets %d motors [%.3f %.3f %.3f %.3f]\n",
		s.Cycle, s.RangeCM, s.AzimuthRad, s.ElevationRad, s.Confidence, s.TargetCount,
		s.Motors[0], s.Motors[1], s.Motors[2], s.Motors[3])
}
