// Command wheellyd runs the single-threaded reactor that drives a Wheelly
// robot: it loads configuration, opens the robot link, builds the world
// modeller and state machine agent from the flow document, and ticks the
// controller on a fixed schedule until asked to stop.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"wheelly/internal/agent"
	"wheelly/internal/blackboard"
	"wheelly/internal/clock"
	"wheelly/internal/config"
	"wheelly/internal/controller"
	"wheelly/internal/flowconfig"
	"wheelly/internal/link"
	"wheelly/internal/logging"
	"wheelly/internal/radar"
	"wheelly/internal/telemetry"
	"wheelly/internal/world"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	source := clock.NewSystemSource()
	logger, err := logging.New(cfg.Logging, source)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to initialize structured logger: %v\n", err)
		os.Exit(1)
	}
	defer func() {
		_ = logger.Sync()
	}()

	lnk, err := buildLink(cfg)
	if err != nil {
		logger.Fatal("failed to construct robot link", logging.Error(err))
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := lnk.Connect(ctx); err != nil {
		logger.Fatal("failed to connect robot link", logging.Error(err), logging.String("mode", string(cfg.LinkMode)))
	}
	defer func() {
		_ = lnk.Close()
	}()

	modeller := world.NewModeller(radar.Config{
		Width:              cfg.GridWidth,
		Height:             cfg.GridHeight,
		CellSize:           cfg.CellSize,
		EchoPersistence:    cfg.EchoPersistence,
		ContactPersistence: cfg.ContactPersistence,
		CleanInterval:      cfg.RadarCleanInterval,
	}, world.Params{
		PolarSectors:       cfg.SectorCount,
		MinRadarDistance:   cfg.MinRadarDistance,
		FrontArc:           cfg.FrontArc,
		RearArc:            cfg.RearArc,
		SafeDistance:       cfg.SafeDistance,
		RadarCleanInterval: clock.Time(cfg.RadarCleanInterval.Milliseconds()),
		MarkerDecayMs:      cfg.MarkerDecay.Milliseconds(),
		MarkerCleanDecayMs: cfg.MarkerCleanDecay.Milliseconds(),
		StaleAfterMs:       cfg.SensorStaleTimeout.Milliseconds(),
	})

	flowBytes, err := os.ReadFile(cfg.FlowPath)
	if err != nil {
		logger.Fatal("failed to read flow document", logging.Error(err), logging.String("path", cfg.FlowPath))
	}
	flow, err := flowconfig.Load(flowBytes, modeller.Grid(), modeller.Markers())
	if err != nil {
		logger.Fatal("failed to load flow document", logging.Error(err), logging.String("path", cfg.FlowPath))
	}

	board := blackboard.NewBoard()
	interp := agent.NewInterpreter(flow, board)

	ctrl := controller.New(lnk, modeller, interp, board, controller.Config{
		Spec: world.Spec{
			MaxRadarDistance: cfg.MaxRadarDistance,
			ReceptiveAngle:   cfg.ReceptiveAngle,
			ContactRadius:    cfg.ContactRadius,
		},
		CommandInterval:   cfg.CommandInterval,
		Slack:             cfg.CommandSlack,
		ClockSyncInterval: cfg.ClockSyncInterval,
		MaxTimeouts:       cfg.MaxConsecutiveTimeouts,
		Logger:            logger,
	})

	start := source.Now()
	if err := ctrl.Start(start); err != nil {
		logger.Fatal("agent initialization failed", logging.Error(err))
	}

	var stream *telemetry.Stream
	if cfg.TelemetryAddr != "" {
		stream = telemetry.NewStream(telemetry.Config{})
		server, err := buildTelemetryServer(cfg, stream, source, logger)
		if err != nil {
			logger.Fatal("failed to configure telemetry server", logging.Error(err))
		}
		go func() {
			logger.Info("telemetry server listening", logging.String("address", cfg.TelemetryAddr))
			mux := http.NewServeMux()
			mux.Handle("/telemetry", server)
			if err := http.ListenAndServe(cfg.TelemetryAddr, mux); err != nil && err != http.ErrServerClosed {
				logger.Error("telemetry server terminated", logging.Error(err))
			}
		}()
	}

	sched := clock.NewScheduler(source)
	sched.Start(ctx, []clock.Task{
		{
			Name:   "react",
			Period: cfg.ReactionInterval,
			Handler: func(now clock.Time) {
				result, err := ctrl.React(now)
				if err != nil {
					logger.Warn("reaction tick failed", logging.Error(err), logging.String("status", ctrl.Status().String()))
					return
				}
				if stream != nil {
					commandKinds := make([]string, 0, len(result.Commands))
					for _, cmd := range result.Commands {
						commandKinds = append(commandKinds, cmd.Kind)
					}
					model := modeller.Snapshot(world.Spec{
						MaxRadarDistance: cfg.MaxRadarDistance,
						ReceptiveAngle:   cfg.ReceptiveAngle,
						ContactRadius:    cfg.ContactRadius,
					}, now)
					stream.Publish(model, now, commandKinds)
				}
			},
		},
	})

	logger.Info("wheellyd started", logging.String("link_mode", string(cfg.LinkMode)), logging.String("flow_path", cfg.FlowPath))

	waitForShutdown()
	logger.Info("shutting down")
	sched.Stop()
	if err := ctrl.Stop(source.Now(), cfg.CommandSlack); err != nil {
		logger.Warn("shutdown halt failed", logging.Error(err))
	}
	cancel()
}

func buildLink(cfg *config.Config) (link.Link, error) {
	lcfg := link.Config{SerialTimeout: cfg.SerialTimeout}
	switch cfg.LinkMode {
	case config.LinkModeBridge:
		return link.NewBridgeClient(cfg.BridgeURL, lcfg), nil
	default:
		return link.NewSerialLink(cfg.SerialPort, cfg.BaudRate, lcfg), nil
	}
}

func buildTelemetryServer(cfg *config.Config, stream *telemetry.Stream, source clock.Source, logger *logging.Logger) (*telemetry.Server, error) {
	var gate *telemetry.TokenGate
	if cfg.TelemetryToken != "" {
		g, err := telemetry.NewTokenGate(cfg.TelemetryToken, source)
		if err != nil {
			return nil, err
		}
		gate = g
	}
	return telemetry.NewServer(stream, gate, logger), nil
}

func waitForShutdown() {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	<-sigCh
}
