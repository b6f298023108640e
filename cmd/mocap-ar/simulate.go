package main

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/urfave/cli/v2"

	customlog "github.com/open-teleop/mocap-ar/pkg/log"
	"github.com/open-teleop/mocap-ar/pkg/simulator"
)

func simulateAction(c *cli.Context) error {
	level := "info"
	if c.Bool(flagDebug) {
		level = "debug"
	}
	logger, err := customlog.NewLogrusLogger(level, "")
	if err != nil {
		return err
	}

	scene := simulator.DefaultScene()
	scene.Frequency = c.Int(flagFrequency)
	scene.OccludeEvery = c.Int(flagOccludeEvery)

	server := simulator.NewServer(scene, logger)
	addr, err := server.Listen(c.String(flagListen))
	if err != nil {
		return err
	}
	logger.Infof("Simulated RT server on %s (%d Hz, %d markers, %d bodies)",
		addr, scene.Frequency, len(scene.Labels), len(scene.Bodies))

	ctx, stop := signal.NotifyContext(c.Context, os.Interrupt, syscall.SIGTERM)
	defer stop()
	return server.Serve(ctx)
}
