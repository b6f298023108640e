package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	fiberlogger "github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/urfave/cli/v2"
	"go.uber.org/multierr"

	"github.com/open-teleop/mocap-ar/domain/diagnostic"
	"github.com/open-teleop/mocap-ar/pkg/api"
	"github.com/open-teleop/mocap-ar/pkg/config"
	"github.com/open-teleop/mocap-ar/pkg/events"
	customlog "github.com/open-teleop/mocap-ar/pkg/log"
	"github.com/open-teleop/mocap-ar/pkg/processing"
	"github.com/open-teleop/mocap-ar/pkg/qtm"
	"github.com/open-teleop/mocap-ar/pkg/scene"
	"github.com/open-teleop/mocap-ar/pkg/stream"
	"github.com/open-teleop/mocap-ar/pkg/wire"
	"github.com/open-teleop/mocap-ar/pkg/zeromq"
	"github.com/open-teleop/mocap-ar/services"
)

const shutdownTimeout = 5 * time.Second

func serveAction(c *cli.Context) error {
	bootstrap, err := config.LoadBootstrapConfig(c.String(flagConfigDir))
	if err != nil {
		return err
	}

	level := bootstrap.Logging.Level
	if c.Bool(flagDebug) {
		level = "debug"
	}
	logger, err := customlog.NewLogrusLogger(level, bootstrap.Logging.LogPath)
	if err != nil {
		return err
	}
	logger.Infof("Bootstrap configuration loaded from %s", c.String(flagConfigDir))

	ctx, stop := signal.NotifyContext(c.Context, os.Interrupt, syscall.SIGTERM)
	defer stop()

	configService, err := services.NewStreamConfigService(bootstrap.Data.StreamConfigPath(), bootstrap.Stream, logger)
	if err != nil {
		return fmt.Errorf("stream config: %w", err)
	}

	codec, err := wire.NewCodec(bootstrap.ZeroMQ.FrameEncoding)
	if err != nil {
		return err
	}

	zmqService, err := zeromq.NewZeroMQService(bootstrap.ZeroMQ, logger.WithField(customlog.ComponentField, "zeromq"))
	if err != nil {
		return fmt.Errorf("zeromq: %w", err)
	}
	hub := api.NewFrameHub(logger.WithField(customlog.ComponentField, "ws"))

	registry := processing.NewTopicRegistry(logger)
	registry.Register(processing.TopicFrame, codec.Name(), processing.PriorityStandard)
	registry.Register(processing.TopicSettings, wire.EncodingJSON, processing.PriorityHigh)
	registry.Register(processing.TopicStatus, wire.EncodingJSON, processing.PriorityHigh)

	director := processing.NewMessageDirector(logger.WithField(customlog.ComponentField, "output"), registry,
		&processing.DirectorOptions{DefaultQueueSize: bootstrap.Output.QueueSize})
	director.Initialize(1, bootstrap.Output.Workers)
	director.SetProcessor(processing.NewPublishProcessor(codec, zmqService, hub).CreateProcessorFunc())
	director.SetResultHandler(processing.NewLoggingResultHandler(logger).CreateHandlerFunc())

	anchor := scene.NewAnchor()
	dial := stream.QTMDialer(qtm.Options{
		Port:            bootstrap.QTM.Port,
		ProtocolVersion: bootstrap.QTM.ProtocolVersion,
		DialTimeout:     time.Duration(bootstrap.QTM.ConnectTimeoutMs) * time.Millisecond,
		CommandTimeout:  time.Duration(bootstrap.QTM.CommandTimeoutMs) * time.Millisecond,
		Logger:          logger,
	})
	controller := stream.NewController(dial, anchor, configService.GetCurrentConfig(), logger)

	queue := events.NewQueue(bootstrap.Runner.EventBuffer)
	runner := stream.NewRunner(controller, queue, stream.RunnerOptions{
		TickRate: time.Second / time.Duration(bootstrap.Runner.TickHz),
		Options:  configService.GetCurrentConfig,
		Observer: processing.NewFrameProcessor(logger, anchor, director),
		Logger:   logger,
	})

	status := diagnostic.NewDiagnosticService(runner, director, registry)
	configService.SetPublisher(zeromq.RegisterHandlers(zmqService, queue, status.StatusDocument, configService.GetCurrentConfig, logger))

	app := fiber.New(fiber.Config{
		AppName:               "mocap-ar",
		ErrorHandler:          customErrorHandler,
		DisableStartupMessage: true,
	})
	app.Use(fiberlogger.New())
	app.Use(recover.New())

	app.Get("/", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"status":  "online",
			"service": "mocap-ar",
		})
	})
	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "healthy"})
	})
	api.RegisterStreamRoutes(app, queue, status, logger)
	api.RegisterConfigRoutes(app, configService, logger)
	api.RegisterWebSocketRoutes(app, queue, hub, logger)

	director.Start()
	if err := zmqService.Start(); err != nil {
		director.Stop()
		return multierr.Append(err, zmqService.Stop())
	}

	serverErr := make(chan error, 1)
	go func() {
		addr := fmt.Sprintf(":%d", bootstrap.Server.HTTPPort)
		logger.Infof("HTTP server starting on %s", addr)
		serverErr <- app.Listen(addr)
	}()

	runCtx, cancelRun := context.WithCancel(ctx)
	defer cancelRun()
	runnerDone := make(chan error, 1)
	go func() { runnerDone <- runner.Run(runCtx) }()

	if c.Bool(flagAutostart) {
		if err := queue.Submit(events.Event{Kind: events.StartStream, Source: "cli"}); err != nil {
			logger.Warnf("Autostart not queued: %v", err)
		}
	}

	var errs error
	select {
	case <-ctx.Done():
		logger.Infof("Shutting down...")
	case err := <-serverErr:
		errs = multierr.Append(errs, fmt.Errorf("http server: %w", err))
	}

	// Stop producers before the pipeline they feed.
	cancelRun()
	errs = multierr.Append(errs, <-runnerDone)

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	errs = multierr.Append(errs, app.ShutdownWithContext(shutdownCtx))

	director.Stop()
	errs = multierr.Append(errs, zmqService.Stop())

	if errs != nil {
		logger.Errorf("Shutdown finished with errors: %v", errs)
		return errs
	}
	logger.Infof("mocap-ar exited properly")
	return nil
}

// customErrorHandler renders fiber errors as JSON.
func customErrorHandler(c *fiber.Ctx, err error) error {
	code := fiber.StatusInternalServerError
	if e, ok := err.(*fiber.Error); ok {
		code = e.Code
	}
	return c.Status(code).JSON(fiber.Map{
		"error": err.Error(),
	})
}
