package main

import (
	"fmt"
	"os"

	"github.com/urfave/cli/v2"
)

const (
	flagConfigDir    = "config-dir"
	flagDebug        = "debug"
	flagAutostart    = "autostart"
	flagListen       = "listen"
	flagFrequency    = "frequency"
	flagOccludeEvery = "occlude-every"
)

var app = &cli.App{
	Name:            "mocap-ar",
	Usage:           "stream motion capture data into an AR scene",
	HideHelpCommand: true,
	Flags: []cli.Flag{
		&cli.BoolFlag{
			Name:    flagDebug,
			Aliases: []string{"vvv"},
			Usage:   "enable debug logging",
		},
	},
	Commands: []*cli.Command{
		{
			Name:   "serve",
			Usage:  "run the streaming client with its ZeroMQ and HTTP endpoints",
			Action: serveAction,
			Flags: []cli.Flag{
				&cli.StringFlag{
					Name:    flagConfigDir,
					Aliases: []string{"c"},
					Value:   "./config",
					EnvVars: []string{"MOCAP_CONFIG_DIR"},
					Usage:   "directory holding mocap_config.yaml",
				},
				&cli.BoolFlag{
					Name:  flagAutostart,
					Usage: "queue a start event as soon as the runner is up",
				},
			},
		},
		{
			Name:   "simulate",
			Usage:  "serve synthetic mocap data over the RT protocol",
			Action: simulateAction,
			Flags: []cli.Flag{
				&cli.StringFlag{
					Name:  flagListen,
					Value: "127.0.0.1:22223",
					Usage: "address to accept RT clients on",
				},
				&cli.IntFlag{
					Name:  flagFrequency,
					Value: 100,
					Usage: "capture frequency reported in the general settings",
				},
				&cli.IntFlag{
					Name:  flagOccludeEvery,
					Value: 50,
					Usage: "drop marker 0 on every Nth frame, 0 to disable",
				},
			},
		},
	},
}

func main() {
	if err := app.Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
