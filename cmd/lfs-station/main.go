package main

import (
	"context"
	"net/mail"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/pkg/errors"
	"github.com/urfave/cli/v3"
	"go.uber.org/multierr"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/ctfer-io/lfs-station/global"
	"github.com/ctfer-io/lfs-station/pkg/exercise"
	"github.com/ctfer-io/lfs-station/pkg/fs"
	"github.com/ctfer-io/lfs-station/pkg/station"
	"github.com/ctfer-io/lfs-station/server"
)

var (
	Version = "dev"
	Commit  = ""
	Date    = ""
	BuiltBy = ""
)

const (
	wifiBackendHost  = "host"
	wifiBackendNmcli = "nmcli"
)

func main() {
	cmd := &cli.Command{
		Name:  "LFS-Station",
		Usage: "Exercise flash partitions then serve a page over WiFi",
		Flags: []cli.Flag{
			cli.VersionFlag,
			cli.HelpFlag,
			&cli.IntFlag{
				Name:     "port",
				Aliases:  []string{"p"},
				Sources:  cli.EnvVars("PORT"),
				Category: "global",
				Value:    80,
				Usage:    "Define the HTTP server port to listen on.",
			},
			&cli.StringFlag{
				Name:     "log-level",
				Sources:  cli.EnvVars("LOG_LEVEL"),
				Category: "global",
				Value:    "info",
				Action: func(_ context.Context, _ *cli.Command, lvl string) error {
					_, err := zapcore.ParseLevel(lvl)
					return err
				},
				Destination: &global.Conf.LogLevel,
				Usage:       "Use to specify the level of logging.",
			},
			&cli.BoolFlag{
				Name:     "healthcheck",
				Sources:  cli.EnvVars("HEALTHCHECK"),
				Category: "global",
				Value:    false,
				Usage:    "If set, turns on the healthcheck on `/healthcheck`.",
			},
			&cli.StringFlag{
				Name:      "report",
				Sources:   cli.EnvVars("REPORT"),
				Category:  "global",
				Usage:     "If set, writes the JSON report of the filesystem exercise to this file.",
				TakesFile: true,
			},
			&cli.StringFlag{
				Name:        "dir",
				Aliases:     []string{"d"},
				Sources:     cli.EnvVars("DIR"),
				Category:    "flash",
				Value:       "/tmp/lfs-station",
				Destination: &global.Conf.Directory,
				Usage:       "Define the directory partitions are laid out in, when the flash backend is os.",
				TakesFile:   true, // a directory actually
			},
			&cli.StringFlag{
				Name:        "flash",
				Sources:     cli.EnvVars("FLASH"),
				Category:    "flash",
				Value:       fs.BackendOS,
				Destination: &global.Conf.Flash.Backend,
				Action: func(_ context.Context, _ *cli.Command, backend string) error {
					if backend != fs.BackendOS && backend != fs.BackendMem {
						return errors.Errorf("unsupported flash backend %q, must be %s or %s", backend, fs.BackendOS, fs.BackendMem)
					}
					return nil
				},
				Usage: "Define the flash backend, either os (persisted in --dir) or mem (lost on exit).",
			},
			&cli.StringFlag{
				Name:        "partitions",
				Sources:     cli.EnvVars("PARTITIONS"),
				Category:    "flash",
				Destination: &global.Conf.Flash.PartitionsFile,
				Usage:       "Define the YAML partition table. Defaults to spiffs (/littlefs) and part2 (/lfs2).",
				TakesFile:   true,
			},
			&cli.BoolFlag{
				Name:        "two-part",
				Sources:     cli.EnvVars("TWO_PART"),
				Category:    "flash",
				Value:       true,
				Destination: &global.Conf.Flash.TwoPart,
				Usage:       "If set, exercises the part2 partition before the spiffs one.",
			},
			&cli.BoolFlag{
				Name:        "format-if-failed",
				Sources:     cli.EnvVars("FORMAT_IF_FAILED"),
				Category:    "flash",
				Value:       true,
				Destination: &global.Conf.Flash.FormatIfFailed,
				Usage:       "If set, formats partitions that fail to mount.",
			},
			&cli.IntFlag{
				Name:        "bench.chunk-size",
				Sources:     cli.EnvVars("BENCH_CHUNK_SIZE"),
				Category:    "flash",
				Value:       fs.DefaultChunkSize,
				Destination: &global.Conf.Bench.ChunkSize,
				Usage:       "Define the size in bytes of the benchmark chunks.",
			},
			&cli.IntFlag{
				Name:        "bench.chunks",
				Sources:     cli.EnvVars("BENCH_CHUNKS"),
				Category:    "flash",
				Value:       fs.DefaultChunkCount,
				Destination: &global.Conf.Bench.ChunkCount,
				Usage:       "Define the number of benchmark chunks.",
			},
			&cli.StringFlag{
				Name:        "wifi.ssid",
				Sources:     cli.EnvVars("WIFI_SSID"),
				Category:    "wifi",
				Value:       "AndroidAP8342",
				Destination: &global.Conf.WiFi.SSID,
				Usage:       "Define the SSID of the access point to join.",
			},
			&cli.StringFlag{
				Name:        "wifi.password",
				Sources:     cli.EnvVars("WIFI_PASSWORD"),
				Category:    "wifi",
				Value:       "12345678",
				Destination: &global.Conf.WiFi.Password,
				Usage:       "Define the password of the access point to join.",
			},
			&cli.StringFlag{
				Name:        "wifi.backend",
				Sources:     cli.EnvVars("WIFI_BACKEND"),
				Category:    "wifi",
				Value:       wifiBackendHost,
				Destination: &global.Conf.WiFi.Backend,
				Action: func(_ context.Context, _ *cli.Command, backend string) error {
					if backend != wifiBackendHost && backend != wifiBackendNmcli {
						return errors.Errorf("unsupported wifi backend %q, must be %s or %s", backend, wifiBackendHost, wifiBackendNmcli)
					}
					return nil
				},
				Usage: "Define how to join the access point, either host (already networked) or nmcli (NetworkManager).",
			},
			&cli.StringFlag{
				Name:        "wifi.interface",
				Sources:     cli.EnvVars("WIFI_INTERFACE"),
				Category:    "wifi",
				Destination: &global.Conf.WiFi.Interface,
				Usage:       "If wifi backend is nmcli, define the interface to associate with.",
			},
			&cli.DurationFlag{
				Name:        "wifi.timeout",
				Sources:     cli.EnvVars("WIFI_TIMEOUT"),
				Category:    "wifi",
				Value:       station.DefaultTimeout,
				Destination: &global.Conf.WiFi.Timeout,
				Usage:       "Define how long to wait for the association before giving up.",
			},
			&cli.DurationFlag{
				Name:        "wifi.poll-interval",
				Sources:     cli.EnvVars("WIFI_POLL_INTERVAL"),
				Category:    "wifi",
				Value:       station.DefaultPollInterval,
				Destination: &global.Conf.WiFi.PollInterval,
				Usage:       "Define the interval between two association status polls.",
			},
			&cli.BoolFlag{
				Name:        "tracing",
				Sources:     cli.EnvVars("TRACING"),
				Category:    "otel",
				Destination: &global.Conf.Otel.Tracing,
				Usage:       "If set, turns on tracing through OpenTelemetry (see https://opentelemetry.io) for more info.",
			},
			&cli.StringFlag{
				Name:        "service-name",
				Sources:     cli.EnvVars("OTEL_SERVICE_NAME"),
				Category:    "otel",
				Value:       "lfs-station",
				Destination: &global.Conf.Otel.ServiceName,
				Usage:       "Override the service name. Useful when deploying multiple instances to filter signals.",
			},
		},
		Action: run,
		Authors: []any{
			mail.Address{
				Name:    "Lucas Tesson - PandatiX",
				Address: "lucastesson@protonmail.com",
			},
		},
		Version: Version,
		Metadata: map[string]any{
			"version": Version,
			"commit":  Commit,
			"date":    Date,
			"builtBy": BuiltBy,
		},
	}

	ctx := context.Background()
	if err := cmd.Run(ctx, os.Args); err != nil {
		global.Log().Error(ctx, "fatal error",
			zap.Error(err),
		)
		os.Exit(1)
	}
}

func run(ctx context.Context, cmd *cli.Command) (err error) {
	// Pre-flight global configuration
	global.Version = Version

	// Set up OpenTelemetry, before the logger is built so logs get bridged
	if global.Conf.Otel.Tracing {
		var otelShutdown func(context.Context) error
		otelShutdown, err = global.SetupOTelSDK(ctx)
		if err != nil {
			return err
		}
		// Handle shutdown properly so nothing leaks
		defer func() {
			err = multierr.Append(err, otelShutdown(context.WithoutCancel(ctx)))
		}()
	}

	logger := global.Log()

	// Create context that listens for the interrupt signal from the OS
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	tbl := fs.DefaultTable()
	if pf := global.Conf.Flash.PartitionsFile; pf != "" {
		tbl, err = fs.LoadTable(pf)
		if err != nil {
			return errors.Wrapf(err, "loading partition table %s", pf)
		}
	}
	flash, err := fs.NewFlash(global.Conf.Flash.Backend, global.FlashDir())
	if err != nil {
		return err
	}

	// Filesystem exercise. Only a mount failure cuts it short, and it does
	// not prevent the station from coming up.
	logger.Info(ctx, "starting filesystem exercise",
		zap.String("flash", flash.Key()),
		zap.Bool("two_part", global.Conf.Flash.TwoPart),
	)
	report, err := exercise.Run(ctx, flash, exercise.Options{
		Table:          tbl,
		TwoPart:        global.Conf.Flash.TwoPart,
		FormatIfFailed: global.Conf.Flash.FormatIfFailed,
		ChunkSize:      global.Conf.Bench.ChunkSize,
		ChunkCount:     global.Conf.Bench.ChunkCount,
	})
	if err != nil {
		logger.Error(ctx, "filesystem exercise aborted",
			zap.Error(err),
		)
	}
	if rp := cmd.String("report"); rp != "" && report != nil {
		if err := writeReport(rp, report); err != nil {
			logger.Error(ctx, "writing exercise report",
				zap.String("path", rp),
				zap.Error(err),
			)
		}
	}

	// Station
	link := newLink()
	res, err := station.Associate(ctx, link, station.Credentials{
		SSID:     global.Conf.WiFi.SSID,
		Password: global.Conf.WiFi.Password,
	}, station.Options{
		Timeout:      global.Conf.WiFi.Timeout,
		PollInterval: global.Conf.WiFi.PollInterval,
	})
	if err != nil {
		return errors.Wrap(err, "associating with access point")
	}
	if res.State != station.StateConnected {
		logger.Warn(ctx, "access point not joined, serving anyway",
			zap.String("ssid", global.Conf.WiFi.SSID),
			zap.Duration("elapsed", res.Elapsed),
		)
	}

	// The healthcheck owns the primary partition for the server lifetime
	healthcheck := cmd.Bool("healthcheck")
	var mount *fs.Mount
	if healthcheck {
		mount, err = mountPrimary(ctx, flash, tbl)
		if err != nil {
			logger.Warn(ctx, "healthcheck runs without flash check",
				zap.Error(err),
			)
		}
	}

	// Launch HTTP server
	port := cmd.Int("port")
	srv := server.NewServer(server.Options{
		Port:        port,
		Healthcheck: healthcheck,
		Mount:       mount,
		Link:        link,
	})
	if err := srv.Run(ctx); err != nil {
		return err
	}
	logger.Info(ctx, "HTTP server started on port",
		zap.Int("port", port),
		zap.String("ip", res.IP),
	)

	// Listen for the interrupt signal
	<-ctx.Done()

	// Restore default behavior on the interrupt signal
	stop()
	logger.Info(ctx, "shutting down gracefully")

	sctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()
	err = srv.Shutdown(sctx)
	if mount != nil {
		err = multierr.Append(err, mount.Unmount(sctx))
	}
	return err
}

func newLink() station.Link {
	if global.Conf.WiFi.Backend == wifiBackendNmcli {
		return station.NewNmcliLink(global.Conf.WiFi.Interface)
	}
	return station.HostLink{}
}

func mountPrimary(ctx context.Context, flash fs.Flash, tbl *fs.Table) (*fs.Mount, error) {
	p, err := tbl.Lookup(exercise.PrimaryPartition)
	if err != nil {
		return nil, err
	}
	return fs.MountPartition(ctx, flash, p, fs.MountOptions{
		FormatIfFailed: global.Conf.Flash.FormatIfFailed,
	})
}

func writeReport(fpath string, report *exercise.Report) (err error) {
	f, err := os.Create(fpath)
	if err != nil {
		return err
	}
	defer func() {
		err = multierr.Append(err, f.Close())
	}()
	return report.WriteJSON(f)
}
