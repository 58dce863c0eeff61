package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io/fs"
	"os"
	"os/signal"
	"syscall"

	"github.com/peterbourgon/ff/v3"

	"qr-ordering/internal/app/api"
	"qr-ordering/internal/app/migrate"
	"qr-ordering/internal/app/notify"
	"qr-ordering/internal/common/config"
	"qr-ordering/internal/common/logger"
)

const modes = "api-server | notification-subscriber | migrate"

func main() {
	fset := flag.NewFlagSet("qr-ordering", flag.ExitOnError)
	mode := fset.String("mode", "", modes)
	cfgPath := fset.String("config", "", "path to YAML config (default: config.yaml if present)")
	addr := fset.String("addr", "", "api-server: listen address, overrides server.addr")
	maxConc := fset.Int64("max-concurrent", 0, "api-server: max concurrent requests, overrides server.max_concurrent")
	logLevel := fset.String("log-level", "", "debug | info | warn | error, overrides log.level")
	if err := ff.Parse(fset, os.Args[1:], ff.WithEnvVarPrefix("QRO")); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}

	cfg, err := loadConfig(*cfgPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}
	if *addr != "" {
		cfg.Server.Addr = *addr
	}
	if *maxConc > 0 {
		cfg.Server.MaxConcurrent = *maxConc
	}
	if *logLevel != "" {
		cfg.Log.Level = *logLevel
	}
	if err := logger.SetLevel(cfg.Log.Level); err != nil {
		fmt.Fprintf(os.Stderr, "bad log level %q: %v\n", cfg.Log.Level, err)
		os.Exit(2)
	}
	defer logger.Sync()

	lg := logger.New("bootstrap")
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	switch *mode {
	case "api-server":
		if err := cfg.Validate(); err != nil {
			lg.Error("config_invalid", err, nil)
			os.Exit(2)
		}
		err = api.Run(ctx, cfg)
	case "notification-subscriber":
		err = notify.Run(ctx, cfg.Rabbit)
	case "migrate":
		err = migrate.Run(ctx, cfg.Database)
	default:
		fmt.Fprintln(os.Stderr, "-mode is required: "+modes)
		os.Exit(2)
	}
	if err != nil {
		lg.Error("fatal", err, map[string]any{"mode": *mode})
		logger.Sync()
		os.Exit(1)
	}
	lg.Info("service_stopped", map[string]any{"mode": *mode})
}

// loadConfig reads path, or the first config file found nearby when path is
// empty. With neither, the defaults apply.
func loadConfig(path string) (config.App, error) {
	if path == "" {
		found, err := config.FindConfig()
		if err != nil && !errors.Is(err, fs.ErrNotExist) {
			return config.App{}, err
		}
		path = found
	}
	return config.Load(path)
}
