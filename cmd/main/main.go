package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"catalog/mirror/internal/config"
	"catalog/mirror/internal/container"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/pflag"
)

const usage = `Usage: mirror [flags] <command> [argument]

Commands:
  crawl                                        scrape the storefront into the interchange files
  sync [categories|manufacturers|products|all] push the interchange files to the shop (default all)
  teardown <categories|manufacturers|products|all>
                                               delete every remote entity of a kind
  weights                                      assign product weights

Flags:
`

func main() {
	flags := pflag.NewFlagSet("mirror", pflag.ExitOnError)
	configPath := flags.StringP("config", "c", "", "path to config file (default ./config.yaml)")
	config.RegisterFlags(flags)
	flags.Usage = func() {
		fmt.Fprint(os.Stderr, usage)
		flags.PrintDefaults()
	}
	_ = flags.Parse(os.Args[1:])

	args := flags.Args()
	if len(args) == 0 {
		flags.Usage()
		os.Exit(2)
	}

	cfg, err := config.LoadWithFlags(*configPath, flags)
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	level, err := log.ParseLevel(cfg.Log.Level)
	if err != nil {
		log.Fatalf("Invalid log level %q: %v", cfg.Log.Level, err)
	}
	log.SetLevel(level)
	log.Info("Configuration loaded successfully")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	app, err := container.New(ctx, cfg)
	if err != nil {
		log.Fatalf("Failed to initialize container: %v", err)
	}
	defer app.Close()

	if err := run(ctx, app, args); err != nil {
		app.Close()
		log.Fatalf("Command %s exited with error: %v", args[0], err)
	}

	log.Infof("Command %s finished successfully", args[0])
}

func run(ctx context.Context, app *container.Container, args []string) error {
	switch args[0] {
	case "crawl":
		return app.Crawl(ctx)
	case "sync":
		target := "all"
		if len(args) > 1 {
			target = args[1]
		}
		return app.Sync(ctx, target)
	case "teardown":
		if len(args) < 2 {
			return fmt.Errorf("teardown needs an entity kind")
		}
		return app.Teardown(ctx, args[1])
	case "weights":
		return app.Weights(ctx)
	default:
		return fmt.Errorf("unknown command %q", args[0])
	}
}
