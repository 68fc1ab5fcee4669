package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"github.com/thoknuts/nda-sm-platform/internal/kiosk/client"
	"github.com/thoknuts/nda-sm-platform/internal/kiosk/connectivity"
	"github.com/thoknuts/nda-sm-platform/internal/kiosk/offlinequeue"
	"github.com/thoknuts/nda-sm-platform/internal/shared/config"
	"github.com/thoknuts/nda-sm-platform/internal/shared/logger"
)

type options struct {
	once     bool
	purge    bool
	interval time.Duration
}

func main() {
	if err := run(os.Args[1:]); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return
		}
		fmt.Fprintf(os.Stderr, "kiosk-sync: %v\n", err)
		os.Exit(1)
	}
}

func run(args []string) error {
	var opts options
	flagSet := pflag.NewFlagSet("kiosk-sync", pflag.ContinueOnError)
	flagSet.String("db", "", "path to the device queue database (env KIOSK_DB_PATH)")
	flagSet.String("api", "", "base URL of the NDA server (env KIOSK_API_URL)")
	flagSet.BoolVar(&opts.once, "once", false, "drain the queue once and exit")
	flagSet.BoolVar(&opts.purge, "purge", false, "remove entries that can no longer be decrypted, then exit")
	flagSet.DurationVar(&opts.interval, "interval", 15*time.Second, "connectivity probe interval when watching")
	if err := flagSet.Parse(args); err != nil {
		return err
	}
	if opts.interval <= 0 {
		return fmt.Errorf("--interval must be positive, got %s", opts.interval)
	}

	v := viper.New()
	if err := v.BindPFlag("kiosk.db_path", flagSet.Lookup("db")); err != nil {
		return err
	}
	if err := v.BindPFlag("kiosk.api_url", flagSet.Lookup("api")); err != nil {
		return err
	}
	cfg, err := config.LoadDevice(v)
	if err != nil {
		return err
	}

	baseLogger := logger.New("kiosk-sync", cfg.AppEnv == "dev")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	store, err := offlinequeue.OpenSQLite(cfg.DBPath, &baseLogger)
	if err != nil {
		return err
	}
	defer store.Close()

	queue, err := offlinequeue.New(ctx, store, &baseLogger)
	if err != nil {
		return err
	}

	if opts.purge {
		removed, err := queue.Purge(ctx)
		if err != nil {
			return err
		}
		baseLogger.Info().Int("removed", removed).Msg("Purged unreadable entries")
		return nil
	}

	monitor := connectivity.NewMonitor(false, &baseLogger)
	prober := connectivity.NewProber(cfg.APIURL, monitor, opts.interval, &baseLogger)
	agent := client.NewAgent(client.NewAPIClient(cfg.APIURL, &baseLogger), queue, monitor, &baseLogger)

	if opts.once {
		return syncOnce(ctx, agent, prober, &baseLogger)
	}
	return watch(ctx, agent, queue, prober, &baseLogger)
}

func syncOnce(ctx context.Context, agent *client.Agent, prober *connectivity.Prober, log *zerolog.Logger) error {
	if !prober.Probe(ctx) {
		return errors.New("server is not reachable, nothing synced")
	}
	res, err := agent.Sync(ctx)
	if err != nil {
		return err
	}
	log.Info().Int("synced", res.Synced).Int("failed", res.Failed).Msg("Sync finished")
	if res.Failed > 0 {
		return fmt.Errorf("%d submissions are still queued", res.Failed)
	}
	return nil
}

func watch(ctx context.Context, agent *client.Agent, queue *offlinequeue.Queue, prober *connectivity.Prober, log *zerolog.Logger) error {
	unsubscribe := agent.SyncOnReconnect(ctx)
	defer unsubscribe()

	if n, err := queue.Count(ctx); err == nil {
		log.Info().Int("queued", n).Msg("Watching connectivity")
	}
	prober.Run(ctx)
	return nil
}
