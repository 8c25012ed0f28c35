package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/bakebake-xr/printd/internal/api"
	"github.com/bakebake-xr/printd/internal/config"
	"github.com/bakebake-xr/printd/internal/core"
	"github.com/bakebake-xr/printd/internal/history"
	"github.com/bakebake-xr/printd/internal/queue"
	"github.com/bakebake-xr/printd/internal/remote"
	"github.com/bakebake-xr/printd/internal/render"
)

func main() {
	if err := run(); err != nil {
		log.Fatalf("printd: %v", err)
	}
}

func run() error {
	var (
		configPath  = flag.String("config", "printd.yaml", "path to config file")
		mode        = flag.String("mode", "", "operating mode: remote, local or both")
		printerName = flag.String("printer", "", "override printer name")
		port        = flag.Int("port", 0, "override local intake port")
	)
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		return err
	}
	cfg.ApplyEnv()

	if *mode != "" {
		cfg.Mode = config.Mode(*mode)
	}
	if *printerName != "" {
		cfg.Printer.Name = *printerName
	}
	if *port != 0 {
		cfg.Server.Port = *port
	}

	if err := cfg.Validate(); err != nil {
		return err
	}

	log.Printf("printd starting: printer=%q address=%s:%d mode=%s",
		cfg.Printer.Name, cfg.Printer.Address, cfg.Printer.Port, cfg.Mode)

	hist, err := history.Open(cfg.History.Path)
	if err != nil {
		return err
	}
	defer hist.Close()

	store := queue.New(cfg.Queue.Path)
	opener := render.NewTCPOpener(&cfg.Printer)
	lock := core.NewDeviceLock(opener)
	renderer := render.NewReceipt(cfg.Printer.WidthPx)

	// Probe the device once so a misconfigured address is visible in the
	// log immediately rather than on the first job.
	if dev, err := opener.Open(); err != nil {
		log.Printf("printer: not reachable yet: %v", err)
	} else {
		dev.Close()
		log.Printf("printer: verified %s:%d", cfg.Printer.Address, cfg.Printer.Port)
	}

	// A remote client is created whenever a URL is configured, even in
	// local mode: jobs posted locally with a record id still get their
	// completion flag set best-effort.
	var client *remote.Client
	var acker core.Acker
	if cfg.Remote.URL != "" {
		client = remote.NewClient(&cfg.Remote)
		acker = client
	}

	executor := core.NewExecutor(lock, renderer, store, hist, acker, cfg.Queue.MaxRetries)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Crash-recovered retries replay before either source produces jobs.
	executor.ReplayQueued(ctx)

	go retryLoop(ctx, executor, store, cfg.Queue.RetryInterval)

	var adapter *remote.Adapter
	if cfg.RemoteEnabled() {
		adapter = remote.NewAdapter(client, executor, &cfg.Remote)
		adapter.Start()
		defer adapter.Stop()
	}

	var srv *http.Server
	if cfg.LocalEnabled() {
		var pusher api.Pusher
		if adapter != nil {
			pusher = adapter
		}
		handler := api.NewHandler(executor, store, hist, pusher, cfg)

		srv = &http.Server{
			Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
			Handler:      api.NewRouter(handler),
			ReadTimeout:  cfg.Server.ReadTimeout,
			WriteTimeout: cfg.Server.WriteTimeout,
		}

		go func() {
			log.Printf("intake: listening on :%d", cfg.Server.Port)
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				log.Printf("intake: server error: %v", err)
			}
		}()
	}

	<-ctx.Done()
	log.Printf("printd: shutting down")

	if srv != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Printf("intake: shutdown error: %v", err)
		}
	}

	return nil
}

// retryLoop re-runs the queue replay so jobs parked by a failed intake
// attempt are retried without waiting for a restart.
func retryLoop(ctx context.Context, executor *core.Executor, store *queue.Store, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if store.Len() > 0 {
				executor.ReplayQueued(ctx)
			}
		}
	}
}
