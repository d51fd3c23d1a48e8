package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/wse/elogist-sync/config"
)

func main() {
	cfg, err := config.LoadConfig(os.Getenv("configPath"))
	if err != nil {
		panic(fmt.Sprintf("config parse failed: %v", err))
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	onReady := func(w *syncWorker) {
		go func() {
			err := runWorkerHTTPServer(ctx, workerHTTPOpts{
				httpAddr:    cfg.Sync.WorkerHTTPAddr,
				swaggerPath: os.Getenv("swaggerPath"),
				worker:      w,
			})
			if err != nil && err != context.Canceled {
				slog.Error("worker http server", "err", err)
			}
		}()
	}

	if err := RunSyncWorker(ctx, cfg, defaultWorkerFactories(), onReady); err != nil && err != context.Canceled {
		panic(err)
	}
}
