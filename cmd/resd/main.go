// Command resd runs the remote script-execution daemon: it loads
// configuration, builds the execution core and serves the HTTP API until
// interrupted. Grounded on cmd/func/main.go's signal-handling shape.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/mati2251/res"
	"github.com/mati2251/res/config"
	"github.com/mati2251/res/server"
)

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigs
		cancel()
		<-sigs // second signal is treated as a kill
		os.Exit(137)
	}()

	if err := run(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context) error {
	cfg, err := config.NewDefault()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	core := res.NewFromConfig(cfg)
	if err := core.EnsureDirs(); err != nil {
		return fmt.Errorf("preparing store directories: %w", err)
	}

	srv := server.New(cfg.ListenAddr, core.Store, core.Images, core.Jobs, core.Runner, core.Artifacts, core.Pipeline)
	return srv.ListenAndServe(ctx)
}
