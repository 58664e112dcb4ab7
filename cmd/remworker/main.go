// Command remworker consumes recording jobs and writes enriched,
// speaker-attributed transcripts.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/kbukum/remworker/bootstrap"
	"github.com/kbukum/remworker/logger"
)

func main() {
	configPath := flag.String("config", "", "path to config.yml (searched for when empty)")
	flag.Parse()

	cfg, err := loadConfig(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "remworker: %v\n", err)
		os.Exit(1)
	}

	app, err := bootstrap.NewApp(cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "remworker: %v\n", err)
		os.Exit(1)
	}

	if err := wire(app); err != nil {
		app.Logger.Fatal("wiring failed", logger.ErrorFields("wire", err))
	}
	if err := app.Run(context.Background()); err != nil {
		app.Logger.Error("remworker exited with error", logger.ErrorFields("run", err))
		os.Exit(1)
	}
}
