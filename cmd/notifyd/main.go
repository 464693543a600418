package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"notifyd/internal/app"
	"notifyd/internal/notifytype"
)

func main() {
	var cfgPath string
	flag.StringVar(&cfgPath, "config", "./config.yaml", "path to config yaml")
	flag.Parse()

	// Secrets referenced by the config (DSN, telegram token) may live in
	// a local .env during development.
	_ = godotenv.Load()

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	a, err := app.New(cfgPath)
	if err != nil {
		fmt.Println("fatal:", err)
		os.Exit(1)
	}

	// Notification types must be registered before the first run.
	deps := notifytype.Deps{Sender: a.Sender(), Telegram: a.Telegram(), Log: a.Log()}
	if err := notifytype.RegisterReminder(a.Types(), deps); err != nil {
		fmt.Println("fatal:", err)
		os.Exit(1)
	}
	if err := notifytype.RegisterAlert(a.Types(), deps); err != nil {
		fmt.Println("fatal:", err)
		os.Exit(1)
	}

	if err := a.Start(ctx); err != nil {
		fmt.Println("fatal start:", err)
		os.Exit(1)
	}

	<-ctx.Done()
	_ = a.Stop(context.Background())
}
