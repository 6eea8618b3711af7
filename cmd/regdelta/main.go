package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	_ "github.com/joho/godotenv/autoload"

	"github.com/meigma/regdelta/internal/command"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	app := command.NewApp(ctx)
	if err := app.Run(os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "regdelta: %v\n", err)
		os.Exit(1)
	}
}
