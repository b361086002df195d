package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/matheus3301/chatroom/internal/app"
	"github.com/matheus3301/chatroom/internal/config"
	"github.com/matheus3301/chatroom/internal/lock"
	"github.com/matheus3301/chatroom/internal/profile"
	"github.com/matheus3301/chatroom/internal/tui"
	"go.uber.org/fx"
)

func main() {
	profileFlag := flag.String("profile", "", "profile name (overrides config default)")
	flag.Parse()

	cfg, err := config.LoadOrDefault(profile.ConfigPath())
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: load config: %v\n", err)
		os.Exit(1)
	}

	name := profile.Resolve(*profileFlag, cfg)
	if err := profile.ValidateName(name); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}

	var client *app.Client
	fxApp := fx.New(
		app.Module(app.Params{Profile: name, Config: cfg}),
		fx.Populate(&client),
		fx.NopLogger,
	)

	startCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	err = fxApp.Start(startCtx)
	cancel()
	if err != nil {
		var held *lock.LockHeldError
		if errors.As(err, &held) {
			fmt.Fprintf(os.Stderr, "error: %v\n", held)
		} else {
			fmt.Fprintf(os.Stderr, "error: start: %v\n", err)
		}
		os.Exit(1)
	}

	runErr := tui.NewApp(client).Run()

	stopCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := fxApp.Stop(stopCtx); err != nil {
		fmt.Fprintf(os.Stderr, "error: stop: %v\n", err)
	}
	if runErr != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", runErr)
		os.Exit(1)
	}
}
