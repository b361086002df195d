package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/urfave/cli/v2"
	"go.uber.org/fx"

	"github.com/matheus3301/chatroom/internal/app"
	"github.com/matheus3301/chatroom/internal/config"
	"github.com/matheus3301/chatroom/internal/profile"
)

type contextKey int

const (
	contextKeyClient contextKey = iota
	contextKeyFx
)

const requestTimeout = 15 * time.Second

func getClient(ctx *cli.Context) *app.Client {
	return ctx.Context.Value(contextKeyClient).(*app.Client)
}

// startClient resolves the profile and starts the composed client. The
// started fx app is kept in the context so stopClient can release the
// profile lock.
func startClient(ctx *cli.Context) error {
	cfg, err := config.LoadOrDefault(ctx.String("config"))
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	name := profile.Resolve(ctx.String("profile"), cfg)
	if err := profile.ValidateName(name); err != nil {
		return err
	}

	var client *app.Client
	fxApp := fx.New(
		app.Module(app.Params{Profile: name, Config: cfg, Console: ctx.Bool("verbose")}),
		fx.Populate(&client),
		fx.NopLogger,
	)
	startCtx, cancel := context.WithTimeout(ctx.Context, requestTimeout)
	defer cancel()
	if err := fxApp.Start(startCtx); err != nil {
		return fmt.Errorf("failed to start profile %q: %w", name, err)
	}

	newCtx := context.WithValue(ctx.Context, contextKeyClient, client)
	newCtx = context.WithValue(newCtx, contextKeyFx, fxApp)
	ctx.Context = newCtx
	return nil
}

func stopClient(ctx *cli.Context) error {
	fxApp, ok := ctx.Context.Value(contextKeyFx).(*fx.App)
	if !ok {
		return nil
	}
	stopCtx, cancel := context.WithTimeout(context.Background(), requestTimeout)
	defer cancel()
	return fxApp.Stop(stopCtx)
}

// requiresSession starts the client and restores the stored session.
func requiresSession(ctx *cli.Context) error {
	if err := startClient(ctx); err != nil {
		return err
	}
	client := getClient(ctx)
	id, err := client.Accounts.AutoLogin(ctx.Context)
	if err != nil {
		return err
	}
	if id == nil {
		return fmt.Errorf("you are not logged in, run 'chatroomctl login' first")
	}
	return nil
}

func withClient(cmd *cli.Command, before cli.BeforeFunc) *cli.Command {
	cmd.Before = before
	cmd.After = stopClient
	return cmd
}

func main() {
	cliApp := &cli.App{
		Name:    "chatroomctl",
		Usage:   "Script the chat room from the command line",
		Version: "0.1.0",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "profile",
				Aliases: []string{"p"},
				Usage:   "Profile name (overrides config default)",
				EnvVars: []string{"CHATROOM_PROFILE"},
			},
			&cli.StringFlag{
				Name:  "config",
				Usage: "Path to config file",
				Value: profile.ConfigPath(),
			},
			&cli.BoolFlag{
				Name:  "verbose",
				Usage: "Also log warnings to stderr",
			},
		},
		Commands: []*cli.Command{
			withClient(registerCommand, startClient),
			withClient(loginCommand, startClient),
			withClient(logoutCommand, startClient),
			withClient(whoamiCommand, requiresSession),
			withClient(historyCommand, requiresSession),
			withClient(sendCommand, requiresSession),
			withClient(sendImageCommand, requiresSession),
			withClient(statsCommand, startClient),
			withClient(imageCommand, startClient),
		},
	}
	if err := cliApp.Run(os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
