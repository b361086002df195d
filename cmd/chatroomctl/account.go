package main

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"github.com/urfave/cli/v2"

	"github.com/matheus3301/chatroom/internal/account"
)

var passwordFlag = &cli.StringFlag{
	Name:    "password",
	Usage:   "Account password (prompted when omitted)",
	EnvVars: []string{"CHATROOM_PASSWORD"},
}

var registerCommand = &cli.Command{
	Name:  "register",
	Usage: "Create an account and sign in",
	Flags: []cli.Flag{
		&cli.StringFlag{Name: "username", Aliases: []string{"u"}, Required: true},
		&cli.StringFlag{Name: "email", Aliases: []string{"e"}, Required: true},
		passwordFlag,
	},
	Action: cmdRegister,
}

var loginCommand = &cli.Command{
	Name:      "login",
	Usage:     "Sign in with a username or email",
	ArgsUsage: "USERNAME|EMAIL",
	Flags:     []cli.Flag{passwordFlag},
	Action:    cmdLogin,
}

var logoutCommand = &cli.Command{
	Name:   "logout",
	Usage:  "Sign out and clear this profile's stored credentials and cache",
	Action: cmdLogout,
}

var whoamiCommand = &cli.Command{
	Name:    "whoami",
	Aliases: []string{"w"},
	Usage:   "Show the signed-in user",
	Action:  cmdWhoami,
}

func readLine(prompt string) (string, error) {
	fmt.Print(prompt)
	reader := bufio.NewReader(os.Stdin)
	line, err := reader.ReadString('\n')
	return strings.TrimSpace(line), err
}

func password(ctx *cli.Context) (string, error) {
	if pw := ctx.String("password"); pw != "" {
		return pw, nil
	}
	return readLine("Password: ")
}

// describe prefixes errors that are not already phrased for the user.
func describe(err error) error {
	if account.IsUserFacing(err) {
		return err
	}
	return fmt.Errorf("request failed: %w", err)
}

func cmdRegister(ctx *cli.Context) error {
	pw, err := password(ctx)
	if err != nil {
		return err
	}
	id, err := getClient(ctx).Accounts.Register(ctx.Context, ctx.String("username"), ctx.String("email"), pw)
	if err != nil {
		return describe(err)
	}
	fmt.Printf("Registered and signed in as @%s <%s>\n", id.Username, id.Email)
	return nil
}

func cmdLogin(ctx *cli.Context) error {
	if ctx.NArg() == 0 {
		return fmt.Errorf("you must specify a username or email")
	}
	pw, err := password(ctx)
	if err != nil {
		return err
	}
	id, err := getClient(ctx).Accounts.Login(ctx.Context, ctx.Args().Get(0), pw)
	if err != nil {
		return describe(err)
	}
	fmt.Printf("Logged in as @%s <%s>\n", id.Username, id.Email)
	return nil
}

func cmdLogout(ctx *cli.Context) error {
	client := getClient(ctx)
	// Restore the session first so the remote sign-out applies to it.
	if _, err := client.Accounts.AutoLogin(ctx.Context); err != nil {
		return err
	}
	client.Logout(ctx.Context)
	fmt.Println("Logged out, local data cleared")
	return nil
}

func cmdWhoami(ctx *cli.Context) error {
	id := getClient(ctx).Accounts.Current()
	fmt.Printf("User:     @%s\n", id.Username)
	fmt.Printf("Email:    %s\n", id.Email)
	fmt.Printf("UID:      %s\n", id.ID)
	if !id.CreatedAt.IsZero() {
		fmt.Printf("Joined:   %s\n", id.CreatedAt.Local().Format("2006-01-02 15:04"))
	}
	return nil
}
