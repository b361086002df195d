package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/matheus3301/chatroom/internal/bus"
	"github.com/matheus3301/chatroom/internal/media"
	"github.com/matheus3301/chatroom/internal/model"
	"github.com/matheus3301/chatroom/internal/status"
	"github.com/matheus3301/chatroom/internal/sync"
)

var historyCommand = &cli.Command{
	Name:  "history",
	Usage: "Print the room's messages",
	Flags: []cli.Flag{
		&cli.BoolFlag{Name: "follow", Aliases: []string{"f"}, Usage: "Keep printing new messages until interrupted"},
		&cli.BoolFlag{Name: "json", Usage: "Print one JSON object per message"},
		&cli.BoolFlag{Name: "cached", Usage: "Print the local cache without contacting the server"},
	},
	Action: cmdHistory,
}

var sendCommand = &cli.Command{
	Name:      "send",
	Usage:     "Send a text message",
	ArgsUsage: "TEXT...",
	Action:    cmdSend,
}

var sendImageCommand = &cli.Command{
	Name:      "send-image",
	Usage:     "Send an image, downscaled to fit the payload limit",
	ArgsUsage: "PATH",
	Flags: []cli.Flag{
		&cli.StringFlag{Name: "caption", Aliases: []string{"c"}},
	},
	Action: cmdSendImage,
}

// openRoom opens the session for the signed-in user and waits until the
// first snapshot arrives or the subscription fails.
func openRoom(ctx *cli.Context) (*sync.Session, error) {
	client := getClient(ctx)
	events, unsub := client.Bus.Subscribe(bus.KindStatusChanged, 8)
	defer unsub()

	sess, err := client.Enter(ctx.Context, client.Accounts.Current())
	if err != nil {
		return sess, err
	}

	timeout := time.After(requestTimeout)
	for sess.Status() != status.Online {
		select {
		case <-events:
			if sess.Status() == status.Offline {
				return sess, fmt.Errorf("room is offline")
			}
		case <-timeout:
			return sess, fmt.Errorf("timed out waiting for the room")
		case <-ctx.Context.Done():
			return sess, ctx.Context.Err()
		}
	}
	return sess, nil
}

func cmdHistory(ctx *cli.Context) error {
	client := getClient(ctx)
	self := client.Accounts.Current().ID
	printer := messagePrinter{self: self, json: ctx.Bool("json")}

	if ctx.Bool("cached") {
		for _, m := range client.Cache.Load(ctx.Context) {
			printer.print(m)
		}
		return nil
	}

	sess, err := openRoom(ctx)
	if err != nil {
		if sess == nil {
			return err
		}
		fmt.Fprintf(os.Stderr, "Warning: %v, showing cached messages\n", err)
	}

	seen := make(map[string]bool)
	printNew := func() {
		for _, m := range sess.Messages() {
			if m.CreatedAt == nil || seen[m.ID] {
				continue
			}
			seen[m.ID] = true
			printer.print(m)
		}
	}
	printNew()
	if !ctx.Bool("follow") {
		return nil
	}

	sigCtx, stop := signal.NotifyContext(ctx.Context, os.Interrupt)
	defer stop()
	events, unsub := client.Bus.Subscribe("sync.", 64)
	defer unsub()
	for {
		select {
		case evt := <-events:
			switch evt.Kind {
			case bus.KindSnapshotApplied:
				printNew()
			case bus.KindStatusChanged:
				if change, ok := evt.Payload.(status.StatusChange); ok && change.To == status.Offline {
					fmt.Fprintln(os.Stderr, "Offline, waiting for the server...")
				}
			}
		case <-sigCtx.Done():
			return nil
		}
	}
}

func cmdSend(ctx *cli.Context) error {
	text := strings.Join(ctx.Args().Slice(), " ")
	sess, err := getClient(ctx).Enter(ctx.Context, getClient(ctx).Accounts.Current())
	if err != nil {
		return err
	}
	sendCtx, cancel := context.WithTimeout(ctx.Context, requestTimeout)
	defer cancel()
	id, err := sess.SendText(sendCtx, text)
	if err != nil {
		return err
	}
	fmt.Println(id)
	return nil
}

func cmdSendImage(ctx *cli.Context) error {
	asset, err := media.PickFile(ctx.Args().Get(0))
	if err != nil {
		return err
	}
	if asset == nil {
		return fmt.Errorf("you must specify an image path")
	}
	sess, err := getClient(ctx).Enter(ctx.Context, getClient(ctx).Accounts.Current())
	if err != nil {
		return err
	}
	sendCtx, cancel := context.WithTimeout(ctx.Context, requestTimeout)
	defer cancel()
	id, err := sess.SendImage(sendCtx, asset, ctx.String("caption"))
	if err != nil {
		return err
	}
	fmt.Println(id)
	return nil
}

type messagePrinter struct {
	self string
	json bool
}

type jsonMessage struct {
	ID         string     `json:"id"`
	Text       string     `json:"text"`
	AuthorName string     `json:"authorName"`
	AuthorID   string     `json:"authorId"`
	CreatedAt  *time.Time `json:"createdAt"`
	HasImage   bool       `json:"hasImage"`
}

func (p messagePrinter) print(m model.Message) {
	if p.json {
		out, _ := json.Marshal(jsonMessage{
			ID:         m.ID,
			Text:       m.Text,
			AuthorName: m.AuthorName,
			AuthorID:   m.AuthorID,
			CreatedAt:  m.CreatedAt,
			HasImage:   m.HasImage(),
		})
		fmt.Println(string(out))
		return
	}

	ts := "pending"
	if m.CreatedAt != nil {
		ts = m.CreatedAt.Local().Format("2006-01-02 15:04")
	}
	author := m.AuthorName
	if m.AuthorID == p.self {
		author += " (you)"
	}
	line := fmt.Sprintf("[%s] %s: %s", ts, author, m.Text)
	if m.HasImage() {
		line += fmt.Sprintf(" <image %s>", m.ID)
	}
	fmt.Println(line)
}
