package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/urfave/cli/v2"

	"github.com/matheus3301/chatroom/internal/media"
	"github.com/matheus3301/chatroom/internal/profile"
)

var statsCommand = &cli.Command{
	Name:   "stats",
	Usage:  "Show the local cache size and last sync time",
	Action: cmdStats,
}

var imageCommand = &cli.Command{
	Name:      "image",
	Usage:     "Export a cached message's image to a file",
	ArgsUsage: "MESSAGE_ID",
	Flags: []cli.Flag{
		&cli.StringFlag{Name: "out", Aliases: []string{"o"}, Usage: "Output file (defaults to the profile's media directory)"},
	},
	Action: cmdImage,
}

func cmdStats(ctx *cli.Context) error {
	client := getClient(ctx)
	st := client.Cache.Stats(ctx.Context)
	fmt.Printf("Profile:   %s\n", client.Profile)
	fmt.Printf("Messages:  %d\n", st.MessageCount)
	if st.LastSync.IsZero() {
		fmt.Println("Last sync: never")
	} else {
		fmt.Printf("Last sync: %s\n", st.LastSync.Local().Format("2006-01-02 15:04:05"))
	}
	return nil
}

func cmdImage(ctx *cli.Context) error {
	if ctx.NArg() == 0 {
		return fmt.Errorf("you must specify a message id")
	}
	id := ctx.Args().Get(0)
	client := getClient(ctx)

	if path, ok := client.Cache.CachedImageURL(ctx.Context, id); ok && ctx.String("out") == "" {
		if _, err := os.Stat(path); err == nil {
			fmt.Println(path)
			return nil
		}
		client.Cache.ClearImageURL(ctx.Context, id)
	}

	for _, m := range client.Cache.Load(ctx.Context) {
		if m.ID != id {
			continue
		}
		if !m.HasImage() {
			return fmt.Errorf("message %s has no image", id)
		}
		mime, data, err := media.Decode(m.ImageData)
		if err != nil {
			return fmt.Errorf("decode image: %w", err)
		}

		out := ctx.String("out")
		if out == "" {
			out = filepath.Join(profile.MediaDir(client.Profile), id+media.Extension(mime))
		}
		if err := os.MkdirAll(filepath.Dir(out), 0700); err != nil {
			return fmt.Errorf("create media dir: %w", err)
		}
		if err := os.WriteFile(out, data, 0600); err != nil {
			return fmt.Errorf("write image: %w", err)
		}
		client.Cache.CacheImageURL(ctx.Context, id, out)
		fmt.Println(out)
		return nil
	}
	return fmt.Errorf("message %s is not in the local cache", id)
}
