// Package cmd ...
package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/charmbracelet/huh"
	"github.com/google/uuid"
	"github.com/urfave/cli/v3"

	"github.com/peerchat/peerchat/blob"
	"github.com/peerchat/peerchat/chat"
	"github.com/peerchat/peerchat/conntrack"
	"github.com/peerchat/peerchat/logger"
	"github.com/peerchat/peerchat/ticket"
	"github.com/peerchat/peerchat/transfer"
	"github.com/peerchat/peerchat/transport"
	"github.com/peerchat/peerchat/ui"
)

const version = "0.1.0"

const defaultDownloadDir = "peerchat/downloads"

func New() *cli.Command {
	return &cli.Command{
		Name:    "peerchat",
		Usage:   "a p2p terminal chat with file sharing",
		Version: version,
		Action:  helpAction,
		Commands: []*cli.Command{
			createCommand(),
			joinCommand(),
		},
	}
}

func helpAction(ctx context.Context, cmd *cli.Command) error {
	return cli.ShowAppHelp(cmd)
}

func defaultFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:    "name",
			Aliases: []string{"n"},
			Usage:   "nickname shown to other peers",
		},
		&cli.StringFlag{
			Name:    "dir",
			Aliases: []string{"d"},
			Usage:   "directory for received files",
			Value:   downloadDir(),
		},
		&cli.StringFlag{
			Name:  "log",
			Usage: "log file path",
		},
	}
}

func createCommand() *cli.Command {
	return &cli.Command{
		Name:   "create",
		Usage:  "create a new room and print its ticket",
		Flags:  defaultFlags(),
		Action: createAction,
	}
}

func createAction(ctx context.Context, cmd *cli.Command) error {
	return run(ctx, cmd, ticket.New())
}

func joinCommand() *cli.Command {
	return &cli.Command{
		Name:      "join",
		Usage:     "join a room from a ticket",
		ArgsUsage: "<ticket>",
		Flags:     defaultFlags(),
		Action:    joinAction,
	}
}

func joinAction(ctx context.Context, cmd *cli.Command) error {
	arg := cmd.Args().First()
	if arg == "" {
		return cli.Exit("missing ticket argument", 1)
	}

	tk, err := ticket.Decode(arg)
	if err != nil {
		return cli.Exit(fmt.Sprintf("invalid ticket: %v", err), 1)
	}

	return run(ctx, cmd, tk)
}

func run(ctx context.Context, cmd *cli.Command, tk ticket.Ticket) error {
	logPath := cmd.String("log")
	if logPath == "" {
		var err error
		if logPath, err = logger.LogPath(); err != nil {
			return err
		}
	}
	log := logger.New(logPath)

	nickname, err := resolveNickname(cmd.String("name"))
	if err != nil {
		return err
	}

	node, err := transport.NewNode(ctx, log)
	if err != nil {
		return err
	}
	defer node.Close()

	topic, err := node.Join(ctx, tk.Topic, tk.Bootstrap)
	if err != nil {
		return err
	}
	defer topic.Close()

	store, err := blob.NewStore(node.Host, cmd.String("dir"), log)
	if err != nil {
		return err
	}

	tracker := conntrack.New()
	go node.WatchPaths(ctx, tracker)

	app := chat.NewApp(nickname, node.ID(), transfer.NewManager(store, log))
	app.Ticket("ticket: " + tk.WithBootstrap(node.Addrs()...).Encode())
	app.System("you are " + nickname)
	app.System("/share <path> to share a file, tab for transfers, esc to quit")

	kb, err := ui.NewKeyboard()
	if err != nil {
		return err
	}
	defer kb.Close()

	c := chat.NewCoordinator(chat.Config{
		App:      app,
		Topic:    topic,
		Keys:     kb.Events(),
		Tracker:  tracker,
		Importer: store,
		Render:   ui.Render,
		Log:      log,
	})

	log.Info().Str("peer", node.ID()).Str("nickname", nickname).Msg("session started")

	if err := c.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

// resolveNickname prompts when no --name was given, falling back to a
// generated one when the prompt is left empty or unavailable.
func resolveNickname(name string) (string, error) {
	if name != "" {
		return name, nil
	}

	form := huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Title("Pick a nickname").
				Value(&name),
		),
	)
	if err := form.Run(); err != nil {
		if errors.Is(err, huh.ErrUserAborted) {
			return "", err
		}
		name = ""
	}

	if name == "" {
		name = "anon-" + uuid.NewString()[:8]
	}
	return name, nil
}

func downloadDir() string {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		homeDir = "./"
	}
	return filepath.Join(homeDir, defaultDownloadDir)
}
