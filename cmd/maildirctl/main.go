// Command maildirctl inspects and edits a collection of maildirs.
//
// The collection root and naming mode come from MAILDIR_* environment
// variables, optionally loaded from a .env file.
package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/urfave/cli/v2"

	"github.com/infodancer/maildirs/maildir"
)

const defaultEnvFile = ".env"

func main() {
	if err := newApp().Run(os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "maildirctl: %v\n", err)
		os.Exit(1)
	}
}

// collectionKey stores the opened collection in the app metadata.
const collectionKey = "collection"

func newApp() *cli.App {
	return &cli.App{
		Name:  "maildirctl",
		Usage: "manage a collection of maildirs",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "env-file",
				Value: defaultEnvFile,
				Usage: "read MAILDIR_* settings from this file first",
			},
		},
		Before: func(cctx *cli.Context) error {
			cfg, err := loadConfig(cctx.String("env-file"), cctx.IsSet("env-file"))
			if err != nil {
				return err
			}
			logger, err := cfg.logger()
			if err != nil {
				return err
			}
			slog.SetDefault(logger)

			opts, err := cfg.options()
			if err != nil {
				return err
			}
			if cctx.App.Metadata == nil {
				cctx.App.Metadata = make(map[string]interface{})
			}
			cctx.App.Metadata[collectionKey] = maildir.NewMaildirs(cfg.Root, opts...)
			slog.Debug("opened collection", slog.String("root", cfg.Root), slog.Bool("maildirpp", cfg.MaildirPP))
			return nil
		},
		Commands: []*cli.Command{
			{
				Name:      "init",
				Usage:     "create a mailbox",
				ArgsUsage: "<name>",
				Action:    initMailbox,
			},
			{
				Name:   "ls",
				Usage:  "list mailboxes with message counts",
				Action: listMailboxes,
			},
			{
				Name:      "deliver",
				Usage:     "deliver a message from a file or stdin",
				ArgsUsage: "<name> [file]",
				Flags: []cli.Flag{
					&cli.BoolFlag{Name: "cur", Usage: "write into cur instead of new"},
					&cli.StringFlag{Name: "flags", Usage: "flag letters for a cur delivery, e.g. PS"},
				},
				Action: deliver,
			},
			{
				Name:      "show",
				Usage:     "print a message",
				ArgsUsage: "<name> <id>",
				Flags: []cli.Flag{
					&cli.BoolFlag{Name: "headers", Usage: "print only the parsed header fields"},
				},
				Action: show,
			},
			{
				Name:      "flag",
				Usage:     "change the flags of a message",
				ArgsUsage: "<name> <id>",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "add", Usage: "flag letters to set"},
					&cli.StringFlag{Name: "remove", Usage: "flag letters to clear"},
					&cli.StringFlag{Name: "set", Usage: "replace all flags with these letters"},
				},
				Action: changeFlags,
			},
			{
				Name:      "mv",
				Usage:     "move a message between mailboxes",
				ArgsUsage: "<from> <to> <id>",
				Action:    move,
			},
			{
				Name:      "cp",
				Usage:     "copy a message between mailboxes",
				ArgsUsage: "<from> <to> <id>",
				Action:    copyMessage,
			},
			{
				Name:      "rm",
				Usage:     "remove a message, or the whole mailbox when no id is given",
				ArgsUsage: "<name> [id]",
				Action:    remove,
			},
			{
				Name:      "clean",
				Usage:     "remove stale files from tmp",
				ArgsUsage: "<name>",
				Flags: []cli.Flag{
					&cli.DurationFlag{Name: "max-age", Value: maildir.OrphanAge, Usage: "minimum age of removed files"},
				},
				Action: clean,
			},
		},
	}
}
