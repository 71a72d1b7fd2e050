package main

import (
	"fmt"
	"io"
	"os"

	"github.com/urfave/cli/v2"

	"github.com/infodancer/maildirs/maildir"
)

func collection(cctx *cli.Context) *maildir.Maildirs {
	return cctx.App.Metadata[collectionKey].(*maildir.Maildirs)
}

// args checks the positional argument count against the command's range.
func args(cctx *cli.Context, lo, hi int) ([]string, error) {
	a := cctx.Args().Slice()
	if len(a) < lo || len(a) > hi {
		return nil, fmt.Errorf("usage: %s %s", cctx.Command.FullName(), cctx.Command.ArgsUsage)
	}
	return a, nil
}

func initMailbox(cctx *cli.Context) error {
	a, err := args(cctx, 1, 1)
	if err != nil {
		return err
	}
	m, err := collection(cctx).Create(a[0])
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(cctx.App.Writer, m.Path())
	return err
}

func listMailboxes(cctx *cli.Context) error {
	for f, err := range collection(cctx).All() {
		if err != nil {
			return err
		}
		n, err := f.Maildir.CountNew()
		if err != nil {
			return err
		}
		c, err := f.Maildir.CountCur()
		if err != nil {
			return err
		}
		name := f.Name
		if name == "" {
			name = "."
		}
		fmt.Fprintf(cctx.App.Writer, "%s\t%d new\t%d cur\t%s\n", name, n, c, f.Maildir.Path())
	}
	return nil
}

func deliver(cctx *cli.Context) error {
	a, err := args(cctx, 1, 2)
	if err != nil {
		return err
	}
	m, err := collection(cctx).Get(a[0])
	if err != nil {
		return err
	}

	var r io.Reader = cctx.App.Reader
	if r == nil {
		r = os.Stdin
	}
	if len(a) == 2 {
		f, err := os.Open(a[1])
		if err != nil {
			return err
		}
		defer func() { _ = f.Close() }()
		r = f
	}

	flags := maildir.ParseFlagSet(cctx.String("flags"))
	if flags != 0 && !cctx.Bool("cur") {
		return fmt.Errorf("--flags requires --cur")
	}
	e, err := m.Deliver(r, cctx.Bool("cur"), flags)
	if err != nil {
		return err
	}
	id, err := e.ID()
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(cctx.App.Writer, id)
	return err
}

// message resolves the "<name> <id>" arguments shared by several commands.
func message(cctx *cli.Context) (*maildir.Entry, error) {
	a, err := args(cctx, 2, 2)
	if err != nil {
		return nil, err
	}
	m, err := collection(cctx).Get(a[0])
	if err != nil {
		return nil, err
	}
	return m.Get(a[1])
}

func show(cctx *cli.Context) error {
	e, err := message(cctx)
	if err != nil {
		return err
	}
	if cctx.Bool("headers") {
		h, err := e.Header()
		if err != nil {
			return err
		}
		fields := h.Fields()
		for fields.Next() {
			fmt.Fprintf(cctx.App.Writer, "%s: %s\n", fields.Key(), fields.Value())
		}
		return nil
	}
	f, err := e.Open()
	if err != nil {
		return err
	}
	defer func() { _ = f.Close() }()
	_, err = io.Copy(cctx.App.Writer, f)
	return err
}

func changeFlags(cctx *cli.Context) error {
	given := 0
	for _, name := range []string{"add", "remove", "set"} {
		if cctx.IsSet(name) {
			given++
		}
	}
	if given > 1 {
		return fmt.Errorf("usage: %s: only one of --add, --remove or --set may be given", cctx.Command.FullName())
	}
	e, err := message(cctx)
	if err != nil {
		return err
	}
	switch {
	case cctx.IsSet("set"):
		err = e.UpdateFlags(maildir.ParseFlagSet(cctx.String("set")))
	case cctx.IsSet("add"):
		err = e.InsertFlags(maildir.ParseFlagSet(cctx.String("add")))
	case cctx.IsSet("remove"):
		err = e.RemoveFlags(maildir.ParseFlagSet(cctx.String("remove")))
	default:
		return fmt.Errorf("one of --add, --remove or --set is required")
	}
	if err != nil {
		return err
	}
	flags, err := e.Flags()
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(cctx.App.Writer, flags)
	return err
}

// transfer resolves "<from> <to> <id>" for mv and cp.
func transfer(cctx *cli.Context) (src, dst *maildir.Maildir, id string, err error) {
	a, err := args(cctx, 3, 3)
	if err != nil {
		return nil, nil, "", err
	}
	c := collection(cctx)
	if src, err = c.Get(a[0]); err != nil {
		return nil, nil, "", err
	}
	if dst, err = c.Get(a[1]); err != nil {
		return nil, nil, "", err
	}
	return src, dst, a[2], nil
}

func move(cctx *cli.Context) error {
	src, dst, id, err := transfer(cctx)
	if err != nil {
		return err
	}
	e, err := src.MoveTo(id, dst)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(cctx.App.Writer, e.Path())
	return err
}

func copyMessage(cctx *cli.Context) error {
	src, dst, id, err := transfer(cctx)
	if err != nil {
		return err
	}
	e, err := src.CopyTo(id, dst)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(cctx.App.Writer, e.Path())
	return err
}

func remove(cctx *cli.Context) error {
	a, err := args(cctx, 1, 2)
	if err != nil {
		return err
	}
	c := collection(cctx)
	if len(a) == 1 {
		return c.Remove(a[0])
	}
	m, err := c.Get(a[0])
	if err != nil {
		return err
	}
	return m.Delete(a[1])
}

func clean(cctx *cli.Context) error {
	a, err := args(cctx, 1, 1)
	if err != nil {
		return err
	}
	m, err := collection(cctx).Get(a[0])
	if err != nil {
		return err
	}
	n, err := m.CleanTmp(cctx.Duration("max-age"))
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(cctx.App.Writer, "removed %d\n", n)
	return err
}
