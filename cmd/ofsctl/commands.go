package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"ofs-bridge/internal/app"
	"ofs-bridge/internal/command"
	"ofs-bridge/internal/model"
	"ofs-bridge/internal/session"
)

func (e *env) ctx(cmd *cobra.Command) (context.Context, context.CancelFunc) {
	if t := e.cfg.Client.Timeout; t > 0 {
		return context.WithTimeout(cmd.Context(), t)
	}
	return context.WithCancel(cmd.Context())
}

func (e *env) report(o app.Outcome) error {
	printOutcome(e.out, o, e.quiet)
	if o.Kind == app.KindResponse && o.Response.OK() {
		return nil
	}
	return errFailed
}

func (e *env) send(cmd *cobra.Command, c model.Command) (app.Outcome, error) {
	ctx, cancel := e.ctx(cmd)
	defer cancel()
	o := e.svc.Do(ctx, c)
	return o, e.report(o)
}

func newSimpleCmd(e *env, name, short string, build func(*command.Builder, *session.Session) model.Command) *cobra.Command {
	return &cobra.Command{
		Use:   name,
		Short: short,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			_, err := e.send(cmd, build(e.svc.Builder, e.svc.Session))
			return err
		},
	}
}

func newLoginCmd(e *env) *cobra.Command {
	var password string
	cmd := &cobra.Command{
		Use:   "login <username>",
		Short: "Log in and print the session token",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if !cmd.Flags().Changed("password") {
				p, err := readPassword(cmd.InOrStdin(), cmd.ErrOrStderr())
				if err != nil {
					return err
				}
				password = p
			}
			if _, err := e.send(cmd, e.svc.Builder.Login(args[0], password)); err != nil {
				return err
			}
			if tok := e.svc.Session.Token(); tok != "" && !e.quiet {
				fmt.Fprintf(e.out, "session: %s\n", styles.id.Render(tok))
			}
			return nil
		},
	}
	cmd.Flags().StringVarP(&password, "password", "p", "", "password (prompted when omitted)")
	return cmd
}

// readPassword prompts without echo on a terminal and reads one line otherwise.
func readPassword(in io.Reader, prompt io.Writer) (string, error) {
	if f, ok := in.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		fmt.Fprint(prompt, "Password: ")
		b, err := term.ReadPassword(int(f.Fd()))
		fmt.Fprintln(prompt)
		if err != nil {
			return "", fmt.Errorf("reading password: %w", err)
		}
		return string(b), nil
	}
	line, err := bufio.NewReader(in).ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return "", fmt.Errorf("reading password: %w", err)
	}
	return strings.TrimRight(line, "\r\n"), nil
}

func newDirCmd(e *env) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "dir",
		Short: "Directory commands",
	}
	type dirOp struct {
		name, short string
		build       func(*command.Builder, *session.Session, string) model.Command
	}
	ops := []dirOp{
		{"create", "Create a directory", func(b *command.Builder, s *session.Session, p string) model.Command { return b.DirCreate(s, p) }},
		{"list", "List a directory", func(b *command.Builder, s *session.Session, p string) model.Command { return b.DirList(s, p) }},
		{"delete", "Delete an empty directory", func(b *command.Builder, s *session.Session, p string) model.Command { return b.DirDelete(s, p) }},
		{"exists", "Check whether a directory exists", func(b *command.Builder, s *session.Session, p string) model.Command { return b.DirExists(s, p) }},
	}
	for _, op := range ops {
		cmd.AddCommand(&cobra.Command{
			Use:   op.name + " [path]",
			Short: op.short + " (default /)",
			Args:  cobra.MaximumNArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				path := ""
				if len(args) == 1 {
					path = args[0]
				}
				_, err := e.send(cmd, op.build(e.svc.Builder, e.svc.Session, path))
				return err
			},
		})
	}
	return cmd
}

func newFileCmd(e *env) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "file",
		Short: "File commands",
	}
	cmd.AddCommand(
		newFileCreateCmd(e),
		newFileReadCmd(e),
		&cobra.Command{
			Use:   "delete <path>",
			Short: "Delete a file",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				_, err := e.send(cmd, e.svc.Builder.FileDelete(e.svc.Session, args[0]))
				return err
			},
		},
		&cobra.Command{
			Use:   "rename <old> <new>",
			Short: "Rename a file",
			Args:  cobra.ExactArgs(2),
			RunE: func(cmd *cobra.Command, args []string) error {
				_, err := e.send(cmd, e.svc.Builder.FileRename(e.svc.Session, args[0], args[1]))
				return err
			},
		},
		newFileEditCmd(e),
		&cobra.Command{
			Use:   "truncate <path>",
			Short: "Truncate a file to zero length",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				_, err := e.send(cmd, e.svc.Builder.FileTruncate(e.svc.Session, args[0]))
				return err
			},
		},
	)
	return cmd
}

func newFileCreateCmd(e *env) *cobra.Command {
	var text, from string
	cmd := &cobra.Command{
		Use:   "create <path>",
		Short: "Create a file from --text or a local file (--from)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var c model.Command
			if from != "" {
				fc, err := e.svc.Builder.FileCreateFile(e.svc.Session, args[0], from)
				if err != nil {
					return err
				}
				c = fc
			} else {
				c = e.svc.Builder.FileCreateText(e.svc.Session, args[0], text)
			}
			_, err := e.send(cmd, c)
			return err
		},
	}
	cmd.Flags().StringVar(&text, "text", "", "file content")
	cmd.Flags().StringVar(&from, "from", "", "local file to upload")
	cmd.MarkFlagsMutuallyExclusive("text", "from")
	return cmd
}

func newFileReadCmd(e *env) *cobra.Command {
	var out string
	cmd := &cobra.Command{
		Use:   "read <path>",
		Short: "Read a file; text is printed, --out saves the bytes locally",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			o, err := e.send(cmd, e.svc.Builder.FileRead(e.svc.Session, args[0]))
			if err != nil || out == "" {
				return err
			}
			var d model.FileReadData
			if err := o.Response.DecodeData(&d); err != nil {
				return err
			}
			n, err := e.svc.Builder.Files.WriteDecoded(out, d.DataBase64)
			if err != nil {
				return err
			}
			if !e.quiet {
				fmt.Fprintf(e.out, "wrote %d bytes to %s\n", n, out)
			}
			return nil
		},
	}
	cmd.Flags().StringVarP(&out, "out", "o", "", "write the content to this local file")
	return cmd
}

func newFileEditCmd(e *env) *cobra.Command {
	var (
		text  string
		index int64
	)
	cmd := &cobra.Command{
		Use:   "edit <path>",
		Short: "Write --text into a file at byte --index",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			_, err := e.send(cmd, e.svc.Builder.FileEdit(e.svc.Session, args[0], index, text))
			return err
		},
	}
	cmd.Flags().StringVar(&text, "text", "", "content to write")
	cmd.Flags().Int64Var(&index, "index", 0, "byte offset")
	return cmd
}

func newRawCmd(e *env) *cobra.Command {
	return &cobra.Command{
		Use:   "raw <json|->",
		Short: "Send a hand-written JSON command (- reads it from stdin)",
		Long: "Send a hand-written JSON object. A missing request_id is generated, a missing cmd\n" +
			"is taken from \"operation\", and the current session is attached when session_id is absent.",
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			text := args[0]
			if text == "-" {
				b, err := io.ReadAll(cmd.InOrStdin())
				if err != nil {
					return err
				}
				text = string(b)
			}
			ctx, cancel := e.ctx(cmd)
			defer cancel()
			return e.report(e.svc.Raw(ctx, text))
		},
	}
}

func newHistoryCmd(e *env) *cobra.Command {
	var (
		limit  int
		remote bool
	)
	cmd := &cobra.Command{
		Use:   "history",
		Short: "Show past exchanges, most recent first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, cancel := e.ctx(cmd)
			defer cancel()

			var (
				rows []model.Exchange
				err  error
			)
			switch {
			case remote:
				rows, err = e.client.Exchanges(ctx, limit)
			case e.history != nil:
				rows, err = e.history.RecentExchanges(ctx, limit)
			default:
				return errors.New("no history: set --history or client.history, or use --remote")
			}
			if err != nil {
				return err
			}
			for _, x := range rows {
				printExchange(e.out, x)
			}
			return nil
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "number of entries")
	cmd.Flags().BoolVar(&remote, "remote", false, "read the relay's journal instead of the local history")
	return cmd
}
