package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"sync"

	"github.com/spf13/cobra"

	"ofs-bridge/internal/app"
	"ofs-bridge/internal/command"
	"ofs-bridge/internal/model"
	"ofs-bridge/internal/session"
)

const shellHelp = `commands run in the background; replies print as they arrive
  login <user> <password>    logout    whoami    stats    ping    exit
  dir create|list|delete|exists [path]
  file create <path> <text...>      file upload <path> <local file>
  file read <path>                  file delete <path>
  file rename <old> <new>           file edit <path> <index> <text...>
  file truncate <path>
  raw <json>  (or any line starting with "{")
  pending    cancel <request_id>    log [n]    session    help    quit`

var errQuit = errors.New("quit")

func newShellCmd(e *env) *cobra.Command {
	return &cobra.Command{
		Use:   "shell",
		Short: "Interactive console keeping the session between commands",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			sh := &shell{svc: e.svc, out: e.out, quiet: e.quiet}
			return sh.run(cmd.Context(), cmd.InOrStdin())
		},
	}
}

type shell struct {
	svc   *app.Service
	out   io.Writer
	quiet bool

	mu sync.Mutex
	wg sync.WaitGroup
}

func (sh *shell) printf(format string, args ...any) {
	sh.mu.Lock()
	defer sh.mu.Unlock()
	fmt.Fprintf(sh.out, format, args...)
}

func (sh *shell) run(ctx context.Context, in io.Reader) error {
	sh.printf("%s\n", styles.muted.Render(`ofsctl shell, "help" lists commands`))
	sc := bufio.NewScanner(in)
	sc.Buffer(make([]byte, 0, 64*1024), 64<<20)
	for {
		sh.printf("%s ", styles.id.Render("ofs>"))
		if !sc.Scan() {
			break
		}
		if err := sh.exec(ctx, strings.TrimSpace(sc.Text())); err != nil {
			if errors.Is(err, errQuit) {
				break
			}
			sh.printf("%s\n", styles.err.Render(err.Error()))
		}
	}
	sh.wg.Wait()
	return sc.Err()
}

func (sh *shell) exec(ctx context.Context, line string) error {
	if line == "" {
		return nil
	}
	if strings.HasPrefix(line, "{") {
		line = "raw " + line
	}
	verb, rest, _ := strings.Cut(line, " ")
	rest = strings.TrimSpace(rest)

	switch verb {
	case "quit", "q":
		return errQuit
	case "help", "?":
		sh.printf("%s\n", shellHelp)
		return nil
	case "pending":
		for _, id := range sh.svc.Pending() {
			sh.printf("%s\n", id)
		}
		return nil
	case "cancel":
		if rest == "" {
			return errors.New("usage: cancel <request_id>")
		}
		if !sh.svc.Cancel(rest) {
			return fmt.Errorf("no pending request %s", rest)
		}
		return nil
	case "session":
		if tok := sh.svc.Session.Token(); tok != "" {
			sh.printf("%s\n", tok)
		} else {
			sh.printf("%s\n", styles.muted.Render("not logged in"))
		}
		return nil
	case "log":
		n := 10
		if rest != "" {
			v, err := strconv.Atoi(rest)
			if err != nil {
				return fmt.Errorf("log: %w", err)
			}
			n = v
		}
		for i, o := range sh.svc.Log.Entries() {
			if i >= n {
				break
			}
			sh.printf("%s\n", o.Summary())
		}
		return nil
	case "raw":
		sh.background(func() app.Outcome { return sh.svc.Raw(ctx, rest) })
		return nil
	}

	c, err := parseCommand(sh.svc.Builder, sh.svc.Session, verb, rest)
	if err != nil {
		return err
	}
	task := sh.svc.Start(ctx, c)
	sh.printf("%s\n", styles.muted.Render("sent "+task.ID))
	sh.background(task.Wait)
	return nil
}

func (sh *shell) background(wait func() app.Outcome) {
	sh.wg.Add(1)
	go func() {
		defer sh.wg.Done()
		o := wait()
		sh.mu.Lock()
		defer sh.mu.Unlock()
		fmt.Fprintln(sh.out)
		printOutcome(sh.out, o, sh.quiet)
	}()
}

// parseCommand builds a command from one shell line, split into its verb and
// the rest. Text arguments run to the end of the line.
func parseCommand(b *command.Builder, s *session.Session, verb, rest string) (model.Command, error) {
	args := strings.Fields(rest)
	arg := func(i int) string {
		if i < len(args) {
			return args[i]
		}
		return ""
	}
	tail := func(n int) string {
		// text after the first n words, spacing kept
		r := rest
		for i := 0; i < n; i++ {
			r = strings.TrimLeft(r, " \t")
			if j := strings.IndexAny(r, " \t"); j >= 0 {
				r = r[j:]
			} else {
				r = ""
			}
		}
		return strings.TrimLeft(r, " \t")
	}
	need := func(n int, usage string) error {
		if len(args) < n {
			return fmt.Errorf("usage: %s", usage)
		}
		return nil
	}

	switch verb {
	case "login":
		if err := need(2, "login <user> <password>"); err != nil {
			return nil, err
		}
		return b.Login(args[0], args[1]), nil
	case "logout":
		return b.Logout(s), nil
	case "whoami":
		return b.Whoami(s), nil
	case "stats":
		return b.Stats(s), nil
	case "ping":
		return b.Ping(s), nil
	case "exit":
		return b.Exit(s), nil
	case "dir":
		switch arg(0) {
		case "create":
			return b.DirCreate(s, arg(1)), nil
		case "list", "ls":
			return b.DirList(s, arg(1)), nil
		case "delete", "rm":
			return b.DirDelete(s, arg(1)), nil
		case "exists":
			return b.DirExists(s, arg(1)), nil
		}
		return nil, errors.New("usage: dir create|list|delete|exists [path]")
	case "file":
		switch arg(0) {
		case "create":
			if err := need(2, "file create <path> <text...>"); err != nil {
				return nil, err
			}
			return b.FileCreateText(s, args[1], tail(2)), nil
		case "upload":
			if err := need(3, "file upload <path> <local file>"); err != nil {
				return nil, err
			}
			c, err := b.FileCreateFile(s, args[1], tail(2))
			if err != nil {
				return nil, err
			}
			return c, nil
		case "read":
			if err := need(2, "file read <path>"); err != nil {
				return nil, err
			}
			return b.FileRead(s, args[1]), nil
		case "delete", "rm":
			if err := need(2, "file delete <path>"); err != nil {
				return nil, err
			}
			return b.FileDelete(s, args[1]), nil
		case "rename", "mv":
			if err := need(3, "file rename <old> <new>"); err != nil {
				return nil, err
			}
			return b.FileRename(s, args[1], args[2]), nil
		case "edit":
			if err := need(3, "file edit <path> <index> <text...>"); err != nil {
				return nil, err
			}
			idx, err := strconv.ParseInt(args[2], 10, 64)
			if err != nil {
				return nil, fmt.Errorf("file edit: index: %w", err)
			}
			return b.FileEdit(s, args[1], idx, tail(3)), nil
		case "truncate":
			if err := need(2, "file truncate <path>"); err != nil {
				return nil, err
			}
			return b.FileTruncate(s, args[1]), nil
		}
		return nil, errors.New("usage: file create|upload|read|delete|rename|edit|truncate ...")
	}
	return nil, fmt.Errorf("unknown command %q, try help", verb)
}
