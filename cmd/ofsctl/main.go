package main

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"ofs-bridge/internal/app"
	"ofs-bridge/internal/command"
	"ofs-bridge/internal/config"
	"ofs-bridge/internal/infra/fs"
	"ofs-bridge/internal/model"
	"ofs-bridge/internal/relay"
	"ofs-bridge/internal/repo"
	"ofs-bridge/internal/session"
	"ofs-bridge/pkg/ofs"
)

// errFailed is returned after a failed outcome has already been printed.
var errFailed = errors.New("command failed")

type env struct {
	v       *viper.Viper
	cfgFile string
	direct  string
	quiet   bool

	cfg     *config.Config
	svc     *app.Service
	client  *ofs.Client
	history repo.Repository
	out     io.Writer
}

func main() {
	e := &env{v: config.New(), out: os.Stdout}
	root := newRootCmd(e)
	err := root.Execute()
	if e.history != nil {
		e.history.Close()
	}
	if err != nil {
		if !errors.Is(err, errFailed) {
			fmt.Fprintln(os.Stderr, styles.err.Render("error: "+err.Error()))
		}
		os.Exit(1)
	}
}

func newRootCmd(e *env) *cobra.Command {
	cmd := &cobra.Command{
		Use:           "ofsctl",
		Short:         "Operator console for an OFS server behind the relay",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return e.setup()
		},
	}

	pf := cmd.PersistentFlags()
	pf.StringVar(&e.cfgFile, "config", "", "config file (default ./ofs.yaml or ~/.config/ofs/ofs.yaml)")
	pf.StringVar(&e.direct, "direct", "", "talk TCP to this OFS host:port instead of going through the relay")
	pf.BoolVarP(&e.quiet, "quiet", "q", false, "print only the reply body")
	pf.String("relay", "http://localhost:4000/send", "relay URL")
	pf.String("session", "", "session token from a previous login (or OFS_CLIENT_SESSION)")
	pf.Duration("timeout", 0, "per-command timeout (0 = none)")
	pf.String("history", "", "SQLite file keeping the display log across runs")
	pf.String("base-dir", ".", "directory relative local paths are resolved against")
	for key, name := range map[string]string{
		"client.relay_url": "relay",
		"client.session":   "session",
		"client.timeout":   "timeout",
		"client.history":   "history",
		"client.base_dir":  "base-dir",
	} {
		if err := e.v.BindPFlag(key, pf.Lookup(name)); err != nil {
			panic(err)
		}
	}

	cmd.AddCommand(
		newLoginCmd(e),
		newSimpleCmd(e, "logout", "End the current session", func(b *command.Builder, s *session.Session) model.Command { return b.Logout(s) }),
		newSimpleCmd(e, "stats", "Show filesystem statistics", func(b *command.Builder, s *session.Session) model.Command { return b.Stats(s) }),
		newSimpleCmd(e, "whoami", "Show the session the server sees", func(b *command.Builder, s *session.Session) model.Command { return b.Whoami(s) }),
		newSimpleCmd(e, "ping", "Check that the OFS server answers", func(b *command.Builder, s *session.Session) model.Command { return b.Ping(s) }),
		newSimpleCmd(e, "exit", "Ask the server to close the connection", func(b *command.Builder, s *session.Session) model.Command { return b.Exit(s) }),
		newDirCmd(e),
		newFileCmd(e),
		newRawCmd(e),
		newHistoryCmd(e),
		newShellCmd(e),
	)
	return cmd
}

func (e *env) setup() error {
	cfg, err := config.Load(e.v, e.cfgFile)
	if err != nil {
		return err
	}
	e.cfg = cfg

	var sender app.Sender
	if e.direct != "" {
		rl := relay.New(e.direct,
			relay.WithDialTimeout(cfg.Relay.DialTimeout),
			relay.WithResponseTimeout(cfg.Relay.ResponseTimeout),
			relay.WithMaxResponse(cfg.Relay.MaxResponse),
		)
		sender = app.SenderFunc(rl.Forward)
	}
	e.client = ofs.NewClient(cfg.Client.RelayURL, cfg.Client.Timeout)
	if sender == nil {
		sender = e.client
	}

	var store app.Store
	if cfg.Client.History != "" {
		h, err := repo.NewSQLiteRepo(cfg.Client.History)
		if err != nil {
			return err
		}
		e.history = h
		store = h
	}

	b := command.NewBuilder(fs.NewFileReader(cfg.Client.BaseDir))
	e.svc = app.NewService(sender, b, session.New(cfg.Client.Session), app.NewLog(500, store))
	return nil
}
