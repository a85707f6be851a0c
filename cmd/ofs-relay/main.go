package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"ofs-bridge/internal/api"
	"ofs-bridge/internal/config"
	"ofs-bridge/internal/relay"
	"ofs-bridge/internal/repo"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	v := config.New()
	var cfgFile string
	cmd := &cobra.Command{
		Use:           "ofs-relay",
		Short:         "Relay console HTTP requests to an OFS server over TCP",
		SilenceUsage:  true,
		SilenceErrors: false,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load(v, cfgFile)
			if err != nil {
				return err
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return run(ctx, cfg)
		},
	}

	f := cmd.Flags()
	f.StringVar(&cfgFile, "config", "", "config file (default ./ofs.yaml or ~/.config/ofs/ofs.yaml)")
	f.String("listen", ":4000", "HTTP listen address")
	f.String("remote", "127.0.0.1:8080", "OFS server host:port")
	f.String("route", "/send", "HTTP route accepting commands")
	f.Int64("max-payload", 50<<20, "largest accepted request body in bytes")
	f.Duration("dial-timeout", 5*time.Second, "TCP connect timeout")
	f.Duration("response-timeout", 60*time.Second, "time allowed for the OFS reply (0 = none)")
	f.String("journal", "", "SQLite file recording every exchange (empty = off)")
	f.String("web-root", "", "directory served under /ui")
	f.String("gin-mode", "release", "gin mode: debug, release or test")

	for key, name := range map[string]string{
		"relay.listen":           "listen",
		"relay.remote_addr":      "remote",
		"relay.route":            "route",
		"relay.max_payload":      "max-payload",
		"relay.dial_timeout":     "dial-timeout",
		"relay.response_timeout": "response-timeout",
		"relay.web_root":         "web-root",
		"journal.path":           "journal",
		"gin.mode":               "gin-mode",
	} {
		if err := v.BindPFlag(key, f.Lookup(name)); err != nil {
			panic(err)
		}
	}
	return cmd
}

func run(ctx context.Context, cfg *config.Config) error {
	var (
		rec  relay.Recorder
		hist api.History
	)
	if cfg.Journal.Path != "" {
		log.Printf("Opening exchange journal at %s...", cfg.Journal.Path)
		r, err := repo.NewSQLiteRepo(cfg.Journal.Path)
		if err != nil {
			return err
		}
		defer r.Close()
		rec, hist = r, r
	}

	rl := relay.New(cfg.Relay.RemoteAddr,
		relay.WithDialTimeout(cfg.Relay.DialTimeout),
		relay.WithResponseTimeout(cfg.Relay.ResponseTimeout),
		relay.WithMaxResponse(cfg.Relay.MaxResponse),
	)
	h := api.NewHandler(relay.NewBridge(rl, rec), hist, &cfg.Relay)
	srv := &http.Server{
		Addr:              cfg.Relay.Listen,
		Handler:           api.NewEngine(h, cfg.Gin.Mode),
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Printf("Relay listening on %s, forwarding %s to %s", cfg.Relay.Listen, cfg.Relay.Route, cfg.Relay.RemoteAddr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		log.Printf("Shutting down relay...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})
	return g.Wait()
}
