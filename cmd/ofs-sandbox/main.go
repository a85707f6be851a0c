package main

import (
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"ofs-bridge/pkg/ofs/mock"
)

func main() {
	var (
		addr     string
		user     string
		password string
		latency  time.Duration
		split    time.Duration
		silent   bool
	)
	cmd := &cobra.Command{
		Use:          "ofs-sandbox",
		Short:        "Run an in-memory OFS server for local development",
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			opts := []mock.Option{mock.WithUser(user, password)}
			if latency > 0 {
				opts = append(opts, mock.WithLatency(latency))
			}
			if split > 0 {
				opts = append(opts, mock.WithSplitWrites(split))
			}
			if silent {
				opts = append(opts, mock.WithSilence())
			}

			srv := mock.New(opts...)
			if err := srv.Start(addr); err != nil {
				return err
			}
			log.Printf("OFS sandbox listening on %s (user %s)", srv.Addr(), user)

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			<-ctx.Done()
			log.Printf("sandbox served %d connections, %d commands", srv.Accepted(), srv.Lines())
			return srv.Close()
		},
	}
	f := cmd.Flags()
	f.StringVar(&addr, "addr", "127.0.0.1:8080", "TCP listen address")
	f.StringVar(&user, "user", "admin", "login username")
	f.StringVar(&password, "password", "7861", "login password")
	f.DurationVar(&latency, "latency", 0, "delay before each reply")
	f.DurationVar(&split, "split", 0, "write each reply in two fragments this far apart")
	f.BoolVar(&silent, "silent", false, "read commands and never reply")

	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
