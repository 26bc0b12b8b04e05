package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/stupiduntilnot/csast/internal/config"
	"github.com/stupiduntilnot/csast/internal/session"
	"github.com/stupiduntilnot/csast/internal/web"
)

func newServeCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the chat page and JSON API",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return a.serve(cmd.Context())
		},
	}
	cmd.Flags().String("listen", "", "listen address, overrides LISTEN_ADDR")
	_ = a.v.BindPFlag(config.KeyListenAddr, cmd.Flags().Lookup("listen"))
	return cmd
}

func (a *app) serve(ctx context.Context) error {
	cfg, rt, err := a.build("serve")
	if err != nil {
		return err
	}
	defer rt.Close()

	store := session.NewStore(cfg.SessionIdle)
	srv, err := web.New(web.Config{
		Chat:  rt.orch,
		Store: store,
		Log:   a.log,
		Title: appTitle,
	})
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return srv.Run(ctx, cfg.ListenAddr)
	})
	if cfg.SessionIdle > 0 {
		g.Go(func() error {
			sweepSessions(ctx, store.Sweep, min(cfg.SessionIdle, time.Minute), a.log)
			return nil
		})
	}
	return g.Wait()
}
