package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/ahmadsadek12/convoyd/internal/config"
	"github.com/ahmadsadek12/convoyd/internal/logging"
)

func newWorkerCmd() *cobra.Command {
	var once bool

	cmd := &cobra.Command{
		Use:   "worker",
		Short: "Run the background schedulers (scheduled-request completer, archive worker) without the HTTP surface",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			a, err := newApp(ctx, cfg)
			if err != nil {
				return err
			}
			defer a.close()

			if once {
				if err := a.schedulerSvc.RunCompleterNow(ctx); err != nil {
					return err
				}
				return a.schedulerSvc.RunArchiveNow(ctx)
			}

			a.schedulerSvc.Start()
			logging.Logger().Info("scheduler running")
			<-ctx.Done()

			shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			return a.schedulerSvc.Stop(shutdownCtx)
		},
	}

	cmd.Flags().BoolVar(&once, "once", false, "run the completer and archive worker once, then exit")
	return cmd
}
