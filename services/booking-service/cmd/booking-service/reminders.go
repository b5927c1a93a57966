package main

import (
	"context"
	"time"

	otelx "github.com/md-rashed-zaman/agendafacil/libs/otel"
	"github.com/md-rashed-zaman/agendafacil/libs/runtime"
	"github.com/md-rashed-zaman/agendafacil/services/booking-service/internal/reminders"
	"github.com/spf13/cobra"
)

func remindersCmd() *cobra.Command {
	var once bool
	cmd := &cobra.Command{
		Use:   "reminders",
		Short: "Send reminder notifications for upcoming confirmed appointments",
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := loadSettings()
			if err != nil {
				return err
			}
			logger := runtime.NewLogger(s.Service + "-reminders")

			ctx, stop := runtime.SignalContext()
			defer stop()

			otelShutdown, err := otelx.Setup(ctx, otelx.ConfigFromEnv(s.Service+"-reminders"))
			if err != nil {
				logger.Error("otel setup failed", "err", err)
			} else {
				defer func() {
					shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
					defer cancel()
					_ = otelShutdown(shutdownCtx)
				}()
			}

			d, err := buildDeps(ctx, s, logger)
			if err != nil {
				return err
			}
			defer d.Close()

			w := reminders.NewWorker(d.repo, d.catalog, d.dispatcher, logger, reminders.Config{
				Interval: s.ReminderEvery,
				Lead:     s.ReminderLead,
			})
			if once {
				sent, err := w.Sweep(ctx)
				logger.Info("reminder sweep done", "sent", sent)
				return err
			}
			logger.Info("reminder worker starting", "interval", s.ReminderEvery.String(), "lead", s.ReminderLead.String())
			w.Run(ctx)
			return nil
		},
	}
	cmd.Flags().BoolVar(&once, "once", false, "run a single sweep and exit")
	return cmd
}
