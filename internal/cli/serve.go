package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"dailydigest/internal/bot"
	"dailydigest/internal/scheduler"
	"dailydigest/internal/tui"
)

func (a *app) tuiCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "tui",
		Short: "Launch the terminal UI (default)",
		Args:  cobra.NoArgs,
		RunE:  a.runTUI,
	}
}

func (a *app) runTUI(cmd *cobra.Command, args []string) error {
	if err := a.open(cmd, false); err != nil {
		return err
	}
	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()
	go a.repo.RunGC(ctx, a.cfg.GCInterval)

	a.log.Info("Starting terminal UI")
	return tui.Run(ctx, tui.Options{
		Client:       a.client,
		Tokens:       a.tokens,
		Log:          a.log,
		PollInterval: a.cfg.PollInterval,
		PollTimeout:  a.cfg.PollTimeout,
		Now:          a.now,
	})
}

func (a *app) botCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "bot",
		Short: "Run the Telegram bot with scheduled deliveries",
		Long: `Run the Telegram bot. Each chat logs in with its own account.
Subscribed chats receive the morning and evening digests at MORNING_HOUR and
EVENING_HOUR in DELIVERY_TIMEZONE.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := a.open(cmd, true); err != nil {
				return err
			}
			if err := a.cfg.RequireBotToken(); err != nil {
				return err
			}
			ctx := cmd.Context()
			log := a.log

			handler, err := bot.NewHandler(a.cfg, a.repo, log)
			if err != nil {
				return fmt.Errorf("initializing Telegram bot handler: %w", err)
			}

			loc, err := a.cfg.Location()
			if err != nil {
				return err
			}
			sched := scheduler.New(ctx, handler, loc, a.cfg.MorningHour, a.cfg.EveningHour, log)
			if err := sched.Start(); err != nil {
				return err
			}
			defer sched.Stop()

			go a.repo.RunGC(ctx, a.cfg.GCInterval)
			stopped := make(chan struct{})
			go func() {
				defer close(stopped)
				handler.Start(ctx)
			}()

			log.Info("Daily Digest bot is running. Press Ctrl+C to exit.")
			<-ctx.Done()

			log.Info("Shutting down Daily Digest bot...")
			<-stopped
			log.Info("Daily Digest bot shut down gracefully.")
			return nil
		},
	}
}
