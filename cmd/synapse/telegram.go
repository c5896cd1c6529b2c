package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/robfig/cron/v3"
	"github.com/spf13/cobra"

	"github.com/synapse-run/synapse/internal/channels/telegram"
	"github.com/synapse-run/synapse/internal/storage"
)

func buildTelegramCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "telegram",
		Short: "Run the Telegram bot frontend until interrupted",
		RunE: func(cmd *cobra.Command, args []string) error {
			configPath, _ := cmd.Flags().GetString("config")
			return runTelegram(cmd.Context(), configPath)
		},
	}
	return cmd
}

func runTelegram(ctx context.Context, configPath string) error {
	rt, err := buildRuntime(ctx, configPath, "json")
	if err != nil {
		return err
	}
	defer rt.shutdown()

	if rt.cfg.Telegram.Token == "" {
		return fmt.Errorf("telegram bot token not configured (set telegram.token or TELEGRAM_BOT_TOKEN)")
	}
	if len(rt.cfg.Telegram.AllowedUsers) == 0 {
		return fmt.Errorf("telegram.allowed_users is empty: no user would be authorized to use this bot")
	}

	bot, err := telegram.New(
		rt.cfg.Telegram.Token,
		rt.cfg.Telegram.AllowedUsers,
		rt.agent,
		rt.store,
		rt.cfg.Provider,
		rt.cfg.Model,
		nil,
	)
	if err != nil {
		return fmt.Errorf("constructing telegram bot: %w", err)
	}

	runCtx, cancel := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if rt.cfg.Session.AutoCleanup != nil && *rt.cfg.Session.AutoCleanup {
		scheduler := cron.New()
		if _, err := scheduler.AddFunc("@daily", func() { runScheduledCleanup(runCtx, rt) }); err != nil {
			return fmt.Errorf("scheduling daily cleanup: %w", err)
		}
		scheduler.Start()
		defer scheduler.Stop()
	}

	fmt.Fprintln(os.Stderr, "telegram bot running, press Ctrl+C to stop")
	bot.Start(runCtx)
	return nil
}

func runScheduledCleanup(ctx context.Context, rt *runtime) {
	result, err := rt.store.Cleanup(ctx, storage.CleanupConfig{
		MaxSessions:   rt.cfg.Session.MaxSessions,
		RetentionDays: rt.cfg.Session.RetentionDays,
	})
	if err != nil {
		fmt.Fprintln(os.Stderr, "scheduled cleanup failed:", err)
		return
	}
	if result.SessionsDeleted > 0 {
		fmt.Fprintf(os.Stderr, "scheduled cleanup removed %d sessions (%d by retention, %d by max limit)\n",
			result.SessionsDeleted, result.ByRetention, result.ByMaxLimit)
	}
}
