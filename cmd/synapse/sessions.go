package main

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
)

func buildSessionsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sessions",
		Short: "Inspect and manage stored sessions",
	}
	cmd.AddCommand(buildSessionsListCmd(), buildSessionsShowCmd(), buildSessionsDeleteCmd())
	return cmd
}

func buildSessionsListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List every stored session",
		RunE: func(cmd *cobra.Command, args []string) error {
			configPath, _ := cmd.Flags().GetString("config")
			return runSessionsList(cmd.Context(), configPath)
		},
	}
}

func runSessionsList(ctx context.Context, configPath string) error {
	rt, err := buildRuntime(ctx, configPath, "text")
	if err != nil {
		return err
	}
	defer rt.shutdown()

	summaries, storeErr := rt.store.ListSessions(ctx)
	if storeErr != nil {
		return storeErr
	}
	for _, s := range summaries {
		name := ""
		if s.Name != nil {
			name = *s.Name
		}
		preview := ""
		if s.Preview != nil {
			preview = *s.Preview
		}
		fmt.Printf("%s  %-20s  %s/%s  %d msgs  updated %s\n  %s\n",
			s.ID, name, s.Provider, s.Model, s.MessageCount, s.UpdatedAt.Format("2006-01-02 15:04"), preview)
	}
	return nil
}

func buildSessionsShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show <session-id>",
		Short: "Show every message in a session",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			configPath, _ := cmd.Flags().GetString("config")
			return runSessionsShow(cmd.Context(), configPath, args[0])
		},
	}
}

func runSessionsShow(ctx context.Context, configPath, idArg string) error {
	id, err := uuid.Parse(idArg)
	if err != nil {
		return fmt.Errorf("invalid session ID: %w", err)
	}

	rt, err := buildRuntime(ctx, configPath, "text")
	if err != nil {
		return err
	}
	defer rt.shutdown()

	messages, storeErr := rt.store.GetMessages(ctx, id)
	if storeErr != nil {
		return storeErr
	}
	for _, m := range messages {
		fmt.Printf("[%s] %s: %s\n", m.Timestamp.Format("15:04:05"), m.Role, m.Content)
	}
	return nil
}

func buildSessionsDeleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete <session-id>",
		Short: "Delete a session and its messages",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			configPath, _ := cmd.Flags().GetString("config")
			return runSessionsDelete(cmd.Context(), configPath, args[0])
		},
	}
}

func runSessionsDelete(ctx context.Context, configPath, idArg string) error {
	id, err := uuid.Parse(idArg)
	if err != nil {
		return fmt.Errorf("invalid session ID: %w", err)
	}

	rt, err := buildRuntime(ctx, configPath, "text")
	if err != nil {
		return err
	}
	defer rt.shutdown()

	deleted, storeErr := rt.store.DeleteSession(ctx, id)
	if storeErr != nil {
		return storeErr
	}
	if !deleted {
		return fmt.Errorf("no session found with ID %s", id)
	}
	fmt.Printf("Deleted session %s\n", id)
	return nil
}
