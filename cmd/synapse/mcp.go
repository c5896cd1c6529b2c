package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

func buildMcpCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "mcp",
		Short: "Inspect configured MCP tool servers",
	}
	cmd.AddCommand(buildMcpListToolsCmd())
	return cmd
}

func buildMcpListToolsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list-tools",
		Short: "List every tool discovered across configured MCP servers",
		RunE: func(cmd *cobra.Command, args []string) error {
			configPath, _ := cmd.Flags().GetString("config")
			return runMcpListTools(cmd.Context(), configPath)
		},
	}
}

func runMcpListTools(ctx context.Context, configPath string) error {
	rt, err := buildRuntime(ctx, configPath, "text")
	if err != nil {
		return err
	}
	defer rt.shutdown()

	defs := rt.mcpClient.ToolDefinitions()
	if len(defs) == 0 {
		fmt.Println("No tools discovered.")
		return nil
	}
	for _, d := range defs {
		fmt.Printf("%-24s  %s\n", d.Name, d.Description)
	}
	return nil
}
