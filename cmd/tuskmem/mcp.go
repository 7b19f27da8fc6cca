package main

import (
	"github.com/sandevgo/tuskmem/internal/transport/mcp"
	"github.com/sandevgo/tuskmem/pkg/log"
	"github.com/spf13/cobra"
)

var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "Serve memories to MCP clients over stdio",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, flushLog := setupStderrLogger(cmd.Context())
		defer flushLog()

		a, err := newApp(ctx)
		if err != nil {
			return err
		}
		defer a.Close()

		log.FromCtx(ctx).Info().Msg("serving memories over stdio")
		return mcp.NewServer(a.memories).ServeStdio()
	},
}

func init() {
	rootCmd.AddCommand(mcpCmd)
}
