package main

import (
	"context"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Start an interactive session",
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := buildComponents(cfg)
		if err != nil {
			return err
		}
		defer c.Close()

		ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		return newREPL(c).start(ctx)
	},
}

func init() {
	rootCmd.AddCommand(runCmd)
	runCmd.Flags().Bool("agent.stream", false, "stream responses as they arrive")
	runCmd.Flags().String("agent.system_prompt", "", "override the system prompt")
}
