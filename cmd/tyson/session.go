package main

import (
	"fmt"

	"github.com/harunnryd/tyson/internal/config"
	"github.com/harunnryd/tyson/internal/session"

	"github.com/spf13/cobra"
)

var sessionCmd = &cobra.Command{
	Use:   "session",
	Short: "Manage sessions",
	Long:  `List, inspect, and clear persisted conversation sessions.`,
}

var sessionLsCmd = &cobra.Command{
	Use:   "ls",
	Short: "List sessions",
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := openStore()
		if err != nil {
			return err
		}
		defer store.Close()

		sessions := store.ListSessions()
		if len(sessions) == 0 {
			fmt.Println("No sessions found.")
			fmt.Println("\nRun 'tyson run' to create your first session.")
			return nil
		}

		fmt.Println(formatSessions(sessions))
		fmt.Printf("\nTotal: %d session(s)\n", len(sessions))
		return nil
	},
}

var sessionShowCmd = &cobra.Command{
	Use:   "show [id]",
	Short: "Show a session's conversation",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := openStore()
		if err != nil {
			return err
		}
		defer store.Close()

		tr, err := store.LoadTranscript(args[0])
		if err != nil {
			return err
		}

		fmt.Println(formatHistory(tr.Snapshot()))
		return nil
	},
}

var sessionClearCmd = &cobra.Command{
	Use:   "clear [id]",
	Short: "Clear a session's conversation",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := openStore()
		if err != nil {
			return err
		}
		defer store.Close()

		if err := store.ResetSession(args[0]); err != nil {
			return err
		}
		fmt.Printf("✓ Session '%s' cleared.\n", args[0])
		return nil
	},
}

var sessionRmCmd = &cobra.Command{
	Use:   "rm [id]",
	Short: "Delete a session entirely",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := openStore()
		if err != nil {
			return err
		}
		defer store.Close()

		if err := store.DeleteSession(args[0]); err != nil {
			return err
		}
		fmt.Printf("✓ Session '%s' deleted.\n", args[0])
		return nil
	},
}

func openStore() (*session.Store, error) {
	lockTimeout, _ := config.DurationOrDefault(cfg.Store.LockTimeout, config.DefaultStoreLockTimeout)
	lockRetry, _ := config.DurationOrDefault(cfg.Store.LockRetry, config.DefaultStoreLockRetry)
	return session.NewStore(cfg.Store.PathOrDefault(), &session.FileLockConfig{
		Timeout:  lockTimeout,
		Retry:    lockRetry,
		MaxRetry: cfg.Store.LockMaxRetry,
	})
}

func init() {
	sessionCmd.AddCommand(sessionLsCmd)
	sessionCmd.AddCommand(sessionShowCmd)
	sessionCmd.AddCommand(sessionClearCmd)
	sessionCmd.AddCommand(sessionRmCmd)
	rootCmd.AddCommand(sessionCmd)
}
