package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/aperoland/aperoland-chat/config"
	"github.com/aperoland/aperoland-chat/globals"
	"github.com/aperoland/aperoland-chat/persistence"
	"github.com/aperoland/aperoland-chat/types"
	"github.com/hashicorp/go-hclog"
	"github.com/spf13/cobra"
)

// A very simple CLI tool for inspecting and pruning the stored chat history of aperoland-chat rooms.

func main() {
	var (
		configPath string
		gateway    persistence.Gateway
	)

	var rootCmd = &cobra.Command{
		Use:           "aperoland-chat-admin",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.ReadConfiguration(configPath, cmd.Flags())
			if err != nil {
				return err
			}
			globals.AppLogger.SetLevel(hclog.LevelFromString(cfg.LogLevel))
			gateway, err = persistence.NewGateway(cfg)
			return err
		},
		PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
			if gateway == nil {
				return nil
			}
			return gateway.Close()
		},
	}
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "path to config file or directory")
	rootCmd.PersistentFlags().String("log-level", "WARN", "log level (TRACE, DEBUG, INFO, WARN, ERROR)")

	var limit int
	var cmdHistory = &cobra.Command{
		Use:   "history [room id]",
		Short: "Show history",
		Long:  `history prints the stored chat messages of the room with the given id, newest first.`,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			msgs, err := gateway.Query(cmd.Context(), args[0], limit)
			if err != nil {
				return fmt.Errorf("could not get history: %w", err)
			}
			return printMessages(msgs)
		},
	}
	cmdHistory.Flags().IntVarP(&limit, "limit", "n", 0, "maximum number of messages (0 for all)")

	var cmdDelete = &cobra.Command{
		Use:   "delete [room id]",
		Short: "Delete history",
		Long:  `delete removes all stored chat messages of the room with the given id.`,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			n, err := gateway.DeleteRoom(cmd.Context(), args[0])
			if err != nil {
				return fmt.Errorf("could not delete room: %w", err)
			}
			fmt.Printf("deleted %d messages\n", n)
			return nil
		},
	}

	var before string
	var cmdPurge = &cobra.Command{
		Use:   "purge",
		Short: "Purge old messages",
		Long: `purge removes the chat messages of all rooms received before the given instant. --before takes a date
(2006-01-02), an RFC 3339 timestamp or a duration relative to now (f.e. 720h).`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			t, err := parseBefore(before, time.Now())
			if err != nil {
				return err
			}
			n, err := gateway.Purge(cmd.Context(), t)
			if err != nil {
				return fmt.Errorf("could not purge messages: %w", err)
			}
			fmt.Printf("purged %d messages received before %s\n", n, t.Format(time.RFC3339))
			return nil
		},
	}
	cmdPurge.Flags().StringVar(&before, "before", "", "purge messages received before this date, timestamp or age")
	_ = cmdPurge.MarkFlagRequired("before")

	rootCmd.AddCommand(cmdHistory, cmdDelete, cmdPurge)
	if err := rootCmd.ExecuteContext(context.Background()); err != nil {
		globals.AppLogger.Error("command failed", "error", err)
		os.Exit(1)
	}
}

func printMessages(msgs []types.ChatMessage) error {
	enc := json.NewEncoder(os.Stdout)
	for _, msg := range msgs {
		if err := enc.Encode(msg); err != nil {
			return err
		}
	}
	return nil
}

// parseBefore accepts a date, an RFC 3339 timestamp or a duration which is subtracted from now.
func parseBefore(value string, now time.Time) (time.Time, error) {
	if t, err := time.ParseInLocation(types.DateLayout, value, time.Local); err == nil {
		return t, nil
	}
	if t, err := time.Parse(time.RFC3339, value); err == nil {
		return t, nil
	}
	if d, err := time.ParseDuration(value); err == nil && d > 0 {
		return now.Add(-d), nil
	}
	return time.Time{}, fmt.Errorf("invalid --before %q", value)
}
