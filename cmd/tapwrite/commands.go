package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/csheth/tapwrite/internal/history"
)

var sendCmd = &cobra.Command{
	Use:   "send <text>",
	Short: "Send text through the lookup service and record it in history",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runSend,
}

var weChatCmd = &cobra.Command{
	Use:   "wechat",
	Short: "Ask the lookup service to bring the messenger window forward",
	Args:  cobra.NoArgs,
	RunE:  runWeChat,
}

var historyLimit int

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "List messages sent so far",
	Args:  cobra.NoArgs,
	RunE:  runHistory,
}

func init() {
	historyCmd.Flags().IntVarP(&historyLimit, "limit", "n", 20, "show at most this many recent messages (0 for all)")
}

func runSend(cmd *cobra.Command, args []string) error {
	text := strings.Join(args, " ")
	client, err := newClient()
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(cmd.Context(), cfg.GetTimeout())
	defer cancel()

	ack, sendErr := client.Send(ctx, text)
	entry := history.NewEntry(sessionID, text)
	entry.Ack = ack
	if sendErr != nil {
		entry.Error = sendErr.Error()
	}
	if err := history.Append(cfg.History.Path, entry); err != nil {
		logger.Warn("history append failed", zap.String("path", cfg.History.Path), zap.Error(err))
	}
	if sendErr != nil {
		return fmt.Errorf("send: %w", sendErr)
	}
	logger.Info("message sent", zap.String("id", entry.ID), zap.Int("runes", len([]rune(text))))
	fmt.Fprintln(cmd.OutOrStdout(), strings.TrimSpace(string(ack)))
	return nil
}

func runWeChat(cmd *cobra.Command, args []string) error {
	client, err := newClient()
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(cmd.Context(), cfg.GetTimeout())
	defer cancel()
	ack, err := client.WeChat(ctx)
	if err != nil {
		return fmt.Errorf("wechat: %w", err)
	}
	fmt.Fprintln(cmd.OutOrStdout(), strings.TrimSpace(string(ack)))
	return nil
}

func runHistory(cmd *cobra.Command, args []string) error {
	entries, err := history.Load(cfg.History.Path)
	if err != nil {
		return fmt.Errorf("read history: %w", err)
	}
	if historyLimit > 0 && len(entries) > historyLimit {
		entries = entries[len(entries)-historyLimit:]
	}
	out := cmd.OutOrStdout()
	for _, entry := range entries {
		status := "ok"
		if entry.Error != "" {
			status = "failed: " + entry.Error
		}
		fmt.Fprintf(out, "%s  %s  (%s)\n", entry.SentAt.Local().Format("2006-01-02 15:04:05"), entry.Text, status)
	}
	return nil
}
