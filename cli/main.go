// Package main provides a terminal client for the chat API.
package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gookit/color"
	"github.com/spf13/cobra"

	"github.com/xiaot623/livechat/internal/domain"
	"github.com/xiaot623/livechat/internal/logging"
)

type options struct {
	server   string
	nickname string
	poll     time.Duration
	timeout  time.Duration
	noColor  bool
	logLevel string
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	opts := &options{}

	root := &cobra.Command{
		Use:          "livechat",
		Short:        "Terminal client for the live chat API",
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if opts.noColor {
				color.Disable()
			}
			return logging.SetupWriter(os.Stderr, opts.logLevel, "console")
		},
	}

	flags := root.PersistentFlags()
	flags.StringVar(&opts.server, "server", envOr("LIVECHAT_SERVER", "http://localhost:8888/api/v2"), "chat API base URL")
	flags.StringVar(&opts.nickname, "nickname", envOr("LIVECHAT_NICKNAME", ""), "display name")
	flags.DurationVar(&opts.poll, "poll", time.Second, "transcript polling interval")
	flags.DurationVar(&opts.timeout, "timeout", 10*time.Second, "HTTP request timeout")
	flags.BoolVar(&opts.noColor, "no-color", false, "disable colored output")
	flags.StringVar(&opts.logLevel, "log-level", "warn", "log level")

	root.AddCommand(
		newListCmd(opts),
		newStartCmd(opts),
		newJoinCmd(opts),
		newShowCmd(opts),
	)
	return root
}

func newListCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List chats as state - subject",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			client := NewClient(opts.server, opts.timeout)
			chats, err := client.ListChats(cmd.Context())
			if err != nil {
				return err
			}
			return renderChatList(cmd.OutOrStdout(), chats)
		},
	}
}

func newStartCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "start <subject>",
		Short: "Open a new chat as the client and attach to it",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if opts.nickname == "" {
				return fmt.Errorf("--nickname is required")
			}
			client := NewClient(opts.server, opts.timeout)
			resp, err := client.StartChat(cmd.Context(), opts.nickname, args[0])
			if err != nil {
				return err
			}
			return attach(cmd, opts, client, resp, domain.RoleClient)
		},
	}
}

func newJoinCmd(opts *options) *cobra.Command {
	var role string

	cmd := &cobra.Command{
		Use:   "join <chat-id>",
		Short: "Join an existing chat",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if opts.nickname == "" {
				return fmt.Errorf("--nickname is required")
			}
			r := domain.Role(role)
			if !r.IsValid() {
				return fmt.Errorf("invalid role %q", role)
			}
			client := NewClient(opts.server, opts.timeout)
			resp, err := client.JoinChat(cmd.Context(), opts.nickname, args[0], r)
			if err != nil {
				return err
			}
			return attach(cmd, opts, client, resp, r)
		},
	}
	cmd.Flags().StringVar(&role, "role", string(domain.RoleAgent), "role to join with (Client, Agent, System)")
	return cmd
}

func newShowCmd(opts *options) *cobra.Command {
	var all bool

	cmd := &cobra.Command{
		Use:   "show <chat-id>",
		Short: "Print the transcript of a chat",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := NewClient(opts.server, opts.timeout)
			resp, err := client.Transcript(cmd.Context(), args[0], 0)
			if err != nil {
				return err
			}

			viewer := domain.RoleClient
			if all {
				viewer = domain.RoleAgent
			}
			out := cmd.OutOrStdout()
			for _, msg := range resp.Messages {
				if visible(msg, viewer) {
					renderMessage(out, msg, "")
				}
			}
			if resp.ChatEnded {
				renderEnded(out)
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&all, "all", false, "include internal notes")
	return cmd
}

func attach(cmd *cobra.Command, opts *options, client *Client, resp domain.RequestChatResponse, role domain.Role) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	s := newChatSession(client, resp.ID, resp.PID, role, opts.poll, cmd.OutOrStdout())
	s.banner()
	return s.Run(ctx, cmd.InOrStdin())
}

func envOr(key, fallback string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v
	}
	return fallback
}
