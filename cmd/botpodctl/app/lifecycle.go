package app

import (
	"context"
	"fmt"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"github.com/autopeer-io/botpod/internal/botpod/core/model"
)

var okStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("42")).Bold(true)

func newWakeCmd(opts *globalOptions) *cobra.Command {
	var (
		wait         bool
		waitTimeout  time.Duration
		pollInterval time.Duration
	)

	cmd := &cobra.Command{
		Use:   "wake <podId|botName>",
		Short: "Start the pod behind a bot",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			c := opts.client()

			bot, err := opts.resolveBot(ctx, c, args[0])
			if err != nil {
				return err
			}

			res, err := c.Wake(ctx, bot.PodID)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "bot %s (%s): wake_up %s, state %s\n", bot.Name, bot.PodID, res.Outcome, res.State)

			if !wait || res.State == model.StateReady {
				return nil
			}

			waitCtx, cancel := context.WithTimeout(ctx, waitTimeout)
			defer cancel()

			label := fmt.Sprintf("Waiting for %s to become ready...", bot.Name)
			if err := runSpinner(waitCtx, cmd.OutOrStdout(), label, func(ctx context.Context) error {
				return waitReady(ctx, c, bot.PodID, pollInterval)
			}); err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "%s bot %s is ready\n", okStyle.Render("✓"), bot.Name)
			return nil
		},
	}

	fs := cmd.Flags()
	fs.BoolVar(&wait, "wait", false, "Wait until the pod is ready.")
	fs.DurationVar(&waitTimeout, "wait-timeout", 10*time.Minute, "Give up waiting after this long.")
	fs.DurationVar(&pollInterval, "poll-interval", 2*time.Second, "Interval between readiness checks.")
	_ = fs.MarkHidden("poll-interval")

	return cmd
}

func newShutdownCmd(opts *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "shutdown <podId|botName>",
		Short: "Stop the pod behind a bot",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			c := opts.client()

			bot, err := opts.resolveBot(ctx, c, args[0])
			if err != nil {
				return err
			}

			res, err := c.Shutdown(ctx, bot.PodID)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "bot %s (%s): shutdown %s, state %s\n", bot.Name, bot.PodID, res.Outcome, res.State)
			return nil
		},
	}
}

// waitReady polls the bot until the server reports it ready.
func waitReady(ctx context.Context, c *client, podID string, interval time.Duration) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		bot, err := c.Bot(ctx, podID)
		if err == nil && bot.State == model.StateReady {
			return nil
		}

		select {
		case <-ctx.Done():
			if err != nil {
				return fmt.Errorf("pod %s did not become ready: %w", podID, err)
			}
			return fmt.Errorf("pod %s did not become ready: %w", podID, ctx.Err())
		case <-ticker.C:
		}
	}
}
