package app

import (
	"fmt"
	"strconv"

	"github.com/gosuri/uitable"
	"github.com/spf13/cobra"

	"github.com/autopeer-io/botpod/internal/botpod/core/model"
)

func newBotsCmd(opts *globalOptions) *cobra.Command {
	var all bool

	cmd := &cobra.Command{
		Use:   "bots",
		Short: "List bots and their lifecycle state",
		Long:  "List bots and their lifecycle state. Stopped bots are hidden unless --all is given.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			bots, err := opts.client().Bots(cmd.Context())
			if err != nil {
				return err
			}

			table := uitable.New()
			table.MaxColWidth = 40
			table.AddRow("NAME", "POD ID", "STATUS", "STATE", "READY", "PENDING")
			shown := 0
			for _, b := range bots {
				if !all && b.State == model.StateStopped {
					continue
				}
				table.AddRow(b.Name, b.PodID, b.Status, b.State, strconv.FormatBool(b.Ready), pendingLabel(b.Pending))
				shown++
			}

			if shown == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No bots found.")
				return nil
			}
			fmt.Fprintln(cmd.OutOrStdout(), table)
			return nil
		},
	}

	cmd.Flags().BoolVar(&all, "all", false, "Also show stopped bots.")
	return cmd
}

func pendingLabel(p model.Pending) string {
	switch {
	case p.WakeUp && p.Shutdown:
		return "wake_up,shutdown"
	case p.WakeUp:
		return string(model.IntentWakeUp)
	case p.Shutdown:
		return string(model.IntentShutdown)
	}
	return "-"
}
