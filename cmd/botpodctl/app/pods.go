package app

import (
	"fmt"
	"strconv"

	"github.com/gosuri/uitable"
	"github.com/spf13/cobra"

	"github.com/autopeer-io/botpod/internal/botpod/core/model"
)

func newPodsCmd(opts *globalOptions) *cobra.Command {
	var computeType string

	cmd := &cobra.Command{
		Use:   "pods",
		Short: "List every pod known to the pod-control API",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			pods, err := opts.client().Pods(cmd.Context(), computeType)
			if err != nil {
				return err
			}
			if len(pods) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No pods found.")
				return nil
			}

			table := uitable.New()
			table.MaxColWidth = 40
			table.AddRow("ID", "NAME", "STATUS", "READY", "GPUS", "COST/HR")
			for _, p := range pods {
				table.AddRow(p.ID, p.Name, p.DesiredStatus, strconv.FormatBool(model.Ready(p)), p.GPUCount, fmt.Sprintf("%.3f", p.CostPerHr))
			}
			fmt.Fprintln(cmd.OutOrStdout(), table)
			return nil
		},
	}

	cmd.Flags().StringVar(&computeType, "compute-type", "", "Only list pods of this compute type (GPU or CPU).")
	return cmd
}
