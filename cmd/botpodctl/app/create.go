package app

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/autopeer-io/botpod/internal/botpod/core/model"
)

func newCreateCmd(opts *globalOptions) *cobra.Command {
	var (
		req           model.CreatePodRequest
		gpuCount      int
		containerDisk int
	)

	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create a pod from a template",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if cmd.Flags().Changed("gpu-count") {
				req.GPUCount = &gpuCount
			}
			if cmd.Flags().Changed("container-disk") {
				req.ContainerDiskInGb = &containerDisk
			}

			pod, err := opts.client().CreatePod(cmd.Context(), &req)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "pod %s created (%s)\n", pod.ID, pod.Name)
			return nil
		},
	}

	fs := cmd.Flags()
	fs.StringVar(&req.Name, "name", "", "Name of the pod. Prefix it with the bot prefix to make it a bot.")
	fs.StringVar(&req.TemplateID, "template-id", "", "Template to create the pod from.")
	fs.StringVar(&req.GPUTypeID, "gpu-type-id", "", "GPU type of the pod.")
	fs.IntVar(&gpuCount, "gpu-count", 0, "Number of GPUs.")
	fs.IntVar(&containerDisk, "container-disk", 0, "Container disk size in GB.")
	_ = cmd.MarkFlagRequired("name")
	_ = cmd.MarkFlagRequired("template-id")

	return cmd
}
