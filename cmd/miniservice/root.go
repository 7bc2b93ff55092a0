package main

import (
	"github.com/spf13/cobra"

	"github.com/MKhiriev/go-miniservice/internal/config"
)

func newRootCommand() *cobra.Command {
	flags := &config.Flags{}

	root := &cobra.Command{
		Use:           "miniservice",
		Short:         "Compose and run a miniservice from feature toggles",
		SilenceUsage:  true,
		SilenceErrors: true,
		Version:       buildVersion,
	}
	root.SetVersionTemplate(buildInfo())
	flags.Register(root.PersistentFlags())

	root.AddCommand(
		newServeCommand(flags),
		newPlanCommand(flags),
	)
	return root
}
