package main

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/MKhiriev/go-miniservice/internal/compose"
	"github.com/MKhiriev/go-miniservice/internal/config"
	"github.com/MKhiriev/go-miniservice/internal/feature"
	"github.com/MKhiriev/go-miniservice/internal/logger"
)

func newPlanCommand(flags *config.Flags) *cobra.Command {
	return &cobra.Command{
		Use:   "plan",
		Short: "Print the composition steps the configured features would run",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.GetStructuredConfig(flags)
			if err != nil {
				return fmt.Errorf("error getting configs: %w", err)
			}

			engine := compose.NewEngine(*cfg, logger.Nop(), compose.WithModules(hostModules()...))
			return printPlan(cmd.OutOrStdout(), engine.Plan(feature.NewSet(cfg.Features)))
		},
	}
}

func printPlan(w io.Writer, steps []compose.PlannedStep) error {
	for _, s := range steps {
		state := "skip"
		if s.Runs {
			state = "run"
		}
		if _, err := fmt.Fprintf(w, "%2d  %-20s %s\n", s.Position, s.Name, state); err != nil {
			return err
		}
	}
	return nil
}
