package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"titaniatest/internal/preflight"
)

func newPreflightCommand(ctx *commandContext) *cobra.Command {
	var flags runFlags

	cmd := &cobra.Command{
		Use:   "preflight",
		Short: "Check paths, cameras and the serial port before a run",
		Long: "Runs the same readiness checks as `run` without connecting to the\n" +
			"cameras. Accepts the run flags so a planned invocation can be checked as is.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			if err := applyRunFlags(cmd, cfg, flags); err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			colorize := shouldColorize(out)
			for _, line := range renderSectionHeader("Configuration", colorize) {
				fmt.Fprintln(out, line)
			}
			if ctx.configPath != "" {
				fmt.Fprintln(out, renderStatusLine("Config file", statusInfo, ctx.configPath, colorize))
			}
			if err := cfg.ValidateRun(); err != nil {
				fmt.Fprintln(out, renderStatusLine("Validation", statusError, err.Error(), colorize))
				return fmt.Errorf("configuration invalid")
			}
			fmt.Fprintln(out, renderStatusLine("Validation", statusOK, "", colorize))
			fmt.Fprintln(out, renderStatusLine("Virtual cameras", statusInfo, yesNo(cfg.Cameras.Virtual), colorize))

			fmt.Fprintln(out)
			for _, line := range renderSectionHeader("Checks", colorize) {
				fmt.Fprintln(out, line)
			}
			results := preflight.RunAll(cmd.Context(), cfg, ctx.inventory)
			for _, result := range results {
				kind := statusOK
				if !result.Passed {
					kind = statusError
				}
				fmt.Fprintln(out, renderStatusLine(result.Name, kind, result.Detail, colorize))
			}
			if failed := preflight.Failed(results); len(failed) > 0 {
				return fmt.Errorf("%d preflight check(s) failed", len(failed))
			}
			return nil
		},
	}

	bindRunFlags(cmd, &flags)
	return cmd
}
