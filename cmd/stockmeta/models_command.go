package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newModelsCommand(ctx *commandContext) *cobra.Command {
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "models",
		Short: "Verify an API key and list vision-capable models",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			logger, err := ctx.loggerFor(cmd)
			if err != nil {
				return err
			}
			sess, err := verifiedSession(cmd.Context(), cmd, cfg, logger)
			if err != nil {
				return err
			}

			models := sess.Models()
			if jsonOutput {
				if models == nil {
					models = []string{}
				}
				return writeJSON(cmd, map[string]any{"models": models, "selected": sess.Model()})
			}
			out := cmd.OutOrStdout()
			if len(models) == 0 {
				fmt.Fprintln(out, "No vision-capable models available for this key")
				return nil
			}
			for _, name := range models {
				marker := " "
				if name == sess.Model() {
					marker = "*"
				}
				fmt.Fprintf(out, "%s %s\n", marker, name)
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Print models as JSON")
	return cmd
}
