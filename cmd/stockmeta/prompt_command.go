package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"stockmeta/internal/session"
)

func newPromptCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "prompt",
		Short: "Print the instruction template sent with each image",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			sess, err := session.New("", cfg, nil, nil)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), sess.Prompt())
			return nil
		},
	}
}
