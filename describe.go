package main

import (
	"github.com/spf13/cobra"
)

func newDescribeCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "describe",
		Short: "Print the tool definitions in OpenAI function-calling format",
		RunE: func(cmd *cobra.Command, _ []string) error {
			out, err := json.MarshalIndent(a.registry.Definitions(), "", "  ")
			if err != nil {
				return err
			}
			_, err = cmd.OutOrStdout().Write(append(out, '\n'))
			return err
		},
	}
}
