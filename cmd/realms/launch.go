package main

import (
	"github.com/spf13/cobra"
)

func newLaunchCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "launch [-- args...]",
		Short: "Configure the world and run the main entry point",
		Long: `Configure the world from the graph description and run the main symbol.

Arguments after -- are passed to the guest. The exit status is the entry
point's own; configuration errors exit with 2 and launch failures with 100.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			l, err := a.launcher(cmd)
			if err != nil {
				return err
			}
			defer l.Close(cmd.Context())

			code, err := l.Launch(cmd.Context(), args)
			if err != nil {
				return err
			}
			if code != 0 {
				return &exitError{code: code}
			}
			return nil
		},
	}
}
