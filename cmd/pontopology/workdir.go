package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"pontopology/internal/storage/workdir"
)

func newWorkdirCmd(o *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "workdir [path]",
		Short: "Show the snapshot archive location, or change and remember it",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			m, err := workdir.NewManager(o.cfg.Workdir.Path)
			if err != nil {
				return err
			}
			if len(args) == 1 {
				if err := m.SetPath(args[0]); err != nil {
					return err
				}
				if err := m.EnsureStructure(); err != nil {
					return err
				}
			}
			fmt.Fprintln(cmd.OutOrStdout(), m.Path())
			return nil
		},
	}
	return cmd
}
