package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/tanq16/linkrelay/internal/output"
	"github.com/tanq16/linkrelay/internal/utils"
)

func newCleanCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "clean [DIR]",
		Short: "Remove leftover .tmp part files",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			dir := cfg.Sink.OutDir
			if len(args) > 0 {
				dir = args[0]
			}
			removed, err := utils.CleanTempParts(dir)
			if err != nil {
				return fmt.Errorf("error cleaning %s: %w", dir, err)
			}
			output.PrintSuccess(fmt.Sprintf("Removed %d temporary file(s) from %s", removed, dir))
			return nil
		},
	}
}
