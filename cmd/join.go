package cmd

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"github.com/tanq16/linkrelay/internal/output"
	"github.com/tanq16/linkrelay/internal/utils"
)

func newJoinCmd() *cobra.Command {
	var dest string
	cmd := &cobra.Command{
		Use:   "join [DIR] [NAME]",
		Short: "Reassemble NAME.partNNN files written by the local sink",
		Long: `Reassemble NAME.partNNN files written by the local sink into one file.

A window skipped under the continue policy leaves a hole in the part
numbers. join refuses such a set instead of writing a file with bytes missing.`,
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			dir, name := args[0], args[1]
			if dest == "" {
				dest = filepath.Join(dir, name)
			}
			if _, err := os.Stat(dest); err == nil {
				output.PrintWarning(fmt.Sprintf("%s exists and will be overwritten", dest))
			}
			n, written, err := utils.JoinParts(dir, name, dest)
			if err != nil {
				return err
			}
			output.PrintSuccess(fmt.Sprintf("Joined %d part(s) into %s (%s)", n, dest, utils.FormatBytes(written)))
			return nil
		},
	}
	cmd.Flags().StringVar(&dest, "dest", "", "Output file (default DIR/NAME)")
	return cmd
}
