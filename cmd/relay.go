package cmd

import (
	"github.com/spf13/cobra"
)

func newRelayCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "relay [URL...]",
		Short: "Relay one or more share links",
		Long: `Relay one or more Mega, Mediafire or Terabox share links.

Examples:
  linkrelay relay 'https://mega.nz/file/AbCdEf#key'
  linkrelay relay https://www.mediafire.com/file/abc123/file.zip/file --sink s3 --s3-target s3://bucket/relay
  TERABOX_COOKIE=... linkrelay relay https://www.terabox.com/s/1abcdef --part-size 20`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRelay(args)
		},
	}
}
