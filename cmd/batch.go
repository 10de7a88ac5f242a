package cmd

import (
	"fmt"
	"os"
	"strings"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"github.com/tanq16/linkrelay/internal/output"
	"github.com/tanq16/linkrelay/internal/utils"
	"gopkg.in/yaml.v3"
)

// BatchFile lists links under a single "links" key:
//
//	links:
//	  - link: https://mega.nz/file/...
//	  - link: https://www.mediafire.com/file/...
type BatchFile struct {
	Links []utils.BatchEntry `yaml:"links"`
}

func newBatchCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "batch [YAML_FILE]",
		Short: "Relay every link listed in a YAML file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := os.ReadFile(args[0])
			if err != nil {
				return fmt.Errorf("error reading YAML file: %w", err)
			}
			urls, err := parseBatch(data)
			if err != nil {
				return err
			}
			output.PrintInfo(fmt.Sprintf("Relaying %d link(s) from %s", len(urls), args[0]))
			return runRelay(urls)
		},
	}
}

func parseBatch(data []byte) ([]string, error) {
	var batchFile BatchFile
	if err := yaml.Unmarshal(data, &batchFile); err != nil {
		return nil, fmt.Errorf("error parsing YAML file: %w", err)
	}
	var urls []string
	for i, entry := range batchFile.Links {
		link := strings.TrimSpace(entry.URL)
		if link == "" {
			log.Warn().Str("op", "cmd/batch").Msgf("entry %d has an empty link, skipping", i+1)
			continue
		}
		urls = append(urls, link)
	}
	if len(urls) == 0 {
		return nil, fmt.Errorf("no links found in the batch file")
	}
	return urls, nil
}
