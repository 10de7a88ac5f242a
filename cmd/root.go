package cmd

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
	"github.com/tanq16/linkrelay/internal/config"
	"github.com/tanq16/linkrelay/internal/output"
	"github.com/tanq16/linkrelay/internal/utils"
)

var (
	cfgFile string
	cfg     *config.Config
	logFile *os.File
)

var LinkRelayVersion = "dev"

var rootCmd = &cobra.Command{
	Use:   "linkrelay",
	Short: "Relay Mega, Mediafire and Terabox share links in size-bounded parts",
	Long: `linkrelay resolves a share link, streams the file through range requests,
decrypts Mega content on the fly and re-splits it into parts small enough for
the chosen sink (local directory, S3 or a Telegram chat).`,
	Version:       LinkRelayVersion,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		loaded, err := config.Load(cfgFile, cmd.Flags())
		if err != nil {
			return err
		}
		cfg = loaded
		utils.InitLogger(cfg.Log.Debug)
		if cfg.Log.File != "" {
			f, err := os.OpenFile(cfg.Log.File, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
			if err != nil {
				return fmt.Errorf("error opening log file: %w", err)
			}
			logFile = f
			utils.SetLogOutput(f)
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logFile != nil {
			logFile.Close()
		}
	},
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		output.PrintError(fmt.Sprintf("%s %v", output.StyleSymbols["fail"], err))
		os.Exit(1)
	}
}

func init() {
	flags := rootCmd.PersistentFlags()
	flags.StringVar(&cfgFile, "config", "", "Config file (default ./"+config.DefaultConfigFile+" if present)")
	flags.IntP("workers", "w", 2, "Number of links relayed in parallel")
	flags.Int("window-size", utils.DefaultWindowSize/(1024*1024), "Download window size in MB")
	flags.Int("part-size", utils.DefaultPartSize/(1024*1024), "Output part size in MB")
	flags.String("policy", string(utils.PolicyAbort), "Window failure policy (abort or continue)")
	flags.Duration("progress-interval", 5*time.Second, "Minimum time between progress updates")
	flags.DurationP("timeout", "t", 3*time.Minute, "Connection timeout (eg. 5s, 10m)")
	flags.DurationP("keep-alive-timeout", "k", 90*time.Second, "Keep-alive timeout for client (eg. 10s, 1m, 80s)")
	flags.StringP("user-agent", "a", utils.ToolUserAgent, "User agent (\"randomize\" picks one per run)")
	flags.StringP("proxy", "p", "", "HTTP/HTTPS proxy URL (e.g., proxy.example.com:8080)")
	flags.String("proxy-username", "", "Proxy username (if not provided in proxy URL)")
	flags.String("proxy-password", "", "Proxy password (if not provided in proxy URL)")
	flags.StringArrayP("header", "H", []string{}, "Custom headers (like 'Authorization: Basic dXNlcjpwYXNz'); can be specified multiple times")
	flags.String("sink", config.SinkLocal, "Where parts go: local, s3 or telegram")
	flags.StringP("output", "o", ".", "Output directory for the local sink")
	flags.String("s3-target", "", "s3://bucket/prefix for the s3 sink")
	flags.String("s3-profile", "", "AWS profile for the s3 sink")
	flags.Bool("telegram-status", false, "Post job status to the Telegram chat instead of the terminal")
	flags.Bool("debug", false, "Enable debug logging")
	flags.String("log-file", "", "Write logs to this file")

	rootCmd.AddCommand(newRelayCmd())
	rootCmd.AddCommand(newBatchCmd())
	rootCmd.AddCommand(newCleanCmd())
	rootCmd.AddCommand(newJoinCmd())
}
