package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"wordstory/internal/adapter/tui/uxerror"
	"wordstory/internal/infra/config"
)

// Version information set at build time.
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

// rootOptions are the flags shared by every command.
type rootOptions struct {
	configPath string
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, uxerror.Humanize(err).Render())
		stop()
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}

	rootCmd := &cobra.Command{
		Use:   "wordstory",
		Short: "Play collaborative word-story games in the terminal",
		Long: `wordstory joins a public lobby on a word-story server and lets you
build a story one word at a time with other players.

Configuration is read from ~/.wordstory/config.yaml by default.
WORDSTORY_* environment variables override the file.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	rootCmd.PersistentFlags().StringVarP(&opts.configPath, "config", "c", config.DefaultPath(), "config file path")

	rootCmd.AddCommand(
		playCmd(opts),
		statsCmd(opts),
		doctorCmd(opts),
		encryptCmd(),
		versionCmd(),
	)
	return rootCmd
}
