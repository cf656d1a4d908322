// Command draftctl inspects and repairs the draft store and the local backups.
package main

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/debemdeboas/the-pantry/internal/config"
)

// RootOptions holds the flags shared by every command.
type RootOptions struct {
	ConfigPath string
	Verbose    bool
}

func NewRootCommand() *cobra.Command {
	opts := &RootOptions{}

	cmd := &cobra.Command{
		Use:           "draftctl",
		Short:         "Inspect and repair recipe drafts",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	defaultPath := os.Getenv(config.EnvConfigPath)
	if defaultPath == "" {
		defaultPath = config.DefaultConfigPath
	}
	cmd.PersistentFlags().StringVarP(&opts.ConfigPath, "config", "c", defaultPath, "Path to the configuration file")
	cmd.PersistentFlags().BoolVarP(&opts.Verbose, "verbose", "v", false, "Log storage activity to stderr")

	cmd.AddCommand(
		NewListCommand(opts),
		NewShowCommand(opts),
		NewRemoveCommand(opts),
		NewBackupsCommand(opts),
		NewRecoverCommand(opts),
	)
	return cmd
}

func main() {
	_ = godotenv.Load()

	if err := NewRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, errorStyle.Render("Error: "+err.Error()))
		os.Exit(1)
	}
}
