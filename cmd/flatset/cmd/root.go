package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/msto63/flatset/internal/output"
)

var (
	cfgFile string
	verbose bool
)

var rootCmd = &cobra.Command{
	Use:   "flatset",
	Short: "flatset - manage a collection of flats",
	Long: `flatset manages a collection of flats through named commands.

Commands are read line by line from the terminal or from script files.
Records are persisted to a JSON, YAML or CBOR file, SQLite or PostgreSQL.

Without a subcommand an interactive session is started (see "flatset run").`,
	SilenceUsage:  true,
	SilenceErrors: true,
	Args:          cobra.NoArgs,
	RunE:          runSession,
}

// Execute runs the root command and prints a failure to stderr
func Execute() error {
	err := rootCmd.Execute()
	if err != nil {
		printError(err)
	}
	return err
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: ./configs/config.toml)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "log at debug level")
}

func printError(err error) {
	fmt.Fprintln(os.Stderr, output.FormatError(err))
}
