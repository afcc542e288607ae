package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/msto63/flatset/internal/command"
)

var execCmd = &cobra.Command{
	Use:   "exec <script>",
	Short: "Run a script without a session",
	Long: `Run the commands in a script file, one per line, then exit.

Lines starting with the comment prefix and blank lines are skipped.
Failing lines are reported with their line number and the script goes on.
Auth is not applied: every record may be modified.`,
	Args: cobra.ExactArgs(1),
	RunE: runExec,
}

func init() {
	rootCmd.AddCommand(execCmd)
}

func runExec(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := bootstrap(ctx)
	if err != nil {
		return err
	}
	defer a.close()

	m, err := a.manager(false, nil)
	if err != nil {
		return err
	}
	defer m.Close()

	// the script's own lines answer interactive commands
	if err := m.Execute(ctx, "execute_script "+args[0], command.NewLineSource(nil)); err != nil {
		return err
	}
	a.autosave(ctx)
	return nil
}
