package cmd

import (
	"context"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	mdwerror "github.com/msto63/flatset/foundation/core/error"
	"github.com/msto63/flatset/internal/auth"
	"github.com/msto63/flatset/internal/command"
)

var userCmd = &cobra.Command{
	Use:   "user",
	Short: "Manage users",
}

var userAddCmd = &cobra.Command{
	Use:   "add <name>",
	Short: "Register a user",
	Long: `Register a user with the configured store. The password is read from
the first line of stdin, so it can be piped in:

  echo "s3cret" | flatset user add alice`,
	Args: cobra.ExactArgs(1),
	RunE: runUserAdd,
}

func init() {
	userCmd.AddCommand(userAddCmd)
	rootCmd.AddCommand(userCmd)
}

func runUserAdd(cmd *cobra.Command, args []string) error {
	ctx := context.Background()
	a, err := bootstrap(ctx)
	if err != nil {
		return err
	}
	defer a.close()

	users, ok := a.store.(auth.UserStore)
	if !ok {
		return mdwerror.Newf("%s cannot hold user accounts, use the sqlite or postgres backend", a.store.Describe()).
			WithCode(mdwerror.CodeConfigError)
	}

	in := command.NewLineReader(os.Stdin, stdinIsTerminal())
	if in.Terminal() {
		a.out.Prompt("Password: ")
	}
	password, err := in.ReadLine()
	if err == io.EOF {
		return mdwerror.InvalidInput("no password given on stdin")
	}
	if err != nil {
		return mdwerror.Wrap(err, "failed to read password").WithCode(mdwerror.CodeIOError)
	}

	svc := auth.NewService(users, a.cfg.Auth.BcryptCost, a.logger)
	p, err := svc.Register(ctx, strings.TrimSpace(args[0]), password)
	if err != nil {
		return err
	}
	a.out.Success("registered user %s (#%d) in %s", p.Username, p.ID, a.store.Describe())
	return nil
}
