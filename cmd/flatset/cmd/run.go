package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	mdwlog "github.com/msto63/flatset/foundation/core/log"
	"github.com/msto63/flatset/internal/auth"
	"github.com/msto63/flatset/internal/command"
	"github.com/msto63/flatset/internal/dispatcher"
	"github.com/msto63/flatset/internal/store"
	"github.com/msto63/flatset/pkg/core/health"
	"github.com/msto63/flatset/pkg/core/metrics"
	"github.com/msto63/flatset/pkg/core/version"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Start an interactive session",
	Long: `Start an interactive session reading commands from stdin.

When auth.enabled is set you log in or register first. Type help for the
list of commands and exit to leave. With store.autosave set the collection
is saved when the session ends.`,
	Args: cobra.NoArgs,
	RunE: runSession,
}

func init() {
	rootCmd.AddCommand(runCmd)
}

func runSession(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := bootstrap(ctx)
	if err != nil {
		return err
	}
	defer a.close()

	in := dispatcher.NewContextInput(ctx, command.NewLineReader(os.Stdin, stdinIsTerminal()))

	var principal *auth.Principal
	if a.cfg.Auth.Enabled {
		svc := auth.NewService(store.UsersFor(a.store), a.cfg.Auth.BcryptCost, a.logger)
		principal, err = svc.Authenticate(ctx, asker(a, in), a.out.Error)
		if err != nil {
			return err
		}
		a.out.Success("logged in as %s", principal.Username)
	}

	if a.cfg.Metrics.Address != "" {
		checks := health.NewRegistry(a.cfg.General.Name, version.Version)
		if p, ok := a.store.(store.Pinger); ok {
			checks.Register(health.PingCheck("store", p.Ping))
		}
		checks.Register(health.GaugeCheck("collection", a.collection.Len))

		srv, err := metrics.Start(a.cfg.Metrics.Address, a.metrics, checks, a.logger)
		if err != nil {
			return err
		}
		defer func() {
			if err := srv.Shutdown(a.cfg.Metrics.ShutdownTimeout.Duration); err != nil {
				a.logger.LogError("metrics server shutdown failed", err)
			}
		}()
	}

	m, err := a.manager(true, principal)
	if err != nil {
		return err
	}

	logger := a.logger.WithSessionID(m.Session().ID)
	fields := mdwlog.Fields{"store": a.store.Describe(), "terminal": in.Terminal()}
	if principal != nil {
		fields["user"] = principal.Username
	}
	logger.Info("session started", fields)
	if in.Terminal() {
		a.out.Print("type help for the list of commands")
	}

	runErr := m.Run(ctx, in)
	if err := m.Close(); err != nil {
		logger.LogError("dispatcher shutdown failed", err)
	}
	if ctx.Err() != nil {
		logger.Info("session interrupted")
		runErr = nil
	}

	a.autosave(context.Background())
	logger.Info("session ended", mdwlog.Fields{"count": a.collection.Len()})
	return runErr
}

// asker prompts on the sink and reads the answer from in
func asker(a *app, in command.Input) auth.Asker {
	return func(prompt string) (string, error) {
		if in.Terminal() {
			a.out.Prompt(prompt)
		}
		return in.ReadLine()
	}
}
