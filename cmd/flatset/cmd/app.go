package cmd

import (
	"context"
	"io"
	"os"

	"github.com/mattn/go-isatty"

	mdwlog "github.com/msto63/flatset/foundation/core/log"
	"github.com/msto63/flatset/internal/auth"
	"github.com/msto63/flatset/internal/collection"
	"github.com/msto63/flatset/internal/command"
	"github.com/msto63/flatset/internal/dispatcher"
	"github.com/msto63/flatset/internal/output"
	"github.com/msto63/flatset/internal/store"
	"github.com/msto63/flatset/pkg/core/config"
	"github.com/msto63/flatset/pkg/core/logging"
	"github.com/msto63/flatset/pkg/core/metrics"
)

// app holds everything a subcommand needs, built once per process
type app struct {
	cfg        *config.Config
	logger     *mdwlog.Logger
	logCloser  io.Closer
	store      store.Store
	collection *collection.Collection
	registry   *command.Registry
	metrics    *metrics.Metrics
	out        *output.Sink
}

// bootstrap loads configuration, the logger and the store, and fills the
// collection from the store
func bootstrap(ctx context.Context) (*app, error) {
	cfg, path, err := config.LoadDefault(cfgFile)
	if err != nil {
		return nil, err
	}
	if verbose {
		cfg.General.LogLevel = "debug"
	}

	logger, closer, err := logging.NewLogger(logging.FromConfig(cfg))
	if err != nil {
		return nil, err
	}
	logger.Debug("configuration loaded", mdwlog.Fields{"path": path, "store": cfg.StoreTarget()})

	a := &app{cfg: cfg, logger: logger, logCloser: closer}
	if a.registry, err = dispatcher.DefaultRegistry(); err != nil {
		a.close()
		return nil, err
	}

	if a.store, err = store.Open(ctx, cfg.Store, logger); err != nil {
		a.close()
		return nil, err
	}
	flats, err := a.store.Load(ctx)
	if err != nil {
		a.close()
		return nil, err
	}
	a.collection = collection.New()
	if err := a.collection.Replace(flats); err != nil {
		a.close()
		return nil, err
	}

	a.metrics = metrics.New()
	a.metrics.SetCollectionSize(a.collection.Len())
	a.out = output.New(os.Stdout, output.Options{
		Buffer: cfg.Dispatcher.OutputBuffer,
		Color:  cfg.Output.Color,
	})

	logger.Info("collection loaded", mdwlog.Fields{"store": a.store.Describe(), "count": a.collection.Len()})
	return a, nil
}

// manager creates a dispatcher over the app's collection acting for
// principal, which is nil when auth is disabled
func (a *app) manager(async bool, principal *auth.Principal) (*dispatcher.Manager, error) {
	return dispatcher.New(dispatcher.Options{
		Registry:       a.registry,
		Collection:     a.collection,
		Out:            a.out,
		Principal:      principal,
		Store:          a.store,
		Logger:         a.logger,
		Metrics:        a.metrics,
		Async:          async,
		Workers:        a.cfg.Dispatcher.Workers,
		QueueSize:      a.cfg.Dispatcher.QueueSize,
		Prompt:         a.cfg.Dispatcher.Prompt,
		MaxScriptDepth: a.cfg.Dispatcher.MaxScriptDepth,
		CommentPrefix:  a.cfg.Dispatcher.CommentPrefix,
	})
}

// autosave writes the collection back when store.autosave is set
func (a *app) autosave(ctx context.Context) {
	if !a.cfg.Store.Autosave {
		return
	}
	flats := a.collection.Snapshot()
	if err := a.store.Save(ctx, flats); err != nil {
		a.logger.LogError("autosave failed", err)
		a.out.Error(err)
		return
	}
	a.logger.Info("collection autosaved", mdwlog.Fields{"store": a.store.Describe(), "count": len(flats)})
}

func (a *app) close() {
	if a.out != nil {
		a.out.Close()
	}
	if a.store != nil {
		if err := a.store.Close(); err != nil {
			a.logger.LogError("failed to close store", err)
		}
	}
	_ = a.logCloser.Close()
}

func stdinIsTerminal() bool {
	fd := os.Stdin.Fd()
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}
