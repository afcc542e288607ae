// ============================================================================
// flatset - Flat collection manager
// ============================================================================
//
// Package:     dispatcher
// Description: Command manager: input loop, dispatch and script execution
// Author:      Mike Stoffels
// Created:     2026-10-19
// License:     MIT
// ============================================================================

package dispatcher

import (
	"context"
	"errors"
	"io"
	"strings"
	"time"
	"unicode"

	"github.com/google/uuid"

	mdwerror "github.com/msto63/flatset/foundation/core/error"
	mdwlog "github.com/msto63/flatset/foundation/core/log"
	"github.com/msto63/flatset/foundation/utils/stringx"
	"github.com/msto63/flatset/internal/auth"
	"github.com/msto63/flatset/internal/collection"
	"github.com/msto63/flatset/internal/command"
	"github.com/msto63/flatset/internal/output"
	"github.com/msto63/flatset/internal/store"
	"github.com/msto63/flatset/internal/worker"
	"github.com/msto63/flatset/pkg/core/metrics"
)

// Defaults applied by New
const (
	DefaultWorkers        = 4
	DefaultQueueSize      = 64
	DefaultMaxScriptDepth = 10
	DefaultCommentPrefix  = "#"
)

// Options configures a Manager. Nested managers for scripts are built from
// the parent's values.
type Options struct {
	Registry   *command.Registry
	Collection *collection.Collection
	Out        *output.Sink
	Principal  *auth.Principal
	Store      store.Store
	Logger     *mdwlog.Logger
	Metrics    *metrics.Metrics

	// Async runs non-interactive commands on a worker pool. Otherwise
	// every command runs inline.
	Async     bool
	Workers   int
	QueueSize int

	// Prompt is printed before each line read from a terminal
	Prompt string

	MaxScriptDepth int
	CommentPrefix  string
	// Depth and Stack describe the enclosing scripts
	Depth int
	Stack []string

	// Report renders a failed command; defaults to Out.Error
	Report func(err error)
}

// Manager reads command lines and dispatches them
type Manager struct {
	opts    Options
	pool    *worker.Pool
	session *command.Session
	logger  *mdwlog.Logger
}

// New creates a manager. With Async set it starts the worker pool, which
// Close stops.
func New(opts Options) (*Manager, error) {
	if opts.Registry == nil || opts.Collection == nil || opts.Out == nil {
		return nil, mdwerror.New("dispatcher needs a registry, a collection and an output sink").
			WithCode(mdwerror.CodeConfigError)
	}
	if opts.Logger == nil {
		opts.Logger = mdwlog.NewNop()
	}
	if opts.Workers < 1 {
		opts.Workers = DefaultWorkers
	}
	if opts.QueueSize < 1 {
		opts.QueueSize = DefaultQueueSize
	}
	if opts.MaxScriptDepth < 1 {
		opts.MaxScriptDepth = DefaultMaxScriptDepth
	}
	if opts.CommentPrefix == "" {
		opts.CommentPrefix = DefaultCommentPrefix
	}
	if opts.Report == nil {
		opts.Report = opts.Out.Error
	}

	session := command.NewSession(uuid.NewString())
	m := &Manager{
		opts:    opts,
		session: session,
		logger: opts.Logger.WithSessionID(session.ID).WithFields(mdwlog.Fields{
			"component": "dispatcher",
			"depth":     opts.Depth,
		}),
	}
	if opts.Async {
		m.pool = worker.New(context.Background(), worker.Options{
			Workers:   opts.Workers,
			QueueSize: opts.QueueSize,
			Logger:    opts.Logger,
		})
	}
	return m, nil
}

// Session returns the run state of the input loop
func (m *Manager) Session() *command.Session {
	return m.session
}

// Split separates a line into the lower-cased command name and the trimmed
// rest of the line
func Split(line string) (name, arg string) {
	line = strings.TrimSpace(line)
	i := strings.IndexFunc(line, unicode.IsSpace)
	if i < 0 {
		return strings.ToLower(line), ""
	}
	return strings.ToLower(line[:i]), strings.TrimSpace(line[i:])
}

// skip reports whether a line carries no command
func (m *Manager) skip(line string) bool {
	trimmed := strings.TrimSpace(line)
	return stringx.IsBlank(trimmed) || strings.HasPrefix(trimmed, m.opts.CommentPrefix)
}

// Execute dispatches one line. Interactive invocations and all commands of
// a synchronous manager run before Execute returns and their error is
// returned; other commands are queued in call order and only a failed
// submission is returned. Failures are reported either way.
func (m *Manager) Execute(ctx context.Context, line string, in command.Input) error {
	name, arg := Split(line)
	if name == "" {
		return nil
	}

	cmd, ok := m.opts.Registry.Lookup(name)
	if !ok {
		err := mdwerror.Newf("unknown command %q, type help for a list", name).
			WithCode(mdwerror.CodeUnknownCommand).WithDetail("command", name)
		m.opts.Metrics.ObserveCommand(metrics.OutcomeUnknown, metrics.OutcomeUnknown, 0)
		m.logger.Debug("unknown command", mdwlog.Fields{"command": name})
		m.opts.Report(err)
		return err
	}

	env := m.env()
	if ic, ok := cmd.(command.InteractiveCommand); ok && ic.Interactive(arg) {
		return m.run(cmd, env, func() error { return ic.ExecuteInteractive(ctx, env, arg, in) })
	}
	if m.pool == nil {
		return m.run(cmd, env, func() error { return cmd.Execute(ctx, env, arg) })
	}

	err := m.pool.Submit(ctx, func(jobCtx context.Context) {
		_ = m.run(cmd, env, func() error { return cmd.Execute(jobCtx, env, arg) })
	})
	if err != nil {
		m.opts.Report(err)
	}
	return err
}

func (m *Manager) env() *command.Env {
	requestID := uuid.NewString()
	logger := m.logger.WithRequestID(requestID)
	if m.opts.Principal != nil {
		logger = logger.WithUserID(m.opts.Principal.Username)
	}
	return &command.Env{
		Collection: m.opts.Collection,
		Out:        m.opts.Out,
		Principal:  m.opts.Principal,
		Store:      m.opts.Store,
		Logger:     logger,
		Metrics:    m.opts.Metrics,
		Registry:   m.opts.Registry,
		Session:    m.session,
		RequestID:  requestID,
		Script: command.ScriptState{
			Depth:         m.opts.Depth,
			MaxDepth:      m.opts.MaxScriptDepth,
			Stack:         m.opts.Stack,
			CommentPrefix: m.opts.CommentPrefix,
		},
	}
}

// run executes fn with panic recovery, metrics, logging and reporting
func (m *Manager) run(cmd command.Command, env *command.Env, fn func() error) (err error) {
	start := time.Now()
	env.Logger.Debug("command started", mdwlog.Fields{"command": cmd.Name()})

	defer func() {
		if r := recover(); r != nil {
			err = mdwerror.Newf("command %s failed unexpectedly: %v", cmd.Name(), r).
				WithCode(mdwerror.CodeInternal).WithRequestID(env.RequestID)
		}

		outcome := metrics.OutcomeOK
		if err != nil {
			var coded *mdwerror.Error
			if errors.As(err, &coded) && coded.Operation() == "" {
				coded.WithOperation(cmd.Name())
			}
			outcome = metrics.OutcomeError
			env.Logger.LogError("command failed", err, mdwlog.Fields{"command": cmd.Name()})
			m.opts.Report(err)
		} else {
			env.Logger.Debug("command finished", mdwlog.Fields{"command": cmd.Name(), "duration": time.Since(start).String()})
		}
		m.opts.Metrics.ObserveCommand(cmd.Name(), outcome, time.Since(start))
		m.opts.Metrics.SetCollectionSize(m.opts.Collection.Len())
	}()

	return fn()
}

// Run is the input loop. It prompts on terminals, reads and dispatches
// lines until exit or logout stops the session or the input ends. The end
// of input is a normal exit. Cancelling ctx returns ctx.Err() even while
// a read is blocked; interactive commands read through the same input.
func (m *Manager) Run(ctx context.Context, in command.Input) error {
	m.logger.Debug("session started")
	if _, ok := in.(*ContextInput); !ok {
		in = NewContextInput(ctx, in)
	}
	for m.session.Running() {
		if err := ctx.Err(); err != nil {
			return err
		}
		if in.Terminal() && m.opts.Prompt != "" {
			m.opts.Out.Prompt(m.opts.Prompt)
		}

		line, err := in.ReadLine()
		if errors.Is(err, io.EOF) {
			m.logger.Debug("end of input")
			break
		}
		if ctx.Err() != nil {
			m.logger.Debug("input cancelled")
			return ctx.Err()
		}
		if err != nil {
			return mdwerror.Wrap(err, "failed to read input").WithCode(mdwerror.CodeIOError)
		}
		if m.skip(line) {
			continue
		}
		if m.logger.IsLevelEnabled(mdwlog.LevelTrace) {
			m.logger.Trace("line read", mdwlog.Fields{"line": line})
		}
		_ = m.Execute(ctx, line, in)
	}
	m.logger.Debug("session ended")
	return nil
}

// Wait blocks until every queued command has finished
func (m *Manager) Wait() {
	if m.pool != nil {
		m.pool.Wait()
	}
}

// Close stops accepting commands and waits for queued ones
func (m *Manager) Close() error {
	if m.pool == nil {
		return nil
	}
	if err := m.pool.Close(); err != nil {
		return mdwerror.Wrap(err, "worker pool failed").WithCode(mdwerror.CodeShutdown)
	}
	return nil
}
