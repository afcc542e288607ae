package dispatcher

import (
	"context"
	"errors"
	"io"
	"slices"
	"strings"

	mdwerror "github.com/msto63/flatset/foundation/core/error"
	mdwlog "github.com/msto63/flatset/foundation/core/log"
	"github.com/msto63/flatset/foundation/utils/filex"
	"github.com/msto63/flatset/internal/command"
)

// ScriptCommand is execute_script. It runs the lines of a file through a
// nested synchronous manager sharing the caller's collection, sink,
// principal and store. Interactive commands in the script read their
// answers from the following lines.
type ScriptCommand struct{}

// NewScriptCommand creates the execute_script command
func NewScriptCommand() *ScriptCommand {
	return &ScriptCommand{}
}

func (c *ScriptCommand) Name() string {
	return "execute_script"
}

func (c *ScriptCommand) Usage() string {
	return "execute_script <file>"
}

func (c *ScriptCommand) Description() string {
	return "run the commands in file, one per line"
}

func (c *ScriptCommand) Category() string {
	return command.CategorySession
}

// Interactive is always true: scripts run inline so their commands are
// ordered with the rest of the session.
func (c *ScriptCommand) Interactive(arg string) bool {
	return true
}

func (c *ScriptCommand) Execute(ctx context.Context, env *command.Env, arg string) error {
	return c.ExecuteInteractive(ctx, env, arg, nil)
}

func (c *ScriptCommand) ExecuteInteractive(ctx context.Context, env *command.Env, arg string, _ command.Input) error {
	path := strings.TrimSpace(arg)
	if path == "" {
		return mdwerror.InvalidInput("usage: %s", c.Usage())
	}
	abs, err := filex.AbsPath(path)
	if err != nil {
		return err
	}

	if slices.Contains(env.Script.Stack, abs) {
		return mdwerror.Newf("script %s is already running", path).
			WithCode(mdwerror.CodeScriptRecursion).WithDetail("path", abs)
	}
	depth := env.Script.Depth + 1
	if depth > env.Script.MaxDepth {
		return mdwerror.Newf("script %s would nest %d levels deep, limit is %d", path, depth, env.Script.MaxDepth).
			WithCode(mdwerror.CodeScriptDepthExceeded).WithDetail("path", abs)
	}

	lines, err := filex.ReadLines(abs)
	if err != nil {
		return err
	}
	src := command.NewLineSource(lines)

	lineNo := 0
	nested, err := New(Options{
		Registry:       env.Registry,
		Collection:     env.Collection,
		Out:            env.Out,
		Principal:      env.Principal,
		Store:          env.Store,
		Logger:         env.Logger.WithField("script", abs),
		Metrics:        env.Metrics,
		MaxScriptDepth: env.Script.MaxDepth,
		CommentPrefix:  env.Script.CommentPrefix,
		Depth:          depth,
		Stack:          append(slices.Clone(env.Script.Stack), abs),
		Report: func(err error) {
			env.Out.Error(mdwerror.Wrapf(err, "%s:%d", path, lineNo))
		},
	})
	if err != nil {
		return err
	}
	defer nested.Close()

	env.Logger.Info("script started", mdwlog.Fields{"path": abs, "depth": depth, "lines": len(lines)})
	executed, failed := 0, 0
	for nested.Session().Running() {
		if err := ctx.Err(); err != nil {
			return mdwerror.Wrap(err, "script cancelled").WithCode(mdwerror.CodeShutdown)
		}
		line, err := src.ReadLine()
		if errors.Is(err, io.EOF) {
			break
		}
		if nested.skip(line) {
			continue
		}

		lineNo = src.Line()
		err = nested.Execute(ctx, line, src)
		executed++
		if err != nil {
			failed++
		}
		env.Metrics.ObserveScriptLine(err == nil)
	}

	env.Logger.Info("script finished", mdwlog.Fields{"path": abs, "executed": executed, "failed": failed})
	env.Out.Printf("script %s: %d executed, %d failed", path, executed, failed)
	return nil
}

// DefaultRegistry holds the built-in commands and execute_script
func DefaultRegistry() (*command.Registry, error) {
	return command.NewRegistry(append(command.Builtins(), NewScriptCommand())...)
}
