// ============================================================================
// flatset - Flat collection manager
// ============================================================================
//
// Package:     command
// Description: Command contract, execution environment and built-in commands
// Author:      Mike Stoffels
// Created:     2026-10-19
// License:     MIT
// ============================================================================

package command

import (
	"context"
	"sync/atomic"

	mdwerror "github.com/msto63/flatset/foundation/core/error"
	mdwlog "github.com/msto63/flatset/foundation/core/log"
	"github.com/msto63/flatset/internal/auth"
	"github.com/msto63/flatset/internal/collection"
	"github.com/msto63/flatset/internal/flat"
	"github.com/msto63/flatset/internal/output"
	"github.com/msto63/flatset/internal/store"
	"github.com/msto63/flatset/pkg/core/metrics"
)

// Command categories shown by help
const (
	CategoryQuery       = "query"
	CategoryModify      = "modify"
	CategoryPersistence = "persistence"
	CategorySession     = "session"
)

// Command is a named operation on the collection. Execute reports results
// to env.Out and returns a classified error instead of printing failures.
type Command interface {
	Name() string
	Usage() string
	Description() string
	Execute(ctx context.Context, env *Env, arg string) error
}

// InteractiveCommand is a command that may read further input. When
// Interactive returns true for arg, the dispatcher runs ExecuteInteractive
// inline on the session goroutine instead of Execute.
type InteractiveCommand interface {
	Command
	Interactive(arg string) bool
	ExecuteInteractive(ctx context.Context, env *Env, arg string, in Input) error
}

// Categorized commands are grouped by help
type Categorized interface {
	Category() string
}

// Aliased commands are also registered under Aliases
type Aliased interface {
	Aliases() []string
}

type meta struct {
	name        string
	usage       string
	description string
	category    string
	aliases     []string
}

func (m meta) Name() string {
	return m.name
}

func (m meta) Usage() string {
	return m.usage
}

func (m meta) Description() string {
	return m.description
}

func (m meta) Category() string {
	return m.category
}

func (m meta) Aliases() []string {
	return m.aliases
}

// Session is the run state of one input loop
type Session struct {
	ID      string
	running atomic.Bool
}

// NewSession creates a running session
func NewSession(id string) *Session {
	s := &Session{ID: id}
	s.running.Store(true)
	return s
}

// Stop ends the input loop after the current command
func (s *Session) Stop() {
	s.running.Store(false)
}

// Running reports whether the loop should read another line
func (s *Session) Running() bool {
	return s.running.Load()
}

// ScriptState tracks nesting of execute_script
type ScriptState struct {
	// Depth is 0 for the interactive session and grows by one per script
	Depth    int
	MaxDepth int
	// Stack holds the absolute paths of the scripts being executed
	Stack []string
	// CommentPrefix marks lines a script skips
	CommentPrefix string
}

// Env is everything a command may touch. The dispatcher builds one per
// invocation; commands must not keep it.
type Env struct {
	Collection *collection.Collection
	Out        *output.Sink
	// Principal is nil when access control is off
	Principal *auth.Principal
	// Store is nil when nothing is persisted
	Store     store.Store
	Logger    *mdwlog.Logger
	Metrics   *metrics.Metrics
	Registry  *Registry
	Session   *Session
	RequestID string
	Script    ScriptState
}

// CanModify reports whether the principal may change or remove f
func (e *Env) CanModify(f *flat.Flat) bool {
	return e.Principal == nil || f.OwnedBy(e.Principal.ID)
}

// guard is the veto passed to single-record collection operations
func (e *Env) guard(f *flat.Flat) error {
	if e.CanModify(f) {
		return nil
	}
	return mdwerror.Forbidden("flat %d belongs to another user", f.ID).
		WithDetail("id", f.ID).WithUserID(e.Principal.Username)
}

// own stamps new records with the principal as owner
func (e *Env) own(f *flat.Flat) {
	if e.Principal != nil {
		f.OwnerID = flat.Int64(e.Principal.ID)
	}
}

func (e *Env) audit(action string, fields mdwlog.Fields) {
	if fields == nil {
		fields = mdwlog.Fields{}
	}
	fields["requestID"] = e.RequestID
	if e.Principal != nil {
		fields["user"] = e.Principal.Username
	}
	e.Logger.Audit(action, fields)
}
