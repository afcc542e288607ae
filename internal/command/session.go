package command

import (
	"context"
	"strings"

	mdwerror "github.com/msto63/flatset/foundation/core/error"
	mdwlog "github.com/msto63/flatset/foundation/core/log"
	"github.com/msto63/flatset/internal/store"
)

type saveCommand struct{ meta }

func newSave() Command {
	return &saveCommand{meta{
		name:        "save",
		usage:       "save [file]",
		description: "save the collection to the configured store, or as a snapshot to file (.json, .yaml, .cbor)",
		category:    CategoryPersistence,
	}}
}

func (c *saveCommand) Execute(ctx context.Context, env *Env, arg string) error {
	dest := env.Store
	if path := strings.TrimSpace(arg); path != "" {
		dest = store.NewFileStore(path, env.Logger)
	}
	if dest == nil {
		return mdwerror.New("no store configured; give a destination file").WithCode(mdwerror.CodeConfigError)
	}

	flats := env.Collection.Snapshot()
	if err := dest.Save(ctx, flats); err != nil {
		return err
	}
	env.audit("collection saved", mdwlog.Fields{"command": c.name, "target": dest.Describe(), "count": len(flats)})
	env.Out.Success("saved %d flats to %s", len(flats), dest.Describe())
	return nil
}

// exitCommand ends the current input loop. It runs inline so commands read
// after it are never dispatched.
type exitCommand struct {
	meta
	logout bool
}

func newExit() Command {
	return &exitCommand{meta: meta{
		name:        "exit",
		usage:       "exit",
		description: "end the session (or the current script) without saving",
		category:    CategorySession,
	}}
}

func newLogout() Command {
	return &exitCommand{meta: meta{
		name:        "logout",
		usage:       "logout",
		description: "log out and end the session",
		category:    CategorySession,
	}, logout: true}
}

func (c *exitCommand) Interactive(arg string) bool {
	return true
}

func (c *exitCommand) Execute(ctx context.Context, env *Env, arg string) error {
	if c.logout {
		if env.Principal != nil {
			env.audit("user logged out", mdwlog.Fields{"command": c.name})
			env.Out.Printf("user %s logged out", env.Principal.Username)
		} else {
			env.Out.Print("not logged in")
		}
	}
	env.Session.Stop()
	return nil
}

func (c *exitCommand) ExecuteInteractive(ctx context.Context, env *Env, arg string, in Input) error {
	return c.Execute(ctx, env, arg)
}

// Builtins returns every command except execute_script, which needs the
// dispatcher
func Builtins() []Command {
	return []Command{
		newHelp(),
		newInfo(),
		newShow(),
		newAdd(),
		newUpdate("update"),
		newUpdate("update_by_id"),
		newRemoveByID(),
		newClear(),
		newSave(),
		newAddIfMax(),
		newAddIfMin(),
		newRemoveGreater(),
		newPrintUniqueHouse(),
		newPrintRooms(),
		newPrintHouseDesc(),
		newExit(),
		newLogout(),
	}
}
