package command

import (
	"context"
	"strconv"
	"strings"

	mdwerror "github.com/msto63/flatset/foundation/core/error"
	mdwlog "github.com/msto63/flatset/foundation/core/log"
	"github.com/msto63/flatset/foundation/utils/stringx"
	"github.com/msto63/flatset/internal/collection"
	"github.com/msto63/flatset/internal/flat"
)

type addMode int

const (
	addAlways addMode = iota
	addIfMax
	addIfMin
)

// addCommand inserts a record given as literal or JSON, or asks for it
// field by field when no argument is given
type addCommand struct {
	meta
	mode addMode
}

func newAdd() Command {
	return &addCommand{meta: meta{
		name:        "add",
		usage:       "add [record]",
		description: "add a new flat; without a record the fields are asked one by one",
		category:    CategoryModify,
		aliases:     []string{"insert"},
	}, mode: addAlways}
}

func newAddIfMax() Command {
	return &addCommand{meta: meta{
		name:        "add_if_max",
		usage:       "add_if_max [record]",
		description: "add a new flat if it is greater than every flat; flats order by id first, so a new flat always qualifies",
		category:    CategoryModify,
		aliases:     []string{"insert_if_max"},
	}, mode: addIfMax}
}

func newAddIfMin() Command {
	return &addCommand{meta: meta{
		name:        "add_if_min",
		usage:       "add_if_min [record]",
		description: "add a new flat if it is less than every flat; flats order by id first, so only an empty collection accepts one",
		category:    CategoryModify,
		aliases:     []string{"insert_if_min"},
	}, mode: addIfMin}
}

func (c *addCommand) Interactive(arg string) bool {
	return stringx.IsBlank(arg)
}

func (c *addCommand) Execute(ctx context.Context, env *Env, arg string) error {
	f, err := flat.ParseRecord(arg)
	if err != nil {
		return err
	}
	return c.insert(env, f)
}

func (c *addCommand) ExecuteInteractive(ctx context.Context, env *Env, arg string, in Input) error {
	if !c.Interactive(arg) {
		return c.Execute(ctx, env, arg)
	}
	f, err := collectRecord(env, in)
	if err != nil {
		return err
	}
	return c.insert(env, f)
}

func (c *addCommand) predicate() func(*flat.Flat, collection.View) bool {
	switch c.mode {
	case addIfMax:
		return func(candidate *flat.Flat, current collection.View) bool {
			m := current.Max()
			return m == nil || flat.Compare(candidate, m) > 0
		}
	case addIfMin:
		return func(candidate *flat.Flat, current collection.View) bool {
			m := current.Min()
			return m == nil || flat.Compare(candidate, m) < 0
		}
	}
	return nil
}

func (c *addCommand) insert(env *Env, f *flat.Flat) error {
	env.own(f)
	added, ok, err := env.Collection.InsertIf(f, c.predicate())
	if err != nil {
		return err
	}
	if !ok {
		bound := "greater than the maximum"
		if c.mode == addIfMin {
			bound = "less than the minimum"
		}
		env.Out.Printf("not added: flat is not %s", bound)
		return nil
	}

	env.audit("flat added", mdwlog.Fields{"command": c.name, "id": added.ID})
	env.Out.Success("added flat #%d", added.ID)
	return nil
}

type removeByIDCommand struct{ meta }

func newRemoveByID() Command {
	return &removeByIDCommand{meta{
		name:        "remove_by_id",
		usage:       "remove_by_id <id>",
		description: "remove the flat with the given id",
		category:    CategoryModify,
	}}
}

func (c *removeByIDCommand) Execute(ctx context.Context, env *Env, arg string) error {
	id, err := parseID(arg)
	if err != nil {
		return err
	}
	if _, err := env.Collection.RemoveByID(id, env.guard); err != nil {
		return err
	}
	env.audit("flat removed", mdwlog.Fields{"command": c.name, "id": id})
	env.Out.Success("removed flat #%d", id)
	return nil
}

type clearCommand struct{ meta }

func newClear() Command {
	return &clearCommand{meta{
		name:        "clear",
		usage:       "clear",
		description: "remove every flat you may modify",
		category:    CategoryModify,
	}}
}

func (c *clearCommand) Execute(ctx context.Context, env *Env, arg string) error {
	removed, skipped := env.Collection.Clear(env.CanModify)
	env.audit("collection cleared", mdwlog.Fields{"command": c.name, "removed": removed, "skipped": skipped})
	env.Out.Success("removed %d flats%s", removed, skippedNote(skipped))
	return nil
}

type removeGreaterCommand struct{ meta }

func newRemoveGreater() Command {
	return &removeGreaterCommand{meta{
		name:        "remove_greater",
		usage:       "remove_greater <id|record>",
		description: "remove every flat greater than the flat with the given id; a record gets the next id, so it removes nothing",
		category:    CategoryModify,
	}}
}

func (c *removeGreaterCommand) Execute(ctx context.Context, env *Env, arg string) error {
	arg = strings.TrimSpace(arg)
	if arg == "" {
		return mdwerror.InvalidInput("usage: %s", c.usage)
	}

	var ref *flat.Flat
	if id, err := strconv.ParseInt(arg, 10, 64); err == nil {
		found, ok := env.Collection.Get(id)
		if !ok {
			return mdwerror.NotFound("no flat with id %d", id).WithDetail("id", id)
		}
		ref = found
	} else {
		f, err := flat.ParseRecord(arg)
		if err != nil {
			return err
		}
		env.own(f)
		ref = env.Collection.Tentative(f)
	}

	removed, skipped := env.Collection.RemoveIf(
		func(f *flat.Flat) bool { return flat.Compare(f, ref) > 0 },
		env.CanModify,
	)
	env.audit("flats removed", mdwlog.Fields{"command": c.name, "ids": idList(removed), "skipped": skipped})
	env.Out.Success("removed %d flats greater than #%d%s", len(removed), ref.ID, skippedNote(skipped))
	return nil
}

// updateCommand replaces a record from a literal, patches it from a JSON
// object, or asks for every field when only the id is given
type updateCommand struct{ meta }

func newUpdate(name string) Command {
	return &updateCommand{meta{
		name:        name,
		usage:       name + " <id> [record|json]",
		description: "update the flat with the given id; without a payload the fields are asked one by one",
		category:    CategoryModify,
	}}
}

func (c *updateCommand) Interactive(arg string) bool {
	_, payload := splitID(arg)
	return strings.TrimSpace(arg) != "" && payload == ""
}

func (c *updateCommand) Execute(ctx context.Context, env *Env, arg string) error {
	rawID, payload := splitID(arg)
	id, err := parseID(rawID)
	if err != nil {
		return err
	}
	if payload == "" {
		return mdwerror.InvalidInput("usage: %s", c.usage)
	}

	var replacement *flat.Flat
	if !flat.IsJSONObject(payload) {
		if replacement, err = flat.ParseRecord(payload); err != nil {
			return err
		}
	}

	_, err = env.Collection.Update(id, func(cur *flat.Flat) (*flat.Flat, error) {
		if err := env.guard(cur); err != nil {
			return nil, err
		}
		if replacement != nil {
			return flat.Replace(cur, replacement), nil
		}
		return flat.ApplyPatch(cur, payload)
	})
	if err != nil {
		return err
	}

	env.audit("flat updated", mdwlog.Fields{"command": c.name, "id": id})
	env.Out.Success("updated flat #%d", id)
	return nil
}

func (c *updateCommand) ExecuteInteractive(ctx context.Context, env *Env, arg string, in Input) error {
	if !c.Interactive(arg) {
		return c.Execute(ctx, env, arg)
	}
	id, err := parseID(arg)
	if err != nil {
		return err
	}
	cur, ok := env.Collection.Get(id)
	if !ok {
		return mdwerror.NotFound("no flat with id %d", id).WithDetail("id", id)
	}
	if err := env.guard(cur); err != nil {
		return err
	}

	edited, err := editRecord(env, in, cur)
	if err != nil {
		return err
	}
	_, err = env.Collection.Update(id, func(latest *flat.Flat) (*flat.Flat, error) {
		if err := env.guard(latest); err != nil {
			return nil, err
		}
		return flat.Replace(latest, edited), nil
	})
	if err != nil {
		return err
	}

	env.audit("flat updated", mdwlog.Fields{"command": c.name, "id": id})
	env.Out.Success("updated flat #%d", id)
	return nil
}

func splitID(arg string) (id, rest string) {
	arg = strings.TrimSpace(arg)
	i := strings.IndexAny(arg, " \t")
	if i < 0 {
		return arg, ""
	}
	return arg[:i], strings.TrimSpace(arg[i+1:])
}

func parseID(raw string) (int64, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 0, mdwerror.InvalidInput("an id is required")
	}
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, mdwerror.InvalidInput("%q is not a valid id", raw).WithDetail("field", "id")
	}
	return id, nil
}

func skippedNote(skipped int) string {
	if skipped == 0 {
		return ""
	}
	return ", " + strconv.Itoa(skipped) + " skipped (owned by other users)"
}
