package command

import (
	"strings"

	mdwerror "github.com/msto63/flatset/foundation/core/error"
	"github.com/msto63/flatset/foundation/utils/stringx"
)

// Registry maps case-insensitive names and aliases to commands. It is
// immutable once built and safe for concurrent lookups.
type Registry struct {
	byName map[string]Command
	order  []Command
}

// NewRegistry registers cmds and their aliases. Blank or duplicate names
// fail.
func NewRegistry(cmds ...Command) (*Registry, error) {
	r := &Registry{byName: make(map[string]Command, len(cmds))}
	for _, cmd := range cmds {
		if cmd == nil {
			return nil, mdwerror.New("command must not be nil").WithCode(mdwerror.CodeInternal)
		}
		names := []string{cmd.Name()}
		if a, ok := cmd.(Aliased); ok {
			names = append(names, a.Aliases()...)
		}
		for _, name := range names {
			if err := r.add(name, cmd); err != nil {
				return nil, err
			}
		}
		r.order = append(r.order, cmd)
	}
	return r, nil
}

func (r *Registry) add(name string, cmd Command) error {
	if stringx.IsBlank(name) {
		return mdwerror.New("command name cannot be empty").WithCode(mdwerror.CodeInternal)
	}
	key := strings.ToLower(strings.TrimSpace(name))
	if _, exists := r.byName[key]; exists {
		return mdwerror.Newf("command %s already registered", key).
			WithCode(mdwerror.CodeDuplicateEntry).WithDetail("command", key)
	}
	r.byName[key] = cmd
	return nil
}

// Lookup finds a command by name or alias
func (r *Registry) Lookup(name string) (Command, bool) {
	cmd, ok := r.byName[strings.ToLower(strings.TrimSpace(name))]
	return cmd, ok
}

// Commands returns the registered commands in registration order, without
// alias duplicates
func (r *Registry) Commands() []Command {
	out := make([]Command, len(r.order))
	copy(out, r.order)
	return out
}
