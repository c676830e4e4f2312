package commands

import (
	"context"
	"slices"
	"strings"
)

// Command is a prefix command. A command with Subcommands dispatches to the
// subcommand named by its first argument and falls back to Run otherwise.
type Command struct {
	Name        string
	Aliases     []string
	Usage       string
	Help        string
	Group       string
	GuildOnly   bool
	OwnerOnly   bool
	Hidden      bool
	Permissions int64
	// Cooldown limits invocations per guild member when set.
	Cooldown    *Cooldowns
	Subcommands []*Command
	Run         func(ctx context.Context, c *Context) error
}

func (cmd *Command) matches(name string) bool {
	return cmd.Name == name || slices.Contains(cmd.Aliases, name)
}

// sub returns the subcommand called name.
func (cmd *Command) sub(name string) *Command {
	name = strings.ToLower(name)
	for _, s := range cmd.Subcommands {
		if s.matches(name) {
			return s
		}
	}
	return nil
}

// Registry maps names and aliases to commands.
type Registry struct {
	ordered []*Command
	byName  map[string]*Command
}

func NewRegistry() *Registry {
	return &Registry{byName: make(map[string]*Command)}
}

// Add registers cmds. A later command never shadows an earlier name or alias.
func (r *Registry) Add(cmds ...*Command) {
	for _, cmd := range cmds {
		r.ordered = append(r.ordered, cmd)
		for _, name := range append([]string{cmd.Name}, cmd.Aliases...) {
			if _, taken := r.byName[name]; !taken {
				r.byName[name] = cmd
			}
		}
	}
}

// Lookup finds a command by name or alias, case-insensitively.
func (r *Registry) Lookup(name string) (*Command, bool) {
	cmd, ok := r.byName[strings.ToLower(name)]
	return cmd, ok
}

// All returns the registered commands in registration order.
func (r *Registry) All() []*Command {
	return slices.Clone(r.ordered)
}
