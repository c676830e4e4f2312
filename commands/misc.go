package commands

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/bwmarrin/discordgo"
)

const goldColor = 0xF1C40F

func miscCommands(r *Registry) []*Command {
	return []*Command{
		{
			Name: "ping", Group: "Misc",
			Help: "Checks that the bot is alive.",
			Run:  runPing,
		},
		{
			Name: "help", Aliases: []string{"h", "commands"}, Group: "Misc", Usage: "[command]",
			Help: "Lists commands, or explains one.",
			Run: func(ctx context.Context, c *Context) error {
				return runHelp(ctx, c, r)
			},
		},
		{
			Name: "cast", Aliases: []string{"fish"}, Group: "Fishing", OwnerOnly: true,
			Help: "Casts the mythic fishing rod.",
			Run:  runCast,
		},
	}
}

func runPing(ctx context.Context, c *Context) error {
	latency := time.Since(c.Message.Timestamp)
	_, err := c.Reply(ctx, fmt.Sprintf("Pong! `%dms`", latency.Milliseconds()))
	return err
}

func commandLine(prefix string, cmd *Command) string {
	line := "`" + prefix + cmd.Name
	if cmd.Usage != "" {
		line += " " + cmd.Usage
	}
	return line + "`"
}

func runHelp(ctx context.Context, c *Context, r *Registry) error {
	if name := c.Arg(0); name != "" {
		cmd, ok := r.Lookup(name)
		if !ok || cmd.Hidden && !c.IsOwner() {
			return Userf("No command called \"%s\" found.", name)
		}
		e := &discordgo.MessageEmbed{
			Title:       commandLine(c.Prefix, cmd),
			Description: cmd.Help,
			Color:       embedColor,
		}
		if len(cmd.Aliases) > 0 {
			e.Fields = append(e.Fields, &discordgo.MessageEmbedField{Name: "Aliases", Value: strings.Join(cmd.Aliases, ", ")})
		}
		if len(cmd.Subcommands) > 0 {
			lines := make([]string, 0, len(cmd.Subcommands))
			for _, sub := range cmd.Subcommands {
				if sub.Hidden && !c.IsOwner() {
					continue
				}
				lines = append(lines, commandLine(c.Prefix+cmd.Name+" ", sub)+" "+sub.Help)
			}
			e.Fields = append(e.Fields, &discordgo.MessageEmbedField{Name: "Subcommands", Value: strings.Join(lines, "\n")})
		}
		_, err := c.SendEmbed(ctx, e)
		return err
	}

	var groups []string
	byGroup := map[string][]string{}
	for _, cmd := range r.All() {
		if cmd.Hidden || cmd.OwnerOnly && !c.IsOwner() {
			continue
		}
		if _, seen := byGroup[cmd.Group]; !seen {
			groups = append(groups, cmd.Group)
		}
		byGroup[cmd.Group] = append(byGroup[cmd.Group], "`"+cmd.Name+"`")
	}
	e := &discordgo.MessageEmbed{
		Title:  "Commands",
		Color:  embedColor,
		Footer: &discordgo.MessageEmbedFooter{Text: fmt.Sprintf("Use %shelp <command> for more info.", c.Prefix)},
	}
	for _, g := range groups {
		e.Fields = append(e.Fields, &discordgo.MessageEmbedField{Name: g, Value: strings.Join(byGroup[g], ", ")})
	}
	_, err := c.SendEmbed(ctx, e)
	return err
}

func runCast(ctx context.Context, c *Context) error {
	pole, fish, ok := c.handler.pond.Cast("mythic")
	text := fmt.Sprintf("You cast your %s Fishing Rod and got nothing!", pole.Name)
	if ok {
		text = fmt.Sprintf("You cast your %s Fishing Rod and got a %s fish!", pole.Name, fish.Name)
	}
	_, err := c.SendEmbed(ctx, &discordgo.MessageEmbed{Description: text, Color: goldColor})
	return err
}
