package commands

import (
	"context"
	"fmt"
	"slices"
	"strings"

	"github.com/bwmarrin/discordgo"

	"github.com/tomasmach/fishie/store"
)

const maxPrefixLength = 25

// Features is every opt-out-able history feature.
var Features = []string{"avatar", "username", "display", "nickname", "status", "joins"}

func settingsCommands() []*Command {
	return []*Command{
		{
			Name: "prefix", Aliases: []string{"prefixes"}, Group: "Settings", GuildOnly: true,
			Help: "Prefixes of this server.",
			Run:  runPrefixes,
			Subcommands: []*Command{
				{Name: "add", Aliases: []string{"a"}, Usage: "<prefix>", Permissions: discordgo.PermissionManageGuild,
					Help: "Adds a prefix.", Run: runPrefixAdd},
				{Name: "remove", Aliases: []string{"r", "delete", "del"}, Usage: "<prefix>", Permissions: discordgo.PermissionManageGuild,
					Help: "Removes a prefix.", Run: runPrefixRemove},
			},
		},
		{
			Name: "optout", Group: "Settings", Usage: "<feature>",
			Help: "Stops recording a feature for you.",
			Run:  optOutRunner(store.UserScope, true),
		},
		{
			Name: "optin", Group: "Settings", Usage: "<feature>",
			Help: "Resumes recording a feature for you.",
			Run:  optOutRunner(store.UserScope, false),
		},
		{
			Name: "guildoptout", Group: "Settings", Usage: "<feature>", GuildOnly: true,
			Permissions: discordgo.PermissionManageGuild,
			Help:        "Stops recording a feature in this server.",
			Run:         optOutRunner(store.GuildScope, true),
		},
		{
			Name: "guildoptin", Group: "Settings", Usage: "<feature>", GuildOnly: true,
			Permissions: discordgo.PermissionManageGuild,
			Help:        "Resumes recording a feature in this server.",
			Run:         optOutRunner(store.GuildScope, false),
		},
		{
			Name: "autodownload", Aliases: []string{"adl"}, Group: "Settings", Usage: "<#channel>", GuildOnly: true,
			Permissions: discordgo.PermissionManageChannels,
			Help:        "Downloads every video link posted in a channel.",
			Run:         runAutoDownloadSet,
			Subcommands: []*Command{
				{Name: "remove", Aliases: []string{"r", "off"}, Help: "Turns auto download off.", Run: runAutoDownloadRemove},
			},
		},
		{
			Name: "pinboard", Aliases: []string{"pb"}, Group: "Settings", GuildOnly: true,
			Help: "Mirrors pinned messages into one channel.",
			Run:  runPinboard,
			Subcommands: []*Command{
				{Name: "set", Usage: "<#channel>", Permissions: discordgo.PermissionManageChannels,
					Help: "Uses an existing channel as the Pinboard.", Run: runPinboardSet},
				{Name: "create", Permissions: discordgo.PermissionManageChannels,
					Help: "Creates a channel for the Pinboard.", Run: runPinboardCreate},
				{Name: "remove", Aliases: []string{"unlink"}, Permissions: discordgo.PermissionManageChannels,
					Help: "Stops mirroring pins.", Run: runPinboardRemove},
			},
		},
		{
			Name: "poketwo", Group: "Settings", GuildOnly: true,
			Permissions: discordgo.PermissionManageGuild,
			Help:        "Toggles Poketwo hint solving.",
			Run:         runPoketwoToggle,
		},
		{
			Name: "autoreactions", Aliases: []string{"autoreact"}, Group: "Settings", GuildOnly: true,
			Permissions: discordgo.PermissionManageGuild,
			Help:        "Toggles up and down votes on media posts.",
			Run:         runAutoReactionsToggle,
		},
	}
}

func runPrefixes(ctx context.Context, c *Context) error {
	prefixes := append([]string{c.handler.defaultPrefix}, c.Cache.Prefixes(c.GuildID)...)
	lines := make([]string, len(prefixes))
	for i, p := range prefixes {
		lines[i] = fmt.Sprintf("%d. `%s`", i+1, p)
	}
	_, err := c.SendEmbed(ctx, &discordgo.MessageEmbed{
		Title:       "Prefixes",
		Description: strings.Join(lines, "\n"),
		Color:       embedColor,
		Footer:      &discordgo.MessageEmbedFooter{Text: "You can also mention me."},
	})
	return err
}

func runPrefixAdd(ctx context.Context, c *Context) error {
	p := c.Rest
	switch {
	case p == "":
		return Userf("Give me a prefix to add.")
	case len(p) > maxPrefixLength:
		return Userf("Prefixes can be at most %d characters long.", maxPrefixLength)
	case strings.EqualFold(p, c.handler.defaultPrefix) || slices.Contains(c.Cache.Prefixes(c.GuildID), p):
		return Userf("`%s` is already a prefix.", p)
	}
	if err := c.Store.AddPrefix(ctx, c.GuildID, p); err != nil {
		return err
	}
	c.Cache.AddPrefix(c.GuildID, p)
	_, err := c.Reply(ctx, fmt.Sprintf("Added `%s` as a prefix.", p))
	return err
}

func runPrefixRemove(ctx context.Context, c *Context) error {
	p := c.Rest
	if !slices.Contains(c.Cache.Prefixes(c.GuildID), p) {
		return Userf("`%s` is not a prefix of this server.", p)
	}
	if err := c.Store.RemovePrefix(ctx, c.GuildID, p); err != nil {
		return err
	}
	c.Cache.RemovePrefix(c.GuildID, p)
	_, err := c.Reply(ctx, fmt.Sprintf("Removed the prefix `%s`.", p))
	return err
}

// optOutRunner builds the opt-out (out=true) or opt-in command for a scope.
func optOutRunner(scope store.Scope, out bool) func(context.Context, *Context) error {
	return func(ctx context.Context, c *Context) error {
		subject, who := c.Author.ID, "You have"
		if scope == store.GuildScope {
			subject, who = c.GuildID, "This server has"
		}

		feature := strings.ToLower(c.Arg(0))
		if feature == "" {
			current := c.Cache.OptedOut(subject)
			if len(current) == 0 {
				current = []string{"nothing"}
			}
			_, err := c.Reply(ctx, fmt.Sprintf("%s opted out of: %s.\nFeatures: %s.",
				who, humanJoin(current, "and"), humanJoin(Features, "and")))
			return err
		}
		if !slices.Contains(Features, feature) {
			return Userf("`%s` is not a feature. Pick one of %s.", feature, humanJoin(Features, "or"))
		}

		already := c.Cache.IsOptedOut(subject, feature)
		if out {
			if already {
				return Userf("%s already opted out of %s.", who, feature)
			}
			if err := c.Store.AddOptOut(ctx, scope, subject, feature); err != nil {
				return err
			}
			c.Cache.AddOptOut(subject, feature)
			_, err := c.Reply(ctx, fmt.Sprintf("%s opted out of %s logging.", who, feature))
			return err
		}

		if !already {
			return Userf("%s not opted out of %s.", who, feature)
		}
		if err := c.Store.RemoveOptOut(ctx, scope, subject, feature); err != nil {
			return err
		}
		for c.Cache.IsOptedOut(subject, feature) {
			c.Cache.RemoveOptOut(subject, feature)
		}
		_, err := c.Reply(ctx, fmt.Sprintf("%s opted back into %s logging.", who, feature))
		return err
	}
}

func runAutoDownloadSet(ctx context.Context, c *Context) error {
	if c.Rest == "" {
		gs, err := c.Store.GuildSettings(ctx, c.GuildID)
		if err != nil {
			return err
		}
		if gs.AutoDownload == "" {
			return Userf("Auto download is not set up here. Use `%sautodownload <#channel>`.", c.Prefix)
		}
		_, err = c.Reply(ctx, fmt.Sprintf("Auto download channel is <#%s>.", gs.AutoDownload))
		return err
	}

	ch, err := c.TargetChannel(ctx, c.Rest)
	if err != nil {
		return err
	}
	if ch.GuildID != "" && ch.GuildID != c.GuildID {
		return Userf("That channel is not in this server.")
	}
	gs, err := c.Store.GuildSettings(ctx, c.GuildID)
	if err != nil {
		return err
	}
	if err := c.Store.SetAutoDownload(ctx, c.GuildID, ch.ID); err != nil {
		return err
	}
	if gs.AutoDownload != "" {
		c.Cache.RemoveADL(gs.AutoDownload)
	}
	c.Cache.AddADL(ch.ID)
	_, err = c.Reply(ctx, fmt.Sprintf("Auto download channel set to <#%s>.", ch.ID))
	return err
}

func runAutoDownloadRemove(ctx context.Context, c *Context) error {
	gs, err := c.Store.GuildSettings(ctx, c.GuildID)
	if err != nil {
		return err
	}
	if gs.AutoDownload == "" {
		return Userf("Auto download is not set up in this server.")
	}
	if err := c.Store.SetAutoDownload(ctx, c.GuildID, ""); err != nil {
		return err
	}
	c.Cache.RemoveADL(gs.AutoDownload)
	_, err = c.Reply(ctx, fmt.Sprintf("Removed auto download from <#%s>.", gs.AutoDownload))
	return err
}

const pinboardAbout = "Pinboard mirrors every message pinned in this server into one channel, " +
	"so pins are never lost to the 50 pin limit. Once a pin is mirrored the oldest pin of the " +
	"Pinboard channel is removed when it has more than 40."

func runPinboard(ctx context.Context, c *Context) error {
	status := fmt.Sprintf("Not set up. Use `%spinboard create` or `%spinboard set <#channel>`.", c.Prefix, c.Prefix)
	if id, ok := c.Cache.Pinboard(c.GuildID); ok {
		status = "<#" + id + ">"
	}
	_, err := c.SendEmbed(ctx, &discordgo.MessageEmbed{
		Title:       "What is Pinboard?",
		Description: pinboardAbout,
		Color:       embedColor,
		Fields:      []*discordgo.MessageEmbedField{{Name: "Channel", Value: status}},
	})
	return err
}

func (c *Context) linkPinboard(ctx context.Context, channelID string) error {
	if err := c.Store.SetPinboard(ctx, c.GuildID, channelID); err != nil {
		return err
	}
	c.Cache.AddPinboard(c.GuildID, channelID)
	return nil
}

func runPinboardSet(ctx context.Context, c *Context) error {
	if c.Rest == "" {
		return Userf("Give me a channel to use as the Pinboard.")
	}
	ch, err := c.TargetChannel(ctx, c.Rest)
	if err != nil {
		return err
	}
	if ch.Type != discordgo.ChannelTypeGuildText {
		return Userf("The Pinboard has to be a text channel.")
	}
	if err := c.linkPinboard(ctx, ch.ID); err != nil {
		return err
	}
	_, err = c.Reply(ctx, "Pinboard set to: <#"+ch.ID+">")
	return err
}

func runPinboardCreate(ctx context.Context, c *Context) error {
	ch, err := c.Session.GuildChannelCreate(c.GuildID, "pinboard", discordgo.ChannelTypeGuildText, discordgo.WithContext(ctx))
	if err != nil {
		return err
	}
	if err := c.linkPinboard(ctx, ch.ID); err != nil {
		return err
	}
	_, err = c.Reply(ctx, "Channel created and Pinboard set to: <#"+ch.ID+">")
	return err
}

func runPinboardRemove(ctx context.Context, c *Context) error {
	id, ok := c.Cache.Pinboard(c.GuildID)
	if !ok {
		return Userf("This server has no Pinboard.")
	}
	if err := c.Store.SetPinboard(ctx, c.GuildID, ""); err != nil {
		return err
	}
	c.Cache.RemovePinboard(c.GuildID, id)
	_, err := c.Reply(ctx, "Unlinked Pinboard from: <#"+id+">. New pins will no longer be added.")
	return err
}

func runPoketwoToggle(ctx context.Context, c *Context) error {
	enable := !c.Cache.IsPoketwo(c.GuildID)
	if err := c.Store.SetPoketwo(ctx, c.GuildID, enable); err != nil {
		return err
	}
	if enable {
		c.Cache.AddPoketwo(c.GuildID)
	} else {
		c.Cache.RemovePoketwo(c.GuildID)
	}
	_, err := c.Reply(ctx, "Poketwo hint solving is now "+onOff(enable)+".")
	return err
}

func runAutoReactionsToggle(ctx context.Context, c *Context) error {
	enable := !c.Cache.IsReactionGuild(c.GuildID)
	if err := c.Store.SetAutoReactions(ctx, c.GuildID, enable); err != nil {
		return err
	}
	if enable {
		c.Cache.AddReactionGuild(c.GuildID)
	} else {
		c.Cache.RemoveReactionGuild(c.GuildID)
	}
	_, err := c.Reply(ctx, "Auto reactions are now "+onOff(enable)+".")
	return err
}

func onOff(b bool) string {
	if b {
		return "enabled"
	}
	return "disabled"
}
