package commands

import (
	"context"
	"regexp"
	"strings"

	"github.com/bwmarrin/discordgo"
)

var (
	userMentionRe    = regexp.MustCompile(`^<@!?(\d{15,21})>$`)
	channelMentionRe = regexp.MustCompile(`^<#(\d{15,21})>$`)
	snowflakeRe      = regexp.MustCompile(`^\d{15,21}$`)
)

// mentionedID extracts the id from a raw id or a mention matched by re.
func mentionedID(arg string, re *regexp.Regexp) (string, bool) {
	if m := re.FindStringSubmatch(arg); m != nil {
		return m[1], true
	}
	if snowflakeRe.MatchString(arg) {
		return arg, true
	}
	return "", false
}

// TargetUser resolves arg (mention, id or name of a guild member) to a user.
// An empty arg is the author.
func (c *Context) TargetUser(ctx context.Context, arg string) (*discordgo.User, error) {
	if arg == "" {
		return c.Author, nil
	}
	if id, ok := mentionedID(arg, userMentionRe); ok {
		if c.GuildID != "" && c.State != nil {
			if m, err := c.State.Member(c.GuildID, id); err == nil && m.User != nil {
				return m.User, nil
			}
		}
		u, err := c.Session.User(id, discordgo.WithContext(ctx))
		if err != nil {
			return nil, Userf("User \"%s\" not found.", arg)
		}
		return u, nil
	}
	if m := c.findMember(arg); m != nil {
		return m.User, nil
	}
	return nil, Userf("User \"%s\" not found.", arg)
}

// TargetMember resolves arg to a member of the invoking guild. An empty arg
// is the author.
func (c *Context) TargetMember(ctx context.Context, arg string) (*discordgo.Member, error) {
	if c.GuildID == "" {
		return nil, errGuildOnly
	}
	id := c.Author.ID
	if arg != "" {
		var ok bool
		if id, ok = mentionedID(arg, userMentionRe); !ok {
			if m := c.findMember(arg); m != nil {
				return m, nil
			}
			return nil, Userf("Member \"%s\" not found.", arg)
		}
	}
	if c.State != nil {
		if m, err := c.State.Member(c.GuildID, id); err == nil && m.User != nil {
			return m, nil
		}
	}
	m, err := c.Session.GuildMember(c.GuildID, id, discordgo.WithContext(ctx))
	if err != nil {
		return nil, Userf("Member \"%s\" not found.", arg)
	}
	if m.GuildID == "" {
		m.GuildID = c.GuildID
	}
	return m, nil
}

// findMember searches the cached members of the invoking guild by username,
// global name or nickname, case-insensitively.
func (c *Context) findMember(name string) *discordgo.Member {
	if c.GuildID == "" || c.State == nil {
		return nil
	}
	g, err := c.State.Guild(c.GuildID)
	if err != nil {
		return nil
	}
	c.State.RLock()
	defer c.State.RUnlock()
	for _, m := range g.Members {
		if m.User == nil {
			continue
		}
		if strings.EqualFold(m.User.Username, name) || strings.EqualFold(m.User.GlobalName, name) ||
			strings.EqualFold(m.Nick, name) || strings.EqualFold(m.User.String(), name) {
			return m
		}
	}
	return nil
}

// TargetChannel resolves arg (mention, id or name) to a channel. An empty arg
// is the invoking channel.
func (c *Context) TargetChannel(ctx context.Context, arg string) (*discordgo.Channel, error) {
	id := c.ChannelID
	if arg != "" {
		var ok bool
		if id, ok = mentionedID(arg, channelMentionRe); !ok {
			if ch := c.findChannel(arg); ch != nil {
				return ch, nil
			}
			return nil, Userf("Channel \"%s\" not found.", arg)
		}
	}
	if c.State != nil {
		if ch, err := c.State.Channel(id); err == nil {
			return ch, nil
		}
	}
	ch, err := c.Session.Channel(id, discordgo.WithContext(ctx))
	if err != nil {
		return nil, Userf("Channel \"%s\" not found.", arg)
	}
	return ch, nil
}

func (c *Context) findChannel(name string) *discordgo.Channel {
	if c.GuildID == "" || c.State == nil {
		return nil
	}
	g, err := c.State.Guild(c.GuildID)
	if err != nil {
		return nil
	}
	name = strings.TrimPrefix(name, "#")
	c.State.RLock()
	defer c.State.RUnlock()
	for _, ch := range g.Channels {
		if strings.EqualFold(ch.Name, name) {
			return ch
		}
	}
	return nil
}

// parseFlags separates "-name value" pairs from positional arguments. Only
// flags listed in defaults are recognized; defaults fill the missing ones.
func parseFlags(args []string, defaults map[string]string) ([]string, map[string]string) {
	flags := make(map[string]string, len(defaults))
	for k, v := range defaults {
		flags[k] = v
	}
	var positional []string
	for i := 0; i < len(args); i++ {
		name, isFlag := strings.CutPrefix(strings.ToLower(args[i]), "-")
		name = strings.TrimPrefix(name, "-")
		if _, known := defaults[name]; isFlag && known && i+1 < len(args) {
			flags[name] = args[i+1]
			i++
			continue
		}
		positional = append(positional, args[i])
	}
	return positional, flags
}
