package commands

import (
	"context"
	"strings"

	"github.com/bwmarrin/discordgo"

	"github.com/tomasmach/fishie/media"
)

const checkMark = "✅"

func ownerCommands() []*Command {
	return []*Command{
		{
			Name: "reply", Group: "Owner", OwnerOnly: true, Hidden: true,
			Usage: "<message link|id> [channel] <text>",
			Help:  "Replies to a message as the bot.",
			Run:   runOwnerReply,
		},
		{
			Name: "message", Aliases: []string{"send", "msg", "dm"}, Group: "Owner", OwnerOnly: true, Hidden: true,
			Usage: "[channel|user] <text>",
			Help:  "Sends a message as the bot.",
			Run:   runOwnerMessage,
		},
	}
}

// dropWords returns s without its first n whitespace separated words.
func dropWords(s string, n int) string {
	for range n {
		_, s = splitCommand(s)
	}
	return s
}

func runOwnerReply(ctx context.Context, c *Context) error {
	if len(c.Args) < 2 {
		return Userf("Usage: `%sreply <message link|id> [channel] <text>`", c.Prefix)
	}

	channelID, messageID, used := c.ChannelID, "", 1
	if link, ok := media.ParseMessageLink(c.Args[0]); ok {
		channelID, messageID = link.ChannelID, link.MessageID
	} else if snowflakeRe.MatchString(c.Args[0]) {
		messageID = c.Args[0]
		if id, ok := mentionedID(c.Args[1], channelMentionRe); ok && len(c.Args) > 2 {
			channelID = id
			used = 2
		}
	} else {
		return Userf("`%s` is not a message link or id.", c.Args[0])
	}

	text := dropWords(c.Rest, used)
	if text == "" {
		return Userf("Give me something to say.")
	}
	msg, err := c.Session.ChannelMessage(channelID, messageID, discordgo.WithContext(ctx))
	if err != nil {
		return Userf("I could not find that message.")
	}
	_, err = c.Session.ChannelMessageSendComplex(channelID, &discordgo.MessageSend{
		Content:   text,
		Reference: msg.SoftReference(),
	}, discordgo.WithContext(ctx))
	if err != nil {
		return err
	}
	c.React(ctx, checkMark)
	return nil
}

func runOwnerMessage(ctx context.Context, c *Context) error {
	if c.Rest == "" {
		return Userf("Give me something to say.")
	}

	target, text := c.ChannelID, c.Rest
	if id, ok := mentionedID(c.Arg(0), channelMentionRe); ok && len(c.Args) > 1 {
		if ch, err := c.Session.Channel(id, discordgo.WithContext(ctx)); err == nil {
			target, text = ch.ID, dropWords(c.Rest, 1)
		} else if dm, err := c.Session.UserChannelCreate(id, discordgo.WithContext(ctx)); err == nil {
			target, text = dm.ID, dropWords(c.Rest, 1)
		}
	} else if id, ok := mentionedID(c.Arg(0), userMentionRe); ok && len(c.Args) > 1 {
		dm, err := c.Session.UserChannelCreate(id, discordgo.WithContext(ctx))
		if err != nil {
			return err
		}
		target, text = dm.ID, dropWords(c.Rest, 1)
	}

	_, err := c.Session.ChannelMessageSendComplex(target, &discordgo.MessageSend{
		Content:         strings.TrimSpace(text),
		AllowedMentions: defaultMentions,
	}, discordgo.WithContext(ctx))
	if err != nil {
		return err
	}
	c.React(ctx, checkMark)
	return nil
}
