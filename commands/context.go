package commands

import (
	"context"
	"log/slog"
	"net/http"
	"strings"

	"emperror.dev/errors"
	"github.com/bwmarrin/discordgo"

	"github.com/tomasmach/fishie/cache"
	"github.com/tomasmach/fishie/config"
	"github.com/tomasmach/fishie/store"
)

// Context is the invocation of one command.
type Context struct {
	Session Session
	State   *discordgo.State
	Store   *store.Store
	Cache   *cache.Cache
	Media   Downloader
	HTTP    *http.Client
	Config  *config.Config
	Logger  *slog.Logger

	Message   *discordgo.Message
	Author    *discordgo.User
	GuildID   string
	ChannelID string

	Prefix  string
	Command *Command
	Invoked string
	// Rest is the raw text after the command (and subcommand) name; Args is
	// Rest split on whitespace.
	Rest string
	Args []string

	handler *Handler
}

func (h *Handler) newContext(m *discordgo.Message) *Context {
	return &Context{
		Session:   h.session,
		State:     h.state,
		Store:     h.store,
		Cache:     h.cache,
		Media:     h.media,
		HTTP:      h.http,
		Config:    h.cfg,
		Logger:    h.logger,
		Message:   m,
		Author:    m.Author,
		GuildID:   m.GuildID,
		ChannelID: m.ChannelID,
		handler:   h,
	}
}

func (c *Context) setRest(rest string) {
	c.Rest = strings.TrimSpace(rest)
	c.Args = strings.Fields(c.Rest)
}

// Arg returns the i-th argument or "".
func (c *Context) Arg(i int) string {
	if i < len(c.Args) {
		return c.Args[i]
	}
	return ""
}

var defaultMentions = &discordgo.MessageAllowedMentions{
	Parse: []discordgo.AllowedMentionType{discordgo.AllowedMentionTypeUsers},
}

// Send sends data to the invoking channel and tracks the result as a reply to
// the invoking message.
func (c *Context) Send(ctx context.Context, data *discordgo.MessageSend) (*discordgo.Message, error) {
	if data.AllowedMentions == nil {
		data.AllowedMentions = defaultMentions
	}
	msg, err := c.Session.ChannelMessageSendComplex(c.ChannelID, data, discordgo.WithContext(ctx))
	if err != nil {
		return nil, errors.Wrap(err, "send message")
	}
	c.handler.replies.Add(c.ChannelID, c.Message.ID, MessageRef{ChannelID: msg.ChannelID, MessageID: msg.ID})
	return msg, nil
}

// Reply sends content as a reply to the invoking message.
func (c *Context) Reply(ctx context.Context, content string) (*discordgo.Message, error) {
	return c.Send(ctx, &discordgo.MessageSend{Content: content, Reference: c.Message.SoftReference()})
}

func (c *Context) SendText(ctx context.Context, content string) (*discordgo.Message, error) {
	return c.Send(ctx, &discordgo.MessageSend{Content: content})
}

func (c *Context) SendEmbed(ctx context.Context, embed *discordgo.MessageEmbed) (*discordgo.Message, error) {
	return c.Send(ctx, &discordgo.MessageSend{Embeds: []*discordgo.MessageEmbed{embed}})
}

func (c *Context) SendFiles(ctx context.Context, content string, files ...*discordgo.File) (*discordgo.Message, error) {
	return c.Send(ctx, &discordgo.MessageSend{Content: content, Files: files})
}

// Paginate sends pages with navigation buttons.
func (c *Context) Paginate(ctx context.Context, pages []*discordgo.MessageEmbed) error {
	_, err := c.handler.pager.Send(ctx, c, pages)
	return err
}

// Typing shows the typing indicator. Failures are only logged.
func (c *Context) Typing(ctx context.Context) {
	if err := c.Session.ChannelTyping(c.ChannelID, discordgo.WithContext(ctx)); err != nil {
		c.Logger.Debug("typing indicator failed", "error", err)
	}
}

// React adds emoji to the invoking message. Failures are only logged.
func (c *Context) React(ctx context.Context, emoji string) {
	if err := c.Session.MessageReactionAdd(c.ChannelID, c.Message.ID, emoji, discordgo.WithContext(ctx)); err != nil {
		c.Logger.Debug("add reaction failed", "error", err)
	}
}

// IsOwner reports whether the author is the configured bot owner.
func (c *Context) IsOwner() bool {
	return c.Author.ID == c.Config.IDs.OwnerID
}

// BotID returns the bot's own user id, or "" before the gateway is ready.
func (c *Context) BotID() string {
	return c.handler.botID()
}

// Guild returns the invoking guild, from the state when cached.
func (c *Context) Guild(ctx context.Context) (*discordgo.Guild, error) {
	if c.GuildID == "" {
		return nil, errGuildOnly
	}
	if c.State != nil {
		if g, err := c.State.Guild(c.GuildID); err == nil {
			return g, nil
		}
	}
	g, err := c.Session.Guild(c.GuildID, discordgo.WithContext(ctx))
	if err != nil {
		return nil, errors.Wrap(err, "fetch guild")
	}
	return g, nil
}

// readState runs fn under the state's read lock, if there is a state.
func (c *Context) readState(fn func()) {
	if c.State != nil {
		c.State.RLock()
		defer c.State.RUnlock()
	}
	fn()
}
