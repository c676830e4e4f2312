// Package commands implements prefix resolution, the command registry and
// every text command of the bot.
package commands

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"emperror.dev/errors"
	"github.com/bwmarrin/discordgo"

	"github.com/tomasmach/fishie/cache"
	"github.com/tomasmach/fishie/config"
	"github.com/tomasmach/fishie/discorderr"
	"github.com/tomasmach/fishie/fishing"
	"github.com/tomasmach/fishie/media"
	"github.com/tomasmach/fishie/metrics"
	"github.com/tomasmach/fishie/store"
)

// Options wires a Handler to its dependencies.
type Options struct {
	Session  Session
	State    *discordgo.State
	Store    *store.Store
	Cache    *cache.Cache
	Media    Downloader
	HTTP     *http.Client
	Config   *config.Config
	Reporter Reporter
	Logger   *slog.Logger
	Pond     *fishing.Pond
	Testing  bool
	Started  time.Time
}

// Handler parses messages into command invocations and runs them.
type Handler struct {
	session  Session
	state    *discordgo.State
	store    *store.Store
	cache    *cache.Cache
	media    Downloader
	http     *http.Client
	cfg      *config.Config
	reporter Reporter
	logger   *slog.Logger
	pond     *fishing.Pond
	started  time.Time

	defaultPrefix string
	registry      *Registry
	replies       *Tracker
	pager         *Pager
	autoDownloads *Cooldowns
}

func New(opts Options) *Handler {
	h := &Handler{
		session:       opts.Session,
		state:         opts.State,
		store:         opts.Store,
		cache:         opts.Cache,
		media:         opts.Media,
		http:          opts.HTTP,
		cfg:           opts.Config,
		reporter:      opts.Reporter,
		logger:        opts.Logger,
		pond:          opts.Pond,
		started:       opts.Started,
		defaultPrefix: config.DefaultPrefix(opts.Testing),
		registry:      NewRegistry(),
		replies:       NewTracker(),
		pager:         NewPager(),
		autoDownloads: NewCooldowns(1, 5*time.Second),
	}
	if h.logger == nil {
		h.logger = slog.Default()
	}
	if h.http == nil {
		h.http = &http.Client{Timeout: 30 * time.Second}
	}
	if h.started.IsZero() {
		h.started = time.Now()
	}
	if h.pond == nil {
		h.pond = fishing.NewPond()
	}

	h.registry.Add(historyCommands()...)
	h.registry.Add(settingsCommands()...)
	h.registry.Add(toolCommands()...)
	h.registry.Add(infoCommands()...)
	h.registry.Add(ownerCommands()...)
	h.registry.Add(miscCommands(h.registry)...)
	return h
}

// Registry exposes the registered commands.
func (h *Handler) Registry() *Registry { return h.registry }

func (h *Handler) botID() string {
	if h.state == nil {
		return ""
	}
	h.state.RLock()
	defer h.state.RUnlock()
	if h.state.User == nil {
		return ""
	}
	return h.state.User.ID
}

// Process runs the command in m, if any, and reports whether one ran.
// Command failures are answered in the channel, not returned.
func (h *Handler) Process(ctx context.Context, m *discordgo.Message) bool {
	if m.Author == nil || m.Author.Bot {
		return false
	}

	var guildPrefixes []string
	if m.GuildID != "" {
		guildPrefixes = h.cache.Prefixes(m.GuildID)
	}
	prefix, ok := ResolvePrefix(m.Content, h.botID(), h.defaultPrefix, guildPrefixes, m.GuildID != "")
	if !ok {
		return false
	}

	name, rest := splitCommand(m.Content[len(prefix):])
	cmd, ok := h.registry.Lookup(name)
	if !ok {
		return false
	}
	chain := []*Command{cmd}
	invoked := cmd.Name
	if subName, subRest := splitCommand(rest); subName != "" {
		if sub := cmd.sub(subName); sub != nil {
			chain = append(chain, sub)
			invoked += " " + sub.Name
			rest = subRest
		}
	}

	c := h.newContext(m)
	c.Prefix = prefix
	c.Command = chain[len(chain)-1]
	c.Invoked = invoked
	c.setRest(rest)
	h.run(ctx, c, chain)
	return true
}

func (h *Handler) run(ctx context.Context, c *Context, chain []*Command) {
	start := time.Now()
	metrics.CommandsInvoked.WithLabelValues(c.Invoked).Inc()
	c.Logger = h.logger.With("guild_id", c.GuildID, "channel_id", c.ChannelID, "command", c.Invoked, "user_id", c.Author.ID)
	c.Logger.Debug("running command", "content", c.Message.Content)

	err := h.check(ctx, c, chain)
	if err == nil {
		if c.Command.Run == nil {
			err = Userf("Missing subcommand. Try `%shelp %s`.", c.Prefix, chain[0].Name)
		} else {
			err = c.Command.Run(ctx, c)
		}
	}
	metrics.CommandDuration.WithLabelValues(c.Invoked).Observe(time.Since(start).Seconds())
	h.fail(ctx, c, err)
}

func (h *Handler) check(ctx context.Context, c *Context, chain []*Command) error {
	for _, cmd := range chain {
		if cmd.OwnerOnly && !c.IsOwner() {
			return errNotOwner
		}
		if cmd.GuildOnly && c.GuildID == "" {
			return errGuildOnly
		}
		if cmd.Permissions != 0 && c.GuildID != "" {
			perms, err := h.session.UserChannelPermissions(c.Author.ID, c.ChannelID, discordgo.WithContext(ctx))
			if err != nil {
				return fmt.Errorf("fetch permissions: %w", err)
			}
			if perms&discordgo.PermissionAdministrator == 0 && perms&cmd.Permissions != cmd.Permissions {
				return Userf("You are missing %s permission(s) to run this command.", permissionNames(cmd.Permissions&^perms))
			}
		}
		if cmd.Cooldown != nil {
			if ok, wait := cmd.Cooldown.Allow(c.GuildID + ":" + c.Author.ID); !ok {
				return Userf("You are on cooldown, try again in %.1fs.", wait.Seconds())
			}
		}
	}
	return nil
}

// fail answers a failed invocation. User-facing errors are shown verbatim,
// ignorable Discord failures are dropped and anything else is reported.
func (h *Handler) fail(ctx context.Context, c *Context, err error) {
	if err == nil {
		return
	}

	var userErr *UserError
	var dlErr *media.DownloadError
	switch {
	case errors.As(err, &userErr):
		metrics.CommandErrors.WithLabelValues(c.Invoked, "user").Inc()
		c.Logger.Debug("command rejected", "error", err)
		h.replyError(ctx, c, userErr.Message)
	case errors.As(err, &dlErr):
		metrics.CommandErrors.WithLabelValues(c.Invoked, "user").Inc()
		c.Logger.Info("download failed", "error", err, "error_id", dlErr.ID)
		if dlErr.Detail != nil && h.reporter != nil {
			h.reporter.ReportDetail(ctx, fmt.Sprintf("<%s> | Error ID: %s | <@%s>", c.Rest, dlErr.ID, c.Author.ID), "response.json", dlErr.Detail)
		}
		h.replyError(ctx, c, dlErr.Message)
	case discorderr.Ignorable(err):
		c.Logger.Debug("ignored discord failure", "error", err)
	default:
		metrics.CommandErrors.WithLabelValues(c.Invoked, "internal").Inc()
		c.Logger.Error("command failed", "error", err)
		if h.reporter != nil {
			h.reporter.Report(ctx, err)
		}
		h.replyError(ctx, c, genericFailure)
	}
}

func (h *Handler) replyError(ctx context.Context, c *Context, text string) {
	if _, err := c.Reply(ctx, text); err != nil {
		c.Logger.Warn("failed to send error reply", "error", err)
	}
}

// MessageDeleted deletes the tracked replies to a deleted invocation.
func (h *Handler) MessageDeleted(ctx context.Context, channelID, messageID string) {
	for _, ref := range h.replies.Take(channelID, messageID) {
		err := h.session.ChannelMessageDelete(ref.ChannelID, ref.MessageID, discordgo.WithContext(ctx))
		switch {
		case err == nil:
		case discorderr.Ignorable(err):
			h.logger.Debug("tracked reply already gone", "channel_id", ref.ChannelID, "message_id", ref.MessageID)
		default:
			h.logger.Warn("failed to delete tracked reply", "channel_id", ref.ChannelID, "error", err)
		}
	}
}

// HandleInteraction answers pager button presses.
func (h *Handler) HandleInteraction(ctx context.Context, i *discordgo.Interaction) {
	handled, err := h.pager.Handle(ctx, h.session, i)
	if handled && err != nil && !discorderr.Ignorable(err) {
		h.logger.Warn("pager interaction failed", "error", err)
	}
}

var permissionLabels = []struct {
	bit  int64
	name string
}{
	{discordgo.PermissionManageChannels, "Manage Channels"},
	{discordgo.PermissionManageGuild, "Manage Server"},
	{discordgo.PermissionManageMessages, "Manage Messages"},
	{discordgo.PermissionAdministrator, "Administrator"},
}

func permissionNames(perms int64) string {
	var names []string
	for _, p := range permissionLabels {
		if perms&p.bit != 0 {
			names = append(names, p.name)
		}
	}
	return humanJoin(names, "and")
}
