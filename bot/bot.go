// Package bot provides the Discord gateway wrapper and every event listener:
// message routing, auto-reactions, Poketwo hints, Pinboard and the history
// logs.
package bot

import (
	"context"
	"log/slog"
	"math/rand/v2"
	"time"

	"github.com/bwmarrin/discordgo"

	"github.com/tomasmach/fishie/cache"
	"github.com/tomasmach/fishie/commands"
	"github.com/tomasmach/fishie/config"
	"github.com/tomasmach/fishie/discorderr"
	"github.com/tomasmach/fishie/metrics"
	"github.com/tomasmach/fishie/pokemon"
	"github.com/tomasmach/fishie/store"
)

const (
	// messageTimeout bounds message handlers, which may run a download.
	messageTimeout = 5 * time.Minute
	eventTimeout   = 30 * time.Second
	xpInterval     = time.Minute
)

// Session is the part of *discordgo.Session used by the listeners. It is a
// superset of commands.Session so one session serves both.
type Session interface {
	commands.Session
	GuildAuditLog(guildID, userID, beforeID string, actionType, limit int, options ...discordgo.RequestOption) (*discordgo.GuildAuditLog, error)
	ChannelMessagesPinned(channelID string, options ...discordgo.RequestOption) ([]*discordgo.Message, error)
	ChannelMessageUnpin(channelID, messageID string, options ...discordgo.RequestOption) error
	WebhookExecute(webhookID, token string, wait bool, data *discordgo.WebhookParams, options ...discordgo.RequestOption) (*discordgo.Message, error)
}

// MemberRequester asks the gateway for a guild's member list, which arrives
// as GuildMembersChunk events.
type MemberRequester interface {
	RequestGuildMembers(guildID, query string, limit int, nonce string, presences bool) error
}

// ImageFetcher downloads avatars, icons and attachments.
type ImageFetcher interface {
	FetchImage(ctx context.Context, url string) ([]byte, error)
}

// Options wires a Bot to its dependencies. Gateway is nil in tests, where
// events are fed to the handlers directly.
type Options struct {
	Gateway  *discordgo.Session
	Session  Session
	State    *discordgo.State
	Store    *store.Store
	Cache    *cache.Cache
	Commands *commands.Handler
	Images   ImageFetcher
	Pokemon  *pokemon.List
	Config   *config.Config
	Reporter commands.Reporter
	Logger   *slog.Logger
}

// Bot routes gateway events to the commands and listeners.
type Bot struct {
	gateway  *discordgo.Session
	members  MemberRequester
	session  Session
	state    *discordgo.State
	store    *store.Store
	cache    *cache.Cache
	commands *commands.Handler
	images   ImageFetcher
	pokemon  *pokemon.List
	cfg      *config.Config
	reporter commands.Reporter
	logger   *slog.Logger

	ctx      context.Context
	xp       *commands.Cooldowns
	xpAmount func() int64
	now      func() time.Time

	users    *tracker[userSnapshot]
	guilds   *tracker[guildSnapshot]
	statuses *tracker[string]
}

// NewSession creates a discordgo session with the intents the listeners
// need and a message cache large enough to see edits and pins.
func NewSession(token string) (*discordgo.Session, error) {
	session, err := discordgo.New("Bot " + token)
	if err != nil {
		return nil, err
	}

	session.Identify.Intents = discordgo.IntentsGuilds |
		discordgo.IntentsGuildMembers |
		discordgo.IntentsGuildPresences |
		discordgo.IntentsGuildMessages |
		discordgo.IntentsDirectMessages |
		discordgo.IntentsMessageContent
	session.State.MaxMessageCount = 1000
	session.State.TrackPresences = true
	session.State.TrackMembers = true

	return session, nil
}

// New creates a Bot and, when a gateway session is given, registers its
// handlers on it.
func New(opts Options) *Bot {
	b := &Bot{
		gateway:  opts.Gateway,
		session:  opts.Session,
		state:    opts.State,
		store:    opts.Store,
		cache:    opts.Cache,
		commands: opts.Commands,
		images:   opts.Images,
		pokemon:  opts.Pokemon,
		cfg:      opts.Config,
		reporter: opts.Reporter,
		logger:   opts.Logger,
		ctx:      context.Background(),
		xp:       commands.NewCooldowns(1, xpInterval),
		xpAmount: func() int64 { return int64(15 + rand.IntN(11)) },
		now:      time.Now,
		users:    newTracker[userSnapshot](),
		guilds:   newTracker[guildSnapshot](),
		statuses: newTracker[string](),
	}
	if b.logger == nil {
		b.logger = slog.Default()
	}
	if b.gateway != nil {
		if b.session == nil {
			b.session = b.gateway
		}
		if b.state == nil {
			b.state = b.gateway.State
		}
		b.members = b.gateway
		b.register(b.gateway)
	}
	return b
}

func (b *Bot) register(s *discordgo.Session) {
	s.AddHandler(func(_ *discordgo.Session, e *discordgo.Ready) { b.onReady(e) })
	s.AddHandler(func(_ *discordgo.Session, _ *discordgo.Disconnect) {
		metrics.GatewayConnected.Set(0)
		b.logger.Warn("gateway disconnected")
	})
	s.AddHandler(func(_ *discordgo.Session, e *discordgo.GuildCreate) { b.onGuildCreate(e) })
	s.AddHandler(func(_ *discordgo.Session, e *discordgo.GuildUpdate) { b.onGuildUpdate(e) })
	s.AddHandler(func(_ *discordgo.Session, e *discordgo.GuildMembersChunk) { b.onMembersChunk(e) })
	s.AddHandler(func(_ *discordgo.Session, e *discordgo.MessageCreate) { b.onMessageCreate(e) })
	s.AddHandler(func(_ *discordgo.Session, e *discordgo.MessageUpdate) { b.onMessageUpdate(e) })
	s.AddHandler(func(_ *discordgo.Session, e *discordgo.MessageDelete) { b.onMessageDelete(e) })
	s.AddHandler(func(_ *discordgo.Session, e *discordgo.InteractionCreate) { b.onInteractionCreate(e) })
	s.AddHandler(func(_ *discordgo.Session, e *discordgo.GuildMemberUpdate) { b.onMemberUpdate(e) })
	s.AddHandler(func(_ *discordgo.Session, e *discordgo.GuildMemberAdd) { b.onMemberAdd(e) })
	s.AddHandler(func(_ *discordgo.Session, e *discordgo.PresenceUpdate) { b.onPresenceUpdate(e) })
}

// Start opens the Discord gateway connection. ctx becomes the parent of
// every event handler's context.
func (b *Bot) Start(ctx context.Context) error {
	b.ctx = ctx
	return b.gateway.Open()
}

// Stop closes the Discord gateway connection.
func (b *Bot) Stop() error {
	metrics.GatewayConnected.Set(0)
	return b.gateway.Close()
}

func (b *Bot) eventContext(timeout time.Duration) (context.Context, context.CancelFunc) {
	return context.WithTimeout(b.ctx, timeout)
}

func (b *Bot) onReady(e *discordgo.Ready) {
	metrics.GatewayConnected.Set(1)
	metrics.EventsHandled.WithLabelValues("ready").Inc()
	b.logger.Info("gateway ready", "user", e.User.String(), "guilds", len(e.Guilds))
}

func (b *Bot) onInteractionCreate(e *discordgo.InteractionCreate) {
	metrics.EventsHandled.WithLabelValues("interaction_create").Inc()
	ctx, cancel := b.eventContext(eventTimeout)
	defer cancel()
	b.commands.HandleInteraction(ctx, e.Interaction)
}

// fail logs and reports an unexpected listener error. Ignorable Discord
// failures are only logged at debug.
func (b *Bot) fail(ctx context.Context, msg string, err error, args ...any) {
	if err == nil {
		return
	}
	args = append(args, "error", err)
	if discorderr.Ignorable(err) {
		b.logger.Debug(msg, args...)
		return
	}
	b.logger.Error(msg, args...)
	if b.reporter != nil {
		b.reporter.Report(ctx, err)
	}
}

// optedOut reports whether the user, or the guild when one is given, has
// opted out of feature.
func (b *Bot) optedOut(userID, guildID, feature string) bool {
	if b.cache.IsOptedOut(userID, feature) {
		return true
	}
	return guildID != "" && b.cache.IsOptedOut(guildID, feature)
}
