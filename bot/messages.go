package bot

import (
	"context"
	"strings"

	"github.com/bwmarrin/discordgo"

	"github.com/tomasmach/fishie/metrics"
	"github.com/tomasmach/fishie/pokemon"
)

var voteEmojis = []string{"\u2b06\ufe0f", "\u2b07\ufe0f"}

func (b *Bot) onMessageCreate(e *discordgo.MessageCreate) {
	metrics.EventsHandled.WithLabelValues("message_create").Inc()
	m := e.Message
	if m == nil || m.Author == nil {
		return
	}
	ctx, cancel := b.eventContext(messageTimeout)
	defer cancel()

	if m.Author.Bot {
		b.solvePoketwo(ctx, m)
		return
	}

	b.awardXP(ctx, m.Author.ID)
	b.addReactions(ctx, m)
	if b.commands.AutoDownload(ctx, m) {
		return
	}
	b.commands.Process(ctx, m)
}

func (b *Bot) onMessageUpdate(e *discordgo.MessageUpdate) {
	metrics.EventsHandled.WithLabelValues("message_update").Inc()
	m := e.Message
	if m == nil {
		return
	}
	ctx, cancel := b.eventContext(messageTimeout)
	defer cancel()

	before := e.BeforeUpdate
	if before != nil && m.Author != nil && !m.Author.Bot && m.Content != "" && before.Content != m.Content {
		b.commands.Process(ctx, m)
	}
	b.addReactions(ctx, m)

	if before != nil && m.GuildID != "" && !before.Pinned && m.Pinned {
		if m.Author == nil {
			m.Author = before.Author
		}
		if err := b.mirrorPin(ctx, m); err != nil {
			b.fail(ctx, "pinboard failed", err, "guild_id", m.GuildID, "message_id", m.ID)
		}
	}
}

func (b *Bot) onMessageDelete(e *discordgo.MessageDelete) {
	metrics.EventsHandled.WithLabelValues("message_delete").Inc()
	ctx, cancel := b.eventContext(eventTimeout)
	defer cancel()
	b.commands.MessageDeleted(ctx, e.ChannelID, e.ID)
}

// awardXP credits a message to the author at most once per xpInterval.
func (b *Bot) awardXP(ctx context.Context, userID string) {
	if ok, _ := b.xp.Allow(userID); !ok {
		return
	}
	if err := b.store.AddXP(ctx, userID, b.xpAmount()); err != nil {
		b.fail(ctx, "failed to add xp", err, "user_id", userID)
	}
}

// addReactions votes on media posts in guilds with auto-reactions enabled.
func (b *Bot) addReactions(ctx context.Context, m *discordgo.Message) {
	if m.GuildID == "" || !b.cache.IsReactionGuild(m.GuildID) || !hasMedia(m) {
		return
	}
	for _, emoji := range voteEmojis {
		if err := b.session.MessageReactionAdd(m.ChannelID, m.ID, emoji, discordgo.WithContext(ctx)); err != nil {
			b.fail(ctx, "failed to add reaction", err, "channel_id", m.ChannelID)
			return
		}
	}
}

func hasMedia(m *discordgo.Message) bool {
	if len(m.Attachments) > 0 {
		return true
	}
	for _, e := range m.Embeds {
		if e.Type != discordgo.EmbedTypeRich {
			return true
		}
	}
	return false
}

// solvePoketwo answers a Poketwo hint with the names it can match.
func (b *Bot) solvePoketwo(ctx context.Context, m *discordgo.Message) {
	if b.pokemon == nil || m.GuildID == "" || m.Author.ID != b.cfg.IDs.PoketwoID || !b.cache.IsPoketwo(m.GuildID) {
		return
	}
	hint, ok := pokemon.Hint(m.Content)
	if !ok {
		return
	}
	names := b.pokemon.Solve(hint)
	if len(names) == 0 {
		b.logger.Debug("no pokemon matched hint", "guild_id", m.GuildID, "hint", hint)
		return
	}
	_, err := b.session.ChannelMessageSendComplex(m.ChannelID, &discordgo.MessageSend{
		Content:         strings.Join(names, "\n"),
		Reference:       m.SoftReference(),
		AllowedMentions: &discordgo.MessageAllowedMentions{},
	}, discordgo.WithContext(ctx))
	b.fail(ctx, "failed to send poketwo answer", err, "channel_id", m.ChannelID)
}
