package bot

import (
	"bytes"
	"context"
	"fmt"
	"math/rand/v2"
	"strings"

	"emperror.dev/errors"
	"github.com/bwmarrin/discordgo"

	"github.com/tomasmach/fishie/imaging"
	"github.com/tomasmach/fishie/metrics"
	"github.com/tomasmach/fishie/reporter"
	"github.com/tomasmach/fishie/store"
)

// uploadLimit is the largest image a webhook upload may carry.
const uploadLimit = 8 << 20

// onGuildCreate seeds the change trackers with the current state of the
// guild, its members and their presences, then asks the gateway for the full
// member list. Nothing is logged for them.
func (b *Bot) onGuildCreate(e *discordgo.GuildCreate) {
	metrics.EventsHandled.WithLabelValues("guild_create").Inc()
	g := e.Guild
	b.guilds.seed(g.ID, guildSnapshot{Name: g.Name, Icon: g.Icon})
	b.seedMembers(g.ID, g.Members, g.Presences)

	if b.members == nil {
		return
	}
	if err := b.members.RequestGuildMembers(g.ID, "", 0, "", true); err != nil {
		b.logger.Warn("failed to request guild members", "guild_id", g.ID, "error", err)
	}
}

func (b *Bot) onMembersChunk(e *discordgo.GuildMembersChunk) {
	metrics.EventsHandled.WithLabelValues("guild_members_chunk").Inc()
	b.seedMembers(e.GuildID, e.Members, e.Presences)
	if e.ChunkIndex == e.ChunkCount-1 {
		b.logger.Debug("guild members chunked", "guild_id", e.GuildID, "chunks", e.ChunkCount)
	}
}

func (b *Bot) seedMembers(guildID string, members []*discordgo.Member, presences []*discordgo.Presence) {
	for _, m := range members {
		if m.User != nil {
			b.users.seed(m.User.ID, snapshotOf(m.User))
		}
	}
	for _, p := range presences {
		if p.User != nil {
			b.statuses.seed(guildID+":"+p.User.ID, string(p.Status))
		}
	}
}

func (b *Bot) onGuildUpdate(e *discordgo.GuildUpdate) {
	metrics.EventsHandled.WithLabelValues("guild_update").Inc()
	g := e.Guild
	ctx, cancel := b.eventContext(eventTimeout)
	defer cancel()

	prev, known := b.guilds.swap(g.ID, guildSnapshot{Name: g.Name, Icon: g.Icon})
	if !known {
		return
	}
	if g.Name != prev.Name {
		err := b.store.AddName(ctx, store.GuildNames, g.Name, b.now(), g.ID)
		b.fail(ctx, "failed to log guild name", err, "guild_id", g.ID)
	}
	if g.Icon != "" && g.Icon != prev.Icon {
		err := b.saveImage(ctx, b.cfg.Webhooks.Icons, imageUpload{
			subjectID: g.ID,
			label:     g.Name,
			key:       g.Icon,
			url:       g.IconURL("1024"),
			insert: func(url string) error {
				return b.store.AddGuildIcon(ctx, g.ID, g.Icon, url, b.now())
			},
		})
		b.fail(ctx, "failed to log guild icon", err, "guild_id", g.ID)
	}
}

func (b *Bot) onMemberUpdate(e *discordgo.GuildMemberUpdate) {
	metrics.EventsHandled.WithLabelValues("guild_member_update").Inc()
	m := e.Member
	if m == nil || m.User == nil {
		return
	}
	ctx, cancel := b.eventContext(eventTimeout)
	defer cancel()

	if before := e.BeforeUpdate; before != nil {
		if m.Avatar != "" && m.Avatar != before.Avatar && !b.optedOut(m.User.ID, m.GuildID, "avatar") {
			err := b.saveImage(ctx, b.cfg.Webhooks.Avatars, imageUpload{
				subjectID: m.User.ID,
				label:     m.User.String(),
				key:       m.Avatar,
				url:       m.AvatarURL("1024"),
				insert: func(url string) error {
					return b.store.AddGuildAvatar(ctx, m.User.ID, m.GuildID, m.Avatar, url, b.now())
				},
			})
			b.fail(ctx, "failed to log guild avatar", err, "guild_id", m.GuildID, "user_id", m.User.ID)
		}
		if m.Nick != "" && m.Nick != before.Nick && !b.optedOut(m.User.ID, m.GuildID, "nickname") {
			err := b.store.AddName(ctx, store.Nicknames, m.Nick, b.now(), m.User.ID, m.GuildID)
			b.fail(ctx, "failed to log nickname", err, "guild_id", m.GuildID, "user_id", m.User.ID)
		}
	}
	var before *discordgo.User
	if e.BeforeUpdate != nil {
		before = e.BeforeUpdate.User
	}
	b.userChanged(ctx, m.User, before)
}

func snapshotOf(u *discordgo.User) userSnapshot {
	return userSnapshot{
		Avatar:        u.Avatar,
		Username:      u.Username,
		DisplayName:   u.DisplayName(),
		Discriminator: u.Discriminator,
	}
}

// userChanged logs the user-level fields that differ from the last snapshot,
// or from before when the user was never seen. Member updates arrive once per
// shared guild; only the first one differs.
func (b *Bot) userChanged(ctx context.Context, u, before *discordgo.User) {
	now := snapshotOf(u)
	prev, known := b.users.swap(u.ID, now)
	if !known {
		if before == nil {
			return
		}
		prev = snapshotOf(before)
	}
	if prev == now {
		return
	}

	if now.Avatar != prev.Avatar && !b.optedOut(u.ID, "", "avatar") {
		key := now.Avatar
		if key == "" {
			key = "default"
		}
		err := b.saveImage(ctx, b.cfg.Webhooks.Avatars, imageUpload{
			subjectID: u.ID,
			label:     u.String(),
			key:       key,
			url:       u.AvatarURL("1024"),
			insert: func(url string) error {
				return b.store.AddAvatar(ctx, u.ID, key, url, b.now())
			},
		})
		b.fail(ctx, "failed to log avatar", err, "user_id", u.ID)
	}
	if now.Username != prev.Username && !b.optedOut(u.ID, "", "username") {
		err := b.store.AddName(ctx, store.Usernames, now.Username, b.now(), u.ID)
		b.fail(ctx, "failed to log username", err, "user_id", u.ID)
	}
	if now.DisplayName != prev.DisplayName && !b.optedOut(u.ID, "", "display") {
		err := b.store.AddName(ctx, store.DisplayNames, now.DisplayName, b.now(), u.ID)
		b.fail(ctx, "failed to log display name", err, "user_id", u.ID)
	}
	if now.Discriminator != prev.Discriminator && now.Discriminator != "" {
		err := b.store.AddName(ctx, store.Discrims, now.Discriminator, b.now(), u.ID)
		b.fail(ctx, "failed to log discriminator", err, "user_id", u.ID)
	}
}

func (b *Bot) onPresenceUpdate(e *discordgo.PresenceUpdate) {
	metrics.EventsHandled.WithLabelValues("presence_update").Inc()
	if e.User == nil || e.GuildID == "" {
		return
	}
	status := string(e.Status)
	prev, known := b.statuses.swap(e.GuildID+":"+e.User.ID, status)
	if known && prev == status {
		return
	}
	if b.optedOut(e.User.ID, e.GuildID, "status") {
		return
	}
	ctx, cancel := b.eventContext(eventTimeout)
	defer cancel()
	err := b.store.AddStatus(ctx, e.User.ID, e.GuildID, status, b.now())
	b.fail(ctx, "failed to log status", err, "guild_id", e.GuildID, "user_id", e.User.ID)
}

func (b *Bot) onMemberAdd(e *discordgo.GuildMemberAdd) {
	metrics.EventsHandled.WithLabelValues("guild_member_add").Inc()
	m := e.Member
	if m == nil || m.User == nil {
		return
	}
	b.users.seed(m.User.ID, snapshotOf(m.User))
	if b.optedOut(m.User.ID, m.GuildID, "joins") {
		return
	}
	ctx, cancel := b.eventContext(eventTimeout)
	defer cancel()
	at := m.JoinedAt
	if at.IsZero() {
		at = b.now()
	}
	err := b.store.AddJoin(ctx, m.User.ID, m.GuildID, at)
	b.fail(ctx, "failed to log join", err, "guild_id", m.GuildID, "user_id", m.User.ID)
}

// imageUpload describes an avatar or icon to rehost. insert receives the
// rehosted URL.
type imageUpload struct {
	subjectID string
	label     string
	key       string
	url       string
	insert    func(url string) error
}

// saveImage rehosts an image through a random webhook of pool, falling back
// to the general image webhooks, and records the attachment URL. A repeated
// key is not an error.
func (b *Bot) saveImage(ctx context.Context, pool []string, up imageUpload) error {
	if len(pool) == 0 {
		pool = b.cfg.Webhooks.Images
	}
	if len(pool) == 0 {
		b.logger.Debug("no image webhook configured, skipping upload", "subject_id", up.subjectID)
		return nil
	}
	hook, err := reporter.ParseWebhook(pool[rand.IntN(len(pool))])
	if err != nil {
		return err
	}

	data, err := b.images.FetchImage(ctx, up.url)
	if err != nil {
		return err
	}
	data, err = imaging.ResizeToLimit(data, uploadLimit)
	if err != nil {
		return err
	}

	ext := "png"
	if strings.HasPrefix(up.key, "a_") {
		ext = "gif"
	}
	msg, err := hook.Execute(ctx, b.session, &discordgo.WebhookParams{
		Content: fmt.Sprintf("<@%s> | %s | %s | <t:%d:f>", up.subjectID, up.label, up.subjectID, b.now().Unix()),
		Files: []*discordgo.File{{
			Name:   fmt.Sprintf("%s_%s.%s", up.subjectID, up.key, ext),
			Reader: bytes.NewReader(data),
		}},
		AllowedMentions: &discordgo.MessageAllowedMentions{},
	})
	if err != nil {
		return errors.Wrap(err, "upload image")
	}
	if msg == nil || len(msg.Attachments) == 0 {
		return errors.New("image upload returned no attachment")
	}

	if err := up.insert(msg.Attachments[0].URL); err != nil && !store.IsUniqueViolation(err) {
		return err
	}
	return nil
}
