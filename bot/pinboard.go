package bot

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"time"

	"emperror.dev/errors"
	"github.com/bwmarrin/discordgo"

	"github.com/tomasmach/fishie/commands"
	"github.com/tomasmach/fishie/discorderr"
	"github.com/tomasmach/fishie/store"
)

const (
	maxPinboardPins   = 40
	maxPinboardItems  = 10
	pinAuditLogLength = 5

	blankPinner = "<Blank>"
	blankHint   = "\n\n Seeing \"<Blank>\" and rather show who pinned? Give me \"View Audit Log\" permissions."
)

// mirrorPin copies a freshly pinned message to the guild's Pinboard channel.
func (b *Bot) mirrorPin(ctx context.Context, m *discordgo.Message) error {
	channelID, ok := b.cache.Pinboard(m.GuildID)
	if !ok || m.Author == nil {
		return nil
	}
	if _, err := b.session.Channel(channelID, discordgo.WithContext(ctx)); err != nil {
		if discorderr.Code(err) == discordgo.ErrCodeUnknownChannel || discorderr.Status(err) == http.StatusNotFound {
			b.cache.RemovePinboard(m.GuildID, channelID)
			b.logger.Info("pinboard channel gone, unlinked", "guild_id", m.GuildID, "channel_id", channelID)
			return nil
		}
		return errors.Wrap(err, "fetch pinboard channel")
	}

	name, avatar, color := m.Author.DisplayName(), m.Author.AvatarURL("256"), m.Author.AccentColor
	if member, err := b.session.GuildMember(m.GuildID, m.Author.ID, discordgo.WithContext(ctx)); err == nil {
		member.GuildID = m.GuildID
		name, avatar = member.DisplayName(), member.AvatarURL("256")
	}

	embeds := []*discordgo.MessageEmbed{{
		Color:       color,
		Description: commands.EscapeMarkdown(m.Content),
		Timestamp:   b.now().Format(time.RFC3339),
		Author:      &discordgo.MessageEmbedAuthor{Name: name, IconURL: avatar},
		Fields: []*discordgo.MessageEmbedField{{
			Name:  "Original message",
			Value: fmt.Sprintf("[Click to view](%s)", jumpURL(m)),
		}},
	}}
	for _, e := range m.Embeds {
		if e.Type == discordgo.EmbedTypeRich {
			embeds = append(embeds, e)
		}
	}

	var files []*discordgo.File
	for _, a := range m.Attachments {
		if len(files) == maxPinboardItems {
			break
		}
		data, err := b.images.FetchImage(ctx, a.URL)
		if err != nil {
			b.logger.Warn("failed to fetch pinned attachment", "url", a.URL, "error", err)
			continue
		}
		files = append(files, &discordgo.File{Name: a.Filename, ContentType: a.ContentType, Reader: bytes.NewReader(data)})
		embeds = append(embeds, &discordgo.MessageEmbed{
			Color: color,
			Image: &discordgo.MessageEmbedImage{URL: "attachment://" + a.Filename},
		})
	}
	if len(embeds) > maxPinboardItems {
		embeds = embeds[:maxPinboardItems]
	}

	pinner, pinnerID := b.pinner(ctx, m.GuildID, m.Author.ID)
	content := fmt.Sprintf("\U0001f4cc %s pinned a message to the server's Pinboard", pinner)
	if pinnerID == "" {
		content += blankHint
		pinnerID = "0"
	}

	if err := b.store.AddPinboardPin(ctx, store.Pin{
		MessageID: m.ID,
		AuthorID:  pinnerID,
		TargetID:  m.Author.ID,
		GuildID:   m.GuildID,
		ChannelID: channelID,
	}); err != nil {
		return err
	}

	if _, err := b.session.ChannelMessageSendComplex(channelID, &discordgo.MessageSend{
		Content:         content,
		Embeds:          embeds,
		Files:           files,
		AllowedMentions: &discordgo.MessageAllowedMentions{},
	}, discordgo.WithContext(ctx)); err != nil {
		return errors.Wrap(err, "send to pinboard")
	}

	b.pruneBoard(ctx, channelID)
	return nil
}

// pinner finds who pinned a message by authorID in the recent audit log.
// Without audit log access the pinner is unknown and the id is empty.
func (b *Bot) pinner(ctx context.Context, guildID, authorID string) (name, id string) {
	log, err := b.session.GuildAuditLog(guildID, "", "", int(discordgo.AuditLogActionMessagePin), pinAuditLogLength, discordgo.WithContext(ctx))
	if err != nil {
		b.logger.Debug("audit log unavailable", "guild_id", guildID, "error", err)
		return blankPinner, ""
	}
	for _, entry := range log.AuditLogEntries {
		if entry.TargetID != authorID || entry.UserID == "" {
			continue
		}
		for _, u := range log.Users {
			if u.ID == entry.UserID {
				return u.DisplayName(), u.ID
			}
		}
		return "<@" + entry.UserID + ">", entry.UserID
	}
	return blankPinner, ""
}

// pruneBoard unpins the oldest pin once the board holds more than
// maxPinboardPins.
func (b *Bot) pruneBoard(ctx context.Context, channelID string) {
	pins, err := b.session.ChannelMessagesPinned(channelID, discordgo.WithContext(ctx))
	if err != nil {
		b.logger.Debug("failed to list pinboard pins", "channel_id", channelID, "error", err)
		return
	}
	if len(pins) <= maxPinboardPins {
		return
	}
	oldest := pins[len(pins)-1]
	if err := b.session.ChannelMessageUnpin(channelID, oldest.ID, discordgo.WithContext(ctx)); err != nil {
		b.logger.Debug("failed to unpin oldest pinboard pin", "channel_id", channelID, "error", err)
	}
}

func jumpURL(m *discordgo.Message) string {
	return fmt.Sprintf("https://discord.com/channels/%s/%s/%s", m.GuildID, m.ChannelID, m.ID)
}
