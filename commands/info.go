package commands

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/bwmarrin/discordgo"
)

const reviewsPerPage = 1

func infoCommands() []*Command {
	return []*Command{
		{
			Name: "userinfo", Aliases: []string{"ui", "user"}, Group: "Discord", Usage: "[user]",
			Help: "Badges, join position and status of a user.",
			Run:  runUserInfo,
		},
		{
			Name: "avatar", Aliases: []string{"pfp", "av", "avy", "avi"}, Group: "Discord", Usage: "[user]",
			Help: "A user's avatar.",
			Run:  runAvatar,
			Subcommands: []*Command{
				{Name: "history", Aliases: []string{"h"}, Usage: "[user]", Help: "Grid of the last 100 avatars of a user.", Run: runAvatarHistory},
			},
		},
		{
			Name: "banner", Group: "Discord", Usage: "[user]",
			Help: "A user's profile banner.",
			Run:  runBanner,
		},
		{
			Name: "reviews", Aliases: []string{"rdb"}, Group: "Discord", Usage: "[user]",
			Help:     "ReviewDB reviews of a user.",
			Cooldown: NewCooldowns(2, 5*time.Second),
			Run:      runReviews,
		},
		{
			Name: "serverinfo", Aliases: []string{"server", "si"}, Group: "Discord", GuildOnly: true,
			Help: "Information about this server.",
			Run:  runServerInfo,
			Subcommands: []*Command{
				{Name: "icon", Help: "This server's icon.", Run: guildImage(guildIcon)},
				{Name: "banner", Help: "This server's banner.", Run: guildImage(guildBanner)},
				{Name: "splash", Help: "This server's invite background.", Run: guildImage(guildSplash)},
			},
		},
		{
			Name: "icon", Group: "Discord", GuildOnly: true,
			Help: "This server's icon.",
			Run:  guildImage(guildIcon),
		},
		{
			Name: "serverbanner", Aliases: []string{"sbanner"}, Group: "Discord", GuildOnly: true,
			Help: "This server's banner.",
			Run:  guildImage(guildBanner),
		},
		{
			Name: "splash", Aliases: []string{"invitebackground", "invitebg", "ibg"}, Group: "Discord", GuildOnly: true,
			Help: "This server's invite background.",
			Run:  guildImage(guildSplash),
		},
		{
			Name: "channelinfo", Aliases: []string{"channel", "ci"}, Group: "Discord", Usage: "[channel]",
			Help: "Information about a channel.",
			Run:  runChannelInfo,
		},
	}
}

var badgeNames = []struct {
	flag discordgo.UserFlags
	name string
}{
	{discordgo.UserFlagDiscordEmployee, "Discord Staff"},
	{discordgo.UserFlagDiscordPartner, "Partnered Server Owner"},
	{discordgo.UserFlagHypeSquadEvents, "HypeSquad Events"},
	{discordgo.UserFlagBugHunterLevel1, "Bug Hunter"},
	{discordgo.UserFlagBugHunterLevel2, "Bug Hunter Gold"},
	{discordgo.UserFlagHouseBravery, "HypeSquad Bravery"},
	{discordgo.UserFlagHouseBrilliance, "HypeSquad Brilliance"},
	{discordgo.UserFlagHouseBalance, "HypeSquad Balance"},
	{discordgo.UserFlagEarlySupporter, "Early Supporter"},
	{discordgo.UserFlagVerifiedBot, "Verified Bot"},
	{discordgo.UserFlagVerifiedBotDeveloper, "Early Verified Bot Developer"},
	{discordgo.UserFlagDiscordCertifiedModerator, "Moderator Programs Alumni"},
	{discordgo.UserFlagActiveBotDeveloper, "Active Developer"},
}

// badges lists the public flags of u and the badges derived from the member.
func (c *Context) badges(u *discordgo.User, m *discordgo.Member, ownerID string) []string {
	var out []string
	if u.ID == c.Config.IDs.OwnerID {
		out = append(out, "Bot Owner")
	}
	if ownerID != "" && u.ID == ownerID {
		out = append(out, "Server Owner")
	}
	for _, b := range badgeNames {
		if u.PublicFlags&b.flag != 0 {
			out = append(out, b.name)
		}
	}
	if m != nil && m.PremiumSince != nil {
		out = append(out, "Server Booster")
	}
	if u.Banner != "" || strings.HasPrefix(u.Avatar, "a_") || m != nil && m.Avatar != "" {
		out = append(out, "Nitro")
	}
	return out
}

// joinPosition returns the 1-based rank of userID among the cached members
// of the guild, ordered by join time.
func joinPosition(g *discordgo.Guild, userID string) (int, int) {
	members := slices.Clone(g.Members)
	slices.SortStableFunc(members, func(a, b *discordgo.Member) int {
		return a.JoinedAt.Compare(b.JoinedAt)
	})
	for i, m := range members {
		if m.User != nil && m.User.ID == userID {
			return i + 1, len(members)
		}
	}
	return 0, len(members)
}

func runUserInfo(ctx context.Context, c *Context) error {
	u, err := c.TargetUser(ctx, c.Rest)
	if err != nil {
		return err
	}
	if full, err := c.Session.User(u.ID, discordgo.WithContext(ctx)); err == nil {
		u = full
	}

	e := &discordgo.MessageEmbed{
		Title:     u.String(),
		Color:     embedColor,
		Thumbnail: &discordgo.MessageEmbedThumbnail{URL: u.AvatarURL("512")},
		Footer:    &discordgo.MessageEmbedFooter{Text: "ID: " + u.ID + " \nCreated at"},
	}
	if created, err := discordgo.SnowflakeTimestamp(u.ID); err == nil {
		e.Timestamp = created.Format(time.RFC3339)
	}

	var (
		member  *discordgo.Member
		ownerID string
	)
	if c.GuildID != "" {
		if m, err := c.TargetMember(ctx, u.ID); err == nil {
			member = m
		}
		if g, err := c.Guild(ctx); err == nil {
			ownerID = g.OwnerID
			if member != nil {
				var pos, total int
				c.readState(func() { pos, total = joinPosition(g, u.ID) })
				value := timestamp(member.JoinedAt, "R") + " | " + timestamp(member.JoinedAt, "d")
				if pos > 0 {
					value += fmt.Sprintf("\nPosition %s/%s", number(int64(pos)), number(int64(total)))
				}
				e.Fields = append(e.Fields, &discordgo.MessageEmbedField{Name: "Joined", Value: value, Inline: true})
			}
		}
	}
	if badges := c.badges(u, member, ownerID); len(badges) > 0 {
		e.Description = strings.Join(badges, ", ")
	}
	e.Fields = append(e.Fields, &discordgo.MessageEmbedField{
		Name: "Created", Value: historyLine(snowflakeTime(u.ID)), Inline: true,
	})

	if member != nil && !u.Bot {
		st, err := c.latestStatus(ctx, u.ID)
		if err != nil {
			return err
		}
		e.Fields = append(e.Fields, &discordgo.MessageEmbedField{
			Name:   titleCase(st.Name) + " since",
			Value:  historyLine(st.Since),
			Inline: true,
		})
	}

	_, err = c.SendEmbed(ctx, e)
	return err
}

func snowflakeTime(id string) time.Time {
	t, _ := discordgo.SnowflakeTimestamp(id)
	return t
}

func runAvatar(ctx context.Context, c *Context) error {
	u, err := c.TargetUser(ctx, c.Rest)
	if err != nil {
		return err
	}
	e := &discordgo.MessageEmbed{
		Title: u.Username + "'s avatar",
		URL:   u.AvatarURL("4096"),
		Color: embedColor,
		Image: &discordgo.MessageEmbedImage{URL: u.AvatarURL("1024")},
	}
	if latest, err := c.Store.Avatars(ctx, u.ID, 1); err == nil && len(latest) > 0 {
		e.Footer = &discordgo.MessageEmbedFooter{Text: "Last avatar saved"}
		e.Timestamp = latest[0].CreatedAt.Format(time.RFC3339)
	}
	_, err = c.SendEmbed(ctx, e)
	return err
}

func runBanner(ctx context.Context, c *Context) error {
	u, err := c.TargetUser(ctx, c.Rest)
	if err != nil {
		return err
	}
	// Cached users never carry the banner hash.
	full, err := c.Session.User(u.ID, discordgo.WithContext(ctx))
	if err != nil {
		return err
	}
	if full.Banner == "" {
		return Userf("User has no banner.")
	}
	_, err = c.SendEmbed(ctx, &discordgo.MessageEmbed{
		Title: full.Username + "'s banner",
		Color: embedColor,
		Image: &discordgo.MessageEmbedImage{URL: full.BannerURL("1024")},
	})
	return err
}

type review struct {
	ID     int64 `json:"id"`
	Sender struct {
		DiscordID    string `json:"discordID"`
		ProfilePhoto string `json:"profilePhoto"`
		Username     string `json:"username"`
	} `json:"sender"`
	Comment   string `json:"comment"`
	Timestamp int64  `json:"timestamp"`
}

func runReviews(ctx context.Context, c *Context) error {
	u, err := c.TargetUser(ctx, c.Rest)
	if err != nil {
		return err
	}
	var body struct {
		Reviews []review `json:"reviews"`
	}
	if err := getJSON(ctx, c.HTTP, fmt.Sprintf("%s/users/%s/reviews", strings.TrimRight(c.Config.APIs.ReviewDB, "/"), u.ID), &body); err != nil {
		return err
	}
	// The first entry is ReviewDB's own notice, not a review.
	if len(body.Reviews) <= 1 {
		return Userf("%s has no reviews.", u.Username)
	}
	reviews := body.Reviews[1:]

	pages := Paginate(reviews, reviewsPerPage, func(chunk []review, index, total int) *discordgo.MessageEmbed {
		r := chunk[0]
		return &discordgo.MessageEmbed{
			Title:       "Review for " + u.Username + " (via ReviewDB)",
			Description: truncate(r.Comment, 4000),
			Color:       embedColor,
			Author:      &discordgo.MessageEmbedAuthor{Name: r.Sender.Username, IconURL: r.Sender.ProfilePhoto},
			Timestamp:   time.Unix(r.Timestamp, 0).UTC().Format(time.RFC3339),
			Footer:      &discordgo.MessageEmbedFooter{Text: fmt.Sprintf("Review %d/%d", index+1, total)},
		}
	})
	return c.Paginate(ctx, pages)
}

func runServerInfo(ctx context.Context, c *Context) error {
	g, err := c.Guild(ctx)
	if err != nil {
		return err
	}

	var text, voice, categories, animated, bots int
	var channels, roles, emojis, members int
	c.readState(func() {
		for _, ch := range g.Channels {
			switch kindOf(ch) {
			case kindCategory:
				categories++
			case kindVoice:
				voice++
			default:
				text++
			}
		}
		for _, em := range g.Emojis {
			if em.Animated {
				animated++
			}
		}
		for _, m := range g.Members {
			if m.User != nil && m.User.Bot {
				bots++
			}
		}
		channels, roles, emojis, members = len(g.Channels), len(g.Roles), len(g.Emojis), g.MemberCount
	})

	var images []string
	if g.Icon != "" {
		images = append(images, fmt.Sprintf("[Icon](%s)", g.IconURL("1024")))
	}
	if g.Banner != "" {
		images = append(images, fmt.Sprintf("[Banner](%s)", g.BannerURL("1024")))
	}
	if g.Splash != "" {
		images = append(images, fmt.Sprintf("[Splash](%s)", discordgo.EndpointGuildSplash(g.ID, g.Splash)+"?size=1024"))
	}
	if len(images) == 0 {
		images = []string{"None"}
	}

	e := &discordgo.MessageEmbed{
		Title:       g.Name,
		Description: g.Description,
		Color:       embedColor,
		Fields: []*discordgo.MessageEmbedField{
			{Name: "Members", Value: fmt.Sprintf("%s total\n%s bots", number(int64(members)), number(int64(bots))), Inline: true},
			{Name: "Channels", Value: fmt.Sprintf("%d total\n%d text\n%d voice\n%d categories", channels, text, voice, categories), Inline: true},
			{Name: "Roles", Value: number(int64(roles)), Inline: true},
			{Name: "Owner", Value: "<@" + g.OwnerID + ">", Inline: true},
			{Name: fmt.Sprintf("Level %d", g.PremiumTier), Value: plural(g.PremiumSubscriptionCount, "boost"), Inline: true},
			{Name: "Emojis", Value: fmt.Sprintf("%d total\n%d animated", emojis, animated), Inline: true},
			{Name: "Images", Value: strings.Join(images, " | ")},
		},
		Footer: &discordgo.MessageEmbedFooter{Text: "ID: " + g.ID + " \nCreated at"},
	}
	if g.Icon != "" {
		e.Thumbnail = &discordgo.MessageEmbedThumbnail{URL: g.IconURL("512")}
	}
	if created, err := discordgo.SnowflakeTimestamp(g.ID); err == nil {
		e.Timestamp = created.Format(time.RFC3339)
	}
	_, err = c.SendEmbed(ctx, e)
	return err
}

type guildImageKind int

const (
	guildIcon guildImageKind = iota
	guildBanner
	guildSplash
)

func guildImage(kind guildImageKind) func(context.Context, *Context) error {
	return func(ctx context.Context, c *Context) error {
		g, err := c.Guild(ctx)
		if err != nil {
			return err
		}
		var name, url string
		switch kind {
		case guildIcon:
			name = "icon"
			if g.Icon != "" {
				url = g.IconURL("1024")
			}
		case guildBanner:
			name = "banner"
			if g.Banner != "" {
				url = g.BannerURL("1024")
			}
		case guildSplash:
			name = "splash"
			if g.Splash != "" {
				url = discordgo.EndpointGuildSplash(g.ID, g.Splash) + "?size=1024"
			}
		}
		if url == "" {
			return Userf("%s has no %s.", g.Name, name)
		}
		_, err = c.SendEmbed(ctx, &discordgo.MessageEmbed{
			Title: g.Name + "'s " + name,
			URL:   url,
			Color: embedColor,
			Image: &discordgo.MessageEmbedImage{URL: url},
		})
		return err
	}
}

// channelKind is the closed set of channel shapes channelinfo knows.
type channelKind int

const (
	kindText channelKind = iota
	kindCategory
	kindVoice
	kindThread
	kindForum
)

func kindOf(ch *discordgo.Channel) channelKind {
	switch ch.Type {
	case discordgo.ChannelTypeGuildCategory:
		return kindCategory
	case discordgo.ChannelTypeGuildVoice, discordgo.ChannelTypeGuildStageVoice:
		return kindVoice
	case discordgo.ChannelTypeGuildNewsThread, discordgo.ChannelTypeGuildPublicThread, discordgo.ChannelTypeGuildPrivateThread:
		return kindThread
	case discordgo.ChannelTypeGuildForum, discordgo.ChannelTypeGuildMedia:
		return kindForum
	}
	return kindText
}

func (k channelKind) String() string {
	return [...]string{"text", "category", "voice", "thread", "forum"}[k]
}

func runChannelInfo(ctx context.Context, c *Context) error {
	ch, err := c.TargetChannel(ctx, c.Rest)
	if err != nil {
		return err
	}
	if ch.GuildID == "" {
		return Userf("That is not a server channel.")
	}

	kind := kindOf(ch)
	e := &discordgo.MessageEmbed{
		Title:  "#" + ch.Name,
		Color:  embedColor,
		Footer: &discordgo.MessageEmbedFooter{Text: "ID: " + ch.ID + " \nCreated at"},
		Fields: []*discordgo.MessageEmbedField{{Name: "Type", Value: titleCase(kind.String()), Inline: true}},
	}
	if created, err := discordgo.SnowflakeTimestamp(ch.ID); err == nil {
		e.Timestamp = created.Format(time.RFC3339)
	}
	g, _ := c.Guild(ctx)

	switch kind {
	case kindText:
		e.Description = ch.Topic
		if g != nil {
			e.Fields = append(e.Fields, &discordgo.MessageEmbedField{Name: "Members", Value: number(int64(g.MemberCount)), Inline: true})
		}
		if ch.NSFW {
			e.Fields = append(e.Fields, &discordgo.MessageEmbedField{Name: "NSFW", Value: "Yes", Inline: true})
		}
	case kindCategory:
		var children []string
		if g != nil {
			c.readState(func() {
				for _, other := range g.Channels {
					if other.ParentID == ch.ID {
						children = append(children, "<#"+other.ID+">")
					}
				}
			})
		}
		value := "None"
		if len(children) > 0 {
			value = truncate(strings.Join(children, " "), 1024)
		}
		e.Fields = append(e.Fields, &discordgo.MessageEmbedField{Name: fmt.Sprintf("Channels (%d)", len(children)), Value: value})
	case kindVoice:
		limit := "No User limit"
		if ch.UserLimit > 0 {
			limit = fmt.Sprintf("%d User limit", ch.UserLimit)
		}
		e.Fields = append(e.Fields, &discordgo.MessageEmbedField{
			Name:  "Details",
			Value: fmt.Sprintf("%s\n%d kbps", limit, ch.Bitrate/1000),
		})
	case kindThread:
		e.Fields = append(e.Fields,
			&discordgo.MessageEmbedField{Name: "Members", Value: number(int64(ch.MemberCount)), Inline: true},
			&discordgo.MessageEmbedField{Name: "Parent channel", Value: "<#" + ch.ParentID + ">", Inline: true},
			&discordgo.MessageEmbedField{Name: "Owner", Value: "<@" + ch.OwnerID + ">", Inline: true},
		)
	case kindForum:
		posts := 0
		if g != nil {
			c.readState(func() {
				for _, t := range g.Threads {
					if t.ParentID == ch.ID {
						posts++
					}
				}
			})
		}
		tags := make([]string, 0, len(ch.AvailableTags))
		for _, t := range ch.AvailableTags {
			tags = append(tags, t.Name)
		}
		value := "None"
		if len(tags) > 0 {
			value = truncate(strings.Join(tags, ", "), 1024)
		}
		e.Fields = append(e.Fields,
			&discordgo.MessageEmbedField{Name: "Posts", Value: number(int64(posts)), Inline: true},
			&discordgo.MessageEmbedField{Name: "Tags", Value: value},
		)
	}

	_, err = c.SendEmbed(ctx, e)
	return err
}
