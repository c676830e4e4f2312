package commands

import (
	"bytes"
	"context"
	"fmt"
	"time"

	"emperror.dev/errors"
	"github.com/bwmarrin/discordgo"
	"golang.org/x/sync/errgroup"

	"github.com/tomasmach/fishie/imaging"
	"github.com/tomasmach/fishie/store"
)

const (
	avatarPageLimit = 500
	gridLimit       = 100
	fileLimit       = 8 << 20
	namesPerPage    = 10
)

func historyCommands() []*Command {
	avatarsServer := &Command{
		Name: "server", Aliases: []string{"guild", "s"}, GuildOnly: true,
		Help: "Saved server avatars of a member.",
		Run:  runGuildAvatars,
	}
	historyServer := &Command{
		Name: "server", Aliases: []string{"guild", "s"}, GuildOnly: true,
		Help: "Grid of saved server avatars of a member.",
		Run:  runGuildAvatarHistory,
	}
	return []*Command{
		{
			Name: "avatars", Aliases: []string{"pfps", "avis", "avs"}, Group: "History",
			Usage: "[user]", Help: "Every avatar saved for a user, newest first.",
			Subcommands: []*Command{avatarsServer},
			Run:         runAvatars,
		},
		{
			Name: "avatarhistory", Aliases: []string{"avyh", "avatar-history", "avatar_history", "pfph", "avh"},
			Group: "History", Usage: "[user]", Help: "Grid of the last 100 avatars of a user.",
			Subcommands: []*Command{historyServer},
			Run:         runAvatarHistory,
		},
		nameHistoryCommand("usernames", nil, store.Usernames, "Usernames for %s", "I have no usernames on record for %s"),
		nameHistoryCommand("names", []string{"display_names", "displaynames"}, store.DisplayNames, "Display names for %s", "I have no display names on records for %s"),
		nameHistoryCommand("nicknames", []string{"nicks"}, store.Nicknames, "Nicknames for %s", "I have no nicknames on records for %s"),
		nameHistoryCommand("discrims", []string{"discriminators"}, store.Discrims, "Discriminators for %s", "I have no discriminators on records for %s"),
		{
			Name: "servernames", Aliases: []string{"server_names", "snames"}, Group: "History", GuildOnly: true,
			Help: "Names this server went by.",
			Run:  runServerNames,
		},
		{
			Name: "icons", Group: "History", GuildOnly: true,
			Help: "Icons this server used.",
			Run:  runIcons,
		},
		{
			Name: "uptime", Group: "History", GuildOnly: true, Usage: "[member]",
			Help: "How long a member has had their current status, or how long I have been up.",
			Run:  runUptime,
		},
		{
			Name: "joins", Group: "History", GuildOnly: true, Usage: "[member]",
			Help: "How many times a member joined this server.",
			Run:  runJoins,
		},
	}
}

func imagePages(title string, images []store.Image) []*discordgo.MessageEmbed {
	return Paginate(images, 1, func(chunk []store.Image, index, total int) *discordgo.MessageEmbed {
		img := chunk[0]
		return &discordgo.MessageEmbed{
			Title:       title,
			Description: historyLine(img.CreatedAt),
			Color:       embedColor,
			Image:       &discordgo.MessageEmbedImage{URL: img.URL},
			Footer:      &discordgo.MessageEmbedFooter{Text: fmt.Sprintf("Page %d/%d", index+1, total)},
		}
	})
}

func runAvatars(ctx context.Context, c *Context) error {
	u, err := c.TargetUser(ctx, c.Rest)
	if err != nil {
		return err
	}
	avatars, err := c.Store.Avatars(ctx, u.ID, avatarPageLimit)
	if err != nil {
		return err
	}
	if len(avatars) == 0 {
		return Userf("I have no avatars on record for %s", u.Username)
	}
	return c.Paginate(ctx, imagePages("Avatars for "+u.Username, avatars))
}

func runGuildAvatars(ctx context.Context, c *Context) error {
	m, err := c.TargetMember(ctx, c.Rest)
	if err != nil {
		return err
	}
	avatars, err := c.Store.GuildAvatars(ctx, m.User.ID, c.GuildID, avatarPageLimit)
	if err != nil {
		return err
	}
	if len(avatars) == 0 {
		return Userf("I have no avatars on record for %s", m.User.Username)
	}
	return c.Paginate(ctx, imagePages("Guild avatars for "+m.User.Username, avatars))
}

func runAvatarHistory(ctx context.Context, c *Context) error {
	u, err := c.TargetUser(ctx, c.Rest)
	if err != nil {
		return err
	}
	avatars, err := c.Store.Avatars(ctx, u.ID, gridLimit)
	if err != nil {
		return err
	}
	if len(avatars) == 0 {
		return Userf("I have no avatars on record for %s", u.Username)
	}
	first := avatars[len(avatars)-1].CreatedAt
	if len(avatars) >= gridLimit {
		if at, ok, err := c.Store.FirstAvatar(ctx, u.ID); err == nil && ok {
			first = at
		}
	}
	return sendAvatarGrid(ctx, c, u, avatars, first)
}

func runGuildAvatarHistory(ctx context.Context, c *Context) error {
	m, err := c.TargetMember(ctx, c.Rest)
	if err != nil {
		return err
	}
	avatars, err := c.Store.GuildAvatars(ctx, m.User.ID, c.GuildID, gridLimit)
	if err != nil {
		return err
	}
	if len(avatars) == 0 {
		return Userf("I have no avatars on record for %s", m.User.Username)
	}
	first := avatars[len(avatars)-1].CreatedAt
	if len(avatars) >= gridLimit {
		if at, ok, err := c.Store.FirstGuildAvatar(ctx, m.User.ID, c.GuildID); err == nil && ok {
			first = at
		}
	}
	return sendAvatarGrid(ctx, c, m.User, avatars, first)
}

// sendAvatarGrid fetches every avatar and sends them composed into one image.
// Avatars that can no longer be fetched leave a blank cell.
func sendAvatarGrid(ctx context.Context, c *Context, u *discordgo.User, avatars []store.Image, first time.Time) error {
	c.Typing(ctx)

	images := make([][]byte, len(avatars))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(10)
	for i, a := range avatars {
		g.Go(func() error {
			data, err := c.Media.FetchImage(gctx, a.URL)
			if err != nil {
				c.Logger.Debug("avatar fetch failed", "url", a.URL, "error", err)
				return nil
			}
			images[i] = data
			return nil
		})
	}
	_ = g.Wait()

	grid, err := imaging.Grid(images, fileLimit)
	if err != nil {
		return errors.Wrap(err, "compose avatar grid")
	}

	name := u.ID + "_avatar_history.png"
	_, err = c.Send(ctx, &discordgo.MessageSend{
		Content: "Viewing avatars in a grid view for " + u.Username,
		Files:   []*discordgo.File{{Name: name, ContentType: "image/png", Reader: bytes.NewReader(grid)}},
		Embeds: []*discordgo.MessageEmbed{{
			Color:     embedColor,
			Image:     &discordgo.MessageEmbedImage{URL: "attachment://" + name},
			Footer:    &discordgo.MessageEmbedFooter{Text: "First avatar saved"},
			Timestamp: first.Format(time.RFC3339),
		}},
	})
	return err
}

func namePages(title string, entries []store.NameEntry) []*discordgo.MessageEmbed {
	return Paginate(entries, namesPerPage, func(chunk []store.NameEntry, index, total int) *discordgo.MessageEmbed {
		e := &discordgo.MessageEmbed{Title: title, Color: embedColor}
		for _, n := range chunk {
			e.Fields = append(e.Fields, &discordgo.MessageEmbedField{
				Name:  truncate(n.Name, 256),
				Value: historyLine(n.CreatedAt),
			})
		}
		if total > 1 {
			e.Footer = &discordgo.MessageEmbedFooter{Text: fmt.Sprintf("Page %d/%d", index+1, total)}
		}
		return e
	})
}

// nameHistoryCommand builds one of the per-user name history commands.
// Nicknames are per guild, so that kind needs a guild.
func nameHistoryCommand(name string, aliases []string, kind store.NameKind, title, empty string) *Command {
	return &Command{
		Name: name, Aliases: aliases, Group: "History", Usage: "[user]",
		GuildOnly: kind == store.Nicknames,
		Help:      fmt.Sprintf(title, "a user") + ".",
		Run: func(ctx context.Context, c *Context) error {
			u, err := c.TargetUser(ctx, c.Rest)
			if err != nil {
				return err
			}
			ids := []string{u.ID}
			if kind == store.Nicknames {
				ids = append(ids, c.GuildID)
			}
			entries, err := c.Store.Names(ctx, kind, ids...)
			if err != nil {
				return err
			}
			if len(entries) == 0 {
				return Userf(empty, u.Username)
			}
			return c.Paginate(ctx, namePages(fmt.Sprintf(title, u.Username), entries))
		},
	}
}

func runServerNames(ctx context.Context, c *Context) error {
	g, err := c.Guild(ctx)
	if err != nil {
		return err
	}
	entries, err := c.Store.Names(ctx, store.GuildNames, g.ID)
	if err != nil {
		return err
	}
	if len(entries) == 0 {
		return Userf("I have no server names on records for %s", g.Name)
	}
	return c.Paginate(ctx, namePages("Names for "+g.Name, entries))
}

func runIcons(ctx context.Context, c *Context) error {
	g, err := c.Guild(ctx)
	if err != nil {
		return err
	}
	icons, err := c.Store.GuildIcons(ctx, g.ID, avatarPageLimit)
	if err != nil {
		return err
	}
	if len(icons) == 0 {
		return Userf("I have no icons on record for %s", g.Name)
	}
	return c.Paginate(ctx, imagePages("Icons for "+g.Name, icons))
}

func runUptime(ctx context.Context, c *Context) error {
	if c.Rest == "" || isSelf(c, c.Rest) {
		return replyBotUptime(ctx, c)
	}
	m, err := c.TargetMember(ctx, c.Rest)
	if err != nil {
		return err
	}
	if m.User.ID == c.BotID() {
		return replyBotUptime(ctx, c)
	}

	st, err := c.latestStatus(ctx, m.User.ID)
	if err != nil {
		return err
	}
	status := st.Name
	if status == string(discordgo.StatusDoNotDisturb) {
		status = "on dnd"
	}
	_, err = c.Reply(ctx, fmt.Sprintf("%s has been %s for %s.", m.User.Username, status, humanDuration(time.Since(st.Since))))
	return err
}

func isSelf(c *Context, arg string) bool {
	id, ok := mentionedID(arg, userMentionRe)
	return ok && id == c.BotID()
}

func replyBotUptime(ctx context.Context, c *Context) error {
	_, err := c.Reply(ctx, "Hi, I have been awake for "+humanDuration(time.Since(c.handler.started)))
	return err
}

// latestStatus returns the member's newest status_logs row. When none exists
// the current presence is recorded and returned.
func (c *Context) latestStatus(ctx context.Context, userID string) (store.Status, error) {
	st, found, err := c.Store.LatestStatus(ctx, userID, c.GuildID)
	if err != nil || found {
		return st, err
	}
	st = store.Status{Name: string(discordgo.StatusOffline), Since: time.Now()}
	if c.State != nil {
		if p, err := c.State.Presence(c.GuildID, userID); err == nil && p.Status != "" {
			st.Name = string(p.Status)
		}
	}
	if err := c.Store.AddStatus(ctx, userID, c.GuildID, st.Name, st.Since); err != nil {
		return st, err
	}
	return st, nil
}

func runJoins(ctx context.Context, c *Context) error {
	m, err := c.TargetMember(ctx, c.Rest)
	if err != nil {
		return err
	}
	if c.Cache.IsOptedOut(m.User.ID, "joins") {
		return Userf("%s has opted out of join logs.", m.User.Username)
	}
	g, err := c.Guild(ctx)
	if err != nil {
		return err
	}
	n, err := c.Store.JoinCount(ctx, m.User.ID, c.GuildID)
	if err != nil {
		return err
	}
	if n == 0 {
		at := m.JoinedAt
		if at.IsZero() {
			at = time.Now()
		}
		if err := c.Store.AddJoin(ctx, m.User.ID, c.GuildID, at); err != nil {
			return err
		}
		n = 1
	}
	_, err = c.Reply(ctx, fmt.Sprintf("%s has joined %s %s.", m.User.Username, g.Name, plural(n, "time")))
	return err
}
