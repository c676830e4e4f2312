package commands

import (
	"bytes"
	"context"
	"fmt"
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/bwmarrin/discordgo"

	"github.com/tomasmach/fishie/discorderr"
	"github.com/tomasmach/fishie/media"
	"github.com/tomasmach/fishie/store"
)

const (
	tooBigNotice    = "Files were too big, try a smaller video. **These will delete after 72 hours**\n\n"
	urbanPerPage    = 4
	ranksPerPage    = 10
	leaderboardSize = 100
)

var (
	lastFMNameRe   = regexp.MustCompile(`^[A-Za-z][\w-]{1,14}$`)
	urbanLinkStrip = strings.NewReplacer("[", "", "]", "")
)

func toolCommands() []*Command {
	return []*Command{
		{
			Name: "download", Aliases: []string{"dl"}, Group: "Tools",
			Usage:    "<url> [-format mp4|mp3|webm] [-title t] [-twittergif true|false]",
			Help:     "Downloads a video from TikTok, Instagram, Twitter, Reddit, YouTube, Twitch or SoundCloud.",
			Cooldown: NewCooldowns(1, 5*time.Second),
			Run:      runDownload,
		},
		{
			Name: "tenor", Group: "Tools", Usage: "<url>",
			Help: "The GIF behind a Tenor link.",
			Run:  runTenor,
		},
		{
			Name: "urban", Aliases: []string{"ud"}, Group: "Tools", Usage: "<term>",
			Help:     "Urban Dictionary definitions of a term.",
			Cooldown: NewCooldowns(2, 5*time.Second),
			Run:      runUrban,
		},
		{
			Name: "xp", Group: "Tools", Usage: "[user]",
			Help: "XP a user earned by chatting.",
			Run:  runXP,
		},
		{
			Name: "rank", Aliases: []string{"leaderboard", "lb"}, Group: "Tools",
			Help: "The global XP leaderboard.",
			Run:  runRank,
		},
		{
			Name: "fm", Aliases: []string{"np"}, Group: "Tools", Usage: "[user]",
			Help:     "What a user is listening to on last.fm.",
			Cooldown: NewCooldowns(3, 10*time.Second),
			Run:      runNowPlaying,
			Subcommands: []*Command{
				{Name: "nsfw", Usage: "<artist - album>", OwnerOnly: true, Hidden: true,
					Help: "Hides the cover of an album.", Run: runHideCover},
			},
		},
		{
			Name: "accounts", Aliases: []string{"account", "acc"}, Group: "Tools",
			Help: "Your linked accounts.",
			Run:  runAccounts,
			Subcommands: []*Command{
				{Name: "link", Aliases: []string{"set"}, Usage: "lastfm <name>", Help: "Links an account.", Run: runAccountLink},
				{Name: "unlink", Aliases: []string{"remove"}, Usage: "lastfm", Help: "Unlinks an account.", Run: runAccountUnlink},
			},
		},
	}
}

func runDownload(ctx context.Context, c *Context) error {
	args, flags := parseFlags(c.Args, map[string]string{"format": "mp4", "title": "", "twittergif": "true"})
	if len(args) == 0 {
		return Userf("Give me a link to download.")
	}
	format := strings.ToLower(flags["format"])
	switch format {
	case "mp4", "mp3", "webm":
	default:
		return Userf("`%s` is not a format, pick mp4, mp3 or webm.", format)
	}
	gif, err := strconv.ParseBool(flags["twittergif"])
	if err != nil {
		return Userf("-twittergif has to be true or false.")
	}
	return c.download(ctx, media.Request{
		URL:        strings.Trim(args[0], "<>"),
		Format:     format,
		Title:      flags["title"],
		TwitterGif: gif,
	})
}

// download fetches req and delivers the files. A multi-item post is
// announced while it downloads.
func (c *Context) download(ctx context.Context, req media.Request) error {
	c.Typing(ctx)

	var picker *discordgo.Message
	req.OnPicker = func() {
		if msg, err := c.SendText(ctx, "Multiple videos detected, downloading."); err == nil {
			picker = msg
		}
	}
	files, err := c.Media.Download(ctx, req)
	if picker != nil {
		if err := c.Session.ChannelMessageDelete(picker.ChannelID, picker.ID, discordgo.WithContext(ctx)); err != nil {
			c.Logger.Debug("delete picker notice failed", "error", err)
		}
	}
	if err != nil {
		return err
	}
	defer c.Media.Cleanup(files)
	if len(files) == 0 {
		return media.ErrNothingReturned
	}
	return c.deliver(ctx, files)
}

// deliver replies with files. When Discord rejects them as too large they are
// uploaded to the paste host and linked instead.
func (c *Context) deliver(ctx context.Context, files []media.File) error {
	attachments := make([]*discordgo.File, 0, len(files))
	for _, f := range files {
		rc, err := f.Open()
		if err != nil {
			return err
		}
		defer rc.Close()
		attachments = append(attachments, &discordgo.File{Name: f.Name, Reader: rc})
	}

	_, err := c.Send(ctx, &discordgo.MessageSend{Files: attachments, Reference: c.Message.SoftReference()})
	if err == nil || !discorderr.TooLarge(err) {
		return err
	}

	links := make([]string, 0, len(files))
	for _, f := range files {
		link, err := c.Media.UploadTemporary(ctx, f)
		if err != nil {
			return err
		}
		links = append(links, link)
	}
	_, err = c.Reply(ctx, tooBigNotice+strings.Join(links, "\n"))
	return err
}

// AutoDownload downloads the first video or Tenor link of a message posted in
// an auto-download channel. It reports whether a download was attempted.
func (h *Handler) AutoDownload(ctx context.Context, m *discordgo.Message) bool {
	if m.Author == nil || m.Author.Bot || !h.cache.IsADL(m.ChannelID) {
		return false
	}
	tenor, isTenor := media.FindTenorPage(m.Content)
	video, _, isVideo := media.FindVideo(m.Content)
	if !isTenor && !isVideo {
		return false
	}
	if ok, _ := h.autoDownloads.Allow(m.GuildID + ":" + m.Author.ID); !ok {
		return false
	}

	c := h.newContext(m)
	c.Invoked = "autodownload"
	c.Rest = tenor
	c.Logger = h.logger.With("guild_id", c.GuildID, "channel_id", c.ChannelID, "command", c.Invoked, "user_id", c.Author.ID)

	if isTenor {
		err := c.sendTenor(ctx, tenor)
		if err == nil {
			return true
		}
		c.Logger.Warn("tenor scrape failed, downloading instead", "url", tenor, "error", err)
		if !isVideo {
			video = tenor
		}
	}
	c.Rest = video
	h.fail(ctx, c, c.download(ctx, media.Request{URL: video, Format: "mp4", TwitterGif: true}))
	return true
}

func (c *Context) sendTenor(ctx context.Context, page string) error {
	gifURL, err := c.Media.TenorGIF(ctx, page)
	if err != nil {
		return err
	}
	data, err := c.Media.FetchImage(ctx, gifURL)
	if err != nil {
		return err
	}
	_, err = c.SendFiles(ctx, "", &discordgo.File{Name: "tenor.gif", ContentType: "image/gif", Reader: bytes.NewReader(data)})
	return err
}

func runTenor(ctx context.Context, c *Context) error {
	arg := strings.Trim(c.Arg(0), "<>")
	if media.IsTenorGIF(arg) {
		_, err := c.Reply(ctx, arg)
		return err
	}
	page, ok := media.FindTenorPage(arg)
	if !ok {
		return Userf("That is not a Tenor link.")
	}
	gifURL, err := c.Media.TenorGIF(ctx, page)
	if err != nil {
		return err
	}
	_, err = c.Reply(ctx, gifURL)
	return err
}

type urbanDefinition struct {
	Word       string `json:"word"`
	Definition string `json:"definition"`
	Example    string `json:"example"`
	Author     string `json:"author"`
	Permalink  string `json:"permalink"`
	ThumbsUp   int64  `json:"thumbs_up"`
	ThumbsDown int64  `json:"thumbs_down"`
}

func runUrban(ctx context.Context, c *Context) error {
	if c.Rest == "" {
		return Userf("Give me something to look up.")
	}
	var body struct {
		List []urbanDefinition `json:"list"`
	}
	if err := getJSON(ctx, c.HTTP, c.Config.APIs.Urban+"?term="+url.QueryEscape(c.Rest), &body); err != nil {
		return err
	}
	if len(body.List) == 0 {
		return Userf("Nothing was found for this phrase.")
	}

	pages := Paginate(body.List, urbanPerPage, func(chunk []urbanDefinition, index, total int) *discordgo.MessageEmbed {
		e := &discordgo.MessageEmbed{
			Title:  "Urban Dictionary: " + truncate(c.Rest, 200),
			Color:  embedColor,
			Footer: &discordgo.MessageEmbedFooter{Text: fmt.Sprintf("Page %d/%d", index+1, total)},
		}
		for _, d := range chunk {
			value := urbanLinkStrip.Replace(d.Definition)
			if d.Example != "" {
				value += "\n\n*" + urbanLinkStrip.Replace(d.Example) + "*"
			}
			votes := fmt.Sprintf("\n👍 %s 👎 %s", number(d.ThumbsUp), number(d.ThumbsDown))
			e.Fields = append(e.Fields, &discordgo.MessageEmbedField{
				Name:  truncate(d.Word+" by "+d.Author, 256),
				Value: truncate(value, 1024-len(votes)) + votes,
			})
		}
		return e
	})
	return c.Paginate(ctx, pages)
}

func runXP(ctx context.Context, c *Context) error {
	u, err := c.TargetUser(ctx, c.Rest)
	if err != nil {
		return err
	}
	xp, err := c.Store.XP(ctx, u.ID)
	if err != nil {
		return err
	}
	if xp == 0 {
		return Userf("This user has no recorded XP")
	}
	_, err = c.SendEmbed(ctx, &discordgo.MessageEmbed{
		Title:       u.Username,
		Description: number(xp) + " XP",
		Color:       embedColor,
		Thumbnail:   &discordgo.MessageEmbedThumbnail{URL: u.AvatarURL("256")},
	})
	return err
}

func runRank(ctx context.Context, c *Context) error {
	top, err := c.Store.TopXP(ctx, leaderboardSize)
	if err != nil {
		return err
	}
	if len(top) == 0 {
		return Userf("No data found")
	}
	pages := Paginate(top, ranksPerPage, func(chunk []store.XPEntry, index, total int) *discordgo.MessageEmbed {
		lines := make([]string, len(chunk))
		for i, e := range chunk {
			lines[i] = fmt.Sprintf("`%d.` <@%s> - %s XP", index*ranksPerPage+i+1, e.UserID, number(e.XP))
		}
		return &discordgo.MessageEmbed{
			Title:       "Global ranks",
			Description: strings.Join(lines, "\n"),
			Color:       embedColor,
			Footer:      &discordgo.MessageEmbedFooter{Text: fmt.Sprintf("Page %d/%d", index+1, total)},
		}
	})
	return c.Paginate(ctx, pages)
}

type lastFMText struct {
	Text string `json:"#text"`
}

type lastFMTrack struct {
	Name   string       `json:"name"`
	URL    string       `json:"url"`
	Artist lastFMText   `json:"artist"`
	Album  lastFMText   `json:"album"`
	Image  []lastFMText `json:"image"`
	Attr   *struct {
		NowPlaying string `json:"nowplaying"`
	} `json:"@attr"`
}

func albumKey(artist, album string) string {
	return strings.ToLower(strings.TrimSpace(artist) + " - " + strings.TrimSpace(album))
}

func runNowPlaying(ctx context.Context, c *Context) error {
	u, err := c.TargetUser(ctx, c.Rest)
	if err != nil {
		return err
	}
	name, ok, err := c.Store.LastFM(ctx, u.ID)
	if err != nil {
		return err
	}
	if !ok {
		return Userf("%s has not linked a last.fm account. Use `%saccounts link lastfm <name>`.", u.Username, c.Prefix)
	}
	if c.Config.Keys.LastFM == "" {
		return Userf("Last.fm is not configured on this bot.")
	}

	q := url.Values{
		"method":  {"user.getrecenttracks"},
		"user":    {name},
		"api_key": {c.Config.Keys.LastFM},
		"format":  {"json"},
		"limit":   {"1"},
	}
	var body struct {
		RecentTracks struct {
			Track []lastFMTrack `json:"track"`
		} `json:"recenttracks"`
	}
	if err := getJSON(ctx, c.HTTP, c.Config.APIs.LastFM+"?"+q.Encode(), &body); err != nil {
		return err
	}
	if len(body.RecentTracks.Track) == 0 {
		return Userf("%s has not scrobbled anything yet.", name)
	}

	t := body.RecentTracks.Track[0]
	state := "Last played"
	if t.Attr != nil && t.Attr.NowPlaying == "true" {
		state = "Now playing"
	}
	e := &discordgo.MessageEmbed{
		Author:      &discordgo.MessageEmbedAuthor{Name: state + " - " + name, IconURL: u.AvatarURL("64")},
		Title:       truncate(t.Name, 256),
		URL:         t.URL,
		Description: fmt.Sprintf("by **%s** on *%s*", EscapeMarkdown(t.Artist.Text), EscapeMarkdown(t.Album.Text)),
		Color:       embedColor,
	}
	if c.Cache.IsNSFWCover(albumKey(t.Artist.Text, t.Album.Text)) {
		e.Footer = &discordgo.MessageEmbedFooter{Text: "Cover hidden, it could be NSFW"}
	} else if n := len(t.Image); n > 0 && t.Image[n-1].Text != "" {
		e.Thumbnail = &discordgo.MessageEmbedThumbnail{URL: t.Image[n-1].Text}
	}
	_, err = c.SendEmbed(ctx, e)
	return err
}

func runHideCover(ctx context.Context, c *Context) error {
	artist, album, ok := strings.Cut(c.Rest, " - ")
	if !ok {
		return Userf("Use `artist - album`.")
	}
	c.Cache.AddNSFWCover(albumKey(artist, album))
	c.React(ctx, checkMark)
	return nil
}

func runAccounts(ctx context.Context, c *Context) error {
	name, ok, err := c.Store.LastFM(ctx, c.Author.ID)
	if err != nil {
		return err
	}
	value := "Not linked"
	if ok {
		value = fmt.Sprintf("[%s](https://www.last.fm/user/%s)", EscapeMarkdown(name), url.PathEscape(name))
	}
	_, err = c.SendEmbed(ctx, &discordgo.MessageEmbed{
		Title:  "Accounts for " + c.Author.Username,
		Color:  embedColor,
		Fields: []*discordgo.MessageEmbedField{{Name: "Last.fm", Value: value}},
	})
	return err
}

func accountService(c *Context) error {
	if !strings.EqualFold(c.Arg(0), "lastfm") {
		return Userf("Only `lastfm` accounts can be linked right now.")
	}
	return nil
}

func runAccountLink(ctx context.Context, c *Context) error {
	if err := accountService(c); err != nil {
		return err
	}
	name := c.Arg(1)
	if !lastFMNameRe.MatchString(name) {
		return Userf("`%s` is not a valid last.fm username.", name)
	}
	if err := c.Store.SetLastFM(ctx, c.Author.ID, name); err != nil {
		return err
	}
	_, err := c.Reply(ctx, fmt.Sprintf("Linked last.fm account `%s`.", name))
	return err
}

func runAccountUnlink(ctx context.Context, c *Context) error {
	if err := accountService(c); err != nil {
		return err
	}
	if err := c.Store.SetLastFM(ctx, c.Author.ID, ""); err != nil {
		return err
	}
	_, err := c.Reply(ctx, "Unlinked your last.fm account.")
	return err
}
