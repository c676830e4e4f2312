// Package media recognizes media URLs and downloads them through the download
// proxy or yt-dlp.
package media

import (
	"regexp"
)

// Site is a recognized media host.
type Site int

const (
	Unknown Site = iota
	TikTok
	Instagram
	TwitchClip
	Twitter
	Reddit
	YouTubeClip
	YouTubeShort
	YouTube
	SoundCloud
	Pinterest
)

var siteNames = map[Site]string{
	Unknown:      "unknown",
	TikTok:       "tiktok",
	Instagram:    "instagram",
	TwitchClip:   "twitch",
	Twitter:      "twitter",
	Reddit:       "reddit",
	YouTubeClip:  "youtube_clip",
	YouTubeShort: "youtube_shorts",
	YouTube:      "youtube",
	SoundCloud:   "soundcloud",
	Pinterest:    "pinterest",
}

func (s Site) String() string {
	return siteNames[s]
}

type sitePattern struct {
	site Site
	re   *regexp.Regexp
}

// sitePatterns is ordered: clips and shorts must be tried before YouTube.
var sitePatterns = []sitePattern{
	{TikTok, regexp.MustCompile(`https://(?:(?:vt|www|vm|m|vk)\.)?tiktok\.com/(?:@?[a-zA-Z0-9_.]+/?){0,3}`)},
	{Instagram, regexp.MustCompile(`https://(?:www\.)?instagram\.com/(?:p|tv|reel)/[a-zA-Z0-9_-]{5,}`)},
	{TwitchClip, regexp.MustCompile(`https?://clips\.twitch\.tv/[a-zA-Z0-9_-]+`)},
	{Twitter, regexp.MustCompile(`https?://(?:www\.)?(?:twitter|x)\.com/[a-zA-Z0-9_]+/status/[0-9]{19,}`)},
	{Reddit, regexp.MustCompile(`https?://(?:www\.)?reddit\.com/r/[a-zA-Z0-9_-]{1,20}/comments/[a-z0-9]{6}`)},
	{YouTubeClip, regexp.MustCompile(`https://(?:www\.)?youtube\.com/clip/[A-Za-z0-9_-]+`)},
	{YouTubeShort, regexp.MustCompile(`https://(?:www\.)?youtube\.com/shorts/[a-zA-Z0-9_-]{11}`)},
	{YouTube, regexp.MustCompile(`https://(?:www\.)?(?:youtu\.be/|youtube\.com/watch\?v=)[a-zA-Z0-9_-]{11}`)},
	{SoundCloud, regexp.MustCompile(`https?://(?:on\.)?soundcloud\.com/[a-zA-Z0-9_-]{3,25}(?:/[a-z0-9_-]{3,255})?`)},
	{Pinterest, regexp.MustCompile(`https?://(?:www\.pinterest\.com/pin/[0-9]+/?|pin\.it/[a-zA-Z0-9]+)`)},
}

var (
	tenorPageRE   = regexp.MustCompile(`https?://(?:www\.)?tenor\.com/view/\S+`)
	tenorGIFRE    = regexp.MustCompile(`https?://(?:(?:c|media1?)\.)tenor\.com/\S+/\S+\.gif`)
	messageLinkRE = regexp.MustCompile(`https://(?:(?:ptb|canary)\.)?discord(?:app)?\.com/channels/(@me|[0-9]{8,})/([0-9]{8,})/([0-9]{8,})`)
)

// Classify returns the site url belongs to.
func Classify(url string) Site {
	for _, p := range sitePatterns {
		if p.re.MatchString(url) {
			return p.site
		}
	}
	return Unknown
}

// FindVideo returns the first recognized media URL in content.
func FindVideo(content string) (string, Site, bool) {
	best, bestSite := []int(nil), Unknown
	for _, p := range sitePatterns {
		loc := p.re.FindStringIndex(content)
		if loc == nil {
			continue
		}
		if best == nil || loc[0] < best[0] {
			best, bestSite = loc, p.site
		}
	}
	if best == nil {
		return "", Unknown, false
	}
	return content[best[0]:best[1]], bestSite, true
}

// usesProxy reports whether site is downloaded through the download proxy.
func usesProxy(site Site) bool {
	switch site {
	case TikTok, YouTubeShort, YouTube, Twitter, Reddit:
		return true
	}
	return false
}

// FindTenorPage returns the first Tenor page URL in content.
func FindTenorPage(content string) (string, bool) {
	m := tenorPageRE.FindString(content)
	return m, m != ""
}

func IsTenorGIF(url string) bool {
	return tenorGIFRE.MatchString(url)
}

// MessageLink is a parsed Discord message jump link. GuildID is "@me" for DMs.
type MessageLink struct {
	GuildID   string
	ChannelID string
	MessageID string
}

func ParseMessageLink(s string) (MessageLink, bool) {
	m := messageLinkRE.FindStringSubmatch(s)
	if m == nil {
		return MessageLink{}, false
	}
	return MessageLink{GuildID: m[1], ChannelID: m[2], MessageID: m[3]}, true
}
