package commands

import (
	"regexp"
	"strings"
	"unicode"
)

// ResolvePrefix returns the prefix content starts with, as it appears in
// content. A mention of the bot is always accepted. In guilds the default
// prefix and the guild's custom prefixes are matched case-insensitively, in
// that order; in DMs only the default prefix applies.
func ResolvePrefix(content, botID, defaultPrefix string, guildPrefixes []string, inGuild bool) (string, bool) {
	for _, mention := range []string{"<@" + botID + ">", "<@!" + botID + ">"} {
		if botID != "" && strings.HasPrefix(content, mention) {
			return mention, true
		}
	}

	if !inGuild {
		if strings.HasPrefix(content, defaultPrefix) {
			return defaultPrefix, true
		}
		return "", false
	}

	packed := append([]string{defaultPrefix}, guildPrefixes...)
	quoted := make([]string, 0, len(packed))
	for _, p := range packed {
		if p != "" {
			quoted = append(quoted, regexp.QuoteMeta(p))
		}
	}
	re, err := regexp.Compile("(?i)^(" + strings.Join(quoted, "|") + ")")
	if err != nil {
		return "", false
	}
	if m := re.FindStringSubmatch(content); m != nil {
		return m[1], true
	}
	return "", false
}

// splitCommand separates the first word of s from the rest, trimming the
// whitespace between them.
func splitCommand(s string) (name, rest string) {
	s = strings.TrimLeftFunc(s, unicode.IsSpace)
	i := strings.IndexFunc(s, unicode.IsSpace)
	if i < 0 {
		return s, ""
	}
	return s[:i], strings.TrimLeftFunc(s[i:], unicode.IsSpace)
}
