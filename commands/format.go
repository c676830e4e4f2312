package commands

import (
	"fmt"
	"strings"
	"time"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

const embedColor = 0xFAA0C1

var (
	titler  = cases.Title(language.English)
	printer = message.NewPrinter(language.English)
)

// timestamp formats t as a Discord timestamp markup with the given style
// (R relative, d short date, F long date and time).
func timestamp(t time.Time, style string) string {
	return fmt.Sprintf("<t:%d:%s>", t.Unix(), style)
}

// historyLine is how every history entry shows when it was recorded.
func historyLine(t time.Time) string {
	return timestamp(t, "R") + " | " + timestamp(t, "d")
}

func titleCase(s string) string {
	return titler.String(s)
}

// number formats n with thousands separators.
func number(n int64) string {
	return printer.Sprintf("%d", n)
}

func plural(n int, word string) string {
	if n == 1 {
		return fmt.Sprintf("%d %s", n, word)
	}
	return fmt.Sprintf("%d %ss", n, word)
}

// humanJoin joins items as "a, b and c".
func humanJoin(items []string, conj string) string {
	switch len(items) {
	case 0:
		return ""
	case 1:
		return items[0]
	}
	return strings.Join(items[:len(items)-1], ", ") + " " + conj + " " + items[len(items)-1]
}

// humanDuration spells d out in its three largest units, e.g.
// "2 days, 4 hours and 1 minute".
func humanDuration(d time.Duration) string {
	if d < time.Second {
		return "0 seconds"
	}
	units := []struct {
		size time.Duration
		name string
	}{
		{365 * 24 * time.Hour, "year"},
		{30 * 24 * time.Hour, "month"},
		{24 * time.Hour, "day"},
		{time.Hour, "hour"},
		{time.Minute, "minute"},
		{time.Second, "second"},
	}
	var parts []string
	for _, u := range units {
		if n := d / u.size; n > 0 {
			parts = append(parts, plural(int(n), u.name))
			d -= n * u.size
		}
		if len(parts) == 3 {
			break
		}
	}
	return humanJoin(parts, "and")
}

var markdownEscaper = strings.NewReplacer(
	`\`, `\\`,
	"*", `\*`,
	"_", `\_`,
	"~", `\~`,
	"`", "\\`",
	"|", `\|`,
	">", `\>`,
)

// EscapeMarkdown escapes Discord markdown in user content.
func EscapeMarkdown(s string) string {
	return markdownEscaper.Replace(s)
}

// truncate shortens s to at most n runes, ending it with an ellipsis.
func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}
