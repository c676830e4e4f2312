package commands

import "testing"

func TestResolvePrefix(t *testing.T) {
	const bot = "900000000000000001"
	tests := []struct {
		name    string
		content string
		guild   []string
		inGuild bool
		want    string
		ok      bool
	}{
		{"default in guild", "fish ping", nil, true, "fish ", true},
		{"default is case-insensitive", "FISH ping", nil, true, "FISH ", true},
		{"custom guild prefix", "!ping", []string{"!", "?"}, true, "!", true},
		{"second custom prefix", "?ping", []string{"!", "?"}, true, "?", true},
		{"regex characters are literal", "a.ping", []string{"a."}, true, "a.", true},
		{"no match", "hello", []string{"!"}, true, "", false},
		{"mention", "<@" + bot + "> ping", nil, true, "<@" + bot + ">", true},
		{"nick mention", "<@!" + bot + "> ping", nil, false, "<@!" + bot + ">", true},
		{"default in DM", "fish ping", nil, false, "fish ", true},
		{"guild prefix ignored in DM", "!ping", []string{"!"}, false, "", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := ResolvePrefix(tt.content, bot, "fish ", tt.guild, tt.inGuild)
			if got != tt.want || ok != tt.ok {
				t.Errorf("ResolvePrefix(%q) = %q, %v; want %q, %v", tt.content, got, ok, tt.want, tt.ok)
			}
		})
	}
}

func TestSplitCommand(t *testing.T) {
	tests := []struct {
		in, name, rest string
	}{
		{"ping", "ping", ""},
		{"  avatars server  someone", "avatars", "server  someone"},
		{"dl\nhttps://x", "dl", "https://x"},
		{"", "", ""},
	}
	for _, tt := range tests {
		name, rest := splitCommand(tt.in)
		if name != tt.name || rest != tt.rest {
			t.Errorf("splitCommand(%q) = %q, %q; want %q, %q", tt.in, name, rest, tt.name, tt.rest)
		}
	}
}
