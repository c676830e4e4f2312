package commands

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"regexp"
	"strings"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/bwmarrin/discordgo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const recentTrackBody = `{"recenttracks":{"track":[{
	"name":"Song","url":"https://www.last.fm/music/Artist/_/Song",
	"artist":{"#text":"Artist"},"album":{"#text":"Album"},
	"image":[{"#text":"https://img.example/s.png"},{"#text":"https://img.example/xl.png"}],
	"@attr":{"nowplaying":"true"}}]}}`

func expectLastFM(env *testEnv, name string) {
	rows := sqlmock.NewRows([]string{"lastfm"})
	if name != "" {
		rows.AddRow(name)
	}
	env.mock.ExpectQuery(regexp.QuoteMeta("SELECT lastfm FROM accounts WHERE user_id = $1")).
		WithArgs(userSnowflake).
		WillReturnRows(rows)
}

func newLastFMServer(t *testing.T, body string) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		assert.Equal(t, "user.getrecenttracks", q.Get("method"))
		assert.Equal(t, "fishguy", q.Get("user"))
		assert.Equal(t, "secret", q.Get("api_key"))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestNowPlaying(t *testing.T) {
	srv := newLastFMServer(t, recentTrackBody)
	env := newTestEnv(t)
	env.handler.cfg.Keys.LastFM = "secret"
	env.handler.cfg.APIs.LastFM = srv.URL
	expectLastFM(env, "fishguy")

	env.handler.Process(context.Background(), env.message("fish fm", testUserID, testGuildID))

	embeds := env.session.last().Data.Embeds
	require.Len(t, embeds, 1)
	e := embeds[0]
	assert.Equal(t, "Now playing - fishguy", e.Author.Name)
	assert.Equal(t, "Song", e.Title)
	assert.Equal(t, "by **Artist** on *Album*", e.Description)
	require.NotNil(t, e.Thumbnail)
	assert.Equal(t, "https://img.example/xl.png", e.Thumbnail.URL)
	require.NoError(t, env.mock.ExpectationsWereMet())
}

func TestNowPlayingHidesFlaggedCover(t *testing.T) {
	srv := newLastFMServer(t, recentTrackBody)
	env := newTestEnv(t)
	env.handler.cfg.Keys.LastFM = "secret"
	env.handler.cfg.APIs.LastFM = srv.URL
	env.cache.AddNSFWCover(albumKey("artist ", "ALBUM"))
	expectLastFM(env, "fishguy")

	env.handler.Process(context.Background(), env.message("fish np", testUserID, testGuildID))

	e := env.session.last().Data.Embeds[0]
	assert.Nil(t, e.Thumbnail)
	assert.Equal(t, "Cover hidden, it could be NSFW", e.Footer.Text)
}

func TestNowPlayingErrors(t *testing.T) {
	tests := []struct {
		name   string
		linked string
		key    string
		body   string
		want   string
	}{
		{
			name: "not linked",
			key:  "secret",
			want: "tester has not linked a last.fm account. Use `fish accounts link lastfm <name>`.",
		},
		{
			name:   "no api key",
			linked: "fishguy",
			want:   "Last.fm is not configured on this bot.",
		},
		{
			name:   "nothing scrobbled",
			linked: "fishguy",
			key:    "secret",
			body:   `{"recenttracks":{"track":[]}}`,
			want:   "fishguy has not scrobbled anything yet.",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := newLastFMServer(t, tt.body)
			env := newTestEnv(t)
			env.handler.cfg.Keys.LastFM = tt.key
			env.handler.cfg.APIs.LastFM = srv.URL
			expectLastFM(env, tt.linked)

			env.handler.Process(context.Background(), env.message("fish fm", testUserID, testGuildID))
			assert.Equal(t, tt.want, env.session.last().Data.Content)
			require.NoError(t, env.mock.ExpectationsWereMet())
		})
	}
}

func TestAccounts(t *testing.T) {
	tests := []struct {
		name   string
		linked string
		want   string
	}{
		{name: "unlinked", want: "Not linked"},
		{name: "linked", linked: "fishguy", want: "[fishguy](https://www.last.fm/user/fishguy)"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newTestEnv(t)
			expectLastFM(env, tt.linked)

			env.handler.Process(context.Background(), env.message("fish accounts", testUserID, testGuildID))

			embeds := env.session.last().Data.Embeds
			require.Len(t, embeds, 1)
			assert.Equal(t, "Accounts for tester", embeds[0].Title)
			assert.Equal(t, tt.want, embeds[0].Fields[0].Value)
			require.NoError(t, env.mock.ExpectationsWereMet())
		})
	}
}

func TestAccountLinkAndUnlink(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	upsert := regexp.QuoteMeta("INSERT INTO accounts (user_id, lastfm) VALUES ($1, $2)")

	env.mock.ExpectExec(upsert).WithArgs(userSnowflake, "fishguy").WillReturnResult(sqlmock.NewResult(0, 1))
	env.handler.Process(ctx, env.message("fish accounts link lastfm fishguy", testUserID, testGuildID))
	assert.Equal(t, "Linked last.fm account `fishguy`.", env.session.last().Data.Content)

	env.mock.ExpectExec(upsert).WithArgs(userSnowflake, nil).WillReturnResult(sqlmock.NewResult(0, 1))
	env.handler.Process(ctx, env.message("fish acc unlink lastfm", testUserID, testGuildID))
	assert.Equal(t, "Unlinked your last.fm account.", env.session.last().Data.Content)

	require.NoError(t, env.mock.ExpectationsWereMet())
}

func TestAccountLinkRejects(t *testing.T) {
	tests := []struct {
		content string
		want    string
	}{
		{"fish accounts link spotify fishguy", "Only `lastfm` accounts can be linked right now."},
		{"fish accounts link lastfm 1fish", "`1fish` is not a valid last.fm username."},
		{"fish accounts unlink steam", "Only `lastfm` accounts can be linked right now."},
	}
	for _, tt := range tests {
		t.Run(tt.content, func(t *testing.T) {
			env := newTestEnv(t)
			env.handler.Process(context.Background(), env.message(tt.content, testUserID, testGuildID))
			assert.Equal(t, tt.want, env.session.last().Data.Content)
			require.NoError(t, env.mock.ExpectationsWereMet())
		})
	}
}

func TestRankPaginates(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	rows := sqlmock.NewRows([]string{"user_id", "xp"})
	for i := range 12 {
		rows.AddRow(fmt.Sprintf("9000000000000001%02d", i), int64(5000-i*100))
	}
	env.mock.ExpectQuery(regexp.QuoteMeta("SELECT user_id, xp FROM message_xp ORDER BY xp DESC LIMIT $1")).
		WithArgs(leaderboardSize).
		WillReturnRows(rows)

	env.handler.Process(ctx, env.message("fish lb", testUserID, testGuildID))

	sent := env.session.last().Data
	require.Len(t, sent.Embeds, 1)
	first := sent.Embeds[0]
	assert.Equal(t, "Global ranks", first.Title)
	assert.Equal(t, "Page 1/2", first.Footer.Text)
	assert.Len(t, strings.Split(first.Description, "\n"), ranksPerPage)
	assert.True(t, strings.HasPrefix(first.Description, "`1.` <@900000000000000100> - 5,000 XP"))
	assert.NotEmpty(t, sent.Components)

	env.handler.HandleInteraction(ctx, &discordgo.Interaction{
		Type:    discordgo.InteractionMessageComponent,
		Data:    discordgo.MessageComponentInteractionData{CustomID: pagerPrefix + "next"},
		Message: &discordgo.Message{ID: "100000000000000001"},
		Member:  &discordgo.Member{User: &discordgo.User{ID: testUserID}},
	})
	require.NotEmpty(t, env.session.responses)
	second := env.session.responses[len(env.session.responses)-1].Data.Embeds[0]
	assert.Equal(t, "Page 2/2", second.Footer.Text)
	assert.Equal(t, "`11.` <@900000000000000110> - 4,000 XP\n`12.` <@900000000000000111> - 3,900 XP", second.Description)
	require.NoError(t, env.mock.ExpectationsWereMet())
}

func TestRankEmpty(t *testing.T) {
	env := newTestEnv(t)
	env.mock.ExpectQuery(regexp.QuoteMeta("SELECT user_id, xp FROM message_xp")).
		WithArgs(leaderboardSize).
		WillReturnRows(sqlmock.NewRows([]string{"user_id", "xp"}))

	env.handler.Process(context.Background(), env.message("fish rank", testUserID, testGuildID))
	assert.Equal(t, "No data found", env.session.last().Data.Content)
}
