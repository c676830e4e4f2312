package bot

import (
	"context"
	"io"
	"log/slog"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/bwmarrin/discordgo"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tomasmach/fishie/cache"
)

func TestAutoDownloadEndToEnd(t *testing.T) {
	env := newTestEnv(t)
	env.mock.ExpectQuery("SELECT guild_id, prefix FROM guild_prefixes").
		WillReturnRows(sqlmock.NewRows([]string{"guild_id", "prefix"}))
	env.mock.ExpectQuery("SELECT user_id, items FROM opted_out").
		WillReturnRows(sqlmock.NewRows([]string{"user_id", "items"}))
	env.mock.ExpectQuery("SELECT guild_id, items FROM guild_opted_out").
		WillReturnRows(sqlmock.NewRows([]string{"guild_id", "items"}))
	env.mock.ExpectQuery("SELECT guild_id, auto_download, pinboard, poketwo, auto_reactions FROM guild_settings").
		WillReturnRows(sqlmock.NewRows([]string{"guild_id", "auto_download", "pinboard", "poketwo", "auto_reactions"}).
			AddRow(int64(1), int64(123456), nil, false, false))

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	require.NoError(t, cache.Populate(context.Background(), env.cache, env.store, logger))
	require.True(t, env.cache.IsADL("123456"))

	env.mock.ExpectExec("INSERT INTO message_xp").
		WithArgs(int64(900000000000000003), int64(20)).
		WillReturnResult(sqlmock.NewResult(0, 1))

	const video = "https://www.tiktok.com/@fish/video/7312345678901234567"
	env.bot.onMessageCreate(&discordgo.MessageCreate{Message: message("look "+video, testUserID, "123456")})
	require.Len(t, env.media.requests, 1)
	assert.Equal(t, video, env.media.requests[0].URL)
	require.Len(t, env.session.sent, 1)
	assert.Equal(t, "123456", env.session.sent[0].ChannelID)

	env.bot.onMessageCreate(&discordgo.MessageCreate{Message: message(video, testUserID, testChanID)})
	assert.Len(t, env.media.requests, 1)
	assert.Empty(t, env.reporter.errs)
	require.NoError(t, env.mock.ExpectationsWereMet())
}

func TestMessageCreateRunsCommand(t *testing.T) {
	env := newTestEnv(t)
	env.skipXP(testUserID)

	env.bot.onMessageCreate(&discordgo.MessageCreate{Message: message("fish ping", testUserID, testChanID)})
	require.Len(t, env.session.sent, 1)
	assert.Contains(t, env.session.sent[0].Data.Content, "Pong!")
}

func TestMessageUpdateRerunsChangedCommand(t *testing.T) {
	env := newTestEnv(t)
	before := message("fish pong", testUserID, testChanID)
	after := message("fish ping", testUserID, testChanID)

	env.bot.onMessageUpdate(&discordgo.MessageUpdate{Message: before, BeforeUpdate: before})
	assert.Empty(t, env.session.sent)

	env.bot.onMessageUpdate(&discordgo.MessageUpdate{Message: after, BeforeUpdate: before})
	require.Len(t, env.session.sent, 1)
	assert.Contains(t, env.session.sent[0].Data.Content, "Pong!")
}

func TestAutoReactions(t *testing.T) {
	env := newTestEnv(t)
	env.skipXP(testUserID)

	withImage := message("", testUserID, testChanID)
	withImage.Attachments = []*discordgo.MessageAttachment{{Filename: "cat.png"}}

	env.bot.onMessageCreate(&discordgo.MessageCreate{Message: withImage})
	assert.Empty(t, env.session.reactions, "guild has auto-reactions off")

	env.cache.AddReactionGuild(testGuildID)
	env.bot.onMessageCreate(&discordgo.MessageCreate{Message: withImage})
	assert.Equal(t, voteEmojis, env.session.reactions)

	rich := message("", testUserID, testChanID)
	rich.Embeds = []*discordgo.MessageEmbed{{Type: discordgo.EmbedTypeRich}}
	env.bot.onMessageCreate(&discordgo.MessageCreate{Message: rich})
	assert.Len(t, env.session.reactions, 2)

	video := message("", testUserID, testChanID)
	video.Embeds = []*discordgo.MessageEmbed{{Type: discordgo.EmbedTypeVideo}}
	env.bot.onMessageUpdate(&discordgo.MessageUpdate{Message: video})
	assert.Len(t, env.session.reactions, 4)
}

func TestPoketwoHint(t *testing.T) {
	env := newTestEnv(t)
	env.bot.pokemon.Set([]string{"pikachu", "raichu", "pichu"})

	hint := message(`The pokémon is \_i\_a\_h\_.`, testPoketwoID, testChanID)
	hint.Author.Bot = true

	env.bot.onMessageCreate(&discordgo.MessageCreate{Message: hint})
	assert.Empty(t, env.session.sent, "poketwo solving is off")

	env.cache.AddPoketwo(testGuildID)
	env.bot.onMessageCreate(&discordgo.MessageCreate{Message: hint})
	require.Len(t, env.session.sent, 1)
	assert.Equal(t, "pikachu", env.session.sent[0].Data.Content)

	other := message(`The pokémon is \_i\_a\_h\_.`, testUserID, testChanID)
	other.Author.Bot = true
	env.bot.onMessageCreate(&discordgo.MessageCreate{Message: other})
	assert.Len(t, env.session.sent, 1)
}

func pinEvent() *discordgo.MessageUpdate {
	before := message("look at this *thing*", testUserID, testChanID)
	after := message("look at this *thing*", testUserID, testChanID)
	after.Pinned = true
	after.Attachments = []*discordgo.MessageAttachment{{Filename: "a.png", URL: "https://cdn.example/a.png"}}
	return &discordgo.MessageUpdate{Message: after, BeforeUpdate: before}
}

func TestPinboardMirrorsPin(t *testing.T) {
	env := newTestEnv(t)
	env.cache.AddPinboard(testGuildID, testBoardID)
	env.session.channels[testBoardID] = &discordgo.Channel{ID: testBoardID}
	env.session.members[testUserID] = &discordgo.Member{User: &discordgo.User{ID: testUserID, Username: "tester"}, Nick: "Tess"}
	env.session.auditLog = &discordgo.GuildAuditLog{
		Users:           []*discordgo.User{{ID: testModID, Username: "mod"}},
		AuditLogEntries: []*discordgo.AuditLogEntry{{TargetID: testUserID, UserID: testModID}},
	}
	for i := 0; i < 41; i++ {
		env.session.pinned = append(env.session.pinned, &discordgo.Message{ID: "pin" + string(rune('a'+i%26))})
	}
	env.session.pinned[40].ID = "oldest"

	env.mock.ExpectExec("INSERT INTO pinboard_pins").
		WithArgs(int64(910000000000000001), int64(900000000000000008), int64(900000000000000003), int64(900000000000000004), int64(900000000000000006)).
		WillReturnResult(sqlmock.NewResult(1, 1))

	env.bot.onMessageUpdate(pinEvent())

	require.Len(t, env.session.sent, 1)
	sent := env.session.sent[0]
	assert.Equal(t, testBoardID, sent.ChannelID)
	assert.Equal(t, "\U0001f4cc mod pinned a message to the server's Pinboard", sent.Data.Content)
	require.Len(t, sent.Data.Embeds, 2)
	assert.Equal(t, "Tess", sent.Data.Embeds[0].Author.Name)
	assert.Equal(t, `look at this \*thing\*`, sent.Data.Embeds[0].Description)
	assert.Contains(t, sent.Data.Embeds[0].Fields[0].Value, "https://discord.com/channels/900000000000000004/900000000000000005/910000000000000001")
	assert.Equal(t, "attachment://a.png", sent.Data.Embeds[1].Image.URL)
	require.Len(t, sent.Data.Files, 1)
	assert.Equal(t, []string{"oldest"}, env.session.unpinned)
	assert.Empty(t, env.reporter.errs)
	require.NoError(t, env.mock.ExpectationsWereMet())
}

func TestPinboardWithoutAuditLog(t *testing.T) {
	env := newTestEnv(t)
	env.cache.AddPinboard(testGuildID, testBoardID)
	env.session.channels[testBoardID] = &discordgo.Channel{ID: testBoardID}

	env.mock.ExpectExec("INSERT INTO pinboard_pins").
		WithArgs(int64(910000000000000001), int64(0), int64(900000000000000003), int64(900000000000000004), int64(900000000000000006)).
		WillReturnResult(sqlmock.NewResult(1, 1))

	env.bot.onMessageUpdate(pinEvent())

	require.Len(t, env.session.sent, 1)
	assert.Equal(t, "\U0001f4cc <Blank> pinned a message to the server's Pinboard"+blankHint, env.session.sent[0].Data.Content)
	assert.Empty(t, env.session.unpinned)
	require.NoError(t, env.mock.ExpectationsWereMet())
}

func TestPinboardChannelGoneUnlinks(t *testing.T) {
	env := newTestEnv(t)
	env.cache.AddPinboard(testGuildID, testBoardID)

	env.bot.onMessageUpdate(pinEvent())

	_, ok := env.cache.Pinboard(testGuildID)
	assert.False(t, ok)
	assert.Empty(t, env.session.sent)
	assert.Empty(t, env.reporter.errs)
}

func TestPinboardIgnoresAlreadyPinned(t *testing.T) {
	env := newTestEnv(t)
	env.cache.AddPinboard(testGuildID, testBoardID)
	e := pinEvent()
	e.BeforeUpdate.Pinned = true

	env.bot.onMessageUpdate(e)
	assert.Empty(t, env.session.sent)
}

func TestPresenceLogsTransitions(t *testing.T) {
	env := newTestEnv(t)
	user := &discordgo.User{ID: testUserID}
	env.bot.onGuildCreate(&discordgo.GuildCreate{Guild: &discordgo.Guild{
		ID:        testGuildID,
		Presences: []*discordgo.Presence{{User: user, Status: discordgo.StatusOnline}},
	}})

	env.bot.onPresenceUpdate(&discordgo.PresenceUpdate{GuildID: testGuildID, Presence: discordgo.Presence{User: user, Status: discordgo.StatusOnline}})

	env.mock.ExpectExec("INSERT INTO status_logs").
		WithArgs(int64(900000000000000003), int64(900000000000000004), "dnd", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(1, 1))
	env.bot.onPresenceUpdate(&discordgo.PresenceUpdate{GuildID: testGuildID, Presence: discordgo.Presence{User: user, Status: discordgo.StatusDoNotDisturb}})

	env.cache.AddOptOut(testUserID, "status")
	env.bot.onPresenceUpdate(&discordgo.PresenceUpdate{GuildID: testGuildID, Presence: discordgo.Presence{User: user, Status: discordgo.StatusIdle}})

	assert.Empty(t, env.reporter.errs)
	require.NoError(t, env.mock.ExpectationsWereMet())
}

func TestMemberUpdateLogsNameChanges(t *testing.T) {
	env := newTestEnv(t)
	old := &discordgo.User{ID: testUserID, Username: "fish", Avatar: "abc", Discriminator: "0"}
	env.bot.onGuildCreate(&discordgo.GuildCreate{Guild: &discordgo.Guild{
		ID:      testGuildID,
		Members: []*discordgo.Member{{User: old}},
	}})

	renamed := &discordgo.User{ID: testUserID, Username: "shark", Avatar: "abc", Discriminator: "0"}
	before := &discordgo.Member{GuildID: testGuildID, User: old}
	after := &discordgo.Member{GuildID: testGuildID, User: renamed, Nick: "Sharky"}

	env.mock.ExpectExec("INSERT INTO nickname_logs").
		WithArgs(int64(900000000000000003), int64(900000000000000004), "Sharky", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(1, 1))
	env.mock.ExpectExec("INSERT INTO username_logs").
		WithArgs(int64(900000000000000003), "shark", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(1, 1))
	env.mock.ExpectExec("INSERT INTO display_name_logs").
		WithArgs(int64(900000000000000003), "shark", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(1, 1))

	env.bot.onMemberUpdate(&discordgo.GuildMemberUpdate{Member: after, BeforeUpdate: before})
	// The same change seen through another guild is not logged twice.
	env.bot.onMemberUpdate(&discordgo.GuildMemberUpdate{Member: &discordgo.Member{GuildID: "900000000000000010", User: renamed}})

	assert.Empty(t, env.reporter.errs)
	require.NoError(t, env.mock.ExpectationsWereMet())
}

func TestGuildAvatarIsRehosted(t *testing.T) {
	env := newTestEnv(t)
	user := &discordgo.User{ID: testUserID, Username: "fish", Discriminator: "0"}
	before := &discordgo.Member{GuildID: testGuildID, User: user}
	after := &discordgo.Member{GuildID: testGuildID, User: user, Avatar: "a_guild"}

	env.mock.ExpectExec("INSERT INTO guild_avatars").
		WithArgs(int64(900000000000000003), int64(900000000000000004), "a_guild", sqlmock.AnyArg(),
			"https://cdn.example/900000000000000003_a_guild.gif").
		WillReturnError(&pgconn.PgError{Code: "23505"})

	env.bot.onMemberUpdate(&discordgo.GuildMemberUpdate{Member: after, BeforeUpdate: before})

	require.Len(t, env.session.webhooks, 1)
	assert.Contains(t, env.session.webhooks[0].Content, "<@900000000000000003> | fish | 900000000000000003")
	require.Len(t, env.media.fetched, 1)
	assert.Contains(t, env.media.fetched[0], "a_guild")
	assert.Empty(t, env.reporter.errs, "unique violations are ignored")
	require.NoError(t, env.mock.ExpectationsWereMet())
}

func TestGuildAvatarRespectsGuildOptOut(t *testing.T) {
	env := newTestEnv(t)
	env.cache.AddOptOut(testGuildID, "avatar")
	user := &discordgo.User{ID: testUserID, Username: "fish"}

	env.bot.onMemberUpdate(&discordgo.GuildMemberUpdate{
		Member:       &discordgo.Member{GuildID: testGuildID, User: user, Avatar: "new"},
		BeforeUpdate: &discordgo.Member{GuildID: testGuildID, User: user},
	})
	assert.Empty(t, env.session.webhooks)
}

func TestMemberJoin(t *testing.T) {
	env := newTestEnv(t)
	env.mock.ExpectExec("INSERT INTO member_join_logs").
		WithArgs(int64(900000000000000003), int64(900000000000000004), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(1, 1))

	member := &discordgo.Member{GuildID: testGuildID, User: &discordgo.User{ID: testUserID}}
	env.bot.onMemberAdd(&discordgo.GuildMemberAdd{Member: member})

	env.cache.AddOptOut(testUserID, "joins")
	env.bot.onMemberAdd(&discordgo.GuildMemberAdd{Member: member})

	require.NoError(t, env.mock.ExpectationsWereMet())
}

func TestGuildUpdateLogsName(t *testing.T) {
	env := newTestEnv(t)
	env.bot.onGuildCreate(&discordgo.GuildCreate{Guild: &discordgo.Guild{ID: testGuildID, Name: "Old"}})

	env.mock.ExpectExec("INSERT INTO guild_name_logs").
		WithArgs(int64(900000000000000004), "New", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(1, 1))

	env.bot.onGuildUpdate(&discordgo.GuildUpdate{Guild: &discordgo.Guild{ID: testGuildID, Name: "New"}})
	env.bot.onGuildUpdate(&discordgo.GuildUpdate{Guild: &discordgo.Guild{ID: testGuildID, Name: "New"}})

	require.NoError(t, env.mock.ExpectationsWereMet())
}

func TestUnseenUserFallsBackToBeforeUpdate(t *testing.T) {
	env := newTestEnv(t)
	requester := &fakeRequester{}
	env.bot.members = requester
	env.bot.onGuildCreate(&discordgo.GuildCreate{Guild: &discordgo.Guild{ID: testGuildID}})
	assert.Equal(t, []string{testGuildID}, requester.guilds)

	env.mock.ExpectExec("INSERT INTO username_logs").
		WithArgs(int64(900000000000000003), "shark", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(1, 1))
	env.mock.ExpectExec("INSERT INTO display_name_logs").
		WithArgs(int64(900000000000000003), "shark", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(1, 1))

	env.bot.onMemberUpdate(&discordgo.GuildMemberUpdate{
		Member:       &discordgo.Member{GuildID: testGuildID, User: &discordgo.User{ID: testUserID, Username: "shark"}},
		BeforeUpdate: &discordgo.Member{GuildID: testGuildID, User: &discordgo.User{ID: testUserID, Username: "fish"}},
	})

	assert.Empty(t, env.reporter.errs)
	require.NoError(t, env.mock.ExpectationsWereMet())
}

func TestMembersChunkSeedsTrackers(t *testing.T) {
	env := newTestEnv(t)
	fish := &discordgo.User{ID: testUserID, Username: "fish"}
	env.bot.onMembersChunk(&discordgo.GuildMembersChunk{
		GuildID:    testGuildID,
		Members:    []*discordgo.Member{{User: fish}},
		Presences:  []*discordgo.Presence{{User: fish, Status: discordgo.StatusIdle}},
		ChunkCount: 1,
	})

	// Unchanged presence after the chunk is not logged.
	env.bot.onPresenceUpdate(&discordgo.PresenceUpdate{GuildID: testGuildID, Presence: discordgo.Presence{User: fish, Status: discordgo.StatusIdle}})

	env.mock.ExpectExec("INSERT INTO username_logs").
		WithArgs(int64(900000000000000003), "shark", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(1, 1))
	env.mock.ExpectExec("INSERT INTO display_name_logs").
		WithArgs(int64(900000000000000003), "shark", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(1, 1))
	env.bot.onMemberUpdate(&discordgo.GuildMemberUpdate{
		Member: &discordgo.Member{GuildID: testGuildID, User: &discordgo.User{ID: testUserID, Username: "shark"}},
	})

	assert.Empty(t, env.reporter.errs)
	require.NoError(t, env.mock.ExpectationsWereMet())
}
