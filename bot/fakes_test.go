package bot

import (
	"context"
	"database/sql"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/bwmarrin/discordgo"

	"github.com/tomasmach/fishie/cache"
	"github.com/tomasmach/fishie/commands"
	"github.com/tomasmach/fishie/config"
	"github.com/tomasmach/fishie/media"
	"github.com/tomasmach/fishie/pokemon"
	"github.com/tomasmach/fishie/store"
)

const (
	testBotID     = "900000000000000001"
	testOwnerID   = "900000000000000002"
	testUserID    = "900000000000000003"
	testGuildID   = "900000000000000004"
	testChanID    = "900000000000000005"
	testBoardID   = "900000000000000006"
	testPoketwoID = "900000000000000007"
	testModID     = "900000000000000008"
)

type sentMessage struct {
	ChannelID string
	Data      *discordgo.MessageSend
}

type fakeSession struct {
	mu        sync.Mutex
	sent      []sentMessage
	reactions []string
	unpinned  []string
	webhooks  []*discordgo.WebhookParams
	channels  map[string]*discordgo.Channel
	members   map[string]*discordgo.Member
	auditLog  *discordgo.GuildAuditLog
	pinned    []*discordgo.Message
	nextID    int
}

func newFakeSession() *fakeSession {
	return &fakeSession{
		channels: map[string]*discordgo.Channel{},
		members:  map[string]*discordgo.Member{},
	}
}

var errUnknownChannel = &discordgo.RESTError{Message: &discordgo.APIErrorMessage{Code: discordgo.ErrCodeUnknownChannel}}

func (f *fakeSession) ChannelMessageSendComplex(channelID string, data *discordgo.MessageSend, _ ...discordgo.RequestOption) (*discordgo.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nextID++
	f.sent = append(f.sent, sentMessage{ChannelID: channelID, Data: data})
	return &discordgo.Message{ID: fmt.Sprintf("1000000000000000%02d", f.nextID), ChannelID: channelID}, nil
}

func (f *fakeSession) ChannelMessageDelete(string, string, ...discordgo.RequestOption) error {
	return nil
}

func (f *fakeSession) ChannelTyping(string, ...discordgo.RequestOption) error { return nil }

func (f *fakeSession) MessageReactionAdd(_, _, emoji string, _ ...discordgo.RequestOption) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.reactions = append(f.reactions, emoji)
	return nil
}

func (f *fakeSession) ChannelMessage(channelID, messageID string, _ ...discordgo.RequestOption) (*discordgo.Message, error) {
	return &discordgo.Message{ID: messageID, ChannelID: channelID}, nil
}

func (f *fakeSession) Channel(channelID string, _ ...discordgo.RequestOption) (*discordgo.Channel, error) {
	if ch, ok := f.channels[channelID]; ok {
		return ch, nil
	}
	return nil, errUnknownChannel
}

func (f *fakeSession) GuildChannelCreate(guildID, name string, ctype discordgo.ChannelType, _ ...discordgo.RequestOption) (*discordgo.Channel, error) {
	return &discordgo.Channel{ID: "900000000000000099", GuildID: guildID, Name: name, Type: ctype}, nil
}

func (f *fakeSession) UserChannelCreate(recipientID string, _ ...discordgo.RequestOption) (*discordgo.Channel, error) {
	return &discordgo.Channel{ID: "dm-" + recipientID, Type: discordgo.ChannelTypeDM}, nil
}

func (f *fakeSession) UserChannelPermissions(string, string, ...discordgo.RequestOption) (int64, error) {
	return discordgo.PermissionAdministrator, nil
}

func (f *fakeSession) User(userID string, _ ...discordgo.RequestOption) (*discordgo.User, error) {
	return &discordgo.User{ID: userID, Username: "user"}, nil
}

func (f *fakeSession) GuildMember(guildID, userID string, _ ...discordgo.RequestOption) (*discordgo.Member, error) {
	if m, ok := f.members[userID]; ok {
		return m, nil
	}
	return nil, &discordgo.RESTError{Message: &discordgo.APIErrorMessage{Code: discordgo.ErrCodeUnknownMember}}
}

func (f *fakeSession) Guild(guildID string, _ ...discordgo.RequestOption) (*discordgo.Guild, error) {
	return &discordgo.Guild{ID: guildID, Name: "Test Guild"}, nil
}

func (f *fakeSession) InteractionRespond(*discordgo.Interaction, *discordgo.InteractionResponse, ...discordgo.RequestOption) error {
	return nil
}

func (f *fakeSession) GuildAuditLog(_, _, _ string, _, _ int, _ ...discordgo.RequestOption) (*discordgo.GuildAuditLog, error) {
	if f.auditLog == nil {
		return nil, &discordgo.RESTError{Message: &discordgo.APIErrorMessage{Code: discordgo.ErrCodeMissingPermissions}}
	}
	return f.auditLog, nil
}

func (f *fakeSession) ChannelMessagesPinned(string, ...discordgo.RequestOption) ([]*discordgo.Message, error) {
	return f.pinned, nil
}

func (f *fakeSession) ChannelMessageUnpin(_, messageID string, _ ...discordgo.RequestOption) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.unpinned = append(f.unpinned, messageID)
	return nil
}

func (f *fakeSession) WebhookExecute(_, _ string, _ bool, data *discordgo.WebhookParams, _ ...discordgo.RequestOption) (*discordgo.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.webhooks = append(f.webhooks, data)
	return &discordgo.Message{Attachments: []*discordgo.MessageAttachment{{URL: "https://cdn.example/" + data.Files[0].Name}}}, nil
}

type fakeMedia struct {
	mu       sync.Mutex
	requests []media.Request
	fetched  []string
}

func (m *fakeMedia) Download(_ context.Context, req media.Request) ([]media.File, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.requests = append(m.requests, req)
	return []media.File{{Name: "video.mp4", Data: []byte("mp4")}}, nil
}

func (m *fakeMedia) Cleanup([]media.File) {}

func (m *fakeMedia) UploadTemporary(_ context.Context, f media.File) (string, error) {
	return "https://litter.example/" + f.Name, nil
}

func (m *fakeMedia) TenorGIF(_ context.Context, page string) (string, error) {
	return page + ".gif", nil
}

func (m *fakeMedia) FetchImage(_ context.Context, url string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.fetched = append(m.fetched, url)
	return []byte("image"), nil
}

type fakeReporter struct {
	mu   sync.Mutex
	errs []error
}

func (r *fakeReporter) Report(_ context.Context, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.errs = append(r.errs, err)
}

func (r *fakeReporter) ReportDetail(context.Context, string, string, []byte) {}

type testEnv struct {
	bot      *Bot
	session  *fakeSession
	media    *fakeMedia
	reporter *fakeReporter
	cache    *cache.Cache
	store    *store.Store
	mock     sqlmock.Sqlmock
	db       *sql.DB
	cfg      *config.Config
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	state := discordgo.NewState()
	state.User = &discordgo.User{ID: testBotID, Username: "fishie", Bot: true}

	env := &testEnv{
		session:  newFakeSession(),
		media:    &fakeMedia{},
		reporter: &fakeReporter{},
		cache:    cache.New(),
		store:    store.New(db),
		mock:     mock,
		db:       db,
		cfg: &config.Config{
			IDs:      config.IDsConfig{OwnerID: testOwnerID, PoketwoID: testPoketwoID},
			Webhooks: config.WebhooksConfig{Avatars: []string{"https://discord.com/api/webhooks/1/token"}},
		},
	}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	handler := commands.New(commands.Options{
		Session:  env.session,
		State:    state,
		Store:    env.store,
		Cache:    env.cache,
		Media:    env.media,
		Config:   env.cfg,
		Reporter: env.reporter,
		Logger:   logger,
	})
	env.bot = New(Options{
		Session:  env.session,
		State:    state,
		Store:    env.store,
		Cache:    env.cache,
		Commands: handler,
		Images:   env.media,
		Pokemon:  pokemon.New(nil, ""),
		Config:   env.cfg,
		Reporter: env.reporter,
		Logger:   logger,
	})
	env.bot.xpAmount = func() int64 { return 20 }
	return env
}

// skipXP uses up the author's XP allowance so tests need not expect it.
func (e *testEnv) skipXP(userID string) {
	e.bot.xp.Allow(userID)
}

func message(content, authorID, channelID string) *discordgo.Message {
	return &discordgo.Message{
		ID:        "910000000000000001",
		ChannelID: channelID,
		GuildID:   testGuildID,
		Content:   content,
		Author:    &discordgo.User{ID: authorID, Username: "tester"},
	}
}

type fakeRequester struct {
	guilds []string
}

func (r *fakeRequester) RequestGuildMembers(guildID, _ string, _ int, _ string, _ bool) error {
	r.guilds = append(r.guilds, guildID)
	return nil
}
