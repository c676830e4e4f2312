package commands

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
	"github.com/tomasmach/fishie/config"
	"github.com/tomasmach/fishie/media"
	"github.com/tomasmach/fishie/store"
)

const (
	testBotID   = "900000000000000001"
	testOwnerID = "900000000000000002"
	testUserID  = "900000000000000003"
	testGuildID = "900000000000000004"
	testChanID  = "900000000000000005"
)

type sentMessage struct {
	ChannelID string
	Data      *discordgo.MessageSend
}

type fakeSession struct {
	mu        sync.Mutex
	sent      []sentMessage
	deleted   []MessageRef
	reactions []string
	responses []*discordgo.InteractionResponse
	perms     int64
	users     map[string]*discordgo.User
	channels  map[string]*discordgo.Channel
	sendErr   error
	nextID    int
}

func newFakeSession() *fakeSession {
	return &fakeSession{
		perms:    discordgo.PermissionAdministrator,
		users:    map[string]*discordgo.User{},
		channels: map[string]*discordgo.Channel{},
	}
}

func (f *fakeSession) ChannelMessageSendComplex(channelID string, data *discordgo.MessageSend, _ ...discordgo.RequestOption) (*discordgo.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.sendErr != nil {
		err := f.sendErr
		f.sendErr = nil
		return nil, err
	}
	for _, file := range data.Files {
		_, _ = io.ReadAll(file.Reader)
	}
	f.nextID++
	f.sent = append(f.sent, sentMessage{ChannelID: channelID, Data: data})
	return &discordgo.Message{ID: fmt.Sprintf("1000000000000000%02d", f.nextID), ChannelID: channelID}, nil
}

func (f *fakeSession) ChannelMessageDelete(channelID, messageID string, _ ...discordgo.RequestOption) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deleted = append(f.deleted, MessageRef{ChannelID: channelID, MessageID: messageID})
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
	return nil, &discordgo.RESTError{Message: &discordgo.APIErrorMessage{Code: discordgo.ErrCodeUnknownChannel}}
}

func (f *fakeSession) GuildChannelCreate(guildID, name string, ctype discordgo.ChannelType, _ ...discordgo.RequestOption) (*discordgo.Channel, error) {
	return &discordgo.Channel{ID: "900000000000000099", GuildID: guildID, Name: name, Type: ctype}, nil
}

func (f *fakeSession) UserChannelCreate(recipientID string, _ ...discordgo.RequestOption) (*discordgo.Channel, error) {
	return &discordgo.Channel{ID: "dm-" + recipientID, Type: discordgo.ChannelTypeDM}, nil
}

func (f *fakeSession) UserChannelPermissions(string, string, ...discordgo.RequestOption) (int64, error) {
	return f.perms, nil
}

func (f *fakeSession) User(userID string, _ ...discordgo.RequestOption) (*discordgo.User, error) {
	if u, ok := f.users[userID]; ok {
		return u, nil
	}
	return nil, &discordgo.RESTError{Message: &discordgo.APIErrorMessage{Code: 10013}}
}

func (f *fakeSession) GuildMember(guildID, userID string, _ ...discordgo.RequestOption) (*discordgo.Member, error) {
	if u, ok := f.users[userID]; ok {
		return &discordgo.Member{GuildID: guildID, User: u}, nil
	}
	return nil, &discordgo.RESTError{Message: &discordgo.APIErrorMessage{Code: discordgo.ErrCodeUnknownMember}}
}

func (f *fakeSession) Guild(guildID string, _ ...discordgo.RequestOption) (*discordgo.Guild, error) {
	return &discordgo.Guild{ID: guildID, Name: "Test Guild"}, nil
}

func (f *fakeSession) InteractionRespond(_ *discordgo.Interaction, resp *discordgo.InteractionResponse, _ ...discordgo.RequestOption) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.responses = append(f.responses, resp)
	return nil
}

func (f *fakeSession) last() sentMessage {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.sent) == 0 {
		return sentMessage{Data: &discordgo.MessageSend{}}
	}
	return f.sent[len(f.sent)-1]
}

type fakeDownloader struct {
	mu        sync.Mutex
	requests  []media.Request
	files     []media.File
	err       error
	cleaned   int
	uploaded  []string
	tenorPage string
	tenorErr  error
}

func (d *fakeDownloader) Download(_ context.Context, req media.Request) ([]media.File, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.requests = append(d.requests, req)
	return d.files, d.err
}

func (d *fakeDownloader) Cleanup(files []media.File) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.cleaned += len(files)
}

func (d *fakeDownloader) UploadTemporary(_ context.Context, f media.File) (string, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.uploaded = append(d.uploaded, f.Name)
	return "https://litter.example/" + f.Name, nil
}

func (d *fakeDownloader) TenorGIF(_ context.Context, pageURL string) (string, error) {
	d.tenorPage = pageURL
	if d.tenorErr != nil {
		return "", d.tenorErr
	}
	return "https://media.tenor.com/abc/cat.gif", nil
}

func (d *fakeDownloader) FetchImage(context.Context, string) ([]byte, error) {
	return []byte("GIF89a"), nil
}

type testEnv struct {
	handler *Handler
	session *fakeSession
	media   *fakeDownloader
	cache   *cache.Cache
	mock    sqlmock.Sqlmock
	db      *sql.DB
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
		session: newFakeSession(),
		media:   &fakeDownloader{},
		cache:   cache.New(),
		mock:    mock,
		db:      db,
	}
	env.handler = New(Options{
		Session: env.session,
		State:   state,
		Store:   store.New(db),
		Cache:   env.cache,
		Media:   env.media,
		Config:  &config.Config{IDs: config.IDsConfig{OwnerID: testOwnerID}},
		Logger:  slog.New(slog.NewTextHandler(io.Discard, nil)),
	})
	return env
}

func (e *testEnv) message(content, authorID, guildID string) *discordgo.Message {
	return &discordgo.Message{
		ID:        "910000000000000001",
		ChannelID: testChanID,
		GuildID:   guildID,
		Content:   content,
		Author:    &discordgo.User{ID: authorID, Username: "tester"},
	}
}
