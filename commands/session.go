package commands

import (
	"context"

	"github.com/bwmarrin/discordgo"

	"github.com/tomasmach/fishie/media"
)

// Session is the part of *discordgo.Session used by commands.
type Session interface {
	ChannelMessageSendComplex(channelID string, data *discordgo.MessageSend, options ...discordgo.RequestOption) (*discordgo.Message, error)
	ChannelMessageDelete(channelID, messageID string, options ...discordgo.RequestOption) error
	ChannelTyping(channelID string, options ...discordgo.RequestOption) error
	MessageReactionAdd(channelID, messageID, emojiID string, options ...discordgo.RequestOption) error
	ChannelMessage(channelID, messageID string, options ...discordgo.RequestOption) (*discordgo.Message, error)
	Channel(channelID string, options ...discordgo.RequestOption) (*discordgo.Channel, error)
	GuildChannelCreate(guildID, name string, ctype discordgo.ChannelType, options ...discordgo.RequestOption) (*discordgo.Channel, error)
	UserChannelCreate(recipientID string, options ...discordgo.RequestOption) (*discordgo.Channel, error)
	UserChannelPermissions(userID, channelID string, fetchOptions ...discordgo.RequestOption) (int64, error)
	User(userID string, options ...discordgo.RequestOption) (*discordgo.User, error)
	GuildMember(guildID, userID string, options ...discordgo.RequestOption) (*discordgo.Member, error)
	Guild(guildID string, options ...discordgo.RequestOption) (*discordgo.Guild, error)
	InteractionRespond(interaction *discordgo.Interaction, resp *discordgo.InteractionResponse, options ...discordgo.RequestOption) error
}

// Downloader is the media backend used by the download commands.
type Downloader interface {
	Download(ctx context.Context, req media.Request) ([]media.File, error)
	Cleanup(files []media.File)
	UploadTemporary(ctx context.Context, f media.File) (string, error)
	TenorGIF(ctx context.Context, pageURL string) (string, error)
	FetchImage(ctx context.Context, url string) ([]byte, error)
}

// Reporter forwards unexpected errors to the operator.
type Reporter interface {
	Report(ctx context.Context, err error)
	ReportDetail(ctx context.Context, content, filename string, detail []byte)
}
