package cache

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/tomasmach/fishie/store"
)

// Loader is the subset of the store read once at startup.
type Loader interface {
	Prefixes(ctx context.Context) ([]store.Prefix, error)
	UserOptOuts(ctx context.Context) ([]store.OptOut, error)
	GuildOptOuts(ctx context.Context) ([]store.OptOut, error)
	AllGuildSettings(ctx context.Context) ([]store.GuildSettings, error)
}

// Populate fills c from the database with sequential bulk reads, logging every
// entry it adds.
func Populate(ctx context.Context, c *Cache, l Loader, logger *slog.Logger) error {
	if logger == nil {
		logger = slog.Default()
	}

	prefixes, err := l.Prefixes(ctx)
	if err != nil {
		return fmt.Errorf("load prefixes: %w", err)
	}
	for _, p := range prefixes {
		c.AddPrefix(p.GuildID, p.Prefix)
		logger.Info("added prefix", "guild_id", p.GuildID, "prefix", p.Prefix)
	}

	users, err := l.UserOptOuts(ctx)
	if err != nil {
		return fmt.Errorf("load user opt-outs: %w", err)
	}
	for _, row := range users {
		for _, item := range row.Items {
			c.AddOptOut(row.SubjectID, item)
			logger.Info("added opt-out", "user_id", row.SubjectID, "item", item)
		}
	}

	guilds, err := l.GuildOptOuts(ctx)
	if err != nil {
		return fmt.Errorf("load guild opt-outs: %w", err)
	}
	for _, row := range guilds {
		for _, item := range row.Items {
			c.AddOptOut(row.SubjectID, item)
			logger.Info("added opt-out", "guild_id", row.SubjectID, "item", item)
		}
	}

	settings, err := l.AllGuildSettings(ctx)
	if err != nil {
		return fmt.Errorf("load guild settings: %w", err)
	}
	for _, gs := range settings {
		if gs.AutoDownload != "" {
			c.AddADL(gs.AutoDownload)
			logger.Info("added auto download channel", "guild_id", gs.GuildID, "channel_id", gs.AutoDownload)
		}
		if gs.Pinboard != "" {
			c.AddPinboard(gs.GuildID, gs.Pinboard)
			logger.Info("added pinboard channel", "guild_id", gs.GuildID, "channel_id", gs.Pinboard)
		}
		if gs.Poketwo {
			c.AddPoketwo(gs.GuildID)
			logger.Info("added auto poketwo solving", "guild_id", gs.GuildID)
		}
		if gs.AutoReactions {
			c.AddReactionGuild(gs.GuildID)
			logger.Info("added auto media reactions", "guild_id", gs.GuildID)
		}
	}
	return nil
}
