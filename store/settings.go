package store

import (
	"context"
	"database/sql"

	"emperror.dev/errors"
	"github.com/jackc/pgx/v5/pgtype"
)

// Prefix is one row of guild_prefixes.
type Prefix struct {
	GuildID string
	Prefix  string
}

// OptOut lists the opted-out features of a user or a guild.
type OptOut struct {
	SubjectID string
	Items     []string
}

// GuildSettings is one row of guild_settings. Empty channel ids mean NULL.
type GuildSettings struct {
	GuildID       string
	AutoDownload  string
	Pinboard      string
	Poketwo       bool
	AutoReactions bool
}

// Scope selects between the user and guild opt-out tables.
type Scope int

const (
	UserScope Scope = iota
	GuildScope
)

func (sc Scope) table() (table, column string) {
	if sc == GuildScope {
		return "guild_opted_out", "guild_id"
	}
	return "opted_out", "user_id"
}

func (s *Store) Prefixes(ctx context.Context) ([]Prefix, error) {
	rows, err := s.query(ctx, `SELECT guild_id, prefix FROM guild_prefixes`)
	if err != nil {
		return nil, errors.Wrap(err, "query prefixes")
	}
	defer rows.Close()

	var out []Prefix
	for rows.Next() {
		var p Prefix
		if err := rows.Scan(&p.GuildID, &p.Prefix); err != nil {
			return nil, errors.Wrap(err, "scan prefix")
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func (s *Store) AddPrefix(ctx context.Context, guildID, prefix string) error {
	args, err := snowflakes(guildID)
	if err != nil {
		return err
	}
	_, err = s.exec(ctx,
		`INSERT INTO guild_prefixes (guild_id, prefix) VALUES ($1, $2)`,
		append(args, prefix)...,
	)
	return errors.Wrap(err, "insert prefix")
}

func (s *Store) RemovePrefix(ctx context.Context, guildID, prefix string) error {
	args, err := snowflakes(guildID)
	if err != nil {
		return err
	}
	_, err = s.exec(ctx,
		`DELETE FROM guild_prefixes WHERE guild_id = $1 AND prefix = $2`,
		append(args, prefix)...,
	)
	return errors.Wrap(err, "delete prefix")
}

func (s *Store) UserOptOuts(ctx context.Context) ([]OptOut, error) {
	return s.optOuts(ctx, UserScope)
}

func (s *Store) GuildOptOuts(ctx context.Context) ([]OptOut, error) {
	return s.optOuts(ctx, GuildScope)
}

func (s *Store) optOuts(ctx context.Context, sc Scope) ([]OptOut, error) {
	table, column := sc.table()
	rows, err := s.query(ctx, `SELECT `+column+`, items FROM `+table)
	if err != nil {
		return nil, errors.Wrapf(err, "query %s", table)
	}
	defer rows.Close()

	m := pgtype.NewMap()
	var out []OptOut
	for rows.Next() {
		var o OptOut
		if err := rows.Scan(&o.SubjectID, m.SQLScanner(&o.Items)); err != nil {
			return nil, errors.Wrapf(err, "scan %s", table)
		}
		out = append(out, o)
	}
	return out, rows.Err()
}

// AddOptOut appends feature to the subject's opted-out items.
func (s *Store) AddOptOut(ctx context.Context, sc Scope, subjectID, feature string) error {
	args, err := snowflakes(subjectID)
	if err != nil {
		return err
	}
	table, column := sc.table()
	_, err = s.exec(ctx,
		`INSERT INTO `+table+` (`+column+`, items) VALUES ($1, ARRAY[$2]::text[])
		 ON CONFLICT (`+column+`) DO UPDATE SET items = array_append(`+table+`.items, $2)`,
		append(args, feature)...,
	)
	return errors.Wrapf(err, "add %s", table)
}

// RemoveOptOut removes every occurrence of feature from the subject's items.
func (s *Store) RemoveOptOut(ctx context.Context, sc Scope, subjectID, feature string) error {
	args, err := snowflakes(subjectID)
	if err != nil {
		return err
	}
	table, column := sc.table()
	_, err = s.exec(ctx,
		`UPDATE `+table+` SET items = array_remove(items, $2) WHERE `+column+` = $1`,
		append(args, feature)...,
	)
	return errors.Wrapf(err, "remove %s", table)
}

const selectGuildSettings = `SELECT guild_id, auto_download, pinboard, poketwo, auto_reactions FROM guild_settings`

func scanGuildSettings(scan func(dest ...any) error) (GuildSettings, error) {
	var (
		gs       GuildSettings
		adl, pin sql.NullString
	)
	if err := scan(&gs.GuildID, &adl, &pin, &gs.Poketwo, &gs.AutoReactions); err != nil {
		return gs, err
	}
	gs.AutoDownload = adl.String
	gs.Pinboard = pin.String
	return gs, nil
}

func (s *Store) AllGuildSettings(ctx context.Context) ([]GuildSettings, error) {
	rows, err := s.query(ctx, selectGuildSettings)
	if err != nil {
		return nil, errors.Wrap(err, "query guild settings")
	}
	defer rows.Close()

	var out []GuildSettings
	for rows.Next() {
		gs, err := scanGuildSettings(rows.Scan)
		if err != nil {
			return nil, errors.Wrap(err, "scan guild settings")
		}
		out = append(out, gs)
	}
	return out, rows.Err()
}

// GuildSettings returns the guild's row, or a zero row when none exists.
func (s *Store) GuildSettings(ctx context.Context, guildID string) (GuildSettings, error) {
	args, err := snowflakes(guildID)
	if err != nil {
		return GuildSettings{}, err
	}
	var (
		gs       = GuildSettings{GuildID: guildID}
		adl, pin sql.NullString
	)
	_, err = s.queryRow(ctx, selectGuildSettings+` WHERE guild_id = $1`, args,
		&gs.GuildID, &adl, &pin, &gs.Poketwo, &gs.AutoReactions)
	if err != nil {
		return gs, errors.Wrap(err, "query guild settings")
	}
	gs.AutoDownload = adl.String
	gs.Pinboard = pin.String
	return gs, nil
}

// upsertSetting writes one guild_settings column, creating the row if needed.
// column is always one of the literals below.
func (s *Store) upsertSetting(ctx context.Context, column, guildID string, value any) error {
	args, err := snowflakes(guildID)
	if err != nil {
		return err
	}
	_, err = s.exec(ctx,
		`INSERT INTO guild_settings (guild_id, `+column+`) VALUES ($1, $2)
		 ON CONFLICT (guild_id) DO UPDATE SET `+column+` = $2
		 WHERE guild_settings.guild_id = $1`,
		append(args, value)...,
	)
	return errors.Wrapf(err, "update guild setting %s", column)
}

// SetAutoDownload sets the auto-download channel; "" clears it.
func (s *Store) SetAutoDownload(ctx context.Context, guildID, channelID string) error {
	v, err := nullSnowflake(channelID)
	if err != nil {
		return err
	}
	return s.upsertSetting(ctx, "auto_download", guildID, v)
}

// SetPinboard sets the Pinboard channel; "" clears it.
func (s *Store) SetPinboard(ctx context.Context, guildID, channelID string) error {
	v, err := nullSnowflake(channelID)
	if err != nil {
		return err
	}
	return s.upsertSetting(ctx, "pinboard", guildID, v)
}

func (s *Store) SetPoketwo(ctx context.Context, guildID string, enabled bool) error {
	return s.upsertSetting(ctx, "poketwo", guildID, enabled)
}

func (s *Store) SetAutoReactions(ctx context.Context, guildID string, enabled bool) error {
	return s.upsertSetting(ctx, "auto_reactions", guildID, enabled)
}
