package store

import (
	"context"
	"strconv"
	"strings"
	"time"

	"emperror.dev/errors"

	"github.com/tomasmach/fishie/metrics"
)

// Image is a saved avatar or guild icon.
type Image struct {
	Key       string
	URL       string
	CreatedAt time.Time
}

// NameKind selects one of the name history tables.
type NameKind int

const (
	Usernames NameKind = iota
	DisplayNames
	Nicknames
	Discrims
	GuildNames
)

type nameTable struct {
	table  string
	keys   []string
	column string
}

var nameTables = map[NameKind]nameTable{
	Usernames:    {"username_logs", []string{"user_id"}, "username"},
	DisplayNames: {"display_name_logs", []string{"user_id"}, "display_name"},
	Nicknames:    {"nickname_logs", []string{"user_id", "guild_id"}, "nickname"},
	Discrims:     {"discrim_logs", []string{"user_id"}, "discrim"},
	GuildNames:   {"guild_name_logs", []string{"guild_id"}, "name"},
}

// Table returns the table backing k.
func (k NameKind) Table() string {
	return nameTables[k].table
}

// NameEntry is one row of a name history table.
type NameEntry struct {
	Name      string
	CreatedAt time.Time
}

func (s *Store) AddAvatar(ctx context.Context, userID, key, url string, at time.Time) error {
	args, err := snowflakes(userID)
	if err != nil {
		return err
	}
	_, err = s.exec(ctx,
		`INSERT INTO avatars (user_id, avatar_key, created_at, avatar) VALUES ($1, $2, $3, $4)`,
		append(args, key, at, url)...,
	)
	if err != nil {
		return errors.Wrap(err, "insert avatar")
	}
	metrics.HistoryEntries.WithLabelValues("avatars").Inc()
	return nil
}

func (s *Store) AddGuildAvatar(ctx context.Context, memberID, guildID, key, url string, at time.Time) error {
	args, err := snowflakes(memberID, guildID)
	if err != nil {
		return err
	}
	_, err = s.exec(ctx,
		`INSERT INTO guild_avatars (member_id, guild_id, avatar_key, created_at, avatar) VALUES ($1, $2, $3, $4, $5)`,
		append(args, key, at, url)...,
	)
	if err != nil {
		return errors.Wrap(err, "insert guild avatar")
	}
	metrics.HistoryEntries.WithLabelValues("guild_avatars").Inc()
	return nil
}

// Avatars returns up to limit saved avatars for a user, newest first.
func (s *Store) Avatars(ctx context.Context, userID string, limit int) ([]Image, error) {
	args, err := snowflakes(userID)
	if err != nil {
		return nil, err
	}
	return s.images(ctx,
		`SELECT avatar_key, avatar, created_at FROM avatars WHERE user_id = $1
		 ORDER BY created_at DESC LIMIT $2`,
		append(args, limit)...,
	)
}

func (s *Store) GuildAvatars(ctx context.Context, memberID, guildID string, limit int) ([]Image, error) {
	args, err := snowflakes(memberID, guildID)
	if err != nil {
		return nil, err
	}
	return s.images(ctx,
		`SELECT avatar_key, avatar, created_at FROM guild_avatars WHERE member_id = $1 AND guild_id = $2
		 ORDER BY created_at DESC LIMIT $3`,
		append(args, limit)...,
	)
}

// FirstAvatar returns when the earliest avatar of a user was saved.
func (s *Store) FirstAvatar(ctx context.Context, userID string) (time.Time, bool, error) {
	args, err := snowflakes(userID)
	if err != nil {
		return time.Time{}, false, err
	}
	return s.firstSeen(ctx,
		`SELECT created_at FROM avatars WHERE user_id = $1 ORDER BY created_at ASC LIMIT 1`, args)
}

func (s *Store) FirstGuildAvatar(ctx context.Context, memberID, guildID string) (time.Time, bool, error) {
	args, err := snowflakes(memberID, guildID)
	if err != nil {
		return time.Time{}, false, err
	}
	return s.firstSeen(ctx,
		`SELECT created_at FROM guild_avatars WHERE member_id = $1 AND guild_id = $2
		 ORDER BY created_at ASC LIMIT 1`, args)
}

func (s *Store) AddGuildIcon(ctx context.Context, guildID, key, url string, at time.Time) error {
	args, err := snowflakes(guildID)
	if err != nil {
		return err
	}
	_, err = s.exec(ctx,
		`INSERT INTO guild_icons (guild_id, icon_key, created_at, icon) VALUES ($1, $2, $3, $4)`,
		append(args, key, at, url)...,
	)
	if err != nil {
		return errors.Wrap(err, "insert guild icon")
	}
	metrics.HistoryEntries.WithLabelValues("guild_icons").Inc()
	return nil
}

func (s *Store) GuildIcons(ctx context.Context, guildID string, limit int) ([]Image, error) {
	args, err := snowflakes(guildID)
	if err != nil {
		return nil, err
	}
	return s.images(ctx,
		`SELECT icon_key, icon, created_at FROM guild_icons WHERE guild_id = $1
		 ORDER BY created_at DESC LIMIT $2`,
		append(args, limit)...,
	)
}

func (s *Store) images(ctx context.Context, query string, args ...any) ([]Image, error) {
	rows, err := s.query(ctx, query, args...)
	if err != nil {
		return nil, errors.Wrap(err, "query images")
	}
	defer rows.Close()

	var out []Image
	for rows.Next() {
		var img Image
		if err := rows.Scan(&img.Key, &img.URL, &img.CreatedAt); err != nil {
			return nil, errors.Wrap(err, "scan image")
		}
		out = append(out, img)
	}
	return out, rows.Err()
}

func (s *Store) firstSeen(ctx context.Context, query string, args []any) (time.Time, bool, error) {
	var at time.Time
	found, err := s.queryRow(ctx, query, args, &at)
	if err != nil {
		return time.Time{}, false, errors.Wrap(err, "query first entry")
	}
	return at, found, nil
}

// AddName appends name to the history table of kind. ids are the table's key
// columns in order: user id, then guild id for nicknames; guild id for guild
// names.
func (s *Store) AddName(ctx context.Context, kind NameKind, name string, at time.Time, ids ...string) error {
	t, args, err := nameArgs(kind, ids)
	if err != nil {
		return err
	}
	cols := append(append([]string{}, t.keys...), t.column, "created_at")
	args = append(args, name, at)
	_, err = s.exec(ctx,
		`INSERT INTO `+t.table+` (`+strings.Join(cols, ", ")+`) VALUES (`+placeholders(len(cols))+`)`,
		args...,
	)
	if err != nil {
		return errors.Wrapf(err, "insert %s", t.table)
	}
	metrics.HistoryEntries.WithLabelValues(t.table).Inc()
	return nil
}

// Names returns the name history of kind for ids, newest first.
func (s *Store) Names(ctx context.Context, kind NameKind, ids ...string) ([]NameEntry, error) {
	t, args, err := nameArgs(kind, ids)
	if err != nil {
		return nil, err
	}
	where := make([]string, len(t.keys))
	for i, k := range t.keys {
		where[i] = k + " = $" + strconv.Itoa(i+1)
	}
	rows, err := s.query(ctx,
		`SELECT `+t.column+`, created_at FROM `+t.table+` WHERE `+strings.Join(where, " AND ")+
			` ORDER BY created_at DESC`,
		args...,
	)
	if err != nil {
		return nil, errors.Wrapf(err, "query %s", t.table)
	}
	defer rows.Close()

	var out []NameEntry
	for rows.Next() {
		var e NameEntry
		if err := rows.Scan(&e.Name, &e.CreatedAt); err != nil {
			return nil, errors.Wrapf(err, "scan %s", t.table)
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

func nameArgs(kind NameKind, ids []string) (nameTable, []any, error) {
	t, ok := nameTables[kind]
	if !ok {
		return t, nil, errors.Errorf("unknown name kind %d", kind)
	}
	if len(ids) != len(t.keys) {
		return t, nil, errors.Errorf("%s needs %d ids, got %d", t.table, len(t.keys), len(ids))
	}
	args, err := snowflakes(ids...)
	return t, args, err
}

func placeholders(n int) string {
	p := make([]string, n)
	for i := range p {
		p[i] = "$" + strconv.Itoa(i+1)
	}
	return strings.Join(p, ", ")
}
