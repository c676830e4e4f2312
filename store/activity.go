package store

import (
	"context"
	"database/sql"
	"time"

	"emperror.dev/errors"

	"github.com/tomasmach/fishie/metrics"
)

// Status is the latest recorded presence status of a member.
type Status struct {
	Name  string
	Since time.Time
}

// LatestStatus returns the newest status_logs row for a member.
func (s *Store) LatestStatus(ctx context.Context, userID, guildID string) (Status, bool, error) {
	args, err := snowflakes(userID, guildID)
	if err != nil {
		return Status{}, false, err
	}
	var st Status
	found, err := s.queryRow(ctx,
		`SELECT status_name, created_at FROM status_logs WHERE user_id = $1 AND guild_id = $2
		 ORDER BY created_at DESC LIMIT 1`,
		args, &st.Name, &st.Since)
	if err != nil {
		return Status{}, false, errors.Wrap(err, "query status")
	}
	return st, found, nil
}

func (s *Store) AddStatus(ctx context.Context, userID, guildID, status string, at time.Time) error {
	args, err := snowflakes(userID, guildID)
	if err != nil {
		return err
	}
	_, err = s.exec(ctx,
		`INSERT INTO status_logs (user_id, guild_id, status_name, created_at) VALUES ($1, $2, $3, $4)`,
		append(args, status, at)...,
	)
	if err != nil {
		return errors.Wrap(err, "insert status")
	}
	metrics.HistoryEntries.WithLabelValues("status_logs").Inc()
	return nil
}

func (s *Store) JoinCount(ctx context.Context, memberID, guildID string) (int, error) {
	args, err := snowflakes(memberID, guildID)
	if err != nil {
		return 0, err
	}
	var n int
	if _, err := s.queryRow(ctx,
		`SELECT COUNT(*) FROM member_join_logs WHERE member_id = $1 AND guild_id = $2`,
		args, &n); err != nil {
		return 0, errors.Wrap(err, "count joins")
	}
	return n, nil
}

func (s *Store) AddJoin(ctx context.Context, memberID, guildID string, at time.Time) error {
	args, err := snowflakes(memberID, guildID)
	if err != nil {
		return err
	}
	_, err = s.exec(ctx,
		`INSERT INTO member_join_logs (member_id, guild_id, time) VALUES ($1, $2, $3)`,
		append(args, at)...,
	)
	if err != nil {
		return errors.Wrap(err, "insert join")
	}
	metrics.HistoryEntries.WithLabelValues("member_join_logs").Inc()
	return nil
}

// Pin is a message mirrored to a Pinboard channel. AuthorID is whoever pinned
// it ("0" when the audit log did not say), TargetID the pinned message's
// author and ChannelID the Pinboard channel.
type Pin struct {
	MessageID string
	AuthorID  string
	TargetID  string
	GuildID   string
	ChannelID string
}

func (s *Store) AddPinboardPin(ctx context.Context, p Pin) error {
	args, err := snowflakes(p.MessageID, p.AuthorID, p.TargetID, p.GuildID, p.ChannelID)
	if err != nil {
		return err
	}
	_, err = s.exec(ctx,
		`INSERT INTO pinboard_pins (message_id, author_id, target_id, guild_id, channel_id)
		 VALUES ($1, $2, $3, $4, $5)`,
		args...,
	)
	if err != nil {
		return errors.Wrap(err, "insert pinboard pin")
	}
	metrics.HistoryEntries.WithLabelValues("pinboard_pins").Inc()
	return nil
}

// XP returns a user's XP, or 0 when none is recorded.
func (s *Store) XP(ctx context.Context, userID string) (int64, error) {
	args, err := snowflakes(userID)
	if err != nil {
		return 0, err
	}
	var xp int64
	if _, err := s.queryRow(ctx, `SELECT xp FROM message_xp WHERE user_id = $1`, args, &xp); err != nil {
		return 0, errors.Wrap(err, "query xp")
	}
	return xp, nil
}

// XPEntry is one leaderboard row.
type XPEntry struct {
	UserID string
	XP     int64
}

func (s *Store) TopXP(ctx context.Context, limit int) ([]XPEntry, error) {
	rows, err := s.query(ctx, `SELECT user_id, xp FROM message_xp ORDER BY xp DESC LIMIT $1`, limit)
	if err != nil {
		return nil, errors.Wrap(err, "query leaderboard")
	}
	defer rows.Close()

	var out []XPEntry
	for rows.Next() {
		var e XPEntry
		if err := rows.Scan(&e.UserID, &e.XP); err != nil {
			return nil, errors.Wrap(err, "scan leaderboard")
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

func (s *Store) AddXP(ctx context.Context, userID string, amount int64) error {
	args, err := snowflakes(userID)
	if err != nil {
		return err
	}
	_, err = s.exec(ctx,
		`INSERT INTO message_xp (user_id, xp) VALUES ($1, $2)
		 ON CONFLICT (user_id) DO UPDATE SET xp = message_xp.xp + $2`,
		append(args, amount)...,
	)
	return errors.Wrap(err, "add xp")
}

// LastFM returns the last.fm account linked by a user.
func (s *Store) LastFM(ctx context.Context, userID string) (string, bool, error) {
	args, err := snowflakes(userID)
	if err != nil {
		return "", false, err
	}
	var name sql.NullString
	found, err := s.queryRow(ctx, `SELECT lastfm FROM accounts WHERE user_id = $1`, args, &name)
	if err != nil {
		return "", false, errors.Wrap(err, "query accounts")
	}
	return name.String, found && name.Valid, nil
}

// SetLastFM links a last.fm account; "" unlinks it.
func (s *Store) SetLastFM(ctx context.Context, userID, name string) error {
	args, err := snowflakes(userID)
	if err != nil {
		return err
	}
	var v any
	if name != "" {
		v = name
	}
	_, err = s.exec(ctx,
		`INSERT INTO accounts (user_id, lastfm) VALUES ($1, $2)
		 ON CONFLICT (user_id) DO UPDATE SET lastfm = $2`,
		append(args, v)...,
	)
	return errors.Wrap(err, "update accounts")
}
