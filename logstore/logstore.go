// Package logstore keeps a queryable copy of the bot's slog records in SQLite.
// Handler tees every record to an inner handler and to the store, lifting the
// guild_id, channel_id and command attributes into their own columns.
package logstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"maps"
	"math/rand/v2"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

const schemaSQL = `
CREATE TABLE IF NOT EXISTS logs (
    id         INTEGER PRIMARY KEY AUTOINCREMENT,
    ts         DATETIME NOT NULL,
    level      TEXT NOT NULL,
    msg        TEXT NOT NULL,
    guild_id   TEXT NOT NULL DEFAULT '',
    channel_id TEXT NOT NULL DEFAULT '',
    command    TEXT NOT NULL DEFAULT '',
    attrs      TEXT
);
CREATE INDEX IF NOT EXISTS idx_logs_guild ON logs(guild_id);
CREATE INDEX IF NOT EXISTS idx_logs_command ON logs(command);
`

// rowsPerGuild bounds the rows kept for each guild id, including the empty
// id used by records that belong to no guild.
const rowsPerGuild = 10000

// Entry is a single stored log record.
type Entry struct {
	ID        int64     `json:"id"`
	CreatedAt time.Time `json:"ts"`
	Level     string    `json:"level"`
	Msg       string    `json:"msg"`
	GuildID   string    `json:"guild_id,omitempty"`
	ChannelID string    `json:"channel_id,omitempty"`
	Command   string    `json:"command,omitempty"`
	Attrs     string    `json:"attrs,omitempty"`
}

// Filter selects entries for List. Empty fields match everything; Level is a
// minimum level ("debug", "info", "warn" or "error").
type Filter struct {
	GuildID string
	Level   string
	Command string
	Limit   int
	Offset  int
}

type Store struct {
	db *sql.DB
}

// Open opens (or creates) the log store at dbPath.
func Open(dbPath string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return nil, fmt.Errorf("create log db dir: %w", err)
	}
	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("open log db: %w", err)
	}
	return newStore(db)
}

func newStore(db *sql.DB) (*Store, error) {
	if _, err := db.ExecContext(context.Background(), schemaSQL); err != nil {
		db.Close()
		return nil, fmt.Errorf("log db schema: %w", err)
	}
	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

// write persists one entry. Errors are dropped: reporting them through slog
// would recurse into this handler. One write in 500 prunes the table.
func (s *Store) write(ctx context.Context, e Entry) {
	_, _ = s.db.ExecContext(ctx,
		`INSERT INTO logs (ts, level, msg, guild_id, channel_id, command, attrs) VALUES (?, ?, ?, ?, ?, ?, ?)`,
		e.CreatedAt, e.Level, e.Msg, e.GuildID, e.ChannelID, e.Command, e.Attrs,
	)
	if rand.IntN(500) == 0 {
		s.prune(context.Background())
	}
}

// prune deletes the oldest rows of every guild beyond rowsPerGuild.
func (s *Store) prune(ctx context.Context) {
	rows, err := s.db.QueryContext(ctx, `SELECT guild_id FROM logs GROUP BY guild_id HAVING COUNT(*) > ?`, rowsPerGuild)
	if err != nil {
		return
	}
	var guildIDs []string
	for rows.Next() {
		var gid string
		if err := rows.Scan(&gid); err != nil {
			continue
		}
		guildIDs = append(guildIDs, gid)
	}
	rows.Close()

	for _, gid := range guildIDs {
		_, _ = s.db.ExecContext(ctx,
			`DELETE FROM logs WHERE guild_id = ? AND id NOT IN (SELECT id FROM logs WHERE guild_id = ? ORDER BY id DESC LIMIT ?)`,
			gid, gid, rowsPerGuild,
		)
	}
}

var levelRank = map[string]int{"debug": -4, "info": 0, "warn": 4, "error": 8}

// List returns the newest entries matching f and the total number of matches.
func (s *Store) List(ctx context.Context, f Filter) ([]Entry, int, error) {
	if f.Limit <= 0 {
		f.Limit = 100
	}

	var where []string
	var args []any
	if f.GuildID != "" {
		where = append(where, "guild_id = ?")
		args = append(args, f.GuildID)
	}
	if f.Command != "" {
		where = append(where, "command = ?")
		args = append(args, f.Command)
	}
	if n, ok := levelRank[strings.ToLower(f.Level)]; ok {
		where = append(where, "CASE level WHEN 'DEBUG' THEN -4 WHEN 'INFO' THEN 0 WHEN 'WARN' THEN 4 WHEN 'ERROR' THEN 8 ELSE 0 END >= ?")
		args = append(args, n)
	}
	clause := ""
	if len(where) > 0 {
		clause = " WHERE " + strings.Join(where, " AND ")
	}

	var total int
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM logs"+clause, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count logs: %w", err)
	}

	rows, err := s.db.QueryContext(ctx,
		"SELECT id, ts, level, msg, guild_id, channel_id, command, COALESCE(attrs,'') FROM logs"+clause+
			" ORDER BY id DESC LIMIT ? OFFSET ?",
		append(args, f.Limit, f.Offset)...,
	)
	if err != nil {
		return nil, 0, fmt.Errorf("list logs: %w", err)
	}
	defer rows.Close()

	var out []Entry
	for rows.Next() {
		var e Entry
		if err := rows.Scan(&e.ID, &e.CreatedAt, &e.Level, &e.Msg, &e.GuildID, &e.ChannelID, &e.Command, &e.Attrs); err != nil {
			return nil, 0, fmt.Errorf("scan log row: %w", err)
		}
		out = append(out, e)
	}
	return out, total, rows.Err()
}

// lifted are the attribute keys stored in their own columns.
var lifted = map[string]bool{"guild_id": true, "channel_id": true, "command": true}

// Handler is a slog.Handler that tees records to an inner handler and to a
// Store. Lifted attributes added through WithAttrs are remembered so a logger
// scoped with logger.With("guild_id", id) still fills the column.
type Handler struct {
	inner slog.Handler
	store *Store
	scope map[string]string
}

// NewHandler wraps inner with a tee to store.
func NewHandler(inner slog.Handler, store *Store) *Handler {
	return &Handler{inner: inner, store: store, scope: make(map[string]string)}
}

func (h *Handler) Enabled(ctx context.Context, l slog.Level) bool {
	return h.inner.Enabled(ctx, l)
}

func (h *Handler) WithAttrs(attrs []slog.Attr) slog.Handler {
	child := &Handler{inner: h.inner.WithAttrs(attrs), store: h.store, scope: maps.Clone(h.scope)}
	for _, a := range attrs {
		child.scope[a.Key] = a.Value.String()
	}
	return child
}

func (h *Handler) WithGroup(name string) slog.Handler {
	return &Handler{inner: h.inner.WithGroup(name), store: h.store, scope: maps.Clone(h.scope)}
}

func (h *Handler) Handle(ctx context.Context, r slog.Record) error {
	if err := h.inner.Handle(ctx, r); err != nil {
		return err
	}

	e := Entry{
		CreatedAt: r.Time,
		Level:     r.Level.String(),
		Msg:       r.Message,
		GuildID:   h.scope["guild_id"],
		ChannelID: h.scope["channel_id"],
		Command:   h.scope["command"],
	}
	extra := make(map[string]any)
	for k, v := range h.scope {
		if !lifted[k] {
			extra[k] = v
		}
	}
	r.Attrs(func(a slog.Attr) bool {
		switch a.Key {
		case "guild_id":
			e.GuildID = a.Value.String()
		case "channel_id":
			e.ChannelID = a.Value.String()
		case "command":
			e.Command = a.Value.String()
		default:
			v := a.Value.Any()
			if err, ok := v.(error); ok {
				v = err.Error()
			}
			extra[a.Key] = v
		}
		return true
	})
	if len(extra) > 0 {
		b, _ := json.Marshal(extra)
		e.Attrs = string(b)
	}

	h.store.write(ctx, e)
	return nil
}
