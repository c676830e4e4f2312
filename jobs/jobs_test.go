package jobs

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeRefresher struct {
	calls int
	err   error
}

func (f *fakeRefresher) Refresh(context.Context) (int, error) {
	f.calls++
	return 1025, f.err
}

type fakeSweeper struct {
	maxAge time.Duration
	calls  int
}

func (f *fakeSweeper) SweepStale(maxAge time.Duration) (int, error) {
	f.calls++
	f.maxAge = maxAge
	return 3, nil
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestNewRegistersConfiguredJobs(t *testing.T) {
	tests := []struct {
		name string
		opts Options
		want int
	}{
		{"both", Options{Pokemon: &fakeRefresher{}, Downloads: &fakeSweeper{}}, 2},
		{"pokemon only", Options{Pokemon: &fakeRefresher{}}, 1},
		{"none", Options{}, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.opts.Logger = quietLogger()
			s, err := New(tt.opts)
			require.NoError(t, err)
			assert.Len(t, s.cron.Entries(), tt.want)
		})
	}
}

func TestNewRejectsBadSpec(t *testing.T) {
	_, err := New(Options{Pokemon: &fakeRefresher{}, PokemonSpec: "every tuesday", Logger: quietLogger()})
	assert.Error(t, err)
}

func TestJobsRun(t *testing.T) {
	p := &fakeRefresher{}
	d := &fakeSweeper{}
	s, err := New(Options{Pokemon: p, Downloads: d, Logger: quietLogger()})
	require.NoError(t, err)

	s.refreshPokemon()
	s.sweepDownloads()
	assert.Equal(t, 1, p.calls)
	assert.Equal(t, 1, d.calls)
	assert.Equal(t, DefaultMaxAge, d.maxAge)
}

func TestRefreshFailureIsLogged(t *testing.T) {
	p := &fakeRefresher{err: errors.New("503")}
	s, err := New(Options{Pokemon: p, Logger: quietLogger()})
	require.NoError(t, err)
	s.refreshPokemon()
	assert.Equal(t, 1, p.calls)
}

func TestStartStop(t *testing.T) {
	s, err := New(Options{Downloads: &fakeSweeper{}, MaxAge: time.Hour, Logger: quietLogger()})
	require.NoError(t, err)
	assert.Equal(t, time.Hour, s.maxAge)

	s.Start(context.Background())
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	s.Stop(ctx)
}
