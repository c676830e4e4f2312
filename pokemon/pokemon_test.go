package pokemon

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleCSV = `id,dex_number,name.ja,name.en,name.de
1,1,Fushigidane,Bulbasaur,Bisasam
4,4,Hitokage,Charmander,Glumanda
7,7,Zenigame,Squirtle,Schiggy
25,25,Pikachu,Pikachu,Pikachu
26,26,Raichu,Raichu,Raichu
`

func TestParse(t *testing.T) {
	names, err := Parse(strings.NewReader(sampleCSV))
	require.NoError(t, err)
	assert.Equal(t, []string{"bulbasaur", "charmander", "squirtle", "pikachu", "raichu"}, names)

	_, err = Parse(strings.NewReader("id,name\n1,x\n"))
	assert.Error(t, err)
}

func TestHint(t *testing.T) {
	tests := []struct {
		content string
		want    string
		ok      bool
	}{
		{`The pokémon is \_i\_a\_h\_.`, "_i_a_h_", true},
		{"The pokémon is R\\_\\_chu. Try again!", "R__chu", true},
		{"The pokemon is p_k_c_u.", "p_k_c_u", true},
		{`The pokémon is \_r. \_\_\_\_.`, "_r. ____", true},
		{"The pokémon is M\\_. R\\_\\_e.\nCatch it!", "M_. R__e", true},
		{"Congratulations!", "", false},
	}
	for _, tt := range tests {
		got, ok := Hint(tt.content)
		assert.Equal(t, tt.ok, ok, tt.content)
		assert.Equal(t, tt.want, got, tt.content)
	}
}

func TestSolve(t *testing.T) {
	l := New(nil, "")
	l.Set([]string{"pikachu", "raichu", "mr. mime", "flabébé"})

	assert.Equal(t, []string{"pikachu"}, l.Solve("_i_a_h_"))
	assert.Equal(t, []string{"raichu"}, l.Solve("R__chu"))
	assert.Equal(t, []string{"mr. mime"}, l.Solve("m_. _i_e"))
	assert.Equal(t, []string{"flabébé"}, l.Solve("fla_é_é"))

	hint, ok := Hint(`The pokémon is \_r. \_\_\_\_.`)
	require.True(t, ok)
	assert.Equal(t, []string{"mr. mime"}, l.Solve(hint))
	assert.Empty(t, l.Solve("zzz"))
}

func TestRefresh(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/pokemon.csv" {
			http.NotFound(w, r)
			return
		}
		w.Write([]byte(sampleCSV))
	}))
	defer srv.Close()

	l := New(srv.Client(), srv.URL+"/pokemon.csv")
	n, err := l.Refresh(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 5, n)
	assert.Equal(t, 5, l.Len())

	bad := New(srv.Client(), srv.URL+"/missing.csv")
	bad.Set([]string{"kept"})
	_, err = bad.Refresh(context.Background())
	assert.Error(t, err)
	assert.Equal(t, 1, bad.Len())
}

func TestRefreshGivesUpOnStalledServer(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer srv.Close()
	defer close(release)

	l := New(&http.Client{Timeout: 50 * time.Millisecond}, srv.URL+"/pokemon.csv")
	l.Set([]string{"kept"})
	start := time.Now()
	_, err := l.Refresh(context.Background())
	assert.Error(t, err)
	assert.Less(t, time.Since(start), 5*time.Second)
	assert.Equal(t, 1, l.Len())
}

func TestNewDefaultClientHasTimeout(t *testing.T) {
	l := New(nil, "http://example.invalid/pokemon.csv")
	assert.Equal(t, DefaultTimeout, l.client.Timeout)
}
