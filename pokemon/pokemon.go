// Package pokemon keeps the list of Pokémon names used to answer Poketwo
// hints.
package pokemon

import (
	"context"
	"encoding/csv"
	"io"
	"net/http"
	"regexp"
	"slices"
	"strings"
	"sync"
	"time"

	"emperror.dev/errors"
)

const nameColumn = "name.en"

// DefaultTimeout bounds a whole Refresh when New is given no client.
const DefaultTimeout = 30 * time.Second

// hintRE takes everything up to the last period on the line, so names such
// as "Mr. Mime" keep their inner period.
var hintRE = regexp.MustCompile(`The pok[eé]mon is (.+)\.`)

// List is the set of known names, refreshed from a CSV export. It is safe for
// concurrent use.
type List struct {
	client *http.Client
	url    string

	mu    sync.RWMutex
	names []string
}

func New(client *http.Client, url string) *List {
	if client == nil {
		client = &http.Client{Timeout: DefaultTimeout}
	}
	return &List{client: client, url: url}
}

// Refresh downloads the CSV and replaces the list. The previous list is kept
// when the download fails.
func (l *List) Refresh(ctx context.Context) (int, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, l.url, nil)
	if err != nil {
		return 0, errors.Wrap(err, "build request")
	}
	resp, err := l.client.Do(req)
	if err != nil {
		return 0, errors.Wrap(err, "fetch pokemon csv")
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return 0, errors.Errorf("fetch pokemon csv: status %d", resp.StatusCode)
	}

	names, err := Parse(resp.Body)
	if err != nil {
		return 0, err
	}
	l.Set(names)
	return len(names), nil
}

// Parse reads the lower-cased English names from a CSV with a name.en column.
func Parse(r io.Reader) ([]string, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1

	header, err := cr.Read()
	if err != nil {
		return nil, errors.Wrap(err, "read csv header")
	}
	col := slices.Index(header, nameColumn)
	if col < 0 {
		return nil, errors.Errorf("csv has no %s column", nameColumn)
	}

	var names []string
	for {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, errors.Wrap(err, "read csv record")
		}
		if col >= len(rec) || rec[col] == "" {
			continue
		}
		names = append(names, strings.ToLower(rec[col]))
	}
	return names, nil
}

func (l *List) Set(names []string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.names = names
}

func (l *List) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.names)
}

// Hint extracts the hint from a Poketwo "The pokémon is ..." message.
// Markdown escapes are removed.
func Hint(content string) (string, bool) {
	m := hintRE.FindStringSubmatch(content)
	if m == nil {
		return "", false
	}
	return strings.ReplaceAll(m[1], `\`, ""), true
}

// Solve returns the names matching hint, where each underscore stands for
// any single character.
func (l *List) Solve(hint string) []string {
	pattern := []rune(strings.ToLower(hint))

	l.mu.RLock()
	defer l.mu.RUnlock()
	var matches []string
	for _, name := range l.names {
		if matchHint(pattern, []rune(name)) {
			matches = append(matches, name)
		}
	}
	return matches
}

func matchHint(pattern, name []rune) bool {
	if len(pattern) != len(name) {
		return false
	}
	for i, r := range pattern {
		if r != '_' && r != name[i] {
			return false
		}
	}
	return true
}
