package bot

import "sync"

// tracker remembers the last seen value per key so that changes can be
// detected for events that carry no "before" copy.
type tracker[T comparable] struct {
	mu   sync.Mutex
	seen map[string]T
}

func newTracker[T comparable]() *tracker[T] {
	return &tracker[T]{seen: make(map[string]T)}
}

// swap stores v under key and returns the previous value, if any.
func (t *tracker[T]) swap(key string, v T) (prev T, known bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	prev, known = t.seen[key]
	t.seen[key] = v
	return prev, known
}

// seed stores v unless key is already known.
func (t *tracker[T]) seed(key string, v T) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if _, ok := t.seen[key]; !ok {
		t.seen[key] = v
	}
}

type userSnapshot struct {
	Avatar        string
	Username      string
	DisplayName   string
	Discriminator string
}

type guildSnapshot struct {
	Name string
	Icon string
}
