package commands

import (
	"sync"
	"time"
)

const (
	replyTTL      = 5 * time.Minute
	maxTrackedKey = 1000
)

// MessageRef identifies a sent message.
type MessageRef struct {
	ChannelID string
	MessageID string
}

type trackedReplies struct {
	refs    []MessageRef
	expires time.Time
}

// Tracker remembers the replies sent for each invoking message, keyed by
// "channel-message", so they can be deleted when the invocation is. Entries
// expire after replyTTL and at most maxTrackedKey invocations are kept, the
// oldest being evicted first.
type Tracker struct {
	mu      sync.Mutex
	entries map[string]*trackedReplies
	order   []string
	ttl     time.Duration
	max     int
	now     func() time.Time
}

func NewTracker() *Tracker {
	return &Tracker{
		entries: make(map[string]*trackedReplies),
		ttl:     replyTTL,
		max:     maxTrackedKey,
		now:     time.Now,
	}
}

func trackerKey(channelID, messageID string) string {
	return channelID + "-" + messageID
}

// Add records reply as sent in response to the invoking message.
func (t *Tracker) Add(channelID, messageID string, reply MessageRef) {
	t.mu.Lock()
	defer t.mu.Unlock()

	key := trackerKey(channelID, messageID)
	now := t.now()
	if e, ok := t.entries[key]; ok && now.Before(e.expires) {
		e.refs = append(e.refs, reply)
		return
	}

	t.evict(now)
	if _, ok := t.entries[key]; !ok {
		t.order = append(t.order, key)
	}
	t.entries[key] = &trackedReplies{refs: []MessageRef{reply}, expires: now.Add(t.ttl)}
}

// Take removes and returns the replies tracked for the invoking message.
func (t *Tracker) Take(channelID, messageID string) []MessageRef {
	t.mu.Lock()
	defer t.mu.Unlock()

	key := trackerKey(channelID, messageID)
	e, ok := t.entries[key]
	if !ok {
		return nil
	}
	delete(t.entries, key)
	t.dropOrder(key)
	if !t.now().Before(e.expires) {
		return nil
	}
	return e.refs
}

// Len returns the number of tracked invocations, expired ones included.
func (t *Tracker) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.entries)
}

// evict drops expired entries, then the oldest ones until there is room for
// one more. Must be called with t.mu held.
func (t *Tracker) evict(now time.Time) {
	kept := t.order[:0]
	for _, key := range t.order {
		if e, ok := t.entries[key]; ok && now.Before(e.expires) {
			kept = append(kept, key)
		} else {
			delete(t.entries, key)
		}
	}
	t.order = kept
	for len(t.order) >= t.max {
		delete(t.entries, t.order[0])
		t.order = t.order[1:]
	}
}

func (t *Tracker) dropOrder(key string) {
	for i, k := range t.order {
		if k == key {
			t.order = append(t.order[:i], t.order[i+1:]...)
			return
		}
	}
}
