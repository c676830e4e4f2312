// Package cache holds the in-memory mirror of the guild and user settings rows
// that are consulted on every message: prefixes, opt-outs, auto-download channels,
// poketwo guilds, auto-reaction guilds and Pinboard channels.
//
// The cache is populated once at startup and mutated by callers only after the
// matching database write has succeeded. Lists are not sets: adding the same id
// twice stores it twice, and a removal drops a single occurrence.
package cache

import (
	"slices"
	"sync"
)

// Cache is safe for concurrent use.
type Cache struct {
	mu                 sync.RWMutex
	prefixes           map[string][]string
	optedOut           map[string][]string
	autoDownloads      []string
	poketwoGuilds      []string
	autoReactionGuilds []string
	nsfwCovers         []string
	pinboard           map[string]string
}

// New returns an empty cache.
func New() *Cache {
	return &Cache{
		prefixes: make(map[string][]string),
		optedOut: make(map[string][]string),
		pinboard: make(map[string]string),
	}
}

// AddPrefix appends prefix to the guild's list, creating the list if needed,
// and returns the resulting list.
func (c *Cache) AddPrefix(guildID, prefix string) []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.prefixes[guildID] = append(c.prefixes[guildID], prefix)
	return slices.Clone(c.prefixes[guildID])
}

// RemovePrefix removes one occurrence of prefix. An unknown guild yields an
// empty list; an unknown prefix leaves the list as it was.
func (c *Cache) RemovePrefix(guildID, prefix string) []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	list, ok := c.prefixes[guildID]
	if !ok {
		return []string{}
	}
	c.prefixes[guildID] = removeFirst(list, prefix)
	return slices.Clone(c.prefixes[guildID])
}

// Prefixes returns a copy of the guild's custom prefixes.
func (c *Cache) Prefixes(guildID string) []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return slices.Clone(c.prefixes[guildID])
}

// AddOptOut records feature as opted out for a user or guild id.
func (c *Cache) AddOptOut(subjectID, feature string) []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.optedOut[subjectID] = append(c.optedOut[subjectID], feature)
	return slices.Clone(c.optedOut[subjectID])
}

// RemoveOptOut follows the same absence rules as RemovePrefix.
func (c *Cache) RemoveOptOut(subjectID, feature string) []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	list, ok := c.optedOut[subjectID]
	if !ok {
		return []string{}
	}
	c.optedOut[subjectID] = removeFirst(list, feature)
	return slices.Clone(c.optedOut[subjectID])
}

// OptedOut returns the features opted out by subjectID, never nil.
func (c *Cache) OptedOut(subjectID string) []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	list, ok := c.optedOut[subjectID]
	if !ok {
		return []string{}
	}
	return slices.Clone(list)
}

func (c *Cache) IsOptedOut(subjectID, feature string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return slices.Contains(c.optedOut[subjectID], feature)
}

// AddPinboard maps a guild to its Pinboard channel, replacing any previous one.
func (c *Cache) AddPinboard(guildID, channelID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.pinboard[guildID] = channelID
}

// RemovePinboard drops the guild's Pinboard mapping. The channel id is accepted
// for symmetry with AddPinboard; the mapping is removed whatever it points to.
func (c *Cache) RemovePinboard(guildID, _ string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.pinboard, guildID)
}

func (c *Cache) Pinboard(guildID string) (string, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	ch, ok := c.pinboard[guildID]
	return ch, ok
}

func (c *Cache) AddADL(channelID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.autoDownloads = append(c.autoDownloads, channelID)
}

func (c *Cache) RemoveADL(channelID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.autoDownloads = removeFirst(c.autoDownloads, channelID)
}

// IsADL reports whether channelID is an auto-download channel.
func (c *Cache) IsADL(channelID string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return slices.Contains(c.autoDownloads, channelID)
}

func (c *Cache) ADLChannels() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return slices.Clone(c.autoDownloads)
}

func (c *Cache) AddPoketwo(guildID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.poketwoGuilds = append(c.poketwoGuilds, guildID)
}

func (c *Cache) RemovePoketwo(guildID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.poketwoGuilds = removeFirst(c.poketwoGuilds, guildID)
}

func (c *Cache) IsPoketwo(guildID string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return slices.Contains(c.poketwoGuilds, guildID)
}

func (c *Cache) PoketwoGuilds() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return slices.Clone(c.poketwoGuilds)
}

func (c *Cache) AddReactionGuild(guildID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.autoReactionGuilds = append(c.autoReactionGuilds, guildID)
}

func (c *Cache) RemoveReactionGuild(guildID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.autoReactionGuilds = removeFirst(c.autoReactionGuilds, guildID)
}

func (c *Cache) IsReactionGuild(guildID string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return slices.Contains(c.autoReactionGuilds, guildID)
}

// AddNSFWCover marks an album id whose cover must be spoilered.
func (c *Cache) AddNSFWCover(albumID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.nsfwCovers = append(c.nsfwCovers, albumID)
}

func (c *Cache) IsNSFWCover(albumID string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return slices.Contains(c.nsfwCovers, albumID)
}

// Snapshot is a point-in-time copy of the cache contents.
type Snapshot struct {
	Prefixes           map[string][]string `json:"prefixes"`
	OptedOut           map[string][]string `json:"opted_out"`
	AutoDownloads      []string            `json:"auto_downloads"`
	PoketwoGuilds      []string            `json:"poketwo_guilds"`
	AutoReactionGuilds []string            `json:"auto_reaction_guilds"`
	Pinboard           map[string]string   `json:"pinboard"`
}

func (c *Cache) Snapshot() Snapshot {
	c.mu.RLock()
	defer c.mu.RUnlock()
	snap := Snapshot{
		Prefixes:           make(map[string][]string, len(c.prefixes)),
		OptedOut:           make(map[string][]string, len(c.optedOut)),
		AutoDownloads:      slices.Clone(c.autoDownloads),
		PoketwoGuilds:      slices.Clone(c.poketwoGuilds),
		AutoReactionGuilds: slices.Clone(c.autoReactionGuilds),
		Pinboard:           make(map[string]string, len(c.pinboard)),
	}
	for k, v := range c.prefixes {
		snap.Prefixes[k] = slices.Clone(v)
	}
	for k, v := range c.optedOut {
		snap.OptedOut[k] = slices.Clone(v)
	}
	for k, v := range c.pinboard {
		snap.Pinboard[k] = v
	}
	return snap
}

// Len returns the number of entries across all mirrored tables.
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	n := len(c.autoDownloads) + len(c.poketwoGuilds) + len(c.autoReactionGuilds) + len(c.pinboard)
	for _, v := range c.prefixes {
		n += len(v)
	}
	for _, v := range c.optedOut {
		n += len(v)
	}
	return n
}

func removeFirst(list []string, v string) []string {
	i := slices.Index(list, v)
	if i < 0 {
		return list
	}
	return slices.Delete(list, i, i+1)
}
