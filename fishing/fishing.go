// Package fishing holds the fishing poles, the fish collection and the
// weighted cast.
package fishing

import (
	"math/rand/v2"
	"slices"
	"sync"
)

type Rarity struct {
	ID         int
	Name       string
	Weight     float64
	MaxLevel   int
	Multiplier float64
}

var (
	Common    = Rarity{ID: 1, Name: "Common", Weight: 50.0, MaxLevel: 6, Multiplier: 1}
	Uncommon  = Rarity{ID: 2, Name: "Uncommon", Weight: 30.0, MaxLevel: 8, Multiplier: 1.2}
	Rare      = Rarity{ID: 3, Name: "Rare", Weight: 15.0, MaxLevel: 10, Multiplier: 1.4}
	Epic      = Rarity{ID: 4, Name: "Epic", Weight: 8.0, MaxLevel: 12, Multiplier: 2}
	Legendary = Rarity{ID: 5, Name: "Legendary", Weight: 1.5, MaxLevel: 14, Multiplier: 2.5}
	Mythic    = Rarity{ID: 6, Name: "Mythic", Weight: 0.5, MaxLevel: 6, Multiplier: 4}
)

type Pole struct {
	ID         int
	Name       string
	Multiplier float64
	Price      float64
}

// Paper is the pole everyone has; lookups of unknown poles return it.
var Paper = Pole{ID: 0, Name: "Paper", Multiplier: 1.0, Price: 0.0}

type Fish struct {
	ID       int
	Name     string
	Weight   float64
	MinLevel int
	MaxLevel int
	Value    int
	Rarity   Rarity
}

// Poles is a keyed set of fishing poles.
type Poles struct {
	byKey map[string]Pole
}

func NewPoles(poles map[string]Pole) *Poles {
	p := &Poles{byKey: make(map[string]Pole, len(poles))}
	for k, v := range poles {
		p.byKey[k] = v
	}
	return p
}

// Get returns the pole stored under key, or Paper.
func (p *Poles) Get(key string) Pole {
	if pole, ok := p.byKey[key]; ok {
		return pole
	}
	return Paper
}

// ByID returns the pole with the given id, or Paper.
func (p *Poles) ByID(id int) Pole {
	for _, pole := range p.byKey {
		if pole.ID == id {
			return pole
		}
	}
	return Paper
}

// Collection is a keyed set of fish.
type Collection struct {
	byKey map[string]Fish
	keys  []string
}

func NewCollection(fish map[string]Fish) *Collection {
	c := &Collection{byKey: make(map[string]Fish, len(fish))}
	for k, v := range fish {
		c.byKey[k] = v
		c.keys = append(c.keys, k)
	}
	slices.Sort(c.keys)
	return c
}

func (c *Collection) Get(key string) (Fish, bool) {
	f, ok := c.byKey[key]
	return f, ok
}

func (c *Collection) ByID(id int) (Fish, bool) {
	for _, f := range c.byKey {
		if f.ID == id {
			return f, true
		}
	}
	return Fish{}, false
}

// Candidates returns the fish catchable with pole and their weights:
// fish.Weight × pole.Multiplier × rarity weight, over fish whose MaxLevel is
// at least the pole id. Keys are in sorted order.
func (c *Collection) Candidates(pole Pole) ([]Fish, []float64) {
	var fish []Fish
	var weights []float64
	for _, k := range c.keys {
		f := c.byKey[k]
		if pole.ID > f.MaxLevel {
			continue
		}
		fish = append(fish, f)
		weights = append(weights, f.Weight*pole.Multiplier*f.Rarity.Weight)
	}
	return fish, weights
}

// Pond draws fish. It is safe for concurrent use.
type Pond struct {
	Poles *Poles
	Fish  *Collection

	mu  sync.Mutex
	rng *rand.Rand
}

// NewPond returns a pond stocked with the default poles and fish.
func NewPond() *Pond {
	return NewPondWith(NewPoles(defaultPoles), NewCollection(defaultFish), rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64())))
}

func NewPondWith(poles *Poles, fish *Collection, rng *rand.Rand) *Pond {
	return &Pond{Poles: poles, Fish: fish, rng: rng}
}

// Cast draws one fish with the pole stored under poleKey. ok is false when no
// fish is catchable with that pole.
func (p *Pond) Cast(poleKey string) (Pole, Fish, bool) {
	pole := p.Poles.Get(poleKey)
	fish, weights := p.Fish.Candidates(pole)
	if len(fish) == 0 {
		return pole, Fish{}, false
	}

	var total float64
	for _, w := range weights {
		total += w
	}
	if total <= 0 {
		return pole, Fish{}, false
	}

	p.mu.Lock()
	r := p.rng.Float64() * total
	p.mu.Unlock()

	for i, w := range weights {
		if r < w {
			return pole, fish[i], true
		}
		r -= w
	}
	return pole, fish[len(fish)-1], true
}
