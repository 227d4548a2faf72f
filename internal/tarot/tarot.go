// Package tarot holds the major arcana catalog and produces reproducible
// spreads from an explicit seed.
package tarot

import (
	_ "embed"
	"errors"
	"fmt"
	"math/rand/v2"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"gopkg.in/yaml.v3"
)

//go:embed data/major_arcana.yaml
var deckYAML []byte

var (
	ErrUnknownSpread = errors.New("tarot: unknown spread")
	ErrNotReady      = errors.New("tarot: reading context incomplete")
)

// LimitReachedMessage is shown once the daily draw allowance is used up.
const LimitReachedMessage = "Daily limit reached. Come back tomorrow for a fresh draw."

var dobPattern = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}$`)

type Card struct {
	ID       string `yaml:"id" json:"id"`
	Name     string `yaml:"name" json:"name"`
	Image    string `yaml:"image" json:"image"`
	Upright  string `yaml:"upright" json:"upright"`
	Reversed string `yaml:"reversed" json:"reversed"`
}

type Orientation string

const (
	Upright  Orientation = "upright"
	Reversed Orientation = "reversed"
)

type Spread string

const (
	SpreadDaily  Spread = "Daily"
	SpreadQuick  Spread = "Quick"
	SpreadCeltic Spread = "Celtic"
)

var spreadSizes = map[Spread]int{
	SpreadDaily:  1,
	SpreadQuick:  3,
	SpreadCeltic: 10,
}

// Spreads lists the supported spreads from smallest to largest.
func Spreads() []Spread {
	return []Spread{SpreadDaily, SpreadQuick, SpreadCeltic}
}

// ParseSpread accepts a spread label in any letter case.
func ParseSpread(label string) (Spread, error) {
	label = strings.TrimSpace(label)
	for s := range spreadSizes {
		if strings.EqualFold(string(s), label) {
			return s, nil
		}
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownSpread, label)
}

// Count is the number of cards laid out by the spread.
func (s Spread) Count() int {
	return spreadSizes[s]
}

// Ready reports whether a draw may start: the date of birth is a complete
// YYYY-MM-DD string and an intent has been chosen.
func Ready(dob, intent string) bool {
	return dobPattern.MatchString(strings.TrimSpace(dob)) && strings.TrimSpace(intent) != ""
}

var (
	deckOnce sync.Once
	deck     []Card
	deckErr  error
)

// Deck returns a copy of the embedded major arcana.
func Deck() ([]Card, error) {
	deckOnce.Do(func() {
		if err := yaml.Unmarshal(deckYAML, &deck); err != nil {
			deckErr = fmt.Errorf("parse tarot deck: %w", err)
		}
	})
	if deckErr != nil {
		return nil, deckErr
	}
	return append([]Card(nil), deck...), nil
}

// DrawnCard is one position of a laid-out spread.
type DrawnCard struct {
	Position    int         `json:"position"`
	Card        Card        `json:"card"`
	Orientation Orientation `json:"orientation"`
	Meaning     string      `json:"meaning"`
}

// Reading is a complete spread. Seed replays the exact same cards.
type Reading struct {
	ID        string      `json:"id"`
	Spread    Spread      `json:"spread"`
	Intent    string      `json:"intent"`
	Seed      uint64      `json:"seed"`
	Cards     []DrawnCard `json:"cards"`
	CreatedAt time.Time   `json:"created_at"`
}

// Request describes a draw. A nil Seed asks the Drawer for a fresh one.
type Request struct {
	Spread Spread
	Intent string
	DOB    string
	Seed   *uint64
}

type Drawer struct {
	deck    []Card
	newSeed func() uint64
	now     func() time.Time
}

type DrawerOption func(*Drawer)

// WithSeedSource replaces the source of fresh seeds.
func WithSeedSource(f func() uint64) DrawerOption {
	return func(d *Drawer) { d.newSeed = f }
}

func WithNow(f func() time.Time) DrawerOption {
	return func(d *Drawer) { d.now = f }
}

func NewDrawer(cards []Card, opts ...DrawerOption) *Drawer {
	d := &Drawer{
		deck:    cards,
		newSeed: rand.Uint64,
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Draw lays out req.Spread with distinct cards, each upright or reversed.
// The PRNG is seeded only from the request or the seed source, so a reading
// is fully determined by (deck, spread, seed).
func (d *Drawer) Draw(req Request) (Reading, error) {
	count, ok := spreadSizes[req.Spread]
	if !ok {
		return Reading{}, fmt.Errorf("%w: %q", ErrUnknownSpread, req.Spread)
	}
	if !Ready(req.DOB, req.Intent) {
		return Reading{}, ErrNotReady
	}
	if count > len(d.deck) {
		return Reading{}, fmt.Errorf("tarot: deck has %d cards, spread needs %d", len(d.deck), count)
	}

	var seed uint64
	if req.Seed != nil {
		seed = *req.Seed
	} else {
		seed = d.newSeed()
	}
	rng := rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))

	order := rng.Perm(len(d.deck))[:count]
	cards := make([]DrawnCard, 0, count)
	for i, idx := range order {
		c := d.deck[idx]
		dc := DrawnCard{Position: i + 1, Card: c, Orientation: Upright, Meaning: c.Upright}
		if rng.IntN(2) == 1 {
			dc.Orientation = Reversed
			dc.Meaning = c.Reversed
		}
		cards = append(cards, dc)
	}

	return Reading{
		ID:        uuid.New().String(),
		Spread:    req.Spread,
		Intent:    strings.TrimSpace(req.Intent),
		Seed:      seed,
		Cards:     cards,
		CreatedAt: d.now().UTC(),
	}, nil
}
