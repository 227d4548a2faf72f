package tarot

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func loadDeck(t *testing.T) []Card {
	t.Helper()
	cards, err := Deck()
	require.NoError(t, err)
	return cards
}

func TestDeck_MajorArcana(t *testing.T) {
	cards := loadDeck(t)
	require.Len(t, cards, 22)
	assert.Equal(t, "The Fool", cards[0].Name)
	assert.Equal(t, "The World", cards[21].Name)

	ids := make(map[string]bool)
	for _, c := range cards {
		assert.NotEmpty(t, c.Upright, c.ID)
		assert.NotEmpty(t, c.Reversed, c.ID)
		assert.False(t, ids[c.ID], "duplicate id %s", c.ID)
		ids[c.ID] = true
	}
}

func TestDeck_ReturnsCopy(t *testing.T) {
	a := loadDeck(t)
	a[0].Name = "changed"
	b := loadDeck(t)
	assert.Equal(t, "The Fool", b[0].Name)
}

func TestParseSpread(t *testing.T) {
	s, err := ParseSpread(" celtic ")
	require.NoError(t, err)
	assert.Equal(t, SpreadCeltic, s)
	assert.Equal(t, 10, s.Count())

	_, err = ParseSpread("horseshoe")
	assert.ErrorIs(t, err, ErrUnknownSpread)

	assert.Equal(t, []int{1, 3, 10}, []int{SpreadDaily.Count(), SpreadQuick.Count(), SpreadCeltic.Count()})
}

func TestReady(t *testing.T) {
	assert.True(t, Ready("1990-07-16", "career"))
	assert.False(t, Ready("1990-7-16", "career"))
	assert.False(t, Ready("1990-07-16", "  "))
	assert.False(t, Ready("", "love"))
}

func TestDraw_SameSeedSameReading(t *testing.T) {
	d := NewDrawer(loadDeck(t))
	seed := uint64(42)
	req := Request{Spread: SpreadCeltic, Intent: "growth", DOB: "1990-07-16", Seed: &seed}

	a, err := d.Draw(req)
	require.NoError(t, err)
	b, err := d.Draw(req)
	require.NoError(t, err)

	assert.Equal(t, a.Cards, b.Cards)
	assert.Equal(t, seed, a.Seed)
	assert.NotEqual(t, a.ID, b.ID)
}

func TestDraw_DistinctCardsAndCounts(t *testing.T) {
	d := NewDrawer(loadDeck(t))
	for _, spread := range Spreads() {
		for seed := uint64(0); seed < 50; seed++ {
			s := seed
			r, err := d.Draw(Request{Spread: spread, Intent: "x", DOB: "2000-01-01", Seed: &s})
			require.NoError(t, err)
			require.Len(t, r.Cards, spread.Count())

			seen := make(map[string]bool)
			for i, c := range r.Cards {
				assert.Equal(t, i+1, c.Position)
				assert.False(t, seen[c.Card.ID])
				seen[c.Card.ID] = true
				if c.Orientation == Reversed {
					assert.Equal(t, c.Card.Reversed, c.Meaning)
				} else {
					assert.Equal(t, Upright, c.Orientation)
					assert.Equal(t, c.Card.Upright, c.Meaning)
				}
			}
		}
	}
}

func TestDraw_BothOrientationsOccur(t *testing.T) {
	d := NewDrawer(loadDeck(t))
	counts := map[Orientation]int{}
	for seed := uint64(0); seed < 20; seed++ {
		s := seed
		r, err := d.Draw(Request{Spread: SpreadCeltic, Intent: "x", DOB: "2000-01-01", Seed: &s})
		require.NoError(t, err)
		for _, c := range r.Cards {
			counts[c.Orientation]++
		}
	}
	assert.Positive(t, counts[Upright])
	assert.Positive(t, counts[Reversed])
}

func TestDraw_UsesSeedSource(t *testing.T) {
	d := NewDrawer(loadDeck(t), WithSeedSource(func() uint64 { return 7 }))
	r, err := d.Draw(Request{Spread: SpreadQuick, Intent: "love", DOB: "1985-03-03"})
	require.NoError(t, err)
	assert.Equal(t, uint64(7), r.Seed)

	seven := uint64(7)
	replay, err := d.Draw(Request{Spread: SpreadQuick, Intent: "love", DOB: "1985-03-03", Seed: &seven})
	require.NoError(t, err)
	assert.Equal(t, r.Cards, replay.Cards)
}

func TestDraw_Errors(t *testing.T) {
	d := NewDrawer(loadDeck(t))

	_, err := d.Draw(Request{Spread: "Pyramid", Intent: "x", DOB: "2000-01-01"})
	assert.ErrorIs(t, err, ErrUnknownSpread)

	_, err = d.Draw(Request{Spread: SpreadDaily, Intent: "", DOB: "2000-01-01"})
	assert.ErrorIs(t, err, ErrNotReady)

	small := NewDrawer(loadDeck(t)[:2])
	_, err = small.Draw(Request{Spread: SpreadQuick, Intent: "x", DOB: "2000-01-01"})
	assert.Error(t, err)
}
