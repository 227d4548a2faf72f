package divination

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestScore(t *testing.T) {
	assert.Equal(t, 88, Score(Aries, Leo))
	assert.Equal(t, 88, Score(Leo, Aries))
	assert.Equal(t, 70, Score(Aries, Capricorn))
	assert.Equal(t, 70, Score(Capricorn, Aries))
}

func TestScore_ReverseLookup(t *testing.T) {
	// Scorpio -> Taurus is stored directly.
	assert.Equal(t, 72, Score(Scorpio, Taurus))
	// Aquarius -> Sagittarius exists, Sagittarius has no Aquarius entry.
	assert.Equal(t, 76, Score(Sagittarius, Aquarius))
}

func TestScore_AlwaysInRange(t *testing.T) {
	for _, a := range Signs() {
		for _, b := range Signs() {
			s := Score(a, b)
			assert.GreaterOrEqual(t, s, 0)
			assert.LessOrEqual(t, s, 100)
		}
	}
}

func TestHoroscope(t *testing.T) {
	r := Horoscope(Aries)
	assert.Equal(t, "Act boldly today; a quick decision opens a new path.", r.Daily)

	for _, s := range Signs() {
		r := Horoscope(s)
		assert.NotEmpty(t, r.Daily, s)
		assert.NotEmpty(t, r.Yearly, s)
	}

	def := Horoscope("")
	assert.Contains(t, def.Daily, "synchronicities")
}

func TestValidateHoroscopes(t *testing.T) {
	assert.NoError(t, ValidateHoroscopes())
}

func TestParseCatalog_Rejects(t *testing.T) {
	_, err := parseCatalog([]byte("signs: [unterminated"))
	assert.ErrorContains(t, err, "parse horoscope catalog")

	full := "daily: d\nweekly: w\nmonthly: m\nyearly: y\n"
	_, err = parseCatalog([]byte("default:\n  daily: only daily\n"))
	assert.ErrorContains(t, err, "default reading is incomplete")

	_, err = parseCatalog([]byte("default:\n" + indent(full) + "signs:\n  Aries:\n" + indent(indent(full))))
	assert.ErrorContains(t, err, "Taurus is missing")
}

func indent(s string) string {
	lines := strings.SplitAfter(s, "\n")
	var b strings.Builder
	for _, l := range lines {
		if l != "" {
			b.WriteString("  " + l)
		}
	}
	return b.String()
}
