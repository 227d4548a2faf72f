package divination

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// Sign is one of the twelve zodiac labels.
type Sign string

const (
	Aries       Sign = "Aries"
	Taurus      Sign = "Taurus"
	Gemini      Sign = "Gemini"
	Cancer      Sign = "Cancer"
	Leo         Sign = "Leo"
	Virgo       Sign = "Virgo"
	Libra       Sign = "Libra"
	Scorpio     Sign = "Scorpio"
	Sagittarius Sign = "Sagittarius"
	Capricorn   Sign = "Capricorn"
	Aquarius    Sign = "Aquarius"
	Pisces      Sign = "Pisces"
)

// signRange is an inclusive "MM-DD" window. Keys are compared as strings,
// which orders correctly because both parts are zero padded.
type signRange struct {
	sign  Sign
	start string
	end   string
}

// Capricorn wraps the year boundary and is handled before the scan.
var zodiacRanges = []signRange{
	{Aries, "03-21", "04-19"},
	{Taurus, "04-20", "05-20"},
	{Gemini, "05-21", "06-20"},
	{Cancer, "06-21", "07-22"},
	{Leo, "07-23", "08-22"},
	{Virgo, "08-23", "09-22"},
	{Libra, "09-23", "10-22"},
	{Scorpio, "10-23", "11-21"},
	{Sagittarius, "11-22", "12-21"},
	{Capricorn, "12-22", "01-19"},
	{Aquarius, "01-20", "02-18"},
	{Pisces, "02-19", "03-20"},
}

var looseDatePattern = regexp.MustCompile(`^(\d+)-(\d+)-(\d+)$`)

// Signs returns the twelve labels in calendar order starting at Aries.
func Signs() []Sign {
	out := make([]Sign, 0, len(zodiacRanges))
	for _, z := range zodiacRanges {
		out = append(out, z.sign)
	}
	return out
}

// ParseSign matches a label case-insensitively.
func ParseSign(label string) (Sign, bool) {
	label = strings.TrimSpace(label)
	for _, z := range zodiacRanges {
		if strings.EqualFold(string(z.sign), label) {
			return z.sign, true
		}
	}
	return "", false
}

// ResolveSign maps a "YYYY-MM-DD" style date to its zodiac sign. The second
// return value is false when the input cannot be parsed or falls outside every
// range (for example month 13). Calendar validity is not checked, so
// "2024-02-30" resolves to Pisces.
func ResolveSign(date string) (Sign, bool) {
	m := looseDatePattern.FindStringSubmatch(date)
	if m == nil {
		return "", false
	}
	month, err := strconv.Atoi(m[2])
	if err != nil {
		return "", false
	}
	day, err := strconv.Atoi(m[3])
	if err != nil {
		return "", false
	}

	key := fmt.Sprintf("%02d-%02d", month, day)

	capricorn := zodiacRanges[9]
	if (key >= capricorn.start && key <= "12-31") || (key >= "01-01" && key <= capricorn.end) {
		return Capricorn, true
	}

	for _, z := range zodiacRanges {
		if z.sign == Capricorn {
			continue
		}
		if key >= z.start && key <= z.end {
			return z.sign, true
		}
	}
	return "", false
}
