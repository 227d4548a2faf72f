package divination

import (
	"regexp"
	"strings"
)

var strictDatePattern = regexp.MustCompile(`^(\d{4})-(\d{2})-(\d{2})$`)

// Vowels for soul urge include Y.
const soulVowels = "AEIOUY"

// Profile holds the three derived numbers. A nil field means the inputs were
// insufficient to derive it.
type Profile struct {
	LifePath   *int `json:"lifePath"`
	Expression *int `json:"expression"`
	SoulUrge   *int `json:"soulUrge"`
}

var interpretations = map[int]string{
	1:  "Independent, pioneering, leadership energy.",
	2:  "Diplomatic, cooperative, harmony-seeking.",
	3:  "Creative, expressive, optimistic.",
	4:  "Practical, organized, builder mindset.",
	5:  "Adventurous, adaptable, freedom-loving.",
	6:  "Nurturing, responsible, community-focused.",
	7:  "Analytical, introspective, spiritual seeker.",
	8:  "Ambitious, empowered, materially adept.",
	9:  "Compassionate, humanitarian, big-picture.",
	11: "Intuitive, inspiring, visionary (master number).",
	22: "Master builder, practical visionary (master number).",
	33: "Compassionate teacher, uplifting service (master number).",
}

// IsMasterNumber reports whether n is 11, 22 or 33.
func IsMasterNumber(n int) bool {
	return n == 11 || n == 22 || n == 33
}

// DigitReduce sums decimal digits until the value is a single digit or a
// master number. The master check runs on the value before every pass, never
// on partial sums inside a pass.
func DigitReduce(n int) int {
	for n > 9 && !IsMasterNumber(n) {
		sum := 0
		for v := n; v > 0; v /= 10 {
			sum += v % 10
		}
		n = sum
	}
	return n
}

// LifePath sums every digit of a strict YYYY-MM-DD date and reduces it.
func LifePath(dob string) (int, bool) {
	m := strictDatePattern.FindStringSubmatch(dob)
	if m == nil {
		return 0, false
	}
	sum := 0
	for _, group := range m[1:] {
		for _, ch := range group {
			sum += int(ch - '0')
		}
	}
	return DigitReduce(sum), true
}

// Expression reduces the Pythagorean value of every letter in name.
func Expression(name string) (int, bool) {
	letters := lettersOf(name)
	if letters == "" {
		return 0, false
	}
	return DigitReduce(letterSum(letters)), true
}

// SoulUrge reduces the Pythagorean value of the vowels in name.
func SoulUrge(name string) (int, bool) {
	var b strings.Builder
	for _, ch := range lettersOf(name) {
		if strings.ContainsRune(soulVowels, ch) {
			b.WriteRune(ch)
		}
	}
	if b.Len() == 0 {
		return 0, false
	}
	return DigitReduce(letterSum(b.String())), true
}

// NewProfile derives all three numbers independently.
func NewProfile(name, dob string) Profile {
	var p Profile
	if v, ok := LifePath(dob); ok {
		p.LifePath = &v
	}
	if v, ok := Expression(name); ok {
		p.Expression = &v
	}
	if v, ok := SoulUrge(name); ok {
		p.SoulUrge = &v
	}
	return p
}

// Meaning returns the short interpretation of a derived number.
func Meaning(n int) string {
	return interpretations[n]
}

// LetterValue maps A..Z onto 1..9, cycling every nine letters.
func LetterValue(ch rune) int {
	if ch < 'A' || ch > 'Z' {
		return 0
	}
	return int(ch-'A')%9 + 1
}

// lettersOf upper-cases name and keeps only A-Z.
func lettersOf(name string) string {
	var b strings.Builder
	for _, ch := range strings.ToUpper(name) {
		if ch >= 'A' && ch <= 'Z' {
			b.WriteRune(ch)
		}
	}
	return b.String()
}

func letterSum(letters string) int {
	total := 0
	for _, ch := range letters {
		total += LetterValue(ch)
	}
	return total
}
