package divination

// NeutralScore is returned for pairs missing from the table in both directions.
const NeutralScore = 70

// Sparse and not symmetric in storage; Score probes both directions.
var compatMatrix = map[Sign]map[Sign]int{
	Aries:       {Leo: 88, Sagittarius: 85, Gemini: 78, Libra: 72},
	Taurus:      {Virgo: 86, Capricorn: 84, Cancer: 78, Scorpio: 72},
	Gemini:      {Libra: 86, Aquarius: 84, Aries: 78, Sagittarius: 70},
	Cancer:      {Scorpio: 86, Pisces: 84, Taurus: 78, Capricorn: 70},
	Leo:         {Aries: 88, Sagittarius: 85, Libra: 78, Aquarius: 72},
	Virgo:       {Taurus: 86, Capricorn: 84, Cancer: 76, Pisces: 70},
	Libra:       {Gemini: 86, Aquarius: 84, Leo: 78, Aries: 72},
	Scorpio:     {Cancer: 86, Pisces: 84, Virgo: 76, Taurus: 72},
	Sagittarius: {Aries: 85, Leo: 84, Libra: 76, Gemini: 70},
	Capricorn:   {Taurus: 84, Virgo: 82, Pisces: 74, Cancer: 70},
	Aquarius:    {Gemini: 84, Libra: 82, Sagittarius: 76, Leo: 72},
	Pisces:      {Cancer: 84, Scorpio: 82, Capricorn: 74, Virgo: 70},
}

// Score returns the 0-100 affinity between two signs. The a->b entry wins
// over b->a when both exist.
func Score(a, b Sign) int {
	if row, ok := compatMatrix[a]; ok {
		if v, ok := row[b]; ok {
			return v
		}
	}
	if row, ok := compatMatrix[b]; ok {
		if v, ok := row[a]; ok {
			return v
		}
	}
	return NeutralScore
}
