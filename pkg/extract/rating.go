package extract

import (
	"regexp"
	"strconv"
	"strings"
)

var ratingPattern = regexp.MustCompile(`(\d+)[,.]?(\d*)`)

type reviewRating struct {
	Text    string
	Numeric *float64
	Stars   *int
}

// parseRating reads scores like "5", "4,5" or "4.0 из 5". Numeric and Stars stay nil
// when the text holds no number.
func parseRating(text string) reviewRating {
	r := reviewRating{Text: text}
	m := ratingPattern.FindStringSubmatch(strings.ReplaceAll(text, ",", "."))
	if m == nil {
		return r
	}
	num := m[1]
	if m[2] != "" {
		num += "." + m[2]
	}
	v, err := strconv.ParseFloat(num, 64)
	if err != nil {
		return r
	}
	stars := starsFor(v)
	r.Numeric = &v
	r.Stars = &stars
	return r
}

func starsFor(v float64) int {
	switch {
	case v >= 4.5:
		return 5
	case v >= 3.5:
		return 4
	case v >= 2.5:
		return 3
	case v >= 1.5:
		return 2
	default:
		return 1
	}
}
