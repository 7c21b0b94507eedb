package extract

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"
)

// reviewDate is a review date split into the exported columns.
// Year, Month and Day are empty when the date could not be parsed.
type reviewDate struct {
	Display string // DD.MM.YYYY when parsed
	ISO     string
	Raw     string
	Year    string
	Month   string
	Day     string
}

// Before reports whether the parsed year is earlier than year. Unparsed dates are never before.
func (d reviewDate) Before(year int) bool {
	y, err := strconv.Atoi(d.Year)
	if err != nil {
		return false
	}
	return y < year
}

var (
	ruDatePattern  = regexp.MustCompile(`(?i)(\d{1,2})\s+([а-яё]+)\.?\s+(\d{4})`)
	dotDatePattern = regexp.MustCompile(`(\d{1,2})\.(\d{1,2})\.(\d{4})`)
	isoDatePattern = regexp.MustCompile(`(\d{4})-(\d{1,2})-(\d{1,2})`)
)

// Genitive month names as printed by the site, plus nominative forms
var ruMonths = map[string]time.Month{
	"января": time.January, "февраля": time.February, "марта": time.March,
	"апреля": time.April, "мая": time.May, "июня": time.June,
	"июля": time.July, "августа": time.August, "сентября": time.September,
	"октября": time.October, "ноября": time.November, "декабря": time.December,
	"январь": time.January, "февраль": time.February, "март": time.March,
	"апрель": time.April, "май": time.May, "июнь": time.June,
	"июль": time.July, "август": time.August, "сентябрь": time.September,
	"октябрь": time.October, "ноябрь": time.November, "декабрь": time.December,
}

// Three-letter abbreviations such as "8 окт 2025"
var ruMonthAbbrev = map[string]time.Month{
	"янв": time.January, "фев": time.February, "мар": time.March,
	"апр": time.April, "июн": time.June, "июл": time.July,
	"авг": time.August, "сен": time.September, "окт": time.October,
	"ноя": time.November, "дек": time.December,
}

func ruMonth(name string) (time.Month, bool) {
	name = strings.ToLower(name)
	if m, ok := ruMonths[name]; ok {
		return m, true
	}
	m, ok := ruMonthAbbrev[name]
	return m, ok
}

// Layouts accepted for machine-readable content attributes
var isoLayouts = []struct {
	layout string
	zoned  bool
}{
	{time.RFC3339Nano, true},
	{"2006-01-02T15:04:05", false},
	{"2006-01-02 15:04:05", false},
	{"2006-01-02T15:04", false},
	{"2006-01-02", false},
}

// parseISODate parses a machine-readable timestamp. ISO keeps the offset when one was given.
func parseISODate(raw string) (reviewDate, bool) {
	raw = strings.TrimSpace(raw)
	for _, l := range isoLayouts {
		t, err := time.Parse(l.layout, raw)
		if err != nil {
			continue
		}
		d := fromTime(t)
		d.Raw = raw
		if l.zoned {
			d.ISO = t.Format(time.RFC3339)
		} else {
			d.ISO = t.Format("2006-01-02T15:04:05")
		}
		return d, true
	}
	return reviewDate{}, false
}

func fromTime(t time.Time) reviewDate {
	return reviewDate{
		Display: t.Format("02.01.2006"),
		Year:    strconv.Itoa(t.Year()),
		Month:   fmt.Sprintf("%02d", int(t.Month())),
		Day:     fmt.Sprintf("%02d", t.Day()),
	}
}

// calendarDate builds a date from parts and rejects impossible days like 31.02
func calendarDate(year, month, day int) (time.Time, bool) {
	if month < 1 || month > 12 || day < 1 {
		return time.Time{}, false
	}
	t := time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)
	if t.Day() != day || int(t.Month()) != month {
		return time.Time{}, false
	}
	return t, true
}

// parseTextDate finds the first recognizable human date in s.
// Raw is the matched substring.
func parseTextDate(s string) (reviewDate, bool) {
	if m := ruDatePattern.FindStringSubmatch(s); m != nil {
		if month, ok := ruMonth(m[2]); ok {
			day, _ := strconv.Atoi(m[1])
			year, _ := strconv.Atoi(m[3])
			if t, ok := calendarDate(year, int(month), day); ok {
				return textDate(t, m[0]), true
			}
		}
	}
	if m := dotDatePattern.FindStringSubmatch(s); m != nil {
		day, _ := strconv.Atoi(m[1])
		month, _ := strconv.Atoi(m[2])
		year, _ := strconv.Atoi(m[3])
		if t, ok := calendarDate(year, month, day); ok {
			return textDate(t, m[0]), true
		}
	}
	if m := isoDatePattern.FindStringSubmatch(s); m != nil {
		year, _ := strconv.Atoi(m[1])
		month, _ := strconv.Atoi(m[2])
		day, _ := strconv.Atoi(m[3])
		if t, ok := calendarDate(year, month, day); ok {
			return textDate(t, m[0]), true
		}
	}
	return reviewDate{}, false
}

func textDate(t time.Time, raw string) reviewDate {
	d := fromTime(t)
	d.ISO = t.Format("2006-01-02")
	d.Raw = raw
	return d
}

// extractDate tries, in order: the date element's content attribute, its text,
// the datePublished meta tag, then any text node inside the review.
func (e *Extractor) extractDate(item *goquery.Selection) reviewDate {
	var fallbackDisplay string

	if el := item.FindMatcher(e.hotel.date).First(); el.Length() > 0 {
		text := strings.TrimSpace(el.Text())
		if content, ok := el.Attr("content"); ok {
			if d, ok := parseISODate(content); ok {
				return d
			}
			fallbackDisplay = text
		} else if text != "" {
			if d, ok := parseTextDate(text); ok {
				d.Raw = text
				return d
			}
			fallbackDisplay = text
		}
	}

	if meta := item.FindMatcher(e.hotel.dateMeta).First(); meta.Length() > 0 {
		if content, ok := meta.Attr("content"); ok && content != "" {
			if d, ok := parseISODate(content); ok {
				return d
			}
			if fallbackDisplay == "" {
				return reviewDate{Display: content, Raw: content}
			}
		}
	}

	if fallbackDisplay != "" {
		return reviewDate{Display: fallbackDisplay}
	}

	for _, n := range item.Nodes {
		if d, ok := searchTextNodes(n); ok {
			return d
		}
	}
	return reviewDate{}
}

func searchTextNodes(n *html.Node) (reviewDate, bool) {
	if n.Type == html.TextNode {
		return parseTextDate(n.Data)
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if d, ok := searchTextNodes(c); ok {
			return d, true
		}
	}
	return reviewDate{}, false
}
