package weather

import (
	"fmt"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"

	"github.com/i474232898/weather-report/internal/common"
)

// Column offsets counted from the end of a row. Leading columns vary between
// layouts (the first row of a province carries an extra province cell), the
// trailing eight do not.
const (
	minRowCells = 8

	offsetCity         = -8
	offsetDayWeather   = -7
	offsetDayWind      = -6
	offsetHighTemp     = -5
	offsetNightWeather = -4
	offsetNightWind    = -3
	offsetLowTemp      = -2

	headerRows = 2
)

// RawRow is one table row; each cell holds its non-empty text fragments.
type RawRow [][]string

// NewRawRow builds a row with one fragment per cell.
func NewRawRow(cells ...string) RawRow {
	row := make(RawRow, len(cells))
	for i, c := range cells {
		if c = strings.TrimSpace(c); c != "" {
			row[i] = []string{c}
		}
	}
	return row
}

func (r RawRow) cell(offset int) []string {
	i := len(r) + offset
	if i < 0 || i >= len(r) {
		return nil
	}
	return r[i]
}

// Text returns the cell at offset from the end, or "" if absent.
func (r RawRow) Text(offset int) string {
	return strings.Join(r.cell(offset), "")
}

// Wind joins direction and force, the first two fragments of a wind cell.
func (r RawRow) Wind(offset int) string {
	frags := r.cell(offset)
	if len(frags) > 2 {
		frags = frags[:2]
	}
	return strings.Join(frags, "")
}

// MatchesCity reports whether the row names target, tolerating suffixes such
// as 市 in either direction.
func (r RawRow) MatchesCity(target string) bool {
	if len(r) < minRowCells {
		return false
	}
	return common.ContainsEither(r.Text(offsetCity), target)
}

// BuildRecord maps a matched row onto a Record.
func BuildRecord(row RawRow, date string) Record {
	return Record{
		City:             row.Text(offsetCity),
		TemperatureRange: formatTemperature(row.Text(offsetHighTemp), row.Text(offsetLowTemp)),
		WeatherType: common.FirstUsable(
			[]string{row.Text(offsetDayWeather), row.Text(offsetNightWeather)},
			[]string{CellPlaceholder},
			MissingWeather,
		),
		Wind: common.FirstUsable(
			[]string{row.Wind(offsetDayWind), row.Wind(offsetNightWind)},
			[]string{WindPlaceholder},
			MissingWind,
		),
		Date: date,
	}
}

func formatTemperature(high, low string) string {
	hasHigh := high != "" && high != CellPlaceholder
	hasLow := low != "" && low != CellPlaceholder
	switch {
	case hasHigh && hasLow:
		return low + "~" + high + "°"
	case hasLow:
		return low + "°"
	default:
		return MissingTemperature
	}
}

// Extractor finds a city in a region document.
type Extractor struct {
	// Now supplies the report date; time.Now when nil.
	Now func() time.Time
}

// Extract returns the first row in document order that matches city.
// A document without a conMidtab container, or without the city, yields
// ErrNotFound.
func (e Extractor) Extract(document, city string) (Record, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(document))
	if err != nil {
		return Record{}, &ParseError{Err: err}
	}

	containers := doc.Find("div.conMidtab")
	if containers.Length() == 0 {
		return Record{}, fmt.Errorf("%w: no conMidtab container", ErrNotFound)
	}

	var (
		match RawRow
		found bool
	)
	containers.Find("table").EachWithBreak(func(_ int, table *goquery.Selection) bool {
		rows := table.Find("tr")
		if rows.Length() <= headerRows {
			return true
		}
		rows.Slice(headerRows, goquery.ToEnd).EachWithBreak(func(_ int, tr *goquery.Selection) bool {
			row := rowFromSelection(tr)
			if row.MatchesCity(city) {
				match, found = row, true
				return false
			}
			return true
		})
		return !found
	})
	if !found {
		return Record{}, fmt.Errorf("%w: %s", ErrNotFound, city)
	}

	return BuildRecord(match, e.now().Format(DateLayout)), nil
}

func (e Extractor) now() time.Time {
	if e.Now != nil {
		return e.Now()
	}
	return time.Now()
}

func rowFromSelection(tr *goquery.Selection) RawRow {
	cells := tr.ChildrenFiltered("td")
	row := make(RawRow, 0, cells.Length())
	cells.Each(func(_ int, td *goquery.Selection) {
		var frags []string
		for _, n := range td.Nodes {
			frags = appendFragments(frags, n)
		}
		row = append(row, frags)
	})
	return row
}

func appendFragments(frags []string, n *html.Node) []string {
	if n.Type == html.TextNode {
		if t := strings.TrimSpace(n.Data); t != "" {
			frags = append(frags, t)
		}
		return frags
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		frags = appendFragments(frags, c)
	}
	return frags
}
